package flow

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flowclient/internal/apperrors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Output file extensions inside a downloaded output data archive. A single
// output is usually data.csv with data.meta.
const (
	dataFileExt = ".csv"
	metaFileExt = ".meta"
)

// splitOutputNames are the named outputs of a component that produces several.
var splitOutputNames = []string{"train", "validate", "test"}

// maxLineBytes bounds a single data line.
const maxLineBytes = 16 << 20

// OutputDataTable fetches the table references of a component output. No
// entries is an empty result, one entry is returned directly without its
// name tag, several are keyed by their name tag.
func (c *Client) OutputDataTable(ctx context.Context, jobID, component, role, partyID string) (Output[map[string]any], error) {
	const op = "output.data.table"
	if err := validateComponentArgs(jobID, component); err != nil {
		return Output[map[string]any]{}, err
	}

	req := componentRequest{JobID: jobID, Role: role, PartyID: partyID, ComponentName: component}
	rep, err := c.postJSON(ctx, op, endpointOutputTable, jobID, req)
	if err != nil {
		return Output[map[string]any]{}, err
	}
	env, err := decodeEnvelope(op, rep.body)
	if err != nil {
		return Output[map[string]any]{}, err
	}
	if err := env.requireSuccess(op); err != nil {
		return Output[map[string]any]{}, err
	}

	out, err := decodeTables(op, env)
	if err != nil {
		return Output[map[string]any]{}, err
	}
	if out.IsEmpty() {
		c.logger.Info("No output data table", "jobId", jobID, "component", component)
	}
	if c.metrics != nil {
		c.metrics.RecordArtifact(ctx, "data_table", !out.IsEmpty())
	}
	return out, nil
}

// OutputData downloads the output data sample of a component into a scoped
// temporary directory and reads it. limit caps the lines read per data file,
// header included; zero or less reads everything.
//
// One data file yields a single sample. Several yield the train, validate
// and test samples that are present. No data files is an empty result.
func (c *Client) OutputData(ctx context.Context, jobID, component, role, partyID string, limit int) (Output[DataSample], error) {
	const op = "output.data"
	if err := validateComponentArgs(jobID, component); err != nil {
		return Output[DataSample]{}, err
	}

	req := componentRequest{JobID: jobID, Role: role, PartyID: partyID, ComponentName: component}
	if limit > 0 {
		req.Limit = limit
	}
	rep, err := c.postJSON(ctx, op, endpointOutputData, jobID, req)
	if err != nil {
		return Output[DataSample]{}, err
	}

	if !isGzip(rep.body) {
		// The service answers with an envelope instead of an archive on failure.
		env, err := decodeEnvelope(op, rep.body)
		if err != nil {
			return Output[DataSample]{}, err
		}
		if err := env.requireSuccess(op); err != nil {
			return Output[DataSample]{}, err
		}
		return Output[DataSample]{}, apperrors.Protocol(op, "expected output data archive", rep.body)
	}

	dir, err := c.stage("output-data")
	if err != nil {
		return Output[DataSample]{}, apperrors.Internal(op, err)
	}
	defer dir.Close()

	root, err := extractArchive(rep.body, dir.join("output"))
	if err != nil {
		return Output[DataSample]{}, apperrors.Internal(op, err)
	}

	logger := c.logger.With("jobId", jobID, "component", component)
	out, err := readOutputDir(logger, root, limit)
	if err != nil {
		return Output[DataSample]{}, apperrors.Internal(op, err)
	}
	if out.IsEmpty() {
		c.logger.Info("No output data", "jobId", jobID, "component", component)
	}
	if c.metrics != nil {
		c.metrics.RecordArtifact(ctx, "data", !out.IsEmpty())
	}
	return out, nil
}

func readOutputDir(logger *slog.Logger, dir string, limit int) (Output[DataSample], error) {
	names, err := dataFiles(dir)
	if err != nil {
		return Output[DataSample]{}, err
	}

	switch n := len(names); {
	case n == 0:
		if dirs := subdirs(dir); len(dirs) > 0 {
			logger.Warn("No data files at archive root, nested directories ignored", "dirs", dirs)
		}
		return Empty[DataSample](), nil
	case n == 1:
		sample, err := readSample(logger, dir, names[0], limit)
		if err != nil {
			return Output[DataSample]{}, err
		}
		return Single(sample), nil
	}

	if n := len(names); n != len(splitOutputNames) {
		logger.Warn("Unexpected number of output data files", "count", n, "expected", len(splitOutputNames))
	}
	samples := make(map[string]DataSample, len(splitOutputNames))
	for _, name := range splitOutputNames {
		sample, err := readSample(logger, dir, name, limit)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Output data file missing", "output", name)
			continue
		}
		if err != nil {
			return Output[DataSample]{}, err
		}
		samples[name] = sample
	}
	return Many(samples), nil
}

func readSample(logger *slog.Logger, dir, name string, limit int) (DataSample, error) {
	lines, err := ExtractOutputData(filepath.Join(dir, name+dataFileExt), limit)
	if err != nil {
		return DataSample{}, err
	}
	meta, ok := extractOutputMeta(logger.With("output", name), filepath.Join(dir, name+metaFileExt))
	return DataSample{Data: lines, Meta: meta, HasMeta: ok}, nil
}

// ExtractOutputData reads up to limit lines of a data file, trimming
// surrounding whitespace from each. Zero or less reads the whole file.
func ExtractOutputData(path string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for scanner.Scan() {
		if limit > 0 && len(lines) >= limit {
			break
		}
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

// ExtractOutputMeta reads the header columns of an output meta file. A
// missing or malformed file is logged and yields no header.
func ExtractOutputMeta(path string) ([]string, bool) {
	return extractOutputMeta(slog.Default(), path)
}

func extractOutputMeta(logger *slog.Logger, path string) ([]string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Cannot read output meta", "path", path, "error", err)
		return nil, false
	}

	var meta struct {
		Header json.RawMessage `json:"header"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		logger.Warn("Malformed output meta", "path", path, "error", err)
		return nil, false
	}
	if len(meta.Header) == 0 || string(meta.Header) == "null" {
		logger.Warn("Output meta has no header", "path", path)
		return nil, false
	}

	var columns []string
	if err := json.Unmarshal(meta.Header, &columns); err == nil {
		return columns, true
	}
	// Some services write the header as one delimited string.
	var joined string
	if err := json.Unmarshal(meta.Header, &joined); err == nil {
		return strings.Split(joined, ","), true
	}
	logger.Warn("Output meta header is neither a list nor a string", "path", path)
	return nil, false
}

func validateComponentArgs(jobID, component string) error {
	if jobID == "" {
		return apperrors.Validation("jobId", "job id is required")
	}
	if component == "" {
		return apperrors.Validation("component", "component name is required")
	}
	return nil
}
