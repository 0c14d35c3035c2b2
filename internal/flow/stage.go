package flow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Staged document file names expected by the service.
const (
	runtimeConfFile = "job_runtime_conf.json"
	jobDSLFile      = "job_dsl.json"
	trainDSLFile    = "train_dsl.json"
)

// stagingDir is a temporary directory scoped to one operation.
// Close removes it and everything in it.
type stagingDir struct {
	path string
}

func (c *Client) stage(op string) (*stagingDir, error) {
	dir, err := os.MkdirTemp(c.tempDir, "flow-"+op+"-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &stagingDir{path: dir}, nil
}

// writeJSON serializes doc into the staging directory under name.
func (s *stagingDir) writeJSON(name string, doc any) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(s.path, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

func (s *stagingDir) join(elem ...string) string {
	return filepath.Join(append([]string{s.path}, elem...)...)
}

func (s *stagingDir) Close() error {
	return os.RemoveAll(s.path)
}
