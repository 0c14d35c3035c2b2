// Package document loads job descriptors and runtime configurations.
//
// Documents are opaque to the client. They are decoded into generic values
// that marshal back to JSON unchanged in meaning.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a JSON or YAML document from path. An empty path yields a
// nil document. Format is detected by extension (.json, .yaml, .yml) or, for
// other extensions, by content.
func LoadFile(path string) (any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses a document. ext is the file extension used as a format hint;
// empty means detect from content (a leading '{' or '[' is JSON).
func Load(data []byte, ext string) (any, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return loadJSON(data)
	case ".yaml", ".yml":
		return loadYAML(data)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return loadJSON(data)
	}
	return loadYAML(data)
}

// loadJSON keeps numbers as json.Number so large integers such as party ids
// survive a round trip unchanged.
func loadJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse document json: %w", err)
	}
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse document json: unexpected data after document")
	}
	return doc, nil
}

func loadYAML(data []byte) (any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document yaml: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parse document yaml: empty document")
	}
	return normalize(doc), nil
}

// normalize rewrites YAML mappings with non-string keys so the document can
// be marshalled as JSON.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}
