package flow

import (
	"bytes"
	"encoding/json"
	"flowclient/internal/apperrors"
	"fmt"
	"maps"
)

// envelope is the common response document of the job-control API.
type envelope struct {
	RetCode *int            `json:"retcode"`
	RetMsg  string          `json:"retmsg"`
	JobID   *string         `json:"jobId"`
	Data    json.RawMessage `json:"data"`

	raw []byte
}

func decodeEnvelope(op string, body []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperrors.Transport(op, fmt.Errorf("decode response: %w", err))
	}
	env.raw = body
	return &env, nil
}

// hasData reports whether a data field is present and not null.
func (e *envelope) hasData() bool {
	return len(e.Data) > 0 && !bytes.Equal(bytes.TrimSpace(e.Data), []byte("null"))
}

// retCode returns the return code, or 0 when absent.
func (e *envelope) retCode() int {
	if e.RetCode == nil {
		return 0
	}
	return *e.RetCode
}

// requireSuccess enforces a present, zero return code.
func (e *envelope) requireSuccess(op string) error {
	if e.RetCode == nil {
		return apperrors.Protocol(op, "missing retcode", e.raw)
	}
	if *e.RetCode != 0 {
		return apperrors.Remote(op, *e.RetCode, e.RetMsg, e.raw)
	}
	return nil
}

// Shape tells which variant an Output holds.
type Shape int

const (
	ShapeEmpty Shape = iota
	ShapeSingle
	ShapeMany
)

func (s Shape) String() string {
	switch s {
	case ShapeSingle:
		return "single"
	case ShapeMany:
		return "many"
	default:
		return "empty"
	}
}

// Output is a component output that is absent, a single value, or a set of
// values keyed by output name (for example train/validate/test splits).
type Output[T any] struct {
	shape  Shape
	single T
	many   map[string]T
}

// Empty returns an Output with no value.
func Empty[T any]() Output[T] {
	return Output[T]{}
}

// Single returns an Output holding one value.
func Single[T any](v T) Output[T] {
	return Output[T]{shape: ShapeSingle, single: v}
}

// Many returns an Output holding named values. An empty map yields Empty.
func Many[T any](m map[string]T) Output[T] {
	if len(m) == 0 {
		return Empty[T]()
	}
	return Output[T]{shape: ShapeMany, many: maps.Clone(m)}
}

// Shape returns the variant.
func (o Output[T]) Shape() Shape { return o.shape }

// IsEmpty reports whether the output holds nothing.
func (o Output[T]) IsEmpty() bool { return o.shape == ShapeEmpty }

// Single returns the value of a single-valued output.
func (o Output[T]) Single() (T, bool) {
	return o.single, o.shape == ShapeSingle
}

// Many returns the named values of a multi-valued output.
func (o Output[T]) Many() (map[string]T, bool) {
	if o.shape != ShapeMany {
		return nil, false
	}
	return maps.Clone(o.many), true
}

// MarshalJSON encodes Empty as {}, Single as its value and Many as an object
// keyed by output name.
func (o Output[T]) MarshalJSON() ([]byte, error) {
	switch o.shape {
	case ShapeSingle:
		return json.Marshal(o.single)
	case ShapeMany:
		return json.Marshal(o.many)
	default:
		return []byte("{}"), nil
	}
}

// tableNameTag names an output table entry when a component has several.
const tableNameTag = "data_name"

// decodeTables turns the data list of an output table response into an Output.
// A single entry loses its name tag; several are keyed by it and must carry
// distinct names. An empty list is an empty result, a missing list is an error.
func decodeTables(op string, env *envelope) (Output[map[string]any], error) {
	if !env.hasData() {
		return Output[map[string]any]{}, apperrors.Protocol(op, "missing data", env.raw)
	}

	var entries []map[string]any
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		return Output[map[string]any]{}, apperrors.Protocol(op, "data is not a list of objects", env.raw)
	}

	switch len(entries) {
	case 0:
		return Empty[map[string]any](), nil
	case 1:
		entry := entries[0]
		delete(entry, tableNameTag)
		return Single(entry), nil
	}

	tables := make(map[string]map[string]any, len(entries))
	for i, entry := range entries {
		name, ok := entry[tableNameTag].(string)
		if !ok || name == "" {
			return Output[map[string]any]{}, apperrors.Protocol(op, fmt.Sprintf("entry %d has no %s", i, tableNameTag), env.raw)
		}
		if _, dup := tables[name]; dup {
			return Output[map[string]any]{}, apperrors.Protocol(op, fmt.Sprintf("duplicate %s %q", tableNameTag, name), env.raw)
		}
		delete(entry, tableNameTag)
		tables[name] = entry
	}
	return Many(tables), nil
}
