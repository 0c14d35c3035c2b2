package flow

import (
	"encoding/json"
	"testing"
)

func TestOutput_Variants(t *testing.T) {
	t.Parallel()

	empty := Empty[int]()
	if !empty.IsEmpty() || empty.Shape() != ShapeEmpty {
		t.Errorf("Empty() shape = %v", empty.Shape())
	}

	single := Single(42)
	if v, ok := single.Single(); !ok || v != 42 {
		t.Errorf("Single() = %v, %v", v, ok)
	}
	if _, ok := single.Many(); ok {
		t.Error("Many() ok on single output")
	}

	src := map[string]int{"train": 1, "test": 2}
	many := Many(src)
	src["validate"] = 3
	m, ok := many.Many()
	if !ok || len(m) != 2 {
		t.Errorf("Many() = %v, %v; want a copy of 2 entries", m, ok)
	}
	m["extra"] = 4
	if again, _ := many.Many(); len(again) != 2 {
		t.Error("Many() exposes internal map")
	}

	if !Many(map[string]int{}).IsEmpty() {
		t.Error("Many of an empty map should be empty")
	}
}

func TestOutput_MarshalJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		out  any
		want string
	}{
		{"empty", Empty[DataSample](), `{}`},
		{"single", Single(DataSample{Data: []string{"id"}, Meta: []string{"id"}, HasMeta: true}), `{"data":["id"],"meta":["id"]}`},
		{"many", Many(map[string]DataSample{"train": {Data: []string{}}}), `{"train":{"data":[]}}`},
	}
	for _, tt := range tests {
		got, err := json.Marshal(tt.out)
		if err != nil {
			t.Fatalf("%s: marshal: %v", tt.name, err)
		}
		if string(got) != tt.want {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestShape_String(t *testing.T) {
	t.Parallel()
	for shape, want := range map[Shape]string{ShapeEmpty: "empty", ShapeSingle: "single", ShapeMany: "many"} {
		if got := shape.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", shape, got, want)
		}
	}
}

func TestEnvelope_HasData(t *testing.T) {
	t.Parallel()
	tests := []struct {
		body string
		want bool
	}{
		{`{"retcode":0}`, false},
		{`{"retcode":0,"data":null}`, false},
		{`{"retcode":0,"data":[]}`, true},
		{`{"retcode":0,"data":{}}`, true},
		{`{"retcode":0,"data":0}`, true},
	}
	for _, tt := range tests {
		env, err := decodeEnvelope("test", []byte(tt.body))
		if err != nil {
			t.Fatalf("decodeEnvelope(%s) error = %v", tt.body, err)
		}
		if got := env.hasData(); got != tt.want {
			t.Errorf("hasData(%s) = %v, want %v", tt.body, got, tt.want)
		}
	}
}
