package json

import (
	"bytes"
	"strings"
	"testing"
)

type testManifest struct {
	Name    string `json:"name"`
	Main    string `json:"main" default:"module.go"`
	Private bool   `json:"private"`
}

func TestUnmarshalAppliesDefaultsForMissingFields(t *testing.T) {
	var m testManifest
	if err := Unmarshal([]byte(`{"name":"weather"}`), &m); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if m.Main != "module.go" {
		t.Fatalf("expected default main, got %q", m.Main)
	}
}

func TestUnmarshalKeepsExplicitValues(t *testing.T) {
	var m testManifest
	if err := Unmarshal([]byte(`{"name":"weather","main":"plugin.so"}`), &m); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if m.Main != "plugin.so" {
		t.Fatalf("explicit main overwritten, got %q", m.Main)
	}
}

func TestMarshalNonStructValues(t *testing.T) {
	data, err := Marshal(map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("Marshal(map) returned error: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("Marshal(map) = %s", data)
	}

	var out map[string]int
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal(map) returned error: %v", err)
	}
	if out["a"] != 1 {
		t.Fatalf("round trip lost value: %v", out)
	}
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(&testManifest{Name: "weather"}); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !strings.Contains(buf.String(), `"main":"module.go"`) {
		t.Fatalf("encoded output missing default: %s", buf.String())
	}

	var m testManifest
	if err := NewDecoder(strings.NewReader(`{"name":"x"}`)).Decode(&m); err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if m.Main != "module.go" {
		t.Fatalf("decoded default missing: %+v", m)
	}
}
