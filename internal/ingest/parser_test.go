package ingest

import (
	"errors"
	"testing"

	"github.com/tinytelemetry/tailchart/internal/model"
)

func TestParse_Object(t *testing.T) {
	t.Parallel()

	p := NewParser()
	rec, err := p.Parse(model.IngestEnvelope{
		Source: "file",
		Line:   `{"category":"food","calories":95,"organic":true,"tags":["a","b"],"note":null}`,
		Offset: 42,
	})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got, _ := rec.Text("category"); got != "food" {
		t.Errorf("category = %q, want %q", got, "food")
	}
	if got, ok := rec.Fields["calories"].(float64); !ok || got != 95 {
		t.Errorf("calories = %#v, want float64(95)", rec.Fields["calories"])
	}
	if got := rec.Fields["organic"]; got != "true" {
		t.Errorf("organic = %#v, want %q", got, "true")
	}
	if got := rec.Fields["tags"]; got != `["a","b"]` {
		t.Errorf("tags = %#v, want compact JSON text", got)
	}
	if rec.Has("note") {
		t.Error("null field should not be stored")
	}
	if rec.Source != "file" || rec.Offset != 42 {
		t.Errorf("metadata = (%q, %d), want (file, 42)", rec.Source, rec.Offset)
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	p := NewParser()
	for _, line := range []string{"not-json", "", "   ", `{"a":1`, `{"a":1} trailing`, `{"a":1}{"b":2}`} {
		_, err := p.Parse(model.IngestEnvelope{Line: line})
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) error = %v, want ErrMalformed", line, err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Kind != Malformed {
			t.Errorf("Parse(%q) error kind mismatch: %v", line, err)
		}
	}
}

func TestParse_NonObjectIsSchemaMismatch(t *testing.T) {
	t.Parallel()

	p := NewParser()
	for _, line := range []string{`"food"`, `42`, `[1,2]`, `null`, `true`} {
		_, err := p.Parse(model.IngestEnvelope{Line: line})
		if !errors.Is(err, ErrSchemaMismatch) {
			t.Errorf("Parse(%q) error = %v, want ErrSchemaMismatch", line, err)
		}
		if errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) should not be malformed", line)
		}
	}
}

func TestParse_RequiredFields(t *testing.T) {
	t.Parallel()

	p := NewParser("food", "calories")
	tests := []struct {
		name  string
		line  string
		field string
	}{
		{"missing", `{"food":"apple"}`, "calories"},
		{"null", `{"food":null,"calories":95}`, "food"},
	}
	for _, tt := range tests {
		_, err := p.Parse(model.IngestEnvelope{Line: tt.line})
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("%s: expected *ParseError, got %v", tt.name, err)
		}
		if pe.Kind != SchemaMismatch || pe.Field != tt.field {
			t.Errorf("%s: got kind=%v field=%q, want schema_mismatch field=%q", tt.name, pe.Kind, pe.Field, tt.field)
		}
	}

	if _, err := p.Parse(model.IngestEnvelope{Line: `{"food":"apple","calories":"95"}`}); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}
}

func TestParse_HugeNumberKeepsText(t *testing.T) {
	t.Parallel()

	rec, err := NewParser().Parse(model.IngestEnvelope{Line: `{"v":1e400}`})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got := rec.Fields["v"]; got != "1e400" {
		t.Errorf("v = %#v, want text %q", got, "1e400")
	}
}

func TestParseErrorMessage(t *testing.T) {
	t.Parallel()

	err := NewSchemaMismatch("calories", "not numeric")
	if got, want := err.Error(), `schema_mismatch (field "calories"): not numeric`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
