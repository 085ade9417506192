package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tinytelemetry/tailchart/internal/model"
)

// ParseErrorKind classifies a recoverable payload failure.
type ParseErrorKind int

const (
	// Malformed means the payload is not syntactically valid JSON.
	Malformed ParseErrorKind = iota + 1
	// SchemaMismatch means the payload decoded but is not a usable record.
	SchemaMismatch
)

var (
	ErrMalformed      = errors.New("malformed payload")
	ErrSchemaMismatch = errors.New("schema mismatch")
)

func (k ParseErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case SchemaMismatch:
		return "schema_mismatch"
	default:
		return "unknown"
	}
}

// ParseError is returned for payloads that are dropped without stopping the pipeline.
type ParseError struct {
	Kind   ParseErrorKind
	Field  string // offending field for SchemaMismatch, may be empty
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Kind.String()
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %q)", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Is(target error) bool {
	switch e.Kind {
	case Malformed:
		return target == ErrMalformed
	case SchemaMismatch:
		return target == ErrSchemaMismatch
	}
	return false
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewSchemaMismatch builds a SchemaMismatch error for field.
func NewSchemaMismatch(field, reason string) *ParseError {
	return &ParseError{Kind: SchemaMismatch, Field: field, Reason: reason}
}

// Parser decodes one JSON object per payload into a Record.
type Parser struct {
	required []string
}

// NewParser creates a parser that rejects records missing any of required.
func NewParser(required ...string) *Parser {
	return &Parser{required: append([]string(nil), required...)}
}

// Required returns the fields enforced by the parser.
func (p *Parser) Required() []string {
	return append([]string(nil), p.required...)
}

// Parse decodes env.Line. Failures are always *ParseError.
func (p *Parser) Parse(env model.IngestEnvelope) (*model.Record, error) {
	line := strings.TrimSpace(env.Line)
	if line == "" {
		return nil, &ParseError{Kind: Malformed, Reason: "empty payload"}
	}

	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, &ParseError{Kind: Malformed, Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &ParseError{Kind: Malformed, Reason: "trailing data after JSON value"}
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &ParseError{Kind: SchemaMismatch, Reason: fmt.Sprintf("expected an object, got %s", jsonKind(raw))}
	}

	fields := make(map[string]any, len(obj))
	for k, v := range obj {
		if norm, ok := normalizeValue(v); ok {
			fields[k] = norm
		}
	}

	for _, name := range p.required {
		if _, ok := fields[name]; !ok {
			return nil, NewSchemaMismatch(name, "required field is missing or null")
		}
	}

	return &model.Record{
		Fields: fields,
		Source: env.Source,
		Offset: env.Offset,
	}, nil
}

// normalizeValue maps a decoded JSON value to string or float64.
// It reports false for null.
func normalizeValue(value interface{}) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		return v, true
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
		return v.String(), true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Sprintf("%v", v), true
		}
		return strings.TrimSuffix(buf.String(), "\n"), true
	}
}

func jsonKind(value interface{}) string {
	switch value.(type) {
	case nil:
		return "null"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", value)
	}
}
