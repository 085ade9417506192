package model

import (
	"math"
	"strconv"
	"strings"
)

// Record is one decoded payload. Field values are normalized at the parser
// boundary: every value is either a string or a float64. Null fields are
// not stored.
type Record struct {
	Fields map[string]any
	Source string
	Offset int64
}

// Has reports whether field is present.
func (r *Record) Has(field string) bool {
	if r == nil {
		return false
	}
	_, ok := r.Fields[field]
	return ok
}

// Text returns the field as text. Numbers are formatted without trailing zeros.
func (r *Record) Text(field string) (string, bool) {
	if r == nil {
		return "", false
	}
	switch v := r.Fields[field].(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

// Number returns the field as a float64. Numeric text is parsed.
func (r *Record) Number(field string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	switch v := r.Fields[field].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
