package aggregate

import (
	"fmt"
	"strings"

	"github.com/tinytelemetry/tailchart/internal/model"
)

// Mode selects how records are folded into state.
type Mode string

const (
	ModeCategory Mode = "category"
	ModeSeries   Mode = "series"
	ModeWindow   Mode = "window"
)

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCategory, "":
		return ModeCategory, nil
	case ModeSeries:
		return ModeSeries, nil
	case ModeWindow, "rolling":
		return ModeWindow, nil
	default:
		return "", fmt.Errorf("unknown aggregation mode %q (want category, series or window)", s)
	}
}

// Policy configures the active aggregation.
type Policy struct {
	Mode            Mode
	CategoryField   string
	RequireCategory bool
	XField          string
	YField          string
	WindowSize      int
}

// DefaultPolicy returns the category-count policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Mode:          ModeCategory,
		CategoryField: model.DefaultCategoryField,
		WindowSize:    model.DefaultWindowSize,
	}
}

// Validate checks that the fields needed by the mode are configured.
func (p Policy) Validate() error {
	switch p.Mode {
	case ModeCategory:
		if p.CategoryField == "" {
			return fmt.Errorf("category mode requires a category field")
		}
	case ModeSeries, ModeWindow:
		if p.XField == "" || p.YField == "" {
			return fmt.Errorf("%s mode requires both x and y fields", p.Mode)
		}
		if p.Mode == ModeWindow && p.WindowSize <= 0 {
			return fmt.Errorf("invalid window size: %d", p.WindowSize)
		}
	default:
		return fmt.Errorf("unknown aggregation mode %q", p.Mode)
	}
	return nil
}

// RequiredFields returns the fields the parser must enforce.
// Category mode tolerates a missing category unless RequireCategory is set.
func (p Policy) RequiredFields() []string {
	switch p.Mode {
	case ModeCategory:
		if p.RequireCategory {
			return []string{p.CategoryField}
		}
		return nil
	case ModeSeries, ModeWindow:
		return []string{p.XField, p.YField}
	default:
		return nil
	}
}
