package aggregate

import (
	"strings"
	"time"

	"github.com/tinytelemetry/tailchart/internal/model"
)

// CategoryCounts counts records per category label in first-seen order.
type CategoryCounts struct {
	field  string
	order  []string
	counts map[string]int64
	seq    uint64
	total  int64
	now    clock
	last   time.Time
}

// NewCategoryCounts counts occurrences of field.
func NewCategoryCounts(field string) *CategoryCounts {
	if field == "" {
		field = model.DefaultCategoryField
	}
	return &CategoryCounts{
		field:  field,
		counts: make(map[string]int64),
		now:    timeNow,
	}
}

func (c *CategoryCounts) Mode() Mode { return ModeCategory }

// Update increments the record's category. A missing or blank category
// counts as "unknown".
func (c *CategoryCounts) Update(record *model.Record) error {
	label, ok := record.Text(c.field)
	if !ok || strings.TrimSpace(label) == "" {
		label = model.DefaultUnknownCategory
	}

	if _, seen := c.counts[label]; !seen {
		c.order = append(c.order, label)
	}
	c.counts[label]++
	c.total++
	c.seq++
	c.last = c.now()
	return nil
}

// Snapshot returns a copy of the counts in first-seen order.
func (c *CategoryCounts) Snapshot() Snapshot {
	cats := make([]CategoryCount, len(c.order))
	for i, label := range c.order {
		cats[i] = CategoryCount{Label: label, Count: c.counts[label]}
	}
	return Snapshot{
		Mode:       ModeCategory,
		Seq:        c.seq,
		Total:      float64(c.total),
		Categories: cats,
		UpdatedAt:  c.last,
	}
}
