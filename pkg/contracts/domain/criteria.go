package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Bound is a range filter endpoint. It accepts a JSON string or number and
// is parsed against the column kind when the filter is applied. An empty
// bound means the observed extreme of the column.
type Bound string

// UnmarshalJSON accepts "1910", 1910 and null.
func (b *Bound) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*b = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = Bound(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("bound must be a string or number: %w", err)
	}
	*b = Bound(n.String())
	return nil
}

// RangeFilter keeps rows whose Column value lies within [Min, Max].
type RangeFilter struct {
	Column string `json:"column" validate:"required"`
	Min    Bound  `json:"min,omitempty"`
	Max    Bound  `json:"max,omitempty"`
}

// CategoryFilter keeps rows whose Column value is one of Values.
// A nil Values accepts every observed value; an empty, non-nil list
// accepts none.
type CategoryFilter struct {
	Column string   `json:"column" validate:"required"`
	Values []string `json:"values"`
}

// Page selects a window of the narrowed rows.
type Page struct {
	Offset int `json:"offset" validate:"min=0"`
	Limit  int `json:"limit" validate:"min=0,max=1000"`
}

// Criteria is the full set of user choices applied to a table.
type Criteria struct {
	Ranges     []RangeFilter     `json:"ranges,omitempty" validate:"omitempty,dive"`
	Categories []CategoryFilter  `json:"categories,omitempty" validate:"omitempty,dive"`
	Selections map[string]string `json:"selections,omitempty"`
	TopN       int               `json:"top_n,omitempty" validate:"min=0,max=1000"`
	Page       Page              `json:"page"`
}

// Selection returns the single-select choice for a section, if any.
func (c Criteria) Selection(section string) (string, bool) {
	v, ok := c.Selections[section]
	return v, ok && v != ""
}
