package dataprocessing

import (
	"errors"
	"fmt"
	"strings"

	apierrors "csvpulse/internal/errors"
	"csvpulse/internal/table"
	"csvpulse/pkg/contracts/domain"
)

const reasonAbsent = "column not present"

var errMissingBound = errors.New("bound is a missing-value token")

// Narrow applies every range and categorical filter of c to t and returns
// the rows satisfying all of them, in their original order. Filters naming
// absent columns are reported as skipped. The source table is not modified.
func Narrow(t *table.Table, c domain.Criteria) (*table.Table, []domain.AppliedRange, []domain.AppliedCategory, error) {
	keep := make([]bool, t.Len())
	for i := range keep {
		keep[i] = true
	}

	ranges := make([]domain.AppliedRange, 0, len(c.Ranges))
	for _, rf := range c.Ranges {
		col, ok := t.Column(rf.Column)
		if !ok {
			ranges = append(ranges, domain.AppliedRange{Column: rf.Column, Skipped: true, Reason: reasonAbsent})
			continue
		}
		lo, hi, err := clampBounds(col, rf)
		if err != nil {
			return nil, nil, nil, err
		}
		ranges = append(ranges, domain.AppliedRange{Column: rf.Column, Min: lo, Max: hi})

		for i, v := range col.Values() {
			if keep[i] && !inRange(v, lo, hi) {
				keep[i] = false
			}
		}
	}

	categories := make([]domain.AppliedCategory, 0, len(c.Categories))
	for _, cf := range c.Categories {
		col, ok := t.Column(cf.Column)
		if !ok {
			categories = append(categories, domain.AppliedCategory{Column: cf.Column, Skipped: true, Reason: reasonAbsent})
			continue
		}
		if cf.Values == nil {
			categories = append(categories, domain.AppliedCategory{Column: cf.Column, Values: col.Distinct(), All: true})
			continue
		}

		accepted := make(map[string]struct{}, len(cf.Values))
		for _, v := range cf.Values {
			accepted[v] = struct{}{}
		}
		categories = append(categories, domain.AppliedCategory{Column: cf.Column, Values: cf.Values})

		for i, v := range col.Values() {
			if !keep[i] {
				continue
			}
			if _, ok := accepted[v.Raw()]; v.IsNull() || !ok {
				keep[i] = false
			}
		}
	}

	indices := make([]int, 0, len(keep))
	for i, k := range keep {
		if k {
			indices = append(indices, i)
		}
	}
	if len(indices) == t.Len() {
		return t, ranges, categories, nil
	}
	return t.Select(indices), ranges, categories, nil
}

// clampBounds parses the requested bounds and intersects them with the
// observed extent of the column. An omitted or blank bound is the observed
// extreme.
func clampBounds(col *table.Column, rf domain.RangeFilter) (table.Value, table.Value, error) {
	lo, hi := col.Min(), col.Max()

	v, ok, err := parseBound(col, "min", rf.Min)
	if err != nil {
		return lo, hi, err
	}
	if ok && !lo.IsNull() && table.Compare(v, lo) > 0 {
		lo = v
	}

	v, ok, err = parseBound(col, "max", rf.Max)
	if err != nil {
		return lo, hi, err
	}
	if ok && !hi.IsNull() && table.Compare(v, hi) < 0 {
		hi = v
	}
	return lo, hi, nil
}

// parseBound reports ok=false for an omitted bound. A missing-value token
// such as NA is rejected rather than treated as a null bound.
func parseBound(col *table.Column, which string, b domain.Bound) (table.Value, bool, error) {
	raw := strings.TrimSpace(string(b))
	if raw == "" {
		return table.Value{}, false, nil
	}
	v, err := col.ParseBound(raw)
	if err != nil {
		return v, false, boundError(col, which, b, err)
	}
	if v.IsNull() {
		return v, false, boundError(col, which, b, errMissingBound)
	}
	return v, true, nil
}

func boundError(col *table.Column, which string, b domain.Bound, cause error) error {
	return apierrors.NewAppError(apierrors.ErrTypeValidation,
		fmt.Sprintf("invalid %s bound %q for %s column %q", which, string(b), col.Kind(), col.Name()), cause).
		WithContext("column", col.Name())
}

// inRange reports lo <= v <= hi. Nulls never match, so a column with no
// observed values matches nothing.
func inRange(v, lo, hi table.Value) bool {
	if v.IsNull() || lo.IsNull() || hi.IsNull() {
		return false
	}
	return table.Compare(v, lo) >= 0 && table.Compare(v, hi) <= 0
}
