package dataprocessing

import (
	"fmt"
	"sort"
	"strconv"

	"csvpulse/internal/table"
	"csvpulse/pkg/contracts/domain"
)

// DefaultWindows are the rolling-mean window sizes of a moving-average section.
var DefaultWindows = []int{7, 30}

// GroupSum sums value per distinct key. Null values are skipped and rows
// with a null key are dropped. Groups are returned in order of first appearance.
func GroupSum(t *table.Table, key, value string) ([]domain.RankEntry, error) {
	keyCol, valCol, err := numericPair(t, key, value)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	sums := make([]float64, 0)
	var entries []domain.RankEntry

	for i := 0; i < t.Len(); i++ {
		k := keyCol.Value(i)
		if k.IsNull() {
			continue
		}
		pos, ok := index[k.Raw()]
		if !ok {
			pos = len(entries)
			index[k.Raw()] = pos
			entries = append(entries, domain.RankEntry{Label: k.Raw()})
			sums = append(sums, 0)
		}
		if f, ok := valCol.Value(i).Number(); ok {
			sums[pos] += f
		}
	}

	for i := range entries {
		sum := sums[i]
		entries[i].Value = &sum
	}
	return entries, nil
}

// TopGroups ranks the group sums of value by key in descending order and
// keeps the first n. Ties keep first-appearance order.
func TopGroups(t *table.Table, key, value string, n int) ([]domain.RankEntry, error) {
	entries, err := GroupSum(t, key, value)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(a, b int) bool {
		return *entries[a].Value > *entries[b].Value
	})
	return rank(entries, n), nil
}

// TopRows ranks rows by value in descending order with nulls last and keeps
// the first n. label names the column used as the entry label; it may be
// absent.
func TopRows(t *table.Table, label, value string, n int) ([]domain.RankEntry, error) {
	valCol, ok := t.Column(value)
	if !ok {
		return nil, fmt.Errorf("column %q not present", value)
	}
	if !valCol.Kind().IsNumeric() {
		return nil, fmt.Errorf("column %q is not numeric", value)
	}

	order, _ := t.Order(value, true)
	if n > 0 && len(order) > n {
		order = order[:n]
	}

	labelCol, hasLabel := t.Column(label)
	names := t.ColumnNames()
	entries := make([]domain.RankEntry, len(order))

	for i, idx := range order {
		row := make(map[string]any, len(names))
		for j, cell := range t.Row(idx) {
			row[names[j]] = cell
		}
		e := domain.RankEntry{Rank: i + 1, Row: row}
		if hasLabel {
			e.Label = labelCol.Value(idx).Raw()
		} else {
			e.Label = strconv.Itoa(idx)
		}
		if f, ok := valCol.Value(idx).Number(); ok {
			e.Value = &f
		}
		entries[i] = e
	}
	return entries, nil
}

func rank(entries []domain.RankEntry, n int) []domain.RankEntry {
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// RollingMean returns the trailing mean of every window of size w. Position
// i is defined only when i >= w-1 and all w cells are non-null; undefined
// positions are nil.
func RollingMean(values []table.Value, w int) []*float64 {
	out := make([]*float64, len(values))
	if w <= 0 {
		return out
	}

	var sum float64
	nulls := 0
	for i, v := range values {
		if f, ok := v.Number(); ok {
			sum += f
		} else {
			nulls++
		}
		if i >= w {
			if f, ok := values[i-w].Number(); ok {
				sum -= f
			} else {
				nulls--
			}
		}
		if i >= w-1 && nulls == 0 {
			mean := sum / float64(w)
			out[i] = &mean
		}
	}
	return out
}

// Rolling sorts t chronologically on date and computes the raw value series
// followed by one moving-average series per window.
func Rolling(t *table.Table, date, value string, windows []int) (*domain.Rolling, error) {
	if _, _, err := numericPair(t, date, value); err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		windows = DefaultWindows
	}

	sorted := t.SortedBy(date, false)
	dates, _ := sorted.Column(date)
	values, _ := sorted.Column(value)

	raw := domain.Series{Name: value, Points: make([]domain.Point, sorted.Len())}
	for i := 0; i < sorted.Len(); i++ {
		raw.Points[i] = domain.Point{X: dates.Value(i), Y: numberPtr(values.Value(i))}
	}

	out := &domain.Rolling{Date: date, Value: value, Windows: windows, Series: []domain.Series{raw}}
	for _, w := range windows {
		means := RollingMean(values.Values(), w)
		s := domain.Series{Name: fmt.Sprintf("MA%d", w), Points: make([]domain.Point, len(means))}
		for i, m := range means {
			s.Points[i] = domain.Point{X: dates.Value(i), Y: m}
		}
		out.Series = append(out.Series, s)
	}
	return out, nil
}

// TrendSeries sums y per distinct x and orders the points by x. Rows with a
// null x are dropped; an x whose y cells are all null has an undefined point.
func TrendSeries(t *table.Table, x, y string) (domain.Series, error) {
	xCol, yCol, err := numericPair(t, x, y)
	if err != nil {
		return domain.Series{}, err
	}

	type bucket struct {
		x   table.Value
		sum float64
		any bool
	}
	index := make(map[string]int)
	var buckets []bucket

	for i := 0; i < t.Len(); i++ {
		xv := xCol.Value(i)
		if xv.IsNull() {
			continue
		}
		pos, ok := index[xv.Raw()]
		if !ok {
			pos = len(buckets)
			index[xv.Raw()] = pos
			buckets = append(buckets, bucket{x: xv})
		}
		if f, ok := yCol.Value(i).Number(); ok {
			buckets[pos].sum += f
			buckets[pos].any = true
		}
	}

	sort.SliceStable(buckets, func(a, b int) bool {
		return table.Compare(buckets[a].x, buckets[b].x) < 0
	})

	s := domain.Series{Name: y, Points: make([]domain.Point, len(buckets))}
	for i, b := range buckets {
		p := domain.Point{X: b.x}
		if b.any {
			sum := b.sum
			p.Y = &sum
		}
		s.Points[i] = p
	}
	return s, nil
}

// numericPair looks up a key column and a numeric value column.
func numericPair(t *table.Table, key, value string) (*table.Column, *table.Column, error) {
	keyCol, ok := t.Column(key)
	if !ok {
		return nil, nil, fmt.Errorf("column %q not present", key)
	}
	valCol, ok := t.Column(value)
	if !ok {
		return nil, nil, fmt.Errorf("column %q not present", value)
	}
	if !valCol.Kind().IsNumeric() {
		return nil, nil, fmt.Errorf("column %q is not numeric", value)
	}
	return keyCol, valCol, nil
}

func numberPtr(v table.Value) *float64 {
	if f, ok := v.Number(); ok {
		return &f
	}
	return nil
}
