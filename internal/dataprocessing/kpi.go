package dataprocessing

import (
	"fmt"

	"csvpulse/internal/table"
	"csvpulse/pkg/contracts/domain"
)

// ComputeMetric reduces one column of t. The metric is not applicable when
// the column is absent or its kind does not support the statistic; min and
// max accept dates as well as numbers. Over zero values sum is 0 and the
// other statistics have no value.
func ComputeMetric(t *table.Table, spec MetricSpec) domain.Metric {
	m := domain.Metric{Name: spec.Name, Column: spec.Column, Stat: string(spec.Stat)}

	col, ok := t.Column(spec.Column)
	if !ok {
		m.Reason = reasonAbsent
		return m
	}

	switch spec.Stat {
	case StatMax, StatMin:
		if !col.Kind().IsOrdered() {
			m.Reason = fmt.Sprintf("%s column does not support %s", col.Kind(), spec.Stat)
			return m
		}
	case StatSum, StatMean:
		if !col.Kind().IsNumeric() {
			m.Reason = fmt.Sprintf("%s column does not support %s", col.Kind(), spec.Stat)
			return m
		}
	default:
		m.Reason = fmt.Sprintf("unknown statistic %q", spec.Stat)
		return m
	}
	m.Applicable = true

	present := col.Len() - col.Nulls()
	switch spec.Stat {
	case StatMax:
		if present > 0 {
			m.Value = col.Max()
		}
	case StatMin:
		if present > 0 {
			m.Value = col.Min()
		}
	case StatSum:
		m.Value = sum(col)
	case StatMean:
		if present > 0 {
			total, _ := sum(col).Number()
			m.Value = table.FloatValue(total / float64(present))
		}
	}
	return m
}

func sum(col *table.Column) table.Value {
	if col.Kind() == table.KindInt {
		var total int64
		for _, v := range col.Values() {
			if !v.IsNull() {
				total += v.Int()
			}
		}
		return table.IntValue(total)
	}
	var total float64
	for _, v := range col.Values() {
		if f, ok := v.Number(); ok {
			total += f
		}
	}
	return table.FloatValue(total)
}
