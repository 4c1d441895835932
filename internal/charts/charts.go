// Package charts renders dashboard sections as PNG images.
package charts

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"csvpulse/internal/table"
	"csvpulse/pkg/contracts/domain"
)

// ErrNotChartable is returned for sections without a plottable series.
var ErrNotChartable = errors.New("section cannot be charted")

// Size is the output image size in pixels
type Size struct {
	Width  int
	Height int
}

// DefaultSize is used when a dimension is zero.
var DefaultSize = Size{Width: 1024, Height: 512}

var palette = []drawing.Color{chart.ColorBlue, chart.ColorOrange, chart.ColorGreen, chart.ColorRed}

// Render writes a PNG of the section to w. Rankings become bar charts;
// trends and moving averages become line charts with undefined points left out.
func Render(w io.Writer, s domain.SectionResult, size Size) error {
	if !s.Applicable {
		return fmt.Errorf("%w: %s", ErrNotChartable, s.Reason)
	}
	if size.Width <= 0 {
		size.Width = DefaultSize.Width
	}
	if size.Height <= 0 {
		size.Height = DefaultSize.Height
	}

	switch data := s.Data.(type) {
	case *domain.Ranking:
		return renderBars(w, s.Title, data, size)
	case *domain.Trend:
		title := s.Title
		if data.Selected != "" {
			title = fmt.Sprintf("%s: %s", s.Title, data.Selected)
		}
		return renderLines(w, title, data.Y, data.Series, size)
	case *domain.Rolling:
		return renderLines(w, s.Title, data.Value, data.Series, size)
	}
	return fmt.Errorf("%w: %s sections have no chart", ErrNotChartable, s.Kind)
}

func renderBars(w io.Writer, title string, r *domain.Ranking, size Size) error {
	if len(r.Entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrNotChartable)
	}

	bars := make([]chart.Value, len(r.Entries))
	lo, hi := 0.0, 0.0
	for i, e := range r.Entries {
		v := 0.0
		if e.Value != nil {
			v = *e.Value
		}
		bars[i] = chart.Value{Value: v, Label: e.Label}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if hi <= lo {
		hi = lo + 1
	}

	bc := chart.BarChart{
		Title:      title,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 28}},
		Width:      max(size.Width, len(bars)*60+80),
		Height:     size.Height,
		BarWidth:   40,
		BarSpacing: 16,
		YAxis:      chart.YAxis{Name: r.Value, Range: &chart.ContinuousRange{Min: lo, Max: hi}},
		Bars:       bars,
	}
	return bc.Render(chart.PNG, w)
}

func renderLines(w io.Writer, title, yName string, series []domain.Series, size Size) error {
	var (
		out    []chart.Series
		timeX  bool
		lo, hi = math.Inf(1), math.Inf(-1)
	)

	for i, s := range series {
		style := chart.Style{StrokeColor: palette[i%len(palette)], StrokeWidth: 2}
		var (
			times []time.Time
			xs    []float64
			ys    []float64
		)
		for _, p := range s.Points {
			if p.Y == nil {
				continue
			}
			x, ok := p.X.(table.Value)
			if !ok || x.IsNull() {
				continue
			}
			switch {
			case x.Kind() == table.KindDate:
				times = append(times, x.Time())
				timeX = true
			case x.Kind().IsNumeric():
				xs = append(xs, x.Float())
			default:
				return fmt.Errorf("%w: %s axis is not numeric or date", ErrNotChartable, x.Kind())
			}
			ys = append(ys, *p.Y)
			lo, hi = math.Min(lo, *p.Y), math.Max(hi, *p.Y)
		}

		// go-chart needs at least two x values per series
		switch {
		case len(times) == 1:
			times = append(times, times[0].Add(24*time.Hour))
			ys = append(ys, ys[0])
		case len(xs) == 1:
			xs = append(xs, xs[0]+1)
			ys = append(ys, ys[0])
		}

		switch {
		case len(times) > 0:
			out = append(out, chart.TimeSeries{Name: s.Name, XValues: times, YValues: ys, Style: style})
		case len(xs) > 0:
			out = append(out, chart.ContinuousSeries{Name: s.Name, XValues: xs, YValues: ys, Style: style})
		}
	}

	if len(out) == 0 {
		return fmt.Errorf("%w: no defined points", ErrNotChartable)
	}
	if hi <= lo {
		hi = lo + 1
	}

	xAxis := chart.XAxis{}
	if timeX {
		xAxis.ValueFormatter = chart.TimeDateValueFormatter
	}

	ch := chart.Chart{
		Title:      title,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 28}},
		Width:      size.Width,
		Height:     size.Height,
		XAxis:      xAxis,
		YAxis:      chart.YAxis{Name: yName, Range: &chart.ContinuousRange{Min: lo, Max: hi}},
		Series:     out,
	}
	if len(out) > 1 {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return ch.Render(chart.PNG, w)
}
