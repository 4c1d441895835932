package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"csvpulse/internal/table"
	"csvpulse/pkg/contracts/domain"
)

// missingSeries names the trend series of rows whose split value is missing
const missingSeries = "(missing)"

// Config tunes the pipeline defaults
type Config struct {
	DefaultTopN   int // entries per ranking when criteria give none
	PageLimit     int // raw rows per page when criteria give none
	MaxPageLimit  int
	MaxCategories int // distinct values above which a string column is not offered as a category filter
	MaxOptions    int // single-select options returned per trend
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTopN:   10,
		PageLimit:     100,
		MaxPageLimit:  1000,
		MaxCategories: 50,
		MaxOptions:    500,
	}
}

// Pipeline evaluates criteria against a loaded table under a profile.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// Result holds a computed view and the narrowed table it was computed from.
type Result struct {
	View     *domain.View
	Narrowed *table.Table
}

// NewPipeline creates a pipeline. Zero config fields take their defaults.
func NewPipeline(cfg Config, logger *slog.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.DefaultTopN <= 0 {
		cfg.DefaultTopN = def.DefaultTopN
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = def.PageLimit
	}
	if cfg.MaxPageLimit <= 0 {
		cfg.MaxPageLimit = def.MaxPageLimit
	}
	if cfg.MaxCategories <= 0 {
		cfg.MaxCategories = def.MaxCategories
	}
	if cfg.MaxOptions <= 0 {
		cfg.MaxOptions = def.MaxOptions
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, logger: logger.With(slog.String("component", "pipeline"))}
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Resolve picks the profile for t by name, or by detection when name is empty.
func (p *Pipeline) Resolve(t *table.Table, name string) (Profile, error) {
	return ResolveProfile(t, name, p.cfg.MaxCategories)
}

// Prepare applies the profile's load-time ordering to a freshly loaded table.
func (p *Pipeline) Prepare(t *table.Table, prof Profile) *table.Table {
	if prof.OrderBy == "" {
		return t
	}
	return t.SortedBy(prof.OrderBy, false)
}

// Describe summarises t for building filter controls.
func (p *Pipeline) Describe(t *table.Table, prof Profile) domain.Description {
	d := domain.Description{
		Profile:      prof.Name,
		Rows:         t.Len(),
		DownloadName: prof.DownloadName,
	}

	for _, c := range t.Columns() {
		info := domain.ColumnInfo{Name: c.Name(), Kind: c.Kind().String(), Nulls: c.Nulls()}
		if c.Kind().IsOrdered() && !c.Min().IsNull() {
			info.Min, info.Max = c.Min(), c.Max()
		}
		if c.Kind() == table.KindString {
			if distinct := c.Distinct(); len(distinct) <= p.cfg.MaxCategories {
				info.Distinct = distinct
			}
		}
		d.Columns = append(d.Columns, info)
	}

	for _, name := range prof.Ranges {
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		d.Controls = append(d.Controls, domain.FilterControl{Type: "range", Column: name, Min: c.Min(), Max: c.Max()})
	}
	for _, name := range prof.Categories {
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		d.Controls = append(d.Controls, domain.FilterControl{Type: "category", Column: name, Options: c.Distinct()})
	}

	for _, s := range prof.Sections {
		ok, reason := applicable(t, s)
		d.Sections = append(d.Sections, domain.SectionInfo{
			Name: s.Name, Title: s.Title, Kind: s.Kind, Applicable: ok, Reason: reason,
		})
	}
	return d
}

// Evaluate narrows t by c and computes every section of prof over the
// narrowed rows.
func (p *Pipeline) Evaluate(ctx context.Context, t *table.Table, prof Profile, c domain.Criteria) (*Result, error) {
	narrowed, ranges, categories, err := Narrow(t, c)
	if err != nil {
		return nil, err
	}

	view := &domain.View{
		Profile:      prof.Name,
		TotalRows:    t.Len(),
		NarrowedRows: narrowed.Len(),
		Ranges:       ranges,
		Categories:   categories,
		Sections:     make([]domain.SectionResult, 0, len(prof.Sections)),
		DownloadName: prof.DownloadName,
	}

	for _, s := range prof.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		view.Sections = append(view.Sections, p.section(narrowed, s, c))
	}
	view.Rows = p.page(narrowed, c.Page)

	p.logger.DebugContext(ctx, "view evaluated",
		slog.String("profile", prof.Name),
		slog.Int("total_rows", t.Len()),
		slog.Int("narrowed_rows", narrowed.Len()))

	return &Result{View: view, Narrowed: narrowed}, nil
}

func (p *Pipeline) section(t *table.Table, s Section, c domain.Criteria) domain.SectionResult {
	res := domain.SectionResult{Name: s.Name, Title: s.Title, Kind: s.Kind}
	if ok, reason := applicable(t, s); !ok {
		res.Reason = reason
		return res
	}

	n := c.TopN
	if n <= 0 {
		n = p.cfg.DefaultTopN
	}

	var (
		data any
		err  error
	)
	switch s.Kind {
	case domain.SectionRanking:
		var entries []domain.RankEntry
		entries, err = TopGroups(t, s.Key, s.Value, n)
		data = &domain.Ranking{Key: s.Key, Value: s.Value, N: n, Entries: entries}
	case domain.SectionLeaderboard:
		var entries []domain.RankEntry
		entries, err = TopRows(t, s.Key, s.Value, n)
		data = &domain.Ranking{Key: s.Key, Value: s.Value, N: n, Entries: entries}
	case domain.SectionRolling:
		data, err = Rolling(t, s.X, s.Value, s.Windows)
	case domain.SectionTrend:
		data, err = p.trend(t, s, c)
	case domain.SectionKPI:
		kpis := &domain.KPIs{Metrics: make([]domain.Metric, 0, len(s.Metrics))}
		for _, spec := range s.Metrics {
			kpis.Metrics = append(kpis.Metrics, ComputeMetric(t, spec))
		}
		data = kpis
	default:
		err = fmt.Errorf("unknown section kind %q", s.Kind)
	}

	if err != nil {
		res.Reason = err.Error()
		return res
	}
	res.Applicable = true
	res.Data = data
	return res
}

func (p *Pipeline) trend(t *table.Table, s Section, c domain.Criteria) (*domain.Trend, error) {
	tr := &domain.Trend{X: s.X, Y: s.Value, Key: s.Key}
	if s.Key == "" {
		return tr, splitTrend(tr, t, s)
	}

	keyCol, _ := t.Column(s.Key)
	options := keyCol.Distinct()
	if len(options) > p.cfg.MaxOptions {
		options = options[:p.cfg.MaxOptions]
	}
	tr.Options = options

	selected, ok := c.Selection(s.Name)
	if !ok || !slices.Contains(keyCol.Distinct(), selected) {
		if ok {
			p.logger.Debug("selection not in narrowed rows, using first option",
				slog.String("section", s.Name), slog.String("selection", selected))
		}
		selected = ""
		if len(options) > 0 {
			selected = options[0]
		}
	}
	tr.Selected = selected

	return tr, splitTrend(tr, t.Select(matching(keyCol, selected)), s)
}

// splitTrend fills tr.Series from t: one series per distinct value of the
// split column in first-appearance order, or a single series when the
// section has no split column or t lacks it. Rows with a missing split
// value form a final series named missingSeries.
func splitTrend(tr *domain.Trend, t *table.Table, s Section) error {
	splitCol, ok := t.Column(s.Split)
	if s.Split == "" || !ok || len(splitCol.Distinct()) == 0 {
		series, err := TrendSeries(t, s.X, s.Value)
		tr.Series = []domain.Series{series}
		return err
	}
	tr.Split = s.Split

	groups := splitCol.Distinct()
	tr.Series = make([]domain.Series, 0, len(groups)+1)
	for _, g := range groups {
		series, err := TrendSeries(t.Select(matching(splitCol, g)), s.X, s.Value)
		if err != nil {
			return err
		}
		series.Name = g
		tr.Series = append(tr.Series, series)
	}

	var missing []int
	for i, v := range splitCol.Values() {
		if v.IsNull() {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		series, err := TrendSeries(t.Select(missing), s.X, s.Value)
		if err != nil {
			return err
		}
		series.Name = missingSeries
		tr.Series = append(tr.Series, series)
	}
	return nil
}

// matching returns the indices of the non-null cells of col whose raw text is raw.
func matching(col *table.Column, raw string) []int {
	var indices []int
	for i, v := range col.Values() {
		if !v.IsNull() && v.Raw() == raw {
			indices = append(indices, i)
		}
	}
	return indices
}

func (p *Pipeline) page(t *table.Table, pg domain.Page) domain.RowPage {
	limit := pg.Limit
	if limit <= 0 {
		limit = p.cfg.PageLimit
	}
	limit = min(limit, p.cfg.MaxPageLimit)
	offset := max(pg.Offset, 0)

	window := t.Slice(offset, offset+limit)
	rows := make([][]any, window.Len())
	for i := range rows {
		cells := window.Row(i)
		row := make([]any, len(cells))
		for j, v := range cells {
			row[j] = v
		}
		rows[i] = row
	}
	return domain.RowPage{
		Columns: t.ColumnNames(),
		Offset:  offset,
		Limit:   limit,
		Total:   t.Len(),
		Rows:    rows,
	}
}

// applicable checks the section's required columns and their kinds.
func applicable(t *table.Table, s Section) (bool, string) {
	if missing := t.Missing(s.Required()...); len(missing) > 0 {
		return false, "missing column(s): " + strings.Join(missing, ", ")
	}
	if s.Kind == domain.SectionKPI || s.Value == "" {
		return true, ""
	}
	if c, _ := t.Column(s.Value); !c.Kind().IsNumeric() {
		return false, fmt.Sprintf("column %q is not numeric", s.Value)
	}
	return true, ""
}
