package dataprocessing

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "csvpulse/internal/errors"
	"csvpulse/internal/shared/testutil"
	"csvpulse/internal/table"
	"csvpulse/pkg/contracts/domain"
)

func loadCSV(t *testing.T, input string) *table.Table {
	t.Helper()
	tbl, err := LoadCSV(strings.NewReader(input))
	require.NoError(t, err)
	return tbl
}

func newTestPipeline() *Pipeline {
	return NewPipeline(Config{}, nil)
}

func evaluate(t *testing.T, tbl *table.Table, profile string, c domain.Criteria) *Result {
	t.Helper()
	p := newTestPipeline()
	prof, err := p.Resolve(tbl, profile)
	require.NoError(t, err)
	res, err := p.Evaluate(context.Background(), p.Prepare(tbl, prof), prof, c)
	require.NoError(t, err)
	return res
}

func section(t *testing.T, v *domain.View, name string) domain.SectionResult {
	t.Helper()
	s, ok := v.Section(name)
	require.True(t, ok, "section %s", name)
	return s
}

func TestDetectProfile(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"baby names", testutil.BabyNamesCSV, "baby_names"},
		{"streamers", testutil.StreamersCSV, "streamers"},
		{"stock", testutil.StockCSV(3), "stock"},
		{"anything else", "city,population\nOslo,700000\n", ProfileGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prof := DetectProfile(loadCSV(t, tt.input), 50)
			assert.Equal(t, tt.want, prof.Name)
		})
	}
}

func TestResolveProfile_Unknown(t *testing.T) {
	_, err := ResolveProfile(loadCSV(t, testutil.BabyNamesCSV), "weather", 50)
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestGenericProfile(t *testing.T) {
	tbl := loadCSV(t, "city,population,founded,id\nOslo,700000,1048-01-01,a1\nBergen,285000,1070-01-01,a2\n")
	prof := GenericProfile(tbl, 1)

	assert.Equal(t, []string{"population", "founded"}, prof.Ranges)
	assert.Empty(t, prof.Categories, "two distinct values exceed the cardinality cap of 1")
	require.Len(t, prof.Sections, 1)
	assert.Len(t, prof.Sections[0].Metrics, 4)

	prof = GenericProfile(tbl, 50)
	assert.Equal(t, []string{"city", "id"}, prof.Categories)
}

func TestNarrow_Range(t *testing.T) {
	tbl := loadCSV(t, testutil.BabyNamesCSV)

	tests := []struct {
		name     string
		filter   domain.RangeFilter
		wantRows int
		wantMin  string
		wantMax  string
	}{
		{"single year", domain.RangeFilter{Column: "year", Min: "1910", Max: "1910"}, 2, "1910", "1910"},
		{"omitted bounds use observed extremes", domain.RangeFilter{Column: "year"}, 5, "1910", "1912"},
		{"bounds are clamped", domain.RangeFilter{Column: "year", Min: "1800", Max: "2000"}, 5, "1910", "1912"},
		{"inverted bounds", domain.RangeFilter{Column: "year", Min: "1912", Max: "1910"}, 0, "1912", "1910"},
		{"above observed max", domain.RangeFilter{Column: "year", Min: "1950"}, 0, "1950", "1912"},
		{"blank bounds are omitted", domain.RangeFilter{Column: "year", Min: "  ", Max: " "}, 5, "1910", "1912"},
		{"bounds are trimmed", domain.RangeFilter{Column: "year", Min: " 1911 ", Max: "1912\t"}, 3, "1911", "1912"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			narrowed, ranges, _, err := Narrow(tbl, domain.Criteria{Ranges: []domain.RangeFilter{tt.filter}})
			require.NoError(t, err)
			assert.Equal(t, tt.wantRows, narrowed.Len())

			require.Len(t, ranges, 1)
			assert.Equal(t, tt.wantMin, ranges[0].Min.(table.Value).Raw())
			assert.Equal(t, tt.wantMax, ranges[0].Max.(table.Value).Raw())

			// soundness: every kept row lies within the applied bounds
			col, _ := narrowed.Column("year")
			for _, v := range col.Values() {
				assert.GreaterOrEqual(t, table.Compare(v, ranges[0].Min.(table.Value)), 0)
				assert.LessOrEqual(t, table.Compare(v, ranges[0].Max.(table.Value)), 0)
			}
		})
	}
}

func TestNarrow_RangeCompleteness(t *testing.T) {
	tbl := loadCSV(t, testutil.BabyNamesCSV)
	narrowed, _, _, err := Narrow(tbl, domain.Criteria{Ranges: []domain.RangeFilter{{Column: "year", Min: "1911", Max: "1912"}}})
	require.NoError(t, err)

	year, _ := tbl.Column("year")
	want := 0
	for _, v := range year.Values() {
		if v.Int() >= 1911 && v.Int() <= 1912 {
			want++
		}
	}
	assert.Equal(t, want, narrowed.Len())
}

func TestNarrow_RangeNullsExcluded(t *testing.T) {
	tbl := loadCSV(t, testutil.StreamersCSV)
	narrowed, _, _, err := Narrow(tbl, domain.Criteria{Ranges: []domain.RangeFilter{{Column: "followers"}}})
	require.NoError(t, err)
	assert.Equal(t, 4, narrowed.Len(), "delta has no followers value")
}

func TestNarrow_RangeOnDates(t *testing.T) {
	tbl := loadCSV(t, testutil.StockCSV(10))
	narrowed, _, _, err := Narrow(tbl, domain.Criteria{Ranges: []domain.RangeFilter{{Column: "Date", Min: "2024-01-03", Max: "2024-01-05"}}})
	require.NoError(t, err)
	assert.Equal(t, 3, narrowed.Len())
}

func TestNarrow_InvalidBound(t *testing.T) {
	tbl := loadCSV(t, testutil.BabyNamesCSV)

	tests := []struct {
		name   string
		filter domain.RangeFilter
	}{
		{"unparseable min", domain.RangeFilter{Column: "year", Min: "last year"}},
		{"NA max", domain.RangeFilter{Column: "year", Max: "NA"}},
		{"null max", domain.RangeFilter{Column: "year", Max: "null"}},
		{"NaN min", domain.RangeFilter{Column: "year", Min: "NaN"}},
		{"padded N/A max", domain.RangeFilter{Column: "year", Min: "1910", Max: " N/A "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := Narrow(tbl, domain.Criteria{Ranges: []domain.RangeFilter{tt.filter}})
			require.Error(t, err)
			assert.True(t, apierrors.IsType(err, apierrors.ErrTypeValidation))
		})
	}
}

func TestNarrow_AbsentColumnSkipped(t *testing.T) {
	tbl := loadCSV(t, testutil.BabyNamesCSV)
	narrowed, ranges, categories, err := Narrow(tbl, domain.Criteria{
		Ranges:     []domain.RangeFilter{{Column: "decade", Min: "1900"}},
		Categories: []domain.CategoryFilter{{Column: "state", Values: []string{"CA"}}},
	})
	require.NoError(t, err)
	assert.Same(t, tbl, narrowed)
	assert.True(t, ranges[0].Skipped)
	assert.True(t, categories[0].Skipped)
}

func TestNarrow_Category(t *testing.T) {
	tbl := loadCSV(t, testutil.BabyNamesCSV)

	t.Run("subset", func(t *testing.T) {
		narrowed, _, _, err := Narrow(tbl, domain.Criteria{Categories: []domain.CategoryFilter{{Column: "gender", Values: []string{"M"}}}})
		require.NoError(t, err)
		assert.Equal(t, 2, narrowed.Len())
		gender, _ := narrowed.Column("gender")
		assert.Equal(t, []string{"M"}, gender.Distinct())
	})

	t.Run("full observed set is a no-op", func(t *testing.T) {
		gender, _ := tbl.Column("gender")
		narrowed, _, _, err := Narrow(tbl, domain.Criteria{Categories: []domain.CategoryFilter{{Column: "gender", Values: gender.Distinct()}}})
		require.NoError(t, err)
		assert.Equal(t, tbl.Records(), narrowed.Records())
	})

	t.Run("nil values accept all", func(t *testing.T) {
		narrowed, _, categories, err := Narrow(tbl, domain.Criteria{Categories: []domain.CategoryFilter{{Column: "gender"}}})
		require.NoError(t, err)
		assert.Equal(t, tbl.Len(), narrowed.Len())
		assert.True(t, categories[0].All)
		assert.Equal(t, []string{"F", "M"}, categories[0].Values)
	})

	t.Run("empty values accept none", func(t *testing.T) {
		narrowed, _, _, err := Narrow(tbl, domain.Criteria{Categories: []domain.CategoryFilter{{Column: "gender", Values: []string{}}}})
		require.NoError(t, err)
		assert.Equal(t, 0, narrowed.Len())
	})
}

func TestNarrow_Conjunction(t *testing.T) {
	tbl := loadCSV(t, testutil.BabyNamesCSV)
	narrowed, _, _, err := Narrow(tbl, domain.Criteria{
		Ranges:     []domain.RangeFilter{{Column: "year", Min: "1911"}},
		Categories: []domain.CategoryFilter{{Column: "gender", Values: []string{"F"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1911", "Mary", "F", "80"}, {"1912", "Anna", "F", "70"}}, narrowed.Records())
}

func TestTopGroups(t *testing.T) {
	tbl := loadCSV(t, "k,v\nb,1\na,3\nb,2\nc,\n,9\nd,3\n")

	entries, err := TopGroups(tbl, "k", "v", 10)
	require.NoError(t, err)

	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.Label
		assert.Equal(t, i+1, e.Rank)
	}
	// a, b and d tie at 3 and keep first-appearance order; the null key is dropped
	assert.Equal(t, []string{"b", "a", "d", "c"}, labels)
	assert.Equal(t, 0.0, *entries[3].Value)

	entries, err = TopGroups(tbl, "k", "v", 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = TopGroups(tbl, "k", "missing", 2)
	assert.Error(t, err)
}

func TestTopGroups_Dominance(t *testing.T) {
	tbl := loadCSV(t, testutil.BabyNamesCSV)
	all, err := GroupSum(tbl, "name", "count")
	require.NoError(t, err)
	top, err := TopGroups(tbl, "name", "count", 2)
	require.NoError(t, err)

	inTop := make(map[string]bool)
	for _, e := range top {
		inTop[e.Label] = true
	}
	for _, e := range all {
		if inTop[e.Label] {
			continue
		}
		for _, kept := range top {
			assert.GreaterOrEqual(t, *kept.Value, *e.Value)
		}
	}
}

func TestTopRows(t *testing.T) {
	tbl := loadCSV(t, testutil.StreamersCSV)

	entries, err := TopRows(tbl, "user_name", "followers", 10)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	assert.Equal(t, "bravo", entries[0].Label)
	assert.Equal(t, "echo", entries[1].Label, "ties keep input order")
	assert.Equal(t, "delta", entries[4].Label, "nulls sort last")
	assert.Nil(t, entries[4].Value)
	assert.Equal(t, "Fortnite", entries[0].Row["game_name"].(table.Value).Raw())
}

func TestRollingMean(t *testing.T) {
	values := make([]table.Value, 10)
	for i := range values {
		values[i] = table.IntValue(int64(10 + 2*i))
	}
	values[8] = table.Null(table.KindInt, "")

	means := RollingMean(values, 3)
	assert.Nil(t, means[0])
	assert.Nil(t, means[1])
	require.NotNil(t, means[2])
	assert.InDelta(t, 12.0, *means[2], 1e-9)
	assert.InDelta(t, 22.0, *means[7], 1e-9)
	assert.Nil(t, means[8], "window contains a null")
	assert.Nil(t, means[9], "window contains a null")

	assert.Len(t, RollingMean(values, 30), 10)
	for _, m := range RollingMean(values, 30) {
		assert.Nil(t, m)
	}
}

func TestBabyNamesScenario(t *testing.T) {
	tbl := loadCSV(t, testutil.BabyNamesCSV)
	res := evaluate(t, tbl, "", domain.Criteria{
		Ranges: []domain.RangeFilter{{Column: "year", Min: "1910", Max: "1910"}},
	})

	assert.Equal(t, "baby_names", res.View.Profile)
	assert.Equal(t, 2, res.View.NarrowedRows)
	assert.Equal(t, [][]string{{"1910", "Mary", "F", "100"}, {"1910", "John", "M", "90"}}, res.Narrowed.Records())

	top := section(t, res.View, "top_names")
	require.True(t, top.Applicable)
	ranking := top.Data.(*domain.Ranking)
	require.Len(t, ranking.Entries, 2)
	assert.Equal(t, "Mary", ranking.Entries[0].Label)
	assert.Equal(t, 100.0, *ranking.Entries[0].Value)

	trend := section(t, res.View, "name_trend").Data.(*domain.Trend)
	assert.Equal(t, "Mary", trend.Selected)
	assert.Equal(t, []string{"Mary", "John"}, trend.Options)

	kpis := section(t, res.View, "kpis").Data.(*domain.KPIs)
	assert.Equal(t, int64(190), kpis.Metrics[0].Value.(table.Value).Int())
	assert.Equal(t, int64(100), kpis.Metrics[1].Value.(table.Value).Int())

	assert.Equal(t, "filtered_baby_names.csv", res.View.DownloadName)
}

func TestBabyNamesTrendSelection(t *testing.T) {
	tbl := loadCSV(t, testutil.BabyNamesCSV)

	res := evaluate(t, tbl, "", domain.Criteria{Selections: map[string]string{"name_trend": "John"}})
	trend := section(t, res.View, "name_trend").Data.(*domain.Trend)
	assert.Equal(t, "John", trend.Selected)
	assert.Equal(t, "gender", trend.Split)
	require.Len(t, trend.Series, 1)
	assert.Equal(t, "M", trend.Series[0].Name)
	require.Len(t, trend.Series[0].Points, 2)
	assert.Equal(t, 90.0, *trend.Series[0].Points[0].Y)
	assert.Equal(t, 95.0, *trend.Series[0].Points[1].Y)

	// a selection outside the narrowed rows falls back to the first option
	res = evaluate(t, tbl, "", domain.Criteria{
		Selections: map[string]string{"name_trend": "Anna"},
		Ranges:     []domain.RangeFilter{{Column: "year", Max: "1911"}},
	})
	trend = section(t, res.View, "name_trend").Data.(*domain.Trend)
	assert.Equal(t, "Mary", trend.Selected)
}

func TestBabyNamesTrendSplitByGender(t *testing.T) {
	tbl := loadCSV(t, `year,name,gender,count
1910,Mary,F,100
1910,Mary,M,5
1911,Mary,F,80
1912,Mary,NA,3
1912,John,M,90
`)

	tests := []struct {
		name      string
		criteria  domain.Criteria
		wantNames []string
		wantY     [][]float64
	}{
		{
			name:      "genders are separate series",
			criteria:  domain.Criteria{},
			wantNames: []string{"F", "M", "(missing)"},
			wantY:     [][]float64{{100, 80}, {5}, {3}},
		},
		{
			name:      "gender filter leaves one series",
			criteria:  domain.Criteria{Categories: []domain.CategoryFilter{{Column: "gender", Values: []string{"F"}}}},
			wantNames: []string{"F"},
			wantY:     [][]float64{{100, 80}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evaluate(t, tbl, "", tt.criteria)
			trend := section(t, res.View, "name_trend").Data.(*domain.Trend)
			assert.Equal(t, "Mary", trend.Selected)

			var names []string
			var ys [][]float64
			for _, series := range trend.Series {
				names = append(names, series.Name)
				var y []float64
				for _, p := range series.Points {
					require.NotNil(t, p.Y)
					y = append(y, *p.Y)
				}
				ys = append(ys, y)
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, tt.wantY, ys)
		})
	}
}

func TestTrendWithoutSplitColumn(t *testing.T) {
	tbl := loadCSV(t, testutil.StockCSV(5))
	res := evaluate(t, tbl, "", domain.Criteria{})

	trend := section(t, res.View, "price_trend").Data.(*domain.Trend)
	assert.Empty(t, trend.Split)
	require.Len(t, trend.Series, 1)
	assert.Equal(t, "Close", trend.Series[0].Name)
	assert.Len(t, trend.Series[0].Points, 5)
}

func TestStockScenario(t *testing.T) {
	tbl := loadCSV(t, testutil.StockCSV(10))
	res := evaluate(t, tbl, "", domain.Criteria{})
	assert.Equal(t, "stock", res.View.Profile)

	ma := section(t, res.View, "moving_averages")
	require.True(t, ma.Applicable)
	rolling := ma.Data.(*domain.Rolling)
	require.Len(t, rolling.Series, 3)

	closes := rolling.Series[0].Points
	assert.Equal(t, 10.0, *closes[0].Y, "rows are in chronological order")

	ma7 := rolling.Series[1]
	assert.Equal(t, "MA7", ma7.Name)
	for i := 0; i <= 5; i++ {
		assert.Nil(t, ma7.Points[i].Y, "MA7 undefined at %d", i)
	}
	assert.InDelta(t, 16.0, *ma7.Points[6].Y, 1e-9)
	assert.InDelta(t, 18.0, *ma7.Points[7].Y, 1e-9)

	for _, p := range rolling.Series[2].Points {
		assert.Nil(t, p.Y, "fewer than 30 rows")
	}

	kpis := section(t, res.View, "kpis").Data.(*domain.KPIs)
	byName := map[string]domain.Metric{}
	for _, m := range kpis.Metrics {
		byName[m.Name] = m
	}
	assert.Equal(t, int64(29), byName["max_high"].Value.(table.Value).Int())
	assert.Equal(t, int64(8), byName["min_low"].Value.(table.Value).Int())
	assert.InDelta(t, 19.0, byName["mean_close"].Value.(table.Value).Float(), 1e-9)
	assert.Equal(t, int64(5500), byName["total_volume"].Value.(table.Value).Int())
}

func TestStreamersScenario(t *testing.T) {
	tbl := loadCSV(t, testutil.StreamersCSV)
	res := evaluate(t, tbl, "", domain.Criteria{})

	followers := section(t, res.View, "top_followers").Data.(*domain.Ranking)
	col, _ := tbl.Column("followers")
	assert.Equal(t, col.Max().Float(), *followers.Entries[0].Value)

	games := section(t, res.View, "top_games").Data.(*domain.Ranking)
	assert.Equal(t, "Fortnite", games.Entries[0].Label)
	assert.Equal(t, 3000.0, *games.Entries[0].Value)

	res = evaluate(t, tbl, "", domain.Criteria{
		Categories: []domain.CategoryFilter{{Column: "country", Values: []string{"US"}}},
	})
	assert.Equal(t, 3, res.View.NarrowedRows)

	kpis := section(t, res.View, "kpis").Data.(*domain.KPIs)
	assert.Equal(t, int64(1500), kpis.Metrics[0].Value.(table.Value).Int())
	assert.InDelta(t, 145.0/3, kpis.Metrics[1].Value.(table.Value).Float(), 1e-9)
}

func TestMissingColumnSection(t *testing.T) {
	tbl := loadCSV(t, "year,name\n1910,Mary\n")
	res := evaluate(t, tbl, "baby_names", domain.Criteria{})

	top := section(t, res.View, "top_names")
	assert.False(t, top.Applicable)
	assert.Contains(t, top.Reason, "count")

	kpis := section(t, res.View, "kpis").Data.(*domain.KPIs)
	for _, m := range kpis.Metrics {
		assert.False(t, m.Applicable)
	}
}

func TestEmptyResultFlowsThrough(t *testing.T) {
	tbl := loadCSV(t, testutil.BabyNamesCSV)
	res := evaluate(t, tbl, "", domain.Criteria{
		Categories: []domain.CategoryFilter{{Column: "gender", Values: []string{}}},
	})

	assert.Equal(t, 0, res.View.NarrowedRows)
	top := section(t, res.View, "top_names")
	assert.True(t, top.Applicable)
	assert.Empty(t, top.Data.(*domain.Ranking).Entries)

	kpis := section(t, res.View, "kpis").Data.(*domain.KPIs)
	assert.Equal(t, int64(0), kpis.Metrics[0].Value.(table.Value).Int())
	assert.Nil(t, kpis.Metrics[1].Value)
	assert.Empty(t, res.View.Rows.Rows)
}

func TestPaging(t *testing.T) {
	tbl := loadCSV(t, testutil.StockCSV(10))
	p := NewPipeline(Config{PageLimit: 4, MaxPageLimit: 5}, nil)
	prof, err := p.Resolve(tbl, "")
	require.NoError(t, err)

	res, err := p.Evaluate(context.Background(), tbl, prof, domain.Criteria{})
	require.NoError(t, err)
	assert.Len(t, res.View.Rows.Rows, 4)
	assert.Equal(t, 10, res.View.Rows.Total)

	res, err = p.Evaluate(context.Background(), tbl, prof, domain.Criteria{Page: domain.Page{Offset: 8, Limit: 50}})
	require.NoError(t, err)
	assert.Len(t, res.View.Rows.Rows, 2)
	assert.Equal(t, 5, res.View.Rows.Limit)
}

func TestEvaluate_CancelledContext(t *testing.T) {
	tbl := loadCSV(t, testutil.BabyNamesCSV)
	p := newTestPipeline()
	prof, _ := p.Resolve(tbl, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Evaluate(ctx, tbl, prof, domain.Criteria{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDescribe(t *testing.T) {
	tbl := loadCSV(t, testutil.BabyNamesCSV)
	p := newTestPipeline()
	prof, _ := p.Resolve(tbl, "")
	d := p.Describe(tbl, prof)

	assert.Equal(t, "baby_names", d.Profile)
	assert.Equal(t, 5, d.Rows)
	require.Len(t, d.Controls, 2)
	assert.Equal(t, "range", d.Controls[0].Type)
	assert.Equal(t, "1910", d.Controls[0].Min.(table.Value).Raw())
	assert.Equal(t, "1912", d.Controls[0].Max.(table.Value).Raw())
	assert.Equal(t, []string{"F", "M"}, d.Controls[1].Options)
	assert.Len(t, d.Sections, 3)
	for _, s := range d.Sections {
		assert.True(t, s.Applicable, s.Name)
	}
}
