package dataprocessing

import (
	"errors"
	"fmt"
	"strings"

	"csvpulse/internal/table"
	"csvpulse/pkg/contracts/domain"
)

// ProfileGeneric is the fallback profile derived from the table itself.
const ProfileGeneric = "generic"

// ErrUnknownProfile is returned when a profile is requested by a name that is not registered.
var ErrUnknownProfile = errors.New("unknown profile")

// Stat is a scalar reduction over a column
type Stat string

const (
	StatMax  Stat = "max"
	StatMin  Stat = "min"
	StatMean Stat = "mean"
	StatSum  Stat = "sum"
)

// MetricSpec names one KPI of a kpi section
type MetricSpec struct {
	Name   string
	Column string
	Stat   Stat
}

// Section declares one dashboard widget and the columns it reads.
//
// Key is the group column of a ranking, the label column of a leaderboard
// and the single-select column of a trend. X is the date column of a rolling
// section and the horizontal axis of a trend. Split optionally breaks a
// trend into one series per value of a category column; a table without
// that column gets a single series.
type Section struct {
	Name    string
	Title   string
	Kind    domain.SectionKind
	Key     string
	Value   string
	X       string
	Split   string
	Windows []int
	Metrics []MetricSpec
}

// Required returns the columns that must be present for the section to run.
func (s Section) Required() []string {
	switch s.Kind {
	case domain.SectionRanking:
		return []string{s.Key, s.Value}
	case domain.SectionLeaderboard:
		return []string{s.Value}
	case domain.SectionRolling:
		return []string{s.X, s.Value}
	case domain.SectionTrend:
		if s.Key != "" {
			return []string{s.Key, s.X, s.Value}
		}
		return []string{s.X, s.Value}
	}
	return nil
}

// Profile describes one dashboard variant: which filters it offers and
// which sections it renders.
type Profile struct {
	Name         string
	Detect       []string
	Ranges       []string
	Categories   []string
	Sections     []Section
	OrderBy      string
	DownloadName string
}

// Section looks up a section by name.
func (p Profile) Section(name string) (Section, bool) {
	for _, s := range p.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

var builtinProfiles = []Profile{
	{
		Name:       "baby_names",
		Detect:     []string{"year", "name"},
		Ranges:     []string{"year"},
		Categories: []string{"gender"},
		Sections: []Section{
			{Name: "top_names", Title: "Top 10 Names", Kind: domain.SectionRanking, Key: "name", Value: "count"},
			{Name: "name_trend", Title: "Name Trend", Kind: domain.SectionTrend, Key: "name", X: "year", Value: "count", Split: "gender"},
			{Name: "kpis", Title: "Summary", Kind: domain.SectionKPI, Metrics: []MetricSpec{
				{Name: "total_count", Column: "count", Stat: StatSum},
				{Name: "max_count", Column: "count", Stat: StatMax},
			}},
		},
		DownloadName: "filtered_baby_names.csv",
	},
	{
		Name:       "streamers",
		Detect:     []string{"user_name", "followers"},
		Categories: []string{"game_name", "country"},
		Sections: []Section{
			{Name: "top_followers", Title: "Top Streamers by Followers", Kind: domain.SectionLeaderboard, Key: "user_name", Value: "followers"},
			{Name: "top_viewers", Title: "Top Streamers by Average Viewers", Kind: domain.SectionLeaderboard, Key: "user_name", Value: "avg_viewers"},
			{Name: "top_games", Title: "Top Games by Followers", Kind: domain.SectionRanking, Key: "game_name", Value: "followers"},
			{Name: "kpis", Title: "Summary", Kind: domain.SectionKPI, Metrics: []MetricSpec{
				{Name: "max_followers", Column: "followers", Stat: StatMax},
				{Name: "mean_avg_viewers", Column: "avg_viewers", Stat: StatMean},
				{Name: "total_followers", Column: "followers", Stat: StatSum},
			}},
		},
		DownloadName: "filtered_twitch_streamers.csv",
	},
	{
		Name:   "stock",
		Detect: []string{"Date", "Close"},
		Ranges: []string{"Date"},
		Sections: []Section{
			{Name: "moving_averages", Title: "Moving Averages", Kind: domain.SectionRolling, X: "Date", Value: "Close", Windows: []int{7, 30}},
			{Name: "price_trend", Title: "Closing Price", Kind: domain.SectionTrend, X: "Date", Value: "Close"},
			{Name: "kpis", Title: "Summary", Kind: domain.SectionKPI, Metrics: []MetricSpec{
				{Name: "max_high", Column: "High", Stat: StatMax},
				{Name: "min_low", Column: "Low", Stat: StatMin},
				{Name: "mean_close", Column: "Close", Stat: StatMean},
				{Name: "total_volume", Column: "Volume", Stat: StatSum},
			}},
		},
		OrderBy:      "Date",
		DownloadName: "filtered_toyota_stock.csv",
	},
}

// Profiles returns the registered profile names, generic last.
func Profiles() []string {
	names := make([]string, 0, len(builtinProfiles)+1)
	for _, p := range builtinProfiles {
		names = append(names, p.Name)
	}
	return append(names, ProfileGeneric)
}

// DetectProfile returns the first registered profile whose detection
// columns are all present, or the generic profile.
func DetectProfile(t *table.Table, maxCategories int) Profile {
	for _, p := range builtinProfiles {
		if t.Has(p.Detect...) {
			return p
		}
	}
	return GenericProfile(t, maxCategories)
}

// ResolveProfile returns the named profile, detecting one when name is empty.
func ResolveProfile(t *table.Table, name string, maxCategories int) (Profile, error) {
	switch name {
	case "":
		return DetectProfile(t, maxCategories), nil
	case ProfileGeneric:
		return GenericProfile(t, maxCategories), nil
	}
	for _, p := range builtinProfiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w %q, expected one of %s", ErrUnknownProfile, name, strings.Join(Profiles(), ", "))
}

// GenericProfile derives filters and KPIs from column kinds: a range for
// every numeric or date column, a category for every string column with at
// most maxCategories distinct values and four KPIs per numeric column.
func GenericProfile(t *table.Table, maxCategories int) Profile {
	p := Profile{Name: ProfileGeneric, DownloadName: "filtered_data.csv"}
	var metrics []MetricSpec

	for _, c := range t.Columns() {
		switch {
		case c.Kind().IsNumeric():
			p.Ranges = append(p.Ranges, c.Name())
			for _, stat := range []Stat{StatSum, StatMean, StatMin, StatMax} {
				metrics = append(metrics, MetricSpec{Name: c.Name() + "_" + string(stat), Column: c.Name(), Stat: stat})
			}
		case c.Kind() == table.KindDate:
			p.Ranges = append(p.Ranges, c.Name())
		default:
			if n := len(c.Distinct()); n > 0 && n <= maxCategories {
				p.Categories = append(p.Categories, c.Name())
			}
		}
	}

	p.Sections = []Section{{Name: "kpis", Title: "Summary", Kind: domain.SectionKPI, Metrics: metrics}}
	return p
}
