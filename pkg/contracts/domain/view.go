package domain

import (
	"time"
)

// SectionKind identifies the aggregate a dashboard section computes
type SectionKind string

const (
	SectionRanking     SectionKind = "ranking"
	SectionLeaderboard SectionKind = "leaderboard"
	SectionRolling     SectionKind = "rolling"
	SectionTrend       SectionKind = "trend"
	SectionKPI         SectionKind = "kpi"
)

// ColumnInfo describes a loaded column
type ColumnInfo struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Nulls    int      `json:"nulls"`
	Min      any      `json:"min,omitempty"`
	Max      any      `json:"max,omitempty"`
	Distinct []string `json:"distinct,omitempty"`
}

// FilterControl describes a filter widget and its default state
type FilterControl struct {
	Type    string   `json:"type"` // range or category
	Column  string   `json:"column"`
	Min     any      `json:"min,omitempty"`
	Max     any      `json:"max,omitempty"`
	Options []string `json:"options,omitempty"`
}

// SectionInfo lists a section a profile offers and whether the table supports it
type SectionInfo struct {
	Name       string      `json:"name"`
	Title      string      `json:"title"`
	Kind       SectionKind `json:"kind"`
	Applicable bool        `json:"applicable"`
	Reason     string      `json:"reason,omitempty"`
}

// Description is the profile-aware summary of a table
type Description struct {
	Profile      string          `json:"profile"`
	Rows         int             `json:"rows"`
	Columns      []ColumnInfo    `json:"columns"`
	Controls     []FilterControl `json:"controls"`
	Sections     []SectionInfo   `json:"sections"`
	DownloadName string          `json:"download_name"`
}

// SessionInfo is returned for session create, get and replace
type SessionInfo struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Description
}

// AppliedRange reports the effective bounds of a range filter after clamping
type AppliedRange struct {
	Column  string `json:"column"`
	Min     any    `json:"min,omitempty"`
	Max     any    `json:"max,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// AppliedCategory reports the accepted set of a categorical filter.
// All is true when the filter accepted every observed value.
type AppliedCategory struct {
	Column  string   `json:"column"`
	Values  []string `json:"values"`
	All     bool     `json:"all,omitempty"`
	Skipped bool     `json:"skipped,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// RankEntry is one line of a ranking or leaderboard
type RankEntry struct {
	Rank  int            `json:"rank"`
	Label string         `json:"label"`
	Value *float64       `json:"value"`
	Row   map[string]any `json:"row,omitempty"`
}

// Ranking is the payload of ranking and leaderboard sections
type Ranking struct {
	Key     string      `json:"key"`
	Value   string      `json:"value"`
	N       int         `json:"n"`
	Entries []RankEntry `json:"entries"`
}

// Point is one x/y pair. A nil Y means the value is undefined at X.
type Point struct {
	X any      `json:"x"`
	Y *float64 `json:"y"`
}

// Series is a named sequence of points
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Trend is the payload of trend sections. Key and Selected are set when the
// trend follows a single-selected entity. Series holds one entry named after
// Y, or one per Split value when the trend is split by a category.
type Trend struct {
	X        string   `json:"x"`
	Y        string   `json:"y"`
	Key      string   `json:"key,omitempty"`
	Selected string   `json:"selected,omitempty"`
	Options  []string `json:"options,omitempty"`
	Split    string   `json:"split,omitempty"`
	Series   []Series `json:"series"`
}

// Rolling is the payload of moving-average sections. Series[0] is the raw
// value column followed by one series per window.
type Rolling struct {
	Date    string   `json:"date"`
	Value   string   `json:"value"`
	Windows []int    `json:"windows"`
	Series  []Series `json:"series"`
}

// Metric is a scalar KPI
type Metric struct {
	Name       string `json:"name"`
	Column     string `json:"column"`
	Stat       string `json:"stat"`
	Applicable bool   `json:"applicable"`
	Reason     string `json:"reason,omitempty"`
	Value      any    `json:"value,omitempty"`
}

// KPIs is the payload of kpi sections
type KPIs struct {
	Metrics []Metric `json:"metrics"`
}

// SectionResult is the outcome of one section for one evaluation
type SectionResult struct {
	Name       string      `json:"name"`
	Title      string      `json:"title"`
	Kind       SectionKind `json:"kind"`
	Applicable bool        `json:"applicable"`
	Reason     string      `json:"reason,omitempty"`
	Data       any         `json:"data,omitempty"`
}

// RowPage is a window of the narrowed table
type RowPage struct {
	Columns []string `json:"columns"`
	Offset  int      `json:"offset"`
	Limit   int      `json:"limit"`
	Total   int      `json:"total"`
	Rows    [][]any  `json:"rows"`
}

// View is everything a dashboard renders for one set of criteria
type View struct {
	Profile      string            `json:"profile"`
	TotalRows    int               `json:"total_rows"`
	NarrowedRows int               `json:"narrowed_rows"`
	Ranges       []AppliedRange    `json:"ranges"`
	Categories   []AppliedCategory `json:"categories"`
	Sections     []SectionResult   `json:"sections"`
	Rows         RowPage           `json:"rows"`
	DownloadName string            `json:"download_name"`
}

// Section returns the named section result.
func (v *View) Section(name string) (SectionResult, bool) {
	for _, s := range v.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return SectionResult{}, false
}
