package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultDateLayout is used when a date value is created without a source layout.
const DefaultDateLayout = "2006-01-02"

// DateLayouts are tried in order when inferring date columns.
var DateLayouts = []string{
	DefaultDateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
	"Jan 2, 2006",
}

// missing tokens read as null, mirroring the NA markers spreadsheets and
// dataframe libraries emit
var missing = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NaN":  {},
	"nan":  {},
	"-NaN": {},
	"null": {},
	"NULL": {},
	"None": {},
	"#N/A": {},
	"<NA>": {},
}

// IsMissing reports whether raw denotes an empty cell.
func IsMissing(raw string) bool {
	_, ok := missing[strings.TrimSpace(raw)]
	return ok
}

// InferKind picks the narrowest kind every non-missing cell parses as:
// int, then float, then date (a single layout for the whole column), then string.
// It returns the date layout when the kind is KindDate.
func InferKind(raws []string) (Kind, string) {
	allInt, allFloat := true, true
	layout := ""
	dateOK := true
	seen := 0

	for _, raw := range raws {
		if IsMissing(raw) {
			continue
		}
		s := strings.TrimSpace(raw)
		seen++

		if allInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				allFloat = false
			}
		}
		if dateOK {
			if layout == "" {
				layout = detectLayout(s)
				dateOK = layout != ""
			} else if _, err := time.Parse(layout, s); err != nil {
				dateOK = false
			}
		}
		if !allInt && !allFloat && !dateOK {
			return KindString, ""
		}
	}

	switch {
	case seen == 0:
		return KindString, ""
	case allInt:
		return KindInt, ""
	case allFloat:
		return KindFloat, ""
	case dateOK:
		return KindDate, layout
	}
	return KindString, ""
}

func detectLayout(s string) string {
	for _, layout := range DateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return layout
		}
	}
	return ""
}

// Parse converts raw text into a value of the given kind. Missing tokens
// yield a null value.
func Parse(kind Kind, layout, raw string) (Value, error) {
	if IsMissing(raw) {
		return Null(kind, raw), nil
	}
	s := strings.TrimSpace(raw)

	switch kind {
	case KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// integral bounds like "1910.0" still compare against int columns
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return Value{}, fmt.Errorf("parse %q as int: %w", raw, err)
			}
			return Value{kind: KindFloat, raw: raw, f: f}, nil
		}
		return Value{kind: KindInt, raw: raw, i: i}, nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse %q as float: %w", raw, err)
		}
		return Value{kind: KindFloat, raw: raw, f: f}, nil
	case KindDate:
		t, err := parseDate(layout, s)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindDate, raw: raw, t: t}, nil
	default:
		return Value{kind: KindString, raw: raw}, nil
	}
}

func parseDate(layout, s string) (time.Time, error) {
	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, l := range DateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse %q as date: no known layout matches", s)
}
