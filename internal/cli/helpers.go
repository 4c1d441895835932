package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"csvpulse/internal/dataprocessing"
	"csvpulse/internal/infrastructure"
	"csvpulse/internal/services"
	"csvpulse/internal/session"
	"csvpulse/pkg/contracts/domain"
)

var validate = validator.New()

// newService builds a dashboard service for a single offline run. Logs go to
// stderr so stdout carries only JSON.
func (e *environment) newService() *services.DashboardService {
	logger := infrastructure.NewLogger(os.Stderr, e.globals.LogLevel)
	return services.NewDashboardService(
		session.NewStore(time.Minute, 1),
		dataprocessing.NewPipeline(dataprocessing.DefaultConfig(), logger),
		logger,
	)
}

// writeJSON prints v as indented JSON.
func (e *environment) writeJSON(v interface{}) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// open returns an upload request for the input file. The caller closes the
// returned closer.
func (f InputFlags) open() (services.UploadRequest, io.Closer, error) {
	file, err := os.Open(f.File)
	if err != nil {
		return services.UploadRequest{}, nil, fmt.Errorf("open %s: %w", f.File, err)
	}
	return services.UploadRequest{
		FileName: filepath.Base(f.File),
		Reader:   file,
		Profile:  f.Profile,
	}, file, nil
}

// splitAssignment splits "key=value" and rejects an empty key.
func splitAssignment(flag, s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid --%s %q, expected name=value", flag, s)
	}
	return key, value, nil
}

// parseRange parses "column=lo:hi". Either bound may be empty.
func parseRange(s string) (domain.RangeFilter, error) {
	column, bounds, err := splitAssignment("range", s)
	if err != nil {
		return domain.RangeFilter{}, err
	}
	lo, hi, ok := strings.Cut(bounds, ":")
	if !ok {
		return domain.RangeFilter{}, fmt.Errorf("invalid --range %q, expected column=lo:hi", s)
	}
	return domain.RangeFilter{
		Column: column,
		Min:    domain.Bound(strings.TrimSpace(lo)),
		Max:    domain.Bound(strings.TrimSpace(hi)),
	}, nil
}

// parseCategory parses "column=a,b". An empty value list keeps no rows.
func parseCategory(s string) (domain.CategoryFilter, error) {
	column, list, err := splitAssignment("in", s)
	if err != nil {
		return domain.CategoryFilter{}, err
	}
	values := []string{}
	for _, v := range strings.Split(list, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return domain.CategoryFilter{Column: column, Values: values}, nil
}

// parseValue parses "column=value" for --is. The value is kept verbatim.
func parseValue(s string) (domain.CategoryFilter, error) {
	column, value, err := splitAssignment("is", s)
	if err != nil {
		return domain.CategoryFilter{}, err
	}
	return domain.CategoryFilter{Column: column, Values: []string{value}}, nil
}

// mergeCategory adds cf to filters. Filters naming the same column are
// combined into one whose values are the union, in first-given order.
func mergeCategory(filters []domain.CategoryFilter, cf domain.CategoryFilter) []domain.CategoryFilter {
	for i := range filters {
		if filters[i].Column != cf.Column {
			continue
		}
		for _, v := range cf.Values {
			if !slices.Contains(filters[i].Values, v) {
				filters[i].Values = append(filters[i].Values, v)
			}
		}
		return filters
	}
	return append(filters, cf)
}

// criteria assembles and validates the run's filters. Repeated --in and
// --is flags for one column accept any of their values.
func (c *RunCommand) criteria() (domain.Criteria, error) {
	crit := domain.Criteria{
		TopN: c.TopN,
		Page: domain.Page{Offset: c.Offset, Limit: c.Limit},
	}
	for _, s := range c.Ranges {
		rf, err := parseRange(s)
		if err != nil {
			return domain.Criteria{}, err
		}
		crit.Ranges = append(crit.Ranges, rf)
	}
	for _, s := range c.Categories {
		cf, err := parseCategory(s)
		if err != nil {
			return domain.Criteria{}, err
		}
		crit.Categories = mergeCategory(crit.Categories, cf)
	}
	for _, s := range c.Values {
		cf, err := parseValue(s)
		if err != nil {
			return domain.Criteria{}, err
		}
		crit.Categories = mergeCategory(crit.Categories, cf)
	}
	for _, s := range c.Selections {
		section, value, err := splitAssignment("select", s)
		if err != nil {
			return domain.Criteria{}, err
		}
		if crit.Selections == nil {
			crit.Selections = make(map[string]string)
		}
		crit.Selections[section] = strings.TrimSpace(value)
	}
	if err := validate.Struct(crit); err != nil {
		return domain.Criteria{}, fmt.Errorf("invalid filters: %w", err)
	}
	return crit, nil
}
