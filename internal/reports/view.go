package reports

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidDate indicates that a date filter is not a YYYY-MM-DD calendar date.
var ErrInvalidDate = errors.New("reports: invalid date filter")

// ViewFilters narrows the merged collection for presentation.
type ViewFilters struct {
	// UnitScope comes from the session and is never widened by other filters.
	UnitScope string
	// UnitFilter is an optional admin-selected unit.
	UnitFilter string
	// DateFrom and DateTo are inclusive YYYY-MM-DD bounds on the report's local calendar date.
	DateFrom string
	DateTo   string
	Location *time.Location
}

// NewDateFilter validates a YYYY-MM-DD value; an empty value means no bound.
func NewDateFilter(rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", nil
	}
	if _, err := time.Parse(DateLayout, trimmed); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, trimmed)
	}
	return trimmed, nil
}

// ComputeView de-duplicates collection by id (the last occurrence wins), applies the unit scope, the
// unit filter and the date range, and returns the result newest first.
func ComputeView(collection []Report, filters ViewFilters) []Report {
	latestIndex := make(map[ReportID]int, len(collection))
	for index, report := range collection {
		latestIndex[report.ID] = index
	}

	view := make([]Report, 0, len(latestIndex))
	for index, report := range collection {
		if latestIndex[report.ID] != index {
			continue
		}
		if filters.UnitScope != "" && report.Unit != filters.UnitScope {
			continue
		}
		if filters.UnitFilter != "" && report.Unit != filters.UnitFilter {
			continue
		}
		if !filters.containsDate(report) {
			continue
		}
		view = append(view, report)
	}

	sortNewestFirst(view)
	return view
}

func (f ViewFilters) containsDate(report Report) bool {
	if f.DateFrom == "" && f.DateTo == "" {
		return true
	}
	date := report.LocalDate(f.Location)
	if f.DateFrom != "" && date < f.DateFrom {
		return false
	}
	if f.DateTo != "" && date > f.DateTo {
		return false
	}
	return true
}

func sortNewestFirst(collection []Report) {
	sort.SliceStable(collection, func(i, j int) bool {
		return newerThan(collection[i], collection[j])
	})
}
