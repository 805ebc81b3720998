package reports

import (
	"fmt"
	"sort"
	"time"
)

// Roster lists the officers registered for one unit.
type Roster struct {
	Unit     string
	Officers []string
}

// RecapRow is one officer's realisation count for the recap table.
type RecapRow struct {
	Rank    int    `json:"rank"`
	Period  string `json:"period"`
	Officer string `json:"officer"`
	Unit    string `json:"unit"`
	Total   int    `json:"total"`
}

var shortMonthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agu", "Sep", "Okt", "Nov", "Des"}

// BuildRecap counts, for every rostered officer, the reports in the date range where the officer
// appears as first or second officer of the same unit. Rows are ordered by total descending, then
// by officer name.
func BuildRecap(collection []Report, rosters []Roster, filters ViewFilters) []RecapRow {
	dated := ComputeView(collection, ViewFilters{
		UnitScope: filters.UnitScope,
		DateFrom:  filters.DateFrom,
		DateTo:    filters.DateTo,
		Location:  filters.Location,
	})

	totals := make(map[string]map[string]int)
	for _, report := range dated {
		byOfficer, ok := totals[report.Unit]
		if !ok {
			byOfficer = make(map[string]int)
			totals[report.Unit] = byOfficer
		}
		byOfficer[report.Officer1]++
		if report.Officer2 != report.Officer1 {
			byOfficer[report.Officer2]++
		}
	}

	period := periodLabel(filters.DateFrom, filters.DateTo)
	rows := make([]RecapRow, 0)
	for _, roster := range rosters {
		if filters.UnitScope != "" && roster.Unit != filters.UnitScope {
			continue
		}
		if filters.UnitFilter != "" && roster.Unit != filters.UnitFilter {
			continue
		}
		for _, officer := range roster.Officers {
			rows = append(rows, RecapRow{
				Period:  period,
				Officer: officer,
				Unit:    roster.Unit,
				Total:   totals[roster.Unit][officer],
			})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Officer < rows[j].Officer
	})
	for index := range rows {
		rows[index].Rank = index + 1
	}
	return rows
}

func periodLabel(from, to string) string {
	fromDate, fromErr := time.Parse(DateLayout, from)
	toDate, toErr := time.Parse(DateLayout, to)
	switch {
	case fromErr == nil && toErr == nil:
		start := shortMonthYear(fromDate)
		end := shortMonthYear(toDate)
		if start == end {
			return start
		}
		return start + " - " + end
	case fromErr == nil:
		return "Sejak " + shortMonthNames[fromDate.Month()-1]
	default:
		return "Semua"
	}
}

func shortMonthYear(t time.Time) string {
	return fmt.Sprintf("%s %02d", shortMonthNames[t.Month()-1], t.Year()%100)
}
