package reports

import "time"

// UnitCount is the number of reports filed for one unit.
type UnitCount struct {
	Unit  string `json:"unit"`
	Count int    `json:"count"`
}

// DashboardStats aggregates the admin dashboard figures.
type DashboardStats struct {
	Total      int         `json:"total"`
	ThisMonth  int         `json:"this_month"`
	MonthLabel string      `json:"month_label"`
	PerUnit    []UnitCount `json:"per_unit"`
}

// Summarize computes dashboard figures over the de-duplicated collection. PerUnit follows the order of
// units; reports of units outside that list still count toward the totals.
func Summarize(collection []Report, units []string, now time.Time, loc *time.Location) DashboardStats {
	loc = locationOrUTC(loc)
	view := ComputeView(collection, ViewFilters{Location: loc})

	localNow := now.In(loc)
	counts := make(map[string]int, len(units))
	stats := DashboardStats{
		Total:      len(view),
		MonthLabel: MonthName(now, loc),
	}
	for _, report := range view {
		counts[report.Unit]++
		stamp := report.Timestamp.In(loc)
		if stamp.Year() == localNow.Year() && stamp.Month() == localNow.Month() {
			stats.ThisMonth++
		}
	}

	stats.PerUnit = make([]UnitCount, 0, len(units))
	for _, unit := range units {
		stats.PerUnit = append(stats.PerUnit, UnitCount{Unit: unit, Count: counts[unit]})
	}
	return stats
}
