package reports

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Notifier delivers user-facing notifications. Delivery is best effort; implementations swallow
// permission or transport problems.
type Notifier interface {
	Send(title, body string)
	SetBadgeCount(count int)
}

type nopNotifier struct{}

func (nopNotifier) Send(string, string) {}
func (nopNotifier) SetBadgeCount(int)   {}

// UnitNotifier is a Notifier whose audiences are scoped to units. A Reconciler uses it instead of the
// plain methods when its Notifier implements it.
type UnitNotifier interface {
	Notifier
	// SendForUnit delivers a notice about a report of unit.
	SendForUnit(unit, title, body string)
	// SendSummary delivers the periodic summary; unitBody renders the same summary for one unit.
	SendSummary(title, body string, unitBody func(unit string) string)
	// SetBadgeCounts delivers today's report count overall and per unit.
	SetBadgeCounts(total int, perUnit map[string]int)
}

type fanOutNotifier []Notifier

// FanOut delivers every notification to each notifier in order. Nil notifiers are dropped. Unit-scoped
// deliveries reach plain notifiers through Send and SetBadgeCount.
func FanOut(notifiers ...Notifier) Notifier {
	targets := make(fanOutNotifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			targets = append(targets, notifier)
		}
	}
	return targets
}

func (f fanOutNotifier) Send(title, body string) {
	for _, notifier := range f {
		notifier.Send(title, body)
	}
}

func (f fanOutNotifier) SetBadgeCount(count int) {
	for _, notifier := range f {
		notifier.SetBadgeCount(count)
	}
}

func (f fanOutNotifier) SendForUnit(unit, title, body string) {
	for _, notifier := range f {
		if scoped, ok := notifier.(UnitNotifier); ok {
			scoped.SendForUnit(unit, title, body)
			continue
		}
		notifier.Send(title, body)
	}
}

func (f fanOutNotifier) SendSummary(title, body string, unitBody func(unit string) string) {
	for _, notifier := range f {
		if scoped, ok := notifier.(UnitNotifier); ok {
			scoped.SendSummary(title, body, unitBody)
			continue
		}
		notifier.Send(title, body)
	}
}

func (f fanOutNotifier) SetBadgeCounts(total int, perUnit map[string]int) {
	for _, notifier := range f {
		if scoped, ok := notifier.(UnitNotifier); ok {
			scoped.SetBadgeCounts(total, perUnit)
			continue
		}
		notifier.SetBadgeCount(total)
	}
}

const (
	newReportTitle = "Laporan Yandal Patrol baru"
	summaryTitle   = "Rekap Yandal Patrol %02d:00"
)

// SummaryWindow bounds the hours of day, [StartHour, EndHour), in which periodic summaries go out.
type SummaryWindow struct {
	StartHour int
	EndHour   int
}

// Contains reports whether hour falls inside the window.
func (w SummaryWindow) Contains(hour int) bool {
	return hour >= w.StartHour && hour < w.EndHour
}

// DefaultSummaryWindow covers the working day.
var DefaultSummaryWindow = SummaryWindow{StartHour: 7, EndHour: 18}

// notice concerns one unit, or every unit when unitBody renders its per-unit form.
type notice struct {
	unit     string
	title    string
	body     string
	unitBody func(unit string) string
}

// noticeBatch is collected under the reconciler lock and delivered after it is released.
type noticeBatch struct {
	notices    []notice
	badge      *int
	unitBadges map[string]int
}

func (b noticeBatch) deliver(notifier Notifier) {
	scoped, isScoped := notifier.(UnitNotifier)
	for _, n := range b.notices {
		switch {
		case !isScoped:
			notifier.Send(n.title, n.body)
		case n.unitBody != nil:
			scoped.SendSummary(n.title, n.body, n.unitBody)
		default:
			scoped.SendForUnit(n.unit, n.title, n.body)
		}
	}
	if b.badge == nil {
		return
	}
	if isScoped {
		scoped.SetBadgeCounts(*b.badge, b.unitBadges)
		return
	}
	notifier.SetBadgeCount(*b.badge)
}

// noticeState is carried across polls by a single reconciler.
type noticeState struct {
	lastSeenLatestID ReportID
	seenLatest       bool
	lastNotifiedHour time.Time
}

func latestReport(entries map[ReportID]Report) (Report, bool) {
	var latest Report
	found := false
	for _, entry := range entries {
		if !found || newerThan(entry, latest) {
			latest = entry
			found = true
		}
	}
	return latest, found
}

// newerThan orders by timestamp, falling back to id so the order is total.
func newerThan(left, right Report) bool {
	if !left.Timestamp.Equal(right.Timestamp) {
		return left.Timestamp.After(right.Timestamp)
	}
	return left.ID > right.ID
}

func reportsOnDate(entries map[ReportID]Report, date string, loc *time.Location) []Report {
	matched := make([]Report, 0)
	for _, entry := range entries {
		if entry.LocalDate(loc) == date {
			matched = append(matched, entry)
		}
	}
	return matched
}

func countByUnit(collection []Report) map[string]int {
	counts := make(map[string]int)
	for _, report := range collection {
		counts[report.Unit]++
	}
	return counts
}

func ofUnit(collection []Report, unit string) []Report {
	matched := make([]Report, 0)
	for _, report := range collection {
		if report.Unit == unit {
			matched = append(matched, report)
		}
	}
	return matched
}

func newReportBody(report Report) string {
	lines := []string{
		fmt.Sprintf("%s - %s", report.Unit, report.Feeder),
		fmt.Sprintf("Petugas: %s & %s", report.Officer1, report.Officer2),
	}
	if report.Keypoint != "" {
		lines = append(lines, "Keypoint: "+report.Keypoint)
	}
	return strings.Join(lines, "\n")
}

func summaryBody(today []Report) string {
	if len(today) == 0 {
		return "Belum ada laporan hari ini."
	}
	counts := countByUnit(today)
	units := make([]string, 0, len(counts))
	for unit := range counts {
		units = append(units, unit)
	}
	sort.Strings(units)

	lines := make([]string, 0, len(units)+1)
	lines = append(lines, fmt.Sprintf("Total hari ini: %d laporan", len(today)))
	for _, unit := range units {
		lines = append(lines, fmt.Sprintf("%s: %d", unit, counts[unit]))
	}
	return strings.Join(lines, "\n")
}

func hourOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)
}

func fmtSummaryTitle(hour int) string {
	return fmt.Sprintf(summaryTitle, hour)
}
