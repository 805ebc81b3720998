package reports

import (
	"sync"
	"testing"
	"time"
)

var jakarta = time.FixedZone("WIB", 7*60*60)

type sentNotice struct {
	Title string
	Body  string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []sentNotice
	badges  []int
}

func (n *recordingNotifier) Send(title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, sentNotice{Title: title, Body: body})
}

func (n *recordingNotifier) SetBadgeCount(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.badges = append(n.badges, count)
}

func (n *recordingNotifier) sent() []sentNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotice(nil), n.notices...)
}

// unitRecordingNotifier records scoped deliveries. Summaries are rendered for summaryUnit.
type unitRecordingNotifier struct {
	recordingNotifier
	summaryUnit string
	unitNotices []unitNotice
	unitBadges  []map[string]int
}

type unitNotice struct {
	Unit  string
	Title string
	Body  string
}

func (n *unitRecordingNotifier) SendForUnit(unit, title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unitNotices = append(n.unitNotices, unitNotice{Unit: unit, Title: title, Body: body})
}

func (n *unitRecordingNotifier) SendSummary(title, body string, unitBody func(unit string) string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unitNotices = append(n.unitNotices, unitNotice{Title: title, Body: body})
	n.unitNotices = append(n.unitNotices, unitNotice{Unit: n.summaryUnit, Title: title, Body: unitBody(n.summaryUnit)})
}

func (n *unitRecordingNotifier) SetBadgeCounts(total int, perUnit map[string]int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.badges = append(n.badges, total)
	n.unitBadges = append(n.unitBadges, perUnit)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// quietWindow never matches, which keeps summaries out of tests about arrivals.
var quietWindow = SummaryWindow{}

func newQuietReconciler(t *testing.T, notifier Notifier, clock *manualClock) *Reconciler {
	t.Helper()
	window := quietWindow
	return NewReconciler(ReconcilerConfig{
		Notifier:      notifier,
		Clock:         clock.Now,
		Location:      jakarta,
		SummaryWindow: &window,
	})
}

func mustReportID(t *testing.T, value string) ReportID {
	t.Helper()
	id, err := NewReportID(value)
	if err != nil {
		t.Fatalf("unexpected report id error: %v", err)
	}
	return id
}

func reportAt(id ReportID, unit string, timestamp time.Time) Report {
	return Report{
		ID:        id,
		Timestamp: timestamp,
		Month:     MonthName(timestamp, jakarta),
		Unit:      unit,
		Officer1:  "Ahmad Zaki",
		Officer2:  "Budi Santoso",
		Feeder:    "BKT.01",
		Keypoint:  "KP BKT1-A",
	}
}

func findReport(t *testing.T, state MergedState, id ReportID) Report {
	t.Helper()
	for _, report := range state.Reports {
		if report.ID == id {
			return report
		}
	}
	t.Fatalf("report %s not found in merged state", id)
	return Report{}
}
