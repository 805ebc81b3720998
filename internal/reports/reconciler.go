package reports

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconcilerConfig describes the collaborators of a Reconciler.
type ReconcilerConfig struct {
	Notifier      Notifier
	Clock         func() time.Time
	Location      *time.Location
	SummaryWindow *SummaryWindow
	Logger        *zap.Logger
}

// IngestStats counts what a single snapshot did to the merged collection.
type IngestStats struct {
	Received       int
	Inserted       int
	Replaced       int
	SkippedPending int
	SkippedStale   int
	SkippedInvalid int
	Confirmed      int
}

// MergedState is an immutable copy of the reconciled collection, newest first.
type MergedState struct {
	Reports    []Report
	PendingIDs []ReportID
	Stats      IngestStats
}

// Reconciler merges polled server snapshots with optimistic local writes. The merged collection and
// the pending-write map are only mutated by IngestServerSnapshot, Seed, ApplyLocalWrite and ClearPending.
type Reconciler struct {
	mu       sync.Mutex
	entries  map[ReportID]Report
	pending  map[ReportID]time.Time
	notices  noticeState
	notifier Notifier
	clock    func() time.Time
	location *time.Location
	window   SummaryWindow
	logger   *zap.Logger
}

// NewReconciler constructs an empty reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	window := DefaultSummaryWindow
	if cfg.SummaryWindow != nil {
		window = *cfg.SummaryWindow
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		entries:  make(map[ReportID]Report),
		pending:  make(map[ReportID]time.Time),
		notifier: notifier,
		clock:    clock,
		location: locationOrUTC(cfg.Location),
		window:   window,
		logger:   logger,
	}
}

// Location returns the calendar used for dates and summaries.
func (r *Reconciler) Location() *time.Location {
	return r.location
}

// IngestServerSnapshot merges the full collection known by the remote store. Local entries missing
// from the snapshot are retained; a server row older than an unconfirmed local write is skipped.
func (r *Reconciler) IngestServerSnapshot(serverReports []Report) MergedState {
	r.mu.Lock()
	stats := r.mergeLocked(serverReports)
	batch := r.deriveNoticesLocked()
	state := r.snapshotLocked()
	state.Stats = stats
	r.mu.Unlock()

	batch.deliver(r.notifier)
	return state
}

// Seed merges a cached collection at startup. It notifies nobody; the latest cached report counts as
// already seen.
func (r *Reconciler) Seed(cached []Report) MergedState {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.mergeLocked(cached)
	if latest, ok := latestReport(r.entries); ok {
		r.notices.lastSeenLatestID = latest.ID
		r.notices.seenLatest = true
	}
	state := r.snapshotLocked()
	state.Stats = stats
	return state
}

func (r *Reconciler) mergeLocked(serverReports []Report) IngestStats {
	stats := IngestStats{Received: len(serverReports)}
	for _, incoming := range serverReports {
		if err := incoming.Validate(); err != nil {
			stats.SkippedInvalid++
			r.logger.Warn("server report skipped", zap.String("report_id", incoming.ID.String()), zap.Error(err))
			continue
		}

		var existingPtr *Report
		if existing, ok := r.entries[incoming.ID]; ok {
			existingPtr = &existing
		}
		var pendingPtr *time.Time
		if pendingAt, ok := r.pending[incoming.ID]; ok {
			pendingPtr = &pendingAt
		}

		if confirmsPending(pendingPtr, incoming) {
			delete(r.pending, incoming.ID)
			stats.Confirmed++
		}

		switch resolveServerReport(existingPtr, pendingPtr, incoming) {
		case decisionInsert:
			r.entries[incoming.ID] = incoming
			stats.Inserted++
		case decisionReplace:
			r.entries[incoming.ID] = incoming
			stats.Replaced++
		case decisionSkipPending:
			stats.SkippedPending++
		case decisionSkipStale:
			stats.SkippedStale++
		}
	}
	return stats
}

// ApplyLocalWrite records a pending write for the report and upserts it immediately. The returned state
// already contains the write.
func (r *Reconciler) ApplyLocalWrite(report Report) (MergedState, error) {
	if err := report.Validate(); err != nil {
		return MergedState{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[report.ID] = report.Timestamp
	r.entries[report.ID] = report

	// The author does not need a "new report" notice for their own write.
	if latest, ok := latestReport(r.entries); ok && latest.ID == report.ID && r.notices.seenLatest {
		r.notices.lastSeenLatestID = report.ID
	}
	return r.snapshotLocked(), nil
}

// ClearPending drops the pending marker for id when it still refers to the write made at timestamp.
// A later edit of the same report keeps its protection.
func (r *Reconciler) ClearPending(id ReportID, timestamp time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	pendingAt, ok := r.pending[id]
	if !ok || !pendingAt.Equal(timestamp) {
		return false
	}
	delete(r.pending, id)
	return true
}

// Pending reports whether id has an unconfirmed local write.
func (r *Reconciler) Pending(id ReportID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[id]
	return ok
}

// Snapshot returns the current merged state without mutating it.
func (r *Reconciler) Snapshot() MergedState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// View computes the filtered view over the current merged state.
func (r *Reconciler) View(filters ViewFilters) []Report {
	if filters.Location == nil {
		filters.Location = r.location
	}
	return ComputeView(r.Snapshot().Reports, filters)
}

func (r *Reconciler) snapshotLocked() MergedState {
	collection := make([]Report, 0, len(r.entries))
	for _, entry := range r.entries {
		collection = append(collection, entry)
	}
	sortNewestFirst(collection)

	pendingIDs := make([]ReportID, 0, len(r.pending))
	for id := range r.pending {
		pendingIDs = append(pendingIDs, id)
	}
	sort.Slice(pendingIDs, func(i, j int) bool { return pendingIDs[i] < pendingIDs[j] })

	return MergedState{Reports: collection, PendingIDs: pendingIDs}
}

func (r *Reconciler) deriveNoticesLocked() noticeBatch {
	var batch noticeBatch
	now := r.clock()
	today := now.In(r.location).Format(DateLayout)

	if latest, ok := latestReport(r.entries); ok {
		if r.notices.seenLatest && latest.ID != r.notices.lastSeenLatestID {
			batch.notices = append(batch.notices, notice{
				unit:  latest.Unit,
				title: newReportTitle,
				body:  newReportBody(latest),
			})
			todays := reportsOnDate(r.entries, today, r.location)
			count := len(todays)
			batch.badge = &count
			batch.unitBadges = countByUnit(todays)
		}
		r.notices.lastSeenLatestID = latest.ID
		r.notices.seenLatest = true
	}

	hour := hourOf(now, r.location)
	if r.window.Contains(hour.Hour()) && !hour.Equal(r.notices.lastNotifiedHour) {
		todays := reportsOnDate(r.entries, today, r.location)
		batch.notices = append(batch.notices, notice{
			title: fmtSummaryTitle(hour.Hour()),
			body:  summaryBody(todays),
			unitBody: func(unit string) string {
				return summaryBody(ofUnit(todays, unit))
			},
		})
		r.notices.lastNotifiedHour = hour
	}
	return batch
}
