package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/masterdata"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/reports"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/session"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/syncer"
	"go.uber.org/zap"
)

const testSigningSecret = "test-signing-secret"

var jakarta = time.FixedZone("WIB", 7*60*60)

// fakeSynchronizer applies submissions straight to the reconciler.
type fakeSynchronizer struct {
	mu         sync.Mutex
	reconciler *reports.Reconciler
	offline    bool
	refreshErr error
	submitted  []reports.Report
	refreshes  int
}

func (f *fakeSynchronizer) Submit(_ context.Context, report reports.Report) (reports.MergedState, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, report)
	f.mu.Unlock()
	return f.reconciler.ApplyLocalWrite(report)
}

func (f *fakeSynchronizer) Refresh(context.Context) (reports.MergedState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return f.reconciler.Snapshot(), syncer.ErrOffline
	}
	if f.refreshErr != nil {
		return f.reconciler.Snapshot(), f.refreshErr
	}
	return f.reconciler.IngestServerSnapshot(nil), nil
}

func (f *fakeSynchronizer) Offline() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offline
}

func (f *fakeSynchronizer) SetOffline(_ context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = enabled
	return nil
}

func (f *fakeSynchronizer) RequestRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
}

func (f *fakeSynchronizer) submissions() []reports.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reports.Report(nil), f.submitted...)
}

type fixedIDs struct {
	next int
}

func (p *fixedIDs) NewID() (string, error) {
	p.next++
	return "report-" + strconv.Itoa(p.next), nil
}

type testHarness struct {
	handler    http.Handler
	sessions   *session.Manager
	reconciler *reports.Reconciler
	sync       *fakeSynchronizer
	master     *masterdata.Service
	realtime   *RealtimeDispatcher
	now        time.Time
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Date(2025, time.March, 10, 9, 30, 0, 0, jakarta)
	clock := func() time.Time { return now }

	sessions, err := session.NewManager(session.ManagerConfig{
		SigningSecret: []byte(testSigningSecret),
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to construct session manager: %v", err)
	}
	reconciler := reports.NewReconciler(reports.ReconcilerConfig{
		Clock:         clock,
		Location:      jakarta,
		SummaryWindow: &reports.SummaryWindow{},
	})
	synchronizer := &fakeSynchronizer{reconciler: reconciler}
	master := masterdata.NewService(masterdata.ServiceConfig{})
	dispatcher := NewRealtimeDispatcher()

	handler, err := NewHTTPHandler(Dependencies{
		Sessions:   sessions,
		Reconciler: reconciler,
		Sync:       synchronizer,
		MasterData: master,
		Realtime:   dispatcher,
		IDProvider: &fixedIDs{},
		Clock:      clock,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	return &testHarness{
		handler:    handler,
		sessions:   sessions,
		reconciler: reconciler,
		sync:       synchronizer,
		master:     master,
		realtime:   dispatcher,
		now:        now,
	}
}

func (h *testHarness) token(t *testing.T, s session.Session) string {
	t.Helper()
	token, _, _, err := h.sessions.Issue(s)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func (h *testHarness) adminToken(t *testing.T) string {
	return h.token(t, session.Session{Role: session.RoleAdmin})
}

func (h *testHarness) userToken(t *testing.T) string {
	return h.token(t, session.Session{
		Role:     session.RoleUser,
		Unit:     "ULP Bukittinggi",
		Officer1: "Ahmad Zaki",
		Officer2: "Budi Santoso",
	})
}

func (h *testHarness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	request := httptest.NewRequest(method, path, &payload)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	h.handler.ServeHTTP(recorder, request)
	return recorder
}

func (h *testHarness) seed(t *testing.T, collection ...reports.Report) {
	t.Helper()
	h.reconciler.IngestServerSnapshot(collection)
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func reportAt(id, unit string, ts time.Time) reports.Report {
	return reports.Report{
		ID:        reports.ReportID(id),
		Timestamp: ts.UTC(),
		Month:     reports.MonthName(ts, jakarta),
		Unit:      unit,
		Officer1:  "Ahmad Zaki",
		Officer2:  "Budi Santoso",
		Feeder:    "BKT.01",
	}
}
