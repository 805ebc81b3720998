package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEventStreamDeliversReconcilerNotifications(t *testing.T) {
	harness := newTestHarness(t)
	server := httptest.NewServer(harness.handler)
	t.Cleanup(server.Close)

	streamRequest, err := http.NewRequest(http.MethodGet, server.URL+"/api/events?access_token="+harness.adminToken(t), http.NoBody)
	if err != nil {
		t.Fatalf("failed to construct stream request: %v", err)
	}
	streamResp, err := http.DefaultClient.Do(streamRequest)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = streamResp.Body.Close()
	})
	if streamResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", streamResp.StatusCode)
	}
	if !strings.HasPrefix(streamResp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected content type %q", streamResp.Header.Get("Content-Type"))
	}

	streamReader := bufio.NewReader(streamResp.Body)
	waitForEvent(t, streamReader, realtimeEventHeartbeat)

	// The subscription is registered before the first heartbeat is written.
	harness.realtime.PublishWarning("sync_delayed", "Laporan tersimpan lokal.")

	payload := waitForEvent(t, streamReader, RealtimeEventSyncWarning)
	var message RealtimeMessage
	if err := json.Unmarshal([]byte(payload), &message); err != nil {
		t.Fatalf("failed to decode event payload: %v", err)
	}
	if message.Code != "sync_delayed" || message.Body != "Laporan tersimpan lokal." {
		t.Fatalf("unexpected warning payload: %+v", message)
	}
}

func TestEventStreamOnlyCarriesNoticesOfTheSessionUnit(t *testing.T) {
	harness := newTestHarness(t)
	server := httptest.NewServer(harness.handler)
	t.Cleanup(server.Close)

	streamResp, err := http.Get(server.URL + "/api/events?access_token=" + harness.userToken(t))
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = streamResp.Body.Close()
	})
	if streamResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", streamResp.StatusCode)
	}
	streamReader := bufio.NewReader(streamResp.Body)
	waitForEvent(t, streamReader, realtimeEventHeartbeat)

	harness.realtime.SendForUnit("ULP Baso", "Laporan Yandal Patrol baru", "ULP Baso - BAS.01")
	harness.realtime.SendForUnit("ULP Bukittinggi", "Laporan Yandal Patrol baru", "ULP Bukittinggi - BKT.02")

	payload := waitForEvent(t, streamReader, RealtimeEventNotification)
	var message RealtimeMessage
	if err := json.Unmarshal([]byte(payload), &message); err != nil {
		t.Fatalf("failed to decode event payload: %v", err)
	}
	if message.Unit != "ULP Bukittinggi" || message.Body != "ULP Bukittinggi - BKT.02" {
		t.Fatalf("stream of ULP Bukittinggi received %+v", message)
	}
}

func TestEventStreamRejectsMissingToken(t *testing.T) {
	harness := newTestHarness(t)
	server := httptest.NewServer(harness.handler)
	t.Cleanup(server.Close)

	response, err := http.Get(server.URL + "/api/events")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = response.Body.Close()
	if response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", response.StatusCode)
	}
}

// waitForEvent reads the stream until an event of eventType arrives and returns its data line.
func waitForEvent(t *testing.T, reader *bufio.Reader, eventType string) string {
	t.Helper()
	type readResult struct {
		line string
		err  error
	}
	currentEventType := ""
	deadline := time.After(5 * time.Second)
	for {
		resultCh := make(chan readResult, 1)
		go func() {
			line, err := reader.ReadString('\n')
			resultCh <- readResult{line: line, err: err}
		}()
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", eventType)
		case res := <-resultCh:
			if res.err != nil {
				t.Fatalf("failed to read stream: %v", res.err)
			}
			line := strings.TrimSpace(res.line)
			switch {
			case strings.HasPrefix(line, "event:"):
				currentEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:") && currentEventType == eventType:
				return strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
	}
}
