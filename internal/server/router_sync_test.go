package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/remote"
)

func TestOfflineToggleIsAdminOnly(t *testing.T) {
	harness := newTestHarness(t)

	recorder := harness.do(t, http.MethodPut, "/api/sync/offline", harness.adminToken(t), map[string]bool{"offline": true})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", recorder.Code, recorder.Body.String())
	}
	if !harness.sync.Offline() {
		t.Fatalf("offline mode not enabled")
	}

	recorder = harness.do(t, http.MethodGet, "/api/sync/offline", harness.userToken(t), nil)
	var payload struct {
		Offline bool `json:"offline"`
	}
	decodeBody(t, recorder, &payload)
	if !payload.Offline {
		t.Fatalf("offline flag not reported to field sessions")
	}

	recorder = harness.do(t, http.MethodPut, "/api/sync/offline", harness.adminToken(t), map[string]bool{"offline": false})
	if recorder.Code != http.StatusOK || harness.sync.Offline() {
		t.Fatalf("offline mode not disabled: %d", recorder.Code)
	}
	if harness.sync.refreshes != 1 {
		t.Fatalf("expected a refresh request when going online, got %d", harness.sync.refreshes)
	}

	recorder = harness.do(t, http.MethodPut, "/api/sync/offline", harness.adminToken(t), map[string]string{})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request without flag, got %d", recorder.Code)
	}
}

func TestRefreshReportsOfflineAndRemoteFailures(t *testing.T) {
	harness := newTestHarness(t)

	recorder := harness.do(t, http.MethodPost, "/api/sync/refresh", harness.userToken(t), nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d %s", recorder.Code, recorder.Body.String())
	}

	harness.sync.refreshErr = fmt.Errorf("fetch: %w", remote.ErrEndpointMisconfigured)
	recorder = harness.do(t, http.MethodPost, "/api/sync/refresh", harness.userToken(t), nil)
	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("expected bad gateway, got %d", recorder.Code)
	}

	harness.sync.refreshErr = nil
	if err := harness.sync.SetOffline(t.Context(), true); err != nil {
		t.Fatalf("failed to enable offline mode: %v", err)
	}
	recorder = harness.do(t, http.MethodPost, "/api/sync/refresh", harness.userToken(t), nil)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected conflict in offline mode, got %d", recorder.Code)
	}
}

func TestHealthReportsOfflineMode(t *testing.T) {
	harness := newTestHarness(t)
	recorder := harness.do(t, http.MethodGet, "/healthz", "", nil)
	if recorder.Code != http.StatusOK || !strings.Contains(recorder.Body.String(), `"offline":false`) {
		t.Fatalf("unexpected health response: %d %s", recorder.Code, recorder.Body.String())
	}
}

func TestCORSMiddlewareAllowsCredentialedAuthorization(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(corsMiddleware())
	router.OPTIONS("/api/reports", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodOptions, "/api/reports", http.NoBody)
	request.Header.Set("Origin", "https://patrol.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	request.Header.Set("Access-Control-Request-Headers", "Authorization")

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if !strings.Contains(strings.ToLower(recorder.Header().Get("Access-Control-Allow-Headers")), "authorization") {
		t.Fatalf("expected Authorization to be allowed, got %q", recorder.Header().Get("Access-Control-Allow-Headers"))
	}
	if recorder.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials to be enabled")
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "https://patrol.example.com" {
		t.Fatalf("expected origin echo, got %q", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestClassifyErrorTimeouts(t *testing.T) {
	status, reason := classifyError(fmt.Errorf("poll: %w", context.DeadlineExceeded))
	if status != http.StatusGatewayTimeout || reason != "timeout" {
		t.Fatalf("unexpected classification: %d %s", status, reason)
	}
}
