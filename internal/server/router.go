package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/masterdata"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/remote"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/reports"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/session"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/syncer"
	"go.uber.org/zap"
)

const sessionContextKey = "patrol_session"

var (
	errMissingSessionManager = errors.New("session manager dependency required")
	errMissingReconciler     = errors.New("reconciler dependency required")
	errMissingSynchronizer   = errors.New("synchronizer dependency required")
	errMissingMasterData     = errors.New("master data dependency required")
	errMissingRealtime       = errors.New("realtime dispatcher dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// Synchronizer moves reports between the reconciler and the remote store.
type Synchronizer interface {
	Submit(ctx context.Context, report reports.Report) (reports.MergedState, error)
	Refresh(ctx context.Context) (reports.MergedState, error)
	Offline() bool
	SetOffline(ctx context.Context, enabled bool) error
	RequestRefresh()
}

type Dependencies struct {
	Sessions   *session.Manager
	Reconciler *reports.Reconciler
	Sync       Synchronizer
	MasterData *masterdata.Service
	Realtime   *RealtimeDispatcher
	IDProvider reports.IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionManager
	}
	if deps.Reconciler == nil {
		return nil, errMissingReconciler
	}
	if deps.Sync == nil {
		return nil, errMissingSynchronizer
	}
	if deps.MasterData == nil {
		return nil, errMissingMasterData
	}
	if deps.Realtime == nil {
		return nil, errMissingRealtime
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := deps.IDProvider
	if ids == nil {
		ids = reports.NewUUIDProvider()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		sessions:   deps.Sessions,
		reconciler: deps.Reconciler,
		sync:       deps.Sync,
		master:     deps.MasterData,
		realtime:   deps.Realtime,
		ids:        ids,
		clock:      clock,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/api/session", handler.handleOpenSession)

	protected := router.Group("/api")
	protected.Use(handler.authorizeRequest)
	protected.GET("/reports", handler.handleListReports)
	protected.POST("/reports", handler.handleSubmitReport)
	protected.GET("/master", handler.handleGetMaster)
	protected.POST("/sync/refresh", handler.handleRefresh)
	protected.GET("/sync/offline", handler.handleGetOffline)
	protected.GET("/events", handler.handleEvents)

	admin := protected.Group("")
	admin.Use(requireAdmin)
	admin.GET("/dashboard", handler.handleDashboard)
	admin.GET("/recap", handler.handleRecap)
	admin.PUT("/sync/offline", handler.handleSetOffline)
	admin.POST("/master/reset", handler.handleResetMaster)
	admin.POST("/master/:unit/officers", handler.handleAddOfficers)
	admin.DELETE("/master/:unit/officers/:name", handler.handleDeleteOfficer)
	admin.POST("/master/:unit/feeders", handler.handleAddFeeders)
	admin.DELETE("/master/:unit/feeders/:feeder", handler.handleDeleteFeeder)
	admin.POST("/master/:unit/feeders/:feeder/keypoints", handler.handleAddKeypoints)
	admin.DELETE("/master/:unit/feeders/:feeder/keypoints/:keypoint", handler.handleDeleteKeypoint)

	return router, nil
}

type httpHandler struct {
	sessions   *session.Manager
	reconciler *reports.Reconciler
	sync       Synchronizer
	master     *masterdata.Service
	realtime   *RealtimeDispatcher
	ids        reports.IDProvider
	clock      func() time.Time
	logger     *zap.Logger
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "offline": h.sync.Offline()})
}

// authorizeRequest accepts a bearer header, the session cookie, or an access_token query parameter for
// EventSource clients.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	var (
		current session.Session
		err     error
	)
	if token := strings.TrimSpace(c.Query("access_token")); token != "" && c.GetHeader("Authorization") == "" {
		current, err = h.sessions.ValidateToken(token)
	} else {
		current, err = h.sessions.ValidateRequest(c.Request)
	}
	if err != nil {
		if errors.Is(err, session.ErrMissingToken) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
			return
		}
		if errors.Is(err, session.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(sessionContextKey, current)
	c.Next()
}

func requireAdmin(c *gin.Context) {
	if !currentSession(c).IsAdmin() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

func currentSession(c *gin.Context) session.Session {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return session.Session{}
	}
	current, _ := value.(session.Session)
	return current
}

// respondError maps domain errors onto HTTP statuses. Coded errors also expose their code.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status, reason := classifyError(err)
	body := gin.H{"error": reason}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		body["code"] = coded.Code()
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, body)
}

func classifyError(err error) (int, string) {
	var remoteErr *remote.ServiceError
	switch {
	case errors.Is(err, syncer.ErrOffline):
		return http.StatusConflict, "offline"
	case errors.Is(err, syncer.ErrNoRemote):
		return http.StatusConflict, "no_remote"
	case errors.Is(err, remote.ErrEndpointMisconfigured):
		return http.StatusBadGateway, "endpoint_misconfigured"
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway, "remote_unavailable"
	case errors.Is(err, masterdata.ErrUnknownUnit),
		errors.Is(err, masterdata.ErrUnknownFeeder),
		errors.Is(err, masterdata.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, masterdata.ErrNoNames):
		return http.StatusBadRequest, "no_names"
	case errors.Is(err, reports.ErrMissingUnit),
		errors.Is(err, reports.ErrInvalidReportID),
		errors.Is(err, reports.ErrInvalidTimestamp),
		errors.Is(err, reports.ErrInvalidDate):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, session.ErrInvalidRole),
		errors.Is(err, session.ErrMissingUnit),
		errors.Is(err, session.ErrMissingOfficers):
		return http.StatusBadRequest, "invalid_session"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
