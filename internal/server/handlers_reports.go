package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/reports"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/session"
)

type reportListPayload struct {
	Reports    []reports.Report   `json:"reports"`
	PendingIDs []reports.ReportID `json:"pending_ids"`
	Offline    bool               `json:"offline"`
}

type submitResponsePayload struct {
	Report     reports.Report     `json:"report"`
	PendingIDs []reports.ReportID `json:"pending_ids"`
}

func (h *httpHandler) handleListReports(c *gin.Context) {
	filters, ok := h.viewFilters(c, currentSession(c))
	if !ok {
		return
	}
	state := h.reconciler.Snapshot()
	c.JSON(http.StatusOK, reportListPayload{
		Reports:    h.reconciler.View(filters),
		PendingIDs: state.PendingIDs,
		Offline:    h.sync.Offline(),
	})
}

func (h *httpHandler) handleSubmitReport(c *gin.Context) {
	current := currentSession(c)
	if !current.CanSubmit() {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	var draft reports.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if !current.IsAdmin() {
		draft.Unit = current.Unit
		draft.Officer1 = current.Officer1
		draft.Officer2 = current.Officer2
	}
	if draft.IsEdit() {
		if existing, found := h.findReport(draft.ID); found && current.Scope() != "" && existing.Unit != current.Scope() {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
	}

	report, err := draft.Build(h.ids, h.clock(), h.reconciler.Location())
	if err != nil {
		h.respondError(c, err)
		return
	}
	state, err := h.sync.Submit(c.Request.Context(), report)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, submitResponsePayload{Report: report, PendingIDs: state.PendingIDs})
}

func (h *httpHandler) handleDashboard(c *gin.Context) {
	stats := reports.Summarize(
		h.reconciler.Snapshot().Reports,
		h.master.Catalog().Units(),
		h.clock(),
		h.reconciler.Location(),
	)
	c.JSON(http.StatusOK, stats)
}

func (h *httpHandler) handleRecap(c *gin.Context) {
	filters, ok := h.viewFilters(c, currentSession(c))
	if !ok {
		return
	}
	rows := reports.BuildRecap(h.reconciler.Snapshot().Reports, h.master.Catalog().Rosters(), filters)
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// viewFilters reads unit, from and to. The session scope always wins over the unit filter.
func (h *httpHandler) viewFilters(c *gin.Context, current session.Session) (reports.ViewFilters, bool) {
	from, err := reports.NewDateFilter(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
		return reports.ViewFilters{}, false
	}
	to, err := reports.NewDateFilter(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date"})
		return reports.ViewFilters{}, false
	}
	return reports.ViewFilters{
		UnitScope:  current.Scope(),
		UnitFilter: c.Query("unit"),
		DateFrom:   from,
		DateTo:     to,
		Location:   h.reconciler.Location(),
	}, true
}

func (h *httpHandler) findReport(rawID string) (reports.Report, bool) {
	id, err := reports.NewReportID(rawID)
	if err != nil {
		return reports.Report{}, false
	}
	for _, report := range h.reconciler.Snapshot().Reports {
		if report.ID == id {
			return report, true
		}
	}
	return reports.Report{}, false
}
