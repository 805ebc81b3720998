package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/plnes-bukittinggi/yandal-patrol/internal/masterdata"
)

// namesPayload accepts a list of names, free text separated by commas or newlines, or both.
type namesPayload struct {
	Names []string `json:"names"`
	Text  string   `json:"text"`
}

func (p namesPayload) all() []string {
	names := append([]string(nil), p.Names...)
	return append(names, masterdata.ParseNames(p.Text)...)
}

func (h *httpHandler) handleGetMaster(c *gin.Context) {
	catalog := h.master.Catalog()
	c.JSON(http.StatusOK, gin.H{"units": catalog.Units(), "master": catalog, "unpublished": h.master.Unpublished()})
}

func (h *httpHandler) handleResetMaster(c *gin.Context) {
	h.deleteEntry(c, h.master.ResetDefaults(c.Request.Context()))
}

func (h *httpHandler) handleAddOfficers(c *gin.Context) {
	h.addNames(c, func(names []string) ([]string, error) {
		return h.master.AddOfficers(c.Request.Context(), c.Param("unit"), names)
	})
}

func (h *httpHandler) handleDeleteOfficer(c *gin.Context) {
	h.deleteEntry(c, h.master.DeleteOfficer(c.Request.Context(), c.Param("unit"), c.Param("name")))
}

func (h *httpHandler) handleAddFeeders(c *gin.Context) {
	h.addNames(c, func(names []string) ([]string, error) {
		return h.master.AddFeeders(c.Request.Context(), c.Param("unit"), names)
	})
}

func (h *httpHandler) handleDeleteFeeder(c *gin.Context) {
	h.deleteEntry(c, h.master.DeleteFeeder(c.Request.Context(), c.Param("unit"), c.Param("feeder")))
}

func (h *httpHandler) handleAddKeypoints(c *gin.Context) {
	h.addNames(c, func(names []string) ([]string, error) {
		return h.master.AddKeypoints(c.Request.Context(), c.Param("unit"), c.Param("feeder"), names)
	})
}

func (h *httpHandler) handleDeleteKeypoint(c *gin.Context) {
	h.deleteEntry(c, h.master.DeleteKeypoint(c.Request.Context(), c.Param("unit"), c.Param("feeder"), c.Param("keypoint")))
}

func (h *httpHandler) addNames(c *gin.Context, add func([]string) ([]string, error)) {
	var request namesPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	added, err := add(request.all())
	if err != nil && !errors.Is(err, masterdata.ErrPublishFailed) {
		h.respondError(c, err)
		return
	}
	h.respondCatalog(c, gin.H{"added": added}, err)
}

func (h *httpHandler) deleteEntry(c *gin.Context, err error) {
	if err != nil && !errors.Is(err, masterdata.ErrPublishFailed) {
		h.respondError(c, err)
		return
	}
	h.respondCatalog(c, gin.H{}, err)
}

// respondCatalog returns the current catalog. A publish failure keeps the local change and is surfaced
// as a warning.
func (h *httpHandler) respondCatalog(c *gin.Context, body gin.H, publishErr error) {
	body["master"] = h.master.Catalog()
	if publishErr != nil {
		body["warning"] = "publish_failed"
	}
	c.JSON(http.StatusOK, body)
}
