package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoointerview/internal/services"
)

type SessionHandler struct {
	svc services.SessionService
	now func() time.Time
}

func NewSessionHandler(svc services.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc, now: time.Now}
}

func (h *SessionHandler) Get(c *gin.Context) {
	sum, err := h.svc.Get(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	id := c.Param("session_id")
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session deleted", "session_id": id})
}

func (h *SessionHandler) Health(c *gin.Context) {
	now := h.now()
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": float64(now.UnixNano()) / 1e9,
	})
}
