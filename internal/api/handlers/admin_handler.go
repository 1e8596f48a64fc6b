package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/utils"
)

const defaultCleanupHours = 24

// AdminHandler exposes store maintenance to operators.
type AdminHandler struct {
	sessions  services.SessionService
	interview services.InterviewService
}

func NewAdminHandler(sessions services.SessionService, interview services.InterviewService) *AdminHandler {
	return &AdminHandler{sessions: sessions, interview: interview}
}

func (h *AdminHandler) Stats(c *gin.Context) {
	st, err := h.sessions.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *AdminHandler) Cleanup(c *gin.Context) {
	const op = "AdminHandler.Cleanup"

	hours := defaultCleanupHours
	if raw := c.Query("max_age_hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "max_age_hours must be a positive integer", err))
			return
		}
		hours = n
	}

	removed, err := h.sessions.Cleanup(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed, "max_age_hours": hours})
}

func (h *AdminHandler) Reports(c *gin.Context) {
	const op = "AdminHandler.Reports"

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "limit must be an integer", err))
			return
		}
		limit = n
	}

	out, err := h.interview.Reports(c.Request.Context(), c.Query("role"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": out, "count": len(out)})
}
