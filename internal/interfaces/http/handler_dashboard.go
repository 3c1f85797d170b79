package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStats returns today's totals across all users.
func (h *Handler) GetStats(c *gin.Context) {
	sum, err := h.dashboard.Summary()
	if err != nil {
		h.logger.Error("read usage log", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read usage log"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"variant":         h.variant,
		"users":           sum.Users,
		"questions_today": sum.QuestionsToday,
		"documents_today": sum.DocumentsToday,
		"active_sessions": sum.ActiveSessions,
		"usage_entries":   sum.UsageEntries,
		"action_counts":   sum.ActionCounts,
		"top_actions":     sum.TopActions(),
	})
}

func (h *Handler) GetQuotas(c *gin.Context) {
	c.JSON(http.StatusOK, h.dashboard.QuotaStatuses())
}

func (h *Handler) GetUserQuota(c *gin.Context) {
	userID, ok := ParseUserID(c.Param("user_id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	c.JSON(http.StatusOK, h.dashboard.UserQuota(userID))
}

// GetUsage returns the newest audit log entries.
func (h *Handler) GetUsage(c *gin.Context) {
	limit := ParseLimit(c.Query("limit"), DefaultUsageLimit, MaxUsageLimit)
	entries, err := h.dashboard.RecentUsage(limit)
	if err != nil {
		h.logger.Error("read usage log", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read usage log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
