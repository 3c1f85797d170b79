package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramWebhook accepts updates at /webhook/telegram/:secret. The update
// is handled asynchronously; Telegram only needs the 200.
func (h *Handler) TelegramWebhook(c *gin.Context) {
	if !SecretMatches(c.Param("secret"), h.webhookSecret) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update"})
		return
	}

	h.telegram.HandleUpdate(c.Request.Context(), update)
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
