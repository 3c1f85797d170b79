package http

import (
	"errors"
	"net/http"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/infrastructure"
	"github.com/gin-gonic/gin"
)

// GetWhatsAppQR returns the pending login code as PNG.
func (h *Handler) GetWhatsAppQR(c *gin.Context) {
	png, err := h.whatsapp.QRPNG(256)
	if errors.Is(err, infrastructure.ErrNoQRCode) {
		if h.whatsapp.IsLoggedIn() {
			c.String(http.StatusOK, "Already logged in")
			return
		}
		c.String(http.StatusAccepted, "QR code not yet available. Please wait...")
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) GetWhatsAppStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"logged_in": h.whatsapp.IsLoggedIn(),
		"connected": h.whatsapp.IsConnected(),
	})
}

// LogoutWhatsApp unlinks the device; a new QR code follows.
func (h *Handler) LogoutWhatsApp(c *gin.Context) {
	if err := h.whatsapp.Logout(c.Request.Context()); err != nil {
		h.logger.Warn("whatsapp logout", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}
