package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler serves /health.
type HealthHandler struct {
	provider ProviderStatus
}

func (h *HealthHandler) Routes() []string { return []string{"/health"} }

func (h *HealthHandler) Register(r gin.IRouter) {
	r.GET("/health", func(c *gin.Context) {
		provider := "missing_credentials"
		if h.provider != nil && h.provider.Configured() {
			provider = "configured"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": provider})
	})
}
