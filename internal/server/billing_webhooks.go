package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/glowpress/keyline/internal/billing/domain"
	"go.uber.org/zap"
)

func (s *Server) HandleBillingWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.billingSvc.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		// Events for keys we never issued are acknowledged so the provider
		// does not retry them forever.
		if errors.Is(err, billingdomain.ErrUnknownLicense) {
			s.log.Warn("webhook referenced unknown license", zap.String("provider", provider))
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

type upsertProviderRequest struct {
	WebhookSecret string `json:"webhook_secret"`
}

func (s *Server) UpsertBillingProvider(c *gin.Context) {
	var req upsertProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	provider := strings.TrimSpace(c.Param("provider"))
	if err := s.billingSvc.UpsertProviderConfig(c.Request.Context(), provider, req.WebhookSecret); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"provider": strings.ToLower(provider), "configured": true})
}
