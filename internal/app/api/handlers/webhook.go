package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codoplex/paybridge/internal/app/service/webhook"
	"github.com/codoplex/paybridge/pkg/logctx"
)

// WebhookReconciler processes one raw provider delivery.
type WebhookReconciler interface {
	Handle(ctx context.Context, payload []byte, sigHeader string) (*webhook.Result, error)
}

// @Summary      Stripe Webhook
// @Description  Receives Stripe events. The raw body is verified against the Stripe-Signature header before any processing.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Router       /webhook/stripe [post]
func ApiStripeWebhook(svc WebhookReconciler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}

		res, err := svc.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			if errors.Is(err, webhook.ErrSignature) {
				logctx.FromGin(c, log).Warnw("webhook_signature_rejected")
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
				return
			}
			logctx.FromGin(c, log).Errorw("webhook_storage_failed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		// handler failures are recorded on the event row; the delivery is
		// still acked so the provider stops retrying
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": res.Duplicate})
	}
}

func RegisterWebhookRoutes(r gin.IRouter, svc WebhookReconciler, log *zap.SugaredLogger) {
	r.POST("/stripe", ApiStripeWebhook(svc, log))
}
