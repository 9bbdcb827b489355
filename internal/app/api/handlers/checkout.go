package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codoplex/paybridge/internal/app/service/checkout"
	"github.com/codoplex/paybridge/internal/platform/stripepay"
	"github.com/codoplex/paybridge/pkg/logctx"
)

// CheckoutOrchestrator decides between granting access and starting checkout.
type CheckoutOrchestrator interface {
	DecideAndInitiate(ctx context.Context, req *checkout.InitiateRequest) (string, error)
}

// SessionGetter resolves a hosted checkout session after the visitor returns.
type SessionGetter interface {
	GetCheckoutSession(ctx context.Context, id string) (*stripepay.CheckoutSession, error)
}

// Visitors never see internals; every failure path lands on this page.
const cancelledPage = `<!DOCTYPE html>
<html>
<head><title>Payment cancelled</title></head>
<body>
<h1>Payment not completed</h1>
<p>Your payment was cancelled or could not be completed. You have not been charged beyond any completed payment. You can close this window and try again.</p>
</body>
</html>`

func renderCancelled(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(cancelledPage))
}

// @Summary      Checkout return
// @Description  Landing endpoint for the hosted checkout. On success the paid session's stored final URL is resolved and the visitor is redirected there; everything else renders a generic cancelled page.
// @Tags         Checkout
// @Produce      html
// @Param        action     query  string  true   "success or cancel"
// @Param        session_id query  string  false  "checkout session id, required for action=success"
// @Success      302
// @Success      200
// @Router       /checkout [get]
func ApiCheckoutReturn(sp SessionGetter, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("action") != "success" {
			renderCancelled(c)
			return
		}
		sessionID := c.Query("session_id")
		if sessionID == "" {
			renderCancelled(c)
			return
		}
		sess, err := sp.GetCheckoutSession(c.Request.Context(), sessionID)
		if err != nil {
			logctx.FromGin(c, log).Errorw("checkout_session_lookup_failed", "session_id", sessionID, "err", err)
			renderCancelled(c)
			return
		}
		if sess == nil || !sess.Paid() || sess.FinalURL() == "" {
			logctx.FromGin(c, log).Warnw("checkout_return_not_paid", "session_id", sessionID)
			renderCancelled(c)
			return
		}
		c.Redirect(http.StatusFound, sess.FinalURL())
	}
}

// @Summary      Start payment flow
// @Description  Entry point after the platform OAuth handshake. Redirects to the caller's return URL when access already exists, otherwise to the hosted checkout page.
// @Tags         Checkout
// @Produce      html
// @Param        user_id      query  string  true   "platform user id"
// @Param        site_id      query  string  false  "platform site id"
// @Param        product_id   query  string  true   "product id"
// @Param        access_token query  string  false  "platform OAuth access token"
// @Param        callback_url query  string  false  "URL to return the visitor to"
// @Param        email        query  string  false  "customer email"
// @Param        name         query  string  false  "customer name"
// @Success      302
// @Router       /pay/start [get]
func ApiPayStart(orch CheckoutOrchestrator, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := &checkout.InitiateRequest{
			WeeblyUserID: c.Query("user_id"),
			WeeblySiteID: c.Query("site_id"),
			ProductID:    c.Query("product_id"),
			AccessToken:  c.Query("access_token"),
			ReturnURL:    c.Query("callback_url"),
			Email:        c.Query("email"),
			Name:         c.Query("name"),
		}
		url, err := orch.DecideAndInitiate(c.Request.Context(), req)
		if err != nil || url == "" {
			logctx.FromGin(c, log).Errorw("pay_start_failed",
				"weebly_user_id", req.WeeblyUserID, "product_id", req.ProductID, "err", err)
			renderCancelled(c)
			return
		}
		c.Redirect(http.StatusFound, url)
	}
}

func RegisterCheckoutRoutes(r gin.IRouter, orch CheckoutOrchestrator, sp SessionGetter, log *zap.SugaredLogger) {
	r.GET("/checkout", ApiCheckoutReturn(sp, log))
	r.GET("/pay/start", ApiPayStart(orch, log))
}
