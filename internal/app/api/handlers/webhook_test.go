package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codoplex/paybridge/internal/app/service/webhook"
)

type stubReconciler struct {
	res     *webhook.Result
	err     error
	payload []byte
	sig     string
}

func (s *stubReconciler) Handle(_ context.Context, payload []byte, sigHeader string) (*webhook.Result, error) {
	s.payload = payload
	s.sig = sigHeader
	return s.res, s.err
}

func webhookRouter(svc WebhookReconciler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterWebhookRoutes(r.Group("/webhook"), svc, zap.NewNop().Sugar())
	return r
}

func TestApiStripeWebhookOK(t *testing.T) {
	stub := &stubReconciler{res: &webhook.Result{EventID: "evt_1"}}
	r := webhookRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true,"duplicate":false}`, w.Body.String())
	assert.Equal(t, []byte(`{"id":"evt_1"}`), stub.payload)
	assert.Equal(t, "t=1,v1=abc", stub.sig)
}

func TestApiStripeWebhookDuplicate(t *testing.T) {
	stub := &stubReconciler{res: &webhook.Result{EventID: "evt_1", Duplicate: true}}
	r := webhookRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true,"duplicate":true}`, w.Body.String())
}

func TestApiStripeWebhookBadSignature(t *testing.T) {
	stub := &stubReconciler{err: webhook.ErrSignature}
	r := webhookRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApiStripeWebhookStorageFailure(t *testing.T) {
	stub := &stubReconciler{err: errors.New("db down")}
	r := webhookRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// the provider retries only on non-2xx; storage failures must not ack
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestApiStripeWebhookHandlerErrorStillAcks(t *testing.T) {
	stub := &stubReconciler{res: &webhook.Result{EventID: "evt_1", HandlerErr: errors.New("unknown subscription")}}
	r := webhookRouter(stub)

	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}
