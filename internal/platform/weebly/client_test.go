package weebly

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codoplex/paybridge/pkg/config"
)

func testClient(baseURL string) *Client {
	cfg := &config.Config{}
	cfg.Weebly.APIBase = baseURL
	cfg.Weebly.TimeoutSeconds = 5
	return New(cfg, zap.NewNop().Sugar())
}

func TestNotifyPayment(t *testing.T) {
	var gotToken string
	var gotBody PaymentNotification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/admin/app/payment_notifications", r.URL.Path)
		gotToken = r.Header.Get("X-Weebly-Access-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	err := c.NotifyPayment(context.Background(), "token-1", &PaymentNotification{
		Name:          "Pro Plan",
		Method:        "purchase",
		Kind:          "single",
		Term:          "forever",
		GrossAmount:   20.00,
		PayableAmount: 5.74,
		Currency:      "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, "token-1", gotToken)
	assert.Equal(t, "Pro Plan", gotBody.Name)
	assert.InDelta(t, 5.74, gotBody.PayableAmount, 0.001)
}

func TestNotifyPaymentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := testClient(srv.URL).NotifyPayment(context.Background(), "bad", &PaymentNotification{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestUserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/user", r.URL.Path)
		require.Equal(t, "token-1", r.Header.Get("X-Weebly-Access-Token"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]string{"user_id": "u1", "email": "a@b.com", "name": "Ann"},
		})
	}))
	defer srv.Close()

	info, err := testClient(srv.URL).UserInfo(context.Background(), "token-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", info.UserID)
	assert.Equal(t, "a@b.com", info.Email)
}

func TestUserInfoRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).UserInfo(context.Background(), "bad")
	assert.Error(t, err)
}

func TestNotifyPaymentContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := testClient(srv.URL).NotifyPayment(ctx, "token", &PaymentNotification{})
	assert.Error(t, err)
}
