package weebly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/codoplex/paybridge/pkg/config"
	"github.com/codoplex/paybridge/pkg/logctx"
)

const accessTokenHeader = "X-Weebly-Access-Token"

// PaymentNotification is the payout report posted to the platform after a
// completed sale. Amounts are major units.
type PaymentNotification struct {
	Name          string  `json:"name"`
	Method        string  `json:"method"`
	Kind          string  `json:"kind"`
	Term          string  `json:"term"`
	GrossAmount   float64 `json:"gross_amount"`
	PayableAmount float64 `json:"payable_amount"`
	Currency      string  `json:"currency"`
}

type UserInfo struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Client talks to the Weebly developer API on behalf of an app user. Every
// call authenticates with the per-user OAuth access token.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.SugaredLogger
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Client {
	timeout := time.Duration(cfg.Weebly.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.Weebly.APIBase,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// NotifyPayment reports a sale. Any non-2xx response is an error; the caller
// keeps its retry state and may try again later.
func (c *Client) NotifyPayment(ctx context.Context, accessToken string, n *PaymentNotification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal payment notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/admin/app/payment_notifications", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessTokenHeader, accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("payment notification request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logctx.FromCtx(ctx, c.log).Warnw("weebly_notify_rejected", "status", resp.StatusCode, "body", string(snippet))
		return fmt.Errorf("payment notification rejected: status %d", resp.StatusCode)
	}
	return nil
}

// UserInfo fetches the profile of the token's owner.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(accessTokenHeader, accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info rejected: status %d", resp.StatusCode)
	}
	var wrapper struct {
		User UserInfo `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &wrapper.User, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
