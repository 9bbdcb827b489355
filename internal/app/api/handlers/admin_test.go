package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codoplex/paybridge/internal/app/service/access"
	"github.com/codoplex/paybridge/internal/app/service/ledger"
	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/pkg/types"
)

type stubLedgerAdmin struct {
	entry       *models.WhitelistEntry
	addReq      *ledger.AddWhitelistRequest
	revokeFound bool
	listRes     *ledger.ListWhitelistResponse
	scanRes     *ledger.ScanTransactionsResponse
	stats       *ledger.Stats
}

func (s *stubLedgerAdmin) AddWhitelistEntry(_ context.Context, req *ledger.AddWhitelistRequest) (*models.WhitelistEntry, error) {
	s.addReq = req
	return s.entry, nil
}

func (s *stubLedgerAdmin) RevokeWhitelistEntry(context.Context, string, string) (bool, error) {
	return s.revokeFound, nil
}

func (s *stubLedgerAdmin) ListWhitelist(context.Context, *ledger.ListWhitelistRequest) (*ledger.ListWhitelistResponse, error) {
	return s.listRes, nil
}

func (s *stubLedgerAdmin) ScanTransactions(context.Context, *ledger.ScanTransactionsRequest) (*ledger.ScanTransactionsResponse, error) {
	return s.scanRes, nil
}

func (s *stubLedgerAdmin) Stats(context.Context) (*ledger.Stats, error) {
	return s.stats, nil
}

type stubResolver struct {
	grant *access.Grant
	query access.Query
}

func (s *stubResolver) Resolve(_ context.Context, q access.Query) (*access.Grant, error) {
	s.query = q
	return s.grant, nil
}

func adminRouter(led LedgerAdmin, res AccessResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r.Group("/api/v1/admin"), led, res)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestApiAddWhitelist(t *testing.T) {
	led := &stubLedgerAdmin{entry: &models.WhitelistEntry{ID: "wl-1", WeeblyUserID: "user-1", ProductID: "prod-1"}}
	r := adminRouter(led, &stubResolver{})

	w := postJSON(t, r, "/api/v1/admin/whitelist/add", AddWhitelistRequest{
		WeeblyUserID: "user-1",
		ProductID:    "prod-1",
		ExpiryDate:   "2027-01-31",
		Reason:       "beta tester",
		GrantedBy:    "ops",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeEnvelope(t, w).Code)

	require.NotNil(t, led.addReq)
	assert.Equal(t, "user-1", led.addReq.WeeblyUserID)
	require.NotNil(t, led.addReq.ExpiryDate)
	assert.Equal(t, time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC), led.addReq.ExpiryDate.UTC())
}

func TestApiAddWhitelistBadExpiry(t *testing.T) {
	r := adminRouter(&stubLedgerAdmin{}, &stubResolver{})

	w := postJSON(t, r, "/api/v1/admin/whitelist/add", AddWhitelistRequest{
		WeeblyUserID: "user-1",
		ProductID:    "prod-1",
		ExpiryDate:   "31/01/2027",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40000, decodeEnvelope(t, w).Code)
}

func TestApiRevokeWhitelist(t *testing.T) {
	led := &stubLedgerAdmin{revokeFound: true}
	r := adminRouter(led, &stubResolver{})

	w := postJSON(t, r, "/api/v1/admin/whitelist/revoke",
		gin.H{"weebly_user_id": "user-1", "product_id": "prod-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decodeEnvelope(t, w).Code)

	led.revokeFound = false
	w = postJSON(t, r, "/api/v1/admin/whitelist/revoke",
		gin.H{"weebly_user_id": "user-ghost", "product_id": "prod-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40400, decodeEnvelope(t, w).Code)
}

func TestApiListTransactions(t *testing.T) {
	led := &stubLedgerAdmin{scanRes: &ledger.ScanTransactionsResponse{
		Items: []*models.Transaction{{
			ID:           "tx-1",
			Type:         types.TransactionTypeOneTime,
			WeeblyUserID: "user-1",
			ProductID:    "prod-1",
			Status:       types.TransactionStatusSucceeded,
		}},
		Total: 1,
	}}
	r := adminRouter(led, &stubResolver{})

	w := postJSON(t, r, "/api/v1/admin/list_transactions", ledger.ScanTransactionsRequest{Size: 10})
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, 0, env.Code)

	var res ListTransactionsResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, int64(1), res.Total)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "tx-1", res.Items[0].ID)
}

func TestApiResolveAccess(t *testing.T) {
	res := &stubResolver{grant: &access.Grant{Source: types.AccessSourceWhitelist, RecordID: "wl-1"}}
	r := adminRouter(&stubLedgerAdmin{}, res)

	w := postJSON(t, r, "/api/v1/admin/resolve_access",
		access.Query{WeeblyUserID: "user-1", ProductID: "prod-1"})
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, "user-1", res.query.WeeblyUserID)

	var grant access.Grant
	require.NoError(t, json.Unmarshal(env.Data, &grant))
	assert.Equal(t, types.AccessSourceWhitelist, grant.Source)
}

func TestApiResolveAccessMissingFields(t *testing.T) {
	r := adminRouter(&stubLedgerAdmin{}, &stubResolver{})

	w := postJSON(t, r, "/api/v1/admin/resolve_access", access.Query{ProductID: "prod-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40000, decodeEnvelope(t, w).Code)
}

func TestApiStats(t *testing.T) {
	led := &stubLedgerAdmin{stats: &ledger.Stats{TransactionCount: 42, ActiveSubscriptions: 7}}
	r := adminRouter(led, &stubResolver{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, 0, env.Code)

	var stats ledger.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(42), stats.TransactionCount)
	assert.Equal(t, int64(7), stats.ActiveSubscriptions)
}
