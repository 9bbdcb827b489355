package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/codoplex/paybridge/internal/app/service/access"
	"github.com/codoplex/paybridge/internal/app/service/ledger"
	"github.com/codoplex/paybridge/internal/models"
	"github.com/codoplex/paybridge/pkg/response"
	"github.com/codoplex/paybridge/pkg/types"
)

// LedgerAdmin is the slice of the ledger the admin API needs.
type LedgerAdmin interface {
	AddWhitelistEntry(ctx context.Context, req *ledger.AddWhitelistRequest) (*models.WhitelistEntry, error)
	RevokeWhitelistEntry(ctx context.Context, weeblyUserID, productID string) (bool, error)
	ListWhitelist(ctx context.Context, req *ledger.ListWhitelistRequest) (*ledger.ListWhitelistResponse, error)
	ScanTransactions(ctx context.Context, req *ledger.ScanTransactionsRequest) (*ledger.ScanTransactionsResponse, error)
	Stats(ctx context.Context) (*ledger.Stats, error)
}

// AccessResolver answers access queries for the admin summary endpoint.
type AccessResolver interface {
	Resolve(ctx context.Context, q access.Query) (*access.Grant, error)
}

type AddWhitelistRequest struct {
	WeeblyUserID string `json:"weebly_user_id"`
	ProductID    string `json:"product_id"`
	// ExpiryDate accepts RFC3339 or YYYY-MM-DD; empty means no expiry.
	ExpiryDate string `json:"expiry_date"`
	Reason     string `json:"reason"`
	GrantedBy  string `json:"granted_by"`
}

// @Summary      Add Whitelist Entry (Admin)
// @Description  Grants manual access to a product, reactivating an existing entry if present.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body AddWhitelistRequest true "Whitelist grant"
// @Success      200  {object}  response.APIResponse[models.WhitelistEntry]
// @Router       /api/v1/admin/whitelist/add [post]
func ApiAddWhitelist(led LedgerAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddWhitelistRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		svcReq := &ledger.AddWhitelistRequest{
			WeeblyUserID: req.WeeblyUserID,
			ProductID:    req.ProductID,
			Reason:       req.Reason,
			GrantedBy:    req.GrantedBy,
		}
		if req.ExpiryDate != "" {
			t, err := parseDate(req.ExpiryDate)
			if err != nil {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid expiry_date"))
				return
			}
			svcReq.ExpiryDate = &t
		}
		entry, err := led.AddWhitelistEntry(c.Request.Context(), svcReq)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(entry))
	}
}

// @Summary      Revoke Whitelist Entry (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body object true "weebly_user_id and product_id"
// @Success      200  {object}  response.APIResponse[any]
// @Router       /api/v1/admin/whitelist/revoke [post]
func ApiRevokeWhitelist(led LedgerAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			WeeblyUserID string `json:"weebly_user_id"`
			ProductID    string `json:"product_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		found, err := led.RevokeWhitelistEntry(c.Request.Context(), req.WeeblyUserID, req.ProductID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		if !found {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, "no active entry"))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      List Whitelist Entries (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ledger.ListWhitelistRequest true "Filters and pagination"
// @Success      200  {object}  response.APIResponse[ledger.ListWhitelistResponse]
// @Router       /api/v1/admin/whitelist/list [post]
func ApiListWhitelist(led LedgerAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ledger.ListWhitelistRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := led.ListWhitelist(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type TransactionItem struct {
	ID                   string                  `json:"id"`
	Type                 types.TransactionType   `json:"type"`
	WeeblyUserID         string                  `json:"weebly_user_id"`
	WeeblySiteID         *string                 `json:"weebly_site_id"`
	ProductID            string                  `json:"product_id"`
	Amount               decimal.Decimal         `json:"amount"`
	Currency             string                  `json:"currency"`
	Status               types.TransactionStatus `json:"status"`
	StripePaymentIntentID *string                `json:"stripe_payment_intent_id"`
	StripeInvoiceID      *string                 `json:"stripe_invoice_id"`
	StripeSubscriptionID *string                 `json:"stripe_subscription_id"`
	WeeblyNotified       bool                    `json:"weebly_notified"`
	CreatedAt            time.Time               `json:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at"`
}

func toTransactionItem(m *models.Transaction) *TransactionItem {
	return &TransactionItem{
		ID:                    m.ID,
		Type:                  m.Type,
		WeeblyUserID:          m.WeeblyUserID,
		WeeblySiteID:          m.WeeblySiteID,
		ProductID:             m.ProductID,
		Amount:                m.Amount,
		Currency:              m.Currency,
		Status:                m.Status,
		StripePaymentIntentID: m.StripePaymentIntentID,
		StripeInvoiceID:       m.StripeInvoiceID,
		StripeSubscriptionID:  m.StripeSubscriptionID,
		WeeblyNotified:        m.WeeblyNotified,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

type ListTransactionsResponse struct {
	Items []*TransactionItem `json:"items"`
	Total int64              `json:"total"`
}

// @Summary      List Transactions (Admin)
// @Description  Retrieves a paginated and filterable list of ledger transactions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ledger.ScanTransactionsRequest true "Filters, pagination, and sorting"
// @Success      200  {object}  response.APIResponse[ListTransactionsResponse]
// @Router       /api/v1/admin/list_transactions [post]
func ApiListTransactions(led LedgerAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ledger.ScanTransactionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := led.ScanTransactions(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		items := lo.Map(res.Items, func(it *models.Transaction, _ int) *TransactionItem { return toTransactionItem(it) })
		c.JSON(http.StatusOK, response.OKT(&ListTransactionsResponse{Items: items, Total: res.Total}))
	}
}

// @Summary      Resolve Access (Admin)
// @Description  Runs the access resolution chain for a user and product, returning the winning grant or null.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body access.Query true "Access query"
// @Success      200  {object}  response.APIResponse[access.Grant]
// @Router       /api/v1/admin/resolve_access [post]
func ApiResolveAccess(res AccessResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q access.Query
		if err := c.ShouldBindJSON(&q); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if q.WeeblyUserID == "" || q.ProductID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing weebly_user_id or product_id"))
			return
		}
		grant, err := res.Resolve(c.Request.Context(), q)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(grant))
	}
}

// @Summary      Ledger Statistics (Admin)
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  response.APIResponse[ledger.Stats]
// @Router       /api/v1/admin/stats [get]
func ApiStats(led LedgerAdmin) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := led.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(stats))
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func RegisterAdminRoutes(r gin.IRouter, led LedgerAdmin, res AccessResolver) {
	r.POST("/whitelist/add", ApiAddWhitelist(led))
	r.POST("/whitelist/revoke", ApiRevokeWhitelist(led))
	r.POST("/whitelist/list", ApiListWhitelist(led))
	r.POST("/list_transactions", ApiListTransactions(led))
	r.POST("/resolve_access", ApiResolveAccess(res))
	r.GET("/stats", ApiStats(led))
}
