package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"custody_wallet/internal/api"
	"custody_wallet/internal/domain"
	"custody_wallet/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRouter wires the transaction endpoints over an in-memory store with
// a stub auth middleware injecting the given user id.
func newTestRouter(t *testing.T, balance string) (*gin.Engine, *ledger.Service, *ledger.MemStore, uint) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := ledger.NewMemStore()
	userID := store.AddUser(domain.User{
		Username: "alice",
		Role:     "user",
		Status:   domain.UserApproved,
		Balance:  decimal.RequireFromString(balance),
	})
	svc := ledger.NewService(store)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID) // Stub for the JWT middleware
		c.Next()
	})
	r.POST("/wallet/transactions", api.CreateTransactionHandler(svc, nil))
	r.GET("/wallet/transactions", api.GetTransactionHistoryHandler(svc, nil))
	r.POST("/admin/transactions/:id/approve", api.ApproveTransactionHandler(svc, nil))
	r.POST("/admin/transactions/:id/deny", api.DenyTransactionHandler(svc, nil))
	return r, svc, store, userID
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreateTransactionEndpoint(t *testing.T) {
	r, _, _, _ := newTestRouter(t, "100")

	w := doJSON(t, r, http.MethodPost, "/wallet/transactions", gin.H{
		"kind":   "deposit",
		"amount": "25",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	txn := body["transaction"].(map[string]any)
	assert.Equal(t, "deposit", txn["kind"])
	assert.Equal(t, "pending", txn["status"])
}

func TestCreateTransactionEndpointValidation(t *testing.T) {
	r, _, store, userID := newTestRouter(t, "100")

	cases := []struct {
		name   string
		body   gin.H
		reason string
	}{
		{"unknown kind", gin.H{"kind": "refund", "amount": "5"}, "validation"},
		{"missing amount", gin.H{"kind": "deposit"}, "validation"},
		{"negative amount", gin.H{"kind": "deposit", "amount": "-5"}, "validation"},
		{"withdraw without address", gin.H{"kind": "withdraw", "amount": "5"}, "validation"},
		{"withdraw over balance", gin.H{"kind": "withdraw", "amount": "500", "address": "addr123456"}, "insufficient_funds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/wallet/transactions", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.reason, decodeBody(t, w)["reason"])
		})
	}

	// Nothing got through to the store
	user, err := store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(100)))
}

func TestApproveTransactionEndpoint(t *testing.T) {
	r, svc, _, userID := newTestRouter(t, "50")

	txn, err := svc.Create(context.Background(), userID, domain.TxDeposit, decimal.NewFromInt(25), "")
	require.NoError(t, err)
	path := fmt.Sprintf("/admin/transactions/%d/approve", txn.ID)

	w := doJSON(t, r, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "complete", body["transaction"].(map[string]any)["status"])
	assert.Equal(t, "75", body["balance"])

	// Second approval of the same transaction conflicts
	w = doJSON(t, r, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_state", decodeBody(t, w)["reason"])
}

func TestDenyTransactionEndpointRefundsWithdrawal(t *testing.T) {
	r, svc, store, userID := newTestRouter(t, "100")

	_, err := svc.Create(context.Background(), userID, domain.TxWithdraw, decimal.NewFromInt(40), "addr123456")
	require.NoError(t, err)
	user, err := store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, user.Balance.Equal(decimal.NewFromInt(60)))

	w := doJSON(t, r, http.MethodPost, "/admin/transactions/1/deny", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "failed", body["transaction"].(map[string]any)["status"])
	assert.Equal(t, "100", body["balance"])
}

func TestDecisionEndpointsRejectBadIDs(t *testing.T) {
	r, _, _, _ := newTestRouter(t, "100")

	w := doJSON(t, r, http.MethodPost, "/admin/transactions/abc/approve", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/admin/transactions/42/approve", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeBody(t, w)["reason"])

	w = doJSON(t, r, http.MethodPost, "/admin/transactions/42/deny", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransactionHistoryEndpoint(t *testing.T) {
	r, svc, _, userID := newTestRouter(t, "100")

	for i := 1; i <= 3; i++ {
		_, err := svc.Create(context.Background(), userID, domain.TxDeposit, decimal.NewFromInt(int64(i)), "")
		require.NoError(t, err)
	}

	w := doJSON(t, r, http.MethodGet, "/wallet/transactions?page=1&page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 2, body["total_pages"])
	txns := body["transactions"].([]any)
	require.Len(t, txns, 2)
	// Newest first: the last submitted amount comes back first
	assert.Equal(t, "3", txns[0].(map[string]any)["amount"])
	assert.Equal(t, "2", txns[1].(map[string]any)["amount"])
}
