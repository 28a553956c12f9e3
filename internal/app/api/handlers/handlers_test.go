package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mw "github.com/fatflowers/reconciler/internal/app/api/middleware"
	"github.com/fatflowers/reconciler/internal/app/service/purchase"
	"github.com/fatflowers/reconciler/internal/app/service/receipt"
	"github.com/fatflowers/reconciler/internal/app/service/tokenauth"
	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/internal/platform/db/dbtest"
	"github.com/fatflowers/reconciler/pkg/response"
	"github.com/fatflowers/reconciler/pkg/types"
)

type stubPurchases struct {
	err      error
	lastUser string
	lastID   string
	receipt  string
}

func (s *stubPurchases) purchase(id string) *models.Purchase {
	return &models.Purchase{ID: id, UserID: s.lastUser, ProductID: "monthly", Status: types.PurchaseStatusStarted}
}

func (s *stubPurchases) Start(_ context.Context, userID, productID string, provider types.PaymentProvider) (*models.Purchase, error) {
	s.lastUser = userID
	if s.err != nil {
		return nil, s.err
	}
	return s.purchase("p-1"), nil
}

func (s *stubPurchases) Cancel(_ context.Context, userID, purchaseID string) (*models.Purchase, error) {
	s.lastUser, s.lastID = userID, purchaseID
	if s.err != nil {
		return nil, s.err
	}
	p := s.purchase(purchaseID)
	p.Status = types.PurchaseStatusCanceled
	return p, nil
}

func (s *stubPurchases) Complete(_ context.Context, userID, purchaseID, receiptData string) (*models.Purchase, error) {
	s.lastUser, s.lastID, s.receipt = userID, purchaseID, receiptData
	if s.err != nil {
		return nil, s.err
	}
	p := s.purchase(purchaseID)
	p.Status = types.PurchaseStatusCompleted
	return p, nil
}

func (s *stubPurchases) Get(_ context.Context, userID, purchaseID string) (*models.Purchase, error) {
	s.lastUser, s.lastID = userID, purchaseID
	if s.err != nil {
		return nil, s.err
	}
	return s.purchase(purchaseID), nil
}

func (s *stubPurchases) List(_ context.Context, userID string) ([]*models.Purchase, error) {
	s.lastUser = userID
	return []*models.Purchase{s.purchase("p-1"), s.purchase("p-2")}, s.err
}

func (s *stubPurchases) History(_ context.Context, userID, purchaseID string) ([]*models.PurchaseHistory, error) {
	s.lastUser, s.lastID = userID, purchaseID
	if s.err != nil {
		return nil, s.err
	}
	return []*models.PurchaseHistory{{PurchaseID: purchaseID, Status: types.PurchaseStatusStarted}}, nil
}

func newPurchaseRouter(svc PurchaseAPI) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1/purchases")
	g.Use(mw.UserMiddleware())
	RegisterPurchaseRoutes(g, svc, zap.NewNop().Sugar())
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(mw.UserHeader, "alice")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.APIResponse[json.RawMessage] {
	t.Helper()
	var out response.APIResponse[json.RawMessage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestPurchaseRoutes_HappyPath(t *testing.T) {
	svc := &stubPurchases{}
	r := newPurchaseRouter(svc)

	w := do(r, http.MethodPost, "/api/v1/purchases", map[string]string{"product_id": "monthly", "provider_id": "apple"})
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, response.APIResponseCodeOK, out.Code)
	assert.Contains(t, string(out.Data), `"id":"p-1"`)
	assert.Equal(t, "alice", svc.lastUser)

	w = do(r, http.MethodPost, "/api/v1/purchases/p-1/complete", map[string]string{"receipt": "r-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p-1", svc.lastID)
	assert.Equal(t, "r-1", svc.receipt)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
	assert.NotContains(t, w.Body.String(), "r-1")

	w = do(r, http.MethodGet, "/api/v1/purchases", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "p-2")

	w = do(r, http.MethodGet, "/api/v1/purchases/p-9/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p-9", svc.lastID)

	w = do(r, http.MethodPost, "/api/v1/purchases/p-3/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"canceled"`)
}

func TestPurchaseRoutes_ValidatesBody(t *testing.T) {
	r := newPurchaseRouter(&stubPurchases{})
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/purchases", map[string]string{"product_id": "monthly"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/v1/purchases/p-1/complete", map[string]string{}).Code)
}

func TestPurchaseRoutes_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   response.APIResponseCode
	}{
		{purchase.ErrPurchaseNotFound, http.StatusNotFound, response.APIResponseCodeNotFound},
		{purchase.ErrAlreadyPurchased, http.StatusConflict, response.APIResponseCodeConflict},
		{purchase.ErrInvalidCompleteTarget, http.StatusConflict, response.APIResponseCodeConflict},
		{purchase.ErrInvalidCancelTarget, http.StatusConflict, response.APIResponseCodeConflict},
		{purchase.ErrConcurrentUpdate, http.StatusConflict, response.APIResponseCodeConflict},
		{tokenauth.ErrTokenBelongsToOtherUser, http.StatusForbidden, response.APIResponseCodeForbidden},
		{fmt.Errorf("%w: status 21199", receipt.ErrUnexpectedStore), http.StatusBadGateway, response.APIResponseCodeStoreUnavailable},
		{receipt.ErrNoCorrelationToken, http.StatusBadRequest, response.APIResponseCodeBadRequest},
		{receipt.ErrInvalidWindow, http.StatusBadRequest, response.APIResponseCodeBadRequest},
		{receipt.ErrUnknownProduct, http.StatusBadRequest, response.APIResponseCodeBadRequest},
		{errors.New("boom"), http.StatusInternalServerError, response.APIResponseCodeError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			r := newPurchaseRouter(&stubPurchases{err: tc.err})
			w := do(r, http.MethodPost, "/api/v1/purchases/p-1/complete", map[string]string{"receipt": "r"})
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decode(t, w).Code)
		})
	}
}

type stubWebhooks struct {
	body []byte
	err  error
}

func (s *stubWebhooks) HandleGoogle(_ context.Context, body []byte) error {
	s.body = body
	return s.err
}

func (s *stubWebhooks) HandleApple(_ context.Context, body []byte) error {
	s.body = body
	return s.err
}

func TestWebhookRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &stubWebhooks{}
	r := gin.New()
	RegisterWebhookRoutes(r.Group("/api/v1/webhooks"), h, 0, zap.NewNop().Sugar())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/apple", bytes.NewBufferString(`{"signedPayload":"x"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"signedPayload":"x"}`, string(h.body))

	h.err = errors.New("store unavailable")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/google", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookRoutes_BodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &stubWebhooks{}
	r := gin.New()
	RegisterWebhookRoutes(r.Group("/api/v1/webhooks"), h, 16, zap.NewNop().Sugar())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/google", strings.NewReader(strings.Repeat("x", 17))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Nil(t, h.body)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/google", strings.NewReader(`{"message":{}}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"message":{}}`, string(h.body))
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHealthRoutes(r, dbtest.Open(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
