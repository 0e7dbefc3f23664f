package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/offline-payment-sync/internal/api_gateway/service"
	"github.com/offline-payment-sync/internal/domain/audit"
	"github.com/offline-payment-sync/internal/domain/payment"
	"github.com/offline-payment-sync/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TypedResponse is a generic version of Response for decoding test payloads
type TypedResponse[T any] struct {
	Data          T          `json:"data"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Meta          *MetaInfo  `json:"meta,omitempty"`
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Submit(ctx context.Context, req *service.SubmitPaymentRequest) (*service.SubmitResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SubmitResult), args.Error(1)
}

func (m *MockPaymentService) GetTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockPaymentService) ListTransactions(ctx context.Context, page, perPage int) ([]*payment.Transaction, int64, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*payment.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentService) RetryTransaction(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockPaymentService) SyncNow(ctx context.Context) (payment.SyncSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(payment.SyncSummary), args.Error(1)
}

func (m *MockPaymentService) RecentSyncPasses(ctx context.Context, limit int) ([]*audit.SyncPass, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.SyncPass), args.Error(1)
}

func newPaymentRouter(svc service.PaymentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	h := NewPaymentHandler(logger, svc)

	router := gin.New()
	router.POST("/transactions", h.Create)
	router.POST("/transactions/sync", h.Sync)
	router.POST("/transactions/:id/retry", h.Retry)
	router.GET("/transactions/:id", h.GetByID)
	router.GET("/transactions", h.List)
	router.GET("/sync-passes", h.SyncPasses)
	return router
}

func doRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewBuffer(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func pendingTransaction() *payment.Transaction {
	return &payment.Transaction{
		ID:         uuid.New(),
		Amount:     1000,
		Currency:   "USD",
		MerchantID: "m1",
		CustomerID: "c1",
		Status:     shared.TransactionStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestPaymentHandler_Create(t *testing.T) {
	body, _ := json.Marshal(CreateTransactionRequest{Amount: 1000, Currency: "usd", MerchantID: "m1", CustomerID: "c1"})

	t.Run("SettledImmediately", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)

		tx := pendingTransaction()
		syncedAt := time.Now().UTC()
		tx.Status = shared.TransactionStatusCompleted
		tx.SyncedAt = &syncedAt
		tx.ProviderReference = "pi_1"
		svc.On("Submit", mock.Anything, mock.MatchedBy(func(req *service.SubmitPaymentRequest) bool {
			return req.Amount == 1000 && req.Currency == "usd" && req.MerchantID == "m1"
		})).Return(&service.SubmitResult{SettledImmediately: true, Record: tx}, nil)

		rr := doRequest(router, http.MethodPost, "/transactions", body)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var resp TypedResponse[SubmitResponse]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Data.SettledImmediately)
		assert.Equal(t, "completed", resp.Data.Record.Status)
		assert.Equal(t, "pi_1", resp.Data.Record.ProviderReference)
		assert.NotEmpty(t, resp.Data.Record.SyncedAt)
		svc.AssertExpectations(t)
	})

	t.Run("Queued", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)
		tx := pendingTransaction()
		svc.On("Submit", mock.Anything, mock.Anything).Return(&service.SubmitResult{Record: tx}, nil)

		rr := doRequest(router, http.MethodPost, "/transactions", body)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var resp TypedResponse[SubmitResponse]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.False(t, resp.Data.SettledImmediately)
		assert.Equal(t, "pending", resp.Data.Record.Status)
		assert.Empty(t, resp.Data.Record.SyncedAt)
	})

	t.Run("InvalidRequestBody", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)

		rr := doRequest(router, http.MethodPost, "/transactions", []byte(`{"invalid`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("MissingField", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)

		rr := doRequest(router, http.MethodPost, "/transactions", []byte(`{"amount":1000,"currency":"USD","merchant_id":"m1"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})

	t.Run("DomainValidationError", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)
		svc.On("Submit", mock.Anything, mock.Anything).
			Return(nil, payment.ValidationError{Field: "currency", Reason: "must be a 3-letter code"})

		rr := doRequest(router, http.MethodPost, "/transactions", body)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		assert.Equal(t, "currency", resp.Error.Field)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)
		svc.On("Submit", mock.Anything, mock.Anything).
			Return(nil, &payment.StoreFailure{Op: "create", Err: errors.New("disk full")})

		rr := doRequest(router, http.MethodPost, "/transactions", body)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "disk full")
	})
}

func TestPaymentHandler_Sync(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)
		svc.On("SyncNow", mock.Anything).Return(payment.SyncSummary{Total: 3, Successful: 2, Failed: 1}, nil)

		rr := doRequest(router, http.MethodPost, "/transactions/sync", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp TypedResponse[payment.SyncSummary]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, payment.SyncSummary{Total: 3, Successful: 2, Failed: 1}, resp.Data)
	})

	t.Run("StoreFailure", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)
		svc.On("SyncNow", mock.Anything).
			Return(payment.SyncSummary{}, &payment.StoreFailure{Op: "list eligible", Err: errors.New("disk full")})

		rr := doRequest(router, http.MethodPost, "/transactions/sync", nil)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestPaymentHandler_Retry(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)
		tx := pendingTransaction()
		svc.On("RetryTransaction", mock.Anything, tx.ID).Return(tx, nil)

		rr := doRequest(router, http.MethodPost, "/transactions/"+tx.ID.String()+"/retry", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp TypedResponse[TransactionResponse]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, tx.ID.String(), resp.Data.ID)
		assert.Equal(t, 0, resp.Data.RetryCount)
	})

	t.Run("NotFailed", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)
		id := uuid.New()
		svc.On("RetryTransaction", mock.Anything, id).
			Return(nil, payment.ErrInvalidState{TransactionID: id, From: shared.TransactionStatusCompleted, Event: payment.EventManualRetry})

		rr := doRequest(router, http.MethodPost, "/transactions/"+id.String()+"/retry", nil)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("UnknownID", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)
		id := uuid.New()
		svc.On("RetryTransaction", mock.Anything, id).Return(nil, payment.ErrTransactionNotFound{TransactionID: id})

		rr := doRequest(router, http.MethodPost, "/transactions/"+id.String()+"/retry", nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("MalformedID", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)

		rr := doRequest(router, http.MethodPost, "/transactions/not-a-uuid/retry", nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "RetryTransaction", mock.Anything, mock.Anything)
	})
}

func TestPaymentHandler_GetByID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)
		tx := pendingTransaction()
		svc.On("GetTransaction", mock.Anything, tx.ID).Return(tx, nil)

		rr := doRequest(router, http.MethodGet, "/transactions/"+tx.ID.String(), nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp TypedResponse[TransactionResponse]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, tx.ID.String(), resp.Data.ID)
		assert.Equal(t, int64(1000), resp.Data.Amount)
		assert.Equal(t, "USD", resp.Data.Currency)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)
		id := uuid.New()
		svc.On("GetTransaction", mock.Anything, id).Return(nil, payment.ErrTransactionNotFound{TransactionID: id})

		rr := doRequest(router, http.MethodGet, "/transactions/"+id.String(), nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestPaymentHandler_List(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)
		page := []*payment.Transaction{pendingTransaction(), pendingTransaction()}
		svc.On("ListTransactions", mock.Anything, 2, 2).Return(page, int64(5), nil)

		rr := doRequest(router, http.MethodGet, "/transactions?page=2&per_page=2", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp TypedResponse[[]TransactionResponse]
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Len(t, resp.Data, 2)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 2, resp.Meta.Page)
		assert.Equal(t, 3, resp.Meta.TotalPages)
		assert.Equal(t, 5, resp.Meta.TotalItems)
	})

	t.Run("PerPageTooLarge", func(t *testing.T) {
		svc := new(MockPaymentService)
		router := newPaymentRouter(svc)

		rr := doRequest(router, http.MethodGet, "/transactions?per_page=500", nil)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "ListTransactions", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPaymentHandler_SyncPasses(t *testing.T) {
	svc := new(MockPaymentService)
	router := newPaymentRouter(svc)
	pass := audit.NewSyncPass(shared.SyncTriggerConnectivityRestored, time.Now())
	pass.FinishedAt = time.Now().UTC()
	pass.Summary = payment.SyncSummary{Total: 1, Successful: 1}
	svc.On("RecentSyncPasses", mock.Anything, 20).Return([]*audit.SyncPass{pass}, nil)

	rr := doRequest(router, http.MethodGet, "/sync-passes", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp TypedResponse[[]SyncPassResponse]
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, pass.ID, resp.Data[0].ID)
	assert.Equal(t, string(shared.SyncTriggerConnectivityRestored), resp.Data[0].Trigger)
	assert.Equal(t, 1, resp.Data[0].Summary.Successful)
}
