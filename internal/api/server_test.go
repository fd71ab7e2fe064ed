package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/booking"
	"github.com/pittisunilkumar3/nibog-sub001/internal/callback"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
	"github.com/pittisunilkumar3/nibog-sub001/internal/reconcile"
	"github.com/pittisunilkumar3/nibog-sub001/internal/reference"
)

type mockConfirmer struct {
	ConfirmFunc func(ctx context.Context, req reconcile.Request) (*reconcile.Result, error)
}

func (m *mockConfirmer) Confirm(ctx context.Context, req reconcile.Request) (*reconcile.Result, error) {
	return m.ConfirmFunc(ctx, req)
}

type mockCallbacks struct {
	ProcessFunc func(ctx context.Context, body []byte, xVerify string) (*callback.Outcome, error)
}

func (m *mockCallbacks) Process(ctx context.Context, body []byte, xVerify string) (*callback.Outcome, error) {
	return m.ProcessFunc(ctx, body, xVerify)
}

type mockFinder struct {
	FindFunc func(ctx context.Context, ref string) (*booking.Ref, error)
}

func (m *mockFinder) FindByReference(ctx context.Context, ref string) (*booking.Ref, error) {
	return m.FindFunc(ctx, ref)
}

func newTestServer(confirmer Confirmer, callbacks CallbackProcessor, finder ReferenceFinder) *Server {
	gin.SetMode(gin.TestMode)
	return NewServer(confirmer, callbacks, finder, slog.Default())
}

func do(t *testing.T, s *Server, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var resp Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestLiveness(t *testing.T) {
	w, _ := do(t, newTestServer(nil, nil, nil), http.MethodGet, "/liveness", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPaymentStatus(t *testing.T) {
	tests := []struct {
		name         string
		confirm      func(ctx context.Context, req reconcile.Request) (*reconcile.Result, error)
		expectedCode int
		expectedKind string
	}{
		{
			name: "BookingPending",
			confirm: func(_ context.Context, req reconcile.Request) (*reconcile.Result, error) {
				return &reconcile.Result{MerchantTransactionID: req.TransactionID, PaymentStatus: model.TxnSuccess, BookingPending: true, RetryAfterMs: 2000}, nil
			},
			expectedCode: http.StatusOK,
		},
		{
			name: "PaymentFailedKeepsResult",
			confirm: func(context.Context, reconcile.Request) (*reconcile.Result, error) {
				return &reconcile.Result{PaymentStatus: model.TxnFailed}, apperr.E(apperr.PaymentFailed, "test", "declined")
			},
			expectedCode: http.StatusPaymentRequired,
			expectedKind: string(apperr.PaymentFailed),
		},
		{
			name: "InvalidInput",
			confirm: func(context.Context, reconcile.Request) (*reconcile.Result, error) {
				return nil, apperr.E(apperr.InvalidInput, "test", "no id")
			},
			expectedCode: http.StatusBadRequest,
			expectedKind: string(apperr.InvalidInput),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&mockConfirmer{ConfirmFunc: tt.confirm}, nil, nil)

			w, resp := do(t, s, http.MethodPost, "/api/payments/status", map[string]any{"transactionId": "TXN_0001", "attempt": 1}, nil)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Equal(t, tt.expectedKind, resp.ErrorKind)
			if tt.expectedCode != http.StatusBadRequest {
				assert.NotNil(t, resp.Data)
			}
		})
	}
}

func TestPaymentStatus_PassesAttempt(t *testing.T) {
	var got reconcile.Request
	s := newTestServer(&mockConfirmer{ConfirmFunc: func(_ context.Context, req reconcile.Request) (*reconcile.Result, error) {
		got = req
		return &reconcile.Result{}, nil
	}}, nil, nil)

	do(t, s, http.MethodPost, "/api/payments/status", map[string]any{"merchantTransactionId": "MT_0001", "attempt": 3}, nil)

	assert.Equal(t, reconcile.Request{MerchantTransactionID: "MT_0001", Attempt: 3}, got)
}

func TestCallback(t *testing.T) {
	var gotSignature string
	s := newTestServer(nil, &mockCallbacks{ProcessFunc: func(_ context.Context, body []byte, xVerify string) (*callback.Outcome, error) {
		gotSignature = xVerify
		if !bytes.Contains(body, []byte("response")) {
			return nil, apperr.E(apperr.InvalidInput, "test", "bad body")
		}
		return &callback.Outcome{MerchantTransactionID: "MT_0001", PaymentStatus: model.TxnSuccess, BookingID: 500}, nil
	}}, nil)

	w, resp := do(t, s, http.MethodPost, "/api/payments/phonepe-callback", map[string]string{"response": "e30="}, map[string]string{"X-VERIFY": "abc###1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc###1", gotSignature)
	assert.Equal(t, "success", resp.Status)

	w, _ = do(t, s, http.MethodPost, "/api/payments/phonepe-callback", map[string]string{"x": "y"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallback_RetryableFailure(t *testing.T) {
	s := newTestServer(nil, &mockCallbacks{ProcessFunc: func(context.Context, []byte, string) (*callback.Outcome, error) {
		return nil, apperr.E(apperr.TransientError, "test", "backend down")
	}}, nil)

	w, _ := do(t, s, http.MethodPost, "/api/payments/phonepe-callback", map[string]string{"response": "e30="}, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReference(t *testing.T) {
	s := newTestServer(nil, nil, nil)

	w, resp := do(t, s, http.MethodGet, "/api/references/MAN123456789", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "MAN123456789", data["reference"])
	assert.Equal(t, "MAN", data["dialect"])

	w, resp = do(t, s, http.MethodGet, "/api/references/MAN123456789?target=ppt", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PPT123456789", resp.Data.(map[string]any)["reference"])

	w, resp = do(t, s, http.MethodGet, "/api/references/MAN123456789?target=MAN", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MAN123456789", resp.Data.(map[string]any)["reference"])

	w, _ = do(t, s, http.MethodGet, "/api/references/XYZ123?target=PPT", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDerive(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	expected, err := reference.Derive("TXN_0001")
	require.NoError(t, err)

	w, resp := do(t, s, http.MethodGet, "/api/references/derive/TXN_0001", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, expected, resp.Data.(map[string]any)["reference"])
}

func TestBookingByReference(t *testing.T) {
	s := newTestServer(nil, nil, &mockFinder{FindFunc: func(_ context.Context, ref string) (*booking.Ref, error) {
		if ref == "PPT123456789" {
			return &booking.Ref{BookingID: 500, BookingRef: "MAN123456789"}, nil
		}
		return nil, booking.ErrNotFound
	}})

	w, resp := do(t, s, http.MethodGet, "/api/bookings/by-reference/PPT123456789", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(500), resp.Data.(map[string]any)["bookingId"])

	w, _ = do(t, s, http.MethodGet, "/api/bookings/by-reference/PPT000000000", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestID(t *testing.T) {
	s := newTestServer(nil, nil, nil)

	w, _ := do(t, s, http.MethodGet, "/liveness", nil, nil)
	_, err := uuid.Parse(w.Header().Get(requestIDHeader))
	assert.NoError(t, err)

	id := uuid.New().String()
	w, _ = do(t, s, http.MethodGet, "/liveness", nil, map[string]string{requestIDHeader: id})
	assert.Equal(t, id, w.Header().Get(requestIDHeader))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, StatusFor(apperr.SchemaMismatch))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(apperr.ProviderUnavailable))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(apperr.Critical))
}
