// Package backend is a typed client for the webhook backend that owns
// bookings and payment records.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/config"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
	"github.com/pittisunilkumar3/nibog-sub001/internal/sender"
)

// PaymentRecord links a gateway transaction to a materialized booking.
// Upstream stores the gateway id under either transaction_id or
// phonepe_transaction_id, so both are kept.
type PaymentRecord struct {
	PaymentID            int     `json:"payment_id,omitempty"`
	BookingID            int     `json:"booking_id"`
	BookingRef           string  `json:"booking_ref,omitempty"`
	TransactionID        string  `json:"transaction_id"`
	PhonePeTransactionID string  `json:"phonepe_transaction_id,omitempty"`
	Amount               float64 `json:"amount"`
	PaymentMethod        string  `json:"payment_method,omitempty"`
	PaymentStatus        string  `json:"payment_status,omitempty"`
	PaymentDate          string  `json:"payment_date,omitempty"`
}

// PendingBooking is the booking form stored when the payment was initiated.
type PendingBooking struct {
	TransactionID string        `json:"transaction_id"`
	UserID        int           `json:"user_id"`
	Status        string        `json:"status"`
	ExpiresAt     string        `json:"expires_at,omitempty"`
	Booking       model.Booking `json:"booking_data"`
}

type Client struct {
	cfg    config.Backend
	sender *sender.Sender
	logger *slog.Logger
}

func NewClient(cfg config.Backend, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		sender: sender.New(config.Millis(cfg.TimeoutMs), logger),
		logger: logger,
	}
}

func (c *Client) ListPayments(ctx context.Context) ([]PaymentRecord, error) {
	const op = "backend.ListPayments"
	resp, err := c.sender.Get(ctx, c.cfg.BaseURL+c.cfg.PaymentsPath, nil)
	if err != nil {
		return nil, c.classify(ctx, op, "list_payments", false, err)
	}
	records, err := decodeList[PaymentRecord](op, resp.Body)
	count("list_payments", err)
	return records, err
}

func (c *Client) GetPendingBooking(ctx context.Context, merchantTxnID string) (*PendingBooking, error) {
	const op = "backend.GetPendingBooking"
	if merchantTxnID == "" {
		return nil, apperr.E(apperr.InvalidInput, op, "merchant transaction id is empty")
	}
	path := fmt.Sprintf(c.cfg.PendingBookingPath, url.PathEscape(merchantTxnID))
	resp, err := c.sender.Get(ctx, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, c.classify(ctx, op, "pending_booking", true, err)
	}
	pending, err := decodeObject[PendingBooking](op, resp.Body)
	count("pending_booking", err)
	return pending, err
}

// CreateBooking materializes a booking. Only the callback path may call it.
func (c *Client) CreateBooking(ctx context.Context, booking model.Booking) (*model.Booking, error) {
	const op = "backend.CreateBooking"
	resp, err := c.sender.PostJSON(ctx, c.cfg.BaseURL+c.cfg.CreateBookingPath, nil, booking)
	if err != nil {
		return nil, c.classify(ctx, op, "create_booking", false, err)
	}
	created, err := decodeObject[model.Booking](op, resp.Body)
	if err == nil && created.BookingID <= 0 {
		err = apperr.E(apperr.SchemaMismatch, op, "created booking has no booking_id")
	}
	count("create_booking", err)
	return created, err
}

func (c *Client) CreatePayment(ctx context.Context, record PaymentRecord) (*PaymentRecord, error) {
	const op = "backend.CreatePayment"
	resp, err := c.sender.PostJSON(ctx, c.cfg.BaseURL+c.cfg.CreatePaymentPath, nil, record)
	if err != nil {
		return nil, c.classify(ctx, op, "create_payment", false, err)
	}
	created, err := decodeObject[PaymentRecord](op, resp.Body)
	count("create_payment", err)
	return created, err
}

// classify maps transport and status failures onto error kinds. A 404 is
// NotFound only for single resources; for collections it means the
// endpoint itself is missing.
func (c *Client) classify(ctx context.Context, op, endpoint string, single bool, err error) error {
	c.logger.WarnContext(ctx, "Backend request failed", "endpoint", endpoint, "error", err)

	var statusErr *sender.StatusError
	if !errors.As(err, &statusErr) {
		countResult(endpoint, "transient_error")
		return err
	}

	switch {
	case statusErr.Retryable():
		countResult(endpoint, "transient_error")
		return apperr.Wrap(err, apperr.TransientError, op)
	case statusErr.StatusCode == http.StatusNotFound && single:
		countResult(endpoint, "not_found")
		return apperr.Wrap(err, apperr.NotFound, op)
	default:
		countResult(endpoint, "unavailable")
		return apperr.Wrap(err, apperr.Unavailable, op)
	}
}

func count(endpoint string, err error) {
	if err != nil {
		countResult(endpoint, "schema_mismatch")
		return
	}
	countResult(endpoint, "success")
}

func countResult(endpoint, result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`backend_requests_total{endpoint=%q,result=%q}`, endpoint, result)).Inc()
}
