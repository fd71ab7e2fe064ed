// Package reconcile answers the client after the gateway redirect: it
// confirms the payment status and reports whether the callback has already
// materialized the booking. It never creates bookings or sends notifications.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/booking"
	"github.com/pittisunilkumar3/nibog-sub001/internal/config"
	"github.com/pittisunilkumar3/nibog-sub001/internal/gateway"
	"github.com/pittisunilkumar3/nibog-sub001/internal/logcontext"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
	"github.com/pittisunilkumar3/nibog-sub001/internal/retry"
)

var (
	confirmCreatedCounter    = metrics.GetOrCreateCounter(`reconcile_confirm_total{result="booking_created"}`)
	confirmPendingCounter    = metrics.GetOrCreateCounter(`reconcile_confirm_total{result="booking_pending"}`)
	confirmProcessingCounter = metrics.GetOrCreateCounter(`reconcile_confirm_total{result="processing"}`)
	confirmFailedCounter     = metrics.GetOrCreateCounter(`reconcile_confirm_total{result="payment_failed"}`)
)

type StatusChecker interface {
	CheckStatus(ctx context.Context, transactionID string) (*gateway.StatusResult, error)
}

type BookingFinder interface {
	FindExisting(ctx context.Context, merchantTxnID, txnID string) (*booking.Ref, error)
}

type Ledger interface {
	Get(ctx context.Context, key string) (*model.Transaction, error)
	Record(ctx context.Context, txn model.Transaction) (*model.Transaction, error)
}

type Config struct {
	StatusAttempts int
	StatusRetry    time.Duration
	RetryBase      time.Duration
	RetryMax       time.Duration
	MaxPolls       int
}

func ConfigFrom(cfg config.Reconcile) Config {
	return Config{
		StatusAttempts: cfg.StatusAttempts,
		StatusRetry:    config.Millis(cfg.StatusRetryMs),
		RetryBase:      config.Millis(cfg.ClientRetryBaseMs),
		RetryMax:       config.Millis(cfg.ClientRetryMaxMs),
		MaxPolls:       cfg.ClientMaxPolls,
	}
}

// Request is one client poll. Attempt counts the polls already made for the
// same transaction, starting at zero.
type Request struct {
	MerchantTransactionID string `json:"merchantTransactionId"`
	TransactionID         string `json:"transactionId"`
	Attempt               int    `json:"attempt"`
}

type Result struct {
	MerchantTransactionID string          `json:"merchantTransactionId"`
	TransactionID         string          `json:"transactionId,omitempty"`
	PaymentStatus         model.TxnStatus `json:"paymentStatus"`
	Code                  string          `json:"code,omitempty"`
	BookingCreated        bool            `json:"bookingCreated"`
	BookingPending        bool            `json:"bookingPending"`
	Processing            bool            `json:"processing"`
	BookingID             int             `json:"bookingId,omitempty"`
	BookingRef            string          `json:"bookingRef,omitempty"`
	RetryAfterMs          int64           `json:"retryAfterMs,omitempty"`
	GiveUp                bool            `json:"giveUp,omitempty"`
	Message               string          `json:"message"`
}

type Service struct {
	cfg     Config
	gateway StatusChecker
	finder  BookingFinder
	ledger  Ledger
	logger  *slog.Logger
}

func NewService(cfg Config, gateway StatusChecker, finder BookingFinder, ledger Ledger, logger *slog.Logger) *Service {
	if cfg.StatusAttempts < 1 {
		cfg.StatusAttempts = 1
	}
	return &Service{cfg: cfg, gateway: gateway, finder: finder, ledger: ledger, logger: logger}
}

// Confirm resolves one client poll. A failed payment is returned as a
// result together with a PaymentFailed error. Exhausted transient retries
// are not an error: the client is told the payment is still processing.
func (s *Service) Confirm(ctx context.Context, req Request) (*Result, error) {
	const op = "reconcile.Confirm"
	key := model.TransactionKey(req.MerchantTransactionID, req.TransactionID)
	if key == "" {
		return nil, apperr.E(apperr.InvalidInput, op, "no transaction id supplied")
	}
	ctx = logcontext.AppendCtx(ctx, slog.String("transactionKey", key))

	result := &Result{
		MerchantTransactionID: key,
		TransactionID:         req.TransactionID,
		PaymentStatus:         model.TxnPending,
	}

	txn, err := s.status(ctx, key)
	if err != nil {
		if apperr.Is(err, apperr.PaymentFailed) {
			s.fill(result, txn)
			result.Message = "Payment failed"
			confirmFailedCounter.Inc()
			return result, err
		}
		if !apperr.Retryable(err) {
			return nil, err
		}
		s.logger.WarnContext(ctx, "Status still unknown after retries", "error", err)
		return s.processing(result, req.Attempt, "Payment is being processed"), nil
	}
	s.fill(result, txn)

	if txn.Status == model.TxnPending {
		return s.processing(result, req.Attempt, "Payment is pending with the gateway"), nil
	}

	if txn.BookingID > 0 {
		return s.created(ctx, result, txn.BookingID, txn.BookingRef), nil
	}

	ref, err := s.findBooking(ctx, req.MerchantTransactionID, firstNonEmpty(result.TransactionID, req.TransactionID))
	switch {
	case err == nil:
		return s.created(ctx, result, ref.BookingID, ref.BookingRef), nil
	case apperr.Is(err, apperr.NotFound):
		result.BookingPending = true
		result.Message = "Payment confirmed, booking is being created"
		s.schedule(result, req.Attempt)
		confirmPendingCounter.Inc()
		s.logger.InfoContext(ctx, "Booking not materialized yet", "attempt", req.Attempt, "retryAfterMs", result.RetryAfterMs)
		return result, nil
	default:
		s.logger.WarnContext(ctx, "Booking lookup unavailable", "error", err)
		return s.processing(result, req.Attempt, "Payment confirmed, booking status unavailable"), nil
	}
}

// status prefers a terminal ledger entry over a gateway query, since a
// terminal status never changes.
func (s *Service) status(ctx context.Context, key string) (*model.Transaction, error) {
	if stored, err := s.ledger.Get(ctx, key); err == nil && stored.Status.Terminal() {
		return stored, settled(stored, nil)
	}

	var result *gateway.StatusResult
	err := retry.Do(ctx, retry.Policy{Attempts: s.cfg.StatusAttempts, Delay: s.cfg.StatusRetry, Retryable: apperr.Retryable},
		func(ctx context.Context, _ int) error {
			var err error
			result, err = s.gateway.CheckStatus(ctx, key)
			return err
		})
	if result == nil {
		return nil, err
	}

	txn := result.Transaction(key)
	stored, recErr := s.ledger.Record(ctx, txn)
	if recErr != nil {
		s.logger.WarnContext(ctx, "Failed to record transaction", "error", recErr)
		return &txn, err
	}
	return stored, settled(stored, err)
}

// settled reconciles err with a recorded status. A terminal ledger row wins
// over whatever the latest query said.
func settled(txn *model.Transaction, err error) error {
	switch txn.Status {
	case model.TxnSuccess:
		return nil
	case model.TxnFailed, model.TxnCancelled:
		if apperr.Is(err, apperr.PaymentFailed) {
			return err
		}
		return apperr.Errorf(apperr.PaymentFailed, "reconcile.status", "payment recorded as %s", txn.Status)
	}
	return err
}

func (s *Service) findBooking(ctx context.Context, merchantTxnID, txnID string) (*booking.Ref, error) {
	var ref *booking.Ref
	err := retry.Do(ctx, retry.Policy{Attempts: s.cfg.StatusAttempts, Delay: s.cfg.StatusRetry, Retryable: apperr.Retryable},
		func(ctx context.Context, _ int) error {
			var err error
			ref, err = s.finder.FindExisting(ctx, merchantTxnID, txnID)
			return err
		})
	return ref, err
}

func (s *Service) fill(result *Result, txn *model.Transaction) {
	if txn == nil {
		return
	}
	result.PaymentStatus = txn.Status
	result.Code = txn.Code
	if txn.TransactionID != "" {
		result.TransactionID = txn.TransactionID
	}
}

func (s *Service) created(ctx context.Context, result *Result, bookingID int, bookingRef string) *Result {
	result.BookingCreated = true
	result.BookingID = bookingID
	result.BookingRef = bookingRef
	result.Message = "Booking confirmed"
	confirmCreatedCounter.Inc()
	s.logger.InfoContext(ctx, "Booking confirmed", "bookingId", bookingID, "bookingRef", bookingRef)
	return result
}

func (s *Service) processing(result *Result, attempt int, msg string) *Result {
	result.Processing = true
	result.Message = msg
	s.schedule(result, attempt)
	confirmProcessingCounter.Inc()
	return result
}

// schedule sets the client's next poll: base*2^attempt capped at the max,
// and GiveUp once the poll budget is spent.
func (s *Service) schedule(result *Result, attempt int) {
	result.RetryAfterMs = Backoff(s.cfg.RetryBase, s.cfg.RetryMax, attempt).Milliseconds()
	if s.cfg.MaxPolls > 0 && attempt+1 >= s.cfg.MaxPolls {
		result.GiveUp = true
		result.RetryAfterMs = 0
	}
}

func Backoff(base, ceiling time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if ceiling > 0 && d >= ceiling {
			return ceiling
		}
	}
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
