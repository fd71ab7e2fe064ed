// Package booking observes whether the gateway callback has materialized a
// booking for a transaction. It never writes to the backend.
package booking

import (
	"context"
	"log/slog"
	"strings"

	"github.com/VictoriaMetrics/metrics"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/backend"
	"github.com/pittisunilkumar3/nibog-sub001/internal/cache"
	"github.com/pittisunilkumar3/nibog-sub001/internal/reference"
)

const cacheTag = "booking"

// ErrNotFound means the booking has not been materialized yet. It is an
// expected state that callers poll on, not a fault.
var ErrNotFound = apperr.E(apperr.NotFound, "booking.Finder", "booking not materialized yet")

var (
	findFoundCounter    = metrics.GetOrCreateCounter(`booking_lookup_total{result="found"}`)
	findNotFoundCounter = metrics.GetOrCreateCounter(`booking_lookup_total{result="not_found"}`)
	findErrorCounter    = metrics.GetOrCreateCounter(`booking_lookup_total{result="error"}`)
)

// Ref identifies a materialized booking.
type Ref struct {
	BookingID     int    `json:"bookingId"`
	BookingRef    string `json:"bookingRef,omitempty"`
	PaymentID     int    `json:"paymentId,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
}

type PaymentLister interface {
	ListPayments(ctx context.Context) ([]backend.PaymentRecord, error)
}

type Finder struct {
	payments PaymentLister
	cache    cache.Cache
	logger   *slog.Logger
}

// NewFinder builds a Finder. cache may be nil.
func NewFinder(payments PaymentLister, c cache.Cache, logger *slog.Logger) *Finder {
	return &Finder{payments: payments, cache: c, logger: logger}
}

// FindExisting looks for a payment record whose transaction_id or
// phonepe_transaction_id equals either of the supplied ids.
func (f *Finder) FindExisting(ctx context.Context, merchantTxnID, txnID string) (*Ref, error) {
	ids := nonEmpty(merchantTxnID, txnID)
	if len(ids) == 0 {
		return nil, apperr.E(apperr.InvalidInput, "booking.FindExisting", "no transaction id supplied")
	}

	key := "booking:" + strings.Join(ids, ":")
	return f.find(ctx, key, func(r backend.PaymentRecord) bool {
		for _, id := range ids {
			if r.TransactionID == id || r.PhonePeTransactionID == id {
				return true
			}
		}
		return false
	})
}

// FindByReference matches booking_ref under every dialect the reference may
// be stored in. The stored value is returned as is.
func (f *Finder) FindByReference(ctx context.Context, ref string) (*Ref, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, apperr.E(apperr.InvalidInput, "booking.FindByReference", "reference is empty")
	}
	if _, _, err := reference.Parse(ref); err != nil {
		return nil, err
	}

	candidates := reference.Candidates(ref)
	return f.find(ctx, "booking-ref:"+strings.ToUpper(candidates[0]), func(r backend.PaymentRecord) bool {
		for _, c := range candidates {
			if strings.EqualFold(r.BookingRef, c) {
				return true
			}
		}
		return false
	})
}

func (f *Finder) find(ctx context.Context, key string, match func(backend.PaymentRecord) bool) (*Ref, error) {
	if f.cache != nil {
		if ref, ok := cache.GetJSON[Ref](ctx, f.cache, key); ok {
			findFoundCounter.Inc()
			return &ref, nil
		}
	}

	records, err := f.payments.ListPayments(ctx)
	if err != nil {
		f.logger.WarnContext(ctx, "Payment listing failed", "error", err)
		findErrorCounter.Inc()
		return nil, err
	}

	for _, r := range records {
		if r.BookingID <= 0 || !match(r) {
			continue
		}
		ref := &Ref{
			BookingID:     r.BookingID,
			BookingRef:    r.BookingRef,
			PaymentID:     r.PaymentID,
			TransactionID: firstNonEmpty(r.TransactionID, r.PhonePeTransactionID),
		}
		f.logger.InfoContext(ctx, "Booking found", "bookingId", ref.BookingID, "bookingRef", ref.BookingRef)
		findFoundCounter.Inc()

		// Only positive results are cached so a later materialization is
		// never hidden behind a stale miss.
		if f.cache != nil {
			if err := cache.SetJSON(ctx, f.cache, key, cacheTag, ref); err != nil {
				f.logger.WarnContext(ctx, "Failed to cache booking", "error", err)
			}
		}
		return ref, nil
	}

	findNotFoundCounter.Inc()
	return nil, ErrNotFound
}

func nonEmpty(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		dup := false
		for _, o := range out {
			dup = dup || o == id
		}
		if !dup {
			out = append(out, id)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
