// Package callback handles the gateway's server-to-server payment
// notification. It is the only writer of bookings and payment records.
package callback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/backend"
	"github.com/pittisunilkumar3/nibog-sub001/internal/booking"
	"github.com/pittisunilkumar3/nibog-sub001/internal/cache"
	"github.com/pittisunilkumar3/nibog-sub001/internal/config"
	"github.com/pittisunilkumar3/nibog-sub001/internal/gateway"
	"github.com/pittisunilkumar3/nibog-sub001/internal/logcontext"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
	"github.com/pittisunilkumar3/nibog-sub001/internal/notify"
	"github.com/pittisunilkumar3/nibog-sub001/internal/reference"
)

const (
	paymentMethod     = "PhonePe"
	defaultClaimLease = 2 * time.Minute
)

type Parser interface {
	ParseCallback(body []byte, xVerify string) (*gateway.Callback, error)
}

// Ledger records payment attempts and hands out the right to materialize
// one. Claim must be atomic across every replica sharing the ledger.
type Ledger interface {
	Record(ctx context.Context, txn model.Transaction) (*model.Transaction, error)
	Claim(ctx context.Context, key string, lease time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	AttachBooking(ctx context.Context, key string, bookingID int, bookingRef string) error
	MarkPaymentRecorded(ctx context.Context, key string) error
}

type ExistingFinder interface {
	FindExisting(ctx context.Context, merchantTxnID, txnID string) (*booking.Ref, error)
}

type Backend interface {
	GetPendingBooking(ctx context.Context, merchantTxnID string) (*backend.PendingBooking, error)
	CreateBooking(ctx context.Context, b model.Booking) (*model.Booking, error)
	CreatePayment(ctx context.Context, record backend.PaymentRecord) (*backend.PaymentRecord, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, b model.Booking) *notify.Report
}

type Notifications struct {
	WhatsApp notify.State `json:"whatsapp"`
	Email    notify.State `json:"email"`
}

type Outcome struct {
	MerchantTransactionID string          `json:"merchantTransactionId"`
	TransactionID         string          `json:"transactionId,omitempty"`
	PaymentStatus         model.TxnStatus `json:"paymentStatus"`
	AlreadyProcessed      bool            `json:"alreadyProcessed"`
	BookingID             int             `json:"bookingId,omitempty"`
	BookingRef            string          `json:"bookingRef,omitempty"`
	Notifications         *Notifications  `json:"notifications,omitempty"`
}

type Processor struct {
	parser   Parser
	ledger   Ledger
	finder   ExistingFinder
	backend  Backend
	cache    cache.Cache
	notifier Notifier
	sem      chan struct{}
	locks    *keyLocks
	lease    time.Duration
	logger   *slog.Logger
}

// NewProcessor wires the callback path. cfg.Parallelism bounds how many
// callbacks are processed at once; c may be nil.
func NewProcessor(parser Parser, ledger Ledger, finder ExistingFinder, b Backend, c cache.Cache, notifier Notifier, cfg config.Callback, logger *slog.Logger) *Processor {
	parallelism := max(cfg.Parallelism, 1)
	lease := config.Millis(cfg.ClaimLeaseMs)
	if lease <= 0 {
		lease = defaultClaimLease
	}
	return &Processor{
		parser:   parser,
		ledger:   ledger,
		finder:   finder,
		backend:  b,
		cache:    c,
		notifier: notifier,
		sem:      make(chan struct{}, parallelism),
		locks:    newKeyLocks(),
		lease:    lease,
		logger:   logger,
	}
}

// Process verifies and applies one callback. Returning an error asks the
// gateway to deliver the callback again, so it is only done when nothing
// user-visible has happened yet or the step is safe to repeat.
func (p *Processor) Process(ctx context.Context, body []byte, xVerify string) (*Outcome, error) {
	const op = "callback.Process"

	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return nil, apperr.Wrap(ctx.Err(), apperr.RequestTimeout, op)
	}

	cb, err := p.parser.ParseCallback(body, xVerify)
	if err != nil {
		p.logger.WarnContext(ctx, "Rejected callback", "error", err)
		count("rejected")
		return nil, err
	}

	txn := cb.Result.Transaction("")
	key := txn.Key()
	ctx = logcontext.AppendCtx(ctx, slog.String("transactionKey", key))
	p.logger.InfoContext(ctx, "Processing callback", "code", cb.Raw.Code, "classified", cb.Classified)

	unlock, err := p.locks.lock(ctx, key)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.RequestTimeout, op)
	}
	defer unlock()

	stored, err := p.ledger.Record(ctx, txn)
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to record transaction", "error", err)
		stored = &txn
	}

	out := &Outcome{
		MerchantTransactionID: key,
		TransactionID:         txn.TransactionID,
		PaymentStatus:         stored.Status,
	}
	if stored.Status != model.TxnSuccess {
		p.logger.InfoContext(ctx, "Payment not successful, nothing to materialize", "status", stored.Status)
		count("not_successful")
		return out, nil
	}
	if stored.Materialized() {
		return p.alreadyProcessed(ctx, out, stored.BookingID, stored.BookingRef), nil
	}

	existing, err := p.finder.FindExisting(ctx, cb.Raw.Data.MerchantTransactionID, cb.Raw.Data.TransactionID)
	switch {
	case err == nil:
		if stored.BookingID == 0 {
			p.attach(ctx, key, existing.BookingID, existing.BookingRef)
		}
		p.markRecorded(ctx, key)
		return p.alreadyProcessed(ctx, out, existing.BookingID, existing.BookingRef), nil
	case !apperr.Is(err, apperr.NotFound):
		count("error")
		return nil, err
	}

	claimed, err := p.ledger.Claim(ctx, key, p.lease)
	if err != nil {
		count("error")
		return nil, err
	}
	if !claimed {
		p.logger.InfoContext(ctx, "Another delivery is materializing this transaction")
		count("in_progress")
		return nil, apperr.E(apperr.TransientError, op, "materialization already in progress")
	}

	b, err := p.materialize(ctx, key, stored)
	if err != nil {
		count("error")
		return nil, err
	}
	out.BookingID = b.BookingID
	out.BookingRef = b.BookingRef

	p.invalidate(ctx, key, txn.TransactionID)

	report := p.notifier.Dispatch(ctx, *b)
	if err := report.Err(); err != nil {
		p.logger.ErrorContext(ctx, "Notification delivery incomplete", "error", err)
	}
	out.Notifications = &Notifications{WhatsApp: stateOf(report.WhatsApp), Email: stateOf(report.Email)}

	count("created")
	return out, nil
}

// materialize creates the booking and its payment record under a claim. A
// booking id already in the ledger means an earlier delivery created the
// booking but not the payment record, so only the latter is written.
func (p *Processor) materialize(ctx context.Context, key string, txn *model.Transaction) (_ *model.Booking, err error) {
	keepClaim := false
	defer func() {
		if err == nil || keepClaim {
			return
		}
		if rerr := p.ledger.Release(ctx, key); rerr != nil {
			p.logger.WarnContext(ctx, "Failed to release materialization claim", "error", rerr)
		}
	}()

	pending, err := p.backend.GetPendingBooking(ctx, key)
	if err != nil {
		return nil, err
	}

	b := pending.Booking
	b.TransactionID = key
	if b.PaymentMethod == "" {
		b.PaymentMethod = paymentMethod
	}
	if b.TotalAmount == 0 {
		b.TotalAmount = rupees(txn.AmountPaise)
	}

	if txn.BookingID > 0 {
		b.BookingID = txn.BookingID
		b.BookingRef = txn.BookingRef
		p.logger.InfoContext(ctx, "Resuming materialization", "bookingId", b.BookingID)
	} else {
		ref, err := reference.Derive(key)
		if err != nil {
			return nil, err
		}
		b.BookingRef = ref

		created, err := p.backend.CreateBooking(ctx, b)
		if err != nil {
			return nil, err
		}
		b.BookingID = created.BookingID
		if created.BookingRef != "" {
			b.BookingRef = created.BookingRef
		}
		p.logger.InfoContext(ctx, "Booking created", "bookingId", b.BookingID, "bookingRef", b.BookingRef)

		if err := p.ledger.AttachBooking(ctx, key, b.BookingID, b.BookingRef); err != nil {
			// the claim stays until its lease runs out so nobody books again meanwhile
			keepClaim = true
			p.logger.ErrorContext(ctx, "Failed to attach booking to transaction", "bookingId", b.BookingID, "error", err)
			return nil, err
		}
	}

	_, err = p.backend.CreatePayment(ctx, backend.PaymentRecord{
		BookingID:            b.BookingID,
		BookingRef:           b.BookingRef,
		TransactionID:        key,
		PhonePeTransactionID: txn.TransactionID,
		Amount:               rupees(txn.AmountPaise),
		PaymentMethod:        paymentMethod,
		PaymentStatus:        "successful",
		PaymentDate:          time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	p.markRecorded(ctx, key)
	return &b, nil
}

func (p *Processor) alreadyProcessed(ctx context.Context, out *Outcome, bookingID int, bookingRef string) *Outcome {
	out.AlreadyProcessed = true
	out.BookingID = bookingID
	out.BookingRef = bookingRef
	p.logger.InfoContext(ctx, "Booking already materialized", "bookingId", bookingID)
	count("already_processed")
	return out
}

func (p *Processor) attach(ctx context.Context, key string, bookingID int, bookingRef string) {
	if err := p.ledger.AttachBooking(ctx, key, bookingID, bookingRef); err != nil {
		p.logger.WarnContext(ctx, "Failed to attach booking to transaction", "error", err)
	}
}

func (p *Processor) markRecorded(ctx context.Context, key string) {
	if err := p.ledger.MarkPaymentRecorded(ctx, key); err != nil {
		p.logger.WarnContext(ctx, "Failed to mark payment recorded", "error", err)
	}
}

func (p *Processor) invalidate(ctx context.Context, ids ...string) {
	if p.cache == nil {
		return
	}
	for _, id := range ids {
		if id != "" {
			p.cache.InvalidateMatching(ctx, id)
		}
	}
}

func rupees(paise int64) float64 {
	return float64(paise) / 100
}

func stateOf(a *notify.Attempt) notify.State {
	if a == nil {
		return ""
	}
	return a.State
}

func count(result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`callback_processed_total{result=%q}`, result)).Inc()
}
