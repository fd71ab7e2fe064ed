package db

import (
	"context"
	"sync"
	"time"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
)

// MemoryRepository is the ledger used when no database is configured. It
// follows the same rules as TransactionRepository but only protects a single
// replica and forgets everything on restart.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]*memoryRow
}

type memoryRow struct {
	txn       model.Transaction
	claimedAt time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*memoryRow)}
}

func (r *MemoryRepository) Get(_ context.Context, key string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[key]
	if !ok {
		return nil, apperr.Errorf(apperr.NotFound, "db.Get", "no transaction %q", key)
	}
	txn := row.txn
	return &txn, nil
}

func (r *MemoryRepository) Record(_ context.Context, txn model.Transaction) (*model.Transaction, error) {
	key := txn.Key()
	if key == "" {
		return nil, apperr.E(apperr.InvalidInput, "db.Record", "transaction has no id")
	}
	if txn.UpdatedAt.IsZero() {
		txn.UpdatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[key]
	if !ok {
		txn.BookingID, txn.BookingRef, txn.PaymentRecorded = 0, "", false
		r.rows[key] = &memoryRow{txn: txn}
		return &txn, nil
	}
	if row.txn.Status == model.TxnPending {
		if txn.TransactionID == "" {
			txn.TransactionID = row.txn.TransactionID
		}
		txn.BookingID, txn.BookingRef, txn.PaymentRecorded = row.txn.BookingID, row.txn.BookingRef, row.txn.PaymentRecorded
		row.txn = txn
	}
	stored := row.txn
	return &stored, nil
}

func (r *MemoryRepository) AttachBooking(_ context.Context, key string, bookingID int, bookingRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row, ok := r.rows[key]; ok && row.txn.BookingID == 0 {
		row.txn.BookingID = bookingID
		row.txn.BookingRef = bookingRef
		row.txn.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryRepository) Claim(_ context.Context, key string, lease time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[key]
	if !ok || row.txn.Status != model.TxnSuccess || row.txn.PaymentRecorded {
		return false, nil
	}
	now := time.Now()
	if !row.claimedAt.IsZero() && now.Sub(row.claimedAt) < lease {
		return false, nil
	}
	row.claimedAt = now
	return true, nil
}

func (r *MemoryRepository) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row, ok := r.rows[key]; ok {
		row.claimedAt = time.Time{}
	}
	return nil
}

func (r *MemoryRepository) MarkPaymentRecorded(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row, ok := r.rows[key]; ok {
		row.txn.PaymentRecorded = true
		row.claimedAt = time.Time{}
		row.txn.UpdatedAt = time.Now()
	}
	return nil
}
