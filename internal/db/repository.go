package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
)

const transactionColumns = `transaction_key, merchant_transaction_id, transaction_id, status, code, amount_paise,
	booking_id, booking_ref, payment_recorded_at, updated_at`

// TransactionRepository is the ledger of payment attempts. A row whose
// status is terminal keeps that status forever; afterwards only the
// materialization columns change.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) Get(ctx context.Context, key string) (*model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE transaction_key = $1`
	txn, err := scanTransaction(r.pool.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Errorf(apperr.NotFound, "db.Get", "no transaction %q", key)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.TransientError, "db.Get")
	}
	return txn, nil
}

// Record upserts txn and returns the stored row. When the stored row is
// already terminal it is returned unchanged.
func (r *TransactionRepository) Record(ctx context.Context, txn model.Transaction) (*model.Transaction, error) {
	query := `INSERT INTO payment_transactions (transaction_key, merchant_transaction_id, transaction_id, status, code, amount_paise, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (transaction_key) DO UPDATE SET
	              transaction_id = CASE WHEN EXCLUDED.transaction_id <> '' THEN EXCLUDED.transaction_id
	                                    ELSE payment_transactions.transaction_id END,
	              status = EXCLUDED.status,
	              code = EXCLUDED.code,
	              amount_paise = EXCLUDED.amount_paise,
	              updated_at = EXCLUDED.updated_at
	          WHERE payment_transactions.status = 'PENDING'
	          RETURNING ` + transactionColumns

	key := txn.Key()
	if key == "" {
		return nil, apperr.E(apperr.InvalidInput, "db.Record", "transaction has no id")
	}
	if txn.UpdatedAt.IsZero() {
		txn.UpdatedAt = time.Now()
	}

	stored, err := scanTransaction(r.pool.QueryRow(ctx, query, key, txn.MerchantTransactionID, txn.TransactionID,
		string(txn.Status), txn.Code, txn.AmountPaise, txn.UpdatedAt))
	if errors.Is(err, pgx.ErrNoRows) {
		// conflict with a terminal row, nothing was written
		return r.Get(ctx, key)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.TransientError, "db.Record")
	}
	return stored, nil
}

// AttachBooking remembers which booking the callback created for key. An
// already attached booking is kept.
func (r *TransactionRepository) AttachBooking(ctx context.Context, key string, bookingID int, bookingRef string) error {
	query := `UPDATE payment_transactions SET booking_id = $2, booking_ref = $3, updated_at = now()
	          WHERE transaction_key = $1 AND booking_id IS NULL`
	_, err := r.pool.Exec(ctx, query, key, bookingID, bookingRef)
	if err != nil {
		return apperr.Wrap(err, apperr.TransientError, "db.AttachBooking")
	}
	return nil
}

// Claim takes the right to materialize key. It succeeds only for a
// successful payment that has no payment record yet and no live claim. A
// claim older than lease is considered abandoned and can be taken over.
func (r *TransactionRepository) Claim(ctx context.Context, key string, lease time.Duration) (bool, error) {
	query := `UPDATE payment_transactions SET claimed_at = now()
	          WHERE transaction_key = $1
	            AND status = 'SUCCESS'
	            AND payment_recorded_at IS NULL
	            AND (claimed_at IS NULL OR claimed_at < now() - make_interval(secs => $2))
	          RETURNING transaction_key`

	var claimed string
	err := r.pool.QueryRow(ctx, query, key, lease.Seconds()).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(err, apperr.TransientError, "db.Claim")
	}
	return true, nil
}

// Release gives up a claim so the next delivery can retry at once.
func (r *TransactionRepository) Release(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE payment_transactions SET claimed_at = NULL WHERE transaction_key = $1`, key)
	if err != nil {
		return apperr.Wrap(err, apperr.TransientError, "db.Release")
	}
	return nil
}

// MarkPaymentRecorded closes the transaction for materialization.
func (r *TransactionRepository) MarkPaymentRecorded(ctx context.Context, key string) error {
	query := `UPDATE payment_transactions SET payment_recorded_at = now(), claimed_at = NULL, updated_at = now()
	          WHERE transaction_key = $1 AND payment_recorded_at IS NULL`
	_, err := r.pool.Exec(ctx, query, key)
	if err != nil {
		return apperr.Wrap(err, apperr.TransientError, "db.MarkPaymentRecorded")
	}
	return nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		txn        model.Transaction
		key        string
		status     string
		bookingID  *int
		bookingRef *string
		recordedAt *time.Time
	)
	err := row.Scan(&key, &txn.MerchantTransactionID, &txn.TransactionID, &status, &txn.Code, &txn.AmountPaise,
		&bookingID, &bookingRef, &recordedAt, &txn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	txn.Status = model.TxnStatus(status)
	if txn.MerchantTransactionID == "" && txn.TransactionID == "" {
		txn.MerchantTransactionID = key
	}
	if bookingID != nil {
		txn.BookingID = *bookingID
	}
	if bookingRef != nil {
		txn.BookingRef = *bookingRef
	}
	txn.PaymentRecorded = recordedAt != nil
	return &txn, nil
}
