package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/config"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
)

func TestMemoryRepository_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.Get(ctx, "MT_1")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = repo.Record(ctx, model.Transaction{MerchantTransactionID: "MT_1", Status: model.TxnPending})
	require.NoError(t, err)
	stored, err := repo.Record(ctx, model.Transaction{MerchantTransactionID: "MT_1", TransactionID: "T_1", Status: model.TxnSuccess})
	require.NoError(t, err)
	assert.Equal(t, model.TxnSuccess, stored.Status)

	got, err := repo.Get(ctx, "MT_1")
	require.NoError(t, err)
	assert.Equal(t, "T_1", got.TransactionID)
}

func TestMemoryRepository_TerminalRowIsImmutable(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.Record(ctx, model.Transaction{MerchantTransactionID: "MT_1", Status: model.TxnSuccess, Code: "PAYMENT_SUCCESS"})
	require.NoError(t, err)
	require.NoError(t, repo.AttachBooking(ctx, "MT_1", 500, "PPT123456789"))

	stored, err := repo.Record(ctx, model.Transaction{MerchantTransactionID: "MT_1", Status: model.TxnFailed, Code: "PAYMENT_ERROR"})
	require.NoError(t, err)
	assert.Equal(t, model.TxnSuccess, stored.Status)
	assert.Equal(t, 500, stored.BookingID)
}

func TestMemoryRepository_Claim(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	claimed, err := repo.Claim(ctx, "MT_1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed, "unknown transaction")

	_, err = repo.Record(ctx, model.Transaction{MerchantTransactionID: "MT_1", Status: model.TxnSuccess})
	require.NoError(t, err)

	claimed, _ = repo.Claim(ctx, "MT_1", time.Minute)
	assert.True(t, claimed)
	claimed, _ = repo.Claim(ctx, "MT_1", time.Minute)
	assert.False(t, claimed, "live claim")

	require.NoError(t, repo.Release(ctx, "MT_1"))
	claimed, _ = repo.Claim(ctx, "MT_1", time.Minute)
	assert.True(t, claimed, "released claim")

	require.NoError(t, repo.AttachBooking(ctx, "MT_1", 500, "PPT123456789"))
	require.NoError(t, repo.MarkPaymentRecorded(ctx, "MT_1"))
	claimed, _ = repo.Claim(ctx, "MT_1", 0)
	assert.False(t, claimed, "materialized")

	got, err := repo.Get(ctx, "MT_1")
	require.NoError(t, err)
	assert.True(t, got.Materialized())
}

func TestMemoryRepository_ExpiredClaimIsTakenOver(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_, err := repo.Record(ctx, model.Transaction{MerchantTransactionID: "MT_1", Status: model.TxnSuccess})
	require.NoError(t, err)

	claimed, _ := repo.Claim(ctx, "MT_1", time.Minute)
	require.True(t, claimed)
	claimed, _ = repo.Claim(ctx, "MT_1", 0)
	assert.True(t, claimed)
}

func TestMemoryRepository_PendingIsNotClaimable(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_, err := repo.Record(ctx, model.Transaction{MerchantTransactionID: "MT_1", Status: model.TxnPending})
	require.NoError(t, err)

	claimed, err := repo.Claim(ctx, "MT_1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestGetConnStr(t *testing.T) {
	connStr := GetConnStr(config.Database{User: "nibog", Password: "p@ss", Host: "db", Port: "5432", Name: "ledger", SSLMode: "disable"})
	assert.Equal(t, "postgres://nibog:p%40ss@db:5432/ledger?sslmode=disable", connStr)
}
