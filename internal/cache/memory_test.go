package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(ttl time.Duration) (*Memory, *time.Time) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory(ttl)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(time.Minute)

	_, ok := m.Get(ctx, "status:MT_1")
	assert.False(t, ok)

	m.Set(ctx, "status:MT_1", "status", []byte(`{"code":"PAYMENT_SUCCESS"}`))
	data, ok := m.Get(ctx, "status:MT_1")
	require.True(t, ok)
	assert.JSONEq(t, `{"code":"PAYMENT_SUCCESS"}`, string(data))

	tag, ok := m.Tag("status:MT_1")
	assert.True(t, ok)
	assert.Equal(t, "status", tag)
}

func TestMemory_ExpiredEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	m, now := newTestMemory(30 * time.Second)

	m.Set(ctx, "booking:MT_1", "booking", []byte(`1`))
	*now = now.Add(29 * time.Second)
	_, ok := m.Get(ctx, "booking:MT_1")
	assert.True(t, ok)

	*now = now.Add(time.Second)
	_, ok = m.Get(ctx, "booking:MT_1")
	assert.False(t, ok)

	_, ok = m.Tag("booking:MT_1")
	assert.False(t, ok)
}

func TestMemory_InvalidateMatching(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMemory(time.Minute)

	m.Set(ctx, "status:MT_1", "status", []byte(`1`))
	m.Set(ctx, "booking:MT_1", "booking", []byte(`2`))
	m.Set(ctx, "status:MT_2", "status", []byte(`3`))

	assert.Equal(t, 2, m.InvalidateMatching(ctx, "MT_1"))

	_, ok := m.Get(ctx, "status:MT_2")
	assert.True(t, ok)
	_, ok = m.Get(ctx, "status:MT_1")
	assert.False(t, ok)

	m.Clear(ctx)
	_, ok = m.Get(ctx, "status:MT_2")
	assert.False(t, ok)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)

	type ref struct {
		BookingID int `json:"bookingId"`
	}
	require.NoError(t, SetJSON(ctx, m, "booking:MT_1", "booking", ref{BookingID: 500}))

	got, ok := GetJSON[ref](ctx, m, "booking:MT_1")
	assert.True(t, ok)
	assert.Equal(t, 500, got.BookingID)

	m.Set(ctx, "broken", "x", []byte(`{`))
	_, ok = GetJSON[ref](ctx, m, "broken")
	assert.False(t, ok)
}
