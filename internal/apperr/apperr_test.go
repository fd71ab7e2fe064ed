package apperr

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := E(NotFound, "booking.FindExisting", "not yet")
	assert.Equal(t, NotFound, KindOf(err))
	assert.Equal(t, NotFound, KindOf(fmt.Errorf("outer: %w", err)))
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestIsWalksNestedKinds(t *testing.T) {
	inner := E(SchemaMismatch, "backend.decode", "not an array")
	outer := Wrap(inner, TransientError, "booking.FindExisting")

	assert.True(t, Is(outer, TransientError))
	assert.True(t, Is(outer, SchemaMismatch))
	assert.False(t, Is(outer, NotFound))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(E(TransientError, "op", "")))
	assert.True(t, Retryable(E(RequestTimeout, "op", "")))
	assert.True(t, Retryable(E(ProviderUnavailable, "op", "")))
	assert.False(t, Retryable(E(PaymentFailed, "op", "")))
	assert.False(t, Retryable(E(ParameterCountMismatch, "op", "")))
}

func TestFromTransport(t *testing.T) {
	assert.Equal(t, RequestTimeout, KindOf(FromTransport(context.DeadlineExceeded, "op")))
	assert.Equal(t, TransientError, KindOf(FromTransport(errors.New("connection refused"), "op")))
	assert.Nil(t, FromTransport(nil, "op"))
}

func TestErrorMessage(t *testing.T) {
	err := Wrapf(errors.New("boom"), ProviderUnavailable, "notify.whatsapp", "status %d", 502)
	assert.Equal(t, "notify.whatsapp: ProviderUnavailable: status 502: boom", err.Error())
}
