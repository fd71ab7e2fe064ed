// Package apperr defines the error taxonomy shared by the confirmation pipeline.
//
// Every failure that crosses a package boundary carries a Kind so callers can
// decide between retrying, degrading and surfacing without string matching.
package apperr

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"
)

type Kind string

const (
	InvalidInput               Kind = "InvalidInput"
	TransientError             Kind = "TransientError"
	RequestTimeout             Kind = "RequestTimeout"
	PaymentFailed              Kind = "PaymentFailed"
	NotFound                   Kind = "NotFound"
	ParameterCountMismatch     Kind = "ParameterCountMismatch"
	AttachmentGenerationFailed Kind = "AttachmentGenerationFailed"
	NotificationsDisabled      Kind = "NotificationsDisabled"
	ProviderUnavailable        Kind = "ProviderUnavailable"
	TemplateRejected           Kind = "TemplateRejected"
	SchemaMismatch             Kind = "SchemaMismatch"
	QrTooLarge                 Kind = "QrTooLarge"
	Unavailable                Kind = "Unavailable"
	Critical                   Kind = "Critical"
	Internal                   Kind = "Internal"
)

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause walk through an *Error.
func (e *Error) Cause() error { return e.Err }

func E(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err stays nil.
func Wrap(err error, kind Kind, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: errors.WithStack(err)}
}

func Wrapf(err error, kind Kind, op, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: errors.WithStack(err)}
}

// KindOf returns the kind of the outermost *Error in the chain, or Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// Retryable reports whether the failure may resolve by itself.
func Retryable(err error) bool {
	switch KindOf(err) {
	case TransientError, RequestTimeout, ProviderUnavailable:
		return true
	}
	return false
}

// FromTransport classifies an error returned by an HTTP round trip.
func FromTransport(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, RequestTimeout, op)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Wrap(err, RequestTimeout, op)
	}
	return Wrap(err, TransientError, op)
}
