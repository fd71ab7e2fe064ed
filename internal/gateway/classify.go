package gateway

import (
	"strings"

	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
)

type Classification string

const (
	Success Classification = "success"
	Pending Classification = "pending"
	Failed  Classification = "failed"
)

const (
	CodePaymentSuccess   = "PAYMENT_SUCCESS"
	CodePaymentPending   = "PAYMENT_PENDING"
	CodePaymentCancelled = "PAYMENT_CANCELLED"

	StateCompleted = "COMPLETED"
	StatePending   = "PENDING"
	StateFailed    = "FAILED"
)

var failureCodes = map[string]bool{
	"PAYMENT_ERROR":          true,
	"PAYMENT_DECLINED":       true,
	"TIMED_OUT":              true,
	"AUTHORIZATION_FAILED":   true,
	"TRANSACTION_NOT_FOUND":  true,
	"BAD_REQUEST":            true,
	"AUTHORIZATION_DECLINED": true,
	CodePaymentCancelled:     true,
}

// Classify maps a gateway response onto the success/pending/failed tri-state.
// allowQuirks enables the sandbox-only success codes; it is ignored in
// binaries built with the production tag.
func Classify(resp StatusResponse, allowQuirks bool) (Classification, model.TxnStatus) {
	code := strings.ToUpper(strings.TrimSpace(resp.Code))
	state := strings.ToUpper(strings.TrimSpace(resp.Data.State))
	if state == "" {
		state = strings.ToUpper(strings.TrimSpace(resp.Data.PaymentState))
	}

	switch {
	case code == CodePaymentSuccess, state == StateCompleted:
		return Success, model.TxnSuccess
	case allowQuirks && quirksCompiled && sandboxQuirkCodes[code]:
		return Success, model.TxnSuccess
	case code == CodePaymentCancelled:
		return Failed, model.TxnCancelled
	case failureCodes[code], state == StateFailed:
		return Failed, model.TxnFailed
	}
	return Pending, model.TxnPending
}
