package model

import (
	"strings"
	"time"
)

type TxnStatus string

const (
	TxnPending   TxnStatus = "PENDING"
	TxnSuccess   TxnStatus = "SUCCESS"
	TxnFailed    TxnStatus = "FAILED"
	TxnCancelled TxnStatus = "CANCELLED"
)

// Terminal statuses never change once recorded.
func (s TxnStatus) Terminal() bool {
	return s == TxnSuccess || s == TxnFailed || s == TxnCancelled
}

// Transaction is one payment attempt.
type Transaction struct {
	// TransactionID is the gateway-assigned id.
	TransactionID string `json:"transactionId"`
	// MerchantTransactionID is the id this system initiated the payment with.
	MerchantTransactionID string    `json:"merchantTransactionId"`
	Status                TxnStatus `json:"status"`
	Code                  string    `json:"code,omitempty"`
	AmountPaise           int64     `json:"amount,omitempty"`
	BookingID             int       `json:"bookingId,omitempty"`
	BookingRef            string    `json:"bookingRef,omitempty"`
	// PaymentRecorded is set once the backend holds the payment record for
	// BookingID.
	PaymentRecorded bool      `json:"paymentRecorded,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Materialized reports whether both the booking and its payment record
// exist, so nothing is left to write for this transaction.
func (t Transaction) Materialized() bool {
	return t.BookingID > 0 && t.PaymentRecorded
}

// Key is the id the gateway status endpoint and the booking reference are
// keyed by. Both the redirect and the callback path carry the merchant id, so
// it wins over the gateway id when both are known.
func (t Transaction) Key() string {
	return TransactionKey(t.MerchantTransactionID, t.TransactionID)
}

func TransactionKey(merchantTxnID, txnID string) string {
	if m := strings.TrimSpace(merchantTxnID); m != "" {
		return m
	}
	return strings.TrimSpace(txnID)
}

type Game struct {
	Name      string  `json:"game_name"`
	SlotID    int     `json:"slot_id"`
	StartTime string  `json:"start_time,omitempty"`
	EndTime   string  `json:"end_time,omitempty"`
	Price     float64 `json:"price"`
}

// Booking is the read-only view of a materialized booking that tickets and
// notifications are built from. The backend owns the record itself.
type Booking struct {
	BookingID     int     `json:"booking_id"`
	BookingRef    string  `json:"booking_ref"`
	ParentName    string  `json:"parent_name"`
	ParentEmail   string  `json:"email"`
	ParentPhone   string  `json:"phone"`
	ChildName     string  `json:"child_name"`
	EventTitle    string  `json:"event_title"`
	EventDate     string  `json:"event_date"`
	VenueName     string  `json:"venue_name"`
	Games         []Game  `json:"games"`
	TotalAmount   float64 `json:"total_amount"`
	PaymentMethod string  `json:"payment_method"`
	TransactionID string  `json:"transaction_id"`
}

func (b Booking) GameNames() []string {
	names := make([]string, 0, len(b.Games))
	for _, g := range b.Games {
		if name := strings.TrimSpace(g.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
