package message

import (
	"time"

	"github.com/google/uuid"
)

// NotificationOutcome is published once per notification attempt.
type NotificationOutcome struct {
	ID          uuid.UUID `json:"id"`
	BookingID   int       `json:"bookingId"`
	BookingRef  string    `json:"bookingRef"`
	Channel     string    `json:"channel"`
	Outcome     string    `json:"outcome"`
	MessageID   string    `json:"messageId,omitempty"`
	ErrorKind   string    `json:"errorKind,omitempty"`
	Error       string    `json:"error,omitempty"`
	Degraded    bool      `json:"degraded"`
	Transitions []string  `json:"transitions"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}
