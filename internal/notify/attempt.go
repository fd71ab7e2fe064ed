package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/logcontext"
	"github.com/pittisunilkumar3/nibog-sub001/internal/message"
)

type Channel string

const (
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelEmail    Channel = "EMAIL"
)

type State string

const (
	StatePreparing       State = "PREPARING"
	StateValidating      State = "VALIDATING"
	StateSending         State = "SENDING"
	StateSent            State = "SENT"
	StateFailed          State = "FAILED"
	StateSkippedDisabled State = "SKIPPED_DISABLED"
)

var transitions = map[State][]State{
	StatePreparing:  {StateValidating, StateFailed, StateSkippedDisabled},
	StateValidating: {StateSending, StateFailed},
	StateSending:    {StateSent, StateFailed},
}

func (s State) Final() bool {
	return s == StateSent || s == StateFailed || s == StateSkippedDisabled
}

// Attempt is one delivery over one channel. It is not persisted; its
// outcome is logged, returned and optionally published.
type Attempt struct {
	ID          uuid.UUID
	Channel     Channel
	State       State
	Transitions []State
	MessageID   string
	Err         error
	// Warnings are problems that degraded the message without blocking it.
	Warnings   []error
	StartedAt  time.Time
	FinishedAt time.Time

	logger *slog.Logger
}

// newAttempt starts an attempt and returns ctx carrying its log attributes.
// The returned ctx is the one to pass to the attempt's methods.
func newAttempt(ctx context.Context, channel Channel, logger *slog.Logger) (context.Context, *Attempt) {
	id := uuid.New()
	a := &Attempt{
		ID:          id,
		Channel:     channel,
		State:       StatePreparing,
		Transitions: []State{StatePreparing},
		StartedAt:   time.Now(),
		logger:      logger,
	}
	ctx = logcontext.AppendCtx(ctx, slog.Group("notification",
		slog.String("attemptId", id.String()), slog.String("channel", string(channel))))
	a.logger.InfoContext(ctx, "Notification attempt state", "state", a.State)
	return ctx, a
}

func (a *Attempt) Degraded() bool {
	return len(a.Warnings) > 0
}

func (a *Attempt) to(ctx context.Context, next State) {
	allowed := false
	for _, s := range transitions[a.State] {
		allowed = allowed || s == next
	}
	if !allowed {
		a.logger.ErrorContext(ctx, "Illegal notification state transition", "from", a.State, "to", next)
		return
	}

	a.State = next
	a.Transitions = append(a.Transitions, next)
	if next.Final() {
		a.FinishedAt = time.Now()
		metrics.GetOrCreateCounter(`notification_total{channel="` + string(a.Channel) + `",result="` + string(next) + `"}`).Inc()
	}
	a.logger.InfoContext(ctx, "Notification attempt state", "state", next)
}

func (a *Attempt) warn(ctx context.Context, err error) {
	a.Warnings = append(a.Warnings, err)
	a.logger.WarnContext(ctx, "Notification degraded", "error", err)
}

func (a *Attempt) fail(ctx context.Context, err error) {
	a.Err = err
	a.logger.ErrorContext(ctx, "Notification failed", "error", err, "kind", apperr.KindOf(err))
	a.to(ctx, StateFailed)
}

func (a *Attempt) skip(ctx context.Context) {
	a.Err = apperr.Errorf(apperr.NotificationsDisabled, "notify.Dispatch", "%s notifications are disabled", a.Channel)
	a.to(ctx, StateSkippedDisabled)
}

func (a *Attempt) sent(ctx context.Context, messageID string) {
	a.MessageID = messageID
	a.to(ctx, StateSent)
}

// Failure returns the error a caller should surface. Skipped channels are
// an intentional no-op, not a failure.
func (a *Attempt) Failure() error {
	if a == nil || a.State != StateFailed {
		return nil
	}
	return a.Err
}

func (a *Attempt) Outcome(bookingID int, bookingRef string) message.NotificationOutcome {
	out := message.NotificationOutcome{
		ID:          a.ID,
		BookingID:   bookingID,
		BookingRef:  bookingRef,
		Channel:     string(a.Channel),
		Outcome:     string(a.State),
		MessageID:   a.MessageID,
		Degraded:    a.Degraded(),
		Transitions: make([]string, 0, len(a.Transitions)),
		StartedAt:   a.StartedAt,
		FinishedAt:  a.FinishedAt,
	}
	for _, s := range a.Transitions {
		out.Transitions = append(out.Transitions, string(s))
	}
	if a.Err != nil {
		out.ErrorKind = string(apperr.KindOf(a.Err))
		out.Error = a.Err.Error()
	}
	return out
}
