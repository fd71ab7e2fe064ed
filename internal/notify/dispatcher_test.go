package notify

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/message"
	"github.com/pittisunilkumar3/nibog-sub001/internal/ticket"
)

type recordingPublisher struct {
	mu       sync.Mutex
	outcomes []message.NotificationOutcome
}

func (p *recordingPublisher) Publish(_ context.Context, o message.NotificationOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, o)
	return nil
}

func newTestDispatcher(wa *WhatsAppClient, email *EmailClient, pub Publisher) *Dispatcher {
	return NewDispatcher(wa, email, ticket.NewGenerator(slog.Default()), pub, slog.Default())
}

func TestDispatch_BothChannelsSent(t *testing.T) {
	defer gock.Off()
	gock.New(waURL).Post("/api/send").Reply(200).JSON(map[string]any{"status": "success", "message_id": "wamid.1"})
	gock.New(emailURL).Post("/send").Reply(200).JSON(map[string]any{"success": true, "message_id": "mail-1"})

	pub := &recordingPublisher{}
	d := newTestDispatcher(NewWhatsAppClient(waConfig(), slog.Default()), NewEmailClient(emailConfig(), slog.Default()), pub)

	report := d.Dispatch(context.Background(), testBooking())

	assert.NoError(t, report.Err())
	assert.Equal(t, StateSent, report.WhatsApp.State)
	assert.Equal(t, []State{StatePreparing, StateValidating, StateSending, StateSent}, report.WhatsApp.Transitions)
	assert.Equal(t, "wamid.1", report.WhatsApp.MessageID)
	assert.Equal(t, StateSent, report.Email.State)
	assert.False(t, report.Email.Degraded())
	assert.True(t, gock.IsDone())

	require.Len(t, pub.outcomes, 2)
	assert.Equal(t, "PPT123456789", pub.outcomes[0].BookingRef)
	assert.Equal(t, "SENT", pub.outcomes[1].Outcome)
}

func TestDispatch_DisabledChannelsAreSkipped(t *testing.T) {
	waCfg := waConfig()
	waCfg.Enabled = false

	report := newTestDispatcher(NewWhatsAppClient(waCfg, slog.Default()), nil, nil).Dispatch(context.Background(), testBooking())

	assert.NoError(t, report.Err())
	assert.Equal(t, StateSkippedDisabled, report.WhatsApp.State)
	assert.Equal(t, apperr.NotificationsDisabled, apperr.KindOf(report.WhatsApp.Err))
	assert.Equal(t, StateSkippedDisabled, report.Email.State)
}

func TestDispatch_ParameterCountMismatchStopsBeforeNetwork(t *testing.T) {
	defer gock.Off()
	gock.New(waURL).Post("/api/send").Reply(200).JSON(map[string]any{"status": "success"})

	waCfg := waConfig()
	waCfg.ParamCount = 7

	report := newTestDispatcher(NewWhatsAppClient(waCfg, slog.Default()), nil, nil).Dispatch(context.Background(), testBooking())

	assert.Equal(t, StateFailed, report.WhatsApp.State)
	assert.Equal(t, []State{StatePreparing, StateValidating, StateFailed}, report.WhatsApp.Transitions)
	assert.Equal(t, apperr.ParameterCountMismatch, apperr.KindOf(report.Err()))
	assert.False(t, gock.IsDone())
}

func TestDispatch_OptionalFieldMissingStillSends(t *testing.T) {
	defer gock.Off()
	gock.New(waURL).Post("/api/send").Reply(200).JSON(map[string]any{"status": "success", "message_id": "wamid.3"})

	b := testBooking()
	b.VenueName = ""

	report := newTestDispatcher(NewWhatsAppClient(waConfig(), slog.Default()), nil, nil).Dispatch(context.Background(), b)

	assert.Equal(t, StateSent, report.WhatsApp.State)
	assert.True(t, gock.IsDone())
}

func TestDispatch_ChannelsReportIndependently(t *testing.T) {
	defer gock.Off()
	gock.New(waURL).Post("/api/send").Times(2).Reply(503)
	gock.New(emailURL).Post("/send").Reply(200).JSON(map[string]any{"success": true, "message_id": "mail-1"})

	report := newTestDispatcher(NewWhatsAppClient(waConfig(), slog.Default()), NewEmailClient(emailConfig(), slog.Default()), nil).
		Dispatch(context.Background(), testBooking())

	assert.Equal(t, StateFailed, report.WhatsApp.State)
	assert.Equal(t, apperr.ProviderUnavailable, apperr.KindOf(report.WhatsApp.Err))
	assert.Equal(t, StateSent, report.Email.State)
	assert.Error(t, report.Err())
}

func TestDispatch_TicketFailureDegradesEmail(t *testing.T) {
	defer gock.Off()
	gock.New(emailURL).Post("/send").Reply(200).JSON(map[string]any{"success": true, "message_id": "mail-4"})

	b := testBooking()
	b.BookingRef = ""

	report := newTestDispatcher(nil, NewEmailClient(emailConfig(), slog.Default()), nil).Dispatch(context.Background(), b)

	assert.Equal(t, StateSent, report.Email.State)
	assert.True(t, report.Email.Degraded())
	assert.Equal(t, apperr.AttachmentGenerationFailed, apperr.KindOf(report.Email.Warnings[0]))
	assert.True(t, gock.IsDone())
}

func TestAttempt_IllegalTransitionIgnored(t *testing.T) {
	ctx, a := newAttempt(context.Background(), ChannelEmail, slog.Default())
	a.to(ctx, StateSent)

	assert.Equal(t, StatePreparing, a.State)
	assert.Len(t, a.Transitions, 1)
}
