// Package notify delivers booking confirmations over WhatsApp and email.
// Each channel is attempted and reported independently; there is no
// cross-channel rollback.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/logcontext"
	"github.com/pittisunilkumar3/nibog-sub001/internal/message"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
	"github.com/pittisunilkumar3/nibog-sub001/internal/ticket"
)

// Publisher receives every finished attempt. Publishing is best effort.
type Publisher interface {
	Publish(ctx context.Context, outcome message.NotificationOutcome) error
}

type Report struct {
	BookingID  int
	BookingRef string
	WhatsApp   *Attempt
	Email      *Attempt
}

// Err joins the failures of both channels. Skipped channels do not count.
func (r *Report) Err() error {
	return errors.Join(r.WhatsApp.Failure(), r.Email.Failure())
}

type Dispatcher struct {
	whatsapp  *WhatsAppClient
	email     *EmailClient
	tickets   *ticket.Generator
	publisher Publisher
	logger    *slog.Logger
}

// NewDispatcher wires the channel clients. A nil client counts as disabled;
// publisher may be nil.
func NewDispatcher(whatsapp *WhatsAppClient, email *EmailClient, tickets *ticket.Generator, publisher Publisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		whatsapp:  whatsapp,
		email:     email,
		tickets:   tickets,
		publisher: publisher,
		logger:    logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, b model.Booking) *Report {
	ctx = logcontext.AppendCtx(ctx, slog.String("bookingRef", b.BookingRef))
	report := &Report{BookingID: b.BookingID, BookingRef: b.BookingRef}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		report.WhatsApp = d.sendWhatsApp(ctx, b)
	}()
	go func() {
		defer wg.Done()
		report.Email = d.sendEmail(ctx, b)
	}()
	wg.Wait()

	d.publish(ctx, b, report.WhatsApp)
	d.publish(ctx, b, report.Email)

	d.logger.InfoContext(ctx, "Notifications dispatched",
		"whatsapp", report.WhatsApp.State, "email", report.Email.State)
	return report
}

func (d *Dispatcher) sendWhatsApp(ctx context.Context, b model.Booking) *Attempt {
	ctx, a := newAttempt(ctx, ChannelWhatsApp, d.logger)
	if !d.whatsapp.Enabled() {
		a.skip(ctx)
		return a
	}

	params := BuildTemplateParams(b)
	a.to(ctx, StateValidating)

	values, err := ValidateParameters(params, d.whatsapp.ParamCount())
	if err != nil {
		a.fail(ctx, err)
		return a
	}
	phone, err := NormalizePhone(b.ParentPhone)
	if err != nil {
		a.fail(ctx, err)
		return a
	}

	a.to(ctx, StateSending)
	messageID, err := d.whatsapp.Send(ctx, phone, values)
	if err != nil {
		a.fail(ctx, err)
		return a
	}
	a.sent(ctx, messageID)
	return a
}

func (d *Dispatcher) sendEmail(ctx context.Context, b model.Booking) *Attempt {
	ctx, a := newAttempt(ctx, ChannelEmail, d.logger)
	if !d.email.Enabled() {
		a.skip(ctx)
		return a
	}

	var artifact *ticket.Artifact
	if d.tickets != nil {
		artifact = d.tickets.Generate(ctx, b)
		if err := artifact.Err(); err != nil {
			a.warn(ctx, err)
		} else if artifact.Degraded() {
			for _, p := range artifact.Problems {
				a.warn(ctx, apperr.Wrap(p, apperr.AttachmentGenerationFailed, "notify.sendEmail"))
			}
		}
	} else {
		a.warn(ctx, apperr.E(apperr.AttachmentGenerationFailed, "notify.sendEmail", "ticket generation is not configured"))
	}

	a.to(ctx, StateValidating)
	msg, err := d.email.ComposeConfirmation(b, artifact)
	if err != nil {
		a.fail(ctx, err)
		return a
	}

	a.to(ctx, StateSending)
	messageID, err := d.email.Send(ctx, msg)
	if err != nil {
		a.fail(ctx, err)
		return a
	}
	a.sent(ctx, messageID)
	return a
}

func (d *Dispatcher) publish(ctx context.Context, b model.Booking, a *Attempt) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, a.Outcome(b.BookingID, b.BookingRef)); err != nil {
		d.logger.WarnContext(ctx, "Failed to publish notification outcome", "channel", a.Channel, "error", err)
	}
}
