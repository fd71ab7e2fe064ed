// Package ticket builds the per-booking ticket artifact: the QR payload, its
// PNG rendering and an A4 PDF. Nothing is persisted.
package ticket

import (
	"context"
	"log/slog"

	"github.com/VictoriaMetrics/metrics"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
)

var (
	ticketCompleteCounter = metrics.GetOrCreateCounter(`ticket_generated_total{result="complete"}`)
	ticketDegradedCounter = metrics.GetOrCreateCounter(`ticket_generated_total{result="degraded"}`)
	ticketFailedCounter   = metrics.GetOrCreateCounter(`ticket_generated_total{result="failed"}`)
)

type Artifact struct {
	Payload string
	QR      []byte
	PDF     *Document
	// Problems collects every step that degraded the artifact.
	Problems []error
}

func (a *Artifact) Degraded() bool {
	return len(a.Problems) > 0
}

// Err is non-nil only when no PDF could be produced.
func (a *Artifact) Err() error {
	if a.PDF != nil {
		return nil
	}
	var cause error
	if len(a.Problems) > 0 {
		cause = a.Problems[len(a.Problems)-1]
	}
	if cause == nil {
		return apperr.E(apperr.AttachmentGenerationFailed, "ticket.Generate", "no document")
	}
	return apperr.Wrap(cause, apperr.AttachmentGenerationFailed, "ticket.Generate")
}

type Generator struct {
	logger *slog.Logger
}

func NewGenerator(logger *slog.Logger) *Generator {
	return &Generator{logger: logger}
}

// Generate runs payload, QR and PDF in order. Each failed step is recorded
// and the next one continues with what is available.
func (g *Generator) Generate(ctx context.Context, b model.Booking) *Artifact {
	a := &Artifact{}

	payload, err := BuildQRPayload(b)
	if err != nil {
		g.logger.WarnContext(ctx, "Cannot build QR payload", "error", err)
		a.Problems = append(a.Problems, err)
	} else {
		a.Payload = payload
		qr, err := RenderQR(payload)
		if err != nil {
			g.logger.WarnContext(ctx, "Cannot render QR code", "error", err)
			a.Problems = append(a.Problems, err)
		}
		a.QR = qr
	}

	doc, err := RenderPDF(FieldsFrom(b), a.QR)
	if err != nil {
		g.logger.ErrorContext(ctx, "Cannot render ticket PDF", "error", err)
		a.Problems = append(a.Problems, err)
		ticketFailedCounter.Inc()
		return a
	}
	a.PDF = doc

	if doc.QRPlaceholder && len(a.QR) > 0 {
		a.Problems = append(a.Problems, apperr.E(apperr.AttachmentGenerationFailed, "ticket.RenderPDF", "QR image could not be embedded"))
	}

	if a.Degraded() {
		ticketDegradedCounter.Inc()
	} else {
		ticketCompleteCounter.Inc()
	}
	g.logger.InfoContext(ctx, "Ticket generated", "pages", doc.Pages, "blocks", doc.Blocks, "degraded", a.Degraded())
	return a
}
