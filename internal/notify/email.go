package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/pkg/errors"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/config"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
	"github.com/pittisunilkumar3/nibog-sub001/internal/retry"
	"github.com/pittisunilkumar3/nibog-sub001/internal/sender"
	"github.com/pittisunilkumar3/nibog-sub001/internal/ticket"
)

// QRContentID is how the HTML body references the inline QR image.
const QRContentID = "ticket-qr"

type Attachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id,omitempty"`
}

type EmailSettings struct {
	From     string `json:"from"`
	FromName string `json:"from_name"`
	ReplyTo  string `json:"reply_to,omitempty"`
}

type EmailMessage struct {
	To          string        `json:"to"`
	Subject     string        `json:"subject"`
	HTML        string        `json:"html"`
	Settings    EmailSettings `json:"settings"`
	Attachments []Attachment  `json:"attachments,omitempty"`
}

type emailResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

const confirmationHTML = `<!doctype html>
<html>
<body style="font-family:Arial,sans-serif;color:#222;">
  <h2>Booking confirmed: {{.Booking.EventTitle}}</h2>
  <p>Dear {{.Booking.ParentName}},</p>
  <p>Thank you for registering {{.Booking.ChildName}} for {{.Booking.EventTitle}}.</p>
  <table cellpadding="4">
    <tr><td><b>Booking reference</b></td><td>{{.Booking.BookingRef}}</td></tr>
    <tr><td><b>Date</b></td><td>{{.Booking.EventDate}}</td></tr>
    <tr><td><b>Venue</b></td><td>{{.Booking.VenueName}}</td></tr>
    <tr><td><b>Games</b></td><td>{{.Games}}</td></tr>
    <tr><td><b>Amount paid</b></td><td>INR {{printf "%.2f" .Booking.TotalAmount}}</td></tr>
  </table>
  {{if .HasQR}}<p><img src="cid:{{.QRContentID}}" alt="Ticket QR code" width="200" height="200"/></p>
  <p>Show this QR code at the venue entrance.</p>{{end}}
  {{if .HasPDF}}<p>Your ticket is attached as a PDF.</p>
  {{else}}<p><b>Your ticket could not be attached to this email.</b> Please show your booking reference {{.Booking.BookingRef}} at the venue{{if .SupportEmail}} or contact {{.SupportEmail}} for a copy{{end}}.</p>{{end}}
  <p>See you at NIBOG!</p>
</body>
</html>`

var confirmationTemplate = template.Must(template.New("confirmation").Parse(confirmationHTML))

type confirmationData struct {
	Booking      model.Booking
	Games        string
	HasQR        bool
	HasPDF       bool
	QRContentID  string
	SupportEmail string
}

type EmailClient struct {
	cfg    config.Email
	sender *sender.Sender
	logger *slog.Logger
}

func NewEmailClient(cfg config.Email, logger *slog.Logger) *EmailClient {
	return &EmailClient{
		cfg:    cfg,
		sender: sender.New(config.Millis(cfg.TimeoutMs), logger),
		logger: logger,
	}
}

func (c *EmailClient) Enabled() bool {
	return c != nil && c.cfg.Enabled
}

// ComposeConfirmation renders the booking email. The ticket artifact may be
// degraded or nil; the message is composed from whatever is available.
func (c *EmailClient) ComposeConfirmation(b model.Booking, artifact *ticket.Artifact) (*EmailMessage, error) {
	const op = "notify.ComposeConfirmation"
	to := strings.TrimSpace(b.ParentEmail)
	if _, err := mail.ParseAddress(to); err != nil {
		return nil, apperr.Wrapf(err, apperr.InvalidInput, op, "invalid recipient %q", to)
	}

	data := confirmationData{
		Booking:      b,
		Games:        strings.Join(b.GameNames(), ", "),
		QRContentID:  QRContentID,
		SupportEmail: c.cfg.SupportEmail,
	}

	var attachments []Attachment
	if artifact != nil && len(artifact.QR) > 0 {
		data.HasQR = true
		attachments = append(attachments, Attachment{
			Filename:    "ticket-qr.png",
			Content:     base64.StdEncoding.EncodeToString(artifact.QR),
			ContentType: "image/png",
			ContentID:   QRContentID,
		})
	}
	if artifact != nil && artifact.PDF != nil {
		data.HasPDF = true
		attachments = append(attachments, Attachment{
			Filename:    fmt.Sprintf("NIBOG-Ticket-%s.pdf", b.BookingRef),
			Content:     base64.StdEncoding.EncodeToString(artifact.PDF.Bytes),
			ContentType: "application/pdf",
		})
	}

	var html bytes.Buffer
	if err := confirmationTemplate.Execute(&html, data); err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, op)
	}

	return &EmailMessage{
		To:      to,
		Subject: fmt.Sprintf("Booking Confirmation - %s (%s)", b.EventTitle, b.BookingRef),
		HTML:    html.String(),
		Settings: EmailSettings{
			From:     c.cfg.From,
			FromName: c.cfg.FromName,
			ReplyTo:  c.cfg.ReplyTo,
		},
		Attachments: attachments,
	}, nil
}

func (c *EmailClient) Send(ctx context.Context, msg *EmailMessage) (string, error) {
	const op = "notify.EmailClient.Send"

	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	var messageID string
	policy := retry.Policy{
		Attempts:  c.cfg.MaxAttempts,
		Delay:     config.Millis(c.cfg.RetryDelayMs),
		Retryable: func(err error) bool { return apperr.KindOf(err) == apperr.ProviderUnavailable },
	}
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		resp, err := c.sender.PostJSON(ctx, c.cfg.URL, headers, msg)
		if err != nil {
			c.logger.WarnContext(ctx, "Email send failed", "attempt", attempt, "error", err)
			var statusErr *sender.StatusError
			if errors.As(err, &statusErr) && !statusErr.Retryable() {
				return apperr.Wrapf(err, apperr.TemplateRejected, op, "provider rejected email: %s", truncate(statusErr.Body))
			}
			return apperr.Wrap(err, apperr.ProviderUnavailable, op)
		}

		var out emailResponse
		if err := json.Unmarshal(resp.Body, &out); err != nil {
			// the email may have gone out, so this is not retried
			return apperr.Wrapf(err, apperr.SchemaMismatch, op, "unreadable provider response: %s", truncate(resp.Body))
		}
		if !out.Success && out.Error != "" {
			return apperr.Errorf(apperr.TemplateRejected, op, "provider error: %s", out.Error)
		}
		messageID = out.MessageID
		return nil
	})
	return messageID, err
}
