package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/config"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
	"github.com/pittisunilkumar3/nibog-sub001/internal/retry"
	"github.com/pittisunilkumar3/nibog-sub001/internal/sender"
)

// DefaultValue replaces empty optional template parameters.
const DefaultValue = "N/A"

// TemplateParam is one positional parameter of the booking confirmation
// template. Position in the slice is the template position.
type TemplateParam struct {
	Name     string
	Value    string
	Required bool
}

// BuildTemplateParams lists the booking confirmation parameters in template
// order.
func BuildTemplateParams(b model.Booking) []TemplateParam {
	return []TemplateParam{
		{Name: "parent_name", Value: b.ParentName, Required: true},
		{Name: "child_name", Value: b.ChildName, Required: true},
		{Name: "event_title", Value: b.EventTitle, Required: true},
		{Name: "event_date", Value: b.EventDate},
		{Name: "venue_name", Value: b.VenueName},
		{Name: "games", Value: strings.Join(b.GameNames(), ", ")},
		{Name: "amount", Value: formatAmount(b.TotalAmount), Required: true},
		{Name: "booking_ref", Value: b.BookingRef, Required: true},
	}
}

func formatAmount(amount float64) string {
	if amount <= 0 {
		return ""
	}
	if amount == float64(int64(amount)) {
		return fmt.Sprintf("₹%d", int64(amount))
	}
	return fmt.Sprintf("₹%.2f", amount)
}

// CountMismatchError carries the full parameter diff for operators.
type CountMismatchError struct {
	Declared int
	Params   []TemplateParam
}

func (e *CountMismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "template declares %d parameters, got %d:", e.Declared, len(e.Params))
	n := max(e.Declared, len(e.Params))
	for i := 0; i < n; i++ {
		switch {
		case i >= len(e.Params):
			fmt.Fprintf(&b, " {{%d}}=<missing>", i+1)
		case i >= e.Declared:
			fmt.Fprintf(&b, " {{%d}}=%s(%q)<extra>", i+1, e.Params[i].Name, e.Params[i].Value)
		default:
			fmt.Fprintf(&b, " {{%d}}=%s(%q)", i+1, e.Params[i].Name, e.Params[i].Value)
		}
	}
	return b.String()
}

// ValidateParameters checks the shape first and the content second. Empty
// optional values become DefaultValue; an empty required value fails.
func ValidateParameters(params []TemplateParam, declared int) ([]string, error) {
	const op = "notify.ValidateParameters"
	if len(params) != declared {
		return nil, apperr.Wrap(&CountMismatchError{Declared: declared, Params: params}, apperr.ParameterCountMismatch, op)
	}

	values := make([]string, len(params))
	var missing []string
	for i, p := range params {
		v := strings.TrimSpace(p.Value)
		if v == "" {
			if p.Required {
				missing = append(missing, fmt.Sprintf("{{%d}}=%s", i+1, p.Name))
				continue
			}
			v = DefaultValue
		}
		values[i] = v
	}
	if len(missing) > 0 {
		return nil, apperr.Errorf(apperr.InvalidInput, op, "required template parameters are empty: %s", strings.Join(missing, ", "))
	}
	return values, nil
}

// NormalizePhone returns the number with the 91 country code and no
// formatting characters.
func NormalizePhone(phone string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	switch {
	case len(digits) == 10:
		return "91" + digits, nil
	case len(digits) == 11 && digits[0] == '0':
		return "91" + digits[1:], nil
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		return digits, nil
	}
	return "", apperr.Errorf(apperr.InvalidInput, "notify.NormalizePhone", "invalid phone number %q", phone)
}

type whatsAppRequest struct {
	Token            string   `json:"token"`
	Phone            string   `json:"phone"`
	TemplateName     string   `json:"template_name"`
	TemplateLanguage string   `json:"template_language"`
	TemplateData     []string `json:"template_data"`
}

type whatsAppResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
}

type WhatsAppClient struct {
	cfg    config.WhatsApp
	sender *sender.Sender
	logger *slog.Logger
}

func NewWhatsAppClient(cfg config.WhatsApp, logger *slog.Logger) *WhatsAppClient {
	return &WhatsAppClient{
		cfg:    cfg,
		sender: sender.New(config.Millis(cfg.TimeoutMs), logger),
		logger: logger,
	}
}

func (c *WhatsAppClient) Enabled() bool {
	return c != nil && c.cfg.Enabled
}

func (c *WhatsAppClient) ParamCount() int {
	return c.cfg.ParamCount
}

// Send delivers the template message. values must already be validated;
// the count is checked again so a mismatch never reaches the provider.
func (c *WhatsAppClient) Send(ctx context.Context, phone string, values []string) (string, error) {
	const op = "notify.WhatsAppClient.Send"
	if len(values) != c.cfg.ParamCount {
		params := make([]TemplateParam, len(values))
		for i, v := range values {
			params[i] = TemplateParam{Name: fmt.Sprintf("param_%d", i+1), Value: v}
		}
		return "", apperr.Wrap(&CountMismatchError{Declared: c.cfg.ParamCount, Params: params}, apperr.ParameterCountMismatch, op)
	}

	req := whatsAppRequest{
		Token:            c.cfg.Token,
		Phone:            phone,
		TemplateName:     c.cfg.TemplateName,
		TemplateLanguage: c.cfg.TemplateLanguage,
		TemplateData:     values,
	}

	var messageID string
	policy := retry.Policy{
		Attempts:  c.cfg.MaxAttempts,
		Delay:     config.Millis(c.cfg.RetryDelayMs),
		Retryable: func(err error) bool { return apperr.KindOf(err) == apperr.ProviderUnavailable },
	}
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		id, err := c.send(ctx, op, req)
		if err != nil {
			c.logger.WarnContext(ctx, "WhatsApp send failed", "attempt", attempt, "error", err)
			return err
		}
		messageID = id
		return nil
	})
	return messageID, err
}

func (c *WhatsAppClient) send(ctx context.Context, op string, req whatsAppRequest) (string, error) {
	resp, err := c.sender.PostJSON(ctx, c.cfg.URL, nil, req)
	if err != nil {
		var statusErr *sender.StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return "", apperr.Wrapf(err, apperr.TemplateRejected, op, "provider rejected template: %s", truncate(statusErr.Body))
		}
		return "", apperr.Wrap(err, apperr.ProviderUnavailable, op)
	}

	var out whatsAppResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		// the message may have gone out, so this is not retried
		return "", apperr.Wrap(err, apperr.SchemaMismatch, op)
	}
	if !strings.EqualFold(out.Status, "success") {
		return "", apperr.Errorf(apperr.TemplateRejected, op, "provider status %q: %s", out.Status, out.Message)
	}
	return out.MessageID, nil
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
