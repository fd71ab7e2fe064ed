package notify

import (
	"context"
	"log/slog"
	"testing"

	"github.com/h2non/gock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/config"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
)

const waURL = "https://wa.example.com"

func waConfig() config.WhatsApp {
	return config.WhatsApp{
		Enabled:          true,
		URL:              waURL + "/api/send",
		Token:            "tok",
		TemplateName:     "booking_confirmation",
		TemplateLanguage: "en",
		ParamCount:       8,
		TimeoutMs:        1_000,
		MaxAttempts:      2,
		RetryDelayMs:     1,
	}
}

func testBooking() model.Booking {
	return model.Booking{
		BookingID:   500,
		BookingRef:  "PPT123456789",
		ParentName:  "Asha Rao",
		ParentEmail: "asha@example.com",
		ParentPhone: "+91 98765-43210",
		ChildName:   "Test Child",
		EventTitle:  "NIBOG Hyderabad",
		EventDate:   "2025-03-16",
		VenueName:   "Gachibowli Indoor Stadium",
		TotalAmount: 1799,
		Games:       []model.Game{{Name: "Birthday Party", SlotID: 201, Price: 1799}},
	}
}

func TestBuildTemplateParams(t *testing.T) {
	params := BuildTemplateParams(testBooking())

	require.Len(t, params, 8)
	assert.Equal(t, "parent_name", params[0].Name)
	assert.Equal(t, "Birthday Party", params[5].Value)
	assert.Equal(t, "₹1799", params[6].Value)
	assert.Equal(t, "PPT123456789", params[7].Value)
}

func TestValidateParameters_CountMismatch(t *testing.T) {
	params := BuildTemplateParams(testBooking())[:7]

	values, err := ValidateParameters(params, 8)

	assert.Nil(t, values)
	assert.Equal(t, apperr.ParameterCountMismatch, apperr.KindOf(err))

	var mismatch *CountMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 8, mismatch.Declared)
	assert.Contains(t, err.Error(), "template declares 8 parameters, got 7")
	assert.Contains(t, err.Error(), "{{8}}=<missing>")
	assert.Contains(t, err.Error(), `{{1}}=parent_name("Asha Rao")`)
}

func TestValidateParameters_OptionalDefaults(t *testing.T) {
	b := testBooking()
	b.VenueName = ""
	b.Games = nil

	values, err := ValidateParameters(BuildTemplateParams(b), 8)

	require.NoError(t, err)
	assert.Equal(t, DefaultValue, values[4])
	assert.Equal(t, DefaultValue, values[5])
}

func TestValidateParameters_RequiredMissing(t *testing.T) {
	b := testBooking()
	b.ChildName = "  "

	_, err := ValidateParameters(BuildTemplateParams(b), 8)

	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "{{2}}=child_name")
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in       string
		expected string
		valid    bool
	}{
		{"9876543210", "919876543210", true},
		{"+91 98765-43210", "919876543210", true},
		{"09876543210", "919876543210", true},
		{"919876543210", "919876543210", true},
		{"12345", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if !tt.valid {
				assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWhatsAppSend(t *testing.T) {
	values, err := ValidateParameters(BuildTemplateParams(testBooking()), 8)
	require.NoError(t, err)

	tests := []struct {
		name         string
		mockResponse func()
		expectedID   string
		expectedKind apperr.Kind
	}{
		{
			name: "Success",
			mockResponse: func() {
				gock.New(waURL).Post("/api/send").
					JSON(map[string]any{
						"token":             "tok",
						"phone":             "919876543210",
						"template_name":     "booking_confirmation",
						"template_language": "en",
						"template_data":     values,
					}).
					Reply(200).
					JSON(map[string]any{"status": "success", "message_id": "wamid.1"})
			},
			expectedID: "wamid.1",
		},
		{
			name: "RetriesProviderOutage",
			mockResponse: func() {
				gock.New(waURL).Post("/api/send").Reply(503)
				gock.New(waURL).Post("/api/send").Reply(200).JSON(map[string]any{"status": "success", "message_id": "wamid.2"})
			},
			expectedID: "wamid.2",
		},
		{
			name: "ProviderRejects",
			mockResponse: func() {
				gock.New(waURL).Post("/api/send").Reply(200).
					JSON(map[string]any{"status": "error", "message": "(#132000) Number of parameters does not match"})
			},
			expectedKind: apperr.TemplateRejected,
		},
		{
			name: "BadRequest",
			mockResponse: func() {
				gock.New(waURL).Post("/api/send").Reply(400).JSON(map[string]any{"error": "132000"})
			},
			expectedKind: apperr.TemplateRejected,
		},
		{
			name: "OutageExhaustsRetries",
			mockResponse: func() {
				gock.New(waURL).Post("/api/send").Times(2).Reply(502)
			},
			expectedKind: apperr.ProviderUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mockResponse()

			id, err := NewWhatsAppClient(waConfig(), slog.Default()).Send(context.Background(), "919876543210", values)

			if tt.expectedKind != "" {
				assert.Equal(t, tt.expectedKind, apperr.KindOf(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedID, id)
			}
			assert.True(t, gock.IsDone())
		})
	}
}

func TestWhatsAppSend_CountMismatchNeverReachesProvider(t *testing.T) {
	defer gock.Off()
	gock.New(waURL).Post("/api/send").Reply(200).JSON(map[string]any{"status": "success"})

	_, err := NewWhatsAppClient(waConfig(), slog.Default()).Send(context.Background(), "919876543210", []string{"a", "b"})

	assert.Equal(t, apperr.ParameterCountMismatch, apperr.KindOf(err))
	assert.False(t, gock.IsDone())
}
