package config

import (
	"fmt"
	"strings"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
)

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"

	SeverityCritical = "CRITICAL"
	SeverityError    = "ERROR"
)

// sandboxMerchantPrefix is shared by every PhonePe UAT merchant id.
const sandboxMerchantPrefix = "PGTESTPAYUAT"

var sandboxHostMarkers = []string{"preprod", "sandbox", "uat", "localhost", "127.0.0.1"}

// ValidationError lists every configuration problem found at startup.
// Severity is CRITICAL when sandbox and production settings are mixed.
type ValidationError struct {
	Severity string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s configuration error: %s", e.Severity, strings.Join(e.Problems, "; "))
}

func IsSandboxMerchant(merchantID string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(merchantID)), sandboxMerchantPrefix)
}

func IsSandboxURL(rawURL string) bool {
	u := strings.ToLower(rawURL)
	for _, marker := range sandboxHostMarkers {
		if strings.Contains(u, marker) {
			return true
		}
	}
	return false
}

func envName(sandbox bool) string {
	if sandbox {
		return EnvSandbox
	}
	return EnvProduction
}

// Validate must pass before the service accepts traffic. Mixing sandbox and
// production credentials or endpoints yields a CRITICAL error.
func (c *Config) Validate() error {
	var critical, problems []string

	env := strings.ToLower(strings.TrimSpace(c.Gateway.Environment))
	switch env {
	case EnvSandbox, EnvProduction:
	default:
		critical = append(critical, fmt.Sprintf("gateway.environment must be %q or %q, got %q", EnvSandbox, EnvProduction, c.Gateway.Environment))
	}

	if c.Gateway.MerchantID == "" {
		problems = append(problems, "gateway.merchant-id is required")
	}
	if c.Gateway.SaltKey == "" {
		problems = append(problems, "gateway.salt-key is required")
	}
	if c.Gateway.SaltIndex == "" {
		problems = append(problems, "gateway.salt-index is required")
	}
	if c.Gateway.BaseURL == "" {
		problems = append(problems, "gateway.base-url is required")
	}

	merchantSandbox := IsSandboxMerchant(c.Gateway.MerchantID)
	urlSandbox := IsSandboxURL(c.Gateway.BaseURL)

	if c.Gateway.MerchantID != "" && c.Gateway.BaseURL != "" && merchantSandbox != urlSandbox {
		critical = append(critical, fmt.Sprintf("%s merchant id %q paired with %s endpoint %q",
			envName(merchantSandbox), c.Gateway.MerchantID, envName(urlSandbox), c.Gateway.BaseURL))
	}
	if env == EnvProduction && (merchantSandbox || urlSandbox) {
		critical = append(critical, "gateway.environment is production but sandbox credentials or endpoints are configured")
	}
	if env == EnvSandbox && c.Gateway.MerchantID != "" && !merchantSandbox {
		critical = append(critical, "gateway.environment is sandbox but a production merchant id is configured")
	}

	if c.WhatsApp.Enabled {
		waEnv := strings.ToLower(strings.TrimSpace(c.WhatsApp.Environment))
		if waEnv != "" && env != "" && waEnv != env {
			critical = append(critical, fmt.Sprintf("whatsapp.environment %q does not match gateway.environment %q", waEnv, env))
		}
		if c.WhatsApp.URL == "" {
			problems = append(problems, "whatsapp.url is required when whatsapp is enabled")
		}
		if c.WhatsApp.ParamCount <= 0 {
			problems = append(problems, "whatsapp.param-count must be positive")
		}
	}
	if c.Email.Enabled && c.Email.URL == "" {
		problems = append(problems, "email.url is required when email is enabled")
	}
	if c.Backend.BaseURL == "" {
		problems = append(problems, "backend.base-url is required")
	}

	if len(critical) > 0 {
		return apperr.Wrap(&ValidationError{Severity: SeverityCritical, Problems: append(critical, problems...)}, apperr.Critical, "config.Validate")
	}
	if len(problems) > 0 {
		return apperr.Wrap(&ValidationError{Severity: SeverityError, Problems: problems}, apperr.InvalidInput, "config.Validate")
	}
	return nil
}
