package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/reference"
)

const sandboxConfig = `
gateway:
  environment: sandbox
  base-url: https://api-preprod.phonepe.com/apis/pg-sandbox
  merchant-id: PGTESTPAYUAT86
  salt-key: 96434309-7796-489d-8924-ab56988a6076
  salt-index: "1"
backend:
  base-url: https://backend.example.com/webhook/v1/nibog
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
	return dir
}

func TestRefDerive(t *testing.T) {
	expected, err := reference.Derive("TXN_0001")
	require.NoError(t, err)

	out, err := run(t, "ref", "derive", "TXN_0001")

	require.NoError(t, err)
	assert.Equal(t, expected, out)
}

func TestRefDerive_InvalidID(t *testing.T) {
	_, err := run(t, "ref", "derive", "bad id!")
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestRefConvert(t *testing.T) {
	out, err := run(t, "ref", "convert", "MAN123456789", "--to", "ppt")
	require.NoError(t, err)
	assert.Equal(t, "PPT123456789", out)

	_, err = run(t, "ref", "convert", "MAN123456789")
	assert.Error(t, err)
}

func TestConfigCheck(t *testing.T) {
	out, err := run(t, "config", "check", "--config", writeConfig(t, sandboxConfig))
	require.NoError(t, err)
	assert.Contains(t, out, "configuration OK")

	mixed := strings.Replace(sandboxConfig, "https://api-preprod.phonepe.com/apis/pg-sandbox", "https://api.phonepe.com/apis/hermes", 1)
	_, err = run(t, "config", "check", "--config", writeConfig(t, mixed))
	assert.True(t, apperr.Is(err, apperr.Critical))
}

func TestStatus(t *testing.T) {
	defer gock.Off()
	gock.New("https://api-preprod.phonepe.com/apis/pg-sandbox").
		Get("/pg/v1/status/PGTESTPAYUAT86/MT_0001").
		Reply(200).
		JSON(map[string]any{"success": true, "code": "PAYMENT_SUCCESS", "data": map[string]any{"amount": 179900, "state": "COMPLETED"}})

	out, err := run(t, "status", "MT_0001", "--config", writeConfig(t, sandboxConfig))

	require.NoError(t, err)
	assert.Contains(t, out, `"status": "SUCCESS"`)
	assert.Contains(t, out, `"amountPaise": 179900`)
	assert.True(t, gock.IsDone())
}

func TestStatus_WaitPollsUntilSettled(t *testing.T) {
	defer gock.Off()
	gock.New("https://api-preprod.phonepe.com/apis/pg-sandbox").
		Get("/pg/v1/status/PGTESTPAYUAT86/MT_0001").
		Reply(200).
		JSON(map[string]any{"success": true, "code": "PAYMENT_PENDING", "data": map[string]any{"amount": 179900, "state": "PENDING"}})
	gock.New("https://api-preprod.phonepe.com/apis/pg-sandbox").
		Get("/pg/v1/status/PGTESTPAYUAT86/MT_0001").
		Reply(200).
		JSON(map[string]any{"success": true, "code": "PAYMENT_SUCCESS", "data": map[string]any{"amount": 179900, "state": "COMPLETED"}})

	cfg := strings.Replace(sandboxConfig, `salt-index: "1"`, "salt-index: \"1\"\n  poll-attempts: 3\n  poll-delay-ms: 1", 1)

	out, err := run(t, "status", "MT_0001", "--wait", "--config", writeConfig(t, cfg))

	require.NoError(t, err)
	assert.Contains(t, out, `"status": "SUCCESS"`)
	assert.True(t, gock.IsDone())
}
