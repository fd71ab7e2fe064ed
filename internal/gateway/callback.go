package gateway

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
)

// CallbackEnvelope is the body the gateway POSTs to the callback URL.
type CallbackEnvelope struct {
	Response string `json:"response"`
}

// Callback is a verified and decoded server-to-server notification.
type Callback struct {
	Raw        StatusResponse
	Classified Classification
	Result     *StatusResult
}

// VerifyCallback checks X-VERIFY against the base64 payload.
func (c *Client) VerifyCallback(encoded, xVerify string) error {
	const op = "gateway.VerifyCallback"
	if encoded == "" || xVerify == "" {
		return apperr.E(apperr.InvalidInput, op, "missing callback payload or signature")
	}
	if !validChecksum(encoded, c.cfg.SaltKey, c.cfg.SaltIndex, strings.TrimSpace(xVerify)) {
		return apperr.E(apperr.InvalidInput, op, "callback signature mismatch")
	}
	return nil
}

// DecodeCallback unpacks the base64 payload and classifies it the same way a
// status query would be.
func (c *Client) DecodeCallback(encoded string) (*Callback, error) {
	const op = "gateway.DecodeCallback"
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidInput, op)
	}

	var raw StatusResponse
	if err := json.Unmarshal(decoded, &raw); err != nil {
		return nil, apperr.Wrap(err, apperr.SchemaMismatch, op)
	}
	if raw.Data.MerchantTransactionID == "" && raw.Data.TransactionID == "" {
		return nil, apperr.E(apperr.InvalidInput, op, "callback carries no transaction id")
	}

	classified, status := Classify(raw, c.Sandbox())
	return &Callback{
		Raw:        raw,
		Classified: classified,
		Result: &StatusResult{
			TransactionID: raw.Data.MerchantTransactionID,
			Raw:           raw,
			Classified:    classified,
			Status:        status,
		},
	}, nil
}

// ParseCallback verifies then decodes a raw callback request body.
func (c *Client) ParseCallback(body []byte, xVerify string) (*Callback, error) {
	var envelope CallbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidInput, "gateway.ParseCallback")
	}
	if err := c.VerifyCallback(envelope.Response, xVerify); err != nil {
		return nil, err
	}
	return c.DecodeCallback(envelope.Response)
}
