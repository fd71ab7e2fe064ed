// Package gateway talks to the PhonePe payment gateway: status queries for
// the redirect path and signature checks for the server-to-server callback.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/config"
	"github.com/pittisunilkumar3/nibog-sub001/internal/logcontext"
	"github.com/pittisunilkumar3/nibog-sub001/internal/model"
	"github.com/pittisunilkumar3/nibog-sub001/internal/retry"
	"github.com/pittisunilkumar3/nibog-sub001/internal/sender"
)

const statusPathFormat = "/pg/v1/status/%s/%s"

var (
	statusSuccessCounter   = metrics.GetOrCreateCounter(`gateway_status_total{result="success"}`)
	statusPendingCounter   = metrics.GetOrCreateCounter(`gateway_status_total{result="pending"}`)
	statusFailedCounter    = metrics.GetOrCreateCounter(`gateway_status_total{result="failed"}`)
	statusTransientCounter = metrics.GetOrCreateCounter(`gateway_status_total{result="transient_error"}`)

	statusDurationHistogram = metrics.GetOrCreateHistogram(`gateway_status_duration_milliseconds`)
)

type Config struct {
	Environment string
	BaseURL     string
	MerchantID  string
	SaltKey     string
	SaltIndex   string
	Timeout     time.Duration
}

func ConfigFrom(cfg config.Gateway) Config {
	return Config{
		Environment: strings.ToLower(cfg.Environment),
		BaseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		MerchantID:  cfg.MerchantID,
		SaltKey:     cfg.SaltKey,
		SaltIndex:   cfg.SaltIndex,
		Timeout:     config.Millis(cfg.TimeoutMs),
	}
}

type StatusData struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	TransactionID         string `json:"transactionId"`
	Amount                int64  `json:"amount"`
	State                 string `json:"state"`
	PaymentState          string `json:"paymentState"`
	ResponseCode          string `json:"responseCode"`
}

type StatusResponse struct {
	Success bool       `json:"success"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Data    StatusData `json:"data"`
}

type StatusResult struct {
	TransactionID string
	Raw           StatusResponse
	Classified    Classification
	Status        model.TxnStatus
}

// Transaction converts the result into the ledger representation.
func (r *StatusResult) Transaction(merchantTxnID string) model.Transaction {
	txnID := r.Raw.Data.TransactionID
	if merchantTxnID == "" {
		merchantTxnID = r.Raw.Data.MerchantTransactionID
	}
	if merchantTxnID == "" {
		merchantTxnID = r.TransactionID
	}
	return model.Transaction{
		TransactionID:         txnID,
		MerchantTransactionID: merchantTxnID,
		Status:                r.Status,
		Code:                  r.Raw.Code,
		AmountPaise:           r.Raw.Data.Amount,
		UpdatedAt:             time.Now(),
	}
}

type Client struct {
	cfg    Config
	sender *sender.Sender
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		sender: sender.New(cfg.Timeout, logger),
		logger: logger,
	}
}

func (c *Client) Sandbox() bool {
	return c.cfg.Environment == config.EnvSandbox
}

// CheckStatus queries the gateway for transactionID, the id the payment was
// initiated with. It never mutates state. An explicit failure is returned as
// a PaymentFailed error together with the classified result.
func (c *Client) CheckStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	const op = "gateway.CheckStatus"
	if strings.TrimSpace(transactionID) == "" {
		return nil, apperr.E(apperr.InvalidInput, op, "transaction id is empty")
	}

	startTime := time.Now()
	defer func() {
		statusDurationHistogram.Update(float64(time.Since(startTime).Milliseconds()))
	}()

	ctx = logcontext.AppendCtx(ctx, slog.String("transactionId", transactionID))

	path := fmt.Sprintf(statusPathFormat, url.PathEscape(c.cfg.MerchantID), url.PathEscape(transactionID))
	headers := map[string]string{
		"X-VERIFY":      Checksum(path, c.cfg.SaltKey, c.cfg.SaltIndex),
		"X-MERCHANT-ID": c.cfg.MerchantID,
	}

	resp, err := c.sender.Get(ctx, c.cfg.BaseURL+path, headers)
	if err != nil {
		var statusErr *sender.StatusError
		if !errors.As(err, &statusErr) || statusErr.Retryable() {
			c.logger.WarnContext(ctx, "Status query failed", "error", err)
			statusTransientCounter.Inc()
			return nil, apperr.Wrap(err, apperr.TransientError, op)
		}
		// 4xx responses still carry a classifiable body.
	}

	var raw StatusResponse
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		c.logger.WarnContext(ctx, "Undecodable status response", "error", err)
		statusTransientCounter.Inc()
		return nil, apperr.Wrap(err, apperr.TransientError, op)
	}

	classified, status := Classify(raw, c.Sandbox())
	result := &StatusResult{
		TransactionID: transactionID,
		Raw:           raw,
		Classified:    classified,
		Status:        status,
	}

	c.logger.InfoContext(ctx, "Payment status checked", "code", raw.Code, "classified", classified)

	switch classified {
	case Success:
		statusSuccessCounter.Inc()
	case Pending:
		statusPendingCounter.Inc()
	case Failed:
		statusFailedCounter.Inc()
		return result, apperr.Errorf(apperr.PaymentFailed, op, "gateway reported %s", raw.Code)
	}
	return result, nil
}

// PollUntilTerminal re-queries a pending or unreachable transaction until it
// reaches a definitive state, the attempts are used up or ctx is done.
func (c *Client) PollUntilTerminal(ctx context.Context, transactionID string, attempts int, delay time.Duration) (*StatusResult, error) {
	var last *StatusResult
	errStillPending := apperr.E(apperr.TransientError, "gateway.PollUntilTerminal", "payment still pending")

	err := retry.Do(ctx, retry.Policy{Attempts: attempts, Delay: delay, Retryable: apperr.Retryable},
		func(ctx context.Context, attempt int) error {
			result, err := c.CheckStatus(ctx, transactionID)
			if result != nil {
				last = result
			}
			if err != nil {
				return err
			}
			if result.Classified == Pending {
				return errStillPending
			}
			return nil
		})

	if err == errStillPending {
		return last, nil
	}
	return last, err
}
