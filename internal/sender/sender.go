// Package sender is the JSON-over-HTTP transport shared by the gateway,
// backend and notification provider clients.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
)

const (
	defaultTimeout  = 10 * time.Second
	maxLoggedBody   = 512
	contentTypeJSON = "application/json"
)

type Sender struct {
	client *http.Client
	logger *slog.Logger
}

type Response struct {
	StatusCode int
	Body       []byte
}

// StatusError is returned for responses with a status code >= 400.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("error response: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether the upstream asked us to come back later.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func New(timeout time.Duration, logger *slog.Logger) *Sender {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Sender{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (s *Sender) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return s.do(ctx, http.MethodGet, url, headers, nil)
}

func (s *Sender) PostJSON(ctx context.Context, url string, headers map[string]string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidInput, "sender.PostJSON")
	}
	return s.do(ctx, http.MethodPost, url, headers, body)
}

// do returns the response together with a *StatusError for status >= 400, so
// callers can still inspect provider error bodies. Transport failures are
// classified with apperr.FromTransport.
func (s *Sender) do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*Response, error) {
	s.logger.DebugContext(ctx, "Sending request", "method", method, "url", url)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidInput, "sender.do")
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	req.Header.Set("Accept", contentTypeJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WarnContext(ctx, "Error sending request", "url", url, "error", err)
		return nil, apperr.FromTransport(err, "sender.do")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		s.logger.WarnContext(ctx, "Error reading response body", "url", url, "error", err)
		return nil, apperr.FromTransport(err, "sender.do")
	}

	s.logger.DebugContext(ctx, "Received response", "url", url, "status", resp.StatusCode, "body", truncate(respBody))

	out := &Response{StatusCode: resp.StatusCode, Body: respBody}
	if resp.StatusCode >= 400 {
		return out, &StatusError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return out, nil
}

func truncate(b []byte) string {
	if len(b) <= maxLoggedBody {
		return string(b)
	}
	return string(b[:maxLoggedBody]) + "..."
}
