package sender

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
)

func TestSender_PostJSON(t *testing.T) {
	tests := []struct {
		name           string
		mockResponse   func()
		expectedError  bool
		expectedStatus int
		retryable      bool
	}{
		{
			name: "Success",
			mockResponse: func() {
				gock.New("http://example.com").
					Post("/send").
					MatchHeader("Content-Type", "application/json").
					MatchHeader("Authorization", "Bearer token").
					JSON(map[string]string{"data": "test"}).
					Reply(200).
					JSON(map[string]string{"status": "ok"})
			},
			expectedStatus: 200,
		},
		{
			name: "ServerError",
			mockResponse: func() {
				gock.New("http://example.com").
					Post("/send").
					Reply(502).
					JSON(map[string]string{"error": "bad gateway"})
			},
			expectedError:  true,
			expectedStatus: 502,
			retryable:      true,
		},
		{
			name: "ClientError",
			mockResponse: func() {
				gock.New("http://example.com").
					Post("/send").
					Reply(400).
					JSON(map[string]string{"error": "bad request"})
			},
			expectedError:  true,
			expectedStatus: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.mockResponse()

			s := New(time.Second, slog.Default())
			resp, err := s.PostJSON(context.Background(), "http://example.com/send",
				map[string]string{"Authorization": "Bearer token"}, map[string]string{"data": "test"})

			if tt.expectedError {
				var statusErr *StatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, tt.retryable, statusErr.Retryable())
			} else {
				assert.NoError(t, err)
			}
			require.NotNil(t, resp)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.True(t, gock.IsDone())
		})
	}
}

func TestSender_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(50*time.Millisecond, slog.Default())
	_, err := s.Get(context.Background(), srv.URL+"/slow", nil)

	require.Error(t, err)
	assert.Equal(t, apperr.RequestTimeout, apperr.KindOf(err))
	assert.True(t, apperr.Retryable(err))
}

func TestSender_TransportError(t *testing.T) {
	defer gock.Off()
	gock.New("http://example.com").
		Get("/down").
		ReplyError(errors.New("connection refused"))

	s := New(time.Second, slog.Default())
	_, err := s.Get(context.Background(), "http://example.com/down", nil)

	require.Error(t, err)
	assert.Equal(t, apperr.TransientError, apperr.KindOf(err))
}
