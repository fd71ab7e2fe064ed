package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	lrw.body.Write(b)
	return lrw.ResponseWriter.Write(b)
}

var (
	mu               sync.Mutex
	bookedTxns       = make(map[string]bool)
	duplicateBooking = make(map[string]bool)
	endpointCounts   = make(map[string]int)
)

// loggingMiddleware logs every exchange and flags a second booking created
// for the same transaction, which the service must never do.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s headers: %v", r.Method, r.URL.Path, r.Header)

		var requestBody bytes.Buffer
		tee := io.TeeReader(r.Body, &requestBody)
		body, err := io.ReadAll(tee)
		if err != nil {
			log.Printf("Error reading request body: %v", err)
		}
		r.Body = io.NopCloser(&requestBody)
		if len(body) > 0 && len(body) < 4096 {
			log.Printf("Request Body: %s", body)
		}

		if r.URL.Path == "/bookings/create" {
			var payload struct {
				TransactionID string `json:"transaction_id"`
			}
			if err := json.Unmarshal(body, &payload); err == nil && payload.TransactionID != "" {
				mu.Lock()
				if bookedTxns[payload.TransactionID] {
					duplicateBooking[payload.TransactionID] = true
				}
				bookedTxns[payload.TransactionID] = true
				for id := range duplicateBooking {
					log.Printf("Duplicate booking for transaction: %s", id)
				}
				mu.Unlock()
			}
		}

		lrw := &loggingResponseWriter{ResponseWriter: w, body: &bytes.Buffer{}}
		next.ServeHTTP(lrw, r)

		log.Printf("Response Body: %s", lrw.body.String())
	})
}

func countMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		endpointCounts[r.URL.Path]++
		count := endpointCounts[r.URL.Path]
		mu.Unlock()

		log.Printf("Endpoint %s has been called %d times", r.URL.Path, count)
		next.ServeHTTP(w, r)
	})
}
