// provider-mocks simulates the payment gateway, the webhook backend and the
// WhatsApp and email providers for running the service locally.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const contentType = "application/json"

type store struct {
	mu       sync.Mutex
	nextID   int
	payments []map[string]any
}

func main() {
	addr := flag.String("addr", ":8085", "listen address")
	paramCount := flag.Int("whatsapp-params", 8, "parameter count the mock WhatsApp template declares")
	flag.Parse()

	s := &store{nextID: 500}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /pg/v1/status/{merchant}/{txn}", gatewayStatusHandler)
	mux.HandleFunc("GET /payments/get-all", s.listPaymentsHandler)
	mux.HandleFunc("POST /payments/create", s.createPaymentHandler)
	mux.HandleFunc("GET /pending-bookings/get/{txn}", pendingBookingHandler)
	mux.HandleFunc("POST /bookings/create", s.createBookingHandler)
	mux.HandleFunc("POST /whatsapp/send", whatsAppHandler(*paramCount))
	mux.HandleFunc("POST /email/send", emailHandler)

	log.Printf("Provider mocks listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, loggingMiddleware(countMiddleware(mux))))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// gatewayStatusHandler answers by transaction id: ids containing FAIL are
// declined, ids containing PEND stay pending, everything else succeeds.
func gatewayStatusHandler(w http.ResponseWriter, r *http.Request) {
	txn := r.PathValue("txn")
	code, state := "PAYMENT_SUCCESS", "COMPLETED"
	switch {
	case strings.Contains(txn, "FAIL"):
		code, state = "PAYMENT_ERROR", "FAILED"
	case strings.Contains(txn, "PEND"):
		code, state = "PAYMENT_PENDING", "PENDING"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": code == "PAYMENT_SUCCESS",
		"code":    code,
		"message": "mock status",
		"data": map[string]any{
			"merchantId":            r.PathValue("merchant"),
			"merchantTransactionId": txn,
			"transactionId":         "T" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20],
			"amount":                179900,
			"state":                 state,
			"responseCode":          "SUCCESS",
		},
	})
}

func (s *store) listPaymentsHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.payments))
	copy(out, s.payments)
	writeJSON(w, http.StatusOK, out)
}

func (s *store) createPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var record map[string]any
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	record["payment_id"] = len(s.payments) + 1
	s.payments = append(s.payments, record)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, record)
}

func pendingBookingHandler(w http.ResponseWriter, r *http.Request) {
	txn := r.PathValue("txn")
	writeJSON(w, http.StatusOK, map[string]any{
		"transaction_id": txn,
		"user_id":        1,
		"status":         "pending",
		"expires_at":     time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		"booking_data": map[string]any{
			"parent_name": "Test Parent",
			"email":       "parent@example.com",
			"phone":       "9876543210",
			"child_name":  "Test Child",
			"event_title": "NIBOG Baby Olympics",
			"event_date":  "2026-11-15",
			"venue_name":  "Gachibowli Indoor Stadium",
			"games":       []map[string]any{{"game_name": "Birthday Party", "slot_id": 201, "price": 1799}},
		},
	})
}

func (s *store) createBookingHandler(w http.ResponseWriter, r *http.Request) {
	var b map[string]any
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	b["booking_id"] = s.nextID
	s.nextID++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, b)
}

// whatsAppHandler rejects a template call whose parameter count differs from
// the declared one, with the opaque code the real provider uses.
func whatsAppHandler(paramCount int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TemplateData []string `json:"template_data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": err.Error()})
			return
		}
		if len(req.TemplateData) != paramCount {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "(#132000) Number of parameters does not match the expected number of params"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message_id": "wamid." + uuid.NewString()})
	}
}

func emailHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message_id": uuid.NewString()})
}
