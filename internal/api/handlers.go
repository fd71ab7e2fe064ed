package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/reconcile"
	"github.com/pittisunilkumar3/nibog-sub001/internal/reference"
)

const maxCallbackBody = 64 << 10

type referenceView struct {
	Reference  string   `json:"reference"`
	Dialect    string   `json:"dialect"`
	Candidates []string `json:"candidates,omitempty"`
}

func (s *Server) handlePaymentStatus(c *gin.Context) {
	var req reconcile.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	result, err := s.confirmer.Confirm(c.Request.Context(), req)
	if err != nil {
		if result != nil {
			respondKind(c, err, result)
		} else {
			respondKind(c, err, nil)
		}
		return
	}
	respondSuccess(c, result, result.Message)
}

func (s *Server) handleCallback(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody))
	if err != nil {
		respondError(c, http.StatusRequestEntityTooLarge, "Callback body too large")
		return
	}

	outcome, err := s.callbacks.Process(c.Request.Context(), body, c.GetHeader("X-VERIFY"))
	if err != nil {
		respondKind(c, err, nil)
		return
	}
	respondSuccess(c, outcome, "Callback processed")
}

func (s *Server) handleReference(c *gin.Context) {
	ref := c.Param("ref")
	target := strings.ToUpper(strings.TrimSpace(c.Query("target")))

	if target == "" {
		dialect, _, err := reference.Parse(ref)
		if err != nil {
			respondKind(c, err, nil)
			return
		}
		respondSuccess(c, referenceView{Reference: ref, Dialect: string(dialect), Candidates: reference.Candidates(ref)}, "")
		return
	}

	converted, err := reference.Convert(ref, reference.Dialect(target))
	if err != nil {
		respondKind(c, err, nil)
		return
	}
	respondSuccess(c, referenceView{Reference: converted, Dialect: target}, "")
}

func (s *Server) handleDerive(c *gin.Context) {
	ref, err := reference.Derive(c.Param("txn"))
	if err != nil {
		respondKind(c, err, nil)
		return
	}
	respondSuccess(c, referenceView{Reference: ref, Dialect: string(reference.Online)}, "")
}

func (s *Server) handleBookingByReference(c *gin.Context) {
	ref, err := s.finder.FindByReference(c.Request.Context(), c.Param("ref"))
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			respondError(c, http.StatusNotFound, "Booking not found")
			return
		}
		respondKind(c, err, nil)
		return
	}
	respondSuccess(c, ref, "")
}
