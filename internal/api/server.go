// Package api exposes the confirmation pipeline over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pittisunilkumar3/nibog-sub001/internal/booking"
	"github.com/pittisunilkumar3/nibog-sub001/internal/callback"
	"github.com/pittisunilkumar3/nibog-sub001/internal/metrics"
	"github.com/pittisunilkumar3/nibog-sub001/internal/reconcile"
)

type Confirmer interface {
	Confirm(ctx context.Context, req reconcile.Request) (*reconcile.Result, error)
}

type CallbackProcessor interface {
	Process(ctx context.Context, body []byte, xVerify string) (*callback.Outcome, error)
}

type ReferenceFinder interface {
	FindByReference(ctx context.Context, ref string) (*booking.Ref, error)
}

type Server struct {
	confirmer Confirmer
	callbacks CallbackProcessor
	finder    ReferenceFinder
	logger    *slog.Logger
	router    *gin.Engine
}

func NewServer(confirmer Confirmer, callbacks CallbackProcessor, finder ReferenceFinder, logger *slog.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), accessLog(logger))

	s := &Server{
		confirmer: confirmer,
		callbacks: callbacks,
		finder:    finder,
		logger:    logger,
		router:    router,
	}

	router.GET("/liveness", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	{
		api.POST("/payments/status", s.handlePaymentStatus)
		api.POST("/payments/phonepe-callback", s.handleCallback)
		api.GET("/references/:ref", s.handleReference)
		api.GET("/references/derive/:txn", s.handleDerive)
		api.GET("/bookings/by-reference/:ref", s.handleBookingByReference)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
