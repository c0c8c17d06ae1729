package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/ledger-categorizer/internal/classifier"
	"github.com/xaenox/ledger-categorizer/internal/models"
	"github.com/xaenox/ledger-categorizer/internal/relay"
	"github.com/xaenox/ledger-categorizer/internal/storage"
	"go.uber.org/zap"
)

const (
	maxBodyBytes    = 1 << 20
	healthTimeout   = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

type WebhookHandler interface {
	Handle(ctx context.Context, body []byte) relay.Outcome
}

type Predictor interface {
	Predict(ctx context.Context, description string) models.PredictionResult
}

type FeedbackCollector interface {
	Collect(ctx context.Context, req models.LedgerFeedback) (*models.FeedbackRecord, error)
}

// Pinger is a collaborator whose reachability is reported by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DegradedReporter is implemented by stores that can fall back to a weaker backend.
type DegradedReporter interface {
	Degraded() bool
}

// Dependencies are the components the HTTP surface dispatches to.
// Corrections, Provider and Ledger are optional.
type Dependencies struct {
	Relay       WebhookHandler
	Predictor   Predictor
	Corrections FeedbackCollector
	Taxonomy    classifier.Taxonomy
	Store       storage.Storage
	Provider    Pinger
	Ledger      Pinger
}

type Server struct {
	deps           Dependencies
	router         *gin.Engine
	requestTimeout time.Duration
	logger         *zap.Logger
}

func New(deps Dependencies, requestTimeout time.Duration, logger *zap.Logger) *Server {
	router := gin.New()

	s := &Server{
		deps:           deps,
		router:         router,
		requestTimeout: requestTimeout,
		logger:         logger,
	}

	router.Use(gin.Recovery(), s.logRequests(), s.withTimeout())

	router.POST("/webhook", s.handleWebhook)
	router.POST("/incoming", s.handleWebhook)
	router.POST("/predict", s.handlePredict)
	router.POST("/feedback", s.handleFeedback)
	router.POST("/feedback/ledger", s.handleLedgerFeedback)
	router.GET("/accuracy", s.handleAccuracy)
	router.GET("/health", s.handleHealth)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) withTimeout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.requestTimeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.requestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
