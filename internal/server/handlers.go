package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/ledger-categorizer/internal/models"
	"github.com/xaenox/ledger-categorizer/internal/relay"
	"github.com/xaenox/ledger-categorizer/internal/storage"
	"go.uber.org/zap"
)

func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.WebhookResponse{
			Status: models.StatusError,
			Detail: "failed to read request body",
		})
		return
	}

	out := s.deps.Relay.Handle(c.Request.Context(), body)
	if errors.Is(out.Err, relay.ErrMalformedPayload) {
		c.JSON(http.StatusBadRequest, out.Response)
		return
	}
	c.JSON(http.StatusOK, out.Response)
}

func (s *Server) handlePredict(c *gin.Context) {
	var req models.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	result := s.deps.Predictor.Predict(c.Request.Context(), req.Description)
	if id := strings.TrimSpace(req.TransactionID); id != "" {
		s.logger.Info("Prediction served for ledger transaction",
			zap.String("transaction_id", id),
			zap.String("prediction_id", result.PredictionID),
			zap.String("category", result.Category))
	}
	c.JSON(http.StatusOK, result)
}

type feedbackRequest struct {
	PredictionID      string  `json:"prediction_id"`
	Description       string  `json:"description"`
	PredictedCategory string  `json:"predicted_category"`
	ActualCategory    string  `json:"actual_category"`
	Confidence        float64 `json:"confidence"`
	Source            string  `json:"source"`
}

func (s *Server) handleFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	predicted := s.deps.Taxonomy.Normalize(req.PredictedCategory)
	actual := s.deps.Taxonomy.Normalize(req.ActualCategory)
	record := &models.FeedbackRecord{
		PredictionID:      strings.TrimSpace(req.PredictionID),
		Description:       strings.TrimSpace(req.Description),
		PredictedCategory: predicted,
		ActualCategory:    actual,
		Confidence:        req.Confidence,
		IsCorrect:         predicted != "" && strings.EqualFold(predicted, actual),
		Source:            models.FeedbackSource(strings.ToLower(strings.TrimSpace(req.Source))),
	}

	if err := s.deps.Store.RecordFeedback(c.Request.Context(), record); err != nil {
		if errors.Is(err, storage.ErrInvalidFeedback) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("Failed to record feedback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record feedback"})
		return
	}

	s.logger.Info("Feedback recorded",
		zap.String("feedback_id", record.ID),
		zap.String("predicted_category", record.PredictedCategory),
		zap.String("actual_category", record.ActualCategory),
		zap.Bool("is_correct", record.IsCorrect))
	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleLedgerFeedback(c *gin.Context) {
	if s.deps.Corrections == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger feedback is not configured"})
		return
	}

	var req models.LedgerFeedback
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	record, err := s.deps.Corrections.Collect(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, record)
	case errors.Is(err, relay.ErrNothingToCompare):
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "detail": err.Error()})
	case errors.Is(err, storage.ErrInvalidFeedback):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, relay.ErrLedgerRead):
		s.logger.Warn("Failed to read ledger transaction",
			zap.String("transaction_id", req.TransactionID),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to read ledger transaction"})
	default:
		s.logger.Error("Failed to record ledger feedback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record feedback"})
	}
}

func (s *Server) handleAccuracy(c *gin.Context) {
	report, err := s.deps.Store.AccuracyReport(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to build accuracy report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build accuracy report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

type healthResponse struct {
	Status   string            `json:"status"`
	Degraded bool              `json:"degraded"`
	Checks   map[string]string `json:"checks"`
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	code := http.StatusOK

	if err := s.deps.Store.Ping(ctx); err != nil {
		resp.Checks["store"] = err.Error()
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	} else {
		resp.Checks["store"] = "ok"
	}
	if reporter, ok := s.deps.Store.(DegradedReporter); ok && reporter.Degraded() {
		resp.Degraded = true
	}

	resp.Checks["provider"] = s.check(ctx, s.deps.Provider)
	resp.Checks["ledger"] = s.check(ctx, s.deps.Ledger)

	if code == http.StatusOK && (resp.Degraded || failing(resp.Checks["provider"]) || failing(resp.Checks["ledger"])) {
		resp.Status = "degraded"
	}
	c.JSON(code, resp)
}

func failing(result string) bool {
	return result != "ok" && result != "disabled"
}

func (s *Server) check(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}
