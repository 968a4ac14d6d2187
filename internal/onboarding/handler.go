package onboarding

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bidready/portal-backend/internal/auth"
)

// Handler handles HTTP requests for the onboarding wizard
type Handler struct {
	registry *Registry
	logger   *zap.Logger
}

// NewHandler creates a new onboarding handler
func NewHandler(registry *Registry, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// RegisterRoutes registers onboarding routes. submitMiddleware runs in front
// of the continue and skip endpoints only.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, submitMiddleware ...gin.HandlerFunc) {
	onboarding := router.Group("/onboarding")
	{
		onboarding.GET("", h.getView)
		onboarding.GET("/steps/:step", h.getStep)
		onboarding.PUT("/steps/:step/draft", h.saveDraft)

		submit := onboarding.Group("/steps/:step", submitMiddleware...)
		submit.POST("/continue", h.continueStep)
		submit.POST("/skip", h.skipStep)
	}
}

func (h *Handler) session(c *gin.Context) (*Session, bool) {
	user, err := auth.CurrentSession(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return nil, false
	}

	s, err := h.registry.Get(c.Request.Context(), user.UserID)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return s, true
}

func stepParam(c *gin.Context) (Step, bool) {
	step, err := ParseStep(c.Param("step"))
	if err != nil || step == StepDone {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown onboarding step"})
		return "", false
	}
	return step, true
}

// getView handles GET /api/v1/onboarding?step=
func (h *Handler) getView(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	if c.Query("refresh") == "true" {
		if err := s.Load(c.Request.Context()); err != nil {
			h.writeError(c, err)
			return
		}
	}

	view, err := s.View(c.Request.Context(), c.Query("step"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// getStep handles GET /api/v1/onboarding/steps/:step
func (h *Handler) getStep(c *gin.Context) {
	step, ok := stepParam(c)
	if !ok {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	data, source, err := s.Prefill(c.Request.Context(), step)
	if err != nil {
		h.writeError(c, err)
		return
	}

	state := s.State()
	c.JSON(http.StatusOK, gin.H{
		"step":           step,
		"prefill":        data,
		"prefill_source": source,
		"completed":      state.IsCompleted(step),
		"navigable":      CanNavigateToStep(state, step),
		"blocking":       step.Blocking(),
	})
}

// saveDraft handles PUT /api/v1/onboarding/steps/:step/draft
func (h *Handler) saveDraft(c *gin.Context) {
	step, ok := stepParam(c)
	if !ok {
		return
	}
	payload, ok := readPayload(c)
	if !ok {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	s.SaveDraft(step, payload)
	c.JSON(http.StatusAccepted, gin.H{"step": step, "status": "scheduled"})
}

// continueStep handles POST /api/v1/onboarding/steps/:step/continue
func (h *Handler) continueStep(c *gin.Context) {
	step, ok := stepParam(c)
	if !ok {
		return
	}
	payload, ok := readPayload(c)
	if !ok {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	outcome, err := s.Continue(c.Request.Context(), step, payload)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// skipStep handles POST /api/v1/onboarding/steps/:step/skip
func (h *Handler) skipStep(c *gin.Context) {
	step, ok := stepParam(c)
	if !ok {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	outcome, err := s.Skip(c.Request.Context(), step)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func readPayload(c *gin.Context) (json.RawMessage, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return nil, false
	}
	if len(body) == 0 || !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
		return nil, false
	}
	return json.RawMessage(body), true
}

// writeError maps the onboarding error taxonomy to HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *ValidationError
	var terr *TransientBackendError
	var conflict *OrderingConflict
	var malformed *MalformedServerResponse

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Error(), "fields": verr.Fields})
	case errors.As(err, &terr):
		h.logger.Warn("Onboarding backend unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "onboarding service is temporarily unavailable", "retryable": true})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error(), "code": conflict.Code})
	case errors.Is(err, ErrSubmissionInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "submission_in_flight"})
	case errors.Is(err, ErrStepNotReachable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "step_not_reachable"})
	case errors.Is(err, ErrSkipNotAllowed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrUnknownStep):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrBackendUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.As(err, &malformed):
		h.logger.Error("Malformed onboarding state", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Onboarding request failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "onboarding request failed"})
	}
}
