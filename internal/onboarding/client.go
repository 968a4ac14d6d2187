package onboarding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"bidready/portal-backend/internal/auth"
)

const maxResponseBytes = 1 << 20

// HTTPBackend talks to the onboarding API over HTTP, forwarding the caller's
// bearer token taken from the request context.
type HTTPBackend struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPBackend creates a new onboarding API client
func NewHTTPBackend(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPBackend {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type stateEnvelope struct {
	State    *State `json:"state"`
	NextStep string `json:"next_step,omitempty"`
}

type submitRequest struct {
	Payload json.RawMessage `json:"payload"`
}

type errorBody struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

// FetchState returns the current onboarding snapshot
func (b *HTTPBackend) FetchState(ctx context.Context) (*State, error) {
	status, body, err := b.do(ctx, http.MethodGet, "/onboarding", nil)
	if err != nil {
		return nil, &TransientBackendError{Err: err}
	}
	if status != http.StatusOK {
		return nil, classify("", status, body)
	}

	var env stateEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.State == nil {
		return nil, &MalformedServerResponse{Reason: "response has no state"}
	}
	return env.State, nil
}

// SubmitStep sends one step's payload and returns the authoritative next state
func (b *HTTPBackend) SubmitStep(ctx context.Context, step Step, payload json.RawMessage) (*SubmitResult, error) {
	reqBody, err := json.Marshal(submitRequest{Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", step, err)
	}

	status, body, err := b.do(ctx, http.MethodPost, "/onboarding/steps/"+string(step), reqBody)
	if err != nil {
		return nil, &TransientBackendError{Step: step, Err: err}
	}
	if status < 200 || status > 299 {
		return nil, classify(step, status, body)
	}

	var env stateEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &MalformedServerResponse{Step: step, Reason: "response is not valid JSON"}
	}
	if env.State == nil {
		return nil, &MalformedServerResponse{Step: step, Reason: "response has no state"}
	}
	return &SubmitResult{State: env.State, NextStepHint: env.NextStep}, nil
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := auth.TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	b.logger.Debug("Onboarding backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	return resp.StatusCode, data, nil
}

// classify maps a non-2xx response to the onboarding error taxonomy
func classify(step Step, status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	switch {
	case status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		return &TransientBackendError{Step: step, StatusCode: status, Err: errors.New(errorMessage(eb, body))}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w (status %d)", ErrBackendUnauthorized, status)
	case status == http.StatusConflict:
		return &OrderingConflict{Step: step, Code: eb.Code, Message: eb.Message}
	case status == http.StatusUnprocessableEntity && len(eb.Errors) == 0 && eb.Code != "":
		return &OrderingConflict{Step: step, Code: eb.Code, Message: eb.Message}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		fields := eb.Errors
		if len(fields) == 0 {
			fields = []FieldError{{Message: errorMessage(eb, body)}}
		}
		return &ValidationError{Step: step, Fields: fields}
	}
	return fmt.Errorf("onboarding backend returned status %d: %s", status, errorMessage(eb, body))
}

func errorMessage(eb errorBody, raw []byte) string {
	if eb.Message != "" {
		return eb.Message
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return "no response body"
}
