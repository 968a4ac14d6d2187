package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultSubmitTimeout bounds a single step submission
const DefaultSubmitTimeout = 15 * time.Second

// SessionConfig tunes a Session
type SessionConfig struct {
	SubmitTimeout time.Duration
	DraftDebounce time.Duration
}

// Outcome is the result of an accepted submission. Optimistic is set when the
// state was synthesized locally because the backend answered with a known
// bootstrap conflict or no state at all.
type Outcome struct {
	State      *State `json:"state"`
	Displayed  Step   `json:"displayed_step"`
	Optimistic bool   `json:"optimistic"`
}

// Session is one user's onboarding wizard. State is replaced wholesale after
// every accepted submission; at most one submission runs at a time.
type Session struct {
	id        string
	backend   Backend
	drafts    DraftStore
	schemas   *Schemas
	publisher EventPublisher
	logger    *zap.Logger

	submitTimeout time.Duration
	debounce      *debouncer
	busy          atomic.Bool

	mu        sync.RWMutex
	state     *State
	displayed Step
}

// NewSession creates a session. Call Load before use.
func NewSession(id string, backend Backend, drafts DraftStore, schemas *Schemas, publisher EventPublisher, cfg SessionConfig, logger *zap.Logger) *Session {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = NewLogPublisher(logger)
	}
	return &Session{
		id:            id,
		backend:       backend,
		drafts:        drafts,
		schemas:       schemas,
		publisher:     publisher,
		logger:        logger.With(zap.String("session_id", id)),
		submitTimeout: cfg.SubmitTimeout,
		debounce:      newDebouncer(cfg.DraftDebounce),
	}
}

// ID returns the session identifier drafts are stored under
func (s *Session) ID() string {
	return s.id
}

// Load fetches the authoritative state from the backend
func (s *Session) Load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	state, err := s.backend.FetchState(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch onboarding state: %w", err)
	}

	s.mu.Lock()
	s.state = state
	s.displayed = CurrentStep(state)
	s.mu.Unlock()

	s.clearCompletedDrafts(ctx, state)
	return nil
}

// State returns a copy of the current snapshot
func (s *Session) State() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Displayed is the step the wizard is showing
func (s *Session) Displayed() Step {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayed
}

// View reconciles server state, drafts and the URL step for one request
func (s *Session) View(ctx context.Context, urlHint string) (View, error) {
	drafts, err := s.drafts.Load(ctx, s.id)
	if err != nil {
		return View{}, fmt.Errorf("failed to load drafts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	view := Resolve(s.state.Clone(), drafts, urlHint, s.schemas)
	s.displayed = view.Navigation.ResolvedStep
	return view, nil
}

// Prefill returns the form data for step
func (s *Session) Prefill(ctx context.Context, step Step) (json.RawMessage, PrefillSource, error) {
	drafts, err := s.drafts.Load(ctx, s.id)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load drafts: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, source := Prefill(s.state, drafts, step, s.schemas.Defaults(step))
	return data, source, nil
}

// SaveDraft schedules a debounced local save of payload. The backend is
// never called.
func (s *Session) SaveDraft(step Step, payload json.RawMessage) {
	payload = append(json.RawMessage(nil), payload...)
	s.debounce.Schedule(step, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.submitTimeout)
		defer cancel()
		if err := s.writeDraft(ctx, step, payload); err != nil {
			s.logger.Warn("Failed to save draft", zap.String("step", string(step)), zap.Error(err))
		}
	})
}

// DraftPending reports whether a debounced save for step has not fired yet
func (s *Session) DraftPending(step Step) bool {
	return s.debounce.Pending(step)
}

// Continue submits payload for step and advances on acceptance
func (s *Session) Continue(ctx context.Context, step Step, payload json.RawMessage) (*Outcome, error) {
	return s.submit(ctx, step, payload, false)
}

// Skip submits the skip marker for an optional step
func (s *Session) Skip(ctx context.Context, step Step) (*Outcome, error) {
	if !step.Optional() {
		return nil, fmt.Errorf("%w: %s", ErrSkipNotAllowed, step)
	}
	return s.submit(ctx, step, skipPayload, true)
}

func (s *Session) submit(ctx context.Context, step Step, payload json.RawMessage, skipped bool) (*Outcome, error) {
	if !step.Valid() || step == StepDone {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	defer s.busy.Store(false)

	s.mu.RLock()
	prev := s.state.Clone()
	s.mu.RUnlock()

	if !CanNavigateToStep(prev, step) {
		return nil, fmt.Errorf("%w: %s comes after %s", ErrStepNotReachable, step, CurrentStep(prev))
	}

	// the payload being submitted supersedes any pending draft of it
	s.debounce.Cancel(step)

	if !skipped {
		if err := s.schemas.Validate(step, payload); err != nil {
			s.preserveDraft(ctx, step, payload)
			return nil, err
		}
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	result, err := s.backend.SubmitStep(submitCtx, step, payload)
	cancel()

	optimistic := false
	var next *State
	var hint string

	switch {
	case err == nil && (result == nil || result.State == nil):
		s.logger.Warn("Backend accepted step without state, synthesizing", zap.String("step", string(step)))
		next, optimistic = SynthesizeAccepted(prev, step, payload), true
	case err == nil:
		next, hint = result.State, result.NextStepHint
	default:
		var malformed *MalformedServerResponse
		var conflict *OrderingConflict
		switch {
		case errors.As(err, &malformed):
			s.logger.Warn("Malformed backend response, synthesizing state",
				zap.String("step", string(step)), zap.String("reason", malformed.Reason))
			next, optimistic = SynthesizeAccepted(prev, step, payload), true
		case errors.As(err, &conflict):
			synthesized, ok := OptimisticUnblock(prev, conflict, payload)
			if !ok {
				if !skipped {
					s.preserveDraft(ctx, step, payload)
				}
				return nil, err
			}
			s.logger.Info("Optimistic unblock after ordering conflict",
				zap.String("step", string(step)), zap.String("code", conflict.Code))
			next, optimistic = synthesized, true
		default:
			if !skipped {
				s.preserveDraft(ctx, step, payload)
			}
			return nil, classifySubmitError(step, err)
		}
	}

	outcome := s.accept(ctx, next, hint, optimistic)

	event := StepCompleted{
		SessionID:  s.id,
		Step:       step,
		Skipped:    skipped || isSkipPayload(payload),
		Optimistic: optimistic,
		Progress:   outcome.State.Progress,
		Current:    CurrentStep(outcome.State),
		At:         time.Now().UTC(),
	}
	if err := s.publisher.PublishStepCompleted(ctx, event); err != nil {
		s.logger.Warn("Failed to publish step completion", zap.String("step", string(step)), zap.Error(err))
	}
	return outcome, nil
}

// classifySubmitError leaves the taxonomy errors alone and reports anything
// else that happened in transit, timeouts included, as transient.
func classifySubmitError(step Step, err error) error {
	var verr *ValidationError
	var terr *TransientBackendError
	if errors.As(err, &verr) || errors.As(err, &terr) || errors.Is(err, ErrBackendUnauthorized) {
		return err
	}
	return &TransientBackendError{Step: step, Err: err}
}

// accept installs next as the new state, drops the drafts it supersedes and
// moves the displayed step forward.
func (s *Session) accept(ctx context.Context, next *State, hint string, optimistic bool) *Outcome {
	s.mu.Lock()
	s.state = next
	displayed := CurrentStep(next)
	if hint != "" {
		if h, err := ParseStep(hint); err == nil && CanNavigateToStep(next, h) && !next.IsCompleted(h) {
			displayed = h
		} else {
			s.logger.Debug("Ignoring next step hint", zap.String("hint", hint))
		}
	}
	s.displayed = displayed
	s.mu.Unlock()

	s.clearCompletedDrafts(ctx, next)

	return &Outcome{State: next.Clone(), Displayed: displayed, Optimistic: optimistic}
}

func (s *Session) clearCompletedDrafts(ctx context.Context, state *State) {
	if state == nil || len(state.CompletedSteps) == 0 {
		return
	}
	for _, step := range state.CompletedSteps {
		s.debounce.Cancel(step)
	}
	if err := s.drafts.Clear(ctx, s.id, state.CompletedSteps...); err != nil {
		s.logger.Warn("Failed to clear completed drafts", zap.Error(err))
	}
}

// preserveDraft stores a rejected payload so the user can retry without
// re-entering it.
func (s *Session) preserveDraft(ctx context.Context, step Step, payload json.RawMessage) {
	if len(payload) == 0 {
		return
	}
	if err := s.writeDraft(ctx, step, payload); err != nil {
		s.logger.Warn("Failed to preserve draft", zap.String("step", string(step)), zap.Error(err))
	}
}

// writeDraft saves payload unless step is already completed. The completion
// check is repeated after the save: an accepted submission that lands in
// between has already cleared its drafts and would not see this one.
func (s *Session) writeDraft(ctx context.Context, step Step, payload json.RawMessage) error {
	if s.stepCompleted(step) {
		return nil
	}
	if _, err := s.drafts.Save(ctx, s.id, step, payload); err != nil {
		return err
	}
	if s.stepCompleted(step) {
		return s.drafts.Clear(ctx, s.id, step)
	}
	return nil
}

func (s *Session) stepCompleted(step Step) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsCompleted(step)
}

// Close stops pending draft timers
func (s *Session) Close() {
	s.debounce.Stop()
}
