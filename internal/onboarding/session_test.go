package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockBackend is a mock implementation of the Backend interface
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) FetchState(ctx context.Context) (*State, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*State), args.Error(1)
}

func (m *MockBackend) SubmitStep(ctx context.Context, step Step, payload json.RawMessage) (*SubmitResult, error) {
	args := m.Called(ctx, step, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SubmitResult), args.Error(1)
}

// MockPublisher is a mock implementation of the EventPublisher interface
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishStepCompleted(ctx context.Context, event StepCompleted) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

const testSession = "user-1"

var (
	orgPayload     = json.RawMessage(`{"mode":"create","organization_name":"Acme"}`)
	profilePayload = json.RawMessage(`{"legal_name":"Acme Federal LLC"}`)
)

type sessionFixture struct {
	backend   *MockBackend
	publisher *MockPublisher
	drafts    *MemoryDraftStore
	session   *Session
}

func newFixture(t *testing.T, initial *State, cfg SessionConfig) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		backend:   new(MockBackend),
		publisher: new(MockPublisher),
		drafts:    NewMemoryDraftStore(),
	}
	f.backend.On("FetchState", mock.Anything).Return(initial, nil).Once()
	f.session = NewSession(testSession, f.backend, f.drafts, DefaultSchemas(), f.publisher, cfg, zap.NewNop())
	t.Cleanup(f.session.Close)

	require.NoError(t, f.session.Load(context.Background()))
	return f
}

func (f *sessionFixture) draft(t *testing.T, step Step) (Draft, bool) {
	t.Helper()
	drafts, err := f.drafts.Load(context.Background(), testSession)
	require.NoError(t, err)
	d, ok := drafts[step]
	return d, ok
}

func TestContinueAcceptedClearsDraftAndAdvances(t *testing.T) {
	f := newFixture(t, stateWith(StepAccountVerified), SessionConfig{})
	ctx := context.Background()

	_, err := f.drafts.Save(ctx, testSession, StepOrgChoice, json.RawMessage(`{"mode":"create","organization_name":"Ac"}`))
	require.NoError(t, err)

	next := stateWith(StepAccountVerified, StepOrgChoice)
	next.Progress = 50
	f.backend.On("SubmitStep", mock.Anything, StepOrgChoice, orgPayload).
		Return(&SubmitResult{State: next, NextStepHint: "companyProfile"}, nil)
	f.publisher.On("PublishStepCompleted", mock.Anything, mock.MatchedBy(func(e StepCompleted) bool {
		return e.Step == StepOrgChoice && !e.Optimistic && !e.Skipped && e.Current == StepCompanyProfile && e.Progress == 50
	})).Return(nil)

	outcome, err := f.session.Continue(ctx, StepOrgChoice, orgPayload)
	require.NoError(t, err)

	assert.False(t, outcome.Optimistic)
	assert.Equal(t, StepCompanyProfile, outcome.Displayed)
	assert.Equal(t, StepCompanyProfile, f.session.Displayed())
	assert.Equal(t, next.CompletedSteps, f.session.State().CompletedSteps)

	_, ok := f.draft(t, StepOrgChoice)
	assert.False(t, ok)
	f.publisher.AssertExpectations(t)
}

func TestContinueIgnoresUnreachableHint(t *testing.T) {
	f := newFixture(t, stateWith(StepAccountVerified), SessionConfig{})

	f.backend.On("SubmitStep", mock.Anything, StepOrgChoice, orgPayload).
		Return(&SubmitResult{State: stateWith(StepAccountVerified, StepOrgChoice), NextStepHint: "FIRST_RFP"}, nil)
	f.publisher.On("PublishStepCompleted", mock.Anything, mock.Anything).Return(nil)

	outcome, err := f.session.Continue(context.Background(), StepOrgChoice, orgPayload)
	require.NoError(t, err)
	assert.Equal(t, StepCompanyProfile, outcome.Displayed)
}

func TestContinueLocalValidationFailure(t *testing.T) {
	f := newFixture(t, stateWith(StepAccountVerified), SessionConfig{})
	before := f.session.State()

	bad := json.RawMessage(`{"mode":"create"}`)
	_, err := f.session.Continue(context.Background(), StepOrgChoice, bad)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepOrgChoice, verr.Step)
	f.backend.AssertNotCalled(t, "SubmitStep", mock.Anything, mock.Anything, mock.Anything)

	assert.Equal(t, before, f.session.State())
	d, ok := f.draft(t, StepOrgChoice)
	require.True(t, ok)
	assert.JSONEq(t, string(bad), string(d.Payload))
}

func TestContinueTransientFailurePreservesDraft(t *testing.T) {
	f := newFixture(t, stateWith(StepAccountVerified, StepOrgChoice), SessionConfig{})

	f.backend.On("SubmitStep", mock.Anything, StepCompanyProfile, profilePayload).
		Return(nil, &TransientBackendError{Step: StepCompanyProfile, StatusCode: 502, Err: errors.New("bad gateway")})

	_, err := f.session.Continue(context.Background(), StepCompanyProfile, profilePayload)

	var terr *TransientBackendError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 502, terr.StatusCode)
	assert.Equal(t, StepCompanyProfile, CurrentStep(f.session.State()))

	d, ok := f.draft(t, StepCompanyProfile)
	require.True(t, ok)
	assert.JSONEq(t, string(profilePayload), string(d.Payload))
	f.publisher.AssertNotCalled(t, "PublishStepCompleted", mock.Anything, mock.Anything)
}

func TestContinueTimeoutIsTransient(t *testing.T) {
	f := newFixture(t, stateWith(StepAccountVerified, StepOrgChoice), SessionConfig{SubmitTimeout: 20 * time.Millisecond})

	f.backend.On("SubmitStep", mock.Anything, StepCompanyProfile, profilePayload).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	_, err := f.session.Continue(context.Background(), StepCompanyProfile, profilePayload)

	var terr *TransientBackendError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	f.backend.AssertNumberOfCalls(t, "SubmitStep", 1)
}

func TestContinueOrderingConflictUnblocks(t *testing.T) {
	f := newFixture(t, stateWith(StepAccountVerified), SessionConfig{})

	f.backend.On("SubmitStep", mock.Anything, StepOrgChoice, orgPayload).
		Return(nil, &OrderingConflict{Step: StepOrgChoice, Code: CodeOrganizationMissing})
	f.publisher.On("PublishStepCompleted", mock.Anything, mock.MatchedBy(func(e StepCompleted) bool {
		return e.Optimistic && e.Step == StepOrgChoice
	})).Return(nil)

	outcome, err := f.session.Continue(context.Background(), StepOrgChoice, orgPayload)
	require.NoError(t, err)

	assert.True(t, outcome.Optimistic)
	assert.Equal(t, []Step{StepAccountVerified, StepOrgChoice}, outcome.State.CompletedSteps)
	assert.Equal(t, StepCompanyProfile, CurrentStep(outcome.State))
	assert.Equal(t, StepCompanyProfile, outcome.Displayed)
	f.publisher.AssertExpectations(t)
}

func TestContinueUnknownConflictIsSurfaced(t *testing.T) {
	f := newFixture(t, stateWith(StepAccountVerified, StepOrgChoice, StepCompanyProfile), SessionConfig{})

	f.backend.On("SubmitStep", mock.Anything, StepComplianceIntake, mock.Anything).
		Return(nil, &OrderingConflict{Step: StepComplianceIntake, Code: "profile_locked"})

	payload := json.RawMessage(`{"sam_registered":true}`)
	_, err := f.session.Continue(context.Background(), StepComplianceIntake, payload)

	var conflict *OrderingConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "profile_locked", conflict.Code)
	_, ok := f.draft(t, StepComplianceIntake)
	assert.True(t, ok)
}

func TestContinueRejectsUnreachableStep(t *testing.T) {
	f := newFixture(t, stateWith(StepAccountVerified), SessionConfig{})
	require.False(t, CanNavigateToStep(f.session.State(), StepCompanyProfile))

	// a backend that would answer with a bootstrap conflict is never asked
	f.backend.On("SubmitStep", mock.Anything, StepCompanyProfile, mock.Anything).
		Return(nil, &OrderingConflict{Step: StepCompanyProfile, Code: CodeOrganizationMissing}).Maybe()

	_, err := f.session.Continue(context.Background(), StepCompanyProfile, profilePayload)
	assert.ErrorIs(t, err, ErrStepNotReachable)

	_, err = f.session.Continue(context.Background(), StepFirstRFP, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrStepNotReachable)

	f.backend.AssertNotCalled(t, "SubmitStep", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishStepCompleted", mock.Anything, mock.Anything)
	assert.Equal(t, []Step{StepAccountVerified}, f.session.State().CompletedSteps)
	assert.Equal(t, StepOrgChoice, f.session.Displayed())
	_, ok := f.draft(t, StepCompanyProfile)
	assert.False(t, ok)
	assert.False(t, f.session.busy.Load())
}

func TestContinueMalformedResponseSynthesizes(t *testing.T) {
	f := newFixture(t, stateWith(StepAccountVerified, StepOrgChoice), SessionConfig{})

	f.backend.On("SubmitStep", mock.Anything, StepCompanyProfile, profilePayload).
		Return(nil, &MalformedServerResponse{Step: StepCompanyProfile, Reason: "response has no state"})
	f.publisher.On("PublishStepCompleted", mock.Anything, mock.Anything).Return(nil)

	outcome, err := f.session.Continue(context.Background(), StepCompanyProfile, profilePayload)
	require.NoError(t, err)

	assert.True(t, outcome.Optimistic)
	assert.Equal(t, StepComplianceIntake, outcome.Displayed)
	assert.JSONEq(t, string(profilePayload), string(outcome.State.StepData[StepCompanyProfile]))
}

func TestSubmissionInFlight(t *testing.T) {
	f := newFixture(t, stateWith(StepAccountVerified), SessionConfig{})
	release := make(chan struct{})

	f.backend.On("SubmitStep", mock.Anything, StepOrgChoice, orgPayload).
		Run(func(mock.Arguments) { <-release }).
		Return(&SubmitResult{State: stateWith(StepAccountVerified, StepOrgChoice)}, nil)
	f.publisher.On("PublishStepCompleted", mock.Anything, mock.Anything).Return(nil)

	done := make(chan error, 1)
	go func() {
		_, err := f.session.Continue(context.Background(), StepOrgChoice, orgPayload)
		done <- err
	}()

	require.Eventually(t, f.session.busy.Load, time.Second, 5*time.Millisecond)

	_, err := f.session.Continue(context.Background(), StepOrgChoice, orgPayload)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, f.session.busy.Load())
}

func TestSkip(t *testing.T) {
	all := append(append([]Step(nil), blockingSteps...), StepIntegrations, StepTeam)
	initial := &State{RequiredSteps: all, CompletedSteps: append([]Step(nil), blockingSteps...)}
	f := newFixture(t, initial, SessionConfig{})
	ctx := context.Background()

	_, err := f.session.Skip(ctx, StepCompanyProfile)
	assert.ErrorIs(t, err, ErrSkipNotAllowed)

	skipped := initial.Clone()
	skipped.CompletedSteps = append(skipped.CompletedSteps, StepIntegrations)
	f.backend.On("SubmitStep", mock.Anything, StepIntegrations, skipPayload).
		Return(&SubmitResult{State: skipped}, nil)
	f.publisher.On("PublishStepCompleted", mock.Anything, mock.MatchedBy(func(e StepCompleted) bool {
		return e.Skipped && e.Step == StepIntegrations
	})).Return(nil)

	outcome, err := f.session.Skip(ctx, StepIntegrations)
	require.NoError(t, err)
	assert.Equal(t, StepTeam, outcome.Displayed)
	f.publisher.AssertExpectations(t)
}

func TestSubmitUnknownStep(t *testing.T) {
	f := newFixture(t, stateWith(), SessionConfig{})

	_, err := f.session.Continue(context.Background(), StepDone, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownStep)
	_, err = f.session.Continue(context.Background(), Step("BILLING"), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownStep)
}

func TestSaveDraftIsDebounced(t *testing.T) {
	f := newFixture(t, stateWith(StepAccountVerified, StepOrgChoice), SessionConfig{DraftDebounce: 20 * time.Millisecond})

	f.session.SaveDraft(StepCompanyProfile, json.RawMessage(`{"legal_name":"A"}`))
	f.session.SaveDraft(StepCompanyProfile, json.RawMessage(`{"legal_name":"Ac"}`))
	assert.True(t, f.session.DraftPending(StepCompanyProfile))

	_, ok := f.draft(t, StepCompanyProfile)
	assert.False(t, ok)

	require.Eventually(t, func() bool {
		_, ok := f.draft(t, StepCompanyProfile)
		return ok
	}, time.Second, 5*time.Millisecond)

	d, _ := f.draft(t, StepCompanyProfile)
	assert.JSONEq(t, `{"legal_name":"Ac"}`, string(d.Payload))
	assert.Equal(t, int64(1), d.Revision)
	f.backend.AssertNotCalled(t, "SubmitStep", mock.Anything, mock.Anything, mock.Anything)
}

func TestContinueCancelsPendingDraft(t *testing.T) {
	f := newFixture(t, stateWith(StepAccountVerified, StepOrgChoice), SessionConfig{DraftDebounce: 30 * time.Millisecond})

	f.backend.On("SubmitStep", mock.Anything, StepCompanyProfile, profilePayload).
		Return(&SubmitResult{State: stateWith(StepAccountVerified, StepOrgChoice, StepCompanyProfile)}, nil)
	f.publisher.On("PublishStepCompleted", mock.Anything, mock.Anything).Return(nil)

	f.session.SaveDraft(StepCompanyProfile, json.RawMessage(`{"legal_name":"Acme Fed"}`))
	_, err := f.session.Continue(context.Background(), StepCompanyProfile, profilePayload)
	require.NoError(t, err)
	assert.False(t, f.session.DraftPending(StepCompanyProfile))

	time.Sleep(60 * time.Millisecond)
	_, ok := f.draft(t, StepCompanyProfile)
	assert.False(t, ok)
}

func TestViewUsesDraftForDisplayedStep(t *testing.T) {
	f := newFixture(t, stateWith(StepAccountVerified, StepOrgChoice), SessionConfig{})
	ctx := context.Background()

	_, err := f.drafts.Save(ctx, testSession, StepCompanyProfile, profilePayload)
	require.NoError(t, err)

	view, err := f.session.View(ctx, "team")
	require.NoError(t, err)
	assert.Equal(t, StepCompanyProfile, view.Navigation.ResolvedStep)
	assert.Equal(t, PrefillDraft, view.PrefillSource)
	assert.JSONEq(t, string(profilePayload), string(view.Prefill))

	view, err = f.session.View(ctx, "org-choice")
	require.NoError(t, err)
	assert.Equal(t, StepOrgChoice, view.Navigation.ResolvedStep)
	assert.Equal(t, PrefillDefaults, view.PrefillSource)
}

func TestLoadClearsDraftsOfCompletedSteps(t *testing.T) {
	drafts := NewMemoryDraftStore()
	_, err := drafts.Save(context.Background(), testSession, StepOrgChoice, orgPayload)
	require.NoError(t, err)

	backend := new(MockBackend)
	backend.On("FetchState", mock.Anything).Return(stateWith(StepAccountVerified, StepOrgChoice), nil)
	s := NewSession(testSession, backend, drafts, DefaultSchemas(), nil, SessionConfig{}, nil)
	defer s.Close()

	require.NoError(t, s.Load(context.Background()))
	loaded, err := drafts.Load(context.Background(), testSession)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

// racingDraftStore runs beforeSave once, just before the first write
type racingDraftStore struct {
	*MemoryDraftStore
	beforeSave func()
}

func (r *racingDraftStore) Save(ctx context.Context, sessionID string, step Step, payload json.RawMessage) (Draft, error) {
	if hook := r.beforeSave; hook != nil {
		r.beforeSave = nil
		hook()
	}
	return r.MemoryDraftStore.Save(ctx, sessionID, step, payload)
}

func TestDraftWriteRacingAcceptanceIsCleared(t *testing.T) {
	store := &racingDraftStore{MemoryDraftStore: NewMemoryDraftStore()}
	backend := new(MockBackend)
	backend.On("FetchState", mock.Anything).Return(stateWith(StepAccountVerified, StepOrgChoice), nil)
	s := NewSession(testSession, backend, store, DefaultSchemas(), nil, SessionConfig{}, nil)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	// the submission is accepted after the completion check but before the write
	store.beforeSave = func() {
		s.accept(ctx, stateWith(StepAccountVerified, StepOrgChoice, StepCompanyProfile), "", false)
	}
	require.NoError(t, s.writeDraft(ctx, StepCompanyProfile, profilePayload))

	drafts, err := store.Load(ctx, testSession)
	require.NoError(t, err)
	assert.NotContains(t, drafts, StepCompanyProfile)

	// later writes for a completed step are skipped entirely
	require.NoError(t, s.writeDraft(ctx, StepCompanyProfile, profilePayload))
	drafts, err = store.Load(ctx, testSession)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}
