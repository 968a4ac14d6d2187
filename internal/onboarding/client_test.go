package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bidready/portal-backend/internal/auth"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *HTTPBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPBackend(srv.URL+"/", time.Second, zap.NewNop())
}

func TestFetchStateForwardsToken(t *testing.T) {
	var gotAuth string
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/onboarding", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"state":{"completed_steps":["ACCOUNT_VERIFIED"],"required_steps":["ACCOUNT_VERIFIED","ORG_CHOICE"],"progress":50}}`)
	})

	ctx := auth.WithToken(context.Background(), "tok-123")
	state, err := backend.FetchState(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, []Step{StepAccountVerified}, state.CompletedSteps)
	assert.Equal(t, 50, state.Progress)
}

func TestSubmitStepSuccess(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/onboarding/steps/ORG_CHOICE", r.URL.Path)

		var body struct {
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `{"mode":"create","organization_name":"Acme"}`, string(body.Payload))

		_, _ = io.WriteString(w, `{"state":{"completed_steps":["ACCOUNT_VERIFIED","ORG_CHOICE"],"required_steps":["ACCOUNT_VERIFIED","ORG_CHOICE","COMPANY_PROFILE"],"progress":66},"next_step":"company-profile"}`)
	})

	result, err := backend.SubmitStep(context.Background(), StepOrgChoice, orgPayload)
	require.NoError(t, err)
	assert.Equal(t, "company-profile", result.NextStepHint)
	assert.Equal(t, StepCompanyProfile, CurrentStep(result.State))
}

func TestSubmitStepErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`, func(t *testing.T, err error) {
			var terr *TransientBackendError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, http.StatusInternalServerError, terr.StatusCode)
		}},
		{"ordering conflict", http.StatusConflict, `{"code":"organization_missing","message":"create an organization first"}`, func(t *testing.T, err error) {
			var conflict *OrderingConflict
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, CodeOrganizationMissing, conflict.Code)
		}},
		{"unprocessable with code", http.StatusUnprocessableEntity, `{"code":"organization_missing"}`, func(t *testing.T, err error) {
			var conflict *OrderingConflict
			require.ErrorAs(t, err, &conflict)
		}},
		{"field errors", http.StatusUnprocessableEntity, `{"errors":[{"field":"uei","message":"already registered"}]}`, func(t *testing.T, err error) {
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, []FieldError{{Field: "uei", Message: "already registered"}}, verr.Fields)
		}},
		{"bad request", http.StatusBadRequest, `not json`, func(t *testing.T, err error) {
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "not json", verr.Fields[0].Message)
		}},
		{"unauthorized", http.StatusUnauthorized, ``, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrBackendUnauthorized)
		}},
		{"missing state", http.StatusOK, `{"ok":true}`, func(t *testing.T, err error) {
			var malformed *MalformedServerResponse
			require.ErrorAs(t, err, &malformed)
		}},
		{"garbage body", http.StatusOK, `<html>`, func(t *testing.T, err error) {
			var malformed *MalformedServerResponse
			require.ErrorAs(t, err, &malformed)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := backend.SubmitStep(context.Background(), StepCompanyProfile, profilePayload)
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestSubmitStepTransportFailures(t *testing.T) {
	slow := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := slow.SubmitStep(ctx, StepCompanyProfile, profilePayload)
	var terr *TransientBackendError
	require.ErrorAs(t, err, &terr)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	unreachable := NewHTTPBackend("http://127.0.0.1:1", time.Second, zap.NewNop())
	_, err = unreachable.SubmitStep(context.Background(), StepCompanyProfile, profilePayload)
	require.ErrorAs(t, err, &terr)
}
