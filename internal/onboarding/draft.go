package onboarding

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Draft is a not-yet-submitted copy of one step's form data. It is never
// authoritative and is ignored once the server reports the step completed.
type Draft struct {
	Step      Step            `json:"step"`
	Payload   json.RawMessage `json:"payload"`
	Revision  int64           `json:"revision"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Drafts is a session's drafts keyed by step
type Drafts map[Step]Draft

// DraftStore persists drafts per onboarding session
type DraftStore interface {
	// Save writes the payload for step and returns the stored draft with its
	// new revision. Revisions increase monotonically per (session, step).
	Save(ctx context.Context, sessionID string, step Step, payload json.RawMessage) (Draft, error)
	Load(ctx context.Context, sessionID string) (Drafts, error)
	Clear(ctx context.Context, sessionID string, steps ...Step) error
}

// MemoryDraftStore keeps drafts in process memory
type MemoryDraftStore struct {
	mu       sync.Mutex
	sessions map[string]Drafts
	now      func() time.Time
}

// NewMemoryDraftStore creates an empty in-memory draft store
func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{
		sessions: make(map[string]Drafts),
		now:      time.Now,
	}
}

func (m *MemoryDraftStore) Save(_ context.Context, sessionID string, step Step, payload json.RawMessage) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	drafts, ok := m.sessions[sessionID]
	if !ok {
		drafts = make(Drafts)
		m.sessions[sessionID] = drafts
	}

	d := Draft{
		Step:      step,
		Payload:   append(json.RawMessage(nil), payload...),
		Revision:  drafts[step].Revision + 1,
		UpdatedAt: m.now().UTC(),
	}
	drafts[step] = d
	return d, nil
}

func (m *MemoryDraftStore) Load(_ context.Context, sessionID string) (Drafts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(Drafts, len(m.sessions[sessionID]))
	for step, d := range m.sessions[sessionID] {
		out[step] = d
	}
	return out, nil
}

// Clear removes the drafts for the given steps. Revisions restart at 1 after
// a clear since the step has been superseded by a server confirmation.
func (m *MemoryDraftStore) Clear(_ context.Context, sessionID string, steps ...Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	drafts := m.sessions[sessionID]
	for _, step := range steps {
		delete(drafts, step)
	}
	if len(drafts) == 0 {
		delete(m.sessions, sessionID)
	}
	return nil
}
