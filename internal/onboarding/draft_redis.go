package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDraftStore keeps one hash per session:
//
//	<step>:payload  raw JSON
//	<step>:rev      revision, bumped with HINCRBY
//	<step>:at       unix milliseconds of the last save
type RedisDraftStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisDraftStore creates a new redis draft store. Each save pushes the
// session's expiry out to ttl.
func NewRedisDraftStore(client redis.UniversalClient, ttl time.Duration) *RedisDraftStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisDraftStore{
		client: client,
		prefix: "onboarding:drafts:",
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisDraftStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisDraftStore) Save(ctx context.Context, sessionID string, step Step, payload json.RawMessage) (Draft, error) {
	key := s.key(sessionID)
	now := s.now().UTC()

	var rev *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rev = pipe.HIncrBy(ctx, key, string(step)+":rev", 1)
		pipe.HSet(ctx, key,
			string(step)+":payload", string(payload),
			string(step)+":at", now.UnixMilli())
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return Draft{}, fmt.Errorf("failed to save %s draft: %w", step, err)
	}

	return Draft{
		Step:      step,
		Payload:   append(json.RawMessage(nil), payload...),
		Revision:  rev.Val(),
		UpdatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
	}, nil
}

func (s *RedisDraftStore) Load(ctx context.Context, sessionID string) (Drafts, error) {
	fields, err := s.client.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load drafts: %w", err)
	}

	drafts := make(Drafts)
	for field, value := range fields {
		name, attr, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		step := Step(name)
		d := drafts[step]
		d.Step = step
		switch attr {
		case "payload":
			d.Payload = json.RawMessage(value)
		case "rev":
			d.Revision, _ = strconv.ParseInt(value, 10, 64)
		case "at":
			ms, _ := strconv.ParseInt(value, 10, 64)
			d.UpdatedAt = time.UnixMilli(ms).UTC()
		}
		drafts[step] = d
	}

	// a half-written entry without payload is not a draft
	for step, d := range drafts {
		if len(d.Payload) == 0 {
			delete(drafts, step)
		}
	}
	return drafts, nil
}

func (s *RedisDraftStore) Clear(ctx context.Context, sessionID string, steps ...Step) error {
	if len(steps) == 0 {
		return nil
	}
	fields := make([]string, 0, len(steps)*3)
	for _, step := range steps {
		fields = append(fields, string(step)+":payload", string(step)+":rev", string(step)+":at")
	}
	if err := s.client.HDel(ctx, s.key(sessionID), fields...).Err(); err != nil {
		return fmt.Errorf("failed to clear drafts: %w", err)
	}
	return nil
}
