package report

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"github.com/robalyx/sentinel/internal/common/utils"
)

const (
	// SessionTTL is how long an idle report session is kept.
	SessionTTL = 30 * time.Minute
	// SessionKeyPrefix namespaces Redis keys as "report_session:{userID}".
	SessionKeyPrefix = "report_session:"
)

// SessionStore persists in-progress dialogs.
type SessionStore interface {
	Get(ctx context.Context, userID uint64) (*Session, bool, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID uint64) error
}

// MemoryStore keeps sessions in process with an idle TTL.
type MemoryStore struct {
	sessions *utils.TTLMap[uint64, Session]
}

// NewMemoryStore creates a MemoryStore. Call Close to stop its sweeper.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = SessionTTL
	}

	return &MemoryStore{sessions: utils.NewTTLMap[uint64, Session](ttl)}
}

func (m *MemoryStore) Get(_ context.Context, userID uint64) (*Session, bool, error) {
	s, ok := m.sessions.Get(userID)
	if !ok {
		return nil, false, nil
	}

	return &s, true, nil
}

func (m *MemoryStore) Put(_ context.Context, s *Session) error {
	m.sessions.Set(s.UserID, *s)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID uint64) error {
	m.sessions.Delete(userID)
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	return m.sessions.Len()
}

// Close stops the background sweep.
func (m *MemoryStore) Close() {
	m.sessions.Close()
}

// RedisStore keeps sessions in Redis with an expiry refreshed on every write.
type RedisStore struct {
	client rueidis.Client
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client rueidis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = SessionTTL
	}

	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(userID uint64) string {
	return SessionKeyPrefix + strconv.FormatUint(userID, 10)
}

func (r *RedisStore) Get(ctx context.Context, userID uint64) (*Session, bool, error) {
	raw, err := r.client.Do(ctx, r.client.B().Get().Key(sessionKey(userID)).Build()).ToString()
	if rueidis.IsRedisNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get report session: %w", err)
	}

	var s Session
	if err := sonic.UnmarshalString(raw, &s); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal report session: %w", err)
	}

	return &s, true, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	data, err := sonic.MarshalString(s)
	if err != nil {
		return fmt.Errorf("failed to marshal report session: %w", err)
	}

	err = r.client.Do(ctx,
		r.client.B().Set().Key(sessionKey(s.UserID)).Value(data).Ex(r.ttl).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("failed to store report session: %w", err)
	}

	return nil
}

func (r *RedisStore) Delete(ctx context.Context, userID uint64) error {
	if err := r.client.Do(ctx, r.client.B().Del().Key(sessionKey(userID)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete report session: %w", err)
	}

	return nil
}
