package externalprovider

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrStateNotFound = errors.New("oauth state not found or expired")

// StateEntry is what the redirect step remembers for the callback.
type StateEntry struct {
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

// StateStore keeps OAuth state values between the redirect and the callback.
// Consume is single use: a consumed state is gone.
type StateStore interface {
	Save(ctx context.Context, state string, entry StateEntry, ttl time.Duration) error
	Consume(ctx context.Context, state string) (StateEntry, error)
}

// NewState returns a random URL-safe state value.
func NewState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// RedisStateStore shares state across instances. Consume uses GETDEL, so two
// callbacks racing on one state cannot both succeed.
type RedisStateStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStateStore(client redis.Cmdable, prefix string) *RedisStateStore {
	if prefix == "" {
		prefix = "oauth_state"
	}
	return &RedisStateStore{client: client, prefix: prefix}
}

func (s *RedisStateStore) key(state string) string {
	return fmt.Sprintf("%s:%s", s.prefix, state)
}

func (s *RedisStateStore) Save(ctx context.Context, state string, entry StateEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(state), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (StateEntry, error) {
	value, err := s.client.GetDel(ctx, s.key(state)).Result()
	if errors.Is(err, redis.Nil) {
		return StateEntry{}, ErrStateNotFound
	}
	if err != nil {
		return StateEntry{}, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	var entry StateEntry
	if err := json.Unmarshal([]byte(value), &entry); err != nil {
		return StateEntry{}, fmt.Errorf("failed to decode oauth state: %w", err)
	}
	return entry, nil
}

type memState struct {
	entry     StateEntry
	expiresAt time.Time
}

// InMemStateStore is a single-instance StateStore.
type InMemStateStore struct {
	mu     sync.Mutex
	states map[string]memState
	now    func() time.Time
}

func NewInMemStateStore() *InMemStateStore {
	return &InMemStateStore{states: make(map[string]memState), now: time.Now}
}

func (s *InMemStateStore) Save(ctx context.Context, state string, entry StateEntry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, v := range s.states {
		if !now.Before(v.expiresAt) {
			delete(s.states, k)
		}
	}
	s.states[state] = memState{entry: entry, expiresAt: now.Add(ttl)}
	return nil
}

func (s *InMemStateStore) Consume(ctx context.Context, state string) (StateEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.states[state]
	delete(s.states, state)
	if !ok || !s.now().Before(v.expiresAt) {
		return StateEntry{}, ErrStateNotFound
	}
	return v.entry, nil
}
