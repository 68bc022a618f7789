package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tikup-service/tikup_service/internal/infrastructure/cache"
)

// ChatState is the per-chat conversational state. It is advisory only:
// flushing redis loses the current menu position but never breaks the
// ledger, every balance-affecting path is keyed on database rows.
type ChatState struct {
	SelectingAmount bool   `json:"selecting_amount"`
	IntentID        string `json:"intent_id,omitempty"`
	QRMessageID     int    `json:"qr_message_id,omitempty"`
}

// StateStore keeps chat state in redis with a TTL
type StateStore struct {
	cache cache.RedisClient
	ttl   time.Duration
}

func NewStateStore(cache cache.RedisClient, ttl time.Duration) *StateStore {
	return &StateStore{cache: cache, ttl: ttl}
}

func stateKey(chatID int64) string {
	return fmt.Sprintf("botstate:%d", chatID)
}

// Get returns the chat state, or a zero state when none is stored
func (s *StateStore) Get(ctx context.Context, chatID int64) (*ChatState, error) {
	var state ChatState
	err := s.cache.Get(ctx, stateKey(chatID), &state)
	if errors.Is(err, cache.ErrNotFound) {
		return &ChatState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat state: %w", err)
	}
	return &state, nil
}

func (s *StateStore) Set(ctx context.Context, chatID int64, state *ChatState) error {
	if err := s.cache.Set(ctx, stateKey(chatID), state, s.ttl); err != nil {
		return fmt.Errorf("failed to store chat state: %w", err)
	}
	return nil
}

func (s *StateStore) Clear(ctx context.Context, chatID int64) error {
	return s.cache.Del(ctx, stateKey(chatID))
}

// RateLimiter counts updates per chat in fixed one minute windows
type RateLimiter struct {
	cache   cache.RedisClient
	perMin  int64
}

func NewRateLimiter(cache cache.RedisClient, perMin int) *RateLimiter {
	return &RateLimiter{cache: cache, perMin: int64(perMin)}
}

// Allow reports whether the chat is under its per-minute budget.
// Redis failures fail open so a cache outage never mutes the bot.
func (r *RateLimiter) Allow(ctx context.Context, chatID int64) bool {
	if r.perMin <= 0 {
		return true
	}

	key := fmt.Sprintf("ratelimit:%d:%d", chatID, time.Now().Unix()/60)
	count, err := r.cache.Incr(ctx, key)
	if err != nil {
		return true
	}
	if count == 1 {
		_ = r.cache.Expire(ctx, key, time.Minute)
	}
	return count <= r.perMin
}
