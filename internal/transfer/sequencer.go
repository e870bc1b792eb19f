package transfer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// RequestNumberKey is the Redis counter backing request numbers.
const RequestNumberKey = "transfer:request_number"

// Sequencer hands out request numbers. Numbers are unique and strictly
// increasing for a given sequencer backend.
type Sequencer interface {
	Next(ctx context.Context) (string, error)
}

// Advancer is implemented by sequencers that can skip past numbers already
// taken, e.g. by caller-supplied request numbers or rows written before a
// counter reset.
type Advancer interface {
	// Advance makes every later Next return a value above floor.
	Advance(ctx context.Context, floor int64) error
}

// maxNumberAttempts bounds how often a repository redraws a generated
// request number that is already taken.
const maxNumberAttempts = 5

// FormatRequestNumber renders counter value n as a request number.
func FormatRequestNumber(n int64) string {
	return fmt.Sprintf("REQ-%06d", n)
}

// ParseRequestNumber returns the counter value of a REQ-nnnnnn number.
func ParseRequestNumber(number string) (int64, bool) {
	digits, ok := strings.CutPrefix(number, "REQ-")
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// CounterSequencer is a process-local sequencer.
type CounterSequencer struct {
	n atomic.Int64
}

// NewCounterSequencer starts counting after start.
func NewCounterSequencer(start int64) *CounterSequencer {
	s := &CounterSequencer{}
	s.n.Store(start)
	return s
}

func (s *CounterSequencer) Next(_ context.Context) (string, error) {
	return FormatRequestNumber(s.n.Add(1)), nil
}

func (s *CounterSequencer) Advance(_ context.Context, floor int64) error {
	for {
		cur := s.n.Load()
		if cur >= floor || s.n.CompareAndSwap(cur, floor) {
			return nil
		}
	}
}

// RedisSequencer increments a shared Redis counter so every instance draws
// from the same sequence.
type RedisSequencer struct {
	client *redis.Client
	key    string
}

// NewRedisSequencer constructs RedisSequencer on RequestNumberKey.
func NewRedisSequencer(client *redis.Client) *RedisSequencer {
	return &RedisSequencer{client: client, key: RequestNumberKey}
}

func (s *RedisSequencer) Next(ctx context.Context) (string, error) {
	n, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		return "", fmt.Errorf("transfer: next request number: %w", err)
	}
	return FormatRequestNumber(n), nil
}

var advanceScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if cur < floor then
  redis.call('SET', KEYS[1], floor)
  return floor
end
return cur
`)

func (s *RedisSequencer) Advance(ctx context.Context, floor int64) error {
	if err := advanceScript.Run(ctx, s.client, []string{s.key}, floor).Err(); err != nil {
		return fmt.Errorf("transfer: advance request number: %w", err)
	}
	return nil
}

// nextNumber draws from seq, or returns the caller-supplied number as is.
func nextNumber(ctx context.Context, seq Sequencer, supplied string) (string, error) {
	if supplied != "" {
		return supplied, nil
	}
	return seq.Next(ctx)
}

// advancePast moves seq beyond floor when it supports it.
func advancePast(ctx context.Context, seq Sequencer, floor int64) error {
	if a, ok := seq.(Advancer); ok {
		return a.Advance(ctx, floor)
	}
	return nil
}
