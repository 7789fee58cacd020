// Package resilience wraps outbound Telegram calls in a gobreaker circuit
// breaker and honours Telegram's flood-control retry hints.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen indicates the circuit breaker rejected the call.
var ErrCircuitOpen = gobreaker.ErrOpenState

const (
	defaultCooldown     = 30 * time.Second
	defaultMaxCooldowns = 10
	defaultMaxRateLimit = 3
	maxRetryAfter       = time.Minute
)

// BreakerConfig holds configuration for a circuit breaker.
type BreakerConfig struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the
	// circuit. Zero or less disables the breaker.
	MaxFailures int
	// Cooldown is how long the circuit stays open before one call is let
	// through to test the API again.
	Cooldown time.Duration
	// MaxCooldowns bounds how many times one call waits for the circuit to
	// close before giving up with ErrCircuitOpen.
	MaxCooldowns int
	// MaxRateLimited bounds how many "too many requests" replies one call
	// retries after the advertised retry_after.
	MaxRateLimited int
	Logger         *slog.Logger
}

// Breaker implements the circuit breaker pattern using gobreaker.
type Breaker struct {
	cb           *gobreaker.CircuitBreaker
	log          *slog.Logger
	cooldown     time.Duration
	maxCooldowns int
	maxLimited   int
}

// NewBreaker creates a breaker. A disabled config yields a breaker that never
// trips but still retries rate-limited calls.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultCooldown
	}
	if cfg.MaxCooldowns <= 0 {
		cfg.MaxCooldowns = defaultMaxCooldowns
	}
	if cfg.MaxRateLimited <= 0 {
		cfg.MaxRateLimited = defaultMaxRateLimit
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "circuit_breaker", "name", cfg.Name)

	b := &Breaker{
		log:          log,
		cooldown:     cfg.Cooldown,
		maxCooldowns: cfg.MaxCooldowns,
		maxLimited:   cfg.MaxRateLimited,
	}
	if cfg.MaxFailures <= 0 {
		return b
	}

	threshold := uint32(cfg.MaxFailures)
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil || IsRecipientError(err) {
				return true
			}
			_, limited := RetryAfter(err)
			return limited
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})
	return b
}

// Do runs op through the breaker. While the circuit is open it waits out the
// cooldown and tries again, and a rate-limited reply is retried after the
// delay Telegram asks for. Neither wait is counted as a failure.
func (b *Breaker) Do(ctx context.Context, op func(context.Context) error) error {
	var cooldowns, limited int
	for {
		err := b.Execute(ctx, op)

		if errors.Is(err, ErrCircuitOpen) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			if cooldowns >= b.maxCooldowns {
				return ErrCircuitOpen
			}
			cooldowns++
			b.log.DebugContext(ctx, "Circuit open, waiting", "cooldown", b.cooldown, "attempt", cooldowns)
			if err := sleep(ctx, b.cooldown); err != nil {
				return err
			}
			continue
		}

		if wait, ok := RetryAfter(err); ok && limited < b.maxLimited {
			limited++
			b.log.DebugContext(ctx, "Rate limited, waiting", "retry_after", wait, "attempt", limited)
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		return err
	}
}

// Execute runs op once unless the circuit is open. Context cancellation is
// not counted against the circuit.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if b == nil || b.cb == nil {
		return op(ctx)
	}
	_, err := b.cb.Execute(func() (any, error) {
		err := op(ctx)
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, &cancelled{err}
		}
		return nil, err
	})
	var c *cancelled
	if errors.As(err, &c) {
		return c.err
	}
	return err
}

// State reports the breaker state, "disabled" when it never trips.
func (b *Breaker) State() string {
	if b == nil || b.cb == nil {
		return "disabled"
	}
	return b.cb.State().String()
}

// cancelled marks a context error so IsSuccessful does not count it.
type cancelled struct{ err error }

func (c *cancelled) Error() string { return c.err.Error() }

// IsRecipientError reports errors caused by one recipient rather than by the
// Telegram API as a whole: the user blocked the bot or the chat is gone.
func IsRecipientError(err error) bool {
	var c *cancelled
	switch {
	case errors.As(err, &c):
		return true
	case errors.Is(err, tgbot.ErrorForbidden):
		return true
	case errors.Is(err, tgbot.ErrorBadRequest):
		return strings.Contains(strings.ToLower(err.Error()), "chat not found")
	}
	return false
}

// RetryAfter reports whether err is Telegram flood control and how long it
// asked to wait, capped at one minute.
func RetryAfter(err error) (time.Duration, bool) {
	var tooMany *tgbot.TooManyRequestsError
	if !errors.As(err, &tooMany) {
		return 0, false
	}
	wait := time.Duration(tooMany.RetryAfter) * time.Second
	if wait < 0 {
		wait = 0
	}
	return min(wait, maxRetryAfter), true
}

// sleep waits for d on the wall clock, which is the clock gobreaker measures
// its cooldown on.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
