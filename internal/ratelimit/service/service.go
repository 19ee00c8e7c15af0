// Package service implements the rate limit checker: a durable shared
// counter store when available, an in-process fallback with stricter
// thresholds when not.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"paydesk/internal/ratelimit/metrics"
	"paydesk/internal/ratelimit/models"
	"paydesk/internal/ratelimit/store/counter"
)

// probeChance is the denominator of half-open probing: while the circuit is
// open roughly one in this many checks still tries the primary store so the
// breaker can observe recovery and close.
const probeChance = 8

// Checker admits or rejects a request for an identifier under a named preset.
type Checker struct {
	primary      counter.Store // nil when no durable store is configured
	fallback     counter.Store
	breaker      *breaker
	limits       map[models.Preset]models.Limit
	logger       *slog.Logger
	storeTimeout time.Duration
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

// WithLimits overrides the preset table. Tests use this to shrink windows.
func WithLimits(limits map[models.Preset]models.Limit) Option {
	return func(c *Checker) { c.limits = limits }
}

// WithStoreTimeout bounds each primary-store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(c *Checker) { c.storeTimeout = d }
}

// New builds a Checker. primary may be nil (fallback-only mode); fallback is
// required because protection must never disappear entirely.
func New(primary counter.Store, fallback counter.Store, opts ...Option) (*Checker, error) {
	if fallback == nil {
		return nil, errors.New("fallback counter store is required")
	}

	c := &Checker{
		primary:      primary,
		fallback:     fallback,
		breaker:      newBreaker(),
		limits:       models.Limits,
		logger:       slog.Default(),
		storeTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Check admits or rejects identifier under preset.
func (c *Checker) Check(ctx context.Context, preset models.Preset, identifier string) (*models.Result, error) {
	return c.CheckNamespaced(ctx, "", preset, identifier)
}

// CheckNamespaced is Check with an explicit namespace segment in the
// counter key, for callers multiplexing several surfaces onto one preset.
func (c *Checker) CheckNamespaced(ctx context.Context, namespace string, preset models.Preset, identifier string) (*models.Result, error) {
	start := time.Now()
	defer func() {
		metrics.ObserveCheckDuration(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	limit, ok := c.limits[preset]
	if !ok {
		// Default-deny: an unconfigured preset is a programming error, and
		// failing open on it would disable protection silently.
		c.logger.Error("rate limit preset not configured", "preset", preset)
		return &models.Result{
			Allowed:    false,
			ResetAt:    time.Now().Add(time.Minute),
			RetryAfter: 60,
		}, nil
	}

	key := models.Key(namespace, preset, identifier)

	if c.usePrimary() {
		result, err := c.checkPrimary(ctx, key, preset, limit)
		if err == nil {
			return result, nil
		}
		c.logger.Warn("counter store unavailable, using in-process fallback",
			"error", err, "preset", preset)
	}

	return c.checkFallback(ctx, key, preset, limit)
}

// usePrimary decides whether this check should hit the durable store.
func (c *Checker) usePrimary() bool {
	if c.primary == nil {
		return false
	}
	if !c.breaker.isOpen() {
		return true
	}
	// Half-open probe so the breaker can close after recovery.
	return rand.IntN(probeChance) == 0
}

func (c *Checker) checkPrimary(ctx context.Context, key string, preset models.Preset, limit models.Limit) (*models.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()

	count, resetAt, err := c.primary.Incr(ctx, key, limit.Window)
	if err != nil {
		metrics.SetBreakerOpen(c.breaker.recordFailure())
		return nil, err
	}
	metrics.SetBreakerOpen(!c.breaker.recordSuccess())

	result := buildResult(count, limit.Max, resetAt, false)
	metrics.RecordCheck(string(preset), result.Allowed)
	return result, nil
}

func (c *Checker) checkFallback(ctx context.Context, key string, preset models.Preset, limit models.Limit) (*models.Result, error) {
	metrics.RecordFallback()

	count, resetAt, err := c.fallback.Incr(ctx, key, limit.Window)
	if err != nil {
		// The in-memory store cannot realistically fail, but if it does the
		// request is denied: protection degrades, it never disappears.
		c.logger.Error("fallback counter store failed", "error", err, "preset", preset)
		return &models.Result{
			Allowed:    false,
			Limit:      limit.FallbackMax,
			ResetAt:    time.Now().Add(limit.Window),
			RetryAfter: int(limit.Window.Seconds()),
			Degraded:   true,
		}, nil
	}

	result := buildResult(count, limit.FallbackMax, resetAt, true)
	metrics.RecordCheck(string(preset), result.Allowed)
	return result, nil
}

func buildResult(count, max int64, resetAt time.Time, degraded bool) *models.Result {
	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	result := &models.Result{
		Allowed:   count <= max,
		Limit:     max,
		Remaining: remaining,
		ResetAt:   resetAt,
		Degraded:  degraded,
	}
	if !result.Allowed {
		retryAfter := int(time.Until(resetAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		result.RetryAfter = retryAfter
	}
	return result
}
