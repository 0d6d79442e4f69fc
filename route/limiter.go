package route

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"go.uber.org/ratelimit"
	"golang.org/x/time/rate"
)

// Limiter gates requests before dispatch.
type Limiter interface {
	// Admit reports whether r may be dispatched.
	Admit(r *http.Request) bool
	Name() string
}

// LimiterConfig selects and sizes a limiter.
type LimiterConfig struct {
	// Kind is "token", "funnel" or empty for no limiter.
	Kind  string `mapstructure:"kind"`
	Rate  int    `mapstructure:"rate"`
	Burst int    `mapstructure:"burst"`
}

// Validate checks the limiter settings.
func (c LimiterConfig) Validate() error {
	switch c.Kind {
	case "":
		return nil
	case "token", "funnel":
		if c.Rate <= 0 {
			return fmt.Errorf("limiter %s: rate must be positive", c.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown limiter kind %q", c.Kind)
	}
}

// NewLimiter builds the limiter described by c, nil when disabled.
func NewLimiter(c LimiterConfig) (Limiter, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	switch c.Kind {
	case "token":
		return NewTokenLimiter(c.Rate, c.Burst), nil
	case "funnel":
		return NewFunnelLimiter(c.Rate), nil
	}
	return nil, nil
}

// TokenLimiter is a token bucket. Requests finding the bucket empty are
// rejected rather than queued.
//
// The limiter sits behind an atomic pointer so Reload can swap it while
// requests are being admitted.
type TokenLimiter struct {
	limiter atomic.Pointer[rate.Limiter]
}

// NewTokenLimiter allows limit requests per second with bursts of burst.
// A burst below one is raised to one.
func NewTokenLimiter(limit, burst int) *TokenLimiter {
	l := &TokenLimiter{}
	l.Reload(limit, burst)
	return l
}

func (l *TokenLimiter) Admit(*http.Request) bool {
	return l.limiter.Load().Allow()
}

func (l *TokenLimiter) Name() string { return "token" }

// Reload replaces the bucket at runtime.
func (l *TokenLimiter) Reload(limit, burst int) {
	if burst < 1 {
		burst = 1
	}
	l.limiter.Store(rate.NewLimiter(rate.Limit(limit), burst))
}

// FunnelLimiter is a leaky bucket: requests are paced to a steady rate and
// wait for their slot instead of being rejected.
type FunnelLimiter struct {
	limiter atomic.Pointer[ratelimit.Limiter]
}

// NewFunnelLimiter paces to limit requests per second.
func NewFunnelLimiter(limit int) *FunnelLimiter {
	l := &FunnelLimiter{}
	l.Reload(limit)
	return l
}

func (l *FunnelLimiter) Admit(r *http.Request) bool {
	_ = (*l.limiter.Load()).Take()
	return r.Context().Err() == nil
}

func (l *FunnelLimiter) Name() string { return "funnel" }

// Reload replaces the pacing rate at runtime.
func (l *FunnelLimiter) Reload(limit int) {
	limiter := ratelimit.New(limit)
	l.limiter.Store(&limiter)
}
