// Package backoff implements randomized exponential backoff for the
// client supervisor's reconnection loop (SPEC_FULL.md §6 Reconnection),
// generalizing the shape of the teacher's
// internal/handlers.RetryPolicy (MaxAttempts/InitialDelay/MaxDelay/
// BackoffFactor) from per-error-type SIP retry policy into a single
// reusable delay sequence, with jitter drawn from golang.org/x/exp/rand
// instead of the teacher's crypto/rand (no cryptographic property is
// needed here, just cheap uniform jitter).
package backoff

import (
	"time"

	"golang.org/x/exp/rand"
)

// Policy is a randomized exponential backoff sequence: the nth delay is
// min(MaxDelay, InitialDelay*Factor^n) plus or minus up to Jitter
// fraction of that value, picked uniformly at random and clamped to
// [0, MaxDelay], so that many clients reconnecting to the same endpoint
// at once don't all retry in lockstep.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
	Jitter       float64

	rng *rand.Rand
}

// New builds a Policy from the given parameters. Its jitter source is
// seeded with initialDelay at construction, so two Policies built with
// the same initialDelay draw the same jitter sequence.
func New(initialDelay, maxDelay time.Duration, factor, jitter float64) *Policy {
	return &Policy{
		InitialDelay: initialDelay,
		MaxDelay:     maxDelay,
		Factor:       factor,
		Jitter:       jitter,
		rng:          rand.New(rand.NewSource(uint64(initialDelay))),
	}
}

// Delay returns the delay to wait before reconnection attempt number
// attempt (0-based).
func (p *Policy) Delay(attempt int) time.Duration {
	base := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		base *= p.Factor
		if base >= float64(p.MaxDelay) {
			base = float64(p.MaxDelay)
			break
		}
	}

	if p.Jitter <= 0 {
		return time.Duration(base)
	}

	jitterRange := base * p.Jitter
	offset := p.rng.Float64()*jitterRange*2 - jitterRange
	result := base + offset
	if result < 0 {
		result = 0
	}
	if result > float64(p.MaxDelay) {
		result = float64(p.MaxDelay)
	}
	return time.Duration(result)
}

// Wait blocks for Delay(attempt), or returns early if stop fires.
func (p *Policy) Wait(attempt int, stop <-chan struct{}) bool {
	select {
	case <-time.After(p.Delay(attempt)):
		return true
	case <-stop:
		return false
	}
}
