// Package poll provides the bounded retry loop shared by every wait in navshot:
// submenu rendering, toolbar discovery and the render countdown.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned by Until when every attempt ran without the
// predicate reporting done.
var ErrExhausted = errors.New("poll: attempts exhausted")

// Policy bounds a polling loop.
type Policy struct {
	Attempts int
	Interval time.Duration
}

// Timeout is the longest the policy can keep a caller waiting.
func (p Policy) Timeout() time.Duration {
	if p.Attempts <= 1 {
		return 0
	}
	return time.Duration(p.Attempts-1) * p.Interval
}

// Predicate is evaluated once per attempt. attempt starts at 1.
// A non-nil error stops the loop immediately and is returned as is.
type Predicate func(ctx context.Context, attempt int) (done bool, err error)

// Until runs pred up to p.Attempts times, sleeping p.Interval between
// attempts. The first attempt runs without delay.
func Until(ctx context.Context, p Policy, pred Predicate) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var ticker *time.Ticker
	if p.Interval > 0 && attempts > 1 {
		ticker = time.NewTicker(p.Interval)
		defer ticker.Stop()
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := pred(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == attempts || ticker == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return ErrExhausted
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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
