// Package retry models the fixed-backoff retry budget used around queue
// enqueues and reminder execution as an explicit value, instead of
// control flow buried in the call sites.
package retry

import (
	"context"
	"time"

	"github.com/jmhodges/clock"
)

// Policy is a retry budget: at most MaxAttempts tries with a fixed
// Backoff between them.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPolicy matches the dispatcher contract: 3 attempts, 60 s apart.
var DefaultPolicy = Policy{MaxAttempts: 3, Backoff: time.Minute}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// Do runs fn until it succeeds or the budget is exhausted, waiting
// Backoff between attempts on the injected clock. The last error is
// returned on exhaustion; a cancelled context cuts the wait short.
func Do(ctx context.Context, clk clock.Clock, policy Policy, fn func() error) error {
	policy = policy.normalized()

	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == policy.MaxAttempts {
			break
		}
		if policy.Backoff == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(policy.Backoff):
		}
	}
	return err
}
