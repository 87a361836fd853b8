package governance

import (
	"context"
	"sync/atomic"
	"time"
)

// TimeoutManager applies the computation deadline to calculations. A zero
// timeout leaves the caller's context untouched.
type TimeoutManager struct {
	timeout atomic.Int64
}

// NewTimeoutManager creates a timeout manager with the given deadline.
func NewTimeoutManager(timeout time.Duration) *TimeoutManager {
	tm := &TimeoutManager{}
	tm.Configure(timeout)
	return tm
}

// Configure replaces the deadline. Negative values are treated as zero.
func (tm *TimeoutManager) Configure(timeout time.Duration) {
	if timeout < 0 {
		timeout = 0
	}
	tm.timeout.Store(int64(timeout))
}

// Timeout returns the current deadline.
func (tm *TimeoutManager) Timeout() time.Duration {
	return time.Duration(tm.timeout.Load())
}

// WithComputationTimeout derives a context bounded by the deadline.
func (tm *TimeoutManager) WithComputationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := tm.Timeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
