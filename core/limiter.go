package core

import (
	"fmt"
	"sync"
)

// CallLimiter hands out iteration slots for the tool-call loop of a single
// run. Once the budget is spent further takes fail, which guarantees the loop
// terminates against a model that never stops requesting tools.
type CallLimiter struct {
	mu    sync.Mutex
	limit int
	used  int
}

// NewCallLimiter creates a limiter with the given iteration budget. A budget
// of zero means unbounded.
func NewCallLimiter(limit int) *CallLimiter {
	return &CallLimiter{limit: limit}
}

// Take consumes one iteration slot and reports its 1-based number. The error
// is non-nil once the budget is exhausted.
func (l *CallLimiter) Take() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.used++
	if l.limit > 0 && l.used > l.limit {
		return l.used, fmt.Errorf("exceeded max tool iterations: %d", l.limit)
	}
	return l.used, nil
}
