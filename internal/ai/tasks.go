package ai

import (
	"context"
	"sync"
)

// TaskRegistry enforces one running analysis per user and lets a later
// request cancel it.
type TaskRegistry struct {
	mu      sync.Mutex
	running map[int64]context.CancelFunc
}

func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{running: make(map[int64]context.CancelFunc)}
}

// Start launches fn in a goroutine bound to a per-user context. It returns
// false without starting when the user already has an analysis running.
// The task is deregistered when fn returns, whatever the outcome.
func (r *TaskRegistry) Start(ctx context.Context, userID int64, fn func(ctx context.Context)) bool {
	r.mu.Lock()
	if _, busy := r.running[userID]; busy {
		r.mu.Unlock()
		return false
	}
	taskCtx, cancel := context.WithCancel(ctx)
	r.running[userID] = cancel
	r.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.running, userID)
			r.mu.Unlock()
		}()
		fn(taskCtx)
	}()
	return true
}

// Cancel stops the user's running analysis, reporting whether one existed.
func (r *TaskRegistry) Cancel(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.running[userID]
	if ok {
		cancel()
	}
	return ok
}

// Active reports whether the user has an analysis in flight.
func (r *TaskRegistry) Active(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[userID]
	return ok
}
