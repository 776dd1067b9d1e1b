package ai

import (
	"context"
	"testing"
	"time"
)

func TestRegistrySingleTaskPerUser(t *testing.T) {
	r := NewTaskRegistry()
	release := make(chan struct{})
	started := make(chan struct{})

	ok := r.Start(context.Background(), 1, func(ctx context.Context) {
		close(started)
		<-release
	})
	if !ok {
		t.Fatal("first task refused")
	}
	<-started

	if r.Start(context.Background(), 1, func(context.Context) {}) {
		t.Error("second concurrent task accepted")
	}
	if !r.Active(1) {
		t.Error("task not reported active")
	}
	// other users are unaffected
	if !r.Start(context.Background(), 2, func(context.Context) {}) {
		t.Error("other user's task refused")
	}

	close(release)
	waitInactive(t, r, 1)

	// slot is free again
	if !r.Start(context.Background(), 1, func(context.Context) {}) {
		t.Error("slot not released after completion")
	}
}

func TestRegistryCancel(t *testing.T) {
	r := NewTaskRegistry()
	cancelled := make(chan struct{})

	r.Start(context.Background(), 1, func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	})

	if !r.Cancel(1) {
		t.Fatal("cancel reported no task")
	}
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("task context never cancelled")
	}
	waitInactive(t, r, 1)

	if r.Cancel(1) {
		t.Error("cancel on idle user reported a task")
	}
}

func waitInactive(t *testing.T, r *TaskRegistry, userID int64) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !r.Active(userID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("user %d still active", userID)
}
