package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New()
	go l.Run(ctx)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}

	var snapshot []int
	if err := l.Do(ctx, func() { snapshot = append(snapshot, got...) }); err != nil {
		t.Fatalf("do: %v", err)
	}

	if len(snapshot) != 100 {
		t.Fatalf("expected 100 tasks, got %d", len(snapshot))
	}
	for i, v := range snapshot {
		if v != i {
			t.Fatalf("task %d ran out of order: %d", i, v)
		}
	}
}

func TestLoopPostFromManyGoroutines(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New()
	go l.Run(ctx)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Post(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	var total int
	if err := l.Do(ctx, func() { total = counter }); err != nil {
		t.Fatalf("do: %v", err)
	}
	if total != 1000 {
		t.Fatalf("expected 1000 increments, got %d", total)
	}
}

func TestLoopTaskMayPostToItself(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New()
	go l.Run(ctx)

	done := make(chan struct{})
	l.Post(func() {
		l.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("nested post never ran")
	}
}

func TestLoopStopped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New()
	exited := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(exited)
	}()
	cancel()
	<-exited

	if l.Post(func() {}) {
		t.Fatalf("post after stop should fail")
	}
	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}
