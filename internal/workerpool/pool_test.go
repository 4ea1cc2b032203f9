package workerpool

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoReturnsTaskError(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	want := errors.New("boom")
	err := p.Do(context.Background(), func() error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func TestDoReturnsNilOnSuccess(t *testing.T) {
	p := New(2, 2)
	defer p.Close()

	ran := false
	if err := p.Do(context.Background(), func() error { ran = true; return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatal("task did not run")
	}
}

func TestDoRecoversPanic(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	err := p.Do(context.Background(), func() error { panic("bad task") })
	if err == nil {
		t.Fatal("panicking task should surface an error")
	}
}

func TestDoHonorsContextWhileEnqueueing(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	release := make(chan struct{})
	blocker := func() error {
		<-release
		return nil
	}
	go p.Do(context.Background(), blocker) // occupies the worker
	time.Sleep(10 * time.Millisecond)
	go p.Do(context.Background(), blocker) // fills the queue slot
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Do(ctx, func() error { return nil })
	close(release)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestDoJoinsAcceptedTaskAfterCancel(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	finished := false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func() error {
			close(started)
			<-release
			finished = true
			return nil
		})
	}()

	<-started
	cancel()

	select {
	case <-done:
		t.Fatal("Do returned while its task was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !finished {
		t.Fatal("Do must not return before the task completes")
	}
}

func TestDoAfterCloseFails(t *testing.T) {
	p := New(1, 1)
	p.Close()

	if err := p.Do(context.Background(), func() error { return nil }); !errors.Is(err, ErrPoolStopped) {
		t.Fatalf("err = %v, want ErrPoolStopped", err)
	}
}
