package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryDeadLetter struct {
	mu       sync.Mutex
	failures []Failure
}

func (m *memoryDeadLetter) Record(_ context.Context, f Failure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, f)
	return nil
}

func (m *memoryDeadLetter) all() []Failure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Failure(nil), m.failures...)
}

func TestDispatcherRunsJobs(t *testing.T) {
	dead := &memoryDeadLetter{}
	d := NewDispatcher(Options{Workers: 2, QueueSize: 10, Timeout: time.Second}, dead, zap.NewNop())

	var mu sync.Mutex
	done := map[string]bool{}
	for _, ref := range []string{"a", "b", "c"} {
		ref := ref
		require.True(t, d.Submit(Job{Kind: "test", Ref: ref, Run: func(ctx context.Context) error {
			mu.Lock()
			done[ref] = true
			mu.Unlock()
			return nil
		}}))
	}
	d.Close()

	require.Len(t, done, 3)
	require.Empty(t, dead.all())
}

func TestDispatcherRecordsFailures(t *testing.T) {
	dead := &memoryDeadLetter{}
	d := NewDispatcher(Options{Workers: 1, QueueSize: 10, Timeout: time.Second}, dead, zap.NewNop())

	d.Submit(Job{Kind: KindProposalConfirmation, Ref: "p1", Run: func(ctx context.Context) error {
		return errors.New("smtp down")
	}})
	d.Submit(Job{Kind: KindProposalConfirmation, Ref: "p2", Run: func(ctx context.Context) error {
		panic("template exploded")
	}})
	d.Close()

	failures := dead.all()
	require.Len(t, failures, 2)
	require.Equal(t, "p1", failures[0].Ref)
	require.Equal(t, "smtp down", failures[0].Error)
	require.Contains(t, failures[1].Error, "template exploded")
}

func TestDispatcherJobTimeout(t *testing.T) {
	dead := &memoryDeadLetter{}
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1, Timeout: 20 * time.Millisecond}, dead, zap.NewNop())

	d.Submit(Job{Kind: "slow", Ref: "x", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	d.Close()

	failures := dead.all()
	require.Len(t, failures, 1)
	require.Equal(t, context.DeadlineExceeded.Error(), failures[0].Error)
}

func TestDispatcherQueueFull(t *testing.T) {
	dead := &memoryDeadLetter{}
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1, Timeout: time.Second}, dead, zap.NewNop())

	release := make(chan struct{})
	started := make(chan struct{})
	block := func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}
	require.True(t, d.Submit(Job{Kind: "k", Ref: "busy", Run: block}))
	<-started
	// воркер занят, одно место в очереди
	require.True(t, d.Submit(Job{Kind: "k", Ref: "queued", Run: func(ctx context.Context) error { return nil }}))
	require.False(t, d.Submit(Job{Kind: "k", Ref: "dropped", Run: func(ctx context.Context) error { return nil }}))

	close(release)
	d.Close()

	failures := dead.all()
	require.Len(t, failures, 1)
	require.Equal(t, "dropped", failures[0].Ref)
	require.Equal(t, ErrQueueFull.Error(), failures[0].Error)
}

// blockingDeadLetter держит Record, пока не закрыт release
type blockingDeadLetter struct {
	memoryDeadLetter
	release chan struct{}
}

func (b *blockingDeadLetter) Record(ctx context.Context, f Failure) error {
	<-b.release
	return b.memoryDeadLetter.Record(ctx, f)
}

func TestDispatcherQueueFullDoesNotWaitForDeadLetter(t *testing.T) {
	dead := &blockingDeadLetter{release: make(chan struct{})}
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1, Timeout: time.Second}, dead, zap.NewNop())

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, d.Submit(Job{Kind: "k", Ref: "busy", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started
	require.True(t, d.Submit(Job{Kind: "k", Ref: "queued", Run: func(ctx context.Context) error { return nil }}))

	returned := make(chan bool, 1)
	go func() {
		returned <- d.Submit(Job{Kind: "k", Ref: "dropped", Run: func(ctx context.Context) error { return nil }})
	}()
	select {
	case ok := <-returned:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on the dead letter sink")
	}

	close(dead.release)
	close(release)
	d.Close()

	failures := dead.all()
	require.Len(t, failures, 1)
	require.Equal(t, "dropped", failures[0].Ref)
	require.Equal(t, ErrQueueFull.Error(), failures[0].Error)
}

func TestDispatcherSubmitAfterClose(t *testing.T) {
	dead := &memoryDeadLetter{}
	d := NewDispatcher(Options{}, dead, zap.NewNop())
	d.Close()
	d.Close()

	require.False(t, d.Submit(Job{Kind: "k", Ref: "late", Run: func(ctx context.Context) error { return nil }}))
	require.Len(t, dead.all(), 1)
	require.Equal(t, ErrClosed.Error(), dead.all()[0].Error)
}

func TestRedisDeadLetter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	dl := NewRedisDeadLetter(client, "rfp:notifications:dead")
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, dl.Record(ctx, Failure{Kind: KindProposalConfirmation, Ref: "p1", Error: "smtp down", FailedAt: at}))
	require.NoError(t, dl.Record(ctx, Failure{Kind: KindProposalConfirmation, Ref: "p2", Error: "timeout", FailedAt: at}))

	items, err := mr.List("rfp:notifications:dead")
	require.NoError(t, err)
	require.Len(t, items, 2)

	got, err := dl.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "p1", got[0].Ref)
	require.True(t, at.Equal(got[0].FailedAt))

	require.NoError(t, dl.Purge(ctx))
	got, err = dl.List(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, got)
}
