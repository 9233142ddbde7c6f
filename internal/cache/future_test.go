package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"relfiles/internal/coupling"
	relerrors "relfiles/internal/errors"
)

func TestFuture_ResolvesOnce(t *testing.T) {
	r := require.New(t)
	f := NewFuture()
	r.False(f.Resolved())

	r.True(f.Resolve([]coupling.Candidate{{Path: "/a", Count: 1}}, nil))
	r.False(f.Resolve(nil, errors.New("late")))
	r.True(f.Resolved())

	got, err := f.Wait(context.Background())
	r.NoError(err)
	r.Equal([]coupling.Candidate{{Path: "/a", Count: 1}}, got)
}

func TestFuture_WaitHonorsContext(t *testing.T) {
	r := require.New(t)
	f := NewFuture()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	r.ErrorIs(err, context.DeadlineExceeded)
	r.False(f.Resolved(), "abandoning the wait leaves the future pending")
}

func TestGo_DetachedFromCallerCancellation(t *testing.T) {
	r := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	f := Go(ctx, func(ctx context.Context) ([]coupling.Candidate, error) {
		close(started)
		time.Sleep(20 * time.Millisecond)
		return nil, ctx.Err()
	})
	<-started
	cancel()

	got, err := f.Wait(context.Background())
	r.NoError(err)
	r.Nil(got)
}

func TestGo_PanicBecomesInternalError(t *testing.T) {
	r := require.New(t)
	f := Go(context.Background(), func(context.Context) ([]coupling.Candidate, error) {
		panic("boom")
	})

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("future not resolved")
	}
	_, err := f.Wait(context.Background())
	r.True(relerrors.Is(err, relerrors.InternalError))
	r.Contains(err.Error(), "boom")
}
