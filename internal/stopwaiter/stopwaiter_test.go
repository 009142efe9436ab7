package stopwaiter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartTwiceWithoutStopPanics(t *testing.T) {
	var s StopWaiter
	s.Start(context.Background())
	defer s.StopAndWait()

	require.Panics(t, func() { s.Start(context.Background()) })
}

func TestStoppedReportsContextCancellation(t *testing.T) {
	var s StopWaiter
	require.True(t, s.Stopped(), "never-started StopWaiter is vacuously stopped")

	s.Start(context.Background())
	require.False(t, s.Stopped())

	s.StopAndWait()
	require.True(t, s.Stopped())
}

func TestLaunchThreadRunsAndIsWaitedOn(t *testing.T) {
	var s StopWaiter
	s.Start(context.Background())

	var ran int32
	started := make(chan struct{})
	s.LaunchThread(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		atomic.StoreInt32(&ran, 1)
	})

	<-started
	s.StopAndWait()
	require.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestCallIterativelyStopsOnCancellation(t *testing.T) {
	var s StopWaiter
	s.Start(context.Background())

	var calls int32
	s.CallIteratively(func(ctx context.Context) time.Duration {
		atomic.AddInt32(&calls, 1)
		return time.Millisecond
	})

	time.Sleep(20 * time.Millisecond)
	s.StopAndWait()

	require.Greater(t, atomic.LoadInt32(&calls), int32(0))

	countAfterStop := atomic.LoadInt32(&calls)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, countAfterStop, atomic.LoadInt32(&calls), "no further calls after StopAndWait")
}

func TestStartAfterStopAndWaitRestarts(t *testing.T) {
	var s StopWaiter
	s.Start(context.Background())
	s.StopAndWait()

	require.NotPanics(t, func() { s.Start(context.Background()) })
	s.StopAndWait()
}

func TestGetContextReturnsStartedContext(t *testing.T) {
	var s StopWaiter
	require.Nil(t, s.GetContext())

	s.Start(context.Background())
	require.NotNil(t, s.GetContext())
	s.StopAndWait()
}
