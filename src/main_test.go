package main

import (
	"bytes"
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"dashboard"})

	require.NoError(t, cmd.Execute())

	for _, r := range Readouts() {
		assert.Contains(t, out.String(), r.EntityID())
	}
	assert.Contains(t, out.String(), "custom:sankey-chart")
}

func TestSafeGo_RecoversFromPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan struct{})

	SafeGo(ctx, cancel, "flaky", func(ctx context.Context) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker was not restarted")
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.NoError(t, ctx.Err())
}

func TestWaitForShutdown_Signal(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	sigChan <- os.Interrupt

	assert.NoError(t, waitForShutdown(context.Background(), sigChan))
}

func TestWaitForShutdown_WorkerFailureIsAnError(t *testing.T) {
	// SafeGo cancels the shared context once a worker runs out of retries
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := waitForShutdown(ctx, make(chan os.Signal))
	assert.ErrorIs(t, err, ErrWorkerFailed)
}

func TestWaitForWorker(t *testing.T) {
	done := make(chan struct{})
	assert.False(t, waitForWorker(done, 10*time.Millisecond))

	close(done)
	assert.True(t, waitForWorker(done, time.Second))
}
