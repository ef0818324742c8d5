package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls   atomic.Int32
	expires atomic.Int32
	n       int
	expired int
	err     error
}

func (f *fakeSweeper) CompleteExpired(context.Context) (int, error) {
	f.calls.Add(1)
	return f.n, f.err
}

func (f *fakeSweeper) ExpirePending(context.Context) (int, error) {
	f.expires.Add(1)
	return f.expired, nil
}

func TestSweepLogs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	Sweep(context.Background(), &fakeSweeper{n: 3}, log)
	assert.Contains(t, buf.String(), "count=3")

	buf.Reset()
	Sweep(context.Background(), &fakeSweeper{}, log)
	assert.Zero(t, buf.Len(), "idle sweeps stay quiet")

	failing := &fakeSweeper{err: errors.New("db down"), expired: 2}
	Sweep(context.Background(), failing, log)
	assert.Contains(t, buf.String(), "db down")
	assert.Contains(t, buf.String(), "rejected stale pending bookings")
	assert.Equal(t, int32(1), failing.expires.Load(), "expiry still runs after a failed completion pass")
}

func TestScheduleSweepRunsPeriodically(t *testing.T) {
	s, err := New(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	require.NoError(t, err)

	sw := &fakeSweeper{}
	require.NoError(t, s.ScheduleSweep(20*time.Millisecond, sw))
	assert.Equal(t, 1, s.Jobs())

	s.Start()
	assert.Eventually(t, func() bool { return sw.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Shutdown())
}
