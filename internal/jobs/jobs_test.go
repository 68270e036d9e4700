package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/TobiSchelling/GuideNaturel/internal/database"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePurger struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakePurger) PurgeAnalytics(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, f.err
}

func TestAnalyticsPurgeCutoff(t *testing.T) {
	store := &fakePurger{n: 7}
	p := NewAnalyticsPurge(store, 30, zerolog.Nop())
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	n, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), store.cutoff)
}

func TestAnalyticsPurgeError(t *testing.T) {
	boom := errors.New("locked")
	p := NewAnalyticsPurge(&fakePurger{err: boom}, 1, zerolog.Nop())

	err := p.Task()(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestAnalyticsPurgeAgainstDatabase(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.InsertSkippedQuestion(ctx, "c1", "q_regne"))
	require.NoError(t, db.InsertSearchLog(ctx, &database.SearchLog{ConversationID: "c1", Filters: "{}"}))

	p := NewAnalyticsPurge(db, 1, zerolog.Nop())
	n, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh rows are kept")

	p.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	n, err = p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSchedulerRunsTask(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start()

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	err := s.Add("bad", "not a schedule", func(context.Context) error { return nil })
	assert.Error(t, err)
	s.Stop(context.Background())
}

func TestStopCancelsTaskContext(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	started := make(chan struct{})
	var once atomic.Bool
	require.NoError(t, s.Add("slow", "@every 1s", func(ctx context.Context) error {
		if once.CompareAndSwap(false, true) {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	}))
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("task never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.NoError(t, ctx.Err(), "stop returned because the task exited")
}
