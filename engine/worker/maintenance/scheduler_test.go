package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Druk83/TrainingGround/engine/knowledge/vectordb"
)

type fakeIndex struct {
	snapshots []vectordb.Snapshot
	created   int
	createErr error
}

func (f *fakeIndex) CreateSnapshot(context.Context) (vectordb.Snapshot, error) {
	if f.createErr != nil {
		return vectordb.Snapshot{}, f.createErr
	}
	f.created++
	snap := vectordb.Snapshot{
		Name:      fmt.Sprintf("snap-%02d", f.created),
		CreatedAt: time.Date(2026, 1, 1, f.created, 0, 0, 0, time.UTC),
	}
	f.snapshots = append(f.snapshots, snap)
	return snap, nil
}

func (f *fakeIndex) ListSnapshots(context.Context) ([]vectordb.Snapshot, error) {
	return append([]vectordb.Snapshot{}, f.snapshots...), nil
}

func (f *fakeIndex) DeleteSnapshot(_ context.Context, name string) error {
	for i, s := range f.snapshots {
		if s.Name == name {
			f.snapshots = append(f.snapshots[:i], f.snapshots[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

type fakeStream struct {
	length int64
	err    error
}

func (f *fakeStream) Len(context.Context) (int64, error) { return f.length, f.err }

type gauge struct{ value atomic.Int64 }

func (g *gauge) RecordBacklog(n int64) { g.value.Store(n) }

func TestScheduler_SnapshotJob(t *testing.T) {
	ctx := context.Background()

	t.Run("Should keep only the newest snapshots", func(t *testing.T) {
		index := &fakeIndex{}
		s := NewScheduler(Config{SnapshotCron: "0 * * * *", SnapshotRetention: 2}, index, &fakeStream{}, &gauge{})
		for range 4 {
			require.NoError(t, s.SnapshotJob(ctx))
		}
		names := make([]string, 0, len(index.snapshots))
		for _, snap := range index.snapshots {
			names = append(names, snap.Name)
		}
		assert.ElementsMatch(t, []string{"snap-03", "snap-04"}, names)
	})

	t.Run("Should return snapshot errors", func(t *testing.T) {
		index := &fakeIndex{createErr: errors.New("qdrant down")}
		s := NewScheduler(Config{SnapshotRetention: 2}, index, &fakeStream{}, &gauge{})
		require.Error(t, s.SnapshotJob(ctx))
	})
}

func TestScheduler_BacklogJob(t *testing.T) {
	t.Run("Should publish the stream length", func(t *testing.T) {
		g := &gauge{}
		s := NewScheduler(Config{}, &fakeIndex{}, &fakeStream{length: 17}, g)
		require.NoError(t, s.BacklogJob(context.Background()))
		assert.Equal(t, int64(17), g.value.Load())
	})

	t.Run("Should keep the previous value on error", func(t *testing.T) {
		g := &gauge{}
		g.value.Store(3)
		s := NewScheduler(Config{}, &fakeIndex{}, &fakeStream{err: errors.New("redis down")}, g)
		require.Error(t, s.BacklogJob(context.Background()))
		assert.Equal(t, int64(3), g.value.Load())
	})
}

func TestScheduler_Run(t *testing.T) {
	t.Run("Should run the backlog job on its interval and stop on cancel", func(t *testing.T) {
		g := &gauge{}
		s := NewScheduler(Config{
			SnapshotCron:      "0 * * * *",
			SnapshotRetention: 24,
			BacklogInterval:   time.Second,
		}, &fakeIndex{}, &fakeStream{length: 5}, g)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx) }()
		require.Eventually(t, func() bool { return g.value.Load() == 5 }, 3*time.Second, 20*time.Millisecond)
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	})

	t.Run("Should reject an invalid cron expression", func(t *testing.T) {
		s := NewScheduler(Config{SnapshotCron: "not a cron"}, &fakeIndex{}, &fakeStream{}, &gauge{})
		require.Error(t, s.Start(context.Background()))
	})
}
