// Package maintenance runs periodic housekeeping for the rule index: snapshots
// with retention and the change stream backlog gauge.
package maintenance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Druk83/TrainingGround/engine/knowledge/vectordb"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

const defaultStopTimeout = 5 * time.Second

type SnapshotStore interface {
	CreateSnapshot(ctx context.Context) (vectordb.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]vectordb.Snapshot, error)
	DeleteSnapshot(ctx context.Context, name string) error
}

type LengthReader interface {
	Len(ctx context.Context) (int64, error)
}

type BacklogRecorder interface {
	RecordBacklog(n int64)
}

type Config struct {
	SnapshotCron      string
	SnapshotRetention int
	BacklogInterval   time.Duration
	StopTimeout       time.Duration
}

type Scheduler struct {
	cfg     Config
	index   SnapshotStore
	stream  LengthReader
	backlog BacklogRecorder
	cron    *cron.Cron
}

func NewScheduler(cfg Config, index SnapshotStore, s LengthReader, backlog BacklogRecorder) *Scheduler {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	return &Scheduler{cfg: cfg, index: index, stream: s, backlog: backlog}
}

// Start registers both jobs and starts the cron runner. Jobs run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	log := logger.FromContext(ctx)
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{log}),
		cron.SkipIfStillRunning(cronLogger{log}),
	))
	if _, err := c.AddFunc(s.cfg.SnapshotCron, func() { s.runJob(ctx, "snapshot", s.SnapshotJob) }); err != nil {
		return fmt.Errorf("maintenance: invalid snapshot cron %q: %w", s.cfg.SnapshotCron, err)
	}
	if s.cfg.BacklogInterval > 0 {
		c.Schedule(cron.Every(s.cfg.BacklogInterval), cron.FuncJob(func() { s.runJob(ctx, "backlog", s.BacklogJob) }))
	}
	s.cron = c
	c.Start()
	log.Info("Maintenance scheduler started", "snapshot_cron", s.cfg.SnapshotCron, "backlog_interval", s.cfg.BacklogInterval)
	return nil
}

// Stop halts scheduling and waits for running jobs up to the stop timeout.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(s.cfg.StopTimeout):
		logger.FromContext(ctx).Warn("Maintenance jobs still running at shutdown")
	}
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop(context.WithoutCancel(ctx))
	logger.FromContext(ctx).Info("Maintenance scheduler stopped")
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, name string, job func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	if err := job(ctx); err != nil {
		logger.FromContext(ctx).Error("Maintenance job failed", "job", name, "error", err)
	}
}

// SnapshotJob creates an index snapshot and prunes older ones beyond the retention count.
func (s *Scheduler) SnapshotJob(ctx context.Context) error {
	log := logger.FromContext(ctx)
	snap, err := s.index.CreateSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	log.Info("Created index snapshot", "name", snap.Name)
	if s.cfg.SnapshotRetention <= 0 {
		return nil
	}
	snapshots, err := s.index.ListSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	if len(snapshots) <= s.cfg.SnapshotRetention {
		return nil
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		if snapshots[i].CreatedAt.Equal(snapshots[j].CreatedAt) {
			return snapshots[i].Name > snapshots[j].Name
		}
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	for _, old := range snapshots[s.cfg.SnapshotRetention:] {
		if err := s.index.DeleteSnapshot(ctx, old.Name); err != nil {
			return fmt.Errorf("delete snapshot %q: %w", old.Name, err)
		}
		log.Debug("Pruned index snapshot", "name", old.Name)
	}
	return nil
}

// BacklogJob refreshes the change stream backlog gauge.
func (s *Scheduler) BacklogJob(ctx context.Context) error {
	n, err := s.stream.Len(ctx)
	if err != nil {
		return fmt.Errorf("read stream length: %w", err)
	}
	s.backlog.RecordBacklog(n)
	return nil
}

type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
