package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/Druk83/TrainingGround/engine/content"
	"github.com/Druk83/TrainingGround/engine/infra/stream"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

const defaultIdleSleep = time.Second

// Stream is the consumer-group view of the change event stream.
type Stream interface {
	EnsureGroup(ctx context.Context) error
	Read(ctx context.Context) ([]stream.Message, error)
	Claim(ctx context.Context) ([]stream.Message, error)
	Ack(ctx context.Context, ids ...string) error
	Len(ctx context.Context) (int64, error)
}

type BacklogRecorder interface {
	RecordBacklog(n int64)
}

// Worker consumes change events and applies them to the vector index.
type Worker struct {
	stream    Stream
	indexer   *Indexer
	backlog   BacklogRecorder
	idleSleep time.Duration
}

func NewWorker(s Stream, indexer *Indexer, backlog BacklogRecorder, idleSleep time.Duration) *Worker {
	if idleSleep <= 0 {
		idleSleep = defaultIdleSleep
	}
	return &Worker{stream: s, indexer: indexer, backlog: backlog, idleSleep: idleSleep}
}

// Run consumes until ctx is cancelled. Per-event failures are logged and the
// event stays pending for redelivery.
func (w *Worker) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	if err := w.stream.EnsureGroup(ctx); err != nil {
		return err
	}
	log.Info("Embedding sync worker started")
	for {
		if ctx.Err() != nil {
			log.Info("Embedding sync worker stopped")
			return nil
		}
		w.updateBacklog(ctx)
		processed := w.poll(ctx)
		if processed == 0 && !sleep(ctx, w.idleSleep) {
			log.Info("Embedding sync worker stopped")
			return nil
		}
	}
}

func (w *Worker) poll(ctx context.Context) int {
	log := logger.FromContext(ctx)
	claimed, err := w.stream.Claim(ctx)
	if err != nil && ctx.Err() == nil {
		log.Warn("Failed to claim stale change events", "error", err)
	}
	msgs, err := w.stream.Read(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Error("Failed to read change events", "error", err)
		}
		msgs = nil
	}
	msgs = append(claimed, msgs...)
	for _, msg := range msgs {
		if err := w.Handle(ctx, msg); err != nil {
			log.Error("Failed to process change event", "message_id", msg.ID, "key", msg.Event.Key(), "error", err)
		}
	}
	return len(msgs)
}

// Handle processes one entry and acknowledges it after success.
func (w *Worker) Handle(ctx context.Context, msg stream.Message) error {
	if err := w.Process(ctx, msg.Event); err != nil {
		return err
	}
	return w.stream.Ack(ctx, msg.ID)
}

// Process applies one change event. Events for other collections are ignored.
func (w *Worker) Process(ctx context.Context, ev stream.ChangeEvent) error {
	if ev.Collection != stream.CollectionRules || ev.DocumentID == "" {
		return nil
	}
	if ev.Action == stream.ActionDeleted || ev.Status == content.RuleStatusDeprecated {
		return w.indexer.Remove(ctx, ev.DocumentID)
	}
	if err := w.indexer.Sync(ctx, ev.DocumentID); err != nil {
		return fmt.Errorf("sync rule %q: %w", ev.DocumentID, err)
	}
	return nil
}

func (w *Worker) updateBacklog(ctx context.Context) {
	if w.backlog == nil {
		return
	}
	n, err := w.stream.Len(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.FromContext(ctx).Warn("Failed to read stream length", "error", err)
		}
		return
	}
	w.backlog.RecordBacklog(n)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
