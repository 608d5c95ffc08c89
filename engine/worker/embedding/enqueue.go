package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/Druk83/TrainingGround/engine/content"
	"github.com/Druk83/TrainingGround/engine/infra/stream"
)

type RuleLister interface {
	ListRules(ctx context.Context, afterID string, limit int) ([]content.Rule, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev stream.ChangeEvent) (string, error)
}

// EnqueueRebuild publishes an updated event for every rule so the sync worker
// re-embeds them. version distinguishes the run in idempotency keys.
func EnqueueRebuild(ctx context.Context, repo RuleLister, pub Publisher, batchSize int, version string) (int, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	total := 0
	after := ""
	for {
		page, err := repo.ListRules(ctx, after, batchSize)
		if err != nil {
			return total, fmt.Errorf("list rules after %q: %w", after, err)
		}
		for idx := range page {
			ev := stream.NewChangeEvent(stream.CollectionRules, page[idx].ID, stream.ActionUpdated, version, time.Now())
			ev.Status = page[idx].Status
			if _, err := pub.Publish(ctx, ev); err != nil {
				return total, err
			}
			total++
		}
		if len(page) < batchSize {
			return total, nil
		}
		after = page[len(page)-1].ID
	}
}
