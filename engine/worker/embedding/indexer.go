// Package embedding keeps the rule vector index in sync with the content store.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/Druk83/TrainingGround/engine/content"
	"github.com/Druk83/TrainingGround/engine/knowledge/vectordb"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

const defaultBatchSize = 32

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer writes rule embeddings to the vector index.
type Indexer struct {
	repo      content.Repository
	embedder  Embedder
	store     vectordb.Store
	batchSize int
}

func NewIndexer(repo content.Repository, embedder Embedder, store vectordb.Store, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Indexer{repo: repo, embedder: embedder, store: store, batchSize: batchSize}
}

// RuleText is the embedded representation of a rule.
func RuleText(r *content.Rule) string {
	return r.Name + "\n" + r.Description
}

func rulePayload(r *content.Rule) map[string]any {
	return map[string]any{
		"rule_id":     r.ID,
		"name":        r.Name,
		"description": r.Description,
		"slug":        r.Slug,
		"difficulty":  r.Difficulty,
	}
}

// Sync re-reads one rule and upserts or removes its point.
func (i *Indexer) Sync(ctx context.Context, ruleID string) error {
	rule, err := i.repo.GetRule(ctx, ruleID)
	if errors.Is(err, content.ErrNotFound) {
		return i.Remove(ctx, ruleID)
	}
	if err != nil {
		return fmt.Errorf("load rule %q: %w", ruleID, err)
	}
	if rule.Deprecated() {
		return i.Remove(ctx, ruleID)
	}
	_, err = i.upsert(ctx, []content.Rule{*rule})
	return err
}

func (i *Indexer) Remove(ctx context.Context, ruleID string) error {
	if err := i.store.Delete(ctx, []string{vectordb.PointID(ruleID)}); err != nil {
		return fmt.Errorf("delete rule %q from index: %w", ruleID, err)
	}
	logger.FromContext(ctx).Info("Removed embedding for rule", "rule_id", ruleID)
	return nil
}

// Rebuild re-embeds every active rule in batches and returns the number indexed.
// Deprecated rules are removed from the index.
func (i *Indexer) Rebuild(ctx context.Context) (int, error) {
	total := 0
	after := ""
	for {
		page, err := i.repo.ListRules(ctx, after, i.batchSize)
		if err != nil {
			return total, fmt.Errorf("list rules after %q: %w", after, err)
		}
		if len(page) == 0 {
			return total, nil
		}
		active := make([]content.Rule, 0, len(page))
		var stale []string
		for idx := range page {
			if page[idx].Deprecated() {
				stale = append(stale, vectordb.PointID(page[idx].ID))
				continue
			}
			active = append(active, page[idx])
		}
		if len(stale) > 0 {
			if err := i.store.Delete(ctx, stale); err != nil {
				return total, fmt.Errorf("delete deprecated rules: %w", err)
			}
		}
		n, err := i.upsert(ctx, active)
		total += n
		if err != nil {
			return total, err
		}
		after = page[len(page)-1].ID
		if len(page) < i.batchSize {
			return total, nil
		}
	}
}

func (i *Indexer) upsert(ctx context.Context, rules []content.Rule) (int, error) {
	if len(rules) == 0 {
		return 0, nil
	}
	texts := make([]string, len(rules))
	for idx := range rules {
		texts[idx] = RuleText(&rules[idx])
	}
	vectors, err := i.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed rules: %w", err)
	}
	if len(vectors) != len(rules) {
		return 0, fmt.Errorf("embed rules: got %d vectors for %d rules", len(vectors), len(rules))
	}
	points := make([]vectordb.Point, len(rules))
	for idx := range rules {
		points[idx] = vectordb.Point{
			ID:      vectordb.PointID(rules[idx].ID),
			Vector:  vectors[idx],
			Payload: rulePayload(&rules[idx]),
		}
	}
	if err := i.store.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("upsert rule embeddings: %w", err)
	}
	logger.FromContext(ctx).Debug("Updated rule embeddings", "count", len(points))
	return len(points), nil
}
