package content

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("content: not found")

// Repository reads the authoritative corpus. Lookups of missing records return ErrNotFound.
type Repository interface {
	GetTask(ctx context.Context, id string) (*Task, error)
	GetTemplate(ctx context.Context, id string) (*Template, error)
	GetLevel(ctx context.Context, id string) (*Level, error)
	GetTopic(ctx context.Context, id string) (*Topic, error)
	GetRule(ctx context.Context, id string) (*Rule, error)
	// ListRulesByIDs returns the rules that exist, in the order of ids.
	ListRulesByIDs(ctx context.Context, ids []string) ([]Rule, error)
	// ListRules pages through every rule ordered by id, starting after afterID.
	ListRules(ctx context.Context, afterID string, limit int) ([]Rule, error)
	ListReadyTemplates(ctx context.Context, levelID string) ([]Template, error)
}

type FlagRepository interface {
	GetFlag(ctx context.Context, name string) (*FeatureFlag, error)
}

// TemplateRuleIDs follows task -> template and returns the template rule ids.
// Missing records yield an empty slice.
func TemplateRuleIDs(ctx context.Context, repo Repository, taskID string) ([]string, error) {
	task, err := repo.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	if task.TemplateID == "" {
		return []string{}, nil
	}
	tpl, err := repo.GetTemplate(ctx, task.TemplateID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	return append([]string{}, tpl.RuleIDs...), nil
}
