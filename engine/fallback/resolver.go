package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Druk83/TrainingGround/engine/content"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

const (
	MsgTaskMissing      = "Попробуйте перечитать условие и вспомнить правило из последнего упражнения."
	MsgEmptyHint        = "Повторите правило в учебнике."
	MsgNoTemplate       = "Сравните свой ответ с образцом и найдите расхождения."
	MsgTemplateMissing  = "Сверьтесь с теорией по теме задания."
	MsgNoRuleIDs        = "Внимательно перечитайте формулировку вопроса."
	MsgRulesMissing     = "Следуйте основному правилу, изученному ранее."
	ruleReminderHeading = "Напоминание по правилу:"
	noDescription       = "нет описания"
)

// Resolver builds a deterministic explanation from task hints and template rules.
type Resolver struct {
	repo content.Repository
}

func NewResolver(repo content.Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve never fails: missing records and store errors map to generic messages.
func (r *Resolver) Resolve(ctx context.Context, taskID string) string {
	text, err := r.resolve(ctx, taskID)
	if err != nil {
		logger.FromContext(ctx).Warn("Fallback lookup failed", "task_id", taskID, "error", err)
		return MsgTaskMissing
	}
	return text
}

func (r *Resolver) resolve(ctx context.Context, taskID string) (string, error) {
	task, err := r.repo.GetTask(ctx, taskID)
	if errors.Is(err, content.ErrNotFound) {
		return MsgTaskMissing, nil
	}
	if err != nil {
		return "", err
	}
	if len(task.Hints) > 0 {
		if hint := strings.TrimSpace(task.Hints[0].Text); hint != "" {
			return hint, nil
		}
		return MsgEmptyHint, nil
	}
	if task.TemplateID == "" {
		return MsgNoTemplate, nil
	}
	tpl, err := r.repo.GetTemplate(ctx, task.TemplateID)
	if errors.Is(err, content.ErrNotFound) {
		return MsgTemplateMissing, nil
	}
	if err != nil {
		return "", err
	}
	if len(tpl.RuleIDs) == 0 {
		return MsgNoRuleIDs, nil
	}
	rules, err := r.repo.ListRulesByIDs(ctx, tpl.RuleIDs)
	if err != nil {
		return "", err
	}
	if len(rules) == 0 {
		return MsgRulesMissing, nil
	}
	return FormatRuleReminder(rules), nil
}

// FormatRuleReminder renders a bullet list of rule names and descriptions.
func FormatRuleReminder(rules []content.Rule) string {
	var b strings.Builder
	b.WriteString(ruleReminderHeading)
	for _, rule := range rules {
		description := rule.Description
		if description == "" {
			description = noDescription
		}
		name := rule.Name
		if name == "" {
			name = rule.ID
		}
		fmt.Fprintf(&b, "\n• %s: %s", name, description)
	}
	return b.String()
}
