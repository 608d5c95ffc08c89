// Package retrieval assembles generation prompts from the content store and the
// rule vector index.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Druk83/TrainingGround/engine/content"
	"github.com/Druk83/TrainingGround/engine/explanation"
	"github.com/Druk83/TrainingGround/engine/knowledge/vectordb"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

const (
	DefaultTopK = 5

	defaultTopic      = "неизвестная тема"
	noContext         = "Нет контекста."
	noDescription     = "нет описания"
	unknownLevel      = "не указан"
	unknownTaskType   = "неизвестен"
	noErrors          = "не зафиксированы"
	unknownTaskBody   = "неизвестно"
	promptInstruction = "Сформулируй объяснение, упоминая связанные правила и примеры.\n" +
		"Возвращай ответ на русском языке, максимум 3 абзаца."
)

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]vectordb.Match, error)
}

type Retriever struct {
	repo       content.Repository
	embedder   QueryEmbedder
	index      Searcher
	normalizer Normalizer
	topK       int
}

func NewRetriever(
	repo content.Repository,
	embedder QueryEmbedder,
	index Searcher,
	normalizer Normalizer,
	topK int,
) *Retriever {
	if normalizer == nil {
		normalizer = NewTextNormalizer()
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{repo: repo, embedder: embedder, index: index, normalizer: normalizer, topK: topK}
}

// BuildPrompt composes the generation prompt for req and returns the rule ids it references.
// A missing task yields content.ErrNotFound.
func (r *Retriever) BuildPrompt(ctx context.Context, req *explanation.Request) (string, []string, error) {
	task, err := r.repo.GetTask(ctx, req.TaskID)
	if err != nil {
		return "", nil, fmt.Errorf("load task %q: %w", req.TaskID, err)
	}
	tpl, topic, err := r.resolveTopic(ctx, task)
	if err != nil {
		return "", nil, err
	}
	errs := r.normalizer.NormalizeErrors(ctx, req.UserErrors)
	query := task.Content.Body() + "\nОшибки: " + strings.Join(errs, "; ")
	chunks, refs := r.searchRules(ctx, query, tpl)

	contextLines := noContext
	if len(chunks) > 0 {
		contextLines = strings.Join(chunks, "\n")
	}
	errorLine := strings.Join(errs, ", ")
	if errorLine == "" {
		errorLine = noErrors
	}
	body := task.Content.Sentence
	if body == "" {
		body = unknownTaskBody
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Тема: %s\n", topic)
	fmt.Fprintf(&b, "Уровень ученика: %s\n", valueOr(req.LanguageLevel, unknownLevel))
	fmt.Fprintf(&b, "Тип задания: %s\n", valueOr(req.TaskType, unknownTaskType))
	fmt.Fprintf(&b, "Ошибки ученика: %s\n\n", errorLine)
	fmt.Fprintf(&b, "Контекст правил:\n%s\n\n", contextLines)
	fmt.Fprintf(&b, "Текст задания: %s\n", body)
	b.WriteString(promptInstruction)
	return b.String(), refs, nil
}

func (r *Retriever) resolveTopic(ctx context.Context, task *content.Task) (*content.Template, string, error) {
	if task.TemplateID == "" {
		return nil, defaultTopic, nil
	}
	tpl, err := r.repo.GetTemplate(ctx, task.TemplateID)
	if errors.Is(err, content.ErrNotFound) {
		return nil, defaultTopic, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("load template %q: %w", task.TemplateID, err)
	}
	level, err := r.repo.GetLevel(ctx, tpl.LevelID)
	if errors.Is(err, content.ErrNotFound) {
		return tpl, defaultTopic, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("load level %q: %w", tpl.LevelID, err)
	}
	topic, err := r.repo.GetTopic(ctx, level.TopicID)
	if errors.Is(err, content.ErrNotFound) {
		return tpl, defaultTopic, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("load topic %q: %w", level.TopicID, err)
	}
	if topic.Name == "" {
		return tpl, defaultTopic, nil
	}
	return tpl, topic.Name, nil
}

func (r *Retriever) searchRules(ctx context.Context, query string, tpl *content.Template) ([]string, []string) {
	log := logger.FromContext(ctx)
	matches, err := r.search(ctx, query)
	if err != nil {
		log.Warn("Rule search failed, using template rules", "error", err)
		return r.localContext(ctx, tpl), templateRefs(tpl)
	}
	chunks := make([]string, 0, len(matches))
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		ruleID := vectordb.PayloadString(m.Payload, "rule_id")
		if ruleID != "" {
			refs = append(refs, ruleID)
		}
		description := firstNonEmpty(
			vectordb.PayloadString(m.Payload, "description"),
			vectordb.PayloadString(m.Payload, "summary"),
		)
		if description == "" {
			continue
		}
		label := firstNonEmpty(
			vectordb.PayloadString(m.Payload, "name"),
			vectordb.PayloadString(m.Payload, "slug"),
			ruleID,
		)
		chunks = append(chunks, label+": "+description)
	}
	if len(chunks) == 0 {
		local := templateRefs(tpl)
		if len(local) == 0 {
			local = refs
		}
		return r.localContext(ctx, tpl), local
	}
	return chunks, refs
}

func (r *Retriever) search(ctx context.Context, query string) ([]vectordb.Match, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := r.index.Search(ctx, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search rules: %w", err)
	}
	return matches, nil
}

func (r *Retriever) localContext(ctx context.Context, tpl *content.Template) []string {
	if tpl == nil || len(tpl.RuleIDs) == 0 {
		return nil
	}
	rules, err := r.repo.ListRulesByIDs(ctx, tpl.RuleIDs)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to load template rules", "template_id", tpl.ID, "error", err)
		return nil
	}
	lines := make([]string, 0, len(rules))
	for i := range rules {
		lines = append(lines, firstNonEmpty(rules[i].Name, rules[i].ID)+": "+
			firstNonEmpty(rules[i].Description, noDescription))
	}
	return lines
}

func templateRefs(tpl *content.Template) []string {
	if tpl == nil {
		return []string{}
	}
	return append([]string{}, tpl.RuleIDs...)
}

func valueOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
