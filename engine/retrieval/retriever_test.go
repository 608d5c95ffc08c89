package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Druk83/TrainingGround/engine/content"
	"github.com/Druk83/TrainingGround/engine/content/contenttest"
	"github.com/Druk83/TrainingGround/engine/explanation"
	"github.com/Druk83/TrainingGround/engine/knowledge/vectordb"
)

type stubEmbedder struct {
	err     error
	queries []string
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	s.queries = append(s.queries, text)
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0}, nil
}

type stubSearcher struct {
	matches []vectordb.Match
	err     error
	limit   int
}

func (s *stubSearcher) Search(_ context.Context, _ []float32, limit int) ([]vectordb.Match, error) {
	s.limit = limit
	return s.matches, s.err
}

func seedCorpus() *contenttest.Memory {
	repo := contenttest.NewMemory()
	repo.Topics["topic-1"] = content.Topic{ID: "topic-1", Name: "Пунктуация"}
	repo.Levels["level-1"] = content.Level{ID: "level-1", TopicID: "topic-1"}
	repo.Templates["tpl-1"] = content.Template{ID: "tpl-1", LevelID: "level-1", RuleIDs: []string{"r2", "r1"}}
	repo.Tasks["task-1"] = content.Task{
		ID:         "task-1",
		TemplateID: "tpl-1",
		Content:    content.TaskContent{Sentence: "Я пришёл домой и лёг спать."},
	}
	repo.Rules["r1"] = content.Rule{ID: "r1", Name: "Запятая", Description: "Ставится перед союзом."}
	repo.Rules["r2"] = content.Rule{ID: "r2"}
	return repo
}

func strPtr(v string) *string { return &v }

func TestRetriever_BuildPrompt(t *testing.T) {
	ctx := context.Background()

	t.Run("Should build prompt from index hits", func(t *testing.T) {
		repo := seedCorpus()
		emb := &stubEmbedder{}
		index := &stubSearcher{matches: []vectordb.Match{
			{Payload: map[string]any{"rule_id": "r1", "name": "Запятая", "description": "Ставится перед союзом."}},
			{Payload: map[string]any{"rule_id": "r3", "slug": "tire", "summary": "Тире между подлежащим и сказуемым."}},
			{Payload: map[string]any{"rule_id": "r4"}},
		}}
		r := NewRetriever(repo, emb, index, nil, 0)
		req := &explanation.Request{
			TaskID:        "task-1",
			UserErrors:    []string{"  Пропущена   ЗАПЯТАЯ ", ""},
			LanguageLevel: strPtr("B1"),
			TaskType:      strPtr("punctuation"),
		}
		prompt, refs, err := r.BuildPrompt(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, []string{"r1", "r3", "r4"}, refs)
		assert.Equal(t, DefaultTopK, index.limit)
		assert.Equal(t, []string{"Я пришёл домой и лёг спать.\nОшибки: пропущена запятая"}, emb.queries)
		expected := "Тема: Пунктуация\n" +
			"Уровень ученика: B1\n" +
			"Тип задания: punctuation\n" +
			"Ошибки ученика: пропущена запятая\n\n" +
			"Контекст правил:\n" +
			"Запятая: Ставится перед союзом.\n" +
			"tire: Тире между подлежащим и сказуемым.\n\n" +
			"Текст задания: Я пришёл домой и лёг спать.\n" +
			"Сформулируй объяснение, упоминая связанные правила и примеры.\n" +
			"Возвращай ответ на русском языке, максимум 3 абзаца."
		assert.Equal(t, expected, prompt)
	})

	t.Run("Should be deterministic for identical inputs", func(t *testing.T) {
		repo := seedCorpus()
		index := &stubSearcher{matches: []vectordb.Match{
			{Payload: map[string]any{"rule_id": "r1", "name": "Запятая", "description": "Ставится перед союзом."}},
		}}
		r := NewRetriever(repo, &stubEmbedder{}, index, nil, 5)
		req := &explanation.Request{TaskID: "task-1", UserErrors: []string{"ошибка"}}
		first, _, err := r.BuildPrompt(ctx, req)
		require.NoError(t, err)
		second, _, err := r.BuildPrompt(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("Should fall back to template rules when search fails", func(t *testing.T) {
		repo := seedCorpus()
		index := &stubSearcher{err: errors.New("qdrant down")}
		r := NewRetriever(repo, &stubEmbedder{}, index, nil, 5)
		prompt, refs, err := r.BuildPrompt(ctx, &explanation.Request{TaskID: "task-1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"r2", "r1"}, refs)
		assert.Contains(t, prompt, "Контекст правил:\nr2: нет описания\nЗапятая: Ставится перед союзом.\n\n")
		assert.Contains(t, prompt, "Уровень ученика: не указан\n")
		assert.Contains(t, prompt, "Тип задания: неизвестен\n")
		assert.Contains(t, prompt, "Ошибки ученика: не зафиксированы\n")
	})

	t.Run("Should fall back to template rules when embedding fails", func(t *testing.T) {
		repo := seedCorpus()
		index := &stubSearcher{}
		r := NewRetriever(repo, &stubEmbedder{err: errors.New("quota")}, index, nil, 5)
		_, refs, err := r.BuildPrompt(ctx, &explanation.Request{TaskID: "task-1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"r2", "r1"}, refs)
		assert.Zero(t, index.limit)
	})

	t.Run("Should keep hit refs when hits lack text and template has no rules", func(t *testing.T) {
		repo := seedCorpus()
		tpl := repo.Templates["tpl-1"]
		tpl.RuleIDs = nil
		repo.Templates["tpl-1"] = tpl
		index := &stubSearcher{matches: []vectordb.Match{{Payload: map[string]any{"rule_id": "r7"}}}}
		r := NewRetriever(repo, &stubEmbedder{}, index, nil, 5)
		prompt, refs, err := r.BuildPrompt(ctx, &explanation.Request{TaskID: "task-1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"r7"}, refs)
		assert.Contains(t, prompt, "Контекст правил:\nНет контекста.\n\n")
	})

	t.Run("Should use defaults for tasks without template or sentence", func(t *testing.T) {
		repo := contenttest.NewMemory()
		repo.Tasks["task-2"] = content.Task{ID: "task-2", Content: content.TaskContent{Text: "Просто текст"}}
		emb := &stubEmbedder{}
		r := NewRetriever(repo, emb, &stubSearcher{}, nil, 5)
		prompt, refs, err := r.BuildPrompt(ctx, &explanation.Request{TaskID: "task-2"})
		require.NoError(t, err)
		assert.Equal(t, []string{}, refs)
		assert.Contains(t, prompt, "Тема: неизвестная тема\n")
		assert.Contains(t, prompt, "Текст задания: неизвестно\n")
		assert.Equal(t, []string{"Просто текст\nОшибки: "}, emb.queries)
	})

	t.Run("Should report missing task as not found", func(t *testing.T) {
		r := NewRetriever(contenttest.NewMemory(), &stubEmbedder{}, &stubSearcher{}, nil, 5)
		_, _, err := r.BuildPrompt(ctx, &explanation.Request{TaskID: "nope"})
		require.Error(t, err)
		assert.ErrorIs(t, err, content.ErrNotFound)
	})

	t.Run("Should propagate store failures", func(t *testing.T) {
		repo := seedCorpus()
		repo.Err = errors.New("connection refused")
		r := NewRetriever(repo, &stubEmbedder{}, &stubSearcher{}, nil, 5)
		_, _, err := r.BuildPrompt(ctx, &explanation.Request{TaskID: "task-1"})
		require.Error(t, err)
	})
}

func TestTextNormalizer(t *testing.T) {
	t.Run("Should lower-case, fold spaces and drop empty entries", func(t *testing.T) {
		n := NewTextNormalizer()
		out := n.NormalizeErrors(context.Background(), []string{"", "  ", "ЁЖИК  Бежит", "Не ТАК"})
		assert.Equal(t, []string{"ёжик бежит", "не так"}, out)
	})
}
