package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Druk83/TrainingGround/engine/content"
	"github.com/Druk83/TrainingGround/engine/content/contenttest"
)

func TestResolver_Resolve(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*contenttest.Memory)
		want  string
	}{
		{
			name:  "Should ask to reread the task when it is missing",
			setup: func(*contenttest.Memory) {},
			want:  MsgTaskMissing,
		},
		{
			name: "Should return the first hint",
			setup: func(m *contenttest.Memory) {
				m.Tasks["t1"] = content.Task{ID: "t1", TemplateID: "tpl", Hints: []content.Hint{{Text: "Подсказка."}, {Text: "Вторая."}}}
			},
			want: "Подсказка.",
		},
		{
			name: "Should replace an empty hint with the textbook message",
			setup: func(m *contenttest.Memory) {
				m.Tasks["t1"] = content.Task{ID: "t1", Hints: []content.Hint{{Text: ""}}}
			},
			want: MsgEmptyHint,
		},
		{
			name: "Should return the compare-with-sample message without a template",
			setup: func(m *contenttest.Memory) {
				m.Tasks["t1"] = content.Task{ID: "t1"}
			},
			want: MsgNoTemplate,
		},
		{
			name: "Should point to theory when the template is missing",
			setup: func(m *contenttest.Memory) {
				m.Tasks["t1"] = content.Task{ID: "t1", TemplateID: "tpl"}
			},
			want: MsgTemplateMissing,
		},
		{
			name: "Should ask to reread the question when the template has no rules",
			setup: func(m *contenttest.Memory) {
				m.Tasks["t1"] = content.Task{ID: "t1", TemplateID: "tpl"}
				m.Templates["tpl"] = content.Template{ID: "tpl"}
			},
			want: MsgNoRuleIDs,
		},
		{
			name: "Should use the generic rule message when rules are missing",
			setup: func(m *contenttest.Memory) {
				m.Tasks["t1"] = content.Task{ID: "t1", TemplateID: "tpl"}
				m.Templates["tpl"] = content.Template{ID: "tpl", RuleIDs: []string{"gone"}}
			},
			want: MsgRulesMissing,
		},
		{
			name: "Should list the template rules in order",
			setup: func(m *contenttest.Memory) {
				m.Tasks["t1"] = content.Task{ID: "t1", TemplateID: "tpl"}
				m.Templates["tpl"] = content.Template{ID: "tpl", RuleIDs: []string{"r2", "r1"}}
				m.Rules["r1"] = content.Rule{ID: "r1", Name: "Н и НН", Description: "Суффиксы прилагательных."}
				m.Rules["r2"] = content.Rule{ID: "r2", Name: "-тся/-ться"}
			},
			want: "Напоминание по правилу:\n• -тся/-ться: нет описания\n• Н и НН: Суффиксы прилагательных.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := contenttest.NewMemory()
			tc.setup(repo)
			assert.Equal(t, tc.want, NewResolver(repo).Resolve(t.Context(), "t1"))
		})
	}

	t.Run("Should degrade to the generic message on store errors", func(t *testing.T) {
		repo := contenttest.NewMemory()
		repo.Err = contenttest.ErrUnavailable
		assert.Equal(t, MsgTaskMissing, NewResolver(repo).Resolve(t.Context(), "t1"))
	})
}
