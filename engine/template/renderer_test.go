package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func first(int) int { return 0 }

func TestBankRenderer(t *testing.T) {
	r := NewBankRenderer(
		WithWords(map[string][]string{"noun": {"книга", "слово"}, "verb": {"читать"}}),
		WithExamples([]string{"Пример."}),
		WithRandom(first),
	)

	t.Run("Should substitute words by part of speech", func(t *testing.T) {
		got := r.Render("{{word:verb}} {{ word:noun:sing,nomn }}", RenderContext{})
		assert.Equal(t, "читать книга", got)
	})

	t.Run("Should fall back to nouns for an unknown part of speech", func(t *testing.T) {
		assert.Equal(t, "книга", r.Render("{{word:adverb}}", RenderContext{}))
	})

	t.Run("Should substitute examples", func(t *testing.T) {
		assert.Equal(t, "Пример.", r.Render("{{example}}", RenderContext{}))
	})

	t.Run("Should swap reversed number bounds", func(t *testing.T) {
		assert.Equal(t, "3", r.Render("{{number:9:3}}", RenderContext{}))
		assert.Equal(t, "1", r.Render("{{number}}", RenderContext{}))
	})

	t.Run("Should pick options from params", func(t *testing.T) {
		rc := RenderContext{Params: map[string]any{"options": []any{"а", "о"}}}
		assert.Equal(t, "а", r.Render("{{option}}", rc))
		assert.Equal(t, "", r.Render("{{option}}", RenderContext{}))
		assert.Equal(t, "одна", r.Render("{{option}}", RenderContext{Params: map[string]any{"options": "одна"}}))
	})

	t.Run("Should leave unknown placeholders untouched", func(t *testing.T) {
		assert.Equal(t, "{{ mystery:x }} и {{name}}", r.Render("{{ mystery:x }} и {{name}}", RenderContext{}))
	})

	t.Run("Should keep numbers within bounds with the default source", func(t *testing.T) {
		def := NewBankRenderer()
		for range 50 {
			got := def.Render("{{number:5:6}}", RenderContext{})
			assert.Contains(t, []string{"5", "6"}, got)
		}
	})
}
