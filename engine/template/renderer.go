package template

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_]+)(?::([^}]+))?\s*\}\}`)

const (
	defaultNumberMin = 1
	defaultNumberMax = 20
)

var defaultWords = map[string][]string{
	"noun":      {"учитель", "ученик", "книга", "слово", "пример", "урок", "комната"},
	"verb":      {"писать", "читать", "говорить", "думать", "решать"},
	"adjective": {"тёплый", "быстрый", "важный", "интересный", "новый"},
}

var defaultExamples = []string{
	"Петя прочитал новую книгу и заметил ошибку.",
	"Учитель объяснил правило и попросил повторить.",
	"На уроке мы разбираем сложные примеры.",
	"Проверяющие отметили правильные ответы.",
}

// RenderContext carries the template being rendered.
type RenderContext struct {
	TemplateID string
	LevelID    string
	Params     map[string]any
	Metadata   map[string]any
}

// Renderer expands placeholders in template text.
type Renderer interface {
	Render(text string, rc RenderContext) string
}

// BankRenderer substitutes {{word:pos}}, {{example}}, {{number:min:max}} and
// {{option}} from word and example banks. Grammatical arguments after the part
// of speech are accepted but words are emitted in their dictionary form.
// Unknown placeholders are left untouched.
type BankRenderer struct {
	words    map[string][]string
	examples []string
	intn     func(n int) int
}

type RendererOption func(*BankRenderer)

func WithWords(words map[string][]string) RendererOption {
	return func(r *BankRenderer) {
		if len(words) > 0 {
			r.words = words
		}
	}
}

func WithExamples(examples []string) RendererOption {
	return func(r *BankRenderer) {
		if len(examples) > 0 {
			r.examples = examples
		}
	}
}

// WithRandom replaces the random source; intn must return a value in [0, n).
func WithRandom(intn func(n int) int) RendererOption {
	return func(r *BankRenderer) {
		if intn != nil {
			r.intn = intn
		}
	}
}

func NewBankRenderer(opts ...RendererOption) *BankRenderer {
	r := &BankRenderer{words: defaultWords, examples: defaultExamples, intn: rand.IntN}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *BankRenderer) Render(text string, rc RenderContext) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		groups := placeholderRe.FindStringSubmatch(match)
		token := strings.ToLower(groups[1])
		var args []string
		for _, part := range strings.Split(groups[2], ":") {
			if part = strings.TrimSpace(part); part != "" {
				args = append(args, part)
			}
		}
		switch token {
		case "word":
			return r.word(args)
		case "example":
			return r.example()
		case "number":
			return r.number(args)
		case "option":
			return r.option(rc)
		default:
			return match
		}
	})
}

func (r *BankRenderer) word(args []string) string {
	pos := "noun"
	if len(args) > 0 {
		pos = strings.ToLower(args[0])
	}
	bucket := r.words[pos]
	if len(bucket) == 0 {
		bucket = r.words["noun"]
	}
	if len(bucket) == 0 {
		return "слово"
	}
	return bucket[r.intn(len(bucket))]
}

func (r *BankRenderer) example() string {
	if len(r.examples) == 0 {
		return "Пример недоступен."
	}
	return r.examples[r.intn(len(r.examples))]
}

func (r *BankRenderer) number(args []string) string {
	lo, hi := defaultNumberMin, defaultNumberMax
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			lo = v
		}
	}
	if len(args) > 1 {
		if v, err := strconv.Atoi(args[1]); err == nil {
			hi = v
		}
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return strconv.Itoa(lo + r.intn(hi-lo+1))
}

func (r *BankRenderer) option(rc RenderContext) string {
	raw, ok := rc.Params["options"]
	if !ok || raw == nil {
		return ""
	}
	options, ok := raw.([]any)
	if !ok {
		return fmt.Sprint(raw)
	}
	if len(options) == 0 {
		return ""
	}
	return fmt.Sprint(options[r.intn(len(options))])
}
