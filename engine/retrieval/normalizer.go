package retrieval

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalizer reduces learner error strings to a canonical form before they are
// used in retrieval queries and prompts.
type Normalizer interface {
	NormalizeErrors(ctx context.Context, errs []string) []string
}

// TextNormalizer applies NFC composition, Russian lower-casing and whitespace
// folding. Empty entries are dropped.
type TextNormalizer struct {
	lower cases.Caser
}

func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{lower: cases.Lower(language.Russian)}
}

func (n *TextNormalizer) NormalizeErrors(_ context.Context, errs []string) []string {
	out := make([]string, 0, len(errs))
	for _, raw := range errs {
		if raw == "" {
			continue
		}
		text := norm.NFC.String(raw)
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			continue
		}
		out = append(out, n.lower.String(text))
	}
	return out
}
