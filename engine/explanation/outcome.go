package explanation

type OutcomeKind int

const (
	OutcomeCached OutcomeKind = iota
	OutcomeGenerated
	OutcomeFallback
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCached:
		return "cached"
	case OutcomeGenerated:
		return "generated"
	default:
		return "fallback"
	}
}

// Outcome is the orchestrator decision for a request.
type Outcome struct {
	Kind     OutcomeKind
	Text     string
	RuleRefs []string
	// Cacheable is false for outcomes that must not be written back.
	Cacheable bool
	cached    *Response
}

func Cached(resp *Response) Outcome {
	return Outcome{Kind: OutcomeCached, Text: resp.Explanation, RuleRefs: resp.RuleRefs, cached: resp}
}

func Generated(text string, refs []string) Outcome {
	return Outcome{Kind: OutcomeGenerated, Text: text, RuleRefs: refs, Cacheable: true}
}

func Fallback(text string, refs []string, cacheable bool) Outcome {
	return Outcome{Kind: OutcomeFallback, Text: text, RuleRefs: refs, Cacheable: cacheable}
}

func (o Outcome) Source() Source {
	switch o.Kind {
	case OutcomeCached:
		if o.cached != nil {
			return o.cached.Source
		}
		return SourceCache
	case OutcomeGenerated:
		return SourceGenerated
	default:
		return SourceFallback
	}
}
