package explanation

import (
	"context"
	"time"

	"github.com/Druk83/TrainingGround/engine/content"
	"github.com/Druk83/TrainingGround/engine/llm"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

// LLMFlagName gates the generation path.
const LLMFlagName = "explanation_yandexgpt_enabled"

type ResponseCache interface {
	Get(ctx context.Context, req *Request) (*Response, bool, error)
	Set(ctx context.Context, req *Request, resp *Response) error
}

type FlagReader interface {
	IsEnabled(ctx context.Context, name string, def bool) bool
}

type Retriever interface {
	BuildPrompt(ctx context.Context, req *Request) (prompt string, ruleRefs []string, err error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type FallbackResolver interface {
	Resolve(ctx context.Context, taskID string) string
}

type Metrics interface {
	CacheHit(ctx context.Context)
	CacheMiss(ctx context.Context)
	GenerationError(ctx context.Context, reason string)
}

type Deps struct {
	Cache     ResponseCache
	Flags     FlagReader
	Retriever Retriever
	// Generator is nil when no provider credentials are configured.
	Generator Generator
	Fallback  FallbackResolver
	Content   content.Repository
	Metrics   Metrics
}

type Options struct {
	CacheEnabled      bool
	LLMEnabledDefault bool
	DefaultLanguage   string
}

// Service runs the explanation pipeline for one request at a time; it holds no per-request state.
type Service struct {
	deps Deps
	opts Options
	now  func() time.Time
}

func NewService(deps Deps, opts Options) *Service {
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "ru"
	}
	return &Service{deps: deps, opts: opts, now: time.Now}
}

// Explain returns a response for req. Only an invalid request yields an error;
// retrieval and generation failures degrade to the static fallback.
func (s *Service) Explain(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Normalize(s.opts.DefaultLanguage); err != nil {
		return nil, err
	}
	start := s.now()
	log := logger.FromContext(ctx).With("component", "explanation", "task_id", req.TaskID)
	outcome := s.Decide(ctx, req)
	if outcome.Kind == OutcomeCached {
		return outcome.cached, nil
	}
	resp := s.finalize(outcome, start)
	if outcome.Cacheable && s.opts.CacheEnabled {
		if err := s.deps.Cache.Set(ctx, req, resp); err != nil {
			log.Warn("Failed to cache explanation", "error", err)
		}
	}
	log.Info("Explanation ready", "source", resp.Source, "rule_refs", resp.RuleRefs, "took_ms", resp.TookMS)
	return resp, nil
}

// Decide walks the pipeline states and returns the outcome without finalizing it.
func (s *Service) Decide(ctx context.Context, req *Request) Outcome {
	log := logger.FromContext(ctx).With("component", "explanation", "task_id", req.TaskID)
	if s.opts.CacheEnabled {
		cached, ok, err := s.deps.Cache.Get(ctx, req)
		if err != nil {
			log.Warn("Explanation cache read failed", "error", err)
		}
		if ok {
			s.deps.Metrics.CacheHit(ctx)
			return Cached(cached)
		}
		s.deps.Metrics.CacheMiss(ctx)
	}
	prompt, refs, err := s.deps.Retriever.BuildPrompt(ctx, req)
	if err != nil {
		log.Warn("Prompt building failed, using fallback", "error", err)
		return Fallback(s.deps.Fallback.Resolve(ctx, req.TaskID), []string{}, false)
	}
	if !s.llmEnabled(ctx) {
		return s.staticFallback(ctx, req.TaskID, refs)
	}
	text, err := s.deps.Generator.Generate(ctx, prompt)
	if err != nil {
		reason := string(llm.ReasonOf(err))
		s.deps.Metrics.GenerationError(ctx, reason)
		log.Warn("Generation failed, using fallback", "reason", reason, "error", err)
		return s.staticFallback(ctx, req.TaskID, refs)
	}
	return Generated(text, refs)
}

func (s *Service) llmEnabled(ctx context.Context) bool {
	if s.deps.Generator == nil {
		return false
	}
	return s.deps.Flags.IsEnabled(ctx, LLMFlagName, s.opts.LLMEnabledDefault)
}

func (s *Service) staticFallback(ctx context.Context, taskID string, refs []string) Outcome {
	text := s.deps.Fallback.Resolve(ctx, taskID)
	if len(refs) == 0 {
		derived, err := content.TemplateRuleIDs(ctx, s.deps.Content, taskID)
		if err != nil {
			logger.FromContext(ctx).Warn("Failed to derive rule refs", "task_id", taskID, "error", err)
			derived = []string{}
		}
		refs = derived
	}
	return Fallback(text, refs, true)
}

func (s *Service) finalize(o Outcome, start time.Time) *Response {
	refs := o.RuleRefs
	if refs == nil {
		refs = []string{}
	}
	now := s.now()
	return &Response{
		Explanation: o.Text,
		RuleRefs:    refs,
		Source:      o.Source(),
		TookMS:      now.Sub(start).Milliseconds(),
		GeneratedAt: now.UTC(),
	}
}

type nopMetrics struct{}

func (nopMetrics) CacheHit(context.Context)                {}
func (nopMetrics) CacheMiss(context.Context)               {}
func (nopMetrics) GenerationError(context.Context, string) {}
