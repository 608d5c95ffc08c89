// Package template generates fresh task instances from the ready templates of a level.
package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Druk83/TrainingGround/engine/content"
	"github.com/Druk83/TrainingGround/pkg/logger"
)

var (
	ErrEmptyLevel   = errors.New("level_id must not be empty")
	ErrInvalidCount = errors.New("count must be at least 1")
	ErrNoTemplates  = errors.New("no ready templates found for the requested level")
	ErrAllSeen      = errors.New("unable to generate new instances (all templates were already shown)")
)

const (
	seenKeyPrefix     = "seen_tasks:"
	instanceKeyPrefix = "template:instances:"
)

func SeenKey(userID string) string         { return seenKeyPrefix + userID }
func InstanceKey(templateID string) string { return instanceKeyPrefix + templateID }

type GenerateRequest struct {
	LevelID string `json:"level_id"`
	Count   int    `json:"count"`
	UserID  string `json:"user_id,omitempty"`
}

type Instance struct {
	TaskID        string         `json:"task_id"`
	Text          string         `json:"text"`
	CorrectAnswer string         `json:"correct_answer"`
	Options       []string       `json:"options"`
	Metadata      map[string]any `json:"metadata"`
}

type GenerateResponse struct {
	Instances []Instance `json:"instances"`
}

type cachedInstance struct {
	Text          string   `json:"text"`
	CorrectAnswer string   `json:"correct_answer"`
	Options       []string `json:"options,omitempty"`
}

type TemplateLister interface {
	ListReadyTemplates(ctx context.Context, levelID string) ([]content.Template, error)
}

type Config struct {
	InstanceTTL time.Duration
	SeenTTL     time.Duration
	Limit       int
}

type Service struct {
	repo     TemplateLister
	redis    redis.Cmdable
	renderer Renderer
	cfg      Config
	shuffle  func(n int, swap func(i, j int))
}

// NewService builds the generator. A nil redis client disables the seen set and instance cache.
func NewService(repo TemplateLister, client redis.Cmdable, renderer Renderer, cfg Config) *Service {
	if renderer == nil {
		renderer = NewBankRenderer()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 20
	}
	return &Service{repo: repo, redis: client, renderer: renderer, cfg: cfg, shuffle: rand.Shuffle}
}

func (s *Service) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	levelID := strings.TrimSpace(req.LevelID)
	if levelID == "" {
		return nil, ErrEmptyLevel
	}
	count := req.Count
	if count == 0 {
		count = 1
	}
	if count < 0 {
		return nil, ErrInvalidCount
	}
	count = min(count, s.cfg.Limit)

	templates, err := s.repo.ListReadyTemplates(ctx, levelID)
	if err != nil {
		return nil, fmt.Errorf("list ready templates: %w", err)
	}
	if len(templates) == 0 {
		return nil, ErrNoTemplates
	}
	seen, err := s.loadSeen(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	candidates := append([]content.Template(nil), templates...)
	s.shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	instances := make([]Instance, 0, count)
	for i := range candidates {
		if len(instances) >= count {
			break
		}
		tpl := &candidates[i]
		if req.UserID != "" {
			if _, ok := seen[tpl.ID]; ok {
				continue
			}
		}
		inst, err := s.buildInstance(ctx, tpl, req.UserID)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
		seen[tpl.ID] = struct{}{}
	}
	if len(instances) == 0 {
		return nil, ErrAllSeen
	}
	return &GenerateResponse{Instances: instances}, nil
}

func (s *Service) buildInstance(ctx context.Context, tpl *content.Template, userID string) (Instance, error) {
	cached, ok := s.loadCached(ctx, tpl.ID)
	if !ok {
		cached = s.render(tpl)
		s.storeCached(ctx, tpl.ID, cached)
	}
	if err := s.remember(ctx, userID, tpl.ID); err != nil {
		return Instance{}, err
	}
	metadata := make(map[string]any, len(tpl.Metadata)+2)
	maps.Copy(metadata, tpl.Metadata)
	metadata["template_id"] = tpl.ID
	metadata["level_id"] = tpl.LevelID
	return Instance{
		TaskID:        uuid.NewString(),
		Text:          cached.Text,
		CorrectAnswer: cached.CorrectAnswer,
		Options:       cached.Options,
		Metadata:      metadata,
	}, nil
}

func (s *Service) render(tpl *content.Template) cachedInstance {
	rc := RenderContext{TemplateID: tpl.ID, LevelID: tpl.LevelID, Params: tpl.Params, Metadata: tpl.Metadata}
	text := s.renderer.Render(tpl.Content, rc)
	answer := text
	if raw, ok := tpl.Metadata["correct_answer"]; ok && raw != nil {
		answer = s.renderer.Render(fmt.Sprint(raw), rc)
	}
	return cachedInstance{Text: text, CorrectAnswer: answer, Options: stringOptions(tpl.Params["options"])}
}

func stringOptions(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		if strs, ok := raw.([]string); ok {
			return append([]string{}, strs...)
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprint(item))
	}
	return out
}

func (s *Service) loadSeen(ctx context.Context, userID string) (map[string]struct{}, error) {
	seen := map[string]struct{}{}
	if userID == "" || s.redis == nil {
		return seen, nil
	}
	members, err := s.redis.SMembers(ctx, SeenKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load seen templates: %w", err)
	}
	for _, m := range members {
		seen[m] = struct{}{}
	}
	return seen, nil
}

func (s *Service) remember(ctx context.Context, userID, templateID string) error {
	if userID == "" || s.redis == nil {
		return nil
	}
	key := SeenKey(userID)
	pipe := s.redis.TxPipeline()
	pipe.SAdd(ctx, key, templateID)
	pipe.Expire(ctx, key, s.cfg.SeenTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remember template %s: %w", templateID, err)
	}
	return nil
}

// loadCached treats read failures and unreadable payloads as a miss.
func (s *Service) loadCached(ctx context.Context, templateID string) (cachedInstance, bool) {
	if s.redis == nil {
		return cachedInstance{}, false
	}
	raw, err := s.redis.Get(ctx, InstanceKey(templateID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.FromContext(ctx).Warn("Template instance cache read failed", "template_id", templateID, "error", err)
		}
		return cachedInstance{}, false
	}
	var inst cachedInstance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return cachedInstance{}, false
	}
	return inst, true
}

func (s *Service) storeCached(ctx context.Context, templateID string, inst cachedInstance) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(inst)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, InstanceKey(templateID), data, s.cfg.InstanceTTL).Err(); err != nil {
		logger.FromContext(ctx).Warn("Template instance cache write failed", "template_id", templateID, "error", err)
	}
}
