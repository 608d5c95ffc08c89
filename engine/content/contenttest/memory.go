// Package contenttest provides an in-memory content.Repository for tests.
package contenttest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Druk83/TrainingGround/engine/content"
)

type Memory struct {
	mu        sync.RWMutex
	Tasks     map[string]content.Task
	Templates map[string]content.Template
	Levels    map[string]content.Level
	Topics    map[string]content.Topic
	Rules     map[string]content.Rule
	Flags     map[string]content.FeatureFlag
	// Err, when set, is returned by every lookup.
	Err error
	// Calls counts lookups per method name.
	Calls map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		Tasks:     map[string]content.Task{},
		Templates: map[string]content.Template{},
		Levels:    map[string]content.Level{},
		Topics:    map[string]content.Topic{},
		Rules:     map[string]content.Rule{},
		Flags:     map[string]content.FeatureFlag{},
		Calls:     map[string]int{},
	}
}

func (m *Memory) track(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[name]++
	return m.Err
}

// CallCount returns how many times a method was invoked.
func (m *Memory) CallCount(name string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Calls[name]
}

func (m *Memory) PutRule(r content.Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rules[r.ID] = r
}

func (m *Memory) DeleteRule(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Rules, id)
}

func lookup[T any](m *Memory, items map[string]T, id string) (*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := items[id]
	if !ok {
		return nil, content.ErrNotFound
	}
	return &v, nil
}

func (m *Memory) GetTask(_ context.Context, id string) (*content.Task, error) {
	if err := m.track("GetTask"); err != nil {
		return nil, err
	}
	return lookup(m, m.Tasks, id)
}

func (m *Memory) GetTemplate(_ context.Context, id string) (*content.Template, error) {
	if err := m.track("GetTemplate"); err != nil {
		return nil, err
	}
	return lookup(m, m.Templates, id)
}

func (m *Memory) GetLevel(_ context.Context, id string) (*content.Level, error) {
	if err := m.track("GetLevel"); err != nil {
		return nil, err
	}
	return lookup(m, m.Levels, id)
}

func (m *Memory) GetTopic(_ context.Context, id string) (*content.Topic, error) {
	if err := m.track("GetTopic"); err != nil {
		return nil, err
	}
	return lookup(m, m.Topics, id)
}

func (m *Memory) GetRule(_ context.Context, id string) (*content.Rule, error) {
	if err := m.track("GetRule"); err != nil {
		return nil, err
	}
	return lookup(m, m.Rules, id)
}

func (m *Memory) ListRulesByIDs(_ context.Context, ids []string) ([]content.Rule, error) {
	if err := m.track("ListRulesByIDs"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]content.Rule, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.Rules[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) ListRules(_ context.Context, afterID string, limit int) ([]content.Rule, error) {
	if err := m.track("ListRules"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.Rules))
	for id := range m.Rules {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]content.Rule, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.Rules[id])
	}
	return out, nil
}

func (m *Memory) ListReadyTemplates(_ context.Context, levelID string) ([]content.Template, error) {
	if err := m.track("ListReadyTemplates"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []content.Template
	for _, tpl := range m.Templates {
		if tpl.LevelID == levelID && tpl.Ready() {
			out = append(out, tpl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetFlag(_ context.Context, name string) (*content.FeatureFlag, error) {
	if err := m.track("GetFlag"); err != nil {
		return nil, err
	}
	return lookup(m, m.Flags, name)
}

var _ content.Repository = (*Memory)(nil)
var _ content.FlagRepository = (*Memory)(nil)

// ErrUnavailable simulates a store outage.
var ErrUnavailable = errors.New("store unavailable")
