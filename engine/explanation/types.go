// Package explanation builds "why is this answer wrong?" responses. A request runs
// through cache lookup, context retrieval, a flag-gated generation attempt and a
// static fallback; completed responses are cached under the request fingerprint.
package explanation

import (
	"errors"
	"strings"
	"time"
)

type Source string

const (
	SourceCache     Source = "cache"
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

var ErrInvalidRequest = errors.New("explanation: invalid request")

type Request struct {
	TaskID        string   `json:"task_id"`
	TopicID       *string  `json:"topic_id,omitempty"`
	TaskType      *string  `json:"task_type,omitempty"`
	UserErrors    []string `json:"user_errors"`
	LanguageLevel *string  `json:"language_level,omitempty"`
	Language      string   `json:"language"`
	RequestID     *string  `json:"request_id,omitempty"`
}

// Normalize fills defaults and validates required fields.
func (r *Request) Normalize(defaultLanguage string) error {
	r.TaskID = strings.TrimSpace(r.TaskID)
	if r.TaskID == "" {
		return errors.Join(ErrInvalidRequest, errors.New("task_id is required"))
	}
	if r.UserErrors == nil {
		r.UserErrors = []string{}
	}
	if r.Language == "" {
		r.Language = defaultLanguage
	}
	return nil
}

type Response struct {
	Explanation string    `json:"explanation"`
	RuleRefs    []string  `json:"rule_refs"`
	Source      Source    `json:"source"`
	TookMS      int64     `json:"took_ms"`
	GeneratedAt time.Time `json:"generated_at"`
}
