// Package content describes the learning corpus the explanation service reads:
// tasks, templates, levels, topics, grammar rules and feature flags.
package content

const (
	RuleStatusDeprecated    = "deprecated"
	TemplateStatusReady     = "ready"
	TemplateStatusPublished = "published"
)

// ReadyTemplateStatuses lists the template statuses eligible for instance generation.
var ReadyTemplateStatuses = []string{TemplateStatusReady, TemplateStatusPublished}

// Ready reports whether the template can be used to generate instances.
func (t *Template) Ready() bool {
	return t.Status == TemplateStatusReady || t.Status == TemplateStatusPublished
}

type Hint struct {
	Text string `json:"text"`
}

type TaskContent struct {
	Sentence string `json:"sentence,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Body returns the sentence, or the plain text when no sentence is set.
func (c TaskContent) Body() string {
	if c.Sentence != "" {
		return c.Sentence
	}
	return c.Text
}

type Task struct {
	ID         string
	TemplateID string
	Content    TaskContent
	Hints      []Hint
}

type Template struct {
	ID         string
	LevelID    string
	Status     string
	Content    string
	Difficulty string
	RuleIDs    []string
	Params     map[string]any
	Metadata   map[string]any
}

type Level struct {
	ID      string
	TopicID string
	Name    string
}

type Topic struct {
	ID   string
	Name string
}

type Rule struct {
	ID          string
	Name        string
	Description string
	Slug        string
	Status      string
	Difficulty  string
}

// Deprecated reports whether the rule must be excluded from the vector index.
func (r *Rule) Deprecated() bool {
	return r.Status == RuleStatusDeprecated
}

type FeatureFlag struct {
	Name    string
	Enabled bool
	Config  map[string]any
}
