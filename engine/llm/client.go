package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/Druk83/TrainingGround/pkg/config"
)

const alternativeTextPath = "result.alternatives.0.message.text"

type Config struct {
	APIKey       string
	FolderID     string
	Model        string
	URL          string
	Timeout      time.Duration
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

func FromAppConfig(cfg *config.LLMConfig) Config {
	return Config{
		APIKey:       cfg.APIKey,
		FolderID:     cfg.FolderID,
		Model:        cfg.Model,
		URL:          cfg.APIURL,
		Timeout:      cfg.Timeout,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		SystemPrompt: cfg.SystemPrompt,
	}
}

type message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

type completionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions completionOptions `json:"completionOptions"`
	Messages          []message         `json:"messages"`
}

// Client calls the YandexGPT completion endpoint.
type Client struct {
	http *resty.Client
	cfg  Config
}

func NewClient(cfg Config) *Client {
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &Client{http: httpClient, cfg: cfg}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.FolderID != ""
}

// Generate returns the first completion alternative for prompt.
// Every failure is a *GenerationError.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", &GenerationError{Reason: ReasonUnconfigured, Err: errors.New("api key or folder id is not set")}
	}
	body := completionRequest{
		ModelURI: fmt.Sprintf("gpt://%s/%s", c.cfg.FolderID, c.cfg.Model),
		CompletionOptions: completionOptions{
			Stream:      false,
			Temperature: c.cfg.Temperature,
			MaxTokens:   c.cfg.MaxTokens,
		},
		Messages: []message{
			{Role: "system", Text: c.cfg.SystemPrompt},
			{Role: "user", Text: prompt},
		},
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Api-Key "+c.cfg.APIKey).
		SetBody(body).
		Post(c.cfg.URL)
	if err != nil {
		return "", classifyTransportError(err)
	}
	if resp.IsError() {
		return "", &GenerationError{
			Reason:     ReasonHTTPStatus,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("completion endpoint returned %s", resp.Status()),
		}
	}
	payload := resp.Body()
	if !gjson.ValidBytes(payload) {
		return "", &GenerationError{Reason: ReasonMalformedResponse, Err: errors.New("response is not valid JSON")}
	}
	if !gjson.GetBytes(payload, "result.alternatives.0").Exists() {
		return "", &GenerationError{Reason: ReasonMalformedResponse, Err: errors.New("response has no alternatives")}
	}
	text := strings.TrimSpace(gjson.GetBytes(payload, alternativeTextPath).String())
	if text == "" {
		return "", &GenerationError{Reason: ReasonMalformedResponse, Err: errors.New("alternative has no text")}
	}
	return text, nil
}

func classifyTransportError(err error) *GenerationError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &GenerationError{Reason: ReasonTimeout, Err: err}
	}
	return &GenerationError{Reason: ReasonTransport, Err: err}
}
