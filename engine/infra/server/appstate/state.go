package appstate

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Druk83/TrainingGround/engine/explanation"
	"github.com/Druk83/TrainingGround/engine/template"
	"github.com/Druk83/TrainingGround/pkg/config"
)

type contextKey string

const (
	stateKey contextKey = "app_state"
	// GinKey stores the state on the gin context.
	GinKey = "app_state"
)

// State carries the services HTTP handlers depend on.
type State struct {
	Config       *config.Config
	Explanations *explanation.Service
	Templates    *template.Service
}

func NewState(cfg *config.Config, explanations *explanation.Service, templates *template.Service) (*State, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if explanations == nil {
		return nil, fmt.Errorf("explanation service is required")
	}
	return &State{Config: cfg, Explanations: explanations, Templates: templates}, nil
}

func WithState(ctx context.Context, state *State) context.Context {
	return context.WithValue(ctx, stateKey, state)
}

func GetState(ctx context.Context) (*State, error) {
	state, ok := ctx.Value(stateKey).(*State)
	if !ok {
		return nil, fmt.Errorf("app state not found in context")
	}
	return state, nil
}

// StateMiddleware exposes the state to handlers through the gin and request contexts.
func StateMiddleware(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(GinKey, state)
		c.Request = c.Request.WithContext(WithState(c.Request.Context(), state))
		c.Next()
	}
}
