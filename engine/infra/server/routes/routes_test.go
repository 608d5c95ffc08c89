package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBase(t *testing.T) {
	t.Run("Should return versioned API base path", func(t *testing.T) {
		assert.Equal(t, "/v1", Base())
	})
}

func TestExplanations(t *testing.T) {
	t.Run("Should return explanations base path", func(t *testing.T) {
		assert.Equal(t, "/v1/explanations", Explanations())
	})
}

func TestOperationalPaths(t *testing.T) {
	t.Run("Should expose health, metrics and internal paths", func(t *testing.T) {
		assert.Equal(t, "/health", Health())
		assert.Equal(t, "/metrics", Metrics())
		assert.Equal(t, "/internal", Internal())
	})
}
