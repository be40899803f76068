package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill-ai-api/internal/config"
)

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry(&config.LLMConfig{
		DefaultModel: "claude-opus-4-6",
		Providers: map[string]config.ProviderConfig{
			ProviderAnthropic: {APIKey: "test-key"},
			ProviderOpenAI:    {APIKey: "test-key"},
		},
	})

	t.Run("claude prefix routes to anthropic", func(t *testing.T) {
		p, model, err := registry.Resolve("claude-sonnet-4-5")
		require.NoError(t, err)
		assert.Equal(t, ProviderAnthropic, p.Name())
		assert.Equal(t, "claude-sonnet-4-5", model)
	})

	t.Run("other models route to openai", func(t *testing.T) {
		p, model, err := registry.Resolve("gpt-5.2")
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, p.Name())
		assert.Equal(t, "gpt-5.2", model)
	})

	t.Run("empty model uses the configured default", func(t *testing.T) {
		p, model, err := registry.Resolve("")
		require.NoError(t, err)
		assert.Equal(t, ProviderAnthropic, p.Name())
		assert.Equal(t, "claude-opus-4-6", model)
	})

	t.Run("providers are cached across resolves", func(t *testing.T) {
		p1, _, err := registry.Resolve("claude-opus-4-6")
		require.NoError(t, err)
		p2, _, err := registry.Resolve("claude-haiku-4-5")
		require.NoError(t, err)
		assert.Same(t, p1, p2)
	})
}
