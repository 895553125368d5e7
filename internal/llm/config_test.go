package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierAdvanced))
	assert.Equal(t, 2000, config.MaxTokens)
}

func TestConfigFor(t *testing.T) {
	assert.Equal(t, ProviderOpenAI, ConfigFor(ProviderOpenAI).Provider)
	assert.Equal(t, "gpt-4o-mini", ConfigFor(ProviderOpenAI).GetModel(TierStandard))
	assert.Equal(t, ProviderGemini, ConfigFor("").Provider)
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p)

	p, err = ParseProvider("openai")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p)

	_, err = ParseProvider("anthropic")
	assert.Error(t, err)
}

func TestGetModel_Fallback(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite: "fallback-model",
		},
	}

	// Unknown tier should fallback to TierStandard, then TierLite
	assert.Equal(t, "fallback-model", config.GetModel("unknown"))
}

func TestGetModel_EmptyConfig(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models:   map[ModelTier]string{},
	}

	assert.Equal(t, "", config.GetModel(TierAdvanced))
}

func TestWithModel(t *testing.T) {
	config := DefaultOpenAIConfig()
	newConfig := config.WithModel(TierAdvanced, "custom-model")

	// Original should be unchanged
	assert.Equal(t, "gpt-4o", config.GetModel(TierAdvanced))
	assert.Equal(t, "custom-model", newConfig.GetModel(TierAdvanced))

	// Other settings should be copied
	assert.Equal(t, config.GetModel(TierLite), newConfig.GetModel(TierLite))
	assert.Equal(t, config.Temperature, newConfig.Temperature)
	assert.Equal(t, ProviderOpenAI, newConfig.Provider)
}
