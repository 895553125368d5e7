package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/allstarteams/sectional-reports/internal/config"
	"github.com/allstarteams/sectional-reports/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFlags_Defaults(t *testing.T) {
	t.Setenv("REPORTS_BASE_URL", "")
	t.Setenv("REPORTS_TOKEN", "env-token")

	f := clientFlags{cfg: config.ClientConfig{UserID: 42}}
	cfg, err := f.resolve()
	require.NoError(t, err)
	assert.Equal(t, config.ClientConfig{
		BaseURL: "http://localhost:8080", Token: "env-token", UserID: 42, ReportType: "ast_personal", Format: "html",
	}, cfg)
}

func TestClientFlags_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"base_url":"https://file.example","user_id":7,"report_type":"ast_professional"}`), 0o600))

	f := clientFlags{configPath: path, cfg: config.ClientConfig{UserID: 9}}
	cfg, err := f.resolve()
	require.NoError(t, err)
	assert.Equal(t, "https://file.example", cfg.BaseURL)
	assert.Equal(t, int64(9), cfg.UserID)
	assert.Equal(t, "ast_professional", cfg.ReportType)
}

func TestClientFlags_Invalid(t *testing.T) {
	_, err := (&clientFlags{}).resolve()
	assert.Error(t, err, "user id required")

	_, err = (&clientFlags{cfg: config.ClientConfig{UserID: 1, ReportType: "ast_other"}}).resolve()
	assert.Error(t, err)

	_, err = (&clientFlags{configPath: filepath.Join(t.TempDir(), "missing.json")}).resolve()
	assert.Error(t, err)
}

func TestLLMConfig(t *testing.T) {
	cfg := &config.Config{LLMProvider: "openai", OpenAIAPIKey: "sk", OpenAIModel: "gpt-4.1", OpenAIBaseURL: "http://gateway"}
	c, key, err := llmConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderOpenAI, c.Provider)
	assert.Equal(t, "gpt-4.1", c.GetModel(llm.TierStandard))
	assert.Equal(t, "http://gateway", c.BaseURL)
	assert.Equal(t, "sk", key)

	c, key, err = llmConfig(&config.Config{LLMProvider: "gemini", GeminiAPIKey: "g"})
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderGemini, c.Provider)
	assert.Equal(t, "g", key)

	_, _, err = llmConfig(&config.Config{LLMProvider: "claude"})
	assert.Error(t, err)
}
