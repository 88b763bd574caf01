package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "main", cfg.Git.DefaultBranch)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Analysis.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Analysis.BaseBackoff)
	assert.Equal(t, 32*time.Second, cfg.Analysis.MaxBackoff)
	assert.True(t, cfg.Analysis.SingleFlight)
	assert.Equal(t, 2000, cfg.Snapshot.MaxFileChars)
	assert.Equal(t, 8000, cfg.Snapshot.MaxContextTokens)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ANALYSIS_MAX_ATTEMPTS", "5")
	t.Setenv("ANALYSIS_BASE_BACKOFF", "500ms")
	t.Setenv("ANALYSIS_SINGLE_FLIGHT", "false")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Analysis.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Analysis.BaseBackoff)
	assert.False(t, cfg.Analysis.SingleFlight)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLLMConfig_KeyFor(t *testing.T) {
	cfg := LLMConfig{
		APIKey: "sk-shared",
		TypeKeys: map[string]string{
			"security": "sk-security",
		},
	}

	t.Run("種別キーが設定されている場合はそれを返す", func(t *testing.T) {
		assert.Equal(t, "sk-security", cfg.KeyFor("security"))
	})

	t.Run("種別キーが未設定の場合は共通キーを返す", func(t *testing.T) {
		assert.Equal(t, "sk-shared", cfg.KeyFor("mind_map"))
	})
}

func TestLoad_TypeKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-shared")
	t.Setenv("LLM_API_KEY_SECURITY", "sk-security")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-security", cfg.LLM.KeyFor("security"))
	assert.Equal(t, "sk-shared", cfg.LLM.KeyFor("code_quality"))
}
