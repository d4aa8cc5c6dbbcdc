package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GROQ_API_KEY", "OPENAI_API_KEY", "DEEPSEEK_API_KEY", "ANTHROPIC_API_KEY",
		"GOOGLE_API_KEY", "GOOGLE_CX", "OLLAMA_HOST",
		"TAIAGENT_PROVIDER", "TAIAGENT_MODEL", "TAIAGENT_TEMPERATURE", "TAIAGENT_RETRY_ATTEMPTS",
		"TAIAGENT_KEYS_GROQ", "TAIAGENT_CONFIG", "TAIAGENT_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	v := viper.New()
	v.Set("config_dir", dir)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ConfigDir)
	assert.Equal(t, filepath.Join(dir, "taiagent.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(dir, "traces.jsonl"), cfg.TracePath)
	assert.Equal(t, "groq", cfg.Provider)
	assert.Equal(t, "qwen-qwq-32b", cfg.Model)
	assert.InDelta(t, 0.6, cfg.Temperature, 1e-9)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 50, cfg.MaxRounds)
	assert.Equal(t, 20, cfg.HistoryMessages)
	assert.Equal(t, 8000, cfg.ToolOutputMaxRunes)
	assert.Equal(t, UnknownToolsSkip, cfg.UnknownTools)
	assert.Equal(t, Retry{Attempts: 3, Delay: 20 * time.Second, Multiplier: 1}, cfg.Retry)
	assert.Equal(t, Ollama{Host: "http://localhost:11434", Model: "llama3.1"}, cfg.Ollama)
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yaml := `
provider: ollama
temperature: 0.2
retry:
  attempts: 5
  delay: 2s
ollama:
  model: qwen2.5
keys:
  groq: from-file
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	t.Setenv("TAIAGENT_TEMPERATURE", "0.9")
	t.Setenv("GROQ_API_KEY", "from-native-env")
	t.Setenv("OLLAMA_HOST", "127.0.0.1:9999")

	v := viper.New()
	v.Set("config_dir", dir)
	v.Set("retry.attempts", 7) // stands in for a bound flag

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Provider, "file beats default")
	assert.Equal(t, "qwen2.5", cfg.Model, "ollama provider falls back to ollama.model")
	assert.InDelta(t, 0.9, cfg.Temperature, 1e-9, "env beats file")
	assert.Equal(t, 7, cfg.Retry.Attempts, "flag beats file")
	assert.Equal(t, 2*time.Second, cfg.Retry.Delay)
	assert.Equal(t, "from-native-env", cfg.Keys.Groq, "native env beats file")
	assert.Equal(t, "http://127.0.0.1:9999", cfg.Ollama.Host)

	t.Setenv("TAIAGENT_KEYS_GROQ", "from-prefixed-env")
	v = viper.New()
	v.Set("config_dir", dir)
	cfg, err = Load(v)
	require.NoError(t, err)
	assert.Equal(t, "from-prefixed-env", cfg.Keys.Groq, "TAIAGENT_* beats native env")
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	clearEnv(t)
	v := viper.New()
	v.Set("config_dir", t.TempDir())
	v.Set("config", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load(v)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Provider: "groq", Model: "m", UnknownTools: UnknownToolsSkip,
			Retry: Retry{Attempts: 3, Multiplier: 1},
		}
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(c *Config){
		"unknown provider":      func(c *Config) { c.Provider = "nope" },
		"compat needs base url": func(c *Config) { c.Provider = "openai-compat" },
		"temperature":           func(c *Config) { c.Temperature = 3 },
		"negative rounds":       func(c *Config) { c.MaxRounds = -1 },
		"unknown policy":        func(c *Config) { c.UnknownTools = "explode" },
		"zero attempts":         func(c *Config) { c.Retry.Attempts = 0 },
		"shrinking multiplier":  func(c *Config) { c.Retry.Multiplier = 0.5 },
		"jitter":                func(c *Config) { c.Retry.Jitter = 1.5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestProviderAPIKey(t *testing.T) {
	c := &Config{Provider: "deepseek", Keys: Keys{Groq: "g", DeepSeek: "d"}}
	assert.Equal(t, "d", c.ProviderAPIKey())
	c.Provider = "openai-compat"
	assert.Equal(t, "g", c.ProviderAPIKey())
	c.APIKey = "explicit"
	assert.Equal(t, "explicit", c.ProviderAPIKey())
	c.APIKey = ""
	c.Provider = "ollama"
	assert.Empty(t, c.ProviderAPIKey())
}
