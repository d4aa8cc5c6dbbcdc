package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (TAIAGENT_MODEL, TAIAGENT_RETRY_DELAY, ...).
const EnvPrefix = "TAIAGENT"

const (
	configFileName = "config"
	configFileType = "yaml"
	dbFileName     = "taiagent.db"
	traceFileName  = "traces.jsonl"
)

// Unknown-tool policies accepted in unknown_tools.
const (
	UnknownToolsSkip   = "skip"
	UnknownToolsReport = "report"
)

// DefaultModels maps each supported provider to the model used when none is configured.
var DefaultModels = map[string]string{
	"groq":          "qwen-qwq-32b",
	"openai-compat": "qwen-qwq-32b",
	"ollama":        "", // ollama.model
	"openai":        "gpt-4o-mini",
	"deepseek":      "deepseek-chat",
	"anthropic":     "claude-3-5-haiku-latest",
}

// Config holds runtime configuration. Secrets come from the environment or the
// config file at runtime; never committed.
type Config struct {
	// ConfigDir holds config.yaml, the database and traces (.taiagent or ~/.config/taiagent).
	ConfigDir string `mapstructure:"config_dir"`
	// DBPath is the SQLite file; defaults to <ConfigDir>/taiagent.db.
	DBPath string `mapstructure:"db_path"`
	// TracePath receives spans when Trace is set; defaults to <ConfigDir>/traces.jsonl.
	TracePath string `mapstructure:"trace_path"`

	// Provider selects the chat client (groq, openai-compat, ollama, openai, deepseek, anthropic).
	Provider string `mapstructure:"provider"`
	// Model is the provider's model id; empty picks DefaultModels[Provider].
	Model string `mapstructure:"model"`
	// BaseURL overrides the provider endpoint (required for openai-compat).
	BaseURL string `mapstructure:"base_url"`
	// APIKey overrides the provider-native key below.
	APIKey         string        `mapstructure:"api_key"`
	Temperature    float64       `mapstructure:"temperature"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// MaxRounds caps model rounds per turn; 0 = unbounded.
	MaxRounds int `mapstructure:"max_rounds"`
	// HistoryMessages is how many stored messages a resumed session reloads.
	HistoryMessages int `mapstructure:"history_messages"`
	// ToolOutputMaxRunes caps tool output length (0 = no truncation).
	ToolOutputMaxRunes int `mapstructure:"tool_output_max_runes"`
	// UnknownTools is "skip" or "report".
	UnknownTools string `mapstructure:"unknown_tools"`

	Retry  Retry  `mapstructure:"retry"`
	Ollama Ollama `mapstructure:"ollama"`
	Google Google `mapstructure:"google"`
	Keys   Keys   `mapstructure:"keys"`

	LogLevel string `mapstructure:"log_level"`
	Trace    bool   `mapstructure:"trace"`
}

// Retry configures the task executor's backoff.
type Retry struct {
	Attempts   int           `mapstructure:"attempts"`
	Delay      time.Duration `mapstructure:"delay"`
	Multiplier float64       `mapstructure:"multiplier"`
	Jitter     float64       `mapstructure:"jitter"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// Ollama points at a local Ollama server.
type Ollama struct {
	Host  string `mapstructure:"host"`
	Model string `mapstructure:"model"`
}

// Google holds Custom Search credentials for the google_search tool.
type Google struct {
	APIKey string `mapstructure:"api_key"`
	CX     string `mapstructure:"cx"`
}

// Keys holds provider-native API keys.
type Keys struct {
	Groq      string `mapstructure:"groq"`
	OpenAI    string `mapstructure:"openai"`
	DeepSeek  string `mapstructure:"deepseek"`
	Anthropic string `mapstructure:"anthropic"`
}

// DefaultConfigDir returns the default config directory (project-local .taiagent if present, else ~/.config/taiagent).
func DefaultConfigDir() string {
	cwd, _ := os.Getwd()
	local := filepath.Join(cwd, ".taiagent")
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local
	}
	home, err := homedir.Dir()
	if err != nil {
		return local
	}
	return filepath.Join(home, ".config", "taiagent")
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("config_dir", "")
	v.SetDefault("db_path", "")
	v.SetDefault("trace_path", "")
	v.SetDefault("provider", "groq")
	v.SetDefault("model", "")
	v.SetDefault("base_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("temperature", 0.6)
	v.SetDefault("request_timeout", 60*time.Second)
	v.SetDefault("max_rounds", 50)
	v.SetDefault("history_messages", 20)
	v.SetDefault("tool_output_max_runes", 8000)
	v.SetDefault("unknown_tools", UnknownToolsSkip)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 20*time.Second)
	v.SetDefault("retry.multiplier", 1.0)
	v.SetDefault("retry.jitter", 0.0)
	v.SetDefault("retry.max_delay", time.Duration(0))
	v.SetDefault("ollama.host", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.1")
	v.SetDefault("log_level", "info")
	v.SetDefault("trace", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Provider-native variables rank below the TAIAGENT_* ones.
	_ = v.BindEnv("keys.groq", EnvPrefix+"_KEYS_GROQ", "GROQ_API_KEY")
	_ = v.BindEnv("keys.openai", EnvPrefix+"_KEYS_OPENAI", "OPENAI_API_KEY")
	_ = v.BindEnv("keys.deepseek", EnvPrefix+"_KEYS_DEEPSEEK", "DEEPSEEK_API_KEY")
	_ = v.BindEnv("keys.anthropic", EnvPrefix+"_KEYS_ANTHROPIC", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("google.api_key", EnvPrefix+"_GOOGLE_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("google.cx", EnvPrefix+"_GOOGLE_CX", "GOOGLE_CX")
	_ = v.BindEnv("ollama.host", EnvPrefix+"_OLLAMA_HOST", "OLLAMA_HOST")
}

// Load resolves the configuration from v: flags already bound to v, then
// TAIAGENT_* and provider env vars, then config.yaml in the config dir, then defaults.
// The "config" key, when set, names an explicit config file that must exist.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	configDir := v.GetString("config_dir")
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	configDir, err := homedir.Expand(configDir)
	if err != nil {
		return nil, fmt.Errorf("config dir: %w", err)
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigDir = configDir
	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDerived() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.ConfigDir, dbFileName)
	}
	if c.TracePath == "" {
		c.TracePath = filepath.Join(c.ConfigDir, traceFileName)
	}
	if c.Ollama.Host != "" && !strings.Contains(c.Ollama.Host, "://") {
		// OLLAMA_HOST is commonly host:port.
		c.Ollama.Host = "http://" + c.Ollama.Host
	}
	if c.Model == "" {
		if c.Provider == "ollama" {
			c.Model = c.Ollama.Model
		} else {
			c.Model = DefaultModels[c.Provider]
		}
	}
	c.UnknownTools = strings.ToLower(strings.TrimSpace(c.UnknownTools))
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, ok := DefaultModels[c.Provider]; !ok {
		return fmt.Errorf("config: unknown provider %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("config: no model for provider %q", c.Provider)
	}
	if c.Provider == "openai-compat" && c.BaseURL == "" {
		return fmt.Errorf("config: provider openai-compat requires base_url")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("config: temperature %v out of range [0, 2]", c.Temperature)
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("config: max_rounds must be >= 0")
	}
	if c.HistoryMessages < 0 || c.ToolOutputMaxRunes < 0 {
		return fmt.Errorf("config: history_messages and tool_output_max_runes must be >= 0")
	}
	if c.UnknownTools != UnknownToolsSkip && c.UnknownTools != UnknownToolsReport {
		return fmt.Errorf("config: unknown_tools must be %q or %q", UnknownToolsSkip, UnknownToolsReport)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("config: retry.attempts must be >= 1")
	}
	if c.Retry.Delay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("config: retry delays must be >= 0")
	}
	if c.Retry.Multiplier != 0 && c.Retry.Multiplier < 1 {
		return fmt.Errorf("config: retry.multiplier must be >= 1")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("config: retry.jitter must be within [0, 1]")
	}
	return nil
}

// ProviderAPIKey returns the key for the configured provider: APIKey when set,
// else the provider-native key.
func (c *Config) ProviderAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	switch c.Provider {
	case "groq", "openai-compat":
		return c.Keys.Groq
	case "openai":
		return c.Keys.OpenAI
	case "deepseek":
		return c.Keys.DeepSeek
	case "anthropic":
		return c.Keys.Anthropic
	}
	return ""
}

// EnsureDir creates the config dir if missing.
func (c *Config) EnsureDir() error {
	if err := os.MkdirAll(c.ConfigDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return nil
}
