// Package config loads reflect settings from a YAML file, REFLECT_* environment
// variables and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. REFLECT_LLM_MODEL.
const EnvPrefix = "REFLECT"

// Config is the full reflect configuration.
type Config struct {
	DB          string          `mapstructure:"db"`
	SessionsDir string          `mapstructure:"sessions_dir"`
	Output      string          `mapstructure:"output"`
	Log         LogConfig       `mapstructure:"log"`
	LLM         LLMConfig       `mapstructure:"llm"`
	Embedding   EmbeddingConfig `mapstructure:"embedding"`
	Workflow    WorkflowConfig  `mapstructure:"workflow"`
	Chat        ChatConfig      `mapstructure:"chat"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dev   bool   `mapstructure:"dev"`
}

// LLMConfig selects the completion provider.
type LLMConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	APIKeyEnv string `mapstructure:"api_key_env"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// EmbeddingConfig selects the embedding provider. An empty provider disables vector search.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	APIKeyEnv string `mapstructure:"api_key_env"`
	Dims      int    `mapstructure:"dims"`
	CacheSize int64  `mapstructure:"cache_size"`
}

// WorkflowConfig bounds workflow execution.
type WorkflowConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

// ChatConfig tunes prompt assembly.
type ChatConfig struct {
	ContextBudget int `mapstructure:"context_budget"`
	HistoryTurns  int `mapstructure:"history_turns"`
	ReflectWindow int `mapstructure:"reflect_window"`
	SplitSize     int `mapstructure:"split_size"`
}

// Home is the directory holding the default database, sessions and config file.
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reflect"
	}
	return filepath.Join(home, ".reflect")
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db", filepath.Join(Home(), "memory.db"))
	v.SetDefault("sessions_dir", filepath.Join(Home(), "sessions"))
	v.SetDefault("output", "json")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.dev", false)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key_env", "")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_key_env", "")
	v.SetDefault("embedding.dims", 0)
	v.SetDefault("embedding.cache_size", 1024)
	v.SetDefault("workflow.max_depth", 8)
	v.SetDefault("chat.context_budget", 4000)
	v.SetDefault("chat.history_turns", 0)
	v.SetDefault("chat.reflect_window", 6000)
	v.SetDefault("chat.split_size", 1500)
}

// Init prepares v: defaults, environment binding and the config file. A missing
// default config file is not an error; a missing explicit file is.
func Init(v *viper.Viper, file string) error {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("reflect")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(Home())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=value files into the process environment without overriding
// variables already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env", filepath.Join(Home(), ".env")}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch c.Output {
	case "json", "yaml":
	default:
		return fmt.Errorf("output must be json or yaml, got %q", c.Output)
	}
	switch c.LLM.Provider {
	case "", "anthropic", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	switch c.Embedding.Provider {
	case "", "ollama", "openai", "hash":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Workflow.MaxDepth < 0 {
		return fmt.Errorf("workflow.max_depth must not be negative")
	}
	if c.Chat.ContextBudget < 0 {
		return fmt.Errorf("chat.context_budget must not be negative")
	}
	return nil
}
