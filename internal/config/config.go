// Package config provides configuration for the AgentOS backend and the chat gateway.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pessini/superpod-blog/internal/models"
)

// Config holds the AgentOS backend configuration.
type Config struct {
	// Server settings
	HTTPPort int    `mapstructure:"http_port"`
	OSID     string `mapstructure:"os_id"`

	// Database
	DatabaseURL string `mapstructure:"database_url"`

	// Model server
	OllamaURL       string `mapstructure:"ollama_url"`
	ModelID         string `mapstructure:"model_id"`
	EmbedderModelID string `mapstructure:"embedder_model_id"`
	LLMAPIKey       string `mapstructure:"llm_api_key"`
	Mode            string `mapstructure:"superpod_mode"`

	// Timeouts
	AgentTimeoutMs int `mapstructure:"agent_timeout_ms"`
	ToolTimeoutMs  int `mapstructure:"tool_timeout_ms"`
	LLMTimeoutMs   int `mapstructure:"llm_timeout_ms"`
	MaxToolRounds  int `mapstructure:"max_tool_rounds"`

	// AgentOS display config (quick prompts, models)
	OSConfigPath string `mapstructure:"os_config_path"`

	// Tool-call policy; empty selects the built-in policy
	PolicyPath string `mapstructure:"policy_path"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// AgentTimeout is the upper bound on a single agent, team or workflow run.
func (c *Config) AgentTimeout() time.Duration {
	return time.Duration(c.AgentTimeoutMs) * time.Millisecond
}

// ToolTimeout bounds a single tool execution.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutMs) * time.Millisecond
}

// LLMTimeout is the HTTP timeout of the model client.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutMs) * time.Millisecond
}

// MockMode reports whether the model client should be replaced by the mock.
func (c *Config) MockMode() bool {
	return strings.EqualFold(c.Mode, "MOCK")
}

// Load reads the backend configuration from an optional config file and the environment.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetDefault("http_port", 7777)
	v.SetDefault("os_id", "agentos-docker")
	v.SetDefault("database_url", "file:agentos.db?cache=shared&mode=rwc")
	v.SetDefault("ollama_url", OllamaURL())
	v.SetDefault("model_id", models.OllamaModelID)
	v.SetDefault("embedder_model_id", models.OllamaEmbedderModelID)
	v.SetDefault("llm_api_key", "")
	v.SetDefault("superpod_mode", "")
	v.SetDefault("agent_timeout_ms", 600000)
	v.SetDefault("tool_timeout_ms", 30000)
	v.SetDefault("llm_timeout_ms", 300000)
	v.SetDefault("max_tool_rounds", 10)
	v.SetDefault("os_config_path", "config.yaml")
	v.SetDefault("policy_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	if err := readFile(v, "agentos"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// readFile loads <name>.yaml from the working directory or ./config when present.
// A missing file is not an error; the environment alone is enough.
func readFile(v *viper.Viper, name string) error {
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// dockerMarker is the file the container runtime creates inside every container.
var dockerMarker = "/.dockerenv"

// IsDocker reports whether the process runs inside a container.
func IsDocker() bool {
	if os.Getenv("DOCKER_ENV") == "true" {
		return true
	}
	_, err := os.Stat(dockerMarker)
	return err == nil
}

// OllamaURL returns the model server base URL for the current environment.
func OllamaURL() string {
	if IsDocker() {
		return models.OllamaDockerURL
	}
	return models.OllamaLocalURL
}

// AgentOSURL returns the backend base URL for the current environment.
func AgentOSURL() string {
	if IsDocker() {
		return "http://agent-os:8000"
	}
	return "http://localhost:7777"
}
