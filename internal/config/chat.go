package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ChatConfig holds the chat gateway configuration.
type ChatConfig struct {
	// Server settings
	Port int `mapstructure:"chat_port"`

	// Upstreams
	AgentOSURL string `mapstructure:"agentos_url"`
	OllamaURL  string `mapstructure:"ollama_url"`

	// Auth settings
	Username string `mapstructure:"chat_username"`
	Password string `mapstructure:"chat_password"`

	// Entity client
	ClientTimeoutMs  int  `mapstructure:"agentos_timeout_ms"`
	EntityCacheTTLMs int  `mapstructure:"entity_cache_ttl_ms"`
	ShowAllInstalled bool `mapstructure:"show_all_installed_models"`

	// WebSocket settings
	PingIntervalMs int   `mapstructure:"ws_ping_interval_ms"`
	WriteTimeoutMs int   `mapstructure:"ws_write_timeout_ms"`
	ReadTimeoutMs  int   `mapstructure:"ws_read_timeout_ms"`
	ReplyTimeoutMs int   `mapstructure:"ws_reply_timeout_ms"`
	IdleChatMs     int   `mapstructure:"ws_idle_chat_ms"`
	MaxMessageSize int64 `mapstructure:"ws_max_message_size"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func (c *ChatConfig) ClientTimeout() time.Duration {
	return time.Duration(c.ClientTimeoutMs) * time.Millisecond
}

func (c *ChatConfig) EntityCacheTTL() time.Duration {
	return time.Duration(c.EntityCacheTTLMs) * time.Millisecond
}

func (c *ChatConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMs) * time.Millisecond
}

func (c *ChatConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutMs) * time.Millisecond
}

func (c *ChatConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

// ReplyTimeout bounds one streamed reply, backend runs included.
func (c *ChatConfig) ReplyTimeout() time.Duration {
	return time.Duration(c.ReplyTimeoutMs) * time.Millisecond
}

// IdleChatTimeout is how long a chat without connections stays resumable.
func (c *ChatConfig) IdleChatTimeout() time.Duration {
	return time.Duration(c.IdleChatMs) * time.Millisecond
}

// LoadChat reads the chat gateway configuration.
func LoadChat(v *viper.Viper) (*ChatConfig, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetDefault("chat_port", 8090)
	v.SetDefault("agentos_url", AgentOSURL())
	v.SetDefault("ollama_url", OllamaURL())
	v.SetDefault("chat_username", "admin")
	v.SetDefault("chat_password", "admin")
	v.SetDefault("agentos_timeout_ms", 60000)
	v.SetDefault("entity_cache_ttl_ms", 5*60*1000)
	v.SetDefault("show_all_installed_models", false)
	v.SetDefault("ws_ping_interval_ms", 30000)
	v.SetDefault("ws_write_timeout_ms", 10000)
	v.SetDefault("ws_read_timeout_ms", 60000)
	v.SetDefault("ws_reply_timeout_ms", 600000)
	v.SetDefault("ws_idle_chat_ms", 30*60*1000)
	v.SetDefault("ws_max_message_size", 65536)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	if err := readFile(v, "chat"); err != nil {
		return nil, err
	}

	var cfg ChatConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode chat config: %w", err)
	}
	return &cfg, nil
}
