package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// OSConfig is the display configuration served by GET /config.
type OSConfig struct {
	AvailableModels []string `yaml:"available_models" json:"available_models,omitempty"`
	Chat            struct {
		QuickPrompts map[string][]string `yaml:"quick_prompts" json:"quick_prompts,omitempty"`
	} `yaml:"chat" json:"chat"`
}

// QuickPrompts returns the suggested prompts for an entity id.
func (c *OSConfig) QuickPrompts(entityID string) []string {
	if c == nil {
		return nil
	}
	return c.Chat.QuickPrompts[entityID]
}

// LoadOSConfig parses the AgentOS display config. A missing file yields an empty config.
func LoadOSConfig(path string) (*OSConfig, error) {
	cfg := &OSConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read os config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse os config %s: %w", path, err)
	}
	return cfg, nil
}
