// Package models names the model identifiers and endpoints used across the platform.
package models

import "sort"

// Ollama endpoints.
const (
	OllamaDockerURL = "http://host.docker.internal:11434"
	OllamaLocalURL  = "http://localhost:11434"
)

// Backend model ids.
const (
	OllamaModelID         = "qwen3:latest"
	OllamaEmbedderModelID = "nomic-embed-text:v1.5"

	OpenAIModelID         = "gpt-5-mini"
	OpenAIEmbedderModelID = "text-embedding-3-small"
	AnthropicModelID      = "claude-sonnet-4-5"
	GoogleModelID         = "gemini-2.5-pro"
)

// DefaultChatModel is used by the chat gateway when no profile was selected.
const DefaultChatModel = "llama3.2:latest"

// Catalog maps display names to Ollama model ids offered as chat profiles.
var Catalog = map[string]string{
	"llama 3":      "llama3.2:latest",
	"qwen 3":       "qwen3:latest",
	"deep seek r1": "deepseek-r1:latest",
}

// Model is one chat profile entry.
type Model struct {
	DisplayName string
	ID          string
}

// Available returns the chat models to offer. Without showAllInstalled the static
// catalog is returned; otherwise every installed model is listed, named from the
// catalog when known.
func Available(installed []string, showAllInstalled bool) []Model {
	if !showAllInstalled {
		out := make([]Model, 0, len(Catalog))
		for name, id := range Catalog {
			out = append(out, Model{DisplayName: name, ID: id})
		}
		sortModels(out)
		return out
	}

	reverse := make(map[string]string, len(Catalog))
	for name, id := range Catalog {
		reverse[id] = name
	}
	out := make([]Model, 0, len(installed))
	for _, id := range installed {
		name, ok := reverse[id]
		if !ok {
			name = id
		}
		out = append(out, Model{DisplayName: name, ID: id})
	}
	sortModels(out)
	return out
}

func sortModels(m []Model) {
	sort.Slice(m, func(i, j int) bool { return m[i].DisplayName < m[j].DisplayName })
}
