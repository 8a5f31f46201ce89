package llm

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "SUPERPOD_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewLLMClient returns the mock client in MOCK mode and an HTTP client otherwise.
// Ollama's OpenAI-compatible API lives under the server root, so baseURL is the
// Ollama URL itself.
func NewLLMClient(logger *zap.Logger, mode, baseURL, apiKey string, timeout time.Duration) LLMClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.EqualFold(mode, ModeMock) {
		logger.Info("SUPERPOD_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}
	logger.Info("using model server", zap.String("base_url", baseURL))
	return NewClient(baseURL, apiKey, timeout)
}
