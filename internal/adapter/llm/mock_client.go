package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is a mock implementation of LLMClient. Scripted replies are
// returned in order; once they run out it echoes the last user message.
type MockClient struct {
	mu       sync.Mutex
	script   []ChatMessage
	requests []ChatCompletionRequest
}

// NewMockClient creates a new mock LLM client.
func NewMockClient(script ...ChatMessage) *MockClient {
	return &MockClient{script: script}
}

// Ensure MockClient implements LLMClient interface.
var _ LLMClient = (*MockClient)(nil)

// Requests returns a copy of every request received so far.
func (m *MockClient) Requests() []ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatCompletionRequest(nil), m.requests...)
}

func (m *MockClient) next(req *ChatCompletionRequest) ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	cp.Messages = append([]ChatMessage(nil), req.Messages...)
	m.requests = append(m.requests, cp)

	if len(m.script) > 0 {
		msg := m.script[0]
		m.script = m.script[1:]
		if msg.Role == "" {
			msg.Role = "assistant"
		}
		return msg
	}
	return ChatMessage{Role: "assistant", Content: m.generateMockResponse(req)}
}

// CreateChatCompletion returns a mock response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg := m.next(req)

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      &msg,
				FinishReason: finishReason(msg),
			},
		},
		Usage: m.usage(req, msg.Content),
	}, nil
}

// CreateChatCompletionStream simulates a streaming response.
func (m *MockClient) CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) (*Usage, error) {
	msg := m.next(req)
	id := fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano())
	created := time.Now().Unix()

	// Simulate streaming by sending content in chunks
	chunks := m.splitIntoChunks(msg.Content, 10)

	for i, chunk := range chunks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		delta := &ChatMessage{Role: "assistant", Content: chunk}
		reason := ""
		if i == len(chunks)-1 {
			reason = finishReason(msg)
			for j, tc := range msg.ToolCalls {
				tc.Index = &j
				delta.ToolCalls = append(delta.ToolCalls, tc)
			}
		}

		streamChunk := &StreamChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   req.Model,
			Choices: []Choice{{Index: 0, Delta: delta, FinishReason: reason}},
		}
		if err := callback(streamChunk); err != nil {
			return nil, err
		}
	}

	return m.usage(req, msg.Content), nil
}

// ListModels returns a list of mock models.
func (m *MockClient) ListModels(ctx context.Context) ([]Model, error) {
	return []Model{
		{ID: "mock-qwen3", Object: "model", Created: time.Now().Unix(), OwnedBy: "mock"},
		{ID: "mock-llama3.2", Object: "model", Created: time.Now().Unix(), OwnedBy: "mock"},
	}, nil
}

func finishReason(msg ChatMessage) string {
	if len(msg.ToolCalls) > 0 {
		return "tool_calls"
	}
	return "stop"
}

// generateMockResponse generates a mock response based on the request.
func (m *MockClient) generateMockResponse(req *ChatCompletionRequest) string {
	// Get the last user message
	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	if lastUserMessage == "" {
		return "[MOCK] This is a mock response from the LLM client."
	}

	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100))
}

func (m *MockClient) usage(req *ChatCompletionRequest, content string) *Usage {
	prompt := 0
	for _, msg := range req.Messages {
		prompt += len(msg.Content) / 4
	}
	return &Usage{
		PromptTokens:     prompt,
		CompletionTokens: len(content) / 4,
		TotalTokens:      prompt + len(content)/4,
	}
}

// splitIntoChunks splits a string into chunks of approximately the given size.
func (m *MockClient) splitIntoChunks(s string, chunkSize int) []string {
	if len(s) == 0 {
		return []string{""}
	}

	var chunks []string
	for i := 0; i < len(s); i += chunkSize {
		end := i + chunkSize
		if end > len(s) {
			end = len(s)
		}
		chunks = append(chunks, s[i:end])
	}
	return chunks
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
