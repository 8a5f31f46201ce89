// Package ollama is a client for the native Ollama HTTP API.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("superpod/ollama")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to an Ollama server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A zero timeout means no timeout,
// which suits long generations.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatPart struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error [%d]: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return resp, nil
}

// Chat streams the assistant reply for messages. The request is sent when the
// sequence is first iterated; the sequence can be consumed once. A "generation"
// span records the model, the last user input and the full output.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ctx, span := tracer.Start(ctx, "generation", trace.WithAttributes(
			attribute.String("gen_ai.request.model", model),
			attribute.String("input", lastUserContent(messages)),
		))
		defer span.End()

		resp, err := c.postJSON(ctx, "/api/chat", chatRequest{Model: model, Messages: messages, Stream: true})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield("", err)
			return
		}
		defer resp.Body.Close()

		var output strings.Builder
		defer func() { span.SetAttributes(attribute.String("output", output.String())) }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var part chatPart
			if err := json.Unmarshal(line, &part); err != nil {
				yield("", fmt.Errorf("failed to decode chat part: %w", err))
				return
			}
			if part.Error != "" {
				err := errors.New(part.Error)
				span.RecordError(err)
				span.SetStatus(codes.Error, part.Error)
				yield("", err)
				return
			}
			if part.Message.Content != "" {
				output.WriteString(part.Message.Content)
				if !yield(part.Message.Content, nil) {
					return
				}
			}
			if part.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("failed to read chat stream: %w", err))
		}
	}
}

func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// ModelInfo is one installed model.
type ModelInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Size  int64  `json:"size"`
}

// ListModels returns the models installed on the server.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error [%d]: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode models: %w", err)
	}
	return out.Models, nil
}

// InstalledModelIDs lists the ids of installed models.
func (c *Client) InstalledModelIDs(ctx context.Context) ([]string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		id := m.Model
		if id == "" {
			id = m.Name
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Embed returns one embedding per input.
func (c *Client) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	ctx, span := tracer.Start(ctx, "embedding", trace.WithAttributes(
		attribute.String("gen_ai.request.model", model),
		attribute.Int("inputs", len(inputs)),
	))
	defer span.End()

	resp, err := c.postJSON(ctx, "/api/embed", map[string]any{"model": model, "input": inputs})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embeddings: %w", err)
	}
	if len(out.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(out.Embeddings))
	}
	return out.Embeddings, nil
}
