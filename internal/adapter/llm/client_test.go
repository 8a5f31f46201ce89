package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientCreateChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"qwen3:latest","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "", time.Second)
	resp, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "qwen3:latest",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion failed: %v", err)
	}
	if resp.Model != "qwen3:latest" || len(resp.Choices) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientCreateChatCompletionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"model not found","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "missing",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestClientCreateChatCompletionStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Stream {
			t.Fatalf("expected a streaming request, got %+v (%v)", req, err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"hi\"}}]}\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\" there\"},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	var chunks []StreamChunk
	usage, err := client.CreateChatCompletionStream(context.Background(), &ChatCompletionRequest{
		Model:    "qwen3:latest",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	}, func(chunk *StreamChunk) error {
		chunks = append(chunks, *chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("CreateChatCompletionStream failed: %v", err)
	}
	if usage != nil {
		t.Fatalf("expected nil usage, got %+v", usage)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
}

func TestClientStreamCallbackErrorStops(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n")
	}))
	defer server.Close()

	stop := errors.New("client went away")
	calls := 0
	_, err := NewClient(server.URL, "", time.Second).CreateChatCompletionStream(context.Background(),
		&ChatCompletionRequest{Model: "m"}, func(*StreamChunk) error {
			calls++
			return stop
		})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("expected callback error after 1 call, got %v after %d", err, calls)
	}
}

func TestClientListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"qwen3:latest","object":"model","created":1,"owned_by":"library"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 1 || models[0].ID != "qwen3:latest" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestClientListModelsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "bad")
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	if _, err := client.ListModels(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestClientSetHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected Authorization header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", time.Second)
	if _, err := client.ListModels(context.Background()); err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
}

func intp(i int) *int { return &i }

func TestAccumulatorAssemblesToolCalls(t *testing.T) {
	var acc Accumulator
	chunks := []*StreamChunk{
		{Choices: []Choice{{Delta: &ChatMessage{Content: "Let me "}}}},
		{Choices: []Choice{{Delta: &ChatMessage{Content: "search.", ToolCalls: []ToolCall{
			{Index: intp(0), ID: "call_1", Type: "function", Function: ToolCallFunction{Name: "duckduckgo_search", Arguments: `{"query":`}},
		}}}}},
		{Choices: []Choice{{Delta: &ChatMessage{ToolCalls: []ToolCall{
			{Index: intp(0), Function: ToolCallFunction{Arguments: `"agno"}`}},
			{Index: intp(1), ID: "call_2", Function: ToolCallFunction{Name: "think", Arguments: `{}`}},
		}}, FinishReason: "tool_calls"}}},
	}
	var text string
	for _, c := range chunks {
		text += acc.Add(c)
	}

	msg := acc.Message()
	if text != "Let me search." || msg.Content != text {
		t.Fatalf("unexpected content: %q / %q", text, msg.Content)
	}
	if len(msg.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %+v", msg.ToolCalls)
	}
	if msg.ToolCalls[0].Function.Arguments != `{"query":"agno"}` || msg.ToolCalls[0].Index != nil {
		t.Fatalf("unexpected first call: %+v", msg.ToolCalls[0])
	}
	if msg.ToolCalls[1].Type != "function" {
		t.Fatalf("expected default type, got %+v", msg.ToolCalls[1])
	}
	if acc.FinishReason() != "tool_calls" {
		t.Fatalf("unexpected finish reason: %q", acc.FinishReason())
	}
}

func TestCompleteStreamsThroughMock(t *testing.T) {
	mock := NewMockClient(
		ChatMessage{ToolCalls: []ToolCall{{ID: "c1", Type: "function", Function: ToolCallFunction{Name: "think", Arguments: "{}"}}}},
		ChatMessage{Content: "final answer here"},
	)
	req := &ChatCompletionRequest{Model: "m", Messages: []ChatMessage{{Role: "user", Content: "q"}}}

	first, _, err := Complete(context.Background(), mock, req, func(string) error { return nil })
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(first.ToolCalls) != 1 || first.ToolCalls[0].Function.Name != "think" {
		t.Fatalf("expected tool call, got %+v", first)
	}

	var deltas []string
	second, usage, err := Complete(context.Background(), mock, req, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if second.Content != "final answer here" || len(deltas) != 2 || usage == nil {
		t.Fatalf("unexpected result: %+v %v %+v", second, deltas, usage)
	}

	third, _, err := Complete(context.Background(), mock, req, nil)
	if err != nil || third.Content == "" {
		t.Fatalf("expected echo fallback, got %+v %v", third, err)
	}
	if got := len(mock.Requests()); got != 3 {
		t.Fatalf("expected 3 recorded requests, got %d", got)
	}
}

func TestFactorySelectsMock(t *testing.T) {
	if _, ok := NewLLMClient(nil, "mock", "http://x", "", time.Second).(*MockClient); !ok {
		t.Fatalf("expected mock client")
	}
	if _, ok := NewLLMClient(nil, "", "http://x", "", time.Second).(*Client); !ok {
		t.Fatalf("expected http client")
	}
}
