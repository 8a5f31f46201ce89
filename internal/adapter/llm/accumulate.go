package llm

import (
	"context"
	"strings"
)

// Accumulator folds streamed deltas back into one assistant message.
type Accumulator struct {
	content   strings.Builder
	toolCalls []ToolCall
	finish    string
}

// Add merges one chunk and returns the content fragment it carried.
func (a *Accumulator) Add(chunk *StreamChunk) string {
	var text string
	for _, choice := range chunk.Choices {
		if choice.FinishReason != "" {
			a.finish = choice.FinishReason
		}
		if choice.Delta == nil {
			continue
		}
		text += choice.Delta.Content
		for _, tc := range choice.Delta.ToolCalls {
			a.addToolCall(tc)
		}
	}
	a.content.WriteString(text)
	return text
}

func (a *Accumulator) addToolCall(tc ToolCall) {
	idx := len(a.toolCalls)
	if tc.Index != nil {
		idx = *tc.Index
	} else if tc.ID == "" && idx > 0 {
		// fragment without index or id continues the last call
		idx--
	}
	for len(a.toolCalls) <= idx {
		a.toolCalls = append(a.toolCalls, ToolCall{Type: "function"})
	}
	cur := &a.toolCalls[idx]
	if tc.ID != "" {
		cur.ID = tc.ID
	}
	if tc.Type != "" {
		cur.Type = tc.Type
	}
	if tc.Function.Name != "" {
		cur.Function.Name = tc.Function.Name
	}
	cur.Function.Arguments += tc.Function.Arguments
}

// Message returns the assembled assistant message.
func (a *Accumulator) Message() ChatMessage {
	calls := make([]ToolCall, 0, len(a.toolCalls))
	for _, tc := range a.toolCalls {
		if tc.Function.Name == "" {
			continue
		}
		tc.Index = nil
		calls = append(calls, tc)
	}
	msg := ChatMessage{Role: "assistant", Content: a.content.String()}
	if len(calls) > 0 {
		msg.ToolCalls = calls
	}
	return msg
}

// FinishReason is the last finish reason seen.
func (a *Accumulator) FinishReason() string {
	return a.finish
}

// Complete runs a chat completion. With onDelta set the request is streamed
// and every non-empty content fragment is passed to it.
func Complete(ctx context.Context, client LLMClient, req *ChatCompletionRequest, onDelta func(string) error) (ChatMessage, *Usage, error) {
	if onDelta == nil {
		resp, err := client.CreateChatCompletion(ctx, req)
		if err != nil {
			return ChatMessage{}, nil, err
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
			return ChatMessage{Role: "assistant"}, resp.Usage, nil
		}
		return *resp.Choices[0].Message, resp.Usage, nil
	}

	var acc Accumulator
	usage, err := client.CreateChatCompletionStream(ctx, req, func(chunk *StreamChunk) error {
		if text := acc.Add(chunk); text != "" {
			return onDelta(text)
		}
		return nil
	})
	if err != nil {
		return ChatMessage{}, usage, err
	}
	return acc.Message(), usage, nil
}
