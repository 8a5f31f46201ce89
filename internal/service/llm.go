package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/adapter/llm"
	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/repository"
)

type runIDKey struct{}

func withRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the id of the run ctx belongs to, if any.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// RecordingClient wraps a model client and records llm_call_started and
// llm_call_done events for calls made inside a run.
type RecordingClient struct {
	inner  llm.LLMClient
	store  repository.Store
	logger *zap.Logger
}

var _ llm.LLMClient = (*RecordingClient)(nil)

func NewRecordingClient(inner llm.LLMClient, store repository.Store, logger *zap.Logger) *RecordingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingClient{inner: inner, store: store, logger: logger.With(zap.String("component", "llm-recorder"))}
}

// CreateChatCompletion handles non-streaming chat completions.
func (c *RecordingClient) CreateChatCompletion(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	runID := RunIDFromContext(ctx)
	requestID := "llm_" + uuid.New().String()[:8]
	startTime := time.Now()
	c.started(ctx, runID, requestID, req)

	resp, err := c.inner.CreateChatCompletion(ctx, req)

	payload := domain.LLMCallDonePayload{RequestID: requestID, Model: req.Model, LatencyMs: time.Since(startTime).Milliseconds()}
	if err != nil {
		payload.Error = err.Error()
	} else {
		if resp.Model != "" {
			payload.Model = resp.Model
		}
		withUsage(&payload, resp.Usage)
	}
	c.record(ctx, runID, domain.EventTypeLLMCallDone, payload)
	return resp, err
}

// CreateChatCompletionStream handles streaming chat completions.
func (c *RecordingClient) CreateChatCompletionStream(ctx context.Context, req *llm.ChatCompletionRequest, callback llm.StreamCallback) (*llm.Usage, error) {
	runID := RunIDFromContext(ctx)
	requestID := "llm_" + uuid.New().String()[:8]
	startTime := time.Now()
	c.started(ctx, runID, requestID, req)

	var responseModel string
	wrapped := func(chunk *llm.StreamChunk) error {
		if responseModel == "" && chunk.Model != "" {
			responseModel = chunk.Model
		}
		return callback(chunk)
	}
	usage, err := c.inner.CreateChatCompletionStream(ctx, req, wrapped)

	if responseModel == "" {
		responseModel = req.Model
	}
	payload := domain.LLMCallDonePayload{RequestID: requestID, Model: responseModel, LatencyMs: time.Since(startTime).Milliseconds()}
	withUsage(&payload, usage)
	if err != nil {
		payload.Error = err.Error()
	}
	c.record(ctx, runID, domain.EventTypeLLMCallDone, payload)
	return usage, err
}

// ListModels retrieves the list of available models.
func (c *RecordingClient) ListModels(ctx context.Context) ([]llm.Model, error) {
	return c.inner.ListModels(ctx)
}

func (c *RecordingClient) started(ctx context.Context, runID, requestID string, req *llm.ChatCompletionRequest) {
	c.record(ctx, runID, domain.EventTypeLLMCallStarted, domain.LLMCallStartedPayload{
		RequestID: requestID,
		Model:     req.Model,
		Stream:    req.Stream,
	})
}

func (c *RecordingClient) record(ctx context.Context, runID string, eventType domain.EventType, payload any) {
	if runID == "" || c.store == nil {
		return
	}
	// a cancelled run still gets its closing event
	if err := recordEvent(context.WithoutCancel(ctx), c.store, time.Now(), runID, eventType, payload); err != nil {
		c.logger.Warn("failed to record event", zap.String("run_id", runID), zap.String("type", string(eventType)), zap.Error(err))
	}
}

func withUsage(p *domain.LLMCallDonePayload, u *llm.Usage) {
	if u == nil {
		return
	}
	p.PromptTokens = u.PromptTokens
	p.CompletionTokens = u.CompletionTokens
	p.TotalTokens = u.TotalTokens
}
