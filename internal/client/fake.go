package client

import (
	"context"
	"sync"
	"time"

	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/provider"
)

// FakeProvider is a scripted provider.LLMProvider for tests.
//
// Usage:
//
//	fake := &client.FakeProvider{
//	    Responses: []message.CompletionResponse{
//	        {ToolCalls: []message.ToolCall{{ID: "c1", Name: "finance_search", Input: `{}`}}},
//	        {Content: "done", StopReason: "end_turn"},
//	    },
//	}
type FakeProvider struct {
	// Responses is the queue of responses to return, consumed in order.
	// When exhausted, Repeat (if set) is returned on every further call,
	// otherwise a plain "no more responses" reply.
	Responses []message.CompletionResponse
	Repeat    *message.CompletionResponse

	// Delay is applied before the first chunk of every call.
	Delay time.Duration

	// ErrorAt injects ErrorValue on the Nth call (1-based). 0 means disabled.
	ErrorAt    int
	ErrorValue error

	// Models is returned by ListModels after ListDelay; ListErr overrides it.
	Models    []provider.ModelInfo
	ListErr   error
	ListDelay time.Duration

	// ProviderName defaults to "fake".
	ProviderName string

	mu        sync.Mutex
	calls     []provider.CompletionOptions
	callCount int
}

// Stream emits the next response's thinking and text as deltas, its tool
// calls as tool_start chunks, then a done chunk carrying the full response.
func (f *FakeProvider) Stream(ctx context.Context, opts provider.CompletionOptions) <-chan message.StreamChunk {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.callCount++
	inject := f.ErrorAt > 0 && f.callCount == f.ErrorAt
	var resp message.CompletionResponse
	if !inject {
		resp = f.next()
	}
	f.mu.Unlock()

	ch := make(chan message.StreamChunk)
	go func() {
		defer close(ch)
		if f.Delay > 0 {
			select {
			case <-time.After(f.Delay):
			case <-ctx.Done():
				send(ctx, ch, message.StreamChunk{Type: message.ChunkTypeError, Error: ctx.Err()})
				return
			}
		}
		if inject {
			send(ctx, ch, message.StreamChunk{Type: message.ChunkTypeError, Error: f.ErrorValue})
			return
		}
		if resp.Thinking != "" && !send(ctx, ch, message.StreamChunk{Type: message.ChunkTypeThinking, Text: resp.Thinking}) {
			return
		}
		if resp.Content != "" && !send(ctx, ch, message.StreamChunk{Type: message.ChunkTypeText, Text: resp.Content}) {
			return
		}
		for _, tc := range resp.ToolCalls {
			if !send(ctx, ch, message.StreamChunk{Type: message.ChunkTypeToolStart, ToolID: tc.ID, ToolName: tc.Name}) {
				return
			}
		}
		send(ctx, ch, message.StreamChunk{Type: message.ChunkTypeDone, Response: &resp})
	}()
	return ch
}

// ListModels returns the configured model list.
func (f *FakeProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	if f.ListDelay > 0 {
		select {
		case <-time.After(f.ListDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Models, nil
}

// Name returns the provider name.
func (f *FakeProvider) Name() string {
	if f.ProviderName != "" {
		return f.ProviderName
	}
	return "fake"
}

// Calls returns every set of CompletionOptions received, in order.
func (f *FakeProvider) Calls() []provider.CompletionOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.CompletionOptions(nil), f.calls...)
}

func (f *FakeProvider) next() message.CompletionResponse {
	if len(f.Responses) == 0 {
		if f.Repeat != nil {
			return *f.Repeat
		}
		return message.CompletionResponse{
			Content:    "no more responses",
			StopReason: "end_turn",
		}
	}
	resp := f.Responses[0]
	f.Responses = f.Responses[1:]
	return resp
}

func send(ctx context.Context, ch chan<- message.StreamChunk, chunk message.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

var _ provider.LLMProvider = (*FakeProvider)(nil)
