// Package core runs the step-bounded reasoning loop: model rounds
// interleaved with concurrent tool execution, ending on a final answer,
// the round cap, or cancellation.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanmxa/finsight/internal/client"
	"github.com/yanmxa/finsight/internal/log"
	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/provider"
	"github.com/yanmxa/finsight/internal/tool"
)

const (
	defaultMaxRounds     = 10
	defaultMaxConcurrent = 5
)

// Stop reasons.
const (
	StopEndTurn   = "end_turn"
	StopMaxRounds = "max_rounds"
	StopCancelled = "cancelled"
)

// Observer receives the loop's progress as it happens. Calls for one round
// complete before any call of the next round. OnToolStart and OnToolDone are
// called from the tool's own goroutine.
type Observer interface {
	OnText(ctx context.Context, round int, text string)
	OnReasoning(ctx context.Context, round int, text string)
	OnToolStart(ctx context.Context, round int, call message.ToolCall)
	OnToolDone(ctx context.Context, round int, call message.ToolCall, result message.ToolResult)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnText(context.Context, int, string)                                      {}
func (NopObserver) OnReasoning(context.Context, int, string)                                 {}
func (NopObserver) OnToolStart(context.Context, int, message.ToolCall)                       {}
func (NopObserver) OnToolDone(context.Context, int, message.ToolCall, message.ToolResult) {}

// Options controls one Run.
type Options struct {
	MaxRounds     int
	MaxConcurrent int
	ToolTimeout   time.Duration // per call; 0 means no extra bound
	Tools         *tool.Set
	System        string
	Observer      Observer
}

// Result is returned by Loop.Run, also alongside cancellation errors.
type Result struct {
	// Parts are the assistant message parts in generation order: each round's
	// text and tool calls followed by that round's results in call order.
	Parts      []message.Part
	Content    string
	Rounds     int
	ToolCalls  int
	Tokens     client.TokenUsage
	StopReason string
}

// Loop drives a client through tool-calling rounds.
type Loop struct {
	Client *client.Client
}

// Run executes rounds over history until the model answers without tool
// calls, the round cap is reached, or ctx is done. At the cap the text
// produced so far is returned without error.
func (l *Loop) Run(ctx context.Context, history []message.Message, opts Options) (*Result, error) {
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	obs := opts.Observer
	if obs == nil {
		obs = NopObserver{}
	}
	defs := opts.Tools.Tools()
	log.Logger().Debug("loop started", zap.Int("max_rounds", maxRounds), log.ToolsField(defs))

	res := &Result{}
	turns := message.Turns(history)

	for round := 1; round <= maxRounds; round++ {
		if ctx.Err() != nil {
			return l.finish(res, StopCancelled), ctx.Err()
		}
		res.Rounds = round

		start := time.Now()
		resp, chunks, err := collect(ctx, l.Client.Stream(ctx, turns, defs, opts.System), round, obs)
		if resp != nil && resp.Content != "" {
			res.Parts = append(res.Parts, message.Text{Text: resp.Content})
		}
		if err != nil {
			if ctx.Err() != nil {
				return l.finish(res, StopCancelled), ctx.Err()
			}
			return l.finish(res, ""), wrapProviderError(l.Client.Model, round, err)
		}
		log.LogStreamDone(l.Client.Name(), time.Since(start), chunks)
		l.Client.AddUsage(resp.Usage)

		calls := normalizeCalls(resp.ToolCalls, round)
		log.Logger().Debug("model round",
			zap.Int("round", round),
			log.ToolCallsField(calls),
			log.UsageField(resp.Usage))
		turns = append(turns, message.AssistantTurn(resp.Content, resp.Thinking, calls))
		if len(calls) == 0 {
			return l.finish(res, StopEndTurn), nil
		}
		for _, tc := range calls {
			res.Parts = append(res.Parts, tc)
		}
		res.ToolCalls += len(calls)

		results := l.runTools(ctx, round, calls, opts, obs)
		for _, r := range results {
			res.Parts = append(res.Parts, r)
			turns = append(turns, message.ToolResultTurn(r))
		}
	}

	log.Logger().Info("round cap reached", zap.Int("rounds", maxRounds), zap.Int("tool_calls", res.ToolCalls))
	return l.finish(res, StopMaxRounds), nil
}

func (l *Loop) finish(res *Result, reason string) *Result {
	var sb strings.Builder
	for _, p := range res.Parts {
		if t, ok := p.(message.Text); ok {
			sb.WriteString(t.Text)
		}
	}
	res.Content = sb.String()
	res.Tokens = l.Client.Tokens()
	res.StopReason = reason
	return res
}

func wrapProviderError(model string, round int, err error) error {
	err = provider.Classify(model, err)
	var ce *provider.CompatibilityError
	if errors.As(err, &ce) {
		return ce
	}
	return fmt.Errorf("model round %d: %w", round, err)
}

// normalizeCalls gives every call an ID and valid JSON input.
func normalizeCalls(calls []message.ToolCall, round int) []message.ToolCall {
	out := make([]message.ToolCall, len(calls))
	for i, tc := range calls {
		if tc.ID == "" {
			tc.ID = fmt.Sprintf("call_r%d_%d", round, i)
		}
		if strings.TrimSpace(tc.Input) == "" {
			tc.Input = "{}"
		}
		out[i] = tc
	}
	return out
}

// collect drains a stream into a response, forwarding deltas to obs as they
// arrive. The text received so far is returned alongside errors.
func collect(ctx context.Context, ch <-chan message.StreamChunk, round int, obs Observer) (*message.CompletionResponse, int, error) {
	var response message.CompletionResponse
	chunks := 0

	for {
		select {
		case <-ctx.Done():
			return &response, chunks, ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				return &response, chunks, nil
			}
			chunks++
			switch chunk.Type {
			case message.ChunkTypeText:
				response.Content += chunk.Text
				obs.OnText(ctx, round, chunk.Text)
			case message.ChunkTypeThinking:
				response.Thinking += chunk.Text
				obs.OnReasoning(ctx, round, chunk.Text)
			case message.ChunkTypeToolStart:
				response.ToolCalls = append(response.ToolCalls, message.ToolCall{
					ID:   chunk.ToolID,
					Name: chunk.ToolName,
				})
			case message.ChunkTypeToolInput:
				if n := len(response.ToolCalls); n > 0 {
					response.ToolCalls[n-1].Input += chunk.Text
				}
			case message.ChunkTypeDone:
				if chunk.Response != nil {
					final := *chunk.Response
					// Text was already forwarded from deltas; keep what was streamed.
					if response.Content != "" {
						final.Content = response.Content
					}
					return &final, chunks, nil
				}
				return &response, chunks, nil
			case message.ChunkTypeError:
				return &response, chunks, chunk.Error
			}
		}
	}
}

// runTools executes one round's calls with at most MaxConcurrent in flight
// and returns once all have resolved. Results keep call order.
func (l *Loop) runTools(ctx context.Context, round int, calls []message.ToolCall, opts Options, obs Observer) []message.ToolResult {
	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = defaultMaxConcurrent
	}

	results := make([]message.ToolResult, len(calls))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, tc := range calls {
		g.Go(func() error {
			results[i] = l.execTool(ctx, round, tc, opts, obs)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// execTool runs a single call. Every failure becomes an error result.
func (l *Loop) execTool(ctx context.Context, round int, tc message.ToolCall, opts Options, obs Observer) (result message.ToolResult) {
	obs.OnToolStart(ctx, round, tc)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Logger().Error("tool panicked", zap.String("tool", tc.Name), zap.Any("panic", r))
			result = message.ErrorResult(tc, fmt.Sprintf("Tool %s failed unexpectedly", tc.Name))
		}
		log.LogTool(tc.Name, tc.ID, time.Since(start).Milliseconds(), !result.IsError)
		obs.OnToolDone(ctx, round, tc, result)
	}()

	params, err := message.ParseToolInput(tc.Input)
	if err != nil {
		return message.ErrorResult(tc, fmt.Sprintf("Error parsing tool input: %v", err))
	}

	callCtx := ctx
	if opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, opts.ToolTimeout)
		defer cancel()
	}

	out, err := opts.Tools.Execute(callCtx, tc.Name, params)
	if err != nil {
		return message.ErrorResult(tc, "Error: "+err.Error())
	}
	return message.ToolResult{
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    out,
	}
}
