package stream

import (
	"context"
	"sync"
	"time"

	"github.com/yanmxa/finsight/internal/core"
	"github.com/yanmxa/finsight/internal/message"
)

const (
	defaultBuffer   = 64
	maxOutputInline = 2000
	maxDetail       = 120
)

// Mux implements core.Observer. Events are delivered on a bounded channel;
// emitting blocks while the channel is full and gives up when the request
// context is done.
type Mux struct {
	events    chan Event
	reasoning bool
	now       func() time.Time

	mu      sync.Mutex
	steps   []message.StepEntry
	starts  map[string]time.Time
	timings []ToolTiming

	closeOnce sync.Once
}

// NewMux creates a multiplexer buffering up to buffer events. Reasoning
// deltas are forwarded only when reasoning is true.
func NewMux(buffer int, reasoning bool) *Mux {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Mux{
		events:    make(chan Event, buffer),
		reasoning: reasoning,
		now:       time.Now,
		starts:    make(map[string]time.Time),
	}
}

// Events returns the event channel. It is closed by Finish, Fail or Close.
func (m *Mux) Events() <-chan Event {
	return m.events
}

// emit reports whether the event was accepted before ctx was done.
func (m *Mux) emit(ctx context.Context, e Event) bool {
	select {
	case m.events <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Mux) OnText(ctx context.Context, round int, text string) {
	if text == "" {
		return
	}
	m.emit(ctx, Event{Type: EventTextDelta, Round: round, Text: text})
}

func (m *Mux) OnReasoning(ctx context.Context, round int, text string) {
	if !m.reasoning || text == "" {
		return
	}
	m.emit(ctx, Event{Type: EventReasoningDelta, Round: round, Text: text})
}

func (m *Mux) OnToolStart(ctx context.Context, round int, tc message.ToolCall) {
	now := m.now()
	m.mu.Lock()
	m.starts[tc.ID] = now
	m.steps = append(m.steps, message.StepEntry{
		Phase:      message.StepStart,
		ToolName:   tc.Name,
		ToolCallID: tc.ID,
		Detail:     inputDetail(tc.Input),
		Timestamp:  now,
	})
	m.mu.Unlock()

	m.emit(ctx, Event{
		Type:       EventToolCallStart,
		Round:      round,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Input:      tc.Input,
	})
}

func (m *Mux) OnToolDone(ctx context.Context, round int, tc message.ToolCall, result message.ToolResult) {
	now := m.now()
	m.mu.Lock()
	var d time.Duration
	if start, ok := m.starts[tc.ID]; ok {
		d = now.Sub(start)
	}
	m.steps = append(m.steps, message.StepEntry{
		Phase:      message.StepDone,
		ToolName:   tc.Name,
		ToolCallID: tc.ID,
		Detail:     resultDetail(result),
		NextStep:   nextStep(result),
		Timestamp:  now,
	})
	m.timings = append(m.timings, ToolTiming{
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Round:      round,
		DurationMs: d.Milliseconds(),
		IsError:    result.IsError,
	})
	m.mu.Unlock()

	m.emit(ctx, Event{
		Type:       EventToolCallDone,
		Round:      round,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Output:     truncate(result.Content, maxOutputInline),
		IsError:    result.IsError,
		DurationMs: d.Milliseconds(),
	})
}

// Steps returns a copy of the step log recorded so far.
func (m *Mux) Steps() []message.StepEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]message.StepEntry(nil), m.steps...)
}

// Timings returns a copy of the per-tool durations recorded so far.
func (m *Mux) Timings() []ToolTiming {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ToolTiming(nil), m.timings...)
}

// Finish emits the step-timing summary and the finish event, then closes
// the stream.
func (m *Mux) Finish(ctx context.Context, info FinishInfo) {
	defer m.Close()
	if !m.emit(ctx, Event{Type: EventStepTiming, Steps: m.Steps(), Timings: m.Timings()}) {
		return
	}
	m.emit(ctx, Event{Type: EventFinish, Finish: &info})
}

// Fail emits an error event and closes the stream.
func (m *Mux) Fail(ctx context.Context, code, msg string) {
	defer m.Close()
	m.emit(ctx, Event{Type: EventError, Code: code, Message: msg})
}

// Close closes the event channel. It is safe to call more than once, but
// no events may be emitted afterwards.
func (m *Mux) Close() {
	m.closeOnce.Do(func() { close(m.events) })
}

var _ core.Observer = (*Mux)(nil)
