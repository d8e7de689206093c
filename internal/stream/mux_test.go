package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yanmxa/finsight/internal/client"
	"github.com/yanmxa/finsight/internal/core"
	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/tool"
)

func drain(ch <-chan Event) []Event {
	var out []Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func TestMuxTextAndFinish(t *testing.T) {
	m := NewMux(16, false)
	ctx := context.Background()

	m.OnReasoning(ctx, 1, "thinking hidden")
	m.OnText(ctx, 1, "Hello ")
	m.OnText(ctx, 1, "")
	m.OnText(ctx, 1, "world")
	m.Finish(ctx, FinishInfo{StopReason: "end_turn"})

	events := drain(m.Events())
	types := make([]EventType, len(events))
	var text strings.Builder
	for i, e := range events {
		types[i] = e.Type
		if e.Type == EventTextDelta {
			text.WriteString(e.Text)
		}
	}
	want := []EventType{EventTextDelta, EventTextDelta, EventStepTiming, EventFinish}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}
	if text.String() != "Hello world" {
		t.Errorf("unexpected reconstruction %q", text.String())
	}
}

func TestMuxReasoningWhenSupported(t *testing.T) {
	m := NewMux(4, true)
	m.OnReasoning(context.Background(), 1, "step 1")
	m.Close()
	events := drain(m.Events())
	if len(events) != 1 || events[0].Type != EventReasoningDelta {
		t.Errorf("expected one reasoning delta, got %+v", events)
	}
}

func TestMuxBackpressure(t *testing.T) {
	m := NewMux(2, false)
	ctx := context.Background()
	m.OnText(ctx, 1, "a")
	m.OnText(ctx, 1, "b")

	blocked := make(chan struct{})
	go func() {
		m.OnText(ctx, 1, "c")
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("emit should block while the buffer is full")
	case <-time.After(50 * time.Millisecond):
	}

	<-m.Events()
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("emit should resume once the consumer reads")
	}
}

func TestMuxEmitAbortsOnCancel(t *testing.T) {
	m := NewMux(1, false)
	ctx, cancel := context.WithCancel(context.Background())
	m.OnText(ctx, 1, "fills buffer")

	done := make(chan struct{})
	go func() {
		m.OnText(ctx, 1, "stuck")
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit should give up after cancellation")
	}
}

func TestMuxStepLog(t *testing.T) {
	m := NewMux(16, false)
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 100 * time.Millisecond)
	}
	ctx := context.Background()

	a := message.ToolCall{ID: "a", Name: "finance_search", Input: `{"query":"AAPL  revenue"}`}
	b := message.ToolCall{ID: "b", Name: "web_search", Input: `{"query":"AAPL news"}`}
	m.OnToolStart(ctx, 1, a)
	m.OnToolStart(ctx, 1, b)
	m.OnToolDone(ctx, 1, b, message.ToolResult{ToolCallID: "b", Content: "ok"})
	m.OnToolDone(ctx, 1, a, message.ErrorResult(a, "Error: timeout"))

	steps := m.Steps()
	if len(steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(steps))
	}
	if steps[0].Detail != "AAPL revenue" {
		t.Errorf("unexpected start detail %q", steps[0].Detail)
	}
	if steps[3].Phase != message.StepDone || steps[3].ToolCallID != "a" || steps[3].NextStep == "" {
		t.Errorf("unexpected done entry %+v", steps[3])
	}

	timings := m.Timings()
	if len(timings) != 2 || timings[0].ToolCallID != "b" || timings[0].DurationMs != 100 || timings[1].DurationMs != 300 {
		t.Errorf("unexpected timings %+v", timings)
	}
	if !timings[1].IsError {
		t.Error("a should be recorded as failed")
	}
}

func TestMuxWithLoopStepOrdering(t *testing.T) {
	slow := &sleepTool{name: "slow", d: 60 * time.Millisecond}
	fast := &sleepTool{name: "fast", d: 5 * time.Millisecond}
	fake := &client.FakeProvider{Responses: []message.CompletionResponse{
		{Content: "checking ", ToolCalls: []message.ToolCall{
			{ID: "A", Name: "slow", Input: "{}"},
			{ID: "B", Name: "fast", Input: "{}"},
		}},
		{Content: "answer"},
	}}
	loop := &core.Loop{Client: &client.Client{Provider: fake, Model: "m"}}
	m := NewMux(4, false)

	var events []Event
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		events = drain(m.Events())
	}()

	ctx := context.Background()
	res, err := loop.Run(ctx, []message.Message{message.NewUserMessage("q")}, core.Options{
		Tools:    tool.NewRegistry(slow, fast).Set(nil),
		Observer: m,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	m.Finish(ctx, FinishInfo{StopReason: res.StopReason})
	wg.Wait()

	pos := map[string]int{}
	for i, s := range m.Steps() {
		pos[string(s.Phase)+s.ToolCallID] = i
	}
	if pos["startA"] > pos["doneA"] || pos["startB"] > pos["doneB"] {
		t.Errorf("done entry precedes its start: %+v", m.Steps())
	}
	if pos["doneB"] > pos["doneA"] {
		t.Error("fast tool B should finish before slow tool A")
	}

	var lastToolEvent, secondRoundText int
	for i, e := range events {
		if e.Type == EventToolCallDone {
			lastToolEvent = i
		}
		if e.Type == EventTextDelta && e.Round == 2 {
			secondRoundText = i
		}
	}
	if secondRoundText < lastToolEvent {
		t.Error("round 2 events must follow every round 1 event")
	}
	if last := events[len(events)-1]; last.Type != EventFinish {
		t.Errorf("last event should be finish, got %s", last.Type)
	}
}

type sleepTool struct {
	name string
	d    time.Duration
}

func (s *sleepTool) Name() string           { return s.name }
func (s *sleepTool) Description() string    { return s.name }
func (s *sleepTool) Schema() map[string]any { return map[string]any{"type": "object"} }
func (s *sleepTool) Execute(ctx context.Context, _ map[string]any) (string, error) {
	select {
	case <-time.After(s.d):
		return s.name, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestPipeWritesSSEFrames(t *testing.T) {
	m := NewMux(8, false)
	ctx := context.Background()
	m.OnText(ctx, 1, "hi")
	m.Fail(ctx, "model_incompatible", "no tools")

	var buf bytes.Buffer
	if err := Pipe(ctx, &buf, m.Events()); err != nil {
		t.Fatalf("Pipe: %v", err)
	}

	sc := bufio.NewScanner(&buf)
	var names []string
	var last Event
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			names = append(names, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &last); err != nil {
				t.Fatalf("bad data line %q: %v", line, err)
			}
		}
	}
	if strings.Join(names, ",") != "text-delta,error" {
		t.Errorf("unexpected frames %v", names)
	}
	if last.Code != "model_incompatible" {
		t.Errorf("unexpected error event %+v", last)
	}
}
