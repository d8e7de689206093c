package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yanmxa/finsight/internal/client"
	"github.com/yanmxa/finsight/internal/config"
	"github.com/yanmxa/finsight/internal/log"
	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/resolver"
	"github.com/yanmxa/finsight/internal/session"
	"github.com/yanmxa/finsight/internal/stream"
	"github.com/yanmxa/finsight/internal/tool"
)

// --- Test helpers ---

type stubResolver struct {
	sel   *resolver.Selection
	err   error
	prefs []resolver.Preferences
}

func (r *stubResolver) Resolve(_ context.Context, prefs resolver.Preferences) (*resolver.Selection, error) {
	r.prefs = append(r.prefs, prefs)
	return r.sel, r.err
}

type quoteTool struct{}

func (quoteTool) Name() string           { return tool.FinanceSearch }
func (quoteTool) Description() string    { return "quotes" }
func (quoteTool) Schema() map[string]any { return map[string]any{"type": "object"} }
func (quoteTool) Execute(context.Context, map[string]any) (string, error) {
	return "AAPL 227.50", nil
}

// failingStore fails every assistant append.
type failingStore struct {
	*session.MemoryStore
}

func (f failingStore) AppendMessage(ctx context.Context, id string, m message.Message) error {
	if m.Role == message.RoleAssistant {
		return errors.New("disk full")
	}
	return f.MemoryStore.AppendMessage(ctx, id, m)
}

func newService(fake *client.FakeProvider, store session.Store) (*Service, *stubResolver) {
	cfg := config.Default()
	r := &stubResolver{sel: &resolver.Selection{
		Kind:       resolver.KindHosted,
		Credential: "openai",
		Model:      "gpt-4o",
		Provider:   fake,
	}}
	return NewService(cfg, r, session.NewAdapter(store), tool.NewRegistry(quoteTool{})), r
}

func userMessages(texts ...string) []message.Message {
	var out []message.Message
	for _, t := range texts {
		out = append(out, message.NewUserMessage(t))
	}
	return out
}

func collect(t *testing.T, st *Stream) []stream.Event {
	t.Helper()
	var events []stream.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-st.Events():
			if !ok {
				select {
				case <-st.Done():
				case <-timeout:
					t.Fatal("post-completion hook did not finish")
				}
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

// --- Tests ---

func TestChatStreamsAndPersists(t *testing.T) {
	fake := &client.FakeProvider{Responses: []message.CompletionResponse{
		{Content: "Checking. ", ToolCalls: []message.ToolCall{{ID: "c1", Name: tool.FinanceSearch, Input: `{"query":"AAPL"}`}}},
		{Content: "AAPL trades at $227.50."},
	}}
	store := session.NewMemoryStore()
	svc, _ := newService(fake, store)

	st, err := svc.Chat(context.Background(), ChatRequest{SessionID: "s1", Messages: userMessages("AAPL price?")})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	events := collect(t, st)

	var text strings.Builder
	for _, e := range events {
		if e.Type == stream.EventTextDelta {
			text.WriteString(e.Text)
		}
	}
	if text.String() != "Checking. AAPL trades at $227.50." {
		t.Errorf("unexpected streamed text %q", text.String())
	}
	last := events[len(events)-1]
	if last.Type != stream.EventFinish || last.Finish.Model != "OpenAI · gpt-4o" || last.Finish.Rounds != 2 {
		t.Errorf("unexpected finish %+v", last)
	}
	if events[len(events)-2].Type != stream.EventStepTiming {
		t.Error("step-timing should precede finish")
	}

	msgs, _ := svc.History(context.Background(), "s1")
	if len(msgs) != 2 {
		t.Fatalf("expected user and assistant messages, got %d", len(msgs))
	}
	assistant := msgs[1]
	if assistant.ID != last.Finish.MessageID {
		t.Error("persisted message id should match the finish event")
	}
	if _, ok := assistant.Parts[len(assistant.Parts)-1].(message.StepLog); !ok {
		t.Error("assistant message should end with the step log")
	}
}

func TestChatUsesStoredHistory(t *testing.T) {
	fake := &client.FakeProvider{Responses: []message.CompletionResponse{{Content: "one"}, {Content: "two"}}}
	svc, _ := newService(fake, session.NewMemoryStore())

	st, _ := svc.Chat(context.Background(), ChatRequest{SessionID: "s", Messages: userMessages("first")})
	collect(t, st)
	st, _ = svc.Chat(context.Background(), ChatRequest{SessionID: "s", Messages: userMessages("ignored", "second")})
	collect(t, st)

	turns := fake.Calls()[1].Turns
	var got []string
	for _, tr := range turns {
		got = append(got, string(tr.Role)+":"+tr.Content)
	}
	want := "user:first,assistant:one,user:second"
	if strings.Join(got, ",") != want {
		t.Errorf("expected %s, got %v", want, got)
	}
}

func TestChatValidation(t *testing.T) {
	svc, _ := newService(&client.FakeProvider{}, session.NewMemoryStore())
	tests := []struct {
		name string
		msgs []message.Message
	}{
		{"empty", nil},
		{"last not user", []message.Message{{Role: message.RoleAssistant, Parts: []message.Part{message.Text{Text: "hi"}}}}},
		{"blank text", userMessages("   ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Chat(context.Background(), ChatRequest{Messages: tt.msgs})
			if CodeOf(err) != CodeInvalidRequest {
				t.Errorf("expected invalid_request, got %v", err)
			}
		})
	}
}

func TestChatNoProvider(t *testing.T) {
	svc, r := newService(&client.FakeProvider{}, session.NewMemoryStore())
	r.sel, r.err = nil, &resolver.NoProviderError{Reasons: []string{"nothing configured"}}

	_, err := svc.Chat(context.Background(), ChatRequest{Messages: userMessages("hi")})
	if CodeOf(err) != CodeNoProvider {
		t.Errorf("expected no_provider, got %v", err)
	}
}

func TestChatCompatibilityErrorEvent(t *testing.T) {
	fake := &client.FakeProvider{ErrorAt: 1, ErrorValue: errors.New("model does not support tools")}
	svc, _ := newService(fake, session.NewMemoryStore())

	st, err := svc.Chat(context.Background(), ChatRequest{Messages: userMessages("hi")})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	events := collect(t, st)
	last := events[len(events)-1]
	if last.Type != stream.EventError || last.Code != string(CodeModelIncompatible) {
		t.Errorf("expected model_incompatible error event, got %+v", last)
	}
	if !strings.Contains(last.Message, "gpt-4o") {
		t.Errorf("message should name the model: %q", last.Message)
	}
}

func TestChatDeadlineEndsWithTimeoutEvent(t *testing.T) {
	fake := &client.FakeProvider{Delay: time.Second}
	store := session.NewMemoryStore()
	svc, _ := newService(fake, store)
	svc.cfg.Chat.Timeout = 50 * time.Millisecond

	st, err := svc.Chat(context.Background(), ChatRequest{SessionID: "slow", Messages: userMessages("hi")})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	events := collect(t, st)
	last := events[len(events)-1]
	if last.Type != stream.EventError || last.Code != string(CodeTimeout) {
		t.Fatalf("expected timeout error event, got %+v", last)
	}

	msgs, _ := svc.History(context.Background(), "slow")
	if len(msgs) != 1 || msgs[0].Role != message.RoleUser {
		t.Errorf("a timed-out turn keeps only the user message, got %d messages", len(msgs))
	}
}

func TestPersistenceFailureOnlyLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log.SetLogger(zap.New(core))
	defer log.SetLogger(zap.NewNop())

	fake := &client.FakeProvider{Responses: []message.CompletionResponse{{Content: "answer"}}}
	svc, _ := newService(fake, failingStore{session.NewMemoryStore()})

	st, err := svc.Chat(context.Background(), ChatRequest{Messages: userMessages("hi")})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	events := collect(t, st)
	if events[len(events)-1].Type != stream.EventFinish {
		t.Error("the streamed response must complete despite the store failure")
	}
	if logs.FilterField(zap.String("component", "session")).Len() == 0 {
		t.Error("expected the persistence failure to be logged")
	}
}

func TestComplete(t *testing.T) {
	fake := &client.FakeProvider{Responses: []message.CompletionResponse{{Content: "  Rates are 5.25%.  "}}}
	svc, r := newService(fake, session.NewMemoryStore())

	out, err := svc.Complete(context.Background(), "fed funds rate?", true)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "Rates are 5.25%." {
		t.Errorf("unexpected output %q", out)
	}
	if p := r.prefs[0]; p.LocalEnabled == nil || *p.LocalEnabled {
		t.Error("disableLocal should turn local inference off")
	}
	for _, def := range fake.Calls()[0].Tools {
		if def.Name == tool.CreateChart {
			t.Error("single-shot output is plain text; no chart tool")
		}
	}
}

func TestGenerateCard(t *testing.T) {
	fake := &client.FakeProvider{Responses: []message.CompletionResponse{
		{Content: "Here you go:\n```json\n{\"title\": \"Apple (AAPL)\", \"emoji\": \"🍎\", \"content\": \"Shares rose 2%.\"}\n```"},
		{Content: "I could not find that ticker."},
	}}
	svc, _ := newService(fake, session.NewMemoryStore())

	card, err := svc.GenerateCard(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("GenerateCard: %v", err)
	}
	if card.Title != "Apple (AAPL)" || card.Emoji != "🍎" {
		t.Errorf("unexpected card %+v", card)
	}
	if !strings.Contains(fake.Calls()[0].Turns[0].Content, "AAPL") {
		t.Error("prompt should carry the upper-cased symbol")
	}

	_, err = svc.GenerateCard(context.Background(), "zzzz")
	if CodeOf(err) != CodeUnparseable {
		t.Errorf("expected unparseable_output, got %v", err)
	}
}

func TestParseCard(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"bare", `{"title":"T","emoji":"📈","content":"C"}`, false},
		{"fenced", "```\n{\"title\":\"T\",\"emoji\":\"📈\",\"content\":\"C\"}\n```", false},
		{"prose around", `Sure! {"title":"T","emoji":"📈","content":"C"} Hope that helps.`, false},
		{"skips non-card braces", `Note {x} then {"title":"T","emoji":"📈","content":"C"}`, false},
		{"missing field", `{"title":"T","content":"C"}`, true},
		{"blank field", `{"title":"  ","emoji":"📈","content":"C"}`, true},
		{"no json", "Apple is a company.", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := ParseCard(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCard() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && card.Title != "T" {
				t.Errorf("unexpected card %+v", card)
			}
		})
	}
}
