package session

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/yanmxa/finsight/internal/message"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	out := map[string]Store{"memory": NewMemoryStore(), "sqlite": sq}
	if addr := os.Getenv("FINSIGHT_TEST_REDIS"); addr != "" {
		rs, err := NewRedisStore(context.Background(), addr, "", 15)
		if err != nil {
			t.Fatalf("NewRedisStore: %v", err)
		}
		t.Cleanup(func() { rs.Close() })
		out["redis"] = rs
	}
	return out
}

func TestAppendOrdering(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := NewAdapter(store)
			sid := "order-" + strconv.FormatInt(time.Now().UnixNano(), 10)

			var want []string
			for i := 0; i < 5; i++ {
				u, err := a.AppendUserTurn(ctx, sid, "", message.NewUserMessage("q"+strconv.Itoa(i)))
				if err != nil {
					t.Fatalf("AppendUserTurn: %v", err)
				}
				as, err := a.AppendAssistantTurn(ctx, sid, message.Message{
					Parts: []message.Part{message.Text{Text: "a" + strconv.Itoa(i)}},
				}, nil, time.Second)
				if err != nil {
					t.Fatalf("AppendAssistantTurn: %v", err)
				}
				want = append(want, u.ID, as.ID)
			}

			msgs, err := a.Load(ctx, sid)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(msgs) != len(want) {
				t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
			}
			for i, m := range msgs {
				if m.ID != want[i] {
					t.Errorf("message %d: expected %s, got %s", i, want[i], m.ID)
				}
				wantRole := message.RoleUser
				if i%2 == 1 {
					wantRole = message.RoleAssistant
				}
				if m.Role != wantRole {
					t.Errorf("message %d: expected role %s, got %s", i, wantRole, m.Role)
				}
			}
			if msgs[1].ProcessingTimeMs != 1000 {
				t.Errorf("expected processing time 1000ms, got %d", msgs[1].ProcessingTimeMs)
			}
		})
	}
}

func TestLazySessionCreation(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := NewAdapter(store)
			sid := "lazy-" + strconv.FormatInt(time.Now().UnixNano(), 10)

			msgs, err := a.Load(ctx, sid)
			if err != nil || len(msgs) != 0 {
				t.Fatalf("new session should load empty, got %v, %v", msgs, err)
			}
			if _, err := store.GetSession(ctx, sid); err != ErrNotFound {
				t.Fatalf("session should not exist before the first append, got %v", err)
			}

			created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			a.now = func() time.Time { return created }
			if _, err := a.AppendUserTurn(ctx, sid, "user-1", message.NewUserMessage("How did   NVDA do in Q3?")); err != nil {
				t.Fatalf("AppendUserTurn: %v", err)
			}

			later := created.Add(time.Minute)
			a.now = func() time.Time { return later }
			if _, err := a.AppendAssistantTurn(ctx, sid, message.Message{Parts: []message.Part{message.Text{Text: "Well."}}}, nil, 0); err != nil {
				t.Fatalf("AppendAssistantTurn: %v", err)
			}

			s, err := store.GetSession(ctx, sid)
			if err != nil {
				t.Fatalf("GetSession: %v", err)
			}
			if s.UserID != "user-1" || s.Title != "How did NVDA do in Q3?" {
				t.Errorf("unexpected session %+v", s)
			}
			if !s.CreatedAt.Equal(created) || !s.LastActivityAt.Equal(later) {
				t.Errorf("expected created %v and last activity %v, got %+v", created, later, s)
			}
		})
	}
}

func TestMalformedIDsRegenerated(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemoryStore())

	u := message.NewUserMessage("hi")
	u.ID = "msg-123"
	stored, err := a.AppendUserTurn(ctx, "s", "", u)
	if err != nil {
		t.Fatalf("AppendUserTurn: %v", err)
	}
	if stored.ID == "msg-123" || !message.ValidID(stored.ID) {
		t.Errorf("malformed id persisted: %q", stored.ID)
	}

	valid := message.NewID()
	stored, _ = a.AppendAssistantTurn(ctx, "s", message.Message{ID: valid}, nil, 0)
	if stored.ID != valid {
		t.Errorf("valid id should be kept, got %q", stored.ID)
	}
}

func TestStepLogOnlyWithTools(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemoryStore())
	steps := []message.StepEntry{
		{Phase: message.StepStart, ToolName: "finance_search", ToolCallID: "c1"},
		{Phase: message.StepDone, ToolName: "finance_search", ToolCallID: "c1", NextStep: "analyze results"},
	}

	plain, _ := a.AppendAssistantTurn(ctx, "s", message.Message{
		Parts: []message.Part{message.Text{Text: "no tools"}},
	}, steps, 0)
	if len(plain.Parts) != 1 {
		t.Errorf("step log must not be attached without tool calls, got %d parts", len(plain.Parts))
	}

	original := []message.Part{
		message.ToolCall{ID: "c1", Name: "finance_search", Input: "{}"},
		message.ToolResult{ToolCallID: "c1", Content: "ok"},
		message.Text{Text: "answer"},
	}
	withTools, _ := a.AppendAssistantTurn(ctx, "s", message.Message{Parts: original}, steps, 0)
	if len(withTools.Parts) != 4 {
		t.Fatalf("expected step log part appended, got %d parts", len(withTools.Parts))
	}
	logPart, ok := withTools.Parts[3].(message.StepLog)
	if !ok || len(logPart.Entries) != 2 {
		t.Errorf("expected trailing step log, got %T", withTools.Parts[3])
	}
	if len(original) != 3 {
		t.Error("caller's parts slice must not be modified")
	}
}

func TestGenerateTitle(t *testing.T) {
	long := "Compare the gross margins of Apple, Microsoft and Alphabet over the last five fiscal years please"
	got := GenerateTitle(long)
	if len([]rune(got)) > MaxTitleLength+3 {
		t.Errorf("title too long: %q", got)
	}
	if got[len(got)-3:] != "..." {
		t.Errorf("expected ellipsis, got %q", got)
	}
	if GenerateTitle("  ") != "New conversation" {
		t.Error("empty text should get the default title")
	}
}
