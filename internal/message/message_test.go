package message

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestErrorResult(t *testing.T) {
	tc := ToolCall{ID: "tc1", Name: "finance_search", Input: `{"query": "AAPL"}`}
	r := ErrorResult(tc, "upstream unavailable")
	if r.ToolCallID != "tc1" {
		t.Errorf("expected ToolCallID 'tc1', got %q", r.ToolCallID)
	}
	if r.ToolName != "finance_search" {
		t.Errorf("expected ToolName 'finance_search', got %q", r.ToolName)
	}
	if !r.IsError {
		t.Error("expected IsError true")
	}
}

func TestParseToolInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		wantLen int
	}{
		{"empty", "", false, 0},
		{"valid", `{"key": "value"}`, false, 1},
		{"invalid", `not json`, true, 0},
		{"whitespace", "  ", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := ParseToolInput(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseToolInput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(params) != tt.wantLen {
				t.Errorf("expected %d params, got %d", tt.wantLen, len(params))
			}
		})
	}
}

func TestMessageJSONRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := Message{
		ID:   NewID(),
		Role: RoleAssistant,
		Parts: []Part{
			Text{Text: "Looking up"},
			ToolCall{ID: "c1", Name: "finance_search", Input: `{"query":"NVDA"}`},
			ToolResult{ToolCallID: "c1", ToolName: "finance_search", Content: "ok"},
			StepLog{Entries: []StepEntry{
				{Phase: StepStart, ToolName: "finance_search", ToolCallID: "c1", Timestamp: ts},
				{Phase: StepDone, ToolName: "finance_search", ToolCallID: "c1", NextStep: "analyze", Timestamp: ts},
			}},
		},
		ProcessingTimeMs: 1200,
		CreatedAt:        ts,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"type":"tool-call"`) {
		t.Errorf("expected discriminator in %s", data)
	}

	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Parts) != 4 {
		t.Fatalf("expected 4 parts, got %d", len(got.Parts))
	}
	if _, ok := got.Parts[3].(StepLog); !ok {
		t.Errorf("expected StepLog as last part, got %T", got.Parts[3])
	}
	if got.ProcessingTimeMs != 1200 {
		t.Errorf("expected processing time 1200, got %d", got.ProcessingTimeMs)
	}
}

func TestUnmarshalPlainContent(t *testing.T) {
	var m Message
	if err := json.Unmarshal([]byte(`{"role":"user","content":"What is AAPL trading at?"}`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.PlainText() != "What is AAPL trading at?" {
		t.Errorf("unexpected text %q", m.PlainText())
	}
}

func TestUnmarshalUnknownPart(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"role":"user","parts":[{"type":"image","url":"x"}]}`), &m)
	if err == nil {
		t.Fatal("expected error for unknown part type")
	}
}

func TestNormalizeID(t *testing.T) {
	valid := NewID()
	if NormalizeID(valid) != valid {
		t.Error("valid id should be kept")
	}
	for _, bad := range []string{"", "msg-1", "not-a-uuid-at-all-but-36-characters!"} {
		got := NormalizeID(bad)
		if got == bad || !ValidID(got) {
			t.Errorf("NormalizeID(%q) = %q, want fresh uuid", bad, got)
		}
	}
}

func TestTurnsFlattensAssistantParts(t *testing.T) {
	msgs := []Message{
		NewUserMessage("compare AAPL and MSFT"),
		{Role: RoleAssistant, Parts: []Part{
			Text{Text: "Checking both."},
			ToolCall{ID: "a", Name: "finance_search"},
			ToolCall{ID: "b", Name: "finance_search"},
			ToolResult{ToolCallID: "a", Content: "aapl"},
			ToolResult{ToolCallID: "b", Content: "msft"},
			Text{Text: "AAPL is up."},
			StepLog{},
		}},
	}

	turns := Turns(msgs)
	wantRoles := []Role{RoleUser, RoleAssistant, RoleToolResult, RoleToolResult, RoleAssistant}
	if len(turns) != len(wantRoles) {
		t.Fatalf("expected %d turns, got %d: %+v", len(wantRoles), len(turns), turns)
	}
	for i, r := range wantRoles {
		if turns[i].Role != r {
			t.Errorf("turn %d: expected role %q, got %q", i, r, turns[i].Role)
		}
	}
	if len(turns[1].ToolCalls) != 2 {
		t.Errorf("expected 2 tool calls in first assistant turn, got %d", len(turns[1].ToolCalls))
	}
	if turns[4].Content != "AAPL is up." {
		t.Errorf("unexpected final content %q", turns[4].Content)
	}
}

func TestUsageAdd(t *testing.T) {
	u := Usage{InputTokens: 10, OutputTokens: 2}.Add(Usage{InputTokens: 5, OutputTokens: 3})
	if u.InputTokens != 15 || u.OutputTokens != 5 {
		t.Errorf("unexpected usage %+v", u)
	}
}
