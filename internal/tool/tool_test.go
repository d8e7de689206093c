package tool

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yanmxa/finsight/internal/config"
	"github.com/yanmxa/finsight/internal/provider/search"
)

type fakeFinance struct {
	got     search.FinanceQuery
	results []search.SearchResult
	err     error
}

func (f *fakeFinance) Search(_ context.Context, q search.FinanceQuery) ([]search.SearchResult, error) {
	f.got = q
	return f.results, f.err
}

func TestDefaultRegistryOrder(t *testing.T) {
	r := Default(config.Default().Tools)
	want := []string{FinanceSearch, SECSearch, EconomicsSearch, WebSearch, FetchURL, CodeExecution, CreateChart}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tool %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestSetFiltersTools(t *testing.T) {
	r := NewRegistry(NewFinanceSearch(&fakeFinance{}), &ChartTool{})
	set := r.Set([]string{FinanceSearch})

	defs := set.Tools()
	if len(defs) != 1 || defs[0].Name != FinanceSearch {
		t.Fatalf("unexpected definitions %+v", defs)
	}
	if defs[0].Parameters == nil {
		t.Error("expected schema parameters")
	}

	_, err := set.Execute(context.Background(), CreateChart, map[string]any{})
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool for excluded tool, got %v", err)
	}
	if len(r.Set(nil).Tools()) != 2 {
		t.Error("nil names should select every tool")
	}
}

func TestDatasetSearch(t *testing.T) {
	fake := &fakeFinance{results: []search.SearchResult{
		{Title: "NVDA Q3", URL: "https://x/nvda", Snippet: "Revenue $35.1B", Date: "2024-11-20"},
	}}
	tool := NewSECSearch(fake)

	out, err := tool.Execute(context.Background(), map[string]any{"query": "nvidia revenue", "max_results": float64(3)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if fake.got.Dataset != search.DatasetFilings || fake.got.NumResults != 3 {
		t.Errorf("unexpected query %+v", fake.got)
	}
	if !strings.Contains(out, "[1] [NVDA Q3](https://x/nvda) (2024-11-20)") || !strings.Contains(out, "Revenue $35.1B") {
		t.Errorf("unexpected output:\n%s", out)
	}

	var pe *ParamError
	if _, err := tool.Execute(context.Background(), map[string]any{}); !errors.As(err, &pe) || pe.Param != "query" {
		t.Errorf("expected query ParamError, got %v", err)
	}

	fake.err = errors.New("503")
	if _, err := tool.Execute(context.Background(), map[string]any{"query": "x"}); err == nil {
		t.Error("expected upstream error")
	}
}

func TestFormatResultsEmpty(t *testing.T) {
	if got := formatResults("tsla", nil); got != "No results found for: tsla" {
		t.Errorf("unexpected %q", got)
	}
}

func TestFetchURLConvertsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><h1>Earnings</h1><p>EPS beat</p></body></html>"))
	}))
	defer srv.Close()

	out, err := (&FetchURLTool{}).Execute(context.Background(), map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "# Earnings") || !strings.Contains(out, "EPS beat") {
		t.Errorf("expected markdown, got %q", out)
	}
}

func TestFetchURLHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := (&FetchURLTool{}).Execute(context.Background(), map[string]any{"url": srv.URL}); err == nil {
		t.Error("expected error for 404")
	}
}

func TestCodeExecution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/execute" || r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req sandboxRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := sandboxResponse{Stdout: "42\n"}
		if strings.Contains(req.Code, "raise") {
			resp = sandboxResponse{ExitCode: 1, Stderr: "ZeroDivisionError"}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	tool := &CodeExecutionTool{BaseURL: srv.URL, APIKey: "key"}
	out, err := tool.Execute(context.Background(), map[string]any{"code": "print(6*7)"})
	if err != nil || out != "42\n" {
		t.Errorf("got %q, %v", out, err)
	}
	_, err = tool.Execute(context.Background(), map[string]any{"code": "raise"})
	if err == nil || !strings.Contains(err.Error(), "ZeroDivisionError") {
		t.Errorf("expected exit code error, got %v", err)
	}
}

func TestChartValidation(t *testing.T) {
	tool := &ChartTool{}
	valid := map[string]any{
		"title": "AAPL close",
		"type":  "line",
		"series": []any{
			map[string]any{"name": "AAPL", "points": []any{
				map[string]any{"x": "2024-01", "y": 185.6},
				map[string]any{"x": "2024-02", "y": 180.8},
			}},
		},
	}
	out, err := tool.Execute(context.Background(), valid)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var chart Chart
	if err := json.Unmarshal([]byte(out), &chart); err != nil {
		t.Fatalf("output is not a chart: %v", err)
	}
	if len(chart.Series) != 1 || len(chart.Series[0].Points) != 2 {
		t.Errorf("unexpected chart %+v", chart)
	}

	tests := []struct {
		name  string
		patch func(map[string]any)
	}{
		{"bad type", func(p map[string]any) { p["type"] = "radar" }},
		{"no series", func(p map[string]any) { p["series"] = []any{} }},
		{"empty points", func(p map[string]any) {
			p["series"] = []any{map[string]any{"name": "x", "points": []any{}}}
		}},
		{"missing title", func(p map[string]any) { delete(p, "title") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := map[string]any{}
			for k, v := range valid {
				p[k] = v
			}
			tt.patch(p)
			var pe *ParamError
			if _, err := tool.Execute(context.Background(), p); !errors.As(err, &pe) {
				t.Errorf("expected ParamError, got %v", err)
			}
		})
	}
}
