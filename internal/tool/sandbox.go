package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// CodeExecutionTool runs Python in the remote sandbox service
type CodeExecutionTool struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func (t *CodeExecutionTool) Name() string { return CodeExecution }
func (t *CodeExecutionTool) Description() string {
	return "Run Python code in a sandbox for calculations: growth rates, ratios, DCF models, statistics. " +
		"Print the values you need; only stdout is returned."
}

func (t *CodeExecutionTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "Python source to execute",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "One line describing what the code computes",
			},
		},
		"required": []string{"code"},
	}
}

type sandboxRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type sandboxResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error"`
}

func (t *CodeExecutionTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	code, err := requireString(params, "code")
	if err != nil {
		return "", err
	}
	if t.BaseURL == "" {
		return "", fmt.Errorf("code execution sandbox is not configured")
	}

	data, err := json.Marshal(sandboxRequest{Language: "python", Code: code})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(t.BaseURL, "/")+"/execute", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.APIKey)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sandbox request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("sandbox HTTP %d: %s", resp.StatusCode, string(body))
	}

	var out sandboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse sandbox response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("execution failed: %s", out.Error)
	}
	if out.ExitCode != 0 {
		return "", fmt.Errorf("exit code %d: %s", out.ExitCode, strings.TrimSpace(out.Stderr))
	}
	if strings.TrimSpace(out.Stdout) == "" {
		return "(no output; print the values you need)", nil
	}
	return out.Stdout, nil
}
