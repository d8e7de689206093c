package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

const (
	maxResponseSize = 5 * 1024 * 1024 // 5MB
	maxFetchChars   = 40000
)

// FetchURLTool fetches a page and returns it as markdown
type FetchURLTool struct {
	Client *http.Client
}

func (t *FetchURLTool) Name() string { return FetchURL }
func (t *FetchURLTool) Description() string {
	return "Fetch a web page (e.g. a press release or article found by search) and return its text as markdown"
}

func (t *FetchURLTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to fetch",
			},
		},
		"required": []string{"url"},
	}
}

func (t *FetchURLTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	urlStr, err := requireString(params, "url")
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		urlStr = "https://" + urlStr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", "finsight/1.0")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	content := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		converter := md.NewConverter("", true, nil)
		if markdown, err := converter.ConvertString(content); err == nil {
			content = markdown
		}
	}

	if r := []rune(content); len(r) > maxFetchChars {
		content = string(r[:maxFetchChars]) + "\n\n[truncated]"
	}
	return content, nil
}
