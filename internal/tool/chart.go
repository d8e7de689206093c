package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

var chartTypes = map[string]bool{"line": true, "bar": true, "area": true, "pie": true, "scatter": true}

// ChartTool validates a chart specification for the client to render
type ChartTool struct{}

func (t *ChartTool) Name() string { return CreateChart }
func (t *ChartTool) Description() string {
	return "Create a chart shown inline in the answer. Pass the data points you already retrieved; " +
		"the chart is rendered by the client."
}

func (t *ChartTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"type": map[string]any{
				"type": "string",
				"enum": []string{"line", "bar", "area", "pie", "scatter"},
			},
			"x_label": map[string]any{"type": "string"},
			"y_label": map[string]any{"type": "string"},
			"series": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name": map[string]any{"type": "string"},
						"points": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"x": map[string]any{"type": "string"},
									"y": map[string]any{"type": "number"},
								},
								"required": []string{"x", "y"},
							},
						},
					},
					"required": []string{"name", "points"},
				},
			},
		},
		"required": []string{"title", "type", "series"},
	}
}

// Chart is the validated specification returned to the client.
type Chart struct {
	Title  string   `json:"title"`
	Type   string   `json:"type"`
	XLabel string   `json:"xLabel,omitempty"`
	YLabel string   `json:"yLabel,omitempty"`
	Series []Series `json:"series"`
}

// Series is one named line, bar group or slice set.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Point is a single x/y value.
type Point struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

func (t *ChartTool) Execute(_ context.Context, params map[string]any) (string, error) {
	title, err := requireString(params, "title")
	if err != nil {
		return "", err
	}
	kind, err := requireString(params, "type")
	if err != nil {
		return "", err
	}
	if !chartTypes[kind] {
		return "", &ParamError{Param: "type", Reason: fmt.Sprintf("unsupported chart type %q", kind)}
	}

	raw, err := json.Marshal(params["series"])
	if err != nil {
		return "", &ParamError{Param: "series", Reason: err.Error()}
	}
	var series []Series
	if err := json.Unmarshal(raw, &series); err != nil {
		return "", &ParamError{Param: "series", Reason: err.Error()}
	}
	if len(series) == 0 {
		return "", &ParamError{Param: "series", Reason: "at least one series is required"}
	}
	for i, s := range series {
		if len(s.Points) == 0 {
			return "", &ParamError{Param: "series", Reason: fmt.Sprintf("series %d has no points", i)}
		}
	}

	out, err := json.Marshal(Chart{
		Title:  title,
		Type:   kind,
		XLabel: optString(params, "x_label", ""),
		YLabel: optString(params, "y_label", ""),
		Series: series,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
