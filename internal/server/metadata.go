package server

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/yanmxa/finsight/internal/provider"
	"github.com/yanmxa/finsight/internal/resolver"
)

const (
	headerLocalInference = "X-Local-Inference"
	headerLocalProvider  = "X-Local-Provider"
	headerLocalModel     = "X-Local-Model"
	headerResponseFormat = "X-Response-Format"
	headerUserID         = "X-User-Id"
	headerSessionID      = "X-Session-Id"
)

// preferences reads the per-request model overrides. Unparseable values are
// ignored so a bad header never fails the request.
func preferences(c echo.Context) resolver.Preferences {
	h := c.Request().Header
	var prefs resolver.Preferences
	if on, ok := parseToggle(h.Get(headerLocalInference)); ok {
		prefs.LocalEnabled = &on
	}
	switch p := provider.Provider(h.Get(headerLocalProvider)); p {
	case provider.ProviderOllama, provider.ProviderLMStudio:
		prefs.LocalProvider = p
	}
	prefs.Model = h.Get(headerLocalModel)
	return prefs
}

// responseFormat prefers the body value over the header.
func responseFormat(c echo.Context, body string) string {
	if body != "" {
		return body
	}
	return c.Request().Header.Get(headerResponseFormat)
}

// parseToggle accepts enabled/disabled as well as the strconv boolean forms.
func parseToggle(v string) (on, ok bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "":
		return false, false
	case "enabled", "on":
		return true, true
	case "disabled", "off":
		return false, true
	}
	on, err := strconv.ParseBool(v)
	return on, err == nil
}
