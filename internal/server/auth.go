package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/yanmxa/finsight/internal/chat"
)

// requireAuth rejects requests without a bearer token in hosted mode. Token
// verification belongs to the upstream auth provider; only presence is
// checked here.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.cfg.IsHosted() {
			return next(c)
		}
		if bearerToken(c.Request().Header.Get(echo.HeaderAuthorization)) == "" {
			return c.JSON(http.StatusUnauthorized, errorBody{Error: "auth required", Code: chat.CodeAuthRequired})
		}
		return next(c)
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
