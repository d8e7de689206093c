package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/yanmxa/finsight/internal/chat"
	"github.com/yanmxa/finsight/internal/log"
	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/stream"
)

type errorBody struct {
	Error string    `json:"error"`
	Code  chat.Code `json:"code"`
}

type chatBody struct {
	Messages       []message.Message `json:"messages" validate:"required,min=1"`
	SessionID      string            `json:"sessionId"`
	ResponseFormat string            `json:"responseFormat"`
}

type completeBody struct {
	Message      string `json:"message" validate:"required"`
	DisableLocal bool   `json:"disableLocal"`
}

type completeResponse struct {
	Success  bool      `json:"success"`
	Response string    `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
	Code     chat.Code `json:"code,omitempty"`
}

type cardBody struct {
	Symbol string `json:"symbol" validate:"required,max=16"`
}

type cardResponse struct {
	Success bool       `json:"success"`
	Card    *chat.Card `json:"card,omitempty"`
	Error   string     `json:"error,omitempty"`
	Code    chat.Code  `json:"code,omitempty"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "mode": string(s.cfg.Mode)})
}

// chat streams one turn as Server-Sent Events.
// POST /api/chat
func (s *Server) chat(c echo.Context) error {
	var body chatBody
	if err := bindAndValidate(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid request", Code: chat.CodeInvalidRequest})
	}

	st, err := s.svc.Chat(c.Request().Context(), chat.ChatRequest{
		SessionID: body.SessionID,
		UserID:    c.Request().Header.Get(headerUserID),
		Messages:  body.Messages,
		Format:    responseFormat(c, body.ResponseFormat),
		Prefs:     preferences(c),
	})
	if err != nil {
		return writeError(c, err)
	}

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(headerSessionID, st.SessionID)
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	if err := stream.Pipe(c.Request().Context(), c.Response(), st.Events()); err != nil {
		log.Logger().Debug("stream ended early", zap.String("session", st.SessionID), zap.Error(err))
	}
	return nil
}

// complete answers one message without streaming.
// POST /api/complete
func (s *Server) complete(c echo.Context) error {
	var body completeBody
	if err := bindAndValidate(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, completeResponse{Error: "invalid request", Code: chat.CodeInvalidRequest})
	}
	out, err := s.svc.Complete(c.Request().Context(), body.Message, body.DisableLocal)
	if err != nil {
		code := chat.CodeOf(err)
		logFailure(code, err)
		return c.JSON(statusOf(code), completeResponse{Error: chat.Describe(err), Code: code})
	}
	return c.JSON(http.StatusOK, completeResponse{Success: true, Response: out})
}

// cards generates a summary card for a ticker symbol.
// POST /api/cards
func (s *Server) cards(c echo.Context) error {
	var body cardBody
	if err := bindAndValidate(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, cardResponse{Error: "invalid request", Code: chat.CodeInvalidRequest})
	}
	card, err := s.svc.GenerateCard(c.Request().Context(), body.Symbol)
	if err != nil {
		code := chat.CodeOf(err)
		logFailure(code, err)
		return c.JSON(statusOf(code), cardResponse{Error: chat.Describe(err), Code: code})
	}
	return c.JSON(http.StatusOK, cardResponse{Success: true, Card: card})
}

// sessionMessages returns the stored history of a session.
// GET /api/sessions/:id/messages
func (s *Server) sessionMessages(c echo.Context) error {
	id := c.Param("id")
	if !message.ValidID(id) {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "invalid session id", Code: chat.CodeInvalidRequest})
	}
	msgs, err := s.svc.History(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return c.JSON(http.StatusOK, map[string]any{"sessionId": id, "messages": msgs})
}

func bindAndValidate(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return err
	}
	return c.Validate(v)
}

func writeError(c echo.Context, err error) error {
	code := chat.CodeOf(err)
	logFailure(code, err)
	msg := chat.Describe(err)
	if code == chat.CodeInvalidRequest {
		var ce *chat.Error
		if errors.As(err, &ce) {
			msg = "invalid request: " + ce.Message
		}
	}
	return c.JSON(statusOf(code), errorBody{Error: msg, Code: code})
}

func logFailure(code chat.Code, err error) {
	if code == chat.CodeInvalidRequest {
		return
	}
	log.LogError("server", err)
}

// statusOf maps an error code to its HTTP status.
func statusOf(code chat.Code) int {
	switch code {
	case chat.CodeInvalidRequest:
		return http.StatusBadRequest
	case chat.CodeAuthRequired:
		return http.StatusUnauthorized
	case chat.CodeUnparseable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
