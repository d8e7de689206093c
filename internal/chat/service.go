// Package chat orchestrates a request: model selection, history,
// the reasoning loop, streaming and persistence.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanmxa/finsight/internal/client"
	"github.com/yanmxa/finsight/internal/config"
	"github.com/yanmxa/finsight/internal/core"
	"github.com/yanmxa/finsight/internal/log"
	"github.com/yanmxa/finsight/internal/message"
	"github.com/yanmxa/finsight/internal/resolver"
	"github.com/yanmxa/finsight/internal/session"
	"github.com/yanmxa/finsight/internal/stream"
	"github.com/yanmxa/finsight/internal/system"
	"github.com/yanmxa/finsight/internal/tool"
)

// failEmitTimeout bounds delivery of the error event once the turn's own
// context is done.
const failEmitTimeout = 2 * time.Second

// Resolver selects the model for a request.
type Resolver interface {
	Resolve(ctx context.Context, prefs resolver.Preferences) (*resolver.Selection, error)
}

// Service serves the chat, single-shot and card entry points.
type Service struct {
	cfg      *config.Config
	resolver Resolver
	sessions *session.Adapter
	tools    *tool.Registry
}

// NewService wires a service.
func NewService(cfg *config.Config, r Resolver, sessions *session.Adapter, tools *tool.Registry) *Service {
	return &Service{cfg: cfg, resolver: r, sessions: sessions, tools: tools}
}

// ChatRequest is one streamed chat turn.
type ChatRequest struct {
	SessionID string
	UserID    string
	// Messages is the client's view of the conversation; the last one is
	// the new user message.
	Messages []message.Message
	Format   string
	Prefs    resolver.Preferences
}

// Stream is a running chat turn.
type Stream struct {
	SessionID string
	Selection *resolver.Selection
	mux       *stream.Mux
	done      chan struct{}
}

// Events returns the turn's events. The channel closes when the turn ends.
func (s *Stream) Events() <-chan stream.Event { return s.mux.Events() }

// Done is closed after the post-completion hook has run.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Validate checks the shape of a chat request.
func (r *ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return invalid("messages must not be empty")
	}
	last := r.Messages[len(r.Messages)-1]
	if last.Role != message.RoleUser {
		return invalid("last message must be a user message")
	}
	if strings.TrimSpace(last.PlainText()) == "" {
		return invalid("last message has no text")
	}
	return nil
}

// Chat validates the request, selects a model and persists the user turn
// synchronously, then runs the loop in the background. Failures before
// streaming are returned; later ones arrive as error events.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()
	if req.SessionID == "" {
		req.SessionID = message.NewID()
	}

	sel, err := s.resolver.Resolve(ctx, req.Prefs)
	if err != nil {
		return nil, err
	}
	profile := system.Select(req.Format)

	history, err := s.history(ctx, req)
	if err != nil {
		return nil, err
	}

	log.Logger().Info("chat turn",
		zap.String("session", req.SessionID),
		zap.String("model", sel.Label()),
		zap.String("format", string(profile.Format)),
		zap.Int("history", len(history)),
	)

	st := &Stream{
		SessionID: req.SessionID,
		Selection: sel,
		mux:       stream.NewMux(s.cfg.Chat.StreamBuffer, sel.Reasoning),
		done:      make(chan struct{}),
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Chat.Timeout)
	go func() {
		defer close(st.done)
		defer cancel()
		s.runTurn(runCtx, st, history, profile, started)
	}()
	return st, nil
}

// history loads the stored conversation and persists the new user message.
// A session without stored messages adopts the client's earlier messages as
// context.
func (s *Service) history(ctx context.Context, req ChatRequest) ([]message.Message, error) {
	stored, err := s.sessions.Load(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		stored = append(stored, req.Messages[:len(req.Messages)-1]...)
	}

	user, err := s.sessions.AppendUserTurn(ctx, req.SessionID, req.UserID, req.Messages[len(req.Messages)-1])
	if err != nil {
		return nil, err
	}
	return append(stored, user), nil
}

func (s *Service) runTurn(ctx context.Context, st *Stream, history []message.Message, profile system.Profile, started time.Time) {
	sel := st.Selection
	loop := &core.Loop{Client: &client.Client{
		Provider:  sel.Provider,
		Model:     sel.Model,
		MaxTokens: s.cfg.Chat.MaxTokens,
		Reasoning: sel.Reasoning,
	}}

	res, err := loop.Run(ctx, history, core.Options{
		MaxRounds:     s.cfg.Chat.MaxRounds,
		MaxConcurrent: s.cfg.MaxConcurrentTools,
		ToolTimeout:   s.cfg.Tools.Timeout,
		Tools:         s.tools.Set(profile.Tools),
		System:        profile.Prompt,
		Observer:      st.mux,
	})
	if err != nil {
		log.LogError("chat", err)
		if errors.Is(err, context.Canceled) {
			// client went away; nothing left to tell it
			st.mux.Close()
			return
		}
		failCtx, cancelFail := context.WithTimeout(context.WithoutCancel(ctx), failEmitTimeout)
		defer cancelFail()
		st.mux.Fail(failCtx, string(CodeOf(err)), Describe(err))
		return
	}

	elapsed := time.Since(started)
	msg := message.Message{ID: message.NewID(), Parts: res.Parts}
	st.mux.Finish(ctx, stream.FinishInfo{
		MessageID:        msg.ID,
		StopReason:       res.StopReason,
		Model:            sel.Label(),
		Rounds:           res.Rounds,
		ProcessingTimeMs: elapsed.Milliseconds(),
		Usage:            res.Tokens,
	})

	steps := st.mux.Steps()
	log.Logger().Info("chat turn done",
		zap.String("session", st.SessionID),
		zap.String("stop", res.StopReason),
		zap.Int("rounds", res.Rounds),
		zap.Int("tokens", res.Tokens.TotalTokens),
		log.StepsField(steps),
	)
	s.afterTurn(context.WithoutCancel(ctx), st.SessionID, msg, steps, elapsed)
}

// afterTurn is the post-completion hook. The response has already been
// streamed, so persistence failures are only logged.
func (s *Service) afterTurn(ctx context.Context, sessionID string, msg message.Message, steps []message.StepEntry, elapsed time.Duration) {
	if _, err := s.sessions.AppendAssistantTurn(ctx, sessionID, msg, steps, elapsed); err != nil {
		log.LogError("session", err)
	}
}

// History returns the stored messages of a session.
func (s *Service) History(ctx context.Context, sessionID string) ([]message.Message, error) {
	return s.sessions.Load(ctx, sessionID)
}

// Complete answers a single message without streaming or persistence.
func (s *Service) Complete(ctx context.Context, text string, disableLocal bool) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", invalid("message must not be empty")
	}
	prefs := resolver.Preferences{}
	if disableLocal {
		off := false
		prefs.LocalEnabled = &off
	}
	res, err := s.singleShot(ctx, prefs, system.Select(string(system.FormatExternal)), text)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Content), nil
}

// GenerateCard researches symbol and parses the model's card JSON.
func (s *Service) GenerateCard(ctx context.Context, symbol string) (*Card, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, invalid("symbol must not be empty")
	}
	res, err := s.singleShot(ctx, resolver.Preferences{}, system.CardProfile(), system.CardPrompt(symbol))
	if err != nil {
		return nil, err
	}
	return ParseCard(res.Content)
}

func (s *Service) singleShot(ctx context.Context, prefs resolver.Preferences, profile system.Profile, text string) (*core.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Completion.Timeout)
	defer cancel()

	sel, err := s.resolver.Resolve(ctx, prefs)
	if err != nil {
		return nil, err
	}
	loop := &core.Loop{Client: &client.Client{
		Provider:  sel.Provider,
		Model:     sel.Model,
		MaxTokens: s.cfg.Completion.MaxTokens,
	}}
	res, err := loop.Run(ctx, []message.Message{message.NewUserMessage(text)}, core.Options{
		MaxRounds:     s.cfg.Completion.MaxRounds,
		MaxConcurrent: s.cfg.MaxConcurrentTools,
		ToolTimeout:   s.cfg.Tools.Timeout,
		Tools:         s.tools.Set(profile.Tools),
		System:        profile.Prompt,
	})
	if err != nil {
		return nil, err
	}
	log.Logger().Info("single-shot completed",
		zap.String("model", sel.Label()),
		zap.String("stop", res.StopReason),
		zap.Int("rounds", res.Rounds),
		zap.Int("tokens", res.Tokens.TotalTokens),
	)
	return res, nil
}
