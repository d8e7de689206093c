package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yanmxa/finsight/internal/message"
)

// Adapter reconstructs history before a turn and persists the turn's
// messages around it.
type Adapter struct {
	store Store
	now   func() time.Time
}

// NewAdapter creates an adapter over store.
func NewAdapter(store Store) *Adapter {
	return &Adapter{store: store, now: time.Now}
}

// Load returns the stored messages of a session, empty when it is new.
func (a *Adapter) Load(ctx context.Context, sessionID string) ([]message.Message, error) {
	msgs, err := a.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return msgs, nil
}

// AppendUserTurn persists the user's message before inference, creating the
// session on first use. The stored message is returned.
func (a *Adapter) AppendUserTurn(ctx context.Context, sessionID, userID string, msg message.Message) (message.Message, error) {
	msg.ID = message.NormalizeID(msg.ID)
	msg.Role = message.RoleUser
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = a.now()
	}

	if err := a.touch(ctx, sessionID, userID, msg.PlainText()); err != nil {
		return msg, err
	}
	if err := a.store.AppendMessage(ctx, sessionID, msg); err != nil {
		return msg, fmt.Errorf("append user message: %w", err)
	}
	return msg, nil
}

// AppendAssistantTurn persists the final assistant message after streaming.
// The step log is attached as a trailing part only when a tool was invoked.
func (a *Adapter) AppendAssistantTurn(ctx context.Context, sessionID string, msg message.Message,
	steps []message.StepEntry, processingTime time.Duration) (message.Message, error) {
	msg.ID = message.NormalizeID(msg.ID)
	msg.Role = message.RoleAssistant
	msg.ProcessingTimeMs = processingTime.Milliseconds()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = a.now()
	}
	if msg.HasToolCalls() && len(steps) > 0 {
		parts := make([]message.Part, 0, len(msg.Parts)+1)
		parts = append(parts, msg.Parts...)
		msg.Parts = append(parts, message.StepLog{Entries: steps})
	}

	if err := a.touch(ctx, sessionID, "", ""); err != nil {
		return msg, err
	}
	if err := a.store.AppendMessage(ctx, sessionID, msg); err != nil {
		return msg, fmt.Errorf("append assistant message: %w", err)
	}
	return msg, nil
}

// touch creates the session if needed and bumps its last activity.
func (a *Adapter) touch(ctx context.Context, sessionID, userID, firstText string) error {
	now := a.now()
	s, err := a.store.GetSession(ctx, sessionID)
	switch {
	case errors.Is(err, ErrNotFound):
		s = &Session{
			ID:        sessionID,
			UserID:    userID,
			Title:     GenerateTitle(firstText),
			CreatedAt: now,
		}
	case err != nil:
		return fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if s.UserID == "" {
		s.UserID = userID
	}
	s.LastActivityAt = now
	if err := a.store.PutSession(ctx, s); err != nil {
		return fmt.Errorf("put session %s: %w", sessionID, err)
	}
	return nil
}
