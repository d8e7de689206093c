// Package session persists conversations: a narrow Store interface over the
// storage engines and the Adapter the chat service calls around each turn.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/yanmxa/finsight/internal/message"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Session is the record of one conversation.
type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId,omitempty"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
}

// Store is the storage engine interface. Messages of a session are returned
// in append order.
type Store interface {
	GetSession(ctx context.Context, id string) (*Session, error)
	PutSession(ctx context.Context, s *Session) error
	ListMessages(ctx context.Context, sessionID string) ([]message.Message, error)
	AppendMessage(ctx context.Context, sessionID string, m message.Message) error
	Close() error
}
