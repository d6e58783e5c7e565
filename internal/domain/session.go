package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessagesPerSession is the message ceiling for a single concierge chat.
// The ledger stores whatever count the caller reports and does not reject
// updates past the ceiling; enforcement (disabling input at 25 messages) is
// the chat client's responsibility.
const MaxMessagesPerSession = 25

// ChatSession is one usage-ledger entry: a single concierge conversation.
//
// SessionID is an opaque identifier generated by the client per chat window.
// MessageCount is monotonically non-decreasing for a given session; the
// repository enforces this with GREATEST so a stale or re-ordered update can
// never move the count backwards.
type ChatSession struct {
	ID            uuid.UUID
	SessionID     string
	UserID        uuid.UUID
	MessageCount  int32
	Completed     bool
	StartedAt     time.Time
	LastMessageAt time.Time
}

// AtCeiling returns true once the session has reached the message ceiling.
func (s *ChatSession) AtCeiling() bool {
	return s.MessageCount >= MaxMessagesPerSession
}
