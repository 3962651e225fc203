package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the status of a chat session
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusExpired    SessionStatus = "expired"
	SessionStatusTerminated SessionStatus = "terminated"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// SessionMessage represents a message within a chat session
type SessionMessage struct {
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
	Role      MessageRole `json:"role" bson:"role"`
	Content   string      `json:"content" bson:"content"`

	// AgentID identifies who produced an assistant message, e.g. the
	// satellite that seeded a conversation start message.
	AgentID string `json:"agent_id,omitempty" bson:"agent_id,omitempty"`
}

// Session represents a conversation between a satellite and the hub.
// The session id doubles as the conversation id passed to pipeline runs.
type Session struct {
	ID           string           `json:"id" bson:"_id"`
	DeviceID     string           `json:"device_id" bson:"device_id"`
	CreatedAt    time.Time        `json:"created_at" bson:"created_at"`
	LastActiveAt time.Time        `json:"last_active_at" bson:"last_active_at"`
	ExpiresAt    time.Time        `json:"expires_at" bson:"expires_at"`
	Status       SessionStatus    `json:"status" bson:"status"`
	Messages     []SessionMessage `json:"messages" bson:"messages"`
}

// Chat sessions idle out after five minutes without activity, matching how
// long a voice interaction is allowed to stay resumable.
const sessionTimeout = 5 * time.Minute

// NewSession creates a new session with a freshly minted conversation id
func NewSession(deviceID string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		DeviceID:     deviceID,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(sessionTimeout),
		Status:       SessionStatusActive,
		Messages:     make([]SessionMessage, 0),
	}
}

// AddMessage appends a message and refreshes the session's activity window
func (s *Session) AddMessage(role MessageRole, content string, agentID string) {
	s.Messages = append(s.Messages, SessionMessage{
		Timestamp: time.Now(),
		Role:      role,
		Content:   content,
		AgentID:   agentID,
	})
	s.Touch()
}

// Touch updates the last active timestamp and extends expiration
func (s *Session) Touch() {
	s.LastActiveAt = time.Now()
	s.ExpiresAt = s.LastActiveAt.Add(sessionTimeout)
}

// IsExpired checks whether the session can still be continued
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt) || s.Status != SessionStatusActive
}

// Terminate marks the session as terminated
func (s *Session) Terminate() {
	s.Status = SessionStatusTerminated
	s.LastActiveAt = time.Now()
}

// History returns the conversation messages for agent context
func (s *Session) History() []SessionMessage {
	return s.Messages
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.DeviceID == "" {
		return errors.New("device_id is required")
	}
	switch s.Status {
	case SessionStatusActive, SessionStatusExpired, SessionStatusTerminated:
	default:
		return errors.New("invalid session status")
	}
	return nil
}
