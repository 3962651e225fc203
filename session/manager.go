package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hearthd/hearth/domain/entities"
	"github.com/hearthd/hearth/domain/repositories"
)

// Manager owns chat session lifecycle: minting conversation ids, validating
// stale ids, and recording conversation history.
type Manager struct {
	repo   repositories.SessionRepository
	logger *zap.Logger
}

// NewManager creates a new session manager
func NewManager(repo repositories.SessionRepository, logger *zap.Logger) *Manager {
	return &Manager{
		repo:   repo,
		logger: logger,
	}
}

// New creates a session with a freshly minted conversation id. It never
// continues a prior session.
func (m *Manager) New(ctx context.Context, deviceID string) (*entities.Session, error) {
	sess := entities.NewSession(deviceID)
	if err := m.repo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.logger.Debug("Session created",
		zap.String("sessionID", sess.ID),
		zap.String("deviceID", deviceID))
	return sess, nil
}

// Resolve returns the session for conversationID if it is still valid, or a
// fresh session otherwise. An empty conversationID always mints a new one.
func (m *Manager) Resolve(ctx context.Context, deviceID string, conversationID string) (*entities.Session, error) {
	if conversationID != "" {
		sess, err := m.repo.GetByID(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up session: %w", err)
		}
		if sess != nil && !sess.IsExpired() {
			sess.Touch()
			if err := m.repo.Update(ctx, sess); err != nil {
				return nil, fmt.Errorf("failed to touch session: %w", err)
			}
			return sess, nil
		}

		m.logger.Debug("Conversation id no longer valid, starting fresh",
			zap.String("conversationID", conversationID))
	}

	return m.New(ctx, deviceID)
}

// AddAssistantMessage seeds the session's history with text spoken by the
// assistant, e.g. a conversation start message.
func (m *Manager) AddAssistantMessage(ctx context.Context, sess *entities.Session, content string, agentID string) error {
	sess.AddMessage(entities.MessageRoleAssistant, content, agentID)
	if err := m.repo.Update(ctx, sess); err != nil {
		return fmt.Errorf("failed to record assistant message: %w", err)
	}
	return nil
}

// AddUserMessage records text spoken by the user
func (m *Manager) AddUserMessage(ctx context.Context, sess *entities.Session, content string) error {
	sess.AddMessage(entities.MessageRoleUser, content, "")
	if err := m.repo.Update(ctx, sess); err != nil {
		return fmt.Errorf("failed to record user message: %w", err)
	}
	return nil
}
