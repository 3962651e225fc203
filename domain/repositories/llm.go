package repositories

import (
	"context"

	"github.com/hearthd/hearth/domain/entities"
)

// ConversationAgent abstracts the intent-recognition/chat provider behind
// the pipeline's intent stage
type ConversationAgent interface {
	// ID identifies the agent, compared against the pipeline's configured
	// conversation engine
	ID() string

	// Converse takes the recognized text plus conversation history and
	// returns the agent's reply
	Converse(ctx context.Context, input ConversationInput) (ConversationResult, error)
}

// ConversationInput is one turn handed to the conversation agent
type ConversationInput struct {
	Text              string
	ConversationID    string
	DeviceID          string
	Language          string
	History           []entities.SessionMessage
	ExtraSystemPrompt string
}

// ConversationResult is the agent's reply for one turn
type ConversationResult struct {
	Text           string
	ConversationID string
}
