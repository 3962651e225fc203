package llm

import (
	"context"
	"fmt"

	"github.com/hearthd/hearth/domain/entities"
	"github.com/hearthd/hearth/domain/repositories"
)

// MockAgent is a canned conversation agent for development and tests
type MockAgent struct {
	// Reply overrides the generated reply when non-empty
	Reply string
}

var _ repositories.ConversationAgent = (*MockAgent)(nil)

// NewMockAgent creates a mock conversation agent
func NewMockAgent(reply string) *MockAgent {
	return &MockAgent{Reply: reply}
}

// ID identifies this agent as the built-in conversation engine so it can
// stand in for the real one.
func (m *MockAgent) ID() string {
	return entities.ConversationEngineBuiltin
}

// Converse echoes a deterministic reply for the given turn
func (m *MockAgent) Converse(ctx context.Context, input repositories.ConversationInput) (repositories.ConversationResult, error) {
	reply := m.Reply
	if reply == "" {
		reply = fmt.Sprintf("You said: %s", input.Text)
	}
	return repositories.ConversationResult{
		Text:           reply,
		ConversationID: input.ConversationID,
	}, nil
}
