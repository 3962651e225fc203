package llm

import (
	"context"
	"testing"

	"github.com/hearthd/hearth/domain/entities"
	"github.com/hearthd/hearth/domain/repositories"
)

func TestEngineIDIsNotBuiltin(t *testing.T) {
	// Conversations can only be started on pipelines whose engine is not
	// the built-in one, so the Gemini agent must register under its own id.
	if EngineID == entities.ConversationEngineBuiltin {
		t.Fatalf("Expected the Gemini engine id to differ from the built-in id %q", entities.ConversationEngineBuiltin)
	}
	if EngineID != "conversation.gemini" {
		t.Errorf("Expected conversation.gemini, got %q", EngineID)
	}
}

func TestMockAgentStandsInForBuiltin(t *testing.T) {
	agent := NewMockAgent("")
	if got := agent.ID(); got != entities.ConversationEngineBuiltin {
		t.Errorf("Expected the mock agent to serve the built-in engine, got %q", got)
	}

	result, err := agent.Converse(context.Background(), repositories.ConversationInput{
		Text:           "turn on the lights",
		ConversationID: "conv-1",
	})
	if err != nil {
		t.Fatalf("Converse failed: %v", err)
	}
	if result.Text != "You said: turn on the lights" {
		t.Errorf("Expected the echoed reply, got %q", result.Text)
	}
	if result.ConversationID != "conv-1" {
		t.Errorf("Expected the conversation id to carry over, got %q", result.ConversationID)
	}
}

func TestValidateGeminiConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GeminiConfig
		wantErr bool
	}{
		{name: "valid", config: GeminiConfig{APIKey: "key"}},
		{name: "missing api key", config: GeminiConfig{}, wantErr: true},
		{name: "temperature out of range", config: GeminiConfig{APIKey: "key", Temperature: 1.5}, wantErr: true},
		{name: "negative topK", config: GeminiConfig{APIKey: "key", TopK: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeminiConfig(tt.config)
			if tt.wantErr && err == nil {
				t.Error("Expected an error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}
