package llm

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/hearthd/hearth/domain/entities"
	"github.com/hearthd/hearth/domain/repositories"
)

// EngineID identifies the Gemini conversation engine in pipeline
// definitions.
const EngineID = "conversation.gemini"

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.7
	defaultTopP           = 0.95
	defaultTopK           = 40
	defaultMaxTokens      = 256
	defaultTimeoutSeconds = 30

	// Replies are spoken aloud, so keep them short and plain
	systemPrompt = "You are Hearth, a voice assistant for a smart home. " +
		"Answer briefly in one or two spoken sentences without markup or lists."
)

// GeminiConfig holds configuration for the Gemini conversation agent.
// Required fields:
// - APIKey: Your Google AI API key
// Optional fields fall back to sensible defaults.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	TimeoutSeconds  int
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}
	if config.TopP != 0 && (config.TopP < 0 || config.TopP > 1) {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}
	if config.TopK < 0 {
		return fmt.Errorf("topK must be positive, got %f", config.TopK)
	}
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}
	return nil
}

// NewGeminiConfigFromEnv creates a new GeminiConfig from environment
// variables
func NewGeminiConfigFromEnv() GeminiConfig {
	config := GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_MODEL"),
	}

	if temperatureStr := os.Getenv("GEMINI_TEMPERATURE"); temperatureStr != "" {
		if temperature, err := strconv.ParseFloat(temperatureStr, 32); err == nil {
			config.Temperature = float32(temperature)
		}
	}
	if maxTokensStr := os.Getenv("GEMINI_MAX_OUTPUT_TOKENS"); maxTokensStr != "" {
		if maxTokens, err := strconv.Atoi(maxTokensStr); err == nil && maxTokens > 0 {
			config.MaxOutputTokens = maxTokens
		}
	}
	if timeoutStr := os.Getenv("GEMINI_TIMEOUT_SECONDS"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil && timeout > 0 {
			config.TimeoutSeconds = timeout
		}
	}

	return config
}

// GeminiAgent is a conversation agent backed by Google's Gemini API. It
// serves the pipeline's intent stage.
type GeminiAgent struct {
	client          *genai.Client
	logger          *zap.Logger
	model           string
	temperature     float32
	topP            float32
	topK            float32
	maxOutputTokens int
	timeout         time.Duration
}

var _ repositories.ConversationAgent = (*GeminiAgent)(nil)

// NewGeminiAgent creates the Gemini conversation agent
func NewGeminiAgent(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiAgent, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultModel
	}
	temperature := config.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	topP := config.TopP
	if topP == 0 {
		topP = defaultTopP
	}
	topK := config.TopK
	if topK == 0 {
		topK = defaultTopK
	}
	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
	}
	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	logger.Info("Gemini conversation agent ready", zap.String("model", model))

	return &GeminiAgent{
		client:          client,
		logger:          logger,
		model:           model,
		temperature:     temperature,
		topP:            topP,
		topK:            topK,
		maxOutputTokens: maxOutputTokens,
		timeout:         time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// ID returns the engine id pipelines use to select this agent
func (g *GeminiAgent) ID() string {
	return EngineID
}

// Converse sends one user turn with the session history and returns the
// agent's spoken reply.
func (g *GeminiAgent) Converse(ctx context.Context, input repositories.ConversationInput) (repositories.ConversationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := historyToContents(input.History)
	contents = append(contents, genai.NewContentFromText(input.Text, genai.RoleUser))

	instruction := systemPrompt
	if input.Language != "" {
		instruction += " Reply in the language with code " + input.Language + "."
	}
	if input.ExtraSystemPrompt != "" {
		instruction += "\n" + input.ExtraSystemPrompt
	}

	temperature := g.temperature
	topP := g.topP
	topK := g.topK
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		Temperature:       &temperature,
		TopP:              &topP,
		TopK:              &topK,
		MaxOutputTokens:   int32(g.maxOutputTokens),
	})
	if err != nil {
		return repositories.ConversationResult{}, fmt.Errorf("gemini request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return repositories.ConversationResult{}, fmt.Errorf("gemini returned an empty reply")
	}

	g.logger.Debug("Gemini turn completed",
		zap.String("conversationID", input.ConversationID),
		zap.Int("historyLength", len(input.History)))

	return repositories.ConversationResult{
		Text:           text,
		ConversationID: input.ConversationID,
	}, nil
}

// historyToContents converts session messages to the Gemini content format.
// System messages ride along as user turns since Gemini keeps the system
// instruction separate.
func historyToContents(history []entities.SessionMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, message := range history {
		var role genai.Role = genai.RoleUser
		if message.Role == entities.MessageRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(message.Content, role))
	}
	return contents
}
