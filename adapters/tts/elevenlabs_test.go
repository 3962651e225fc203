package tts

import (
	"context"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func newTestEngine(t *testing.T) *ElevenLabs {
	t.Helper()
	logger := zaptest.NewLogger(t)

	engine, err := NewElevenLabs(ElevenLabsConfig{APIKey: "test-api-key"}, "/api/tts_proxy", logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return engine
}

func TestNewElevenLabs(t *testing.T) {
	logger := zaptest.NewLogger(t)

	// Without API key
	os.Unsetenv("ELEVEN_LABS_API_KEY")
	config := NewElevenLabsConfigFromEnv()
	_, err := NewElevenLabs(config, "/api/tts_proxy", logger)
	if err == nil {
		t.Error("Expected error when API key is not set")
	}

	// With API key
	os.Setenv("ELEVEN_LABS_API_KEY", "test-api-key")
	defer os.Unsetenv("ELEVEN_LABS_API_KEY")

	config = NewElevenLabsConfigFromEnv()
	engine, err := NewElevenLabs(config, "/api/tts_proxy", logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if engine.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", engine.apiKey)
	}
	if engine.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, engine.voiceID)
	}
}

func TestResolveEngine(t *testing.T) {
	engine := newTestEngine(t)

	if id, ok := engine.ResolveEngine(""); !ok || id != EngineID {
		t.Errorf("Expected empty hint to resolve to %s, got %s (ok=%v)", EngineID, id, ok)
	}
	if id, ok := engine.ResolveEngine(EngineID); !ok || id != EngineID {
		t.Errorf("Expected %s to resolve to itself, got %s (ok=%v)", EngineID, id, ok)
	}
	if _, ok := engine.ResolveEngine("tts.other"); ok {
		t.Error("Expected unknown engine hint to not resolve")
	}
}

func TestCreateStream(t *testing.T) {
	engine := newTestEngine(t)

	stream, err := engine.CreateStream(context.Background(), EngineID, "en-US", map[string]string{"voice": "test-voice"})
	if err != nil {
		t.Fatalf("Failed to create stream: %v", err)
	}

	if stream.Token() == "" {
		t.Error("Expected stream to have a token")
	}
	if !strings.HasPrefix(stream.URL(), "/api/tts_proxy/") {
		t.Errorf("Expected stream URL under the proxy prefix, got %s", stream.URL())
	}
	if !strings.Contains(stream.URL(), stream.Token()) {
		t.Errorf("Expected stream URL to contain token, got %s", stream.URL())
	}

	stream.SetMessage("Hello there")

	registered, ok := engine.Stream(stream.Token())
	if !ok {
		t.Fatal("Expected stream to be registered by token")
	}
	if registered.(*SynthesisStream).Message() != "Hello there" {
		t.Errorf("Expected message 'Hello there', got '%s'", registered.(*SynthesisStream).Message())
	}

	// Unknown engine id
	if _, err := engine.CreateStream(context.Background(), "tts.other", "en-US", nil); err == nil {
		t.Error("Expected error for unknown engine id")
	}
}

func TestGenerateMediaIDDeterministic(t *testing.T) {
	engine := newTestEngine(t)

	options := map[string]string{"voice": "test-voice", "rate": "fast"}
	first := engine.GenerateMediaID("Hello there", EngineID, "en-US", options)
	second := engine.GenerateMediaID("Hello there", EngineID, "en-US", options)

	if first != second {
		t.Errorf("Expected identical ids for identical inputs, got %s and %s", first, second)
	}
	if !strings.HasPrefix(first, "media-source://tts/"+EngineID) {
		t.Errorf("Expected a media-source tts id, got %s", first)
	}

	different := engine.GenerateMediaID("Other message", EngineID, "en-US", options)
	if first == different {
		t.Error("Expected different messages to yield different ids")
	}
}

func TestValidateElevenLabsConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  ElevenLabsConfig
		wantErr bool
	}{
		{"valid", ElevenLabsConfig{APIKey: "key"}, false},
		{"missing api key", ElevenLabsConfig{}, true},
		{"stability out of range", ElevenLabsConfig{APIKey: "key", Stability: 1.5}, true},
		{"clarity out of range", ElevenLabsConfig{APIKey: "key", Clarity: -0.1}, true},
		{"negative chunk size", ElevenLabsConfig{APIKey: "key", ChunkSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateElevenLabsConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateElevenLabsConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
