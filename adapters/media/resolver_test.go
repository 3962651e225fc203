package media

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/hearthd/hearth/adapters/tts"
)

func TestIsMediaSourceID(t *testing.T) {
	resolver := NewResolver("http://hub.local:8123", nil, zaptest.NewLogger(t))

	if !resolver.IsMediaSourceID("media-source://media/sounds/ding.mp3") {
		t.Error("Expected media-source id to be recognized")
	}
	if resolver.IsMediaSourceID("http://example.com/audio.mp3") {
		t.Error("Expected plain URL to not be a media-source id")
	}
	if resolver.IsMediaSourceID("/local/audio.mp3") {
		t.Error("Expected relative path to not be a media-source id")
	}
}

func TestResolveLibrary(t *testing.T) {
	resolver := NewResolver("http://hub.local:8123", nil, zaptest.NewLogger(t))
	resolver.Register("sounds/ding.mp3", "/static/sounds/ding.mp3", "audio/mpeg")

	resolved, err := resolver.Resolve(context.Background(), "media-source://media/sounds/ding.mp3")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if resolved.URL != "/static/sounds/ding.mp3" {
		t.Errorf("Expected library URL, got %s", resolved.URL)
	}
	if resolved.MimeType != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %s", resolved.MimeType)
	}

	if _, err := resolver.Resolve(context.Background(), "media-source://media/missing.mp3"); err == nil {
		t.Error("Expected error for unregistered media")
	}
}

func TestResolveTTS(t *testing.T) {
	logger := zaptest.NewLogger(t)
	engine, err := tts.NewElevenLabs(tts.ElevenLabsConfig{APIKey: "test-key"}, "/api/tts_proxy", logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	resolver := NewResolver("http://hub.local:8123", engine, logger)

	mediaID := engine.GenerateMediaID("Hello there", tts.EngineID, "en-US", map[string]string{"voice": "test-voice"})
	resolved, err := resolver.Resolve(context.Background(), mediaID)
	if err != nil {
		t.Fatalf("Failed to resolve tts media id: %v", err)
	}
	if !strings.HasPrefix(resolved.URL, "/api/tts_proxy/") {
		t.Errorf("Expected tts proxy URL, got %s", resolved.URL)
	}

	token := strings.TrimSuffix(strings.TrimPrefix(resolved.URL, "/api/tts_proxy/"), ".mp3")
	stream, ok := engine.Stream(token)
	if !ok {
		t.Fatal("Expected resolved stream to be registered")
	}
	if got := stream.(*tts.SynthesisStream).Message(); got != "Hello there" {
		t.Errorf("Expected message to carry over, got %q", got)
	}
}

func TestResolveTTSWithoutEngine(t *testing.T) {
	resolver := NewResolver("http://hub.local:8123", nil, zaptest.NewLogger(t))

	if _, err := resolver.Resolve(context.Background(), "media-source://tts/tts.any?message=hi"); err == nil {
		t.Error("Expected error when no TTS engine is configured")
	}
}

func TestProcessPlayMediaURL(t *testing.T) {
	resolver := NewResolver("http://hub.local:8123/", nil, zaptest.NewLogger(t))

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"absolute", "http://example.com/a.mp3", "http://example.com/a.mp3"},
		{"relative with slash", "/static/sounds/ding.mp3", "http://hub.local:8123/static/sounds/ding.mp3"},
		{"relative without slash", "static/sounds/ding.mp3", "http://hub.local:8123/static/sounds/ding.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolver.ProcessPlayMediaURL(tt.in); got != tt.want {
				t.Errorf("ProcessPlayMediaURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
