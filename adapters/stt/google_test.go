package stt_test

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/hearthd/hearth/adapters/stt"
	"github.com/hearthd/hearth/domain/repositories"
)

var (
	_ repositories.SpeechToText = &stt.GoogleSpeechToText{}
	_ repositories.SpeechToText = &stt.MockSpeechToText{}
)

func TestMockSpeechToText(t *testing.T) {
	mock := stt.NewMockSpeechToText("turn on the lights", zaptest.NewLogger(t))

	stream, err := mock.InitTranscribeStreaming(context.Background(), repositories.AudioConfig{
		SampleRate: 16000,
		Encoding:   "LINEAR16",
		Language:   "en-US",
	})
	if err != nil {
		t.Fatalf("Failed to init streaming: %v", err)
	}

	// No audio yet
	if _, err := stream.End(); err == nil {
		t.Error("Expected error when ending a stream with no audio")
	}

	stream, _ = mock.InitTranscribeStreaming(context.Background(), repositories.AudioConfig{})
	if err := stream.Stream([]byte{1, 2, 3}); err != nil {
		t.Fatalf("Failed to stream audio: %v", err)
	}
	text, err := stream.End()
	if err != nil {
		t.Fatalf("Failed to end stream: %v", err)
	}
	if text != "turn on the lights" {
		t.Errorf("Expected canned transcript, got %q", text)
	}
}
