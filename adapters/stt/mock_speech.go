package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hearthd/hearth/domain/repositories"
)

// MockSpeechToText is a canned-transcript provider for development and tests
type MockSpeechToText struct {
	logger *zap.Logger

	// Transcript is returned by every stream once audio has been received
	Transcript string
}

// NewMockSpeechToText creates a mock speech-to-text provider
func NewMockSpeechToText(transcript string, logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{logger: logger, Transcript: transcript}
}

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.logger.Debug("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &mockStream{transcript: s.Transcript}, nil
}

// TranscribeAudio returns the canned transcript for any non-empty clip
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	stream, err := s.InitTranscribeStreaming(ctx, config)
	if err != nil {
		return "", err
	}
	if err := stream.Stream(audioData); err != nil {
		return "", err
	}
	return stream.End()
}

type mockStream struct {
	transcript    string
	audioReceived bool
}

func (m *mockStream) Stream(data []byte) error {
	if len(data) > 0 {
		m.audioReceived = true
	}
	return nil
}

func (m *mockStream) End() (string, error) {
	if !m.audioReceived {
		return "", fmt.Errorf("no audio data received")
	}
	return m.transcript, nil
}
