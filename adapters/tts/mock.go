package tts

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthd/hearth/domain/repositories"
)

// MockEngineID is how pipelines refer to the mock engine
const MockEngineID = "tts.mock"

// mockAudio is the canned chunk every mock stream produces
var mockAudio = []byte("mock-audio")

// MockTextToSpeech is a canned synthesis provider for development and
// tests. Streams are addressable like the real engine's but produce a
// fixed audio chunk instead of calling out.
type MockTextToSpeech struct {
	proxyBaseURL string
	logger       *zap.Logger

	mu      sync.Mutex
	streams map[string]*MockStream
}

var _ repositories.TextToSpeech = (*MockTextToSpeech)(nil)

// NewMockTextToSpeech creates a mock synthesis provider. proxyBaseURL is
// the path prefix stream URLs are served under, e.g. "/api/tts_proxy".
func NewMockTextToSpeech(proxyBaseURL string, logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{
		proxyBaseURL: strings.TrimRight(proxyBaseURL, "/"),
		logger:       logger,
		streams:      make(map[string]*MockStream),
	}
}

// ResolveEngine maps an engine hint to a concrete engine id. An empty hint
// resolves to this engine as the default.
func (m *MockTextToSpeech) ResolveEngine(hint string) (string, bool) {
	if hint == "" || hint == MockEngineID {
		return MockEngineID, true
	}
	return "", false
}

// CreateStream mints a new synthesis stream handle
func (m *MockTextToSpeech) CreateStream(ctx context.Context, engine string, language string, options map[string]string) (repositories.SynthesisStream, error) {
	if engine != MockEngineID {
		return nil, fmt.Errorf("unknown TTS engine: %s", engine)
	}

	stream := &MockStream{
		engine: m,
		token:  uuid.NewString(),
	}

	m.mu.Lock()
	m.streams[stream.token] = stream
	m.mu.Unlock()

	m.logger.Debug("Created mock synthesis stream",
		zap.String("token", stream.token),
		zap.String("language", language))
	return stream, nil
}

// Stream returns a previously created stream by token
func (m *MockTextToSpeech) Stream(token string) (repositories.SynthesisStream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stream, ok := m.streams[token]
	if !ok {
		return nil, false
	}
	return stream, true
}

// GenerateMediaID computes a deterministic media-source id for the given
// synthesis inputs. Options are serialized in sorted key order so identical
// inputs always yield the identical id.
func (m *MockTextToSpeech) GenerateMediaID(message string, engine string, language string, options map[string]string) string {
	values := url.Values{}
	values.Set("message", message)
	if language != "" {
		values.Set("language", language)
	}

	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		values.Set(key, options[key])
	}

	return "media-source://tts/" + engine + "?" + values.Encode()
}

// MockStream is one pending mock synthesis addressable by token
type MockStream struct {
	engine *MockTextToSpeech
	token  string

	mu      sync.Mutex
	message string
}

var _ repositories.SynthesisStream = (*MockStream)(nil)

// Token returns the stable identifier of this stream
func (s *MockStream) Token() string {
	return s.token
}

// URL returns the playable URL the device fetches the audio from
func (s *MockStream) URL() string {
	return s.engine.proxyBaseURL + "/" + s.token + ".mp3"
}

// SetMessage sets the text to synthesize
func (s *MockStream) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Message returns the text to synthesize
func (s *MockStream) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Synthesize returns the canned audio chunk and closes the channel
func (s *MockStream) Synthesize(ctx context.Context) (<-chan []byte, error) {
	audioChan := make(chan []byte, 1)
	audioChan <- mockAudio
	close(audioChan)
	return audioChan, nil
}
