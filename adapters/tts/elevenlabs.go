package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthd/hearth/domain/repositories"
)

const (
	// EngineID is how pipelines refer to this engine
	EngineID = "tts.elevenlabs"

	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM"   // Rachel voice
	defaultChunkSize    = 1024                     // Size of audio chunks to stream
	defaultOutputFormat = "mp3_44100_128"          // Default output format
	defaultModelID      = "eleven_multilingual_v2" // Default model ID
	defaultStability    = 0.5                      // Default voice stability
	defaultClarity      = 0.75                     // Default voice clarity/similarity_boost
)

// ElevenLabsConfig holds configuration for the ElevenLabs engine.
// Required fields:
// - APIKey: Your Eleven Labs API key
// Optional fields fall back to sensible defaults.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	ChunkSize    int
	Stability    float64
	Clarity      float64
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("eleven labs API key is required")
	}
	if config.Stability != 0 && (config.Stability < 0 || config.Stability > 1) {
		return fmt.Errorf("stability must be between 0 and 1, got %f", config.Stability)
	}
	if config.Clarity != 0 && (config.Clarity < 0 || config.Clarity > 1) {
		return fmt.Errorf("clarity must be between 0 and 1, got %f", config.Clarity)
	}
	if config.ChunkSize < 0 {
		return fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	return nil
}

// ElevenLabs implements the TextToSpeech interface using the Eleven Labs
// API. Synthesis is lazy: CreateStream only mints an addressable stream
// handle; audio is produced when the device fetches the stream URL.
type ElevenLabs struct {
	apiKey       string
	apiBaseURL   string
	voiceID      string
	modelID      string
	outputFormat string
	chunkSize    int
	stability    float64
	clarity      float64
	proxyBaseURL string
	logger       *zap.Logger

	mu      sync.Mutex
	streams map[string]*SynthesisStream
}

var _ repositories.TextToSpeech = (*ElevenLabs)(nil)

// NewElevenLabs creates a new Eleven Labs engine. proxyBaseURL is the path
// prefix synthesis stream URLs are served under, e.g. "/api/tts_proxy".
func NewElevenLabs(config ElevenLabsConfig, proxyBaseURL string, logger *zap.Logger) (*ElevenLabs, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := config.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	voiceID := config.VoiceID
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultModelID
	}
	outputFormat := config.OutputFormat
	if outputFormat == "" {
		outputFormat = defaultOutputFormat
	}
	chunkSize := config.ChunkSize
	if chunkSize == 0 {
		chunkSize = defaultChunkSize
	}
	stability := config.Stability
	if stability == 0 {
		stability = defaultStability
	}
	clarity := config.Clarity
	if clarity == 0 {
		clarity = defaultClarity
	}

	return &ElevenLabs{
		apiKey:       config.APIKey,
		apiBaseURL:   apiBaseURL,
		voiceID:      voiceID,
		modelID:      modelID,
		outputFormat: outputFormat,
		chunkSize:    chunkSize,
		stability:    stability,
		clarity:      clarity,
		proxyBaseURL: strings.TrimRight(proxyBaseURL, "/"),
		logger:       logger,
		streams:      make(map[string]*SynthesisStream),
	}, nil
}

// ResolveEngine maps an engine hint to a concrete engine id. An empty hint
// resolves to this engine as the default.
func (e *ElevenLabs) ResolveEngine(hint string) (string, bool) {
	if hint == "" || hint == EngineID {
		return EngineID, true
	}
	return "", false
}

// CreateStream mints a new synthesis stream handle
func (e *ElevenLabs) CreateStream(ctx context.Context, engine string, language string, options map[string]string) (repositories.SynthesisStream, error) {
	if engine != EngineID {
		return nil, fmt.Errorf("unknown TTS engine: %s", engine)
	}

	stream := &SynthesisStream{
		engine:   e,
		token:    uuid.NewString(),
		language: language,
		options:  options,
	}

	e.mu.Lock()
	e.streams[stream.token] = stream
	e.mu.Unlock()

	e.logger.Debug("Created synthesis stream",
		zap.String("token", stream.token),
		zap.String("language", language))
	return stream, nil
}

// Stream returns a previously created stream by token; the TTS proxy route
// uses this to serve the audio.
func (e *ElevenLabs) Stream(token string) (repositories.SynthesisStream, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	stream, ok := e.streams[token]
	if !ok {
		return nil, false
	}
	return stream, true
}

// GenerateMediaID computes a deterministic media-source id for the given
// synthesis inputs. Options are serialized in sorted key order so identical
// inputs always yield the identical id.
func (e *ElevenLabs) GenerateMediaID(message string, engine string, language string, options map[string]string) string {
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

// SynthesisStream is one pending synthesis addressable by token
type SynthesisStream struct {
	engine   *ElevenLabs
	token    string
	language string
	options  map[string]string

	mu      sync.Mutex
	message string
}

var _ repositories.SynthesisStream = (*SynthesisStream)(nil)

// Token returns the stable identifier of this stream
func (s *SynthesisStream) Token() string {
	return s.token
}

// URL returns the playable URL the device fetches the audio from
func (s *SynthesisStream) URL() string {
	return s.engine.proxyBaseURL + "/" + s.token + ".mp3"
}

// SetMessage sets the text to synthesize
func (s *SynthesisStream) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Message returns the text to synthesize
func (s *SynthesisStream) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Synthesize calls the Eleven Labs API and streams the audio back in chunks
func (s *SynthesisStream) Synthesize(ctx context.Context) (<-chan []byte, error) {
	e := s.engine

	voiceSettings := elevenLabsVoiceSettings{
		Stability:       e.stability,
		SimilarityBoost: e.clarity,
	}
	request := elevenLabsRequest{
		Text:          s.Message(),
		ModelID:       e.modelID,
		LanguageCode:  s.language,
		VoiceSettings: voiceSettings,
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	voiceID := e.voiceID
	if voice := s.options["voice"]; voice != "" {
		voiceID = voice
	}

	requestURL := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s",
		e.apiBaseURL, voiceID, e.outputFormat)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API returned error %d: %s", resp.StatusCode, string(errorBody))
	}

	audioChan := make(chan []byte, 16)

	go func() {
		defer close(audioChan)
		defer resp.Body.Close()

		buffer := make([]byte, e.chunkSize)
		totalBytes := 0

		for {
			n, err := resp.Body.Read(buffer)
			if n > 0 {
				totalBytes += n
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])

				select {
				case audioChan <- chunk:
				case <-ctx.Done():
					e.logger.Warn("Context cancelled while streaming audio data",
						zap.String("token", s.token))
					return
				}
			}

			if err == io.EOF {
				e.logger.Debug("Finished streaming audio data",
					zap.String("token", s.token),
					zap.Int("totalBytes", totalBytes))
				return
			}
			if err != nil {
				e.logger.Error("Error reading response body", zap.Error(err))
				return
			}
		}
	}()

	return audioChan, nil
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	LanguageCode  string                  `json:"language_code,omitempty"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

// NewElevenLabsConfigFromEnv creates a new ElevenLabsConfig from
// environment variables
func NewElevenLabsConfigFromEnv() ElevenLabsConfig {
	config := ElevenLabsConfig{
		APIKey:       os.Getenv("ELEVEN_LABS_API_KEY"),
		APIBaseURL:   os.Getenv("ELEVEN_LABS_API_BASE_URL"),
		VoiceID:      os.Getenv("ELEVEN_LABS_VOICE_ID"),
		ModelID:      os.Getenv("ELEVEN_LABS_MODEL_ID"),
		OutputFormat: os.Getenv("ELEVEN_LABS_OUTPUT_FORMAT"),
	}

	if chunkSizeStr := os.Getenv("ELEVEN_LABS_CHUNK_SIZE"); chunkSizeStr != "" {
		if chunkSize, err := strconv.Atoi(chunkSizeStr); err == nil && chunkSize > 0 {
			config.ChunkSize = chunkSize
		}
	}
	if stabilityStr := os.Getenv("ELEVEN_LABS_STABILITY"); stabilityStr != "" {
		if stability, err := strconv.ParseFloat(stabilityStr, 64); err == nil && stability >= 0 && stability <= 1 {
			config.Stability = stability
		}
	}
	if clarityStr := os.Getenv("ELEVEN_LABS_CLARITY"); clarityStr != "" {
		if clarity, err := strconv.ParseFloat(clarityStr, 64); err == nil && clarity >= 0 && clarity <= 1 {
			config.Clarity = clarity
		}
	}

	return config
}
