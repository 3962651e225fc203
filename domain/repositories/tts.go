package repositories

import "context"

// SynthesisStream is one pending text-to-speech synthesis. The stream is
// addressable by URL before any audio has been produced; synthesis happens
// lazily when the device fetches the URL.
type SynthesisStream interface {
	// Token is the stable identifier of this stream
	Token() string
	// URL is the playable URL the device fetches the audio from
	URL() string
	// SetMessage sets the text to synthesize
	SetMessage(message string)
	// Synthesize produces the audio as a channel of chunks
	Synthesize(ctx context.Context) (<-chan []byte, error)
}

// TextToSpeech abstracts a speech synthesis provider
type TextToSpeech interface {
	// ResolveEngine maps an engine hint from pipeline configuration to a
	// concrete engine id. Returns ok=false when no such engine exists.
	ResolveEngine(hint string) (string, bool)

	// CreateStream requests a new synthesis stream from the engine
	CreateStream(ctx context.Context, engine string, language string, options map[string]string) (SynthesisStream, error)

	// Stream returns a previously created stream by token, ok=false when the
	// token is unknown
	Stream(token string) (SynthesisStream, bool)

	// GenerateMediaID computes a deterministic media-source id for the
	// given synthesis inputs. Identical inputs must yield identical ids.
	GenerateMediaID(message string, engine string, language string, options map[string]string) string
}
