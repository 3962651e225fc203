package repositories

import (
	"context"

	"github.com/hearthd/hearth/domain/entities"
)

// PipelineInput carries everything one pipeline run needs
type PipelineInput struct {
	// AudioStream yields raw audio chunks from the satellite. The run owns
	// the receiving side; the channel is drained or abandoned on cancel.
	AudioStream <-chan []byte

	// EventCallback receives lifecycle events in emission order
	EventCallback func(entities.PipelineEvent)

	// AuthContext is the authorization context the run executes under
	AuthContext entities.AuthContext

	STTMetadata       entities.SpeechMetadata
	PipelineID        string
	ConversationID    string
	DeviceID          string
	TTSAudioOutput    map[string]string
	WakeWordPhrase    string
	AudioSettings     entities.AudioSettings
	StartStage        entities.PipelineStage
	EndStage          entities.PipelineStage
	ExtraSystemPrompt string
}

// PipelineRunner executes one wake-word/STT/intent/TTS pass over an audio
// stream, emitting events until run-end or error. Run blocks until the run
// finishes and honors ctx cancellation.
type PipelineRunner interface {
	Run(ctx context.Context, input PipelineInput) error
}

// PipelineStore provides access to the configured voice pipelines
type PipelineStore interface {
	// Get returns the pipeline with the given id, or the preferred
	// pipeline when id is empty
	Get(id string) (*entities.Pipeline, error)

	// List returns all configured pipelines
	List() []*entities.Pipeline
}

// StateStore exposes the hub's entity states; the satellite's pipeline and
// VAD sensitivity select entities live here
type StateStore interface {
	Get(entityID string) (string, bool)
	Set(entityID string, state string)
}
