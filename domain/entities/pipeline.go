package entities

import "time"

// PipelineStage identifies one stage of a pipeline run
type PipelineStage string

const (
	PipelineStageWakeWord PipelineStage = "wake_word"
	PipelineStageSTT      PipelineStage = "stt"
	PipelineStageIntent   PipelineStage = "intent"
	PipelineStageTTS      PipelineStage = "tts"
)

// PipelineEventType identifies a pipeline lifecycle event
type PipelineEventType string

const (
	PipelineEventRunStart      PipelineEventType = "run-start"
	PipelineEventRunEnd        PipelineEventType = "run-end"
	PipelineEventWakeWordStart PipelineEventType = "wake_word-start"
	PipelineEventWakeWordEnd   PipelineEventType = "wake_word-end"
	PipelineEventSTTStart      PipelineEventType = "stt-start"
	PipelineEventSTTEnd        PipelineEventType = "stt-end"
	PipelineEventIntentStart   PipelineEventType = "intent-start"
	PipelineEventIntentEnd     PipelineEventType = "intent-end"
	PipelineEventTTSStart      PipelineEventType = "tts-start"
	PipelineEventTTSEnd        PipelineEventType = "tts-end"
	PipelineEventError         PipelineEventType = "error"
)

// PipelineEvent is emitted by a pipeline run as it moves through its stages.
// Events for a given run are delivered in the order the run emits them.
type PipelineEvent struct {
	Type PipelineEventType      `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// STTOutputText extracts the transcribed text from an stt-end event.
// Returns ok=false when the event carries no transcript.
func (e PipelineEvent) STTOutputText() (string, bool) {
	if e.Data == nil {
		return "", false
	}
	output, ok := e.Data["stt_output"].(map[string]interface{})
	if !ok {
		return "", false
	}
	text, ok := output["text"].(string)
	return text, ok
}

// AudioSettings tunes voice activity detection for a pipeline run
type AudioSettings struct {
	// SilenceSeconds is how long the user must be silent before the voice
	// command is considered finished
	SilenceSeconds float64 `json:"silence_seconds"`

	// VadEnabled toggles voice activity detection
	VadEnabled bool `json:"vad_enabled"`
}

// SpeechMetadata describes the audio format of a satellite's stream
type SpeechMetadata struct {
	Language   string `json:"language"`
	Format     string `json:"format"`
	Codec      string `json:"codec"`
	BitRate    int    `json:"bit_rate"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// DefaultSpeechMetadata is the audio format satellites stream in
func DefaultSpeechMetadata() SpeechMetadata {
	return SpeechMetadata{
		Format:     "wav",
		Codec:      "pcm",
		BitRate:    16,
		SampleRate: 16000,
		Channels:   1,
	}
}

// ConversationEngineBuiltin is the id of the hub's built-in conversation
// agent. It cannot originate conversations.
const ConversationEngineBuiltin = "conversation.hearth"

// OptionPreferred is the pipeline selector value meaning "use the preferred
// pipeline" rather than a pipeline picked by name.
const OptionPreferred = "preferred"

// AuthContext is the ambient authorization context a pipeline run executes
// under. Contexts go stale and are re-minted by the orchestrator.
type AuthContext struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Pipeline describes one configured voice pipeline
type Pipeline struct {
	ID                 string `json:"id" bson:"id"`
	Name               string `json:"name" bson:"name"`
	Language           string `json:"language" bson:"language"`
	ConversationEngine string `json:"conversation_engine" bson:"conversation_engine"`
	STTEngine          string `json:"stt_engine" bson:"stt_engine"`
	TTSEngine          string `json:"tts_engine" bson:"tts_engine"`
	TTSLanguage        string `json:"tts_language" bson:"tts_language"`
	TTSVoice           string `json:"tts_voice" bson:"tts_voice"`
	WakeWordEntity     string `json:"wake_word_entity,omitempty" bson:"wake_word_entity,omitempty"`
}
