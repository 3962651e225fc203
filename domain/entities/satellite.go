package entities

// SatelliteState represents the externally visible state of a voice satellite
type SatelliteState string

const (
	// SatelliteStateIdle means the device is waiting for user input, such as
	// a wake word or a button press.
	SatelliteStateIdle SatelliteState = "idle"

	// SatelliteStateListening means the device is streaming a voice command
	// to the hub.
	SatelliteStateListening SatelliteState = "listening"

	// SatelliteStateProcessing means the hub is processing the voice command.
	SatelliteStateProcessing SatelliteState = "processing"

	// SatelliteStateResponding means the device is speaking the response.
	SatelliteStateResponding SatelliteState = "responding"
)

// WakeWord describes one installed wake word model on a satellite
type WakeWord struct {
	ID               string   `json:"id" bson:"id"`
	WakeWord         string   `json:"wake_word" bson:"wake_word"`
	TrainedLanguages []string `json:"trained_languages" bson:"trained_languages"`
}

// SatelliteConfiguration is the wake word capability surface a satellite exposes
type SatelliteConfiguration struct {
	// AvailableWakeWords lists the wake word models installed on the device
	AvailableWakeWords []WakeWord `json:"available_wake_words"`

	// ActiveWakeWords holds the ids of the currently active wake words.
	// Every id must exist in AvailableWakeWords.
	ActiveWakeWords []string `json:"active_wake_words"`

	// MaxActiveWakeWords bounds len(ActiveWakeWords) when non-zero.
	// Zero means no limit.
	MaxActiveWakeWords int `json:"max_active_wake_words"`
}

// Validate checks the configuration invariants
func (c *SatelliteConfiguration) Validate() error {
	available := make(map[string]struct{}, len(c.AvailableWakeWords))
	for _, ww := range c.AvailableWakeWords {
		available[ww.ID] = struct{}{}
	}

	for _, id := range c.ActiveWakeWords {
		if _, ok := available[id]; !ok {
			return &ValidationError{Field: "active_wake_words", Message: "unknown wake word id: " + id}
		}
	}

	if c.MaxActiveWakeWords > 0 && len(c.ActiveWakeWords) > c.MaxActiveWakeWords {
		return &ValidationError{Field: "active_wake_words", Message: "too many active wake words"}
	}

	return nil
}

// MediaSource identifies how an announcement's media id was obtained
type MediaSource string

const (
	MediaSourceURL     MediaSource = "url"
	MediaSourceMediaID MediaSource = "media_id"
	MediaSourceTTS     MediaSource = "tts"
)

// Announcement is a fully resolved, playable announcement.
// It is created once per announce/start-conversation/ask-question call and
// consumed exactly once by the device-specific playback implementation.
type Announcement struct {
	// Message is the text to be spoken, possibly empty
	Message string `json:"message"`

	// MediaID is the resolved, playable URL
	MediaID string `json:"media_id"`

	// OriginalMediaID is the raw media id before resolution, kept for audit
	OriginalMediaID string `json:"original_media_id"`

	// TTSToken identifies the synthesis stream when the media was synthesized
	TTSToken string `json:"tts_token,omitempty"`

	// MediaIDSource records where MediaID came from
	MediaIDSource MediaSource `json:"media_id_source"`

	// PreannounceMediaID is an optional sound to play before the announcement
	PreannounceMediaID string `json:"preannounce_media_id,omitempty"`
}

// Answer is the outcome of an ask-question interaction
type Answer struct {
	// ID is the id of the matched candidate, empty if nothing matched
	ID string `json:"id,omitempty"`

	// Sentence is the raw recognized text
	Sentence string `json:"sentence"`

	// Slots holds named values extracted by the match
	Slots map[string]string `json:"slots,omitempty"`
}

// AnswerCandidate is one caller-supplied answer template set for ask-question
type AnswerCandidate struct {
	ID        string   `json:"id"`
	Sentences []string `json:"sentences"`
}

// ValidationError reports an invalid entity field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
