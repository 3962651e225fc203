package satellite

import "errors"

// ErrSatelliteBusy is returned when a conflicting foreground operation
// (announce, start-conversation, ask-question, or a pending wake word
// interception) is already in progress. The caller may retry later; the
// satellite never retries on its own.
var ErrSatelliteBusy = errors.New("satellite is busy")

// ErrNoAnswer is returned by AskQuestion when the pipeline run finished
// without capturing any response text.
var ErrNoAnswer = errors.New("no answer from question")

// ErrWakeWordInterceptUnsupported rejects a pending wake word interception
// when the satellite pushes a pipeline starting at the wake word stage;
// only on-device wake words can be intercepted.
var ErrWakeWordInterceptUnsupported = errors.New("only on-device wake words currently supported")

// ErrNoWakeWordPhrase rejects a pending wake word interception when the
// satellite reported a detection without a phrase.
var ErrNoWakeWordPhrase = errors.New("no wake word phrase provided")

// ConfigurationError indicates the satellite's pipeline wiring is unusable
// for the requested operation, e.g. an unresolvable TTS engine or a
// conversation engine that cannot originate conversations.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// EntityNotFoundError indicates a configured selector entity does not exist
// in the state store. This is satellite miswiring, not a caller mistake.
type EntityNotFoundError struct {
	EntityID string
	Kind     string
}

func (e *EntityNotFoundError) Error() string {
	return e.Kind + " entity not found: " + e.EntityID
}
