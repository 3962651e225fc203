package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hearthd/hearth/domain/entities"
	"github.com/hearthd/hearth/domain/repositories"
	"github.com/hearthd/hearth/session"
)

// Stage execution order of a full run
var stageOrder = map[entities.PipelineStage]int{
	entities.PipelineStageWakeWord: 0,
	entities.PipelineStageSTT:      1,
	entities.PipelineStageIntent:   2,
	entities.PipelineStageTTS:      3,
}

// ErrNoTextRecognized is returned when the STT stage produced no transcript
var ErrNoTextRecognized = errors.New("no text recognized")

// Runner executes voice pipeline runs over pluggable STT, conversation and
// TTS providers. One Runner serves all satellites; each Run call is one
// cancellable pass.
type Runner struct {
	stt       repositories.SpeechToText
	agents    map[string]repositories.ConversationAgent
	tts       repositories.TextToSpeech
	pipelines repositories.PipelineStore
	sessions  *session.Manager
	logger    *zap.Logger
}

// NewRunner creates a pipeline runner
func NewRunner(
	stt repositories.SpeechToText,
	agents []repositories.ConversationAgent,
	tts repositories.TextToSpeech,
	pipelines repositories.PipelineStore,
	sessions *session.Manager,
	logger *zap.Logger,
) *Runner {
	byID := make(map[string]repositories.ConversationAgent, len(agents))
	for _, agent := range agents {
		byID[agent.ID()] = agent
	}
	return &Runner{
		stt:       stt,
		agents:    byID,
		tts:       tts,
		pipelines: pipelines,
		sessions:  sessions,
		logger:    logger,
	}
}

// Run executes one pipeline pass from StartStage through EndStage, emitting
// lifecycle events in order until run-end or error. It blocks until the run
// finishes and returns ctx.Err() when preempted.
func (r *Runner) Run(ctx context.Context, input repositories.PipelineInput) error {
	pipeline, err := r.pipelines.Get(input.PipelineID)
	if err != nil {
		return err
	}

	emit := func(eventType entities.PipelineEventType, data map[string]interface{}) {
		input.EventCallback(entities.PipelineEvent{Type: eventType, Data: data})
	}

	emit(entities.PipelineEventRunStart, map[string]interface{}{
		"pipeline": pipeline.ID,
		"language": pipeline.Language,
	})

	runStage := func(stage entities.PipelineStage) bool {
		return stageOrder[input.StartStage] <= stageOrder[stage] &&
			stageOrder[stage] <= stageOrder[input.EndStage]
	}

	if runStage(entities.PipelineStageWakeWord) {
		if err := r.wakeWordStage(ctx, input, emit); err != nil {
			return r.fail(emit, "wake-word-detection-failed", err)
		}
	}

	var transcript string
	if runStage(entities.PipelineStageSTT) {
		transcript, err = r.sttStage(ctx, pipeline, input, emit)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return r.fail(emit, "stt-stream-failed", err)
		}
	}

	var reply string
	if runStage(entities.PipelineStageIntent) {
		reply, err = r.intentStage(ctx, pipeline, input, transcript, emit)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return r.fail(emit, "intent-failed", err)
		}
	}

	if runStage(entities.PipelineStageTTS) {
		if err := r.ttsStage(ctx, pipeline, input, reply, emit); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return r.fail(emit, "tts-failed", err)
		}
	}

	emit(entities.PipelineEventRunEnd, nil)
	return nil
}

// wakeWordStage handles an on-device wake word detection. The hub runs no
// wake engine of its own; the satellite reports the detected phrase.
func (r *Runner) wakeWordStage(
	ctx context.Context,
	input repositories.PipelineInput,
	emit func(entities.PipelineEventType, map[string]interface{}),
) error {
	emit(entities.PipelineEventWakeWordStart, nil)

	if err := ctx.Err(); err != nil {
		return err
	}
	if input.WakeWordPhrase == "" {
		return errors.New("no wake word phrase reported by satellite")
	}

	emit(entities.PipelineEventWakeWordEnd, map[string]interface{}{
		"wake_word_output": map[string]interface{}{
			"wake_word_phrase": input.WakeWordPhrase,
		},
	})
	return nil
}

// sttStage streams the satellite's audio into the STT provider until the
// stream ends, then emits the final transcript.
func (r *Runner) sttStage(
	ctx context.Context,
	pipeline *entities.Pipeline,
	input repositories.PipelineInput,
	emit func(entities.PipelineEventType, map[string]interface{}),
) (string, error) {
	emit(entities.PipelineEventSTTStart, map[string]interface{}{
		"engine": pipeline.STTEngine,
	})

	stream, err := r.stt.InitTranscribeStreaming(ctx, repositories.AudioConfig{
		SampleRate: input.STTMetadata.SampleRate,
		Encoding:   "LINEAR16",
		Language:   pipeline.Language,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start transcription: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case chunk, ok := <-input.AudioStream:
			if !ok {
				text, err := stream.End()
				if err != nil {
					return "", fmt.Errorf("transcription failed: %w", err)
				}
				if text == "" {
					return "", ErrNoTextRecognized
				}

				r.logger.Debug("Transcription completed",
					zap.String("deviceID", input.DeviceID),
					zap.String("text", text))

				emit(entities.PipelineEventSTTEnd, map[string]interface{}{
					"stt_output": map[string]interface{}{
						"text": text,
					},
				})
				return text, nil
			}
			if err := stream.Stream(chunk); err != nil {
				return "", fmt.Errorf("failed to stream audio: %w", err)
			}
		}
	}
}

// intentStage hands the transcript to the pipeline's conversation agent and
// records both sides in the chat session.
func (r *Runner) intentStage(
	ctx context.Context,
	pipeline *entities.Pipeline,
	input repositories.PipelineInput,
	transcript string,
	emit func(entities.PipelineEventType, map[string]interface{}),
) (string, error) {
	emit(entities.PipelineEventIntentStart, map[string]interface{}{
		"engine": pipeline.ConversationEngine,
	})

	agent, ok := r.agents[pipeline.ConversationEngine]
	if !ok {
		return "", fmt.Errorf("conversation engine %s not found", pipeline.ConversationEngine)
	}

	sess, err := r.sessions.Resolve(ctx, input.DeviceID, input.ConversationID)
	if err != nil {
		return "", err
	}
	history := sess.History()
	if err := r.sessions.AddUserMessage(ctx, sess, transcript); err != nil {
		return "", err
	}

	result, err := agent.Converse(ctx, repositories.ConversationInput{
		Text:              transcript,
		ConversationID:    sess.ID,
		DeviceID:          input.DeviceID,
		Language:          pipeline.Language,
		History:           history,
		ExtraSystemPrompt: input.ExtraSystemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("conversation failed: %w", err)
	}

	if err := r.sessions.AddAssistantMessage(ctx, sess, result.Text, pipeline.ConversationEngine); err != nil {
		return "", err
	}

	emit(entities.PipelineEventIntentEnd, map[string]interface{}{
		"intent_output": map[string]interface{}{
			"conversation_id": sess.ID,
			"speech":          result.Text,
		},
	})
	return result.Text, nil
}

// ttsStage creates a synthesis stream for the reply so the device can fetch
// the audio.
func (r *Runner) ttsStage(
	ctx context.Context,
	pipeline *entities.Pipeline,
	input repositories.PipelineInput,
	reply string,
	emit func(entities.PipelineEventType, map[string]interface{}),
) error {
	emit(entities.PipelineEventTTSStart, map[string]interface{}{
		"engine":   pipeline.TTSEngine,
		"language": pipeline.TTSLanguage,
		"voice":    pipeline.TTSVoice,
	})

	engine, ok := r.tts.ResolveEngine(pipeline.TTSEngine)
	if !ok {
		return fmt.Errorf("TTS engine %s not found", pipeline.TTSEngine)
	}

	options := make(map[string]string)
	if pipeline.TTSVoice != "" {
		options["voice"] = pipeline.TTSVoice
	}
	for key, value := range input.TTSAudioOutput {
		options[key] = value
	}

	stream, err := r.tts.CreateStream(ctx, engine, pipeline.TTSLanguage, options)
	if err != nil {
		return fmt.Errorf("failed to create TTS stream: %w", err)
	}
	stream.SetMessage(reply)

	emit(entities.PipelineEventTTSEnd, map[string]interface{}{
		"tts_output": map[string]interface{}{
			"token": stream.Token(),
			"url":   stream.URL(),
		},
	})
	return nil
}

// fail emits an error event and returns the error
func (r *Runner) fail(
	emit func(entities.PipelineEventType, map[string]interface{}),
	code string,
	err error,
) error {
	emit(entities.PipelineEventError, map[string]interface{}{
		"code":    code,
		"message": err.Error(),
	})
	return err
}
