package pipeline

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/hearthd/hearth/adapters/llm"
	"github.com/hearthd/hearth/adapters/memory"
	"github.com/hearthd/hearth/adapters/stt"
	"github.com/hearthd/hearth/adapters/tts"
	"github.com/hearthd/hearth/domain/entities"
	"github.com/hearthd/hearth/domain/repositories"
	"github.com/hearthd/hearth/registry"
	"github.com/hearthd/hearth/session"
)

type eventRecorder struct {
	events []entities.PipelineEvent
}

func (r *eventRecorder) record(event entities.PipelineEvent) {
	r.events = append(r.events, event)
}

func (r *eventRecorder) types() []entities.PipelineEventType {
	types := make([]entities.PipelineEventType, 0, len(r.events))
	for _, ev := range r.events {
		types = append(types, ev.Type)
	}
	return types
}

func (r *eventRecorder) find(eventType entities.PipelineEventType) (entities.PipelineEvent, bool) {
	for _, ev := range r.events {
		if ev.Type == eventType {
			return ev, true
		}
	}
	return entities.PipelineEvent{}, false
}

func newTestRunner(t *testing.T, transcript string) (*Runner, *registry.Pipelines) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	ttsEngine, err := tts.NewElevenLabs(tts.ElevenLabsConfig{APIKey: "test-key"}, "/api/tts_proxy", logger)
	if err != nil {
		t.Fatalf("Failed to create TTS engine: %v", err)
	}

	pipelines := registry.NewPipelines()
	pipelines.Add(&entities.Pipeline{
		Name:               "Default",
		Language:           "en-US",
		ConversationEngine: entities.ConversationEngineBuiltin,
		STTEngine:          "stt.mock",
		TTSEngine:          tts.EngineID,
		TTSLanguage:        "en-US",
	})

	sessions := session.NewManager(memory.NewSessionRepository(), logger)
	runner := NewRunner(
		stt.NewMockSpeechToText(transcript, logger),
		[]repositories.ConversationAgent{llm.NewMockAgent("")},
		ttsEngine,
		pipelines,
		sessions,
		logger,
	)
	return runner, pipelines
}

func audioStreamWith(chunks ...[]byte) <-chan []byte {
	audio := make(chan []byte, len(chunks))
	for _, chunk := range chunks {
		audio <- chunk
	}
	close(audio)
	return audio
}

func baseInput(recorder *eventRecorder, audio <-chan []byte) repositories.PipelineInput {
	return repositories.PipelineInput{
		AudioStream:   audio,
		EventCallback: recorder.record,
		STTMetadata:   entities.DefaultSpeechMetadata(),
		DeviceID:      "device-1",
		AudioSettings: entities.AudioSettings{SilenceSeconds: 1.0, VadEnabled: true},
		StartStage:    entities.PipelineStageSTT,
		EndStage:      entities.PipelineStageTTS,
	}
}

func TestRunFullPipeline(t *testing.T) {
	runner, _ := newTestRunner(t, "turn on the lights")
	recorder := &eventRecorder{}
	input := baseInput(recorder, audioStreamWith([]byte{0x01, 0x02}))

	if err := runner.Run(context.Background(), input); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []entities.PipelineEventType{
		entities.PipelineEventRunStart,
		entities.PipelineEventSTTStart,
		entities.PipelineEventSTTEnd,
		entities.PipelineEventIntentStart,
		entities.PipelineEventIntentEnd,
		entities.PipelineEventTTSStart,
		entities.PipelineEventTTSEnd,
		entities.PipelineEventRunEnd,
	}
	got := recorder.types()
	if len(got) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected events %v, got %v", want, got)
		}
	}

	sttEnd, _ := recorder.find(entities.PipelineEventSTTEnd)
	if text, ok := sttEnd.STTOutputText(); !ok || text != "turn on the lights" {
		t.Errorf("Expected transcript in stt-end, got %v", sttEnd.Data)
	}

	intentEnd, _ := recorder.find(entities.PipelineEventIntentEnd)
	intentOutput, ok := intentEnd.Data["intent_output"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected intent output, got %v", intentEnd.Data)
	}
	if speech := intentOutput["speech"]; speech != "You said: turn on the lights" {
		t.Errorf("Expected agent reply, got %v", speech)
	}
	if intentOutput["conversation_id"] == "" {
		t.Error("Expected a conversation id in the intent output")
	}

	ttsEnd, _ := recorder.find(entities.PipelineEventTTSEnd)
	ttsOutput, ok := ttsEnd.Data["tts_output"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected tts output, got %v", ttsEnd.Data)
	}
	if token, _ := ttsOutput["token"].(string); token == "" {
		t.Error("Expected a synthesis token in the tts output")
	}
	if url, _ := ttsOutput["url"].(string); url == "" {
		t.Error("Expected a synthesis url in the tts output")
	}
}

func TestRunStopsAtEndStage(t *testing.T) {
	runner, _ := newTestRunner(t, "yes")
	recorder := &eventRecorder{}
	input := baseInput(recorder, audioStreamWith([]byte{0x01}))
	input.EndStage = entities.PipelineStageSTT

	if err := runner.Run(context.Background(), input); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, found := recorder.find(entities.PipelineEventIntentStart); found {
		t.Error("Expected no intent stage when the run ends at speech-to-text")
	}
	if _, found := recorder.find(entities.PipelineEventTTSStart); found {
		t.Error("Expected no tts stage when the run ends at speech-to-text")
	}
	if _, found := recorder.find(entities.PipelineEventRunEnd); !found {
		t.Error("Expected a run-end event")
	}
}

func TestRunWakeWordStage(t *testing.T) {
	runner, _ := newTestRunner(t, "turn on the lights")
	recorder := &eventRecorder{}
	input := baseInput(recorder, audioStreamWith([]byte{0x01}))
	input.StartStage = entities.PipelineStageWakeWord
	input.WakeWordPhrase = "okay nabu"

	if err := runner.Run(context.Background(), input); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	wakeEnd, found := recorder.find(entities.PipelineEventWakeWordEnd)
	if !found {
		t.Fatal("Expected a wake_word-end event")
	}
	output, ok := wakeEnd.Data["wake_word_output"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected wake word output, got %v", wakeEnd.Data)
	}
	if output["wake_word_phrase"] != "okay nabu" {
		t.Errorf("Expected the reported phrase, got %v", output["wake_word_phrase"])
	}
}

func TestRunWakeWordStageWithoutPhrase(t *testing.T) {
	runner, _ := newTestRunner(t, "turn on the lights")
	recorder := &eventRecorder{}
	input := baseInput(recorder, audioStreamWith([]byte{0x01}))
	input.StartStage = entities.PipelineStageWakeWord

	err := runner.Run(context.Background(), input)
	if err == nil {
		t.Fatal("Expected an error for a wake word run without a phrase")
	}

	errEvent, found := recorder.find(entities.PipelineEventError)
	if !found {
		t.Fatal("Expected an error event")
	}
	if errEvent.Data["code"] != "wake-word-detection-failed" {
		t.Errorf("Expected wake-word-detection-failed, got %v", errEvent.Data["code"])
	}
	if _, found := recorder.find(entities.PipelineEventRunEnd); found {
		t.Error("Expected no run-end event after a failure")
	}
}

func TestRunNoTextRecognized(t *testing.T) {
	runner, _ := newTestRunner(t, "")
	recorder := &eventRecorder{}
	input := baseInput(recorder, audioStreamWith([]byte{0x01}))

	err := runner.Run(context.Background(), input)
	if !errors.Is(err, ErrNoTextRecognized) {
		t.Fatalf("Expected ErrNoTextRecognized, got %v", err)
	}

	errEvent, found := recorder.find(entities.PipelineEventError)
	if !found {
		t.Fatal("Expected an error event")
	}
	if errEvent.Data["code"] != "stt-stream-failed" {
		t.Errorf("Expected stt-stream-failed, got %v", errEvent.Data["code"])
	}
}

func TestRunUnknownPipeline(t *testing.T) {
	runner, _ := newTestRunner(t, "yes")
	recorder := &eventRecorder{}
	input := baseInput(recorder, audioStreamWith([]byte{0x01}))
	input.PipelineID = "missing"

	if err := runner.Run(context.Background(), input); err == nil {
		t.Fatal("Expected an error for an unknown pipeline")
	}
	if len(recorder.events) != 0 {
		t.Errorf("Expected no events before the pipeline is resolved, got %v", recorder.types())
	}
}

func TestRunUnknownConversationEngine(t *testing.T) {
	runner, pipelines := newTestRunner(t, "yes")
	broken := pipelines.Add(&entities.Pipeline{
		Name:               "Broken",
		Language:           "en-US",
		ConversationEngine: "conversation.unknown",
		STTEngine:          "stt.mock",
		TTSEngine:          tts.EngineID,
		TTSLanguage:        "en-US",
	})

	recorder := &eventRecorder{}
	input := baseInput(recorder, audioStreamWith([]byte{0x01}))
	input.PipelineID = broken.ID

	if err := runner.Run(context.Background(), input); err == nil {
		t.Fatal("Expected an error for an unknown conversation engine")
	}

	errEvent, found := recorder.find(entities.PipelineEventError)
	if !found {
		t.Fatal("Expected an error event")
	}
	if errEvent.Data["code"] != "intent-failed" {
		t.Errorf("Expected intent-failed, got %v", errEvent.Data["code"])
	}
}

func TestRunCancelled(t *testing.T) {
	runner, _ := newTestRunner(t, "yes")
	recorder := &eventRecorder{}

	// The audio stream never delivers anything; only cancellation can end
	// the stt stage.
	audio := make(chan []byte)
	input := baseInput(recorder, audio)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.Run(ctx, input)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if _, found := recorder.find(entities.PipelineEventError); found {
		t.Error("Expected no error event for a preempted run")
	}
	if _, found := recorder.find(entities.PipelineEventRunEnd); found {
		t.Error("Expected no run-end event for a preempted run")
	}
}

func TestRunContinuesConversation(t *testing.T) {
	runner, _ := newTestRunner(t, "and the kitchen too")
	recorder := &eventRecorder{}

	first := baseInput(recorder, audioStreamWith([]byte{0x01}))
	if err := runner.Run(context.Background(), first); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	intentEnd, _ := recorder.find(entities.PipelineEventIntentEnd)
	output := intentEnd.Data["intent_output"].(map[string]interface{})
	conversationID, _ := output["conversation_id"].(string)
	if conversationID == "" {
		t.Fatal("Expected a conversation id from the first run")
	}

	secondRecorder := &eventRecorder{}
	second := baseInput(secondRecorder, audioStreamWith([]byte{0x01}))
	second.ConversationID = conversationID
	if err := runner.Run(context.Background(), second); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	secondIntentEnd, _ := secondRecorder.find(entities.PipelineEventIntentEnd)
	secondOutput := secondIntentEnd.Data["intent_output"].(map[string]interface{})
	if secondOutput["conversation_id"] != conversationID {
		t.Errorf("Expected the conversation to continue under %q, got %v", conversationID, secondOutput["conversation_id"])
	}
}
