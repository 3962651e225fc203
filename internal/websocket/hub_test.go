package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/hearthd/hearth/adapters/memory"
	"github.com/hearthd/hearth/domain/entities"
	"github.com/hearthd/hearth/domain/repositories"
	"github.com/hearthd/hearth/registry"
	"github.com/hearthd/hearth/satellite"
	"github.com/hearthd/hearth/session"
)

// fakeRunner consumes the audio stream and reports what it saw
type fakeRunner struct {
	received [][]byte
	input    repositories.PipelineInput
	done     chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, input repositories.PipelineInput) error {
	defer close(f.done)
	f.input = input

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-input.AudioStream:
			if !ok {
				input.EventCallback(entities.PipelineEvent{Type: entities.PipelineEventRunEnd})
				return nil
			}
			f.received = append(f.received, chunk)
		}
	}
}

func setupTestHub(t testing.TB, runner repositories.PipelineRunner) (*Hub, *zap.Logger) {
	logger := zaptest.NewLogger(t)
	sessions := session.NewManager(memory.NewSessionRepository(), logger)

	factory := func(device satellite.Device, publishState func(entities.SatelliteState)) *satellite.Satellite {
		return satellite.New(
			device,
			runner,
			nil,
			nil,
			registry.NewPipelines(),
			registry.NewStates(),
			sessions,
			satellite.Options{OnStateChange: publishState},
			logger,
		)
	}

	return NewHub(factory, logger), logger
}

func newTestClient(hub *Hub, deviceID string, logger *zap.Logger) *Client {
	client := &Client{
		hub:      hub,
		send:     make(chan WriteData, 256),
		deviceID: deviceID,
		logger:   logger,
	}
	client.sat = hub.factory(client, client.publishState)
	return client
}

func readTextMessage(t *testing.T, client *Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-client.send:
		var decoded map[string]interface{}
		if err := json.Unmarshal(data.Payload, &decoded); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		return decoded
	case <-time.After(time.Second):
		t.Fatal("No message received within timeout")
		return nil
	}
}

func TestHub_NewHub(t *testing.T) {
	hub, _ := setupTestHub(t, &fakeRunner{done: make(chan struct{})})

	if hub.clients == nil {
		t.Error("Hub clients map not initialized")
	}
	if hub.register == nil {
		t.Error("Hub register channel not initialized")
	}
	if hub.unregister == nil {
		t.Error("Hub unregister channel not initialized")
	}
	if hub.validator == nil {
		t.Error("Hub validator not initialized")
	}
}

func TestHub_ClientRegistration(t *testing.T) {
	hub, logger := setupTestHub(t, &fakeRunner{done: make(chan struct{})})
	go hub.Run()

	numClients := 5
	clients := make([]*Client, numClients)
	for i := 0; i < numClients; i++ {
		clients[i] = newTestClient(hub, fmt.Sprintf("device-%d", i), logger)
		hub.register <- clients[i]
	}

	time.Sleep(100 * time.Millisecond)

	if got := len(hub.ConnectedDevices()); got != numClients {
		t.Errorf("Expected %d connected devices, got %d", numClients, got)
	}
	if _, ok := hub.Satellite("device-0"); !ok {
		t.Error("Expected device-0 to have an orchestrator")
	}
	if _, ok := hub.Satellite("missing"); ok {
		t.Error("Expected missing device to have no orchestrator")
	}

	for _, client := range clients {
		hub.unregister <- client
	}
	time.Sleep(100 * time.Millisecond)

	if got := len(hub.ConnectedDevices()); got != 0 {
		t.Errorf("Expected 0 connected devices, got %d", got)
	}
}

func TestClientPingPong(t *testing.T) {
	hub, logger := setupTestHub(t, &fakeRunner{done: make(chan struct{})})
	client := newTestClient(hub, "test-device", logger)

	client.processMessage([]byte(`{"type": "ping", "data": "health"}`))

	response := readTextMessage(t, client)
	if response["type"] != string(MessageTypePong) {
		t.Errorf("Expected pong, got %v", response["type"])
	}
	if response["data"] != "health" {
		t.Errorf("Expected data to echo, got %v", response["data"])
	}
}

func TestClientInvalidMessage(t *testing.T) {
	hub, logger := setupTestHub(t, &fakeRunner{done: make(chan struct{})})
	client := newTestClient(hub, "test-device", logger)

	client.processMessage([]byte(`{invalid json}`))

	response := readTextMessage(t, client)
	if response["type"] != string(MessageTypeError) {
		t.Errorf("Expected error, got %v", response["type"])
	}
}

func TestClientPlayedResolvesAnnouncement(t *testing.T) {
	hub, logger := setupTestHub(t, &fakeRunner{done: make(chan struct{})})
	client := newTestClient(hub, "test-device", logger)

	result := make(chan error, 1)
	go func() {
		result <- client.Announce(context.Background(), entities.Announcement{
			Message: "Dinner is ready",
			MediaID: "http://hub.local/media.mp3",
		})
	}()

	// The device receives the announce message first.
	message := readTextMessage(t, client)
	if message["type"] != string(MessageTypeAnnounce) {
		t.Fatalf("Expected announce message, got %v", message["type"])
	}

	client.processMessage([]byte(`{"type": "played"}`))

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("Expected announce to finish cleanly, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Announce did not return after played")
	}
}

func TestClientAnnounceCancelled(t *testing.T) {
	hub, logger := setupTestHub(t, &fakeRunner{done: make(chan struct{})})
	client := newTestClient(hub, "test-device", logger)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- client.Announce(ctx, entities.Announcement{MediaID: "http://hub.local/media.mp3"})
	}()

	readTextMessage(t, client)
	cancel()

	select {
	case err := <-result:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Announce did not return after cancellation")
	}
}

func TestClientAudioStreaming(t *testing.T) {
	runner := &fakeRunner{done: make(chan struct{})}
	hub, logger := setupTestHub(t, runner)
	client := newTestClient(hub, "test-device", logger)

	client.processMessage([]byte(`{"type": "run-start", "start_stage": "stt", "end_stage": "tts"}`))

	client.processAudioFrame([]byte{1, 2, 3})
	client.processAudioFrame([]byte{4, 5})
	client.processMessage([]byte(`{"type": "audio-end"}`))

	select {
	case <-runner.done:
	case <-time.After(time.Second):
		t.Fatal("Pipeline run did not finish")
	}

	if len(runner.received) != 2 {
		t.Fatalf("Expected 2 audio frames, got %d", len(runner.received))
	}
	if runner.input.StartStage != entities.PipelineStageSTT {
		t.Errorf("Expected start stage stt, got %s", runner.input.StartStage)
	}
	if runner.input.EndStage != entities.PipelineStageTTS {
		t.Errorf("Expected end stage tts, got %s", runner.input.EndStage)
	}
	if runner.input.DeviceID != "test-device" {
		t.Errorf("Expected device id to flow into the run, got %s", runner.input.DeviceID)
	}
}

func TestClientConfigurationRoundTrip(t *testing.T) {
	hub, logger := setupTestHub(t, &fakeRunner{done: make(chan struct{})})
	client := newTestClient(hub, "test-device", logger)

	client.processMessage([]byte(`{
		"type": "configuration",
		"configuration": {
			"available_wake_words": [{"id": "okay_nabu", "wake_word": "okay nabu", "trained_languages": ["en"]}],
			"active_wake_words": ["okay_nabu"],
			"max_active_wake_words": 1
		}
	}`))

	config := client.Configuration()
	if len(config.AvailableWakeWords) != 1 {
		t.Fatalf("Expected 1 available wake word, got %d", len(config.AvailableWakeWords))
	}
	if config.ActiveWakeWords[0] != "okay_nabu" {
		t.Errorf("Expected active wake word okay_nabu, got %s", config.ActiveWakeWords[0])
	}

	// Pushing a new configuration reaches the device and updates the cache.
	config.ActiveWakeWords = nil
	if err := client.SetConfiguration(context.Background(), config); err != nil {
		t.Fatalf("SetConfiguration failed: %v", err)
	}
	message := readTextMessage(t, client)
	if message["type"] != string(MessageTypeSetConfiguration) {
		t.Errorf("Expected set-configuration message, got %v", message["type"])
	}
	if got := client.Configuration(); len(got.ActiveWakeWords) != 0 {
		t.Errorf("Expected cached configuration to update, got %v", got.ActiveWakeWords)
	}
}

func BenchmarkMessageValidation(b *testing.B) {
	validator := NewMessageValidator()
	message := []byte(`{"type": "run-start", "start_stage": "stt", "end_stage": "tts"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := validator.ValidateMessage(message); err != nil {
			b.Fatalf("Validation failed: %v", err)
		}
	}
}
