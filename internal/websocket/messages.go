package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hearthd/hearth/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types. Satellite to hub:
const (
	MessageTypeRunStart      MessageType = "run-start"
	MessageTypeAudioEnd      MessageType = "audio-end"
	MessageTypePlayed        MessageType = "played"
	MessageTypeTTSFinished   MessageType = "tts-finished"
	MessageTypeConfiguration MessageType = "configuration"
	MessageTypePing          MessageType = "ping"
)

// Hub to satellite:
const (
	MessageTypeAnnounce          MessageType = "announce"
	MessageTypeStartConversation MessageType = "start-conversation"
	MessageTypeEvent             MessageType = "event"
	MessageTypeState             MessageType = "state"
	MessageTypeSetConfiguration  MessageType = "set-configuration"
	MessageTypeError             MessageType = "error"
	MessageTypePong              MessageType = "pong"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
}

// RunStartMessage asks the hub to run a pipeline over the audio frames that
// follow. Binary frames stream the audio; an audio-end message closes it.
type RunStartMessage struct {
	BaseMessage
	StartStage     entities.PipelineStage `json:"start_stage"`
	EndStage       entities.PipelineStage `json:"end_stage"`
	WakeWordPhrase string                 `json:"wake_word_phrase,omitempty"`
}

// ConfigurationMessage reports the device's wake word capability surface
type ConfigurationMessage struct {
	BaseMessage
	Configuration entities.SatelliteConfiguration `json:"configuration"`
}

// AnnouncementMessage carries a resolved announcement to the device. The
// device answers with a played message once playback finished.
type AnnouncementMessage struct {
	BaseMessage
	Announcement entities.Announcement `json:"announcement"`
}

// EventMessage forwards a pipeline event to the device
type EventMessage struct {
	BaseMessage
	Event entities.PipelineEvent `json:"event"`
}

// StateMessage publishes the satellite's visible state
type StateMessage struct {
	BaseMessage
	State entities.SatelliteState `json:"state"`
}

// ErrorMessage reports a failure to the device
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// PingMessage is a connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage answers a ping
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

var validStages = map[entities.PipelineStage]bool{
	entities.PipelineStageWakeWord: true,
	entities.PipelineStageSTT:      true,
	entities.PipelineStageIntent:   true,
	entities.PipelineStageTTS:      true,
}

// MessageValidator parses and validates inbound device messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses an inbound message into its typed form
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeRunStart:
		var msg RunStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid run-start message: %w", err)
		}
		if err := v.validateRunStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeConfiguration:
		var msg ConfigurationMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid configuration message: %w", err)
		}
		return &msg, nil

	case MessageTypeAudioEnd, MessageTypePlayed, MessageTypeTTSFinished:
		return &base, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func (v *MessageValidator) validateRunStart(msg *RunStartMessage) error {
	if !validStages[msg.StartStage] {
		return fmt.Errorf("invalid start stage: %s", msg.StartStage)
	}
	if !validStages[msg.EndStage] {
		return fmt.Errorf("invalid end stage: %s", msg.EndStage)
	}
	if msg.StartStage == entities.PipelineStageWakeWord && msg.WakeWordPhrase == "" {
		return fmt.Errorf("wake_word_phrase is required when starting from the wake word stage")
	}
	return nil
}

func baseMessage(messageType MessageType) BaseMessage {
	return BaseMessage{
		Type:      messageType,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateAnnouncementMessage creates an announce or start-conversation message
func CreateAnnouncementMessage(messageType MessageType, announcement entities.Announcement) *AnnouncementMessage {
	return &AnnouncementMessage{
		BaseMessage:  baseMessage(messageType),
		Announcement: announcement,
	}
}

// CreateEventMessage wraps a pipeline event for the wire
func CreateEventMessage(event entities.PipelineEvent) *EventMessage {
	return &EventMessage{
		BaseMessage: baseMessage(MessageTypeEvent),
		Event:       event,
	}
}

// CreateStateMessage wraps a state change for the wire
func CreateStateMessage(state entities.SatelliteState) *StateMessage {
	return &StateMessage{
		BaseMessage: baseMessage(MessageTypeState),
		State:       state,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: baseMessage(MessageTypeError),
		Code:        code,
		Message:     message,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: baseMessage(MessageTypePong),
		Data:        data,
	}
}
