package api

import (
	"time"

	"github.com/hearthd/hearth/domain/entities"
)

// DeviceAuthRequest represents the request payload for device authentication
type DeviceAuthRequest struct {
	SerialNumber string `json:"serial_number"`
	SecretKey    string `json:"secret_key"`
}

// DeviceAuthResponse represents the response payload for device authentication
type DeviceAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

// StateResponse reports a satellite's visible state
type StateResponse struct {
	DeviceID string                  `json:"device_id"`
	State    entities.SatelliteState `json:"state"`
}

// InterceptWakeWordResponse carries the intercepted phrase
type InterceptWakeWordResponse struct {
	WakeWordPhrase string `json:"wake_word_phrase"`
}

// SatelliteListResponse lists connected satellites
type SatelliteListResponse struct {
	Devices []string `json:"devices"`
}

// PipelineListResponse lists the configured pipelines
type PipelineListResponse struct {
	Pipelines []*entities.Pipeline `json:"pipelines"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
