package satellite

import (
	"context"

	"github.com/hearthd/hearth/domain/entities"
)

// Device is the satellite-implementation-specific half of a satellite: the
// orchestrator owns state and pipeline lifecycle, the Device plays audio and
// reacts to events. Implementations are typically a connected websocket
// client or a test double.
type Device interface {
	// ID identifies the device in the device registry
	ID() string

	// Announce plays an announcement on the device. It must block until
	// the announcement has finished playing.
	Announce(ctx context.Context, announcement entities.Announcement) error

	// StartConversation plays the start announcement and opens the
	// device's microphone for the follow-up. It must block until the
	// announcement has finished playing.
	StartConversation(ctx context.Context, announcement entities.Announcement) error

	// OnPipelineEvent receives every pipeline event after the
	// orchestrator has interpreted it. It must not block.
	OnPipelineEvent(event entities.PipelineEvent)

	// Configuration returns the device's wake word capability surface
	Configuration() entities.SatelliteConfiguration

	// SetConfiguration pushes a new wake word configuration to the device
	SetConfiguration(ctx context.Context, config entities.SatelliteConfiguration) error
}
