package repositories

import (
	"context"

	"github.com/hearthd/hearth/domain/entities"
)

// SessionRepository defines data access methods for chat sessions
type SessionRepository interface {
	Create(ctx context.Context, session *entities.Session) error
	GetByID(ctx context.Context, id string) (*entities.Session, error)
	Update(ctx context.Context, session *entities.Session) error
	Delete(ctx context.Context, id string) error
	// DeleteExpired prunes sessions whose expiry passed, returning how many
	// were removed
	DeleteExpired(ctx context.Context) (int64, error)
}

// DeviceRepository defines data access methods for satellite devices
type DeviceRepository interface {
	Create(ctx context.Context, device *entities.Device) error
	GetByID(ctx context.Context, id string) (*entities.Device, error)
	GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error)
	// ValidateDevice validates device credentials for authentication
	ValidateDevice(serialNumber, secret string) (*entities.Device, error)
}
