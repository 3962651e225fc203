package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthd/hearth/domain/entities"
	"github.com/hearthd/hearth/domain/repositories"
)

// DeviceRepository keeps registered satellite devices in memory. The device
// roster is small and loaded at startup, so no external store is needed.
type DeviceRepository struct {
	mu       sync.RWMutex
	devices  map[string]*entities.Device
	bySerial map[string]string
}

var _ repositories.DeviceRepository = (*DeviceRepository)(nil)

// NewDeviceRepository creates an empty in-memory device repository
func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{
		devices:  make(map[string]*entities.Device),
		bySerial: make(map[string]string),
	}
}

// Create implements repositories.DeviceRepository
func (r *DeviceRepository) Create(ctx context.Context, device *entities.Device) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}
	if err := device.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bySerial[device.SerialNumber]; exists {
		return fmt.Errorf("device with serial number %s already exists", device.SerialNumber)
	}

	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	now := time.Now()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	stored := *device
	r.devices[device.ID] = &stored
	r.bySerial[device.SerialNumber] = device.ID
	return nil
}

// GetByID implements repositories.DeviceRepository
func (r *DeviceRepository) GetByID(ctx context.Context, id string) (*entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("device with ID %s not found", id)
	}
	device := *stored
	return &device, nil
}

// GetBySerialNumber implements repositories.DeviceRepository
func (r *DeviceRepository) GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySerial[serialNumber]
	if !ok {
		return nil, fmt.Errorf("device with serial number %s not found", serialNumber)
	}
	device := *r.devices[id]
	return &device, nil
}

// ValidateDevice implements repositories.DeviceRepository
func (r *DeviceRepository) ValidateDevice(serialNumber, secret string) (*entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySerial[serialNumber]
	if !ok {
		return nil, errors.New("invalid device credentials")
	}
	stored := r.devices[id]
	if stored.Secret == "" || stored.Secret != secret {
		return nil, errors.New("invalid device credentials")
	}
	device := *stored
	return &device, nil
}
