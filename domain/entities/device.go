package entities

import (
	"errors"
	"time"
)

// Device represents a registered satellite device
type Device struct {
	ID           string    `json:"id" bson:"_id"`
	SerialNumber string    `json:"serial_number" bson:"serial_number"`
	Model        string    `json:"model" bson:"model"`
	Name         string    `json:"name" bson:"name"`
	Secret       string    `json:"-" bson:"secret"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// Validate checks required device fields
func (d *Device) Validate() error {
	if d.SerialNumber == "" {
		return errors.New("serial number is required")
	}
	if d.Model == "" {
		return errors.New("model is required")
	}
	return nil
}
