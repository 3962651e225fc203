package memory

import (
	"context"
	"testing"

	"github.com/hearthd/hearth/domain/entities"
)

func TestSessionRepositoryLifecycle(t *testing.T) {
	repo := NewSessionRepository()
	ctx := context.Background()

	sess := entities.NewSession("device-1")
	if err := repo.Create(ctx, sess); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if err := repo.Create(ctx, sess); err == nil {
		t.Error("Expected error creating duplicate session")
	}

	loaded, err := repo.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if loaded == nil || loaded.ID != sess.ID {
		t.Fatalf("Expected session %s, got %+v", sess.ID, loaded)
	}

	// Stored copy must not alias the caller's slice
	loaded.AddMessage(entities.MessageRoleUser, "hello", "")
	again, _ := repo.GetByID(ctx, sess.ID)
	if len(again.Messages) != 0 {
		t.Error("Expected stored session to be isolated from returned copies")
	}

	loaded.Touch()
	if err := repo.Update(ctx, loaded); err != nil {
		t.Fatalf("Failed to update session: %v", err)
	}
	updated, _ := repo.GetByID(ctx, sess.ID)
	if len(updated.Messages) != 1 {
		t.Errorf("Expected 1 message after update, got %d", len(updated.Messages))
	}

	if err := repo.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}
	gone, err := repo.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Unexpected error after delete: %v", err)
	}
	if gone != nil {
		t.Error("Expected session to be gone after delete")
	}
}

func TestDeviceRepositoryValidate(t *testing.T) {
	repo := NewDeviceRepository()
	ctx := context.Background()

	device := &entities.Device{
		SerialNumber: "HRT-001",
		Model:        "satellite-mini",
		Name:         "Kitchen Satellite",
		Secret:       "s3cret",
	}
	if err := repo.Create(ctx, device); err != nil {
		t.Fatalf("Failed to create device: %v", err)
	}
	if device.ID == "" {
		t.Fatal("Expected device to be assigned an id")
	}

	if _, err := repo.ValidateDevice("HRT-001", "s3cret"); err != nil {
		t.Errorf("Expected valid credentials to pass: %v", err)
	}
	if _, err := repo.ValidateDevice("HRT-001", "wrong"); err == nil {
		t.Error("Expected wrong secret to fail")
	}
	if _, err := repo.ValidateDevice("HRT-999", "s3cret"); err == nil {
		t.Error("Expected unknown serial to fail")
	}

	bySerial, err := repo.GetBySerialNumber(ctx, "HRT-001")
	if err != nil {
		t.Fatalf("Failed to look up by serial: %v", err)
	}
	if bySerial.ID != device.ID {
		t.Error("Expected lookup by serial to return the device")
	}
}
