package store

import (
	"context"
	"errors"
	"testing"

	"github.com/tablee/tablee/internal/models"
)

func TestProfileCreateAndGet(t *testing.T) {
	db := newTestDB(t)

	repo := NewProfileRepository(db)
	profile := &models.Profile{
		ID:       "u1",
		Handle:   "foodie",
		FullName: "Jean Dupont",
		City:     "Paris",
	}
	if err := repo.Create(context.Background(), profile); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Handle != "foodie" || got.City != "Paris" {
		t.Errorf("Get() = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestProfileHandleUniqueness(t *testing.T) {
	db := newTestDB(t)

	repo := NewProfileRepository(db)
	if err := repo.Create(context.Background(), &models.Profile{ID: "u1", Handle: "foodie"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Create(context.Background(), &models.Profile{ID: "u2", Handle: "foodie"})
	if !errors.Is(err, ErrHandleAlreadyTaken) {
		t.Fatalf("Create() duplicate handle error = %v, want ErrHandleAlreadyTaken", err)
	}
}

func TestProfileGetByHandle(t *testing.T) {
	db := newTestDB(t)

	repo := NewProfileRepository(db)
	if err := repo.Create(context.Background(), &models.Profile{ID: "u1", Handle: "foodie"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByHandle(context.Background(), "foodie")
	if err != nil {
		t.Fatalf("GetByHandle() error = %v", err)
	}
	if got.ID != "u1" {
		t.Errorf("GetByHandle().ID = %s, want u1", got.ID)
	}

	if _, err := repo.GetByHandle(context.Background(), "ghost"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("GetByHandle() unknown error = %v, want ErrProfileNotFound", err)
	}
}

func TestProfileUpdate(t *testing.T) {
	db := newTestDB(t)

	repo := NewProfileRepository(db)
	profile := &models.Profile{ID: "u1", Handle: "foodie"}
	if err := repo.Create(context.Background(), profile); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	profile.Bio = "always hungry"
	profile.Contributor = true
	if err := repo.Update(context.Background(), profile); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Bio != "always hungry" || !got.Contributor {
		t.Errorf("Update() not persisted: %+v", got)
	}
}
