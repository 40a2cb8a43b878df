package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tablee/tablee/internal/models"
)

func seedTestProfile(t *testing.T, db *DB, id string) {
	t.Helper()

	profiles := NewProfileRepository(db)
	if err := profiles.Create(context.Background(), &models.Profile{
		ID:       id,
		Handle:   id,
		FullName: id,
	}); err != nil {
		t.Fatalf("Create profile %s: %v", id, err)
	}
}

func TestConversationCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	seedTestProfile(t, db, "alice")
	seedTestProfile(t, db, "bob")

	repo := NewConversationRepository(db, nil)
	conversation := &models.Conversation{Participant1: "alice", Participant2: "bob"}
	if err := repo.Create(context.Background(), conversation); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if conversation.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}

	got, err := repo.Get(context.Background(), conversation.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Participant1 != "alice" || got.Participant2 != "bob" {
		t.Errorf("Get() participants = %s/%s", got.Participant1, got.Participant2)
	}
	if got.LastMessageAt != nil {
		t.Error("new conversation should have no last message time")
	}
}

func TestConversationPairUniqueness(t *testing.T) {
	db := newTestDB(t)
	seedTestProfile(t, db, "alice")
	seedTestProfile(t, db, "bob")

	repo := NewConversationRepository(db, nil)
	first := &models.Conversation{Participant1: "alice", Participant2: "bob"}
	if err := repo.Create(context.Background(), first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// The reversed pair is the same conversation.
	reversed := &models.Conversation{Participant1: "bob", Participant2: "alice"}
	err := repo.Create(context.Background(), reversed)
	if !errors.Is(err, ErrConversationAlreadyExists) {
		t.Fatalf("Create() reversed pair error = %v, want ErrConversationAlreadyExists", err)
	}

	got, err := repo.GetByParticipants(context.Background(), "bob", "alice")
	if err != nil {
		t.Fatalf("GetByParticipants() error = %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("GetByParticipants() ID = %s, want %s", got.ID, first.ID)
	}
}

func TestConversationRejectsSelfPair(t *testing.T) {
	db := newTestDB(t)
	seedTestProfile(t, db, "alice")

	repo := NewConversationRepository(db, nil)
	err := repo.Create(context.Background(), &models.Conversation{
		Participant1: "alice",
		Participant2: "alice",
	})
	if err == nil {
		t.Fatal("Create() with identical participants should fail")
	}
}

func TestListForUserMergesBothColumns(t *testing.T) {
	db := newTestDB(t)
	seedTestProfile(t, db, "alice")
	seedTestProfile(t, db, "bob")
	seedTestProfile(t, db, "carol")
	seedTestProfile(t, db, "dave")

	repo := NewConversationRepository(db, nil)
	// Alice appears in both participant columns across these rows.
	asFirst := &models.Conversation{Participant1: "alice", Participant2: "bob"}
	asSecond := &models.Conversation{Participant1: "carol", Participant2: "alice"}
	unrelated := &models.Conversation{Participant1: "bob", Participant2: "dave"}
	for _, c := range []*models.Conversation{asFirst, asSecond, unrelated} {
		if err := repo.Create(context.Background(), c); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	views, err := repo.ListForUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("ListForUser() returned %d conversations, want 2", len(views))
	}
	for _, view := range views {
		if view.ID == unrelated.ID {
			t.Error("ListForUser() leaked an unrelated conversation")
		}
		if view.Counterpart.ID == "alice" {
			t.Error("counterpart should be the other participant")
		}
	}
}

func TestListForUserOrdersByRecency(t *testing.T) {
	db := newTestDB(t)
	seedTestProfile(t, db, "alice")
	seedTestProfile(t, db, "bob")
	seedTestProfile(t, db, "carol")
	seedTestProfile(t, db, "dave")

	repo := NewConversationRepository(db, nil)
	older := &models.Conversation{Participant1: "alice", Participant2: "bob"}
	newer := &models.Conversation{Participant1: "alice", Participant2: "carol"}
	silent := &models.Conversation{Participant1: "alice", Participant2: "dave"}
	for _, c := range []*models.Conversation{older, newer, silent} {
		if err := repo.Create(context.Background(), c); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	now := time.Now().UTC()
	if err := repo.UpdateLastMessage(context.Background(), older.ID, "old", now.Add(-time.Hour)); err != nil {
		t.Fatalf("UpdateLastMessage() error = %v", err)
	}
	if err := repo.UpdateLastMessage(context.Background(), newer.ID, "new", now); err != nil {
		t.Fatalf("UpdateLastMessage() error = %v", err)
	}

	views, err := repo.ListForUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("ListForUser() returned %d conversations, want 3", len(views))
	}
	if views[0].ID != newer.ID {
		t.Errorf("views[0] = %s, want most recent", views[0].ID)
	}
	if views[1].ID != older.ID {
		t.Errorf("views[1] = %s, want older", views[1].ID)
	}
	if views[2].ID != silent.ID {
		t.Errorf("views[2] = %s, want never-messaged last", views[2].ID)
	}
}

func TestUpdateLastMessageUnknownConversation(t *testing.T) {
	db := newTestDB(t)

	repo := NewConversationRepository(db, nil)
	err := repo.UpdateLastMessage(context.Background(), "missing", "text", time.Now())
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("UpdateLastMessage() error = %v, want ErrConversationNotFound", err)
	}
}

func TestGetViewEmbedsCounterpart(t *testing.T) {
	db := newTestDB(t)
	seedTestProfile(t, db, "alice")
	seedTestProfile(t, db, "bob")

	repo := NewConversationRepository(db, nil)
	conversation := &models.Conversation{Participant1: "alice", Participant2: "bob"}
	if err := repo.Create(context.Background(), conversation); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	view, err := repo.GetView(context.Background(), conversation.ID, "alice")
	if err != nil {
		t.Fatalf("GetView() error = %v", err)
	}
	if view.Counterpart.ID != "bob" {
		t.Errorf("Counterpart.ID = %s, want bob", view.Counterpart.ID)
	}

	// A non-participant cannot view the conversation.
	if _, err := repo.GetView(context.Background(), conversation.ID, "mallory"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("GetView() for outsider error = %v, want ErrConversationNotFound", err)
	}
}

func TestCreateWithUnknownParticipant(t *testing.T) {
	db := newTestDB(t)
	seedTestProfile(t, db, "alice")

	repo := NewConversationRepository(db, nil)
	err := repo.Create(context.Background(), &models.Conversation{Participant1: "alice", Participant2: "ghost"})
	if err == nil {
		t.Fatal("Create() with unknown participant succeeded, want foreign key error")
	}
	// A foreign key violation must not read as a pair conflict.
	if errors.Is(err, ErrConversationAlreadyExists) {
		t.Errorf("Create() foreign key violation = ErrConversationAlreadyExists")
	}
}
