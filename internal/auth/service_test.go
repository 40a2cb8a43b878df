package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tablee/tablee/internal/store"
)

func newTestService(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()

	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewService(store.NewCredentialRepository(db), store.NewProfileRepository(db), opts...)
}

func TestServiceSignUpSignsIn(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	profile, err := service.SignUp(ctx, "lea@example.com", "secret", "@lea", "Léa Martin")
	require.NoError(t, err)
	require.NotEmpty(t, profile.ID)
	require.Equal(t, "lea", profile.Handle, "leading @ is stripped")

	userID, err := service.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, profile.ID, userID)

	loaded, err := service.Profile(ctx, profile.ID)
	require.NoError(t, err)
	require.Equal(t, "Léa Martin", loaded.FullName)
}

func TestServiceSignUpRejectsBlankCredentials(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	_, err := service.SignUp(ctx, "  ", "secret", "lea", "Léa")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.SignUp(ctx, "lea@example.com", "", "lea", "Léa")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestServiceSignIn(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	profile, err := service.SignUp(ctx, "max@example.com", "hunter2", "max", "Max")
	require.NoError(t, err)
	service.SignOutLocal()

	_, err = service.SignIn(ctx, "max@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.SignIn(ctx, "nobody@example.com", "hunter2")
	require.ErrorIs(t, err, ErrInvalidCredentials, "unknown email reads the same as a bad password")

	userID, err := service.SignIn(ctx, "max@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, profile.ID, userID)
}

func TestServiceLoginLinkFlow(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	profile, err := service.SignUp(ctx, "zoe@example.com", "secret", "zoe", "Zoé")
	require.NoError(t, err)
	service.SignOutLocal()

	token, err := service.IssueLink(ctx, "zoe@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := service.SignInWithLink(ctx, token)
	require.NoError(t, err)
	require.Equal(t, profile.ID, userID)

	// Links are one-time.
	_, err = service.SignInWithLink(ctx, token)
	require.ErrorIs(t, err, store.ErrLinkNotFound)

	_, err = service.IssueLink(ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestServiceLoginLinkExpiry(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t, WithLinkTTL(time.Nanosecond))

	_, err := service.SignUp(ctx, "ben@example.com", "secret", "ben", "Ben")
	require.NoError(t, err)
	service.SignOutLocal()

	token, err := service.IssueLink(ctx, "ben@example.com")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	_, err = service.SignInWithLink(ctx, token)
	require.ErrorIs(t, err, store.ErrLinkExpired)
}

func TestServiceSessionPersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	sessionPath := filepath.Join(t.TempDir(), "session.json")

	db, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	credentials := store.NewCredentialRepository(db)
	profiles := store.NewProfileRepository(db)

	first := NewService(credentials, profiles, WithSessionPath(sessionPath))
	profile, err := first.SignUp(ctx, "ana@example.com", "secret", "ana", "Ana")
	require.NoError(t, err)

	second := NewService(credentials, profiles, WithSessionPath(sessionPath))
	userID, err := second.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, profile.ID, userID, "session survives a restart")

	require.NoError(t, second.SignOut(ctx))
	_, statErr := os.Stat(sessionPath)
	require.ErrorIs(t, statErr, os.ErrNotExist, "sign-out removes the session file")

	third := NewService(credentials, profiles, WithSessionPath(sessionPath))
	userID, err = third.CurrentUser(ctx)
	require.NoError(t, err)
	require.Empty(t, userID)
}

func TestServiceOnSessionChange(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	var events []SessionEvent
	unsubscribe := service.OnSessionChange(func(event SessionEvent) {
		events = append(events, event)
	})

	require.Len(t, events, 1, "current session is replayed at subscribe time")
	require.Equal(t, SessionRestored, events[0].Type)
	require.Empty(t, events[0].UserID)

	profile, err := service.SignUp(ctx, "tom@example.com", "secret", "tom", "Tom")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, SessionSignedIn, events[1].Type)
	require.Equal(t, profile.ID, events[1].UserID)

	require.NoError(t, service.SignOut(ctx))
	require.Len(t, events, 3)
	require.Equal(t, SessionSignedOut, events[2].Type)

	unsubscribe()
	_, err = service.SignIn(ctx, "tom@example.com", "secret")
	require.NoError(t, err)
	require.Len(t, events, 3, "no events after unsubscribe")
}
