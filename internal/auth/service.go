// Package auth implements the authentication service and the session
// provider that the rest of the application reads identity from.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tablee/tablee/internal/logging"
	"github.com/tablee/tablee/internal/models"
	"github.com/tablee/tablee/internal/store"
)

// Auth service errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotSignedIn        = errors.New("not signed in")
)

const defaultLinkTTL = 15 * time.Minute

// SessionEventType categorizes session change notifications.
type SessionEventType string

const (
	// SessionRestored is emitted once to every new subscriber, reflecting
	// the session present at subscribe time. Subscribers that already
	// fetched the session must ignore it.
	SessionRestored SessionEventType = "session.restored"

	SessionSignedIn  SessionEventType = "session.signed_in"
	SessionSignedOut SessionEventType = "session.signed_out"
)

// SessionEvent is a session change notification.
type SessionEvent struct {
	Type   SessionEventType
	UserID string
}

// SessionHandler is a callback receiving session events.
type SessionHandler func(event SessionEvent)

// Service implements credential and session management against the store.
type Service struct {
	credentials *store.CredentialRepository
	profiles    *store.ProfileRepository
	logger      zerolog.Logger

	// sessionPath persists the session between runs; empty keeps the
	// session in memory only.
	sessionPath string

	linkTTL time.Duration

	mu        sync.Mutex
	userID    string
	handlers  map[string]SessionHandler
	handlerID int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSessionPath persists the session as JSON at path.
func WithSessionPath(path string) ServiceOption {
	return func(s *Service) {
		s.sessionPath = strings.TrimSpace(path)
	}
}

// WithLinkTTL overrides how long one-time login links stay valid.
func WithLinkTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.linkTTL = ttl
		}
	}
}

// NewService creates a new auth Service. If a session file exists it is
// loaded so the previous session survives restarts.
func NewService(credentials *store.CredentialRepository, profiles *store.ProfileRepository, opts ...ServiceOption) *Service {
	s := &Service{
		credentials: credentials,
		profiles:    profiles,
		logger:      logging.Component("auth"),
		linkTTL:     defaultLinkTTL,
		handlers:    make(map[string]SessionHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.userID = s.loadSession()
	return s
}

// CurrentUser returns the signed-in user's ID, or "" when anonymous.
func (s *Service) CurrentUser(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, nil
}

// Profile returns the profile attached to the given user.
func (s *Service) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	return s.profiles.Get(ctx, userID)
}

// SignUp registers credentials and a profile, then signs the user in.
func (s *Service) SignUp(ctx context.Context, email, password, handle, fullName string) (*models.Profile, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &models.Profile{
		Handle:   strings.TrimPrefix(strings.TrimSpace(handle), "@"),
		FullName: strings.TrimSpace(fullName),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, err
	}

	if err := s.credentials.Create(ctx, &store.Credential{
		UserID:       profile.ID,
		Email:        email,
		PasswordHash: string(hash),
	}); err != nil {
		return nil, err
	}

	s.setSession(profile.ID, SessionSignedIn)
	return profile, nil
}

// SignIn authenticates with email and password.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	credential, err := s.credentials.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrCredentialNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(credential.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	s.setSession(credential.UserID, SessionSignedIn)
	return credential.UserID, nil
}

// IssueLink creates a one-time login link token for the email's account.
func (s *Service) IssueLink(ctx context.Context, email string) (string, error) {
	credential, err := s.credentials.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrCredentialNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	token := uuid.New().String()
	if err := s.credentials.CreateLink(ctx, token, credential.UserID, time.Now().Add(s.linkTTL)); err != nil {
		return "", err
	}
	return token, nil
}

// SignInWithLink redeems a one-time login link.
func (s *Service) SignInWithLink(ctx context.Context, token string) (string, error) {
	userID, err := s.credentials.RedeemLink(ctx, token, time.Now())
	if err != nil {
		return "", err
	}
	s.setSession(userID, SessionSignedIn)
	return userID, nil
}

// SignOut invalidates the session remotely. It honors ctx cancellation so
// callers can bound how long they wait.
func (s *Service) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.setSession("", SessionSignedOut)
	return nil
}

// SignOutLocal clears the client-side session without any remote call. It
// never fails.
func (s *Service) SignOutLocal() {
	s.setSession("", SessionSignedOut)
}

// OnSessionChange registers a handler for session events and returns an
// unsubscribe function. The handler is immediately invoked with a
// SessionRestored event reflecting the current session.
func (s *Service) OnSessionChange(handler SessionHandler) func() {
	s.mu.Lock()
	s.handlerID++
	id := fmt.Sprintf("session-%d", s.handlerID)
	s.handlers[id] = handler
	current := s.userID
	s.mu.Unlock()

	handler(SessionEvent{Type: SessionRestored, UserID: current})

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

func (s *Service) setSession(userID string, eventType SessionEventType) {
	s.mu.Lock()
	s.userID = userID
	var handlers []SessionHandler
	for _, handler := range s.handlers {
		handlers = append(handlers, handler)
	}
	s.mu.Unlock()

	s.persistSession(userID)

	event := SessionEvent{Type: eventType, UserID: userID}
	for _, handler := range handlers {
		handler(event)
	}
}

type sessionFile struct {
	UserID    string    `json:"user_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Service) loadSession() string {
	if s.sessionPath == "" {
		return ""
	}
	payload, err := os.ReadFile(s.sessionPath)
	if err != nil {
		return ""
	}
	var session sessionFile
	if err := json.Unmarshal(payload, &session); err != nil {
		s.logger.Warn().Err(err).Msg("failed to parse session file")
		return ""
	}
	return session.UserID
}

func (s *Service) persistSession(userID string) {
	if s.sessionPath == "" {
		return
	}
	if userID == "" {
		if err := os.Remove(s.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Msg("failed to remove session file")
		}
		return
	}

	payload, err := json.MarshalIndent(sessionFile{UserID: userID, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode session file")
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.sessionPath), 0o755); err != nil {
		s.logger.Warn().Err(err).Msg("failed to create session dir")
		return
	}
	tmp := s.sessionPath + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write session file")
		return
	}
	if err := os.Rename(tmp, s.sessionPath); err != nil {
		s.logger.Warn().Err(err).Msg("failed to replace session file")
	}
}
