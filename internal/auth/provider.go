package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tablee/tablee/internal/logging"
	"github.com/tablee/tablee/internal/models"
)

// State is the session provider's lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

const defaultSignOutTimeout = 2 * time.Second

// SessionService is the slice of the auth service the provider depends on.
type SessionService interface {
	CurrentUser(ctx context.Context) (string, error)
	Profile(ctx context.Context, userID string) (*models.Profile, error)
	SignOut(ctx context.Context) error
	SignOutLocal()
	OnSessionChange(handler SessionHandler) func()
}

// Provider holds the authenticated identity and derived profile for the
// application and owns sign-out sequencing.
type Provider struct {
	service SessionService
	logger  zerolog.Logger

	// detach tears down all active realtime subscriptions. It runs before
	// remote sign-out so channel teardown cannot stall it.
	detach func()

	signOutTimeout time.Duration

	mu          sync.Mutex
	state       State
	userID      string
	profile     *models.Profile
	unsubscribe func()
	listeners   map[int]func()
	listenerID  int
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithDetach sets the subscription teardown hook run before sign-out.
func WithDetach(detach func()) ProviderOption {
	return func(p *Provider) {
		p.detach = detach
	}
}

// WithSignOutTimeout bounds how long remote sign-out may take before the
// provider falls back to local invalidation.
func WithSignOutTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		if timeout > 0 {
			p.signOutTimeout = timeout
		}
	}
}

// NewProvider creates a session provider over the given service.
func NewProvider(service SessionService, opts ...ProviderOption) *Provider {
	p := &Provider{
		service:        service,
		logger:         logging.Component("session"),
		signOutTimeout: defaultSignOutTimeout,
		state:          StateUninitialized,
		listeners:      make(map[int]func()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Activate fetches the current session once and then follows session change
// events. The initial "session restored" event duplicates the fetch and is
// ignored.
func (p *Provider) Activate(ctx context.Context) error {
	p.mu.Lock()
	p.state = StateLoading
	p.mu.Unlock()
	p.notify()

	userID, err := p.service.CurrentUser(ctx)
	if err != nil {
		p.setSession("", nil)
		return err
	}

	var profile *models.Profile
	if userID != "" {
		profile, err = p.service.Profile(ctx, userID)
		if err != nil {
			p.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to load profile")
			profile = nil
		}
	}
	p.setSession(userID, profile)

	restored := false
	unsubscribe := p.service.OnSessionChange(func(event SessionEvent) {
		// The first restored event mirrors the fetch above; applying it
		// would trigger a duplicate fetch-and-set cycle.
		if event.Type == SessionRestored && !restored {
			restored = true
			return
		}
		restored = true
		p.applySessionEvent(event)
	})

	p.mu.Lock()
	p.unsubscribe = unsubscribe
	p.mu.Unlock()
	return nil
}

// Deactivate stops following session changes.
func (p *Provider) Deactivate() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// State returns the current lifecycle state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// UserID returns the authenticated user's ID, or "" when anonymous.
func (p *Provider) UserID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userID
}

// Profile returns the authenticated user's profile, or nil.
func (p *Provider) Profile() *models.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.profile
}

// Loading reports whether the initial session fetch is still in flight.
func (p *Provider) Loading() bool {
	return p.State() == StateLoading
}

// Authenticated reports whether a user is signed in.
func (p *Provider) Authenticated() bool {
	return p.State() == StateAuthenticated
}

// OnChange registers a listener notified on every state change and returns
// an unsubscribe function.
func (p *Provider) OnChange(listener func()) func() {
	p.mu.Lock()
	p.listenerID++
	id := p.listenerID
	p.listeners[id] = listener
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// SignOut invalidates the session. Realtime subscriptions are detached
// first, the remote call is bounded by the configured timeout, and local
// state is cleared unconditionally whatever the remote outcome.
func (p *Provider) SignOut(ctx context.Context) {
	if p.detach != nil {
		p.detach()
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, p.signOutTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.service.SignOut(timeoutCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			p.logger.Warn().Err(err).Msg("remote sign-out failed, forcing local sign-out")
			p.service.SignOutLocal()
		}
	case <-timeoutCtx.Done():
		p.logger.Warn().Dur("timeout", p.signOutTimeout).Msg("remote sign-out timed out, forcing local sign-out")
		p.service.SignOutLocal()
	}

	// Clear identity regardless of what the remote call did.
	p.setSession("", nil)
}

func (p *Provider) applySessionEvent(event SessionEvent) {
	if event.UserID == "" {
		p.setSession("", nil)
		return
	}

	profile, err := p.service.Profile(context.Background(), event.UserID)
	if err != nil {
		p.logger.Warn().Err(err).Str("user_id", event.UserID).Msg("failed to load profile")
		profile = nil
	}
	p.setSession(event.UserID, profile)
}

func (p *Provider) setSession(userID string, profile *models.Profile) {
	p.mu.Lock()
	p.userID = userID
	p.profile = profile
	if userID == "" {
		p.state = StateAnonymous
	} else {
		p.state = StateAuthenticated
	}
	p.mu.Unlock()
	p.notify()
}

func (p *Provider) notify() {
	p.mu.Lock()
	var listeners []func()
	for _, listener := range p.listeners {
		listeners = append(listeners, listener)
	}
	p.mu.Unlock()

	for _, listener := range listeners {
		listener()
	}
}
