package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Credential repository errors.
var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrEmailAlreadyTaken  = errors.New("email already registered")
	ErrLinkNotFound       = errors.New("login link not found")
	ErrLinkExpired        = errors.New("login link expired")
)

// Credential is a stored email/password-hash pair for a user.
type Credential struct {
	UserID       string
	Email        string
	PasswordHash string
}

// CredentialRepository stores login credentials and one-time login links for
// the auth service. Password hashes are opaque to this layer.
type CredentialRepository struct {
	db *DB
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(db *DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create stores credentials for a user.
func (r *CredentialRepository) Create(ctx context.Context, credential *Credential) error {
	if strings.TrimSpace(credential.UserID) == "" || strings.TrimSpace(credential.Email) == "" {
		return errors.New("user id and email are required")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (user_id, email, password_hash)
		VALUES (?, ?, ?)
	`, credential.UserID, normalizeEmail(credential.Email), credential.PasswordHash)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEmailAlreadyTaken
		}
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}

// GetByEmail retrieves credentials by email.
func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	var credential Credential
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, email, password_hash FROM credentials WHERE email = ?
	`, normalizeEmail(email)).Scan(&credential.UserID, &credential.Email, &credential.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to scan credential: %w", err)
	}
	return &credential, nil
}

// CreateLink stores a one-time login link token for the user.
func (r *CredentialRepository) CreateLink(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_links (token, user_id, expires_at)
		VALUES (?, ?, ?)
	`, token, userID, expiresAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert login link: %w", err)
	}
	return nil
}

// RedeemLink consumes a one-time login link and returns the associated user
// ID. Redeeming deletes the row, so a second redemption reads as not found.
func (r *CredentialRepository) RedeemLink(ctx context.Context, token string, now time.Time) (string, error) {
	var userID string

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		var expiresRaw string
		err := tx.QueryRowContext(ctx, `
			SELECT user_id, expires_at FROM login_links WHERE token = ?
		`, token).Scan(&userID, &expiresRaw)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrLinkNotFound
			}
			return fmt.Errorf("failed to scan login link: %w", err)
		}

		expiresAt, err := time.Parse(time.RFC3339Nano, expiresRaw)
		if err != nil {
			return fmt.Errorf("failed to parse expires_at: %w", err)
		}
		if now.After(expiresAt) {
			return ErrLinkExpired
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM login_links WHERE token = ?`, token); err != nil {
			return fmt.Errorf("failed to consume login link: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
