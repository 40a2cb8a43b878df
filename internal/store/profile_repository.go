package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tablee/tablee/internal/models"
)

// Profile repository errors.
var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrHandleAlreadyTaken = errors.New("handle already taken")
)

// ProfileRepository handles profile persistence.
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create adds a new profile.
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, handle, full_name, avatar_url, bio, city, contributor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		profile.ID,
		profile.Handle,
		profile.FullName,
		profile.AvatarURL,
		profile.Bio,
		profile.City,
		boolToInt(profile.Contributor),
		profile.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrHandleAlreadyTaken
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// Get retrieves a profile by ID.
func (r *ProfileRepository) Get(ctx context.Context, id string) (*models.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, handle, full_name, avatar_url, bio, city, contributor, created_at
		FROM profiles
		WHERE id = ?
	`, id)
	return scanProfile(row.Scan)
}

// GetByHandle retrieves a profile by its unique handle.
func (r *ProfileRepository) GetByHandle(ctx context.Context, handle string) (*models.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, handle, full_name, avatar_url, bio, city, contributor, created_at
		FROM profiles
		WHERE handle = ?
	`, strings.TrimSpace(strings.TrimPrefix(handle, "@")))
	return scanProfile(row.Scan)
}

// Update replaces the mutable profile fields.
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE profiles
		SET handle = ?, full_name = ?, avatar_url = ?, bio = ?, city = ?, contributor = ?
		WHERE id = ?
	`,
		profile.Handle,
		profile.FullName,
		profile.AvatarURL,
		profile.Bio,
		profile.City,
		boolToInt(profile.Contributor),
		profile.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrHandleAlreadyTaken
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func scanProfile(scan func(dest ...any) error) (*models.Profile, error) {
	var profile models.Profile
	var contributor int
	var createdAt string

	err := scan(
		&profile.ID,
		&profile.Handle,
		&profile.FullName,
		&profile.AvatarURL,
		&profile.Bio,
		&profile.City,
		&contributor,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	profile.Contributor = contributor != 0

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	profile.CreatedAt = parsed

	return &profile, nil
}
