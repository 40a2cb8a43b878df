package models

import (
	"strings"
	"time"
)

// Profile is the public identity attached to an authenticated user.
type Profile struct {
	// ID is the stable user identifier shared with the auth service.
	ID string `json:"id"`

	// FullName is the display name shown in conversation headers.
	FullName string `json:"full_name,omitempty"`

	// Handle is the unique short name (without the @ prefix).
	Handle string `json:"handle"`

	// AvatarURL points at the hosted avatar image, if any.
	AvatarURL string `json:"avatar_url,omitempty"`

	// Bio is the free-text self description.
	Bio string `json:"bio,omitempty"`

	// City is the user's declared home city.
	City string `json:"city,omitempty"`

	// Contributor marks users allowed to publish reviews.
	Contributor bool `json:"contributor"`

	// CreatedAt is when the profile was created.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields required at the store boundary.
func (p *Profile) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(p.ID) == "" {
		validation.Add("id", ErrMissingID)
	}
	if strings.TrimSpace(p.Handle) == "" {
		validation.Add("handle", ErrMissingHandle)
	}
	return validation.Err()
}

// DisplayName returns the best human-facing name for the profile.
func (p *Profile) DisplayName() string {
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	if handle := strings.TrimSpace(p.Handle); handle != "" {
		return "@" + handle
	}
	return "unknown"
}

// Initial returns the single-character avatar fallback.
func (p *Profile) Initial() string {
	name := p.DisplayName()
	runes := []rune(strings.TrimPrefix(name, "@"))
	if len(runes) == 0 {
		return "?"
	}
	return strings.ToUpper(string(runes[0]))
}
