package marketing

import (
	"fmt"
	"time"

	xerrors "deliveryhub/internal/xpkg/errors"
)

// Audience values for popups.
const (
	AudienceAll = "all"
)

type Banner struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	ImageURL  string     `json:"image_url"`
	LinkURL   string     `json:"link_url,omitempty"`
	Position  int        `json:"position"`
	Active    bool       `json:"active"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Popup struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	ImageURL  string     `json:"image_url,omitempty"`
	CTALabel  string     `json:"cta_label,omitempty"`
	CTAURL    string     `json:"cta_url,omitempty"`
	Audience  string     `json:"audience"`
	Active    bool       `json:"active"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// InWindow reports whether now falls inside [startsAt, endsAt). Nil bounds are open.
func InWindow(startsAt, endsAt *time.Time, now time.Time) bool {
	if startsAt != nil && now.Before(*startsAt) {
		return false
	}
	if endsAt != nil && !now.Before(*endsAt) {
		return false
	}
	return true
}

func (b Banner) Visible(now time.Time) bool {
	return b.Active && InWindow(b.StartsAt, b.EndsAt, now)
}

// Visible reports whether the popup is shown to role at now.
func (p Popup) Visible(role string, now time.Time) bool {
	if !p.Active || !InWindow(p.StartsAt, p.EndsAt, now) {
		return false
	}
	return p.Audience == AudienceAll || p.Audience == role
}

func validateWindow(startsAt, endsAt *time.Time) error {
	if startsAt != nil && endsAt != nil && !endsAt.After(*startsAt) {
		return fmt.Errorf("%w: ends_at must be after starts_at", xerrors.ErrInvalidInput)
	}
	return nil
}

func (b Banner) Validate() error {
	if b.Title == "" || len(b.Title) > 120 {
		return fmt.Errorf("%w: title must be 1..120 characters", xerrors.ErrInvalidInput)
	}
	if b.ImageURL == "" {
		return fmt.Errorf("%w: image_url", xerrors.ErrFieldIsEmpty)
	}
	return validateWindow(b.StartsAt, b.EndsAt)
}

func (p Popup) Validate() error {
	if p.Title == "" || len(p.Title) > 120 {
		return fmt.Errorf("%w: title must be 1..120 characters", xerrors.ErrInvalidInput)
	}
	switch p.Audience {
	case AudienceAll, "customer", "restaurant", "driver", "admin":
	default:
		return fmt.Errorf("%w: unknown audience %q", xerrors.ErrInvalidInput, p.Audience)
	}
	return validateWindow(p.StartsAt, p.EndsAt)
}
