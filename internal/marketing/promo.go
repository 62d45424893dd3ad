// Package marketing holds promo code rules and the display window of banners and popups.
package marketing

import (
	"fmt"
	"math"
	"strings"
	"time"

	xerrors "deliveryhub/internal/xpkg/errors"
)

const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

var (
	ErrPromoUnknown      = fmt.Errorf("%w: promo code", xerrors.ErrNotFound)
	ErrPromoInactive     = fmt.Errorf("%w: promo code is not active", xerrors.ErrInvalidInput)
	ErrPromoExpired      = fmt.Errorf("%w: promo code has expired", xerrors.ErrInvalidInput)
	ErrPromoExhausted    = fmt.Errorf("%w: promo code has no uses left", xerrors.ErrInvalidInput)
	ErrPromoBelowMinimum = fmt.Errorf("%w: order subtotal is below the promo minimum", xerrors.ErrInvalidInput)
)

type PromoCode struct {
	Code             string     `json:"code"`
	Description      string     `json:"description"`
	DiscountType     string     `json:"discount_type"`
	Value            int64      `json:"value"`
	MinSubtotalCents int64      `json:"min_subtotal_cents"`
	MaxUses          int        `json:"max_uses"`
	UsedCount        int        `json:"used_count"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	Active           bool       `json:"active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NormalizeCode upper-cases and trims a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks an admin supplied promo code definition.
func (p PromoCode) Validate() error {
	if p.Code == "" || len(p.Code) > 32 {
		return fmt.Errorf("%w: code must be 1..32 characters", xerrors.ErrInvalidInput)
	}
	switch p.DiscountType {
	case DiscountPercent:
		if p.Value < 1 || p.Value > 100 {
			return fmt.Errorf("%w: percent discount must be in [1, 100]: %d", xerrors.ErrInvalidInput, p.Value)
		}
	case DiscountFixed:
		if p.Value <= 0 {
			return fmt.Errorf("%w: fixed discount must be positive: %d", xerrors.ErrInvalidInput, p.Value)
		}
	default:
		return fmt.Errorf("%w: unknown discount type %q", xerrors.ErrInvalidInput, p.DiscountType)
	}
	if p.MinSubtotalCents < 0 || p.MaxUses < 0 {
		return fmt.Errorf("%w: limits cannot be negative", xerrors.ErrInvalidInput)
	}
	return nil
}

// Check reports why the code cannot be applied to subtotal at now, or nil.
func (p PromoCode) Check(subtotalCents int64, now time.Time) error {
	switch {
	case !p.Active:
		return ErrPromoInactive
	case p.ExpiresAt != nil && !now.Before(*p.ExpiresAt):
		return ErrPromoExpired
	case p.MaxUses > 0 && p.UsedCount >= p.MaxUses:
		return ErrPromoExhausted
	case subtotalCents < p.MinSubtotalCents:
		return ErrPromoBelowMinimum
	}
	return nil
}

// Discount is the amount taken off subtotal. It never exceeds the subtotal.
func (p PromoCode) Discount(subtotalCents int64) int64 {
	var d int64
	switch p.DiscountType {
	case DiscountPercent:
		d = int64(math.Round(float64(subtotalCents) * float64(p.Value) / 100))
	case DiscountFixed:
		d = p.Value
	}
	if d > subtotalCents {
		d = subtotalCents
	}
	if d < 0 {
		d = 0
	}
	return d
}
