// Package referral runs the affiliate program: affiliates share a code, and a referral
// pays a fixed reward once the referred customer completes enough qualifying orders.
package referral

import (
	"fmt"
	"strings"
	"time"

	xerrors "deliveryhub/internal/xpkg/errors"

	"github.com/google/uuid"
)

const (
	AffiliateActive    = "active"
	AffiliateSuspended = "suspended"

	StatusPending  = "pending"
	StatusRewarded = "rewarded"
	StatusVoid     = "void"
)

const codeLen = 8

var (
	ErrUnknownCode        = fmt.Errorf("%w: referral code", xerrors.ErrNotFound)
	ErrSelfReferral       = fmt.Errorf("%w: cannot use your own referral code", xerrors.ErrConflict)
	ErrAlreadyReferred    = fmt.Errorf("%w: user was already referred", xerrors.ErrConflict)
	ErrExistingCustomer   = fmt.Errorf("%w: customers with delivered orders cannot be referred", xerrors.ErrConflict)
	ErrAffiliateSuspended = fmt.Errorf("%w: affiliate is suspended", xerrors.ErrConflict)
)

type Affiliate struct {
	UserID    string    `json:"user_id"`
	Code      string    `json:"code"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Referral struct {
	ID               string     `json:"id"`
	AffiliateID      string     `json:"affiliate_id"`
	ReferredUserID   string     `json:"referred_user_id"`
	Status           string     `json:"status"`
	QualifyingOrders int        `json:"qualifying_orders"`
	RewardCents      int64      `json:"reward_cents"`
	CreatedAt        time.Time  `json:"created_at"`
	RewardedAt       *time.Time `json:"rewarded_at,omitempty"`
}

type Rules struct {
	MinOrders     int
	MinOrderCents int64
	RewardCents   int64
}

// GenerateCode returns 8 upper-case hex characters taken from a random UUID.
func GenerateCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:codeLen])
}

// ValidCode reports whether s looks like a referral code.
func ValidCode(s string) bool {
	if len(s) != codeLen {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// Eligibility is what the store knows about a referral attempt.
type Eligibility struct {
	Affiliate       Affiliate
	ReferredUserID  string
	AlreadyReferred bool
	HasDelivered    bool
}

// CheckEligibility applies the referral rules in order.
func CheckEligibility(e Eligibility) error {
	switch {
	case e.Affiliate.UserID == e.ReferredUserID:
		return ErrSelfReferral
	case e.Affiliate.Status != AffiliateActive:
		return ErrAffiliateSuspended
	case e.AlreadyReferred:
		return ErrAlreadyReferred
	case e.HasDelivered:
		return ErrExistingCustomer
	}
	return nil
}

// Evaluate updates a pending referral with the current qualifying order count and
// rewards it when the threshold is met. It reports whether the referral changed.
func Evaluate(ref Referral, qualifying int, rules Rules, now time.Time) (Referral, bool) {
	if ref.Status != StatusPending {
		return ref, false
	}
	changed := ref.QualifyingOrders != qualifying
	ref.QualifyingOrders = qualifying
	if qualifying >= rules.MinOrders {
		ref.Status = StatusRewarded
		ref.RewardCents = rules.RewardCents
		rewardedAt := now
		ref.RewardedAt = &rewardedAt
		changed = true
	}
	return ref, changed
}
