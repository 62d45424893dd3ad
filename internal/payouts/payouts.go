// Package payouts turns derived earnings into reviewed payout records and
// creates the scheduled ones.
package payouts

import (
	"fmt"
	"time"

	"deliveryhub/internal/earnings"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/models"
)

var (
	ErrUnknownPayee    = fmt.Errorf("%w: payee", xerrors.ErrNotFound)
	ErrOpenPayout      = fmt.Errorf("%w: payee already has a pending or approved payout", xerrors.ErrConflict)
	ErrExceedsDue      = fmt.Errorf("%w: amount exceeds what is due", xerrors.ErrConflict)
	ErrNothingDue      = fmt.Errorf("%w: nothing is due", xerrors.ErrConflict)
	ErrPayeeType       = fmt.Errorf("%w: payee_type must be restaurant, driver or affiliate", xerrors.ErrInvalidInput)
	ErrNegativeAmount  = fmt.Errorf("%w: amount_cents cannot be negative", xerrors.ErrInvalidInput)
	ErrUnknownStatus   = fmt.Errorf("%w: unknown payout status", xerrors.ErrInvalidInput)
	ErrPayeeIDRequired = fmt.Errorf("%w: payee_id", xerrors.ErrFieldIsEmpty)
)

// PayeeTypes in the order the scheduler visits them.
var PayeeTypes = []string{models.PayeeRestaurant, models.PayeeDriver, models.PayeeAffiliate}

func ValidPayeeType(t string) bool {
	switch t {
	case models.PayeeRestaurant, models.PayeeDriver, models.PayeeAffiliate:
		return true
	}
	return false
}

var transitions = map[string][]string{
	earnings.PayoutPending:  {earnings.PayoutApproved, earnings.PayoutRejected},
	earnings.PayoutApproved: {earnings.PayoutPaid, earnings.PayoutRejected},
}

// CanTransition reports whether a payout may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Payee is anyone the platform owes money to.
type Payee struct {
	Type      string             `json:"payee_type"`
	ID        string             `json:"payee_id"`
	Name      string             `json:"name"`
	Frequency earnings.Frequency `json:"payout_frequency"`
	CreatedAt time.Time          `json:"created_at"`
}

type PayeeSummary struct {
	Payee
	earnings.DueSummary
}

// CreateRequest asks for a payout; zero AmountCents means everything due.
type CreateRequest struct {
	PayeeType   string `json:"payee_type"`
	PayeeID     string `json:"payee_id"`
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note"`
}

func (r CreateRequest) Validate() error {
	if !ValidPayeeType(r.PayeeType) {
		return ErrPayeeType
	}
	if r.PayeeID == "" {
		return ErrPayeeIDRequired
	}
	if r.AmountCents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

type Filter struct {
	PayeeType string
	PayeeID   string
	Status    string
	Limit     int
	Offset    int
}
