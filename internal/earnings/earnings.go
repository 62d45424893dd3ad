// Package earnings computes what the platform owes restaurants, drivers and affiliates.
// Balances are never stored: every figure is derived from orders, referrals and payouts.
package earnings

import (
	"fmt"
	"math"
	"time"
)

type Frequency string

const (
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
)

func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(s); f {
	case Daily, Weekly, Biweekly, Monthly:
		return f, nil
	default:
		return "", fmt.Errorf("unknown payout frequency: %q", s)
	}
}

// NextDueDate returns the first payout date after anchor.
// Monthly steps clamp to the last day of the target month.
func NextDueDate(freq Frequency, anchor time.Time) time.Time {
	switch freq {
	case Daily:
		return anchor.AddDate(0, 0, 1)
	case Weekly:
		return anchor.AddDate(0, 0, 7)
	case Biweekly:
		return anchor.AddDate(0, 0, 14)
	case Monthly:
		return addMonthClamped(anchor, 1)
	default:
		return anchor.AddDate(0, 0, 7)
	}
}

func addMonthClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

type Rates struct {
	RestaurantCommission float64
	DriverFeeShare       float64
}

// OrderAmounts is the part of an order that earnings depend on.
type OrderAmounts struct {
	Status           string
	SubtotalCents    int64
	DeliveryFeeCents int64
	TipCents         int64
}

const statusDelivered = "delivered"

// RestaurantEarning is the subtotal minus the platform commission.
// Promo discounts are funded by the platform and do not reduce it.
func (r Rates) RestaurantEarning(o OrderAmounts) int64 {
	if o.Status != statusDelivered {
		return 0
	}
	commission := int64(math.Round(float64(o.SubtotalCents) * r.RestaurantCommission))
	return o.SubtotalCents - commission
}

// DriverEarning is the driver's share of the delivery fee plus the whole tip.
func (r Rates) DriverEarning(o OrderAmounts) int64 {
	if o.Status != statusDelivered {
		return 0
	}
	return int64(math.Round(float64(o.DeliveryFeeCents)*r.DriverFeeShare)) + o.TipCents
}

// Payout statuses as stored in the payouts table.
const (
	PayoutPending  = "pending"
	PayoutApproved = "approved"
	PayoutPaid     = "paid"
	PayoutRejected = "rejected"
)

type PayoutAmount struct {
	Status      string
	AmountCents int64
	PaidAt      *time.Time
}

type DueSummary struct {
	EarnedCents   int64      `json:"earned_cents"`
	PaidCents     int64      `json:"paid_cents"`
	InFlightCents int64      `json:"in_flight_cents"`
	DueCents      int64      `json:"due_cents"`
	LastPaidAt    *time.Time `json:"last_paid_at,omitempty"`
	NextDueAt     time.Time  `json:"next_due_at"`
	IsDue         bool       `json:"is_due"`
}

// Summarize aggregates a payee's earnings against its payouts.
// createdAt anchors the schedule until the first payout is paid.
func Summarize(earnedCents int64, payouts []PayoutAmount, freq Frequency, createdAt, now time.Time, minPayoutCents int64) DueSummary {
	s := DueSummary{EarnedCents: earnedCents}
	for _, p := range payouts {
		switch p.Status {
		case PayoutPaid:
			s.PaidCents += p.AmountCents
			if p.PaidAt != nil && (s.LastPaidAt == nil || p.PaidAt.After(*s.LastPaidAt)) {
				paidAt := *p.PaidAt
				s.LastPaidAt = &paidAt
			}
		case PayoutPending, PayoutApproved:
			s.InFlightCents += p.AmountCents
		}
	}

	s.DueCents = s.EarnedCents - s.PaidCents - s.InFlightCents
	if s.DueCents < 0 {
		s.DueCents = 0
	}

	anchor := createdAt
	if s.LastPaidAt != nil {
		anchor = *s.LastPaidAt
	}
	s.NextDueAt = NextDueDate(freq, anchor)
	s.IsDue = s.DueCents > 0 && s.DueCents >= minPayoutCents && !now.Before(s.NextDueAt) && s.InFlightCents == 0
	return s
}
