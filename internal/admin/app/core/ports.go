package core

import (
	"context"

	"deliveryhub/internal/payouts"
	"deliveryhub/internal/referral"
	"deliveryhub/internal/xpkg/models"
)

type IPayouts interface {
	DueList(ctx context.Context, payeeType string) ([]payouts.PayeeSummary, error)
	Summary(ctx context.Context, payeeType, payeeID string) (payouts.PayeeSummary, error)
	Create(ctx context.Context, req payouts.CreateRequest, createdBy string) (models.Payout, error)
	Transition(ctx context.Context, id, to, reviewer, note string) (models.Payout, error)
	Get(ctx context.Context, id string) (models.Payout, error)
	List(ctx context.Context, f payouts.Filter) ([]models.Payout, error)
}

type IReferrals interface {
	Join(ctx context.Context, userID string) (referral.Affiliate, error)
	Overview(ctx context.Context, userID string) (referral.Overview, error)
	Refer(ctx context.Context, referredUserID, code string) (referral.Referral, error)
	ListAffiliates(ctx context.Context, limit, offset int) ([]referral.Affiliate, error)
	SetAffiliateStatus(ctx context.Context, userID, status string) (referral.Affiliate, error)
}

// ICache drops cached public reads after writes.
type ICache interface {
	Invalidate(ctx context.Context, prefix string)
}
