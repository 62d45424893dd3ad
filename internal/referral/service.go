package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/logger"
)

type Repository interface {
	CreateAffiliate(ctx context.Context, userID, code string) (Affiliate, error)
	AffiliateByUser(ctx context.Context, userID string) (Affiliate, error)
	ListAffiliates(ctx context.Context, limit, offset int) ([]Affiliate, error)
	SetAffiliateStatus(ctx context.Context, userID, status string) (Affiliate, error)
	ReferralsByAffiliate(ctx context.Context, affiliateID string) ([]Referral, error)
	Refer(ctx context.Context, code, referredUserID string, check func(Eligibility) error) (Referral, error)
	Evaluate(ctx context.Context, referredUserID string, minOrderCents int64, fn func(ref Referral, qualifying int) (Referral, bool)) (Referral, bool, error)
	// PendingReferredUsers pages through pending referrals by referred user id.
	PendingReferredUsers(ctx context.Context, after string, limit int) ([]string, error)
}

const (
	codeAttempts   = 5
	sweepBatchSize = 500
)

type Service struct {
	repo       Repository
	rules      Rules
	mylog      logger.Logger
	now        func() time.Time
	sweepBatch int
}

func NewService(repo Repository, rules Rules, mylog logger.Logger) *Service {
	return &Service{
		repo:       repo,
		rules:      rules,
		mylog:      mylog,
		now:        time.Now,
		sweepBatch: sweepBatchSize,
	}
}

// Overview is what an affiliate sees about their own program.
type Overview struct {
	Affiliate     Affiliate  `json:"affiliate"`
	Referrals     []Referral `json:"referrals"`
	PendingCount  int        `json:"pending_count"`
	RewardedCount int        `json:"rewarded_count"`
	RewardedCents int64      `json:"rewarded_cents"`
	MinOrders     int        `json:"min_orders"`
	RewardCents   int64      `json:"reward_cents"`
}

// Join makes userID an affiliate. Joining twice returns the existing affiliate.
func (s *Service) Join(ctx context.Context, userID string) (Affiliate, error) {
	mylog := s.mylog.Action("affiliate_join")

	existing, err := s.repo.AffiliateByUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, xerrors.ErrNotFound) {
		return Affiliate{}, err
	}

	for i := 0; i < codeAttempts; i++ {
		a, err := s.repo.CreateAffiliate(ctx, userID, GenerateCode())
		if err == nil {
			mylog.Info("affiliate joined", "user_id", userID, "code", a.Code)
			return a, nil
		}
		if !errors.Is(err, xerrors.ErrConflict) {
			return Affiliate{}, err
		}
		// a concurrent join for the same user wins the primary key
		if existing, err := s.repo.AffiliateByUser(ctx, userID); err == nil {
			return existing, nil
		}
	}
	return Affiliate{}, fmt.Errorf("could not allocate a unique referral code")
}

func (s *Service) Overview(ctx context.Context, userID string) (Overview, error) {
	a, err := s.repo.AffiliateByUser(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	refs, err := s.repo.ReferralsByAffiliate(ctx, a.UserID)
	if err != nil {
		return Overview{}, err
	}

	o := Overview{
		Affiliate:   a,
		Referrals:   refs,
		MinOrders:   s.rules.MinOrders,
		RewardCents: s.rules.RewardCents,
	}
	for _, r := range refs {
		switch r.Status {
		case StatusPending:
			o.PendingCount++
		case StatusRewarded:
			o.RewardedCount++
			o.RewardedCents += r.RewardCents
		}
	}
	return o, nil
}

// Refer attaches referredUserID to the affiliate owning code.
func (s *Service) Refer(ctx context.Context, referredUserID, code string) (Referral, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ValidCode(code) {
		return Referral{}, ErrUnknownCode
	}

	ref, err := s.repo.Refer(ctx, code, referredUserID, CheckEligibility)
	if err != nil {
		return Referral{}, err
	}
	s.mylog.Action("referral_created").Info("referral recorded", "affiliate_id", ref.AffiliateID, "referred_user_id", referredUserID)
	return ref, nil
}

// OnOrderDelivered re-evaluates the pending referral of customerID, if any.
func (s *Service) OnOrderDelivered(ctx context.Context, customerID string) (Referral, bool, error) {
	ref, changed, err := s.repo.Evaluate(ctx, customerID, s.rules.MinOrderCents, func(ref Referral, qualifying int) (Referral, bool) {
		return Evaluate(ref, qualifying, s.rules, s.now())
	})
	if errors.Is(err, xerrors.ErrNotFound) {
		return Referral{}, false, nil
	}
	if err != nil {
		return Referral{}, false, fmt.Errorf("evaluate referral: %w", err)
	}
	if changed && ref.Status == StatusRewarded {
		s.mylog.Action("referral_rewarded").Info("referral rewarded",
			"affiliate_id", ref.AffiliateID,
			"referred_user_id", ref.ReferredUserID,
			"reward_cents", ref.RewardCents,
		)
	}
	return ref, changed, nil
}

// Sweep evaluates every pending referral and returns how many were rewarded.
// It catches deliveries whose evaluation failed after the status change committed.
// Referrals are paged by user id so ones that never qualify cannot hide newer ones.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	rewarded := 0
	after := ""
	for {
		users, err := s.repo.PendingReferredUsers(ctx, after, s.sweepBatch)
		if err != nil {
			return rewarded, err
		}

		for _, userID := range users {
			if ctx.Err() != nil {
				return rewarded, ctx.Err()
			}
			after = userID
			ref, changed, err := s.OnOrderDelivered(ctx, userID)
			if err != nil {
				s.mylog.Action("referral_sweep").Error("failed to evaluate referral", err, "referred_user_id", userID)
				continue
			}
			if changed && ref.Status == StatusRewarded {
				rewarded++
			}
		}
		if len(users) < s.sweepBatch {
			return rewarded, nil
		}
	}
}

func (s *Service) ListAffiliates(ctx context.Context, limit, offset int) ([]Affiliate, error) {
	return s.repo.ListAffiliates(ctx, limit, offset)
}

func (s *Service) SetAffiliateStatus(ctx context.Context, userID, status string) (Affiliate, error) {
	if status != AffiliateActive && status != AffiliateSuspended {
		return Affiliate{}, fmt.Errorf("%w: status must be %q or %q", xerrors.ErrInvalidInput, AffiliateActive, AffiliateSuspended)
	}
	a, err := s.repo.SetAffiliateStatus(ctx, userID, status)
	if err != nil {
		return Affiliate{}, err
	}
	s.mylog.Action("affiliate_status_changed").Info("affiliate status updated", "user_id", userID, "status", status)
	return a, nil
}
