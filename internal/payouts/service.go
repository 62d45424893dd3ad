package payouts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"deliveryhub/internal/earnings"
	"deliveryhub/internal/xpkg/config"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/models"
)

type Repository interface {
	Payees(ctx context.Context, payeeType, payeeID string) ([]Payee, error)
	DeliveredOrders(ctx context.Context, payeeType, payeeID string, fn func(payeeID string, o earnings.OrderAmounts)) error
	AffiliateRewards(ctx context.Context, payeeID string) (map[string]int64, error)
	PayoutAmounts(ctx context.Context, payeeType, payeeID string) (map[string][]earnings.PayoutAmount, error)
	Insert(ctx context.Context, p models.Payout, earnedCents int64) (models.Payout, error)
	Transition(ctx context.Context, id, to, reviewer, note string, at time.Time) (models.Payout, error)
	Get(ctx context.Context, id string) (models.Payout, error)
	List(ctx context.Context, f Filter) ([]models.Payout, error)
}

type Service struct {
	repo             Repository
	locker           Locker
	rates            earnings.Rates
	minPayoutCents   int64
	defaultFrequency earnings.Frequency
	mylog            logger.Logger
	now              func() time.Time
}

func NewService(repo Repository, locker Locker, rates earnings.Rates, minPayoutCents int64, defaultFrequency earnings.Frequency, mylog logger.Logger) *Service {
	return &Service{
		repo:             repo,
		locker:           locker,
		rates:            rates,
		minPayoutCents:   minPayoutCents,
		defaultFrequency: defaultFrequency,
		mylog:            mylog,
		now:              time.Now,
	}
}

// FromConfig builds the service with the rates and thresholds of the payouts section.
func FromConfig(repo Repository, locker Locker, c *config.Payouts, mylog logger.Logger) *Service {
	rates := earnings.Rates{RestaurantCommission: c.RestaurantCommission, DriverFeeShare: c.DriverFeeShare}
	return NewService(repo, locker, rates, c.MinPayoutCents, earnings.Frequency(c.DefaultFrequency), mylog)
}

func (s *Service) earned(ctx context.Context, payeeType, payeeID string) (map[string]int64, error) {
	switch payeeType {
	case models.PayeeAffiliate:
		return s.repo.AffiliateRewards(ctx, payeeID)
	case models.PayeeRestaurant, models.PayeeDriver:
		out := map[string]int64{}
		err := s.repo.DeliveredOrders(ctx, payeeType, payeeID, func(id string, o earnings.OrderAmounts) {
			if payeeType == models.PayeeRestaurant {
				out[id] += s.rates.RestaurantEarning(o)
			} else {
				out[id] += s.rates.DriverEarning(o)
			}
		})
		return out, err
	default:
		return nil, ErrPayeeType
	}
}

// summaries computes the balance of every payee of a type, or of one payee.
func (s *Service) summaries(ctx context.Context, payeeType, payeeID string) ([]PayeeSummary, error) {
	payees, err := s.repo.Payees(ctx, payeeType, payeeID)
	if err != nil {
		return nil, err
	}
	if len(payees) == 0 {
		return nil, nil
	}
	earned, err := s.earned(ctx, payeeType, payeeID)
	if err != nil {
		return nil, err
	}
	paid, err := s.repo.PayoutAmounts(ctx, payeeType, payeeID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out := make([]PayeeSummary, 0, len(payees))
	for _, p := range payees {
		if _, err := earnings.ParseFrequency(string(p.Frequency)); err != nil {
			s.mylog.Action("payout_summary").Warn("unknown payout frequency, using default", "payee_id", p.ID, "frequency", p.Frequency)
			p.Frequency = s.defaultFrequency
		}
		out = append(out, PayeeSummary{
			Payee:      p,
			DueSummary: earnings.Summarize(earned[p.ID], paid[p.ID], p.Frequency, p.CreatedAt, now, s.minPayoutCents),
		})
	}
	return out, nil
}

// Summary is the balance of a single payee.
func (s *Service) Summary(ctx context.Context, payeeType, payeeID string) (PayeeSummary, error) {
	if !ValidPayeeType(payeeType) {
		return PayeeSummary{}, ErrPayeeType
	}
	list, err := s.summaries(ctx, payeeType, payeeID)
	if err != nil {
		return PayeeSummary{}, err
	}
	if len(list) == 0 {
		return PayeeSummary{}, ErrUnknownPayee
	}
	return list[0], nil
}

// DueList lists payees with money owed, scheduled ones first and then by amount.
// An empty payeeType covers every type.
func (s *Service) DueList(ctx context.Context, payeeType string) ([]PayeeSummary, error) {
	types := PayeeTypes
	if payeeType != "" {
		if !ValidPayeeType(payeeType) {
			return nil, ErrPayeeType
		}
		types = []string{payeeType}
	}

	out := []PayeeSummary{}
	for _, t := range types {
		list, err := s.summaries(ctx, t, "")
		if err != nil {
			return nil, err
		}
		for _, ps := range list {
			if ps.DueCents > 0 {
				out = append(out, ps)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDue != out[j].IsDue {
			return out[i].IsDue
		}
		return out[i].DueCents > out[j].DueCents
	})
	return out, nil
}

func payeeLockKey(payeeType, payeeID string) string {
	return "payouts:" + payeeType + ":" + payeeID
}

// Create records a pending payout for the payee. The balance is checked under a
// Redis lock and checked again inside the insert transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest, createdBy string) (models.Payout, error) {
	if err := req.Validate(); err != nil {
		return models.Payout{}, err
	}
	mylog := s.mylog.Action("payout_create").With("payee_type", req.PayeeType, "payee_id", req.PayeeID)

	release, err := s.locker.Acquire(ctx, payeeLockKey(req.PayeeType, req.PayeeID))
	if err != nil {
		return models.Payout{}, err
	}
	defer release()

	sum, err := s.Summary(ctx, req.PayeeType, req.PayeeID)
	if err != nil {
		return models.Payout{}, err
	}
	if sum.InFlightCents > 0 {
		return models.Payout{}, ErrOpenPayout
	}
	amount := req.AmountCents
	if amount == 0 {
		amount = sum.DueCents
	}
	if amount <= 0 {
		return models.Payout{}, ErrNothingDue
	}
	if amount > sum.DueCents {
		return models.Payout{}, fmt.Errorf("%w: %d > %d", ErrExceedsDue, amount, sum.DueCents)
	}

	p, err := s.repo.Insert(ctx, models.Payout{
		PayeeType:   req.PayeeType,
		PayeeID:     req.PayeeID,
		AmountCents: amount,
		Note:        req.Note,
		CreatedBy:   createdBy,
	}, sum.EarnedCents)
	if err != nil {
		return models.Payout{}, err
	}

	httpx.PayoutTransitions.WithLabelValues(earnings.PayoutPending).Inc()
	mylog.Info("payout created", "payout_id", p.ID, "amount_cents", p.AmountCents, "created_by", createdBy)
	return p, nil
}

// Transition approves, rejects or marks a payout paid.
func (s *Service) Transition(ctx context.Context, id, to, reviewer, note string) (models.Payout, error) {
	switch to {
	case earnings.PayoutApproved, earnings.PayoutRejected, earnings.PayoutPaid:
	default:
		return models.Payout{}, ErrUnknownStatus
	}

	p, err := s.repo.Transition(ctx, id, to, reviewer, note, s.now().UTC())
	if err != nil {
		return models.Payout{}, err
	}

	httpx.PayoutTransitions.WithLabelValues(to).Inc()
	s.mylog.Action("payout_transition").Info("payout status changed", "payout_id", id, "status", to, "reviewed_by", reviewer)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Payout, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.Payout, error) {
	if f.PayeeType != "" && !ValidPayeeType(f.PayeeType) {
		return nil, ErrPayeeType
	}
	switch f.Status {
	case "", earnings.PayoutPending, earnings.PayoutApproved, earnings.PayoutPaid, earnings.PayoutRejected:
	default:
		return nil, ErrUnknownStatus
	}
	return s.repo.List(ctx, f)
}

// CreateDue opens a payout for every payee whose schedule says it is due.
// Failures for one payee are logged and do not stop the others.
func (s *Service) CreateDue(ctx context.Context, createdBy string) (int, error) {
	mylog := s.mylog.Action("payout_schedule")
	created := 0
	for _, t := range PayeeTypes {
		list, err := s.summaries(ctx, t, "")
		if err != nil {
			return created, fmt.Errorf("summaries for %s: %w", t, err)
		}
		for _, ps := range list {
			if !ps.IsDue {
				continue
			}
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			_, err := s.Create(ctx, CreateRequest{
				PayeeType: t,
				PayeeID:   ps.ID,
				Note:      "scheduled " + string(ps.Frequency) + " payout",
			}, createdBy)
			switch {
			case err == nil:
				created++
			case errors.Is(err, xerrors.ErrConflict), errors.Is(err, xerrors.ErrLocked):
				mylog.Debug("payee skipped", "payee_type", t, "payee_id", ps.ID, "reason", err.Error())
			default:
				mylog.Error("failed to create scheduled payout", err, "payee_type", t, "payee_id", ps.ID)
			}
		}
	}
	return created, nil
}
