package payouts

import (
	"context"
	"errors"
	"testing"
	"time"

	"deliveryhub/internal/earnings"
	"deliveryhub/internal/referral"
	"deliveryhub/internal/xpkg/db"
	"deliveryhub/internal/xpkg/db/dbtest"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pgRates = earnings.Rates{RestaurantCommission: 0.1, DriverFeeShare: 0.8}

// seedPayees creates a restaurant and a driver old enough for their weekly payout,
// each with delivered orders, plus one order that is not delivered yet.
func seedPayees(t *testing.T, d *db.DB) (restaurantID string) {
	t.Helper()
	ctx := context.Background()

	restaurantID = dbtest.Restaurant(t, d, "u-owner", "Napoli")
	dbtest.Driver(t, d, "d-1", models.DriverOnline)
	for _, o := range []dbtest.OrderRow{
		{CustomerID: "u-1", RestaurantID: restaurantID, DriverID: "d-1", Status: models.StatusDelivered, SubtotalCents: 2000, DeliveryFeeCents: 1000, TipCents: 500},
		{CustomerID: "u-2", RestaurantID: restaurantID, Type: models.OrderTakeout, Status: models.StatusDelivered, SubtotalCents: 2000},
		{CustomerID: "u-3", RestaurantID: restaurantID, Status: models.StatusPreparing, SubtotalCents: 9000},
	} {
		dbtest.Order(t, d, o)
	}

	_, err := d.GetPool().Exec(ctx, `UPDATE restaurants SET created_at = now() - interval '30 days'`)
	require.NoError(t, err)
	_, err = d.GetPool().Exec(ctx, `UPDATE drivers SET created_at = now() - interval '30 days'`)
	require.NoError(t, err)
	return restaurantID
}

func newPgService(d *db.DB) *Service {
	return NewService(NewRepo(d.GetPool()), newFakeLocker(), pgRates, 1000, earnings.Weekly, logger.Discard())
}

func TestRepo_RestaurantSummary(t *testing.T) {
	d := dbtest.Open(t)
	restaurant := seedPayees(t, d)
	svc := newPgService(d)
	ctx := context.Background()

	sum, err := svc.Summary(ctx, models.PayeeRestaurant, restaurant)
	require.NoError(t, err)
	assert.Equal(t, restaurant, sum.ID)
	assert.Equal(t, "Napoli", sum.Name)
	assert.Equal(t, int64(3600), sum.EarnedCents)
	assert.Equal(t, int64(3600), sum.DueCents)
	assert.True(t, sum.IsDue)

	drv, err := svc.Summary(ctx, models.PayeeDriver, "d-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1300), drv.EarnedCents)

	_, err = svc.Summary(ctx, models.PayeeRestaurant, "not-a-uuid")
	assert.ErrorIs(t, err, ErrUnknownPayee)

	due, err := svc.DueList(ctx, "")
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, models.PayeeRestaurant, due[0].Type)
}

func TestRepo_InsertRechecksUnderLock(t *testing.T) {
	d := dbtest.Open(t)
	restaurant := seedPayees(t, d)
	repo := NewRepo(d.GetPool())
	ctx := context.Background()

	p := models.Payout{PayeeType: models.PayeeRestaurant, PayeeID: restaurant, AmountCents: 1000, CreatedBy: "u-admin"}
	first, err := repo.Insert(ctx, p, 3600)
	require.NoError(t, err)
	assert.Equal(t, earnings.PayoutPending, first.Status)

	_, err = repo.Insert(ctx, p, 3600)
	assert.ErrorIs(t, err, ErrOpenPayout)

	// the partial unique index backs the check for writers that skip it
	_, err = d.GetPool().Exec(ctx, `
		INSERT INTO payouts (payee_type, payee_id, amount_cents, status, created_by)
		VALUES ('restaurant', $1, 10, 'approved', 'x')`, restaurant)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr), "got %v", err)
	assert.Equal(t, "23505", pgErr.Code)

	at := time.Now().UTC()
	approved, err := repo.Transition(ctx, first.ID, earnings.PayoutApproved, "u-admin", "", at)
	require.NoError(t, err)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, "u-admin", *approved.ReviewedBy)

	paid, err := repo.Transition(ctx, first.ID, earnings.PayoutPaid, "u-admin", "wire 42", at)
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, "wire 42", paid.Note)

	_, err = repo.Transition(ctx, first.ID, earnings.PayoutRejected, "u-admin", "", at)
	assert.ErrorIs(t, err, xerrors.ErrInvalidTransition)

	// 1000 of 3600 is paid out
	_, err = repo.Insert(ctx, models.Payout{PayeeType: models.PayeeRestaurant, PayeeID: restaurant, AmountCents: 2601, CreatedBy: "u-admin"}, 3600)
	assert.ErrorIs(t, err, ErrExceedsDue)

	list, err := repo.List(ctx, Filter{PayeeType: models.PayeeRestaurant, Status: earnings.PayoutPaid, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestScheduler_RunOnceCoversEveryPayeeType(t *testing.T) {
	d := dbtest.Open(t)
	seedPayees(t, d)
	ctx := context.Background()

	// u-4 was referred and has three qualifying orders, so the sweep rewards the affiliate
	_, err := d.GetPool().Exec(ctx, `
		INSERT INTO affiliates (user_id, code, created_at) VALUES ('u-aff', 'ABCD1234', now() - interval '60 days')`)
	require.NoError(t, err)
	_, err = d.GetPool().Exec(ctx, `INSERT INTO referrals (affiliate_id, referred_user_id) VALUES ('u-aff', 'u-4')`)
	require.NoError(t, err)
	var restaurant string
	require.NoError(t, d.GetPool().QueryRow(ctx, `SELECT id FROM restaurants LIMIT 1`).Scan(&restaurant))
	for i := 0; i < 3; i++ {
		dbtest.Order(t, d, dbtest.OrderRow{CustomerID: "u-4", RestaurantID: restaurant, Type: models.OrderTakeout, Status: models.StatusDelivered, SubtotalCents: 1500})
	}

	referrals := referral.NewService(referral.NewRepo(d.GetPool()), referral.Rules{MinOrders: 3, MinOrderCents: 1000, RewardCents: 1500}, logger.Discard())
	locker := newFakeLocker()
	s := NewScheduler(newPgService(d), referrals, locker, "@daily", logger.Discard())

	res, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created, "restaurant and driver")
	assert.Equal(t, 1, res.Rewarded)

	res, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created, "the affiliate reward became due")
	assert.Zero(t, res.Rewarded)

	var open int
	require.NoError(t, d.GetPool().QueryRow(ctx, `SELECT COUNT(*) FROM payouts WHERE status = 'pending' AND created_by = $1`, SchedulerActor).Scan(&open))
	assert.Equal(t, 3, open)
}
