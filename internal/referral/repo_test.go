package referral

import (
	"context"
	"testing"

	"deliveryhub/internal/xpkg/db/dbtest"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRepo_ReferAndEvaluate(t *testing.T) {
	d := dbtest.Open(t)
	svc := NewService(NewRepo(d.GetPool()), rules, logger.Discard())
	ctx := context.Background()
	restaurant := dbtest.Restaurant(t, d, "u-owner", "Napoli")

	aff, err := svc.Join(ctx, "u-aff")
	require.NoError(t, err)
	again, err := svc.Join(ctx, "u-aff")
	require.NoError(t, err)
	assert.Equal(t, aff.Code, again.Code)

	dbtest.Order(t, d, dbtest.OrderRow{CustomerID: "u-old", RestaurantID: restaurant, Status: "delivered", SubtotalCents: 1500})
	_, err = svc.Refer(ctx, "u-old", aff.Code)
	assert.ErrorIs(t, err, ErrExistingCustomer)

	_, err = svc.Refer(ctx, "u-new", "ZZZZ9999")
	assert.ErrorIs(t, err, ErrUnknownCode)

	ref, err := svc.Refer(ctx, "u-new", aff.Code)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, ref.Status)

	_, err = svc.Refer(ctx, "u-new", aff.Code)
	assert.ErrorIs(t, err, ErrAlreadyReferred)

	// a small order does not qualify
	dbtest.Order(t, d, dbtest.OrderRow{CustomerID: "u-new", RestaurantID: restaurant, Status: "delivered", SubtotalCents: 500})
	for i := 0; i < 3; i++ {
		dbtest.Order(t, d, dbtest.OrderRow{CustomerID: "u-new", RestaurantID: restaurant, Status: "delivered", SubtotalCents: 1200})
	}

	// concurrent deliveries evaluate under the row lock, so the reward is given once
	var g errgroup.Group
	results := make([]bool, 4)
	for i := range results {
		g.Go(func() error {
			got, changed, err := svc.OnOrderDelivered(ctx, "u-new")
			results[i] = changed && got.Status == StatusRewarded
			return err
		})
	}
	require.NoError(t, g.Wait())
	rewarded := 0
	for _, r := range results {
		if r {
			rewarded++
		}
	}
	assert.Equal(t, 1, rewarded)

	o, err := svc.Overview(ctx, "u-aff")
	require.NoError(t, err)
	assert.Equal(t, 1, o.RewardedCount)
	assert.Equal(t, rules.RewardCents, o.RewardedCents)
	require.Len(t, o.Referrals, 1)
	assert.Equal(t, 3, o.Referrals[0].QualifyingOrders)

	_, err = svc.Overview(ctx, "u-nobody")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestRepo_PendingReferredUsersPages(t *testing.T) {
	d := dbtest.Open(t)
	repo := NewRepo(d.GetPool())
	ctx := context.Background()

	_, err := repo.CreateAffiliate(ctx, "u-aff", "ABCD1234")
	require.NoError(t, err)
	_, err = repo.CreateAffiliate(ctx, "u-other", "ABCD1234")
	assert.ErrorIs(t, err, xerrors.ErrConflict)

	for _, id := range []string{"u-c", "u-a", "u-b"} {
		_, err := repo.Refer(ctx, "ABCD1234", id, CheckEligibility)
		require.NoError(t, err)
	}

	page, err := repo.PendingReferredUsers(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"u-a", "u-b"}, page)

	page, err = repo.PendingReferredUsers(ctx, "u-b", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"u-c"}, page)
}
