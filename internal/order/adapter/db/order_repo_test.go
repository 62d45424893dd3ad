package db

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"deliveryhub/internal/marketing"
	"deliveryhub/internal/order/app/core"
	"deliveryhub/internal/order/domain/dto"
	"deliveryhub/internal/xpkg/db/dbtest"
	"deliveryhub/internal/xpkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newOrder(restaurantID, customerID string) models.Order {
	return models.Order{
		CustomerID:       customerID,
		RestaurantID:     restaurantID,
		Type:             models.OrderDelivery,
		DeliveryAddress:  "Abay 10",
		SubtotalCents:    2000,
		DeliveryFeeCents: 300,
		TotalCents:       2300,
		UpdatedByRole:    "customer",
		Items: []models.OrderItem{
			{MenuItemID: uuid.NewString(), Name: "Margherita", Quantity: 2, UnitPriceCents: 1000},
		},
	}
}

func TestOrderRepo_CreateNumbersOrdersPerDay(t *testing.T) {
	d := dbtest.Open(t)
	repo := NewOrderRepo(d)
	ctx := context.Background()
	restaurant := dbtest.Restaurant(t, d, "u-owner", "Napoli")

	const n = 5
	numbers := make([]string, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			o, err := repo.Create(ctx, newOrder(restaurant, fmt.Sprintf("u-%d", i)))
			numbers[i] = o.Number
			return err
		})
	}
	require.NoError(t, g.Wait())

	day := time.Now().UTC().Format("20060102")
	want := make([]string, n)
	for i := range want {
		want[i] = fmt.Sprintf("ORD_%s_%03d", day, i+1)
	}
	sort.Strings(numbers)
	assert.Equal(t, want, numbers)

	got, err := repo.GetByNumber(ctx, want[0])
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	var logs int
	require.NoError(t, d.GetPool().QueryRow(ctx, `SELECT COUNT(*) FROM order_status_log WHERE status = 'pending'`).Scan(&logs))
	assert.Equal(t, n, logs)
	assert.Len(t, dbtest.OutboxTables(t, d), n)
}

func TestOrderRepo_CreateRedeemsPromoOnce(t *testing.T) {
	d := dbtest.Open(t)
	repo := NewOrderRepo(d)
	ctx := context.Background()
	restaurant := dbtest.Restaurant(t, d, "u-owner", "Napoli")

	_, err := d.GetPool().Exec(ctx, `
		INSERT INTO promo_codes (code, discount_type, value, max_uses)
		VALUES ('ONCE', 'fixed', 500, 1)`)
	require.NoError(t, err)

	code := "ONCE"
	o := newOrder(restaurant, "u-1")
	o.PromoCode = &code
	_, err = repo.Create(ctx, o)
	require.NoError(t, err)

	_, err = repo.Create(ctx, o)
	assert.ErrorIs(t, err, marketing.ErrPromoExhausted)

	var orders int
	require.NoError(t, d.GetPool().QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders))
	assert.Equal(t, 1, orders, "failed redemption rolls the order back")
}

func TestOrderRepo_TransitionIsConditional(t *testing.T) {
	d := dbtest.Open(t)
	repo := NewOrderRepo(d)
	ctx := context.Background()
	restaurant := dbtest.Restaurant(t, d, "u-owner", "Napoli")

	created, err := repo.Create(ctx, newOrder(restaurant, "u-1"))
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Millisecond)
	accepted, err := repo.Transition(ctx, created, dto.StatusChange{To: models.StatusAccepted, ChangedBy: "u-owner", Role: "restaurant", At: at})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, accepted.Status)
	assert.Equal(t, "restaurant", accepted.UpdatedByRole)

	// created still says pending, so a second writer working from it loses
	_, err = repo.Transition(ctx, created, dto.StatusChange{To: models.StatusCancelled, ChangedBy: "u-1", Role: "customer", At: at})
	assert.ErrorIs(t, err, core.ErrConcurrentUpdate)

	got, err := repo.GetByNumber(ctx, created.Number)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)

	var logs int
	require.NoError(t, d.GetPool().QueryRow(ctx, `SELECT COUNT(*) FROM order_status_log WHERE order_id = $1`, created.ID).Scan(&logs))
	assert.Equal(t, 2, logs)
}

func TestOrderRepo_DeliveryReleasesDriver(t *testing.T) {
	d := dbtest.Open(t)
	repo := NewOrderRepo(d)
	ctx := context.Background()
	restaurant := dbtest.Restaurant(t, d, "u-owner", "Napoli")
	dbtest.Driver(t, d, "d-1", models.DriverBusy)
	dbtest.Order(t, d, dbtest.OrderRow{
		CustomerID: "u-1", RestaurantID: restaurant, DriverID: "d-1", Status: "picked_up", SubtotalCents: 1500,
	})

	list, err := repo.List(ctx, dto.OrderFilter{DriverID: "d-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)

	at := time.Now().UTC()
	delivered, err := repo.Transition(ctx, list[0], dto.StatusChange{To: models.StatusDelivered, ChangedBy: "d-1", Role: "driver", At: at})
	require.NoError(t, err)
	require.NotNil(t, delivered.DeliveredAt)

	var (
		status string
		total  int
	)
	require.NoError(t, d.GetPool().QueryRow(ctx, `SELECT status, total_deliveries FROM drivers WHERE user_id = 'd-1'`).Scan(&status, &total))
	assert.Equal(t, models.DriverOnline, status)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"drivers.UPDATE", "orders.UPDATE"}, dbtest.OutboxTables(t, d))
}
