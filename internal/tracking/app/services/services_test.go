package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"deliveryhub/internal/tracking/app/core"
	"deliveryhub/internal/tracking/domain/dto"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/geo"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	orders     map[string]models.Order
	restaurant models.Restaurant
	logs       []models.StatusLog
	active     []models.Order
}

func (f *fakeOrders) GetWithRestaurant(_ context.Context, number string) (models.Order, models.Restaurant, error) {
	o, ok := f.orders[number]
	if !ok {
		return models.Order{}, models.Restaurant{}, xerrors.ErrNotFound
	}
	return o, f.restaurant, nil
}

func (f *fakeOrders) History(context.Context, string) ([]models.StatusLog, error) {
	return f.logs, nil
}

func (f *fakeOrders) ActiveForDriver(context.Context, string) ([]models.Order, error) {
	return f.active, nil
}

type fakeDrivers struct {
	drivers map[string]models.Driver
	touched map[string]time.Time
}

func (f *fakeDrivers) Get(_ context.Context, id string) (models.Driver, error) {
	d, ok := f.drivers[id]
	if !ok {
		return models.Driver{}, xerrors.ErrNotFound
	}
	return d, nil
}

func (f *fakeDrivers) List(context.Context) ([]models.Driver, error) {
	var out []models.Driver
	for _, d := range f.drivers {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDrivers) Touch(_ context.Context, id string, at time.Time) error {
	f.touched[id] = at
	return nil
}

func (f *fakeDrivers) SetStatus(_ context.Context, id, status string, at time.Time) (models.Driver, error) {
	d, ok := f.drivers[id]
	if !ok {
		return models.Driver{}, xerrors.ErrNotFound
	}
	if d.Status == models.DriverBusy {
		return models.Driver{}, core.ErrDriverBusy
	}
	d.Status = status
	d.LastSeenAt = &at
	f.drivers[id] = d
	return d, nil
}

type fakePositions struct {
	pos map[string]geo.Position
	err error
}

func (f *fakePositions) Update(_ context.Context, p geo.Position) error {
	if f.err != nil {
		return f.err
	}
	f.pos[p.DriverID] = p
	return nil
}

func (f *fakePositions) Get(_ context.Context, id string) (geo.Position, error) {
	p, ok := f.pos[id]
	if !ok {
		return geo.Position{}, geo.ErrNoPosition
	}
	return p, nil
}

func (f *fakePositions) Remove(_ context.Context, id string) error {
	delete(f.pos, id)
	return nil
}

type published struct {
	exchange, key string
	change        events.RowChange
}

type fakePublisher struct {
	sent []published
}

func (f *fakePublisher) PublishJSON(_ context.Context, exchange, key string, v any) error {
	f.sent = append(f.sent, published{exchange, key, v.(events.RowChange)})
	return nil
}

var (
	customer = httpx.Identity{UserID: "u-cust", Role: httpx.RoleCustomer}
	stranger = httpx.Identity{UserID: "u-other", Role: httpx.RoleCustomer}
	courier  = httpx.Identity{UserID: "u-drv", Role: httpx.RoleDriver}
)

func trackedOrder() models.Order {
	drv := "u-drv"
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return models.Order{
		ID:           "o-1",
		Number:       "ORD_20240601_001",
		CustomerID:   "u-cust",
		RestaurantID: "r-1",
		DriverID:     &drv,
		Type:         models.OrderDelivery,
		Status:       models.StatusPickedUp,
		CreatedAt:    created,
		UpdatedAt:    created.Add(25 * time.Minute),
		DeliveryLat:  ptr(43.2380),
		DeliveryLng:  ptr(76.9890),
	}
}

func TestOrderService_GetTracking(t *testing.T) {
	o := trackedOrder()
	orders := &fakeOrders{
		orders:     map[string]models.Order{o.Number: o},
		restaurant: models.Restaurant{ID: "r-1", PrepMinutes: 20},
	}
	positions := &fakePositions{pos: map[string]geo.Position{
		"u-drv": {DriverID: "u-drv", Lat: 43.2380, Lng: 76.8890},
	}}
	svc := NewOrderService(orders, positions, logger.Discard())
	now := o.UpdatedAt.Add(time.Minute)
	svc.now = func() time.Time { return now }

	tr, err := svc.GetTracking(context.Background(), customer, o.Number)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPickedUp, tr.CurrentStatus)
	assert.Equal(t, "u-drv", tr.DriverID)
	require.NotNil(t, tr.Driver)
	require.NotNil(t, tr.DistanceKm)
	assert.InDelta(t, 8.1, *tr.DistanceKm, 0.2)
	require.NotNil(t, tr.EstimatedDelivery)
	assert.True(t, tr.EstimatedDelivery.After(now))

	_, err = svc.GetTracking(context.Background(), stranger, o.Number)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	_, err = svc.GetStatus(context.Background(), customer, "ORD_20240601_404")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestOrderService_GetStatusWithoutPosition(t *testing.T) {
	o := trackedOrder()
	o.Status = models.StatusAccepted
	orders := &fakeOrders{
		orders:     map[string]models.Order{o.Number: o},
		restaurant: models.Restaurant{ID: "r-1", PrepMinutes: 20},
	}
	svc := NewOrderService(orders, &fakePositions{pos: map[string]geo.Position{}}, logger.Discard())

	st, err := svc.GetStatus(context.Background(), courier, o.Number)
	require.NoError(t, err)
	require.NotNil(t, st.EstimatedDelivery)
	assert.Equal(t, o.CreatedAt.Add(35*time.Minute), *st.EstimatedDelivery)
}

func TestOrderService_GetHistory(t *testing.T) {
	o := trackedOrder()
	at := o.CreatedAt
	orders := &fakeOrders{
		orders: map[string]models.Order{o.Number: o},
		logs: []models.StatusLog{
			{Status: models.StatusPending, ChangedBy: "u-cust", ChangedAt: at},
			{Status: models.StatusAccepted, ChangedBy: "u-owner", ChangedAt: at.Add(time.Minute), Note: "on it"},
		},
	}
	svc := NewOrderService(orders, &fakePositions{pos: map[string]geo.Position{}}, logger.Discard())

	h, err := svc.GetHistory(context.Background(), customer, o.Number)
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, models.StatusAccepted, h[1].Status)
	assert.Equal(t, "on it", h[1].Note)
}

func newDriverService(d models.Driver, active []models.Order) (*DriverService, *fakeDrivers, *fakePositions, *fakePublisher) {
	drivers := &fakeDrivers{drivers: map[string]models.Driver{d.UserID: d}, touched: map[string]time.Time{}}
	positions := &fakePositions{pos: map[string]geo.Position{}}
	pub := &fakePublisher{}
	svc := NewDriverService(drivers, &fakeOrders{active: active}, positions, pub, logger.Discard())
	return svc, drivers, positions, pub
}

func TestDriverService_UpdateLocation(t *testing.T) {
	o := trackedOrder()
	svc, drivers, positions, pub := newDriverService(models.Driver{UserID: "u-drv", Status: models.DriverBusy}, []models.Order{o})
	now := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	pos, err := svc.UpdateLocation(context.Background(), "u-drv", dto.LocationRequest{Lat: 43.25, Lng: 76.9})
	require.NoError(t, err)
	assert.Equal(t, now, pos.RecordedAt)
	assert.Equal(t, pos, positions.pos["u-drv"])
	assert.Equal(t, now, drivers.touched["u-drv"])

	require.Len(t, pub.sent, 1)
	msg := pub.sent[0]
	assert.Equal(t, events.RowChangesExchange, msg.exchange)
	assert.Equal(t, "driver_locations.UPDATE", msg.key)
	assert.Equal(t, "u-cust", msg.change.String("customer_id"))
	assert.Equal(t, o.Number, msg.change.String("order_number"))
	assert.Equal(t, "u-drv", msg.change.String("driver_id"))
}

func TestDriverService_UpdateLocationRejects(t *testing.T) {
	svc, _, _, pub := newDriverService(models.Driver{UserID: "u-drv", Status: models.DriverOffline}, nil)
	ctx := context.Background()

	_, err := svc.UpdateLocation(ctx, "u-drv", dto.LocationRequest{Lat: 43.25, Lng: 76.9})
	assert.ErrorIs(t, err, core.ErrDriverOffline)
	assert.ErrorIs(t, err, xerrors.ErrConflict)

	_, err = svc.UpdateLocation(ctx, "u-drv", dto.LocationRequest{Lat: 95, Lng: 76.9})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = svc.UpdateLocation(ctx, "u-nobody", dto.LocationRequest{Lat: 43.25, Lng: 76.9})
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	assert.Empty(t, pub.sent)
}

func TestDriverService_UpdateLocationWithoutOrders(t *testing.T) {
	svc, _, positions, pub := newDriverService(models.Driver{UserID: "u-drv", Status: models.DriverOnline}, nil)

	_, err := svc.UpdateLocation(context.Background(), "u-drv", dto.LocationRequest{Lat: 43.25, Lng: 76.9})
	require.NoError(t, err)
	require.Len(t, pub.sent, 1)
	assert.Empty(t, pub.sent[0].change.String("customer_id"))

	positions.err = errors.New("redis down")
	_, err = svc.UpdateLocation(context.Background(), "u-drv", dto.LocationRequest{Lat: 43.25, Lng: 76.9})
	assert.Error(t, err)
}

func TestDriverService_SetStatus(t *testing.T) {
	svc, _, positions, _ := newDriverService(models.Driver{UserID: "u-drv", Status: models.DriverOnline}, nil)
	ctx := context.Background()
	positions.pos["u-drv"] = geo.Position{DriverID: "u-drv", Lat: 1, Lng: 1}

	_, err := svc.SetStatus(ctx, "u-drv", dto.DriverStatusRequest{Status: models.DriverBusy})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	d, err := svc.SetStatus(ctx, "u-drv", dto.DriverStatusRequest{Status: models.DriverOffline})
	require.NoError(t, err)
	assert.Equal(t, models.DriverOffline, d.Status)
	assert.NotContains(t, positions.pos, "u-drv")

	_, err = svc.SetStatus(ctx, "u-nobody", dto.DriverStatusRequest{Status: models.DriverOnline})
	assert.ErrorIs(t, err, core.ErrNoDriver)
}

func TestDriverService_BusyCannotGoOffline(t *testing.T) {
	svc, _, _, _ := newDriverService(models.Driver{UserID: "u-drv", Status: models.DriverBusy}, nil)

	_, err := svc.SetStatus(context.Background(), "u-drv", dto.DriverStatusRequest{Status: models.DriverOffline})
	assert.ErrorIs(t, err, core.ErrDriverBusy)
}

func TestDriverService_List(t *testing.T) {
	svc, _, positions, _ := newDriverService(models.Driver{UserID: "u-drv", Name: "Dana", Status: models.DriverOnline, TotalDeliveries: 7}, nil)
	positions.pos["u-drv"] = geo.Position{DriverID: "u-drv", Lat: 43.2, Lng: 76.9}

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Dana", list[0].Name)
	assert.Equal(t, 7, list[0].TotalDeliveries)
	require.NotNil(t, list[0].Position)
	assert.InDelta(t, 43.2, list[0].Position.Lat, 1e-9)
}
