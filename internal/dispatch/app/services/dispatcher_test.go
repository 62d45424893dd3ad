package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"deliveryhub/internal/dispatch/app/core"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	order      models.Order
	restaurant models.Restaurant
	status     map[string]string
	idle       []string
	assigned   []string
	stale      []string
	orderErr   error
}

func (f *fakeRepo) Order(_ context.Context, id string) (models.Order, models.Restaurant, error) {
	if f.orderErr != nil {
		return models.Order{}, models.Restaurant{}, f.orderErr
	}
	if id != f.order.ID {
		return models.Order{}, models.Restaurant{}, xerrors.ErrNotFound
	}
	return f.order, f.restaurant, nil
}

func (f *fakeRepo) Online(_ context.Context, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		if f.status[id] == models.DriverOnline {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeRepo) LongestIdle(context.Context, int) ([]string, error) {
	return f.idle, nil
}

func (f *fakeRepo) Assign(_ context.Context, orderID, driverID, _ string, _ time.Time) (models.Order, error) {
	f.assigned = append(f.assigned, driverID)
	if f.status[driverID] != models.DriverOnline {
		return models.Order{}, core.ErrDriverTaken
	}
	if !Eligible(f.order) {
		return models.Order{}, core.ErrNotEligible
	}
	f.status[driverID] = models.DriverBusy
	f.order.DriverID = &driverID
	return f.order, nil
}

func (f *fakeRepo) MarkStale(context.Context, time.Time) ([]string, error) {
	return f.stale, nil
}

type fakeNearby struct {
	ids     []string
	err     error
	removed []string
}

func (f *fakeNearby) Nearby(context.Context, float64, float64, float64, int) ([]string, error) {
	return f.ids, f.err
}

func (f *fakeNearby) Remove(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func acceptedChange() events.RowChange {
	return events.RowChange{
		Table: "orders",
		Type:  events.Update,
		Record: map[string]any{
			"id": "o-1", "status": models.StatusAccepted, "type": models.OrderDelivery, "driver_id": nil,
		},
		OldRecord: map[string]any{
			"id": "o-1", "status": models.StatusPending, "type": models.OrderDelivery, "driver_id": nil,
		},
	}
}

func newRepo() *fakeRepo {
	return &fakeRepo{
		order:      models.Order{ID: "o-1", Number: "ORD_20240601_001", Type: models.OrderDelivery, Status: models.StatusAccepted},
		restaurant: models.Restaurant{ID: "r-1", Lat: 43.238, Lng: 76.889},
		status:     map[string]string{},
	}
}

func TestWants(t *testing.T) {
	assert.True(t, Wants(acceptedChange()))

	c := acceptedChange()
	c.Record["type"] = models.OrderTakeout
	assert.False(t, Wants(c))

	c = acceptedChange()
	c.OldRecord["status"] = models.StatusAccepted
	assert.False(t, Wants(c), "status did not change")

	c = acceptedChange()
	c.Record["driver_id"] = "u-1"
	assert.False(t, Wants(c))

	c = acceptedChange()
	c.Type = events.Insert
	assert.False(t, Wants(c))
}

func TestDecode(t *testing.T) {
	c, err := Decode([]byte(`{"id":7,"table":"orders","type":"UPDATE","record":{"status":"accepted"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, "accepted", c.String("status"))

	_, err = Decode([]byte(`not json`))
	assert.ErrorIs(t, err, core.ErrBadPayload)

	_, err = Decode([]byte(`{"record":{}}`))
	assert.ErrorIs(t, err, core.ErrBadPayload)
}

func TestDispatcher_PrefersNearestOnline(t *testing.T) {
	repo := newRepo()
	repo.status = map[string]string{"near-busy": models.DriverBusy, "near": models.DriverOnline, "idle": models.DriverOnline}
	repo.idle = []string{"idle", "near"}
	nearby := &fakeNearby{ids: []string{"near-busy", "near"}}
	d := NewDispatcher(repo, nearby, 5, "w1", logger.Discard())

	outcome, err := d.Handle(context.Background(), acceptedChange())
	require.NoError(t, err)
	assert.Equal(t, Assigned, outcome)
	assert.Equal(t, []string{"near"}, repo.assigned)
	assert.Equal(t, "near", repo.order.Driver())
}

func TestDispatcher_FallsBackToLongestIdle(t *testing.T) {
	repo := newRepo()
	repo.status = map[string]string{"idle-1": models.DriverBusy, "idle-2": models.DriverOnline}
	repo.idle = []string{"idle-1", "idle-2"}
	d := NewDispatcher(repo, &fakeNearby{err: errors.New("redis down")}, 5, "w1", logger.Discard())

	outcome, err := d.Handle(context.Background(), acceptedChange())
	require.NoError(t, err)
	assert.Equal(t, Assigned, outcome)
	assert.Equal(t, []string{"idle-1", "idle-2"}, repo.assigned, "taken drivers are skipped")
}

func TestDispatcher_NoDriver(t *testing.T) {
	repo := newRepo()
	d := NewDispatcher(repo, &fakeNearby{}, 5, "w1", logger.Discard())

	outcome, err := d.Handle(context.Background(), acceptedChange())
	require.NoError(t, err)
	assert.Equal(t, NoDriver, outcome)
}

func TestDispatcher_SkipsOrdersThatMovedOn(t *testing.T) {
	repo := newRepo()
	repo.order.Status = models.StatusCancelled
	repo.status = map[string]string{"idle": models.DriverOnline}
	repo.idle = []string{"idle"}
	d := NewDispatcher(repo, &fakeNearby{}, 5, "w1", logger.Discard())

	outcome, err := d.Handle(context.Background(), acceptedChange())
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
	assert.Empty(t, repo.assigned)

	repo.order.ID = "o-gone"
	outcome, err = d.Handle(context.Background(), acceptedChange())
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
}

func TestDispatcher_IgnoresUnrelatedChanges(t *testing.T) {
	repo := newRepo()
	d := NewDispatcher(repo, &fakeNearby{}, 5, "w1", logger.Discard())

	outcome, err := d.Handle(context.Background(), events.RowChange{Table: "payouts", Type: events.Update})
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
}

func TestDispatcher_DBErrorIsReturned(t *testing.T) {
	repo := newRepo()
	repo.orderErr = xerrors.ErrDBConn
	d := NewDispatcher(repo, &fakeNearby{}, 5, "w1", logger.Discard())

	_, err := d.Handle(context.Background(), acceptedChange())
	assert.ErrorIs(t, err, xerrors.ErrDBConn)
}

func TestDispatcher_SweepStale(t *testing.T) {
	repo := newRepo()
	repo.stale = []string{"a", "b"}
	nearby := &fakeNearby{}
	d := NewDispatcher(repo, nearby, 5, "w1", logger.Discard())

	n, err := d.SweepStale(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, nearby.removed)
}

func TestEligible(t *testing.T) {
	drv := "u-1"
	assert.True(t, Eligible(models.Order{Type: models.OrderDelivery, Status: models.StatusReady}))
	assert.False(t, Eligible(models.Order{Type: models.OrderDelivery, Status: models.StatusPending}))
	assert.False(t, Eligible(models.Order{Type: models.OrderTakeout, Status: models.StatusAccepted}))
	assert.False(t, Eligible(models.Order{Type: models.OrderDelivery, Status: models.StatusAccepted, DriverID: &drv}))
}
