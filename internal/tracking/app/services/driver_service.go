package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deliveryhub/internal/tracking/app/core"
	"deliveryhub/internal/tracking/domain/dto"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/geo"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/models"
)

// DriverLocationsTable names the location events; they never touch the database.
const DriverLocationsTable = "driver_locations"

type DriverService struct {
	driverRepo core.IDriverRepo
	orderRepo  core.IOrderRepo
	positions  core.IPositions
	mb         core.IPublisher
	mylog      logger.Logger
	now        func() time.Time
}

func NewDriverService(
	driverRepo core.IDriverRepo,
	orderRepo core.IOrderRepo,
	positions core.IPositions,
	mb core.IPublisher,
	mylogger logger.Logger,
) *DriverService {
	return &DriverService{
		driverRepo: driverRepo,
		orderRepo:  orderRepo,
		positions:  positions,
		mb:         mb,
		mylog:      mylogger,
		now:        time.Now,
	}
}

func (ds *DriverService) driver(ctx context.Context, userID string) (models.Driver, error) {
	d, err := ds.driverRepo.Get(ctx, userID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return models.Driver{}, core.ErrNoDriver
	}
	return d, err
}

// UpdateLocation stores the position, refreshes the heartbeat and fans the
// position out to everyone following the driver's active orders.
func (ds *DriverService) UpdateLocation(ctx context.Context, userID string, req dto.LocationRequest) (geo.Position, error) {
	mylog := ds.mylog.Action("update_location").With("driver_id", userID)

	if !geo.ValidCoordinates(req.Lat, req.Lng) {
		return geo.Position{}, fmt.Errorf("%w: lat must be in [-90, 90] and lng in [-180, 180]", xerrors.ErrInvalidInput)
	}
	d, err := ds.driver(ctx, userID)
	if err != nil {
		return geo.Position{}, err
	}
	if d.Status == models.DriverOffline {
		return geo.Position{}, core.ErrDriverOffline
	}

	now := ds.now().UTC()
	pos := geo.Position{DriverID: userID, Lat: req.Lat, Lng: req.Lng, RecordedAt: now}
	if err := ds.positions.Update(ctx, pos); err != nil {
		mylog.Error("Failed to store position", err)
		return geo.Position{}, fmt.Errorf("store position: %w", err)
	}
	if err := ds.driverRepo.Touch(ctx, userID, now); err != nil {
		mylog.Error("Failed to update heartbeat", err)
		return geo.Position{}, err
	}

	orders, err := ds.orderRepo.ActiveForDriver(ctx, userID)
	if err != nil {
		mylog.Warn("cannot load active orders", "err", err.Error())
	}
	for _, change := range locationChanges(pos, orders) {
		if err := ds.mb.PublishJSON(ctx, events.RowChangesExchange, change.RoutingKey(), change); err != nil {
			mylog.Warn("location event not published", "err", err.Error())
			break
		}
	}
	return pos, nil
}

// locationChanges builds one event per active order so customers and restaurants
// can subscribe with their own id; a driver without orders still gets one event.
func locationChanges(pos geo.Position, orders []models.Order) []events.RowChange {
	base := map[string]any{
		"driver_id":   pos.DriverID,
		"lat":         pos.Lat,
		"lng":         pos.Lng,
		"recorded_at": pos.RecordedAt,
	}
	if len(orders) == 0 {
		return []events.RowChange{{Table: DriverLocationsTable, Type: events.Update, Record: base, CommitTime: pos.RecordedAt}}
	}

	changes := make([]events.RowChange, 0, len(orders))
	for _, o := range orders {
		rec := make(map[string]any, len(base)+3)
		for k, v := range base {
			rec[k] = v
		}
		rec["order_number"] = o.Number
		rec["customer_id"] = o.CustomerID
		rec["restaurant_id"] = o.RestaurantID
		changes = append(changes, events.RowChange{Table: DriverLocationsTable, Type: events.Update, Record: rec, CommitTime: pos.RecordedAt})
	}
	return changes
}

// SetStatus lets a driver go online or offline. Busy drivers are released by the
// order lifecycle, not by hand.
func (ds *DriverService) SetStatus(ctx context.Context, userID string, req dto.DriverStatusRequest) (models.Driver, error) {
	mylog := ds.mylog.Action("set_driver_status").With("driver_id", userID, "status", req.Status)

	if req.Status != models.DriverOnline && req.Status != models.DriverOffline {
		return models.Driver{}, fmt.Errorf("%w: status must be online or offline", xerrors.ErrInvalidInput)
	}
	d, err := ds.driverRepo.SetStatus(ctx, userID, req.Status, ds.now().UTC())
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return models.Driver{}, core.ErrNoDriver
		}
		return models.Driver{}, err
	}
	if d.Status == models.DriverOffline {
		if err := ds.positions.Remove(ctx, userID); err != nil {
			mylog.Warn("cannot drop position", "err", err.Error())
		}
	}
	mylog.Info("driver status changed")
	return d, nil
}

func (ds *DriverService) Me(ctx context.Context, userID string) (dto.DriverStatus, error) {
	d, err := ds.driver(ctx, userID)
	if err != nil {
		return dto.DriverStatus{}, err
	}
	return ds.view(ctx, d), nil
}

// List returns every driver with the last known position.
func (ds *DriverService) List(ctx context.Context) ([]dto.DriverStatus, error) {
	mylog := ds.mylog.Action("list_drivers")

	drivers, err := ds.driverRepo.List(ctx)
	if err != nil {
		if errors.Is(err, xerrors.ErrDBConn) {
			mylog.Error("Failed to connect to db", err)
			return nil, fmt.Errorf("cannot connect to db: %w", err)
		}
		mylog.Error("Failed to list drivers", err)
		return nil, fmt.Errorf("cannot list drivers: %w", err)
	}

	out := make([]dto.DriverStatus, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, ds.view(ctx, d))
	}
	return out, nil
}

func (ds *DriverService) view(ctx context.Context, d models.Driver) dto.DriverStatus {
	v := dto.DriverStatus{
		UserID:          d.UserID,
		Name:            d.Name,
		Status:          d.Status,
		TotalDeliveries: d.TotalDeliveries,
		LastSeen:        d.LastSeenAt,
	}
	if d.Status != models.DriverOffline {
		if p, err := ds.positions.Get(ctx, d.UserID); err == nil {
			v.Position = &p
		}
	}
	return v
}
