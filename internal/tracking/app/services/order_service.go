package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	orderservices "deliveryhub/internal/order/app/services"
	"deliveryhub/internal/tracking/app/core"
	"deliveryhub/internal/tracking/domain/dto"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/geo"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/models"
)

type OrderService struct {
	orderRepo core.IOrderRepo
	positions core.IPositions
	mylog     logger.Logger
	now       func() time.Time
}

func NewOrderService(
	orderRepo core.IOrderRepo,
	positions core.IPositions,
	mylogger logger.Logger,
) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		positions: positions,
		mylog:     mylogger,
		now:       time.Now,
	}
}

func (os *OrderService) load(ctx context.Context, id httpx.Identity, number string) (models.Order, models.Restaurant, error) {
	mylog := os.mylog.Action("get_order")
	order, restaurant, err := os.orderRepo.GetWithRestaurant(ctx, number)
	if err != nil {
		if errors.Is(err, xerrors.ErrDBConn) {
			mylog.Error("Failed to connect to db", err)
			return models.Order{}, models.Restaurant{}, err
		}
		if errors.Is(err, xerrors.ErrNotFound) {
			return models.Order{}, models.Restaurant{}, fmt.Errorf("order %s: %w", number, err)
		}
		mylog.Error("Failed to get order from db", err)
		return models.Order{}, models.Restaurant{}, fmt.Errorf("cannot get order: %w", err)
	}
	if !orderservices.Visible(order, id) {
		return models.Order{}, models.Restaurant{}, fmt.Errorf("order %s: %w", number, xerrors.ErrNotFound)
	}
	return order, restaurant, nil
}

// driverPosition is nil when the order has no driver or the driver went quiet.
func (os *OrderService) driverPosition(ctx context.Context, o models.Order) *geo.Position {
	if o.Driver() == "" || o.Terminal() {
		return nil
	}
	p, err := os.positions.Get(ctx, o.Driver())
	if err != nil {
		if !errors.Is(err, geo.ErrNoPosition) {
			os.mylog.Action("driver_position").Warn("cannot read driver position", "driver_id", o.Driver(), "err", err.Error())
		}
		return nil
	}
	return &p
}

func (os *OrderService) GetStatus(ctx context.Context, id httpx.Identity, number string) (dto.OrderStatus, error) {
	order, restaurant, err := os.load(ctx, id, number)
	if err != nil {
		return dto.OrderStatus{}, err
	}
	return statusOf(order, EstimateDelivery(order, restaurant, os.driverPosition(ctx, order), os.now())), nil
}

func (os *OrderService) GetHistory(ctx context.Context, id httpx.Identity, number string) ([]dto.HistoryEntry, error) {
	mylog := os.mylog.Action("get_history")

	order, _, err := os.load(ctx, id, number)
	if err != nil {
		return nil, err
	}
	logs, err := os.orderRepo.History(ctx, order.ID)
	if err != nil {
		mylog.Error("Failed to get history", err)
		return nil, fmt.Errorf("cannot get history: %w", err)
	}

	history := make([]dto.HistoryEntry, 0, len(logs))
	for _, l := range logs {
		history = append(history, dto.HistoryEntry{
			Status:    l.Status,
			Timestamp: l.ChangedAt.UTC(),
			ChangedBy: l.ChangedBy,
			Note:      l.Note,
		})
	}
	return history, nil
}

// GetTracking adds the driver's last position and remaining distance to the status.
func (os *OrderService) GetTracking(ctx context.Context, id httpx.Identity, number string) (dto.Tracking, error) {
	order, restaurant, err := os.load(ctx, id, number)
	if err != nil {
		return dto.Tracking{}, err
	}
	pos := os.driverPosition(ctx, order)

	t := dto.Tracking{
		OrderStatus: statusOf(order, EstimateDelivery(order, restaurant, pos, os.now())),
		Driver:      pos,
	}
	if pos != nil && order.DeliveryLat != nil && order.DeliveryLng != nil {
		km := geo.DistanceKm(pos.Lat, pos.Lng, *order.DeliveryLat, *order.DeliveryLng)
		t.DistanceKm = &km
	}
	return t, nil
}

func statusOf(o models.Order, eta *time.Time) dto.OrderStatus {
	s := dto.OrderStatus{
		OrderNumber:   o.Number,
		CurrentStatus: o.Status,
		UpdatedAt:     o.UpdatedAt.UTC(),
		DriverID:      o.Driver(),
	}
	if eta != nil {
		utc := eta.UTC()
		s.EstimatedDelivery = &utc
	}
	return s
}
