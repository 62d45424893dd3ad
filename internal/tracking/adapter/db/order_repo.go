package db

import (
	"context"
	"errors"
	"fmt"

	orderdb "deliveryhub/internal/order/adapter/db"
	"deliveryhub/internal/tracking/app/core"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/models"

	"github.com/jackc/pgx/v5"
)

type OrderRepo struct {
	db core.IDB
}

func NewOrderRepo(db core.IDB) *OrderRepo {
	return &OrderRepo{db: db}
}

func (or *OrderRepo) GetWithRestaurant(ctx context.Context, number string) (models.Order, models.Restaurant, error) {
	if err := or.db.IsAlive(); err != nil {
		return models.Order{}, models.Restaurant{}, xerrors.ErrDBConn
	}
	pool := or.db.GetPool()

	order, err := orderdb.ScanOrder(pool.QueryRow(ctx, `SELECT `+orderdb.OrderColumns+` FROM orders WHERE number = $1`, number))
	if err != nil {
		return models.Order{}, models.Restaurant{}, err
	}
	restaurant, err := orderdb.ScanRestaurant(pool.QueryRow(ctx, `SELECT `+orderdb.RestaurantColumns+` FROM restaurants WHERE id = $1`, order.RestaurantID))
	if err != nil {
		return models.Order{}, models.Restaurant{}, fmt.Errorf("load restaurant of %s: %w", number, err)
	}
	return order, restaurant, nil
}

func (or *OrderRepo) History(ctx context.Context, orderID string) ([]models.StatusLog, error) {
	rows, err := or.db.GetPool().Query(ctx, `
		SELECT id, order_id, status, changed_by, changed_at, note
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.StatusLog
	for rows.Next() {
		var l models.StatusLog
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Status, &l.ChangedBy, &l.ChangedAt, &l.Note); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (or *OrderRepo) ActiveForDriver(ctx context.Context, driverID string) ([]models.Order, error) {
	active := []string{models.StatusAccepted, models.StatusPreparing, models.StatusReady, models.StatusPickedUp}
	rows, err := or.db.GetPool().Query(ctx, `
		SELECT `+orderdb.OrderColumns+`
		FROM orders
		WHERE driver_id = $1 AND status = ANY($2)
		ORDER BY created_at`, driverID, active)
	if err != nil {
		return nil, fmt.Errorf("active orders of %s: %w", driverID, err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := orderdb.ScanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// DriverColumns is the select list ScanDriver expects.
const DriverColumns = `user_id, name, phone, vehicle, status, total_deliveries, payout_frequency,
	last_seen_at, last_assigned_at, created_at`

func ScanDriver(row pgx.Row) (models.Driver, error) {
	var d models.Driver
	err := row.Scan(
		&d.UserID, &d.Name, &d.Phone, &d.Vehicle, &d.Status, &d.TotalDeliveries, &d.PayoutFrequency,
		&d.LastSeenAt, &d.LastAssignedAt, &d.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Driver{}, xerrors.ErrNotFound
	}
	return d, err
}
