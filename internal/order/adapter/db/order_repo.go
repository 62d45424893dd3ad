package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deliveryhub/internal/marketing"
	"deliveryhub/internal/order/app/core"
	"deliveryhub/internal/order/domain/dto"
	"deliveryhub/internal/xpkg/db"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/models"
	"deliveryhub/internal/xpkg/outbox"

	"github.com/jackc/pgx/v5"
)

// OrderColumns is the select list ScanOrder expects.
const OrderColumns = `id, number, customer_id, restaurant_id, driver_id, type, status,
	delivery_address, delivery_lat, delivery_lng, subtotal_cents, delivery_fee_cents,
	discount_cents, tip_cents, total_cents, promo_code, notes, updated_by_role,
	created_at, updated_at, delivered_at`

func ScanOrder(row pgx.Row) (models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.RestaurantID, &o.DriverID, &o.Type, &o.Status,
		&o.DeliveryAddress, &o.DeliveryLat, &o.DeliveryLng, &o.SubtotalCents, &o.DeliveryFeeCents,
		&o.DiscountCents, &o.TipCents, &o.TotalCents, &o.PromoCode, &o.Notes, &o.UpdatedByRole,
		&o.CreatedAt, &o.UpdatedAt, &o.DeliveredAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, xerrors.ErrNotFound
	}
	return o, err
}

type OrderRepo struct {
	db core.IDB
}

func NewOrderRepo(db core.IDB) *OrderRepo {
	return &OrderRepo{db: db}
}

func (or *OrderRepo) Create(ctx context.Context, order models.Order) (models.Order, error) {
	if err := or.db.IsAlive(); err != nil {
		return models.Order{}, xerrors.ErrDBConn
	}

	// Get the current date in UTC format (YYYYMMDD)
	currentDate := time.Now().UTC().Format("20060102")

	var newOrder models.Order
	err := db.WithTx(ctx, or.db.GetPool(), func(tx pgx.Tx) error {
		if order.PromoCode != nil {
			tag, err := tx.Exec(ctx, `
				UPDATE promo_codes
				SET used_count = used_count + 1, updated_at = now()
				WHERE code = $1
				  AND active
				  AND (max_uses = 0 OR used_count < max_uses)
				  AND (expires_at IS NULL OR expires_at > now())`, *order.PromoCode)
			if err != nil {
				return fmt.Errorf("redeem promo code: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return marketing.ErrPromoExhausted
			}
		}

		// numbers are allocated per day; the lock keeps the count stable until commit
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('order_number:' || $1))`, currentDate); err != nil {
			return fmt.Errorf("lock order numbers: %w", err)
		}
		var orderCount int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM orders
			WHERE number LIKE 'ORD_' || $1 || '_%'`, currentDate).Scan(&orderCount)
		if err != nil {
			return fmt.Errorf("failed to count today's orders: %w", err)
		}
		order.Number = fmt.Sprintf("ORD_%s_%03d", currentDate, orderCount+1)

		newOrder, err = ScanOrder(tx.QueryRow(ctx, `
			INSERT INTO orders (
				number, customer_id, restaurant_id, type, status,
				delivery_address, delivery_lat, delivery_lng,
				subtotal_cents, delivery_fee_cents, discount_cents, tip_cents, total_cents,
				promo_code, notes, updated_by_role
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING `+OrderColumns,
			order.Number, order.CustomerID, order.RestaurantID, order.Type, models.StatusPending,
			order.DeliveryAddress, order.DeliveryLat, order.DeliveryLng,
			order.SubtotalCents, order.DeliveryFeeCents, order.DiscountCents, order.TipCents, order.TotalCents,
			order.PromoCode, order.Notes, order.UpdatedByRole,
		))
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for _, item := range order.Items {
			var itemID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO order_items (order_id, menu_item_id, name, quantity, unit_price_cents)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				newOrder.ID, item.MenuItemID, item.Name, item.Quantity, item.UnitPriceCents,
			).Scan(&itemID)
			if err != nil {
				return fmt.Errorf("failed to insert item: %w", err)
			}
			item.ID = itemID
			item.OrderID = newOrder.ID
			newOrder.Items = append(newOrder.Items, item)
		}

		if err := insertStatusLog(ctx, tx, newOrder.ID, models.StatusPending, order.CustomerID, newOrder.CreatedAt, ""); err != nil {
			return err
		}

		return outbox.Write(ctx, tx, "orders", events.Insert, newOrder.WithoutItems(), nil)
	})
	if err != nil {
		return models.Order{}, err
	}
	return newOrder, nil
}

func (or *OrderRepo) GetByNumber(ctx context.Context, number string) (models.Order, error) {
	pool := or.db.GetPool()
	order, err := ScanOrder(pool.QueryRow(ctx, `SELECT `+OrderColumns+` FROM orders WHERE number = $1`, number))
	if err != nil {
		return models.Order{}, err
	}

	rows, err := pool.Query(ctx, `
		SELECT id, order_id, menu_item_id, name, quantity, unit_price_cents
		FROM order_items WHERE order_id = $1 ORDER BY id`, order.ID)
	if err != nil {
		return models.Order{}, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Quantity, &it.UnitPriceCents); err != nil {
			return models.Order{}, err
		}
		order.Items = append(order.Items, it)
	}
	return order, rows.Err()
}

func (or *OrderRepo) List(ctx context.Context, filter dto.OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.CustomerID != "" {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.RestaurantID != "" {
		add("restaurant_id = $%d", filter.RestaurantID)
	}
	if filter.DriverID != "" {
		add("driver_id = $%d", filter.DriverID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}

	q := `SELECT ` + OrderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := or.db.GetPool().Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := ScanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (or *OrderRepo) Transition(ctx context.Context, current models.Order, change dto.StatusChange) (models.Order, error) {
	var updated models.Order
	err := db.WithTx(ctx, or.db.GetPool(), func(tx pgx.Tx) error {
		var err error
		updated, err = ScanOrder(tx.QueryRow(ctx, `
			UPDATE orders
			SET status = $3,
				updated_at = $4,
				updated_by_role = $5,
				delivered_at = CASE WHEN $3 = 'delivered' THEN $4 ELSE delivered_at END
			WHERE id = $1 AND status = $2
			RETURNING `+OrderColumns,
			current.ID, current.Status, change.To, change.At, change.Role,
		))
		if errors.Is(err, xerrors.ErrNotFound) {
			return core.ErrConcurrentUpdate
		}
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		if err := insertStatusLog(ctx, tx, updated.ID, change.To, change.ChangedBy, change.At, change.Note); err != nil {
			return err
		}

		if driver := updated.Driver(); driver != "" && (change.To == models.StatusDelivered || change.To == models.StatusCancelled) {
			delivered := 0
			if change.To == models.StatusDelivered {
				delivered = 1
			}
			if err := releaseDriver(ctx, tx, driver, delivered); err != nil {
				return err
			}
		}

		return outbox.Write(ctx, tx, "orders", events.Update, updated, current.WithoutItems())
	})
	if err != nil {
		return models.Order{}, err
	}
	return updated, nil
}

// releaseDriver puts a busy driver back online and counts the delivery.
func releaseDriver(ctx context.Context, tx pgx.Tx, driverID string, delivered int) error {
	var oldStatus string
	err := tx.QueryRow(ctx, `SELECT status FROM drivers WHERE user_id = $1 FOR UPDATE`, driverID).Scan(&oldStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock driver: %w", err)
	}

	newStatus := oldStatus
	if oldStatus == models.DriverBusy {
		newStatus = models.DriverOnline
	}
	var total int
	err = tx.QueryRow(ctx, `
		UPDATE drivers
		SET status = $2, total_deliveries = total_deliveries + $3
		WHERE user_id = $1
		RETURNING total_deliveries`, driverID, newStatus, delivered).Scan(&total)
	if err != nil {
		return fmt.Errorf("release driver: %w", err)
	}

	return outbox.Write(ctx, tx, "drivers", events.Update,
		map[string]any{"user_id": driverID, "status": newStatus, "total_deliveries": total},
		map[string]any{"user_id": driverID, "status": oldStatus},
	)
}

func insertStatusLog(ctx context.Context, tx pgx.Tx, orderID, status, changedBy string, changedAt time.Time, note string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at, note)
		VALUES ($1, $2, $3, $4, $5)`, orderID, status, changedBy, changedAt, note)
	if err != nil {
		return fmt.Errorf("failed to insert order status log: %w", err)
	}
	return nil
}
