package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deliveryhub/internal/dispatch/app/core"
	orderdb "deliveryhub/internal/order/adapter/db"
	"deliveryhub/internal/xpkg/db"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/models"
	"deliveryhub/internal/xpkg/outbox"

	"github.com/jackc/pgx/v5"
)

type AssignRepo struct {
	db core.IDB
}

func NewAssignRepo(db core.IDB) *AssignRepo {
	return &AssignRepo{db: db}
}

func (ar *AssignRepo) Order(ctx context.Context, id string) (models.Order, models.Restaurant, error) {
	if err := ar.db.IsAlive(); err != nil {
		return models.Order{}, models.Restaurant{}, xerrors.ErrDBConn
	}
	pool := ar.db.GetPool()

	order, err := orderdb.ScanOrder(pool.QueryRow(ctx, `SELECT `+orderdb.OrderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return models.Order{}, models.Restaurant{}, err
	}
	restaurant, err := orderdb.ScanRestaurant(pool.QueryRow(ctx, `SELECT `+orderdb.RestaurantColumns+` FROM restaurants WHERE id = $1`, order.RestaurantID))
	if err != nil {
		return models.Order{}, models.Restaurant{}, fmt.Errorf("load restaurant: %w", err)
	}
	return order, restaurant, nil
}

func (ar *AssignRepo) Online(ctx context.Context, ids []string) ([]string, error) {
	rows, err := ar.db.GetPool().Query(ctx, `
		SELECT d.user_id
		FROM unnest($1::text[]) WITH ORDINALITY AS c(user_id, pos)
		JOIN drivers d ON d.user_id = c.user_id
		WHERE d.status = 'online'
		ORDER BY c.pos`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (ar *AssignRepo) LongestIdle(ctx context.Context, limit int) ([]string, error) {
	rows, err := ar.db.GetPool().Query(ctx, `
		SELECT user_id
		FROM drivers
		WHERE status = 'online'
		ORDER BY last_assigned_at NULLS FIRST, user_id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (ar *AssignRepo) Assign(ctx context.Context, orderID, driverID, changedBy string, at time.Time) (models.Order, error) {
	var assigned models.Order
	err := db.WithTx(ctx, ar.db.GetPool(), func(tx pgx.Tx) error {
		var driverStatus string
		err := tx.QueryRow(ctx, `SELECT status FROM drivers WHERE user_id = $1 FOR UPDATE`, driverID).Scan(&driverStatus)
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ErrDriverTaken
		}
		if err != nil {
			return fmt.Errorf("lock driver: %w", err)
		}
		if driverStatus != models.DriverOnline {
			return core.ErrDriverTaken
		}

		current, err := orderdb.ScanOrder(tx.QueryRow(ctx, `SELECT `+orderdb.OrderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
		if err != nil {
			return err
		}
		if current.Type != models.OrderDelivery || current.Driver() != "" {
			return core.ErrNotEligible
		}
		switch current.Status {
		case models.StatusAccepted, models.StatusPreparing, models.StatusReady:
		default:
			return core.ErrNotEligible
		}

		assigned, err = orderdb.ScanOrder(tx.QueryRow(ctx, `
			UPDATE orders SET driver_id = $2, updated_at = $3
			WHERE id = $1
			RETURNING `+orderdb.OrderColumns, orderID, driverID, at))
		if err != nil {
			return fmt.Errorf("set order driver: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE drivers SET status = 'busy', last_assigned_at = $2
			WHERE user_id = $1`, driverID, at); err != nil {
			return fmt.Errorf("mark driver busy: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO order_status_log (order_id, status, changed_by, changed_at, note)
			VALUES ($1, $2, $3, $4, $5)`,
			orderID, assigned.Status, changedBy, at, "driver "+driverID+" assigned"); err != nil {
			return fmt.Errorf("insert order status log: %w", err)
		}

		if err := outbox.Write(ctx, tx, "orders", events.Update, assigned, current); err != nil {
			return err
		}
		return outbox.Write(ctx, tx, "drivers", events.Update,
			map[string]any{"user_id": driverID, "status": models.DriverBusy, "last_assigned_at": at},
			map[string]any{"user_id": driverID, "status": models.DriverOnline},
		)
	})
	if err != nil {
		return models.Order{}, err
	}
	return assigned, nil
}

func (ar *AssignRepo) MarkStale(ctx context.Context, before time.Time) ([]string, error) {
	var ids []string
	err := db.WithTx(ctx, ar.db.GetPool(), func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE drivers SET status = 'offline'
			WHERE status = 'online' AND (last_seen_at IS NULL OR last_seen_at < $1)
			RETURNING user_id`, before)
		if err != nil {
			return err
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := outbox.Write(ctx, tx, "drivers", events.Update,
				map[string]any{"user_id": id, "status": models.DriverOffline},
				map[string]any{"user_id": id, "status": models.DriverOnline},
			); err != nil {
				return err
			}
		}
		return nil
	})
	return ids, err
}
