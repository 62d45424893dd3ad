package db

import (
	"context"
	"fmt"

	"deliveryhub/internal/admin/app/core"
	orderdb "deliveryhub/internal/order/adapter/db"
	trackingdb "deliveryhub/internal/tracking/adapter/db"
	"deliveryhub/internal/xpkg/db"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/models"
	"deliveryhub/internal/xpkg/outbox"

	"github.com/jackc/pgx/v5"
)

type DirectoryRepo struct {
	db core.IDB
}

func NewDirectoryRepo(db core.IDB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

func (dr *DirectoryRepo) Restaurants(ctx context.Context, status string, limit, offset int) ([]models.Restaurant, error) {
	rows, err := dr.db.GetPool().Query(ctx, `
		SELECT `+orderdb.RestaurantColumns+` FROM restaurants
		WHERE $1::text = '' OR status = $1
		ORDER BY name
		LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	defer rows.Close()

	out := []models.Restaurant{}
	for rows.Next() {
		r, err := orderdb.ScanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (dr *DirectoryRepo) Restaurant(ctx context.Context, id string) (models.Restaurant, error) {
	if !isUUID(id) {
		return models.Restaurant{}, xerrors.ErrNotFound
	}
	return orderdb.ScanRestaurant(dr.db.GetPool().QueryRow(ctx, `SELECT `+orderdb.RestaurantColumns+` FROM restaurants WHERE id = $1`, id))
}

func (dr *DirectoryRepo) CreateRestaurant(ctx context.Context, r models.Restaurant) (models.Restaurant, error) {
	var created models.Restaurant
	err := db.WithTx(ctx, dr.db.GetPool(), func(tx pgx.Tx) error {
		var err error
		created, err = orderdb.ScanRestaurant(tx.QueryRow(ctx, `
			INSERT INTO restaurants (owner_id, name, address, lat, lng, delivery_fee_cents, prep_minutes, status, payout_frequency)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+orderdb.RestaurantColumns,
			r.OwnerID, r.Name, r.Address, r.Lat, r.Lng, r.DeliveryFeeCents, r.PrepMinutes, r.Status, r.PayoutFrequency))
		if err != nil {
			return fmt.Errorf("insert restaurant: %w", err)
		}
		return outbox.Write(ctx, tx, "restaurants", events.Insert, created, nil)
	})
	return created, err
}

func (dr *DirectoryRepo) UpdateRestaurant(ctx context.Context, id string, fn func(models.Restaurant) (models.Restaurant, error)) (models.Restaurant, error) {
	if !isUUID(id) {
		return models.Restaurant{}, xerrors.ErrNotFound
	}
	var updated models.Restaurant
	err := db.WithTx(ctx, dr.db.GetPool(), func(tx pgx.Tx) error {
		old, err := orderdb.ScanRestaurant(tx.QueryRow(ctx, `
			SELECT `+orderdb.RestaurantColumns+` FROM restaurants
			WHERE id = $1
			FOR UPDATE`, id))
		if err != nil {
			return err
		}
		next, err := fn(old)
		if err != nil {
			return err
		}
		updated, err = orderdb.ScanRestaurant(tx.QueryRow(ctx, `
			UPDATE restaurants
			SET owner_id = $2, name = $3, address = $4, lat = $5, lng = $6, delivery_fee_cents = $7,
				prep_minutes = $8, is_open = $9, status = $10, payout_frequency = $11, updated_at = now()
			WHERE id = $1
			RETURNING `+orderdb.RestaurantColumns,
			id, next.OwnerID, next.Name, next.Address, next.Lat, next.Lng, next.DeliveryFeeCents,
			next.PrepMinutes, next.IsOpen, next.Status, next.PayoutFrequency))
		if err != nil {
			return fmt.Errorf("update restaurant: %w", err)
		}
		return outbox.Write(ctx, tx, "restaurants", events.Update, updated, old)
	})
	return updated, err
}

func (dr *DirectoryRepo) Drivers(ctx context.Context, status string, limit, offset int) ([]models.Driver, error) {
	rows, err := dr.db.GetPool().Query(ctx, `
		SELECT `+trackingdb.DriverColumns+` FROM drivers
		WHERE $1::text = '' OR status = $1
		ORDER BY name
		LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	defer rows.Close()

	out := []models.Driver{}
	for rows.Next() {
		d, err := trackingdb.ScanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (dr *DirectoryRepo) CreateDriver(ctx context.Context, d models.Driver) (models.Driver, error) {
	var created models.Driver
	err := db.WithTx(ctx, dr.db.GetPool(), func(tx pgx.Tx) error {
		var err error
		created, err = trackingdb.ScanDriver(tx.QueryRow(ctx, `
			INSERT INTO drivers (user_id, name, phone, vehicle, status, payout_frequency)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+trackingdb.DriverColumns,
			d.UserID, d.Name, d.Phone, d.Vehicle, d.Status, d.PayoutFrequency))
		if isUniqueViolation(err) {
			return core.ErrDriverExists
		}
		if err != nil {
			return fmt.Errorf("insert driver: %w", err)
		}
		return outbox.Write(ctx, tx, "drivers", events.Insert, created, nil)
	})
	return created, err
}

func (dr *DirectoryRepo) SetDriverFrequency(ctx context.Context, userID, frequency string) (models.Driver, error) {
	var updated models.Driver
	err := db.WithTx(ctx, dr.db.GetPool(), func(tx pgx.Tx) error {
		old, err := trackingdb.ScanDriver(tx.QueryRow(ctx, `
			SELECT `+trackingdb.DriverColumns+` FROM drivers WHERE user_id = $1 FOR UPDATE`, userID))
		if err != nil {
			return err
		}
		updated, err = trackingdb.ScanDriver(tx.QueryRow(ctx, `
			UPDATE drivers SET payout_frequency = $2
			WHERE user_id = $1
			RETURNING `+trackingdb.DriverColumns, userID, frequency))
		if err != nil {
			return fmt.Errorf("update driver: %w", err)
		}
		return outbox.Write(ctx, tx, "drivers", events.Update, updated, old)
	})
	return updated, err
}
