package db

import (
	"context"
	"errors"
	"fmt"

	"deliveryhub/internal/marketing"
	"deliveryhub/internal/order/app/core"
	"deliveryhub/internal/xpkg/db"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/models"
	"deliveryhub/internal/xpkg/outbox"

	"github.com/jackc/pgx/v5"
)

// RestaurantColumns is the select list ScanRestaurant expects.
const RestaurantColumns = `id, owner_id, name, address, lat, lng, delivery_fee_cents, prep_minutes,
	is_open, status, payout_frequency, created_at, updated_at`

func ScanRestaurant(row pgx.Row) (models.Restaurant, error) {
	var r models.Restaurant
	err := row.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Address, &r.Lat, &r.Lng, &r.DeliveryFeeCents, &r.PrepMinutes,
		&r.IsOpen, &r.Status, &r.PayoutFrequency, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Restaurant{}, xerrors.ErrNotFound
	}
	return r, err
}

const menuColumns = `id, restaurant_id, name, description, price_cents, available, created_at, updated_at`

func scanMenuItem(row pgx.Row) (models.MenuItem, error) {
	var m models.MenuItem
	err := row.Scan(&m.ID, &m.RestaurantID, &m.Name, &m.Description, &m.PriceCents, &m.Available, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MenuItem{}, xerrors.ErrNotFound
	}
	return m, err
}

type CatalogRepo struct {
	db core.IDB
}

func NewCatalogRepo(db core.IDB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (cr *CatalogRepo) Restaurant(ctx context.Context, id string) (models.Restaurant, error) {
	if !isUUID(id) {
		return models.Restaurant{}, xerrors.ErrNotFound
	}
	return ScanRestaurant(cr.db.GetPool().QueryRow(ctx, `SELECT `+RestaurantColumns+` FROM restaurants WHERE id = $1`, id))
}

func (cr *CatalogRepo) ActiveRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	rows, err := cr.db.GetPool().Query(ctx, `
		SELECT `+RestaurantColumns+` FROM restaurants
		WHERE status = 'active'
		ORDER BY is_open DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	defer rows.Close()

	out := []models.Restaurant{}
	for rows.Next() {
		r, err := ScanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (cr *CatalogRepo) Menu(ctx context.Context, restaurantID string) ([]models.MenuItem, error) {
	rows, err := cr.db.GetPool().Query(ctx, `
		SELECT `+menuColumns+` FROM menu_items
		WHERE restaurant_id = $1
		ORDER BY name`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	defer rows.Close()

	out := []models.MenuItem{}
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MenuItems returns the requested items of one restaurant keyed by id. Unknown ids are left out.
func (cr *CatalogRepo) MenuItems(ctx context.Context, restaurantID string, ids []string) (map[string]models.MenuItem, error) {
	valid := ids[:0:0]
	for _, id := range ids {
		if isUUID(id) {
			valid = append(valid, id)
		}
	}
	out := make(map[string]models.MenuItem, len(valid))
	if len(valid) == 0 {
		return out, nil
	}

	rows, err := cr.db.GetPool().Query(ctx, `
		SELECT `+menuColumns+` FROM menu_items
		WHERE restaurant_id = $1 AND id = ANY($2::uuid[])`, restaurantID, valid)
	if err != nil {
		return nil, fmt.Errorf("load menu items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out[m.ID] = m
	}
	return out, rows.Err()
}

func (cr *CatalogRepo) CreateMenuItem(ctx context.Context, item models.MenuItem) (models.MenuItem, error) {
	var created models.MenuItem
	err := db.WithTx(ctx, cr.db.GetPool(), func(tx pgx.Tx) error {
		var err error
		created, err = scanMenuItem(tx.QueryRow(ctx, `
			INSERT INTO menu_items (restaurant_id, name, description, price_cents, available)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+menuColumns,
			item.RestaurantID, item.Name, item.Description, item.PriceCents, item.Available))
		if err != nil {
			return fmt.Errorf("insert menu item: %w", err)
		}
		return outbox.Write(ctx, tx, "menu_items", events.Insert, created, nil)
	})
	return created, err
}

func (cr *CatalogRepo) UpdateMenuItem(ctx context.Context, item models.MenuItem) (models.MenuItem, error) {
	if !isUUID(item.ID) {
		return models.MenuItem{}, xerrors.ErrNotFound
	}
	var updated models.MenuItem
	err := db.WithTx(ctx, cr.db.GetPool(), func(tx pgx.Tx) error {
		old, err := scanMenuItem(tx.QueryRow(ctx, `
			SELECT `+menuColumns+` FROM menu_items
			WHERE id = $1 AND restaurant_id = $2
			FOR UPDATE`, item.ID, item.RestaurantID))
		if err != nil {
			return err
		}
		updated, err = scanMenuItem(tx.QueryRow(ctx, `
			UPDATE menu_items
			SET name = $2, description = $3, price_cents = $4, available = $5, updated_at = now()
			WHERE id = $1
			RETURNING `+menuColumns,
			item.ID, item.Name, item.Description, item.PriceCents, item.Available))
		if err != nil {
			return fmt.Errorf("update menu item: %w", err)
		}
		return outbox.Write(ctx, tx, "menu_items", events.Update, updated, old)
	})
	return updated, err
}

func (cr *CatalogRepo) DeleteMenuItem(ctx context.Context, restaurantID, itemID string) error {
	if !isUUID(itemID) {
		return xerrors.ErrNotFound
	}
	return db.WithTx(ctx, cr.db.GetPool(), func(tx pgx.Tx) error {
		old, err := scanMenuItem(tx.QueryRow(ctx, `
			DELETE FROM menu_items
			WHERE id = $1 AND restaurant_id = $2
			RETURNING `+menuColumns, itemID, restaurantID))
		if err != nil {
			return err
		}
		return outbox.Write(ctx, tx, "menu_items", events.Delete, nil, old)
	})
}

func (cr *CatalogRepo) Promo(ctx context.Context, code string) (marketing.PromoCode, error) {
	var p marketing.PromoCode
	err := cr.db.GetPool().QueryRow(ctx, `
		SELECT code, description, discount_type, value, min_subtotal_cents, max_uses,
			used_count, expires_at, active, created_at, updated_at
		FROM promo_codes WHERE code = $1`, code).Scan(
		&p.Code, &p.Description, &p.DiscountType, &p.Value, &p.MinSubtotalCents, &p.MaxUses,
		&p.UsedCount, &p.ExpiresAt, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return marketing.PromoCode{}, xerrors.ErrNotFound
	}
	return p, err
}
