package core

import (
	"context"

	"deliveryhub/internal/marketing"
	"deliveryhub/internal/order/domain/dto"
	"deliveryhub/internal/referral"
	"deliveryhub/internal/xpkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type IDB interface {
	Close() error
	IsAlive() error
	GetPool() *pgxpool.Pool
}

type IOrderRepo interface {
	// Create stores the order with its items, first status log row and outbox event.
	// It assigns Number and redeems the promo code in the same transaction.
	Create(ctx context.Context, order models.Order) (models.Order, error)
	GetByNumber(ctx context.Context, number string) (models.Order, error)
	List(ctx context.Context, filter dto.OrderFilter) ([]models.Order, error)
	// Transition moves the order from its current status to change.To if nobody changed it meanwhile.
	Transition(ctx context.Context, current models.Order, change dto.StatusChange) (models.Order, error)
}

type ICatalogRepo interface {
	Restaurant(ctx context.Context, id string) (models.Restaurant, error)
	ActiveRestaurants(ctx context.Context) ([]models.Restaurant, error)
	Menu(ctx context.Context, restaurantID string) ([]models.MenuItem, error)
	MenuItems(ctx context.Context, restaurantID string, ids []string) (map[string]models.MenuItem, error)
	CreateMenuItem(ctx context.Context, item models.MenuItem) (models.MenuItem, error)
	UpdateMenuItem(ctx context.Context, item models.MenuItem) (models.MenuItem, error)
	DeleteMenuItem(ctx context.Context, restaurantID, itemID string) error
	Promo(ctx context.Context, code string) (marketing.PromoCode, error)
}

type IReferrals interface {
	OnOrderDelivered(ctx context.Context, customerID string) (referral.Referral, bool, error)
}
