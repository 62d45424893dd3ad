package core

import (
	"context"
	"time"

	"deliveryhub/internal/xpkg/geo"
	"deliveryhub/internal/xpkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type IDB interface {
	Close() error
	IsAlive() error
	GetPool() *pgxpool.Pool
}

type IOrderRepo interface {
	// GetWithRestaurant loads the order and the restaurant it was placed at.
	GetWithRestaurant(ctx context.Context, number string) (models.Order, models.Restaurant, error)
	History(ctx context.Context, orderID string) ([]models.StatusLog, error)
	// ActiveForDriver lists the driver's assigned orders that are not finished.
	ActiveForDriver(ctx context.Context, driverID string) ([]models.Order, error)
}

type IDriverRepo interface {
	Get(ctx context.Context, userID string) (models.Driver, error)
	List(ctx context.Context) ([]models.Driver, error)
	Touch(ctx context.Context, userID string, at time.Time) error
	// SetStatus switches between online and offline; busy drivers are left alone.
	SetStatus(ctx context.Context, userID, status string, at time.Time) (models.Driver, error)
}

type IPositions interface {
	Update(ctx context.Context, p geo.Position) error
	Get(ctx context.Context, driverID string) (geo.Position, error)
	Remove(ctx context.Context, driverID string) error
}

type IPublisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, v any) error
}
