package core

import (
	"context"
	"time"

	"deliveryhub/internal/xpkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type IDB interface {
	Close() error
	GetPool() *pgxpool.Pool
	IsAlive() error
	Reconnect() error
}

type IAssignRepo interface {
	Order(ctx context.Context, id string) (models.Order, models.Restaurant, error)
	// Online keeps the ids of drivers that are online, in the given order.
	Online(ctx context.Context, ids []string) ([]string, error)
	// LongestIdle lists online drivers, least recently assigned first.
	LongestIdle(ctx context.Context, limit int) ([]string, error)
	// Assign sets the order's driver and makes the driver busy in one transaction.
	Assign(ctx context.Context, orderID, driverID, changedBy string, at time.Time) (models.Order, error)
	// MarkStale takes online drivers without a heartbeat since before offline.
	MarkStale(ctx context.Context, before time.Time) ([]string, error)
}

type IPositions interface {
	Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]string, error)
	Remove(ctx context.Context, driverID string) error
}
