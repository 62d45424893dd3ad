package db

import (
	"context"
	"fmt"
	"time"

	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/admin/domain/dto"
)

type StatsRepo struct {
	db core.IDB
}

func NewStatsRepo(db core.IDB) *StatsRepo {
	return &StatsRepo{db: db}
}

func (sr *StatsRepo) Stats(ctx context.Context, since time.Time) (dto.Stats, error) {
	pool := sr.db.GetPool()
	s := dto.Stats{OrdersToday: map[string]int{}}

	rows, err := pool.Query(ctx, `
		SELECT status, count(*), COALESCE(sum(total_cents) FILTER (WHERE status = 'delivered'), 0)::bigint
		FROM orders
		WHERE created_at >= $1
		GROUP BY status`, since)
	if err != nil {
		return s, fmt.Errorf("order stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status  string
			n       int
			revenue int64
		)
		if err := rows.Scan(&status, &n, &revenue); err != nil {
			return s, err
		}
		s.OrdersToday[status] = n
		s.RevenueTodayCents += revenue
	}
	if err := rows.Err(); err != nil {
		return s, err
	}

	err = pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM drivers WHERE status IN ('online', 'busy')),
			(SELECT count(*) FROM support_tickets WHERE status IN ('open', 'pending')),
			(SELECT count(*) FROM payouts WHERE status IN ('pending', 'approved')),
			(SELECT COALESCE(sum(amount_cents), 0)::bigint FROM payouts WHERE status IN ('pending', 'approved'))`,
	).Scan(&s.DriversOnline, &s.OpenTickets, &s.PayoutsPending, &s.PayoutsPendingSum)
	if err != nil {
		return s, fmt.Errorf("dashboard counters: %w", err)
	}
	return s, nil
}
