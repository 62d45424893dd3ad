package dbtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"deliveryhub/internal/xpkg/db"

	"github.com/stretchr/testify/require"
)

var seq atomic.Int64

// Restaurant inserts an open, active restaurant and returns its id.
func Restaurant(t testing.TB, d *db.DB, ownerID, name string) string {
	t.Helper()
	var id string
	err := d.GetPool().QueryRow(context.Background(), `
		INSERT INTO restaurants (owner_id, name, is_open, delivery_fee_cents, prep_minutes)
		VALUES ($1, $2, true, 300, 15)
		RETURNING id`, ownerID, name).Scan(&id)
	require.NoError(t, err)
	return id
}

func Driver(t testing.TB, d *db.DB, userID, status string) {
	t.Helper()
	_, err := d.GetPool().Exec(context.Background(), `
		INSERT INTO drivers (user_id, name, status, last_seen_at)
		VALUES ($1, $1, $2, now())`, userID, status)
	require.NoError(t, err)
}

// OrderRow describes an order inserted straight into the table, bypassing the lifecycle.
type OrderRow struct {
	CustomerID       string
	RestaurantID     string
	DriverID         string
	Type             string
	Status           string
	SubtotalCents    int64
	DeliveryFeeCents int64
	TipCents         int64
}

// Order inserts o and returns the new order id.
func Order(t testing.TB, d *db.DB, o OrderRow) string {
	t.Helper()
	if o.Type == "" {
		o.Type = "delivery"
	}
	if o.Status == "" {
		o.Status = "pending"
	}
	var driver *string
	if o.DriverID != "" {
		driver = &o.DriverID
	}
	var deliveredAt *time.Time
	if o.Status == "delivered" {
		now := time.Now().UTC()
		deliveredAt = &now
	}
	number := fmt.Sprintf("ORD_19990101_%03d", seq.Add(1))

	var id string
	err := d.GetPool().QueryRow(context.Background(), `
		INSERT INTO orders (
			number, customer_id, restaurant_id, driver_id, type, status,
			subtotal_cents, delivery_fee_cents, tip_cents, total_cents, delivered_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		number, o.CustomerID, o.RestaurantID, driver, o.Type, o.Status,
		o.SubtotalCents, o.DeliveryFeeCents, o.TipCents, o.SubtotalCents+o.DeliveryFeeCents+o.TipCents,
		deliveredAt).Scan(&id)
	require.NoError(t, err)
	return id
}

// OutboxTables lists the table of every outbox row in id order.
func OutboxTables(t testing.TB, d *db.DB) []string {
	t.Helper()
	rows, err := d.GetPool().Query(context.Background(), `SELECT tbl || '.' || type FROM outbox ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		out = append(out, s)
	}
	require.NoError(t, rows.Err())
	return out
}
