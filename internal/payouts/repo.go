package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deliveryhub/internal/earnings"
	"deliveryhub/internal/xpkg/db"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/models"
	"deliveryhub/internal/xpkg/outbox"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const payoutCols = `id, payee_type, payee_id, amount_cents, status, note, created_by, reviewed_by, created_at, updated_at, paid_at`

func scanPayout(row pgx.Row) (models.Payout, error) {
	var p models.Payout
	err := row.Scan(&p.ID, &p.PayeeType, &p.PayeeID, &p.AmountCents, &p.Status, &p.Note, &p.CreatedBy, &p.ReviewedBy, &p.CreatedAt, &p.UpdatedAt, &p.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Payout{}, xerrors.ErrNotFound
	}
	return p, err
}

var payeeQueries = map[string]string{
	models.PayeeRestaurant: `SELECT id, name, payout_frequency, created_at FROM restaurants WHERE ($1::text = '' OR id::text = $1) ORDER BY name`,
	models.PayeeDriver:     `SELECT user_id, name, payout_frequency, created_at FROM drivers WHERE ($1::text = '' OR user_id = $1) ORDER BY name`,
	models.PayeeAffiliate:  `SELECT user_id, code, payout_frequency, created_at FROM affiliates WHERE ($1::text = '' OR user_id = $1) ORDER BY code`,
}

// Payees lists payees of one type, or the single one with payeeID.
func (r *Repo) Payees(ctx context.Context, payeeType, payeeID string) ([]Payee, error) {
	q, ok := payeeQueries[payeeType]
	if !ok {
		return nil, ErrPayeeType
	}
	rows, err := r.pool.Query(ctx, q, payeeID)
	if err != nil {
		return nil, fmt.Errorf("list %s payees: %w", payeeType, err)
	}
	defer rows.Close()

	var out []Payee
	for rows.Next() {
		p := Payee{Type: payeeType}
		var freq string
		if err := rows.Scan(&p.ID, &p.Name, &freq, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Frequency = earnings.Frequency(freq)
		out = append(out, p)
	}
	return out, rows.Err()
}

var deliveredQueries = map[string]string{
	models.PayeeRestaurant: `
		SELECT restaurant_id, subtotal_cents, delivery_fee_cents, tip_cents FROM orders
		WHERE status = 'delivered' AND ($1::text = '' OR restaurant_id::text = $1)`,
	models.PayeeDriver: `
		SELECT driver_id, subtotal_cents, delivery_fee_cents, tip_cents FROM orders
		WHERE status = 'delivered' AND driver_id IS NOT NULL AND ($1::text = '' OR driver_id = $1)`,
}

// DeliveredOrders streams the amounts of every delivered order earned by the payee type.
func (r *Repo) DeliveredOrders(ctx context.Context, payeeType, payeeID string, fn func(payeeID string, o earnings.OrderAmounts)) error {
	q, ok := deliveredQueries[payeeType]
	if !ok {
		return ErrPayeeType
	}
	rows, err := r.pool.Query(ctx, q, payeeID)
	if err != nil {
		return fmt.Errorf("scan delivered orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		o := earnings.OrderAmounts{Status: models.StatusDelivered}
		if err := rows.Scan(&id, &o.SubtotalCents, &o.DeliveryFeeCents, &o.TipCents); err != nil {
			return err
		}
		fn(id, o)
	}
	return rows.Err()
}

// AffiliateRewards sums rewarded referrals per affiliate.
func (r *Repo) AffiliateRewards(ctx context.Context, payeeID string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT affiliate_id, COALESCE(SUM(reward_cents), 0)::bigint FROM referrals
		WHERE status = 'rewarded' AND ($1::text = '' OR affiliate_id = $1)
		GROUP BY affiliate_id`, payeeID)
	if err != nil {
		return nil, fmt.Errorf("sum referral rewards: %w", err)
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var id string
		var sum int64
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		out[id] = sum
	}
	return out, rows.Err()
}

// PayoutAmounts groups the non-rejected payouts of a payee type by payee.
func (r *Repo) PayoutAmounts(ctx context.Context, payeeType, payeeID string) (map[string][]earnings.PayoutAmount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT payee_id, status, amount_cents, paid_at FROM payouts
		WHERE payee_type = $1 AND ($2::text = '' OR payee_id = $2) AND status <> 'rejected'`, payeeType, payeeID)
	if err != nil {
		return nil, fmt.Errorf("list payout amounts: %w", err)
	}
	defer rows.Close()

	out := map[string][]earnings.PayoutAmount{}
	for rows.Next() {
		var id string
		var p earnings.PayoutAmount
		if err := rows.Scan(&id, &p.Status, &p.AmountCents, &p.PaidAt); err != nil {
			return nil, err
		}
		out[id] = append(out[id], p)
	}
	return out, rows.Err()
}

// Insert re-checks the balance under a per-payee advisory lock and stores a pending payout.
func (r *Repo) Insert(ctx context.Context, p models.Payout, earnedCents int64) (models.Payout, error) {
	var created models.Payout
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, p.PayeeType+":"+p.PayeeID); err != nil {
			return fmt.Errorf("payee lock: %w", err)
		}

		var open bool
		var committed int64
		if err := tx.QueryRow(ctx, `
			SELECT
				COALESCE(bool_or(status IN ('pending', 'approved')), false),
				COALESCE(SUM(amount_cents), 0)::bigint
			FROM payouts
			WHERE payee_type = $1 AND payee_id = $2 AND status <> 'rejected'`,
			p.PayeeType, p.PayeeID).Scan(&open, &committed); err != nil {
			return fmt.Errorf("check payouts: %w", err)
		}
		if open {
			return ErrOpenPayout
		}
		if p.AmountCents > earnedCents-committed {
			return ErrExceedsDue
		}

		var err error
		created, err = scanPayout(tx.QueryRow(ctx, `
			INSERT INTO payouts (payee_type, payee_id, amount_cents, status, note, created_by)
			VALUES ($1, $2, $3, 'pending', $4, $5)
			RETURNING `+payoutCols,
			p.PayeeType, p.PayeeID, p.AmountCents, p.Note, p.CreatedBy))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrOpenPayout
			}
			return fmt.Errorf("insert payout: %w", err)
		}
		return outbox.Write(ctx, tx, "payouts", events.Insert, created, nil)
	})
	return created, err
}

// Transition moves a payout to status to. A note replaces the stored one when set.
func (r *Repo) Transition(ctx context.Context, id, to, reviewer, note string, at time.Time) (models.Payout, error) {
	var updated models.Payout
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		old, err := scanPayout(tx.QueryRow(ctx, `SELECT `+payoutCols+` FROM payouts WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if !CanTransition(old.Status, to) {
			return fmt.Errorf("%w: %s -> %s", xerrors.ErrInvalidTransition, old.Status, to)
		}

		var paidAt *time.Time
		if to == earnings.PayoutPaid {
			paidAt = &at
		}
		updated, err = scanPayout(tx.QueryRow(ctx, `
			UPDATE payouts
			SET status = $2,
				reviewed_by = $3,
				note = CASE WHEN $4::text = '' THEN note ELSE $4 END,
				updated_at = $5,
				paid_at = COALESCE($6, paid_at)
			WHERE id = $1
			RETURNING `+payoutCols,
			id, to, reviewer, note, at, paidAt))
		if err != nil {
			return fmt.Errorf("update payout: %w", err)
		}
		return outbox.Write(ctx, tx, "payouts", events.Update, updated, old)
	})
	return updated, err
}

func (r *Repo) Get(ctx context.Context, id string) (models.Payout, error) {
	return scanPayout(r.pool.QueryRow(ctx, `SELECT `+payoutCols+` FROM payouts WHERE id = $1`, id))
}

// List returns payouts newest first.
func (r *Repo) List(ctx context.Context, f Filter) ([]models.Payout, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.PayeeType != "" {
		add("payee_type = $%d", f.PayeeType)
	}
	if f.PayeeID != "" {
		add("payee_id = $%d", f.PayeeID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}

	q := `SELECT ` + payoutCols + ` FROM payouts`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	out := []models.Payout{}
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
