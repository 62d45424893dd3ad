package referral

import (
	"context"
	"errors"
	"fmt"

	"deliveryhub/internal/xpkg/db"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
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

const affiliateCols = `user_id, code, status, created_at`

const referralCols = `id, affiliate_id, referred_user_id, status, qualifying_orders, reward_cents, created_at, rewarded_at`

func scanAffiliate(row pgx.Row) (Affiliate, error) {
	var a Affiliate
	err := row.Scan(&a.UserID, &a.Code, &a.Status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Affiliate{}, xerrors.ErrNotFound
	}
	return a, err
}

func scanReferral(row pgx.Row) (Referral, error) {
	var r Referral
	err := row.Scan(&r.ID, &r.AffiliateID, &r.ReferredUserID, &r.Status, &r.QualifyingOrders, &r.RewardCents, &r.CreatedAt, &r.RewardedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Referral{}, xerrors.ErrNotFound
	}
	return r, err
}

// CreateAffiliate inserts a new affiliate. A taken code yields ErrConflict.
func (r *Repo) CreateAffiliate(ctx context.Context, userID, code string) (Affiliate, error) {
	var a Affiliate
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		a, err = scanAffiliate(tx.QueryRow(ctx, `
			INSERT INTO affiliates (user_id, code, status)
			VALUES ($1, $2, 'active')
			RETURNING `+affiliateCols, userID, code))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("%w: %s", xerrors.ErrConflict, pgErr.ConstraintName)
			}
			return fmt.Errorf("insert affiliate: %w", err)
		}
		return outbox.Write(ctx, tx, "affiliates", events.Insert, a, nil)
	})
	return a, err
}

func (r *Repo) AffiliateByUser(ctx context.Context, userID string) (Affiliate, error) {
	return scanAffiliate(r.pool.QueryRow(ctx, `SELECT `+affiliateCols+` FROM affiliates WHERE user_id = $1`, userID))
}

func (r *Repo) ListAffiliates(ctx context.Context, limit, offset int) ([]Affiliate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+affiliateCols+` FROM affiliates
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list affiliates: %w", err)
	}
	defer rows.Close()

	var out []Affiliate
	for rows.Next() {
		a, err := scanAffiliate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repo) SetAffiliateStatus(ctx context.Context, userID, status string) (Affiliate, error) {
	var a Affiliate
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		old, err := scanAffiliate(tx.QueryRow(ctx, `SELECT `+affiliateCols+` FROM affiliates WHERE user_id = $1 FOR UPDATE`, userID))
		if err != nil {
			return err
		}
		a, err = scanAffiliate(tx.QueryRow(ctx, `
			UPDATE affiliates SET status = $2 WHERE user_id = $1
			RETURNING `+affiliateCols, userID, status))
		if err != nil {
			return fmt.Errorf("update affiliate: %w", err)
		}
		return outbox.Write(ctx, tx, "affiliates", events.Update, a, old)
	})
	return a, err
}

func (r *Repo) ReferralsByAffiliate(ctx context.Context, affiliateID string) ([]Referral, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+referralCols+` FROM referrals
		WHERE affiliate_id = $1
		ORDER BY created_at DESC`, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	var out []Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// Refer checks eligibility and inserts the referral in one transaction. The affiliate
// row is locked so a concurrent suspension cannot slip between check and insert.
func (r *Repo) Refer(ctx context.Context, code, referredUserID string, check func(Eligibility) error) (Referral, error) {
	var ref Referral
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		a, err := scanAffiliate(tx.QueryRow(ctx, `SELECT `+affiliateCols+` FROM affiliates WHERE code = $1 FOR SHARE`, code))
		if err != nil {
			if errors.Is(err, xerrors.ErrNotFound) {
				return ErrUnknownCode
			}
			return err
		}

		e := Eligibility{Affiliate: a, ReferredUserID: referredUserID}
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM referrals WHERE referred_user_id = $1)`, referredUserID).Scan(&e.AlreadyReferred); err != nil {
			return fmt.Errorf("check referral: %w", err)
		}
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE customer_id = $1 AND status = 'delivered')`, referredUserID).Scan(&e.HasDelivered); err != nil {
			return fmt.Errorf("check orders: %w", err)
		}
		if err := check(e); err != nil {
			return err
		}

		ref, err = scanReferral(tx.QueryRow(ctx, `
			INSERT INTO referrals (affiliate_id, referred_user_id, status)
			VALUES ($1, $2, 'pending')
			RETURNING `+referralCols, a.UserID, referredUserID))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrAlreadyReferred
			}
			return fmt.Errorf("insert referral: %w", err)
		}
		return outbox.Write(ctx, tx, "referrals", events.Insert, ref, nil)
	})
	return ref, err
}

// Evaluate locks the pending referral of a user, counts its qualifying orders and
// stores whatever fn decides.
func (r *Repo) Evaluate(ctx context.Context, referredUserID string, minOrderCents int64, fn func(ref Referral, qualifying int) (Referral, bool)) (Referral, bool, error) {
	var (
		updated Referral
		changed bool
	)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		old, err := scanReferral(tx.QueryRow(ctx, `
			SELECT `+referralCols+` FROM referrals
			WHERE referred_user_id = $1 AND status = 'pending'
			FOR UPDATE`, referredUserID))
		if err != nil {
			return err
		}

		var qualifying int
		if err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM orders
			WHERE customer_id = $1 AND status = 'delivered' AND total_cents >= $2`,
			referredUserID, minOrderCents).Scan(&qualifying); err != nil {
			return fmt.Errorf("count qualifying orders: %w", err)
		}

		updated, changed = fn(old, qualifying)
		if !changed {
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE referrals
			SET status = $2, qualifying_orders = $3, reward_cents = $4, rewarded_at = $5
			WHERE id = $1`,
			updated.ID, updated.Status, updated.QualifyingOrders, updated.RewardCents, updated.RewardedAt); err != nil {
			return fmt.Errorf("update referral: %w", err)
		}
		return outbox.Write(ctx, tx, "referrals", events.Update, updated, old)
	})
	return updated, changed, err
}

// PendingReferredUsers lists users whose referral still waits for qualifying orders,
// ordered by user id and starting after the given one.
func (r *Repo) PendingReferredUsers(ctx context.Context, after string, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT referred_user_id FROM referrals
		WHERE status = 'pending' AND referred_user_id > $1
		ORDER BY referred_user_id
		LIMIT $2`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending referrals: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
