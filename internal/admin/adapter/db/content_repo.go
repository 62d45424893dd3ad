package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/admin/domain/dto"
	"deliveryhub/internal/marketing"
	"deliveryhub/internal/xpkg/db"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/outbox"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContentRepo struct {
	db core.IDB
}

func NewContentRepo(db core.IDB) *ContentRepo {
	return &ContentRepo{db: db}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrNotFound
	}
	return err
}

// queryAll runs sql and scans every row with scan.
func queryAll[T any](ctx context.Context, pool *pgxpool.Pool, sql string, scan func(pgx.Row) (T, error), args ...any) ([]T, error) {
	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// deleteRow removes one row inside a transaction and records the old image.
func (cr *ContentRepo) deleteRow(ctx context.Context, table, sql string, id string, scan func(pgx.Row) (any, error)) error {
	return db.WithTx(ctx, cr.db.GetPool(), func(tx pgx.Tx) error {
		old, err := scan(tx.QueryRow(ctx, sql, id))
		if err != nil {
			return notFound(err)
		}
		return outbox.Write(ctx, tx, table, events.Delete, nil, old)
	})
}

const faqColumns = `id, question, answer, category, position, published, created_at, updated_at`

func scanFAQ(row pgx.Row) (dto.FAQItem, error) {
	var f dto.FAQItem
	err := row.Scan(&f.ID, &f.Question, &f.Answer, &f.Category, &f.Position, &f.Published, &f.CreatedAt, &f.UpdatedAt)
	return f, notFound(err)
}

func (cr *ContentRepo) FAQ(ctx context.Context, includeDrafts bool) ([]dto.FAQItem, error) {
	items, err := queryAll(ctx, cr.db.GetPool(), `
		SELECT `+faqColumns+` FROM faq_items
		WHERE published OR $1
		ORDER BY category, position, created_at`, scanFAQ, includeDrafts)
	if err != nil {
		return nil, fmt.Errorf("list faq: %w", err)
	}
	return items, nil
}

func (cr *ContentRepo) CreateFAQ(ctx context.Context, item dto.FAQItem) (dto.FAQItem, error) {
	var created dto.FAQItem
	err := db.WithTx(ctx, cr.db.GetPool(), func(tx pgx.Tx) error {
		var err error
		created, err = scanFAQ(tx.QueryRow(ctx, `
			INSERT INTO faq_items (question, answer, category, position, published)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+faqColumns, item.Question, item.Answer, item.Category, item.Position, item.Published))
		if err != nil {
			return fmt.Errorf("insert faq: %w", err)
		}
		return outbox.Write(ctx, tx, "faq_items", events.Insert, created, nil)
	})
	return created, err
}

func (cr *ContentRepo) UpdateFAQ(ctx context.Context, item dto.FAQItem) (dto.FAQItem, error) {
	if !isUUID(item.ID) {
		return dto.FAQItem{}, xerrors.ErrNotFound
	}
	var updated dto.FAQItem
	err := db.WithTx(ctx, cr.db.GetPool(), func(tx pgx.Tx) error {
		old, err := scanFAQ(tx.QueryRow(ctx, `SELECT `+faqColumns+` FROM faq_items WHERE id = $1 FOR UPDATE`, item.ID))
		if err != nil {
			return err
		}
		updated, err = scanFAQ(tx.QueryRow(ctx, `
			UPDATE faq_items
			SET question = $2, answer = $3, category = $4, position = $5, published = $6, updated_at = now()
			WHERE id = $1
			RETURNING `+faqColumns, item.ID, item.Question, item.Answer, item.Category, item.Position, item.Published))
		if err != nil {
			return fmt.Errorf("update faq: %w", err)
		}
		return outbox.Write(ctx, tx, "faq_items", events.Update, updated, old)
	})
	return updated, err
}

func (cr *ContentRepo) DeleteFAQ(ctx context.Context, id string) error {
	if !isUUID(id) {
		return xerrors.ErrNotFound
	}
	return cr.deleteRow(ctx, "faq_items", `DELETE FROM faq_items WHERE id = $1 RETURNING `+faqColumns, id,
		func(row pgx.Row) (any, error) { return scanFAQ(row) })
}

const articleColumns = `id, slug, title, summary, body, cover_url, tags, author_id, status, published_at, created_at, updated_at`

func scanArticle(row pgx.Row) (dto.Article, error) {
	var a dto.Article
	err := row.Scan(&a.ID, &a.Slug, &a.Title, &a.Summary, &a.Body, &a.CoverURL, &a.Tags, &a.AuthorID,
		&a.Status, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
	return a, notFound(err)
}

// Articles lists without bodies, newest publication first.
func (cr *ContentRepo) Articles(ctx context.Context, f dto.ArticleFilter) ([]dto.Article, error) {
	items, err := queryAll(ctx, cr.db.GetPool(), `
		SELECT `+articleColumns+` FROM articles
		WHERE ($1::text = '' OR status = $1) AND ($2::text = '' OR $2 = ANY(tags))
		ORDER BY published_at DESC NULLS LAST, created_at DESC
		LIMIT $3 OFFSET $4`, scanArticle, f.Status, f.Tag, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	for i := range items {
		items[i].Body = ""
	}
	return items, nil
}

func (cr *ContentRepo) ArticleBySlug(ctx context.Context, slug string) (dto.Article, error) {
	return scanArticle(cr.db.GetPool().QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE slug = $1`, slug))
}

func (cr *ContentRepo) Article(ctx context.Context, id string) (dto.Article, error) {
	if !isUUID(id) {
		return dto.Article{}, xerrors.ErrNotFound
	}
	return scanArticle(cr.db.GetPool().QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id))
}

func (cr *ContentRepo) CreateArticle(ctx context.Context, a dto.Article) (dto.Article, error) {
	var created dto.Article
	err := db.WithTx(ctx, cr.db.GetPool(), func(tx pgx.Tx) error {
		var err error
		created, err = scanArticle(tx.QueryRow(ctx, `
			INSERT INTO articles (slug, title, summary, body, cover_url, tags, author_id, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+articleColumns,
			a.Slug, a.Title, a.Summary, a.Body, a.CoverURL, a.Tags, a.AuthorID, a.Status))
		if isUniqueViolation(err) {
			return core.ErrSlugTaken
		}
		if err != nil {
			return fmt.Errorf("insert article: %w", err)
		}
		return outbox.Write(ctx, tx, "articles", events.Insert, created, nil)
	})
	return created, err
}

func (cr *ContentRepo) UpdateArticle(ctx context.Context, a dto.Article) (dto.Article, error) {
	return cr.updateArticle(ctx, a.ID, func(tx pgx.Tx) (dto.Article, error) {
		updated, err := scanArticle(tx.QueryRow(ctx, `
			UPDATE articles
			SET slug = $2, title = $3, summary = $4, body = $5, cover_url = $6, tags = $7, updated_at = now()
			WHERE id = $1
			RETURNING `+articleColumns,
			a.ID, a.Slug, a.Title, a.Summary, a.Body, a.CoverURL, a.Tags))
		if isUniqueViolation(err) {
			return updated, core.ErrSlugTaken
		}
		return updated, err
	})
}

func (cr *ContentRepo) SetArticleStatus(ctx context.Context, id, status string, at time.Time) (dto.Article, error) {
	return cr.updateArticle(ctx, id, func(tx pgx.Tx) (dto.Article, error) {
		return scanArticle(tx.QueryRow(ctx, `
			UPDATE articles
			SET status = $2,
				published_at = CASE WHEN $2 = 'published' THEN COALESCE(published_at, $3) ELSE published_at END,
				updated_at = $3
			WHERE id = $1
			RETURNING `+articleColumns, id, status, at))
	})
}

func (cr *ContentRepo) updateArticle(ctx context.Context, id string, update func(pgx.Tx) (dto.Article, error)) (dto.Article, error) {
	if !isUUID(id) {
		return dto.Article{}, xerrors.ErrNotFound
	}
	var updated dto.Article
	err := db.WithTx(ctx, cr.db.GetPool(), func(tx pgx.Tx) error {
		old, err := scanArticle(tx.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		updated, err = update(tx)
		if err != nil {
			return err
		}
		return outbox.Write(ctx, tx, "articles", events.Update, updated, old)
	})
	return updated, err
}

func (cr *ContentRepo) DeleteArticle(ctx context.Context, id string) error {
	if !isUUID(id) {
		return xerrors.ErrNotFound
	}
	return cr.deleteRow(ctx, "articles", `DELETE FROM articles WHERE id = $1 RETURNING `+articleColumns, id,
		func(row pgx.Row) (any, error) { return scanArticle(row) })
}

const bannerColumns = `id, title, image_url, link_url, position, active, starts_at, ends_at, created_at, updated_at`

func scanBanner(row pgx.Row) (marketing.Banner, error) {
	var b marketing.Banner
	err := row.Scan(&b.ID, &b.Title, &b.ImageURL, &b.LinkURL, &b.Position, &b.Active, &b.StartsAt, &b.EndsAt, &b.CreatedAt, &b.UpdatedAt)
	return b, notFound(err)
}

func (cr *ContentRepo) Banners(ctx context.Context) ([]marketing.Banner, error) {
	items, err := queryAll(ctx, cr.db.GetPool(), `SELECT `+bannerColumns+` FROM banners ORDER BY position, created_at`, scanBanner)
	if err != nil {
		return nil, fmt.Errorf("list banners: %w", err)
	}
	return items, nil
}

// SaveBanner inserts when ID is empty and updates otherwise.
func (cr *ContentRepo) SaveBanner(ctx context.Context, b marketing.Banner) (marketing.Banner, error) {
	if b.ID != "" && !isUUID(b.ID) {
		return marketing.Banner{}, xerrors.ErrNotFound
	}
	var saved marketing.Banner
	err := db.WithTx(ctx, cr.db.GetPool(), func(tx pgx.Tx) error {
		var old any
		if b.ID != "" {
			prev, err := scanBanner(tx.QueryRow(ctx, `SELECT `+bannerColumns+` FROM banners WHERE id = $1 FOR UPDATE`, b.ID))
			if err != nil {
				return err
			}
			old = prev
		}
		var err error
		saved, err = scanBanner(tx.QueryRow(ctx, `
			INSERT INTO banners (id, title, image_url, link_url, position, active, starts_at, ends_at)
			VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE
			SET title = EXCLUDED.title, image_url = EXCLUDED.image_url, link_url = EXCLUDED.link_url,
				position = EXCLUDED.position, active = EXCLUDED.active, starts_at = EXCLUDED.starts_at,
				ends_at = EXCLUDED.ends_at, updated_at = now()
			RETURNING `+bannerColumns,
			b.ID, b.Title, b.ImageURL, b.LinkURL, b.Position, b.Active, b.StartsAt, b.EndsAt))
		if err != nil {
			return fmt.Errorf("save banner: %w", err)
		}
		if old == nil {
			return outbox.Write(ctx, tx, "banners", events.Insert, saved, nil)
		}
		return outbox.Write(ctx, tx, "banners", events.Update, saved, old)
	})
	return saved, err
}

func (cr *ContentRepo) DeleteBanner(ctx context.Context, id string) error {
	if !isUUID(id) {
		return xerrors.ErrNotFound
	}
	return cr.deleteRow(ctx, "banners", `DELETE FROM banners WHERE id = $1 RETURNING `+bannerColumns, id,
		func(row pgx.Row) (any, error) { return scanBanner(row) })
}

const popupColumns = `id, title, body, image_url, cta_label, cta_url, audience, active, starts_at, ends_at, created_at, updated_at`

func scanPopup(row pgx.Row) (marketing.Popup, error) {
	var p marketing.Popup
	err := row.Scan(&p.ID, &p.Title, &p.Body, &p.ImageURL, &p.CTALabel, &p.CTAURL, &p.Audience, &p.Active,
		&p.StartsAt, &p.EndsAt, &p.CreatedAt, &p.UpdatedAt)
	return p, notFound(err)
}

func (cr *ContentRepo) Popups(ctx context.Context) ([]marketing.Popup, error) {
	items, err := queryAll(ctx, cr.db.GetPool(), `SELECT `+popupColumns+` FROM popups ORDER BY created_at DESC`, scanPopup)
	if err != nil {
		return nil, fmt.Errorf("list popups: %w", err)
	}
	return items, nil
}

func (cr *ContentRepo) SavePopup(ctx context.Context, p marketing.Popup) (marketing.Popup, error) {
	if p.ID != "" && !isUUID(p.ID) {
		return marketing.Popup{}, xerrors.ErrNotFound
	}
	var saved marketing.Popup
	err := db.WithTx(ctx, cr.db.GetPool(), func(tx pgx.Tx) error {
		var old any
		if p.ID != "" {
			prev, err := scanPopup(tx.QueryRow(ctx, `SELECT `+popupColumns+` FROM popups WHERE id = $1 FOR UPDATE`, p.ID))
			if err != nil {
				return err
			}
			old = prev
		}
		var err error
		saved, err = scanPopup(tx.QueryRow(ctx, `
			INSERT INTO popups (id, title, body, image_url, cta_label, cta_url, audience, active, starts_at, ends_at)
			VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE
			SET title = EXCLUDED.title, body = EXCLUDED.body, image_url = EXCLUDED.image_url,
				cta_label = EXCLUDED.cta_label, cta_url = EXCLUDED.cta_url, audience = EXCLUDED.audience,
				active = EXCLUDED.active, starts_at = EXCLUDED.starts_at, ends_at = EXCLUDED.ends_at, updated_at = now()
			RETURNING `+popupColumns,
			p.ID, p.Title, p.Body, p.ImageURL, p.CTALabel, p.CTAURL, p.Audience, p.Active, p.StartsAt, p.EndsAt))
		if err != nil {
			return fmt.Errorf("save popup: %w", err)
		}
		if old == nil {
			return outbox.Write(ctx, tx, "popups", events.Insert, saved, nil)
		}
		return outbox.Write(ctx, tx, "popups", events.Update, saved, old)
	})
	return saved, err
}

func (cr *ContentRepo) DeletePopup(ctx context.Context, id string) error {
	if !isUUID(id) {
		return xerrors.ErrNotFound
	}
	return cr.deleteRow(ctx, "popups", `DELETE FROM popups WHERE id = $1 RETURNING `+popupColumns, id,
		func(row pgx.Row) (any, error) { return scanPopup(row) })
}

const promoColumns = `code, description, discount_type, value, min_subtotal_cents, max_uses,
	used_count, expires_at, active, created_at, updated_at`

func scanPromo(row pgx.Row) (marketing.PromoCode, error) {
	var p marketing.PromoCode
	err := row.Scan(&p.Code, &p.Description, &p.DiscountType, &p.Value, &p.MinSubtotalCents, &p.MaxUses,
		&p.UsedCount, &p.ExpiresAt, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, notFound(err)
}

func (cr *ContentRepo) Promos(ctx context.Context) ([]marketing.PromoCode, error) {
	items, err := queryAll(ctx, cr.db.GetPool(), `SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC`, scanPromo)
	if err != nil {
		return nil, fmt.Errorf("list promo codes: %w", err)
	}
	return items, nil
}

func (cr *ContentRepo) Promo(ctx context.Context, code string) (marketing.PromoCode, error) {
	return scanPromo(cr.db.GetPool().QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code))
}

func (cr *ContentRepo) SavePromo(ctx context.Context, p marketing.PromoCode, create bool) (marketing.PromoCode, error) {
	var saved marketing.PromoCode
	err := db.WithTx(ctx, cr.db.GetPool(), func(tx pgx.Tx) error {
		if create {
			var err error
			saved, err = scanPromo(tx.QueryRow(ctx, `
				INSERT INTO promo_codes (code, description, discount_type, value, min_subtotal_cents, max_uses, expires_at, active)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING `+promoColumns,
				p.Code, p.Description, p.DiscountType, p.Value, p.MinSubtotalCents, p.MaxUses, p.ExpiresAt, p.Active))
			if isUniqueViolation(err) {
				return core.ErrPromoExists
			}
			if err != nil {
				return fmt.Errorf("insert promo code: %w", err)
			}
			return outbox.Write(ctx, tx, "promo_codes", events.Insert, saved, nil)
		}

		old, err := scanPromo(tx.QueryRow(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1 FOR UPDATE`, p.Code))
		if err != nil {
			return err
		}
		saved, err = scanPromo(tx.QueryRow(ctx, `
			UPDATE promo_codes
			SET description = $2, discount_type = $3, value = $4, min_subtotal_cents = $5, max_uses = $6,
				expires_at = $7, active = $8, updated_at = now()
			WHERE code = $1
			RETURNING `+promoColumns,
			p.Code, p.Description, p.DiscountType, p.Value, p.MinSubtotalCents, p.MaxUses, p.ExpiresAt, p.Active))
		if err != nil {
			return fmt.Errorf("update promo code: %w", err)
		}
		return outbox.Write(ctx, tx, "promo_codes", events.Update, saved, old)
	})
	return saved, err
}

func (cr *ContentRepo) DeletePromo(ctx context.Context, code string) error {
	return cr.deleteRow(ctx, "promo_codes", `DELETE FROM promo_codes WHERE code = $1 RETURNING `+promoColumns, code,
		func(row pgx.Row) (any, error) { return scanPromo(row) })
}
