package core

import (
	"context"
	"time"

	"deliveryhub/internal/admin/domain/dto"
	"deliveryhub/internal/marketing"
	"deliveryhub/internal/xpkg/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type IDB interface {
	Close() error
	IsAlive() error
	GetPool() *pgxpool.Pool
}

type IDirectoryRepo interface {
	Restaurants(ctx context.Context, status string, limit, offset int) ([]models.Restaurant, error)
	Restaurant(ctx context.Context, id string) (models.Restaurant, error)
	CreateRestaurant(ctx context.Context, r models.Restaurant) (models.Restaurant, error)
	// UpdateRestaurant loads the row for update and stores whatever fn returns.
	UpdateRestaurant(ctx context.Context, id string, fn func(models.Restaurant) (models.Restaurant, error)) (models.Restaurant, error)

	Drivers(ctx context.Context, status string, limit, offset int) ([]models.Driver, error)
	CreateDriver(ctx context.Context, d models.Driver) (models.Driver, error)
	SetDriverFrequency(ctx context.Context, userID, frequency string) (models.Driver, error)
}

type IContentRepo interface {
	FAQ(ctx context.Context, includeDrafts bool) ([]dto.FAQItem, error)
	CreateFAQ(ctx context.Context, item dto.FAQItem) (dto.FAQItem, error)
	UpdateFAQ(ctx context.Context, item dto.FAQItem) (dto.FAQItem, error)
	DeleteFAQ(ctx context.Context, id string) error

	Articles(ctx context.Context, f dto.ArticleFilter) ([]dto.Article, error)
	ArticleBySlug(ctx context.Context, slug string) (dto.Article, error)
	Article(ctx context.Context, id string) (dto.Article, error)
	// CreateArticle returns ErrSlugTaken when the slug is used.
	CreateArticle(ctx context.Context, a dto.Article) (dto.Article, error)
	UpdateArticle(ctx context.Context, a dto.Article) (dto.Article, error)
	SetArticleStatus(ctx context.Context, id, status string, at time.Time) (dto.Article, error)
	DeleteArticle(ctx context.Context, id string) error

	Banners(ctx context.Context) ([]marketing.Banner, error)
	SaveBanner(ctx context.Context, b marketing.Banner) (marketing.Banner, error)
	DeleteBanner(ctx context.Context, id string) error
	Popups(ctx context.Context) ([]marketing.Popup, error)
	SavePopup(ctx context.Context, p marketing.Popup) (marketing.Popup, error)
	DeletePopup(ctx context.Context, id string) error

	Promos(ctx context.Context) ([]marketing.PromoCode, error)
	Promo(ctx context.Context, code string) (marketing.PromoCode, error)
	// SavePromo inserts when create is set and returns ErrPromoExists on duplicates.
	SavePromo(ctx context.Context, p marketing.PromoCode, create bool) (marketing.PromoCode, error)
	DeletePromo(ctx context.Context, code string) error
}

type ITicketRepo interface {
	// Create stores the ticket and its first message.
	Create(ctx context.Context, t dto.Ticket, first dto.TicketMessage) (dto.Ticket, error)
	Get(ctx context.Context, id string) (dto.Ticket, error)
	List(ctx context.Context, f dto.TicketFilter) ([]dto.Ticket, error)
	// AddMessage rejects messages on closed tickets inside the insert transaction.
	AddMessage(ctx context.Context, m dto.TicketMessage) (dto.TicketMessage, error)
	SetStatus(ctx context.Context, id, status string) (dto.Ticket, error)
}

type IStatsRepo interface {
	Stats(ctx context.Context, since time.Time) (dto.Stats, error)
}
