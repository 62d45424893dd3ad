package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/admin/domain/dto"
	"deliveryhub/internal/marketing"
	"deliveryhub/internal/xpkg/cache"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
)

// ContentService serves the FAQ, the blog and marketing content. Public reads
// go through the cache; every write drops the cached content.
type ContentService struct {
	repo  core.IContentRepo
	cache *cache.Cache
	mylog logger.Logger
	now   func() time.Time
}

func NewContentService(repo core.IContentRepo, c *cache.Cache, mylog logger.Logger) *ContentService {
	return &ContentService{repo: repo, cache: c, mylog: mylog, now: time.Now}
}

func (cs *ContentService) invalidate(ctx context.Context) {
	cs.cache.Invalidate(ctx, core.ContentPrefix)
}

// FAQ lists published entries; admins also see drafts.
func (cs *ContentService) FAQ(ctx context.Context, id httpx.Identity) ([]dto.FAQItem, error) {
	if id.IsAdmin() {
		return cs.repo.FAQ(ctx, true)
	}
	return cache.Load(ctx, cs.cache, core.CacheFAQ, func(ctx context.Context) ([]dto.FAQItem, error) {
		return cs.repo.FAQ(ctx, false)
	})
}

func faqFromRequest(req dto.FAQRequest) (dto.FAQItem, error) {
	item := dto.FAQItem{
		Question:  strings.TrimSpace(req.Question),
		Answer:    strings.TrimSpace(req.Answer),
		Category:  strings.ToLower(strings.TrimSpace(req.Category)),
		Position:  req.Position,
		Published: req.Published == nil || *req.Published,
	}
	if item.Question == "" {
		return item, fmt.Errorf("question: %w", xerrors.ErrFieldIsEmpty)
	}
	if len(item.Question) > core.MaxQuestionLen {
		return item, fmt.Errorf("%w: question longer than %d", xerrors.ErrInvalidInput, core.MaxQuestionLen)
	}
	if item.Answer == "" {
		return item, fmt.Errorf("answer: %w", xerrors.ErrFieldIsEmpty)
	}
	if item.Category == "" {
		item.Category = "general"
	}
	return item, nil
}

func (cs *ContentService) CreateFAQ(ctx context.Context, req dto.FAQRequest) (dto.FAQItem, error) {
	item, err := faqFromRequest(req)
	if err != nil {
		return dto.FAQItem{}, err
	}
	created, err := cs.repo.CreateFAQ(ctx, item)
	if err != nil {
		return dto.FAQItem{}, err
	}
	cs.invalidate(ctx)
	return created, nil
}

func (cs *ContentService) UpdateFAQ(ctx context.Context, faqID string, req dto.FAQRequest) (dto.FAQItem, error) {
	item, err := faqFromRequest(req)
	if err != nil {
		return dto.FAQItem{}, err
	}
	item.ID = faqID
	updated, err := cs.repo.UpdateFAQ(ctx, item)
	if err != nil {
		return dto.FAQItem{}, err
	}
	cs.invalidate(ctx)
	return updated, nil
}

func (cs *ContentService) DeleteFAQ(ctx context.Context, faqID string) error {
	if err := cs.repo.DeleteFAQ(ctx, faqID); err != nil {
		return err
	}
	cs.invalidate(ctx)
	return nil
}

// Articles lists published articles for everyone. Admins may ask for drafts with status.
func (cs *ContentService) Articles(ctx context.Context, id httpx.Identity, f dto.ArticleFilter) ([]dto.Article, error) {
	if !id.IsAdmin() {
		f.Status = dto.ArticlePublished
	}
	switch f.Status {
	case "", dto.ArticleDraft, dto.ArticlePublished:
	default:
		return nil, core.ErrUnknownStatus
	}
	if id.IsAdmin() {
		return cs.repo.Articles(ctx, f)
	}
	key := core.CacheArticles + f.Tag + ":" + strconv.Itoa(f.Limit) + ":" + strconv.Itoa(f.Offset)
	return cache.Load(ctx, cs.cache, key, func(ctx context.Context) ([]dto.Article, error) {
		return cs.repo.Articles(ctx, f)
	})
}

// Article returns a published article by slug; admins can read drafts too.
func (cs *ContentService) Article(ctx context.Context, id httpx.Identity, slug string) (dto.Article, error) {
	a, err := cs.repo.ArticleBySlug(ctx, slug)
	if err != nil {
		return dto.Article{}, err
	}
	if a.Status != dto.ArticlePublished && !id.IsAdmin() {
		return dto.Article{}, xerrors.ErrNotFound
	}
	return a, nil
}

func articleFromRequest(a dto.Article, req dto.ArticleRequest) (dto.Article, error) {
	a.Title = strings.TrimSpace(req.Title)
	if a.Title == "" {
		return a, fmt.Errorf("title: %w", xerrors.ErrFieldIsEmpty)
	}
	if len(a.Title) > core.MaxTitleLen {
		return a, fmt.Errorf("%w: title longer than %d", xerrors.ErrInvalidInput, core.MaxTitleLen)
	}
	a.Summary = strings.TrimSpace(req.Summary)
	if len(a.Summary) > core.MaxSummaryLen {
		return a, fmt.Errorf("%w: summary longer than %d", xerrors.ErrInvalidInput, core.MaxSummaryLen)
	}
	if len(req.Tags) > core.MaxTags {
		return a, fmt.Errorf("%w: at most %d tags", xerrors.ErrInvalidInput, core.MaxTags)
	}
	a.Tags = a.Tags[:0:0]
	seen := map[string]bool{}
	for _, t := range req.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !seen[t] {
			seen[t] = true
			a.Tags = append(a.Tags, t)
		}
	}
	a.Body = req.Body
	a.CoverURL = strings.TrimSpace(req.CoverURL)
	return a, nil
}

// CreateArticle stores a draft. Without an explicit slug one is derived from the
// title and suffixed until it is unique; an explicit slug must be free.
func (cs *ContentService) CreateArticle(ctx context.Context, authorID string, req dto.ArticleRequest) (dto.Article, error) {
	a, err := articleFromRequest(dto.Article{AuthorID: authorID, Status: dto.ArticleDraft}, req)
	if err != nil {
		return dto.Article{}, err
	}

	explicit := strings.TrimSpace(req.Slug)
	if explicit != "" {
		if !ValidSlug(explicit) {
			return dto.Article{}, fmt.Errorf("%w: slug may contain a-z, 0-9 and single dashes", xerrors.ErrInvalidInput)
		}
		a.Slug = explicit
		created, err := cs.repo.CreateArticle(ctx, a)
		if err != nil {
			return dto.Article{}, err
		}
		cs.mylog.Action("article_created").Info("article created", "article_id", created.ID, "slug", created.Slug)
		return created, nil
	}

	base := Slugify(a.Title)
	for n := 1; n <= core.SlugAttempts; n++ {
		a.Slug = slugCandidate(base, n)
		created, err := cs.repo.CreateArticle(ctx, a)
		if errors.Is(err, core.ErrSlugTaken) {
			continue
		}
		if err != nil {
			return dto.Article{}, err
		}
		cs.mylog.Action("article_created").Info("article created", "article_id", created.ID, "slug", created.Slug)
		return created, nil
	}
	return dto.Article{}, fmt.Errorf("%w after %d attempts", core.ErrSlugTaken, core.SlugAttempts)
}

// UpdateArticle keeps the slug unless a new one is given.
func (cs *ContentService) UpdateArticle(ctx context.Context, articleID string, req dto.ArticleRequest) (dto.Article, error) {
	cur, err := cs.repo.Article(ctx, articleID)
	if err != nil {
		return dto.Article{}, err
	}
	a, err := articleFromRequest(cur, req)
	if err != nil {
		return dto.Article{}, err
	}
	if slug := strings.TrimSpace(req.Slug); slug != "" && slug != cur.Slug {
		if !ValidSlug(slug) {
			return dto.Article{}, fmt.Errorf("%w: slug may contain a-z, 0-9 and single dashes", xerrors.ErrInvalidInput)
		}
		a.Slug = slug
	}
	updated, err := cs.repo.UpdateArticle(ctx, a)
	if err != nil {
		return dto.Article{}, err
	}
	cs.invalidate(ctx)
	return updated, nil
}

// SetPublished publishes or unpublishes. The first publication time is kept on republish.
func (cs *ContentService) SetPublished(ctx context.Context, articleID string, published bool) (dto.Article, error) {
	status := dto.ArticleDraft
	if published {
		status = dto.ArticlePublished
	}
	a, err := cs.repo.SetArticleStatus(ctx, articleID, status, cs.now().UTC())
	if err != nil {
		return dto.Article{}, err
	}
	cs.invalidate(ctx)
	cs.mylog.Action("article_status_changed").Info("article status changed", "article_id", articleID, "status", status)
	return a, nil
}

func (cs *ContentService) DeleteArticle(ctx context.Context, articleID string) error {
	if err := cs.repo.DeleteArticle(ctx, articleID); err != nil {
		return err
	}
	cs.invalidate(ctx)
	return nil
}

// Banners returns what is on display now; admins get every banner.
func (cs *ContentService) Banners(ctx context.Context, id httpx.Identity) ([]marketing.Banner, error) {
	if id.IsAdmin() {
		return cs.repo.Banners(ctx)
	}
	all, err := cache.Load(ctx, cs.cache, core.CacheBanners, cs.repo.Banners)
	if err != nil {
		return nil, err
	}
	now := cs.now()
	out := []marketing.Banner{}
	for _, b := range all {
		if b.Visible(now) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (cs *ContentService) SaveBanner(ctx context.Context, b marketing.Banner) (marketing.Banner, error) {
	if err := b.Validate(); err != nil {
		return marketing.Banner{}, err
	}
	saved, err := cs.repo.SaveBanner(ctx, b)
	if err != nil {
		return marketing.Banner{}, err
	}
	cs.invalidate(ctx)
	return saved, nil
}

func (cs *ContentService) DeleteBanner(ctx context.Context, bannerID string) error {
	if err := cs.repo.DeleteBanner(ctx, bannerID); err != nil {
		return err
	}
	cs.invalidate(ctx)
	return nil
}

// Popups returns the popups shown to the caller's role now. Anonymous callers see audience "all".
func (cs *ContentService) Popups(ctx context.Context, id httpx.Identity) ([]marketing.Popup, error) {
	if id.IsAdmin() {
		return cs.repo.Popups(ctx)
	}
	all, err := cache.Load(ctx, cs.cache, core.CachePopups, cs.repo.Popups)
	if err != nil {
		return nil, err
	}
	now := cs.now()
	out := []marketing.Popup{}
	for _, p := range all {
		if p.Visible(id.Role, now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (cs *ContentService) SavePopup(ctx context.Context, p marketing.Popup) (marketing.Popup, error) {
	if p.Audience == "" {
		p.Audience = marketing.AudienceAll
	}
	if err := p.Validate(); err != nil {
		return marketing.Popup{}, err
	}
	saved, err := cs.repo.SavePopup(ctx, p)
	if err != nil {
		return marketing.Popup{}, err
	}
	cs.invalidate(ctx)
	return saved, nil
}

func (cs *ContentService) DeletePopup(ctx context.Context, popupID string) error {
	if err := cs.repo.DeletePopup(ctx, popupID); err != nil {
		return err
	}
	cs.invalidate(ctx)
	return nil
}

func (cs *ContentService) Promos(ctx context.Context) ([]marketing.PromoCode, error) {
	return cs.repo.Promos(ctx)
}

// SavePromo creates or replaces a promo code definition. used_count is never taken from the caller.
func (cs *ContentService) SavePromo(ctx context.Context, p marketing.PromoCode, create bool) (marketing.PromoCode, error) {
	p.Code = marketing.NormalizeCode(p.Code)
	if err := p.Validate(); err != nil {
		return marketing.PromoCode{}, err
	}
	saved, err := cs.repo.SavePromo(ctx, p, create)
	if err != nil {
		return marketing.PromoCode{}, err
	}
	cs.mylog.Action("promo_saved").Info("promo code saved", "code", saved.Code, "created", create)
	return saved, nil
}

func (cs *ContentService) DeletePromo(ctx context.Context, code string) error {
	return cs.repo.DeletePromo(ctx, marketing.NormalizeCode(code))
}

// PromoCheck is the preview a customer gets before ordering.
type PromoCheck struct {
	Code          string `json:"code"`
	Valid         bool   `json:"valid"`
	Reason        string `json:"reason,omitempty"`
	DiscountCents int64  `json:"discount_cents"`
}

// CheckPromo tells whether code applies to subtotalCents and how much it takes off.
func (cs *ContentService) CheckPromo(ctx context.Context, code string, subtotalCents int64) (PromoCheck, error) {
	if subtotalCents < 0 {
		return PromoCheck{}, fmt.Errorf("%w: subtotal_cents cannot be negative", xerrors.ErrInvalidInput)
	}
	code = marketing.NormalizeCode(code)
	p, err := cs.repo.Promo(ctx, code)
	if errors.Is(err, xerrors.ErrNotFound) {
		return PromoCheck{}, marketing.ErrPromoUnknown
	}
	if err != nil {
		return PromoCheck{}, err
	}
	res := PromoCheck{Code: code}
	if err := p.Check(subtotalCents, cs.now()); err != nil {
		res.Reason = err.Error()
		return res, nil
	}
	res.Valid = true
	res.DiscountCents = p.Discount(subtotalCents)
	return res, nil
}
