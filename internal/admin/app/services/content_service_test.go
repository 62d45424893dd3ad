package services

import (
	"context"
	"testing"
	"time"

	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/admin/domain/dto"
	"deliveryhub/internal/marketing"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	contentNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	adminID    = httpx.Identity{UserID: "admin-1", Role: httpx.RoleAdmin}
	customerID = httpx.Identity{UserID: "u-1", Role: httpx.RoleCustomer}
)

func newContentService(repo *memContent) *ContentService {
	cs := NewContentService(repo, nil, logger.Discard())
	cs.now = func() time.Time { return contentNow }
	return cs
}

func TestCreateArticle_DerivesUniqueSlug(t *testing.T) {
	repo := newMemContent()
	cs := newContentService(repo)
	ctx := context.Background()

	first, err := cs.CreateArticle(ctx, "admin-1", dto.ArticleRequest{Title: "Hello World", Tags: []string{"News", "news ", ""}})
	require.NoError(t, err)
	assert.Equal(t, "hello-world", first.Slug)
	assert.Equal(t, dto.ArticleDraft, first.Status)
	assert.Equal(t, []string{"news"}, first.Tags)

	second, err := cs.CreateArticle(ctx, "admin-1", dto.ArticleRequest{Title: "Hello, World!"})
	require.NoError(t, err)
	assert.Equal(t, "hello-world-2", second.Slug)

	third, err := cs.CreateArticle(ctx, "admin-1", dto.ArticleRequest{Title: "hello world"})
	require.NoError(t, err)
	assert.Equal(t, "hello-world-3", third.Slug)
}

func TestCreateArticle_ExplicitSlug(t *testing.T) {
	repo := newMemContent()
	cs := newContentService(repo)
	ctx := context.Background()

	a, err := cs.CreateArticle(ctx, "admin-1", dto.ArticleRequest{Title: "Menu", Slug: "summer-menu"})
	require.NoError(t, err)
	assert.Equal(t, "summer-menu", a.Slug)

	_, err = cs.CreateArticle(ctx, "admin-1", dto.ArticleRequest{Title: "Menu again", Slug: "summer-menu"})
	assert.ErrorIs(t, err, core.ErrSlugTaken)
	assert.ErrorIs(t, err, xerrors.ErrConflict)

	_, err = cs.CreateArticle(ctx, "admin-1", dto.ArticleRequest{Title: "Menu", Slug: "Summer Menu"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = cs.CreateArticle(ctx, "admin-1", dto.ArticleRequest{Title: "  "})
	assert.ErrorIs(t, err, xerrors.ErrFieldIsEmpty)
}

func TestArticles_DraftsOnlyForAdmins(t *testing.T) {
	repo := newMemContent()
	cs := newContentService(repo)
	ctx := context.Background()

	draft, err := cs.CreateArticle(ctx, "admin-1", dto.ArticleRequest{Title: "Draft"})
	require.NoError(t, err)
	live, err := cs.CreateArticle(ctx, "admin-1", dto.ArticleRequest{Title: "Live"})
	require.NoError(t, err)

	published, err := cs.SetPublished(ctx, live.ID, true)
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	assert.Equal(t, contentNow, *published.PublishedAt)

	list, err := cs.Articles(ctx, customerID, dto.ArticleFilter{Status: dto.ArticleDraft})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "live", list[0].Slug)

	list, err = cs.Articles(ctx, adminID, dto.ArticleFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = cs.Articles(ctx, adminID, dto.ArticleFilter{Status: "archived"})
	assert.ErrorIs(t, err, core.ErrUnknownStatus)

	_, err = cs.Article(ctx, customerID, draft.Slug)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	got, err := cs.Article(ctx, adminID, draft.Slug)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)

	unpublished, err := cs.SetPublished(ctx, live.ID, false)
	require.NoError(t, err)
	assert.Equal(t, dto.ArticleDraft, unpublished.Status)
	_, err = cs.Article(ctx, httpx.Identity{}, "live")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestUpdateArticle_KeepsSlug(t *testing.T) {
	repo := newMemContent()
	cs := newContentService(repo)
	ctx := context.Background()

	a, err := cs.CreateArticle(ctx, "admin-1", dto.ArticleRequest{Title: "Original"})
	require.NoError(t, err)

	updated, err := cs.UpdateArticle(ctx, a.ID, dto.ArticleRequest{Title: "Renamed", Body: "text"})
	require.NoError(t, err)
	assert.Equal(t, "original", updated.Slug)
	assert.Equal(t, "Renamed", updated.Title)

	updated, err = cs.UpdateArticle(ctx, a.ID, dto.ArticleRequest{Title: "Renamed", Slug: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Slug)

	_, err = cs.UpdateArticle(ctx, "missing", dto.ArticleRequest{Title: "x"})
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestBannersAndPopups_Visibility(t *testing.T) {
	repo := newMemContent()
	cs := newContentService(repo)
	ctx := context.Background()
	past, future := contentNow.Add(-time.Hour), contentNow.Add(time.Hour)

	repo.banners = []marketing.Banner{
		{ID: "b-1", Title: "Now", ImageURL: "https://img/1", Active: true},
		{ID: "b-2", Title: "Later", ImageURL: "https://img/2", Active: true, StartsAt: &future},
		{ID: "b-3", Title: "Ended", ImageURL: "https://img/3", Active: true, EndsAt: &past},
		{ID: "b-4", Title: "Off", ImageURL: "https://img/4"},
	}
	repo.popups = []marketing.Popup{
		{ID: "p-1", Title: "Everyone", Audience: marketing.AudienceAll, Active: true},
		{ID: "p-2", Title: "Drivers", Audience: httpx.RoleDriver, Active: true},
		{ID: "p-3", Title: "Customers", Audience: httpx.RoleCustomer, Active: true, StartsAt: &past, EndsAt: &future},
	}

	banners, err := cs.Banners(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, banners, 1)
	assert.Equal(t, "b-1", banners[0].ID)

	banners, err = cs.Banners(ctx, adminID)
	require.NoError(t, err)
	assert.Len(t, banners, 4)

	popups, err := cs.Popups(ctx, customerID)
	require.NoError(t, err)
	ids := []string{}
	for _, p := range popups {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"p-1", "p-3"}, ids)

	popups, err = cs.Popups(ctx, httpx.Identity{})
	require.NoError(t, err)
	require.Len(t, popups, 1)
	assert.Equal(t, "p-1", popups[0].ID)
}

func TestSaveBannerAndPopup_Validation(t *testing.T) {
	cs := newContentService(newMemContent())
	ctx := context.Background()

	_, err := cs.SaveBanner(ctx, marketing.Banner{Title: "No image"})
	assert.ErrorIs(t, err, xerrors.ErrFieldIsEmpty)

	start := contentNow
	_, err = cs.SaveBanner(ctx, marketing.Banner{Title: "Window", ImageURL: "https://img", StartsAt: &start, EndsAt: &start})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	p, err := cs.SavePopup(ctx, marketing.Popup{Title: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, marketing.AudienceAll, p.Audience)

	_, err = cs.SavePopup(ctx, marketing.Popup{Title: "Hi", Audience: "robots"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestPromos(t *testing.T) {
	repo := newMemContent()
	cs := newContentService(repo)
	ctx := context.Background()

	saved, err := cs.SavePromo(ctx, marketing.PromoCode{Code: " summer10 ", DiscountType: marketing.DiscountPercent, Value: 10, MinSubtotalCents: 1500, Active: true}, true)
	require.NoError(t, err)
	assert.Equal(t, "SUMMER10", saved.Code)

	_, err = cs.SavePromo(ctx, marketing.PromoCode{Code: "SUMMER10", DiscountType: marketing.DiscountFixed, Value: 500}, true)
	assert.ErrorIs(t, err, core.ErrPromoExists)

	_, err = cs.SavePromo(ctx, marketing.PromoCode{Code: "BAD", DiscountType: marketing.DiscountPercent, Value: 150}, true)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	check, err := cs.CheckPromo(ctx, "summer10", 2000)
	require.NoError(t, err)
	assert.True(t, check.Valid)
	assert.Equal(t, int64(200), check.DiscountCents)

	check, err = cs.CheckPromo(ctx, "SUMMER10", 1000)
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.Equal(t, marketing.ErrPromoBelowMinimum.Error(), check.Reason)
	assert.Zero(t, check.DiscountCents)

	_, err = cs.CheckPromo(ctx, "NOPE", 1000)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	_, err = cs.CheckPromo(ctx, "SUMMER10", -1)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}
