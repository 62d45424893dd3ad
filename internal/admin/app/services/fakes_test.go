package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/admin/domain/dto"
	"deliveryhub/internal/marketing"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/models"
)

type memContent struct {
	core.IContentRepo

	articles map[string]dto.Article
	banners  []marketing.Banner
	popups   []marketing.Popup
	promos   map[string]marketing.PromoCode
	filters  []dto.ArticleFilter
}

func newMemContent() *memContent {
	return &memContent{articles: map[string]dto.Article{}, promos: map[string]marketing.PromoCode{}}
}

func (m *memContent) Articles(_ context.Context, f dto.ArticleFilter) ([]dto.Article, error) {
	m.filters = append(m.filters, f)
	out := []dto.Article{}
	for _, a := range m.articles {
		if f.Status == "" || a.Status == f.Status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *memContent) ArticleBySlug(_ context.Context, slug string) (dto.Article, error) {
	for _, a := range m.articles {
		if a.Slug == slug {
			return a, nil
		}
	}
	return dto.Article{}, xerrors.ErrNotFound
}

func (m *memContent) Article(_ context.Context, id string) (dto.Article, error) {
	a, ok := m.articles[id]
	if !ok {
		return dto.Article{}, xerrors.ErrNotFound
	}
	return a, nil
}

func (m *memContent) CreateArticle(ctx context.Context, a dto.Article) (dto.Article, error) {
	if _, err := m.ArticleBySlug(ctx, a.Slug); err == nil {
		return dto.Article{}, core.ErrSlugTaken
	}
	a.ID = fmt.Sprintf("a-%d", len(m.articles)+1)
	m.articles[a.ID] = a
	return a, nil
}

func (m *memContent) UpdateArticle(_ context.Context, a dto.Article) (dto.Article, error) {
	m.articles[a.ID] = a
	return a, nil
}

func (m *memContent) SetArticleStatus(_ context.Context, id, status string, at time.Time) (dto.Article, error) {
	a, ok := m.articles[id]
	if !ok {
		return dto.Article{}, xerrors.ErrNotFound
	}
	a.Status = status
	if status == dto.ArticlePublished && a.PublishedAt == nil {
		a.PublishedAt = &at
	}
	m.articles[id] = a
	return a, nil
}

func (m *memContent) Banners(context.Context) ([]marketing.Banner, error) { return m.banners, nil }

func (m *memContent) SaveBanner(_ context.Context, b marketing.Banner) (marketing.Banner, error) {
	b.ID = fmt.Sprintf("b-%d", len(m.banners)+1)
	m.banners = append(m.banners, b)
	return b, nil
}

func (m *memContent) Popups(context.Context) ([]marketing.Popup, error) { return m.popups, nil }

func (m *memContent) SavePopup(_ context.Context, p marketing.Popup) (marketing.Popup, error) {
	p.ID = fmt.Sprintf("p-%d", len(m.popups)+1)
	m.popups = append(m.popups, p)
	return p, nil
}

func (m *memContent) Promo(_ context.Context, code string) (marketing.PromoCode, error) {
	p, ok := m.promos[code]
	if !ok {
		return marketing.PromoCode{}, xerrors.ErrNotFound
	}
	return p, nil
}

func (m *memContent) SavePromo(_ context.Context, p marketing.PromoCode, create bool) (marketing.PromoCode, error) {
	if _, ok := m.promos[p.Code]; ok && create {
		return marketing.PromoCode{}, core.ErrPromoExists
	}
	m.promos[p.Code] = p
	return p, nil
}

type memTickets struct {
	tickets  map[string]dto.Ticket
	messages []dto.TicketMessage
	lastList dto.TicketFilter
}

func newMemTickets() *memTickets {
	return &memTickets{tickets: map[string]dto.Ticket{}}
}

func (m *memTickets) Create(_ context.Context, t dto.Ticket, first dto.TicketMessage) (dto.Ticket, error) {
	t.ID = fmt.Sprintf("t-%d", len(m.tickets)+1)
	first.TicketID = t.ID
	t.Messages = []dto.TicketMessage{first}
	m.tickets[t.ID] = t
	m.messages = append(m.messages, first)
	return t, nil
}

func (m *memTickets) Get(_ context.Context, id string) (dto.Ticket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return dto.Ticket{}, xerrors.ErrNotFound
	}
	return t, nil
}

func (m *memTickets) List(_ context.Context, f dto.TicketFilter) ([]dto.Ticket, error) {
	m.lastList = f
	out := []dto.Ticket{}
	for _, t := range m.tickets {
		if (f.UserID == "" || t.UserID == f.UserID) && (f.Status == "" || t.Status == f.Status) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTickets) AddMessage(_ context.Context, msg dto.TicketMessage) (dto.TicketMessage, error) {
	msg.ID = fmt.Sprintf("m-%d", len(m.messages)+1)
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memTickets) SetStatus(_ context.Context, id, status string) (dto.Ticket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return dto.Ticket{}, xerrors.ErrNotFound
	}
	t.Status = status
	m.tickets[id] = t
	return t, nil
}

type memDirectory struct {
	restaurants map[string]models.Restaurant
	drivers     map[string]models.Driver
}

func newMemDirectory() *memDirectory {
	return &memDirectory{restaurants: map[string]models.Restaurant{}, drivers: map[string]models.Driver{}}
}

func (m *memDirectory) Restaurants(_ context.Context, status string, _, _ int) ([]models.Restaurant, error) {
	out := []models.Restaurant{}
	for _, r := range m.restaurants {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memDirectory) Restaurant(_ context.Context, id string) (models.Restaurant, error) {
	r, ok := m.restaurants[id]
	if !ok {
		return models.Restaurant{}, xerrors.ErrNotFound
	}
	return r, nil
}

func (m *memDirectory) CreateRestaurant(_ context.Context, r models.Restaurant) (models.Restaurant, error) {
	r.ID = fmt.Sprintf("r-%d", len(m.restaurants)+1)
	m.restaurants[r.ID] = r
	return r, nil
}

func (m *memDirectory) UpdateRestaurant(ctx context.Context, id string, fn func(models.Restaurant) (models.Restaurant, error)) (models.Restaurant, error) {
	cur, err := m.Restaurant(ctx, id)
	if err != nil {
		return models.Restaurant{}, err
	}
	next, err := fn(cur)
	if err != nil {
		return models.Restaurant{}, err
	}
	m.restaurants[id] = next
	return next, nil
}

func (m *memDirectory) Drivers(context.Context, string, int, int) ([]models.Driver, error) {
	out := []models.Driver{}
	for _, d := range m.drivers {
		out = append(out, d)
	}
	return out, nil
}

func (m *memDirectory) CreateDriver(_ context.Context, d models.Driver) (models.Driver, error) {
	if _, ok := m.drivers[d.UserID]; ok {
		return models.Driver{}, core.ErrDriverExists
	}
	m.drivers[d.UserID] = d
	return d, nil
}

func (m *memDirectory) SetDriverFrequency(_ context.Context, userID, frequency string) (models.Driver, error) {
	d, ok := m.drivers[userID]
	if !ok {
		return models.Driver{}, xerrors.ErrNotFound
	}
	d.PayoutFrequency = frequency
	m.drivers[userID] = d
	return d, nil
}

type recordingCache struct {
	prefixes []string
}

func (c *recordingCache) Invalidate(_ context.Context, prefix string) {
	c.prefixes = append(c.prefixes, prefix)
}
