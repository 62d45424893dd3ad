package services

import (
	"context"
	"fmt"
	"strings"

	"deliveryhub/internal/order/app/core"
	"deliveryhub/internal/order/domain/dto"
	"deliveryhub/internal/xpkg/cache"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/models"
)

const (
	CacheRestaurants = cache.KeyRestaurants
	CacheMenuPrefix  = cache.PrefixMenu
)

type CatalogService struct {
	repo  core.ICatalogRepo
	cache *cache.Cache
	mylog logger.Logger
}

func NewCatalogService(repo core.ICatalogRepo, c *cache.Cache, mylog logger.Logger) *CatalogService {
	return &CatalogService{repo: repo, cache: c, mylog: mylog}
}

func (cs *CatalogService) Restaurants(ctx context.Context) ([]models.Restaurant, error) {
	return cache.Load(ctx, cs.cache, CacheRestaurants, cs.repo.ActiveRestaurants)
}

func (cs *CatalogService) Menu(ctx context.Context, restaurantID string) ([]models.MenuItem, error) {
	if _, err := cs.repo.Restaurant(ctx, restaurantID); err != nil {
		return nil, err
	}
	return cache.Load(ctx, cs.cache, CacheMenuPrefix+restaurantID, func(ctx context.Context) ([]models.MenuItem, error) {
		return cs.repo.Menu(ctx, restaurantID)
	})
}

func (cs *CatalogService) CreateMenuItem(ctx context.Context, id httpx.Identity, restaurantID string, req dto.MenuItemRequest) (models.MenuItem, error) {
	if err := canEditMenu(id, restaurantID); err != nil {
		return models.MenuItem{}, err
	}
	if err := validateMenuItem(req); err != nil {
		return models.MenuItem{}, err
	}

	item := models.MenuItem{
		RestaurantID: restaurantID,
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		PriceCents:   req.PriceCents,
		Available:    req.Available == nil || *req.Available,
	}
	created, err := cs.repo.CreateMenuItem(ctx, item)
	if err != nil {
		return models.MenuItem{}, err
	}
	cs.cache.Invalidate(ctx, CacheMenuPrefix+restaurantID)
	cs.mylog.Action("menu_item_created").Info("menu item created", "restaurant_id", restaurantID, "item_id", created.ID)
	return created, nil
}

func (cs *CatalogService) UpdateMenuItem(ctx context.Context, id httpx.Identity, restaurantID, itemID string, req dto.MenuItemRequest) (models.MenuItem, error) {
	if err := canEditMenu(id, restaurantID); err != nil {
		return models.MenuItem{}, err
	}
	if err := validateMenuItem(req); err != nil {
		return models.MenuItem{}, err
	}

	item := models.MenuItem{
		ID:           itemID,
		RestaurantID: restaurantID,
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		PriceCents:   req.PriceCents,
		Available:    req.Available == nil || *req.Available,
	}
	updated, err := cs.repo.UpdateMenuItem(ctx, item)
	if err != nil {
		return models.MenuItem{}, err
	}
	cs.cache.Invalidate(ctx, CacheMenuPrefix+restaurantID)
	return updated, nil
}

func (cs *CatalogService) DeleteMenuItem(ctx context.Context, id httpx.Identity, restaurantID, itemID string) error {
	if err := canEditMenu(id, restaurantID); err != nil {
		return err
	}
	if err := cs.repo.DeleteMenuItem(ctx, restaurantID, itemID); err != nil {
		return err
	}
	cs.cache.Invalidate(ctx, CacheMenuPrefix+restaurantID)
	return nil
}

func canEditMenu(id httpx.Identity, restaurantID string) error {
	if id.IsAdmin() || (id.Role == httpx.RoleRestaurant && id.RestaurantID == restaurantID) {
		return nil
	}
	return xerrors.ErrForbidden
}

func validateMenuItem(req dto.MenuItemRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return fmt.Errorf("name: %w", xerrors.ErrFieldIsEmpty)
	}
	if l := len(name); l < core.MinMenuNameLen || l > core.MaxMenuNameLen {
		return fmt.Errorf("%w: name length: %d, must be in range [%d, %d]", xerrors.ErrInvalidInput, l, core.MinMenuNameLen, core.MaxMenuNameLen)
	}
	if len(req.Description) > core.MaxDescriptionLen {
		return fmt.Errorf("%w: description longer than %d", xerrors.ErrInvalidInput, core.MaxDescriptionLen)
	}
	if req.PriceCents <= 0 || req.PriceCents > core.MaxMenuPriceCents {
		return fmt.Errorf("%w: price_cents must be in range [1, %d]", xerrors.ErrInvalidInput, core.MaxMenuPriceCents)
	}
	return nil
}
