package services

import (
	"context"
	"fmt"
	"strings"

	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/admin/domain/dto"
	"deliveryhub/internal/earnings"
	"deliveryhub/internal/xpkg/cache"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/models"
)

// DirectoryService manages restaurants and driver profiles.
type DirectoryService struct {
	repo  core.IDirectoryRepo
	cache core.ICache
	mylog logger.Logger
}

func NewDirectoryService(repo core.IDirectoryRepo, c core.ICache, mylog logger.Logger) *DirectoryService {
	return &DirectoryService{repo: repo, cache: c, mylog: mylog}
}

func (ds *DirectoryService) Restaurants(ctx context.Context, status string, limit, offset int) ([]models.Restaurant, error) {
	switch status {
	case "", models.RestaurantActive, models.RestaurantSuspended:
	default:
		return nil, core.ErrUnknownStatus
	}
	return ds.repo.Restaurants(ctx, status, limit, offset)
}

func (ds *DirectoryService) CreateRestaurant(ctx context.Context, req dto.RestaurantRequest) (models.Restaurant, error) {
	r, err := restaurantFromRequest(models.Restaurant{Status: models.RestaurantActive}, req)
	if err != nil {
		return models.Restaurant{}, err
	}
	created, err := ds.repo.CreateRestaurant(ctx, r)
	if err != nil {
		return models.Restaurant{}, err
	}
	ds.invalidateCatalog(ctx, created.ID)
	ds.mylog.Action("restaurant_created").Info("restaurant created", "restaurant_id", created.ID, "owner_id", created.OwnerID)
	return created, nil
}

func (ds *DirectoryService) UpdateRestaurant(ctx context.Context, id string, req dto.RestaurantRequest) (models.Restaurant, error) {
	updated, err := ds.repo.UpdateRestaurant(ctx, id, func(cur models.Restaurant) (models.Restaurant, error) {
		return restaurantFromRequest(cur, req)
	})
	if err != nil {
		return models.Restaurant{}, err
	}
	ds.invalidateCatalog(ctx, id)
	return updated, nil
}

// SetRestaurantStatus suspends or reactivates a restaurant. Suspended restaurants
// disappear from the catalog and stop accepting orders.
func (ds *DirectoryService) SetRestaurantStatus(ctx context.Context, id, status string) (models.Restaurant, error) {
	if status != models.RestaurantActive && status != models.RestaurantSuspended {
		return models.Restaurant{}, core.ErrUnknownStatus
	}
	updated, err := ds.repo.UpdateRestaurant(ctx, id, func(cur models.Restaurant) (models.Restaurant, error) {
		cur.Status = status
		if status == models.RestaurantSuspended {
			cur.IsOpen = false
		}
		return cur, nil
	})
	if err != nil {
		return models.Restaurant{}, err
	}
	ds.invalidateCatalog(ctx, id)
	ds.mylog.Action("restaurant_status_changed").Info("restaurant status changed", "restaurant_id", id, "status", status)
	return updated, nil
}

// UpdateSettings lets an owner open or close their restaurant and change the prep time.
func (ds *DirectoryService) UpdateSettings(ctx context.Context, id httpx.Identity, restaurantID string, req dto.RestaurantSettings) (models.Restaurant, error) {
	if !id.IsAdmin() && (id.Role != httpx.RoleRestaurant || id.RestaurantID != restaurantID) {
		return models.Restaurant{}, xerrors.ErrForbidden
	}
	if req.IsOpen == nil && req.PrepMinutes == nil {
		return models.Restaurant{}, fmt.Errorf("is_open or prep_minutes: %w", xerrors.ErrFieldIsEmpty)
	}
	if req.PrepMinutes != nil && (*req.PrepMinutes <= 0 || *req.PrepMinutes > core.MaxPrepMinutes) {
		return models.Restaurant{}, fmt.Errorf("%w: prep_minutes must be in range [1, %d]", xerrors.ErrInvalidInput, core.MaxPrepMinutes)
	}

	updated, err := ds.repo.UpdateRestaurant(ctx, restaurantID, func(cur models.Restaurant) (models.Restaurant, error) {
		if req.IsOpen != nil {
			if *req.IsOpen && cur.Status != models.RestaurantActive {
				return cur, fmt.Errorf("%w: suspended restaurants cannot open", xerrors.ErrConflict)
			}
			cur.IsOpen = *req.IsOpen
		}
		if req.PrepMinutes != nil {
			cur.PrepMinutes = *req.PrepMinutes
		}
		return cur, nil
	})
	if err != nil {
		return models.Restaurant{}, err
	}
	ds.invalidateCatalog(ctx, restaurantID)
	return updated, nil
}

func (ds *DirectoryService) invalidateCatalog(ctx context.Context, restaurantID string) {
	if ds.cache == nil {
		return
	}
	ds.cache.Invalidate(ctx, cache.KeyRestaurants)
	ds.cache.Invalidate(ctx, cache.PrefixMenu+restaurantID)
}

func restaurantFromRequest(r models.Restaurant, req dto.RestaurantRequest) (models.Restaurant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return r, fmt.Errorf("name: %w", xerrors.ErrFieldIsEmpty)
	}
	if len(name) > core.MaxNameLen {
		return r, fmt.Errorf("%w: name longer than %d", xerrors.ErrInvalidInput, core.MaxNameLen)
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return r, fmt.Errorf("owner_id: %w", xerrors.ErrFieldIsEmpty)
	}
	if len(req.Address) > core.MaxAddressLen {
		return r, fmt.Errorf("%w: address longer than %d", xerrors.ErrInvalidInput, core.MaxAddressLen)
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		return r, fmt.Errorf("%w: coordinates out of range", xerrors.ErrInvalidInput)
	}
	if req.DeliveryFeeCents < 0 || req.DeliveryFeeCents > core.MaxFeeCents {
		return r, fmt.Errorf("%w: delivery_fee_cents must be in range [0, %d]", xerrors.ErrInvalidInput, core.MaxFeeCents)
	}

	prep := req.PrepMinutes
	if prep == 0 {
		prep = r.PrepMinutes
	}
	if prep == 0 {
		prep = 20
	}
	if prep < 0 || prep > core.MaxPrepMinutes {
		return r, fmt.Errorf("%w: prep_minutes must be in range [1, %d]", xerrors.ErrInvalidInput, core.MaxPrepMinutes)
	}

	freq, err := frequencyOr(req.PayoutFrequency, r.PayoutFrequency)
	if err != nil {
		return r, err
	}

	r.OwnerID = strings.TrimSpace(req.OwnerID)
	r.Name = name
	r.Address = strings.TrimSpace(req.Address)
	r.Lat, r.Lng = req.Lat, req.Lng
	r.DeliveryFeeCents = req.DeliveryFeeCents
	r.PrepMinutes = prep
	r.PayoutFrequency = freq
	return r, nil
}

// frequencyOr validates s, falling back to current and then to weekly when s is empty.
func frequencyOr(s, current string) (string, error) {
	if s == "" {
		s = current
	}
	if s == "" {
		return string(earnings.Weekly), nil
	}
	f, err := earnings.ParseFrequency(s)
	if err != nil {
		return "", core.ErrFrequency
	}
	return string(f), nil
}

func (ds *DirectoryService) Drivers(ctx context.Context, status string, limit, offset int) ([]models.Driver, error) {
	switch status {
	case "", models.DriverOffline, models.DriverOnline, models.DriverBusy:
	default:
		return nil, core.ErrUnknownStatus
	}
	return ds.repo.Drivers(ctx, status, limit, offset)
}

// CreateDriver registers the driver profile of an existing user id.
func (ds *DirectoryService) CreateDriver(ctx context.Context, req dto.DriverRequest) (models.Driver, error) {
	d := models.Driver{
		UserID:  strings.TrimSpace(req.UserID),
		Name:    strings.TrimSpace(req.Name),
		Phone:   strings.TrimSpace(req.Phone),
		Vehicle: strings.TrimSpace(req.Vehicle),
		Status:  models.DriverOffline,
	}
	if d.UserID == "" {
		return models.Driver{}, fmt.Errorf("user_id: %w", xerrors.ErrFieldIsEmpty)
	}
	if d.Name == "" {
		return models.Driver{}, fmt.Errorf("name: %w", xerrors.ErrFieldIsEmpty)
	}
	if len(d.Name) > core.MaxNameLen {
		return models.Driver{}, fmt.Errorf("%w: name longer than %d", xerrors.ErrInvalidInput, core.MaxNameLen)
	}
	freq, err := frequencyOr(req.PayoutFrequency, "")
	if err != nil {
		return models.Driver{}, err
	}
	d.PayoutFrequency = freq

	created, err := ds.repo.CreateDriver(ctx, d)
	if err != nil {
		return models.Driver{}, err
	}
	ds.mylog.Action("driver_created").Info("driver profile created", "driver_id", created.UserID)
	return created, nil
}

func (ds *DirectoryService) SetDriverFrequency(ctx context.Context, userID, frequency string) (models.Driver, error) {
	if frequency == "" {
		return models.Driver{}, fmt.Errorf("payout_frequency: %w", xerrors.ErrFieldIsEmpty)
	}
	freq, err := frequencyOr(frequency, "")
	if err != nil {
		return models.Driver{}, err
	}
	return ds.repo.SetDriverFrequency(ctx, userID, freq)
}
