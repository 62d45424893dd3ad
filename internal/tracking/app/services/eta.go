package services

import (
	"time"

	"deliveryhub/internal/tracking/app/core"
	"deliveryhub/internal/xpkg/geo"
	"deliveryhub/internal/xpkg/models"
)

// EstimateDelivery predicts when the order reaches the customer, or when a takeout
// order is ready. It returns nil for rejected and cancelled orders.
//
// With a driver position and delivery coordinates the estimate is driven by the
// distance left at CourierSpeedKmh. Before pickup the driver first has to reach
// the restaurant and the kitchen has to finish. Otherwise it falls back to
// created_at + prep time + FallbackTravel.
func EstimateDelivery(o models.Order, r models.Restaurant, driver *geo.Position, now time.Time) *time.Time {
	switch o.Status {
	case models.StatusRejected, models.StatusCancelled:
		return nil
	case models.StatusDelivered:
		if o.DeliveredAt != nil {
			return o.DeliveredAt
		}
		return &o.UpdatedAt
	}

	readyAt := o.CreatedAt.Add(time.Duration(r.PrepMinutes) * time.Minute)

	if o.Type == models.OrderTakeout {
		return later(readyAt, now)
	}

	if driver == nil || o.DeliveryLat == nil || o.DeliveryLng == nil {
		eta := readyAt.Add(core.FallbackTravel)
		return &eta
	}

	toCustomer := geo.DistanceKm(driver.Lat, driver.Lng, *o.DeliveryLat, *o.DeliveryLng)
	if o.Status == models.StatusPickedUp {
		eta := now.Add(geo.TravelTime(toCustomer, core.CourierSpeedKmh))
		return &eta
	}

	pickupAt := *later(readyAt, now)
	leg := toCustomer
	if geo.ValidCoordinates(r.Lat, r.Lng) {
		toRestaurant := now.Add(geo.TravelTime(geo.DistanceKm(driver.Lat, driver.Lng, r.Lat, r.Lng), core.CourierSpeedKmh))
		pickupAt = *later(pickupAt, toRestaurant)
		leg = geo.DistanceKm(r.Lat, r.Lng, *o.DeliveryLat, *o.DeliveryLng)
	}
	eta := pickupAt.Add(geo.TravelTime(leg, core.CourierSpeedKmh))
	return &eta
}

func later(a, b time.Time) *time.Time {
	if a.After(b) {
		return &a
	}
	return &b
}
