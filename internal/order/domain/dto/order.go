package dto

import (
	"time"

	"deliveryhub/internal/xpkg/models"
)

type CreateOrderRequest struct {
	RestaurantID    string   `json:"restaurant_id"`
	Type            string   `json:"type"`
	Items           []Item   `json:"items"`
	DeliveryAddress string   `json:"delivery_address,omitempty"`
	DeliveryLat     *float64 `json:"delivery_lat,omitempty"`
	DeliveryLng     *float64 `json:"delivery_lng,omitempty"`
	PromoCode       string   `json:"promo_code,omitempty"`
	TipCents        int64    `json:"tip_cents,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

type Item struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

type OrderResponse struct {
	Number        string `json:"number"`
	Status        string `json:"status"`
	SubtotalCents int64  `json:"subtotal_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TotalCents    int64  `json:"total_cents"`
}

type StatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// StatusChange is a validated transition handed to the repository.
type StatusChange struct {
	To        string
	ChangedBy string
	Role      string
	Note      string
	At        time.Time
}

type OrderFilter struct {
	CustomerID   string
	RestaurantID string
	DriverID     string
	Status       string
	Limit        int
	Offset       int
}

type OrderList struct {
	Orders []models.Order `json:"orders"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
