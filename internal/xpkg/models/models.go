// Package models holds the rows shared by more than one service.
// JSON tags double as the column names carried in row-change events.
package models

import "time"

const (
	OrderDelivery = "delivery"
	OrderTakeout  = "takeout"
)

const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusPickedUp  = "picked_up"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

type Order struct {
	ID               string      `json:"id"`
	Number           string      `json:"number"`
	CustomerID       string      `json:"customer_id"`
	RestaurantID     string      `json:"restaurant_id"`
	DriverID         *string     `json:"driver_id"`
	Type             string      `json:"type"`
	Status           string      `json:"status"`
	DeliveryAddress  string      `json:"delivery_address,omitempty"`
	DeliveryLat      *float64    `json:"delivery_lat,omitempty"`
	DeliveryLng      *float64    `json:"delivery_lng,omitempty"`
	SubtotalCents    int64       `json:"subtotal_cents"`
	DeliveryFeeCents int64       `json:"delivery_fee_cents"`
	DiscountCents    int64       `json:"discount_cents"`
	TipCents         int64       `json:"tip_cents"`
	TotalCents       int64       `json:"total_cents"`
	PromoCode        *string     `json:"promo_code,omitempty"`
	Notes            string      `json:"notes,omitempty"`
	UpdatedByRole    string      `json:"updated_by_role,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	DeliveredAt      *time.Time  `json:"delivered_at,omitempty"`
	Items            []OrderItem `json:"items,omitempty"`
}

// Driver returns the assigned driver id or "".
func (o Order) Driver() string {
	if o.DriverID == nil {
		return ""
	}
	return *o.DriverID
}

// WithoutItems drops the items, which are not part of the orders row.
func (o Order) WithoutItems() Order {
	o.Items = nil
	return o
}

// Terminal reports whether no further transition is possible.
func (o Order) Terminal() bool {
	switch o.Status {
	case StatusDelivered, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

type OrderItem struct {
	ID             int64  `json:"id"`
	OrderID        string `json:"order_id"`
	MenuItemID     string `json:"menu_item_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type StatusLog struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
	Note      string    `json:"note,omitempty"`
}

const (
	RestaurantActive    = "active"
	RestaurantSuspended = "suspended"
)

type Restaurant struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	Name             string    `json:"name"`
	Address          string    `json:"address"`
	Lat              float64   `json:"lat"`
	Lng              float64   `json:"lng"`
	DeliveryFeeCents int64     `json:"delivery_fee_cents"`
	PrepMinutes      int       `json:"prep_minutes"`
	IsOpen           bool      `json:"is_open"`
	Status           string    `json:"status"`
	PayoutFrequency  string    `json:"payout_frequency"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type MenuItem struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurant_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	PriceCents   int64     `json:"price_cents"`
	Available    bool      `json:"available"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	DriverOffline = "offline"
	DriverOnline  = "online"
	DriverBusy    = "busy"
)

type Driver struct {
	UserID          string     `json:"user_id"`
	Name            string     `json:"name"`
	Phone           string     `json:"phone,omitempty"`
	Vehicle         string     `json:"vehicle,omitempty"`
	Status          string     `json:"status"`
	TotalDeliveries int        `json:"total_deliveries"`
	PayoutFrequency string     `json:"payout_frequency"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
	LastAssignedAt  *time.Time `json:"last_assigned_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

const (
	PayeeRestaurant = "restaurant"
	PayeeDriver     = "driver"
	PayeeAffiliate  = "affiliate"
)

type Payout struct {
	ID          string     `json:"id"`
	PayeeType   string     `json:"payee_type"`
	PayeeID     string     `json:"payee_id"`
	AmountCents int64      `json:"amount_cents"`
	Status      string     `json:"status"`
	Note        string     `json:"note,omitempty"`
	CreatedBy   string     `json:"created_by"`
	ReviewedBy  *string    `json:"reviewed_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}
