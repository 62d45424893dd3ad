package dto

type RestaurantRequest struct {
	OwnerID          string  `json:"owner_id"`
	Name             string  `json:"name"`
	Address          string  `json:"address"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	DeliveryFeeCents int64   `json:"delivery_fee_cents"`
	PrepMinutes      int     `json:"prep_minutes"`
	PayoutFrequency  string  `json:"payout_frequency"`
}

// RestaurantSettings is what an owner may change on their own restaurant.
type RestaurantSettings struct {
	IsOpen      *bool `json:"is_open,omitempty"`
	PrepMinutes *int  `json:"prep_minutes,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

type DriverRequest struct {
	UserID          string `json:"user_id"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Vehicle         string `json:"vehicle"`
	PayoutFrequency string `json:"payout_frequency"`
}

type FrequencyRequest struct {
	PayoutFrequency string `json:"payout_frequency"`
}

type ReferRequest struct {
	Code string `json:"code"`
}

// Stats is the admin dashboard.
type Stats struct {
	OrdersToday       map[string]int `json:"orders_today"`
	RevenueTodayCents int64          `json:"revenue_today_cents"`
	DriversOnline     int            `json:"drivers_online"`
	OpenTickets       int            `json:"open_tickets"`
	PayoutsPending    int            `json:"payouts_pending"`
	PayoutsPendingSum int64          `json:"payouts_pending_cents"`
}
