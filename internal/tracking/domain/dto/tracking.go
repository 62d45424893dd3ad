package dto

import (
	"time"

	"deliveryhub/internal/xpkg/geo"
)

type OrderStatus struct {
	OrderNumber       string     `json:"order_number"`
	CurrentStatus     string     `json:"current_status"`
	UpdatedAt         time.Time  `json:"updated_at"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	DriverID          string     `json:"driver_id,omitempty"`
}

type HistoryEntry struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	ChangedBy string    `json:"changed_by"`
	Note      string    `json:"note,omitempty"`
}

type Tracking struct {
	OrderStatus
	Driver     *geo.Position `json:"driver,omitempty"`
	DistanceKm *float64      `json:"distance_km,omitempty"`
}

type LocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type DriverStatusRequest struct {
	Status string `json:"status"`
}

type DriverStatus struct {
	UserID          string        `json:"user_id"`
	Name            string        `json:"name"`
	Status          string        `json:"status"`
	TotalDeliveries int           `json:"total_deliveries"`
	LastSeen        *time.Time    `json:"last_seen,omitempty"`
	Position        *geo.Position `json:"position,omitempty"`
}
