package core

import "time"

type TrackingParams struct {
	Port          int
	MaxConcurrent int
	Rate          float64
	Burst         int
	PositionTTL   time.Duration
}

const (
	// in seconds for db response
	WaitTime = 15

	// CourierSpeedKmh is the average speed used for delivery estimates.
	CourierSpeedKmh = 25.0
	// FallbackTravel is added to the ready time when no position is known.
	FallbackTravel = 15 * time.Minute
)
