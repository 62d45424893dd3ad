package core

import "time"

type WorkerParams struct {
	WorkerName        string
	Prefetch          int
	HeartbeatInterval time.Duration
	StaleAfter        time.Duration
	RadiusKm          float64
	RetryInterval     time.Duration
	MetricsPort       int
}

const (
	// in seconds for db response
	WaitTime = 15

	// MaxCandidates bounds each source of candidate drivers.
	MaxCandidates = 20
)
