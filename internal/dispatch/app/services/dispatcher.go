package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deliveryhub/internal/dispatch/app/core"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/geo"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/models"
)

type Outcome string

const (
	Assigned Outcome = "assigned"
	Skipped  Outcome = "skipped"
	NoDriver Outcome = "no_driver"
)

type Dispatcher struct {
	repo      core.IAssignRepo
	positions core.IPositions
	radiusKm  float64
	name      string
	mylog     logger.Logger
	now       func() time.Time
}

func NewDispatcher(repo core.IAssignRepo, positions core.IPositions, radiusKm float64, workerName string, mylog logger.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		positions: positions,
		radiusKm:  radiusKm,
		name:      "dispatch:" + workerName,
		mylog:     mylog,
		now:       time.Now,
	}
}

// Decode parses a message body into a row change.
func Decode(body []byte) (events.RowChange, error) {
	var c events.RowChange
	if err := json.Unmarshal(body, &c); err != nil {
		return events.RowChange{}, fmt.Errorf("%w: %v", core.ErrBadPayload, err)
	}
	if c.Table == "" || c.Type == "" {
		return events.RowChange{}, fmt.Errorf("%w: table and type are required", core.ErrBadPayload)
	}
	return c, nil
}

// Wants reports whether the change is a delivery order that just got accepted
// without a driver.
func Wants(c events.RowChange) bool {
	return c.Table == "orders" &&
		c.Type == events.Update &&
		c.String("status") == models.StatusAccepted &&
		c.Changed("status") &&
		c.String("type") == models.OrderDelivery &&
		c.String("driver_id") == ""
}

// Eligible reports whether the stored order still needs a driver.
func Eligible(o models.Order) bool {
	if o.Type != models.OrderDelivery || o.Driver() != "" {
		return false
	}
	switch o.Status {
	case models.StatusAccepted, models.StatusPreparing, models.StatusReady:
		return true
	}
	return false
}

// Handle assigns a driver for the change when it asks for one.
func (d *Dispatcher) Handle(ctx context.Context, c events.RowChange) (Outcome, error) {
	if !Wants(c) {
		return Skipped, nil
	}
	orderID := c.String("id")
	mylog := d.mylog.Action("dispatch").With("order_id", orderID)

	order, restaurant, err := d.repo.Order(ctx, orderID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return Skipped, nil
	}
	if err != nil {
		return "", fmt.Errorf("load order %s: %w", orderID, err)
	}
	if !Eligible(order) {
		mylog.Debug("order no longer needs a driver", "status", order.Status)
		return Skipped, nil
	}

	candidates, err := d.candidates(ctx, restaurant)
	if err != nil {
		return "", err
	}

	for _, driverID := range candidates {
		assigned, err := d.repo.Assign(ctx, order.ID, driverID, d.name, d.now().UTC())
		switch {
		case err == nil:
			httpx.DriverAssignments.WithLabelValues(string(Assigned)).Inc()
			mylog.Info("driver assigned", "order_number", assigned.Number, "driver_id", driverID)
			return Assigned, nil
		case errors.Is(err, core.ErrDriverTaken):
			continue
		case errors.Is(err, core.ErrNotEligible):
			return Skipped, nil
		default:
			return "", fmt.Errorf("assign %s to %s: %w", driverID, order.ID, err)
		}
	}

	httpx.DriverAssignments.WithLabelValues(string(NoDriver)).Inc()
	mylog.Info("no driver available", "order_number", order.Number, "candidates", len(candidates))
	return NoDriver, nil
}

// candidates lists online drivers near the restaurant first, then the ones idle
// the longest.
func (d *Dispatcher) candidates(ctx context.Context, r models.Restaurant) ([]string, error) {
	var out []string
	seen := map[string]bool{}

	if geo.ValidCoordinates(r.Lat, r.Lng) {
		nearby, err := d.positions.Nearby(ctx, r.Lat, r.Lng, d.radiusKm, core.MaxCandidates)
		if err != nil {
			d.mylog.Action("dispatch").Warn("geo search failed, using idle drivers", "err", err.Error())
		} else if len(nearby) > 0 {
			online, err := d.repo.Online(ctx, nearby)
			if err != nil {
				return nil, fmt.Errorf("filter online drivers: %w", err)
			}
			for _, id := range online {
				seen[id] = true
				out = append(out, id)
			}
		}
	}

	idle, err := d.repo.LongestIdle(ctx, core.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("idle drivers: %w", err)
	}
	for _, id := range idle {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

// SweepStale takes silent drivers offline and forgets their positions.
func (d *Dispatcher) SweepStale(ctx context.Context, staleAfter time.Duration) (int, error) {
	ids, err := d.repo.MarkStale(ctx, d.now().Add(-staleAfter))
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := d.positions.Remove(ctx, id); err != nil {
			d.mylog.Action("sweep_stale").Warn("cannot drop position", "driver_id", id, "err", err.Error())
		}
	}
	if len(ids) > 0 {
		d.mylog.Action("sweep_stale").Info("stale drivers set offline", "count", len(ids))
	}
	return len(ids), nil
}
