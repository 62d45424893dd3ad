package services

import (
	"fmt"

	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/models"
)

type transition struct {
	from string
	to   string
}

// actor decides who may perform a transition on an order.
type actor func(o models.Order, id httpx.Identity) bool

func ownRestaurant(o models.Order, id httpx.Identity) bool {
	return id.Role == httpx.RoleRestaurant && id.RestaurantID != "" && id.RestaurantID == o.RestaurantID
}

func ownCustomer(o models.Order, id httpx.Identity) bool {
	return id.Role == httpx.RoleCustomer && id.UserID == o.CustomerID
}

// courier is the assigned driver, or the restaurant itself for takeout orders.
func courier(o models.Order, id httpx.Identity) bool {
	if o.Type == models.OrderTakeout {
		return ownRestaurant(o, id)
	}
	return id.Role == httpx.RoleDriver && o.Driver() != "" && o.Driver() == id.UserID
}

var transitions = map[transition]actor{
	{models.StatusPending, models.StatusAccepted}:   ownRestaurant,
	{models.StatusPending, models.StatusRejected}:   ownRestaurant,
	{models.StatusPending, models.StatusCancelled}:  ownCustomer,
	{models.StatusAccepted, models.StatusCancelled}: ownRestaurant,
	{models.StatusAccepted, models.StatusPreparing}: ownRestaurant,
	{models.StatusPreparing, models.StatusReady}:    ownRestaurant,
	{models.StatusReady, models.StatusPickedUp}:     courier,
	{models.StatusPickedUp, models.StatusDelivered}: courier,
}

// CanTransition checks the transition table and who is asking. Admins may perform
// every transition in the table; nobody may perform one outside it.
func CanTransition(o models.Order, to string, id httpx.Identity) error {
	allowed, ok := transitions[transition{o.Status, to}]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", xerrors.ErrInvalidTransition, o.Status, to)
	}
	if id.IsAdmin() {
		return nil
	}
	if !allowed(o, id) {
		return fmt.Errorf("%w: %s cannot move order from %s to %s", xerrors.ErrForbidden, id.Role, o.Status, to)
	}
	return nil
}

// NextStatuses lists the statuses id could move the order to.
func NextStatuses(o models.Order, id httpx.Identity) []string {
	var out []string
	for _, to := range statusOrder {
		if CanTransition(o, to, id) == nil {
			out = append(out, to)
		}
	}
	return out
}

var statusOrder = []string{
	models.StatusAccepted,
	models.StatusRejected,
	models.StatusPreparing,
	models.StatusReady,
	models.StatusPickedUp,
	models.StatusDelivered,
	models.StatusCancelled,
}

// Visible reports whether id may read the order.
func Visible(o models.Order, id httpx.Identity) bool {
	switch id.Role {
	case httpx.RoleAdmin:
		return true
	case httpx.RoleCustomer:
		return o.CustomerID == id.UserID
	case httpx.RoleRestaurant:
		return id.RestaurantID != "" && o.RestaurantID == id.RestaurantID
	case httpx.RoleDriver:
		return o.Driver() == id.UserID
	}
	return false
}
