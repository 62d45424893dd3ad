// Package alerts decides who is told about a row change and how: title, body,
// sound, vibration pattern and whether a push notification goes out.
package alerts

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"deliveryhub/internal/xpkg/events"

	"github.com/google/uuid"
)

const (
	RoleCustomer   = "customer"
	RoleRestaurant = "restaurant"
	RoleDriver     = "driver"
	RoleAdmin      = "admin"
	RoleAffiliate  = "affiliate"
)

type rule struct {
	title   string
	body    string
	sound   string
	vibrate []int
	push    bool
}

type key struct {
	role  string
	event string
}

var (
	vibrateShort  = []int{200}
	vibrateDouble = []int{200, 100, 200}
	vibrateUrgent = []int{400, 200, 400, 200, 400}
)

// rules is keyed by (role, event). Bodies may use {number}, {status}, {amount} and {subject}.
var rules = map[key]rule{
	{RoleRestaurant, "order_placed"}:    {"New order", "Order {number} is waiting for you", "new_order", vibrateUrgent, true},
	{RoleAdmin, "order_placed"}:         {"New order", "Order {number} was placed", "", nil, false},
	{RoleRestaurant, "order_cancelled"}: {"Order cancelled", "Order {number} was cancelled", "cancelled", vibrateDouble, true},
	{RoleDriver, "order_assigned"}:      {"New delivery", "You were assigned order {number}", "assigned", vibrateUrgent, true},

	{RoleCustomer, "order_accepted"}:  {"Order accepted", "The restaurant accepted order {number}", "chime", vibrateShort, true},
	{RoleCustomer, "order_rejected"}:  {"Order rejected", "The restaurant could not take order {number}", "alert", vibrateDouble, true},
	{RoleCustomer, "order_preparing"}: {"Being prepared", "Order {number} is being prepared", "", nil, false},
	{RoleCustomer, "order_ready"}:     {"Order ready", "Order {number} is ready", "chime", vibrateShort, true},
	{RoleCustomer, "order_picked_up"}: {"On the way", "Order {number} was picked up", "chime", vibrateShort, true},
	{RoleCustomer, "order_delivered"}: {"Delivered", "Order {number} was delivered. Enjoy!", "success", vibrateShort, true},
	{RoleCustomer, "order_cancelled"}: {"Order cancelled", "Order {number} was cancelled", "alert", vibrateDouble, true},

	{RoleRestaurant, "payout_paid"}:     {"Payout sent", "A payout of {amount} was sent", "success", vibrateShort, true},
	{RoleDriver, "payout_paid"}:         {"Payout sent", "A payout of {amount} was sent", "success", vibrateShort, true},
	{RoleAffiliate, "payout_paid"}:      {"Payout sent", "A payout of {amount} was sent", "success", vibrateShort, true},
	{RoleRestaurant, "payout_rejected"}: {"Payout rejected", "A payout of {amount} was rejected", "alert", vibrateDouble, false},
	{RoleDriver, "payout_rejected"}:     {"Payout rejected", "A payout of {amount} was rejected", "alert", vibrateDouble, false},
	{RoleAffiliate, "payout_rejected"}:  {"Payout rejected", "A payout of {amount} was rejected", "alert", vibrateDouble, false},

	{RoleAdmin, "ticket_opened"}:     {"New support ticket", "{subject}", "ticket", vibrateShort, false},
	{RoleAdmin, "ticket_reply"}:      {"Ticket reply", "New message on a support ticket", "", nil, false},
	{RoleCustomer, "ticket_reply"}:   {"Support replied", "Support answered your ticket", "chime", vibrateShort, true},
	{RoleRestaurant, "ticket_reply"}: {"Support replied", "Support answered your ticket", "chime", vibrateShort, true},
	{RoleDriver, "ticket_reply"}:     {"Support replied", "Support answered your ticket", "chime", vibrateShort, true},

	{RoleAffiliate, "referral_rewarded"}: {"Referral reward", "You earned {amount} for a referral", "success", vibrateShort, true},
}

// target is one recipient of an event before the rule is applied.
type target struct {
	recipient string
	role      string
	event     string
}

// Resolve maps a row change to the alerts it triggers. Unknown tables and events yield none.
func Resolve(c events.RowChange) []events.Alert {
	var targets []target
	switch c.Table {
	case "orders":
		targets = orderTargets(c)
	case "payouts":
		targets = payoutTargets(c)
	case "support_tickets":
		if c.Type == events.Insert {
			targets = append(targets, target{events.Address(events.RecipientRole, RoleAdmin), RoleAdmin, "ticket_opened"})
		}
	case "ticket_messages":
		targets = messageTargets(c)
	case "referrals":
		if c.Type == events.Update && c.String("status") == "rewarded" && c.Changed("status") {
			targets = append(targets, target{events.Address(events.RecipientUser, c.String("affiliate_id")), RoleAffiliate, "referral_rewarded"})
		}
	}

	vars := strings.NewReplacer(
		"{number}", c.String("number"),
		"{status}", c.String("status"),
		"{amount}", formatCents(c.String("amount_cents"), c.String("reward_cents")),
		"{subject}", c.String("subject"),
	)

	createdAt := c.CommitTime.UTC()
	if c.CommitTime.IsZero() {
		createdAt = time.Now().UTC()
	}

	var out []events.Alert
	for _, t := range targets {
		r, ok := rules[key{t.role, t.event}]
		if !ok || strings.HasSuffix(t.recipient, ":") {
			continue
		}
		out = append(out, events.Alert{
			ID:        AlertID(c.ID, t.recipient, t.event),
			Recipient: t.recipient,
			Role:      t.role,
			Event:     t.event,
			Title:     r.title,
			Body:      vars.Replace(r.body),
			Sound:     r.sound,
			Vibrate:   r.vibrate,
			Push:      r.push,
			Entity:    c.Table,
			EntityID:  c.String("id"),
			CreatedAt: createdAt,
		})
	}
	return out
}

// AlertID is stable for one change, recipient and event, so a redelivered change
// produces alerts clients already saw.
func AlertID(changeID int64, recipient, event string) string {
	name := fmt.Sprintf("deliveryhub/alerts/%d/%s/%s", changeID, recipient, event)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func orderTargets(c events.RowChange) []target {
	number := c.String("number")
	if number == "" {
		return nil
	}
	restaurant := events.Address(events.RecipientRestaurant, c.String("restaurant_id"))
	customer := events.Address(events.RecipientUser, c.String("customer_id"))

	if c.Type == events.Insert {
		return []target{
			{restaurant, RoleRestaurant, "order_placed"},
			{events.Address(events.RecipientRole, RoleAdmin), RoleAdmin, "order_placed"},
		}
	}
	if c.Type != events.Update {
		return nil
	}

	var out []target
	if c.Changed("status") {
		status := c.String("status")
		out = append(out, target{customer, RoleCustomer, "order_" + status})
		if status == "cancelled" && c.String("updated_by_role") != RoleRestaurant {
			out = append(out, target{restaurant, RoleRestaurant, "order_cancelled"})
		}
	}
	if driver := c.String("driver_id"); driver != "" && c.Changed("driver_id") {
		out = append(out, target{events.Address(events.RecipientUser, driver), RoleDriver, "order_assigned"})
	}
	return out
}

func payoutTargets(c events.RowChange) []target {
	if c.Type != events.Update || !c.Changed("status") {
		return nil
	}
	var event string
	switch c.String("status") {
	case "paid":
		event = "payout_paid"
	case "rejected":
		event = "payout_rejected"
	default:
		return nil
	}

	payeeType, payee := c.String("payee_type"), c.String("payee_id")
	if payeeType == RoleRestaurant {
		return []target{{events.Address(events.RecipientRestaurant, payee), RoleRestaurant, event}}
	}
	return []target{{events.Address(events.RecipientUser, payee), payeeType, event}}
}

func messageTargets(c events.RowChange) []target {
	if c.Type != events.Insert {
		return nil
	}
	if c.String("author_role") != RoleAdmin {
		return []target{{events.Address(events.RecipientRole, RoleAdmin), RoleAdmin, "ticket_reply"}}
	}
	owner, ownerRole := c.String("ticket_user_id"), c.String("ticket_user_role")
	if ownerRole == RoleRestaurant && c.String("ticket_restaurant_id") != "" {
		return []target{{events.Address(events.RecipientRestaurant, c.String("ticket_restaurant_id")), RoleRestaurant, "ticket_reply"}}
	}
	return []target{{events.Address(events.RecipientUser, owner), ownerRole, "ticket_reply"}}
}

// formatCents renders the first non-empty cents value as "$12.34".
func formatCents(values ...string) string {
	for _, v := range values {
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return v
		}
		return fmt.Sprintf("$%d.%02d", n/100, n%100)
	}
	return ""
}
