package services

import (
	"strings"

	"deliveryhub/internal/realtime/app/core"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/httpx"
)

// publicTopics carry content any signed-in client may watch unfiltered.
var publicTopics = map[string]bool{
	"articles":    true,
	"faq_items":   true,
	"banners":     true,
	"popups":      true,
	"restaurants": true,
	"menu_items":  true,
}

// owner says which identity claim a filter column may be matched against.
type owner uint8

const (
	ownUser owner = 1 << iota
	ownRestaurant
)

// privateTopics maps each table to the columns a non-admin may filter on.
// Tables without columns are admin only.
var privateTopics = map[string]map[string]owner{
	"orders": {
		"customer_id":   ownUser,
		"driver_id":     ownUser,
		"restaurant_id": ownRestaurant,
	},
	"driver_locations": {
		"driver_id":     ownUser,
		"customer_id":   ownUser,
		"restaurant_id": ownRestaurant,
	},
	"drivers": {"user_id": ownUser},
	// restaurant payouts carry the restaurant id, driver and affiliate ones the user id
	"payouts":         {"payee_id": ownUser | ownRestaurant},
	"affiliates":      {"user_id": ownUser},
	"referrals":       {"affiliate_id": ownUser, "referred_user_id": ownUser},
	"support_tickets": {"user_id": ownUser},
	"ticket_messages": {"ticket_user_id": ownUser},
	"promo_codes":     {},
}

type Filter struct {
	Column string
	Value  string
}

// ParseFilter reads "column=eq.value". An empty string is no filter.
func ParseFilter(s string) (*Filter, error) {
	if s == "" {
		return nil, nil
	}
	col, rest, ok := strings.Cut(s, "=")
	if !ok || !validColumn(col) {
		return nil, core.ErrBadFilter
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok || value == "" {
		return nil, core.ErrBadFilter
	}
	return &Filter{Column: col, Value: value}, nil
}

func validColumn(col string) bool {
	if col == "" {
		return false
	}
	for _, r := range col {
		if (r < 'a' || r > 'z') && r != '_' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Authorize decides whether id may watch topic through f.
func Authorize(id httpx.Identity, topic string, f *Filter) error {
	columns, private := privateTopics[topic]
	if !publicTopics[topic] && !private {
		return core.ErrUnknownTopic
	}
	if id.IsAdmin() || publicTopics[topic] {
		return nil
	}
	if f == nil {
		return core.ErrFilterRequired
	}
	own, ok := columns[f.Column]
	if !ok {
		return core.ErrFilterColumn
	}
	if own&ownUser != 0 && f.Value == id.UserID {
		return nil
	}
	if own&ownRestaurant != 0 && id.RestaurantID != "" && f.Value == id.RestaurantID {
		return nil
	}
	return core.ErrFilterValue
}

// Match reports whether the change passes the filter on either row image.
func (f *Filter) Match(c events.RowChange) bool {
	if f == nil {
		return true
	}
	return c.String(f.Column) == f.Value || c.OldString(f.Column) == f.Value
}
