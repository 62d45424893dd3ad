// Package events holds the messages exchanged over RabbitMQ and the realtime gateway.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	Insert = "INSERT"
	Update = "UPDATE"
	Delete = "DELETE"
)

const (
	RowChangesExchange = "row_changes"
	AlertsExchange     = "alerts"
	DeadLetterExchange = "dlx"

	DispatchQueue      = "dispatch_queue"
	NotificationsQueue = "notifications_queue"
	DeadLetterQueue    = "dead_letters"
)

// RowChange describes one committed insert, update or delete of a table row.
type RowChange struct {
	ID         int64          `json:"id"`
	Table      string         `json:"table"`
	Type       string         `json:"type"`
	Record     map[string]any `json:"record,omitempty"`
	OldRecord  map[string]any `json:"old_record,omitempty"`
	CommitTime time.Time      `json:"commit_time"`
}

// RoutingKey is "<table>.<type>", e.g. "orders.UPDATE".
func (c RowChange) RoutingKey() string {
	return c.Table + "." + c.Type
}

// String returns a string value of a record column, "" when missing.
func (c RowChange) String(col string) string {
	return stringOf(c.Record, col)
}

func (c RowChange) OldString(col string) string {
	return stringOf(c.OldRecord, col)
}

// Changed reports whether col differs between old and new record.
func (c RowChange) Changed(col string) bool {
	return c.String(col) != c.OldString(col)
}

func stringOf(rec map[string]any, col string) string {
	if rec == nil {
		return ""
	}
	v, ok := rec[col]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		// json numbers decode to float64; ids and cents are integral
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Record converts a struct into the map form carried by RowChange.
func Record(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Alert recipients.
const (
	RecipientUser       = "user"
	RecipientRestaurant = "restaurant"
	RecipientRole       = "role"
)

// Alert is a user-facing notification resolved from a row change.
type Alert struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Role      string    `json:"role"`
	Event     string    `json:"event"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Sound     string    `json:"sound,omitempty"`
	Vibrate   []int     `json:"vibrate,omitempty"`
	Push      bool      `json:"push"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Address builds a recipient like "user:42".
func Address(kind, id string) string {
	return kind + ":" + id
}

// RoutingKey turns "user:42" into "user.42" for the alerts topic exchange.
func (a Alert) RoutingKey() string {
	return strings.Replace(a.Recipient, ":", ".", 1)
}
