package services

import (
	"encoding/json"
	"testing"

	"deliveryhub/internal/realtime/app/core"
	"deliveryhub/internal/realtime/domain/dto"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Event   string          `json:"event"`
	Topic   string          `json:"topic"`
	Ref     string          `json:"ref"`
	Payload json.RawMessage `json:"payload"`
}

func next(t *testing.T, c *Client) received {
	t.Helper()
	select {
	case b := <-c.Send():
		var r received
		require.NoError(t, json.Unmarshal(b, &r))
		return r
	default:
		t.Fatal("nothing queued")
		return received{}
	}
}

func empty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case b := <-c.Send():
		t.Fatalf("unexpected message %s", b)
	default:
	}
}

func send(h *Hub, c *Client, msg dto.ClientMessage) {
	b, _ := json.Marshal(msg)
	h.HandleMessage(c, b)
}

func replyOf(t *testing.T, r received) dto.Reply {
	t.Helper()
	require.Equal(t, dto.EventReply, r.Event)
	var rep dto.Reply
	require.NoError(t, json.Unmarshal(r.Payload, &rep))
	return rep
}

func orderChange(customer, status string) events.RowChange {
	return events.RowChange{
		ID:        1,
		Table:     "orders",
		Type:      events.Update,
		Record:    map[string]any{"id": "o-1", "customer_id": customer, "status": status},
		OldRecord: map[string]any{"id": "o-1", "customer_id": customer, "status": "pending"},
	}
}

func TestHub_SubscribeAndPublish(t *testing.T) {
	h := NewHub(0, logger.Discard())
	alice, err := h.Register(httpx.Identity{UserID: "u-1", Role: httpx.RoleCustomer})
	require.NoError(t, err)
	bob, err := h.Register(httpx.Identity{UserID: "u-2", Role: httpx.RoleCustomer})
	require.NoError(t, err)

	send(h, alice, dto.ClientMessage{Event: dto.EventSubscribe, Topic: "orders", Filter: "customer_id=eq.u-1", Ref: "1"})
	r := next(t, alice)
	assert.Equal(t, "1", r.Ref)
	assert.Equal(t, dto.StatusOK, replyOf(t, r).Status)

	send(h, bob, dto.ClientMessage{Event: dto.EventSubscribe, Topic: "orders", Filter: "customer_id=eq.u-1", Ref: "7"})
	rep := replyOf(t, next(t, bob))
	assert.Equal(t, dto.StatusError, rep.Status)
	assert.Contains(t, rep.Error, "filter value")

	assert.Equal(t, 1, h.Publish(orderChange("u-1", "accepted")))
	got := next(t, alice)
	assert.Equal(t, events.Update, got.Event)
	assert.Equal(t, "orders", got.Topic)
	var change dto.Change
	require.NoError(t, json.Unmarshal(got.Payload, &change))
	assert.Equal(t, "accepted", change.Record["status"])
	assert.Equal(t, "pending", change.OldRecord["status"])
	empty(t, bob)

	assert.Equal(t, 0, h.Publish(orderChange("u-3", "accepted")))
	empty(t, alice)
}

func TestHub_DuplicateSubscribeDeliversOnce(t *testing.T) {
	h := NewHub(0, logger.Discard())
	c, _ := h.Register(httpx.Identity{UserID: "u-1", Role: httpx.RoleCustomer})

	for _, ref := range []string{"1", "2"} {
		send(h, c, dto.ClientMessage{Event: dto.EventSubscribe, Topic: "orders", Filter: "customer_id=eq.u-1", Ref: ref})
		next(t, c)
	}
	send(h, c, dto.ClientMessage{Event: dto.EventSubscribe, Topic: "orders", Filter: "driver_id=eq.u-1", Ref: "3"})
	next(t, c)

	ch := orderChange("u-1", "ready")
	ch.Record["driver_id"] = "u-1"
	h.Publish(ch)
	next(t, c)
	empty(t, c)
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub(0, logger.Discard())
	c, _ := h.Register(httpx.Identity{UserID: "u-1", Role: httpx.RoleCustomer})

	send(h, c, dto.ClientMessage{Event: dto.EventSubscribe, Topic: "orders", Filter: "customer_id=eq.u-1", Ref: "1"})
	next(t, c)
	send(h, c, dto.ClientMessage{Event: dto.EventUnsubscribe, Topic: "orders", Ref: "2"})
	assert.Equal(t, dto.StatusOK, replyOf(t, next(t, c)).Status)

	assert.Equal(t, 0, h.Publish(orderChange("u-1", "ready")))
	empty(t, c)
}

func TestHub_HeartbeatAndUnknownEvents(t *testing.T) {
	h := NewHub(0, logger.Discard())
	c, _ := h.Register(httpx.Identity{UserID: "u-1", Role: httpx.RoleCustomer})

	send(h, c, dto.ClientMessage{Event: dto.EventHeartbeat, Ref: "hb"})
	r := next(t, c)
	assert.Equal(t, "hb", r.Ref)
	assert.Equal(t, dto.StatusOK, replyOf(t, r).Status)

	send(h, c, dto.ClientMessage{Event: "phx_join", Ref: "x"})
	assert.Equal(t, dto.StatusError, replyOf(t, next(t, c)).Status)

	h.HandleMessage(c, []byte("not json"))
	assert.Equal(t, dto.StatusError, replyOf(t, next(t, c)).Status)
}

func TestHub_DeliverAlerts(t *testing.T) {
	h := NewHub(0, logger.Discard())
	customer, _ := h.Register(httpx.Identity{UserID: "u-1", Role: httpx.RoleCustomer})
	owner, _ := h.Register(httpx.Identity{UserID: "u-2", Role: httpx.RoleRestaurant, RestaurantID: "r-1"})
	admin, _ := h.Register(httpx.Identity{UserID: "u-3", Role: httpx.RoleAdmin})

	assert.Equal(t, 1, h.Deliver(events.Alert{Recipient: "restaurant:r-1", Event: "order_placed"}))
	got := next(t, owner)
	assert.Equal(t, dto.EventAlert, got.Event)
	assert.Equal(t, dto.TopicAlerts, got.Topic)

	assert.Equal(t, 1, h.Deliver(events.Alert{Recipient: "role:admin", Event: "order_placed"}))
	next(t, admin)

	assert.Equal(t, 1, h.Deliver(events.Alert{Recipient: "user:u-1", Event: "order_ready"}))
	next(t, customer)

	assert.Equal(t, 0, h.Deliver(events.Alert{Recipient: "user:", Event: "order_ready"}))
	empty(t, customer)
	empty(t, owner)
	empty(t, admin)
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	h := NewHub(0, logger.Discard())
	c, _ := h.Register(httpx.Identity{UserID: "u-1", Role: httpx.RoleAdmin})
	send(h, c, dto.ClientMessage{Event: dto.EventSubscribe, Topic: "orders", Ref: "1"})

	for i := 0; i < core.SendBuffer; i++ {
		h.Publish(orderChange("u-9", "ready"))
	}
	select {
	case <-c.Done():
		code, reason := c.CloseInfo()
		assert.Equal(t, websocket.CloseTryAgainLater, code)
		assert.Equal(t, "client too slow", reason)
	default:
		t.Fatal("client should be closed after the buffer overflowed")
	}
	assert.Equal(t, 0, h.Publish(orderChange("u-9", "ready")))
}

func TestHub_MaxClients(t *testing.T) {
	h := NewHub(1, logger.Discard())
	c, err := h.Register(httpx.Identity{UserID: "u-1", Role: httpx.RoleCustomer})
	require.NoError(t, err)

	_, err = h.Register(httpx.Identity{UserID: "u-2", Role: httpx.RoleCustomer})
	assert.ErrorIs(t, err, core.ErrTooManyClients)

	h.Unregister(c)
	h.Unregister(c)
	assert.Equal(t, 0, h.Len())
	_, err = h.Register(httpx.Identity{UserID: "u-2", Role: httpx.RoleCustomer})
	assert.NoError(t, err)
}

func TestHub_Route(t *testing.T) {
	h := NewHub(0, logger.Discard())
	c, _ := h.Register(httpx.Identity{UserID: "u-1", Role: httpx.RoleCustomer})

	body, _ := json.Marshal(events.Alert{Recipient: "user:u-1", Event: "order_ready"})
	require.NoError(t, h.Route(events.AlertsExchange, body))
	assert.Equal(t, dto.EventAlert, next(t, c).Event)

	body, _ = json.Marshal(events.RowChange{Table: "banners", Type: events.Insert, Record: map[string]any{"id": "b-1"}})
	require.NoError(t, h.Route(events.RowChangesExchange, body))
	empty(t, c)

	assert.Error(t, h.Route(events.RowChangesExchange, []byte("{")))
	assert.Error(t, h.Route("unknown", body))
}
