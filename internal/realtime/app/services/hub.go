package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"deliveryhub/internal/realtime/app/core"
	"deliveryhub/internal/realtime/domain/dto"
	"deliveryhub/internal/xpkg/events"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type subscription struct {
	topic  string
	filter *Filter
	raw    string
}

// Client is one websocket connection as seen by the hub.
type Client struct {
	ID       string
	Identity httpx.Identity

	send chan []byte
	done chan struct{}
	once sync.Once

	closeCode   int
	closeReason string

	mu   sync.Mutex
	subs []subscription
}

func (c *Client) Send() <-chan []byte   { return c.send }
func (c *Client) Done() <-chan struct{} { return c.done }

// CloseInfo is valid once Done is closed.
func (c *Client) CloseInfo() (int, string) { return c.closeCode, c.closeReason }

// Close stops the client; the first code and reason win.
func (c *Client) Close(code int, reason string) {
	c.once.Do(func() {
		c.closeCode, c.closeReason = code, reason
		close(c.done)
	})
}

// enqueue never blocks. A full buffer disconnects the client.
func (c *Client) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		c.Close(websocket.CloseTryAgainLater, "client too slow")
		return false
	}
}

func (c *Client) matches(ch events.RowChange) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.subs {
		if s.topic == ch.Table && s.filter.Match(ch) {
			return true
		}
	}
	return false
}

func (c *Client) receives(a events.Alert) bool {
	kind, id, ok := strings.Cut(a.Recipient, ":")
	if !ok || id == "" {
		return false
	}
	switch kind {
	case events.RecipientUser:
		return c.Identity.UserID == id
	case events.RecipientRestaurant:
		return c.Identity.RestaurantID == id
	case events.RecipientRole:
		return c.Identity.Role == id
	}
	return false
}

type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	maxClients int
	mylog      logger.Logger
}

func NewHub(maxClients int, mylog logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		maxClients: maxClients,
		mylog:      mylog.Action("hub"),
	}
}

func (h *Hub) Register(id httpx.Identity) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.maxClients > 0 && len(h.clients) >= h.maxClients {
		return nil, core.ErrTooManyClients
	}
	c := &Client{
		ID:       uuid.NewString(),
		Identity: id,
		send:     make(chan []byte, core.SendBuffer),
		done:     make(chan struct{}),
	}
	h.clients[c] = struct{}{}
	httpx.RealtimeClients.Set(float64(len(h.clients)))
	h.mylog.Debug("client connected", "client_id", c.ID, "user_id", id.UserID, "role", id.Role)
	return c, nil
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	httpx.RealtimeClients.Set(float64(len(h.clients)))
	h.mylog.Debug("client disconnected", "client_id", c.ID)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}
}

// HandleMessage processes one client frame and queues the reply.
func (h *Hub) HandleMessage(c *Client, raw []byte) {
	var msg dto.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.reply(c, msg, fmt.Errorf("invalid message: %v", err))
		return
	}

	var err error
	switch msg.Event {
	case dto.EventSubscribe:
		err = h.subscribe(c, msg)
	case dto.EventUnsubscribe:
		h.unsubscribe(c, msg)
	case dto.EventHeartbeat:
	default:
		err = fmt.Errorf("%w: %q", core.ErrUnknownEvent, msg.Event)
	}
	h.reply(c, msg, err)
}

func (h *Hub) subscribe(c *Client, msg dto.ClientMessage) error {
	f, err := ParseFilter(msg.Filter)
	if err != nil {
		return err
	}
	if err := Authorize(c.Identity, msg.Topic, f); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.subs {
		if s.topic == msg.Topic && s.raw == msg.Filter {
			return nil
		}
	}
	if len(c.subs) >= core.MaxSubscriptions {
		return core.ErrTooManySubs
	}
	c.subs = append(c.subs, subscription{topic: msg.Topic, filter: f, raw: msg.Filter})
	return nil
}

// unsubscribe drops the topic's subscriptions, only the one with the given filter when set.
func (h *Hub) unsubscribe(c *Client, msg dto.ClientMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.subs[:0]
	for _, s := range c.subs {
		if s.topic == msg.Topic && (msg.Filter == "" || s.raw == msg.Filter) {
			continue
		}
		kept = append(kept, s)
	}
	c.subs = kept
}

func (h *Hub) reply(c *Client, msg dto.ClientMessage, err error) {
	r := dto.Reply{Status: dto.StatusOK}
	if err != nil {
		r = dto.Reply{Status: dto.StatusError, Error: err.Error()}
	}
	b, mErr := json.Marshal(dto.ServerMessage{Event: dto.EventReply, Topic: msg.Topic, Ref: msg.Ref, Payload: r})
	if mErr != nil {
		h.mylog.Error("cannot encode reply", mErr)
		return
	}
	c.enqueue(b)
}

// Publish fans a row change out to every subscribed client.
func (h *Hub) Publish(ch events.RowChange) int {
	b, err := json.Marshal(dto.ServerMessage{
		Event: ch.Type,
		Topic: ch.Table,
		Payload: dto.Change{
			ID:         ch.ID,
			Record:     ch.Record,
			OldRecord:  ch.OldRecord,
			CommitTime: ch.CommitTime,
		},
	})
	if err != nil {
		h.mylog.Error("cannot encode change", err, "table", ch.Table)
		return 0
	}

	sent := 0
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.matches(ch) && c.enqueue(b) {
			sent++
		}
	}
	return sent
}

// Deliver sends an alert to the clients it is addressed to.
func (h *Hub) Deliver(a events.Alert) int {
	b, err := json.Marshal(dto.ServerMessage{Event: dto.EventAlert, Topic: dto.TopicAlerts, Payload: a})
	if err != nil {
		h.mylog.Error("cannot encode alert", err, "event", a.Event)
		return 0
	}

	sent := 0
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.receives(a) && c.enqueue(b) {
			sent++
		}
	}
	return sent
}

// Route decodes a broker message by the exchange it came from.
func (h *Hub) Route(exchange string, body []byte) error {
	switch exchange {
	case events.RowChangesExchange:
		var ch events.RowChange
		if err := json.Unmarshal(body, &ch); err != nil {
			return fmt.Errorf("decode row change: %w", err)
		}
		h.Publish(ch)
	case events.AlertsExchange:
		var a events.Alert
		if err := json.Unmarshal(body, &a); err != nil {
			return fmt.Errorf("decode alert: %w", err)
		}
		h.Deliver(a)
	default:
		return fmt.Errorf("unexpected exchange %q", exchange)
	}
	return nil
}
