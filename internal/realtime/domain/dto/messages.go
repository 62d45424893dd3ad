package dto

import "time"

const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventHeartbeat   = "heartbeat"
	EventReply       = "reply"
	EventAlert       = "alert"

	TopicAlerts = "alerts"

	StatusOK    = "ok"
	StatusError = "error"
)

// ClientMessage is everything a client may send.
type ClientMessage struct {
	Event  string `json:"event"`
	Topic  string `json:"topic,omitempty"`
	Filter string `json:"filter,omitempty"`
	Ref    string `json:"ref,omitempty"`
}

// ServerMessage wraps replies, row changes and alerts.
type ServerMessage struct {
	Event   string `json:"event"`
	Topic   string `json:"topic"`
	Ref     string `json:"ref,omitempty"`
	Payload any    `json:"payload"`
}

type Reply struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Change struct {
	ID         int64          `json:"id"`
	Record     map[string]any `json:"record"`
	OldRecord  map[string]any `json:"old_record"`
	CommitTime time.Time      `json:"commit_time"`
}
