package core

import "time"

type GatewayParams struct {
	Port       int
	MaxClients int
}

const (
	// SendBuffer is how many outbound messages a client may lag behind before it is dropped.
	SendBuffer = 64
	// MaxSubscriptions per connection.
	MaxSubscriptions = 50

	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	WriteWait      = 10 * time.Second
	MaxMessageSize = 4096
)
