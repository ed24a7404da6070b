package gateway

import (
	"sync"

	pkgredis "github.com/shopsense/core/internal/pkg/redis"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

const (
	// EventSummaryCompleted carries a full Summary Result plus cached and
	// productSite fields, fire-and-forget.
	EventSummaryCompleted = "summary:completed"

	namespaceExtension = "/extension"
	redisChanEvents    = "shopsense:gateway:events"
)

// Message is the envelope used by hub broadcasts and Redis fan-out.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type gatewayPayload struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub manages socket.io clients and cross-instance fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]struct{}

	broadcast chan Message

	rc     *pkgredis.Client
	logger *zap.Logger
	sio    *socketio.Server
}
