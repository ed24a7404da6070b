package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	pkgredis "github.com/shopsense/core/internal/pkg/redis"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

func NewHub(rc *pkgredis.Client, logger *zap.Logger) *Hub {
	sio := socketio.NewServer(nil, nil)
	h := &Hub{
		clients:   make(map[string]struct{}),
		broadcast: make(chan Message, 256),
		rc:        rc,
		logger:    logger,
		sio:       sio,
	}
	h.registerNamespaces()
	return h
}

// Run starts the hub loop and the Redis subscriber.
func (h *Hub) Run(ctx context.Context) {
	go h.subscribeRedis(ctx)

	for {
		select {
		case <-ctx.Done():
			h.sio.Close(nil)
			return

		case msg := <-h.broadcast:
			h.deliver(msg)
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := h.rc.Publish(ctx, redisChanEvents, string(data)); err != nil && h.logger != nil {
				h.logger.Warn("gateway publish failed", zap.Error(err))
			}
		}
	}
}

// Broadcast queues an event for delivery to connected clients and other
// instances. Non-blocking; drops when the buffer is full.
func (h *Hub) Broadcast(event string, payload interface{}) {
	select {
	case h.broadcast <- Message{Event: event, Payload: payload}:
	default:
		if h.logger != nil {
			h.logger.Warn("gateway broadcast buffer full, event dropped", zap.String("event", event))
		}
	}
}

// Handler returns the socket.io HTTP handler mounted at /socket.io.
func (h *Hub) Handler() http.Handler {
	return h.sio.ServeHandler(nil)
}

// OnlineCount reports connected extension clients on this instance.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerNamespaces() {
	ns := h.sio.Of(namespaceExtension, nil)
	_ = ns.On("connection", func(args ...any) {
		client, ok := args[0].(*socketio.Socket)
		if !ok {
			return
		}
		sid := string(client.Id())

		h.mu.Lock()
		h.clients[sid] = struct{}{}
		h.mu.Unlock()

		_ = client.Emit("message", gatewayPayload{Type: "GATEWAY_CONNECT", Data: "connected"})

		_ = client.On("disconnect", func(_ ...any) {
			h.mu.Lock()
			delete(h.clients, sid)
			h.mu.Unlock()
		})
	})
}

func (h *Hub) deliver(msg Message) {
	h.sio.Of(namespaceExtension, nil).Emit("message", gatewayPayload{
		Type: msg.Event,
		Data: msg.Payload,
	})
}

// subscribeRedis listens for broadcasts from other server instances.
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rc.Subscribe(ctx, redisChanEvents)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case redisMsg, ok := <-ch:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(redisMsg.Payload), &msg); err != nil {
				continue
			}
			h.deliver(msg)
		}
	}
}
