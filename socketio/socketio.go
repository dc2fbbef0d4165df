// Package socketio puts the chat gateway on socket.io, sharing rooms across
// instances through the Redis adapter.
package socketio

import (
	"context"
	"encoding/json"
	"time"

	"chat-service/config"
	"chat-service/gateway"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/zishang520/engine.io/v2/log"
	"github.com/zishang520/socket.io-go-redis/adapter"
	r_type "github.com/zishang520/socket.io-go-redis/types"
	"github.com/zishang520/socket.io/v2/socket"
)

func Init(ctx context.Context, app *fiber.App, cfg *config.Settings, redisClient *redis.Client) *socket.Server {
	log.DEBUG = cfg.Debug

	options := socket.DefaultServerOptions()
	options.SetServeClient(false)
	options.SetAllowEIO3(true)
	options.SetPingInterval(25 * time.Second)
	options.SetPingTimeout(20 * time.Second)
	options.SetMaxHttpBufferSize(1000000)
	options.SetConnectTimeout(10 * time.Second)
	options.SetAdapter(&adapter.RedisAdapterBuilder{
		Redis: r_type.NewRedisClient(ctx, redisClient),
		Opts:  &adapter.RedisAdapterOptions{},
	})

	server := socket.NewServer(nil, options)

	handler := adaptor.HTTPHandler(server.ServeHandler(options))
	app.Get("/socket.io/", handler)
	app.Post("/socket.io/", handler)

	return server
}

// Hub emits through a socket.io server. With the Redis adapter the rooms
// span every instance.
type Hub struct {
	server *socket.Server
}

func NewHub(server *socket.Server) *Hub {
	return &Hub{server: server}
}

func (h *Hub) EmitTo(rooms []string, except string, event string, payload any) {
	targets := make([]socket.Room, 0, len(rooms))
	for _, room := range rooms {
		targets = append(targets, socket.Room(room))
	}

	op := h.server.To(targets...)
	if except != "" {
		op = op.Except(socket.Room(except))
	}
	op.Emit(event, payload)
}

func (h *Hub) Broadcast(event string, payload any) {
	h.server.Emit(event, payload)
}

// Conn adapts one socket.io socket to the gateway.
type Conn struct {
	client *socket.Socket
}

func NewConn(client *socket.Socket) *Conn {
	return &Conn{client: client}
}

func (c *Conn) ID() string {
	return string(c.client.Id())
}

func (c *Conn) Join(room string) {
	c.client.Join(socket.Room(room))
}

func (c *Conn) Leave(room string) {
	c.client.Leave(socket.Room(room))
}

func (c *Conn) Emit(event string, payload any) {
	c.client.Emit(event, payload)
}

func (c *Conn) Disconnect() {
	c.client.Disconnect(true)
}

// Credentials collects the handshake places a token may come in.
func Credentials(client *socket.Socket) gateway.Credentials {
	c := gateway.Credentials{}
	req := client.Conn().Request()
	if header, ok := req.Headers().Get("Authorization"); ok {
		c.Header = header
	}
	if token, ok := req.Query().Get("token"); ok {
		c.Query = token
	}
	if hs := client.Handshake(); hs != nil {
		if auth, ok := hs.Auth.(map[string]any); ok {
			c.Auth = auth
		}
	}
	return c
}

// Args splits socket.io listener arguments into the event payload and the
// acknowledgement callback, if the client asked for one. Payloads sent as a
// JSON string are accepted too.
func Args(args []any) (json.RawMessage, gateway.Ack) {
	var ack gateway.Ack
	if n := len(args); n > 0 {
		if fn, ok := args[n-1].(func([]any, error)); ok {
			ack = func(reply gateway.Reply) {
				fn([]any{reply}, nil)
			}
			args = args[:n-1]
		}
	}
	if len(args) == 0 || args[0] == nil {
		return nil, ack
	}

	switch v := args[0].(type) {
	case string:
		if json.Valid([]byte(v)) {
			return json.RawMessage(v), ack
		}
	case []byte:
		if json.Valid(v) {
			return json.RawMessage(v), ack
		}
	}

	raw, err := json.Marshal(args[0])
	if err != nil {
		return nil, ack
	}
	return raw, ack
}
