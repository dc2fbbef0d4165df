package router

import (
	"context"
	"log/slog"

	"chat-service/apperr"
	"chat-service/gateway"
	"chat-service/socketio"

	"github.com/zishang520/socket.io/v2/socket"
)

// Socket authenticates incoming socket.io connections and routes their
// events into the gateway.
func Socket(server *socket.Server, gw *gateway.Gateway, log *slog.Logger) {
	server.Use(func(client *socket.Socket, next func(*socket.ExtendedError)) {
		userID, err := gw.Authenticate(socketio.Credentials(client))
		if err != nil {
			log.Info("connection refused", "socket", string(client.Id()), "error", err)
			next(socket.NewExtendedError(apperr.MessageOf(err), nil))
			return
		}
		client.SetData(userID)
		next(nil)
	})

	server.On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)
		userID, _ := client.Data().(string)

		session := gw.Open(context.Background(), socketio.NewConn(client), userID)

		for _, name := range gw.Events() {
			name := name
			client.On(name, func(args ...interface{}) {
				raw, ack := socketio.Args(args)
				gw.Handle(context.Background(), session, name, raw, ack)
			})
		}

		client.On("disconnect", func(...interface{}) {
			gw.Close(context.Background(), session)
		})
	})
}
