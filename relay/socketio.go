package relay

import (
	"studyhall/core"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// socketTransport delivers events through the Socket.IO server. Every
// socket is a member of its own id-named room, so addressing a connection
// is a room emit.
type socketTransport struct {
	io *socketio.Server
}

func (t *socketTransport) ToConnection(conn ConnID, event string, payload ...any) error {
	return t.io.To(socketio.Room(conn)).Emit(event, payload...)
}

// SetupSocketIO builds the Socket.IO server and binds the relay's event
// table to it. Returns the server (for mounting and shutdown) and the relay
// (for the presence API).
func SetupSocketIO(registry *Registry, store core.DocumentStore) (*socketio.Server, *Relay) {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	io := socketio.NewServer(nil, opts)
	relay := New(registry, store, &socketTransport{io: io})

	io.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		conn := ConnID(socket.Id())
		logrus.WithField("conn", conn).Debug("Client connected")

		for kind, name := range eventNames {
			kind := kind
			socket.On(name, func(datas ...any) {
				relay.Dispatch(kind, conn, datas)
			})
		}

		socket.On("disconnect", func(...any) {
			relay.HandleDisconnect(conn)
			socket.RemoveAllListeners("")
		})
	})

	return io, relay
}
