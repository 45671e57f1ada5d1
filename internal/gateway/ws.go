package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Observers connect from the UI dev server too.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSObserver wraps a websocket connection as a hub Observer.
type WSObserver struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Upgrade upgrades an HTTP request to a websocket observer connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*WSObserver, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &WSObserver{conn: conn}, nil
}

// Send writes the event as a JSON text frame. Concurrent broadcasts
// serialize on the write lock; gorilla allows one writer at a time.
func (o *WSObserver) Send(ev Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return o.conn.WriteJSON(ev)
}

// Close tears down the underlying connection.
func (o *WSObserver) Close() error {
	return o.conn.Close()
}

// ReadLoop consumes inbound frames and dispatches them to the hub until
// the connection drops. Malformed frames are logged and skipped; they
// never reach the engine.
func (o *WSObserver) ReadLoop(hub *Hub, logger *zap.Logger) {
	defer func() {
		hub.Unregister(o)
		o.conn.Close()
	}()
	for {
		var msg Inbound
		if err := o.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("observer read error", zap.Error(err))
			}
			return
		}
		if msg.Type == "" {
			logger.Debug("dropping inbound frame without type")
			continue
		}
		hub.Dispatch(&msg)
	}
}
