package notifiers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/daniacca/mattercore/internal/matter"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// subscriber is one websocket client. An empty world accepts every world.
type subscriber struct {
	conn  *websocket.Conn
	world string
}

// WebSocketNotifier streams containment events to websocket clients.
// Clients may narrow the stream to one world with the ?world= query
// parameter.
type WebSocketNotifier struct {
	id       string
	mu       sync.RWMutex
	clients  map[*websocket.Conn]*subscriber
	upgrader websocket.Upgrader
	events   chan matter.ContainmentEvent
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
	logger   matter.Logger
}

// NewWebSocketNotifier creates a notifier and starts its broadcaster.
func NewWebSocketNotifier(id string, logger matter.Logger) *WebSocketNotifier {
	if logger == nil {
		logger = matter.NewNoOpLogger()
	}
	n := &WebSocketNotifier{
		id:      id,
		clients: make(map[*websocket.Conn]*subscriber),
		events:  make(chan matter.ContainmentEvent, 256),
		done:    make(chan struct{}),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	n.wg.Add(1)
	go n.run()
	return n
}

// ID returns the notifier ID
func (n *WebSocketNotifier) ID() string { return n.id }

// Type returns the notifier type
func (n *WebSocketNotifier) Type() string { return "websocket" }

// ClientCount returns the number of connected clients.
func (n *WebSocketNotifier) ClientCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.clients)
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects.
func (n *WebSocketNotifier) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Warnf("websocket upgrade failed: error=%v", err)
		return
	}
	sub := &subscriber{conn: conn, world: r.URL.Query().Get("world")}
	if !n.add(sub) {
		_ = conn.Close()
		return
	}
	n.logger.Debugf("websocket client connected: remote=%s world=%q", r.RemoteAddr, sub.world)

	// Reads only detect the close; clients do not send anything.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	n.remove(conn)
}

func (n *WebSocketNotifier) add(sub *subscriber) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	select {
	case <-n.done:
		return false
	default:
	}
	n.clients[sub.conn] = sub
	return true
}

func (n *WebSocketNotifier) remove(conn *websocket.Conn) {
	n.mu.Lock()
	_, ok := n.clients[conn]
	delete(n.clients, conn)
	n.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

// Notify queues the event for broadcast.
func (n *WebSocketNotifier) Notify(ctx context.Context, event matter.ContainmentEvent) error {
	select {
	case <-n.done:
		return fmt.Errorf("notifier %s is closed", n.id)
	default:
	}
	select {
	case n.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(1 * time.Second):
		return fmt.Errorf("notification queue full")
	}
}

func (n *WebSocketNotifier) run() {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		case event := <-n.events:
			n.broadcast(event)
		}
	}
}

func (n *WebSocketNotifier) broadcast(event matter.ContainmentEvent) {
	data, err := event.JSON()
	if err != nil {
		n.logger.Errorf("encode event failed: id=%s error=%v", event.ID, err)
		return
	}

	n.mu.RLock()
	targets := make([]*subscriber, 0, len(n.clients))
	for _, sub := range n.clients {
		if sub.world == "" || sub.world == event.WorldID {
			targets = append(targets, sub)
		}
	}
	n.mu.RUnlock()

	for _, sub := range targets {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			n.logger.Debugf("websocket write failed, dropping client: error=%v", err)
			n.remove(sub.conn)
		}
	}
}

// Close disconnects every client and stops the broadcaster. It is safe to
// call more than once.
func (n *WebSocketNotifier) Close() error {
	n.once.Do(func() {
		n.mu.Lock()
		close(n.done)
		for conn := range n.clients {
			_ = conn.Close()
			delete(n.clients, conn)
		}
		n.mu.Unlock()
		n.wg.Wait()
	})
	return nil
}

var _ matter.Notifier = (*WebSocketNotifier)(nil)
