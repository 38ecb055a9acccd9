package sse

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/listenupapp/bookreviews-server/internal/id"
)

const (
	queueSize       = 1000
	clientQueueSize = 100
)

// Client is one connected event stream.
type Client struct {
	ID          string
	UserID      string // empty receives only broadcasts
	ConnectedAt time.Time

	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
}

// Events delivers the client's events. It is never closed; watch Closed.
func (c *Client) Events() <-chan Event { return c.events }

// Closed is closed once the client is disconnected.
func (c *Client) Closed() <-chan struct{} { return c.closed }

func (c *Client) wants(event Event) bool {
	return event.UserID == "" || event.UserID == c.UserID
}

// offer delivers event without blocking and reports whether it was accepted.
func (c *Client) offer(event Event) bool {
	select {
	case <-c.closed:
		return true
	default:
	}
	select {
	case c.events <- event:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Manager fans feed events out to connected clients.
type Manager struct {
	clients   *xsync.MapOf[string, *Client]
	queue     chan Event
	seq       atomic.Uint64
	logger    *slog.Logger
	heartbeat time.Duration

	started  atomic.Bool
	stopped  atomic.Bool
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// NewManager creates a new SSE Manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		clients:   xsync.NewMapOf[string, *Client](),
		queue:     make(chan Event, queueSize),
		logger:    logger,
		heartbeat: 30 * time.Second,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the delivery loop until ctx is cancelled or Shutdown is called.
// Only the first call does anything.
func (m *Manager) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	defer close(m.done)
	defer m.closeAllClients()

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case event := <-m.queue:
			m.broadcast(event)
		case <-ticker.C:
			m.broadcast(NewHeartbeatEvent())
		case <-m.quit:
			m.drain()
			return
		case <-ctx.Done():
			m.logger.Info("SSE manager stopping")
			return
		}
	}
}

// drain delivers whatever is still queued.
func (m *Manager) drain() {
	for {
		select {
		case event := <-m.queue:
			m.broadcast(event)
		default:
			return
		}
	}
}

// Shutdown stops accepting events, delivers the queued ones and disconnects all clients.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.quitOnce.Do(func() {
		m.stopped.Store(true)
		close(m.quit)
	})

	if !m.started.Load() {
		m.closeAllClients()
		return nil
	}

	select {
	case <-m.done:
	case <-ctx.Done():
		m.logger.Warn("SSE drain timed out, queued events may be lost")
	}
	return nil
}

func (m *Manager) broadcast(event Event) {
	var delivered, dropped int

	m.clients.Range(func(_ string, client *Client) bool {
		if !client.wants(event) {
			return true
		}
		if client.offer(event) {
			delivered++
		} else {
			dropped++
			m.logger.Warn("dropped event for slow client",
				slog.String("client_id", client.ID),
				slog.String("event_type", string(event.Type)))
		}
		return true
	})

	if event.Type != EventHeartbeat {
		m.logger.Debug("event broadcast",
			slog.String("event_type", string(event.Type)),
			slog.Uint64("seq", event.Seq),
			slog.Int("delivered", delivered),
			slog.Int("dropped", dropped))
	}
}

// Connect registers a new client for userID.
func (m *Manager) Connect(userID string) (*Client, error) {
	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		UserID:      userID,
		ConnectedAt: time.Now(),
		events:      make(chan Event, clientQueueSize),
		closed:      make(chan struct{}),
	}
	m.clients.Store(clientID, client)

	m.logger.Info("SSE client connected",
		slog.String("client_id", clientID),
		slog.String("user_id", userID),
		slog.Int("total_clients", m.clients.Size()))
	return client, nil
}

// Disconnect removes a client. Unknown ids are ignored.
func (m *Manager) Disconnect(clientID string) {
	client, ok := m.clients.LoadAndDelete(clientID)
	if !ok {
		return
	}
	client.close()

	m.logger.Info("SSE client disconnected",
		slog.String("client_id", clientID),
		slog.Duration("duration", time.Since(client.ConnectedAt)),
		slog.Int("total_clients", m.clients.Size()))
}

// Emit queues an event for every interested client. Events emitted after Shutdown
// or while the queue is full are dropped.
func (m *Manager) Emit(event Event) {
	if m.stopped.Load() {
		return
	}
	event.Seq = m.seq.Add(1)

	select {
	case m.queue <- event:
	default:
		m.logger.Error("SSE queue full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}

// EmitToUser queues an event for one user's clients.
func (m *Manager) EmitToUser(userID string, event Event) {
	event.UserID = userID
	m.Emit(event)
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	return m.clients.Size()
}

func (m *Manager) closeAllClients() {
	m.clients.Range(func(clientID string, client *Client) bool {
		m.clients.Delete(clientID)
		client.close()
		return true
	})
}
