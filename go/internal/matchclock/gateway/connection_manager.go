package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/matchday/go/internal/matchclock/channel"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/rs/zerolog/log"
)

// FrameTypeClock marks a frame carrying a full match clock record.
const FrameTypeClock = "clock"

// ClockFrame is the only frame the server pushes to viewers.
type ClockFrame struct {
	Type  string            `json:"type"`
	Match models.MatchClock `json:"match"`
}

// Broker is the in-process topic registry the manager joins per match.
type Broker interface {
	Subscribe(matchID uuid.UUID) (*channel.Subscription, error)
}

// StateProvider fetches the current record for snapshots and resyncs.
type StateProvider interface {
	GetClock(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error)
}

// ConnectionManager manages WebSocket connections per match. It holds one
// broker subscription per match with at least one connection.
type ConnectionManager struct {
	mu     sync.Mutex
	topics map[uuid.UUID]*matchTopic

	broker   Broker
	provider StateProvider

	upgrader websocket.Upgrader
	config   ConnectionConfig
}

type matchTopic struct {
	conns map[*Connection]struct{}
	sub   *channel.Subscription
}

// Connection represents a WebSocket connection to a viewer
type Connection struct {
	ID      string
	MatchID uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time

	mu          sync.Mutex
	closed      bool
	lastVersion int64
	lastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	SnapshotTimeout time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		SnapshotTimeout: 5 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  32,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig, broker Broker, provider StateProvider) *ConnectionManager {
	return &ConnectionManager{
		topics:   make(map[uuid.UUID]*matchTopic),
		broker:   broker,
		provider: provider,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket, joins the match
// topic and queues the current record as the first frame.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, matchID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		MatchID:     matchID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
		lastPing:    time.Now(),
	}

	if err := cm.registerConnection(connection); err != nil {
		conn.Close()
		return err
	}

	go connection.writePump()
	go connection.readPump()

	// Joined before fetching, so no commit falls between the snapshot and the stream.
	cm.sendSnapshot(matchID, connection)

	log.Info().
		Str("connection_id", connection.ID).
		Str("match_id", matchID.String()).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	topic, ok := cm.topics[conn.MatchID]
	if !ok {
		sub, err := cm.broker.Subscribe(conn.MatchID)
		if err != nil {
			return fmt.Errorf("failed to subscribe to match %s: %w", conn.MatchID, err)
		}
		topic = &matchTopic{
			conns: make(map[*Connection]struct{}),
			sub:   sub,
		}
		cm.topics[conn.MatchID] = topic
		go cm.pump(conn.MatchID, sub)
	}
	topic.conns[conn] = struct{}{}

	log.Debug().
		Str("connection_id", conn.ID).
		Str("match_id", conn.MatchID.String()).
		Int("total_connections", len(topic.conns)).
		Msg("connection registered")
	return nil
}

// unregisterConnection removes a connection and leaves the topic when it was
// the last one. Safe to call more than once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	topic, ok := cm.topics[conn.MatchID]
	if !ok {
		return
	}
	if _, ok := topic.conns[conn]; !ok {
		return
	}
	delete(topic.conns, conn)
	conn.closeSend()

	if len(topic.conns) == 0 {
		topic.sub.Close()
		delete(cm.topics, conn.MatchID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("match_id", conn.MatchID.String()).
		Msg("connection unregistered")
}

// pump forwards broker records to the match's connections. When the broker
// drops the subscription while viewers remain, it rejoins and resyncs them.
func (cm *ConnectionManager) pump(matchID uuid.UUID, sub *channel.Subscription) {
	for clock := range sub.Updates() {
		cm.broadcast(matchID, clock)
	}

	cm.mu.Lock()
	topic, ok := cm.topics[matchID]
	if !ok || topic.sub != sub {
		cm.mu.Unlock()
		return
	}
	next, err := cm.broker.Subscribe(matchID)
	if err != nil {
		log.Error().Err(err).Str("match_id", matchID.String()).Msg("failed to resubscribe, closing viewers")
		conns := make([]*Connection, 0, len(topic.conns))
		for conn := range topic.conns {
			conns = append(conns, conn)
		}
		cm.mu.Unlock()
		for _, conn := range conns {
			cm.unregisterConnection(conn)
		}
		return
	}
	topic.sub = next
	cm.mu.Unlock()

	log.Warn().Str("match_id", matchID.String()).Msg("match subscription dropped, resyncing viewers")
	go cm.pump(matchID, next)

	ctx, cancel := context.WithTimeout(context.Background(), cm.config.SnapshotTimeout)
	defer cancel()
	clock, err := cm.provider.GetClock(ctx, matchID)
	if err != nil {
		log.Error().Err(err).Str("match_id", matchID.String()).Msg("failed to fetch match clock for resync")
		return
	}
	cm.broadcast(matchID, *clock)
}

// ResyncAll broadcasts a freshly fetched record to every match with viewers.
func (cm *ConnectionManager) ResyncAll(ctx context.Context) {
	cm.mu.Lock()
	matchIDs := make([]uuid.UUID, 0, len(cm.topics))
	for matchID := range cm.topics {
		matchIDs = append(matchIDs, matchID)
	}
	cm.mu.Unlock()

	for _, matchID := range matchIDs {
		fetchCtx, cancel := context.WithTimeout(ctx, cm.config.SnapshotTimeout)
		clock, err := cm.provider.GetClock(fetchCtx, matchID)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("match_id", matchID.String()).Msg("failed to fetch match clock for resync")
			continue
		}
		cm.broadcast(matchID, *clock)
	}

	log.Info().Int("matches", len(matchIDs)).Msg("resynced viewers")
}

func (cm *ConnectionManager) sendSnapshot(matchID uuid.UUID, conn *Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), cm.config.SnapshotTimeout)
	defer cancel()

	clock, err := cm.provider.GetClock(ctx, matchID)
	if err != nil {
		log.Error().Err(err).Str("match_id", matchID.String()).Msg("failed to fetch snapshot")
		return
	}
	data, err := json.Marshal(ClockFrame{Type: FrameTypeClock, Match: *clock})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal snapshot frame")
		return
	}
	if !conn.enqueue(clock.Version, data) {
		cm.dropSlow(conn)
	}
}

// broadcast sends clock to every connection of the match.
func (cm *ConnectionManager) broadcast(matchID uuid.UUID, clock models.MatchClock) {
	cm.mu.Lock()
	topic, ok := cm.topics[matchID]
	if !ok {
		cm.mu.Unlock()
		return
	}
	targets := make([]*Connection, 0, len(topic.conns))
	for conn := range topic.conns {
		targets = append(targets, conn)
	}
	cm.mu.Unlock()

	data, err := json.Marshal(ClockFrame{Type: FrameTypeClock, Match: clock})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal clock frame")
		return
	}

	for _, conn := range targets {
		if !conn.enqueue(clock.Version, data) {
			cm.dropSlow(conn)
		}
	}

	log.Debug().
		Str("match_id", matchID.String()).
		Int64("version", clock.Version).
		Int("connections", len(targets)).
		Msg("clock broadcasted")
}

func (cm *ConnectionManager) dropSlow(conn *Connection) {
	log.Warn().
		Str("connection_id", conn.ID).
		Str("match_id", conn.MatchID.String()).
		Msg("connection send buffer full, closing connection")
	cm.unregisterConnection(conn)
	conn.Conn.Close()
}

// ConnectionStats summarizes active viewers.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveMatches    int            `json:"active_matches"`
	MatchConnections map[string]int `json:"match_connections"`
}

func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	stats := ConnectionStats{
		ActiveMatches:    len(cm.topics),
		MatchConnections: make(map[string]int, len(cm.topics)),
	}
	for matchID, topic := range cm.topics {
		stats.TotalConnections += len(topic.conns)
		stats.MatchConnections[matchID.String()] = len(topic.conns)
	}
	return stats
}

// CloseAll disconnects every viewer.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.Lock()
	var conns []*Connection
	for _, topic := range cm.topics {
		for conn := range topic.conns {
			conns = append(conns, conn)
		}
	}
	cm.mu.Unlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
}

// enqueue queues data unless the viewer already has this version or newer.
// It reports false when the send buffer is full.
func (c *Connection) enqueue(version int64, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || version <= c.lastVersion {
		return true
	}
	select {
	case c.Send <- data:
		c.lastVersion = version
		return true
	default:
		return false
	}
}

func (c *Connection) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump drains viewer frames so pongs and close frames are processed.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.mu.Lock()
		c.lastPing = time.Now()
		c.mu.Unlock()
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
