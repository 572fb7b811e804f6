package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"tonkserver/common/jwts"
	"tonkserver/common/log"
	"tonkserver/common/utils"
	"tonkserver/eventbus"
	"tonkserver/ledger"
	"tonkserver/matchmaker"
	"tonkserver/queue"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Manager is the Session Manager (C6): owns every table, authenticates
// connections, and routes inbound frames to the table they address.
// It also implements matchmaker.TableHost so C5 can mutate tables
// through the same single-actor-per-table path the connection layer
// uses.
type Manager struct {
	mu          sync.RWMutex
	tables      map[string]*Table
	byUser      map[string]*Connection
	limiters    map[string]*utils.RateLimiter

	queue   *queue.Manager
	ledger  *ledger.Ledger
	bus     *eventbus.Bus
	mm      *matchmaker.Manager
	jwtSecret string
}

func NewManager(q *queue.Manager, led *ledger.Ledger, bus *eventbus.Bus, jwtSecret string) *Manager {
	return &Manager{
		tables:    make(map[string]*Table),
		byUser:    make(map[string]*Connection),
		limiters:  make(map[string]*utils.RateLimiter),
		queue:     q,
		ledger:    led,
		bus:       bus,
		jwtSecret: jwtSecret,
	}
}

func (m *Manager) SetMatchmaker(mm *matchmaker.Manager) { m.mm = mm }

// ProvisionTables creates two preset tables per stake in the ladder,
// the durable pool that never gets deleted.
func (m *Manager) ProvisionTables(stakeLadder []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stake := range stakeLadder {
		for i := 0; i < 2; i++ {
			id := fmt.Sprintf("preset-%d-%d", stake, i)
			m.tables[id] = NewTable(id, stake, m.ledger, m.bus, m.notifyFn(stake))
		}
	}
}

func (m *Manager) notifyFn(stake int64) func() {
	return func() {
		if m.mm != nil {
			m.mm.Trigger(stake)
		}
	}
}

// --- HTTP upgrade + auth ---

func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userId := r.URL.Query().Get("userId")

	verifiedUser, err := jwts.ParseToken(token, m.jwtSecret)
	if err != nil || verifiedUser == "" || verifiedUser != userId {
		log.Warn("session: rejecting connection, auth failed for claimed user %s: %v", userId, err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("session: websocket upgrade failed: %v", err)
		return
	}

	connId := uuid.NewString()
	var conn *Connection
	conn = NewConnection(connId, userId, ws, func(env Envelope) {
		m.dispatch(conn, env)
	}, func() {
		m.onClose(conn)
	})

	m.mu.Lock()
	old, exists := m.byUser[userId]
	m.byUser[userId] = conn
	m.mu.Unlock()
	if exists {
		old.Close()
	}

	conn.Run()
}

func (m *Manager) onClose(conn *Connection) {
	m.mu.Lock()
	if cur, ok := m.byUser[conn.UserId]; ok && cur == conn {
		delete(m.byUser, conn.UserId)
	}
	tables := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	m.mu.Unlock()

	for _, t := range tables {
		_ = t.do(func(tb *Table) error { return tb.handleDisconnect(conn.Id) })
	}
}

// --- inbound dispatch ---

func (m *Manager) dispatch(conn *Connection, env Envelope) {
	switch env.Event {
	case EventJoinQueue:
		var p JoinQueuePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			conn.Send(envelope(EventError, ErrorPayload{Code: "malformed_message", Message: err.Error()}))
			return
		}
		m.handleJoinQueue(conn, p)
	case EventLeaveQueue:
		var p JoinQueuePayload
		_ = json.Unmarshal(env.Payload, &p)
		_ = m.queue.Remove(context.Background(), p.Stake, conn.UserId)
		m.bus.PublishQueueActivity(p.Stake, "left")
	case EventJoinTable:
		var p JoinTablePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			conn.Send(envelope(EventError, ErrorPayload{Code: "malformed_message", Message: err.Error()}))
			return
		}
		m.handleJoinTable(conn, p.TableId)
	case EventJoinSpectator:
		var p JoinTablePayload
		_ = json.Unmarshal(env.Payload, &p)
		if t := m.lookupTable(p.TableId); t != nil {
			_ = t.do(func(tb *Table) error { return tb.handleJoinSpectator(conn) })
		}
	case EventPlayerReady:
		m.forEachConnTable(conn, func(t *Table) error { return t.handleReady(conn) })
	case EventGameAction:
		var p GameActionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			conn.Send(envelope(EventError, ErrorPayload{Code: "malformed_message", Message: err.Error()}))
			return
		}
		m.forEachConnTable(conn, func(t *Table) error { return t.handleGameAction(conn, p) })
	case EventLeaveTable:
		m.forEachConnTable(conn, func(t *Table) error { return t.handleLeaveTable(conn) })
	case EventRequestStateSync:
		limiter := m.limiterFor(conn.Id)
		m.forEachConnTable(conn, func(t *Table) error { return t.handleRequestStateSync(conn, limiter.Allow()) })
	case EventVerifyState:
		var p VerifyStatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		if t := m.lookupTable(p.TableId); t != nil {
			_ = t.do(func(tb *Table) error { return tb.handleVerifyState(conn, p.Hash) })
		}
	case EventReconnectPlayer:
		var p JoinTablePayload
		_ = json.Unmarshal(env.Payload, &p)
		if t := m.lookupTable(p.TableId); t != nil {
			_ = t.do(func(tb *Table) error { return tb.handleReconnect(conn) })
		}
	case EventPong:
		// read pump's deadline refresh handles liveness.
	default:
		conn.Send(envelope(EventError, ErrorPayload{Code: "unknown_event", Message: env.Event}))
	}
}

func (m *Manager) limiterFor(connId string) *utils.RateLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.limiters[connId]; ok {
		return l
	}
	l := utils.NewRateLimiter(1, 1)
	m.limiters[connId] = l
	return l
}

func (m *Manager) handleJoinQueue(conn *Connection, p JoinQueuePayload) {
	if err := m.queue.Enqueue(context.Background(), p.Stake, queue.Player{Username: conn.UserId}); err != nil {
		conn.Send(envelope(EventError, ErrorPayload{Code: "queue_join_failed", Message: err.Error()}))
		return
	}
	pos, _ := m.queue.Position(context.Background(), p.Stake, conn.UserId)
	conn.Send(envelope(EventQueueStatus, map[string]int{"position": pos}))
	m.bus.PublishQueueActivity(p.Stake, "enqueued")
	if m.mm != nil {
		m.mm.Trigger(p.Stake)
	}
}

func (m *Manager) handleJoinTable(conn *Connection, tableId string) {
	t := m.lookupTable(tableId)
	if t == nil {
		conn.Send(envelope(EventError, ErrorPayload{Code: "no_such_table", Message: tableId}))
		return
	}

	view := t.snapshot()
	var err error
	switch {
	case !view.HandInProgress:
		err = t.seatPlayer(conn.UserId, conn)
	case view.BotCount > 0:
		err = t.beginTransition(conn.UserId, conn)
	default:
		err = t.do(func(tb *Table) error {
			tb.conns[conn.Id] = conn
			tb.Spectators = append(tb.Spectators, Spectator{Username: conn.UserId, ConnId: conn.Id, WillJoinNextHand: true})
			conn.Send(envelope(EventSpectatorModeActive, map[string]string{"tableId": tb.Id}))
			return nil
		})
	}
	if err != nil {
		conn.Send(envelope(EventError, ErrorPayload{Code: "join_table_failed", Message: err.Error()}))
	}
}

// ValidateStateResult is the HTTP validate-state fallback's response:
// whether the client's last-known hash still matches the table's
// canonical state.
type ValidateStateResult struct {
	Matches       bool   `json:"matches"`
	CanonicalHash uint64 `json:"canonicalHash"`
}

func (m *Manager) ValidateState(tableId string, hash uint64) (ValidateStateResult, error) {
	t := m.lookupTable(tableId)
	if t == nil {
		return ValidateStateResult{}, fmt.Errorf("no such table %s", tableId)
	}
	canonical, ok := t.currentStateHash()
	if !ok {
		return ValidateStateResult{}, fmt.Errorf("table %s has no hand in progress", tableId)
	}
	return ValidateStateResult{Matches: hash == canonical, CanonicalHash: canonical}, nil
}

func (m *Manager) lookupTable(tableId string) *Table {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables[tableId]
}

func (m *Manager) forEachConnTable(conn *Connection, fn func(*Table) error) {
	m.mu.RLock()
	tables := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	m.mu.RUnlock()

	for _, t := range tables {
		if t.hasConn(conn.Id) {
			if err := t.do(fn); err != nil {
				log.Error("session: table %s command failed: %v", t.Id, err)
			}
			return
		}
	}
}
