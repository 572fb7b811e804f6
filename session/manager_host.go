package session

import (
	"fmt"

	"github.com/google/uuid"

	"tonkserver/matchmaker"
)

// The methods below satisfy matchmaker.TableHost, letting C5 drive
// table state through the exact same single-actor path every websocket
// frame does. Matchmaker only ever knows a tableId and a username; it
// never holds a live *Connection, so these adapters look one up from
// the connection registry when a seat change needs to announce itself
// over the wire.

func (m *Manager) TablesForStake(stake int64) []matchmaker.TableView {
	m.mu.RLock()
	tables := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		if t.Stake == stake {
			tables = append(tables, t)
		}
	}
	m.mu.RUnlock()

	views := make([]matchmaker.TableView, 0, len(tables))
	for _, t := range tables {
		views = append(views, t.snapshot())
	}
	return views
}

func (m *Manager) connFor(username string) *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byUser[username]
}

func (m *Manager) ResolveTransition(tableId string) (bool, error) {
	t := m.lookupTable(tableId)
	if t == nil {
		return false, fmt.Errorf("no such table %s", tableId)
	}
	return t.resolveTransition()
}

func (m *Manager) SeatPlayer(tableId, username string) error {
	t := m.lookupTable(tableId)
	if t == nil {
		return fmt.Errorf("no such table %s", tableId)
	}
	return t.seatPlayer(username, m.connFor(username))
}

func (m *Manager) BeginTransition(tableId, username string) error {
	t := m.lookupTable(tableId)
	if t == nil {
		return fmt.Errorf("no such table %s", tableId)
	}
	return t.beginTransition(username, m.connFor(username))
}

func (m *Manager) AddBot(tableId string) error {
	t := m.lookupTable(tableId)
	if t == nil {
		return fmt.Errorf("no such table %s", tableId)
	}
	return t.addBot()
}

func (m *Manager) EvictBot(tableId string) error {
	t := m.lookupTable(tableId)
	if t == nil {
		return fmt.Errorf("no such table %s", tableId)
	}
	return t.evictBot()
}

func (m *Manager) StartCountdown(tableId string) error {
	t := m.lookupTable(tableId)
	if t == nil {
		return fmt.Errorf("no such table %s", tableId)
	}
	return t.startCountdown()
}

// CreateOverflowTable provisions a dynamic, non-preset table for stake.
// Unlike the preset pool from ProvisionTables, overflow tables are
// never torn down automatically; they simply sit empty once their
// hand ends and the matchmaker stops routing new players to them.
func (m *Manager) CreateOverflowTable(stake int64) (string, error) {
	id := fmt.Sprintf("overflow-%s", uuid.NewString()[:8])
	m.mu.Lock()
	m.tables[id] = NewTable(id, stake, m.ledger, m.bus, m.notifyFn(stake))
	m.mu.Unlock()
	return id, nil
}
