package session

import (
	"fmt"
	"time"

	"tonkserver/cards"
)

func actionTypeFromWire(s string) (cards.ActionType, error) {
	switch s {
	case "DRAW_STOCK":
		return cards.DrawStock, nil
	case "DRAW_DISCARD":
		return cards.DrawDiscard, nil
	case "DISCARD":
		return cards.Discard, nil
	case "SPREAD_DOWN":
		return cards.SpreadDown, nil
	case "HIT":
		return cards.Hit, nil
	case "DROP":
		return cards.Drop, nil
	case "DECLARE_SPECIAL_WIN":
		return cards.DeclareSpecialWin, nil
	default:
		return 0, fmt.Errorf("unknown action type %q", s)
	}
}

// handleGameAction is run inside the table actor. It implements the
// turn-driving sequence: validate, apply, persist (in memory),
// broadcast, then schedule the next bot turn if one is due.
func (t *Table) handleGameAction(conn *Connection, p GameActionPayload) error {
	if t.Hand == nil || t.Hand.Phase != cards.PhaseInProgress {
		conn.Send(envelope(EventError, ErrorPayload{Code: "no_active_hand", Message: "no hand in progress"}))
		return nil
	}

	seatIdx := t.seatIndexByConn(conn.Id)
	if seatIdx < 0 {
		// reconnect race: sender may own the seat by username with a
		// stale connection id; patch it in rather than reject outright.
		if patched := t.patchSeatConnByUser(conn); patched >= 0 {
			seatIdx = patched
		} else {
			conn.Send(envelope(EventError, ErrorPayload{Code: "not_a_seat", Message: "you are not seated at this table"}))
			return nil
		}
	}

	if seatIdx != t.Hand.Turn {
		conn.Send(envelope(EventTurnStart, map[string]int{"turn": t.Hand.Turn}))
		return nil
	}

	if p.ClientHash != 0 && p.ClientHash != t.Hand.StateHash {
		viewer := t.Seats[seatIdx].Username
		conn.Send(envelope(EventStateReconciled, buildView(t.Id, t.Seats, *t.Hand, viewer)))
		return nil
	}

	actionType, err := actionTypeFromWire(p.Type)
	if err != nil {
		conn.Send(envelope(EventError, ErrorPayload{Code: "bad_action", Message: err.Error()}))
		return nil
	}

	action := cards.Action{
		Type:          actionType,
		Seat:          seatIdx,
		DiscardIndex:  p.DiscardIndex,
		SpreadIndices: p.SpreadIndices,
		HandIndex:     p.HandIndex,
		TargetSeat:    p.TargetSeat,
		SpreadIndex:   p.SpreadIndex,
	}

	next, err := cards.Apply(*t.Hand, action)
	if err != nil {
		conn.Send(envelope(EventError, ErrorPayload{Code: "turn_validation_error", Message: err.Error()}))
		if actionType == cards.Discard {
			viewer := t.Seats[seatIdx].Username
			conn.Send(envelope(EventStateSync, buildView(t.Id, t.Seats, *t.Hand, viewer)))
		}
		return nil
	}

	t.Hand = &next
	t.broadcastState()

	if next.Phase == cards.PhaseOver {
		return t.settleLocked()
	}
	t.scheduleBotIfNeeded()
	return nil
}

func (t *Table) seatIndexByConn(connId string) int {
	for i, s := range t.Seats {
		if s.ConnId == connId {
			return i
		}
	}
	return -1
}

func (t *Table) patchSeatConnByUser(conn *Connection) int {
	for i, s := range t.Seats {
		if s.Username == conn.UserId && s.ConnId != conn.Id {
			t.Seats[i].ConnId = conn.Id
			return i
		}
	}
	return -1
}

// handleReady marks a human seat ready. When every human seat is
// ready and at least two seats total are occupied, it starts the
// hand-start countdown.
func (t *Table) handleReady(conn *Connection) error {
	idx := t.seatIndexByConn(conn.Id)
	if idx < 0 {
		return nil
	}
	t.Seats[idx].Ready = true

	for i, s := range t.Seats {
		if !s.IsHuman {
			t.Seats[i].Ready = true
		}
	}

	humanCount := 0
	allReady := true
	for _, s := range t.Seats {
		if s.Status == cards.SeatLeft {
			continue
		}
		if s.IsHuman {
			humanCount++
		}
		if !s.Ready {
			allReady = false
		}
	}

	if allReady && humanCount >= 1 && len(t.activeSeats()) >= 2 && t.State == StateWaiting && t.Hand == nil {
		t.State = StateCountdown
		go func() {
			time.Sleep(countdownHandStart)
			_ = t.do(func(tb *Table) error { return tb.beginHandLocked() })
		}()
	}
	return nil
}

// handleLeaveTable removes a seated human. If the leaver was the
// acting seat, the turn advances; if only one human remains in a
// hand with >=2 seats, the hand ends with FORFEIT_WIN.
func (t *Table) handleLeaveTable(conn *Connection) error {
	idx := t.seatIndexByConn(conn.Id)
	if idx < 0 {
		return nil
	}
	wasActing := t.Hand != nil && t.Hand.Phase == cards.PhaseInProgress && t.Hand.Turn == idx
	t.Seats[idx].Status = cards.SeatLeft
	t.broadcast(envelope(EventPlayerLeft, map[string]string{"username": t.Seats[idx].Username, "tableId": t.Id}))

	humans := 0
	for _, s := range t.activeSeats() {
		if s.IsHuman {
			humans++
		}
	}

	if t.Hand != nil && t.Hand.Phase == cards.PhaseInProgress {
		if humans == 0 {
			t.Hand = nil
			t.State = StateWaiting
			return nil
		}
		if humans == 1 && len(t.activeSeats()) >= 2 {
			forfeited := *t.Hand
			winner := -1
			for i, s := range t.Seats {
				if s.Status != cards.SeatLeft && s.IsHuman {
					winner = i
					break
				}
			}
			forfeited.Phase = cards.PhaseOver
			forfeited.Outcome = cards.Outcome{WinType: cards.ForfeitWin, Winners: []int{winner}}
			t.Hand = &forfeited
			return t.settleLocked()
		}
		if wasActing {
			next := (idx + 1) % len(t.Seats)
			t.Hand.Turn = next
			t.broadcastState()
			t.scheduleBotIfNeeded()
		}
	}

	if humans == 0 {
		t.State = StateWaiting
	}
	if t.notify != nil {
		t.notify()
	}
	return nil
}

// handleDisconnect marks a seat disconnected with a grace period
// rather than removing it immediately.
func (t *Table) handleDisconnect(connId string) error {
	idx := -1
	for i, s := range t.Seats {
		if s.ConnId == connId {
			idx = i
			break
		}
	}
	delete(t.conns, connId)
	if idx < 0 {
		for i, sp := range t.Spectators {
			if sp.ConnId == connId {
				t.Spectators = append(t.Spectators[:i], t.Spectators[i+1:]...)
				break
			}
		}
		return nil
	}

	t.Seats[idx].Status = cards.SeatDisconnected
	t.Seats[idx].ConnId = ""
	username := t.Seats[idx].Username
	grace := graceOtherwise
	if t.Hand != nil && t.Hand.Phase == cards.PhaseInProgress {
		grace = graceInHand
	}
	t.broadcast(envelope(EventPlayerLeft, map[string]string{"username": username, "tableId": t.Id}))

	go func() {
		time.Sleep(grace)
		_ = t.do(func(tb *Table) error { return tb.expireDisconnectedSeatLocked(username) })
	}()
	return nil
}

// expireDisconnectedSeatLocked removes a seat that never reconnected
// within its grace period, the same path a voluntary leave takes.
func (t *Table) expireDisconnectedSeatLocked(username string) error {
	for i, s := range t.Seats {
		if s.Username == username && s.Status == cards.SeatDisconnected {
			t.Seats[i].Status = cards.SeatLeft
			humans := 0
			for _, s2 := range t.activeSeats() {
				if s2.IsHuman {
					humans++
				}
			}
			if humans == 0 {
				t.Hand = nil
				t.State = StateWaiting
			}
			if t.notify != nil {
				t.notify()
			}
			return nil
		}
	}
	return nil
}

func (t *Table) handleReconnect(conn *Connection) error {
	for i, s := range t.Seats {
		if s.Username == conn.UserId && s.Status == cards.SeatDisconnected {
			t.Seats[i].Status = cards.SeatActive
			t.Seats[i].ConnId = conn.Id
			if t.Hand != nil && i < len(t.Hand.Seats) {
				t.Hand.Seats[i].Status = cards.SeatActive
			}
			t.conns[conn.Id] = conn
			t.broadcast(envelope(EventPlayerReconnected, map[string]string{"username": conn.UserId, "tableId": t.Id}))
			if t.Hand != nil {
				conn.Send(envelope(EventStateSync, buildView(t.Id, t.Seats, *t.Hand, conn.UserId)))
			}
			return nil
		}
	}
	conn.Send(envelope(EventError, ErrorPayload{Code: "no_disconnected_seat", Message: "nothing to reconnect"}))
	return nil
}

func (t *Table) handleJoinSpectator(conn *Connection) error {
	t.conns[conn.Id] = conn
	t.Spectators = append(t.Spectators, Spectator{Username: conn.UserId, ConnId: conn.Id})
	conn.Send(envelope(EventSpectatorModeActive, map[string]string{"tableId": t.Id}))
	if t.Hand != nil {
		conn.Send(envelope(EventStateSync, buildView(t.Id, t.Seats, *t.Hand, "")))
	}
	return nil
}

func (t *Table) handleVerifyState(conn *Connection, hash uint64) error {
	if t.Hand == nil {
		return nil
	}
	if hash != t.Hand.StateHash {
		viewer := ""
		if idx := t.seatIndexByConn(conn.Id); idx >= 0 {
			viewer = t.Seats[idx].Username
		}
		conn.Send(envelope(EventStateReconciled, buildView(t.Id, t.Seats, *t.Hand, viewer)))
	}
	return nil
}

func (t *Table) handleRequestStateSync(conn *Connection, limiterAllow bool) error {
	if !limiterAllow {
		return nil
	}
	if t.Hand == nil {
		return nil
	}
	viewer := ""
	if idx := t.seatIndexByConn(conn.Id); idx >= 0 {
		viewer = t.Seats[idx].Username
	}
	conn.Send(envelope(EventStateSync, buildView(t.Id, t.Seats, *t.Hand, viewer)))
	return nil
}
