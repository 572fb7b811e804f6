package session

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"tonkserver/bot"
	"tonkserver/cards"
	"tonkserver/common/log"
	"tonkserver/eventbus"
	"tonkserver/ledger"
	"tonkserver/matchmaker"

	"github.com/google/uuid"
)

const botTurnDelay = 800 * time.Millisecond
const countdownHandStart = 3 * time.Second
const countdownFirstBot = 2 * time.Second
const handCards = 5

type command struct {
	run  func(*Table) error
	done chan error
}

// Table is the single-actor owner of one table's seats, spectators,
// and in-progress hand. Every mutation runs inside the goroutine
// started by run(), serialized through cmds so no two goroutines ever
// touch a table's state concurrently.
type Table struct {
	Id    string
	Stake int64

	Seats      []Seat
	Spectators []Spectator
	State      TableState
	Hand       *cards.State
	Transition *Transition

	conns map[string]*Connection

	rng    *rand.Rand
	ledger *ledger.Ledger
	bus    *eventbus.Bus
	notify func() // wake the matchmaker for this table's stake

	cmds chan command
}

func NewTable(id string, stake int64, led *ledger.Ledger, bus *eventbus.Bus, notify func()) *Table {
	t := &Table{
		Id:     id,
		Stake:  stake,
		conns:  make(map[string]*Connection),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		ledger: led,
		bus:    bus,
		notify: notify,
		cmds:   make(chan command, 128),
	}
	go t.run()
	return t
}

func (t *Table) run() {
	for cmd := range t.cmds {
		cmd.done <- cmd.run(t)
	}
}

func (t *Table) Close() { close(t.cmds) }

func (t *Table) do(fn func(*Table) error) error {
	done := make(chan error, 1)
	select {
	case t.cmds <- command{run: fn, done: done}:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("table %s command queue full", t.Id)
	}
	return <-done
}

// currentStateHash reports the canonical hash of the in-progress hand,
// for the HTTP validate-state fallback clients use when they don't
// trust their own desync detection over the socket.
func (t *Table) currentStateHash() (uint64, bool) {
	var hash uint64
	var ok bool
	_ = t.do(func(tb *Table) error {
		if tb.Hand != nil {
			hash = tb.Hand.StateHash
			ok = true
		}
		return nil
	})
	return hash, ok
}

// --- matchmaker.TableHost-facing operations, always run via do() ---

func (t *Table) snapshot() matchmaker.TableView {
	var v matchmaker.TableView
	_ = t.do(func(tb *Table) error {
		humans, bots := 0, 0
		for _, s := range tb.Seats {
			if s.Status == cards.SeatLeft {
				continue
			}
			if s.IsHuman {
				humans++
			} else {
				bots++
			}
		}
		v = matchmaker.TableView{
			TableId:              tb.Id,
			Stake:                tb.Stake,
			SeatCount:            humans + bots,
			HumanCount:           humans,
			BotCount:             bots,
			HandInProgress:       tb.Hand != nil && tb.Hand.Phase == cards.PhaseInProgress,
			HasPendingTransition: tb.Transition != nil,
		}
		return nil
	})
	return v
}

// seatPlayer seats username directly into an empty chair. conn may be
// nil if the caller doesn't have the live connection handy; the seat
// is then patched in on the player's next reconnect_player/message.
func (t *Table) seatPlayer(username string, conn *Connection) error {
	return t.do(func(tb *Table) error {
		if len(tb.activeSeats()) >= matchmaker.MaxSeatsPerTable {
			return fmt.Errorf("table %s is full", tb.Id)
		}
		connId := ""
		if conn != nil {
			connId = conn.Id
			tb.conns[conn.Id] = conn
		}
		tb.Seats = append(tb.Seats, Seat{Username: username, IsHuman: true, ConnId: connId, Status: cards.SeatActive})
		if tb.State == StateEmpty {
			tb.State = StateWaiting
		}
		tb.broadcast(envelope(EventPlayerJoined, map[string]string{"username": username, "tableId": tb.Id}))
		return nil
	})
}

func (t *Table) beginTransition(username string, conn *Connection) error {
	return t.do(func(tb *Table) error {
		if tb.Transition != nil {
			return fmt.Errorf("table %s already has a pending transition", tb.Id)
		}
		pendingSeat := -1
		for i, s := range tb.Seats {
			if !s.IsHuman {
				pendingSeat = i
				break
			}
		}
		if pendingSeat < 0 {
			return fmt.Errorf("table %s has no bot seat to earmark", tb.Id)
		}
		if conn != nil {
			tb.conns[conn.Id] = conn
		}
		transitionId := uuid.NewString()
		tb.Transition = &Transition{Id: transitionId, PendingSeat: pendingSeat, Username: username, StartedAt: time.Now()}
		tb.Spectators = append(tb.Spectators, Spectator{Username: username, ConnId: connIdOf(conn), TransitionId: transitionId, JoinedAt: time.Now()})
		tb.broadcast(envelope(EventTransitionInitiated, map[string]string{"tableId": tb.Id, "username": username}))

		go func() {
			time.Sleep(transitionTimeout)
			_ = t.do(func(tb *Table) error { return tb.expireTransitionLocked(transitionId) })
		}()
		return nil
	})
}

// expireTransitionLocked cancels a pending transition that never
// resolved within transitionTimeout, releasing the earmarked bot seat
// back to ordinary play and dropping the spectator's hold on it.
func (t *Table) expireTransitionLocked(transitionId string) error {
	if t.Transition == nil || t.Transition.Id != transitionId {
		return nil
	}
	username := t.Transition.Username
	t.Transition = nil
	for i, sp := range t.Spectators {
		if sp.TransitionId == transitionId {
			t.Spectators[i].TransitionId = ""
		}
	}
	t.broadcast(envelope(EventError, ErrorPayload{Code: "transition_expired", Message: username}))
	return nil
}

func connIdOf(conn *Connection) string {
	if conn == nil {
		return ""
	}
	return conn.Id
}

// hasConn reports whether conn is currently attached to this table,
// as either a seated player or a spectator.
func (t *Table) hasConn(connId string) bool {
	var found bool
	_ = t.do(func(tb *Table) error {
		_, found = tb.conns[connId]
		return nil
	})
	return found
}

func (t *Table) resolveTransition() (bool, error) {
	var resolved bool
	err := t.do(func(tb *Table) error {
		if tb.Transition == nil {
			return nil
		}
		if tb.Hand != nil && tb.Hand.Phase == cards.PhaseInProgress {
			return nil
		}
		seatIdx := tb.Transition.PendingSeat
		username := tb.Transition.Username
		if seatIdx < 0 || seatIdx >= len(tb.Seats) {
			tb.Transition = nil
			return nil
		}
		tb.Seats[seatIdx] = Seat{Username: username, IsHuman: true, Status: cards.SeatActive}
		tb.removeSpectator(username)
		tb.Transition = nil
		tb.broadcast(envelope(EventTransitionCompleted, map[string]string{"tableId": tb.Id, "username": username}))
		resolved = true
		return nil
	})
	return resolved, err
}

func (t *Table) addBot() error {
	return t.do(func(tb *Table) error {
		if len(tb.activeSeats()) >= matchmaker.MaxSeatsPerTable {
			return fmt.Errorf("table %s is full", tb.Id)
		}
		name := fmt.Sprintf("bot-%s", uuid.NewString()[:8])
		tb.Seats = append(tb.Seats, Seat{Username: name, IsHuman: false, Status: cards.SeatActive, Ready: true})
		tb.broadcast(envelope(EventPlayerJoined, map[string]string{"username": name, "tableId": tb.Id, "isBot": "true"}))
		return nil
	})
}

func (t *Table) evictBot() error {
	return t.do(func(tb *Table) error {
		for i, s := range tb.Seats {
			if !s.IsHuman && s.Status != cards.SeatLeft {
				tb.Seats[i].Status = cards.SeatLeft
				tb.broadcast(envelope(EventPlayerLeft, map[string]string{"username": s.Username, "tableId": tb.Id}))
				return nil
			}
		}
		return fmt.Errorf("table %s has no bot to evict", tb.Id)
	})
}

func (t *Table) startCountdown() error {
	return t.do(func(tb *Table) error {
		if tb.State != StateWaiting {
			return nil
		}
		tb.State = StateCountdown
		go func(tableId string) {
			time.Sleep(countdownFirstBot)
			_ = t.do(func(tb *Table) error { return tb.beginHandLocked() })
		}(tb.Id)
		return nil
	})
}

func (t *Table) activeSeats() []Seat {
	out := make([]Seat, 0, len(t.Seats))
	for _, s := range t.Seats {
		if s.Status != cards.SeatLeft {
			out = append(out, s)
		}
	}
	return out
}

func (t *Table) removeSpectator(username string) {
	out := t.Spectators[:0]
	for _, sp := range t.Spectators {
		if sp.Username != username {
			out = append(out, sp)
		}
	}
	t.Spectators = out
}

func (t *Table) broadcast(env Envelope) {
	for _, c := range t.conns {
		c.Send(env)
	}
}

// beginHandLocked deducts stakes and deals a new hand. Must only be
// called from within the actor (cmd.run), hence "Locked" by
// convention rather than an actual mutex.
func (t *Table) beginHandLocked() error {
	seats := t.activeSeats()
	if len(seats) < 2 {
		t.State = StateWaiting
		return nil
	}

	stakes := make([]ledger.SeatStake, 0, len(seats))
	for _, s := range seats {
		if s.IsHuman {
			stakes = append(stakes, ledger.SeatStake{UserId: s.Username})
		}
	}
	if len(stakes) > 0 {
		res, err := t.ledger.DeductStakes(context.Background(), stakes, t.Stake, t.Id)
		if err != nil || res.Failed {
			log.Error("table %s: deductStakes failed: %v", t.Id, err)
			t.bus.PublishLedgerFailure(t.Id, "", "deduct_stakes_failed")
			t.State = StateWaiting
			t.broadcast(envelope(EventError, ErrorPayload{Code: "ledger_failure", Message: "could not start hand"}))
			return nil
		}
	}

	handSeats := make([]cards.Seat, len(t.Seats))
	for i, s := range t.Seats {
		handSeats[i] = cards.Seat{Username: s.Username, IsHuman: s.IsHuman, Status: s.Status}
	}
	hand := cards.Deal(handSeats, t.Stake, t.rng)
	t.Hand = &hand
	t.State = StateInHand

	t.broadcastState()
	if hand.Phase == cards.PhaseOver {
		return t.settleLocked()
	}
	t.scheduleBotIfNeeded()
	return nil
}

func (t *Table) broadcastState() {
	if t.Hand == nil {
		return
	}
	for _, c := range t.conns {
		var viewer string
		for _, s := range t.Seats {
			if s.ConnId == c.Id {
				viewer = s.Username
			}
		}
		c.Send(envelope(EventGameUpdate, buildView(t.Id, t.Seats, *t.Hand, viewer)))
	}
}

// scheduleBotIfNeeded inspects the acting seat and, if it belongs to a
// bot, plays its turn after a short delay so the move is observable.
func (t *Table) scheduleBotIfNeeded() {
	if t.Hand == nil || t.Hand.Phase != cards.PhaseInProgress {
		return
	}
	if t.Hand.Turn < 0 || t.Hand.Turn >= len(t.Seats) {
		return
	}
	seat := t.Seats[t.Hand.Turn]
	if seat.IsHuman {
		return
	}
	go func() {
		time.Sleep(botTurnDelay)
		_ = t.do(func(tb *Table) error { return tb.playBotTurnLocked() })
	}()
}

func (t *Table) playBotTurnLocked() error {
	if t.Hand == nil || t.Hand.Phase != cards.PhaseInProgress {
		return nil
	}
	action := bot.Decide(*t.Hand)
	next, err := cards.Apply(*t.Hand, action)
	if err != nil {
		log.Error("table %s: bot turn aborted: %v", t.Id, err)
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

// settleLocked pays out via the ledger once a hand reaches "over" and
// resets the table to waiting for the next round.
func (t *Table) settleLocked() error {
	if t.Hand == nil {
		return nil
	}
	outcome := t.Hand.Outcome
	gameId := uuid.NewString()
	humanWinners := make([]ledger.SeatStake, 0, len(outcome.Winners))
	for _, idx := range outcome.Winners {
		if idx >= 0 && idx < len(t.Seats) && t.Seats[idx].IsHuman {
			humanWinners = append(humanWinners, ledger.SeatStake{UserId: t.Seats[idx].Username})
		}
	}
	if len(humanWinners) > 0 {
		seatCount := len(t.activeSeats())
		if _, err := t.ledger.DistributeWinnings(context.Background(), humanWinners, len(outcome.Winners), outcome.WinType.String(), t.Stake, seatCount, t.Id, gameId); err != nil {
			log.Error("table %s: distributeWinnings failed: %v", t.Id, err)
			t.bus.PublishLedgerFailure(t.Id, gameId, "distribute_winnings_failed")
		}
	}
	if outcome.HasDropped && outcome.WinType == cards.DropCaught {
		dropper := ledger.SeatStake{UserId: t.Seats[outcome.DroppedSeat].Username}
		dropScore := outcome.RoundScores[outcome.DroppedSeat]
		below := make([]ledger.SeatStake, 0)
		for idx, score := range outcome.RoundScores {
			if idx != outcome.DroppedSeat && score < dropScore && idx < len(t.Seats) && t.Seats[idx].IsHuman {
				below = append(below, ledger.SeatStake{UserId: t.Seats[idx].Username})
			}
		}
		if t.Seats[outcome.DroppedSeat].IsHuman && len(below) > 0 {
			if _, err := t.ledger.ApplyDropPenalty(context.Background(), dropper, below, t.Stake, t.Id, gameId); err != nil {
				log.Error("table %s: applyDropPenalty failed: %v", t.Id, err)
				t.bus.PublishLedgerFailure(t.Id, gameId, "drop_penalty_failed")
			}
		}
	}

	t.broadcast(envelope(EventGameOver, buildViewWithReveal(t.Id, t.Seats, *t.Hand, "", true)))

	if resolved, err := t.resolveTransitionLocked(); err != nil {
		log.Error("table %s: resolving transition at hand end: %v", t.Id, err)
	} else if resolved {
		t.broadcast(envelope(EventTransitionCompleted, map[string]string{"tableId": t.Id}))
	}
	t.promoteWaitingSpectatorsLocked()
	for i := range t.Seats {
		t.Seats[i].Ready = t.Seats[i].IsHuman == false
	}
	t.State = StateWaiting
	t.Hand = nil
	if t.notify != nil {
		t.notify()
	}
	return nil
}

// promoteWaitingSpectatorsLocked seats any spectator earmarked with
// WillJoinNextHand into a free chair now that the hand is over, in
// join order, stopping once the table is full.
func (t *Table) promoteWaitingSpectatorsLocked() {
	free := matchmaker.MaxSeatsPerTable - len(t.activeSeats())
	if free <= 0 {
		return
	}
	remaining := t.Spectators[:0]
	for _, sp := range t.Spectators {
		if free > 0 && sp.WillJoinNextHand {
			t.Seats = append(t.Seats, Seat{Username: sp.Username, IsHuman: true, ConnId: sp.ConnId, Status: cards.SeatActive})
			t.broadcast(envelope(EventPlayerJoined, map[string]string{"username": sp.Username, "tableId": t.Id}))
			free--
			continue
		}
		remaining = append(remaining, sp)
	}
	t.Spectators = remaining
}

// resolveTransitionLocked is the in-actor variant used right after a
// hand ends, where resolveTransition's own do() wrapper would deadlock.
func (t *Table) resolveTransitionLocked() (bool, error) {
	if t.Transition == nil {
		return false, nil
	}
	seatIdx := t.Transition.PendingSeat
	username := t.Transition.Username
	if seatIdx < 0 || seatIdx >= len(t.Seats) {
		t.Transition = nil
		return false, nil
	}
	t.Seats[seatIdx] = Seat{Username: username, IsHuman: true, Status: cards.SeatActive}
	t.removeSpectator(username)
	t.Transition = nil
	return true, nil
}
