package eventbus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"tonkserver/common/log"
)

// Subjects used for the cross-component glue described by the
// matchmaker's event-driven wakeups and the ledger's operator-visible
// failure notices. Both are published in addition to the in-process
// channel paths (matchmaker.Manager.Trigger, common/log) that already
// handle same-process delivery, so an external subscriber (a
// dashboard, a second matchmaker replica) can observe the same events
// without tailing logs or running inside this process.
const (
	SubjectQueueActivity  = "tonk.queue.activity"
	SubjectLedgerFailures = "tonk.ledger.failures"
)

// Bus wraps a NATS connection for the handful of fire-and-forget
// notifications the server publishes. It is deliberately thin: every
// publish is best-effort, since nothing in the server blocks waiting
// for a NATS round trip.
type Bus struct {
	conn *nats.Conn
}

func Connect(url string) (*Bus, error) {
	conn, err := nats.Connect(url, nats.MaxReconnects(-1), nats.ReconnectWait(time.Second))
	if err != nil {
		return nil, err
	}
	return &Bus{conn: conn}, nil
}

func (b *Bus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	b.conn.Close()
}

// QueueActivityEvent fires when a player joins a stake's queue
// ("enqueued") or leaves it via leave_queue ("left"), so an external
// matchmaker replica (or a monitoring subscriber) can observe queue
// pressure per stake without polling Redis directly. Dequeues and
// disconnects publish nothing.
type QueueActivityEvent struct {
	Stake int64  `json:"stake"`
	Kind  string `json:"kind"` // "enqueued" | "left"
}

func (b *Bus) PublishQueueActivity(stake int64, kind string) {
	b.publish(SubjectQueueActivity, QueueActivityEvent{Stake: stake, Kind: kind})
}

// LedgerFailureEvent fires whenever a hand-end payout or stake
// deduction fails, so operator tooling can page without tailing logs.
type LedgerFailureEvent struct {
	TableId string `json:"tableId"`
	GameId  string `json:"gameId"`
	Reason  string `json:"reason"`
}

func (b *Bus) PublishLedgerFailure(tableId, gameId, reason string) {
	b.publish(SubjectLedgerFailures, LedgerFailureEvent{TableId: tableId, GameId: gameId, Reason: reason})
}

func (b *Bus) publish(subject string, payload any) {
	if b == nil || b.conn == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error("eventbus: marshal for subject %s failed: %v", subject, err)
		return
	}
	if err := b.conn.Publish(subject, data); err != nil {
		log.Warn("eventbus: publish to %s failed: %v", subject, err)
	}
}

// SubscribeQueueActivity lets a matchmaker wake on queue events
// published by another process in the same NATS cluster. Within this
// single monolith, session.Manager also calls matchmaker.Manager.Trigger
// directly for lower latency; this subscription exists for multi-instance
// deployments where that direct call isn't available.
func (b *Bus) SubscribeQueueActivity(handler func(stake int64)) error {
	if b == nil || b.conn == nil {
		return nil
	}
	_, err := b.conn.Subscribe(SubjectQueueActivity, func(msg *nats.Msg) {
		var ev QueueActivityEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Warn("eventbus: malformed queue activity event: %v", err)
			return
		}
		handler(ev.Stake)
	})
	return err
}
