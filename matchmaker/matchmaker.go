package matchmaker

import (
	"context"
	"fmt"
	"time"

	"tonkserver/common/log"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Dequeuer is the subset of the Queue Manager the Matchmaker needs,
// narrowed to an interface so tests can stub it without Redis.
type Dequeuer interface {
	Dequeue(ctx context.Context, stake int64) (username string, ok bool, err error)
	QueueDepth(ctx context.Context, stake int64) (int, error)
}

const (
	runInterval = 10 * time.Second
)

// Manager is the Matchmaker (C5): a periodic and event-triggered
// per-stake run loop that fills tables from the queue, inserts/evicts
// filler bots, and resolves mid-hand transitions.
type Manager struct {
	host        TableHost
	queue       Dequeuer
	locks       *stakeLocks
	stakeLadder []int64
	triggers    chan int64
	done        chan struct{}
}

func NewManager(host TableHost, queue Dequeuer, etcdClient *clientv3.Client, stakeLadder []int64) *Manager {
	return &Manager{
		host:        host,
		queue:       queue,
		locks:       newStakeLocks(etcdClient),
		stakeLadder: stakeLadder,
		triggers:    make(chan int64, 256),
		done:        make(chan struct{}),
	}
}

// Trigger wakes the matchmaker for one stake immediately, in addition
// to its regular timer tick. Called on enqueue/dequeue/disconnect.
func (m *Manager) Trigger(stake int64) {
	select {
	case m.triggers <- stake:
	default:
		log.Warn("matchmaker trigger queue full, dropping stake %d wakeup", stake)
	}
}

// Run blocks until ctx is cancelled, ticking every runInterval and
// draining Trigger wakeups in between.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(runInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(m.done)
			return
		case <-ticker.C:
			for _, stake := range m.stakeLadder {
				m.runStakeSafely(ctx, stake)
			}
		case stake := <-m.triggers:
			m.runStakeSafely(ctx, stake)
		}
	}
}

func (m *Manager) runStakeSafely(ctx context.Context, stake int64) {
	if err := m.runStake(ctx, stake); err != nil {
		log.Error("matchmaker run failed for stake %d: %v", stake, err)
	}
}

func (m *Manager) runStake(ctx context.Context, stake int64) error {
	lock, err := m.locks.acquire(ctx, stake)
	if err != nil {
		return err
	}
	defer release(ctx, lock)

	tables := m.host.TablesForStake(stake)
	allFull := len(tables) > 0
	for _, view := range tables {
		if err := m.runTable(ctx, view); err != nil {
			return fmt.Errorf("table %s: %w", view.TableId, err)
		}
		refreshed := m.host.TablesForStake(stake)
		if !tableStillFull(refreshed, view.TableId) {
			allFull = false
		}
	}

	if allFull {
		depth, err := m.queue.QueueDepth(ctx, stake)
		if err != nil {
			return fmt.Errorf("checking queue depth for stake %d: %w", stake, err)
		}
		if depth > 0 {
			tableId, err := m.host.CreateOverflowTable(stake)
			if err != nil {
				return fmt.Errorf("overflow table for stake %d: %w", stake, err)
			}
			if err := m.runTable(ctx, TableView{TableId: tableId, Stake: stake}); err != nil {
				return fmt.Errorf("overflow table %s: %w", tableId, err)
			}
		}
	}
	return nil
}

func tableStillFull(views []TableView, tableId string) bool {
	for _, v := range views {
		if v.TableId == tableId {
			return v.Full()
		}
	}
	return true
}

// runTable executes the per-table algorithm from a fresh snapshot,
// re-deriving seat/bot counts locally as it applies each decision so
// it never needs to re-query the host mid-run.
func (m *Manager) runTable(ctx context.Context, view TableView) error {
	if view.HasPendingTransition {
		resolved, err := m.host.ResolveTransition(view.TableId)
		if err != nil {
			return err
		}
		if resolved {
			view.HasPendingTransition = false
		}
	}

	for !view.HasPendingTransition && view.SeatCount < MaxSeatsPerTable {
		username, ok, err := m.queue.Dequeue(ctx, view.Stake)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		if view.HandInProgress && view.BotCount > 0 {
			if err := m.host.BeginTransition(view.TableId, username); err != nil {
				return err
			}
			view.HasPendingTransition = true
			break
		}

		if err := m.host.SeatPlayer(view.TableId, username); err != nil {
			return err
		}
		view.SeatCount++
		view.HumanCount++
	}

	if view.HumanCount == 1 && view.BotCount == 0 && !view.HandInProgress {
		if err := m.host.AddBot(view.TableId); err != nil {
			return err
		}
		view.BotCount++
		view.SeatCount++
		if err := m.host.StartCountdown(view.TableId); err != nil {
			return err
		}
	}

	if view.HumanCount >= 2 && view.BotCount > 1 {
		for view.BotCount > 0 {
			if err := m.host.EvictBot(view.TableId); err != nil {
				return err
			}
			view.BotCount--
			view.SeatCount--
		}
	}
	return nil
}
