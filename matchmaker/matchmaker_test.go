package matchmaker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeHost records every mutation the Matchmaker asks for against an
// in-memory table set, so the per-table algorithm can be exercised
// without a live Session Manager.
type fakeHost struct {
	tables      map[string]*TableView
	seated      []string
	transitions []string
	botsAdded   int
	botsEvicted int
	countdowns  int
	overflowId  string
}

func newFakeHost(views ...TableView) *fakeHost {
	m := make(map[string]*TableView)
	for i := range views {
		v := views[i]
		m[v.TableId] = &v
	}
	return &fakeHost{tables: m}
}

func (f *fakeHost) TablesForStake(stake int64) []TableView {
	out := make([]TableView, 0, len(f.tables))
	for _, v := range f.tables {
		if v.Stake == stake {
			out = append(out, *v)
		}
	}
	return out
}

func (f *fakeHost) ResolveTransition(tableId string) (bool, error) {
	f.tables[tableId].HasPendingTransition = false
	return true, nil
}

func (f *fakeHost) SeatPlayer(tableId, username string) error {
	f.seated = append(f.seated, username)
	t := f.tables[tableId]
	t.SeatCount++
	t.HumanCount++
	return nil
}

func (f *fakeHost) BeginTransition(tableId, username string) error {
	f.transitions = append(f.transitions, username)
	f.tables[tableId].HasPendingTransition = true
	return nil
}

func (f *fakeHost) AddBot(tableId string) error {
	f.botsAdded++
	t := f.tables[tableId]
	t.BotCount++
	t.SeatCount++
	return nil
}

func (f *fakeHost) EvictBot(tableId string) error {
	f.botsEvicted++
	t := f.tables[tableId]
	t.BotCount--
	t.SeatCount--
	return nil
}

func (f *fakeHost) StartCountdown(tableId string) error {
	f.countdowns++
	return nil
}

func (f *fakeHost) CreateOverflowTable(stake int64) (string, error) {
	f.overflowId = "overflow-1"
	v := TableView{TableId: f.overflowId, Stake: stake}
	f.tables[f.overflowId] = &v
	return f.overflowId, nil
}

type fakeDequeuer struct {
	byStake map[int64][]string
}

func (f *fakeDequeuer) Dequeue(ctx context.Context, stake int64) (string, bool, error) {
	q := f.byStake[stake]
	if len(q) == 0 {
		return "", false, nil
	}
	f.byStake[stake] = q[1:]
	return q[0], true, nil
}

func (f *fakeDequeuer) QueueDepth(ctx context.Context, stake int64) (int, error) {
	return len(f.byStake[stake]), nil
}

func newManager(host TableHost, dq Dequeuer) *Manager {
	return NewManager(host, dq, nil, []int64{100})
}

func TestRunTableSeatsFromQueueUntilFull(t *testing.T) {
	host := newFakeHost(TableView{TableId: "t1", Stake: 100, SeatCount: 0})
	dq := &fakeDequeuer{byStake: map[int64][]string{100: {"alice", "bob"}}}
	m := newManager(host, dq)

	require.NoError(t, m.runStake(context.Background(), 100))
	require.ElementsMatch(t, []string{"alice", "bob"}, host.seated)
}

func TestRunTableAddsBotForLoneHuman(t *testing.T) {
	host := newFakeHost(TableView{TableId: "t1", Stake: 100, SeatCount: 1, HumanCount: 1})
	dq := &fakeDequeuer{byStake: map[int64][]string{}}
	m := newManager(host, dq)

	require.NoError(t, m.runStake(context.Background(), 100))
	require.Equal(t, 1, host.botsAdded)
	require.Equal(t, 1, host.countdowns)
}

func TestRunTableEvictsExcessBotsWithTwoHumans(t *testing.T) {
	host := newFakeHost(TableView{TableId: "t1", Stake: 100, SeatCount: 4, HumanCount: 2, BotCount: 2})
	dq := &fakeDequeuer{byStake: map[int64][]string{}}
	m := newManager(host, dq)

	require.NoError(t, m.runStake(context.Background(), 100))
	require.Equal(t, 2, host.botsEvicted)
}

func TestRunTableStartsTransitionWhenHandInProgressWithBot(t *testing.T) {
	host := newFakeHost(TableView{TableId: "t1", Stake: 100, SeatCount: 2, HumanCount: 1, BotCount: 1, HandInProgress: true})
	dq := &fakeDequeuer{byStake: map[int64][]string{100: {"carol"}}}
	m := newManager(host, dq)

	require.NoError(t, m.runStake(context.Background(), 100))
	require.Equal(t, []string{"carol"}, host.transitions)
	require.True(t, host.tables["t1"].HasPendingTransition)
}

func TestRunStakeCreatesOverflowTableWhenAllFull(t *testing.T) {
	host := newFakeHost(TableView{TableId: "t1", Stake: 100, SeatCount: 4, HumanCount: 4})
	dq := &fakeDequeuer{byStake: map[int64][]string{100: {"dave"}}}
	m := newManager(host, dq)

	require.NoError(t, m.runStake(context.Background(), 100))
	require.Equal(t, "overflow-1", host.overflowId)
	require.Contains(t, host.seated, "dave")
}
