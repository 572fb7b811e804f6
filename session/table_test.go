package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tonkserver/cards"
)

// TestSettleLockedPromotesWillJoinSpectators exercises the hand-end
// promotion pass: spectators earmarked WillJoinNextHand take the
// table's free chairs in join order once the hand settles, while a
// plain spectator stays put.
func TestSettleLockedPromotesWillJoinSpectators(t *testing.T) {
	tb := NewTable("t1", 100, nil, nil, nil)
	defer tb.Close()

	require.NoError(t, tb.do(func(table *Table) error {
		table.Seats = []Seat{{Username: "bot-1", IsHuman: false, Status: cards.SeatActive}}
		table.Spectators = []Spectator{
			{Username: "alice", WillJoinNextHand: true},
			{Username: "bob", WillJoinNextHand: true},
			{Username: "carol", WillJoinNextHand: false},
		}
		table.Hand = &cards.State{
			Phase:   cards.PhaseOver,
			Outcome: cards.Outcome{WinType: cards.NoWin, Winners: []int{0}},
		}
		return nil
	}))

	require.NoError(t, tb.do(func(table *Table) error { return table.settleLocked() }))

	var seats []Seat
	var spectators []Spectator
	require.NoError(t, tb.do(func(table *Table) error {
		seats = append([]Seat(nil), table.Seats...)
		spectators = append([]Spectator(nil), table.Spectators...)
		return nil
	}))

	require.Len(t, seats, 3)
	require.Equal(t, "alice", seats[1].Username)
	require.True(t, seats[1].IsHuman)
	require.Equal(t, "bob", seats[2].Username)
	require.True(t, seats[2].IsHuman)

	require.Len(t, spectators, 1)
	require.Equal(t, "carol", spectators[0].Username)
}

// TestSettleLockedStopsPromotingOnceFull checks the free-chair count
// is respected: with only one open chair, a single WillJoinNextHand
// spectator is promoted and the rest keep waiting.
func TestSettleLockedStopsPromotingOnceFull(t *testing.T) {
	tb := NewTable("t2", 100, nil, nil, nil)
	defer tb.Close()

	require.NoError(t, tb.do(func(table *Table) error {
		table.Seats = []Seat{
			{Username: "p1", IsHuman: true, Status: cards.SeatActive},
			{Username: "p2", IsHuman: true, Status: cards.SeatActive},
			{Username: "bot-1", IsHuman: false, Status: cards.SeatActive},
		}
		table.Spectators = []Spectator{
			{Username: "alice", WillJoinNextHand: true},
			{Username: "bob", WillJoinNextHand: true},
		}
		table.Hand = &cards.State{
			Phase:   cards.PhaseOver,
			Outcome: cards.Outcome{WinType: cards.NoWin, Winners: []int{2}},
		}
		return nil
	}))

	require.NoError(t, tb.do(func(table *Table) error { return table.settleLocked() }))

	var seats []Seat
	var spectators []Spectator
	require.NoError(t, tb.do(func(table *Table) error {
		seats = append([]Seat(nil), table.Seats...)
		spectators = append([]Spectator(nil), table.Spectators...)
		return nil
	}))

	require.Len(t, seats, 4)
	require.Equal(t, "alice", seats[3].Username)
	require.Len(t, spectators, 1)
	require.Equal(t, "bob", spectators[0].Username)
}
