package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tonkserver/cards"
)

func fixtureHand() (seats []Seat, h cards.State) {
	seats = []Seat{
		{Username: "alice", IsHuman: true, Status: cards.SeatActive},
		{Username: "bob", IsHuman: true, Status: cards.SeatActive},
	}
	h = cards.State{
		Seats: []cards.Seat{
			{Username: "alice", IsHuman: true, Status: cards.SeatActive},
			{Username: "bob", IsHuman: true, Status: cards.SeatActive},
		},
		Hands: [][]cards.Card{
			{{Rank: cards.Ace, Suit: cards.Hearts}},
			{{Rank: cards.King, Suit: cards.Spades}},
		},
		Stock:   []cards.Card{{Rank: cards.Two, Suit: cards.Clubs}},
		Discard: []cards.Card{{Rank: cards.Five, Suit: cards.Diamonds}},
		Turn:    0,
		Phase:   cards.PhaseInProgress,
	}
	return
}

func TestBuildViewHidesOtherHands(t *testing.T) {
	seats, h := fixtureHand()
	view := buildView("t1", seats, h, "alice")

	require.False(t, view.Seats[0].Hand[0].Hidden)
	require.Equal(t, "A", view.Seats[0].Hand[0].Rank)

	require.True(t, view.Seats[1].Hand[0].Hidden)
	require.Equal(t, hiddenCard, view.Seats[1].Hand[0].Rank)
}

func TestBuildViewAlwaysHidesStockContents(t *testing.T) {
	seats, h := fixtureHand()
	view := buildView("t1", seats, h, "alice")

	require.Equal(t, 1, view.StockCount)
	require.Empty(t, view.Discard[0].Hidden)
}

func TestBuildViewWithRevealShowsEveryHand(t *testing.T) {
	seats, h := fixtureHand()
	view := buildViewWithReveal("t1", seats, h, "", true)

	require.False(t, view.Seats[0].Hand[0].Hidden)
	require.False(t, view.Seats[1].Hand[0].Hidden)
}

func TestBuildViewSpectatorSeesNoHands(t *testing.T) {
	seats, h := fixtureHand()
	view := buildView("t1", seats, h, "")

	require.True(t, view.Seats[0].Hand[0].Hidden)
	require.True(t, view.Seats[1].Hand[0].Hidden)
}

func TestPhaseStringAndSeatStatusString(t *testing.T) {
	require.Equal(t, "in_progress", phaseString(cards.PhaseInProgress))
	require.Equal(t, "over", phaseString(cards.PhaseOver))
	require.Equal(t, "active", seatStatusString(cards.SeatActive))
	require.Equal(t, "disconnected", seatStatusString(cards.SeatDisconnected))
	require.Equal(t, "left", seatStatusString(cards.SeatLeft))
}
