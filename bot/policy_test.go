package bot

import (
	"testing"

	"tonkserver/cards"

	"github.com/stretchr/testify/require"
)

func baseState() cards.State {
	return cards.State{
		Seats:   []cards.Seat{{Username: "bot"}, {Username: "human"}},
		Hands:   [][]cards.Card{{}, {}},
		Spreads: [][]cards.Spread{{}, {}},
		Turn:    0,
		Phase:   cards.PhaseInProgress,
	}
}

func TestDecideDrawsStockWithNoSpreads(t *testing.T) {
	s := baseState()
	s.Hands[0] = []cards.Card{{Rank: cards.Two, Suit: cards.Hearts}}
	s.Discard = []cards.Card{{Rank: cards.Three, Suit: cards.Hearts}}
	a := Decide(s)
	require.Equal(t, cards.DrawStock, a.Type)
}

func TestDecideSpreadsWhenPossible(t *testing.T) {
	s := baseState()
	s.Hands[0] = []cards.Card{
		{Rank: cards.Two, Suit: cards.Hearts},
		{Rank: cards.Two, Suit: cards.Diamonds},
		{Rank: cards.Two, Suit: cards.Clubs},
		{Rank: cards.King, Suit: cards.Spades},
	}
	s.HasDrawn = true
	a := Decide(s)
	require.Equal(t, cards.SpreadDown, a.Type)
	require.ElementsMatch(t, []int{0, 1, 2}, a.SpreadIndices)
}

func TestDecideDropsOnLowScore(t *testing.T) {
	s := baseState()
	s.Hands[0] = []cards.Card{{Rank: cards.Two, Suit: cards.Hearts}, {Rank: cards.Three, Suit: cards.Diamonds}}
	s.HasDrawn = true
	a := Decide(s)
	require.Equal(t, cards.Drop, a.Type)
}

func TestDecideDiscardsHighestValue(t *testing.T) {
	s := baseState()
	s.Hands[0] = []cards.Card{
		{Rank: cards.King, Suit: cards.Hearts},
		{Rank: cards.Seven, Suit: cards.Hearts},
		{Rank: cards.Ace, Suit: cards.Clubs},
	}
	s.Seats[0].HitPenaltyRounds = 1 // blocked from dropping
	s.HasDrawn = true
	a := Decide(s)
	require.Equal(t, cards.Discard, a.Type)
	require.Equal(t, 0, a.DiscardIndex)
}
