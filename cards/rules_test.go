package cards

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func twoSeatState(stake int64) State {
	seats := []Seat{
		{Username: "a", IsHuman: true, Status: SeatActive},
		{Username: "b", IsHuman: true, Status: SeatActive},
	}
	return State{
		Seats:   seats,
		Hands:   [][]Card{{}, {}},
		Spreads: [][]Spread{{}, {}},
		Stock:   nil,
		Discard: nil,
		Turn:    0,
		Stake:   stake,
		Phase:   PhaseInProgress,
	}
}

func countCards(s State) int {
	n := len(s.Stock) + len(s.Discard)
	for _, h := range s.Hands {
		n += len(h)
	}
	for _, seatSpreads := range s.Spreads {
		for _, sp := range seatSpreads {
			n += len(sp)
		}
	}
	return n
}

func TestDealDeterministic(t *testing.T) {
	seats := []Seat{{Username: "a", IsHuman: true}, {Username: "b", IsHuman: true}}
	a := Deal(seats, 10, rand.New(rand.NewSource(42)))
	b := Deal(seats, 10, rand.New(rand.NewSource(42)))
	require.Equal(t, a.Hands, b.Hands)
	require.Equal(t, a.Stock, b.Stock)
	require.Equal(t, a.StateHash, b.StateHash)
}

func TestDealConservesCards(t *testing.T) {
	seats := []Seat{{Username: "a"}, {Username: "b"}, {Username: "c"}}
	s := Deal(seats, 5, rand.New(rand.NewSource(1)))
	require.Equal(t, 40, countCards(s))
}

func TestReemWin(t *testing.T) {
	s := twoSeatState(10)
	s.Hands[0] = []Card{{King, Spades}, {King, Hearts}, {King, Diamonds}, {Four, Clubs}, {Five, Clubs}}
	s.Hands[1] = []Card{{Two, Hearts}, {Three, Hearts}, {Four, Hearts}, {Five, Hearts}, {Six, Hearts}}
	s.Stock = []Card{{Three, Clubs}}
	s.StateHash = Hash(s)

	next, err := Apply(s, Action{Type: DrawStock, Seat: 0})
	require.NoError(t, err)
	require.True(t, next.HasDrawn)

	next, err = Apply(next, Action{Type: SpreadDown, Seat: 0, SpreadIndices: []int{0, 1, 2}})
	require.NoError(t, err)
	require.Equal(t, PhaseInProgress, next.Phase)

	next, err = Apply(next, Action{Type: SpreadDown, Seat: 0, SpreadIndices: []int{0, 1, 2}})
	require.NoError(t, err)
	require.Equal(t, PhaseOver, next.Phase)
	require.Equal(t, Reem, next.Outcome.WinType)
	require.Equal(t, []int{0}, next.Outcome.Winners)
}

func TestDrawStockRejectedWhenEmpty(t *testing.T) {
	s := twoSeatState(5)
	s.Hands[0] = []Card{{Two, Hearts}}
	_, err := Apply(s, Action{Type: DrawStock, Seat: 0})
	require.Error(t, err)
}

func TestDiscardEmptiesHandTriggersRegularWin(t *testing.T) {
	s := twoSeatState(5)
	s.Hands[0] = []Card{{Two, Hearts}}
	s.Hands[1] = []Card{{King, Hearts}, {Queen, Hearts}}
	s.Stock = []Card{{Three, Clubs}}
	s.HasDrawn = true

	next, err := Apply(s, Action{Type: Discard, Seat: 0, DiscardIndex: 0})
	require.NoError(t, err)
	require.Equal(t, PhaseOver, next.Phase)
	require.Equal(t, RegularWin, next.Outcome.WinType)
}

func TestDiscardWithEmptyStockTriggersStockEmpty(t *testing.T) {
	s := twoSeatState(5)
	s.Hands[0] = []Card{{Two, Hearts}, {Three, Hearts}}
	s.Hands[1] = []Card{{King, Hearts}}
	s.HasDrawn = true
	s.Stock = nil

	next, err := Apply(s, Action{Type: Discard, Seat: 0, DiscardIndex: 0})
	require.NoError(t, err)
	require.Equal(t, PhaseOver, next.Phase)
	require.Equal(t, StockEmpty, next.Outcome.WinType)
}

func TestDropRejectedWhilePenalised(t *testing.T) {
	s := twoSeatState(10)
	s.Seats[0].HitPenaltyRounds = 2
	s.Hands[0] = []Card{{Two, Hearts}}
	s.Hands[1] = []Card{{King, Hearts}}
	_, err := Apply(s, Action{Type: Drop, Seat: 0})
	require.Error(t, err)
}

func TestDropCaughtThreeSeats(t *testing.T) {
	seats := []Seat{{Username: "a"}, {Username: "b"}, {Username: "c"}}
	s := State{
		Seats:   seats,
		Hands:   [][]Card{{}, {}, {}},
		Spreads: [][]Spread{{}, {}, {}},
		Turn:    0,
		Stake:   10,
		Phase:   PhaseInProgress,
	}
	s.Hands[0] = []Card{{Six, Hearts}} // score 6
	s.Hands[1] = []Card{{Three, Hearts}} // score 3
	s.Hands[2] = []Card{{Four, Hearts}} // score 4

	next, err := Apply(s, Action{Type: Drop, Seat: 0})
	require.NoError(t, err)
	require.Equal(t, DropCaught, next.Outcome.WinType)
	require.Equal(t, []int{1}, next.Outcome.Winners)
	require.Equal(t, 0, next.Outcome.DroppedSeat)
}

func TestApplyIsPure(t *testing.T) {
	s := twoSeatState(5)
	s.Hands[0] = []Card{{Two, Hearts}}
	s.Hands[1] = []Card{{King, Hearts}}
	s.Stock = []Card{{Three, Clubs}}
	a := Action{Type: DrawStock, Seat: 0}

	r1, err1 := Apply(s, a)
	r2, err2 := Apply(s, a)
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Equal(t, r1, r2)
	// original input untouched
	require.Equal(t, 1, len(s.Hands[0]))
}

func TestHitPenaltyEscalatesAndDecrements(t *testing.T) {
	s := twoSeatState(5)
	s.Hands[0] = []Card{{Two, Spades}}
	s.Spreads[1] = []Spread{{{Two, Hearts}, {Two, Diamonds}, {Two, Clubs}}}
	s.HasDrawn = true

	next, err := Apply(s, Action{Type: Hit, Seat: 0, HandIndex: 0, TargetSeat: 1, SpreadIndex: 0})
	require.NoError(t, err)
	require.Equal(t, 1, next.Seats[1].HitCount)
	// target's penalty is set to 2, then decremented once since it is seat 1's turn now
	require.Equal(t, 1, next.Seats[1].HitPenaltyRounds)
}

func TestSpreadValidity(t *testing.T) {
	require.True(t, IsValidSpread([]Card{{Two, Hearts}, {Two, Diamonds}, {Two, Clubs}}))
	require.True(t, IsValidSpread([]Card{{Two, Hearts}, {Three, Hearts}, {Four, Hearts}}))
	require.False(t, IsValidSpread([]Card{{Two, Hearts}, {Four, Hearts}}))
	require.False(t, IsValidSpread([]Card{{King, Hearts}, {Ace, Hearts}, {Two, Hearts}})) // no wrap
}
