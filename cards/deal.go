package cards

import "math/rand"

const cardsPerSeat = 5

// Deal shuffles a fresh 40-card deck with rng and deals cardsPerSeat
// cards to each seat in round-robin, returning the initial
// in-progress State. rng is caller-supplied so a fixed seed makes the
// deal reproducible, the only place this package touches randomness.
func Deal(seats []Seat, stake int64, rng *rand.Rand) State {
	deck := FullDeck()
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	hands := make([][]Card, len(seats))
	for i := range hands {
		hands[i] = make([]Card, 0, cardsPerSeat)
	}
	idx := 0
	for round := 0; round < cardsPerSeat; round++ {
		for seat := range seats {
			hands[seat] = append(hands[seat], deck[idx])
			idx++
		}
	}
	stock := append([]Card(nil), deck[idx:]...)

	spreads := make([][]Spread, len(seats))

	s := State{
		Seats:    append([]Seat(nil), seats...),
		Hands:    hands,
		Spreads:  spreads,
		Stock:    stock,
		Discard:  nil,
		Turn:     0,
		HasDrawn: false,
		Stake:    stake,
		Phase:    PhaseInProgress,
	}

	if seat, ok := detectImmediate50(s); ok {
		s.Phase = PhaseOver
		s.Outcome = Outcome{
			WinType:     Immediate50,
			Winners:     []int{seat},
			RoundScores: roundScoresOf(s),
		}
	}

	s.StateHash = Hash(s)
	return s
}

// detectImmediate50 is checked only at deal time: a seat dealt cards
// summing to exactly 50 wins outright before any action is taken.
func detectImmediate50(s State) (int, bool) {
	for i, hand := range s.Hands {
		if Score(hand) == 50 {
			return i, true
		}
	}
	return -1, false
}

func roundScoresOf(s State) []int {
	scores := make([]int, len(s.Hands))
	for i, h := range s.Hands {
		scores[i] = Score(h)
	}
	return scores
}
