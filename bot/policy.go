package bot

import "tonkserver/cards"

// Decide returns the single action a bot should play from s, where
// the acting seat (s.Turn) is known by the caller to be non-human.
// The policy is fixed and stateless so that replays produce identical
// bot behaviour regardless of which process ran the hand.
func Decide(s cards.State) cards.Action {
	seat := s.Turn

	if !s.HasDrawn {
		return decideDraw(s, seat)
	}

	if idx := findLegalOwnSpread(s, seat); idx != nil {
		return cards.Action{Type: cards.SpreadDown, Seat: seat, SpreadIndices: idx}
	}

	if hit, ok := findLegalHit(s, seat); ok {
		return hit
	}

	if cards.Score(s.Hands[seat]) <= 5 && s.Seats[seat].HitPenaltyRounds == 0 {
		return cards.Action{Type: cards.Drop, Seat: seat}
	}

	return cards.Action{Type: cards.Discard, Seat: seat, DiscardIndex: highestValueIndex(s.Hands[seat])}
}

// decideDraw draws from the discard only when its top card would
// legally extend the bot's own first spread, otherwise from stock.
// This predicate is a bot-only heuristic, not a rule that restricts
// what a human may do with DRAW_DISCARD.
func decideDraw(s cards.State, seat int) cards.Action {
	if len(s.Discard) > 0 && len(s.Spreads[seat]) > 0 {
		top := s.Discard[len(s.Discard)-1]
		if cards.CanExtendSpread(s.Spreads[seat][0], top) {
			return cards.Action{Type: cards.DrawDiscard, Seat: seat}
		}
	}
	return cards.Action{Type: cards.DrawStock, Seat: seat}
}

// findLegalOwnSpread enumerates 3-card (then larger, same-rank or
// suited-run) combinations from the bot's hand in first-index order
// and returns the first that validates.
func findLegalOwnSpread(s cards.State, seat int) []int {
	hand := s.Hands[seat]
	n := len(hand)
	for size := 3; size <= n; size++ {
		idxs := make([]int, size)
		for i := range idxs {
			idxs[i] = i
		}
		if combo, ok := firstValidCombo(hand, idxs, size, n); ok {
			return combo
		}
	}
	return nil
}

// firstValidCombo walks combinations of the given size over [0,n) in
// lexicographic index order and returns the first whose cards form a
// valid spread.
func firstValidCombo(hand []cards.Card, idxs []int, size, n int) ([]int, bool) {
	for {
		combo := make([]cards.Card, size)
		for i, idx := range idxs {
			combo[i] = hand[idx]
		}
		if cards.IsValidSpread(combo) {
			return append([]int(nil), idxs...), true
		}
		if !advanceCombo(idxs, size, n) {
			return nil, false
		}
	}
}

func advanceCombo(idxs []int, size, n int) bool {
	i := size - 1
	for i >= 0 && idxs[i] == n-size+i {
		i--
	}
	if i < 0 {
		return false
	}
	idxs[i]++
	for j := i + 1; j < size; j++ {
		idxs[j] = idxs[j-1] + 1
	}
	return true
}

// findLegalHit enumerates the bot's own hand against every spread on
// the table (its own first, then other seats in seat order) and
// returns the first legal extension.
func findLegalHit(s cards.State, seat int) (cards.Action, bool) {
	hand := s.Hands[seat]
	for _, targetSeat := range seatOrderSelfFirst(seat, len(s.Seats)) {
		for spreadIdx, spread := range s.Spreads[targetSeat] {
			for handIdx, card := range hand {
				if cards.CanExtendSpread(spread, card) {
					return cards.Action{
						Type:        cards.Hit,
						Seat:        seat,
						HandIndex:   handIdx,
						TargetSeat:  targetSeat,
						SpreadIndex: spreadIdx,
					}, true
				}
			}
		}
	}
	return cards.Action{}, false
}

func seatOrderSelfFirst(self, n int) []int {
	order := make([]int, 0, n)
	order = append(order, self)
	for i := 0; i < n; i++ {
		if i != self {
			order = append(order, i)
		}
	}
	return order
}

func highestValueIndex(hand []cards.Card) int {
	best := 0
	bestValue := -1
	for i, c := range hand {
		v := c.Rank.Value()
		if v > bestValue {
			bestValue = v
			best = i
		}
	}
	return best
}
