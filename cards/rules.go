package cards

import "fmt"

// ApplyError reports a rejected action: an illegal move given the
// current state and malformed Action indices both come back as this one
// type. The session layer maps it to turn_validation_error and leaves
// state untouched, since apply never mutates its input.
type ApplyError struct {
	Reason string
}

func (e *ApplyError) Error() string { return e.Reason }

func reject(format string, args ...any) (State, error) {
	return State{}, &ApplyError{Reason: fmt.Sprintf(format, args...)}
}

// Apply advances s by one action and returns the resulting state.
// It never mutates s: every returned slice is freshly built. Calling
// Apply twice with equal (s, a) yields equal outputs, since the only
// randomness in this package (Deal's shuffle) never runs here.
func Apply(s State, a Action) (State, error) {
	if s.Phase != PhaseInProgress {
		return reject("hand is not in progress")
	}
	if a.Seat != s.Turn {
		return reject("seat %d acted out of turn (turn=%d)", a.Seat, s.Turn)
	}
	if a.Seat < 0 || a.Seat >= len(s.Seats) {
		return reject("seat %d out of range", a.Seat)
	}

	next := s.clone()

	switch a.Type {
	case DrawStock:
		return applyDrawStock(next)
	case DrawDiscard:
		return applyDrawDiscard(next)
	case Discard:
		return applyDiscard(next, a)
	case SpreadDown:
		return applySpread(next, a)
	case Hit:
		return applyHit(next, a)
	case Drop:
		return applyDrop(next)
	case DeclareSpecialWin:
		return applyDeclareSpecialWin(next)
	default:
		return reject("unknown action type %d", a.Type)
	}
}

func applyDrawStock(s State) (State, error) {
	if s.HasDrawn {
		return reject("already drew this turn")
	}
	if len(s.Stock) == 0 {
		return reject("stock is empty")
	}
	card := s.Stock[len(s.Stock)-1]
	s.Stock = s.Stock[:len(s.Stock)-1]
	s.Hands[s.Turn] = append(s.Hands[s.Turn], card)
	s.HasDrawn = true
	return finalize(s)
}

func applyDrawDiscard(s State) (State, error) {
	if s.HasDrawn {
		return reject("already drew this turn")
	}
	if len(s.Discard) == 0 {
		return reject("discard pile is empty")
	}
	card := s.Discard[len(s.Discard)-1]
	s.Discard = s.Discard[:len(s.Discard)-1]
	s.Hands[s.Turn] = append(s.Hands[s.Turn], card)
	s.HasDrawn = true
	return finalize(s)
}

func applyDiscard(s State, a Action) (State, error) {
	hand := s.Hands[s.Turn]
	if len(hand) == 0 {
		return reject("hand is empty")
	}
	if a.DiscardIndex < 0 || a.DiscardIndex >= len(hand) {
		return reject("discard index %d out of range", a.DiscardIndex)
	}

	card := hand[a.DiscardIndex]
	newHand := append([]Card(nil), hand[:a.DiscardIndex]...)
	newHand = append(newHand, hand[a.DiscardIndex+1:]...)
	s.Hands[s.Turn] = newHand
	s.Discard = append(s.Discard, card)

	s.HasDrawn = false

	if len(newHand) == 0 {
		return terminate(s, RegularWin, minScoreWinners(s), nil, false, 0)
	}
	if len(s.Stock) == 0 {
		return terminate(s, StockEmpty, minScoreWinners(s), nil, false, 0)
	}

	s.Turn = (s.Turn + 1) % len(s.Seats)
	decrementPenalty(&s, s.Turn)
	return finalize(s)
}

func applySpread(s State, a Action) (State, error) {
	if !s.HasDrawn {
		return reject("must draw before spreading")
	}
	hand := s.Hands[s.Turn]
	cards := make([]Card, len(a.SpreadIndices))
	seen := map[int]bool{}
	for i, idx := range a.SpreadIndices {
		if idx < 0 || idx >= len(hand) || seen[idx] {
			return reject("spread index %d invalid", idx)
		}
		seen[idx] = true
		cards[i] = hand[idx]
	}
	if !IsValidSpread(cards) {
		return reject("cards do not form a valid spread")
	}

	remaining := make([]Card, 0, len(hand)-len(cards))
	for i, c := range hand {
		if !seen[i] {
			remaining = append(remaining, c)
		}
	}
	s.Hands[s.Turn] = remaining
	s.Spreads[s.Turn] = append(s.Spreads[s.Turn], Spread(cards))

	if len(s.Spreads[s.Turn]) >= 2 {
		return terminate(s, Reem, []int{s.Turn}, nil, false, 0)
	}
	return finalize(s)
}

func applyHit(s State, a Action) (State, error) {
	if !s.HasDrawn {
		return reject("must draw before hitting")
	}
	hand := s.Hands[s.Turn]
	if a.HandIndex < 0 || a.HandIndex >= len(hand) {
		return reject("hand index %d invalid", a.HandIndex)
	}
	if a.TargetSeat < 0 || a.TargetSeat >= len(s.Seats) {
		return reject("target seat %d invalid", a.TargetSeat)
	}
	targetSpreads := s.Spreads[a.TargetSeat]
	if a.SpreadIndex < 0 || a.SpreadIndex >= len(targetSpreads) {
		return reject("spread index %d invalid", a.SpreadIndex)
	}

	card := hand[a.HandIndex]
	spread := targetSpreads[a.SpreadIndex]
	if !CanExtendSpread(spread, card) {
		return reject("card %s cannot extend that spread", card)
	}

	newHand := append([]Card(nil), hand[:a.HandIndex]...)
	newHand = append(newHand, hand[a.HandIndex+1:]...)
	s.Hands[s.Turn] = newHand

	newSpread := append(Spread(nil), spread...)
	newSpread = append(newSpread, card)
	newSpreads := append([]Spread(nil), targetSpreads...)
	newSpreads[a.SpreadIndex] = newSpread
	s.Spreads[a.TargetSeat] = newSpreads

	target := &s.Seats[a.TargetSeat]
	target.HitCount++
	if target.HitCount == 1 {
		target.HitPenaltyRounds = 2
	} else {
		target.HitPenaltyRounds = 1
	}

	s.HasDrawn = false
	s.Turn = (s.Turn + 1) % len(s.Seats)
	decrementPenalty(&s, s.Turn)

	return finalize(s)
}

func applyDrop(s State) (State, error) {
	seat := &s.Seats[s.Turn]
	if seat.HitPenaltyRounds > 0 {
		return reject("seat %d cannot drop while penalised", s.Turn)
	}

	winners := minScoreWinners(s)
	dropperScore := Score(s.Hands[s.Turn])
	minScore := Score(s.Hands[winners[0]])

	if dropperScore <= minScore {
		return terminate(s, DropWin, []int{s.Turn}, nil, false, 0)
	}
	return terminate(s, DropCaught, winners, nil, true, s.Turn)
}

func applyDeclareSpecialWin(s State) (State, error) {
	score := Score(s.Hands[s.Turn])
	if score != 41 && score > 10 {
		return reject("score %d does not qualify for special win", score)
	}
	return terminate(s, SpecialWin, []int{s.Turn}, nil, false, 0)
}

// decrementPenalty reduces the new acting seat's hit penalty by one
// at the start of its turn.
func decrementPenalty(s *State, seatIdx int) {
	seat := &s.Seats[seatIdx]
	if seat.HitPenaltyRounds > 0 {
		seat.HitPenaltyRounds--
	}
}

func minScoreWinners(s State) []int {
	best := -1
	winners := []int{}
	for i, hand := range s.Hands {
		if s.Seats[i].Status == SeatLeft {
			continue
		}
		score := Score(hand)
		if best == -1 || score < best {
			best = score
			winners = []int{i}
		} else if score == best {
			winners = append(winners, i)
		}
	}
	return winners
}

func terminate(s State, wt WinType, winners []int, roundScores []int, dropped bool, dropSeat int) (State, error) {
	if roundScores == nil {
		roundScores = make([]int, len(s.Hands))
		for i, h := range s.Hands {
			roundScores[i] = Score(h)
		}
	}
	s.Phase = PhaseOver
	s.Outcome = Outcome{
		WinType:     wt,
		Winners:     winners,
		RoundScores: roundScores,
		DroppedSeat: dropSeat,
		HasDropped:  dropped,
	}
	return finalize(s)
}

func finalize(s State) (State, error) {
	s.StateHash = Hash(s)
	return s, nil
}
