package cards

// ActionType enumerates every move apply() understands.
type ActionType int

const (
	DrawStock ActionType = iota
	DrawDiscard
	Discard
	SpreadDown
	Hit
	Drop
	DeclareSpecialWin
)

// Action is the single input to apply besides the current State.
// Only the fields relevant to Type are meaningful; apply ignores the
// rest.
type Action struct {
	Type ActionType
	Seat int

	// Discard: index into the acting seat's hand.
	DiscardIndex int

	// SpreadDown: indices into the acting seat's hand forming the
	// spread, in the order they should be laid.
	SpreadIndices []int

	// Hit: HandIndex is the card in the acting seat's hand; TargetSeat
	// and SpreadIndex locate the spread being extended.
	HandIndex   int
	TargetSeat  int
	SpreadIndex int
}

// isContiguousRun reports whether the given ranks, taken as a set,
// form one unbroken window of the closed rank order (no wrap, no
// duplicates).
func isContiguousRun(ranks []Rank) bool {
	if len(ranks) == 0 {
		return false
	}
	idxs := make([]int, len(ranks))
	seen := make(map[int]bool, len(ranks))
	for i, r := range ranks {
		idx := r.Index()
		if idx < 0 || seen[idx] {
			return false
		}
		seen[idx] = true
		idxs[i] = idx
	}
	min, max := idxs[0], idxs[0]
	for _, v := range idxs {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max-min+1 == len(idxs)
}

// IsValidSpread reports whether cards forms a legal spread: same
// rank (size >= 3), or same suit with ranks forming a contiguous,
// non-wrapping run (size >= 3).
func IsValidSpread(cards []Card) bool {
	if len(cards) < 3 {
		return false
	}
	sameRank := true
	for _, c := range cards[1:] {
		if c.Rank != cards[0].Rank {
			sameRank = false
			break
		}
	}
	if sameRank {
		return true
	}

	sameSuit := true
	ranks := make([]Rank, len(cards))
	for i, c := range cards {
		if c.Suit != cards[0].Suit {
			sameSuit = false
			break
		}
		ranks[i] = c.Rank
	}
	if !sameSuit {
		return false
	}
	return isContiguousRun(ranks)
}

// CanExtendSpread reports whether card may legally be added to
// spread: matching rank on a same-rank spread, or matching suit with
// the resulting rank set still a contiguous window on a suited run.
func CanExtendSpread(spread Spread, card Card) bool {
	if len(spread) == 0 {
		return false
	}
	sameRank := true
	for _, c := range spread {
		if c.Rank != spread[0].Rank {
			sameRank = false
			break
		}
	}
	if sameRank {
		return card.Rank == spread[0].Rank
	}

	for _, c := range spread {
		if c.Suit != card.Suit {
			return false
		}
	}
	ranks := make([]Rank, 0, len(spread)+1)
	for _, c := range spread {
		ranks = append(ranks, c.Rank)
	}
	ranks = append(ranks, card.Rank)
	return isContiguousRun(ranks)
}
