package session

import "tonkserver/cards"

// CardView mirrors cards.Card but lets rank/suit be hidden.
type CardView struct {
	Rank   string `json:"rank"`
	Suit   string `json:"suit"`
	Hidden bool   `json:"hidden,omitempty"`
}

const hiddenCard = "hidden"

func redactedCard() CardView {
	return CardView{Rank: hiddenCard, Suit: hiddenCard, Hidden: true}
}

func visibleCard(c cards.Card) CardView {
	return CardView{Rank: c.Rank.String(), Suit: c.Suit.String()}
}

func cardViews(hand []cards.Card, visible bool) []CardView {
	out := make([]CardView, len(hand))
	for i, c := range hand {
		if visible {
			out[i] = visibleCard(c)
		} else {
			out[i] = redactedCard()
		}
	}
	return out
}

func spreadViews(spreads []cards.Spread) [][]CardView {
	out := make([][]CardView, len(spreads))
	for i, sp := range spreads {
		out[i] = cardViews(sp, true)
	}
	return out
}

type SeatView struct {
	Username string     `json:"username"`
	IsHuman  bool       `json:"isHuman"`
	Status   string     `json:"status"`
	Hand     []CardView `json:"hand"`
	Spreads  [][]CardView `json:"spreads"`
}

// GameStateView is the outbound payload for game_update/state_sync/
// game_over/spectator views: hands belonging to anyone other than the
// viewer are redacted, and the stock is always hidden entirely.
type GameStateView struct {
	TableId      string     `json:"tableId"`
	Seats        []SeatView `json:"seats"`
	Discard      []CardView `json:"discard"`
	StockCount   int        `json:"stockCount"`
	Turn         int        `json:"turn"`
	HasDrawn     bool       `json:"hasDrawn"`
	Stake        int64      `json:"stake"`
	Phase        string     `json:"phase"`
	StateHash    uint64     `json:"stateHash"`
	WinType      string     `json:"winType,omitempty"`
	Winners      []int      `json:"winners,omitempty"`
	RoundScores  []int      `json:"roundScores,omitempty"`
}

// buildView renders hand h from viewerUsername's perspective: only
// their own cards (if seated) are shown, every other hand and the
// entire stock are redacted regardless of who is asking.
func buildView(tableId string, seats []Seat, h cards.State, viewerUsername string) GameStateView {
	return buildViewWithReveal(tableId, seats, h, viewerUsername, false)
}

// buildViewWithReveal lets hand-end broadcasts show every seat's final
// cards instead of redacting all but the viewer's own hand.
func buildViewWithReveal(tableId string, seats []Seat, h cards.State, viewerUsername string, revealAll bool) GameStateView {
	seatViews := make([]SeatView, len(seats))
	for i, seat := range seats {
		visible := revealAll || (seat.Username != "" && seat.Username == viewerUsername)
		var hand []cards.Card
		var spreads []cards.Spread
		if i < len(h.Hands) {
			hand = h.Hands[i]
		}
		if i < len(h.Spreads) {
			spreads = h.Spreads[i]
		}
		seatViews[i] = SeatView{
			Username: seat.Username,
			IsHuman:  seat.IsHuman,
			Status:   seatStatusString(seat.Status),
			Hand:     cardViews(hand, visible),
			Spreads:  spreadViews(spreads),
		}
	}

	return GameStateView{
		TableId:     tableId,
		Seats:       seatViews,
		Discard:     cardViews(h.Discard, true),
		StockCount:  len(h.Stock),
		Turn:        h.Turn,
		HasDrawn:    h.HasDrawn,
		Stake:       h.Stake,
		Phase:       phaseString(h.Phase),
		StateHash:   h.StateHash,
		WinType:     h.Outcome.WinType.String(),
		Winners:     h.Outcome.Winners,
		RoundScores: h.Outcome.RoundScores,
	}
}

func phaseString(p cards.Phase) string {
	switch p {
	case cards.PhaseWaiting:
		return "waiting"
	case cards.PhaseInProgress:
		return "in_progress"
	case cards.PhaseOver:
		return "over"
	default:
		return "unknown"
	}
}

func seatStatusString(s cards.SeatStatus) string {
	switch s {
	case cards.SeatActive:
		return "active"
	case cards.SeatDisconnected:
		return "disconnected"
	case cards.SeatLeft:
		return "left"
	default:
		return "unknown"
	}
}
