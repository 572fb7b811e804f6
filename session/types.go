package session

import (
	"time"

	"tonkserver/cards"
)

type TableState int

const (
	StateEmpty TableState = iota
	StateWaiting
	StateCountdown
	StateInHand
)

// Seat is the session-layer view of one occupied or bot-filled chair:
// it carries connection/ready/penalty bookkeeping that the Rules
// Engine's cards.Seat does not need to know about.
type Seat struct {
	Username string
	IsHuman  bool
	ConnId   string
	Status   cards.SeatStatus
	Ready    bool
}

// Spectator is a connected non-seated viewer of a table, optionally
// earmarked to take a seat once the current hand ends.
type Spectator struct {
	Username         string
	ConnId           string
	JoinedAt         time.Time
	TransitionId     string
	WillJoinNextHand bool
}

// Transition tracks a queued human replacing a bot seat once the
// in-progress hand reaches "over".
type Transition struct {
	Id          string
	PendingSeat int
	Username    string
	StartedAt   time.Time
}

const transitionTimeout = 30 * time.Minute

const (
	graceInHand    = 20 * time.Second
	graceOtherwise = 5 * time.Minute
)
