package matchmaker

// TableView is the read-only snapshot of a table the Matchmaker needs
// to decide what to do next. The Session Manager (C6) is the only
// writer of table state; Matchmaker never touches it directly.
type TableView struct {
	TableId              string
	Stake                int64
	SeatCount            int
	HumanCount           int
	BotCount             int
	HandInProgress       bool
	HasPendingTransition bool
}

func (v TableView) Full() bool { return v.SeatCount >= MaxSeatsPerTable }

// TableHost is implemented by the Session Manager and injected into
// the Matchmaker, keeping the dependency one-way: this package never
// imports session, session imports this package.
type TableHost interface {
	TablesForStake(stake int64) []TableView
	// ResolveTransition attempts to swap a waiting spectator into the
	// earmarked bot seat. Returns false if nothing was resolved.
	ResolveTransition(tableId string) (bool, error)
	// SeatPlayer seats username directly into an empty seat.
	SeatPlayer(tableId, username string) error
	// BeginTransition seats username as a spectator and earmarks one
	// bot seat for eviction once the in-progress hand ends.
	BeginTransition(tableId, username string) error
	AddBot(tableId string) error
	EvictBot(tableId string) error
	// StartCountdown begins the pre-hand countdown once a lone human
	// plus a freshly-added bot are ready to play.
	StartCountdown(tableId string) error
	// CreateOverflowTable provisions a new non-preset table for stake
	// when every existing table at that stake is full.
	CreateOverflowTable(stake int64) (tableId string, err error)
}

const MaxSeatsPerTable = 4
