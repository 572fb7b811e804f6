package ledger

import "time"

type TransactionKind string

const (
	KindStake   TransactionKind = "stake"
	KindPayout  TransactionKind = "payout"
	KindPenalty TransactionKind = "penalty"
)

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusRolledBack TransactionStatus = "rolled_back"
)

// Transaction is one append-only row in the transactions collection.
// Id is the idempotency key: re-submitting the same id is a no-op.
type Transaction struct {
	Id            string            `bson:"_id"`
	UserId        string            `bson:"userId"`
	TableId       string            `bson:"tableId"`
	GameId        string            `bson:"gameId"`
	Kind          TransactionKind   `bson:"kind"`
	Amount        int64             `bson:"amount"`
	BalanceBefore int64             `bson:"balanceBefore"`
	BalanceAfter  int64             `bson:"balanceAfter"`
	WinType       string            `bson:"winType,omitempty"`
	Status        TransactionStatus `bson:"status"`
	Timestamp     time.Time         `bson:"timestamp"`
}

// SeatStake is the minimal view the Ledger needs of a seat: who they
// are and what they owe or are owed. The session layer's richer Seat
// type is never imported here, keeping the ledger free of any
// dependency on the session package.
type SeatStake struct {
	UserId string
}

// Result reports the transactions a ledger operation produced, so the
// caller can log/broadcast without a second read of the log.
type Result struct {
	Transactions []Transaction
	Failed       bool
	FailureKind  string
}
