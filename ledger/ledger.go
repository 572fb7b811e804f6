package ledger

import (
	"context"
	"fmt"

	"tonkserver/common/database"
	"tonkserver/common/log"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Ledger performs the three atomic money operations a table needs:
// deductStakes, distributeWinnings and applyDropPenalty. Every balance
// mutation and its transaction-log row move together inside a single
// Mongo session so a mid-write crash can never leave one without the
// other.
type Ledger struct {
	mongo *database.MongoManager
}

func NewLedger(mongo *database.MongoManager) *Ledger {
	return &Ledger{mongo: mongo}
}

func (l *Ledger) usersColl() *mongo.Collection        { return l.mongo.Db.Collection("users") }
func (l *Ledger) transactionsColl() *mongo.Collection { return l.mongo.Db.Collection("transactions") }

// DeductStakes debits stake from every seat's balance at hand start.
// If any seat has insufficient balance, the whole batch fails and
// nothing is written — a partially-funded hand must never start.
func (l *Ledger) DeductStakes(ctx context.Context, seats []SeatStake, stake int64, tableId string) (Result, error) {
	txIds := make([]string, len(seats))
	for i := range seats {
		txIds[i] = uuid.NewString()
	}
	return l.DeductStakesWithIds(ctx, seats, stake, tableId, txIds)
}

// DeductStakesWithIds lets the caller pin the transaction ids, which
// is what makes a retried deduction idempotent instead of double
// charging: replaying the same ids is a no-op by construction of
// alreadyApplied.
func (l *Ledger) DeductStakesWithIds(ctx context.Context, seats []SeatStake, stake int64, tableId string, txIds []string) (Result, error) {
	out, err := l.mongo.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		txs := make([]Transaction, 0, len(seats))
		for i, seat := range seats {
			if done, ok, derr := l.alreadyApplied(sessCtx, txIds[i]); derr != nil {
				return nil, derr
			} else if ok {
				txs = append(txs, done)
				continue
			}

			before, err := l.balance(sessCtx, seat.UserId)
			if err != nil {
				return nil, err
			}
			if before < stake {
				return nil, fmt.Errorf("user %s has insufficient balance for stake %d", seat.UserId, stake)
			}
			after := before - stake
			if err := l.setBalance(sessCtx, seat.UserId, after); err != nil {
				return nil, err
			}
			tx := Transaction{
				Id: txIds[i], UserId: seat.UserId, TableId: tableId,
				Kind: KindStake, Amount: -stake,
				BalanceBefore: before, BalanceAfter: after,
				Status: StatusCompleted,
			}
			if err := l.insertTransaction(sessCtx, tx); err != nil {
				return nil, err
			}
			txs = append(txs, tx)
		}
		return txs, nil
	})
	if err != nil {
		log.Error("deductStakes failed for table %s: %v", tableId, err)
		return Result{Failed: true, FailureKind: "insufficient_balance"}, err
	}
	return Result{Transactions: out.([]Transaction)}, nil
}

// payoutPerWinner maps winType to (winner multiplier over pot/W, paid-in-full-by-pot).
// REEM/IMMEDIATE_50/SPECIAL_WIN/DROP_WIN/FORFEIT_WIN pay the full (multiplied)
// pot to each winner; REGULAR_WIN/STOCK_EMPTY split pot evenly across winners.
func payoutPerWinner(winType string, pot int64, winnerCount int) int64 {
	switch winType {
	case "IMMEDIATE_50":
		return 2 * pot
	case "SPECIAL_WIN":
		return 3 * pot
	case "REEM", "DROP_WIN", "FORFEIT_WIN":
		return pot
	default: // REGULAR_WIN, STOCK_EMPTY
		if winnerCount == 0 {
			return 0
		}
		return pot / int64(winnerCount)
	}
}

// DistributeWinnings pays each winner its share of the pot per the
// winType payout table. winners carries only the human winners (bots
// have no ledger account to credit), while totalWinners is the true
// count of seats, bots included, that tied for the win — the pot is
// always split pot/totalWinners so a bot sharing the win doesn't
// inflate a human's cut. Losers receive nothing further; their stake
// was already forfeited at DeductStakes time.
func (l *Ledger) DistributeWinnings(ctx context.Context, winners []SeatStake, totalWinners int, winType string, stake int64, seatCount int, tableId, gameId string) (Result, error) {
	txIds := make([]string, len(winners))
	for i := range winners {
		txIds[i] = uuid.NewString()
	}
	return l.DistributeWinningsWithIds(ctx, winners, totalWinners, winType, stake, seatCount, tableId, gameId, txIds)
}

// DistributeWinningsWithIds is DistributeWinnings with caller-pinned
// transaction ids, so a retry after a partial failure reuses the same
// ids and becomes a no-op rather than a double payout.
func (l *Ledger) DistributeWinningsWithIds(ctx context.Context, winners []SeatStake, totalWinners int, winType string, stake int64, seatCount int, tableId, gameId string, txIds []string) (Result, error) {
	pot := stake * int64(seatCount)
	perWinner := payoutPerWinner(winType, pot, totalWinners)

	out, err := l.mongo.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		txs := make([]Transaction, 0, len(winners))
		for i, w := range winners {
			if done, ok, derr := l.alreadyApplied(sessCtx, txIds[i]); derr != nil {
				return nil, derr
			} else if ok {
				txs = append(txs, done)
				continue
			}
			before, err := l.balance(sessCtx, w.UserId)
			if err != nil {
				return nil, err
			}
			after := before + perWinner
			if err := l.setBalance(sessCtx, w.UserId, after); err != nil {
				return nil, err
			}
			tx := Transaction{
				Id: txIds[i], UserId: w.UserId, TableId: tableId, GameId: gameId,
				Kind: KindPayout, Amount: perWinner,
				BalanceBefore: before, BalanceAfter: after,
				WinType: winType, Status: StatusCompleted,
			}
			if err := l.insertTransaction(sessCtx, tx); err != nil {
				return nil, err
			}
			txs = append(txs, tx)
		}
		return txs, nil
	})
	if err != nil {
		log.Error("distributeWinnings failed for table %s game %s: %v", tableId, gameId, err)
		return Result{Failed: true, FailureKind: "payout_write_failed"}, err
	}
	return Result{Transactions: out.([]Transaction)}, nil
}

// ApplyDropPenalty moves an extra stake from the dropper to every
// seat whose score was strictly below the dropper's, per DROP_CAUGHT.
func (l *Ledger) ApplyDropPenalty(ctx context.Context, dropper SeatStake, belowDropper []SeatStake, stake int64, tableId, gameId string) (Result, error) {
	txIds := make([]string, 0, len(belowDropper)*2)
	for range belowDropper {
		txIds = append(txIds, uuid.NewString(), uuid.NewString())
	}

	out, err := l.mongo.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		txs := make([]Transaction, 0, len(belowDropper)*2)
		for i, recipient := range belowDropper {
			debitId, creditId := txIds[2*i], txIds[2*i+1]

			dBefore, err := l.balance(sessCtx, dropper.UserId)
			if err != nil {
				return nil, err
			}
			if done, ok, derr := l.alreadyApplied(sessCtx, debitId); derr != nil {
				return nil, derr
			} else if !ok {
				dAfter := dBefore - stake
				if err := l.setBalance(sessCtx, dropper.UserId, dAfter); err != nil {
					return nil, err
				}
				tx := Transaction{Id: debitId, UserId: dropper.UserId, TableId: tableId, GameId: gameId,
					Kind: KindPenalty, Amount: -stake, BalanceBefore: dBefore, BalanceAfter: dAfter,
					WinType: "DROP_CAUGHT", Status: StatusCompleted}
				if err := l.insertTransaction(sessCtx, tx); err != nil {
					return nil, err
				}
				txs = append(txs, tx)
			} else {
				txs = append(txs, done)
			}

			rBefore, err := l.balance(sessCtx, recipient.UserId)
			if err != nil {
				return nil, err
			}
			if done, ok, derr := l.alreadyApplied(sessCtx, creditId); derr != nil {
				return nil, derr
			} else if !ok {
				rAfter := rBefore + stake
				if err := l.setBalance(sessCtx, recipient.UserId, rAfter); err != nil {
					return nil, err
				}
				tx := Transaction{Id: creditId, UserId: recipient.UserId, TableId: tableId, GameId: gameId,
					Kind: KindPenalty, Amount: stake, BalanceBefore: rBefore, BalanceAfter: rAfter,
					WinType: "DROP_CAUGHT", Status: StatusCompleted}
				if err := l.insertTransaction(sessCtx, tx); err != nil {
					return nil, err
				}
				txs = append(txs, tx)
			} else {
				txs = append(txs, done)
			}
		}
		return txs, nil
	})
	if err != nil {
		log.Error("applyDropPenalty failed for table %s game %s: %v", tableId, gameId, err)
		return Result{Failed: true, FailureKind: "penalty_write_failed"}, err
	}
	return Result{Transactions: out.([]Transaction)}, nil
}

func (l *Ledger) balance(ctx context.Context, userId string) (int64, error) {
	var doc struct {
		ChipBalance int64 `bson:"chipBalance"`
	}
	err := l.usersColl().FindOne(ctx, bson.M{"_id": userId}).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("reading balance for %s: %w", userId, err)
	}
	return doc.ChipBalance, nil
}

func (l *Ledger) setBalance(ctx context.Context, userId string, balance int64) error {
	_, err := l.usersColl().UpdateOne(ctx,
		bson.M{"_id": userId},
		bson.M{"$set": bson.M{"chipBalance": balance}},
	)
	return err
}

func (l *Ledger) insertTransaction(ctx context.Context, tx Transaction) error {
	_, err := l.transactionsColl().InsertOne(ctx, tx)
	return err
}

// alreadyApplied checks idempotency: a transaction id already present
// in the log means this operation already ran and must be treated as
// a no-op rather than reapplied.
func (l *Ledger) alreadyApplied(ctx context.Context, id string) (Transaction, bool, error) {
	var tx Transaction
	err := l.transactionsColl().FindOne(ctx, bson.M{"_id": id}).Decode(&tx)
	if err == nil {
		return tx, true, nil
	}
	if err == mongo.ErrNoDocuments {
		return Transaction{}, false, nil
	}
	return Transaction{}, false, err
}
