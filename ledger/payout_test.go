package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayoutPerWinnerReem(t *testing.T) {
	require.Equal(t, int64(20), payoutPerWinner("REEM", 20, 1))
}

func TestPayoutPerWinnerImmediate50DoublesPot(t *testing.T) {
	require.Equal(t, int64(40), payoutPerWinner("IMMEDIATE_50", 20, 1))
}

func TestPayoutPerWinnerSpecialWinTriplesPot(t *testing.T) {
	require.Equal(t, int64(60), payoutPerWinner("SPECIAL_WIN", 20, 1))
}

func TestPayoutPerWinnerSplitsAcrossTiedWinners(t *testing.T) {
	require.Equal(t, int64(5), payoutPerWinner("STOCK_EMPTY", 10, 2))
}

// TestPayoutPerWinnerCountsBotsAmongTiedWinners checks that a bot
// tying for the minimum score still shrinks the human's share: the
// winner count passed in must be the total tied seats, not just the
// humans among them.
func TestPayoutPerWinnerCountsBotsAmongTiedWinners(t *testing.T) {
	stake := int64(10)
	seatCount := 3
	pot := stake * int64(seatCount)
	totalWinners := 2 // one human, one bot, tied at STOCK_EMPTY

	humanShare := payoutPerWinner("STOCK_EMPTY", pot, totalWinners)
	require.Equal(t, pot/2, humanShare)
	require.NotEqual(t, pot, humanShare)
}

// TestZeroSumAcrossHand checks that payouts conserve total stake at
// the level of pure arithmetic: a 3-seat hand where seat 0 wins
// REGULAR_WIN leaves the sum of every seat's net change at zero.
func TestZeroSumAcrossHand(t *testing.T) {
	stake := int64(10)
	seatCount := 3
	pot := stake * int64(seatCount)
	winnerShare := payoutPerWinner("REGULAR_WIN", pot, 1)

	// every seat paid `stake` into the pot; one winner receives `pot`.
	netForWinner := winnerShare - stake
	netForLosers := int64(0) - stake
	total := netForWinner + netForLosers*int64(seatCount-1)
	require.Equal(t, int64(0), total)
}

func TestDropCaughtPenaltyIsZeroSum(t *testing.T) {
	stake := int64(10)
	// dropper pays stake to each of 2 seats below it
	dropperNet := -2 * stake
	recipientsNet := 2 * stake
	require.Equal(t, int64(0), dropperNet+recipientsNet)
}
