package cards

import "hash/fnv"

// Hash computes a canonical FNV-1a digest of s over a deterministic,
// field-ordered encoding. Equal states hash equal; the encoding never
// depends on map iteration order or pointer identity, only on the
// value content of s, so a state and its round-tripped serialization
// hash identically.
func Hash(s State) uint64 {
	h := fnv.New64a()
	write := func(b byte) { _, _ = h.Write([]byte{b}) }
	writeInt := func(n int) {
		for n > 0 {
			write(byte(n & 0xff))
			n >>= 8
		}
		write(0xff)
	}
	writeCard := func(c Card) {
		write(byte(c.Rank))
		write(byte(c.Suit))
	}

	for _, seat := range s.Seats {
		for _, ch := range seat.Username {
			write(byte(ch))
		}
		write(0)
		if seat.IsHuman {
			write(1)
		} else {
			write(0)
		}
		writeInt(seat.HitPenaltyRounds)
		writeInt(seat.HitCount)
		write(byte(seat.Status))
	}

	for _, hand := range s.Hands {
		for _, c := range hand {
			writeCard(c)
		}
		write(0xfe)
	}

	for _, seatSpreads := range s.Spreads {
		for _, spread := range seatSpreads {
			for _, c := range spread {
				writeCard(c)
			}
			write(0xfd)
		}
		write(0xfc)
	}

	for _, c := range s.Stock {
		writeCard(c)
	}
	write(0xfb)
	for _, c := range s.Discard {
		writeCard(c)
	}
	write(0xfa)

	writeInt(s.Turn)
	if s.HasDrawn {
		write(1)
	} else {
		write(0)
	}
	writeInt(int(s.Stake))
	write(byte(s.Phase))
	write(byte(s.Outcome.WinType))
	for _, w := range s.Outcome.Winners {
		writeInt(w)
	}

	return h.Sum64()
}
