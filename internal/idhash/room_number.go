package idhash

import (
	"crypto/sha256"
	"encoding/binary"
)

// RoomNumber computes a deterministic room number for a wallet using SHA256.
// Formula: (first 8 bytes of SHA256(wallet) as big-endian u64) mod maxRooms + 1.
// Pure function of the wallet address alone: independent of balance, rank,
// and time, so the same wallet maps to the same room across snapshots.
// Returns a value in [1, maxRooms]. maxRooms must be > 0.
func RoomNumber(wallet string, maxRooms int) int {
	hash := sha256.Sum256([]byte(wallet))
	n := binary.BigEndian.Uint64(hash[:8])
	return int(n%uint64(maxRooms)) + 1
}
