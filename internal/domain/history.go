package domain

// HolderHistoryEntry is one persisted row of a past snapshot.
// Corresponds to the holder_history table in ClickHouse.
type HolderHistoryEntry struct {
	Mint       string `json:"mint"`
	Wallet     string `json:"wallet"`
	RoomNumber int    `json:"roomNumber"`
	Role       Role   `json:"role"`
	Balance    string `json:"balance"` // decimal string
	Rank       int    `json:"rank"`    // 0-based position in the snapshot
	CapturedAt int64  `json:"capturedAt"`
}
