package domain

// RoomAssignment is one ranked directory entry. Derived, read-only once
// constructed. Balance is serialized as a decimal string because amounts
// can exceed the 53-bit float-safe range.
type RoomAssignment struct {
	Wallet      string `json:"wallet"`
	RoomNumber  int    `json:"roomNumber"` // [1, maxRooms], pure function of wallet
	Role        Role   `json:"role"`
	Balance     string `json:"balance"`
	DisplayName string `json:"displayName,omitempty"`
}

// Snapshot is the complete ranked holder view for one mint at one point
// in time. Owned by the snapshot cache and replaced atomically, never
// partially updated.
type Snapshot struct {
	Mint        string
	Assignments []RoomAssignment // rank order: balance DESC, wallet ASC
	CapturedAt  int64            // Unix timestamp in milliseconds
}
