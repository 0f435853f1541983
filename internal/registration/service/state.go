package service

// State names one phase of a registration attempt. The attempt advances
// Validating → Reserving → Persisting → Committed; a failure during
// Reserving or Persisting compensates reserved seats and ends RolledBack.
type State string

const (
	// StateValidating covers identity resolution and conflict validation
	// over the read snapshot. No writes have happened yet.
	StateValidating State = "validating"
	// StateReserving covers the per-session conditional seat increments.
	StateReserving State = "reserving"
	// StatePersisting covers the single registration transaction.
	StatePersisting State = "persisting"
	// StateCommitted is the terminal success state.
	StateCommitted State = "committed"
	// StateRolledBack is the terminal failure state after compensation.
	StateRolledBack State = "rolled_back"
)
