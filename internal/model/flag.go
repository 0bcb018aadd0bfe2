package model

// Recognised Flag keys (spec.md §3 "Flag").
const (
	FlagPaused               = "paused"
	FlagMode                 = "mode"
	FlagManualDBMaintenance  = "manual-db-maintenance"
	FlagLastSeenAt           = "last-seen-at"
)

// Recognised Flag values.
const (
	FlagValueTrue           = "true"
	FlagValueModeDBMaint    = "db-maintenance"
	FlagValueManualDBMaintOn = "on"
)

// Flag is a (name, backend) -> value operational setting.
type Flag struct {
	Name      string
	Backend   string
	Value     *string // nil clears the flag
	UpdatedAt int64   // s
}
