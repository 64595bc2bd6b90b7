package systemd

// ActiveState is systemd's coarse run-state classification for a unit.
type ActiveState string

const (
	ActiveStateActive       ActiveState = "active"
	ActiveStateInactive     ActiveState = "inactive"
	ActiveStateFailed       ActiveState = "failed"
	ActiveStateActivating   ActiveState = "activating"
	ActiveStateDeactivating ActiveState = "deactivating"
	ActiveStateUnknown      ActiveState = "unknown"
)

func parseActiveState(s string) ActiveState {
	switch ActiveState(s) {
	case ActiveStateActive, ActiveStateInactive, ActiveStateFailed,
		ActiveStateActivating, ActiveStateDeactivating:
		return ActiveState(s)
	default:
		return ActiveStateUnknown
	}
}

// Action is a run-state change request against a unit.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
)

// ParseAction validates an operator-supplied action name.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionStart, ActionStop, ActionRestart:
		return Action(s), true
	}
	return "", false
}

// Outcome classifies how a control action ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timedOut"
)

// UnitStatus is the live state of a single unit. It is produced fresh on
// every query and never cached.
type UnitStatus struct {
	Unit        string      `json:"unit"`
	ActiveState ActiveState `json:"active_state"`
	SubState    string      `json:"sub_state"`
	LoadState   string      `json:"load_state"`
	Enabled     bool        `json:"enabled"`
	Description string      `json:"description,omitempty"`
	MainPID     uint32      `json:"main_pid"`

	// ExecMainStartMonotonic is the main process start time in microseconds
	// since boot, zero when the unit has no main process.
	ExecMainStartMonotonic uint64 `json:"-"`

	// enabledKnown records whether the queried channel actually reported an
	// enablement state, or Enabled is merely the zero value.
	enabledKnown bool
}

// Running reports whether the unit has a live main process.
func (s *UnitStatus) Running() bool {
	return s != nil && s.MainPID != 0
}

// ActionResult is the outcome of one control action. Status is populated
// from a fresh probe only when the action succeeded.
type ActionResult struct {
	Unit    string      `json:"unit"`
	Action  Action      `json:"action"`
	Outcome Outcome     `json:"outcome"`
	Status  *UnitStatus `json:"status,omitempty"`
}

// LogChunk is a bounded slice of journal output for one unit. Truncated is
// set when the unit had more lines than the requested bound.
type LogChunk struct {
	Unit      string   `json:"unit"`
	Lines     []string `json:"lines"`
	Truncated bool     `json:"truncated"`
}
