package systemd

import "errors"

// Failure classes for probe, control, and log operations. Callers match
// with errors.Is; the wrapped message carries the underlying detail.
var (
	// ErrUnitNotFound means systemd has no knowledge of the unit. This is
	// distinct from an unknown logical service id, which is a registry-level
	// lookup failure.
	ErrUnitNotFound = errors.New("systemd: unit not found")

	// ErrPermissionDenied means the caller lacks rights for the operation.
	ErrPermissionDenied = errors.New("systemd: permission denied")

	// ErrProbeUnavailable means both the D-Bus binding and the systemctl
	// fallback failed to answer a status query.
	ErrProbeUnavailable = errors.New("systemd: probe unavailable")

	// ErrActionRejected means systemd refused the action, e.g. the unit is
	// masked or the job result came back "failed".
	ErrActionRejected = errors.New("systemd: action rejected")

	// ErrActionInProgress means another action against the same unit is
	// still in flight.
	ErrActionInProgress = errors.New("systemd: action already in progress")

	// ErrActionTimedOut means the control call exceeded its bounded wait.
	ErrActionTimedOut = errors.New("systemd: action timed out")

	ErrLogToolUnavailable = errors.New("systemd: journalctl unavailable")
	ErrLogFetchTimedOut   = errors.New("systemd: log fetch timed out")
)

// definitive reports whether err answers the question being asked, as
// opposed to indicating an unreachable control channel. Definitive errors
// never trigger the fallback path.
func definitive(err error) bool {
	return errors.Is(err, ErrUnitNotFound) || errors.Is(err, ErrPermissionDenied)
}
