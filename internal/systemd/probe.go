package systemd

import (
	"context"
	"fmt"
	"time"
)

// statusSource is one channel for answering "what state is this unit in".
// Two implementations exist: the D-Bus binding and the systemctl subprocess.
type statusSource interface {
	query(ctx context.Context, unit string) (*UnitStatus, error)
}

// Probe resolves live unit status. It asks the D-Bus binding first and falls
// back to systemctl when the bus is unreachable; callers never see which
// channel served the result.
type Probe struct {
	primary  statusSource
	fallback statusSource
	timeout  time.Duration

	// enabledState fills in the enablement flag when the property map from
	// the primary channel lacks UnitFileState.
	enabledState func(ctx context.Context, unit string) (bool, error)
}

// NewProbe builds a probe with the default D-Bus primary and systemctl
// fallback. Every query is bounded by timeout.
func NewProbe(timeout time.Duration) *Probe {
	sctl := systemctlSource{run: runCommand}
	return &Probe{
		primary:      dbusSource{},
		fallback:     sctl,
		timeout:      timeout,
		enabledState: sctl.isEnabled,
	}
}

// Query returns the current status of unit or one of ErrUnitNotFound,
// ErrPermissionDenied, ErrProbeUnavailable. Failures are per-request
// observations, never fatal.
func (p *Probe) Query(ctx context.Context, unit string) (*UnitStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	st, primaryErr := p.primary.query(ctx, unit)
	if primaryErr == nil {
		p.fillEnabled(ctx, st)
		return st, nil
	}
	if definitive(primaryErr) {
		return nil, primaryErr
	}

	if p.fallback == nil {
		return nil, fmt.Errorf("%w: %v", ErrProbeUnavailable, primaryErr)
	}

	st, fallbackErr := p.fallback.query(ctx, unit)
	if fallbackErr == nil {
		return st, nil
	}
	if definitive(fallbackErr) {
		return nil, fallbackErr
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: query timed out after %s", ErrProbeUnavailable, p.timeout)
	}
	return nil, fmt.Errorf("%w: dbus: %v; systemctl: %v", ErrProbeUnavailable, primaryErr, fallbackErr)
}

// fillEnabled consults the subprocess channel for the enablement flag when
// the property map did not carry it. Best effort: a failure here leaves
// Enabled false rather than failing an otherwise good status.
func (p *Probe) fillEnabled(ctx context.Context, st *UnitStatus) {
	if st.enabledKnown || p.enabledState == nil {
		return
	}
	if enabled, err := p.enabledState(ctx, st.Unit); err == nil {
		st.Enabled = enabled
		st.enabledKnown = true
	}
}
