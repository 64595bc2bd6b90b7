package systemd

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

// dbusSource queries unit state over the systemd D-Bus API. A connection is
// opened per query; the panel's request rate is low and this avoids holding
// a bus connection across systemd restarts.
type dbusSource struct{}

func (dbusSource) query(ctx context.Context, unit string) (*UnitStatus, error) {
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	defer conn.Close()

	props, err := conn.GetUnitPropertiesContext(ctx, unit)
	if err != nil {
		return nil, classifyDBusError(err)
	}

	st := statusFromProps(unit, props)
	if st.LoadState == "not-found" {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, unit)
	}
	return st, nil
}

func statusFromProps(unit string, props map[string]interface{}) *UnitStatus {
	st := &UnitStatus{Unit: unit, ActiveState: ActiveStateUnknown}

	if v, ok := props["ActiveState"].(string); ok {
		st.ActiveState = parseActiveState(v)
	}
	if v, ok := props["SubState"].(string); ok {
		st.SubState = v
	}
	if v, ok := props["LoadState"].(string); ok {
		st.LoadState = v
	}
	if v, ok := props["Description"].(string); ok {
		st.Description = v
	}
	if v, ok := props["UnitFileState"].(string); ok && v != "" {
		st.Enabled = v == "enabled" || v == "enabled-runtime"
		st.enabledKnown = true
	}
	if v, ok := props["MainPID"].(uint32); ok {
		st.MainPID = v
	}
	if v, ok := props["ExecMainStartTimestampMonotonic"].(uint64); ok {
		st.ExecMainStartMonotonic = v
	}

	return st
}

// classifyDBusError maps bus-level failures onto the package error classes.
// systemd reports missing units as org.freedesktop.systemd1.NoSuchUnit.
func classifyDBusError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "NoSuchUnit") || strings.Contains(msg, "not loaded"):
		return fmt.Errorf("%w: %v", ErrUnitNotFound, err)
	case strings.Contains(msg, "AccessDenied") ||
		strings.Contains(msg, "interactive authentication required"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
