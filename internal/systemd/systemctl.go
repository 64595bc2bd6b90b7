package systemd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// runner executes an external command and returns its stdout. Tests swap in
// fakes to simulate missing binaries and hung processes.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && len(ee.Stderr) > 0 {
			return out, fmt.Errorf("%v: %s", err, bytes.TrimSpace(ee.Stderr))
		}
		return out, err
	}
	return out, nil
}

const showProperties = "Id,ActiveState,SubState,LoadState,UnitFileState," +
	"Description,MainPID,ExecMainStartTimestampMonotonic"

// systemctlSource queries unit state by parsing `systemctl show` output.
// It serves as the fallback when the D-Bus binding is unreachable.
type systemctlSource struct {
	run runner
}

func (s systemctlSource) query(ctx context.Context, unit string) (*UnitStatus, error) {
	out, err := s.run(ctx, "systemctl", "show", unit,
		"--property="+showProperties, "--no-pager")
	if err != nil {
		return nil, classifySystemctlError(ctx, err)
	}

	st := parseShowOutput(unit, out)
	if st.LoadState == "not-found" {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, unit)
	}
	return st, nil
}

// isEnabled shells out to `systemctl is-enabled`, which the D-Bus property
// map cannot always answer (UnitFileState is absent for some unit types).
func (s systemctlSource) isEnabled(ctx context.Context, unit string) (bool, error) {
	out, err := s.run(ctx, "systemctl", "is-enabled", unit)
	state := strings.TrimSpace(string(out))
	if err != nil && state == "" {
		return false, classifySystemctlError(ctx, err)
	}
	// is-enabled exits non-zero for "disabled", "static", etc.; the printed
	// state is still authoritative.
	return state == "enabled" || state == "enabled-runtime", nil
}

// parseShowOutput reads the key=value lines systemctl show prints, one
// property per line.
func parseShowOutput(unit string, out []byte) *UnitStatus {
	st := &UnitStatus{Unit: unit, ActiveState: ActiveStateUnknown}

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key, val := line[:eq], line[eq+1:]
		switch key {
		case "ActiveState":
			st.ActiveState = parseActiveState(val)
		case "SubState":
			st.SubState = val
		case "LoadState":
			st.LoadState = val
		case "Description":
			st.Description = val
		case "UnitFileState":
			if val != "" {
				st.Enabled = val == "enabled" || val == "enabled-runtime"
				st.enabledKnown = true
			}
		case "MainPID":
			if n, err := strconv.ParseUint(val, 10, 32); err == nil {
				st.MainPID = uint32(n)
			}
		case "ExecMainStartTimestampMonotonic":
			if n, err := strconv.ParseUint(val, 10, 64); err == nil {
				st.ExecMainStartMonotonic = n
			}
		}
	}

	return st
}

func classifySystemctlError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("%w: systemctl binary missing: %v", ErrProbeUnavailable, err)
	case ctx.Err() != nil:
		return fmt.Errorf("%w: systemctl timed out: %v", ErrProbeUnavailable, ctx.Err())
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Access denied") || strings.Contains(msg, "Permission denied"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case strings.Contains(msg, "No such unit") || strings.Contains(msg, "not loaded"):
		return fmt.Errorf("%w: %v", ErrUnitNotFound, err)
	}
	return err
}
