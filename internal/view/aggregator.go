// Package view composes registry entries with live unit state into the
// models the HTTP layer renders. It is the API surface of the core: list,
// single view, action, logs.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"daemonpanel/internal/registry"
	"daemonpanel/internal/system"
	"daemonpanel/internal/systemd"
)

// ErrLogsDisabled means the service exists but its configuration does not
// permit journal access.
var ErrLogsDisabled = errors.New("view: logs disabled for service")

// StatusProber, ActionExecutor and LogFetcher are the slices of the systemd
// package the aggregator consumes.
type StatusProber interface {
	Query(ctx context.Context, unit string) (*systemd.UnitStatus, error)
}

type ActionExecutor interface {
	Execute(ctx context.Context, unit string, action systemd.Action) (*systemd.ActionResult, error)
}

type LogFetcher interface {
	Fetch(ctx context.Context, unit string, maxLines int) (*systemd.LogChunk, error)
}

// ServiceView pairs a configured service with the outcome of probing it.
// Exactly one of Status and Problem is meaningful: a failed probe degrades
// only this view, never the surrounding aggregation.
type ServiceView struct {
	Entry  registry.Entry      `json:"service"`
	Status *systemd.UnitStatus `json:"status,omitempty"`
	Uptime string              `json:"uptime,omitempty"`

	// Problem tags the probe failure for rendering: "unit-missing",
	// "permission-denied" or "unavailable".
	Problem string `json:"problem,omitempty"`
	Err     error  `json:"-"`
}

// Healthy reports whether the probe succeeded and the unit is active.
func (v ServiceView) Healthy() bool {
	return v.Status != nil && v.Status.ActiveState == systemd.ActiveStateActive
}

// Aggregator derives fresh view models on every call; nothing is cached
// between requests.
type Aggregator struct {
	reg      *registry.Registry
	probe    StatusProber
	executor ActionExecutor
	fetcher  LogFetcher

	bootTime func() (uint64, error)
	now      func() time.Time
}

// NewAggregator wires the aggregator to the core components.
func NewAggregator(reg *registry.Registry, probe StatusProber, executor ActionExecutor, fetcher LogFetcher) *Aggregator {
	return &Aggregator{
		reg:      reg,
		probe:    probe,
		executor: executor,
		fetcher:  fetcher,
		bootTime: system.BootTime,
		now:      time.Now,
	}
}

// ListViews returns one ServiceView per registry entry, in registry order.
// Units are probed concurrently; individual failures are carried inline.
func (a *Aggregator) ListViews(ctx context.Context) []ServiceView {
	entries := a.reg.All()
	views := make([]ServiceView, len(entries))

	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e registry.Entry) {
			defer wg.Done()
			views[i] = a.probeEntry(ctx, e)
		}(i, e)
	}
	wg.Wait()

	return views
}

// GetView resolves a single logical id. The only error is a registry miss;
// probe failures come back inside the view.
func (a *Aggregator) GetView(ctx context.Context, id string) (ServiceView, error) {
	entry, err := a.reg.Lookup(id)
	if err != nil {
		return ServiceView{}, err
	}
	return a.probeEntry(ctx, entry), nil
}

// PerformAction resolves id and executes action against its unit.
func (a *Aggregator) PerformAction(ctx context.Context, id string, action systemd.Action) (*systemd.ActionResult, error) {
	entry, err := a.reg.Lookup(id)
	if err != nil {
		return nil, err
	}
	return a.executor.Execute(ctx, entry.Unit, action)
}

// GetLogs fetches bounded journal output for id. Services configured with
// logs disabled are refused before the fetcher is ever invoked.
func (a *Aggregator) GetLogs(ctx context.Context, id string, maxLines int) (*systemd.LogChunk, error) {
	entry, err := a.reg.Lookup(id)
	if err != nil {
		return nil, err
	}
	if !entry.LogsEnabled {
		return nil, fmt.Errorf("%w: %q", ErrLogsDisabled, id)
	}
	return a.fetcher.Fetch(ctx, entry.Unit, maxLines)
}

func (a *Aggregator) probeEntry(ctx context.Context, entry registry.Entry) ServiceView {
	v := ServiceView{Entry: entry}

	st, err := a.probe.Query(ctx, entry.Unit)
	if err != nil {
		v.Problem = problemTag(err)
		v.Err = err
		return v
	}

	v.Status = st
	v.Uptime = a.unitUptime(st)
	return v
}

// unitUptime renders how long the unit's main process has been up, from its
// monotonic start timestamp and the host boot time.
func (a *Aggregator) unitUptime(st *systemd.UnitStatus) string {
	if !st.Running() || st.ExecMainStartMonotonic == 0 {
		return ""
	}
	boot, err := a.bootTime()
	if err != nil {
		return ""
	}
	started := time.Unix(int64(boot), 0).Add(time.Duration(st.ExecMainStartMonotonic) * time.Microsecond)
	up := a.now().Sub(started)
	if up < 0 {
		up = 0
	}
	return formatDuration(up)
}

func problemTag(err error) string {
	switch {
	case errors.Is(err, systemd.ErrUnitNotFound):
		return "unit-missing"
	case errors.Is(err, systemd.ErrPermissionDenied):
		return "permission-denied"
	default:
		return "unavailable"
	}
}
