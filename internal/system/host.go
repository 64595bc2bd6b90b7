package system

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/host"
)

// GetHostInfo retrieves system host information
func GetHostInfo() (*HostInfo, error) {
	info, err := host.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to get host info: %w", err)
	}

	return &HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		KernelArch:      info.KernelArch,
		Uptime:          info.Uptime,
		UptimeHuman:     formatUptime(info.Uptime),
		BootTime:        info.BootTime,
		Procs:           info.Procs,
	}, nil
}

// BootTime returns the host boot time as seconds since the Unix epoch.
// Unit uptimes are derived from it: systemd reports main-process start
// times as monotonic microseconds since boot.
func BootTime() (uint64, error) {
	t, err := host.BootTime()
	if err != nil {
		return 0, fmt.Errorf("failed to get boot time: %w", err)
	}
	return t, nil
}

// formatUptime converts uptime seconds to human readable format
func formatUptime(seconds uint64) string {
	duration := time.Duration(seconds) * time.Second

	days := int(duration.Hours() / 24)
	hours := int(duration.Hours()) % 24
	minutes := int(duration.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
