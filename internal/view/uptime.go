package view

import (
	"fmt"
	"strings"
	"time"
)

// formatDuration renders d as "2d 3h 4m 5s", dropping leading zero units
// but keeping zeroes once a larger unit has been printed.
func formatDuration(d time.Duration) string {
	secs := int64(d / time.Second)

	days := secs / 86400
	hours := (secs % 86400) / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || len(parts) > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || len(parts) > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}
