// internal/runner/progress.go
package runner

import (
	"fmt"
	"strings"
	"time"
)

const progressBarWidth = 50

// printProgress renders a single-line progress bar on stdout, one
// update per finished job.
func printProgress(done, total int, elapsed time.Duration) {
	progress := float64(done) / float64(total)
	filled := int(progress * progressBarWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", progressBarWidth-filled)
	fmt.Printf("\rProgress: [%s] %.1f%% [%d/%d Jobs] [%s]", bar, progress*100, done, total, formatElapsed(elapsed))
	if done >= total {
		fmt.Println()
	}
}

// formatElapsed renders a duration in a compact human-readable form,
// picking the widest unit the duration actually reaches.
func formatElapsed(d time.Duration) string {
	seconds := int(d.Seconds())
	days := seconds / (24 * 3600)
	hours := (seconds / 3600) % 24
	minutes := (seconds % 3600) / 60
	secs := (seconds % 3600) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%ddays %02dh%02dm%02ds", days, hours, minutes, secs)
	case hours > 0:
		return fmt.Sprintf("%02dh%02dm%02ds", hours, minutes, secs)
	case minutes > 0:
		return fmt.Sprintf("%02dm%02ds", minutes, secs)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
