// ABOUTME: Shared output helpers for CLI commands
// ABOUTME: JSON rendering, relative timestamps and truncation for table output
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// jsonOutput reports whether results should be printed as JSON
func jsonOutput() bool {
	return outputFormat == "json"
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintf(w, "%s\n", data)
	return nil
}

// truncate shortens a string to maxLen runes, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatMillis renders an epoch-millisecond timestamp relative to now
func formatMillis(ms *int64) string {
	if ms == nil || *ms <= 0 {
		return "-"
	}
	return formatTime(time.UnixMilli(*ms), time.Now())
}

// formatTime formats t relative to now
func formatTime(t, now time.Time) string {
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	} else if diff < 7*24*time.Hour {
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
	return t.Format("2006-01-02")
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}
