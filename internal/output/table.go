// Package output renders modsweep's tables, progress bars and spinners.
//
// Tables are plain text with optional ANSI colour on the status column.
// Progress indicators write to stderr so stdout stays pipeable, and are
// safe for use from multiple goroutines.
package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/modsweep/internal/inventory"
	"github.com/blackwell-systems/modsweep/internal/planner"
	"github.com/blackwell-systems/modsweep/internal/reconcile"
	"github.com/blackwell-systems/modsweep/internal/store"
)

// ANSI color codes for status display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// statusColor maps every status string used by the planner and reconciler.
func statusColor(status string) string {
	switch status {
	case string(planner.Updated), string(reconcile.Removed):
		return colorGreen
	case string(planner.Previewed), string(reconcile.WouldRemove), "Keep":
		return colorYellow
	case string(planner.Failed): // reconcile.Failed has the same value
		return colorRed
	default:
		return colorGray
	}
}

// padStatus pads before colouring so escape codes do not break alignment.
func padStatus(status string, width int) string {
	return colorize(statusColor(status), fmt.Sprintf("%-*s", width, status))
}

func rule(width int) string {
	return strings.Repeat("─", width) + "\n"
}

// RenderInventoryTable renders installed modules. Records are shown in the
// order given; the resolver already sorts them by name.
func RenderInventoryTable(records []inventory.PackageRecord) string {
	if len(records) == 0 {
		return "No installed modules found.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-32s %-16s %-8s %-4s %s\n", "Module", "Version", "Scope", "Via", "Location"))
	sb.WriteString(rule(100))

	for _, rec := range records {
		sb.WriteString(fmt.Sprintf("%-32s %-16s %-8s %-4s %s\n",
			truncate(rec.Name, 32),
			truncate(rec.Version.Original(), 16),
			rec.Scope,
			rec.Provider.Short(),
			rec.Location))
	}

	return sb.String()
}

// RenderCandidateTable renders an update plan.
func RenderCandidateTable(cands []planner.UpdateCandidate) string {
	if len(cands) == 0 {
		return "All modules are up to date.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-32s %-16s %-16s %-8s %s\n", "Module", "Installed", "Latest", "Scope", "Via"))
	sb.WriteString(rule(84))

	for _, c := range cands {
		sb.WriteString(fmt.Sprintf("%-32s %-16s %-16s %-8s %s\n",
			truncate(c.Record.Name, 32),
			truncate(c.Record.Version.Original(), 16),
			truncate(c.Latest.Original(), 16),
			c.Record.Scope,
			c.Provider.Short()))
	}

	return sb.String()
}

// RenderLookupFailures lists modules whose latest version could not be found.
func RenderLookupFailures(failures []planner.LookupFailure) string {
	if len(failures) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Could not check %d module(s):\n", len(failures)))
	for _, f := range failures {
		sb.WriteString(fmt.Sprintf("  %s %s: %v\n", f.Record.Name, f.Record.Version.Original(), f.Err))
	}
	return sb.String()
}

// RenderUpdateResults renders the outcome of update-apply, including any
// post-update cleanup beneath each module.
func RenderUpdateResults(results []planner.UpdateResult) string {
	if len(results) == 0 {
		return "No updates were applied.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-32s %-16s %-16s %-10s %s\n", "Module", "From", "To", "Status", "Detail"))
	sb.WriteString(rule(96))

	for _, r := range results {
		c := r.Candidate
		sb.WriteString(fmt.Sprintf("%-32s %-16s %-16s %s %s\n",
			truncate(c.Record.Name, 32),
			truncate(c.Record.Version.Original(), 16),
			truncate(c.Latest.Original(), 16),
			padStatus(string(r.Status), 10),
			truncate(r.Message, 60)))

		for _, rm := range r.Cleanup {
			detail := string(rm.Method)
			if rm.Message != "" {
				detail += ": " + rm.Message
			}
			sb.WriteString(fmt.Sprintf("  └ %-28s %-16s %-16s %s %s\n",
				"removed old version",
				truncate(rm.Version.Original(), 16),
				"",
				padStatus(string(rm.Status), 10),
				truncate(detail, 60)))
		}
	}

	return sb.String()
}

// RenderLedgerTable renders every known version of a module and whether
// it is kept under keep.
func RenderLedgerTable(l *reconcile.Ledger, keep int) string {
	if l.Len() == 0 {
		return "No versions found.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-16s %-8s %-3s %-3s %s\n", "Version", "Plan", "A", "B", "Paths"))
	sb.WriteString(rule(90))

	cut := l.Len() - keep
	for i, e := range l.Entries {
		plan := "Remove"
		if i >= cut {
			plan = "Keep"
		}
		paths := strings.Join(e.Paths, ", ")
		if paths == "" {
			paths = "(not on disk)"
		}
		sb.WriteString(fmt.Sprintf("%-16s %s %-3s %-3s %s\n",
			truncate(e.Version.Original(), 16),
			padStatus(plan, 8),
			formatTracked(e.TrackedByA),
			formatTracked(e.TrackedByB),
			paths))
	}

	return sb.String()
}

func formatTracked(tracked bool) string {
	if tracked {
		return "✓"
	}
	return "-"
}

// RenderRemovalTable renders the outcome of a version cleanup.
func RenderRemovalTable(results []reconcile.RemovalResult) string {
	if len(results) == 0 {
		return "Nothing to remove.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-16s %-20s %-12s %-9s %s\n", "Version", "Method", "Status", "Size", "Path"))
	sb.WriteString(rule(96))

	for _, r := range results {
		path := r.Path
		if path == "" {
			path = "-"
		}
		sb.WriteString(fmt.Sprintf("%-16s %-20s %s %-9s %s\n",
			truncate(r.Version.Original(), 16),
			r.Method,
			padStatus(string(r.Status), 12),
			formatSize(r.Bytes),
			path))
		if r.Message != "" {
			sb.WriteString(fmt.Sprintf("%-16s %s\n", "", colorize(colorGray, r.Message)))
		}
	}

	return sb.String()
}

// RenderRunTable renders journaled runs, newest first as given.
func RenderRunTable(runs []*store.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-9s %-16s %-24s %-15s %-8s %s\n", "Run", "Command", "Target", "Started", "Results", "Failed"))
	sb.WriteString(rule(84))

	for _, r := range runs {
		target := r.Target
		if target == "" {
			target = "(all)"
		}
		command := r.Command
		if r.DryRun {
			command += "*"
		}
		failed := fmt.Sprintf("%d", r.FailedCount)
		if r.FailedCount > 0 {
			failed = colorize(colorRed, failed)
		}
		sb.WriteString(fmt.Sprintf("%-9s %-16s %-24s %-15s %-8d %s\n",
			shortID(r.ID),
			command,
			truncate(target, 24),
			formatRelativeTime(r.StartedAt),
			r.ResultCount,
			failed))
	}
	sb.WriteString("* dry run or preview\n")

	return sb.String()
}

// RenderResultTable renders the per-item results of one run.
func RenderResultTable(results []*store.Result) string {
	if len(results) == 0 {
		return "No results recorded for this run.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-4s %-28s %-16s %-20s %-12s %s\n", "#", "Module", "Version", "Action", "Status", "Detail"))
	sb.WriteString(rule(100))

	for _, r := range results {
		detail := r.Message
		if detail == "" {
			detail = r.Path
		}
		sb.WriteString(fmt.Sprintf("%-4d %-28s %-16s %-20s %s %s\n",
			r.Seq,
			truncate(r.Name, 28),
			truncate(r.Version, 16),
			r.Action,
			padStatus(r.Status, 12),
			truncate(detail, 60)))
	}

	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// FormatSize converts bytes to a human-readable IEC size.
func FormatSize(bytes int64) string {
	return formatSize(bytes)
}

func formatSize(bytes int64) string {
	if bytes <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytes))
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
