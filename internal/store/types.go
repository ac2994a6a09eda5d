package store

import "time"

// Run is one journaled invocation of update-apply or version-cleanup.
type Run struct {
	ID         string
	Command    string
	Target     string
	Provider   string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt *time.Time

	// Filled by ListRuns and GetRun.
	ResultCount int
	FailedCount int
}

// Result is one per-item outcome inside a run: an install or a removal.
type Result struct {
	RunID     string
	Seq       int
	Name      string
	Version   string
	Path      string
	Action    string // "install" or a removal method
	Status    string
	Message   string
	SizeBytes int64
}
