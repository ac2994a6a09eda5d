package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

// ProgressBar reports per-item progress through a batch of lookups.
// On a terminal it redraws one line:
//
//	[=========>          ]  45% (9/20) Az.Storage
//
// Elsewhere it prints one plain line per item so logs still show progress.
type ProgressBar struct {
	total   int
	current int
	label   string
	item    string
	width   int
	mu      sync.Mutex
	writer  io.Writer
}

// NewProgress creates a progress bar writing to stderr.
func NewProgress(total int, label string) *ProgressBar {
	return &ProgressBar{
		total:  total,
		label:  label,
		width:  30,
		writer: os.Stderr,
	}
}

// SetWriter sets the output writer (useful for testing).
func (p *ProgressBar) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = w
}

// Step records that item has been processed and redraws.
func (p *ProgressBar) Step(item string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.item = item
	if p.current < p.total {
		p.current++
	}
	p.render()
}

// Percent returns the current completion percentage.
func (p *ProgressBar) Percent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percent()
}

func (p *ProgressBar) percent() int {
	if p.total <= 0 {
		return 100
	}
	return p.current * 100 / p.total
}

// Finish ends the terminal line. It is a no-op for non-terminal writers,
// which already end every line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writerIsTTY(p.writer) {
		fmt.Fprintln(p.writer)
	}
}

// render draws the progress bar (must be called with lock held).
func (p *ProgressBar) render() {
	counter := fmt.Sprintf("(%d/%d)", p.current, p.total)

	if !writerIsTTY(p.writer) {
		fmt.Fprintf(p.writer, "%s %3d%% %s %s\n", p.label, p.percent(), counter, p.item)
		return
	}

	filled := 0
	if p.total > 0 {
		filled = p.current * p.width / p.total
	}
	var bar strings.Builder
	bar.WriteString("[")
	for i := 0; i < p.width; i++ {
		switch {
		case i < filled-1:
			bar.WriteString("=")
		case i == filled-1:
			bar.WriteString(">")
		default:
			bar.WriteString(" ")
		}
	}
	bar.WriteString("]")

	// Pad so a shorter item name fully overwrites a longer previous one.
	fmt.Fprintf(p.writer, "\r%s %3d%% %s %-40s", bar.String(), p.percent(), counter, truncate(p.item, 40))
}

// Spinner shows an indeterminate wait, e.g. while pwsh loads a provider
// module. On a non-terminal writer it prints the message once.
type Spinner struct {
	message string
	running bool
	frames  []string
	mu      sync.Mutex
	writer  io.Writer
	ticker  *time.Ticker
	done    chan struct{}
	started time.Time
}

// NewSpinner creates a spinner writing to stderr. Call Start to show it.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		frames:  []string{"|", "/", "-", "\\"},
		writer:  os.Stderr,
		done:    make(chan struct{}),
	}
}

// SetWriter sets the output writer (useful for testing).
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start begins the animation. Calling it twice has no effect.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.started = time.Now()

	if !writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "%s...\n", s.message)
		return
	}

	s.ticker = time.NewTicker(100 * time.Millisecond)
	go s.spin()
}

func (s *Spinner) spin() {
	idx := 0
	for {
		select {
		case <-s.ticker.C:
			s.mu.Lock()
			if !s.running {
				s.mu.Unlock()
				return
			}
			elapsed := int(time.Since(s.started).Seconds())
			fmt.Fprintf(s.writer, "\r%s  %s (%ds)", s.frames[idx], s.message, elapsed)
			idx = (idx + 1) % len(s.frames)
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

// Stop ends the animation and clears the line. Safe to call repeatedly.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.done)

	if writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.message)+12))
	}
}

// UpdateMessage replaces the message while the spinner runs.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// StopWithMessage stops the spinner and prints a final line.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.writer, message)
}
