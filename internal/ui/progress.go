package ui

import (
	"fmt"
	"sync"
	"time"
)

// Spinner shows an animated indicator for long-running operations
type Spinner struct {
	frames  []string
	current int
	message string
	stop    chan bool
	stopped bool
	mu      sync.Mutex
}

// NewSpinner creates a new spinner with a message
func NewSpinner(message string) *Spinner {
	return &Spinner{
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		message: message,
		stop:    make(chan bool),
	}
}

// Start begins the spinner animation
func (s *Spinner) Start() {
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				if !s.stopped {
					fmt.Printf("\r%s %s", ColorProgress(s.frames[s.current]), s.message)
					s.current = (s.current + 1) % len(s.frames)
				}
				s.mu.Unlock()
			}
		}
	}()
}

// Stop stops the spinner and prints the final status
func (s *Spinner) Stop(success bool, message string) {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	close(s.stop)

	fmt.Print("\r\033[K")

	if success {
		fmt.Printf("%s %s\n", ColorSuccess("✓"), message)
	} else {
		fmt.Printf("%s %s\n", ColorError("✗"), message)
	}
}

// UpdateMessage updates the spinner message
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// StepProgress reports progress across a fixed number of steps, one
// line per step, suitable for transform runs.
type StepProgress struct {
	total     int
	done      int
	failed    int
	startTime time.Time
	mu        sync.Mutex
}

// NewStepProgress creates a progress reporter for total steps
func NewStepProgress(total int) *StepProgress {
	return &StepProgress{total: total, startTime: time.Now()}
}

// Step records the completion of one named step
func (p *StepProgress) Step(name string, success bool, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	mark := ColorSuccess("✓")
	if !success {
		mark = ColorError("✗")
		p.failed++
	}

	line := fmt.Sprintf("%s [%d/%d] %s", mark, p.done, p.total, name)
	if detail != "" {
		line += " " + ColorDim(detail)
	}
	fmt.Println(line)
}

// Finish prints the run summary
func (p *StepProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime).Round(time.Millisecond)
	if p.failed > 0 {
		fmt.Printf("\n%s %d of %d steps failed in %s\n", ColorError("✗"), p.failed, p.total, elapsed)
		return
	}
	fmt.Printf("\n%s Completed %d steps in %s\n", ColorSuccess("✓"), p.done, elapsed)
}
