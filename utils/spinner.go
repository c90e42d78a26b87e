package utils

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner initializes the process indicator.
type Spinner struct {
	w        io.Writer
	mu       sync.Mutex
	message  string
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewSpinner instantiates a new Spinner writing to w.
func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{w: w}
}

// Start starts the process indicator.
func (s *Spinner) Start(message string) {
	s.Update(message)
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})

	go func() {
		defer close(s.doneChan)
		for {
			for _, r := range `-\|/` {
				select {
				case <-s.stopChan:
					fmt.Fprint(s.w, "\r\x1b[K")
					return
				default:
					s.mu.Lock()
					msg := s.message
					s.mu.Unlock()
					fmt.Fprintf(s.w, "\r\x1b[K%s %s", msg, Success(string(r)))
					time.Sleep(time.Millisecond * 100)
				}
			}
		}
	}()
}

// Update replaces the message shown next to the indicator.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Stop stops the process indicator and clears its line.
func (s *Spinner) Stop() {
	if s.stopChan == nil {
		return
	}
	close(s.stopChan)
	<-s.doneChan
	s.stopChan = nil
}
