package main

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter shows the current scan phase with the time left in the
// window. It is single-use: Start once, Stop exactly once.
type ProgressPrinter struct {
	w          io.Writer
	prefix     string
	phase      atomic.Value        // string
	stopPhases map[string]struct{} // phases that stop the printer
	duration   time.Duration
	ticker     atomic.Pointer[time.Ticker]
	started    atomic.Bool
	stopChan   chan struct{}
	done       chan struct{}
}

// NewCountdownProgressPrinter creates a printer counting down from duration.
func NewCountdownProgressPrinter(w io.Writer, prefix, phase string, duration time.Duration, stopPhases ...string) *ProgressPrinter {
	stopSet := make(map[string]struct{}, len(stopPhases))
	for _, p := range stopPhases {
		stopSet[p] = struct{}{}
	}
	p := &ProgressPrinter{
		w:          w,
		prefix:     prefix,
		stopPhases: stopSet,
		duration:   duration,
	}
	p.phase.Store(phase)
	return p
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}

	p.done = make(chan struct{})
	p.stopChan = make(chan struct{})
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)
	start := time.Now()

	fmt.Fprintf(p.w, "\r%s (%s...)   ", p.prefix, p.phase.Load().(string))

	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				phase := p.phase.Load().(string)
				if _, stop := p.stopPhases[phase]; stop {
					return
				}
				remaining := p.duration - time.Since(start)
				if remaining < 0 {
					remaining = 0
				}
				// Round to the nearest second
				fmt.Fprintf(p.w, "\r%s (%s %ds)   ", p.prefix, phase, int(remaining.Seconds()+0.5))
			}
		}
	}()
}

// Callback returns a scanner progress callback that updates the phase and
// stops the printer on a stop phase.
func (p *ProgressPrinter) Callback() func(phase string) {
	return func(phase string) {
		p.phase.Store(phase)
		if _, stop := p.stopPhases[phase]; stop {
			p.Stop()
		}
	}
}

// Stop stops the display and clears the line. Safe to call more than once.
func (p *ProgressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return
	}

	ticker.Stop()
	close(p.stopChan)
	<-p.done

	fmt.Fprint(p.w, clearLineSequence)
}
