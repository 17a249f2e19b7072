package tasks

import (
	"sync"
	"time"
)

// TickFunc receives simulator ticks. gen identifies the run that produced the tick.
type TickFunc func(sessionID string, gen uint64)

// Simulator schedules two cancellable tasks: an interval tick and a one-shot guard that stops the ticks.
type Simulator struct {
	mu        sync.Mutex
	interval  time.Duration
	stopAfter time.Duration
	onTick    TickFunc

	ticker    *time.Timer
	guard     *time.Timer
	gen       uint64
	sessionID string
	running   bool
}

// NewSimulator creates a [Simulator] firing onTick every interval until stopAfter elapses.
//
// An interval <= 0 disables the simulator; a stopAfter <= 0 lets it run until stopped.
func NewSimulator(interval, stopAfter time.Duration, onTick TickFunc) *Simulator {
	return &Simulator{interval: interval, stopAfter: stopAfter, onTick: onTick}
}

// Start cancels any previous run and begins a new one for sessionID, returning its generation.
func (s *Simulator) Start(sessionID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	if s.interval <= 0 || s.onTick == nil {
		return s.gen
	}

	gen := s.gen
	s.sessionID = sessionID
	s.running = true
	s.ticker = time.AfterFunc(s.interval, func() { s.fire(gen) })
	if s.stopAfter > 0 {
		s.guard = time.AfterFunc(s.stopAfter, func() { s.expire(gen) })
	}
	return gen
}

// Stop cancels both tasks. Ticks already in flight are reported as inactive by [Simulator.Active].
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Running reports whether the interval task is scheduled.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Active reports whether gen is the current run and has not been stopped.
func (s *Simulator) Active(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && gen == s.gen
}

func (s *Simulator) fire(gen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.ticker = time.AfterFunc(s.interval, func() { s.fire(gen) })
	id, tick := s.sessionID, s.onTick
	s.mu.Unlock()

	tick(id, gen)
}

func (s *Simulator) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.gen {
		s.stopLocked()
	}
}

func (s *Simulator) stopLocked() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	if s.guard != nil {
		s.guard.Stop()
		s.guard = nil
	}
	if s.running {
		s.gen++
	}
	s.running = false
	s.sessionID = ""
}
