package gpu

import (
	"sync"

	"go.uber.org/zap"
)

// semaphore is binary: one producer signal is consumed by exactly one consumer wait.
// Both backends execute a single ordered timeline, so the semaphore is pure bookkeeping that
// rejects a wait without a matching signal and a second signal without a wait.
type semaphore struct {
	mu        *sync.Mutex
	logger    *zap.Logger
	label     string
	signaled  bool
	destroyed bool
}

var _ Semaphore = &semaphore{}

func newSemaphore(logger *zap.Logger, label string) *semaphore {
	return &semaphore{mu: &sync.Mutex{}, logger: logger, label: label}
}

func (s *semaphore) Label() string {
	return s.label
}

func (s *semaphore) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
}

func (s *semaphore) signal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signaled {
		s.logger.Panic("semaphore signaled twice without a wait", zap.String("semaphore", s.label))
	}
	s.signaled = true
}

func (s *semaphore) consume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.signaled {
		s.logger.Panic("wait on a semaphore no submission signals", zap.String("semaphore", s.label))
	}
	s.signaled = false
}

func signalAll(logger *zap.Logger, sems []Semaphore) {
	for _, s := range sems {
		asSemaphore(logger, s).signal()
	}
}

func consumeAll(logger *zap.Logger, sems []Semaphore) {
	for _, s := range sems {
		asSemaphore(logger, s).consume()
	}
}

func asSemaphore(logger *zap.Logger, s Semaphore) *semaphore {
	sem, ok := s.(*semaphore)
	if !ok {
		logger.Panic("foreign semaphore passed to submission", zap.String("semaphore", s.Label()))
	}
	return sem
}

// FenceStats reports how a fence has been observed since creation.
type FenceStats struct {
	// Observations counts Signaled/Wait calls that saw the fence signaled.
	Observations int
	// Resets counts Reset calls.
	Resets int
	// DoubleObservations counts observations of an already observed signal without a reset between.
	DoubleObservations int
	// Submissions counts submissions that carried the fence.
	Submissions int
}

// fence is shared by both backends; poll pumps the backend so pending completions are delivered.
type fence struct {
	mu        *sync.Mutex
	logger    *zap.Logger
	label     string
	signaled  bool
	observed  bool
	pending   bool
	destroyed bool
	stats     FenceStats
	poll      func(wait bool)
}

var _ Fence = &fence{}

func newFence(logger *zap.Logger, label string, signaled bool, poll func(wait bool)) *fence {
	return &fence{
		mu:       &sync.Mutex{},
		logger:   logger,
		label:    label,
		signaled: signaled,
		poll:     poll,
	}
}

func (f *fence) Signaled() bool {
	if f.poll != nil {
		f.poll(false)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		f.observe()
	}
	return f.signaled
}

func (f *fence) Wait() {
	for {
		f.mu.Lock()
		if f.signaled {
			f.observe()
			f.mu.Unlock()
			return
		}
		if !f.pending {
			f.mu.Unlock()
			f.logger.Panic("wait on a fence no submission will signal", zap.String("fence", f.label))
			return
		}
		f.mu.Unlock()
		if f.poll != nil {
			f.poll(true)
		}
	}
}

func (f *fence) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signaled = false
	f.observed = false
	f.stats.Resets++
}

func (f *fence) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
}

// observe must be called with mu held.
func (f *fence) observe() {
	if f.observed {
		f.stats.DoubleObservations++
	}
	f.observed = true
	f.stats.Observations++
}

// arm marks the fence as carried by a submission; submitting a signaled fence is invalid.
func (f *fence) arm() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		f.logger.Panic("submission with a fence that was not reset", zap.String("fence", f.label))
	}
	f.pending = true
	f.stats.Submissions++
}

func (f *fence) signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = false
	f.signaled = true
}

func asFence(logger *zap.Logger, fc Fence) *fence {
	f, ok := fc.(*fence)
	if !ok {
		logger.Panic("foreign fence passed to submission")
	}
	return f
}

// InspectFence returns the observation statistics of a fence created by this package.
//
// Parameters:
//   - f: the fence to inspect
//
// Returns:
//   - FenceStats: the fence statistics
//   - bool: false if f was not created by this package
func InspectFence(f Fence) (FenceStats, bool) {
	fc, ok := f.(*fence)
	if !ok {
		return FenceStats{}, false
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.stats, true
}
