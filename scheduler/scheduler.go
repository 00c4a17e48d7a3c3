// Package scheduler runs named periodic and one-shot background tasks, such
// as the delayed tab bonus evaluation after a quest completion.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is a scheduled task. ctx is cancelled when the scheduler stops.
type TaskFn func(ctx context.Context)

// Scheduler manages periodic and delayed tasks.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*tickerEntry
	delays  map[string]*delayEntry
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.Logger
}

type tickerEntry struct {
	interval time.Duration
	stopCh   chan struct{}
}

type delayEntry struct {
	timer *time.Timer
	due   time.Time
	fn    TaskFn
}

// Task describes a registered task.
type Task struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Interval time.Duration `json:"interval,omitempty"`
	Due      *time.Time    `json:"due,omitempty"`
}

// New creates a Scheduler.
func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tickers: make(map[string]*tickerEntry),
		delays:  make(map[string]*delayEntry),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

func (s *Scheduler) run(name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked", zap.String("task", name), zap.Any("recover", r))
		}
	}()
	fn(s.ctx)
}

// AddTicker runs fn every interval until removed or stopped. A task with
// the same name is replaced.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if old, ok := s.tickers[name]; ok {
		close(old.stopCh)
		delete(s.tickers, name)
	}

	entry := &tickerEntry{interval: interval, stopCh: make(chan struct{})}
	s.tickers[name] = entry

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(name, fn)
			case <-entry.stopCh:
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
	return true
}

// AddDelay runs fn once after delay. A pending task with the same name is
// cancelled and replaced. It reports false once the scheduler is stopped.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn TaskFn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.cancelDelay(name)

	entry := &delayEntry{due: time.Now().Add(delay), fn: fn}
	s.wg.Add(1)
	entry.timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		if s.delays[name] == entry {
			delete(s.delays, name)
		}
		s.mu.Unlock()
		s.run(name, fn)
	})
	s.delays[name] = entry
	return true
}

// cancelDelay must be called with s.mu held.
func (s *Scheduler) cancelDelay(name string) {
	old, ok := s.delays[name]
	if !ok {
		return
	}
	delete(s.delays, name)
	if old.timer.Stop() {
		s.wg.Done()
	}
}

// Remove stops and removes a ticker or pending delay by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.tickers[name]; ok {
		close(entry.stopCh)
		delete(s.tickers, name)
	}
	s.cancelDelay(name)
}

// Stop stops tickers, runs every pending delay once without waiting for its
// timer, and waits for running tasks. New tasks are rejected afterwards.
// It is safe to call more than once.
func (s *Scheduler) Stop() {
	type flushed struct {
		name string
		fn   TaskFn
	}
	var pending []flushed

	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		for name, entry := range s.tickers {
			close(entry.stopCh)
			delete(s.tickers, name)
		}
		for name, d := range s.delays {
			delete(s.delays, name)
			// A timer that already fired is running; it releases wg itself.
			if d.timer.Stop() {
				pending = append(pending, flushed{name: name, fn: d.fn})
			}
		}
	}
	s.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool { return pending[i].name < pending[j].name })
	for _, p := range pending {
		s.logger.Info("scheduler flushing pending task", zap.String("task", p.name))
		s.run(p.name, p.fn)
		s.wg.Done()
	}
	s.cancel()
	s.wg.Wait()
}

// Tasks returns every registered ticker and pending delay, sorted by name.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.tickers)+len(s.delays))
	for name, t := range s.tickers {
		out = append(out, Task{Name: name, Kind: "ticker", Interval: t.interval})
	}
	for name, d := range s.delays {
		due := d.due
		out = append(out, Task{Name: name, Kind: "delay", Due: &due})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Pending reports the number of delays not yet run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}
