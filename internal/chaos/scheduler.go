package chaos

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chaosdojo/chaosdojo/internal/metrics"
)

// uncordonScheduler owns the delayed uncordon timers. Each cordoned node gets
// exactly one handle; scheduling the same node again replaces the old timer.
// Timers live in process memory only.
type uncordonScheduler struct {
	mu     sync.Mutex
	timers map[string]*entry
	logger logrus.FieldLogger
}

type entry struct {
	timer *time.Timer
	fn    func()
}

func newUncordonScheduler(logger logrus.FieldLogger) *uncordonScheduler {
	return &uncordonScheduler{
		timers: make(map[string]*entry),
		logger: logger,
	}
}

func (s *uncordonScheduler) schedule(node string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[node]; ok {
		old.timer.Stop()
		delete(s.timers, node)
		metrics.UncordonsPending.Dec()
	}

	e := &entry{fn: fn}
	e.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if cur, ok := s.timers[node]; !ok || cur != e {
			// canceled, flushed, or replaced between fire and lock
			s.mu.Unlock()
			return
		}
		delete(s.timers, node)
		metrics.UncordonsPending.Dec()
		s.mu.Unlock()
		fn()
	})
	s.timers[node] = e
	metrics.UncordonsPending.Inc()
	s.logger.WithFields(logrus.Fields{"node": node, "delay": delay}).Debug("uncordon scheduled")
}

func (s *uncordonScheduler) pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.timers))
	for node := range s.timers {
		out = append(out, node)
	}
	return out
}

// flush stops every timer and runs the uncordons synchronously.
func (s *uncordonScheduler) flush() {
	s.mu.Lock()
	entries := make(map[string]*entry, len(s.timers))
	for node, e := range s.timers {
		e.timer.Stop()
		entries[node] = e
		delete(s.timers, node)
		metrics.UncordonsPending.Dec()
	}
	s.mu.Unlock()

	for node, e := range entries {
		s.logger.WithField("node", node).Info("flushing pending uncordon")
		e.fn()
	}
}
