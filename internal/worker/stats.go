package worker

import (
	"github.com/programme-lv/fnjudge/api"
	"github.com/puzpuzpuz/xsync/v3"
)

// Stats counts jobs of one worker. It is safe for concurrent use.
type Stats struct {
	inFlight *xsync.Counter
	failed   *xsync.Counter
	done     *xsync.MapOf[api.JobKind, *xsync.Counter]
}

func newStats() *Stats {
	return &Stats{
		inFlight: xsync.NewCounter(),
		failed:   xsync.NewCounter(),
		done:     xsync.NewMapOf[api.JobKind, *xsync.Counter](),
	}
}

func (s *Stats) finish(kind api.JobKind, ok bool) {
	s.inFlight.Dec()
	if !ok {
		s.failed.Inc()
	}
	c, _ := s.done.LoadOrCompute(kind, xsync.NewCounter)
	c.Inc()
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	InFlight int64
	Failed   int64
	Done     map[api.JobKind]int64
}

func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		InFlight: s.inFlight.Value(),
		Failed:   s.failed.Value(),
		Done:     map[api.JobKind]int64{},
	}
	s.done.Range(func(k api.JobKind, c *xsync.Counter) bool {
		snap.Done[k] = c.Value()
		return true
	})
	return snap
}
