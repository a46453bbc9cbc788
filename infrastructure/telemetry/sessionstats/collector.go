package sessionstats

import (
	"context"
	"sync/atomic"

	"avb/domain/session"
)

type Snapshot struct {
	Established  uint64
	Rejected     uint64
	Ended        uint64
	Joins        uint64
	JoinFailures uint64
}

// Collector counts session lifecycle events from either side of the game.
type Collector struct {
	established  atomic.Uint64
	rejected     atomic.Uint64
	ended        atomic.Uint64
	joins        atomic.Uint64
	joinFailures atomic.Uint64
	started      atomic.Bool
}

func NewCollector() *Collector {
	return &Collector{}
}

// Start consumes events until ctx is done or events is closed.
func (c *Collector) Start(ctx context.Context, events <-chan session.Event) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			c.Record(e)
		}
	}
}

func (c *Collector) Record(e session.Event) {
	switch e.(type) {
	case session.SessionEstablished:
		c.established.Add(1)
	case session.ConnectionRejected:
		c.rejected.Add(1)
	case session.SessionEnded:
		c.ended.Add(1)
	case session.JoinSucceeded:
		c.joins.Add(1)
	case session.JoinFailed:
		c.joinFailures.Add(1)
	}
}

func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Established:  c.established.Load(),
		Rejected:     c.rejected.Load(),
		Ended:        c.ended.Load(),
		Joins:        c.joins.Load(),
		JoinFailures: c.joinFailures.Load(),
	}
}
