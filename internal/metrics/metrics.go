package metrics

import "sync/atomic"

// Sink receives consumer-side delivery events. It is injected at
// construction so nothing in the pipeline depends on process-wide counters,
// and tests can observe events through a fake.
type Sink interface {
	EmailProcessed()
	EmailFailed()
	DuplicateDelivery()
	IntegrityAnomaly()
}

// Counters is the in-process Sink used in production; a telemetry exporter
// can read the totals periodically.
type Counters struct {
	processed  atomic.Int64
	failed     atomic.Int64
	duplicates atomic.Int64
	anomalies  atomic.Int64
}

func NewCounters() *Counters { return &Counters{} }

func (c *Counters) EmailProcessed()    { c.processed.Add(1) }
func (c *Counters) EmailFailed()       { c.failed.Add(1) }
func (c *Counters) DuplicateDelivery() { c.duplicates.Add(1) }
func (c *Counters) IntegrityAnomaly()  { c.anomalies.Add(1) }

func (c *Counters) Processed() int64  { return c.processed.Load() }
func (c *Counters) Failed() int64     { return c.failed.Load() }
func (c *Counters) Duplicates() int64 { return c.duplicates.Load() }
func (c *Counters) Anomalies() int64  { return c.anomalies.Load() }

// Noop discards all events.
type Noop struct{}

func (Noop) EmailProcessed()    {}
func (Noop) EmailFailed()       {}
func (Noop) DuplicateDelivery() {}
func (Noop) IntegrityAnomaly()  {}
