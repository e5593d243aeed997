package saori

import (
	"sync/atomic"

	"github.com/pior/saori/wire"
)

// ModuleStats contains statistics about requests handled by a Module.
//
// For Prometheus integration, expose these as counters, or pass an Observer
// in Config to get per-request callbacks instead.
type ModuleStats struct {
	Requests       uint64 // Total requests handled
	VersionProbes  uint64 // Version probes answered
	Executes       uint64 // Execute requests dispatched to the handler
	Malformed      uint64 // Requests rejected for their first line
	OK             uint64 // 200 responses (version probes included)
	BadRequests    uint64 // 400 responses (malformed included)
	InternalErrors uint64 // 500 responses
	HandlerErrors  uint64 // Handler errors, panics and open-breaker rejections
}

// ClientStats contains statistics about client operations.
type ClientStats struct {
	Requests       uint64 // Total requests sent
	OK             uint64 // 200 responses received
	BadRequests    uint64 // 400 responses received
	InternalErrors uint64 // 500 responses received
	Errors         uint64 // Requests that failed without a response
}

// moduleStatsCollector provides internal methods for updating module stats.
// Not exported - the module updates its own stats.
type moduleStatsCollector struct {
	stats *ModuleStats
}

func newModuleStatsCollector() *moduleStatsCollector {
	return &moduleStatsCollector{
		stats: &ModuleStats{},
	}
}

func (c *moduleStatsCollector) recordMalformed() {
	atomic.AddUint64(&c.stats.Requests, 1)
	atomic.AddUint64(&c.stats.Malformed, 1)
	atomic.AddUint64(&c.stats.BadRequests, 1)
}

func (c *moduleStatsCollector) recordVersion() {
	atomic.AddUint64(&c.stats.Requests, 1)
	atomic.AddUint64(&c.stats.VersionProbes, 1)
	atomic.AddUint64(&c.stats.OK, 1)
}

func (c *moduleStatsCollector) recordExecute(kind wire.ResponseKind, handlerErr bool) {
	atomic.AddUint64(&c.stats.Requests, 1)
	atomic.AddUint64(&c.stats.Executes, 1)
	if handlerErr {
		atomic.AddUint64(&c.stats.HandlerErrors, 1)
	}
	c.recordKind(kind)
}

func (c *moduleStatsCollector) recordKind(kind wire.ResponseKind) {
	switch kind {
	case wire.KindOK:
		atomic.AddUint64(&c.stats.OK, 1)
	case wire.KindBadRequest:
		atomic.AddUint64(&c.stats.BadRequests, 1)
	default:
		atomic.AddUint64(&c.stats.InternalErrors, 1)
	}
}

func (c *moduleStatsCollector) snapshot() ModuleStats {
	return ModuleStats{
		Requests:       atomic.LoadUint64(&c.stats.Requests),
		VersionProbes:  atomic.LoadUint64(&c.stats.VersionProbes),
		Executes:       atomic.LoadUint64(&c.stats.Executes),
		Malformed:      atomic.LoadUint64(&c.stats.Malformed),
		OK:             atomic.LoadUint64(&c.stats.OK),
		BadRequests:    atomic.LoadUint64(&c.stats.BadRequests),
		InternalErrors: atomic.LoadUint64(&c.stats.InternalErrors),
		HandlerErrors:  atomic.LoadUint64(&c.stats.HandlerErrors),
	}
}

// clientStatsCollector provides internal methods for updating client stats.
// Not exported - client updates its own stats.
type clientStatsCollector struct {
	stats *ClientStats
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{
		stats: &ClientStats{},
	}
}

func (c *clientStatsCollector) recordResponse(kind wire.ResponseKind) {
	atomic.AddUint64(&c.stats.Requests, 1)
	switch kind {
	case wire.KindOK:
		atomic.AddUint64(&c.stats.OK, 1)
	case wire.KindBadRequest:
		atomic.AddUint64(&c.stats.BadRequests, 1)
	default:
		atomic.AddUint64(&c.stats.InternalErrors, 1)
	}
}

func (c *clientStatsCollector) recordError() {
	atomic.AddUint64(&c.stats.Requests, 1)
	atomic.AddUint64(&c.stats.Errors, 1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Requests:       atomic.LoadUint64(&c.stats.Requests),
		OK:             atomic.LoadUint64(&c.stats.OK),
		BadRequests:    atomic.LoadUint64(&c.stats.BadRequests),
		InternalErrors: atomic.LoadUint64(&c.stats.InternalErrors),
		Errors:         atomic.LoadUint64(&c.stats.Errors),
	}
}
