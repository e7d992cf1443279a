package ports

// DegradationState is the hot-path read view of the degradation manager.
// Write handlers consult ReadOnly before opening a unit of work; the
// current-wallet query consults CacheBypass before touching the cache.
type DegradationState interface {
	// ReadOnly reports whether mutations are currently rejected.
	ReadOnly() bool

	// CacheBypass reports whether reads should skip the cache entirely.
	CacheBypass() bool
}

// EventProcessingReporter receives outbox publisher cycle outcomes. A
// sustained run of fully-failed cycles marks event processing degraded;
// a clean cycle clears the flag.
type EventProcessingReporter interface {
	SetEventProcessingDegraded(degraded bool)
}
