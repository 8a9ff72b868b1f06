package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Metrics exposes a small in-memory counter set for the push pipeline.
type Metrics struct {
	consumed   atomic.Int64 // envelopes taken off the queue or HTTP
	forwarded  atomic.Int64 // messages posted to open client sessions
	displayed  atomic.Int64 // Web Push sends accepted by the push service
	suppressed atomic.Int64 // system notifications skipped for a focused client
	failed     atomic.Int64 // sends that exhausted retries
	pruned     atomic.Int64 // dead subscriptions removed after 404/410
}

// New returns a zeroed Metrics collector.
func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncConsumed()   { m.consumed.Add(1) }
func (m *Metrics) IncForwarded()  { m.forwarded.Add(1) }
func (m *Metrics) IncDisplayed()  { m.displayed.Add(1) }
func (m *Metrics) IncSuppressed() { m.suppressed.Add(1) }
func (m *Metrics) IncFailed()     { m.failed.Add(1) }
func (m *Metrics) IncPruned()     { m.pruned.Add(1) }

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"consumed":   m.consumed.Load(),
		"forwarded":  m.forwarded.Load(),
		"displayed":  m.displayed.Load(),
		"suppressed": m.suppressed.Load(),
		"failed":     m.failed.Load(),
		"pruned":     m.pruned.Load(),
	}
}

// Handler serves the counters as JSON so the service can be monitored
// without a heavier metrics dependency.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.Snapshot())
	})
}
