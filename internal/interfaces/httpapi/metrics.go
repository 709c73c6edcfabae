package httpapi

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"tradefeed/internal/application"
)

// Metrics accumulates service counters and implements the aggregator's
// stream observer. Exposition is plain text, one counter per line.
type Metrics struct {
	mu sync.Mutex

	startTime time.Time

	addressRequests    uint64
	streamsStarted     uint64
	streamsClosed      map[application.StreamOutcome]uint64
	batchesPushed      uint64
	transactionsPushed uint64
	fetches            map[string]uint64
	syncRuns           uint64
	syncProfiles       uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime:     time.Now(),
		streamsClosed: make(map[application.StreamOutcome]uint64),
		fetches:       make(map[string]uint64),
	}
}

func (m *Metrics) OnAddressRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addressRequests++
}

func (m *Metrics) OnStreamStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamsStarted++
}

func (m *Metrics) OnTransactionsPushed(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchesPushed++
	m.transactionsPushed += uint64(count)
}

func (m *Metrics) OnStreamClosed(outcome application.StreamOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamsClosed[outcome]++
}

func (m *Metrics) OnFetch(chain string, status application.FetchStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches[chain+"/"+status.String()]++
}

func (m *Metrics) OnSyncCompleted(profiles int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncRuns++
	m.syncProfiles += uint64(profiles)
}

func (m *Metrics) WriteExposition(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fmt.Fprintf(w, "tradefeed_uptime_seconds %d\n", int64(time.Since(m.startTime).Seconds()))
	fmt.Fprintf(w, "tradefeed_address_requests_total %d\n", m.addressRequests)
	fmt.Fprintf(w, "tradefeed_streams_started_total %d\n", m.streamsStarted)
	for _, outcome := range sortedKeys(m.streamsClosed) {
		fmt.Fprintf(w, "tradefeed_streams_closed_total{outcome=%q} %d\n", outcome, m.streamsClosed[outcome])
	}
	fmt.Fprintf(w, "tradefeed_stream_batches_total %d\n", m.batchesPushed)
	fmt.Fprintf(w, "tradefeed_stream_transactions_total %d\n", m.transactionsPushed)
	for _, key := range sortedKeys(m.fetches) {
		fmt.Fprintf(w, "tradefeed_fetches_total{target=%q} %d\n", key, m.fetches[key])
	}
	fmt.Fprintf(w, "tradefeed_follow_syncs_total %d\n", m.syncRuns)
	fmt.Fprintf(w, "tradefeed_follow_sync_profiles_total %d\n", m.syncProfiles)
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
