package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000

type Metrics struct {
	mutex         sync.RWMutex
	redirects     int64
	selections    map[string]int64
	fallbacks     map[string]int64
	responseTimes []time.Duration
	cache         CacheMetrics
	botHits       int64
	startTime     time.Time
}

type Snapshot struct {
	TotalRedirects int64                         `json:"total_redirects"`
	Uptime         time.Duration                 `json:"uptime"`
	Strategy       string                        `json:"strategy"`
	Destinations   map[string]DestinationMetrics `json:"destinations"`
	Fallbacks      map[string]int64              `json:"fallbacks"`
	AvgResolve     time.Duration                 `json:"avg_resolve"`
	P50Resolve     time.Duration                 `json:"p50_resolve"`
	P95Resolve     time.Duration                 `json:"p95_resolve"`
	P99Resolve     time.Duration                 `json:"p99_resolve"`
	Cache          CacheMetrics                  `json:"cache"`
	BotHits        int64                         `json:"bot_hits"`
	DroppedEvents  int64                         `json:"dropped_events"`
}

type DestinationMetrics struct {
	Selections int64   `json:"selections"`
	Share      float64 `json:"share"`
}

type CacheMetrics struct {
	Refreshes   int64     `json:"refreshes"`
	Failures    int64     `json:"failures"`
	StoreLoads  int64     `json:"store_loads"`
	Candidates  int       `json:"candidates"`
	LastRefresh time.Time `json:"last_refresh"`
}

// RecordRedirect counts a redirect to a selected candidate. Fallbacks count
// towards the total through RecordFallback.
func (m *Metrics) RecordRedirect(destination string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.redirects++
	m.selections[destination]++
	m.recordDuration(duration)
}

func (m *Metrics) RecordFallback(reason string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.redirects++
	m.fallbacks[reason]++
	m.recordDuration(duration)
}

func (m *Metrics) RecordRefresh(at time.Time, candidates int, fromStore, failed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch {
	case failed:
		m.cache.Failures++
		return
	case fromStore:
		m.cache.StoreLoads++
	default:
		m.cache.Refreshes++
	}

	m.cache.Candidates = candidates
	m.cache.LastRefresh = at
}

func (m *Metrics) RecordBotHit() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.botHits++
}

// recordDuration must be called with the mutex held.
func (m *Metrics) recordDuration(duration time.Duration) {
	m.responseTimes = append(m.responseTimes, duration)

	if len(m.responseTimes) > maxSamples {
		m.responseTimes = m.responseTimes[1:]
	}
}

func (m *Metrics) Snapshot(strategy string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		TotalRedirects: m.redirects,
		Uptime:         time.Since(m.startTime),
		Strategy:       strategy,
		Destinations:   make(map[string]DestinationMetrics, len(m.selections)),
		Fallbacks:      make(map[string]int64, len(m.fallbacks)),
		Cache:          m.cache,
		BotHits:        m.botHits,
	}

	var selected int64
	for _, n := range m.selections {
		selected += n
	}

	for dest, n := range m.selections {
		snap.Destinations[dest] = DestinationMetrics{
			Selections: n,
			Share:      float64(n) / float64(selected),
		}
	}

	for reason, n := range m.fallbacks {
		snap.Fallbacks[reason] = n
	}

	if len(m.responseTimes) > 0 {
		sorted := make([]time.Duration, len(m.responseTimes))
		copy(sorted, m.responseTimes)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i] < sorted[j]
		})

		snap.AvgResolve = average(sorted)
		snap.P50Resolve = percentile(sorted, 0.50)
		snap.P95Resolve = percentile(sorted, 0.95)
		snap.P99Resolve = percentile(sorted, 0.99)
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		selections: make(map[string]int64),
		fallbacks:  make(map[string]int64),
		startTime:  time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
