package main

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

type result struct {
	status   int
	location string
	latency  time.Duration
	err      error
}

type recorder struct {
	mutex     sync.Mutex
	fallback  string
	locations map[string]int
	statuses  map[int]int
	latencies []time.Duration
	errors    int
}

func newRecorder(fallback string) *recorder {
	return &recorder{
		fallback:  fallback,
		locations: make(map[string]int),
		statuses:  make(map[int]int),
	}
}

func (r *recorder) add(res result) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if res.latency > 0 {
		r.latencies = append(r.latencies, res.latency)
	}

	if res.err != nil {
		r.errors++
		return
	}

	r.statuses[res.status]++
	if res.location != "" {
		r.locations[res.location]++
	}
}

// Summary is the report printed and optionally written as JSON.
type Summary struct {
	Target        string         `json:"target"`
	Concurrency   int            `json:"concurrency"`
	Total         int            `json:"total"`
	Errors        int            `json:"errors"`
	NonRedirects  int            `json:"non_redirects"`
	Fallbacks     int            `json:"fallbacks"`
	Destinations  map[string]int `json:"destinations"`
	StatusCodes   map[int]int    `json:"status_codes"`
	Spread        int            `json:"spread"`
	DurationMS    int64          `json:"duration_ms"`
	ThroughputRPS float64        `json:"throughput_rps"`
	P50MS         float64        `json:"p50_ms"`
	P90MS         float64        `json:"p90_ms"`
	P99MS         float64        `json:"p99_ms"`
}

func (r *recorder) summarize(target string, concurrency int, elapsed time.Duration) Summary {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s := Summary{
		Target:       target,
		Concurrency:  concurrency,
		Errors:       r.errors,
		Destinations: make(map[string]int),
		StatusCodes:  make(map[int]int),
		DurationMS:   elapsed.Milliseconds(),
	}

	for code, n := range r.statuses {
		s.StatusCodes[code] = n
		s.Total += n
		if code != 302 {
			s.NonRedirects += n
		}
	}
	s.Total += r.errors

	lowest, highest := -1, 0
	for loc, n := range r.locations {
		if r.fallback != "" && loc == r.fallback {
			s.Fallbacks += n
			continue
		}
		s.Destinations[loc] = n
		if lowest < 0 || n < lowest {
			lowest = n
		}
		if n > highest {
			highest = n
		}
	}
	if lowest >= 0 {
		s.Spread = highest - lowest
	}

	if elapsed > 0 {
		s.ThroughputRPS = float64(s.Total) / elapsed.Seconds()
	}

	if len(r.latencies) > 0 {
		tmp := make([]time.Duration, len(r.latencies))
		copy(tmp, r.latencies)
		sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })
		pick := func(p float64) float64 {
			return float64(tmp[int(float64(len(tmp)-1)*p)].Microseconds()) / 1000.0
		}
		s.P50MS = pick(0.50)
		s.P90MS = pick(0.90)
		s.P99MS = pick(0.99)
	}

	return s
}

func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "--- Rotation Load Test ---")
	fmt.Fprintf(w, "Target: %s  Concurrency: %d\n", s.Target, s.Concurrency)
	fmt.Fprintf(w, "Total: %d  Errors: %d  Non-redirects: %d  Fallbacks: %d\n", s.Total, s.Errors, s.NonRedirects, s.Fallbacks)
	fmt.Fprintf(w, "Duration: %dms  Throughput: %.2f req/s\n", s.DurationMS, s.ThroughputRPS)
	fmt.Fprintf(w, "Latency: p50=%.3fms p90=%.3fms p99=%.3fms\n", s.P50MS, s.P90MS, s.P99MS)

	keys := make([]string, 0, len(s.Destinations))
	for k := range s.Destinations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "\nDestinations (spread %d):\n", s.Spread)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s -> %d\n", k, s.Destinations[k])
	}
}
