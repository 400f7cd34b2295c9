// Loadtest fires concurrent requests at the redirect endpoint without
// following redirects and reports how the Location values were distributed.
//
// Usage:
//
//	go run ./scripts/loadtest -url http://localhost:8080/ -concurrency 20 -requests 5000
//	go run ./scripts/loadtest -url http://localhost:8080/ -fallback https://fallback.test/ -out summary.json -strict
//
// With -strict the exit code is 3 when the spread between the most and least
// served destination exceeds the concurrency (sequential rotation bound).
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

func main() {
	var (
		url         = flag.String("url", "http://localhost:8080/", "Redirect endpoint")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		requests    = flag.Int("requests", 1000, "Total number of requests to send")
		referer     = flag.String("referer", "", "Referer header to send")
		fallback    = flag.String("fallback", "", "Fallback URL, reported separately")
		timeoutSec  = flag.Int("timeout", 10, "Per-request timeout in seconds")
		outJSON     = flag.String("out", "", "Write JSON summary to this file (optional)")
		strict      = flag.Bool("strict", false, "Fail when rotation is not fair within the concurrency bound")
	)
	flag.Parse()

	client := &http.Client{
		Timeout: time.Duration(*timeoutSec) * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	rec := newRecorder(*fallback)
	jobs := make(chan int)
	var wg sync.WaitGroup

	start := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				rec.add(hit(client, *url, *referer))
			}
		}()
	}

	go func() {
		for i := 0; i < *requests; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	wg.Wait()

	summary := rec.summarize(*url, *concurrency, time.Since(start))
	summary.Print(os.Stdout)

	if *outJSON != "" {
		b, err := sonic.ConfigStd.MarshalIndent(summary, "", "  ")
		if err == nil {
			err = os.WriteFile(*outJSON, b, 0o644)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to write json summary: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote JSON summary to %s\n", *outJSON)
	}

	if summary.Errors > 0 || summary.NonRedirects > 0 {
		os.Exit(2)
	}

	if *strict && summary.Spread > *concurrency {
		os.Exit(3)
	}
}

func hit(client *http.Client, url, referer string) result {
	start := time.Now()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return result{err: err}
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return result{err: err, latency: time.Since(start)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return result{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		latency:  time.Since(start),
	}
}
