// Package source retrieves the raw text of the link list from its origin.
// HTTPFetcher performs the GET with an outbound rate limit and a capped body;
// GuardedFetcher wraps any Fetcher with a per-origin circuit breaker.
package source
