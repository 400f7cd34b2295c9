// Package rotator ties the link pipeline together: it fetches the current
// candidate list, selects one candidate, validates and tags it, and falls back
// to the configured destination whenever any stage fails.
//
// Resolve is total. Every outcome carries a usable Destination, and the error
// that caused a fallback is reported alongside it for logging and metrics.
package rotator
