// Package destination holds the validated redirect target, the URL validator
// that produces it and the statically configured fallback that is used
// whenever any earlier stage of the pipeline fails.
package destination
