// Package strategy defines the link selection interface and implements the
// rotation algorithms:
//
//   - Sequential: round-robin over the candidate list driven by a Counter
//   - Uniform: independent uniform draw per request
//   - Weighted: primary/other bucket split with a configurable primary chance
//
// The Counter is the only shared mutable state of the engine. LocalCounter is
// exact within one process; RedisCounter shares the sequence across a fleet.
package strategy
