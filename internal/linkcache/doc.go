// Package linkcache keeps the most recent copy of the link list for at most
// one TTL.
//
// A Cache owns a single Entry per origin. Within the TTL the parsed list is
// served from memory; afterwards the next caller fetches the origin again.
// Concurrent misses are collapsed into one fetch. A failed fetch is never
// papered over with an expired entry: the caller gets ErrSourceUnavailable
// and the redirect path falls back.
//
// Entries are also written, in the background, to a Store. MemoryStore keeps
// them in process, RedisStore shares them across instances and LevelDBStore
// keeps the last list across restarts. A failing Store never fails a request.
package linkcache
