package linkcache

import (
	"context"
	"time"
)

// Entry is one fetched payload of the link list.
type Entry struct {
	Origin    string        `json:"origin"`
	Payload   []byte        `json:"payload"`
	FetchedAt time.Time     `json:"fetched_at"`
	TTL       time.Duration `json:"ttl"`
}

// Fresh reports whether the entry is younger than its TTL at now.
func (e *Entry) Fresh(now time.Time) bool {
	return e != nil && now.Sub(e.FetchedAt) < e.TTL
}

// Store persists the latest Entry per origin. Load returns nil, nil when no
// entry exists.
type Store interface {
	Load(ctx context.Context, origin string) (*Entry, error)
	Save(ctx context.Context, entry *Entry) error
	Close() error
}
