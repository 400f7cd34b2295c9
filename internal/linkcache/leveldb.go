package linkcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBStore keeps the last entry on disk so a restarted instance can serve
// a still-fresh list without refetching.
type LevelDBStore struct {
	db *leveldb.DB
}

func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}

	return &LevelDBStore{db: db}, nil
}

func (l *LevelDBStore) Load(_ context.Context, origin string) (*Entry, error) {
	data, err := l.db.Get([]byte(origin), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("leveldb get: %w", err)
	}

	var entry Entry
	if err := sonic.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}

	return &entry, nil
}

func (l *LevelDBStore) Save(_ context.Context, entry *Entry) error {
	data, err := sonic.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	return l.db.Put([]byte(entry.Origin), data, nil)
}

func (l *LevelDBStore) Close() error {
	return l.db.Close()
}
