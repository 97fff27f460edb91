// internal/storage/leveldb/client.go
package leveldb

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fawad-mazhar/helios/internal/config"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const resultKeyPrefix = "result:"

type storeEntry struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Client persists run result payloads keyed by inspection port, so
// fetch_sim can retrieve a result after the run (or the whole batch)
// has gone away. Entries expire after a TTL and are swept by a
// background cleanup routine.
type Client struct {
	db              *leveldb.DB
	ttl             time.Duration
	cleanupInterval time.Duration
	mutex           sync.RWMutex
	stopCleanup     chan struct{}
}

func NewClient(cfg config.LevelDBConfig, ttl time.Duration) (*Client, error) {
	opts := &opt.Options{
		CompactionTableSize: 2 * 1024 * 1024, // 2MB
		WriteBuffer:         1 * 1024 * 1024, // 1MB
	}

	db, err := leveldb.OpenFile(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}

	client := &Client{
		db:              db,
		ttl:             ttl,
		cleanupInterval: 6 * time.Hour,
		stopCleanup:     make(chan struct{}),
	}

	go client.startCleanupRoutine()

	return client, nil
}

func (c *Client) Close() error {
	close(c.stopCleanup)
	return c.db.Close()
}

func resultKey(port int) []byte {
	return []byte(fmt.Sprintf("%s%d", resultKeyPrefix, port))
}

// PutResult stores a run's result payload under its port.
func (c *Client) PutResult(port int, payload []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry := storeEntry{
		Value:     payload,
		ExpiresAt: time.Now().Add(c.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal store entry: %w", err)
	}

	return c.db.Put(resultKey(port), data, nil)
}

// GetResult returns the persisted result for a port, or nil when no
// result exists or the entry has expired.
func (c *Client) GetResult(port int) ([]byte, error) {
	c.mutex.RLock()
	data, err := c.db.Get(resultKey(port), nil)
	c.mutex.RUnlock()
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entry storeEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal store entry: %w", err)
	}

	if time.Now().After(entry.ExpiresAt) {
		c.mutex.Lock()
		c.db.Delete(resultKey(port), nil)
		c.mutex.Unlock()
		return nil, nil
	}

	return entry.Value, nil
}

// DeleteResult removes a persisted result.
func (c *Client) DeleteResult(port int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.db.Delete(resultKey(port), nil)
}

func (c *Client) startCleanupRoutine() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Client) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	iter := c.db.NewIterator(util.BytesPrefix([]byte(resultKeyPrefix)), nil)
	defer iter.Release()

	var keysToDelete [][]byte

	for iter.Next() {
		var entry storeEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}

		if time.Now().After(entry.ExpiresAt) {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			keysToDelete = append(keysToDelete, key)
		}
	}

	for _, key := range keysToDelete {
		c.db.Delete(key, nil)
	}
}
