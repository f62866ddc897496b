package lndclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Cursor is the position of an invoice subscription: the highest add and
// settle indexes already handled.
type Cursor struct {
	AddIndex    uint64 `json:"add_index"`
	SettleIndex uint64 `json:"settle_index"`
}

// advance moves the cursor past an observed invoice. It never moves back.
func (c Cursor) advance(addIndex, settleIndex uint64) Cursor {
	if addIndex > c.AddIndex {
		c.AddIndex = addIndex
	}
	if settleIndex > c.SettleIndex {
		c.SettleIndex = settleIndex
	}
	return c
}

// CursorStore persists subscription cursors by node and subscriber.
type CursorStore interface {
	LoadCursor(ctx context.Context, node, subscriberID string) (Cursor, error)
	SaveCursor(ctx context.Context, node, subscriberID string, c Cursor) error
}

// MemoryCursorStore stores cursors in-memory.
type MemoryCursorStore struct {
	mu   sync.RWMutex
	data map[string]Cursor
}

// NewMemoryCursorStore creates an in-memory cursor store.
func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{
		data: make(map[string]Cursor),
	}
}

func (s *MemoryCursorStore) LoadCursor(_ context.Context, node, subscriberID string) (Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[cursorKey(node, subscriberID)], nil
}

func (s *MemoryCursorStore) SaveCursor(_ context.Context, node, subscriberID string, c Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[cursorKey(node, subscriberID)] = c
	return nil
}

// FileCursorStore keeps all cursors in one JSON file.
type FileCursorStore struct {
	mu   sync.Mutex
	path string
}

// NewFileCursorStore creates a file-backed cursor store.
func NewFileCursorStore(path string) *FileCursorStore {
	return &FileCursorStore{path: path}
}

func (s *FileCursorStore) LoadCursor(_ context.Context, node, subscriberID string) (Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return Cursor{}, err
	}
	return all[cursorKey(node, subscriberID)], nil
}

func (s *FileCursorStore) SaveCursor(_ context.Context, node, subscriberID string, c Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	all[cursorKey(node, subscriberID)] = c
	encoded, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cursor file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir cursor dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("write cursor file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace cursor file: %w", err)
	}
	return nil
}

func (s *FileCursorStore) read() (map[string]Cursor, error) {
	all := map[string]Cursor{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return all, nil
		}
		return nil, fmt.Errorf("read cursor file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &all); err != nil {
			return nil, fmt.Errorf("parse cursor file: %w", err)
		}
	}
	return all, nil
}

var cursorBucket = []byte("invoice_cursors")

// BoltCursorStore keeps cursors in a bbolt database. Only one process may
// hold the database open at a time.
type BoltCursorStore struct {
	db *bolt.DB
}

// OpenBoltCursorStore opens or creates the database at path.
func OpenBoltCursorStore(path string) (*BoltCursorStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir cursor dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cursor db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cursorBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cursor bucket: %w", err)
	}
	return &BoltCursorStore{db: db}, nil
}

func (s *BoltCursorStore) LoadCursor(_ context.Context, node, subscriberID string) (Cursor, error) {
	var c Cursor
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(cursorBucket).Get([]byte(cursorKey(node, subscriberID)))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &c)
	})
	if err != nil {
		return Cursor{}, fmt.Errorf("load cursor: %w", err)
	}
	return c, nil
}

func (s *BoltCursorStore) SaveCursor(_ context.Context, node, subscriberID string, c Cursor) error {
	encoded, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cursorBucket).Put([]byte(cursorKey(node, subscriberID)), encoded)
	})
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// Close releases the database file lock.
func (s *BoltCursorStore) Close() error {
	return s.db.Close()
}

func cursorKey(node, subscriberID string) string {
	return node + "|" + subscriberID
}
