package cache

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

// Store is an interface for the backing store of the image cache.
// It stores and retrieves []byte values, which represent image payloads,
// keyed by HTTP status code.
// It does not keep track of expiration; the image cache schedules removal.
//
// Implementations must be thread-safe!
type Store interface {
	// Get returns a private copy of the bytes stored for the given code.
	// The boolean is false if nothing is stored.
	Get(code int) ([]byte, bool, error)
	// Put stores the given bytes under the given code, replacing any previous value.
	Put(code int, b []byte) error
	// Purge removes the entry for the given code.
	// Purging a code that is not stored is not an error.
	Purge(code int) error
	// Len returns the number of stored entries.
	Len() (int, error)
	// Close releases the store. The store must not be used afterwards.
	Close() error
}

// New returns a store of the given kind, either "memory" or "sqlite".
// An empty kind means "memory".
func New(kind string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemStore(), nil
	case "sqlite":
		return NewSQLiteStore()
	default:
		return nil, fmt.Errorf("unsupported store: %s", kind)
	}
}

type MemStore struct {
	mutex *sync.RWMutex
	db    map[int][]byte
}

func NewMemStore() MemStore {
	return MemStore{
		mutex: &sync.RWMutex{},
		db:    make(map[int][]byte),
	}
}

func (m MemStore) Get(code int) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	b, ok := m.db[code]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(b), true, nil
}

func (m MemStore) Put(code int, b []byte) error {
	if b == nil {
		return errors.New("cannot store nil payload")
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[code] = bytes.Clone(b)
	return nil
}

func (m MemStore) Purge(code int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, code)
	return nil
}

func (m MemStore) Len() (int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.db), nil
}

func (m MemStore) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	clear(m.db)
	return nil
}

// SQLiteStore keeps images in an in-memory SQLite database.
// Nothing is written to disk.
type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStore opens a new private in-memory database.
func NewSQLiteStore() (SQLiteStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return SQLiteStore{}, fmt.Errorf("open sqlite: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS images (
		code INTEGER PRIMARY KEY,
		bytes BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return SQLiteStore{}, fmt.Errorf("create images table: %w", err)
	}
	return SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteStore) Get(code int) ([]byte, bool, error) {
	var b []byte
	err := s.db.QueryRow("SELECT bytes FROM images WHERE code = ?", code).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if b == nil {
		b = []byte{}
	}
	return b, true, nil
}

func (s SQLiteStore) Put(code int, b []byte) error {
	if b == nil {
		return errors.New("cannot store nil payload")
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("INSERT OR REPLACE INTO images (code, bytes) VALUES (?, ?)", code, b)
	return err
}

func (s SQLiteStore) Purge(code int) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM images WHERE code = ?", code)
	return err
}

func (s SQLiteStore) Len() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM images").Scan(&n)
	return n, err
}

func (s SQLiteStore) Close() error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	return s.db.Close()
}
