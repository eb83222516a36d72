package state

import (
	"errors"
	"fmt"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"rewardchain/storage"
)

var ErrManagerClosed = errors.New("state: manager already committed or discarded")

// Manager is a write-buffering view over the database. Reads fall through the
// buffered writes to the backing store; nothing reaches the store until Commit
// writes every buffered change in a single batch. Discard drops the buffer.
//
// A Manager covers one transaction and is not safe for concurrent use.
type Manager struct {
	db      storage.Database
	pending map[string][]byte
	deleted map[string]struct{}
	closed  bool
}

// NewManager creates a state manager reading from and committing to db.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:      db,
		pending: make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(key []byte) ([]byte, error) {
	if m.closed {
		return nil, ErrManagerClosed
	}
	k := string(key)
	if _, gone := m.deleted[k]; gone {
		return nil, nil
	}
	if v, ok := m.pending[k]; ok {
		return v, nil
	}
	v, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return v, err
}

func (m *Manager) put(key, value []byte) error {
	if m.closed {
		return ErrManagerClosed
	}
	k := string(key)
	delete(m.deleted, k)
	m.pending[k] = append([]byte(nil), value...)
	return nil
}

func (m *Manager) del(key []byte) error {
	if m.closed {
		return ErrManagerClosed
	}
	k := string(key)
	delete(m.pending, k)
	m.deleted[k] = struct{}{}
	return nil
}

// Dirty reports the number of buffered writes and deletes.
func (m *Manager) Dirty() int {
	return len(m.pending) + len(m.deleted)
}

// Commit writes the buffered changes atomically. Keys are written in sorted
// order so the batch contents are deterministic.
func (m *Manager) Commit() error {
	if m.closed {
		return ErrManagerClosed
	}
	m.closed = true
	if m.Dirty() == 0 {
		return nil
	}
	batch := m.db.NewBatch()
	keys := make([]string, 0, len(m.pending))
	for k := range m.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		batch.Put([]byte(k), m.pending[k])
	}
	removed := make([]string, 0, len(m.deleted))
	for k := range m.deleted {
		removed = append(removed, k)
	}
	sort.Strings(removed)
	for _, k := range removed {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// Discard drops the buffered changes.
func (m *Manager) Discard() {
	m.closed = true
	m.pending = make(map[string][]byte)
	m.deleted = make(map[string]struct{})
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the store.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVHas reports whether a value is stored under key.
func (m *Manager) KVHas(key []byte) (bool, error) {
	return m.KVGet(key, nil)
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.del(kvKey(key))
}
