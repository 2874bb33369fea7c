package state

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"landsale/storage"
	"landsale/storage/trie"
)

// Manager is the key/value view every native module reads and writes
// through. Values live in a go-ethereum trie: writes stay in the in-memory trie
// until Commit flushes the dirty nodes and records the new root. Snapshot and
// RevertToSnapshot unwind writes made since a point in time, across every
// module sharing the manager.
type Manager struct {
	mu        sync.Mutex
	db        storage.Database
	trie      *trie.Trie
	snapshots []*trie.Trie
	height    uint64
}

var (
	stateRootKey   = []byte("state/root")
	stateHeightKey = []byte("state/height")
)

// NewManager opens the state committed to db, or an empty state when db has
// never been committed to.
func NewManager(db storage.Database) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("state: database required")
	}
	root, err := readMeta(db, stateRootKey)
	if err != nil {
		return nil, err
	}
	var height uint64
	if raw, err := readMeta(db, stateHeightKey); err != nil {
		return nil, err
	} else if len(raw) == 8 {
		height = binary.BigEndian.Uint64(raw)
	}
	tr, err := trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("state: open trie at %x: %w", root, err)
	}
	return &Manager{db: db, trie: tr, height: height}, nil
}

func readMeta(db storage.Database, key []byte) ([]byte, error) {
	raw, err := db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read %s: %w", key, err)
	}
	return raw, nil
}

var rolePrefix = []byte("role:")

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) get(key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trie.Get(key)
}

func (m *Manager) put(key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trie.Update(key, value)
}

func (m *Manager) remove(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trie.Delete(key)
}

// Snapshot captures the current trie and returns its id.
func (m *Manager) Snapshot() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, m.trie.Copy())
	return len(m.snapshots) - 1
}

// RevertToSnapshot undoes every write made after the snapshot was taken. The
// snapshot and any taken after it become invalid.
func (m *Manager) RevertToSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	m.trie = m.snapshots[id]
	m.snapshots = m.snapshots[:id]
}

// Dirty reports whether there are uncommitted writes.
func (m *Manager) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trie.Dirty()
}

// Root returns the last committed state root.
func (m *Manager) Root() common.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trie.Root()
}

// Height returns the number of commits that changed the state.
func (m *Manager) Height() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height
}

// Commit flushes the dirty trie nodes to the database and records the new
// root. A commit without writes leaves root and height unchanged. On failure
// the uncommitted writes are dropped.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = nil
	if !m.trie.Dirty() {
		return nil
	}
	parent := m.trie.Root()
	root, err := m.trie.Commit(m.height + 1)
	if err != nil {
		if resetErr := m.trie.Reset(parent); resetErr != nil {
			return fmt.Errorf("state: commit: %w (reset: %v)", err, resetErr)
		}
		return fmt.Errorf("state: commit: %w", err)
	}
	var height [8]byte
	binary.BigEndian.PutUint64(height[:], m.height+1)
	batch := m.db.NewBatch()
	batch.Put(stateRootKey, root.Bytes())
	batch.Put(stateHeightKey, height[:])
	if err := batch.Write(); err != nil {
		// The nodes are on disk but the root pointer is not; reopening
		// yields the parent state, so keep the live view consistent with it.
		if resetErr := m.trie.Reset(parent); resetErr != nil {
			return fmt.Errorf("state: record root: %w (reset: %v)", err, resetErr)
		}
		return fmt.Errorf("state: record root: %w", err)
	}
	m.height++
	return nil
}

// Discard drops every uncommitted write.
func (m *Manager) Discard() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = nil
	return m.trie.Reset(m.trie.Root())
}

// SetRole associates an address with the specified role. Duplicate assignments
// are ignored while the stored list remains sorted for determinism.
func (m *Manager) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr...))
	sort.Slice(members, func(i, j int) bool {
		return hex.EncodeToString(members[i]) < hex.EncodeToString(members[j])
	})
	return m.writeRole(trimmed, members)
}

// RemoveRole drops an address from the role. Removing a non-member is a no-op.
func (m *Manager) RemoveRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	kept := members[:0]
	for _, existing := range members {
		if !bytes.Equal(existing, addr) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(members) {
		return nil
	}
	return m.writeRole(trimmed, kept)
}

func (m *Manager) writeRole(role string, members [][]byte) error {
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	return m.put(roleKey(role), encoded)
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	data, err := m.get(roleKey(strings.TrimSpace(role)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// HasRole reports whether the provided address is associated with the
// specified role. Errors while reading the underlying state result in a false
// return.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if len(addr) == 0 {
		return false
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 before it reaches the database.
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

// KVDelete removes the value stored under the supplied key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.remove(kvKey(key))
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := m.get(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.put(hashed, encoded)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}
