package storage

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/triedb"
)

// NewTrieDB exposes db to go-ethereum's hash-scheme trie database. Trie nodes
// are buffered in memory by the trie database and written through db batches
// on commit.
func NewTrieDB(db Database) *triedb.Database {
	return triedb.NewDatabase(rawdb.NewDatabase(&keyValueStore{db: db}), triedb.HashDefaults)
}

// keyValueStore adapts a Database to ethdb.KeyValueStore. Closing it is a
// no-op: the owner of the Database closes it.
type keyValueStore struct {
	db Database
}

var _ ethdb.KeyValueStore = (*keyValueStore)(nil)

func (s *keyValueStore) Has(key []byte) (bool, error) { return s.db.Has(key) }

func (s *keyValueStore) Get(key []byte) ([]byte, error) { return s.db.Get(key) }

func (s *keyValueStore) Put(key []byte, value []byte) error { return s.db.Put(key, value) }

func (s *keyValueStore) Delete(key []byte) error { return s.db.Delete(key) }

func (s *keyValueStore) DeleteRange(start, end []byte) error {
	batch := s.NewBatch()
	if err := batch.DeleteRange(start, end); err != nil {
		return err
	}
	return batch.Write()
}

func (s *keyValueStore) Stat() (string, error) { return "", nil }

func (s *keyValueStore) SyncKeyValue() error { return nil }

func (s *keyValueStore) Compact(start []byte, limit []byte) error { return nil }

func (s *keyValueStore) NewIterator(prefix []byte, start []byte) ethdb.Iterator {
	return s.db.NewIterator(prefix, start)
}

func (s *keyValueStore) NewBatch() ethdb.Batch { return &ethBatch{db: s.db} }

func (s *keyValueStore) NewBatchWithSize(size int) ethdb.Batch {
	return &ethBatch{db: s.db, ops: make([]batchOp, 0, size/64)}
}

func (s *keyValueStore) Close() error { return nil }

type ethBatch struct {
	db   Database
	ops  []batchOp
	size int
}

func (b *ethBatch) Put(key []byte, value []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	b.size += len(key) + len(value)
	return nil
}

func (b *ethBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte(nil), key...), delete: true})
	b.size += len(key)
	return nil
}

// DeleteRange queues deletes for every stored key in [start, end).
func (b *ethBatch) DeleteRange(start, end []byte) error {
	it := b.db.NewIterator(nil, start)
	defer it.Release()
	for it.Next() {
		if end != nil && bytes.Compare(it.Key(), end) >= 0 {
			break
		}
		if err := b.Delete(it.Key()); err != nil {
			return err
		}
	}
	return it.Error()
}

func (b *ethBatch) ValueSize() int { return b.size }

func (b *ethBatch) Write() error {
	batch := b.db.NewBatch()
	for _, op := range b.ops {
		if op.delete {
			batch.Delete(op.key)
			continue
		}
		batch.Put(op.key, op.value)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("storage: write trie batch: %w", err)
	}
	return nil
}

func (b *ethBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

func (b *ethBatch) Replay(w ethdb.KeyValueWriter) error {
	for _, op := range b.ops {
		var err error
		if op.delete {
			err = w.Delete(op.key)
		} else {
			err = w.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// sliceIterator walks a pre-collected, sorted set of pairs.
type sliceIterator struct {
	keys   [][]byte
	values [][]byte
	pos    int
	err    error
}

func (it *sliceIterator) Next() bool {
	if it.pos >= len(it.keys) {
		it.pos = len(it.keys) + 1
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Error() error { return it.err }

func (it *sliceIterator) Key() []byte {
	if it.pos == 0 || it.pos > len(it.keys) {
		return nil
	}
	return it.keys[it.pos-1]
}

func (it *sliceIterator) Value() []byte {
	if it.pos == 0 || it.pos > len(it.values) {
		return nil
	}
	return it.values[it.pos-1]
}

func (it *sliceIterator) Release() {
	it.keys, it.values = nil, nil
	it.pos = 0
}

// failedIterator reports err and yields nothing.
func failedIterator(err error) Iterator {
	return &sliceIterator{err: err}
}
