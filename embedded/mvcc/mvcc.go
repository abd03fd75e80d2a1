/*
Copyright 2023 The CokeDB Authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package mvcc layers snapshot-isolated transactions on top of an ordered
// key-value store. Every write creates a new version keyed by the writing
// transaction id; a transaction sees the latest version not written by a
// transaction that was still active when it began.
package mvcc

import (
	"errors"
	"sync"

	"github.com/BingCoke/CokeDB/embedded/codec"
	"github.com/BingCoke/CokeDB/embedded/kvstore"
)

var (
	ErrIllegalArguments  = kvstore.ErrIllegalArguments
	ErrNoMoreEntries     = kvstore.ErrNoMoreEntries
	ErrSerialization     = errors.New("serialization failure, retry transaction")
	ErrTxClosed          = errors.New("transaction already committed or rolled back")
	ErrCorruptedKeyspace = errors.New("corrupted mvcc keyspace")
)

// MVCC turns a raw ordered store into a transactional one.
type MVCC struct {
	store kvstore.Store

	// mu serializes transaction begin and all write paths so that the
	// conflict check and the write it guards are one indivisible step.
	mu sync.Mutex
}

type Status struct {
	Txns       uint64 `json:"txns"`
	ActiveTxns uint64 `json:"active_txns"`
}

func New(store kvstore.Store) (*MVCC, error) {
	if store == nil {
		return nil, ErrIllegalArguments
	}
	return &MVCC{store: store}, nil
}

// Begin starts a new transaction: it claims the next id, snapshots the set
// of concurrently active transactions and registers itself as active.
func (m *MVCC) Begin() (*Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uint64(1)

	raw, err := m.store.Get(keyNextTxnID())
	if err == nil {
		bs := raw
		id, err = codec.TakeUint64(&bs)
		if err != nil {
			return nil, err
		}
	} else if !errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, err
	}

	err = m.store.Set(keyNextTxnID(), codec.EncodeUint64(id+1))
	if err != nil {
		return nil, err
	}

	invisible := make(map[uint64]struct{})

	it, err := m.store.ScanRange(keyActiveTxn(0), keyActiveTxn(id))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	for {
		k, _, err := it.Next()
		if errors.Is(err, kvstore.ErrNoMoreEntries) {
			break
		}
		if err != nil {
			return nil, err
		}

		activeID, err := decodeActiveTxnKey(k)
		if err != nil {
			return nil, err
		}
		invisible[activeID] = struct{}{}
	}

	err = m.store.Set(keyActiveTxn(id), []byte{})
	if err != nil {
		return nil, err
	}

	err = m.store.Set(keyTxnSnapshot(id), encodeTxnSet(invisible))
	if err != nil {
		return nil, err
	}

	return &Tx{mvcc: m, id: id, invisible: invisible}, nil
}

// Status reports transaction counters for the whole store.
func (m *MVCC) Status() (*Status, error) {
	st := &Status{}

	raw, err := m.store.Get(keyNextTxnID())
	if err == nil {
		bs := raw
		next, err := codec.TakeUint64(&bs)
		if err != nil {
			return nil, err
		}
		st.Txns = next - 1
	} else if !errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, err
	}

	it, err := m.store.ScanPrefix([]byte{tagActiveTxn})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	for {
		_, _, err := it.Next()
		if errors.Is(err, kvstore.ErrNoMoreEntries) {
			break
		}
		if err != nil {
			return nil, err
		}
		st.ActiveTxns++
	}

	return st, nil
}

// Tx is a handle on an MVCC transaction. It is not safe for concurrent use;
// each session owns its transactions.
type Tx struct {
	mvcc      *MVCC
	id        uint64
	invisible map[uint64]struct{}
	closed    bool
}

func (tx *Tx) ID() uint64 {
	return tx.id
}

func (tx *Tx) Closed() bool {
	return tx.closed
}

func (tx *Tx) visible(version uint64) bool {
	if version > tx.id {
		return false
	}
	_, concurrent := tx.invisible[version]
	return !concurrent
}

// Get returns the latest visible value for key, or ErrNoMoreEntries when no
// visible non-tombstone version exists.
func (tx *Tx) Get(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrIllegalArguments
	}

	prefix := append([]byte{tagRecord}, codec.EncodeBytes(key)...)

	it, err := tx.mvcc.store.ScanPrefix(prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var latest []byte
	found := false

	for {
		k, v, err := it.Next()
		if errors.Is(err, kvstore.ErrNoMoreEntries) {
			break
		}
		if err != nil {
			return nil, err
		}

		_, version, err := decodeRecordKey(k)
		if err != nil {
			return nil, err
		}
		if tx.visible(version) {
			latest = v
			found = true
		}
	}

	if !found {
		return nil, ErrNoMoreEntries
	}

	value, tombstone, err := decodeRecordValue(latest)
	if err != nil {
		return nil, err
	}
	if tombstone {
		return nil, ErrNoMoreEntries
	}
	return value, nil
}

func (tx *Tx) Set(key, value []byte) error {
	ops := NewWriteBatch().Set(key, value)
	return tx.Write(ops)
}

func (tx *Tx) Delete(key []byte) error {
	ops := NewWriteBatch().Delete(key)
	return tx.Write(ops)
}

type writeOp struct {
	key       []byte
	value     []byte
	tombstone bool
}

// WriteBatch collects user-level writes applied as one atomic step, so
// multi-key mutations such as a row plus its index entries cannot be torn.
type WriteBatch struct {
	ops []writeOp
}

func NewWriteBatch() *WriteBatch {
	return &WriteBatch{}
}

func (b *WriteBatch) Set(key, value []byte) *WriteBatch {
	b.ops = append(b.ops, writeOp{key: key, value: value})
	return b
}

func (b *WriteBatch) Delete(key []byte) *WriteBatch {
	b.ops = append(b.ops, writeOp{key: key, tombstone: true})
	return b
}

// Write checks every key in the batch for conflicting versions and, only if
// all are clear, applies the whole batch in one store write.
func (tx *Tx) Write(batch *WriteBatch) error {
	if batch == nil || len(batch.ops) == 0 {
		return ErrIllegalArguments
	}
	if tx.closed {
		return ErrTxClosed
	}

	tx.mvcc.mu.Lock()
	defer tx.mvcc.mu.Unlock()

	for _, op := range batch.ops {
		if len(op.key) == 0 {
			return ErrIllegalArguments
		}
		err := tx.checkConflict(op.key)
		if err != nil {
			return err
		}
	}

	kb := kvstore.NewBatch()
	for _, op := range batch.ops {
		recordKey := keyRecord(op.key, tx.id)
		kb.Set(keyTxnUpdate(tx.id, recordKey), []byte{})
		kb.Set(recordKey, encodeRecordValue(op.value, op.tombstone))
	}
	return tx.mvcc.store.Write(kb)
}

// checkConflict fails with ErrSerialization when any version of key is
// invisible to this transaction, i.e. written by a concurrent or later one.
func (tx *Tx) checkConflict(key []byte) error {
	minActive := tx.id + 1
	for id := range tx.invisible {
		if id < minActive {
			minActive = id
		}
	}

	prefix := append([]byte{tagRecord}, codec.EncodeBytes(key)...)
	start := keyRecord(key, minActive)

	it, err := tx.mvcc.store.ScanRange(start, kvstore.PrefixEnd(prefix))
	if err != nil {
		return err
	}
	defer it.Close()

	for {
		k, _, err := it.Next()
		if errors.Is(err, kvstore.ErrNoMoreEntries) {
			return nil
		}
		if err != nil {
			return err
		}

		_, version, err := decodeRecordKey(k)
		if err != nil {
			return err
		}
		if !tx.visible(version) {
			return ErrSerialization
		}
	}
}

// ScanPrefix iterates the latest visible non-tombstone version of every user
// key starting with prefix, in ascending key order.
func (tx *Tx) ScanPrefix(prefix []byte) (*Scan, error) {
	if len(prefix) == 0 {
		return nil, ErrIllegalArguments
	}
	return tx.ScanRange(prefix, kvstore.PrefixEnd(prefix))
}

// ScanRange iterates user keys with start <= key < end; nil end is unbounded.
func (tx *Tx) ScanRange(start, end []byte) (*Scan, error) {
	rawStart := keyRecord(start, 0)

	var rawEnd []byte
	if end != nil {
		rawEnd = keyRecord(end, 0)
	}

	it, err := tx.mvcc.store.ScanRange(rawStart, rawEnd)
	if err != nil {
		return nil, err
	}
	return &Scan{tx: tx, it: it}, nil
}

// finish removes this transaction's bookkeeping in one atomic batch. When
// undoWrites is set, the written record versions are removed as well.
func (tx *Tx) finish(undoWrites bool) error {
	if tx.closed {
		return ErrTxClosed
	}

	tx.mvcc.mu.Lock()
	defer tx.mvcc.mu.Unlock()

	prefix := append([]byte{tagTxnUpdate}, codec.EncodeUint64(tx.id)...)

	it, err := tx.mvcc.store.ScanPrefix(prefix)
	if err != nil {
		return err
	}
	defer it.Close()

	batch := kvstore.NewBatch()

	for {
		k, _, err := it.Next()
		if errors.Is(err, kvstore.ErrNoMoreEntries) {
			break
		}
		if err != nil {
			return err
		}

		batch.Delete(k)

		if undoWrites {
			_, recordKey, err := decodeTxnUpdateKey(k)
			if err != nil {
				return err
			}
			batch.Delete(recordKey)
		}
	}

	batch.Delete(keyActiveTxn(tx.id))
	batch.Delete(keyTxnSnapshot(tx.id))

	err = tx.mvcc.store.Write(batch)
	if err != nil {
		return err
	}

	tx.closed = true
	return nil
}

// Commit makes the transaction's writes visible to transactions that begin
// afterwards. The written record versions stay in place as history.
func (tx *Tx) Commit() error {
	return tx.finish(false)
}

// Rollback removes every version written by this transaction.
func (tx *Tx) Rollback() error {
	return tx.finish(true)
}

// Scan surfaces only the latest visible version of each key and skips
// tombstones.
type Scan struct {
	tx *Tx
	it kvstore.Iterator

	pendingKey []byte
	pendingVal []byte
	hasPending bool
	done       bool
}

func (s *Scan) Next() ([]byte, []byte, error) {
	for {
		if s.done {
			return s.flushPending()
		}

		k, v, err := s.it.Next()
		if errors.Is(err, kvstore.ErrNoMoreEntries) {
			s.done = true
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		userKey, version, err := decodeRecordKey(k)
		if err != nil {
			return nil, nil, err
		}

		if !s.tx.visible(version) {
			continue
		}

		if s.hasPending && string(userKey) != string(s.pendingKey) {
			emitKey, emitVal, err := s.flushPending()
			s.pendingKey, s.pendingVal, s.hasPending = userKey, v, true
			if err == nil || !errors.Is(err, kvstore.ErrNoMoreEntries) {
				return emitKey, emitVal, err
			}
			continue
		}

		s.pendingKey, s.pendingVal, s.hasPending = userKey, v, true
	}
}

// flushPending emits the buffered key unless its latest visible version is a
// tombstone, in which case it reports exhaustion for this key.
func (s *Scan) flushPending() ([]byte, []byte, error) {
	if !s.hasPending {
		return nil, nil, ErrNoMoreEntries
	}
	s.hasPending = false

	value, tombstone, err := decodeRecordValue(s.pendingVal)
	if err != nil {
		return nil, nil, err
	}
	if tombstone {
		return nil, nil, kvstore.ErrNoMoreEntries
	}
	return s.pendingKey, value, nil
}

func (s *Scan) Close() error {
	return s.it.Close()
}
