// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package database

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// levelDBStore is the secondary Store backend, kept alongside badger for
// operators who prefer leveldb's compaction behavior. Writable
// transactions use leveldb's native *Transaction; read-only ones use a
// Snapshot, since OpenTransaction() would otherwise block out the single
// writer for the life of a long read.
type levelDBStore struct {
	dir string
	db  *leveldb.DB
}

func newLevelDBStore(dir string) (*levelDBStore, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{
		OpenFilesCacheCapacity: 128,
	})
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("database: open leveldb at %s: %w", dir, err)
	}
	return &levelDBStore{dir: dir, db: db}, nil
}

func (s *levelDBStore) Type() DBType { return LevelDB }
func (s *levelDBStore) Path() string { return s.dir }
func (s *levelDBStore) Close() error { return s.db.Close() }

func (s *levelDBStore) Begin(writable bool) (Transaction, error) {
	if writable {
		txn, err := s.db.OpenTransaction()
		if err != nil {
			return nil, err
		}
		return &levelDBWriteTxn{txn: txn}, nil
	}
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &levelDBReadTxn{snap: snap}, nil
}

type levelDBWriteTxn struct {
	txn  *leveldb.Transaction
	done bool
}

func (t *levelDBWriteTxn) Get(table Table, key []byte) ([]byte, error) {
	v, err := t.txn.Get(prefixed(table, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

func (t *levelDBWriteTxn) Has(table Table, key []byte) (bool, error) {
	return t.txn.Has(prefixed(table, key), nil)
}

func (t *levelDBWriteTxn) Put(table Table, key, value []byte) error {
	return t.txn.Put(prefixed(table, key), value, nil)
}

func (t *levelDBWriteTxn) Delete(table Table, key []byte) error {
	return t.txn.Delete(prefixed(table, key), nil)
}

func (t *levelDBWriteTxn) Cursor(table Table, seek []byte) (Cursor, error) {
	rng := util.BytesPrefix([]byte{byte(table)})
	it := t.txn.NewIterator(rng, nil)
	seekTo(it, table, seek)
	return &levelDBCursor{it: it}, nil
}

func (t *levelDBWriteTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.txn.Commit()
}

func (t *levelDBWriteTxn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.txn.Discard()
}

// levelDBReadTxn is a read-only view over a point-in-time snapshot, so
// concurrent readers never block the single writer or each other.
type levelDBReadTxn struct {
	snap *leveldb.Snapshot
	done bool
}

func (t *levelDBReadTxn) Get(table Table, key []byte) ([]byte, error) {
	v, err := t.snap.Get(prefixed(table, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

func (t *levelDBReadTxn) Has(table Table, key []byte) (bool, error) {
	return t.snap.Has(prefixed(table, key), nil)
}

func (t *levelDBReadTxn) Put(Table, []byte, []byte) error {
	return fmt.Errorf("database: write on a read-only transaction")
}

func (t *levelDBReadTxn) Delete(Table, []byte) error {
	return fmt.Errorf("database: write on a read-only transaction")
}

func (t *levelDBReadTxn) Cursor(table Table, seek []byte) (Cursor, error) {
	rng := util.BytesPrefix([]byte{byte(table)})
	it := t.snap.NewIterator(rng, nil)
	seekTo(it, table, seek)
	return &levelDBCursor{it: it}, nil
}

func (t *levelDBReadTxn) Commit() error {
	t.Discard()
	return nil
}

func (t *levelDBReadTxn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.snap.Release()
}

type levelDBIterator interface {
	Next() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Seek(key []byte) bool
	Release()
}

func seekTo(it levelDBIterator, table Table, seek []byte) {
	if seek == nil {
		it.Next()
		return
	}
	it.Seek(prefixed(table, seek))
}

type levelDBCursor struct {
	it      levelDBIterator
	started bool
}

func (c *levelDBCursor) Valid() bool { return c.it.Valid() }

func (c *levelDBCursor) Key() []byte {
	k := c.it.Key()
	return k[1:]
}

func (c *levelDBCursor) Value() ([]byte, error) {
	v := c.it.Value()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (c *levelDBCursor) Next() { c.it.Next() }
func (c *levelDBCursor) Close() { c.it.Release() }
