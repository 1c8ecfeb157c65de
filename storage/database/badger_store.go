// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package database

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger"

	"github.com/chratos-system/chratos-sub002/log"
)

const gcThreshold = int64(1 << 30) // bytes of value-log growth since the last GC pass before another runs
const sizeGCTickerTime = 1 * time.Minute

// badgerStore is the primary Store backend. badger's native
// NewTransaction/Commit/Discard and prefix iterators map onto the
// Store/Transaction/Cursor contract almost directly, closer to the
// original LMDB-backed store than goleveldb's Transaction type is.
type badgerStore struct {
	dir string
	db  *badger.DB

	// writeMu serializes writable transactions; badger itself allows
	// only one in flight anyway, but this keeps Begin(true) from
	// blocking inside badger where it can't be canceled.
	writeMu sync.Mutex

	gcTicker *time.Ticker
	done     chan struct{}
	logger   log.Logger
}

func newBadgerStore(dir string) (*badgerStore, error) {
	l := logger.New("dir", dir)

	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return nil, fmt.Errorf("database: %s is not a directory", dir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("database: mkdir %s: %w", dir, err)
		}
	} else {
		return nil, fmt.Errorf("database: stat %s: %w", dir, err)
	}

	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("database: open badger at %s: %w", dir, err)
	}

	s := &badgerStore{
		dir:      dir,
		db:       db,
		gcTicker: time.NewTicker(sizeGCTickerTime),
		done:     make(chan struct{}),
		logger:   l,
	}
	go s.runValueLogGC()
	return s, nil
}

func (s *badgerStore) runValueLogGC() {
	_, lastSize := s.db.Size()
	for {
		select {
		case <-s.gcTicker.C:
			_, curSize := s.db.Size()
			if curSize-lastSize < gcThreshold {
				continue
			}
			if err := s.db.RunValueLogGC(0.5); err != nil {
				s.logger.Error("value log gc failed", "err", err)
				continue
			}
			_, lastSize = s.db.Size()
		case <-s.done:
			return
		}
	}
}

func (s *badgerStore) Type() DBType { return BadgerDB }
func (s *badgerStore) Path() string { return s.dir }

func (s *badgerStore) Close() error {
	close(s.done)
	s.gcTicker.Stop()
	return s.db.Close()
}

func (s *badgerStore) Begin(writable bool) (Transaction, error) {
	if writable {
		s.writeMu.Lock()
	}
	return &badgerTxn{store: s, txn: s.db.NewTransaction(writable), writable: writable}, nil
}

type badgerTxn struct {
	store    *badgerStore
	txn      *badger.Txn
	writable bool
	done     bool
}

func (t *badgerTxn) Get(table Table, key []byte) ([]byte, error) {
	item, err := t.txn.Get(prefixed(table, key))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *badgerTxn) Has(table Table, key []byte) (bool, error) {
	_, err := t.txn.Get(prefixed(table, key))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *badgerTxn) Put(table Table, key, value []byte) error {
	return t.txn.Set(prefixed(table, key), value)
}

func (t *badgerTxn) Delete(table Table, key []byte) error {
	return t.txn.Delete(prefixed(table, key))
}

func (t *badgerTxn) Cursor(table Table, seek []byte) (Cursor, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte{byte(table)}
	it := t.txn.NewIterator(opts)
	start := prefixed(table, seek)
	if seek == nil {
		it.Seek([]byte{byte(table)})
	} else {
		it.Seek(start)
	}
	return &badgerCursor{it: it, table: table}, nil
}

func (t *badgerTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.txn.Commit(nil)
	if t.writable {
		t.store.writeMu.Unlock()
	}
	return err
}

func (t *badgerTxn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.txn.Discard()
	if t.writable {
		t.store.writeMu.Unlock()
	}
}

type badgerCursor struct {
	it    *badger.Iterator
	table Table
}

func (c *badgerCursor) Valid() bool {
	return c.it.ValidForPrefix([]byte{byte(c.table)})
}

func (c *badgerCursor) Key() []byte {
	k := c.it.Item().Key()
	return k[1:] // strip the table prefix byte
}

func (c *badgerCursor) Value() ([]byte, error) {
	return c.it.Item().ValueCopy(nil)
}

func (c *badgerCursor) Next() { c.it.Next() }
func (c *badgerCursor) Close() { c.it.Close() }
