// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

// Package database is the ledger's persistence layer: a single-writer,
// multi-reader key-value store with snapshot-isolated read transactions,
// organized into fixed tables the same way the teacher's DBManager keyed
// its leveldb/badger backends by DBEntryType prefix.
package database

import (
	"github.com/chratos-system/chratos-sub002/log"
)

var logger = log.NewModuleLogger(log.StorageDatabase)

// DBType selects which on-disk engine backs a Store.
type DBType int

const (
	BadgerDB DBType = iota
	LevelDB
)

func (t DBType) String() string {
	switch t {
	case BadgerDB:
		return "badgerdb"
	case LevelDB:
		return "leveldb"
	default:
		return "unknown"
	}
}

// Table partitions the keyspace so iteration and snapshotting never have
// to scan across unrelated record kinds.
type Table byte

const (
	TableAccounts Table = iota
	TableBlocks
	TablePending
	TableRepWeights
	TableFrontiers
	TableVotes
	TableMeta
	// TableClaims indexes a send block's hash to the receive (or
	// open/state) block hash that later claimed its pending entry, so
	// rollback can find and undo the claiming block without walking
	// the destination account's whole chain.
	TableClaims
	numTables
)

// prefixed returns key namespaced under t, the same byte-prefix table
// trick the teacher's leveldb `table` wrapper uses.
func prefixed(t Table, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(t)
	copy(out[1:], key)
	return out
}

// Store is the top-level handle to a database. Every read or write goes
// through a Transaction: there is no bare Get/Put on Store itself,
// because the ledger's correctness depends on every read observing a
// consistent snapshot.
type Store interface {
	// Begin starts a transaction. Only one writable transaction may be
	// open at a time; the implementation serializes writers so callers
	// never need an external lock. Read-only transactions see a
	// snapshot as of Begin and never block on, or are blocked by,
	// concurrent writers.
	Begin(writable bool) (Transaction, error)
	Close() error
	Type() DBType
	Path() string
}

// Transaction is a single read or read-write view of the store.
type Transaction interface {
	Get(table Table, key []byte) ([]byte, error)
	Has(table Table, key []byte) (bool, error)
	// Put and Delete are only valid on a writable transaction.
	Put(table Table, key, value []byte) error
	Delete(table Table, key []byte) error
	// Cursor iterates a table's keys in byte order starting at seek
	// (or from the first key if seek is nil).
	Cursor(table Table, seek []byte) (Cursor, error)
	Commit() error
	// Discard abandons the transaction. Safe to call after Commit; a
	// typical caller always `defer txn.Discard()` right after Begin.
	Discard()
}

// Cursor walks a single table's keys in order.
type Cursor interface {
	Valid() bool
	Key() []byte
	Value() ([]byte, error)
	Next()
	Close()
}

// ErrNotFound is returned by Get when the key is absent,
// the same sentinel shape leveldb and badger both already use under the
// hood; callers compare against it rather than a backend-specific error.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "database: not found" }

// Open constructs a Store of the requested type rooted at dir.
func Open(t DBType, dir string) (Store, error) {
	switch t {
	case BadgerDB:
		return newBadgerStore(dir)
	case LevelDB:
		return newLevelDBStore(dir)
	default:
		return nil, errUnknownDBType(t)
	}
}

type errUnknownDBType DBType

func (e errUnknownDBType) Error() string {
	return "database: unknown DBType " + DBType(e).String()
}
