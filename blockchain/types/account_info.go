// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package types

import (
	"github.com/chratos-system/chratos-sub002/common"
)

// Epoch distinguishes a legacy (pre-unification) account record from one
// whose chain has been fully migrated to state blocks.
type Epoch uint8

const (
	EpochZero Epoch = iota
	EpochOne
)

// AccountInfo is the ledger's per-account head record: the tip of its
// chain plus enough denormalized state (balance, representative block,
// block count) to avoid walking the chain on every lookup. OpenBlock is
// inferred rather than stored for records upgraded from schema v1, which
// predates it; see the versioning decision in versioning.go.
type AccountInfo struct {
	Head           common.Hash
	RepBlock       common.Hash
	OpenBlock      common.Hash
	Balance        common.Balance
	Modified       uint64 // unix seconds, for online-weight aging
	BlockCount     uint64
	Epoch          Epoch
}

// PendingKey identifies a pending (unreceived) send by the destination
// account it was sent to and the send block hash that created it.
type PendingKey struct {
	Destination common.Account
	Source      common.Hash
}

// PendingInfo is the value stored at a PendingKey: who sent it and how
// much, so the receiving block can be validated without re-reading the
// send block itself.
type PendingInfo struct {
	Source common.Account
	Amount common.Balance
	Epoch  Epoch
}
