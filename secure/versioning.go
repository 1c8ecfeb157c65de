// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package secure

import (
	"encoding/binary"
	"fmt"

	"github.com/chratos-system/chratos-sub002/blockchain/types"
	"github.com/chratos-system/chratos-sub002/common"
	"github.com/chratos-system/chratos-sub002/storage/database"
)

// Account-info schema versions. schemaV1 predates open_block,
// block_count and epoch tracking; every record the ledger writes today
// uses schemaCurrent. Historical on-disk schema upgrades beyond v1 are
// out of scope; v1 is carried only because it is the scenario the
// versioning test exercises.
const (
	schemaV1      byte = 1
	schemaCurrent byte = 2
)

// EncodeAccountInfo renders info under the current schema tag. This is
// the only encoder the ledger ever writes; schemaV1 is read-only legacy.
func EncodeAccountInfo(info *types.AccountInfo) []byte {
	return append([]byte{schemaCurrent}, info.Encode()...)
}

// accountInfoV1 mirrors account_info_v1: head, rep_block, balance,
// modified, with no open_block, block_count or epoch fields.
type accountInfoV1 struct {
	Head     common.Hash
	RepBlock common.Hash
	Balance  common.Balance
	Modified uint64
}

func (a *accountInfoV1) encode() []byte {
	buf := make([]byte, 0, 32*2+common.BalanceLength+8)
	buf = append(buf, a.Head.Bytes()...)
	buf = append(buf, a.RepBlock.Bytes()...)
	buf = append(buf, a.Balance.Bytes()...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], a.Modified)
	buf = append(buf, ts[:]...)
	return buf
}

// EncodeAccountInfoV1 renders a legacy schemaV1 record, exposed for
// tests exercising the upgrade path.
func EncodeAccountInfoV1(a *accountInfoV1) []byte {
	return append([]byte{schemaV1}, a.encode()...)
}

// NewAccountInfoV1 builds a schemaV1 record for test fixtures.
func NewAccountInfoV1(head, repBlock common.Hash, balance common.Balance, modified uint64) *accountInfoV1 {
	return &accountInfoV1{Head: head, RepBlock: repBlock, Balance: balance, Modified: modified}
}

const accountInfoV1Len = 32*2 + common.BalanceLength + 8

func decodeAccountInfoV1(buf []byte) (*accountInfoV1, error) {
	if len(buf) != accountInfoV1Len {
		return nil, fmt.Errorf("secure: v1 account info has wrong length: %d", len(buf))
	}
	off := 0
	head := common.BytesToHash(buf[off : off+32])
	off += 32
	repBlock := common.BytesToHash(buf[off : off+32])
	off += 32
	balance := common.BytesToBalance(buf[off : off+common.BalanceLength])
	off += common.BalanceLength
	modified := binary.BigEndian.Uint64(buf[off:])
	return &accountInfoV1{Head: head, RepBlock: repBlock, Balance: balance, Modified: modified}, nil
}

// upgradeAccountInfo decodes a stored account row regardless of which
// schema version wrote it, upgrading older versions to the current
// AccountInfo shape. schemaV1 lacks open_block and block_count: the
// former is inferred by walking the chain back from head to the block
// whose previous is zero; the latter by counting that same walk.
func upgradeAccountInfo(txn database.Transaction, raw []byte) (*types.AccountInfo, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("secure: empty account info record")
	}
	version, body := raw[0], raw[1:]

	switch version {
	case schemaCurrent:
		return types.DecodeAccountInfo(body)
	case schemaV1:
		v1, err := decodeAccountInfoV1(body)
		if err != nil {
			return nil, err
		}
		openBlock, count, err := inferOpenBlockAndHeight(txn, v1.Head)
		if err != nil {
			return nil, err
		}
		return &types.AccountInfo{
			Head:       v1.Head,
			RepBlock:   v1.RepBlock,
			OpenBlock:  openBlock,
			Balance:    v1.Balance,
			Modified:   v1.Modified,
			BlockCount: count,
			Epoch:      types.EpochZero,
		}, nil
	default:
		return nil, fmt.Errorf("secure: unknown account info schema version %d", version)
	}
}

// inferOpenBlockAndHeight walks an account chain backward from head
// until it finds the block whose Previous is zero (the open block),
// returning that block's hash and the chain's length.
func inferOpenBlockAndHeight(txn database.Transaction, head common.Hash) (common.Hash, uint64, error) {
	hash := head
	var height uint64
	for {
		raw, err := txn.Get(database.TableBlocks, hash.Bytes())
		if err != nil {
			return common.Hash{}, 0, err
		}
		block, err := types.Decode(raw)
		if err != nil {
			return common.Hash{}, 0, err
		}
		height++
		if block.Previous().IsZero() {
			return hash, height, nil
		}
		hash = block.Previous()
	}
}
