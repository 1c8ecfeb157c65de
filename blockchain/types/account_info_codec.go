// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package types

import (
	"encoding/binary"
	"fmt"

	"github.com/chratos-system/chratos-sub002/common"
)

// Encode renders an AccountInfo to its current-schema persisted form.
// Older schema versions are upgraded on read by secure/versioning.go
// before ever reaching this package.
func (a *AccountInfo) Encode() []byte {
	buf := make([]byte, 0, 32*3+common.BalanceLength+8+8+1)
	buf = append(buf, a.Head.Bytes()...)
	buf = append(buf, a.RepBlock.Bytes()...)
	buf = append(buf, a.OpenBlock.Bytes()...)
	buf = append(buf, a.Balance.Bytes()...)
	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], a.Modified)
	buf = append(buf, u64[:]...)
	binary.BigEndian.PutUint64(u64[:], a.BlockCount)
	buf = append(buf, u64[:]...)
	buf = append(buf, byte(a.Epoch))
	return buf
}

const accountInfoLen = 32*3 + common.BalanceLength + 8 + 8 + 1

// DecodeAccountInfo parses the current-schema encoding. Callers reading
// a record that might predate the current schema go through
// secure.UpgradeAccountInfo instead of calling this directly.
func DecodeAccountInfo(buf []byte) (*AccountInfo, error) {
	if len(buf) != accountInfoLen {
		return nil, fmt.Errorf("types: account info encoding has wrong length: %d", len(buf))
	}
	off := 0
	head := common.BytesToHash(buf[off : off+32])
	off += 32
	repBlock := common.BytesToHash(buf[off : off+32])
	off += 32
	openBlock := common.BytesToHash(buf[off : off+32])
	off += 32
	balance := common.BytesToBalance(buf[off : off+common.BalanceLength])
	off += common.BalanceLength
	modified := binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	blockCount := binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	epoch := Epoch(buf[off])
	return &AccountInfo{
		Head:       head,
		RepBlock:   repBlock,
		OpenBlock:  openBlock,
		Balance:    balance,
		Modified:   modified,
		BlockCount: blockCount,
		Epoch:      epoch,
	}, nil
}

// Encode renders a PendingInfo to its persisted form.
func (p *PendingInfo) Encode() []byte {
	buf := make([]byte, 0, 32+common.BalanceLength+1)
	buf = append(buf, p.Source.Bytes()...)
	buf = append(buf, p.Amount.Bytes()...)
	buf = append(buf, byte(p.Epoch))
	return buf
}

func DecodePendingInfo(buf []byte) (*PendingInfo, error) {
	want := 32 + common.BalanceLength + 1
	if len(buf) != want {
		return nil, fmt.Errorf("types: pending info encoding has wrong length: %d", len(buf))
	}
	source := common.BytesToAccount(buf[:32])
	amount := common.BytesToBalance(buf[32 : 32+common.BalanceLength])
	epoch := Epoch(buf[32+common.BalanceLength])
	return &PendingInfo{Source: source, Amount: amount, Epoch: epoch}, nil
}

// Bytes renders a PendingKey to its store key: destination
// then source-block hash, so cursoring the pending table groups all of
// one destination's receivables together.
func (k PendingKey) Bytes() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, k.Destination.Bytes()...)
	buf = append(buf, k.Source.Bytes()...)
	return buf
}
