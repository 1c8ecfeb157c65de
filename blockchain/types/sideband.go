// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package types

import (
	"encoding/binary"
	"fmt"

	"github.com/chratos-system/chratos-sub002/common"
)

// Sideband is the per-block bookkeeping record the ledger keeps next to
// a committed block: the balance and representative in effect once that
// block applied, and the block's height in its account's chain. Legacy
// send/receive/change blocks don't carry balance or representative
// fields of their own, so without a sideband the ledger would have to
// replay an account's whole chain to answer "what was the balance just
// after block X" — the same problem the original block-lattice design
// solves with a sideband kept alongside each block.
type Sideband struct {
	Balance        common.Balance
	Representative common.Account
	Height         uint64
}

func (s *Sideband) Encode() []byte {
	buf := make([]byte, 0, common.BalanceLength+32+8)
	buf = append(buf, s.Balance.Bytes()...)
	buf = append(buf, s.Representative.Bytes()...)
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], s.Height)
	buf = append(buf, h[:]...)
	return buf
}

func DecodeSideband(buf []byte) (*Sideband, error) {
	want := common.BalanceLength + 32 + 8
	if len(buf) != want {
		return nil, fmt.Errorf("types: sideband encoding has wrong length: %d", len(buf))
	}
	balance := common.BytesToBalance(buf[:common.BalanceLength])
	rep := common.BytesToAccount(buf[common.BalanceLength : common.BalanceLength+32])
	height := binary.BigEndian.Uint64(buf[common.BalanceLength+32:])
	return &Sideband{Balance: balance, Representative: rep, Height: height}, nil
}
