// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package types

import (
	"encoding/binary"
	"fmt"

	"github.com/chratos-system/chratos-sub002/common"
)

// Encode renders a block to its persisted form: a type tag, the common
// fields, then the variant-specific fields. Work nonces are little-endian
// per the wire convention; everything else is raw big-endian bytes.
func Encode(b Block) []byte {
	var buf []byte
	buf = append(buf, byte(b.Type()))
	buf = append(buf, b.Account().Bytes()...)
	buf = append(buf, b.Previous().Bytes()...)
	buf = append(buf, b.Signature().Bytes()...)
	var workBuf [8]byte
	binary.LittleEndian.PutUint64(workBuf[:], b.Work())
	buf = append(buf, workBuf[:]...)

	switch v := b.(type) {
	case *OpenBlock:
		buf = append(buf, v.source.Bytes()...)
		buf = append(buf, v.representative.Bytes()...)
	case *SendBlock:
		buf = append(buf, v.destination.Bytes()...)
		buf = append(buf, v.balance.Bytes()...)
	case *ReceiveBlock:
		buf = append(buf, v.source.Bytes()...)
	case *ChangeBlock:
		buf = append(buf, v.representative.Bytes()...)
	case *StateBlock:
		buf = append(buf, v.representative.Bytes()...)
		buf = append(buf, v.balance.Bytes()...)
		buf = append(buf, v.link.Bytes()...)
	}
	return buf
}

const headerLen = 1 + 32 + 32 + 64 + 8

// Decode parses a block from its persisted form, trusting the stored
// signature and work nonce rather than recomputing them — a block read
// back from the store is assumed already validated at write time.
func Decode(buf []byte) (Block, error) {
	if len(buf) < headerLen {
		return nil, fmt.Errorf("types: block encoding too short: %d bytes", len(buf))
	}
	typ := BlockType(buf[0])
	off := 1
	account := common.BytesToAccount(buf[off : off+32])
	off += 32
	previous := common.BytesToHash(buf[off : off+32])
	off += 32
	sig := common.BytesToSignature(buf[off : off+64])
	off += 64
	work := binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8
	rest := buf[off:]

	base := baseBlock{account: account, previous: previous, signature: sig, work: work}

	switch typ {
	case Open:
		if len(rest) < 64 {
			return nil, fmt.Errorf("types: open block encoding too short")
		}
		b := &OpenBlock{baseBlock: base, source: common.BytesToHash(rest[:32]), representative: common.BytesToAccount(rest[32:64])}
		b.hash = computeHash(b)
		return b, nil
	case Send:
		if len(rest) < 32+common.BalanceLength {
			return nil, fmt.Errorf("types: send block encoding too short")
		}
		b := &SendBlock{baseBlock: base, destination: common.BytesToAccount(rest[:32]), balance: common.BytesToBalance(rest[32 : 32+common.BalanceLength])}
		b.hash = computeHash(b)
		return b, nil
	case Receive:
		if len(rest) < 32 {
			return nil, fmt.Errorf("types: receive block encoding too short")
		}
		b := &ReceiveBlock{baseBlock: base, source: common.BytesToHash(rest[:32])}
		b.hash = computeHash(b)
		return b, nil
	case Change:
		if len(rest) < 32 {
			return nil, fmt.Errorf("types: change block encoding too short")
		}
		b := &ChangeBlock{baseBlock: base, representative: common.BytesToAccount(rest[:32])}
		b.hash = computeHash(b)
		return b, nil
	case State:
		want := 32 + common.BalanceLength + 32
		if len(rest) < want {
			return nil, fmt.Errorf("types: state block encoding too short")
		}
		rep := common.BytesToAccount(rest[:32])
		bal := common.BytesToBalance(rest[32 : 32+common.BalanceLength])
		link := common.BytesToHash(rest[32+common.BalanceLength : want])
		b := &StateBlock{baseBlock: base, representative: rep, balance: bal, link: link}
		b.hash = computeHash(b)
		return b, nil
	default:
		return nil, fmt.Errorf("types: unknown block type %d", typ)
	}
}
