// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package types

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/chratos-system/chratos-sub002/common"
)

// computeHash renders a block's canonical field layout and blake2b-256
// hashes it. Each variant's preamble byte keeps hashes from colliding
// across block types even when the remaining fields happen to coincide.
func computeHash(b Block) common.Hash {
	h, _ := blake2b.New256(nil)
	h.Write([]byte{byte(b.Type())})
	h.Write(b.Account().Bytes())
	h.Write(b.Previous().Bytes())
	h.Write(b.Representative().Bytes())
	h.Write(b.Link().Bytes())
	h.Write(b.Balance().Bytes())
	return common.BytesToHash(h.Sum(nil))
}

// WorkHash hashes root concatenated with the candidate nonce
// (little-endian) and reads the digest back as a little-endian uint64,
// for comparison against a difficulty threshold.
func WorkHash(root common.Hash, nonce uint64) uint64 {
	var nonceBuf [8]byte
	binary.LittleEndian.PutUint64(nonceBuf[:], nonce)

	h, _ := blake2b.New(8, nil)
	h.Write(root.Bytes())
	h.Write(nonceBuf[:])
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}
