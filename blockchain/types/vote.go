// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package types

import (
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ed25519"

	"github.com/chratos-system/chratos-sub002/common"
)

// Vote is a representative's signed statement that it favors a given
// block hashes (Hashes), each counted toward the election whose
// candidate it is. Sequence lets a later vote from the same voter
// supersede an earlier one.
type Vote struct {
	Account  common.Account
	Sequence uint64
	Hashes   []common.Hash
	Sig      common.Signature
}

// voteSigningHash commits to the voter and sequence along with every
// hash it covers, so a vote can't be replayed under a different sequence
// or have hashes added or dropped after signing.
func voteSigningHash(account common.Account, sequence uint64, hashes []common.Hash) common.Hash {
	h, _ := blake2b.New256(nil)
	h.Write(account.Bytes())
	var seqBuf [8]byte
	for i := 0; i < 8; i++ {
		seqBuf[i] = byte(sequence >> (8 * uint(i)))
	}
	h.Write(seqBuf[:])
	for _, hash := range hashes {
		h.Write(hash.Bytes())
	}
	return common.BytesToHash(h.Sum(nil))
}

// NewVote signs a batch of block hashes on behalf of account.
func NewVote(priv ed25519.PrivateKey, account common.Account, sequence uint64, hashes []common.Hash) *Vote {
	sh := voteSigningHash(account, sequence, hashes)
	return &Vote{
		Account:  account,
		Sequence: sequence,
		Hashes:   hashes,
		Sig:      Sign(priv, sh),
	}
}

// Verify reports whether the vote's signature matches its claimed
// account over its own (sequence, hashes).
func (v *Vote) Verify() bool {
	sh := voteSigningHash(v.Account, v.Sequence, v.Hashes)
	return VerifySignature(v.Account, sh, v.Sig)
}

// Covers reports whether the vote names hash among its batch.
func (v *Vote) Covers(hash common.Hash) bool {
	for _, h := range v.Hashes {
		if h == hash {
			return true
		}
	}
	return false
}
