// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package types

import (
	"golang.org/x/crypto/ed25519"

	"github.com/chratos-system/chratos-sub002/common"
)

// Sign signs a block's hash with an ed25519 private key. A 64-byte
// ed25519 signature lines up exactly with the 512-bit signature the data
// model requires, with no padding or truncation.
func Sign(priv ed25519.PrivateKey, hash common.Hash) common.Signature {
	return common.BytesToSignature(ed25519.Sign(priv, hash.Bytes()))
}

// VerifySignature checks I4: that the stored block verifies under
// accountOf(block)'s public key.
func VerifySignature(account common.Account, hash common.Hash, sig common.Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(account.Bytes()), hash.Bytes(), sig.Bytes())
}

// VerifyBlock checks I4 for a whole block value.
func VerifyBlock(b Block) bool {
	return VerifySignature(b.Account(), b.Hash(), b.Signature())
}
