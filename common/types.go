// Copyright 2018 The klaytn Authors
// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library (derived from common/types.go).

// Package common holds the fixed-width identifiers shared across every
// package in the node: hashes, accounts (ed25519 public keys), signatures
// and balances. All of them compare and order byte-wise, big-endian, per
// the data model.
package common

import (
	"bytes"
	"encoding/hex"
)

const (
	HashLength      = 32
	AccountLength   = 32
	SignatureLength = 64 // matches an ed25519 signature exactly: 512 bits
)

// Hash is a 256-bit block/account identifier.
type Hash [HashLength]byte

func BytesToHash(b []byte) (h Hash) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func HexToHash(s string) Hash { return BytesToHash(FromHex(s)) }

func (h Hash) Bytes() []byte   { return h[:] }
func (h Hash) Hex() string     { return "0x" + hex.EncodeToString(h[:]) }
func (h Hash) String() string  { return h.Hex() }
func (h Hash) IsZero() bool    { return h == Hash{} }
func (h Hash) Cmp(o Hash) int  { return bytes.Compare(h[:], o[:]) }

func (h Hash) MarshalJSON() ([]byte, error) { return []byte(`"` + h.Hex() + `"`), nil }

func (h *Hash) UnmarshalJSON(data []byte) error {
	s, err := unquoteJSONString(data)
	if err != nil {
		return err
	}
	*h = HexToHash(s)
	return nil
}

// Account is a 256-bit ed25519 public key identifying one chain.
type Account [AccountLength]byte

func BytesToAccount(b []byte) (a Account) {
	if len(b) > AccountLength {
		b = b[len(b)-AccountLength:]
	}
	copy(a[AccountLength-len(b):], b)
	return a
}

func HexToAccount(s string) Account { return BytesToAccount(FromHex(s)) }

func (a Account) Bytes() []byte  { return a[:] }
func (a Account) Hex() string    { return "0x" + hex.EncodeToString(a[:]) }
func (a Account) String() string { return a.Hex() }
func (a Account) IsZero() bool   { return a == Account{} }
func (a Account) Cmp(o Account) int {
	return bytes.Compare(a[:], o[:])
}

func (a Account) MarshalJSON() ([]byte, error) { return []byte(`"` + a.Hex() + `"`), nil }

func (a *Account) UnmarshalJSON(data []byte) error {
	s, err := unquoteJSONString(data)
	if err != nil {
		return err
	}
	*a = HexToAccount(s)
	return nil
}

// unquoteJSONString strips the surrounding quotes from a JSON string
// literal without pulling in encoding/json just for that.
func unquoteJSONString(data []byte) (string, error) {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return "", errInvalidJSONString
	}
	return string(data[1 : len(data)-1]), nil
}

var errInvalidJSONString = jsonStringError("common: expected a JSON string")

type jsonStringError string

func (e jsonStringError) Error() string { return string(e) }

// Signature is a 512-bit signature over a block hash.
type Signature [SignatureLength]byte

func BytesToSignature(b []byte) (s Signature) {
	copy(s[:], b)
	return s
}

func (s Signature) Bytes() []byte { return s[:] }
func (s Signature) Hex() string   { return "0x" + hex.EncodeToString(s[:]) }

// FromHex decodes a hex string, tolerating an optional "0x" prefix; it
// never errors (malformed input decodes to as much as could be read),
// matching the teacher's permissive common.HexToHash idiom.
func FromHex(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

// Big0 is the zero balance, used throughout the ledger in place of
// allocating a fresh big.Int for comparisons, mirroring common.Big0 in the
// teacher's weighted validator code.
var Big0 = NewBalance(0)
