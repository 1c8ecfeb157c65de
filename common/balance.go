// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package common

import (
	"encoding/hex"
	"math/big"
)

const BalanceLength = 16 // 128 bits

// Balance is a 128-bit unsigned amount, stored big-endian on disk and
// manipulated through math/big in memory — the same split the teacher
// uses for weight accounting in consensus/istanbul/validator/weighted.go,
// which keeps staking totals as *big.Int and only narrows at the edges.
type Balance struct {
	v big.Int
}

func NewBalance(v int64) Balance {
	var b Balance
	b.v.SetInt64(v)
	return b
}

func BalanceFromBig(v *big.Int) Balance {
	var b Balance
	b.v.Set(v)
	return b
}

func BytesToBalance(buf []byte) Balance {
	var b Balance
	b.v.SetBytes(buf)
	return b
}

func (b Balance) Big() *big.Int { return new(big.Int).Set(&b.v) }

// Bytes renders the balance as a fixed 16-byte big-endian array, the wire
// representation named in the data model.
func (b Balance) Bytes() []byte {
	out := make([]byte, BalanceLength)
	raw := b.v.Bytes()
	if len(raw) > BalanceLength {
		raw = raw[len(raw)-BalanceLength:]
	}
	copy(out[BalanceLength-len(raw):], raw)
	return out
}

func (b Balance) String() string { return b.v.String() }

func (b Balance) Cmp(o Balance) int { return b.v.Cmp(&o.v) }

func (b Balance) IsZero() bool { return b.v.Sign() == 0 }

func (b Balance) MarshalJSON() ([]byte, error) {
	return []byte(`"0x` + hex.EncodeToString(b.Bytes()) + `"`), nil
}

func (b *Balance) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errInvalidBalanceJSON
	}
	*b = BytesToBalance(FromHex(string(data[1 : len(data)-1])))
	return nil
}

var errInvalidBalanceJSON = balanceJSONError("common: expected a JSON string")

type balanceJSONError string

func (e balanceJSONError) Error() string { return string(e) }

func (b Balance) Add(o Balance) Balance {
	var r Balance
	r.v.Add(&b.v, &o.v)
	return r
}

// Sub returns b-o and whether the subtraction underflowed (o > b); the
// ledger treats underflow as balance_mismatch rather than panicking.
func (b Balance) Sub(o Balance) (Balance, bool) {
	if b.v.Cmp(&o.v) < 0 {
		return Balance{}, true
	}
	var r Balance
	r.v.Sub(&b.v, &o.v)
	return r, false
}
