// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library (package layout derived from
// blockchain/types; block variants rewritten for a block-lattice ledger
// where every account has its own chain instead of one global chain).

// Package types models the five block variants of the lattice: open,
// send, receive, change and the unified state successor. They share one
// interface instead of a type hierarchy, per the "tagged sum, not
// inheritance" design note — a BlockType tag plus a small visitor-style
// method set (Balance/Amount/Representative) stands in for subclassing.
package types

import (
	"github.com/chratos-system/chratos-sub002/common"
)

// BlockType tags which of the five lattice variants a Block is.
type BlockType uint8

const (
	Open BlockType = iota
	Send
	Receive
	Change
	State
)

func (t BlockType) String() string {
	switch t {
	case Open:
		return "open"
	case Send:
		return "send"
	case Receive:
		return "receive"
	case Change:
		return "change"
	case State:
		return "state"
	default:
		return "unknown"
	}
}

// Block is satisfied by every lattice block variant. Hash is the value
// that signatures commit to and that other blocks reference via Previous;
// Root is the conflict key used to key elections (spec.md §3: previous
// hash if one exists, else the account itself).
type Block interface {
	Type() BlockType
	Hash() common.Hash
	Account() common.Account
	Previous() common.Hash // zero for an open block
	Root() common.Hash
	Signature() common.Signature
	SetSignature(common.Signature)
	Work() uint64
	SetWork(uint64)

	// Representative is the account this block names as the chain's
	// representative. Open/change/state blocks always carry one; legacy
	// send/receive blocks return the zero account (callers needing the
	// account's representative at that point use the ledger, not the
	// block alone).
	Representative() common.Account
	// Link carries the send-block hash for a receive, the source-block
	// hash for an open, the destination for a send, zero for a change,
	// and the unified field for a state block (send: destination account,
	// receive: source-block hash, change: zero, epoch: epoch_link).
	Link() common.Hash
	// Balance is carried by send and state blocks (the account's balance
	// after the block); legacy open/receive/change blocks return zero
	// (their balance is derived from amount/account_info during
	// processing).
	Balance() common.Balance
}

// baseBlock holds the fields common to every variant.
type baseBlock struct {
	account   common.Account
	previous  common.Hash
	signature common.Signature
	work      uint64
}

func (b *baseBlock) Account() common.Account       { return b.account }
func (b *baseBlock) Previous() common.Hash         { return b.previous }
func (b *baseBlock) Signature() common.Signature   { return b.signature }
func (b *baseBlock) SetSignature(s common.Signature) { b.signature = s }
func (b *baseBlock) Work() uint64                  { return b.work }
func (b *baseBlock) SetWork(w uint64)              { b.work = w }

// Root is the previous block's hash if there is one, else the account
// itself — the conflict key elections are keyed by.
func (b *baseBlock) root() common.Hash {
	if b.previous.IsZero() {
		return common.Hash(b.account)
	}
	return b.previous
}

// OpenBlock is the first block of an account's chain.
type OpenBlock struct {
	baseBlock
	source         common.Hash // the send block this account is opened from
	representative common.Account
	hash           common.Hash
}

func NewOpenBlock(account common.Account, source common.Hash, representative common.Account) *OpenBlock {
	b := &OpenBlock{source: source, representative: representative}
	b.account = account
	b.hash = computeHash(b)
	return b
}

func (b *OpenBlock) Type() BlockType             { return Open }
func (b *OpenBlock) Hash() common.Hash           { return b.hash }
func (b *OpenBlock) Root() common.Hash           { return b.root() }
func (b *OpenBlock) Representative() common.Account { return b.representative }
func (b *OpenBlock) Link() common.Hash           { return b.source }
func (b *OpenBlock) Balance() common.Balance     { return common.Balance{} }

// SendBlock debits the sender and creates a pending entry for destination.
type SendBlock struct {
	baseBlock
	destination common.Account
	balance     common.Balance // balance *after* the send
	hash        common.Hash
}

func NewSendBlock(account common.Account, previous common.Hash, destination common.Account, balanceAfter common.Balance) *SendBlock {
	b := &SendBlock{destination: destination, balance: balanceAfter}
	b.account = account
	b.previous = previous
	b.hash = computeHash(b)
	return b
}

func (b *SendBlock) Type() BlockType                { return Send }
func (b *SendBlock) Hash() common.Hash              { return b.hash }
func (b *SendBlock) Root() common.Hash              { return b.root() }
func (b *SendBlock) Representative() common.Account { return common.Account{} }
func (b *SendBlock) Link() common.Hash              { return common.Hash(b.destination) }
func (b *SendBlock) Balance() common.Balance        { return b.balance }
func (b *SendBlock) Destination() common.Account    { return b.destination }

// ReceiveBlock claims a pending entry created by a SendBlock.
type ReceiveBlock struct {
	baseBlock
	source common.Hash // the send block hash being claimed
	hash   common.Hash
}

func NewReceiveBlock(account common.Account, previous, source common.Hash) *ReceiveBlock {
	b := &ReceiveBlock{source: source}
	b.account = account
	b.previous = previous
	b.hash = computeHash(b)
	return b
}

func (b *ReceiveBlock) Type() BlockType                { return Receive }
func (b *ReceiveBlock) Hash() common.Hash              { return b.hash }
func (b *ReceiveBlock) Root() common.Hash              { return b.root() }
func (b *ReceiveBlock) Representative() common.Account { return common.Account{} }
func (b *ReceiveBlock) Link() common.Hash              { return b.source }
func (b *ReceiveBlock) Balance() common.Balance        { return common.Balance{} }
func (b *ReceiveBlock) Source() common.Hash            { return b.source }

// ChangeBlock changes the account's representative without moving funds.
type ChangeBlock struct {
	baseBlock
	representative common.Account
	hash           common.Hash
}

func NewChangeBlock(account common.Account, previous common.Hash, representative common.Account) *ChangeBlock {
	b := &ChangeBlock{representative: representative}
	b.account = account
	b.previous = previous
	b.hash = computeHash(b)
	return b
}

func (b *ChangeBlock) Type() BlockType                { return Change }
func (b *ChangeBlock) Hash() common.Hash              { return b.hash }
func (b *ChangeBlock) Root() common.Hash              { return b.root() }
func (b *ChangeBlock) Representative() common.Account { return b.representative }
func (b *ChangeBlock) Link() common.Hash              { return common.Hash{} }
func (b *ChangeBlock) Balance() common.Balance        { return common.Balance{} }

// StateBlock is the unified successor: every field the account chain
// needs is present on every state block, so processing it never requires
// consulting the predecessor for anything but balance-delta validation.
type StateBlock struct {
	baseBlock
	representative common.Account
	balance        common.Balance
	link           common.Hash
	hash           common.Hash
}

func NewStateBlock(account common.Account, previous common.Hash, representative common.Account, balance common.Balance, link common.Hash) *StateBlock {
	b := &StateBlock{representative: representative, balance: balance, link: link}
	b.account = account
	b.previous = previous
	b.hash = computeHash(b)
	return b
}

func (b *StateBlock) Type() BlockType                { return State }
func (b *StateBlock) Hash() common.Hash              { return b.hash }
func (b *StateBlock) Root() common.Hash              { return b.root() }
func (b *StateBlock) Representative() common.Account { return b.representative }
func (b *StateBlock) Link() common.Hash              { return b.link }
func (b *StateBlock) Balance() common.Balance        { return b.balance }

// IsSend reports whether a state block's balance decreased relative to
// the previous block's balance. It does not look at the link; the
// ledger is what records the decrease as pending for the destination.
func IsSend(prevBalance, newBalance common.Balance) bool {
	return newBalance.Cmp(prevBalance) < 0
}
