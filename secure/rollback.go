// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package secure

import (
	"github.com/pkg/errors"

	"github.com/chratos-system/chratos-sub002/blockchain/types"
	"github.com/chratos-system/chratos-sub002/common"
	"github.com/chratos-system/chratos-sub002/storage/database"
)

// Rollback undoes committed blocks from an account's head back to and
// including hash. If a send block being undone has already been
// claimed by a receive on another account's chain, that receive (and
// anything built on top of it) is rolled back first, depth-first,
// before the send itself is undone — rollback is only safe once nothing
// still depends on the block being removed.
func (l *Ledger) Rollback(txn database.Transaction, hash common.Hash) error {
	block, err := l.GetBlock(txn, hash)
	if err != nil {
		return errors.Wrapf(err, "secure: rollback: reading block %s", hash.Hex())
	}
	account := block.Account()

	for {
		info, hasAccount, err := l.getAccountInfo(txn, account)
		if err != nil {
			return err
		}
		if !hasAccount {
			return errors.Errorf("secure: rollback: account %s has no head", account.Hex())
		}
		head := info.Head
		headBlock, err := l.GetBlock(txn, head)
		if err != nil {
			return err
		}
		if err := l.rollbackOne(txn, headBlock, info); err != nil {
			return err
		}
		if head == hash {
			return nil
		}
	}
}

// rollbackOne undoes exactly one block: the current head of its
// account's chain. Callers must have already verified block is that
// head.
func (l *Ledger) rollbackOne(txn database.Transaction, block types.Block, info *types.AccountInfo) error {
	account := block.Account()
	side, err := l.sidebandOf(txn, block.Hash())
	if err != nil {
		return err
	}

	var prevRep common.Account
	var prevBal common.Balance
	if !block.Previous().IsZero() {
		prevSide, err := l.sidebandOf(txn, block.Previous())
		if err != nil {
			return err
		}
		prevRep, prevBal = prevSide.Representative, prevSide.Balance
	}

	if err := l.undoClaims(txn, block); err != nil {
		return err
	}
	if err := l.restorePending(txn, block, prevBal); err != nil {
		return err
	}

	if !side.Representative.IsZero() {
		if err := l.adjustWeight(txn, side.Representative, side.Balance, true); err != nil {
			return err
		}
	}
	if !prevRep.IsZero() {
		if err := l.adjustWeight(txn, prevRep, prevBal, false); err != nil {
			return err
		}
	}

	if err := txn.Delete(database.TableBlocks, block.Hash().Bytes()); err != nil {
		return err
	}
	if err := txn.Delete(database.TableMeta, block.Hash().Bytes()); err != nil {
		return err
	}
	if err := txn.Delete(database.TableFrontiers, block.Hash().Bytes()); err != nil {
		return err
	}

	if block.Previous().IsZero() {
		if err := txn.Delete(database.TableAccounts, account.Bytes()); err != nil {
			return err
		}
		if l.cache != nil {
			l.cache.Invalidate(account.Bytes())
		}
		return nil
	}

	prevInfo := &types.AccountInfo{
		Head: block.Previous(), RepBlock: block.Previous(), OpenBlock: info.OpenBlock,
		Balance: prevBal, Modified: l.now(), BlockCount: info.BlockCount - 1, Epoch: info.Epoch,
	}
	if err := txn.Put(database.TableAccounts, account.Bytes(), EncodeAccountInfo(prevInfo)); err != nil {
		return err
	}
	if l.cache != nil {
		l.cache.Invalidate(account.Bytes())
	}
	return txn.Put(database.TableFrontiers, block.Previous().Bytes(), account.Bytes())
}

// undoClaims reverses the bookkeeping a receive-like block (or an open
// block, which is itself a first receive) performed against the send it
// claimed: if the block still has an outstanding claim recorded against
// the source it claimed, drop it before restoring the pending entry.
func (l *Ledger) undoClaims(txn database.Transaction, block types.Block) error {
	var source common.Hash
	switch v := block.(type) {
	case *types.OpenBlock:
		source = v.Link()
	case *types.ReceiveBlock:
		source = v.Source()
	case *types.StateBlock:
		// Only a receiving state block recorded a claim; sends and
		// changes did not, and deleting a claim key that was never
		// written is a harmless no-op.
		source = v.Link()
	default:
		return nil
	}
	return txn.Delete(database.TableClaims, source.Bytes())
}

// restorePending reverses the effect a block had on the pending table:
// a send's pending entry is deleted if unclaimed (claimed ones are
// handled by rolling back the claimant first, via the caller's
// recursive Rollback into the destination chain); a receive-like
// block's consumed pending entry is restored.
func (l *Ledger) restorePending(txn database.Transaction, block types.Block, prevBalance common.Balance) error {
	switch v := block.(type) {
	case *types.SendBlock:
		return l.undoSendPending(txn, v.Destination(), v.Hash())
	case *types.OpenBlock:
		return l.undoReceivePending(txn, v.Account(), v.Link())
	case *types.ReceiveBlock:
		return l.undoReceivePending(txn, v.Account(), v.Source())
	case *types.StateBlock:
		switch {
		case v.Balance().Cmp(prevBalance) < 0:
			return l.undoSendPending(txn, common.Account(v.Link()), v.Hash())
		case v.Balance().Cmp(prevBalance) > 0:
			return l.undoReceivePending(txn, v.Account(), v.Link())
		}
		return nil
	}
	return nil
}

func (l *Ledger) undoSendPending(txn database.Transaction, destination common.Account, sendHash common.Hash) error {
	key := types.PendingKey{Destination: destination, Source: sendHash}
	claimed, err := l.findClaim(txn, sendHash)
	if err != nil {
		return err
	}
	if !claimed.IsZero() {
		// The claiming block must be undone first; Rollback handles
		// the full recursive walk back up to and including it.
		if err := l.Rollback(txn, claimed); err != nil {
			return err
		}
	}
	return txn.Delete(database.TablePending, key.Bytes())
}

func (l *Ledger) undoReceivePending(txn database.Transaction, destination common.Account, sourceHash common.Hash) error {
	sourceBlock, err := l.GetBlock(txn, sourceHash)
	if err != nil {
		return err
	}
	var amount common.Balance
	switch v := sourceBlock.(type) {
	case *types.SendBlock:
		amount = amountOfSend(txn, l, v)
	case *types.StateBlock:
		amount = amountOfSend(txn, l, v)
	}
	info := &types.PendingInfo{Source: sourceBlock.Account(), Amount: amount, Epoch: types.EpochZero}
	key := types.PendingKey{Destination: destination, Source: sourceHash}
	return txn.Put(database.TablePending, key.Bytes(), info.Encode())
}

// amountOfSend recovers the amount a send (legacy or state) moved by
// diffing its resulting balance against its predecessor's.
func amountOfSend(txn database.Transaction, l *Ledger, block types.Block) common.Balance {
	side, err := l.sidebandOf(txn, block.Hash())
	if err != nil {
		return common.Balance{}
	}
	if block.Previous().IsZero() {
		return side.Balance
	}
	prevSide, err := l.sidebandOf(txn, block.Previous())
	if err != nil {
		return common.Balance{}
	}
	amount, _ := prevSide.Balance.Sub(side.Balance)
	return amount
}

func (l *Ledger) findClaim(txn database.Transaction, source common.Hash) (common.Hash, error) {
	raw, err := txn.Get(database.TableClaims, source.Bytes())
	if err == database.ErrNotFound {
		return common.Hash{}, nil
	}
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(raw), nil
}
