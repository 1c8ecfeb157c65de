// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package secure

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/chratos-system/chratos-sub002/blockchain/types"
	"github.com/chratos-system/chratos-sub002/common"
	"github.com/chratos-system/chratos-sub002/log"
	"github.com/chratos-system/chratos-sub002/storage/database"
)

var logger = log.NewModuleLogger(log.SecureLedger)

// Ledger is the block-processing state machine. One Ledger is shared by
// every block-processing call; all of its methods take the caller's
// write transaction rather than holding one of their own, so the single
// writer thread controls commit boundaries.
type Ledger struct {
	store database.Store

	// cache fronts TableAccounts lookups; nil disables it entirely, the
	// same optional-collaborator shape OnConfirmed uses in
	// consensus/active. Every write to TableAccounts (commit or
	// rollback) invalidates the touched account's entry before the
	// transaction commits, so a reader never observes a record staler
	// than the transaction that changed it.
	cache *database.AccountCache

	// EpochLink and EpochSigner identify the distinguished state block
	// that upgrades an account's epoch tag without moving balance.
	EpochLink   common.Hash
	EpochSigner common.Account

	// WorkThreshold is the minimum value WorkHash(root, nonce) must
	// clear for I5 to hold.
	WorkThreshold uint64
}

func NewLedger(store database.Store, epochLink common.Hash, epochSigner common.Account, workThreshold uint64) *Ledger {
	return &Ledger{
		store:         store,
		EpochLink:     epochLink,
		EpochSigner:   epochSigner,
		WorkThreshold: workThreshold,
	}
}

// SetCache installs the account cache cache fronts. A nil cache (the
// default) disables caching entirely; every account lookup then goes
// straight to the store.
func (l *Ledger) SetCache(cache *database.AccountCache) {
	l.cache = cache
}

func (l *Ledger) now() uint64 { return uint64(time.Now().Unix()) }

// Process validates and, if valid, commits block within txn. Validation
// is short-circuited in the order: existence, signature, work,
// structural preconditions, semantic checks, commit.
func (l *Ledger) Process(txn database.Transaction, block types.Block) (ProcessResult, error) {
	hash := block.Hash()
	has, err := txn.Has(database.TableBlocks, hash.Bytes())
	if err != nil {
		return 0, errors.Wrap(err, "secure: checking block existence")
	}
	if has {
		return Old, nil
	}

	if !types.VerifyBlock(block) {
		return BadSignature, nil
	}

	if types.WorkHash(block.Root(), block.Work()) < l.WorkThreshold {
		return InsufficientWork, nil
	}

	info, hasAccount, err := l.getAccountInfo(txn, block.Account())
	if err != nil {
		return 0, errors.Wrap(err, "secure: reading account info")
	}

	switch b := block.(type) {
	case *types.OpenBlock:
		return l.processOpen(txn, b, hasAccount)
	case *types.SendBlock:
		if !hasAccount {
			return BlockPosition, nil
		}
		return l.processSend(txn, b, info)
	case *types.ReceiveBlock:
		if !hasAccount {
			return BlockPosition, nil
		}
		return l.processReceive(txn, b, info)
	case *types.ChangeBlock:
		if !hasAccount {
			return BlockPosition, nil
		}
		return l.processChange(txn, b, info)
	case *types.StateBlock:
		return l.processState(txn, b, info, hasAccount)
	default:
		return 0, fmt.Errorf("secure: unknown block type %T", block)
	}
}

// checkPrevious implements the gap_previous / fork structural check
// shared by every non-open block type: the block must build on the
// account's current head, or it must reference a block that doesn't
// exist at all (retryable once the prerequisite arrives). Referencing a
// block that exists but isn't the head means some other block has
// already been committed on top of it — a fork, resolved by election,
// not by the store.
func (l *Ledger) checkPrevious(txn database.Transaction, previous common.Hash, info *types.AccountInfo) (ProcessResult, error) {
	if previous == info.Head {
		return Progress, nil
	}
	has, err := txn.Has(database.TableBlocks, previous.Bytes())
	if err != nil {
		return 0, err
	}
	if !has {
		return GapPrevious, nil
	}
	return Fork, nil
}

func (l *Ledger) processOpen(txn database.Transaction, b *types.OpenBlock, hasAccount bool) (ProcessResult, error) {
	if hasAccount {
		return BlockPosition, nil
	}
	pendingInfo, res, err := l.claimPending(txn, b.Account(), b.Link())
	if res != Progress || err != nil {
		return res, err
	}
	newInfo := &types.AccountInfo{
		Head: b.Hash(), RepBlock: b.Hash(), OpenBlock: b.Hash(),
		Balance: pendingInfo.Amount, Modified: l.now(), BlockCount: 1, Epoch: pendingInfo.Epoch,
	}
	if err := l.commit(txn, b, newInfo, common.Account{}, common.Balance{}, b.Representative(), common.Hash{}); err != nil {
		return 0, err
	}
	if err := l.recordClaim(txn, b.Link(), b.Hash()); err != nil {
		return 0, err
	}
	return Progress, nil
}

func (l *Ledger) processSend(txn database.Transaction, b *types.SendBlock, info *types.AccountInfo) (ProcessResult, error) {
	if res, err := l.checkPrevious(txn, b.Previous(), info); res != Progress || err != nil {
		return res, err
	}
	if b.Balance().Cmp(info.Balance) >= 0 {
		return BalanceMismatch, nil
	}
	amount, underflow := info.Balance.Sub(b.Balance())
	if underflow {
		return BalanceMismatch, nil
	}
	oldRep, err := l.currentRepresentative(txn, info)
	if err != nil {
		return 0, err
	}
	newInfo := &types.AccountInfo{
		Head: b.Hash(), RepBlock: info.RepBlock, OpenBlock: info.OpenBlock,
		Balance: b.Balance(), Modified: l.now(), BlockCount: info.BlockCount + 1, Epoch: info.Epoch,
	}
	pendingInfo := &types.PendingInfo{Source: b.Account(), Amount: amount, Epoch: info.Epoch}
	pendingKey := types.PendingKey{Destination: b.Destination(), Source: b.Hash()}
	if err := txn.Put(database.TablePending, pendingKey.Bytes(), pendingInfo.Encode()); err != nil {
		return 0, err
	}
	if err := l.commit(txn, b, newInfo, oldRep, info.Balance, oldRep, info.Head); err != nil {
		return 0, err
	}
	return Progress, nil
}

func (l *Ledger) processReceive(txn database.Transaction, b *types.ReceiveBlock, info *types.AccountInfo) (ProcessResult, error) {
	if res, err := l.checkPrevious(txn, b.Previous(), info); res != Progress || err != nil {
		return res, err
	}
	pendingInfo, res, err := l.claimPending(txn, b.Account(), b.Source())
	if res != Progress || err != nil {
		return res, err
	}
	oldRep, err := l.currentRepresentative(txn, info)
	if err != nil {
		return 0, err
	}
	newInfo := &types.AccountInfo{
		Head: b.Hash(), RepBlock: info.RepBlock, OpenBlock: info.OpenBlock,
		Balance: info.Balance.Add(pendingInfo.Amount), Modified: l.now(), BlockCount: info.BlockCount + 1, Epoch: info.Epoch,
	}
	if err := l.commit(txn, b, newInfo, oldRep, info.Balance, oldRep, info.Head); err != nil {
		return 0, err
	}
	if err := l.recordClaim(txn, b.Source(), b.Hash()); err != nil {
		return 0, err
	}
	return Progress, nil
}

func (l *Ledger) processChange(txn database.Transaction, b *types.ChangeBlock, info *types.AccountInfo) (ProcessResult, error) {
	if res, err := l.checkPrevious(txn, b.Previous(), info); res != Progress || err != nil {
		return res, err
	}
	if b.Representative().IsZero() {
		return RepresentativeMismatch, nil
	}
	oldRep, err := l.currentRepresentative(txn, info)
	if err != nil {
		return 0, err
	}
	newInfo := &types.AccountInfo{
		Head: b.Hash(), RepBlock: b.Hash(), OpenBlock: info.OpenBlock,
		Balance: info.Balance, Modified: l.now(), BlockCount: info.BlockCount + 1, Epoch: info.Epoch,
	}
	if err := l.commit(txn, b, newInfo, oldRep, info.Balance, b.Representative(), info.Head); err != nil {
		return 0, err
	}
	return Progress, nil
}

func (l *Ledger) processState(txn database.Transaction, b *types.StateBlock, info *types.AccountInfo, hasAccount bool) (ProcessResult, error) {
	if !hasAccount {
		pendingInfo, res, err := l.claimPending(txn, b.Account(), b.Link())
		if res != Progress || err != nil {
			return res, err
		}
		if b.Balance().Cmp(pendingInfo.Amount) != 0 {
			return BalanceMismatch, nil
		}
		newInfo := &types.AccountInfo{
			Head: b.Hash(), RepBlock: b.Hash(), OpenBlock: b.Hash(),
			Balance: b.Balance(), Modified: l.now(), BlockCount: 1, Epoch: pendingInfo.Epoch,
		}
		if err := l.commit(txn, b, newInfo, common.Account{}, common.Balance{}, b.Representative(), common.Hash{}); err != nil {
			return 0, err
		}
		if err := l.recordClaim(txn, b.Link(), b.Hash()); err != nil {
			return 0, err
		}
		return Progress, nil
	}

	if res, err := l.checkPrevious(txn, b.Previous(), info); res != Progress || err != nil {
		return res, err
	}

	oldRep, err := l.currentRepresentative(txn, info)
	if err != nil {
		return 0, err
	}

	if l.isEpochBlock(b) {
		if b.Balance().Cmp(info.Balance) != 0 {
			return BalanceMismatch, nil
		}
		newInfo := &types.AccountInfo{
			Head: b.Hash(), RepBlock: info.RepBlock, OpenBlock: info.OpenBlock,
			Balance: info.Balance, Modified: l.now(), BlockCount: info.BlockCount + 1, Epoch: types.EpochOne,
		}
		return Progress, l.commit(txn, b, newInfo, oldRep, info.Balance, oldRep, info.Head)
	}

	var claimedHash common.Hash
	switch cmp := b.Balance().Cmp(info.Balance); {
	case cmp < 0:
		amount, _ := info.Balance.Sub(b.Balance())
		destination := common.Account(b.Link())
		pendingInfo := &types.PendingInfo{Source: b.Account(), Amount: amount, Epoch: info.Epoch}
		pendingKey := types.PendingKey{Destination: destination, Source: b.Hash()}
		if err := txn.Put(database.TablePending, pendingKey.Bytes(), pendingInfo.Encode()); err != nil {
			return 0, err
		}
	case cmp > 0:
		delta, _ := b.Balance().Sub(info.Balance)
		pendingInfo, res, err := l.claimPending(txn, b.Account(), b.Link())
		if res != Progress || err != nil {
			return res, err
		}
		if delta.Cmp(pendingInfo.Amount) != 0 {
			return BalanceMismatch, nil
		}
		claimedHash = b.Link()
	default:
		if b.Representative().IsZero() {
			return RepresentativeMismatch, nil
		}
	}

	newInfo := &types.AccountInfo{
		Head: b.Hash(), RepBlock: b.Hash(), OpenBlock: info.OpenBlock,
		Balance: b.Balance(), Modified: l.now(), BlockCount: info.BlockCount + 1, Epoch: info.Epoch,
	}
	if err := l.commit(txn, b, newInfo, oldRep, info.Balance, b.Representative(), info.Head); err != nil {
		return 0, err
	}
	if !claimedHash.IsZero() {
		if err := l.recordClaim(txn, claimedHash, b.Hash()); err != nil {
			return 0, err
		}
	}
	return Progress, nil
}

// isEpochBlock reports whether b is the distinguished epoch-upgrade
// state block: link names the configured epoch marker and the block's
// representative field names the configured epoch signer. The block's
// signature is verified against the account's own key like any other
// block; it is not checked against the epoch signer's key.
func (l *Ledger) isEpochBlock(b *types.StateBlock) bool {
	return b.Link() == l.EpochLink && b.Representative() == l.EpochSigner
}

// claimPending looks up and deletes the pending entry at (destination,
// source), distinguishing a dangling source reference (gap_source, may
// resolve once the prerequisite block arrives) from one that names a
// destination whose pending entry has already been claimed or never
// existed for this destination (unreceivable, never resolves on retry).
func (l *Ledger) claimPending(txn database.Transaction, destination common.Account, source common.Hash) (*types.PendingInfo, ProcessResult, error) {
	hasSource, err := txn.Has(database.TableBlocks, source.Bytes())
	if err != nil {
		return nil, 0, err
	}
	if !hasSource {
		return nil, GapSource, nil
	}
	key := types.PendingKey{Destination: destination, Source: source}
	raw, err := txn.Get(database.TablePending, key.Bytes())
	if err == database.ErrNotFound {
		return nil, Unreceivable, nil
	}
	if err != nil {
		return nil, 0, err
	}
	pendingInfo, err := types.DecodePendingInfo(raw)
	if err != nil {
		return nil, 0, err
	}
	if err := txn.Delete(database.TablePending, key.Bytes()); err != nil {
		return nil, 0, err
	}
	return pendingInfo, Progress, nil
}

func (l *Ledger) recordClaim(txn database.Transaction, source, claimedBy common.Hash) error {
	return txn.Put(database.TableClaims, source.Bytes(), claimedBy.Bytes())
}

func (l *Ledger) currentRepresentative(txn database.Transaction, info *types.AccountInfo) (common.Account, error) {
	if info == nil || info.Head.IsZero() {
		return common.Account{}, nil
	}
	side, err := l.sidebandOf(txn, info.Head)
	if err != nil {
		return common.Account{}, err
	}
	return side.Representative, nil
}

func (l *Ledger) sidebandOf(txn database.Transaction, hash common.Hash) (*types.Sideband, error) {
	raw, err := txn.Get(database.TableMeta, hash.Bytes())
	if err != nil {
		return nil, err
	}
	return types.DecodeSideband(raw)
}

func (l *Ledger) getAccountInfo(txn database.Transaction, account common.Account) (*types.AccountInfo, bool, error) {
	key := account.Bytes()
	if l.cache != nil {
		if cached, ok := l.cache.GetHot(key); ok {
			info, err := upgradeAccountInfo(txn, cached)
			if err != nil {
				return nil, false, err
			}
			return info, true, nil
		}
	}

	raw, err := txn.Get(database.TableAccounts, key)
	if err == database.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	info, err := upgradeAccountInfo(txn, raw)
	if err != nil {
		return nil, false, err
	}
	if l.cache != nil {
		l.cache.PutHot(key, EncodeAccountInfo(info))
	}
	return info, true, nil
}

// commit writes block, its account row, its sideband, the frontier
// index and the representative-weight deltas within txn. A failure
// partway through leaves txn to be discarded by the caller; nothing
// here is visible until the caller commits the transaction.
func (l *Ledger) commit(txn database.Transaction, block types.Block, newInfo *types.AccountInfo, oldRep common.Account, oldBal common.Balance, newRep common.Account, oldHead common.Hash) error {
	hash := block.Hash()
	if err := txn.Put(database.TableBlocks, hash.Bytes(), types.Encode(block)); err != nil {
		return err
	}
	side := &types.Sideband{Balance: newInfo.Balance, Representative: newRep, Height: newInfo.BlockCount}
	if err := txn.Put(database.TableMeta, hash.Bytes(), side.Encode()); err != nil {
		return err
	}
	if err := txn.Put(database.TableAccounts, block.Account().Bytes(), EncodeAccountInfo(newInfo)); err != nil {
		return err
	}
	if l.cache != nil {
		l.cache.Invalidate(block.Account().Bytes())
	}
	if !oldHead.IsZero() {
		if err := txn.Delete(database.TableFrontiers, oldHead.Bytes()); err != nil {
			return err
		}
	}
	if err := txn.Put(database.TableFrontiers, newInfo.Head.Bytes(), block.Account().Bytes()); err != nil {
		return err
	}
	if !oldRep.IsZero() {
		if err := l.adjustWeight(txn, oldRep, oldBal, true); err != nil {
			return err
		}
	}
	if !newRep.IsZero() {
		if err := l.adjustWeight(txn, newRep, newInfo.Balance, false); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) adjustWeight(txn database.Transaction, rep common.Account, delta common.Balance, subtract bool) error {
	raw, err := txn.Get(database.TableRepWeights, rep.Bytes())
	var current common.Balance
	if err == database.ErrNotFound {
		current = common.Balance{}
	} else if err != nil {
		return err
	} else {
		current = common.BytesToBalance(raw)
	}
	var next common.Balance
	if subtract {
		var underflow bool
		next, underflow = current.Sub(delta)
		if underflow {
			return errors.Errorf("secure: representative weight underflow for %s", rep.Hex())
		}
	} else {
		next = current.Add(delta)
	}
	return txn.Put(database.TableRepWeights, rep.Bytes(), next.Bytes())
}

// Weight returns the total balance currently delegated to rep.
func (l *Ledger) Weight(txn database.Transaction, rep common.Account) (common.Balance, error) {
	raw, err := txn.Get(database.TableRepWeights, rep.Bytes())
	if err == database.ErrNotFound {
		return common.Balance{}, nil
	}
	if err != nil {
		return common.Balance{}, err
	}
	return common.BytesToBalance(raw), nil
}

// AccountBalance returns the current head balance of account, or the
// zero balance if the account has never been opened.
func (l *Ledger) AccountBalance(txn database.Transaction, account common.Account) (common.Balance, error) {
	info, has, err := l.getAccountInfo(txn, account)
	if err != nil {
		return common.Balance{}, err
	}
	if !has {
		return common.Balance{}, nil
	}
	return info.Balance, nil
}

// AccountHead reports the hash account's chain currently commits to, or
// the zero hash if the account has never been opened.
func (l *Ledger) AccountHead(txn database.Transaction, account common.Account) (common.Hash, error) {
	info, has, err := l.getAccountInfo(txn, account)
	if err != nil {
		return common.Hash{}, err
	}
	if !has {
		return common.Hash{}, nil
	}
	return info.Head, nil
}

// GetBlock reads and decodes a committed block by hash.
func (l *Ledger) GetBlock(txn database.Transaction, hash common.Hash) (types.Block, error) {
	raw, err := txn.Get(database.TableBlocks, hash.Bytes())
	if err != nil {
		return nil, err
	}
	return types.Decode(raw)
}
