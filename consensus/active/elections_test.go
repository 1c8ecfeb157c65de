// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package active

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/chratos-system/chratos-sub002/blockchain/types"
	"github.com/chratos-system/chratos-sub002/common"
	"github.com/chratos-system/chratos-sub002/secure"
	"github.com/chratos-system/chratos-sub002/storage/database"
)

func newTestStore(t *testing.T) (database.Store, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "active-elections-test")
	require.NoError(t, err)
	store, err := database.Open(database.BadgerDB, dir)
	require.NoError(t, err)
	return store, func() {
		store.Close()
		os.RemoveAll(dir)
	}
}

func newTestVoter(t *testing.T) (common.Account, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return common.BytesToAccount(pub), priv
}

func putWeight(t *testing.T, store database.Store, account common.Account, weight common.Balance) {
	t.Helper()
	txn, err := store.Begin(true)
	require.NoError(t, err)
	defer txn.Discard()
	require.NoError(t, txn.Put(database.TableRepWeights, account.Bytes(), weight.Bytes()))
	require.NoError(t, txn.Commit())
}

// fakeLedger is a minimal LedgerAPI: Weight is the only method the vote
// tally path exercises for these tests, and Process/Rollback/GetBlock
// only need to not error so confirm() can run to completion.
type fakeLedger struct {
	weights map[common.Account]common.Balance
}

func (f *fakeLedger) Weight(txn database.Transaction, rep common.Account) (common.Balance, error) {
	return f.weights[rep], nil
}

func (f *fakeLedger) Process(txn database.Transaction, block types.Block) (secure.ProcessResult, error) {
	return secure.Progress, nil
}

func (f *fakeLedger) Rollback(txn database.Transaction, hash common.Hash) error { return nil }

func (f *fakeLedger) GetBlock(txn database.Transaction, hash common.Hash) (types.Block, error) {
	return nil, database.ErrNotFound
}

func (f *fakeLedger) AccountHead(txn database.Transaction, account common.Account) (common.Hash, error) {
	return common.Hash{}, nil
}

func block(account common.Account, previous common.Hash) types.Block {
	return types.NewChangeBlock(account, previous, account)
}

func testSign(b types.Block, priv ed25519.PrivateKey) types.Block {
	b.SetSignature(types.Sign(priv, b.Hash()))
	return b
}

func seedPending(t *testing.T, txn database.Transaction, account common.Account, balance common.Balance) {
	t.Helper()
	key := types.PendingKey{Destination: account, Source: common.Hash{0x01}}
	info := &types.PendingInfo{Source: common.Account{}, Amount: balance, Epoch: types.EpochZero}
	require.NoError(t, txn.Put(database.TableBlocks, key.Source.Bytes(), []byte{0xff}))
	require.NoError(t, txn.Put(database.TablePending, key.Bytes(), info.Encode()))
}

func processAndCommit(t *testing.T, ledger *secure.Ledger, store database.Store, b types.Block) {
	t.Helper()
	txn, err := store.Begin(true)
	require.NoError(t, err)
	defer txn.Discard()
	res, err := ledger.Process(txn, b)
	require.NoError(t, err)
	require.Equal(t, secure.Progress, res)
	require.NoError(t, txn.Commit())
}

// TestConfirmRollsBackCommittedHeadNotRoot exercises confirm() against a
// real store-backed ledger: root is the shared ancestor (open.Hash()),
// not a block that can itself be rolled back to recover from the fork
// (see confirm in elections.go). The account's committed head (first)
// must be the block actually undone so the winner (second) can be
// reprocessed on top of their common ancestor.
func TestConfirmRollsBackCommittedHeadNotRoot(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	ledger := secure.NewLedger(store, common.Hash{}, common.Account{}, 0)
	account, priv := newTestVoter(t)
	otherRep, _ := newTestVoter(t)

	txn, err := store.Begin(true)
	require.NoError(t, err)
	seedPending(t, txn, account, common.NewBalance(500))
	require.NoError(t, txn.Commit())

	open := testSign(types.NewOpenBlock(account, common.Hash{0x01}, account), priv)
	processAndCommit(t, ledger, store, open)

	first := testSign(types.NewChangeBlock(account, open.Hash(), account), priv)
	processAndCommit(t, ledger, store, first)

	second := testSign(types.NewChangeBlock(account, open.Hash(), otherRep), priv)

	mgr := NewManager(store, ledger, nil)
	el := mgr.Start(second)
	require.NoError(t, mgr.confirm(el, second.Root(), second.Hash()))

	rtxn, err := store.Begin(false)
	require.NoError(t, err)
	defer rtxn.Discard()

	head, err := ledger.AccountHead(rtxn, account)
	require.NoError(t, err)
	require.Equal(t, second.Hash(), head)

	hasFirst, err := rtxn.Has(database.TableBlocks, first.Hash().Bytes())
	require.NoError(t, err)
	require.False(t, hasFirst)

	hasSecond, err := rtxn.Has(database.TableBlocks, second.Hash().Bytes())
	require.NoError(t, err)
	require.True(t, hasSecond)
}

// TestStartThenStopLeavesNoElection mirrors the conflict-resolution
// start/stop scenario: starting an election and letting a single voter
// immediately clear quorum should both create and resolve it.
func TestStartThenStopLeavesNoElection(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	voter, priv := newTestVoter(t)
	putWeight(t, store, voter, common.NewBalance(100))

	ledger := &fakeLedger{weights: map[common.Account]common.Balance{voter: common.NewBalance(100)}}
	mgr := NewManager(store, ledger, nil)
	mgr.OnlineWeightMinimum = common.NewBalance(100)

	b := block(common.Account{0x01}, common.Hash{0x01})
	mgr.Start(b)
	require.Equal(t, 1, mgr.RootCount())

	vote := types.NewVote(priv, voter, 1, []common.Hash{b.Hash()})
	require.NoError(t, mgr.Vote(vote))

	require.Equal(t, 0, mgr.RootCount())
}

// TestAddExistingJoinsCandidateSet covers starting a second block for a
// root that already has a live election: it should join the existing
// election's candidate set instead of creating a second one.
func TestAddExistingJoinsCandidateSet(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	ledger := &fakeLedger{weights: map[common.Account]common.Balance{}}
	mgr := NewManager(store, ledger, nil)

	root := common.Hash{0x01}
	first := block(common.Account{0x01}, root)
	second := block(common.Account{0x02}, root)

	el := mgr.Start(first)
	el2 := mgr.Start(second)

	require.Equal(t, 1, mgr.RootCount())
	require.True(t, el == el2)
	require.Len(t, el.candidates, 2)
}

// TestAddTwoRootsTracksBothElections covers two unrelated conflicting
// roots being started independently: each gets its own election and
// neither interferes with the other's candidate set or tally.
func TestAddTwoRootsTracksBothElections(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	voterA, privA := newTestVoter(t)
	voterB, privB := newTestVoter(t)
	putWeight(t, store, voterA, common.NewBalance(10))
	putWeight(t, store, voterB, common.NewBalance(10))

	ledger := &fakeLedger{weights: map[common.Account]common.Balance{
		voterA: common.NewBalance(10),
		voterB: common.NewBalance(10),
	}}
	mgr := NewManager(store, ledger, nil)
	mgr.OnlineWeightMinimum = common.NewBalance(1000) // unreachable: nobody confirms

	blockA := block(common.Account{0x0a}, common.Hash{0x0a})
	blockB := block(common.Account{0x0b}, common.Hash{0x0b})
	mgr.Start(blockA)
	mgr.Start(blockB)
	require.Equal(t, 2, mgr.RootCount())

	voteA := types.NewVote(privA, voterA, 1, []common.Hash{blockA.Hash()})
	require.NoError(t, mgr.Vote(voteA))
	require.Equal(t, 2, mgr.RootCount())

	voteB := types.NewVote(privB, voterB, 1, []common.Hash{blockB.Hash()})
	require.NoError(t, mgr.Vote(voteB))
	require.Equal(t, 2, mgr.RootCount())
}

// TestAgeOutDropsStaleElection exercises the cutoff path directly: an
// election older than Cutoff is dropped even without reaching quorum.
func TestAgeOutDropsStaleElection(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	ledger := &fakeLedger{weights: map[common.Account]common.Balance{}}
	mgr := NewManager(store, ledger, nil)
	mgr.Cutoff = 0

	mgr.Start(block(common.Account{0x01}, common.Hash{0x01}))
	require.Equal(t, 1, mgr.RootCount())

	mgr.AgeOut()
	require.Equal(t, 0, mgr.RootCount())
}

// TestVoteWithStaleSequenceIsIgnored covers a replayed or out-of-order
// vote: a lower-or-equal sequence number from the same voter must not
// overwrite its already-recorded choice.
func TestVoteWithStaleSequenceIsIgnored(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	voter, priv := newTestVoter(t)
	ledger := &fakeLedger{weights: map[common.Account]common.Balance{voter: common.NewBalance(5)}}
	mgr := NewManager(store, ledger, nil)
	mgr.OnlineWeightMinimum = common.NewBalance(1000)

	root := common.Hash{0x01}
	first := block(common.Account{0x01}, root)
	second := block(common.Account{0x02}, root)
	el := mgr.Start(first)
	mgr.Start(second)

	v1 := types.NewVote(priv, voter, 5, []common.Hash{first.Hash()})
	require.NoError(t, mgr.Vote(v1))

	v2 := types.NewVote(priv, voter, 5, []common.Hash{second.Hash()})
	require.NoError(t, mgr.Vote(v2))

	el.mu.Lock()
	rec := el.lastVotes[voter]
	el.mu.Unlock()
	require.Equal(t, first.Hash(), rec.hash)
}
