// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package node

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

func newTestNodeStore(t *testing.T) (database.Store, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "node-test")
	require.NoError(t, err)
	store, err := database.Open(database.BadgerDB, dir)
	require.NoError(t, err)
	return store, func() {
		store.Close()
		os.RemoveAll(dir)
	}
}

func signed(b types.Block, priv ed25519.PrivateKey) types.Block {
	b.SetSignature(types.Sign(priv, b.Hash()))
	return b
}

func seedGenesis(t *testing.T, txn database.Transaction, account common.Account, balance common.Balance) {
	t.Helper()
	key := types.PendingKey{Destination: account, Source: common.Hash{0x01}}
	info := &types.PendingInfo{Source: common.Account{}, Amount: balance, Epoch: types.EpochZero}
	require.NoError(t, txn.Put(database.TableBlocks, key.Source.Bytes(), []byte{0xff}))
	require.NoError(t, txn.Put(database.TablePending, key.Bytes(), info.Encode()))
}

// noRepresentatives holds no representative keys, the configuration of
// a node that only relays and votes on behalf of nobody.
type noRepresentatives struct{}

func (noRepresentatives) ForEachRepresentative(fn func(account common.Account, priv ed25519.PrivateKey)) {
}

func TestProcessBlockCommitsProgress(t *testing.T) {
	store, cleanup := newTestNodeStore(t)
	defer cleanup()

	ledger := secure.NewLedger(store, common.Hash{}, common.Account{}, 0)

	var published []*types.Vote
	publish := func(v *types.Vote) error {
		published = append(published, v)
		return nil
	}

	n := New(DefaultConfig(), store, ledger, noRepresentatives{}, publish, 0, nil, nil)
	defer n.Stop()

	account, priv := newTestVoter(t)

	txn, err := store.Begin(true)
	require.NoError(t, err)
	seedGenesis(t, txn, account, common.NewBalance(500))
	require.NoError(t, txn.Commit())

	open := signed(types.NewOpenBlock(account, common.Hash{0x01}, account), priv)
	result, err := n.ProcessBlock(open)
	require.NoError(t, err)
	require.Equal(t, secure.Progress, result)

	rtxn, err := store.Begin(false)
	require.NoError(t, err)
	defer rtxn.Discard()
	has, err := rtxn.Has(database.TableBlocks, open.Hash().Bytes())
	require.NoError(t, err)
	require.True(t, has)
}

func TestProcessBlockForkStartsElectionInsteadOfCommitting(t *testing.T) {
	store, cleanup := newTestNodeStore(t)
	defer cleanup()

	ledger := secure.NewLedger(store, common.Hash{}, common.Account{}, 0)
	n := New(DefaultConfig(), store, ledger, noRepresentatives{}, nil, 0, nil, nil)
	defer n.Stop()

	account, priv := newTestVoter(t)

	txn, err := store.Begin(true)
	require.NoError(t, err)
	seedGenesis(t, txn, account, common.NewBalance(500))
	require.NoError(t, txn.Commit())

	open := signed(types.NewOpenBlock(account, common.Hash{0x01}, account), priv)
	_, err = n.ProcessBlock(open)
	require.NoError(t, err)

	otherRep, _ := newTestVoter(t)

	first := signed(types.NewChangeBlock(account, open.Hash(), account), priv)
	_, err = n.ProcessBlock(first)
	require.NoError(t, err)

	second := signed(types.NewChangeBlock(account, open.Hash(), otherRep), priv)
	result, err := n.ProcessBlock(second)
	require.NoError(t, err)
	require.Equal(t, secure.Fork, result)
	require.Equal(t, 1, n.Elections.RootCount())
}

func newTestVoter(t *testing.T) (common.Account, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return common.BytesToAccount(pub), priv
}
