// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package secure

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/chratos-system/chratos-sub002/blockchain/types"
	"github.com/chratos-system/chratos-sub002/common"
	"github.com/chratos-system/chratos-sub002/storage/database"
)

// testThreshold is permissive enough that every work nonce used in
// these fixtures passes I5 without an actual mining search.
const testThreshold = uint64(0)

func newTestLedger(t *testing.T) (*Ledger, database.Store, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "secure-ledger-test")
	require.NoError(t, err)
	store, err := database.Open(database.BadgerDB, dir)
	require.NoError(t, err)
	ledger := NewLedger(store, common.Hash{}, common.Account{}, testThreshold)
	return ledger, store, func() {
		store.Close()
		os.RemoveAll(dir)
	}
}

func newTestAccount(t *testing.T) (common.Account, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return common.BytesToAccount(pub), priv
}

// signOpen/signSend/signChange/signReceive sign a freshly built block in
// place and return it, mirroring how a wallet would hand a fully formed
// block to the block processor.
func signed(b types.Block, priv ed25519.PrivateKey) types.Block {
	b.SetSignature(types.Sign(priv, b.Hash()))
	return b
}

// seedGenesis opens a well-known account directly via a synthetic
// pending entry, standing in for the network's genesis distribution.
func seedGenesis(t *testing.T, txn database.Transaction, account common.Account, balance common.Balance) {
	t.Helper()
	key := types.PendingKey{Destination: account, Source: common.Hash{0x01}}
	info := &types.PendingInfo{Source: common.Account{}, Amount: balance, Epoch: types.EpochZero}
	require.NoError(t, txn.Put(database.TableBlocks, key.Source.Bytes(), []byte{0xff}))
	require.NoError(t, txn.Put(database.TablePending, key.Bytes(), info.Encode()))
}

func TestProcessOpenSendReceive(t *testing.T) {
	ledger, store, cleanup := newTestLedger(t)
	defer cleanup()

	genesisAccount, genesisPriv := newTestAccount(t)
	destAccount, destPriv := newTestAccount(t)

	txn, err := store.Begin(true)
	require.NoError(t, err)
	seedGenesis(t, txn, genesisAccount, common.NewBalance(1000))

	open := signed(types.NewOpenBlock(genesisAccount, common.Hash{0x01}, genesisAccount), genesisPriv)
	res, err := ledger.Process(txn, open)
	require.NoError(t, err)
	require.Equal(t, Progress, res)

	send := signed(types.NewSendBlock(genesisAccount, open.Hash(), destAccount, common.NewBalance(900)), genesisPriv)
	res, err = ledger.Process(txn, send)
	require.NoError(t, err)
	require.Equal(t, Progress, res)

	destOpen := signed(types.NewOpenBlock(destAccount, send.Hash(), destAccount), destPriv)
	res, err = ledger.Process(txn, destOpen)
	require.NoError(t, err)
	require.Equal(t, Progress, res)

	require.NoError(t, txn.Commit())

	rtxn, err := store.Begin(false)
	require.NoError(t, err)
	defer rtxn.Discard()

	genesisBalance, err := ledger.AccountBalance(rtxn, genesisAccount)
	require.NoError(t, err)
	require.Equal(t, 0, genesisBalance.Cmp(common.NewBalance(900)))

	destBalance, err := ledger.AccountBalance(rtxn, destAccount)
	require.NoError(t, err)
	require.Equal(t, 0, destBalance.Cmp(common.NewBalance(100)))

	weight, err := ledger.Weight(rtxn, genesisAccount)
	require.NoError(t, err)
	require.Equal(t, 0, weight.Cmp(common.NewBalance(900)))
}

func TestProcessBadSendSignature(t *testing.T) {
	ledger, store, cleanup := newTestLedger(t)
	defer cleanup()

	genesisAccount, genesisPriv := newTestAccount(t)
	destAccount, _ := newTestAccount(t)

	txn, err := store.Begin(true)
	require.NoError(t, err)
	defer txn.Discard()
	seedGenesis(t, txn, genesisAccount, common.NewBalance(1000))

	open := signed(types.NewOpenBlock(genesisAccount, common.Hash{0x01}, genesisAccount), genesisPriv)
	res, err := ledger.Process(txn, open)
	require.NoError(t, err)
	require.Equal(t, Progress, res)

	send := types.NewSendBlock(genesisAccount, open.Hash(), destAccount, common.NewBalance(900))
	send.SetSignature(types.Sign(genesisPriv, send.Hash()))
	sig := send.Signature()
	sig[31] ^= 0x01 // flip one bit of the 32nd byte
	send.SetSignature(sig)

	res, err = ledger.Process(txn, send)
	require.NoError(t, err)
	require.Equal(t, BadSignature, res)
}

func TestProcessBadReceiveSignature(t *testing.T) {
	ledger, store, cleanup := newTestLedger(t)
	defer cleanup()

	genesisAccount, genesisPriv := newTestAccount(t)
	destAccount, destPriv := newTestAccount(t)

	txn, err := store.Begin(true)
	require.NoError(t, err)
	defer txn.Discard()
	seedGenesis(t, txn, genesisAccount, common.NewBalance(1000))

	open := signed(types.NewOpenBlock(genesisAccount, common.Hash{0x01}, genesisAccount), genesisPriv)
	_, err = ledger.Process(txn, open)
	require.NoError(t, err)

	send := signed(types.NewSendBlock(genesisAccount, open.Hash(), destAccount, common.NewBalance(900)), genesisPriv)
	_, err = ledger.Process(txn, send)
	require.NoError(t, err)

	destOpen := types.NewOpenBlock(destAccount, send.Hash(), destAccount)
	destOpen.SetSignature(types.Sign(destPriv, destOpen.Hash()))
	sig := destOpen.Signature()
	sig[31] ^= 0x01
	destOpen.SetSignature(sig)

	res, err := ledger.Process(txn, destOpen)
	require.NoError(t, err)
	require.Equal(t, BadSignature, res)
}

func TestRollbackIsInverseOfProcess(t *testing.T) {
	ledger, store, cleanup := newTestLedger(t)
	defer cleanup()

	genesisAccount, genesisPriv := newTestAccount(t)
	destAccount, _ := newTestAccount(t)

	txn, err := store.Begin(true)
	require.NoError(t, err)
	defer txn.Discard()
	seedGenesis(t, txn, genesisAccount, common.NewBalance(1000))

	open := signed(types.NewOpenBlock(genesisAccount, common.Hash{0x01}, genesisAccount), genesisPriv)
	_, err = ledger.Process(txn, open)
	require.NoError(t, err)

	send := signed(types.NewSendBlock(genesisAccount, open.Hash(), destAccount, common.NewBalance(900)), genesisPriv)
	_, err = ledger.Process(txn, send)
	require.NoError(t, err)

	balanceBefore, err := ledger.AccountBalance(txn, genesisAccount)
	require.NoError(t, err)
	require.Equal(t, 0, balanceBefore.Cmp(common.NewBalance(900)))

	require.NoError(t, ledger.Rollback(txn, send.Hash()))

	balanceAfter, err := ledger.AccountBalance(txn, genesisAccount)
	require.NoError(t, err)
	require.Equal(t, 0, balanceAfter.Cmp(common.NewBalance(1000)))

	weight, err := ledger.Weight(txn, genesisAccount)
	require.NoError(t, err)
	require.Equal(t, 0, weight.Cmp(common.NewBalance(1000)))

	has, err := txn.Has(database.TableBlocks, send.Hash().Bytes())
	require.NoError(t, err)
	require.False(t, has)

	hasPending, err := txn.Has(database.TablePending, (types.PendingKey{Destination: destAccount, Source: send.Hash()}).Bytes())
	require.NoError(t, err)
	require.False(t, hasPending)
}

func TestProcessGapPreviousAndOld(t *testing.T) {
	ledger, store, cleanup := newTestLedger(t)
	defer cleanup()

	genesisAccount, genesisPriv := newTestAccount(t)
	destAccount, _ := newTestAccount(t)

	txn, err := store.Begin(true)
	require.NoError(t, err)
	defer txn.Discard()
	seedGenesis(t, txn, genesisAccount, common.NewBalance(1000))

	open := signed(types.NewOpenBlock(genesisAccount, common.Hash{0x01}, genesisAccount), genesisPriv)
	_, err = ledger.Process(txn, open)
	require.NoError(t, err)

	res, err := ledger.Process(txn, open)
	require.NoError(t, err)
	require.Equal(t, Old, res)

	dangling := signed(types.NewSendBlock(genesisAccount, common.Hash{0x99}, destAccount, common.NewBalance(900)), genesisPriv)
	res, err = ledger.Process(txn, dangling)
	require.NoError(t, err)
	require.Equal(t, GapPrevious, res)
}
