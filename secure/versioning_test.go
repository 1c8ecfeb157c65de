// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package secure

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chratos-system/chratos-sub002/blockchain/types"
	"github.com/chratos-system/chratos-sub002/common"
	"github.com/chratos-system/chratos-sub002/storage/database"
)

// TestSchemaV1Upgrade writes a version-1 account record directly,
// reopens it through the current-schema accessor, and checks that
// head/balance/modified/rep_block survive while open_block is inferred
// by walking the chain back to the block whose previous is zero.
func TestSchemaV1Upgrade(t *testing.T) {
	ledger, store, cleanup := newTestLedger(t)
	defer cleanup()

	genesisAccount, genesisPriv := newTestAccount(t)

	txn, err := store.Begin(true)
	require.NoError(t, err)
	defer txn.Discard()
	seedGenesis(t, txn, genesisAccount, common.NewBalance(1000))

	open := signed(types.NewOpenBlock(genesisAccount, common.Hash{0x01}, genesisAccount), genesisPriv)
	res, err := ledger.Process(txn, open)
	require.NoError(t, err)
	require.Equal(t, Progress, res)

	v1 := NewAccountInfoV1(open.Hash(), open.Hash(), common.NewBalance(1000), 42)
	require.NoError(t, txn.Put(database.TableAccounts, genesisAccount.Bytes(), EncodeAccountInfoV1(v1)))

	info, has, err := ledger.getAccountInfo(txn, genesisAccount)
	require.NoError(t, err)
	require.True(t, has)

	require.Equal(t, open.Hash(), info.Head)
	require.Equal(t, open.Hash(), info.RepBlock)
	require.Equal(t, uint64(42), info.Modified)
	require.Equal(t, 0, info.Balance.Cmp(common.NewBalance(1000)))
	require.Equal(t, open.Hash(), info.OpenBlock)
}
