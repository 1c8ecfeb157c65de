// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package node

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/chratos-system/chratos-sub002/blockchain/types"
	"github.com/chratos-system/chratos-sub002/common"
)

type singleRep struct {
	account common.Account
	priv    ed25519.PrivateKey
}

func (s singleRep) ForEachRepresentative(fn func(common.Account, ed25519.PrivateKey)) {
	fn(s.account, s.priv)
}

func newRepFixture(t *testing.T) singleRep {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return singleRep{account: common.BytesToAccount(pub), priv: priv}
}

func TestGeneratorFlushesOnFullBatch(t *testing.T) {
	rep := newRepFixture(t)

	var mu sync.Mutex
	var published []*types.Vote
	flushed := make(chan struct{}, 1)

	gen := NewGenerator(rep, func(v *types.Vote) error {
		mu.Lock()
		published = append(published, v)
		mu.Unlock()
		select {
		case flushed <- struct{}{}:
		default:
		}
		return nil
	}, time.Hour) // long wait: only the full-batch path should fire
	defer gen.Stop()

	for i := 0; i < batchSize; i++ {
		gen.Add(common.BytesToHash([]byte{byte(i)}))
	}

	select {
	case <-flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a vote once the batch filled")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, published, 1)
	require.Len(t, published[0].Hashes, batchSize)
	require.True(t, published[0].Verify())
}

func TestGeneratorFlushesOnWaitCutoff(t *testing.T) {
	rep := newRepFixture(t)

	flushed := make(chan *types.Vote, 1)
	gen := NewGenerator(rep, func(v *types.Vote) error {
		flushed <- v
		return nil
	}, 30*time.Millisecond)
	defer gen.Stop()

	gen.Add(common.HexToHash("0x01"))
	gen.Add(common.HexToHash("0x02"))

	select {
	case v := <-flushed:
		require.Len(t, v.Hashes, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a vote once the wait cutoff elapsed")
	}
}

func TestGeneratorSequenceIncreasesAcrossBatches(t *testing.T) {
	rep := newRepFixture(t)

	seqs := make(chan uint64, 2)
	gen := NewGenerator(rep, func(v *types.Vote) error {
		seqs <- v.Sequence
		return nil
	}, 20*time.Millisecond)
	defer gen.Stop()

	gen.Add(common.HexToHash("0x01"))
	first := <-seqs

	gen.Add(common.HexToHash("0x02"))
	second := <-seqs

	require.Equal(t, first+1, second)
}

func TestGeneratorStopDropsPendingPartialBatch(t *testing.T) {
	rep := newRepFixture(t)

	var calls int
	gen := NewGenerator(rep, func(v *types.Vote) error {
		calls++
		return nil
	}, time.Hour)

	gen.Add(common.HexToHash("0x01"))
	gen.Stop()

	require.Equal(t, 0, calls)
}
