// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package work

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chratos-system/chratos-sub002/common"
)

func TestGenerateValidates(t *testing.T) {
	pool := NewPool(2, PublishTestThreshold, nil)
	defer pool.Stop()

	root := common.HexToHash("0x01")
	nonce := pool.GenerateSync(root)
	require.True(t, Validate(root, nonce, PublishTestThreshold))
}

// TestCancelEventuallyReportsNoWork repeatedly requests work and
// immediately cancels it; fewer than 200 iterations should suffice to
// observe at least one no-work callback.
func TestCancelEventuallyReportsNoWork(t *testing.T) {
	// A threshold no CPU will clear in the time it takes to cancel,
	// so every request is still pending (or in flight) when canceled.
	pool := NewPool(2, ^uint64(0), nil)
	defer pool.Stop()

	for i := 0; i < 200; i++ {
		var (
			mu       sync.Mutex
			notified bool
			gotOK    bool
		)
		var wg sync.WaitGroup
		wg.Add(1)
		root := common.BytesToHash([]byte{byte(i)})
		pool.Generate(root, func(nonce uint64, ok bool) {
			mu.Lock()
			notified = true
			gotOK = ok
			mu.Unlock()
			wg.Done()
		})
		pool.Cancel(root)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
			// No callback yet for this iteration; move on, the
			// property only needs one success within 200 tries.
			continue
		}

		mu.Lock()
		wasNotified, wasOK := notified, gotOK
		mu.Unlock()
		if wasNotified && !wasOK {
			return
		}
	}
	t.Fatal("expected at least one no-work callback within 200 iterations")
}

func TestCancelIsIdempotentOnUnknownRoot(t *testing.T) {
	pool := NewPool(1, PublishTestThreshold, nil)
	defer pool.Stop()
	pool.Cancel(common.HexToHash("0xdead"))
}

func TestAcceleratorIsTriedFirst(t *testing.T) {
	var called bool
	pool := NewPool(1, ^uint64(0), func(root common.Hash) (uint64, bool) {
		called = true
		return 42, true
	})
	defer pool.Stop()

	nonce := pool.GenerateSync(common.HexToHash("0x01"))
	require.True(t, called)
	require.Equal(t, uint64(42), nonce)
}
