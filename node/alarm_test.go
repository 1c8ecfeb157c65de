// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package node

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAlarmOrdersCallbacksByDeadline schedules two callbacks 1ms apart:
// the first sets v1=1 and v2=1, the second (the later deadline) then
// overwrites v2=2. Once both have fired, v1 must still be 1 and v2
// must be 2 — the second callback's write must not be clobbered by a
// callback dispatched out of deadline order.
func TestAlarmOrdersCallbacksByDeadline(t *testing.T) {
	alarm := NewAlarm()
	defer alarm.Stop()

	var (
		mu     sync.Mutex
		v1, v2 int
	)
	done := make(chan struct{})

	alarm.After(0, func() {
		mu.Lock()
		v1, v2 = 1, 1
		mu.Unlock()
	})
	alarm.After(time.Millisecond, func() {
		mu.Lock()
		v2 = 2
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second callback never fired")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, v1)
	require.Equal(t, 2, v2)
}

func TestAlarmRunsManyCallbacksInDeadlineOrder(t *testing.T) {
	alarm := NewAlarm()
	defer alarm.Stop()

	const n = 20
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		i := i
		alarm.After(time.Duration(n-i)*time.Millisecond, func() {
			mu.Lock()
			order = append(order, n-i)
			mu.Unlock()
			wg.Done()
		})
	}

	waitWithTimeout(t, &wg, 3*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, n)
	for i := 1; i < len(order); i++ {
		require.LessOrEqual(t, order[i-1], order[i])
	}
}

func waitWithTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for callbacks")
	}
}
