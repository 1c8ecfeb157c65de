// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package node

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryLimiterAllowsUpToLimit(t *testing.T) {
	limiter := NewInMemoryLimiter(3, time.Minute)

	require.True(t, limiter.Allow("acct"))
	require.True(t, limiter.Allow("acct"))
	require.True(t, limiter.Allow("acct"))
	require.False(t, limiter.Allow("acct"))
}

func TestInMemoryLimiterTracksKeysIndependently(t *testing.T) {
	limiter := NewInMemoryLimiter(1, time.Minute)

	require.True(t, limiter.Allow("a"))
	require.True(t, limiter.Allow("b"))
	require.False(t, limiter.Allow("a"))
	require.False(t, limiter.Allow("b"))
}

func TestInMemoryLimiterExpiresOldHits(t *testing.T) {
	limiter := NewInMemoryLimiter(1, 20*time.Millisecond)

	require.True(t, limiter.Allow("acct"))
	require.False(t, limiter.Allow("acct"))

	time.Sleep(40 * time.Millisecond)
	require.True(t, limiter.Allow("acct"))
}

func TestCallbackURLEmptyAddressDisablesHTTP(t *testing.T) {
	require.Equal(t, "", CallbackURL("", 8080, "/confirm"))
	require.Equal(t, "http://127.0.0.1:8080/confirm", CallbackURL("127.0.0.1", 8080, "/confirm"))
}
