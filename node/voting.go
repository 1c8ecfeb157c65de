// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

// Package node wires together the pieces that turn a ledger and a work
// pool into a running participant: vote generation, the wakeup timer
// queue, and versioned on-disk configuration.
package node

import (
	"sync"
	"time"

	"golang.org/x/crypto/ed25519"

	"github.com/chratos-system/chratos-sub002/blockchain/types"
	"github.com/chratos-system/chratos-sub002/common"
	"github.com/chratos-system/chratos-sub002/log"
)

var votingLogger = log.NewModuleLogger(log.NodeVoting)

// batchSize is the most hashes a single vote covers, matching the
// upstream vote generator's reserve(12).
const batchSize = 12

// RepresentativeSource enumerates every representative key this node
// holds, so the vote generator never needs to know how keys are
// stored (wallet file, hardware key, etc).
type RepresentativeSource interface {
	ForEachRepresentative(fn func(account common.Account, priv ed25519.PrivateKey))
}

// VotePublisher hands a freshly generated vote off to whatever
// broadcasts it — typically an election manager's Vote method and a
// network flood, kept as a function so this package never imports
// either.
type VotePublisher func(v *types.Vote) error

// Generator batches up to batchSize newly-processed block hashes and
// signs one vote per held representative over each batch, flushing
// either once a batch fills or after wait has passed since the first
// hash of a partial batch arrived — whichever comes first.
type Generator struct {
	reps    RepresentativeSource
	publish VotePublisher
	wait    time.Duration

	mu        sync.Mutex
	hashes    []common.Hash
	sequences map[common.Account]uint64
	stopped   bool

	notify    chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	startedCh chan struct{}
}

// NewGenerator starts the generator's run loop and blocks until it is
// live, the same handshake the original constructor performs before
// returning.
func NewGenerator(reps RepresentativeSource, publish VotePublisher, wait time.Duration) *Generator {
	g := &Generator{
		reps:      reps,
		publish:   publish,
		wait:      wait,
		sequences: make(map[common.Account]uint64),
		notify:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		startedCh: make(chan struct{}),
	}
	go g.run()
	<-g.startedCh
	return g
}

// Add enqueues hash for the next vote batch. A no-op once Stop has
// been called.
func (g *Generator) Add(hash common.Hash) {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	g.hashes = append(g.hashes, hash)
	g.mu.Unlock()

	select {
	case g.notify <- struct{}{}:
	default:
	}
}

// Stop ends the run loop and waits for it to exit. Any batch smaller
// than batchSize still pending when Stop is called is dropped rather
// than force-flushed, matching the upstream generator's own shutdown.
func (g *Generator) Stop() {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	g.stopped = true
	g.mu.Unlock()

	close(g.stopCh)
	<-g.doneCh
}

// run follows the upstream vote_generator::run state machine: cutoff
// plays the role of its `min` sentinel (here the zero time.Time) for "no
// deadline armed yet". A deadline is armed only once a hash is queued;
// with an empty queue the loop waits without one.
func (g *Generator) run() {
	close(g.startedCh)

	var cutoff time.Time
	for {
		g.mu.Lock()
		if g.stopped {
			g.mu.Unlock()
			close(g.doneCh)
			return
		}
		n := len(g.hashes)
		g.mu.Unlock()

		now := time.Now()
		switch {
		case n >= batchSize:
			g.send()
		case cutoff.IsZero():
			if n == 0 {
				g.waitUntil(time.Time{})
				continue
			}
			cutoff = now.Add(g.wait)
			g.waitUntil(cutoff)
		case now.Before(cutoff):
			g.waitUntil(cutoff)
		default:
			cutoff = time.Time{}
			if n > 0 {
				g.send()
			} else {
				g.waitUntil(time.Time{})
			}
		}
	}
}

// waitUntil blocks until a new hash arrives, Stop is called, or (when
// deadline is non-zero) the deadline passes.
func (g *Generator) waitUntil(deadline time.Time) {
	var timerC <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		timerC = timer.C
	}
	select {
	case <-g.notify:
	case <-timerC:
	case <-g.stopCh:
	}
}

// send pops up to batchSize hashes off the front of the queue and
// signs one vote per held representative over that batch.
func (g *Generator) send() {
	g.mu.Lock()
	n := len(g.hashes)
	if n > batchSize {
		n = batchSize
	}
	batch := append([]common.Hash(nil), g.hashes[:n]...)
	g.hashes = g.hashes[n:]
	g.mu.Unlock()

	if len(batch) == 0 || g.reps == nil {
		return
	}

	g.reps.ForEachRepresentative(func(account common.Account, priv ed25519.PrivateKey) {
		g.mu.Lock()
		g.sequences[account]++
		seq := g.sequences[account]
		g.mu.Unlock()

		vote := types.NewVote(priv, account, seq, batch)
		if g.publish == nil {
			return
		}
		if err := g.publish(vote); err != nil {
			votingLogger.Warn("failed to publish generated vote", "account", account.Hex(), "err", err)
		}
	})
}
