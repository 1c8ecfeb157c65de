// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

// Package work is the cancellable proof-of-work producer: a pool of
// worker goroutines sharing a FIFO of pending work requests and a
// single atomic ticket, the same shape as the teacher's work/agent.go
// CpuAgent but generalized from one mining goroutine per CPU to a
// shared queue with an optional accelerator tried ahead of brute force.
package work

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-uuid"

	"github.com/chratos-system/chratos-sub002/blockchain/types"
	"github.com/chratos-system/chratos-sub002/common"
	"github.com/chratos-system/chratos-sub002/log"
)

// Local work threshold for rate-limiting publishing blocks; roughly 5
// seconds of work on commodity hardware for PublishFullThreshold,
// trivially cheap for PublishTestThreshold.
const (
	PublishTestThreshold uint64 = 0xff00000000000000
	PublishFullThreshold uint64 = 0xffffffc000000000
)

// candidatesPerCheck bounds how many random nonces a worker tries
// between checks of whether its request has been retired, trading a
// little wasted work near the moment of cancellation for not paying an
// atomic load per candidate.
const candidatesPerCheck = 1024

// Accelerator is an optional external work source (e.g. an OpenCL or
// ASIC backend) tried before falling back to CPU brute force.
type Accelerator func(root common.Hash) (nonce uint64, ok bool)

type request struct {
	root     common.Hash
	callback func(nonce uint64, ok bool)
	// id is a log-correlation id only: nothing in the pool keys off
	// it, and its absence (uuid generation failing) never blocks work.
	id string
}

func newRequestID() string {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return ""
	}
	return id
}

// Pool is the work producer. All of its exported methods are safe for
// concurrent use.
type Pool struct {
	threshold   uint64
	accelerator Accelerator
	logger      log.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*request
	ticket  int32
	done    bool

	wg sync.WaitGroup
}

// NewPool starts workers goroutines sharing one FIFO of work requests.
func NewPool(workers int, threshold uint64, accelerator Accelerator) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		threshold:   threshold,
		accelerator: accelerator,
		logger:      log.NewModuleLogger(log.Work),
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

// Stop tells every worker to exit once the pending queue drains, then
// waits for them to join.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.done = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

// Generate asynchronously produces a nonce for root and invokes
// callback with (nonce, true) once one is found, or (0, false) if the
// request is canceled first.
func (p *Pool) Generate(root common.Hash, callback func(nonce uint64, ok bool)) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		callback(0, false)
		return
	}
	req := &request{root: root, callback: callback, id: newRequestID()}
	p.pending = append(p.pending, req)
	p.mu.Unlock()
	p.logger.Debug("work request queued", "root", root.Hex(), "request", req.id)
	p.cond.Broadcast()
}

// Pending reports how many work requests are currently queued, for
// diagnostics reporting.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// GenerateSync blocks until a nonce for root is found, or returns 0 if
// the request is canceled (or the pool is stopped) first.
func (p *Pool) GenerateSync(root common.Hash) uint64 {
	result := make(chan uint64, 1)
	p.Generate(root, func(nonce uint64, ok bool) {
		if !ok {
			result <- 0
			return
		}
		result <- nonce
	})
	return <-result
}

// Cancel removes every pending request for root. If the currently
// active (front-of-queue) request matches, the ticket is bumped so any
// worker mid-search for it observes retirement and reports no work;
// returning from Cancel does not guarantee no callback has already
// fired for a request that a worker solved in the same instant.
func (p *Pool) Cancel(root common.Hash) {
	p.mu.Lock()
	var toNotify []*request
	kept := p.pending[:0:0]
	for i, req := range p.pending {
		if req.root != root {
			kept = append(kept, req)
			continue
		}
		if i == 0 {
			atomic.AddInt32(&p.ticket, 1)
		}
		toNotify = append(toNotify, req)
	}
	p.pending = kept
	p.mu.Unlock()
	p.cond.Broadcast()

	for _, req := range toNotify {
		p.logger.Debug("work request canceled", "root", req.root.Hex(), "request", req.id)
		req.callback(0, false)
	}
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.pending) == 0 && !p.done {
			p.cond.Wait()
		}
		if len(p.pending) == 0 && p.done {
			p.mu.Unlock()
			return
		}
		front := p.pending[0]
		ticketSnapshot := atomic.LoadInt32(&p.ticket)
		p.mu.Unlock()

		nonce, found := p.search(front.root, ticketSnapshot)
		if !found {
			continue
		}
		if !atomic.CompareAndSwapInt32(&p.ticket, ticketSnapshot, ticketSnapshot+1) {
			// Another worker solved it first, or Cancel retired it
			// while we were mining; the new front is picked up next
			// iteration.
			continue
		}
		p.popFront(front)
		p.logger.Debug("work request solved", "root", front.root.Hex(), "request", front.id, "nonce", nonce)
		front.callback(nonce, true)
	}
}

func (p *Pool) popFront(req *request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) > 0 && p.pending[0] == req {
		p.pending = p.pending[1:]
	}
}

// search tries the accelerator once, then brute-forces random 64-bit
// nonces against root until one clears threshold or the ticket moves
// past ticketSnapshot (meaning this request was retired by a peer or by
// Cancel).
func (p *Pool) search(root common.Hash, ticketSnapshot int32) (uint64, bool) {
	if p.accelerator != nil {
		if nonce, ok := p.accelerator(root); ok {
			return nonce, true
		}
	}
	for {
		if atomic.LoadInt32(&p.ticket) != ticketSnapshot {
			return 0, false
		}
		for i := 0; i < candidatesPerCheck; i++ {
			nonce := randomNonce()
			if types.WorkHash(root, nonce) >= p.threshold {
				return nonce, true
			}
		}
	}
}

func randomNonce() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing indicates a broken host; fall back to a
		// low-quality source rather than block work generation.
		return mrand.Uint64()
	}
	return binary.LittleEndian.Uint64(buf[:])
}

// Validate reports whether nonce already clears threshold for root.
// Validate(root, pool.GenerateSync(root)) holds for every nonce the CPU
// search finds; a nonce returned by the accelerator is passed through
// without this check, and a canceled GenerateSync returns 0.
func Validate(root common.Hash, nonce uint64, threshold uint64) bool {
	return types.WorkHash(root, nonce) >= threshold
}
