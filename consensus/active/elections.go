// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library (package layout derived from
// consensus/istanbul/validator/weighted.go's weighted-tally bookkeeping,
// generalized from validator voting power to representative-delegated
// account balance).

// Package active tracks one election per conflicting root: it ingests
// votes, tallies representative-weighted support, and decides when a
// block is confirmed, rolled back in favor of a competing block, or
// aged out untouched.
package active

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/fatih/set.v0"

	"github.com/chratos-system/chratos-sub002/blockchain/types"
	"github.com/chratos-system/chratos-sub002/common"
	"github.com/chratos-system/chratos-sub002/log"
	"github.com/chratos-system/chratos-sub002/secure"
	"github.com/chratos-system/chratos-sub002/storage/database"
)

var logger = log.NewModuleLogger(log.ConsensusActive)

// DefaultCutoff is how long an election survives without reaching
// quorum before it is dropped and the current head stands.
const DefaultCutoff = 5 * time.Minute

// DefaultQuorumNumerator expresses the default confirmation quorum as a
// percentage of online weight (≥60%).
const DefaultQuorumNumerator = 60

// DefaultAnnounceInterval is how often a live election re-announces its
// current leading candidate to recruit further votes.
const DefaultAnnounceInterval = 16 * time.Second

// LedgerAPI is the narrow slice of *secure.Ledger the election manager
// needs: weight lookups to tally votes, and process/rollback to apply a
// confirmation. Tests can substitute a fake satisfying this interface
// instead of standing up a full store-backed ledger.
type LedgerAPI interface {
	Weight(txn database.Transaction, rep common.Account) (common.Balance, error)
	Process(txn database.Transaction, block types.Block) (secure.ProcessResult, error)
	Rollback(txn database.Transaction, hash common.Hash) error
	GetBlock(txn database.Transaction, hash common.Hash) (types.Block, error)
	// AccountHead reports the hash an account's chain currently commits
	// to, or the zero hash if the account has never been opened.
	AccountHead(txn database.Transaction, account common.Account) (common.Hash, error)
}

// VoteLocallyFunc asks the vote generator to sign and broadcast a vote
// for hash on behalf of every held representative key. Kept as a
// function handle rather than a dependency on the node package so this
// package never imports the wallet or network layers it doesn't need.
type VoteLocallyFunc func(hash common.Hash)

type voteRecord struct {
	sequence uint64
	hash     common.Hash
}

// Election is the in-memory state for one conflicting root.
type Election struct {
	mu         sync.Mutex
	root       common.Hash
	candidates map[common.Hash]types.Block
	// seen tracks every candidate hash this election has ever been
	// offered, so a repeat Start() call
	// for an already-known candidate is a cheap no-op instead of
	// overwriting the stored block and re-logging it.
	seen      *set.Set
	lastVotes map[common.Account]voteRecord
	confirmed bool
	started   time.Time
}

func newElection(root common.Hash, block types.Block) *Election {
	seen := set.New()
	seen.Add(block.Hash())
	return &Election{
		root:       root,
		candidates: map[common.Hash]types.Block{block.Hash(): block},
		seen:       seen,
		lastVotes:  make(map[common.Account]voteRecord),
		started:    time.Now(),
	}
}

// Winner reports the election's currently leading candidate block: the
// hash named by the most voters' latest votes, counting each voter once
// regardless of weight. Ties are broken by map iteration order. Winner
// takes the election's own lock, so it must not be called with that
// lock held.
func (e *Election) Winner() common.Hash {
	e.mu.Lock()
	defer e.mu.Unlock()
	tally := make(map[common.Hash]int)
	for _, rec := range e.lastVotes {
		tally[rec.hash]++
	}
	var best common.Hash
	bestCount := -1
	for hash, count := range tally {
		if count > bestCount {
			best, bestCount = hash, count
		}
	}
	return best
}

// VoteCount reports how many voters currently have an entry in the
// election, the quantity the conflict scenarios check directly.
func (e *Election) VoteCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.lastVotes)
}

// Manager owns every live election, keyed by conflicting root. At most
// one election exists per root at a time.
type Manager struct {
	mu    sync.Mutex
	roots map[common.Hash]*Election

	store  database.Store
	ledger LedgerAPI

	QuorumNumerator     int
	OnlineWeightMinimum common.Balance
	Cutoff              time.Duration
	AnnounceInterval    time.Duration

	voteLocally VoteLocallyFunc
	audit       *zap.Logger

	// OnConfirmed, if set, is called after a winning block has been
	// committed (or was already the account's head). It is best-effort
	// notification plumbing, not part of confirmation itself: a nil
	// value or a slow/blocking implementation never affects quorum
	// math or commit ordering, since it runs after the transaction
	// that decided the outcome has already been committed.
	OnConfirmed func(root common.Hash, winner types.Block)
}

// NewManager builds an election manager backed by store for weight and
// block-state reads, and ledger for applying confirmed blocks.
func NewManager(store database.Store, ledger LedgerAPI, voteLocally VoteLocallyFunc) *Manager {
	auditLogger, _ := zap.NewProduction()
	return &Manager{
		roots:               make(map[common.Hash]*Election),
		store:               store,
		ledger:              ledger,
		QuorumNumerator:     DefaultQuorumNumerator,
		OnlineWeightMinimum: common.Balance{},
		Cutoff:              DefaultCutoff,
		AnnounceInterval:    DefaultAnnounceInterval,
		voteLocally:         voteLocally,
		audit:               auditLogger,
	}
}

// RootCount reports how many elections are currently live, the metric
// the conflict scenarios check directly.
func (m *Manager) RootCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.roots)
}

// Start opens (or joins) the election for block's root. If an election
// for that root already exists, block is added to its candidate set;
// otherwise a new election is created with a tentative self-vote for
// block and the local vote generator is asked to vote for it.
func (m *Manager) Start(block types.Block) *Election {
	root := block.Root()

	m.mu.Lock()
	el, exists := m.roots[root]
	if !exists {
		el = newElection(root, block)
		m.roots[root] = el
	}
	m.mu.Unlock()

	if exists {
		el.mu.Lock()
		if !el.seen.Has(block.Hash()) {
			el.seen.Add(block.Hash())
			el.candidates[block.Hash()] = block
		}
		el.mu.Unlock()
		return el
	}

	el.mu.Lock()
	el.lastVotes[common.Account{}] = voteRecord{sequence: 0, hash: block.Hash()}
	el.mu.Unlock()

	if m.voteLocally != nil {
		m.voteLocally(block.Hash())
	}
	if m.audit != nil {
		m.audit.Info("election started", zap.String("root", root.Hex()), zap.String("candidate", block.Hash().Hex()))
	}
	return el
}

// Vote applies v to whichever live election's candidate set contains
// one of its hashes, retallies, and confirms or rolls back as needed.
// A vote naming no tracked hash is a no-op: the voter may simply be
// ahead of or behind this node's view.
func (m *Manager) Vote(v *types.Vote) error {
	if !v.Verify() {
		return nil
	}

	el := m.findElection(v)
	if el == nil {
		return nil
	}

	el.mu.Lock()
	if el.confirmed {
		el.mu.Unlock()
		return nil
	}
	if existing, ok := el.lastVotes[v.Account]; ok && existing.sequence >= v.Sequence {
		el.mu.Unlock()
		return nil
	}
	var votedHash common.Hash
	for _, h := range v.Hashes {
		if _, ok := el.candidates[h]; ok {
			votedHash = h
			break
		}
	}
	if votedHash.IsZero() {
		el.mu.Unlock()
		return nil
	}
	el.lastVotes[v.Account] = voteRecord{sequence: v.Sequence, hash: votedHash}
	tally := make(map[common.Hash]common.Balance, len(el.candidates))
	root := el.root
	el.mu.Unlock()

	txn, err := m.store.Begin(false)
	if err != nil {
		return err
	}
	defer txn.Discard()

	el.mu.Lock()
	for voter, rec := range el.lastVotes {
		w, err := m.ledger.Weight(txn, voter)
		if err != nil {
			el.mu.Unlock()
			return err
		}
		tally[rec.hash] = tally[rec.hash].Add(w)
	}
	el.mu.Unlock()

	quorum, err := m.quorumThreshold(txn)
	if err != nil {
		return err
	}

	var confirmedHash common.Hash
	for hash, weight := range tally {
		if weight.Cmp(quorum) >= 0 {
			confirmedHash = hash
			break
		}
	}
	if confirmedHash.IsZero() {
		return nil
	}

	return m.confirm(el, root, confirmedHash)
}

// confirm marks el confirmed, and if the winning candidate differs
// from the account's current head, rolls back to the fork point and
// re-processes the winner.
func (m *Manager) confirm(el *Election, root common.Hash, confirmedHash common.Hash) error {
	el.mu.Lock()
	if el.confirmed {
		el.mu.Unlock()
		return nil
	}
	el.confirmed = true
	winner := el.candidates[confirmedHash]
	el.mu.Unlock()

	m.mu.Lock()
	delete(m.roots, root)
	m.mu.Unlock()

	if winner == nil {
		logger.Debug("confirmed root with no retained candidate block", "root", root.Hex())
		return nil
	}

	txn, err := m.store.Begin(true)
	if err != nil {
		return err
	}
	defer txn.Discard()

	if _, err := txn.Get(database.TableBlocks, confirmedHash.Bytes()); err == database.ErrNotFound {
		// The winner was never committed: whichever candidate did get
		// committed is the account's current head, and that is what
		// must be undone, not root (root is only the shared ancestor
		// both candidates build on, and it may not even be a block —
		// for an account's first block, root is the account itself).
		head, err := m.ledger.AccountHead(txn, winner.Account())
		if err != nil {
			return err
		}
		if !head.IsZero() {
			if err := m.ledger.Rollback(txn, head); err != nil {
				return err
			}
		}
		if _, err := m.ledger.Process(txn, winner); err != nil {
			return err
		}
	}

	if m.audit != nil {
		m.audit.Info("election confirmed", zap.String("root", root.Hex()), zap.String("winner", confirmedHash.Hex()))
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	if m.OnConfirmed != nil {
		m.OnConfirmed(root, winner)
	}
	return nil
}

// AgeOut drops every election older than Cutoff, regardless of
// outcome; the current head stands for each.
func (m *Manager) AgeOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for root, el := range m.roots {
		el.mu.Lock()
		expired := now.Sub(el.started) > m.Cutoff
		el.mu.Unlock()
		if expired {
			delete(m.roots, root)
			if m.audit != nil {
				m.audit.Info("election aged out", zap.String("root", root.Hex()))
			}
		}
	}
}

// Rebroadcast re-arms the local vote generator for every live election's
// currently leading candidate. This is the periodic announcement
// spec.md §4.D describes: an election that hasn't reached quorum yet
// keeps recruiting votes by re-asking for a local vote on its
// front-runner every AnnounceInterval, rather than voting only once at
// Start.
func (m *Manager) Rebroadcast() {
	if m.voteLocally == nil {
		return
	}

	m.mu.Lock()
	elections := make([]*Election, 0, len(m.roots))
	for _, el := range m.roots {
		elections = append(elections, el)
	}
	m.mu.Unlock()

	for _, el := range elections {
		if winner := el.Winner(); !winner.IsZero() {
			m.voteLocally(winner)
		}
	}
}

func (m *Manager) findElection(v *types.Vote) *Election {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, el := range m.roots {
		el.mu.Lock()
		matches := false
		for _, h := range v.Hashes {
			if _, ok := el.candidates[h]; ok {
				matches = true
				break
			}
		}
		el.mu.Unlock()
		if matches {
			return el
		}
	}
	return nil
}

func (m *Manager) quorumThreshold(txn database.Transaction) (common.Balance, error) {
	total, err := m.totalOnlineWeight(txn)
	if err != nil {
		return common.Balance{}, err
	}
	if total.Cmp(m.OnlineWeightMinimum) < 0 {
		total = m.OnlineWeightMinimum
	}
	numerator := common.NewBalance(int64(m.QuorumNumerator))
	product := total.Big()
	product.Mul(product, numerator.Big())
	product.Div(product, common.NewBalance(100).Big())
	return common.BalanceFromBig(product), nil
}

func (m *Manager) totalOnlineWeight(txn database.Transaction) (common.Balance, error) {
	cursor, err := txn.Cursor(database.TableRepWeights, nil)
	if err != nil {
		return common.Balance{}, err
	}
	defer cursor.Close()

	total := common.Balance{}
	for cursor.Valid() {
		raw, err := cursor.Value()
		if err != nil {
			return common.Balance{}, err
		}
		total = total.Add(common.BytesToBalance(raw))
		cursor.Next()
	}
	return total, nil
}
