// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package node

import (
	"runtime"
	"time"

	"github.com/chratos-system/chratos-sub002/blockchain/types"
	"github.com/chratos-system/chratos-sub002/common"
	"github.com/chratos-system/chratos-sub002/consensus/active"
	"github.com/chratos-system/chratos-sub002/log"
	"github.com/chratos-system/chratos-sub002/params"
	"github.com/chratos-system/chratos-sub002/secure"
	"github.com/chratos-system/chratos-sub002/storage/database"
	"github.com/chratos-system/chratos-sub002/work"
)

var nodeLogger = log.NewModuleLogger(log.Node)

// ageOutInterval is how often the election manager sweeps for
// elections that have outlived their cutoff without reaching quorum.
const ageOutInterval = 15 * time.Second

// announceInterval is how often every live election re-announces its
// current leading candidate to recruit further votes.
const announceInterval = active.DefaultAnnounceInterval

// LedgerAPI narrows *secure.Ledger to what Node itself calls directly;
// active.LedgerAPI narrows it further still for the election manager.
type LedgerAPI interface {
	active.LedgerAPI
}

// Node ties the store, ledger, work pool, election manager, vote
// generator, alarm, and optional notifier into one running participant.
// It holds no back-pointers from its parts to itself: each part only
// knows the narrow function-object capability it needs (VoteLocallyFunc,
// VotePublisher, RepresentativeSource), never a *Node.
type Node struct {
	Config Config

	Store     database.Store
	Ledger    LedgerAPI
	Work      *work.Pool
	Elections *active.Manager
	Votes     *Generator
	Alarm     *Alarm
	Notifier  *Notifier

	clearRole func()
}

// New wires together a Node from its already-constructed parts.
// broadcastVote is the external collaborator that floods a locally
// generated vote to the network (the teacher's node never calls it
// directly, only through the VotePublisher handle the Generator holds).
// accelerator is an optional external work source tried ahead of CPU
// brute force; nil disables it.
func New(cfg Config, store database.Store, ledger LedgerAPI, reps RepresentativeSource, broadcastVote VotePublisher, workThreshold uint64, accelerator work.Accelerator, notifier *Notifier) *Node {
	workThreads := int(cfg.WorkThreads)
	if workThreads == 0 {
		workThreads = runtime.NumCPU()
	}
	n := &Node{
		Config:   cfg,
		Store:    store,
		Ledger:   ledger,
		Work:     work.NewPool(workThreads, workThreshold, accelerator),
		Votes:    NewGenerator(reps, broadcastVote, 1*time.Second),
		Alarm:    NewAlarm(),
		Notifier: notifier,
	}
	n.Elections = active.NewManager(store, ledger, n.Votes.Add)
	n.Elections.OnlineWeightMinimum = cfg.OnlineWeightMinimum
	n.Elections.QuorumNumerator = int(cfg.OnlineWeightQuorum)
	n.Elections.OnConfirmed = n.onConfirmed
	return n
}

// Start begins the election manager's periodic age-out sweep and its
// periodic candidate re-announcement. The vote generator and alarm are
// already running from their own constructors; Start only needs to arm
// the recurring sweeps, since Alarm has no built-in repeat primitive
// (spec: cancellation is not required, but repetition has to be
// re-armed by hand).
func (n *Node) Start() {
	clear := params.SetThreadRole(params.RoleBlockProcessing)
	n.clearRole = clear
	n.scheduleAgeOut()
	n.scheduleAnnounce()
	nodeLogger.Info("node started", "data_path", "")
}

func (n *Node) scheduleAgeOut() {
	n.Alarm.After(ageOutInterval, func() {
		n.Elections.AgeOut()
		n.scheduleAgeOut()
	})
}

func (n *Node) scheduleAnnounce() {
	n.Alarm.After(announceInterval, func() {
		n.Elections.Rebroadcast()
		n.scheduleAnnounce()
	})
}

// Stop shuts down the vote generator, the alarm, and the work pool, in
// that order: no new votes are generated, no new callbacks fire, then
// the work pool's workers finish the requests still queued and exit.
func (n *Node) Stop() {
	n.Votes.Stop()
	n.Alarm.Stop()
	n.Work.Stop()
	if n.clearRole != nil {
		n.clearRole()
	}
	nodeLogger.Info("node stopped")
}

// ProcessBlock validates and applies block, and if it conflicts with
// the account's current head, opens or joins the election for that
// root instead of rejecting it outright. The caller (the external
// network/RPC layer that decoded block off the wire) is responsible
// for handing every newly seen block here exactly once.
func (n *Node) ProcessBlock(block types.Block) (secure.ProcessResult, error) {
	txn, err := n.Store.Begin(true)
	if err != nil {
		return 0, err
	}
	defer txn.Discard()

	result, err := n.Ledger.Process(txn, block)
	if err != nil {
		return 0, err
	}

	switch result {
	case secure.Progress:
		if err := txn.Commit(); err != nil {
			return 0, err
		}
		n.Votes.Add(block.Hash())
		return result, nil
	case secure.Fork:
		txn.Discard()
		n.Elections.Start(block)
		return result, nil
	default:
		return result, nil
	}
}

// onConfirmed is the election manager's confirmation hook, forwarding a
// decided block to the optional outbound notifier. It never returns an
// error: a notification failure must never unwind a confirmation that
// has already been committed.
func (n *Node) onConfirmed(root common.Hash, winner types.Block) {
	if n.Notifier == nil || winner == nil {
		return
	}
	n.Notifier.Notify(Confirmation{
		Account:        winner.Account(),
		Hash:           winner.Hash(),
		Amount:         winner.Balance(),
		Representative: winner.Representative(),
		BlockType:      winner.Type().String(),
	})
}
