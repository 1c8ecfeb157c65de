// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package node

import (
	"container/heap"
	"sync"
	"time"

	"github.com/aristanetworks/goarista/monotime"
)

// alarmItem is one scheduled callback, ordered by its monotonic
// deadline so wall-clock adjustments never reorder pending callbacks.
type alarmItem struct {
	deadline uint64
	fn       func()
	index    int
}

type alarmQueue []*alarmItem

func (q alarmQueue) Len() int            { return len(q) }
func (q alarmQueue) Less(i, j int) bool  { return q[i].deadline < q[j].deadline }
func (q alarmQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}

func (q *alarmQueue) Push(x interface{}) {
	item := x.(*alarmItem)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *alarmQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// Alarm is a min-heap of (deadline, callback) pairs. A single dispatch
// goroutine posts callbacks once their deadline passes; Add is safe
// from any number of concurrent callers. Cancellation is not
// supported — callbacks are expected to be idempotent or to check
// whether they're still relevant when they run.
type Alarm struct {
	mu    sync.Mutex
	queue alarmQueue

	wake   chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewAlarm starts the dispatch goroutine.
func NewAlarm() *Alarm {
	a := &Alarm{
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go a.run()
	return a
}

// After schedules cb to run once d has elapsed.
func (a *Alarm) After(d time.Duration, cb func()) {
	a.schedule(monotime.Now()+uint64(d), cb)
}

// At schedules cb to run once wall-clock time t arrives, measured at
// call time as a duration from now so the schedule survives any later
// system clock adjustment.
func (a *Alarm) At(t time.Time, cb func()) {
	a.After(time.Until(t), cb)
}

// Stop ends the dispatch goroutine. Callbacks already due are not
// guaranteed to run after Stop is called.
func (a *Alarm) Stop() {
	close(a.stopCh)
	<-a.doneCh
}

func (a *Alarm) schedule(deadline uint64, cb func()) {
	a.mu.Lock()
	heap.Push(&a.queue, &alarmItem{deadline: deadline, fn: cb})
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Alarm) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait, hasDue := a.nextWait()
		if hasDue {
			a.fireDue()
			continue
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-timer.C:
		case <-a.wake:
		case <-a.stopCh:
			close(a.doneCh)
			return
		}
	}
}

// nextWait reports how long until the earliest pending deadline, and
// whether it has already passed.
func (a *Alarm) nextWait() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.queue) == 0 {
		return time.Hour, false
	}
	now := monotime.Now()
	next := a.queue[0].deadline
	if next <= now {
		return 0, true
	}
	return time.Duration(next - now), false
}

// fireDue pops and runs every callback whose deadline has passed,
// oldest first, outside the lock so a callback can itself call Add.
func (a *Alarm) fireDue() {
	now := monotime.Now()
	var due []func()

	a.mu.Lock()
	for len(a.queue) > 0 && a.queue[0].deadline <= now {
		item := heap.Pop(&a.queue).(*alarmItem)
		due = append(due, item.fn)
	}
	a.mu.Unlock()

	for _, fn := range due {
		fn()
	}
}
