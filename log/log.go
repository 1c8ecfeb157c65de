// Copyright 2018 The klaytn Authors
// Copyright 2016 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from log/root.go (2018/06/04) and adapted to carry
// a per-module registry the way the node's many subsystems each want their
// own contextual logger.

// Package log provides a leveled, contextual logger in the spirit of the
// teacher's log15-style package: one root handler, per-call key/value
// context, and a small per-module registry so each subsystem (ledger,
// elections, work pool, vote generator, store) gets its own named logger
// without wiring a context object through every constructor.
package log

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
)

// Lvl is a log severity level, ordered from most to least verbose.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	default:
		return "TRACE"
	}
}

// Record is a single log event passed to a Handler.
type Record struct {
	Time    time.Time
	Lvl     Lvl
	Msg     string
	Ctx     []interface{}
	Call    stack.Call
	Module  string
}

// Handler writes a Record out somewhere (terminal, file, json sink...).
type Handler interface {
	Log(r *Record) error
}

// Logger is the per-call interface code reaches for. It never returns an
// error: logging is a side effect, not a fallible operation.
type Logger interface {
	New(ctx ...interface{}) Logger
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{}) // Crit logs then calls os.Exit(1)
	SetHandler(h Handler)
}

type logger struct {
	module string
	ctx    []interface{}

	mu sync.Mutex
	h  Handler
}

// New creates a standalone contextual logger, independent of the module
// registry. Most code should go through NewModuleLogger instead.
func New(ctx ...interface{}) Logger {
	return &logger{ctx: ctx, h: root.h}
}

func (l *logger) New(ctx ...interface{}) Logger {
	child := &logger{module: l.module, ctx: append(append([]interface{}{}, l.ctx...), ctx...)}
	l.mu.Lock()
	child.h = l.h
	l.mu.Unlock()
	if child.h == nil {
		child.h = root.h
	}
	return child
}

func (l *logger) SetHandler(h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.h = h
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	l.mu.Lock()
	h := l.h
	l.mu.Unlock()
	if h == nil {
		h = root.h
	}
	r := &Record{
		Time:   time.Now(),
		Lvl:    lvl,
		Msg:    msg,
		Ctx:    append(append([]interface{}{}, l.ctx...), ctx...),
		Module: l.module,
	}
	if lvl <= LvlError {
		r.Call = stack.Caller(2)
	}
	_ = h.Log(r)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.write(LvlCrit, msg, ctx)
	os.Exit(1)
}

// root is the process-wide default handler, process-wide read-mostly state
// per the "global process-wide pieces" design note — initialized explicitly
// at startup via ChangeGlobalLogLevel/SetRootHandler rather than an init().
var root = struct {
	mu sync.Mutex
	h  Handler
}{h: NewTerminalHandler(os.Stderr, true, LvlInfo)}

// SetRootHandler replaces the default handler used by loggers that were
// never given one of their own.
func SetRootHandler(h Handler) {
	root.mu.Lock()
	defer root.mu.Unlock()
	root.h = h
}

// fmtCtx renders alternating key/value context pairs, tolerating an odd
// trailing key by pairing it with "MISSING".
func fmtCtx(ctx []interface{}) string {
	if len(ctx) == 0 {
		return ""
	}
	out := ""
	for i := 0; i < len(ctx); i += 2 {
		k := ctx[i]
		var v interface{} = "MISSING"
		if i+1 < len(ctx) {
			v = ctx[i+1]
		}
		out += fmt.Sprintf(" %v=%v", k, v)
	}
	return out
}
