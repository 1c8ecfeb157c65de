// Copyright 2018 The klaytn Authors
// This file is part of the go-ethereum library (derived, log/handler.go 2018/06/04).

package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var levelColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgMagenta, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
	LvlTrace: color.New(color.FgWhite),
}

// terminalHandler writes human-readable, optionally colored lines, the way
// the teacher's node writes to stderr by default.
type terminalHandler struct {
	mu     sync.Mutex
	out    io.Writer
	color  bool
	minLvl Lvl
}

// NewTerminalHandler wires go-colorable (so Windows consoles get ANSI too)
// and go-isatty (so color is only emitted to a real terminal, never to a
// redirected log file) the way the pack's CLI tooling does for colored
// output. Pass an *os.File to get automatic tty detection; any other
// io.Writer is used as-is with color disabled.
func NewTerminalHandler(out io.Writer, useColor bool, minLvl Lvl) Handler {
	f, isFile := out.(*os.File)
	wantColor := useColor && isFile && isatty.IsTerminal(f.Fd())
	wrapped := out
	if isFile {
		wrapped = colorable.NewColorable(f)
	}
	return &terminalHandler{out: wrapped, color: wantColor, minLvl: minLvl}
}

func (h *terminalHandler) Log(r *Record) error {
	if r.Lvl > h.minLvl {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	lvl := r.Lvl.String()
	if h.color {
		if c, ok := levelColor[r.Lvl]; ok {
			lvl = c.Sprint(lvl)
		}
	}
	prefix := r.Module
	if prefix != "" {
		prefix = "[" + prefix + "] "
	}
	_, err := fmt.Fprintf(h.out, "%s %-5s %s%s%s\n",
		r.Time.Format("2006-01-02T15:04:05-0700"), lvl, prefix, r.Msg, fmtCtx(r.Ctx))
	return err
}
