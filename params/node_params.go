// Copyright 2019 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package params holds process-wide, read-mostly configuration values
// that don't belong to any one subsystem.
package params

import "sync"

// ThreadRole labels one of the node's fixed worker pools, purely for
// operator-facing diagnostics (logs, a debugger attached to the
// process) — it has no effect on scheduling.
type ThreadRole int

const (
	RoleUnknown ThreadRole = iota
	RoleIO
	RoleWork
	RoleVoting
	RoleBlockProcessing
	RoleGenerator
)

func (r ThreadRole) String() string {
	switch r {
	case RoleIO:
		return "io"
	case RoleWork:
		return "work"
	case RoleVoting:
		return "voting"
	case RoleBlockProcessing:
		return "block_processing"
	case RoleGenerator:
		return "generator"
	default:
		return "unknown"
	}
}

// roleRegistry is the process-wide table of role -> how many live
// goroutines currently carry it, read-mostly after startup the same
// way the original's per-OS thread_role.cpp sets a name once per
// thread. Go goroutines have no portable OS-level naming hook without
// cgo, so this table is the entire implementation: it exists for
// diagnostics (--diagnostics can report it) rather than to rename any
// OS thread.
var roleRegistry = struct {
	mu    sync.Mutex
	count map[ThreadRole]int
}{count: make(map[ThreadRole]int)}

// SetThreadRole records that the calling goroutine carries role,
// returning a function to call when it exits the role. Safe to call
// from any goroutine; tolerates being called on every platform,
// matching the original's per-OS stub requirement without needing
// per-OS Go build tags since there is nothing OS-specific left to do.
func SetThreadRole(role ThreadRole) (clear func()) {
	roleRegistry.mu.Lock()
	roleRegistry.count[role]++
	roleRegistry.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			roleRegistry.mu.Lock()
			roleRegistry.count[role]--
			roleRegistry.mu.Unlock()
		})
	}
}

// ThreadRoleCounts snapshots how many goroutines currently carry each
// role, for the diagnostics table.
func ThreadRoleCounts() map[ThreadRole]int {
	roleRegistry.mu.Lock()
	defer roleRegistry.mu.Unlock()
	out := make(map[ThreadRole]int, len(roleRegistry.count))
	for role, n := range roleRegistry.count {
		out[role] = n
	}
	return out
}
