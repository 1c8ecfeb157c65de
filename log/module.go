// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package log

// ModuleName identifies a subsystem for the purposes of per-module logger
// lookup, mirroring how the teacher calls log.NewModuleLogger(log.Common)
// from every package instead of threading a *Logger through constructors.
type ModuleName string

const (
	Common           ModuleName = "COMMON"
	StorageDatabase  ModuleName = "STORAGE_DB"
	SecureLedger     ModuleName = "LEDGER"
	ConsensusActive  ModuleName = "ACTIVE"
	NodeVoting       ModuleName = "VOTING"
	NodeAlarm        ModuleName = "ALARM"
	NodeConfig       ModuleName = "NODE_CFG"
	NodeNotify       ModuleName = "NOTIFY"
	Node             ModuleName = "NODE"
	Work             ModuleName = "WORK"
	CMD              ModuleName = "CMD"
)

// NewModuleLogger returns a Logger pre-tagged with the given module name.
// Every call site gets an independent *logger value (so SetHandler on one
// module never affects another), but all share the process-wide root
// handler until overridden.
func NewModuleLogger(name ModuleName) Logger {
	return &logger{module: string(name), h: root.h}
}
