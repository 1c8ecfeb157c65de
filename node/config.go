// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package node

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rjeczalik/notify"

	"github.com/chratos-system/chratos-sub002/common"
	"github.com/chratos-system/chratos-sub002/log"
)

var configLogger = log.NewModuleLogger(log.NodeConfig)

// configVersion is the schema tag stamped into every saved config file
// so an older file can be upgraded in place on load.
const (
	configVersionOpenCL = 2 // first version carrying opencl fields
	configVersionCurrent = configVersionOpenCL
)

// OpenCLConfig selects an accelerator device for the work pool, mirroring
// the original's opencl_config (platform/device index pair plus a
// worker thread count).
type OpenCLConfig struct {
	Platform uint   `json:"platform"`
	Device   uint   `json:"device"`
	Threads  uint   `json:"threads"`
}

// Config is the node's versioned on-disk configuration, covering every
// field node_config.hpp names that this module implements (peering,
// representatives, pool sizing, callback/notification targets, epoch
// parameters) plus the opencl_enable/opencl pair this repo's upgrade
// path introduces at version 2.
type Config struct {
	Version int `json:"version"`

	PeeringPort uint16 `json:"peering_port"`

	PreconfiguredPeers            []string        `json:"preconfigured_peers"`
	PreconfiguredRepresentatives  []common.Account `json:"preconfigured_representatives"`

	ReceiveMinimum      common.Balance `json:"receive_minimum"`
	OnlineWeightMinimum common.Balance `json:"online_weight_minimum"`
	OnlineWeightQuorum  uint           `json:"online_weight_quorum"`

	IOThreads      uint `json:"io_threads"`
	WorkThreads    uint `json:"work_threads"`
	EnableVoting   bool `json:"enable_voting"`

	CallbackAddress string `json:"callback_address"`
	CallbackPort    uint16 `json:"callback_port"`
	CallbackTarget  string `json:"callback_target"`

	EpochBlockLink   common.Hash    `json:"epoch_block_link"`
	EpochBlockSigner common.Account `json:"epoch_block_signer"`

	BlockProcessorBatchMaxTime time.Duration `json:"-"`

	// OpenCLEnable and OpenCL were added at configVersionOpenCL; a file
	// saved before that version upgrades to OpenCLEnable: false and a
	// zero-value OpenCL on load.
	OpenCLEnable bool         `json:"opencl_enable"`
	OpenCL       OpenCLConfig `json:"opencl"`
}

// jsonConfig is Config's wire shape: BlockProcessorBatchMaxTime is
// stored as whole milliseconds rather than relying on time.Duration's
// own (nanosecond-integer) JSON encoding.
type jsonConfig struct {
	Config
	BlockProcessorBatchMaxTimeMs int64 `json:"block_processor_batch_max_time_ms"`
}

// DefaultConfig returns the configuration a freshly initialized data
// directory starts with.
func DefaultConfig() Config {
	return Config{
		Version:                    configVersionCurrent,
		PeeringPort:                7075,
		OnlineWeightQuorum:         60,
		IOThreads:                  4,
		WorkThreads:                0, // 0 means "hardware concurrency" at startup
		EnableVoting:               false,
		ReceiveMinimum:             common.NewBalance(1),
		OnlineWeightMinimum:        common.NewBalance(0),
		BlockProcessorBatchMaxTime: 500 * time.Millisecond,
		OpenCLEnable:               false,
	}
}

// LoadConfig reads and upgrades the config file at path. If the file
// does not exist, DefaultConfig is returned and written to path so the
// data directory is self-describing from the first run.
func LoadConfig(path string) (Config, error) {
	raw, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := DefaultConfig()
		return cfg, SaveConfig(path, cfg)
	}
	if err != nil {
		return Config{}, errors.Wrap(err, "read config file")
	}

	var wire jsonConfig
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Config{}, errors.Wrap(err, "parse config file")
	}
	cfg := wire.Config
	cfg.BlockProcessorBatchMaxTime = time.Duration(wire.BlockProcessorBatchMaxTimeMs) * time.Millisecond

	upgraded := upgradeConfig(&cfg)
	if upgraded {
		configLogger.Info("upgraded config schema", "path", path, "version", cfg.Version)
		if err := SaveConfig(path, cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// upgradeConfig brings cfg up to configVersionCurrent in place,
// reporting whether anything changed.
func upgradeConfig(cfg *Config) bool {
	changed := false
	if cfg.Version < configVersionOpenCL {
		cfg.OpenCLEnable = false
		cfg.OpenCL = OpenCLConfig{}
		cfg.Version = configVersionOpenCL
		changed = true
	}
	return changed
}

// SaveConfig writes cfg to path as indented JSON.
func SaveConfig(path string, cfg Config) error {
	wire := jsonConfig{
		Config:                       cfg,
		BlockProcessorBatchMaxTimeMs: cfg.BlockProcessorBatchMaxTime.Milliseconds(),
	}
	buf, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	return ioutil.WriteFile(path, buf, 0o600)
}

// WatchConfig logs an informational message whenever the config file
// at path changes on disk, so an operator who hand-edits it gets
// feedback without the process needing to poll. It does not reload the
// config automatically — a restart is still required to pick up
// changes, matching how the rest of the node treats config as
// load-once.
func WatchConfig(path string) (stop func(), err error) {
	events := make(chan notify.EventInfo, 1)
	if err := notify.Watch(path, events, notify.Write); err != nil {
		return nil, errors.Wrap(err, "watch config file")
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev := <-events:
				configLogger.Info("config file changed on disk, restart to apply", "path", ev.Path())
			case <-done:
				return
			}
		}
	}()

	return func() {
		notify.Stop(events)
		close(done)
	}, nil
}
