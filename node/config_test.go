// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package node

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chratos-system/chratos-sub002/common"
)

func tempConfigPath(t *testing.T) (string, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "node-config-test")
	require.NoError(t, err)
	return filepath.Join(dir, "config.json"), func() { os.RemoveAll(dir) }
}

func TestLoadConfigWritesDefaultsWhenMissing(t *testing.T) {
	path, cleanup := tempConfigPath(t)
	defer cleanup()

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, configVersionCurrent, cfg.Version)
	require.Equal(t, uint16(7075), cfg.PeeringPort)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestOpenCLConfigRoundTrip mirrors the opencl_config serialize/
// deserialize scenario: platform=1, device=2, threads=3 survive a
// save/load cycle unchanged.
func TestOpenCLConfigRoundTrip(t *testing.T) {
	path, cleanup := tempConfigPath(t)
	defer cleanup()

	cfg := DefaultConfig()
	cfg.OpenCLEnable = true
	cfg.OpenCL = OpenCLConfig{Platform: 1, Device: 2, Threads: 3}
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.True(t, loaded.OpenCLEnable)
	require.Equal(t, uint(1), loaded.OpenCL.Platform)
	require.Equal(t, uint(2), loaded.OpenCL.Device)
	require.Equal(t, uint(3), loaded.OpenCL.Threads)
}

// TestUpgradeFromVersionZeroAddsOpenCLFields writes a pre-opencl config
// record (version 0, no opencl fields at all) and checks that loading
// it upgrades the version and defaults opencl to disabled rather than
// failing to parse.
func TestUpgradeFromVersionZeroAddsOpenCLFields(t *testing.T) {
	path, cleanup := tempConfigPath(t)
	defer cleanup()

	const legacy = `{
		"version": 0,
		"peering_port": 7075,
		"online_weight_quorum": 60,
		"io_threads": 4,
		"work_threads": 0,
		"enable_voting": false,
		"receive_minimum": "01",
		"online_weight_minimum": "00"
	}`
	require.NoError(t, ioutil.WriteFile(path, []byte(legacy), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, configVersionOpenCL, cfg.Version)
	require.False(t, cfg.OpenCLEnable)
	require.Equal(t, OpenCLConfig{}, cfg.OpenCL)

	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, configVersionOpenCL, reloaded.Version)
}

func TestConfigPreservesAccountAndHashFields(t *testing.T) {
	path, cleanup := tempConfigPath(t)
	defer cleanup()

	cfg := DefaultConfig()
	cfg.EpochBlockLink = common.HexToHash("0x01")
	cfg.EpochBlockSigner = common.HexToAccount("0x02")
	cfg.PreconfiguredRepresentatives = []common.Account{common.HexToAccount("0x03")}
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg.EpochBlockLink, loaded.EpochBlockLink)
	require.Equal(t, cfg.EpochBlockSigner, loaded.EpochBlockSigner)
	require.Equal(t, cfg.PreconfiguredRepresentatives, loaded.PreconfiguredRepresentatives)
}
