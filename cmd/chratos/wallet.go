// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.

package main

import (
	"encoding/hex"
	"encoding/json"
	"io/ioutil"
	"os"

	"golang.org/x/crypto/ed25519"

	"github.com/chratos-system/chratos-sub002/common"
)

// walletEntry is one representative key as stored on disk: the account
// (public key) alongside its hex-encoded full 64-byte ed25519 private
// key (seed followed by public key). The wallet file
// is a flat JSON array, the simplest format that satisfies
// node.RepresentativeSource without depending on an external keystore.
type walletEntry struct {
	Account    common.Account `json:"account"`
	PrivateKey string         `json:"private_key"`
}

func (e walletEntry) privateKey() (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(e.PrivateKey)
	if err != nil {
		return nil, err
	}
	return ed25519.PrivateKey(raw), nil
}

func loadWallet(path string) ([]walletEntry, error) {
	raw, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []walletEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func saveWallet(path string, entries []walletEntry) error {
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, raw, 0600)
}

// wallet adapts a loaded set of entries into node.RepresentativeSource.
type wallet struct {
	entries []walletEntry
}

func (w *wallet) ForEachRepresentative(fn func(account common.Account, priv ed25519.PrivateKey)) {
	for _, e := range w.entries {
		priv, err := e.privateKey()
		if err != nil {
			continue
		}
		fn(e.Account, priv)
	}
}

// newKeypair generates a fresh ed25519 representative key.
func newKeypair() (common.Account, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return common.Account{}, nil, err
	}
	return common.BytesToAccount(pub), priv, nil
}

// expandSeed reconstructs the full keypair from a hex-encoded ed25519
// seed, the --key_expand operation.
func expandSeed(seedHex string) (common.Account, ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return common.Account{}, nil, err
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return common.BytesToAccount(pub), priv, nil
}
