// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package builder assembles unsigned colored coins issuance, transfer and
// burn transactions from a caller supplied set of UTXOs.
//
// A Builder is created once from an immutable Config. Every build call is a
// pure function of the request and that configuration: it never signs, never
// touches the network, keeps no state between calls and never writes to the
// caller's UTXOs. A Builder is therefore safe for concurrent use.
package builder

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/ccbuilder/pkg/btcunit"
)

const (
	// DefaultNetwork is the network used when Config.Network is empty.
	DefaultNetwork = "mainnet"

	// DefaultMinDustValue is the default value of every plain output the
	// builder creates for a destination or as change.
	DefaultMinDustValue btcutil.Amount = 600

	// DefaultMinDustValueMultisig is the default amount reserved for a
	// multisig metadata carrier when Config.WriteMultisig is set.
	DefaultMinDustValueMultisig btcutil.Amount = 700
)

// networks maps the accepted network names to their parameters.
var networks = map[string]*chaincfg.Params{
	"mainnet":  &chaincfg.MainNetParams,
	"testnet":  &chaincfg.TestNet3Params,
	"testnet3": &chaincfg.TestNet3Params,
	"regtest":  &chaincfg.RegressionNetParams,
	"simnet":   &chaincfg.SimNetParams,
	"signet":   &chaincfg.SigNetParams,
}

// Config holds the settings of a Builder. It is copied by New and cannot be
// changed afterwards.
type Config struct {
	// Network selects the chain parameters used to decode and encode
	// addresses. It defaults to DefaultNetwork.
	Network string

	// DefaultFee is the flat fee used when a request carries none. It is
	// mutually exclusive with DefaultFeeRate.
	DefaultFee btcutil.Amount

	// DefaultFeeRate derives the fee from the estimated size of the
	// transaction when a request carries none. It is mutually exclusive
	// with DefaultFee.
	DefaultFeeRate btcunit.SatPerKVByte

	// MinDustValue is the value of every destination and change output.
	// It defaults to DefaultMinDustValue.
	MinDustValue btcutil.Amount

	// MinDustValueMultisig is reserved in the cost of an issuance with
	// metadata when WriteMultisig is set. It defaults to
	// DefaultMinDustValueMultisig.
	MinDustValueMultisig btcutil.Amount

	// WriteMultisig reserves room for a multisig metadata carrier when a
	// request has metadata.
	WriteMultisig bool

	// ReturnDraft attaches the assembled transaction and its previous
	// output data to every Result.
	ReturnDraft bool

	// MaxPayloadSize is the size of the primary metadata slot. It defaults
	// to, and cannot exceed, txscript.MaxDataCarrierSize.
	MaxPayloadSize int
}

// Builder builds unsigned colored coins transactions.
type Builder struct {
	cfg    Config
	params *chaincfg.Params
}

// New validates cfg, fills in its defaults and returns a Builder.
func New(cfg Config) (*Builder, error) {
	if cfg.Network == "" {
		cfg.Network = DefaultNetwork
	}

	params, ok := networks[cfg.Network]
	if !ok {
		return nil, newError(ErrInvalidConfiguration,
			fmt.Sprintf("unknown network %q", cfg.Network), nil)
	}

	if cfg.DefaultFee < 0 ||
		cfg.DefaultFeeRate.LessThan(btcunit.ZeroSatPerKVByte) {

		return nil, newError(ErrInvalidConfiguration,
			"default fee cannot be negative", nil)
	}

	if cfg.DefaultFee != 0 && !cfg.DefaultFeeRate.IsZero() {
		return nil, newError(ErrInvalidConfiguration, "can have at "+
			"most one of default fee and default fee rate", nil)
	}

	if cfg.MinDustValue < 0 || cfg.MinDustValueMultisig < 0 {
		return nil, newError(ErrInvalidConfiguration,
			"dust values cannot be negative", nil)
	}

	if cfg.MinDustValue == 0 {
		cfg.MinDustValue = DefaultMinDustValue
	}
	if cfg.MinDustValueMultisig == 0 {
		cfg.MinDustValueMultisig = DefaultMinDustValueMultisig
	}

	switch {
	case cfg.MaxPayloadSize == 0:
		cfg.MaxPayloadSize = txscript.MaxDataCarrierSize

	case cfg.MaxPayloadSize < 0 ||
		cfg.MaxPayloadSize > txscript.MaxDataCarrierSize:

		return nil, newError(ErrInvalidConfiguration, fmt.Sprintf(
			"max payload size must be within 1..%d, got %d",
			txscript.MaxDataCarrierSize, cfg.MaxPayloadSize), nil)
	}

	log.Debugf("Created builder for %v: fee=%v, fee rate=%v, dust=%v, "+
		"multisig dust=%v", params.Name, cfg.DefaultFee,
		cfg.DefaultFeeRate, cfg.MinDustValue, cfg.MinDustValueMultisig)

	return &Builder{
		cfg:    cfg,
		params: params,
	}, nil
}

// Config returns a copy of the builder's configuration with its defaults
// filled in.
func (b *Builder) Config() Config {
	return b.cfg
}

// ChainParams returns the parameters of the configured network.
func (b *Builder) ChainParams() *chaincfg.Params {
	return b.params
}

// relayFeePerKb returns the rate used to size outputs whose script differs
// from a standard payment script.
func (b *Builder) relayFeePerKb() btcunit.SatPerKVByte {
	if b.cfg.DefaultFeeRate.IsZero() {
		return btcunit.NewSatPerKVByte(txrules.DefaultRelayFeePerKb)
	}

	return b.cfg.DefaultFeeRate
}
