// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

var (
	// errBadThreshold is wrapped when a multisig threshold is outside
	// 1..len(keys).
	errBadThreshold = errors.New("invalid multisig threshold")

	// errTooManyKeys is wrapped when a multisig destination has more keys
	// than a multisig script allows.
	errTooManyKeys = errors.New("too many multisig keys")
)

// multisigDestination is a pay-to-script-hash destination wrapping an m-of-n
// multisig redeem script.
type multisigDestination struct {
	address      *btcutil.AddressScriptHash
	redeemScript []byte
	pkScript     []byte
}

// newMultisigDestination builds the m-of-len(pubKeys) redeem script over the
// keys, in the given order, and its address on the given network.
func newMultisigDestination(pubKeys [][]byte, m int,
	params *chaincfg.Params) (*multisigDestination, error) {

	if len(pubKeys) > txscript.MaxPubKeysPerMultiSig {
		return nil, fmt.Errorf("%w: %d, max %d", errTooManyKeys,
			len(pubKeys), txscript.MaxPubKeysPerMultiSig)
	}

	if m < 1 || m > len(pubKeys) {
		return nil, fmt.Errorf("%w: %d of %d", errBadThreshold, m,
			len(pubKeys))
	}

	keys := make([]*btcutil.AddressPubKey, 0, len(pubKeys))
	for i, serialized := range pubKeys {
		if _, err := btcec.ParsePubKey(serialized); err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}

		key, err := btcutil.NewAddressPubKey(serialized, params)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}

		keys = append(keys, key)
	}

	redeemScript, err := txscript.MultiSigScript(keys, m)
	if err != nil {
		return nil, err
	}

	// The redeem script is pushed when spending, so it must fit a single
	// script element.
	if len(redeemScript) > txscript.MaxScriptElementSize {
		return nil, fmt.Errorf("%w: redeem script of %d bytes",
			errTooManyKeys, len(redeemScript))
	}

	// This function will never error as it always hashes the script to
	// the correct length.
	address, err := btcutil.NewAddressScriptHash(redeemScript, params)
	if err != nil {
		return nil, err
	}

	pkScript, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, err
	}

	return &multisigDestination{
		address:      address,
		redeemScript: redeemScript,
		pkScript:     pkScript,
	}, nil
}
