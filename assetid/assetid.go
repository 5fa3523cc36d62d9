// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package assetid derives colored coins asset identifiers.
//
// An identifier commits to the first input of the issuance. Locked assets,
// which can never be reissued, commit to the outpoint itself. Unlocked assets
// commit to the script of the spent output so that every later issuance from
// the same script produces more units of the same asset. The identifier also
// carries the divisibility and, through its version prefix, the lock status
// and aggregation policy.
package assetid

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/ccbuilder/ccpayload"
)

var (
	// ErrMissingScript is returned when an unlocked asset is derived
	// without the script of the first input's previous output.
	ErrMissingScript = errors.New("unlocked asset requires the previous " +
		"output script")

	// ErrInvalidID is returned when parsing a malformed identifier.
	ErrInvalidID = errors.New("invalid asset id")
)

// prefix is the two byte version of an identifier for a lock status and
// aggregation policy.
type prefix [2]byte

var (
	lockedPrefixes = map[ccpayload.AggregationPolicy]prefix{
		ccpayload.Aggregatable: {0x2e, 0x37},
		ccpayload.Hybrid:       {0x2e, 0x6b},
		ccpayload.Dispersed:    {0x2e, 0x4e},
	}

	unlockedPrefixes = map[ccpayload.AggregationPolicy]prefix{
		ccpayload.Aggregatable: {0x20, 0xce},
		ccpayload.Hybrid:       {0x21, 0x02},
		ccpayload.Dispersed:    {0x20, 0xe4},
	}
)

// payloadSize is the prefix, the hash160 and the divisibility byte.
const payloadSize = 2 + 20 + 1

// Params are the issuance fields an identifier is derived from.
type Params struct {
	// Locked is the lock status of the issuance, the inverse of its
	// reissuable flag.
	Locked bool

	// OutPoint is the first input of the issuance.
	OutPoint wire.OutPoint

	// PkScript is the script of the output spent by the first input. It
	// is required for unlocked assets.
	PkScript []byte

	// Divisibility is the number of decimal places of the asset.
	Divisibility uint8

	// AggregationPolicy is the aggregation policy of the asset.
	AggregationPolicy ccpayload.AggregationPolicy
}

// Derive returns the identifier of the asset described by p.
func Derive(p Params) (string, error) {
	if p.Divisibility > ccpayload.MaxDivisibility {
		return "", fmt.Errorf("%w: %d", ccpayload.ErrInvalidDivisibility,
			p.Divisibility)
	}

	prefixes := unlockedPrefixes
	if p.Locked {
		prefixes = lockedPrefixes
	}

	version, ok := prefixes[p.AggregationPolicy]
	if !ok {
		return "", fmt.Errorf("%w: %d", ccpayload.ErrUnknownPolicy,
			uint8(p.AggregationPolicy))
	}

	var commitment []byte
	if p.Locked {
		commitment = []byte(fmt.Sprintf("%s:%d", p.OutPoint.Hash,
			p.OutPoint.Index))
	} else {
		if len(p.PkScript) == 0 {
			return "", ErrMissingScript
		}

		commitment = p.PkScript
	}

	payload := make([]byte, 0, payloadSize)
	payload = append(payload, version[:]...)
	payload = append(payload, btcutil.Hash160(commitment)...)
	payload = append(payload, p.Divisibility)

	return base58.CheckEncode(payload[1:], payload[0]), nil
}

// Info holds the fields that can be recovered from an identifier.
type Info struct {
	Locked            bool
	AggregationPolicy ccpayload.AggregationPolicy
	Divisibility      uint8
	Hash              [20]byte
}

// Parse decodes an identifier produced by Derive.
func Parse(id string) (*Info, error) {
	body, first, err := base58.CheckDecode(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}

	if len(body) != payloadSize-1 {
		return nil, fmt.Errorf("%w: %d byte payload", ErrInvalidID,
			len(body)+1)
	}

	version := prefix{first, body[0]}

	info := &Info{Divisibility: body[len(body)-1]}
	copy(info.Hash[:], body[1:21])

	if info.Divisibility > ccpayload.MaxDivisibility {
		return nil, fmt.Errorf("%w: divisibility %d", ErrInvalidID,
			info.Divisibility)
	}

	if policy, ok := lookupPrefix(lockedPrefixes, version); ok {
		info.Locked = true
		info.AggregationPolicy = policy

		return info, nil
	}

	if policy, ok := lookupPrefix(unlockedPrefixes, version); ok {
		info.AggregationPolicy = policy

		return info, nil
	}

	return nil, fmt.Errorf("%w: unknown prefix %x", ErrInvalidID,
		version[:])
}

func lookupPrefix(prefixes map[ccpayload.AggregationPolicy]prefix,
	version prefix) (ccpayload.AggregationPolicy, bool) {

	for policy, p := range prefixes {
		if p == version {
			return policy, true
		}
	}

	return 0, false
}
