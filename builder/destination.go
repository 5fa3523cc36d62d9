// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// resolvedDestination is a Destination turned into what the assembler needs.
type resolvedDestination struct {
	burn bool

	// address is the encoded address, used as the deduplication key.
	address string

	pkScript []byte

	// redeemScript is set for multisig destinations.
	redeemScript []byte
}

// decodeAddress decodes an address of the configured network and returns it
// with its output script.
func (b *Builder) decodeAddress(field, encoded string) (btcutil.Address,
	[]byte, error) {

	if encoded == "" {
		return nil, nil, missingField(field)
	}

	addr, err := btcutil.DecodeAddress(encoded, b.params)
	if err != nil {
		return nil, nil, invalidField(field, err)
	}

	if !addr.IsForNet(b.params) {
		return nil, nil, invalidField(field, fmt.Errorf("address %v "+
			"is not for %v", encoded, b.params.Name))
	}

	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, nil, invalidField(field, err)
	}

	return addr, pkScript, nil
}

// resolveDestination resolves a destination once, before any allocation.
// Burns are only accepted when allowBurn is set.
func (b *Builder) resolveDestination(field string, dest Destination,
	allowBurn bool) (*resolvedDestination, error) {

	switch d := dest.(type) {
	case PlainAddress:
		addr, pkScript, err := b.decodeAddress(field, d.Address)
		if err != nil {
			return nil, err
		}

		return &resolvedDestination{
			address:  addr.EncodeAddress(),
			pkScript: pkScript,
		}, nil

	case MultisigSpec:
		multisig, err := newMultisigDestination(
			d.PubKeys, d.Threshold, b.params,
		)
		if err != nil {
			return nil, invalidField(field, err)
		}

		return &resolvedDestination{
			address:      multisig.address.EncodeAddress(),
			pkScript:     multisig.pkScript,
			redeemScript: multisig.redeemScript,
		}, nil

	case BurnSink:
		if !allowBurn {
			return nil, invalidField(field, fmt.Errorf("burn is " +
				"not allowed here"))
		}

		return &resolvedDestination{burn: true}, nil

	case nil:
		return nil, missingField(field)

	default:
		return nil, invalidField(field, fmt.Errorf("unsupported "+
			"destination %T", d))
	}
}
