// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"errors"
	"fmt"

	"github.com/btcsuite/ccbuilder/ccpayload"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// returnKeySize is the size of a compressed public key.
const returnKeySize = 33

// checkCommon validates the request fields shared by every build operation.
func checkCommon(utxos []UTXO, finance fn.Option[UTXO], flags Flags,
	returnKey []byte) error {

	if returnKey != nil && len(returnKey) != returnKeySize {
		return invalidField("returnPubKey", fmt.Errorf("must be a "+
			"%d byte compressed key, got %d bytes", returnKeySize,
			len(returnKey)))
	}

	if !flags.InjectPreviousOutput {
		return nil
	}

	// Injecting the previous output needs the script of every output
	// that may become an input.
	candidates := append([]UTXO(nil), utxos...)
	finance.WhenSome(func(u UTXO) {
		candidates = append(candidates, u)
	})
	for _, u := range candidates {
		if len(u.PkScript) == 0 {
			e := missingField("pkScript")
			e.OutPoint = u.OutPoint

			return e
		}
	}

	return nil
}

// setHashes sets the optional metadata hashes of a payload.
func setHashes(payload *ccpayload.Transaction, torrentHash,
	sha2 []byte) error {

	switch {
	case torrentHash == nil && sha2 == nil:
		return nil

	case torrentHash == nil:
		return invalidField("sha2", errors.New("a sha2 requires a "+
			"torrent hash"))
	}

	if err := payload.SetHash(torrentHash, sha2); err != nil {
		return invalidField("torrentHash", err)
	}

	return nil
}

// financeChangeScript returns the script of the plain change address, or
// fallback when none is set.
func (b *Builder) financeChangeScript(address string,
	fallback []byte) ([]byte, error) {

	if address == "" {
		return fallback, nil
	}

	_, pkScript, err := b.decodeAddress("financeChangeAddress", address)
	if err != nil {
		return nil, err
	}

	return pkScript, nil
}
