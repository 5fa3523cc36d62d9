// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wtxmgr"
)

// UTXOFromCredit returns the UTXO of an unspent wallet credit. The wallet does
// not know about colored units, so the holdings are supplied by the caller.
func UTXOFromCredit(credit *wtxmgr.Credit, assets ...AssetHolding) UTXO {
	return UTXO{
		OutPoint: credit.OutPoint,
		Value:    credit.Amount,
		PkScript: append([]byte(nil), credit.PkScript...),
		Assets:   append([]AssetHolding(nil), assets...),
	}
}

// UTXOsFromCredits converts unspent wallet credits in order. Holdings are
// looked up by outpoint in assets.
func UTXOsFromCredits(credits []wtxmgr.Credit,
	assets map[wire.OutPoint][]AssetHolding) []UTXO {

	utxos := make([]UTXO, 0, len(credits))
	for i := range credits {
		credit := &credits[i]
		utxos = append(utxos, UTXOFromCredit(
			credit, assets[credit.OutPoint]...,
		))
	}

	return utxos
}
