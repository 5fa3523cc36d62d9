// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Packet returns the unsigned transaction of the result as a PSBT for an
// external signer.
//
// Injected previous output scripts are dropped from the inputs since a PSBT
// carries no signature scripts. Inputs spending witness programs get their
// previous output as witness UTXO and outputs paying to a multisig
// destination get their redeem script.
func (r *Result) Packet() (*psbt.Packet, error) {
	tx := r.tx.Copy()
	for _, in := range tx.TxIn {
		in.SignatureScript = nil
	}

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}

	for i := range packet.Inputs {
		prevScript := r.prevScripts[i]
		if !txscript.IsWitnessProgram(prevScript) {
			continue
		}

		in := &packet.Inputs[i]
		in.WitnessUtxo = &wire.TxOut{
			Value:    int64(r.inputValues[i]),
			PkScript: prevScript,
		}
		in.SighashType = txscript.SigHashAll
	}

	for _, multisig := range r.MultisigOutputs {
		packet.Outputs[multisig.Index].RedeemScript = multisig.RedeemScript
	}

	if err := packet.SanityCheck(); err != nil {
		return nil, err
	}

	return packet, nil
}

// PacketBase64 returns the base64 encoding of Packet.
func (r *Result) PacketBase64() (string, error) {
	packet, err := r.Packet()
	if err != nil {
		return "", err
	}

	return packet.B64Encode()
}
