// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package builder

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// draft is the transaction owned by a single build call.
type draft struct {
	tx          *wire.MsgTx
	prevScripts [][]byte
	inputValues []btcutil.Amount
	totalInput  btcutil.Amount
	inputIndex  map[wire.OutPoint]uint32

	// injectPrevOut copies the previous output script into the signature
	// script of every added input.
	injectPrevOut bool
}

func newDraft(injectPrevOut bool) *draft {
	return &draft{
		tx:            wire.NewMsgTx(wire.TxVersion),
		inputIndex:    make(map[wire.OutPoint]uint32),
		injectPrevOut: injectPrevOut,
	}
}

// hasInput returns whether op is already spent by the draft.
func (d *draft) hasInput(op wire.OutPoint) bool {
	_, ok := d.inputIndex[op]
	return ok
}

// addInput spends u unless it is already an input and returns the index of
// its input.
func (d *draft) addInput(u *UTXO) uint32 {
	if index, ok := d.inputIndex[u.OutPoint]; ok {
		return index
	}

	var sigScript []byte
	if d.injectPrevOut {
		sigScript = append([]byte(nil), u.PkScript...)
	}

	outpoint := u.OutPoint
	d.tx.AddTxIn(wire.NewTxIn(&outpoint, sigScript, nil))

	index := uint32(len(d.tx.TxIn) - 1)
	d.inputIndex[u.OutPoint] = index
	d.prevScripts = append(d.prevScripts, u.PkScript)
	d.inputValues = append(d.inputValues, u.Value)
	d.totalInput += u.Value

	log.Tracef("Added input %v (%v) at index %d", u.OutPoint, u.Value,
		index)

	return index
}

// addOutput appends an output and returns its index.
func (d *draft) addOutput(pkScript []byte, value btcutil.Amount) uint32 {
	d.tx.AddTxOut(wire.NewTxOut(int64(value), pkScript))

	return uint32(len(d.tx.TxOut) - 1)
}

// prependOutput inserts an output in front of every other output.
func (d *draft) prependOutput(pkScript []byte, value btcutil.Amount) {
	out := wire.NewTxOut(int64(value), pkScript)
	d.tx.TxOut = append([]*wire.TxOut{out}, d.tx.TxOut...)
}

// totalOutput returns the sum of the output values.
func (d *draft) totalOutput() btcutil.Amount {
	var total btcutil.Amount
	for _, out := range d.tx.TxOut {
		total += btcutil.Amount(out.Value)
	}

	return total
}

// authored returns the draft as an AuthoredTx.
func (d *draft) authored(changeIndex int) *txauthor.AuthoredTx {
	return &txauthor.AuthoredTx{
		Tx:              d.tx.Copy(),
		PrevScripts:     append([][]byte(nil), d.prevScripts...),
		PrevInputValues: append([]btcutil.Amount(nil), d.inputValues...),
		TotalInput:      d.totalInput,
		ChangeIndex:     changeIndex,
	}
}

// serialize returns the hex encoded transaction.
func (d *draft) serialize() (string, error) {
	var buf bytes.Buffer
	buf.Grow(d.tx.SerializeSize())

	if err := d.tx.Serialize(&buf); err != nil {
		return "", err
	}

	log.Debugf("Assembled tx %v: %v", d.tx.TxHash(),
		newLogClosure(func() string {
			return spew.Sdump(d.tx)
		}))

	return hex.EncodeToString(buf.Bytes()), nil
}

// snapshotUTXOs validates the caller's UTXOs and returns private copies of
// them. A UTXO marked as used or listed twice is rejected.
func snapshotUTXOs(utxos []UTXO, finance fn.Option[UTXO]) ([]UTXO,
	fn.Option[UTXO], error) {

	seen := fn.NewSet[wire.OutPoint]()
	check := func(u *UTXO) error {
		if u.Used {
			e := newError(ErrAlreadySpentInput, "utxo "+
				u.OutPoint.String()+" is already spent", nil)
			e.OutPoint = u.OutPoint

			return e
		}

		if u.Value < 0 {
			e := invalidField("utxos", nil)
			e.Desc = "utxo " + u.OutPoint.String() +
				" has a negative value"
			e.OutPoint = u.OutPoint

			return e
		}

		if seen.Contains(u.OutPoint) {
			e := invalidField("utxos", nil)
			e.Desc = "utxo " + u.OutPoint.String() +
				" is listed more than once"
			e.OutPoint = u.OutPoint

			return e
		}
		seen.Add(u.OutPoint)

		return nil
	}

	snapshot := make([]UTXO, 0, len(utxos))
	for i := range utxos {
		if err := check(&utxos[i]); err != nil {
			return nil, fn.None[UTXO](), err
		}

		snapshot = append(snapshot, utxos[i].clone())
	}

	// The designated financing output may also appear in the list. It is
	// only checked against the used flag.
	if finance.IsNone() {
		return snapshot, finance, nil
	}

	u := finance.UnwrapOr(UTXO{})
	if u.Used {
		e := newError(ErrAlreadySpentInput, "finance output "+
			u.OutPoint.String()+" is already spent", nil)
		e.OutPoint = u.OutPoint

		return nil, fn.None[UTXO](), e
	}

	return snapshot, fn.Some(u.clone()), nil
}
