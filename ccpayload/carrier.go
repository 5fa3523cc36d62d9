// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ccpayload

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

const (
	// carrierKeySize is the size of every key slot in the carrier script.
	// Hashes are dressed up as compressed public keys so the output is a
	// standard bare multisig.
	carrierKeySize = 33

	// keyPrefix is the compressed key marker written before each hash.
	keyPrefix = 0x03

	// torrentPadding is the number of zero bytes between the key marker
	// and the torrent hash.
	torrentPadding = carrierKeySize - 1 - TorrentHashSize
)

var (
	// ErrLeftoverCount is returned when a carrier is requested for a
	// number of leftover chunks other than one or two.
	ErrLeftoverCount = errors.New("unsupported number of leftover chunks")

	// ErrInvalidCarrier is returned when a script is not a hash carrier.
	ErrInvalidCarrier = errors.New("invalid hash carrier script")

	// DefaultReturnKey is the 1-of-n key slot used when the issuer does not
	// supply a key to reclaim the carrier output with.
	DefaultReturnKey = append(
		[]byte{keyPrefix}, bytes.Repeat([]byte{0xff}, 32)...,
	)
)

// CarrierScript returns the 1-of-2 or 1-of-3 bare multisig script that holds
// the leftover hashes of an encoded payload. returnKey occupies the first key
// slot; nil selects DefaultReturnKey.
func CarrierScript(returnKey []byte, leftover [][]byte) ([]byte, error) {
	if returnKey == nil {
		returnKey = DefaultReturnKey
	}

	if len(returnKey) != carrierKeySize {
		return nil, fmt.Errorf("%w: return key must be %d bytes",
			ErrInvalidCarrier, carrierKeySize)
	}

	builder := txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddData(returnKey)

	switch len(leftover) {
	case 1:
		key, err := hashKey(leftover[0])
		if err != nil {
			return nil, err
		}

		builder.AddData(key).AddOp(txscript.OP_2)

	case 2:
		torrentKey, err := hashKey(leftover[0])
		if err != nil {
			return nil, err
		}

		sha2Key, err := hashKey(leftover[1])
		if err != nil {
			return nil, err
		}

		builder.AddData(sha2Key).AddData(torrentKey).
			AddOp(txscript.OP_3)

	default:
		return nil, fmt.Errorf("%w: %d", ErrLeftoverCount,
			len(leftover))
	}

	return builder.AddOp(txscript.OP_CHECKMULTISIG).Script()
}

// hashKey dresses a hash up as a 33 byte key slot.
func hashKey(hash []byte) ([]byte, error) {
	key := make([]byte, 0, carrierKeySize)
	key = append(key, keyPrefix)

	switch len(hash) {
	case SHA2Size:
		return append(key, hash...), nil

	case TorrentHashSize:
		key = append(key, make([]byte, torrentPadding)...)

		return append(key, hash...), nil

	default:
		return nil, fmt.Errorf("%w: %d byte leftover chunk",
			ErrInvalidHash, len(hash))
	}
}

// ParseCarrierScript returns the return key and the hash key slots of a
// carrier script.
func ParseCarrierScript(script []byte) ([]byte, [][]byte, error) {
	var pushes [][]byte

	tokenizer := txscript.MakeScriptTokenizer(0, script)
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_1 {
		return nil, nil, ErrInvalidCarrier
	}

	for tokenizer.Next() {
		data := tokenizer.Data()
		if data == nil {
			break
		}

		if len(data) != carrierKeySize {
			return nil, nil, fmt.Errorf("%w: %d byte key",
				ErrInvalidCarrier, len(data))
		}

		pushes = append(pushes, data)
	}

	if err := tokenizer.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidCarrier, err)
	}

	if len(pushes) < 2 || len(pushes) > 3 {
		return nil, nil, fmt.Errorf("%w: %d keys", ErrInvalidCarrier,
			len(pushes))
	}

	// The key count opcode must match and be the last but one.
	expected := byte(txscript.OP_1 - 1 + len(pushes))
	if tokenizer.Opcode() != expected || !tokenizer.Next() ||
		tokenizer.Opcode() != txscript.OP_CHECKMULTISIG ||
		tokenizer.Next() {

		return nil, nil, ErrInvalidCarrier
	}

	return pushes[0], pushes[1:], nil
}

// ApplyCarrier fills in the hashes a decoded payload keeps in its carrier
// output.
func (t *Transaction) ApplyCarrier(script []byte) error {
	_, keys, err := ParseCarrierScript(script)
	if err != nil {
		return err
	}

	if len(keys) != t.Placement.CarrierChunks() {
		return fmt.Errorf("%w: placement %#x expects %d hashes, "+
			"carrier has %d", ErrInvalidCarrier, byte(t.Placement),
			t.Placement.CarrierChunks(), len(keys))
	}

	switch t.Placement {
	case SHA2InCarrier:
		t.SHA2 = append([]byte(nil), keys[0][1:]...)

	case TorrentInCarrier:
		t.TorrentHash = append(
			[]byte(nil), keys[0][1+torrentPadding:]...,
		)

	case HashesInCarrier:
		t.SHA2 = append([]byte(nil), keys[0][1:]...)
		t.TorrentHash = append(
			[]byte(nil), keys[1][1+torrentPadding:]...,
		)
	}

	return nil
}
