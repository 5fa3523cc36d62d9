// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ccpayload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/btcsuite/btcd/wire"
)

// Decode parses the data pushed by an OP_RETURN output. Hashes stored in a
// carrier output are not part of data; Placement reports them and
// ApplyCarrier fills them in.
func Decode(data []byte) (*Transaction, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidHeader,
			len(data))
	}

	protocol := uint16(data[0])<<8 | uint16(data[1])
	if protocol != ProtocolID || data[2] != Version {
		return nil, fmt.Errorf("%w: protocol %#04x version %d",
			ErrInvalidHeader, protocol, data[2])
	}

	opcode := data[3]
	txType := Type(opcode >> 4)
	placement := HashPlacement(opcode & 0x0f)
	if txType > TypeBurn || placement < HashesInline ||
		placement > TorrentInCarrier {

		return nil, fmt.Errorf("%w: %#02x", ErrUnknownOpcode, opcode)
	}

	t := New(txType)
	t.Placement = placement

	r := bytes.NewReader(data[headerSize:])

	switch placement {
	case HashesInline:
		t.TorrentHash, t.SHA2 = make([]byte, TorrentHashSize),
			make([]byte, SHA2Size)

		if err := readFull(r, t.TorrentHash, t.SHA2); err != nil {
			return nil, err
		}

	case SHA2InCarrier, TorrentInline:
		t.TorrentHash = make([]byte, TorrentHashSize)
		if err := readFull(r, t.TorrentHash); err != nil {
			return nil, err
		}
	}

	if txType == TypeIssuance {
		amount, err := wire.ReadVarInt(r, pver)
		if err != nil {
			return nil, truncated(err)
		}
		t.Amount = amount
	}

	count, err := wire.ReadVarInt(r, pver)
	if err != nil {
		return nil, truncated(err)
	}

	// Every payment needs at least three bytes, which bounds the
	// allocation by the data actually present.
	if count > uint64(r.Len()/3) {
		return nil, fmt.Errorf("%w: %d payments in %d bytes",
			io.ErrUnexpectedEOF, count, r.Len())
	}

	t.Payments = make([]Payment, 0, count)
	for i := uint64(0); i < count; i++ {
		p, err := readPayment(r)
		if err != nil {
			return nil, err
		}

		if p.Burn && txType != TypeBurn {
			return nil, ErrBurnNotAllowed
		}

		t.Payments = append(t.Payments, p)
	}

	if txType == TypeIssuance {
		flags, err := r.ReadByte()
		if err != nil {
			return nil, truncated(err)
		}

		t.Divisibility = flags >> 5
		t.LockStatus = flags&(1<<4) != 0
		t.AggregationPolicy = AggregationPolicy(flags >> 2 & 0x03)

		if t.AggregationPolicy > Dispersed {
			return nil, fmt.Errorf("%w: %d", ErrUnknownPolicy,
				uint8(t.AggregationPolicy))
		}
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, r.Len())
	}

	return t, nil
}

func readPayment(r *bytes.Reader) (Payment, error) {
	var p Payment

	flags, err := r.ReadByte()
	if err != nil {
		return p, truncated(err)
	}

	p.Range = flags&flagRange != 0
	p.Percent = flags&flagPercent != 0
	p.Burn = flags&flagBurn != 0

	input, err := readIndex(r)
	if err != nil {
		return p, err
	}
	p.Input = input

	if !p.Burn {
		output, err := readIndex(r)
		if err != nil {
			return p, err
		}
		p.Output = output
	}

	p.Amount, err = wire.ReadVarInt(r, pver)
	if err != nil {
		return p, truncated(err)
	}

	return p, nil
}

func readIndex(r io.Reader) (uint32, error) {
	v, err := wire.ReadVarInt(r, pver)
	if err != nil {
		return 0, truncated(err)
	}

	if v > math.MaxUint32 {
		return 0, fmt.Errorf("index %d out of range", v)
	}

	return uint32(v), nil
}

func readFull(r io.Reader, bufs ...[]byte) error {
	for _, b := range bufs {
		if _, err := io.ReadFull(r, b); err != nil {
			return truncated(err)
		}
	}

	return nil
}

// truncated maps a plain EOF to io.ErrUnexpectedEOF since every caller is in
// the middle of a payload.
func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}

	return err
}
