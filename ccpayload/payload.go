// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ccpayload encodes and decodes the colored coins metadata carried in
// the OP_RETURN output of an issuance, transfer or burn transaction.
//
// A payload starts with a four byte header: the two byte protocol identifier
// 0x4343 ("CC"), the protocol version and an opcode. The opcode selects the
// transaction type and where the optional metadata hashes live. Hashes that
// do not fit the primary slot are returned as leftover chunks which the caller
// places into a bare multisig carrier output (see CarrierScript).
//
// Layout after the header:
//
//	[torrent hash 20][sha2 32]   inline hashes, as selected by the opcode
//	varint amount                issuance only
//	varint count, payments       every type
//	flags byte                   issuance only: divisibility, lock, policy
//
// A payment is a flags byte (range, percent, burn), a varint input index, a
// varint output index (omitted for burns) and a varint amount.
package ccpayload

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	// ProtocolID is the two byte identifier that opens every payload.
	ProtocolID uint16 = 0x4343

	// Version is the payload version written by this package.
	Version uint8 = 0x02

	// TorrentHashSize is the size of the torrent info hash.
	TorrentHashSize = 20

	// SHA2Size is the size of the sha256 metadata hash.
	SHA2Size = 32

	// DefaultMaxSize is the size of the primary metadata slot, which is
	// the largest data push relayed in a null data output.
	DefaultMaxSize = txscript.MaxDataCarrierSize

	// MaxDivisibility is the largest divisibility that fits the flags.
	MaxDivisibility = 7

	headerSize = 4

	// pver is the protocol version handed to the wire varint helpers.
	pver = 0
)

const (
	flagRange   = 1 << 0
	flagPercent = 1 << 1
	flagBurn    = 1 << 2
)

var (
	// ErrPayloadTooLarge is returned when the payload does not fit the
	// primary slot even after every hash was moved to the leftover.
	ErrPayloadTooLarge = errors.New("payload exceeds the metadata slot")

	// ErrInvalidHash is returned when a metadata hash has the wrong size.
	ErrInvalidHash = errors.New("invalid metadata hash")

	// ErrBurnNotAllowed is returned when a burn payment is added to a
	// payload that is not of the burn type.
	ErrBurnNotAllowed = errors.New("burn payments require a burn payload")

	// ErrInvalidHeader is returned when decoding data that does not start
	// with a known protocol header.
	ErrInvalidHeader = errors.New("invalid payload header")

	// ErrUnknownOpcode is returned when the opcode byte is not recognized.
	ErrUnknownOpcode = errors.New("unknown payload opcode")

	// ErrTrailingData is returned when bytes remain after decoding.
	ErrTrailingData = errors.New("trailing payload data")

	// ErrInvalidDivisibility is returned for a divisibility above
	// MaxDivisibility.
	ErrInvalidDivisibility = errors.New("invalid divisibility")
)

// Type is the kind of colored coins transaction described by a payload.
type Type uint8

const (
	// TypeIssuance creates new units of an asset.
	TypeIssuance Type = iota

	// TypeTransfer moves existing units between outputs.
	TypeTransfer

	// TypeBurn moves existing units and destroys some of them.
	TypeBurn
)

// String returns the protocol name of the type.
func (t Type) String() string {
	switch t {
	case TypeIssuance:
		return "issuance"
	case TypeTransfer:
		return "transfer"
	case TypeBurn:
		return "burn"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// opcodeBase returns the first opcode of the type's range.
func (t Type) opcodeBase() byte {
	return byte(t) << 4
}

// HashPlacement tells where the metadata hashes of a payload are stored.
type HashPlacement uint8

const (
	// HashesInline stores the torrent hash and sha2 in the payload.
	HashesInline HashPlacement = 0x01

	// SHA2InCarrier stores the torrent hash inline and the sha2 in the
	// carrier output.
	SHA2InCarrier HashPlacement = 0x02

	// HashesInCarrier stores both hashes in the carrier output.
	HashesInCarrier HashPlacement = 0x03

	// TorrentInline stores the torrent hash inline and has no sha2.
	TorrentInline HashPlacement = 0x04

	// NoMetadata carries no hashes at all.
	NoMetadata HashPlacement = 0x05

	// TorrentInCarrier stores the torrent hash, the only hash, in the
	// carrier output.
	TorrentInCarrier HashPlacement = 0x06
)

// CarrierChunks returns the number of hashes held by the carrier output.
func (h HashPlacement) CarrierChunks() int {
	switch h {
	case SHA2InCarrier, TorrentInCarrier:
		return 1
	case HashesInCarrier:
		return 2
	default:
		return 0
	}
}

// Payment moves Amount units from the input at index Input to the output at
// index Output, or destroys them when Burn is set.
type Payment struct {
	Input   uint32
	Amount  uint64
	Output  uint32
	Range   bool
	Percent bool
	Burn    bool
}

// Transaction holds the structured fields of a payload.
type Transaction struct {
	Type              Type
	LockStatus        bool
	Amount            uint64
	Divisibility      uint8
	AggregationPolicy AggregationPolicy
	TorrentHash       []byte
	SHA2              []byte
	Payments          []Payment

	// Placement is set by Decode to tell where the hashes were found.
	Placement HashPlacement
}

// New returns an empty payload of the given type. Issuances are locked by
// default.
func New(t Type) *Transaction {
	return &Transaction{
		Type:       t,
		LockStatus: t == TypeIssuance,
	}
}

// SetLockStatus sets whether the issued asset can be reissued.
func (t *Transaction) SetLockStatus(locked bool) {
	t.LockStatus = locked
}

// SetAmount sets the issued amount and its divisibility.
func (t *Transaction) SetAmount(amount uint64, divisibility uint8) error {
	if divisibility > MaxDivisibility {
		return fmt.Errorf("%w: %d", ErrInvalidDivisibility,
			divisibility)
	}

	t.Amount = amount
	t.Divisibility = divisibility

	return nil
}

// SetAggregationPolicy sets the aggregation policy of the issued asset.
func (t *Transaction) SetAggregationPolicy(policy AggregationPolicy) {
	t.AggregationPolicy = policy
}

// SetHash sets the metadata hashes. The sha2 may only be given together with
// a torrent hash.
func (t *Transaction) SetHash(torrentHash, sha2 []byte) error {
	if len(torrentHash) != TorrentHashSize {
		return fmt.Errorf("%w: torrent hash must be %d bytes, got %d",
			ErrInvalidHash, TorrentHashSize, len(torrentHash))
	}

	if sha2 != nil && len(sha2) != SHA2Size {
		return fmt.Errorf("%w: sha2 must be %d bytes, got %d",
			ErrInvalidHash, SHA2Size, len(sha2))
	}

	t.TorrentHash = append([]byte(nil), torrentHash...)
	if sha2 != nil {
		t.SHA2 = append([]byte(nil), sha2...)
	}

	return nil
}

// AddPayment records a payment of amount units from input to output.
func (t *Transaction) AddPayment(input uint32, amount uint64, output uint32) {
	t.Payments = append(t.Payments, Payment{
		Input:  input,
		Amount: amount,
		Output: output,
	})
}

// AddBurn records the destruction of amount units taken from input.
func (t *Transaction) AddBurn(input uint32, amount uint64) {
	t.Payments = append(t.Payments, Payment{
		Input:  input,
		Amount: amount,
		Burn:   true,
	})
}

// ShiftOutputs moves every payment one output to the right. It is used when
// an output is inserted in front of all recorded outputs.
func (t *Transaction) ShiftOutputs() {
	for i := range t.Payments {
		if t.Payments[i].Burn {
			continue
		}

		t.Payments[i].Output++
	}
}

// Encoded is the result of encoding a payload.
type Encoded struct {
	// CodeBuffer is the data pushed by the OP_RETURN output.
	CodeBuffer []byte

	// Leftover holds the hashes that did not fit CodeBuffer, torrent hash
	// first.
	Leftover [][]byte

	// Placement is the hash placement encoded in the opcode.
	Placement HashPlacement
}

// Encode serializes the payload into at most maxSize bytes, moving hashes to
// the leftover as needed. A maxSize of zero selects DefaultMaxSize.
func (t *Transaction) Encode(maxSize int) (*Encoded, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	for _, p := range t.Payments {
		if p.Burn && t.Type != TypeBurn {
			return nil, ErrBurnNotAllowed
		}
	}

	body, err := t.encodeBody()
	if err != nil {
		return nil, err
	}

	// Try the placements from the most to the least inline one and keep
	// the first that fits.
	for _, placement := range t.placements() {
		inline, leftover := t.splitHashes(placement)

		size := headerSize + len(inline) + len(body)
		if size > maxSize {
			log.Tracef("Payload with placement %#x needs %d "+
				"bytes, limit %d", byte(placement), size,
				maxSize)

			continue
		}

		var buf bytes.Buffer
		buf.Grow(size)
		buf.WriteByte(byte(ProtocolID >> 8))
		buf.WriteByte(byte(ProtocolID & 0xff))
		buf.WriteByte(Version)
		buf.WriteByte(t.Type.opcodeBase() | byte(placement))
		buf.Write(inline)
		buf.Write(body)

		return &Encoded{
			CodeBuffer: buf.Bytes(),
			Leftover:   leftover,
			Placement:  placement,
		}, nil
	}

	return nil, fmt.Errorf("%w: %d payments, limit %d bytes",
		ErrPayloadTooLarge, len(t.Payments), maxSize)
}

// placements returns the candidate hash placements in preference order.
func (t *Transaction) placements() []HashPlacement {
	switch {
	case t.TorrentHash != nil && t.SHA2 != nil:
		return []HashPlacement{
			HashesInline, SHA2InCarrier, HashesInCarrier,
		}

	case t.TorrentHash != nil:
		return []HashPlacement{TorrentInline, TorrentInCarrier}

	default:
		return []HashPlacement{NoMetadata}
	}
}

// splitHashes returns the inline hash bytes and the leftover chunks for the
// given placement.
func (t *Transaction) splitHashes(p HashPlacement) ([]byte, [][]byte) {
	switch p {
	case HashesInline:
		inline := make([]byte, 0, TorrentHashSize+SHA2Size)
		inline = append(inline, t.TorrentHash...)

		return append(inline, t.SHA2...), nil

	case SHA2InCarrier:
		return t.TorrentHash, [][]byte{t.SHA2}

	case HashesInCarrier:
		return nil, [][]byte{t.TorrentHash, t.SHA2}

	case TorrentInline:
		return t.TorrentHash, nil

	case TorrentInCarrier:
		return nil, [][]byte{t.TorrentHash}

	default:
		return nil, nil
	}
}

// encodeBody serializes everything that follows the inline hashes.
func (t *Transaction) encodeBody() ([]byte, error) {
	var buf bytes.Buffer

	if t.Type == TypeIssuance {
		if t.Divisibility > MaxDivisibility {
			return nil, fmt.Errorf("%w: %d", ErrInvalidDivisibility,
				t.Divisibility)
		}

		err := wire.WriteVarInt(&buf, pver, t.Amount)
		if err != nil {
			return nil, err
		}
	}

	err := wire.WriteVarInt(&buf, pver, uint64(len(t.Payments)))
	if err != nil {
		return nil, err
	}

	for _, p := range t.Payments {
		if err := writePayment(&buf, p); err != nil {
			return nil, err
		}
	}

	if t.Type == TypeIssuance {
		buf.WriteByte(t.flags())
	}

	return buf.Bytes(), nil
}

// flags packs divisibility, lock status and aggregation policy into one byte.
func (t *Transaction) flags() byte {
	var lock byte
	if t.LockStatus {
		lock = 1
	}

	return t.Divisibility<<5 | lock<<4 | byte(t.AggregationPolicy)<<2
}

func writePayment(w io.Writer, p Payment) error {
	var flags byte
	if p.Range {
		flags |= flagRange
	}
	if p.Percent {
		flags |= flagPercent
	}
	if p.Burn {
		flags |= flagBurn
	}

	if _, err := w.Write([]byte{flags}); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, pver, uint64(p.Input)); err != nil {
		return err
	}

	if !p.Burn {
		err := wire.WriteVarInt(w, pver, uint64(p.Output))
		if err != nil {
			return err
		}
	}

	return wire.WriteVarInt(w, pver, p.Amount)
}
