// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package btcunit provides the fee rate unit used when building colored coin
// transactions in fee-per-kilobyte mode.
package btcunit

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

const (
	// kilo is a generic multiplier for kilo units.
	kilo = 1000

	// floatStringPrecision is the number of decimal places used when the
	// rate is printed as sat/vb.
	floatStringPrecision = 3
)

// ZeroSatPerKVByte is a fee rate of 0 sat/kvb.
var ZeroSatPerKVByte = NewSatPerKVByte(0)

// SatPerKVByte represents a fee rate in satoshis per kilo-virtual-byte. The
// transactions built by this module spend legacy outputs only, so one virtual
// byte is one serialized byte.
type SatPerKVByte struct {
	satsPerKVB btcutil.Amount
}

// NewSatPerKVByte creates a new fee rate in sat/kvb.
func NewSatPerKVByte(rate btcutil.Amount) SatPerKVByte {
	return SatPerKVByte{satsPerKVB: rate}
}

// ParseSatPerKVByte parses a decimal sat/kvb rate such as "1000".
func ParseSatPerKVByte(s string) (SatPerKVByte, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "sat/kvb")

	rate, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return ZeroSatPerKVByte, fmt.Errorf("invalid fee rate %q: %w",
			s, err)
	}

	if rate < 0 {
		return ZeroSatPerKVByte, fmt.Errorf("negative fee rate %d", rate)
	}

	return NewSatPerKVByte(btcutil.Amount(rate)), nil
}

// Val returns the rate as an amount of satoshis per 1000 bytes.
func (s SatPerKVByte) Val() btcutil.Amount {
	return s.satsPerKVB
}

// IsZero returns true if the rate is zero.
func (s SatPerKVByte) IsZero() bool {
	return s.satsPerKVB == 0
}

// FeeForSize calculates the fee for a transaction of the given serialized
// size in bytes. The result is truncated.
func (s SatPerKVByte) FeeForSize(size int) btcutil.Amount {
	return s.satsPerKVB * btcutil.Amount(size) / kilo
}

// FeeForSizeRoundUp calculates the fee for a transaction of the given
// serialized size in bytes, rounding up to the next whole satoshi.
func (s SatPerKVByte) FeeForSizeRoundUp(size int) btcutil.Amount {
	// The ceiling division (n + d - 1) / d ensures a fractional satoshi is
	// never dropped.
	return (s.satsPerKVB*btcutil.Amount(size) + kilo - 1) / kilo
}

// String returns a human-readable string of the fee rate.
func (s SatPerKVByte) String() string {
	return fmt.Sprintf("%d sat/kvb", int64(s.satsPerKVB))
}

// SatPerVByteString returns the rate expressed in sat/vb with three decimal
// places so low rates are not displayed as zero.
func (s SatPerKVByte) SatPerVByteString() string {
	rate := big.NewRat(int64(s.satsPerKVB), kilo)

	return rate.FloatString(floatStringPrecision) + " sat/vb"
}

// Equal returns true if the fee rate is equal to the other fee rate.
func (s SatPerKVByte) Equal(other SatPerKVByte) bool {
	return s.satsPerKVB == other.satsPerKVB
}

// GreaterThan returns true if the fee rate is greater than the other fee rate.
func (s SatPerKVByte) GreaterThan(other SatPerKVByte) bool {
	return s.satsPerKVB > other.satsPerKVB
}

// LessThan returns true if the fee rate is less than the other fee rate.
func (s SatPerKVByte) LessThan(other SatPerKVByte) bool {
	return s.satsPerKVB < other.satsPerKVB
}
