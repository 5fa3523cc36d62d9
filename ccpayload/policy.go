// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ccpayload

import (
	"errors"
	"fmt"
)

// ErrUnknownPolicy is returned when parsing an unknown aggregation policy.
var ErrUnknownPolicy = errors.New("unknown aggregation policy")

// AggregationPolicy governs whether units of an asset held by different
// inputs may be merged into one payment.
type AggregationPolicy uint8

const (
	// Aggregatable assets may be merged freely. It is the zero value so
	// holdings that do not declare a policy are treated as aggregatable.
	Aggregatable AggregationPolicy = iota

	// Hybrid assets may be merged only when issued in the same issuance.
	Hybrid

	// Dispersed assets are never merged.
	Dispersed
)

// String returns the protocol name of the policy.
func (p AggregationPolicy) String() string {
	switch p {
	case Aggregatable:
		return "aggregatable"
	case Hybrid:
		return "hybrid"
	case Dispersed:
		return "dispersed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(p))
	}
}

// ParseAggregationPolicy parses a policy name. The empty string selects
// Aggregatable.
func ParseAggregationPolicy(s string) (AggregationPolicy, error) {
	switch s {
	case "", "aggregatable":
		return Aggregatable, nil
	case "hybrid":
		return Hybrid, nil
	case "dispersed":
		return Dispersed, nil
	default:
		return Aggregatable, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p AggregationPolicy) MarshalText() ([]byte, error) {
	if p > Dispersed {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPolicy, uint8(p))
	}

	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *AggregationPolicy) UnmarshalText(text []byte) error {
	policy, err := ParseAggregationPolicy(string(text))
	if err != nil {
		return err
	}

	*p = policy

	return nil
}
