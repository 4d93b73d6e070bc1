/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package slot provides the wrap-around-aware slot identifier used by the scheduler.
package slot

import "fmt"

const (
	// FramesPerHyperFrame is the SFN range (0..1023).
	FramesPerHyperFrame = 1024

	// SubframesPerFrame is fixed at 10 (1 ms subframes).
	SubframesPerFrame = 10

	// MaxNumerology is the highest supported subcarrier spacing index (240 kHz).
	MaxNumerology = 4
)

// SlotsPerSubframe returns 2^numerology.
func SlotsPerSubframe(numerology uint8) uint32 {
	return 1 << numerology
}

// SlotsPerFrame returns the number of slots in one 10 ms frame.
func SlotsPerFrame(numerology uint8) uint32 {
	return SubframesPerFrame * SlotsPerSubframe(numerology)
}

// Modulus returns the number of distinct slots before the counter wraps.
func Modulus(numerology uint8) uint32 {
	return FramesPerHyperFrame * SlotsPerFrame(numerology)
}

// Point identifies one slot. The counter wraps at Modulus(numerology), so
// ordering is defined on the shortest signed distance between two points.
type Point struct {
	numerology uint8
	count      uint32
	valid      bool
}

// NewPoint builds a slot point from a raw counter value.
func NewPoint(numerology uint8, count uint32) Point {
	if numerology > MaxNumerology {
		panic(fmt.Sprintf("slot: invalid numerology %d", numerology))
	}
	return Point{numerology: numerology, count: count % Modulus(numerology), valid: true}
}

// FromSFN builds a slot point from a system frame number and slot index within the frame.
func FromSFN(numerology uint8, sfn, slotIndex uint32) Point {
	if slotIndex >= SlotsPerFrame(numerology) {
		panic(fmt.Sprintf("slot: slot index %d out of range for numerology %d", slotIndex, numerology))
	}
	return NewPoint(numerology, (sfn%FramesPerHyperFrame)*SlotsPerFrame(numerology)+slotIndex)
}

// Valid reports whether the point was constructed (the zero value is invalid).
func (p Point) Valid() bool { return p.valid }

// Numerology returns the subcarrier spacing index.
func (p Point) Numerology() uint8 { return p.numerology }

// Count returns the raw counter in [0, Modulus).
func (p Point) Count() uint32 { return p.count }

// SFN returns the system frame number.
func (p Point) SFN() uint32 { return p.count / SlotsPerFrame(p.numerology) }

// SlotIndex returns the slot index within the frame.
func (p Point) SlotIndex() uint32 { return p.count % SlotsPerFrame(p.numerology) }

// Add returns the point n slots later (n may be negative).
func (p Point) Add(n int) Point {
	m := int64(Modulus(p.numerology))
	c := (int64(p.count) + int64(n)) % m
	if c < 0 {
		c += m
	}
	return Point{numerology: p.numerology, count: uint32(c), valid: true}
}

// Sub returns the signed distance p - other in slots, in [-Modulus/2, Modulus/2).
func (p Point) Sub(other Point) int {
	p.mustMatch(other)
	m := int64(Modulus(p.numerology))
	d := (int64(p.count) - int64(other.count)) % m
	if d < 0 {
		d += m
	}
	if d >= m/2 {
		d -= m
	}
	return int(d)
}

// Equal reports whether both points name the same slot.
func (p Point) Equal(other Point) bool {
	return p.numerology == other.numerology && p.count == other.count
}

// Before reports whether p is strictly earlier than other.
func (p Point) Before(other Point) bool { return p.Sub(other) < 0 }

// After reports whether p is strictly later than other.
func (p Point) After(other Point) bool { return p.Sub(other) > 0 }

// String formats the point as "sfn.slot".
func (p Point) String() string {
	if !p.valid {
		return "invalid"
	}
	return fmt.Sprintf("%d.%d", p.SFN(), p.SlotIndex())
}

func (p Point) mustMatch(other Point) {
	if p.numerology != other.numerology {
		panic(fmt.Sprintf("slot: numerology mismatch %d vs %d", p.numerology, other.numerology))
	}
}
