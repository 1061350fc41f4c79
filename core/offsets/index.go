// Package offsets maps text positions between UTF-16 code units and Unicode
// code points.
//
// Annotation spans produced on a UTF-16 platform count code units, while
// consumers that address text by code point count each supplementary
// character once. An Index built from a text answers both directions in
// constant time after a single linear scan.
//
// Both tables carry one sentinel entry past the last character so that the
// end-of-text position, a legal half-open span boundary, can be converted.
package offsets

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/FocuswithJustin/bdoc/core/errors"
)

// Index is an immutable two-way offset table for one text.
// It is safe for concurrent use once built.
type Index struct {
	unitToPoint []int64
	pointToUnit []int64
}

// New builds an Index for a UTF-8 Go string, scanning its UTF-16 encoding.
func New(text string) *Index {
	return FromUTF16(utf16.Encode([]rune(text)))
}

// FromUTF16 builds an Index directly from UTF-16 code units. Unpaired
// surrogates are kept as they are, which matters for text that originated on
// a UTF-16 platform and was never validated.
func FromUTF16(units []uint16) *Index {
	unitToPoint := make([]int64, 0, len(units)+1)
	pointToUnit := make([]int64, 0, len(units)+1)

	var p int64
	for i, u := range units {
		unitToPoint = append(unitToPoint, p)
		switch {
		case isHighSurrogate(u):
			// The pair is addressed through its first unit; p advances on the low half.
			pointToUnit = append(pointToUnit, int64(i))
		case isLowSurrogate(u):
			p++
		default:
			pointToUnit = append(pointToUnit, int64(i))
			p++
		}
	}

	unitToPoint = append(unitToPoint, p)
	pointToUnit = append(pointToUnit, int64(len(units)))

	return &Index{
		unitToPoint: unitToPoint,
		pointToUnit: pointToUnit,
	}
}

func isHighSurrogate(u uint16) bool {
	return u >= 0xD800 && u <= 0xDBFF
}

func isLowSurrogate(u uint16) bool {
	return u >= 0xDC00 && u <= 0xDFFF
}

// ToCodePoint converts a code-unit offset to a code-point offset.
// Offsets in [0, CodeUnitLen()] are valid.
func (ix *Index) ToCodePoint(off int64) (int64, error) {
	if off < 0 || off >= int64(len(ix.unitToPoint)) {
		return 0, &errors.RangeError{
			Convention: "code unit",
			Offset:     off,
			Length:     ix.CodeUnitLen(),
		}
	}
	return ix.unitToPoint[off], nil
}

// ToCodeUnit converts a code-point offset to a code-unit offset.
// Offsets in [0, CodePointLen()] are valid.
func (ix *Index) ToCodeUnit(off int64) (int64, error) {
	if off < 0 || off >= int64(len(ix.pointToUnit)) {
		return 0, &errors.RangeError{
			Convention: "code point",
			Offset:     off,
			Length:     ix.CodePointLen(),
		}
	}
	return ix.pointToUnit[off], nil
}

// CodeUnitLen returns the length of the text in UTF-16 code units.
func (ix *Index) CodeUnitLen() int64 {
	return int64(len(ix.unitToPoint) - 1)
}

// CodePointLen returns the length of the text in code points.
func (ix *Index) CodePointLen() int64 {
	return int64(len(ix.pointToUnit) - 1)
}

// CodeUnitTable returns a copy of the code-unit to code-point table,
// including the sentinel.
func (ix *Index) CodeUnitTable() []int64 {
	out := make([]int64, len(ix.unitToPoint))
	copy(out, ix.unitToPoint)
	return out
}

// CodePointTable returns a copy of the code-point to code-unit table,
// including the sentinel.
func (ix *Index) CodePointTable() []int64 {
	out := make([]int64, len(ix.pointToUnit))
	copy(out, ix.pointToUnit)
	return out
}

// CodeUnitLen returns the UTF-16 length of s without building an Index.
func CodeUnitLen(s string) int64 {
	var n int64
	for _, r := range s {
		n += int64(utf16.RuneLen(r))
	}
	return n
}

// CodePointLen returns the number of code points in s.
func CodePointLen(s string) int64 {
	return int64(utf8.RuneCountInString(s))
}
