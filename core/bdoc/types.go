package bdoc

import (
	"fmt"

	"github.com/FocuswithJustin/bdoc/core/errors"
)

// OffsetType names the unit annotation spans are counted in.
type OffsetType string

// Offset convention constants, as written on the wire.
const (
	OffsetCodeUnit  OffsetType = "j"
	OffsetCodePoint OffsetType = "p"
)

// IsValid returns true if the offset type is one of the two known conventions.
func (o OffsetType) IsValid() bool {
	return o == OffsetCodeUnit || o == OffsetCodePoint
}

// String returns a human-readable name of the convention.
func (o OffsetType) String() string {
	switch o {
	case OffsetCodeUnit:
		return "code unit"
	case OffsetCodePoint:
		return "code point"
	default:
		return fmt.Sprintf("OffsetType(%q)", string(o))
	}
}

// ParseOffsetType accepts the wire tags ("j", "p") and the long names used on
// command lines ("utf16", "codeunit", "codepoint", "python", "java").
func ParseOffsetType(s string) (OffsetType, error) {
	switch s {
	case "j", "java", "utf16", "codeunit", "code-unit":
		return OffsetCodeUnit, nil
	case "p", "python", "codepoint", "code-point":
		return OffsetCodePoint, nil
	}
	return "", errors.NewValidation("offset_type", fmt.Sprintf("unknown offset type %q", s))
}

// DefaultSetName is the name of the default annotation set.
const DefaultSetName = ""

// Annotation is a typed, featured span over the document text.
type Annotation struct {
	// ID is unique within the owning set.
	ID int64 `json:"id"`

	// Type is the annotation type (e.g., "Token", "Sentence").
	Type string `json:"type"`

	// Start is the inclusive start offset.
	Start int64 `json:"start"`

	// End is the exclusive end offset.
	End int64 `json:"end"`

	// Features holds arbitrary annotation metadata.
	Features Features `json:"features,omitempty"`
}

// Length returns the span length in the document's offset convention.
func (a *Annotation) Length() int64 {
	return a.End - a.Start
}

// SameSpan reports whether the annotation covers exactly [start, end).
func (a *Annotation) SameSpan(start, end int64) bool {
	return a.Start == start && a.End == end
}

// Clone returns a deep copy of the annotation.
func (a *Annotation) Clone() *Annotation {
	return &Annotation{
		ID:       a.ID,
		Type:     a.Type,
		Start:    a.Start,
		End:      a.End,
		Features: a.Features.Clone(),
	}
}

// validateSpan checks the half-open span invariant.
func validateSpan(start, end int64) error {
	if start < 0 {
		return errors.NewValidation("start", fmt.Sprintf("negative offset %d", start))
	}
	if end < start {
		return errors.NewValidation("end", fmt.Sprintf("end %d before start %d", end, start))
	}
	return nil
}
