package bdoc

import (
	"fmt"

	"github.com/FocuswithJustin/bdoc/core/errors"
	"github.com/FocuswithJustin/bdoc/core/offsets"
)

// ConvertOffsets rewrites every annotation span of doc into the target
// convention. All new offsets are computed before any annotation is touched,
// so a failure leaves the document as it was.
func ConvertOffsets(doc *Document, target OffsetType) error {
	if !target.IsValid() {
		return errors.NewValidation("offset_type", fmt.Sprintf("unknown offset type %q", string(target)))
	}
	if doc.OffsetType == target {
		return nil
	}
	if !doc.HasText() {
		if doc.AnnotationCount() > 0 {
			return errors.NewPrecondition("convert offsets", "document text is not known but annotations exist")
		}
		doc.OffsetType = target
		return nil
	}

	ix := offsets.New(doc.Text())
	conv := Converter(ix, doc.OffsetType, target)

	type rewrite struct {
		ann        *Annotation
		start, end int64
	}
	var pending []rewrite
	for _, set := range doc.Sets() {
		for _, a := range set.All() {
			start, err := conv(a.Start)
			if err != nil {
				return errors.Wrapf(err, "annotation %d in set %q", a.ID, set.Name())
			}
			end, err := conv(a.End)
			if err != nil {
				return errors.Wrapf(err, "annotation %d in set %q", a.ID, set.Name())
			}
			pending = append(pending, rewrite{a, start, end})
		}
	}

	for _, r := range pending {
		r.ann.Start, r.ann.End = r.start, r.end
	}
	doc.OffsetType = target
	return nil
}

// Converter returns the function mapping offsets from one convention to
// another through ix. Equal conventions yield the identity.
func Converter(ix *offsets.Index, from, to OffsetType) func(int64) (int64, error) {
	switch {
	case from == to:
		return func(off int64) (int64, error) { return off, nil }
	case to == OffsetCodePoint:
		return ix.ToCodePoint
	default:
		return ix.ToCodeUnit
	}
}
