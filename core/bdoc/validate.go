package bdoc

import (
	"fmt"

	"github.com/FocuswithJustin/bdoc/core/errors"
	"github.com/FocuswithJustin/bdoc/core/offsets"
)

// Validate checks the document invariants and returns every violation found.
// Spans are checked against the text length when the text is known.
func Validate(doc *Document) []error {
	var errs []error

	if !doc.OffsetType.IsValid() {
		errs = append(errs, errors.NewValidation("offset_type",
			fmt.Sprintf("invalid offset type %q", string(doc.OffsetType))))
	}

	limit := int64(-1)
	if doc.HasText() {
		if doc.OffsetType == OffsetCodePoint {
			limit = offsets.CodePointLen(doc.Text())
		} else {
			limit = offsets.CodeUnitLen(doc.Text())
		}
	}

	for _, set := range doc.Sets() {
		for _, a := range set.All() {
			field := fmt.Sprintf("annotation_sets[%q].annotations[%d]", set.Name(), a.ID)
			if err := validateSpan(a.Start, a.End); err != nil {
				errs = append(errs, errors.Wrap(err, field))
				continue
			}
			if limit >= 0 && a.End > limit {
				errs = append(errs, errors.NewValidation(field,
					fmt.Sprintf("end %d beyond text length %d", a.End, limit)))
			}
			if a.ID >= set.NextID() {
				errs = append(errs, errors.NewValidation(field,
					fmt.Sprintf("id %d not below next_annid %d", a.ID, set.NextID())))
			}
			if a.Type == "" {
				errs = append(errs, errors.NewValidation(field, "type is required"))
			}
		}
	}
	return errs
}
