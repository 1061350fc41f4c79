package changelog

import (
	"fmt"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/errors"
	"github.com/FocuswithJustin/bdoc/core/offsets"
	"github.com/FocuswithJustin/bdoc/core/reconcile"
)

// Stats counts what a replay did.
type Stats struct {
	Applied int        `json:"applied"`
	Ignored int        `json:"ignored"`
	ByOp    map[Op]int `json:"by_op"`
}

// Replayer applies change logs to one document.
//
// The offset index of the document text is built at most once, the first
// time a command's offsets need converting. Commands applied before a
// failing command stay applied.
type Replayer struct {
	doc   *bdoc.Document
	rec   *reconcile.Reconciler
	index *offsets.Index
}

// NewReplayer creates a Replayer for doc. opts govern annotation:add.
func NewReplayer(doc *bdoc.Document, opts reconcile.Options) *Replayer {
	return &Replayer{
		doc: doc,
		rec: reconcile.New(opts),
	}
}

// Document returns the document being updated.
func (r *Replayer) Document() *bdoc.Document {
	return r.doc
}

// IndexBuilt reports whether the offset index has been built.
func (r *Replayer) IndexBuilt() bool {
	return r.index != nil
}

// Apply replays every command of log in order and stops at the first failure.
func (r *Replayer) Apply(log *ChangeLog) (Stats, error) {
	stats := Stats{ByOp: make(map[Op]int)}

	if !log.OffsetType.IsValid() {
		return stats, errors.NewValidation("offset_type",
			fmt.Sprintf("change log has invalid offset type %q", string(log.OffsetType)))
	}
	if err := r.rec.Options().Validate(); err != nil {
		return stats, err
	}

	for i := range log.Changes {
		c := &log.Changes[i]
		applied, err := r.apply(log.OffsetType, c)
		if err != nil {
			return stats, errors.Wrapf(err, "change %d (%s)", i, c.Command)
		}
		if applied {
			stats.Applied++
			stats.ByOp[c.Command]++
		} else {
			stats.Ignored++
		}
	}
	return stats, nil
}

// apply runs one command and reports whether it changed anything that was
// addressed. Tolerated no-ops return false.
func (r *Replayer) apply(from bdoc.OffsetType, c *Command) (bool, error) {
	if err := c.validate(); err != nil {
		return false, err
	}
	doc := r.doc

	switch c.Command {
	case OpDocFeaturesClear:
		doc.Features = bdoc.Features{}

	case OpDocFeatureSet:
		if doc.Features == nil {
			doc.Features = bdoc.Features{}
		}
		doc.Features[c.FeatureName()] = bdoc.CloneValue(c.Value)

	case OpDocFeatureRemove:
		delete(doc.Features, c.FeatureName())

	case OpAnnFeaturesClear, OpAnnotationsClear:
		set, ok := doc.Set(c.SetName())
		if !ok {
			return false, nil
		}
		set.Clear()

	case OpAnnFeatureSet:
		a, ok := r.lookup(c)
		if !ok {
			// The annotation may have been removed earlier in the same log.
			return false, nil
		}
		if a.Features == nil {
			a.Features = bdoc.Features{}
		}
		a.Features[c.FeatureName()] = bdoc.CloneValue(c.Value)

	case OpAnnFeatureRemove:
		a, ok := r.lookup(c)
		if !ok {
			return false, &errors.MissingTargetError{
				Command: string(c.Command),
				Set:     c.SetName(),
				ID:      *c.ID,
			}
		}
		delete(a.Features, c.FeatureName())

	case OpAnnotationAdd:
		conv := r.converter(from)
		start, err := conv(*c.Start)
		if err != nil {
			return false, err
		}
		end, err := conv(*c.End)
		if err != nil {
			return false, err
		}
		set := doc.GetOrCreateSet(c.SetName())
		_, err = r.rec.Annotation(set, reconcile.Incoming{
			ID:       *c.ID,
			Type:     c.Type,
			Start:    start,
			End:      end,
			Features: c.Features,
		})
		if err != nil {
			return false, err
		}

	case OpAnnotationRemove:
		set, ok := doc.Set(c.SetName())
		if !ok {
			return false, nil
		}
		return set.Remove(*c.ID), nil

	case OpAnnotationsRemove:
		name := c.SetName()
		if name == bdoc.DefaultSetName {
			set, ok := doc.Set(name)
			if !ok {
				return false, nil
			}
			set.Clear()
			return true, nil
		}
		return doc.RemoveSet(name), nil
	}
	return true, nil
}

func (r *Replayer) lookup(c *Command) (*bdoc.Annotation, bool) {
	set, ok := r.doc.Set(c.SetName())
	if !ok {
		return nil, false
	}
	return set.Get(*c.ID)
}

// converter maps log offsets into the document convention, building the
// index on first use.
func (r *Replayer) converter(from bdoc.OffsetType) func(int64) (int64, error) {
	to := r.doc.OffsetType
	if from == to {
		return func(off int64) (int64, error) { return off, nil }
	}
	return func(off int64) (int64, error) {
		if r.index == nil {
			if !r.doc.HasText() {
				return 0, errors.NewPrecondition("convert offsets", "document has no text")
			}
			r.index = offsets.New(r.doc.Text())
		}
		return bdoc.Converter(r.index, from, to)(off)
	}
}
