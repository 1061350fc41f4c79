package reconcile

import (
	"fmt"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/errors"
	"github.com/FocuswithJustin/bdoc/core/offsets"
)

// Incoming describes one annotation to reconcile. Offsets must already be in
// the target document's convention.
type Incoming struct {
	ID       int64
	Type     string
	Start    int64
	End      int64
	Features bdoc.Features
}

// FromAnnotation builds an Incoming from a stored annotation.
func FromAnnotation(a *bdoc.Annotation) Incoming {
	return Incoming{
		ID:       a.ID,
		Type:     a.Type,
		Start:    a.Start,
		End:      a.End,
		Features: a.Features,
	}
}

// Outcome reports what happened to one incoming annotation.
type Outcome struct {
	Action Action
	// ID is the id of the annotation that was inserted or touched.
	ID int64
}

// Summary counts the outcomes of a document reconciliation.
type Summary struct {
	Inserted        int `json:"inserted"`
	Replaced        int `json:"replaced"`
	FeaturesUpdated int `json:"features_updated"`
	Ignored         int `json:"ignored"`
	DocFeatures     int `json:"doc_features"`
	Sets            int `json:"sets"`
}

// Total returns the number of annotations processed.
func (s Summary) Total() int {
	return s.Inserted + s.Replaced + s.FeaturesUpdated + s.Ignored
}

func (s *Summary) record(a Action) {
	switch a {
	case ActionInsertFresh, ActionInsertSourceID:
		s.Inserted++
	case ActionReplaceAnnotation:
		s.Replaced++
	case ActionIgnore:
		s.Ignored++
	default:
		s.FeaturesUpdated++
	}
}

// Reconciler applies one Options value to any number of annotations.
// It is not safe for concurrent use on the same target.
type Reconciler struct {
	opts Options
}

// New creates a Reconciler.
func New(opts Options) *Reconciler {
	return &Reconciler{opts: opts}
}

// Options returns the session options.
func (r *Reconciler) Options() Options {
	return r.opts
}

// Annotation reconciles one incoming annotation into set. When the stored
// annotation must be updated in place its span is checked first; a mismatch
// fails with *errors.IntegrityError and nothing is modified.
func (r *Reconciler) Annotation(set *bdoc.AnnotationSet, in Incoming) (Outcome, error) {
	stored, exists := set.Get(in.ID)
	action := Decide(exists, r.opts)

	if action.ChecksSpan() && !stored.SameSpan(in.Start, in.End) {
		return Outcome{Action: action, ID: in.ID}, &errors.IntegrityError{
			Set:           set.Name(),
			ID:            in.ID,
			StoredStart:   stored.Start,
			StoredEnd:     stored.End,
			IncomingStart: in.Start,
			IncomingEnd:   in.End,
		}
	}

	features := in.Features.Clone()

	switch action {
	case ActionInsertFresh:
		a, err := set.Add(in.Type, in.Start, in.End, nonNil(features))
		if err != nil {
			return Outcome{Action: action}, err
		}
		return Outcome{Action: action, ID: a.ID}, nil

	case ActionInsertSourceID:
		a, err := set.AddWithID(in.ID, in.Type, in.Start, in.End, nonNil(features))
		if err != nil {
			return Outcome{Action: action, ID: in.ID}, err
		}
		return Outcome{Action: action, ID: a.ID}, nil

	case ActionReplaceAnnotation:
		set.Remove(in.ID)
		if _, err := set.AddWithID(in.ID, in.Type, in.Start, in.End, nonNil(features)); err != nil {
			return Outcome{Action: action, ID: in.ID}, err
		}

	case ActionReplaceFeatures:
		stored.Features = nonNil(features)

	case ActionMergeOverwrite:
		if stored.Features == nil {
			stored.Features = bdoc.Features{}
		}
		for k, v := range features {
			stored.Features[k] = v
		}

	case ActionMergeAddOnly:
		if stored.Features == nil {
			stored.Features = bdoc.Features{}
		}
		for k, v := range features {
			if !stored.Features.Has(k) {
				stored.Features[k] = v
			}
		}

	case ActionIgnore:
	}

	return Outcome{Action: action, ID: in.ID}, nil
}

func nonNil(f bdoc.Features) bdoc.Features {
	if f == nil {
		return bdoc.Features{}
	}
	return f
}

// Document merges incoming into target: document features first, then every
// selected annotation set. Incoming spans are converted to the target
// convention through an index of the target text, built on first need.
//
// Reconciliation stops at the first error; annotations merged before it stay
// merged. Callers that need atomicity reconcile into a copy.
func (r *Reconciler) Document(target, incoming *bdoc.Document) (Summary, error) {
	var sum Summary

	if err := r.opts.Validate(); err != nil {
		return sum, err
	}
	if !incoming.OffsetType.IsValid() {
		return sum, errors.NewValidation("offset_type",
			fmt.Sprintf("invalid offset type %q", string(incoming.OffsetType)))
	}

	sum.DocFeatures = r.mergeDocFeatures(target, incoming)

	names := r.opts.SetNames
	if names == nil {
		names = incoming.SetNames()
	}

	conv := r.converter(target, incoming.OffsetType)

	for _, name := range names {
		src, ok := incoming.Set(name)
		if !ok {
			continue
		}
		dst := target.GetOrCreateSet(name)
		sum.Sets++
		for _, a := range src.All() {
			in := FromAnnotation(a)
			var err error
			if in.Start, err = conv(a.Start); err != nil {
				return sum, errors.Wrapf(err, "annotation %d in set %q", a.ID, name)
			}
			if in.End, err = conv(a.End); err != nil {
				return sum, errors.Wrapf(err, "annotation %d in set %q", a.ID, name)
			}
			out, err := r.Annotation(dst, in)
			if err != nil {
				return sum, err
			}
			sum.record(out.Action)
		}
	}
	return sum, nil
}

func (r *Reconciler) mergeDocFeatures(target, incoming *bdoc.Document) int {
	if incoming.Features == nil {
		return 0
	}
	if target.Features == nil {
		target.Features = bdoc.Features{}
	}
	n := 0
	if r.opts.FeatureNames == nil {
		for k, v := range incoming.Features.Clone() {
			target.Features[k] = v
			n++
		}
		return n
	}
	for _, name := range r.opts.FeatureNames {
		v, ok := incoming.Features[name]
		if !ok {
			continue
		}
		target.Features[name] = bdoc.CloneValue(v)
		n++
	}
	return n
}

// converter returns the offset mapping from the incoming convention to the
// target's. The index is only built when an offset is actually converted.
func (r *Reconciler) converter(target *bdoc.Document, from bdoc.OffsetType) func(int64) (int64, error) {
	to := target.OffsetType
	if from == to {
		return func(off int64) (int64, error) { return off, nil }
	}
	var conv func(int64) (int64, error)
	return func(off int64) (int64, error) {
		if conv == nil {
			if !target.HasText() {
				return 0, errors.NewPrecondition("convert offsets", "target document has no text")
			}
			conv = bdoc.Converter(offsets.New(target.Text()), from, to)
		}
		return conv(off)
	}
}

// Materialize builds a new code-unit document from the incoming text and
// merges the incoming content into it.
func Materialize(incoming *bdoc.Document, opts Options) (*bdoc.Document, Summary, error) {
	if !incoming.HasText() {
		return nil, Summary{}, errors.NewPrecondition("materialize document", "incoming document has no text")
	}
	target := bdoc.NewDocument(incoming.Text())
	target.Name = incoming.Name
	sum, err := New(opts).Document(target, incoming)
	if err != nil {
		return nil, sum, err
	}
	return target, sum, nil
}
