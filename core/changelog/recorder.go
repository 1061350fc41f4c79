package changelog

import (
	"github.com/FocuswithJustin/bdoc/core/bdoc"
)

// Recorder builds a change log one command at a time.
//
//	log := changelog.NewRecorder(bdoc.OffsetCodePoint).
//		SetDocFeature("lang", "en").
//		AddAnnotation("", 0, "Token", 0, 5, nil).
//		Log()
type Recorder struct {
	log *ChangeLog
}

// NewRecorder starts an empty log in the given convention.
func NewRecorder(offsetType bdoc.OffsetType) *Recorder {
	return &Recorder{log: New(offsetType)}
}

// Log returns the recorded change log.
func (r *Recorder) Log() *ChangeLog {
	return r.log
}

func (r *Recorder) add(c Command) *Recorder {
	r.log.Changes = append(r.log.Changes, c)
	return r
}

func ptr[T any](v T) *T {
	return &v
}

// ClearDocFeatures records doc-features:clear.
func (r *Recorder) ClearDocFeatures() *Recorder {
	return r.add(Command{Command: OpDocFeaturesClear})
}

// SetDocFeature records doc-feature:set.
func (r *Recorder) SetDocFeature(name string, value any) *Recorder {
	return r.add(Command{Command: OpDocFeatureSet, Feature: ptr(name), Value: value})
}

// RemoveDocFeature records doc-feature:remove.
func (r *Recorder) RemoveDocFeature(name string) *Recorder {
	return r.add(Command{Command: OpDocFeatureRemove, Feature: ptr(name)})
}

// ClearAnnotationFeatures records ann-features:clear, which empties the set.
func (r *Recorder) ClearAnnotationFeatures(set string) *Recorder {
	return r.add(Command{Command: OpAnnFeaturesClear, Set: ptr(set)})
}

// SetAnnotationFeature records ann-feature:set.
func (r *Recorder) SetAnnotationFeature(set string, id int64, name string, value any) *Recorder {
	return r.add(Command{Command: OpAnnFeatureSet, Set: ptr(set), ID: ptr(id), Feature: ptr(name), Value: value})
}

// RemoveAnnotationFeature records ann-feature:remove.
func (r *Recorder) RemoveAnnotationFeature(set string, id int64, name string) *Recorder {
	return r.add(Command{Command: OpAnnFeatureRemove, Set: ptr(set), ID: ptr(id), Feature: ptr(name)})
}

// AddAnnotation records annotation:add.
func (r *Recorder) AddAnnotation(set string, id int64, typ string, start, end int64, features bdoc.Features) *Recorder {
	return r.add(Command{
		Command:  OpAnnotationAdd,
		Set:      ptr(set),
		ID:       ptr(id),
		Type:     typ,
		Start:    ptr(start),
		End:      ptr(end),
		Features: features.Clone(),
	})
}

// RemoveAnnotation records annotation:remove.
func (r *Recorder) RemoveAnnotation(set string, id int64) *Recorder {
	return r.add(Command{Command: OpAnnotationRemove, Set: ptr(set), ID: ptr(id)})
}

// ClearAnnotations records annotations:clear.
func (r *Recorder) ClearAnnotations(set string) *Recorder {
	return r.add(Command{Command: OpAnnotationsClear, Set: ptr(set)})
}

// RemoveAnnotations records annotations:remove.
func (r *Recorder) RemoveAnnotations(set string) *Recorder {
	return r.add(Command{Command: OpAnnotationsRemove, Set: ptr(set)})
}

// Snapshot records a document's full content as a change log: its features
// followed by every annotation of every set, in the document's convention.
func Snapshot(doc *bdoc.Document) *ChangeLog {
	r := NewRecorder(doc.OffsetType)
	for _, k := range doc.Features.Keys() {
		r.SetDocFeature(k, bdoc.CloneValue(doc.Features[k]))
	}
	for _, set := range doc.Sets() {
		for _, a := range set.All() {
			r.AddAnnotation(set.Name(), a.ID, a.Type, a.Start, a.End, a.Features)
		}
	}
	return r.Log()
}
