package bdoc

import (
	"fmt"
	"sort"

	"github.com/FocuswithJustin/bdoc/core/errors"
)

// AnnotationSet is a named collection of annotations with its own id counter.
//
// Insertion order is kept for stable serialization only; it carries no meaning.
type AnnotationSet struct {
	name   string
	byID   map[int64]*Annotation
	order  []int64
	nextID int64
}

// NewAnnotationSet creates an empty set.
func NewAnnotationSet(name string) *AnnotationSet {
	return &AnnotationSet{
		name: name,
		byID: make(map[int64]*Annotation),
	}
}

// RebuildSet creates a set from externally sourced annotations. The stored
// counter is never trusted: NextID becomes max(nextID, 1+max id). Duplicate
// ids and invalid spans are rejected.
func RebuildSet(name string, nextID int64, anns []*Annotation) (*AnnotationSet, error) {
	set := NewAnnotationSet(name)
	for _, a := range anns {
		if a == nil {
			continue
		}
		if _, err := set.AddWithID(a.ID, a.Type, a.Start, a.End, a.Features); err != nil {
			return nil, errors.Wrapf(err, "annotation set %q", name)
		}
	}
	if nextID > set.nextID {
		set.nextID = nextID
	}
	return set, nil
}

// Name returns the set name.
func (s *AnnotationSet) Name() string {
	return s.name
}

// NextID returns the smallest id guaranteed unused in this set.
func (s *AnnotationSet) NextID() int64 {
	return s.nextID
}

// Len returns the number of annotations.
func (s *AnnotationSet) Len() int {
	return len(s.byID)
}

// Get returns the annotation with the given id.
func (s *AnnotationSet) Get(id int64) (*Annotation, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// Add inserts an annotation under a freshly allocated id.
func (s *AnnotationSet) Add(typ string, start, end int64, features Features) (*Annotation, error) {
	if err := validateSpan(start, end); err != nil {
		return nil, err
	}
	id := s.nextID
	return s.insert(id, typ, start, end, features), nil
}

// AddWithID inserts an annotation under a caller-chosen id. The counter is
// raised past id so later allocations cannot collide with it.
func (s *AnnotationSet) AddWithID(id int64, typ string, start, end int64, features Features) (*Annotation, error) {
	if id < 0 {
		return nil, errors.NewValidation("id", fmt.Sprintf("negative annotation id %d", id))
	}
	if err := validateSpan(start, end); err != nil {
		return nil, err
	}
	if _, exists := s.byID[id]; exists {
		return nil, fmt.Errorf("annotation id %d in set %q: %w", id, s.name, errors.ErrAlreadyExists)
	}
	return s.insert(id, typ, start, end, features), nil
}

func (s *AnnotationSet) insert(id int64, typ string, start, end int64, features Features) *Annotation {
	a := &Annotation{
		ID:       id,
		Type:     typ,
		Start:    start,
		End:      end,
		Features: features,
	}
	s.byID[id] = a
	s.order = append(s.order, id)
	if id >= s.nextID {
		s.nextID = id + 1
	}
	return a
}

// Remove deletes the annotation with the given id and reports whether it existed.
func (s *AnnotationSet) Remove(id int64) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes every annotation. The id counter is kept so ids are never reused.
func (s *AnnotationSet) Clear() {
	s.byID = make(map[int64]*Annotation)
	s.order = nil
}

// All returns the annotations in insertion order.
func (s *AnnotationSet) All() []*Annotation {
	out := make([]*Annotation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// ByType returns the annotations whose type is one of types, in insertion order.
func (s *AnnotationSet) ByType(types ...string) []*Annotation {
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []*Annotation
	for _, id := range s.order {
		if a := s.byID[id]; want[a.Type] {
			out = append(out, a)
		}
	}
	return out
}

// Types returns the distinct annotation types in sorted order.
func (s *AnnotationSet) Types() []string {
	seen := make(map[string]bool)
	for _, a := range s.byID {
		seen[a.Type] = true
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Clone returns a deep copy of the set.
func (s *AnnotationSet) Clone() *AnnotationSet {
	return s.filtered(s.name, nil)
}

// filtered copies the set, keeping only annotations accepted by keep (all when nil).
func (s *AnnotationSet) filtered(name string, keep func(*Annotation) bool) *AnnotationSet {
	out := NewAnnotationSet(name)
	for _, id := range s.order {
		a := s.byID[id]
		if keep != nil && !keep(a) {
			continue
		}
		out.byID[id] = a.Clone()
		out.order = append(out.order, id)
	}
	out.nextID = s.nextID
	return out
}
