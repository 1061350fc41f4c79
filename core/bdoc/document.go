package bdoc

import (
	"sort"
)

// Document is a text with document features and named annotation sets.
// A Document is not safe for concurrent mutation.
type Document struct {
	// Name is an optional document name.
	Name string

	// Features holds document-level metadata.
	Features Features

	// OffsetType is the convention every annotation span is expressed in.
	OffsetType OffsetType

	text    string
	hasText bool
	sets    map[string]*AnnotationSet
}

// NewDocument creates a code-unit document over text.
func NewDocument(text string) *Document {
	d := NewEmptyDocument()
	d.SetText(text)
	return d
}

// NewEmptyDocument creates a document whose text is not known yet.
func NewEmptyDocument() *Document {
	return &Document{
		Features:   Features{},
		OffsetType: OffsetCodeUnit,
		sets:       make(map[string]*AnnotationSet),
	}
}

// Text returns the document text, or "" when unset.
func (d *Document) Text() string {
	return d.text
}

// HasText reports whether the text has been set.
func (d *Document) HasText() bool {
	return d.hasText
}

// SetText sets the document text. Existing spans are not adjusted.
func (d *Document) SetText(text string) {
	d.text = text
	d.hasText = true
}

// Set returns the named annotation set, if present.
func (d *Document) Set(name string) (*AnnotationSet, bool) {
	s, ok := d.sets[name]
	return s, ok
}

// GetOrCreateSet returns the named set, creating an empty one if needed.
func (d *Document) GetOrCreateSet(name string) *AnnotationSet {
	if s, ok := d.sets[name]; ok {
		return s
	}
	s := NewAnnotationSet(name)
	d.sets[name] = s
	return s
}

// PutSet stores set under its own name, replacing any set of that name.
func (d *Document) PutSet(set *AnnotationSet) {
	d.sets[set.name] = set
}

// RemoveSet deletes the named set and reports whether it existed.
func (d *Document) RemoveSet(name string) bool {
	if _, ok := d.sets[name]; !ok {
		return false
	}
	delete(d.sets, name)
	return true
}

// SetNames returns the names of all annotation sets in sorted order.
// The default set, when present, sorts first.
func (d *Document) SetNames() []string {
	names := make([]string, 0, len(d.sets))
	for name := range d.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sets returns the annotation sets ordered by name.
func (d *Document) Sets() []*AnnotationSet {
	names := d.SetNames()
	out := make([]*AnnotationSet, len(names))
	for i, name := range names {
		out[i] = d.sets[name]
	}
	return out
}

// AnnotationCount returns the number of annotations across all sets.
func (d *Document) AnnotationCount() int {
	n := 0
	for _, s := range d.sets {
		n += s.Len()
	}
	return n
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := d.shallowCopy()
	for name, s := range d.sets {
		out.sets[name] = s.Clone()
	}
	return out
}

// shallowCopy copies everything except the annotation sets.
func (d *Document) shallowCopy() *Document {
	features := d.Features.Clone()
	if features == nil {
		features = Features{}
	}
	return &Document{
		Name:       d.Name,
		Features:   features,
		OffsetType: d.OffsetType,
		text:       d.text,
		hasText:    d.hasText,
		sets:       make(map[string]*AnnotationSet, len(d.sets)),
	}
}
