package bdoc

import (
	"strconv"
	"strings"

	"github.com/FocuswithJustin/bdoc/core/errors"
)

// SetSpec names one annotation set, optionally restricted to some types.
// An empty Types list selects the whole set.
type SetSpec struct {
	Name  string
	Types []string
}

// String renders the spec in selector syntax.
func (s SetSpec) String() string {
	name := s.Name
	if !isPlainName(name) {
		name = strconv.Quote(name)
	}
	if len(s.Types) == 0 {
		return name
	}
	types := make([]string, len(s.Types))
	for i, t := range s.Types {
		if isPlainName(t) {
			types[i] = t
		} else {
			types[i] = strconv.Quote(t)
		}
	}
	return name + ":" + strings.Join(types, ",")
}

func isPlainName(s string) bool {
	return s != "" && selectorIdent.MatchString(s)
}

// selection is the merged form of a list of SetSpecs.
type selection struct {
	order []string
	types map[string]map[string]bool // nil value: whole set
}

func mergeSpecs(specs []SetSpec) *selection {
	sel := &selection{types: make(map[string]map[string]bool)}
	for _, spec := range specs {
		cur, seen := sel.types[spec.Name]
		if !seen {
			sel.order = append(sel.order, spec.Name)
		}
		switch {
		case len(spec.Types) == 0:
			sel.types[spec.Name] = nil
		case seen && cur == nil:
			// already unfiltered
		default:
			if cur == nil {
				cur = make(map[string]bool)
				sel.types[spec.Name] = cur
			}
			for _, t := range spec.Types {
				cur[t] = true
			}
		}
	}
	return sel
}

func (sel *selection) copySet(set *AnnotationSet) *AnnotationSet {
	types := sel.types[set.Name()]
	if types == nil {
		return set.Clone()
	}
	return set.filtered(set.Name(), func(a *Annotation) bool { return types[a.Type] })
}

// SelectSubset returns a copy of doc holding only the selected annotation
// sets. Specs naming unknown sets are ignored. Several specs for the same set
// are unioned; an unfiltered spec wins over typed ones. The source document
// is never modified.
func SelectSubset(doc *Document, specs []SetSpec) *Document {
	out := doc.shallowCopy()
	sel := mergeSpecs(specs)
	for _, name := range sel.order {
		set, ok := doc.sets[name]
		if !ok {
			continue
		}
		out.sets[name] = sel.copySet(set)
	}
	return out
}

// ExportOptions controls Export.
type ExportOptions struct {
	// Sets selects annotation sets. Nil exports every set.
	Sets []SetSpec

	// Features selects document features by name. Nil exports all of them.
	Features []string

	// OffsetType converts the exported copy. Empty keeps the document's convention.
	OffsetType OffsetType
}

// Export builds a standalone copy of doc for serialization. Unlike
// SelectSubset, naming a set or document feature that does not exist is an
// error.
func Export(doc *Document, opts ExportOptions) (*Document, error) {
	var out *Document
	if opts.Sets == nil {
		out = doc.Clone()
	} else {
		for _, spec := range opts.Sets {
			if _, ok := doc.sets[spec.Name]; !ok {
				return nil, errors.NewNotFound("annotation set", strconv.Quote(spec.Name))
			}
		}
		out = SelectSubset(doc, opts.Sets)
	}

	if opts.Features != nil {
		features := make(Features, len(opts.Features))
		for _, name := range opts.Features {
			v, ok := doc.Features[name]
			if !ok {
				return nil, errors.NewNotFound("document feature", strconv.Quote(name))
			}
			features[name] = CloneValue(v)
		}
		out.Features = features
	}

	if opts.OffsetType != "" {
		if err := ConvertOffsets(out, opts.OffsetType); err != nil {
			return nil, err
		}
	}
	return out, nil
}
