package codec

import (
	"fmt"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/errors"
)

// wireDocument is the serialized shape of a document.
type wireDocument struct {
	Text           *string             `json:"text" yaml:"text"`
	OffsetType     string              `json:"offset_type" yaml:"offset_type"`
	Name           string              `json:"name,omitempty" yaml:"name,omitempty"`
	Features       map[string]any      `json:"features" yaml:"features"`
	AnnotationSets map[string]*wireSet `json:"annotation_sets" yaml:"annotation_sets"`
}

type wireSet struct {
	Name        string            `json:"name" yaml:"name"`
	NextAnnID   int64             `json:"next_annid" yaml:"next_annid"`
	Annotations []*wireAnnotation `json:"annotations" yaml:"annotations"`
}

type wireAnnotation struct {
	ID       int64          `json:"id" yaml:"id"`
	Type     string         `json:"type" yaml:"type"`
	Start    int64          `json:"start" yaml:"start"`
	End      int64          `json:"end" yaml:"end"`
	Features map[string]any `json:"features,omitempty" yaml:"features,omitempty"`
}

func toWire(doc *bdoc.Document) *wireDocument {
	w := &wireDocument{
		OffsetType:     string(doc.OffsetType),
		Name:           doc.Name,
		Features:       featuresOrEmpty(doc.Features),
		AnnotationSets: make(map[string]*wireSet),
	}
	if doc.HasText() {
		text := doc.Text()
		w.Text = &text
	}
	for _, set := range doc.Sets() {
		ws := &wireSet{
			Name:        set.Name(),
			NextAnnID:   set.NextID(),
			Annotations: make([]*wireAnnotation, 0, set.Len()),
		}
		for _, a := range set.All() {
			ws.Annotations = append(ws.Annotations, &wireAnnotation{
				ID:       a.ID,
				Type:     a.Type,
				Start:    a.Start,
				End:      a.End,
				Features: a.Features,
			})
		}
		w.AnnotationSets[set.Name()] = ws
	}
	return w
}

func featuresOrEmpty(f bdoc.Features) map[string]any {
	if f == nil {
		return map[string]any{}
	}
	return f
}

// fromWire rebuilds a document. The map key names each set; the stored
// next_annid is only a lower bound.
func fromWire(w *wireDocument, format string) (*bdoc.Document, error) {
	ot, err := parseWireOffsetType(w.OffsetType, format)
	if err != nil {
		return nil, err
	}

	doc := bdoc.NewEmptyDocument()
	doc.OffsetType = ot
	doc.Name = w.Name
	if w.Text != nil {
		doc.SetText(*w.Text)
	}

	features, err := bdoc.NormalizeFeatures(w.Features)
	if err != nil {
		return nil, parseErr(format, err)
	}
	if features != nil {
		doc.Features = features
	}

	for name, ws := range w.AnnotationSets {
		if ws == nil {
			doc.PutSet(bdoc.NewAnnotationSet(name))
			continue
		}
		anns := make([]*bdoc.Annotation, 0, len(ws.Annotations))
		for _, wa := range ws.Annotations {
			if wa == nil {
				continue
			}
			af, err := bdoc.NormalizeFeatures(wa.Features)
			if err != nil {
				return nil, parseErr(format, err)
			}
			anns = append(anns, &bdoc.Annotation{
				ID:       wa.ID,
				Type:     wa.Type,
				Start:    wa.Start,
				End:      wa.End,
				Features: af,
			})
		}
		set, err := bdoc.RebuildSet(name, ws.NextAnnID, anns)
		if err != nil {
			return nil, parseErr(format, err)
		}
		doc.PutSet(set)
	}
	return doc, nil
}

func parseWireOffsetType(s, format string) (bdoc.OffsetType, error) {
	if s == "" {
		return "", errors.NewParse(format, "", "offset_type is missing")
	}
	ot := bdoc.OffsetType(s)
	if !ot.IsValid() {
		return "", errors.NewParse(format, "", fmt.Sprintf("invalid offset_type %q", s))
	}
	return ot, nil
}

func parseErr(format string, err error) error {
	return &errors.ParseError{Format: format, Message: err.Error(), Err: err}
}

// decodeFeatures accepts any decoded map shape.
func decodeFeatures(v any, format string) (bdoc.Features, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		f, err := bdoc.NormalizeFeatures(m)
		if err != nil {
			return nil, parseErr(format, err)
		}
		return f, nil
	case map[any]any:
		f, err := bdoc.CoerceFeatures(m)
		if err != nil {
			return nil, parseErr(format, err)
		}
		return f, nil
	}
	return nil, errors.NewParse(format, "", fmt.Sprintf("feature map expected, got %T", v))
}
