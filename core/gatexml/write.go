package gatexml

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/encoding"
)

// Write emits doc as a GateDocument. Code-point documents are converted on
// a copy; doc itself is never modified. A node marker is placed at every
// annotation boundary.
func Write(w io.Writer, doc *bdoc.Document) error {
	if doc.OffsetType != bdoc.OffsetCodeUnit {
		doc = doc.Clone()
		if err := bdoc.ConvertOffsets(doc, bdoc.OffsetCodeUnit); err != nil {
			return err
		}
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("<?xml version='1.0' encoding='UTF-8'?>\n")
	bw.WriteString("<GateDocument version=\"3\">\n")

	bw.WriteString("<GateDocumentFeatures>\n")
	if err := writeFeatures(bw, doc.Features); err != nil {
		return err
	}
	bw.WriteString("</GateDocumentFeatures>\n")

	bw.WriteString("<TextWithNodes>")
	writeText(bw, doc.Text(), boundaries(doc))
	bw.WriteString("</TextWithNodes>\n")

	for _, set := range doc.Sets() {
		if set.Name() == bdoc.DefaultSetName {
			bw.WriteString("<AnnotationSet>\n")
		} else {
			fmt.Fprintf(bw, "<AnnotationSet Name=\"%s\">\n", encoding.EscapeXMLAttr(set.Name()))
		}
		for _, a := range set.All() {
			fmt.Fprintf(bw, "<Annotation Id=\"%d\" Type=\"%s\" StartNode=\"%d\" EndNode=\"%d\">\n",
				a.ID, encoding.EscapeXMLAttr(a.Type), a.Start, a.End)
			if err := writeFeatures(bw, a.Features); err != nil {
				return err
			}
			bw.WriteString("</Annotation>\n")
		}
		bw.WriteString("</AnnotationSet>\n")
	}

	bw.WriteString("</GateDocument>\n")
	return bw.Flush()
}

// boundaries returns the sorted distinct annotation offsets.
func boundaries(doc *bdoc.Document) []int64 {
	seen := map[int64]bool{}
	var out []int64
	for _, set := range doc.Sets() {
		for _, a := range set.All() {
			for _, off := range [2]int64{a.Start, a.End} {
				if !seen[off] {
					seen[off] = true
					out = append(out, off)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// writeText interleaves text with markers. A boundary that falls inside a
// surrogate pair is emitted before the next whole character.
func writeText(bw *bufio.Writer, text string, marks []int64) {
	var pos int64
	start := 0
	flush := func(end int) {
		if end > start {
			bw.WriteString(encoding.EscapeXMLText(text[start:end]))
		}
		start = end
	}
	emit := func() {
		for len(marks) > 0 && marks[0] <= pos {
			fmt.Fprintf(bw, "<Node id=\"%d\"/>", marks[0])
			marks = marks[1:]
		}
	}

	for i, r := range text {
		if len(marks) > 0 && marks[0] <= pos {
			flush(i)
			emit()
		}
		if r >= 0x10000 {
			pos += 2
		} else {
			pos++
		}
	}
	flush(len(text))
	emit()
}

func writeFeatures(bw *bufio.Writer, features bdoc.Features) error {
	for _, name := range features.Keys() {
		bw.WriteString("<Feature>\n")
		fmt.Fprintf(bw, "  <Name className=\"%s\">%s</Name>\n", classString, encoding.EscapeXMLText(name))
		v := features[name]
		if v != nil {
			className, text, err := encodeValue(v)
			if err != nil {
				return fmt.Errorf("feature %q: %w", name, err)
			}
			fmt.Fprintf(bw, "  <Value className=\"%s\">%s</Value>\n", className, encoding.EscapeXMLText(text))
		}
		bw.WriteString("</Feature>\n")
	}
	return nil
}

func encodeValue(v any) (className, text string, err error) {
	switch t := v.(type) {
	case string:
		return classString, t, nil
	case bool:
		return classBoolean, strconv.FormatBool(t), nil
	case int64:
		return classLong, strconv.FormatInt(t, 10), nil
	case uint64:
		return classBigInteger, strconv.FormatUint(t, 10), nil
	case float64:
		return classDouble, strconv.FormatFloat(t, 'g', -1, 64), nil
	case []any:
		data, err := json.Marshal(t)
		return classList, string(data), err
	case map[string]any, bdoc.Features:
		data, err := json.Marshal(t)
		return classMap, string(data), err
	}
	return classString, bdoc.FormatValue(v), nil
}
