// Package gatexml imports and exports documents in the GATE XML format.
//
// A GATE document stores its text inside TextWithNodes, interleaved with
// empty <Node id="..."/> markers. Annotations refer to markers by id and
// the position of each marker is its offset in UTF-16 code units.
//
// Parsing goes through xmlquery, which builds on encoding/xml and does not
// resolve external entities.
package gatexml

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/errors"
	"github.com/FocuswithJustin/bdoc/core/offsets"
)

const formatName = "GATE XML"

var (
	rootExpr        = xpath.MustCompile("/GateDocument")
	docFeaturesExpr = xpath.MustCompile("GateDocumentFeatures/Feature")
	textExpr        = xpath.MustCompile("TextWithNodes")
	setsExpr        = xpath.MustCompile("AnnotationSet")
	annotationsExpr = xpath.MustCompile("Annotation")
	featureExpr     = xpath.MustCompile("Feature")
	nameExpr        = xpath.MustCompile("Name")
	valueExpr       = xpath.MustCompile("Value")
)

// Java class names used for feature values.
const (
	classString     = "java.lang.String"
	classInteger    = "java.lang.Integer"
	classLong       = "java.lang.Long"
	classShort      = "java.lang.Short"
	classByte       = "java.lang.Byte"
	classDouble     = "java.lang.Double"
	classFloat      = "java.lang.Float"
	classBoolean    = "java.lang.Boolean"
	classBigInteger = "java.math.BigInteger"
	classList       = "java.util.ArrayList"
	classMap        = "java.util.HashMap"
)

// Parse reads a GateDocument. The result uses code-unit offsets.
func Parse(r io.Reader) (*bdoc.Document, error) {
	top, err := xmlquery.Parse(r)
	if err != nil {
		return nil, &errors.ParseError{Format: formatName, Message: err.Error(), Err: err}
	}
	root := xmlquery.QuerySelector(top, rootExpr)
	if root == nil {
		return nil, errors.NewParse(formatName, "", "missing GateDocument root element")
	}

	doc := bdoc.NewEmptyDocument()
	doc.OffsetType = bdoc.OffsetCodeUnit

	if doc.Features, err = readFeatures(xmlquery.QuerySelectorAll(root, docFeaturesExpr)); err != nil {
		return nil, err
	}

	nodes := map[string]int64{}
	if twn := xmlquery.QuerySelector(root, textExpr); twn != nil {
		text, err := readText(twn, nodes)
		if err != nil {
			return nil, err
		}
		doc.SetText(text)
	} else {
		doc.SetText("")
	}

	for _, setNode := range xmlquery.QuerySelectorAll(root, setsExpr) {
		set := doc.GetOrCreateSet(setNode.SelectAttr("Name"))
		for _, annNode := range xmlquery.QuerySelectorAll(setNode, annotationsExpr) {
			if err := readAnnotation(set, annNode, nodes); err != nil {
				return nil, err
			}
		}
	}
	return doc, nil
}

// readText concatenates the text children and records each marker's
// code-unit position.
func readText(twn *xmlquery.Node, nodes map[string]int64) (string, error) {
	var sb strings.Builder
	var pos int64
	for n := twn.FirstChild; n != nil; n = n.NextSibling {
		switch n.Type {
		case xmlquery.TextNode, xmlquery.CharDataNode:
			sb.WriteString(n.Data)
			pos += offsets.CodeUnitLen(n.Data)
		case xmlquery.ElementNode:
			if n.Data != "Node" {
				return "", errors.NewParse(formatName, "", fmt.Sprintf("unexpected element <%s> in TextWithNodes", n.Data))
			}
			id := n.SelectAttr("id")
			if id == "" {
				return "", errors.NewParse(formatName, "", "Node marker without id")
			}
			nodes[id] = pos
		}
	}
	return sb.String(), nil
}

func readAnnotation(set *bdoc.AnnotationSet, n *xmlquery.Node, nodes map[string]int64) error {
	id, err := strconv.ParseInt(n.SelectAttr("Id"), 10, 64)
	if err != nil {
		return errors.NewParse(formatName, "", fmt.Sprintf("annotation in set %q has invalid Id %q", set.Name(), n.SelectAttr("Id")))
	}
	start, err := nodeOffset(n.SelectAttr("StartNode"), nodes)
	if err != nil {
		return err
	}
	end, err := nodeOffset(n.SelectAttr("EndNode"), nodes)
	if err != nil {
		return err
	}
	features, err := readFeatures(xmlquery.QuerySelectorAll(n, featureExpr))
	if err != nil {
		return err
	}
	if _, err := set.AddWithID(id, n.SelectAttr("Type"), start, end, features); err != nil {
		return &errors.ParseError{Format: formatName, Message: err.Error(), Err: err}
	}
	return nil
}

// nodeOffset resolves a marker id. Ids without a marker fall back to their
// numeric value, which is how GATE assigns them.
func nodeOffset(id string, nodes map[string]int64) (int64, error) {
	if off, ok := nodes[id]; ok {
		return off, nil
	}
	off, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, errors.NewParse(formatName, "", fmt.Sprintf("unknown node id %q", id))
	}
	return off, nil
}

func readFeatures(list []*xmlquery.Node) (bdoc.Features, error) {
	features := bdoc.Features{}
	for _, f := range list {
		nameNode := xmlquery.QuerySelector(f, nameExpr)
		if nameNode == nil {
			return nil, errors.NewParse(formatName, "", "feature without Name")
		}
		name := nameNode.InnerText()

		valueNode := xmlquery.QuerySelector(f, valueExpr)
		if valueNode == nil {
			features[name] = nil
			continue
		}
		v, err := decodeValue(valueNode.SelectAttr("className"), valueNode.InnerText())
		if err != nil {
			return nil, errors.Wrapf(err, "feature %q", name)
		}
		features[name] = v
	}
	return features, nil
}

// decodeValue types a feature value by its class name. Values of unknown
// classes and numbers that do not parse are kept as strings.
func decodeValue(className, text string) (any, error) {
	switch className {
	case classInteger, classLong, classShort, classByte:
		if n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64); err == nil {
			return n, nil
		}
	case classBigInteger:
		s := strings.TrimSpace(text)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u, nil
		}
	case classDouble, classFloat:
		if f, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return f, nil
		}
	case classBoolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(text)); err == nil {
			return b, nil
		}
	case classList, classMap:
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil {
			return bdoc.NormalizeValue(v)
		}
	}
	return text, nil
}
