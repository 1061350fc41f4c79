package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/changelog"
	"github.com/FocuswithJustin/bdoc/core/errors"
)

// EncodeDocument writes doc to w in the given format.
func EncodeDocument(w io.Writer, doc *bdoc.Document, f Format) error {
	switch f {
	case FormatJSON:
		return json.NewEncoder(w).Encode(toWire(doc))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(toWire(doc)); err != nil {
			return err
		}
		return enc.Close()
	case FormatMsgPack:
		return encodeDocumentMsgPack(w, doc)
	}
	return errors.NewUnsupported("format", string(f))
}

// DecodeDocument reads one document from r.
func DecodeDocument(r io.Reader, f Format) (*bdoc.Document, error) {
	switch f {
	case FormatJSON:
		var w wireDocument
		dec := json.NewDecoder(r)
		dec.UseNumber()
		if err := dec.Decode(&w); err != nil {
			return nil, &errors.ParseError{Format: "JSON", Message: err.Error(), Err: err}
		}
		return fromWire(&w, "JSON")
	case FormatYAML:
		var w wireDocument
		if err := yaml.NewDecoder(r).Decode(&w); err != nil {
			return nil, &errors.ParseError{Format: "YAML", Message: err.Error(), Err: err}
		}
		return fromWire(&w, "YAML")
	case FormatMsgPack:
		return decodeDocumentMsgPack(r)
	}
	return nil, errors.NewUnsupported("format", string(f))
}

// wireChangeLog keeps offset_type optional so its absence can be reported.
type wireChangeLog struct {
	OffsetType string              `json:"offset_type" yaml:"offset_type"`
	Changes    []changelog.Command `json:"changes" yaml:"changes"`
}

// EncodeChangeLog writes log to w in the given format.
func EncodeChangeLog(w io.Writer, log *changelog.ChangeLog, f Format) error {
	changes := log.Changes
	if changes == nil {
		changes = []changelog.Command{}
	}
	wl := wireChangeLog{OffsetType: string(log.OffsetType), Changes: changes}
	switch f {
	case FormatJSON:
		return json.NewEncoder(w).Encode(wl)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(wl); err != nil {
			return err
		}
		return enc.Close()
	case FormatMsgPack:
		return encodeChangeLogMsgPack(w, log)
	}
	return errors.NewUnsupported("format", string(f))
}

// DecodeChangeLog reads one change log from r.
func DecodeChangeLog(r io.Reader, f Format) (*changelog.ChangeLog, error) {
	var wl wireChangeLog
	var name string
	switch f {
	case FormatJSON:
		name = "JSON"
		dec := json.NewDecoder(r)
		dec.UseNumber()
		if err := dec.Decode(&wl); err != nil {
			return nil, &errors.ParseError{Format: name, Message: err.Error(), Err: err}
		}
	case FormatYAML:
		name = "YAML"
		if err := yaml.NewDecoder(r).Decode(&wl); err != nil {
			return nil, &errors.ParseError{Format: name, Message: err.Error(), Err: err}
		}
	case FormatMsgPack:
		return decodeChangeLogMsgPack(r)
	default:
		return nil, errors.NewUnsupported("format", string(f))
	}

	ot, err := parseWireOffsetType(wl.OffsetType, name)
	if err != nil {
		return nil, err
	}
	log := &changelog.ChangeLog{OffsetType: ot, Changes: wl.Changes}
	if err := normalizeCommands(log, name); err != nil {
		return nil, err
	}
	return log, nil
}

// normalizeCommands brings decoded values into the canonical value space.
func normalizeCommands(log *changelog.ChangeLog, format string) error {
	for i := range log.Changes {
		c := &log.Changes[i]
		v, err := bdoc.NormalizeValue(c.Value)
		if err != nil {
			return parseErr(format, fmt.Errorf("change %d: %w", i, err))
		}
		c.Value = v
		f, err := bdoc.NormalizeFeatures(c.Features)
		if err != nil {
			return parseErr(format, fmt.Errorf("change %d: %w", i, err))
		}
		c.Features = f
	}
	return nil
}
