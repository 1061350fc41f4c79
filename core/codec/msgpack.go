package codec

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/changelog"
	"github.com/FocuswithJustin/bdoc/core/errors"
)

// FormatVersion identifies the layout of a MessagePack stream.
type FormatVersion int

const (
	// VersionUnknown is any leading tag other than a known literal.
	VersionUnknown FormatVersion = iota
	// VersionSM1 is the "sm1" layout.
	VersionSM1
)

// VersionTag is the leading literal of the current stream layout.
const VersionTag = "sm1"

// maxPrealloc bounds slice capacity taken from stream counts.
const maxPrealloc = 1024

// ParseFormatVersion classifies the first value of a stream. Only the exact
// string literal is recognized.
func ParseFormatVersion(v any) FormatVersion {
	if s, ok := v.(string); ok && s == VersionTag {
		return VersionSM1
	}
	return VersionUnknown
}

func newEncoder(w io.Writer) *msgpack.Encoder {
	enc := msgpack.NewEncoder(w)
	enc.SetSortMapKeys(true)
	return enc
}

func newDecoder(r io.Reader) *msgpack.Decoder {
	dec := msgpack.NewDecoder(r)
	// Maps decode with untyped keys so foreign producers' non-string keys
	// reach CoerceFeatures instead of failing inside the decoder.
	dec.SetMapDecoder(func(d *msgpack.Decoder) (interface{}, error) {
		return d.DecodeUntypedMap()
	})
	return dec
}

func mpErr(err error) error {
	return &errors.ParseError{Format: "MsgPack", Message: err.Error(), Err: err}
}

// readVersion consumes the leading tag and rejects anything but sm1.
func readVersion(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return mpErr(err)
	}
	switch ParseFormatVersion(v) {
	case VersionSM1:
		return nil
	default:
		return &errors.FormatVersionError{Got: fmt.Sprint(v), Want: VersionTag}
	}
}

// encodeDocumentMsgPack writes the sm1 stream: tag, offset type, text,
// features, set count, then per set its name, next id and annotation count
// followed by type, start, end, id and features of each annotation.
func encodeDocumentMsgPack(w io.Writer, doc *bdoc.Document) error {
	enc := newEncoder(w)
	put := func(fns ...func() error) error {
		for _, fn := range fns {
			if err := fn(); err != nil {
				return err
			}
		}
		return nil
	}

	text := func() error {
		if !doc.HasText() {
			return enc.EncodeNil()
		}
		return enc.EncodeString(doc.Text())
	}
	sets := doc.Sets()
	err := put(
		func() error { return enc.EncodeString(VersionTag) },
		func() error { return enc.EncodeString(string(doc.OffsetType)) },
		text,
		func() error { return enc.Encode(featuresOrEmpty(doc.Features)) },
		func() error { return enc.EncodeInt(int64(len(sets))) },
	)
	if err != nil {
		return err
	}

	for _, set := range sets {
		anns := set.All()
		err := put(
			func() error { return enc.EncodeString(set.Name()) },
			func() error { return enc.EncodeInt(set.NextID()) },
			func() error { return enc.EncodeInt(int64(len(anns))) },
		)
		if err != nil {
			return err
		}
		for _, a := range anns {
			err := put(
				func() error { return enc.EncodeString(a.Type) },
				func() error { return enc.EncodeInt(a.Start) },
				func() error { return enc.EncodeInt(a.End) },
				func() error { return enc.EncodeInt(a.ID) },
				func() error { return enc.Encode(featuresOrEmpty(a.Features)) },
			)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeDocumentMsgPack(r io.Reader) (*bdoc.Document, error) {
	dec := newDecoder(r)
	if err := readVersion(dec); err != nil {
		return nil, err
	}

	otStr, err := dec.DecodeString()
	if err != nil {
		return nil, mpErr(err)
	}
	ot, err := parseWireOffsetType(otStr, "MsgPack")
	if err != nil {
		return nil, err
	}

	doc := bdoc.NewEmptyDocument()
	doc.OffsetType = ot

	textVal, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, mpErr(err)
	}
	switch t := textVal.(type) {
	case nil:
	case string:
		doc.SetText(t)
	default:
		return nil, errors.NewParse("MsgPack", "", fmt.Sprintf("text must be a string, got %T", textVal))
	}

	if doc.Features, err = readFeatures(dec); err != nil {
		return nil, err
	}
	if doc.Features == nil {
		doc.Features = bdoc.Features{}
	}

	nsets, err := dec.DecodeInt64()
	if err != nil {
		return nil, mpErr(err)
	}
	if nsets < 0 {
		return nil, errors.NewParse("MsgPack", "", fmt.Sprintf("negative set count %d", nsets))
	}
	for i := int64(0); i < nsets; i++ {
		set, err := readSet(dec)
		if err != nil {
			return nil, err
		}
		doc.PutSet(set)
	}
	return doc, nil
}

func readFeatures(dec *msgpack.Decoder) (bdoc.Features, error) {
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, mpErr(err)
	}
	return decodeFeatures(v, "MsgPack")
}

func readSet(dec *msgpack.Decoder) (*bdoc.AnnotationSet, error) {
	nameVal, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, mpErr(err)
	}
	name, _ := nameVal.(string)

	nextID, err := dec.DecodeInt64()
	if err != nil {
		return nil, mpErr(err)
	}
	nanns, err := dec.DecodeInt64()
	if err != nil {
		return nil, mpErr(err)
	}

	if nanns < 0 {
		return nil, errors.NewParse("MsgPack", "", fmt.Sprintf("negative annotation count %d in set %q", nanns, name))
	}

	// Counts come from the stream; a short stream fails on the first missing value.
	anns := make([]*bdoc.Annotation, 0, min(nanns, maxPrealloc))
	for j := int64(0); j < nanns; j++ {
		a := &bdoc.Annotation{}
		if a.Type, err = dec.DecodeString(); err != nil {
			return nil, mpErr(err)
		}
		if a.Start, err = dec.DecodeInt64(); err != nil {
			return nil, mpErr(err)
		}
		if a.End, err = dec.DecodeInt64(); err != nil {
			return nil, mpErr(err)
		}
		if a.ID, err = dec.DecodeInt64(); err != nil {
			return nil, mpErr(err)
		}
		if a.Features, err = readFeatures(dec); err != nil {
			return nil, err
		}
		anns = append(anns, a)
	}

	set, err := bdoc.RebuildSet(name, nextID, anns)
	if err != nil {
		return nil, parseErr("MsgPack", err)
	}
	return set, nil
}

// encodeChangeLogMsgPack writes tag, offset type and the command array.
func encodeChangeLogMsgPack(w io.Writer, log *changelog.ChangeLog) error {
	enc := newEncoder(w)
	if err := enc.EncodeString(VersionTag); err != nil {
		return err
	}
	if err := enc.EncodeString(string(log.OffsetType)); err != nil {
		return err
	}
	changes := log.Changes
	if changes == nil {
		changes = []changelog.Command{}
	}
	return enc.Encode(changes)
}

func decodeChangeLogMsgPack(r io.Reader) (*changelog.ChangeLog, error) {
	dec := newDecoder(r)
	if err := readVersion(dec); err != nil {
		return nil, err
	}
	otStr, err := dec.DecodeString()
	if err != nil {
		return nil, mpErr(err)
	}
	ot, err := parseWireOffsetType(otStr, "MsgPack")
	if err != nil {
		return nil, err
	}
	log := &changelog.ChangeLog{OffsetType: ot}
	if err := dec.Decode(&log.Changes); err != nil {
		return nil, mpErr(err)
	}
	if err := normalizeCommands(log, "MsgPack"); err != nil {
		return nil, err
	}
	return log, nil
}
