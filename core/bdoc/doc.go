// Package bdoc provides the in-memory model of a portable annotated document.
//
// A Document carries an immutable text, document-level features and any
// number of named annotation sets. Annotations are stand-off: they refer to
// the text through half-open [Start, End) spans, so annotations may overlap
// freely.
//
// # Offset conventions
//
// Spans count either UTF-16 code units (OffsetCodeUnit, "j") or Unicode code
// points (OffsetCodePoint, "p"). Every annotation of a document uses the
// convention declared by Document.OffsetType; ConvertOffsets rewrites all
// spans at once.
//
// # Ownership
//
// A Document owns its annotation sets and a set owns its annotations.
// Annotations carry no reference back to their set, they are addressed by
// (set name, id). Ids are unique within one set only; each set allocates them
// from its own monotonic counter.
//
// # Example
//
//	doc := bdoc.NewDocument("Hello world")
//	set := doc.GetOrCreateSet("")
//	tok, _ := set.Add("Token", 0, 5, bdoc.Features{"kind": "word"})
//	_ = tok.ID // 0
//	_ = bdoc.ConvertOffsets(doc, bdoc.OffsetCodePoint)
package bdoc
