package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/changelog"
	"github.com/FocuswithJustin/bdoc/core/codec"
	"github.com/FocuswithJustin/bdoc/core/offsets"
	"github.com/FocuswithJustin/bdoc/core/reconcile"
	"github.com/FocuswithJustin/bdoc/internal/logging"
)

// ExportFlags choose what part of a document is written.
type ExportFlags struct {
	Sets     string   `help:"Set selector, e.g. 'Original:Token,Sentence;Key'"`
	Features []string `help:"Document features to keep"`
	Offsets  string   `help:"Offset convention of the output: j (code units) or p (code points)"`
}

func (e ExportFlags) options() (bdoc.ExportOptions, error) {
	var opts bdoc.ExportOptions
	specs, err := bdoc.ParseSelector(e.Sets)
	if err != nil {
		return opts, err
	}
	opts.Sets = specs
	opts.Features = e.Features
	if e.Offsets != "" {
		if opts.OffsetType, err = bdoc.ParseOffsetType(e.Offsets); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// ConvertCmd converts a document between formats.
type ConvertCmd struct {
	In   string `arg:"" help:"Input document, or - for stdin"`
	Out  string `arg:"" help:"Output document, or - for stdout"`
	From string `help:"Input format (json, yaml, msgpack, gate); detected from the file name when empty"`
	To   string `help:"Output format (json, yaml, msgpack, gate); detected from the file name when empty"`

	ExportFlags `embed:""`
}

func (c *ConvertCmd) Run(g *Globals) error {
	doc, err := g.readDocument(c.In, c.From)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.In, err)
	}
	opts, err := c.ExportFlags.options()
	if err != nil {
		return err
	}
	out, err := bdoc.Export(doc, opts)
	if err != nil {
		return err
	}
	if err := g.writeDocument(c.Out, c.To, out); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.Out, err)
	}
	return nil
}

// InfoCmd summarizes a document.
type InfoCmd struct {
	Path   string `arg:"" help:"Document file, or - for stdin"`
	Format string `help:"Input format when it cannot be detected"`
	JSON   bool   `help:"Print as JSON"`
}

// DocumentInfo is the summary printed by the info command.
type DocumentInfo struct {
	Name       string    `json:"name,omitempty"`
	OffsetType string    `json:"offset_type"`
	HasText    bool      `json:"has_text"`
	CodeUnits  int64     `json:"code_units"`
	CodePoints int64     `json:"code_points"`
	TextHash   string    `json:"text_hash,omitempty"`
	Features   []string  `json:"features"`
	Sets       []SetInfo `json:"sets"`
	Problems   []string  `json:"problems,omitempty"`
}

// SetInfo summarizes one annotation set.
type SetInfo struct {
	Name        string   `json:"name"`
	Annotations int      `json:"annotations"`
	NextID      int64    `json:"next_id"`
	Types       []string `json:"types"`
}

func describe(doc *bdoc.Document) DocumentInfo {
	info := DocumentInfo{
		Name:       doc.Name,
		OffsetType: string(doc.OffsetType),
		HasText:    doc.HasText(),
		Features:   doc.Features.Keys(),
		Sets:       []SetInfo{},
	}
	if doc.HasText() {
		info.CodeUnits = offsets.CodeUnitLen(doc.Text())
		info.CodePoints = offsets.CodePointLen(doc.Text())
		info.TextHash = bdoc.TextHash(doc)
	}
	for _, set := range doc.Sets() {
		info.Sets = append(info.Sets, SetInfo{
			Name:        set.Name(),
			Annotations: set.Len(),
			NextID:      set.NextID(),
			Types:       set.Types(),
		})
	}
	for _, err := range bdoc.Validate(doc) {
		info.Problems = append(info.Problems, err.Error())
	}
	return info
}

func (c *InfoCmd) Run(g *Globals) error {
	doc, err := g.readDocument(c.Path, c.Format)
	if err != nil {
		return err
	}
	info := describe(doc)

	if c.JSON {
		enc := json.NewEncoder(g.out())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	w := tabwriter.NewWriter(g.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", info.Name)
	fmt.Fprintf(w, "Offsets:\t%s\n", bdoc.OffsetType(info.OffsetType))
	if info.HasText {
		fmt.Fprintf(w, "Text:\t%d code units, %d code points\n", info.CodeUnits, info.CodePoints)
		fmt.Fprintf(w, "Text hash:\t%s\n", info.TextHash)
	} else {
		fmt.Fprintf(w, "Text:\t(none)\n")
	}
	fmt.Fprintf(w, "Features:\t%s\n", strings.Join(info.Features, ", "))
	fmt.Fprintf(w, "\nSET\tANNOTATIONS\tNEXT ID\tTYPES\n")
	for _, s := range info.Sets {
		name := s.Name
		if name == "" {
			name = "(default)"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", name, s.Annotations, s.NextID, strings.Join(s.Types, ","))
	}
	if len(info.Problems) > 0 {
		fmt.Fprintf(w, "\nProblems:\n")
		for _, p := range info.Problems {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	return w.Flush()
}

// OffsetsCmd maps offsets over a document's text.
type OffsetsCmd struct {
	Path    string  `arg:"" help:"Document file"`
	Offsets []int64 `arg:"" optional:"" help:"Offsets to map"`
	From    string  `help:"Convention of the given offsets: j (code units) or p (code points)" default:"j"`
}

func (c *OffsetsCmd) Run(g *Globals) error {
	doc, err := g.readDocument(c.Path, "")
	if err != nil {
		return err
	}
	from, err := bdoc.ParseOffsetType(c.From)
	if err != nil {
		return err
	}
	ix := offsets.New(doc.Text())

	out := g.out()
	if len(c.Offsets) == 0 {
		fmt.Fprintf(out, "code units: %d\ncode points: %d\n", ix.CodeUnitLen(), ix.CodePointLen())
		return nil
	}
	for _, off := range c.Offsets {
		if from == bdoc.OffsetCodeUnit {
			p, err := ix.ToCodePoint(off)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "j=%d p=%d\n", off, p)
		} else {
			j, err := ix.ToCodeUnit(off)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "p=%d j=%d\n", off, j)
		}
	}
	return nil
}

// SelectCmd copies a subset of a document. Unknown sets are skipped.
type SelectCmd struct {
	In   string `arg:"" help:"Input document"`
	Out  string `arg:"" help:"Output document, or - for stdout"`
	Sets string `required:"" help:"Set selector, e.g. 'Original:Token,Sentence;Key'"`
	To   string `help:"Output format when it cannot be detected"`
}

func (c *SelectCmd) Run(g *Globals) error {
	doc, err := g.readDocument(c.In, "")
	if err != nil {
		return err
	}
	specs, err := bdoc.ParseSelector(c.Sets)
	if err != nil {
		return err
	}
	return g.writeDocument(c.Out, c.To, bdoc.SelectSubset(doc, specs))
}

// ReplayCmd applies a change log and writes the result. Nothing is written
// when a command fails.
type ReplayCmd struct {
	Doc string `arg:"" help:"Document to update"`
	Log string `arg:"" help:"Change log file, or - for JSON on stdin"`
	Out string `short:"o" help:"Output document, or - for stdout" default:"-"`
	To  string `help:"Output format when it cannot be detected"`

	PolicyFlags `embed:""`
}

func (c *ReplayCmd) Run(g *Globals) error {
	opts, err := c.PolicyFlags.options(g)
	if err != nil {
		return err
	}
	doc, err := g.readDocument(c.Doc, "")
	if err != nil {
		return err
	}
	log, err := g.readChangeLog(c.Log)
	if err != nil {
		return err
	}

	stats, err := changelog.NewReplayer(doc, opts).Apply(log)
	if err != nil {
		return fmt.Errorf("replay stopped after %d commands: %w", stats.Applied+stats.Ignored, err)
	}
	logging.ReplayApplied(context.Background(), c.Doc, stats.Applied, stats.Ignored)
	return g.writeDocument(c.Out, c.To, doc)
}

// MergeCmd reconciles an incoming document into a target.
type MergeCmd struct {
	Target   string   `arg:"" help:"Document to merge into"`
	Incoming string   `arg:"" help:"Document to merge from"`
	Out      string   `short:"o" help:"Output document, or - for stdout" default:"-"`
	To       string   `help:"Output format when it cannot be detected"`
	Sets     []string `help:"Only merge these incoming sets"`
	Features []string `help:"Only merge these document features"`

	PolicyFlags `embed:""`
}

func (c *MergeCmd) Run(g *Globals) error {
	opts, err := c.PolicyFlags.options(g)
	if err != nil {
		return err
	}
	opts.SetNames = c.Sets
	opts.FeatureNames = c.Features

	target, err := g.readDocument(c.Target, "")
	if err != nil {
		return err
	}
	incoming, err := g.readDocument(c.Incoming, "")
	if err != nil {
		return err
	}

	sum, err := reconcile.New(opts).Document(target, incoming)
	if err != nil {
		return err
	}
	logging.ReconcileApplied(context.Background(), c.Target, sum.Inserted, sum.Replaced, sum.FeaturesUpdated, sum.Ignored)
	return g.writeDocument(c.Out, c.To, target)
}

// SnapshotCmd writes a change log that rebuilds the document's content.
type SnapshotCmd struct {
	Doc string `arg:"" help:"Document to record"`
	Out string `short:"o" help:"Change log file (.bdocjs, .bdocym, .bdocmp), or - for JSON on stdout" default:"-"`
}

func (c *SnapshotCmd) Run(g *Globals) error {
	doc, err := g.readDocument(c.Doc, "")
	if err != nil {
		return err
	}
	log := changelog.Snapshot(doc)
	if c.Out == "-" {
		return codec.EncodeChangeLog(g.out(), log, codec.FormatJSON)
	}
	return codec.WriteChangeLogFile(c.Out, log)
}
