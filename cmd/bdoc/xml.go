package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/FocuswithJustin/bdoc/core/gatexml"
	"github.com/FocuswithJustin/bdoc/core/reconcile"
	"github.com/FocuswithJustin/bdoc/internal/logging"
)

// XMLGroup contains GATE XML operations.
type XMLGroup struct {
	Import XMLImportCmd `cmd:"" help:"Read a GATE XML document into a bdoc file"`
	Export XMLExportCmd `cmd:"" help:"Write a bdoc file as GATE XML"`
}

// XMLImportCmd converts GATE XML to a bdoc file.
type XMLImportCmd struct {
	In  string `arg:"" help:"GATE XML file" type:"existingfile"`
	Out string `arg:"" help:"Output document (.bdocjs, .bdocym, .bdocmp, optionally .gz or .xz), or - for stdout"`
	To  string `help:"Output format when it cannot be detected"`
}

func (c *XMLImportCmd) Run(g *Globals) error {
	f, err := os.Open(c.In)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := gatexml.Parse(f)
	if err != nil {
		logging.CodecError(context.Background(), "gate", "decode", err, "path", c.In)
		return fmt.Errorf("failed to parse %s: %w", c.In, err)
	}
	return g.writeDocument(c.Out, c.To, doc)
}

// XMLExportCmd materializes a bdoc file as a code-unit GATE document
// rebuilt from its text.
type XMLExportCmd struct {
	In  string `arg:"" help:"Input document"`
	Out string `arg:"" help:"GATE XML file, or - for stdout"`
}

func (c *XMLExportCmd) Run(g *Globals) error {
	doc, err := g.readDocument(c.In, "")
	if err != nil {
		return err
	}
	live, _, err := reconcile.Materialize(doc, reconcile.DefaultOptions())
	if err != nil {
		return err
	}
	return g.writeOutput(c.Out, func(w io.Writer) error {
		return gatexml.Write(w, live)
	})
}
