package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/internal/logging"
	"github.com/FocuswithJustin/bdoc/internal/store"
)

// StoreGroup contains document store operations. --db or store.path
// selects the database.
type StoreGroup struct {
	Put     StorePutCmd     `cmd:"" help:"Add a document to the store"`
	Get     StoreGetCmd     `cmd:"" help:"Write a stored document"`
	List    StoreListCmd    `cmd:"" help:"List stored documents"`
	Apply   StoreApplyCmd   `cmd:"" help:"Apply a change log to a stored document"`
	Merge   StoreMergeCmd   `cmd:"" help:"Merge a document into a stored document"`
	History StoreHistoryCmd `cmd:"" help:"Show the change history of a stored document"`
	Delete  StoreDeleteCmd  `cmd:"" help:"Delete a stored document and its history"`
}

// openStore opens the configured store.
func (g *Globals) openStore() (*store.Store, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store.Path)
}

func printJSON(g *Globals, v any) error {
	enc := json.NewEncoder(g.out())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// StorePutCmd adds a document.
type StorePutCmd struct {
	Path string `arg:"" help:"Document file"`
	Name string `help:"Document name; defaults to the name inside the file"`
}

func (c *StorePutCmd) Run(g *Globals) error {
	doc, err := g.readDocument(c.Path, "")
	if err != nil {
		return err
	}
	if c.Name != "" {
		doc.Name = c.Name
	}

	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	rec, err := st.Put(ctx, doc)
	if err != nil {
		return err
	}
	logging.DocumentStored(ctx, rec.ID, rec.Revision, "kind", store.KindPut)
	fmt.Fprintln(g.out(), rec.ID)
	return nil
}

// StoreGetCmd writes a stored document.
type StoreGetCmd struct {
	ID  string `arg:"" help:"Document id"`
	Out string `short:"o" help:"Output document, or - for stdout" default:"-"`
	To  string `help:"Output format when it cannot be detected"`

	ExportFlags `embed:""`
}

func (c *StoreGetCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	doc, _, err := st.Get(context.Background(), c.ID)
	if err != nil {
		return err
	}
	opts, err := c.ExportFlags.options()
	if err != nil {
		return err
	}
	out, err := bdoc.Export(doc, opts)
	if err != nil {
		return err
	}
	return g.writeDocument(c.Out, c.To, out)
}

// StoreListCmd lists stored documents, newest first.
type StoreListCmd struct {
	JSON bool `help:"Print as JSON"`
}

func (c *StoreListCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.List(context.Background())
	if err != nil {
		return err
	}
	if c.JSON {
		if recs == nil {
			recs = []store.Record{}
		}
		return printJSON(g, recs)
	}

	w := tabwriter.NewWriter(g.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tREVISION\tOFFSETS\tUPDATED")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.Name, r.Revision, r.OffsetType, r.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

// StoreApplyCmd replays a change log against a stored document.
type StoreApplyCmd struct {
	ID  string `arg:"" help:"Document id"`
	Log string `arg:"" help:"Change log file, or - for JSON on stdin"`

	PolicyFlags `embed:""`
}

func (c *StoreApplyCmd) Run(g *Globals) error {
	opts, err := c.PolicyFlags.options(g)
	if err != nil {
		return err
	}
	log, err := g.readChangeLog(c.Log)
	if err != nil {
		return err
	}
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	rec, stats, err := st.ApplyChangeLog(ctx, c.ID, log, opts)
	if err != nil {
		return err
	}
	logging.ReplayApplied(ctx, rec.ID, stats.Applied, stats.Ignored, "revision", rec.Revision)
	fmt.Fprintf(g.out(), "revision %d: %d applied, %d ignored\n", rec.Revision, stats.Applied, stats.Ignored)
	return nil
}

// StoreMergeCmd reconciles a document file into a stored document.
type StoreMergeCmd struct {
	ID       string   `arg:"" help:"Document id"`
	Path     string   `arg:"" help:"Document to merge from"`
	Sets     []string `help:"Only merge these incoming sets"`
	Features []string `help:"Only merge these document features"`

	PolicyFlags `embed:""`
}

func (c *StoreMergeCmd) Run(g *Globals) error {
	opts, err := c.PolicyFlags.options(g)
	if err != nil {
		return err
	}
	opts.SetNames = c.Sets
	opts.FeatureNames = c.Features

	incoming, err := g.readDocument(c.Path, "")
	if err != nil {
		return err
	}
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	rec, sum, err := st.Merge(ctx, c.ID, incoming, opts)
	if err != nil {
		return err
	}
	logging.ReconcileApplied(ctx, rec.ID, sum.Inserted, sum.Replaced, sum.FeaturesUpdated, sum.Ignored, "revision", rec.Revision)
	fmt.Fprintf(g.out(), "revision %d: %d inserted, %d replaced, %d features updated, %d ignored\n",
		rec.Revision, sum.Inserted, sum.Replaced, sum.FeaturesUpdated, sum.Ignored)
	return nil
}

// StoreHistoryCmd prints a document's change entries.
type StoreHistoryCmd struct {
	ID   string `arg:"" help:"Document id"`
	JSON bool   `help:"Print as JSON"`
}

func (c *StoreHistoryCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	hist, err := st.History(context.Background(), c.ID)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(g, hist)
	}

	w := tabwriter.NewWriter(g.out(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REVISION\tKIND\tAPPLIED\tDETAIL")
	for _, h := range hist {
		detail := ""
		switch {
		case h.ChangeLog != nil:
			detail = fmt.Sprintf("%d commands", h.ChangeLog.Len())
		case h.Incoming != nil:
			detail = fmt.Sprintf("%d annotations", h.Incoming.AnnotationCount())
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", h.Revision, h.Kind, h.AppliedAt.UTC().Format(time.RFC3339), detail)
	}
	return w.Flush()
}

// StoreDeleteCmd removes a document.
type StoreDeleteCmd struct {
	ID string `arg:"" help:"Document id"`
}

func (c *StoreDeleteCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(context.Background(), c.ID); err != nil {
		return err
	}
	fmt.Fprintf(g.out(), "deleted %s\n", c.ID)
	return nil
}
