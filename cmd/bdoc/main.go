// Command bdoc converts, inspects, edits and serves annotated documents.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/changelog"
	"github.com/FocuswithJustin/bdoc/core/codec"
	"github.com/FocuswithJustin/bdoc/core/errors"
	"github.com/FocuswithJustin/bdoc/core/gatexml"
	"github.com/FocuswithJustin/bdoc/core/reconcile"
	"github.com/FocuswithJustin/bdoc/internal/config"
)

const version = "0.1.0"

// Globals holds flags shared by every command.
type Globals struct {
	Config    string `help:"YAML configuration file" type:"path" env:"BDOC_CONFIG"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error); overrides the config file"`
	LogFormat string `name:"log-format" help:"Log format (text, json); overrides the config file"`
	DB        string `name:"db" help:"Store database path; overrides store.path" type:"path"`

	stdin  io.Reader
	stdout io.Writer
	cfg    *config.Config
}

// CLI defines the command-line interface for bdoc.
type CLI struct {
	Globals

	Convert  ConvertCmd  `cmd:"" help:"Convert a document between formats"`
	Info     InfoCmd     `cmd:"" help:"Summarize a document"`
	Offsets  OffsetsCmd  `cmd:"" help:"Map offsets between code units and code points"`
	Select   SelectCmd   `cmd:"" help:"Copy a subset of annotation sets and types"`
	Replay   ReplayCmd   `cmd:"" help:"Apply a change log to a document"`
	Merge    MergeCmd    `cmd:"" help:"Reconcile one document into another"`
	Snapshot SnapshotCmd `cmd:"" help:"Record a document as a change log"`
	XML      XMLGroup    `cmd:"" name:"xml" help:"GATE XML import and export"`
	Store    StoreGroup  `cmd:"" help:"Document store operations"`
	Serve    ServeCmd    `cmd:"" help:"Start the REST API server"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// config loads the configuration once, applies flag overrides and
// initializes logging.
func (g *Globals) config() (*config.Config, error) {
	if g.cfg != nil {
		return g.cfg, nil
	}
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Logging.Format = g.LogFormat
	}
	if g.DB != "" {
		cfg.Store.Path = g.DB
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.InitLogging(); err != nil {
		return nil, err
	}
	g.cfg = cfg
	return cfg, nil
}

func (g *Globals) out() io.Writer {
	if g.stdout == nil {
		return os.Stdout
	}
	return g.stdout
}

func (g *Globals) in() io.Reader {
	if g.stdin == nil {
		return os.Stdin
	}
	return g.stdin
}

// PolicyFlags select reconcile policies; empty values use the configured
// defaults.
type PolicyFlags struct {
	New      string `name:"new" help:"Policy for new annotation ids (use-source-id, assign-fresh-id)"`
	Existing string `name:"existing" help:"Policy for existing annotation ids (add-with-fresh-id, replace-annotation, replace-features, merge-features-overwrite, merge-features-add-only, ignore)"`
}

func (p PolicyFlags) options(g *Globals) (reconcile.Options, error) {
	cfg, err := g.config()
	if err != nil {
		return reconcile.Options{}, err
	}
	opts := cfg.ReconcileOptions()
	if p.New != "" {
		if opts.NewAnnotations, err = reconcile.ParseNewAnnotationPolicy(p.New); err != nil {
			return opts, err
		}
	}
	if p.Existing != "" {
		if opts.ExistingAnnotations, err = reconcile.ParseExistingAnnotationPolicy(p.Existing); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// isXML reports whether path names a GATE XML file.
func isXML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xml")
}

// streamFormat resolves an explicit format name. "gate" and "xml" select
// GATE XML.
func streamFormat(name string) (codec.Format, bool, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return codec.FormatJSON, false, nil
	case "gate", "xml":
		return "", true, nil
	}
	f, err := codec.ParseFormat(name)
	return f, false, err
}

// readDocument loads a document. Files are detected by extension unless
// format is set; "-" reads stdin.
func (g *Globals) readDocument(path, format string) (*bdoc.Document, error) {
	if path != "-" && format == "" {
		if isXML(path) {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			return gatexml.Parse(f)
		}
		return codec.ReadDocumentFile(path)
	}

	f, gate, err := streamFormat(format)
	if err != nil {
		return nil, err
	}
	r := g.in()
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		r = file
	}
	if gate {
		return gatexml.Parse(r)
	}
	return codec.DecodeDocument(r, f)
}

// writeDocument stores doc. Files are detected by extension unless format
// is set; "-" writes stdout.
func (g *Globals) writeDocument(path, format string, doc *bdoc.Document) error {
	if path != "-" && format == "" {
		if !isXML(path) {
			return codec.WriteDocumentFile(path, doc)
		}
		format = "gate"
	}

	f, gate, err := streamFormat(format)
	if err != nil {
		return err
	}
	return g.writeOutput(path, func(w io.Writer) error {
		if gate {
			return gatexml.Write(w, doc)
		}
		return codec.EncodeDocument(w, doc, f)
	})
}

// createFile opens an output file; tests replace it to inject failures.
var createFile = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// writeOutput runs write against stdout for "-" or a newly created file. A
// failed close is reported like a failed write.
func (g *Globals) writeOutput(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(g.out())
	}
	file, err := createFile(path)
	if err != nil {
		return errors.NewIO("create", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return errors.NewIO("close", path, err)
	}
	return nil
}

// readChangeLog loads a change log file, or JSON from stdin for "-".
func (g *Globals) readChangeLog(path string) (*changelog.ChangeLog, error) {
	if path == "-" {
		return codec.DecodeChangeLog(g.in(), codec.FormatJSON)
	}
	return codec.ReadChangeLogFile(path)
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Fprintf(g.out(), "bdoc version %s\n", version)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bdoc"),
		kong.Description("Annotated document toolkit: formats, offsets, change logs and a document store"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	_, err := cli.Globals.config()
	ctx.FatalIfErrorf(err)
	err = ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
