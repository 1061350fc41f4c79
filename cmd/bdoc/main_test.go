package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/changelog"
	"github.com/FocuswithJustin/bdoc/core/codec"
	"github.com/FocuswithJustin/bdoc/core/errors"
	"github.com/FocuswithJustin/bdoc/core/reconcile"
	"github.com/FocuswithJustin/bdoc/internal/store"
)

// Test helper functions

func newGlobals(t *testing.T) (*Globals, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	g := &Globals{
		DB:     filepath.Join(t.TempDir(), "bdoc.db"),
		stdout: &out,
	}
	return g, &out
}

func testDocument(t *testing.T) *bdoc.Document {
	t.Helper()
	doc := bdoc.NewDocument("Hello \U0001F30D world")
	doc.Name = "greeting"
	doc.Features["lang"] = "en"
	if _, err := doc.GetOrCreateSet("").AddWithID(0, "Token", 0, 5, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := doc.GetOrCreateSet("Entities").AddWithID(0, "Planet", 6, 8, bdoc.Features{"kind": "earth"}); err != nil {
		t.Fatal(err)
	}
	return doc
}

func writeTestDocument(t *testing.T, dir, name string, doc *bdoc.Document) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := codec.WriteDocumentFile(path, doc); err != nil {
		t.Fatalf("failed to write test document: %v", err)
	}
	return path
}

func readTestDocument(t *testing.T, path string) *bdoc.Document {
	t.Helper()
	doc, err := codec.ReadDocumentFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return doc
}

func annotation(t *testing.T, doc *bdoc.Document, set string, id int64) *bdoc.Annotation {
	t.Helper()
	s, ok := doc.Set(set)
	if !ok {
		t.Fatalf("set %q not found", set)
	}
	a, ok := s.Get(id)
	if !ok {
		t.Fatalf("annotation %d not found in set %q", id, set)
	}
	return a
}

// Tests for document commands

func TestConvertCmd_Run(t *testing.T) {
	dir := t.TempDir()
	in := writeTestDocument(t, dir, "in.bdocjs", testDocument(t))

	tests := []struct {
		name string
		cmd  ConvertCmd
		want func(t *testing.T, doc *bdoc.Document)
	}{
		{
			name: "json to msgpack",
			cmd:  ConvertCmd{In: in, Out: filepath.Join(dir, "out.bdocmp")},
			want: func(t *testing.T, doc *bdoc.Document) {
				if doc.AnnotationCount() != 2 {
					t.Errorf("AnnotationCount() = %d, want 2", doc.AnnotationCount())
				}
			},
		},
		{
			name: "compressed yaml with code points",
			cmd: ConvertCmd{In: in, Out: filepath.Join(dir, "out.bdocym.gz"),
				ExportFlags: ExportFlags{Offsets: "p"}},
			want: func(t *testing.T, doc *bdoc.Document) {
				if doc.OffsetType != bdoc.OffsetCodePoint {
					t.Errorf("OffsetType = %q, want p", doc.OffsetType)
				}
				if a := annotation(t, doc, "Entities", 0); a.Start != 6 || a.End != 7 {
					t.Errorf("Planet = %d..%d, want 6..7", a.Start, a.End)
				}
			},
		},
		{
			name: "selected set and features",
			cmd: ConvertCmd{In: in, Out: filepath.Join(dir, "entities.bdocjs"),
				ExportFlags: ExportFlags{Sets: "Entities", Features: []string{}}},
			want: func(t *testing.T, doc *bdoc.Document) {
				if names := doc.SetNames(); len(names) != 1 || names[0] != "Entities" {
					t.Errorf("SetNames() = %v, want [Entities]", names)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newGlobals(t)
			if err := tt.cmd.Run(g); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			tt.want(t, readTestDocument(t, tt.cmd.Out))
		})
	}
}

func TestConvertCmd_Stdio(t *testing.T) {
	doc := testDocument(t)
	var in bytes.Buffer
	if err := codec.EncodeDocument(&in, doc, codec.FormatJSON); err != nil {
		t.Fatal(err)
	}

	g, out := newGlobals(t)
	g.stdin = &in
	cmd := ConvertCmd{In: "-", Out: "-", To: "yaml"}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got, err := codec.DecodeDocument(out, codec.FormatYAML)
	if err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if got.Text() != doc.Text() {
		t.Errorf("Text() = %q, want %q", got.Text(), doc.Text())
	}
}

func TestConvertCmd_UnknownSet(t *testing.T) {
	dir := t.TempDir()
	in := writeTestDocument(t, dir, "in.bdocjs", testDocument(t))

	g, _ := newGlobals(t)
	cmd := ConvertCmd{In: in, Out: filepath.Join(dir, "out.bdocjs"), ExportFlags: ExportFlags{Sets: "Missing"}}
	err := cmd.Run(g)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Run() error = %v, want not found", err)
	}
}

func TestInfoCmd_Run(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDocument(t, dir, "doc.bdocjs", testDocument(t))

	t.Run("json", func(t *testing.T) {
		g, out := newGlobals(t)
		cmd := InfoCmd{Path: path, JSON: true}
		if err := cmd.Run(g); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		var info DocumentInfo
		if err := json.Unmarshal(out.Bytes(), &info); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if info.CodeUnits != 14 || info.CodePoints != 13 {
			t.Errorf("lengths = %d/%d, want 14/13", info.CodeUnits, info.CodePoints)
		}
		if len(info.Sets) != 2 {
			t.Errorf("len(Sets) = %d, want 2", len(info.Sets))
		}
		if info.TextHash == "" {
			t.Error("TextHash is empty")
		}
		if len(info.Problems) != 0 {
			t.Errorf("Problems = %v, want none", info.Problems)
		}
	})

	t.Run("table", func(t *testing.T) {
		g, out := newGlobals(t)
		cmd := InfoCmd{Path: path}
		if err := cmd.Run(g); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		for _, want := range []string{"greeting", "14 code units, 13 code points", "(default)", "Entities"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("output missing %q:\n%s", want, out.String())
			}
		}
	})
}

func TestOffsetsCmd_Run(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDocument(t, dir, "doc.bdocjs", testDocument(t))

	tests := []struct {
		name    string
		cmd     OffsetsCmd
		want    string
		wantErr bool
	}{
		{"lengths", OffsetsCmd{Path: path, From: "j"}, "code units: 14\ncode points: 13\n", false},
		{"code units", OffsetsCmd{Path: path, From: "j", Offsets: []int64{6, 8, 14}}, "j=6 p=6\nj=8 p=7\nj=14 p=13\n", false},
		{"code points", OffsetsCmd{Path: path, From: "p", Offsets: []int64{7, 13}}, "p=7 j=8\np=13 j=14\n", false},
		{"inside surrogate pair", OffsetsCmd{Path: path, From: "j", Offsets: []int64{7}}, "j=7 p=6\n", false},
		{"negative", OffsetsCmd{Path: path, From: "j", Offsets: []int64{-1}}, "", true},
		{"past end", OffsetsCmd{Path: path, From: "p", Offsets: []int64{14}}, "", true},
		{"bad convention", OffsetsCmd{Path: path, From: "bytes", Offsets: []int64{1}}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, out := newGlobals(t)
			err := tt.cmd.Run(g)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && out.String() != tt.want {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestSelectCmd_Run(t *testing.T) {
	dir := t.TempDir()
	in := writeTestDocument(t, dir, "in.bdocjs", testDocument(t))
	out := filepath.Join(dir, "out.bdocjs")

	g, _ := newGlobals(t)
	cmd := SelectCmd{In: in, Out: out, Sets: "Entities:Planet;Missing"}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	doc := readTestDocument(t, out)
	if names := doc.SetNames(); len(names) != 1 || names[0] != "Entities" {
		t.Errorf("SetNames() = %v, want [Entities]", names)
	}
	if doc.Text() != "Hello \U0001F30D world" {
		t.Errorf("Text() = %q", doc.Text())
	}
}

func TestReplayCmd_Run(t *testing.T) {
	dir := t.TempDir()
	in := writeTestDocument(t, dir, "in.bdocjs", testDocument(t))

	log := changelog.NewRecorder(bdoc.OffsetCodePoint).
		SetDocFeature("reviewed", true).
		AddAnnotation("Words", 0, "Word", 8, 13, bdoc.Features{"pos": "NN"}).
		RemoveAnnotationFeature("Entities", 0, "kind").
		Log()
	logPath := filepath.Join(dir, "changes.bdocjs")
	if err := codec.WriteChangeLogFile(logPath, log); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.bdocjs")
	g, _ := newGlobals(t)
	cmd := ReplayCmd{Doc: in, Log: logPath, Out: out}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	doc := readTestDocument(t, out)
	if doc.Features["reviewed"] != true {
		t.Errorf("reviewed = %v, want true", doc.Features["reviewed"])
	}
	if a := annotation(t, doc, "Words", 0); a.Start != 9 || a.End != 14 {
		t.Errorf("Word = %d..%d, want 9..14", a.Start, a.End)
	}
	if a := annotation(t, doc, "Entities", 0); a.Features.Has("kind") {
		t.Errorf("Planet features = %v, kind should be removed", a.Features)
	}
}

func TestReplayCmd_FailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	in := writeTestDocument(t, dir, "in.bdocjs", testDocument(t))

	log := changelog.NewRecorder(bdoc.OffsetCodeUnit).
		SetDocFeature("reviewed", true).
		RemoveAnnotationFeature("Entities", 9, "kind").
		Log()
	var stdin bytes.Buffer
	if err := codec.EncodeChangeLog(&stdin, log, codec.FormatJSON); err != nil {
		t.Fatal(err)
	}

	g, out := newGlobals(t)
	g.stdin = &stdin
	cmd := ReplayCmd{Doc: in, Log: "-", Out: "-"}
	if err := cmd.Run(g); err == nil {
		t.Fatal("Run() expected error")
	}
	if out.Len() != 0 {
		t.Errorf("output = %q, want nothing", out.String())
	}
}

func TestReplayCmd_BadPolicy(t *testing.T) {
	g, _ := newGlobals(t)
	cmd := ReplayCmd{Doc: "doc.bdocjs", Log: "log.bdocjs", PolicyFlags: PolicyFlags{Existing: "clobber"}}
	if err := cmd.Run(g); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Run() error = %v, want invalid input", err)
	}
}

func TestMergeCmd_Run(t *testing.T) {
	dir := t.TempDir()
	target := writeTestDocument(t, dir, "target.bdocjs", testDocument(t))

	incoming := bdoc.NewDocument("Hello \U0001F30D world")
	incoming.Features["source"] = "tagger"
	incoming.GetOrCreateSet("Extra").AddWithID(3, "Greeting", 0, 5, nil)
	incoming.GetOrCreateSet("Entities").AddWithID(0, "Planet", 6, 8, bdoc.Features{"kind": "home"})
	incPath := writeTestDocument(t, dir, "incoming.bdocjs", incoming)

	out := filepath.Join(dir, "out.bdocjs")
	g, _ := newGlobals(t)
	cmd := MergeCmd{Target: target, Incoming: incPath, Out: out,
		PolicyFlags: PolicyFlags{Existing: "merge-features-overwrite"}}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	doc := readTestDocument(t, out)
	if a := annotation(t, doc, "Extra", 3); a.Type != "Greeting" {
		t.Errorf("Extra[3].Type = %q, want Greeting", a.Type)
	}
	if a := annotation(t, doc, "Entities", 0); a.Features["kind"] != "home" {
		t.Errorf("Planet kind = %v, want home", a.Features["kind"])
	}
	if doc.Features["source"] != "tagger" || doc.Features["lang"] != "en" {
		t.Errorf("Features = %v", doc.Features)
	}
}

func TestMergeCmd_SetFilter(t *testing.T) {
	dir := t.TempDir()
	target := writeTestDocument(t, dir, "target.bdocjs", testDocument(t))

	incoming := bdoc.NewDocument("Hello \U0001F30D world")
	incoming.GetOrCreateSet("Extra").Add("Greeting", 0, 5, nil)
	incoming.GetOrCreateSet("Other").Add("Word", 9, 14, nil)
	incPath := writeTestDocument(t, dir, "incoming.bdocjs", incoming)

	out := filepath.Join(dir, "out.bdocjs")
	g, _ := newGlobals(t)
	cmd := MergeCmd{Target: target, Incoming: incPath, Out: out, Sets: []string{"Other"}}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	doc := readTestDocument(t, out)
	if _, ok := doc.Set("Extra"); ok {
		t.Error("set Extra should not be merged")
	}
	if _, ok := doc.Set("Other"); !ok {
		t.Error("set Other should be merged")
	}
}

func TestSnapshotCmd_Run(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDocument(t, dir, "doc.bdocjs", testDocument(t))

	g, out := newGlobals(t)
	cmd := SnapshotCmd{Doc: path, Out: "-"}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	log, err := codec.DecodeChangeLog(out, codec.FormatJSON)
	if err != nil {
		t.Fatalf("output is not a JSON change log: %v", err)
	}

	// Replaying the snapshot onto the bare text rebuilds the annotations.
	rebuilt := bdoc.NewDocument("Hello \U0001F30D world")
	if _, err := changelog.NewReplayer(rebuilt, reconcile.DefaultOptions()).Apply(log); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if rebuilt.AnnotationCount() != 2 {
		t.Errorf("AnnotationCount() = %d, want 2", rebuilt.AnnotationCount())
	}
	if a := annotation(t, rebuilt, "Entities", 0); a.Start != 6 || a.End != 8 {
		t.Errorf("Planet = %d..%d, want 6..8", a.Start, a.End)
	}
}

// Tests for XML commands

func TestXMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := writeTestDocument(t, dir, "in.bdocjs", testDocument(t))
	xmlPath := filepath.Join(dir, "doc.xml")
	back := filepath.Join(dir, "back.bdocjs")

	g, _ := newGlobals(t)
	export := XMLExportCmd{In: in, Out: xmlPath}
	if err := export.Run(g); err != nil {
		t.Fatalf("export Run() error = %v", err)
	}
	imp := XMLImportCmd{In: xmlPath, Out: back}
	if err := imp.Run(g); err != nil {
		t.Fatalf("import Run() error = %v", err)
	}

	doc := readTestDocument(t, back)
	if doc.Text() != "Hello \U0001F30D world" {
		t.Errorf("Text() = %q", doc.Text())
	}
	if a := annotation(t, doc, "Entities", 0); a.Type != "Planet" || a.Start != 6 || a.End != 8 {
		t.Errorf("Planet = %s %d..%d, want Planet 6..8", a.Type, a.Start, a.End)
	}
	if doc.Features["lang"] != "en" {
		t.Errorf("lang = %v, want en", doc.Features["lang"])
	}
}

func TestXMLExportCmd_Stdout(t *testing.T) {
	dir := t.TempDir()
	in := writeTestDocument(t, dir, "in.bdocjs", testDocument(t))

	g, out := newGlobals(t)
	cmd := XMLExportCmd{In: in, Out: "-"}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "GateDocument") {
		t.Errorf("output is not GATE XML:\n%s", out.String())
	}
}

type failingCloser struct {
	bytes.Buffer
}

func (f *failingCloser) Close() error {
	return fmt.Errorf("disk full")
}

func TestWriteOutputReportsCloseError(t *testing.T) {
	orig := createFile
	defer func() { createFile = orig }()
	var written *failingCloser
	createFile = func(string) (io.WriteCloser, error) {
		written = &failingCloser{}
		return written, nil
	}

	dir := t.TempDir()
	in := writeTestDocument(t, dir, "in.bdocjs", testDocument(t))
	g, _ := newGlobals(t)

	tests := []struct {
		name string
		run  func() error
	}{
		{"convert to stream format", func() error {
			cmd := ConvertCmd{In: in, Out: filepath.Join(dir, "out.json"), To: "json"}
			return cmd.Run(g)
		}},
		{"xml export", func() error {
			cmd := XMLExportCmd{In: in, Out: filepath.Join(dir, "out.xml")}
			return cmd.Run(g)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			var ioErr *errors.IOError
			if !errors.As(err, &ioErr) || ioErr.Operation != "close" {
				t.Fatalf("Run() error = %v, want close IOError", err)
			}
			if written == nil || written.Len() == 0 {
				t.Error("nothing was written before close")
			}
		})
	}
}

// Tests for store commands

func TestStoreCommands(t *testing.T) {
	dir := t.TempDir()
	path := writeTestDocument(t, dir, "doc.bdocjs", testDocument(t))
	g, out := newGlobals(t)

	put := StorePutCmd{Path: path, Name: "stored"}
	if err := put.Run(g); err != nil {
		t.Fatalf("put Run() error = %v", err)
	}
	id := strings.TrimSpace(out.String())
	if id == "" {
		t.Fatal("put printed no id")
	}

	out.Reset()
	list := StoreListCmd{JSON: true}
	if err := list.Run(g); err != nil {
		t.Fatalf("list Run() error = %v", err)
	}
	var recs []store.Record
	if err := json.Unmarshal(out.Bytes(), &recs); err != nil {
		t.Fatalf("list output is not JSON: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != id || recs[0].Name != "stored" || recs[0].Revision != 1 {
		t.Fatalf("list = %+v", recs)
	}

	log := changelog.NewRecorder(bdoc.OffsetCodePoint).
		AddAnnotation("Words", 0, "Word", 8, 13, nil).
		Log()
	logPath := filepath.Join(dir, "changes.bdocjs")
	if err := codec.WriteChangeLogFile(logPath, log); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	apply := StoreApplyCmd{ID: id, Log: logPath}
	if err := apply.Run(g); err != nil {
		t.Fatalf("apply Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "revision 2: 1 applied") {
		t.Errorf("apply output = %q", out.String())
	}

	incoming := bdoc.NewDocument("Hello \U0001F30D world")
	incoming.Features["source"] = "tagger"
	incPath := writeTestDocument(t, dir, "incoming.bdocjs", incoming)
	out.Reset()
	merge := StoreMergeCmd{ID: id, Path: incPath}
	if err := merge.Run(g); err != nil {
		t.Fatalf("merge Run() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "revision 3:") {
		t.Errorf("merge output = %q", out.String())
	}

	out.Reset()
	history := StoreHistoryCmd{ID: id, JSON: true}
	if err := history.Run(g); err != nil {
		t.Fatalf("history Run() error = %v", err)
	}
	var hist []store.Change
	if err := json.Unmarshal(out.Bytes(), &hist); err != nil {
		t.Fatalf("history output is not JSON: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(hist))
	}

	out.Reset()
	historyTable := StoreHistoryCmd{ID: id}
	if err := historyTable.Run(g); err != nil {
		t.Fatalf("history Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "1 commands") {
		t.Errorf("history table missing change log detail:\n%s", out.String())
	}

	got := filepath.Join(dir, "got.bdocjs")
	get := StoreGetCmd{ID: id, Out: got, ExportFlags: ExportFlags{Offsets: "p"}}
	if err := get.Run(g); err != nil {
		t.Fatalf("get Run() error = %v", err)
	}
	doc := readTestDocument(t, got)
	if a := annotation(t, doc, "Words", 0); a.Start != 8 || a.End != 13 {
		t.Errorf("Word = %d..%d, want 8..13", a.Start, a.End)
	}
	if doc.Features["source"] != "tagger" {
		t.Errorf("source = %v, want tagger", doc.Features["source"])
	}

	out.Reset()
	del := StoreDeleteCmd{ID: id}
	if err := del.Run(g); err != nil {
		t.Fatalf("delete Run() error = %v", err)
	}
	if err := get.Run(g); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("get after delete error = %v, want not found", err)
	}
}

func TestStoreListCmd_Empty(t *testing.T) {
	g, out := newGlobals(t)
	cmd := StoreListCmd{JSON: true}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strings.TrimSpace(out.String()) != "[]" {
		t.Errorf("output = %q, want []", out.String())
	}
}

// Tests for globals and parsing

func TestVersionCmd_Run(t *testing.T) {
	g, out := newGlobals(t)
	cmd := VersionCmd{}
	if err := cmd.Run(g); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.String() != "bdoc version "+version+"\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestGlobalsConfigOverrides(t *testing.T) {
	g, _ := newGlobals(t)
	g.LogLevel = "debug"
	g.LogFormat = "json"
	cfg, err := g.config()
	if err != nil {
		t.Fatalf("config() error = %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" || cfg.Store.Path != g.DB {
		t.Errorf("config = %+v", cfg)
	}
	again, _ := g.config()
	if again != cfg {
		t.Error("config() should be cached")
	}

	bad := &Globals{LogLevel: "loud"}
	if _, err := bad.config(); err == nil {
		t.Error("config() expected error for bad log level")
	}
}

func TestCLIParse(t *testing.T) {
	tests := []struct {
		args    []string
		command string
	}{
		{[]string{"convert", "a.bdocjs", "b.bdocmp", "--sets", "Entities"}, "convert <in> <out>"},
		{[]string{"offsets", "doc.bdocjs", "1", "2", "--from", "p"}, "offsets <path> <offsets>"},
		{[]string{"replay", "doc.bdocjs", "log.bdocjs", "--existing", "ignore"}, "replay <doc> <log>"},
		{[]string{"store", "put", "doc.bdocjs", "--db", "x.db"}, "store put <path>"},
		{[]string{"serve", "--port", "9000"}, "serve"},
		{[]string{"version"}, "version"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			var cli CLI
			parser, err := kong.New(&cli, kong.Name("bdoc"), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
			if err != nil {
				t.Fatalf("kong.New() error = %v", err)
			}
			ctx, err := parser.Parse(tt.args)
			if err != nil {
				t.Fatalf("Parse(%v) error = %v", tt.args, err)
			}
			if ctx.Command() != tt.command {
				t.Errorf("Command() = %q, want %q", ctx.Command(), tt.command)
			}
		})
	}
}
