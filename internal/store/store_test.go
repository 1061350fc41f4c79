package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/changelog"
	"github.com/FocuswithJustin/bdoc/core/errors"
	"github.com/FocuswithJustin/bdoc/core/reconcile"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	clock := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("doc-%03d", n)
	}
	return s
}

func testDocument(t *testing.T) *bdoc.Document {
	t.Helper()
	doc := bdoc.NewDocument("Hello \U0001F30D world")
	doc.Name = "greeting"
	doc.Features["lang"] = "en"
	if _, err := doc.GetOrCreateSet("").AddWithID(0, "Token", 0, 5, nil); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestApplySchema(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"documents", "changes"} {
		var name string
		err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
	// Applying twice is harmless.
	if err := ApplySchema(s.db); err != nil {
		t.Errorf("ApplySchema() again error = %v", err)
	}
}

func TestPutAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := testDocument(t)
	rec, err := s.Put(ctx, doc)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if rec.ID != "doc-001" || rec.Revision != 1 || rec.Name != "greeting" {
		t.Errorf("Put() = %+v", rec)
	}
	if rec.TextHash != bdoc.TextHash(doc) {
		t.Errorf("TextHash = %q, want %q", rec.TextHash, bdoc.TextHash(doc))
	}

	got, grec, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if grec.Revision != 1 || grec.OffsetType != bdoc.OffsetCodeUnit {
		t.Errorf("Get() record = %+v", grec)
	}
	if got.Text() != doc.Text() || got.Name != doc.Name || got.Features["lang"] != "en" {
		t.Errorf("Get() document = %q %q %v", got.Name, got.Text(), got.Features)
	}
	if got.AnnotationCount() != 1 {
		t.Errorf("AnnotationCount() = %d, want 1", got.AnnotationCount())
	}
}

func TestPutRejectsInvalidDocument(t *testing.T) {
	s := openTestStore(t)
	doc := bdoc.NewDocument("abc")
	doc.OffsetType = "x"
	if _, err := s.Put(context.Background(), doc); err == nil {
		t.Fatal("Put() accepted a document with an invalid offset type")
	}
	recs, _ := s.List(context.Background())
	if len(recs) != 0 {
		t.Errorf("List() = %d records, want 0", len(recs))
	}
}

func TestMissingDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	checks := map[string]error{}
	_, _, checks["Get"] = s.Get(ctx, "nope")
	checks["Delete"] = s.Delete(ctx, "nope")
	_, checks["History"] = s.History(ctx, "nope")
	_, _, checks["ApplyChangeLog"] = s.ApplyChangeLog(ctx, "nope", changelog.New(bdoc.OffsetCodeUnit), reconcile.DefaultOptions())
	_, _, checks["Merge"] = s.Merge(ctx, "nope", bdoc.NewDocument(""), reconcile.DefaultOptions())

	for op, err := range checks {
		var nf *errors.NotFoundError
		if !errors.As(err, &nf) {
			t.Errorf("%s() error = %v, want *NotFoundError", op, err)
		}
	}
}

func TestListAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, _ := s.Put(ctx, testDocument(t))
	b, _ := s.Put(ctx, bdoc.NewDocument("second"))

	recs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 2 || recs[0].ID != b.ID || recs[1].ID != a.ID {
		t.Fatalf("List() = %+v, want newest first", recs)
	}

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, _, err := s.Get(ctx, a.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get() after Delete error = %v", err)
	}
	var n int
	s.db.QueryRow(`SELECT COUNT(*) FROM changes WHERE doc_id = ?`, a.ID).Scan(&n)
	if n != 0 {
		t.Errorf("history rows after Delete = %d, want 0", n)
	}
}

func TestApplyChangeLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec, _ := s.Put(ctx, testDocument(t))

	log := changelog.NewRecorder(bdoc.OffsetCodePoint).
		SetDocFeature("reviewed", true).
		AddAnnotation("Entities", 0, "Planet", 6, 7, bdoc.Features{"name": "Earth"}).
		Log()

	updated, stats, err := s.ApplyChangeLog(ctx, rec.ID, log, reconcile.DefaultOptions())
	if err != nil {
		t.Fatalf("ApplyChangeLog() error = %v", err)
	}
	if updated.Revision != 2 {
		t.Errorf("Revision = %d, want 2", updated.Revision)
	}
	if stats.Applied != 2 {
		t.Errorf("Applied = %d, want 2", stats.Applied)
	}

	doc, _, err := s.Get(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Features["reviewed"] != true {
		t.Errorf("doc feature reviewed = %v", doc.Features["reviewed"])
	}
	set, ok := doc.Set("Entities")
	if !ok || set.Len() != 1 {
		t.Fatalf("Entities set = %v, %v", set, ok)
	}
	planet := set.ByType("Planet")[0]
	// Code point 6..7 is the globe, which is code units 6..8.
	if planet.Start != 6 || planet.End != 8 {
		t.Errorf("Planet span = [%d,%d), want [6,8)", planet.Start, planet.End)
	}
}

func TestFailedReplayLeavesDocumentUntouched(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec, _ := s.Put(ctx, testDocument(t))

	// The second command targets a missing annotation feature.
	log := changelog.NewRecorder(bdoc.OffsetCodeUnit).
		SetDocFeature("partial", true).
		RemoveAnnotationFeature("", 99, "x").
		Log()

	_, _, err := s.ApplyChangeLog(ctx, rec.ID, log, reconcile.DefaultOptions())
	if !errors.Is(err, errors.ErrMissingTarget) {
		t.Fatalf("ApplyChangeLog() error = %v, want ErrMissingTarget", err)
	}

	doc, grec, _ := s.Get(ctx, rec.ID)
	if grec.Revision != 1 {
		t.Errorf("Revision = %d, want 1", grec.Revision)
	}
	if doc.Features.Has("partial") {
		t.Error("partial replay was persisted")
	}
	hist, _ := s.History(ctx, rec.ID)
	if len(hist) != 1 {
		t.Errorf("History() has %d entries, want 1", len(hist))
	}
}

func TestMerge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec, _ := s.Put(ctx, testDocument(t))

	incoming := bdoc.NewDocument("Hello \U0001F30D world")
	incoming.Features["source"] = "tagger"
	if _, err := incoming.GetOrCreateSet("").AddWithID(0, "Token", 0, 5, bdoc.Features{"pos": "UH"}); err != nil {
		t.Fatal(err)
	}

	opts := reconcile.DefaultOptions()
	opts.ExistingAnnotations = reconcile.MergeFeaturesOverwrite
	updated, sum, err := s.Merge(ctx, rec.ID, incoming, opts)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if updated.Revision != 2 || sum.FeaturesUpdated != 1 {
		t.Errorf("Merge() = %+v, %+v", updated, sum)
	}

	doc, _, _ := s.Get(ctx, rec.ID)
	def, _ := doc.Set("")
	tok, _ := def.Get(0)
	if tok.Features["pos"] != "UH" {
		t.Errorf("merged features = %v", tok.Features)
	}
	if doc.Features["source"] != "tagger" {
		t.Errorf("doc features = %v", doc.Features)
	}
}

func TestMergeIntegrityRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec, _ := s.Put(ctx, testDocument(t))

	incoming := bdoc.NewDocument("Hello \U0001F30D world")
	incoming.Features["source"] = "tagger"
	incoming.GetOrCreateSet("").AddWithID(0, "Token", 0, 4, nil)

	// Fresh ids skip the span check, so merge into the existing annotation.
	opts := reconcile.DefaultOptions()
	opts.ExistingAnnotations = reconcile.MergeFeaturesAddOnly
	_, _, err := s.Merge(ctx, rec.ID, incoming, opts)
	if !errors.Is(err, errors.ErrIntegrity) {
		t.Fatalf("Merge() error = %v, want ErrIntegrity", err)
	}
	doc, grec, _ := s.Get(ctx, rec.ID)
	if grec.Revision != 1 || doc.Features.Has("source") {
		t.Errorf("failed merge persisted: revision %d, features %v", grec.Revision, doc.Features)
	}
}

func TestHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec, _ := s.Put(ctx, testDocument(t))

	log := changelog.NewRecorder(bdoc.OffsetCodeUnit).SetDocFeature("a", int64(1)).Log()
	if _, _, err := s.ApplyChangeLog(ctx, rec.ID, log, reconcile.DefaultOptions()); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Merge(ctx, rec.ID, bdoc.NewDocument("Hello \U0001F30D world"), reconcile.DefaultOptions()); err != nil {
		t.Fatal(err)
	}

	hist, err := s.History(ctx, rec.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	wantKinds := []ChangeKind{KindPut, KindChanges, KindMerge}
	if len(hist) != len(wantKinds) {
		t.Fatalf("History() has %d entries, want %d", len(hist), len(wantKinds))
	}
	for i, c := range hist {
		if c.Kind != wantKinds[i] || c.Revision != int64(i+1) {
			t.Errorf("entry %d = %s rev %d, want %s rev %d", i, c.Kind, c.Revision, wantKinds[i], i+1)
		}
	}
	if hist[1].ChangeLog == nil || hist[1].ChangeLog.Len() != 1 {
		t.Errorf("changes entry log = %+v", hist[1].ChangeLog)
	}
	if hist[2].Incoming == nil || hist[2].Incoming.Text() != "Hello \U0001F30D world" {
		t.Errorf("merge entry incoming = %+v", hist[2].Incoming)
	}
	if !hist[1].AppliedAt.After(hist[0].AppliedAt) {
		t.Error("AppliedAt not increasing")
	}
}
