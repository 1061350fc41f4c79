package api

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/changelog"
	"github.com/FocuswithJustin/bdoc/core/codec"
	"github.com/FocuswithJustin/bdoc/core/errors"
	"github.com/FocuswithJustin/bdoc/core/gatexml"
	"github.com/FocuswithJustin/bdoc/core/reconcile"
	"github.com/FocuswithJustin/bdoc/core/sqlite"
	"github.com/FocuswithJustin/bdoc/internal/logging"
	"github.com/FocuswithJustin/bdoc/internal/store"
)

// Response headers describing a served document.
const (
	headerRevision = "X-Document-Revision"
	headerTextHash = "X-Document-Text-Hash"
)

// HealthInfo is the health check response.
type HealthInfo struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Uptime  string      `json:"uptime"`
	SQLite  sqlite.Info `json:"sqlite"`
}

// ChangesResult is returned after a change log was applied.
type ChangesResult struct {
	Document store.Record    `json:"document"`
	Stats    changelog.Stats `json:"stats"`
}

// MergeResult is returned after a document was merged.
type MergeResult struct {
	Document store.Record      `json:"document"`
	Summary  reconcile.Summary `json:"summary"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, HealthInfo{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		SQLite:  sqlite.GetInfo(),
	})
}

// handleConvert re-encodes the request body. ?from= and ?to= name the
// formats; Content-Type and Accept are used when they are absent.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	doc, in, err := readDocument(r, "from")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	out, err := responseFormat(r, "to", in)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	opts, err := exportOptions(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	exported, err := bdoc.Export(doc, opts)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	writeDocument(w, r, http.StatusOK, exported, out)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.List(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	respondMeta(w, http.StatusOK, recs, len(recs))
}

func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	doc, _, err := readDocument(r, "format")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if name := r.URL.Query().Get("name"); name != "" {
		doc.Name = name
	}

	rec, err := s.store.Put(r.Context(), doc)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	logging.DocumentStored(r.Context(), rec.ID, rec.Revision, "kind", store.KindPut)
	s.hub.Broadcast(DocumentEvent{Type: EventStored, DocumentID: rec.ID, Revision: rec.Revision, TextHash: rec.TextHash})

	w.Header().Set("Location", "/documents/"+rec.ID)
	respond(w, http.StatusCreated, rec)
}

// handleGetDocument serves a stored document. ?sets= selects annotation
// sets, ?features= document features, ?offsets= the offset convention.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	out, err := responseFormat(r, "format", docFormat{codec: codec.FormatJSON})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	opts, err := exportOptions(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	exported, err := bdoc.Export(doc, opts)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	w.Header().Set(headerRevision, strconv.FormatInt(rec.Revision, 10))
	w.Header().Set(headerTextHash, rec.TextHash)
	writeDocument(w, r, http.StatusOK, exported, out)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		respondErr(w, r, err)
		return
	}
	logging.InfoContext(r.Context(), "document_deleted", "document_id", id)
	s.hub.Broadcast(DocumentEvent{Type: EventDeleted, DocumentID: id})
	respond(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// handleApplyChanges replays a change log against a stored document.
// ?new= and ?existing= override the configured reconcile policies for
// ann:add commands.
func (s *Server) handleApplyChanges(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f, err := requestFormat(r, "format")
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if f.gate {
		respondErr(w, r, errors.NewUnsupported("format", "change logs have no GATE XML form"))
		return
	}
	opts, err := s.reconcileOptions(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	body, closer, err := requestBody(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	defer closer.Close()
	log, err := codec.DecodeChangeLog(body, f.codec)
	if err != nil {
		logging.CodecError(r.Context(), f.String(), "decode", err)
		respondErr(w, r, err)
		return
	}

	rec, stats, err := s.store.ApplyChangeLog(r.Context(), id, log, opts)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	logging.ReplayApplied(r.Context(), id, stats.Applied, stats.Ignored, "revision", rec.Revision)
	s.hub.Broadcast(DocumentEvent{Type: EventChanges, DocumentID: id, Revision: rec.Revision, TextHash: rec.TextHash})
	respond(w, http.StatusOK, ChangesResult{Document: rec, Stats: stats})
}

// handleMerge reconciles the request document into a stored one. ?sets=
// and ?features= restrict the merge to the named sets and document
// features.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	opts, err := s.reconcileOptions(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	opts.SetNames = splitList(r.URL.Query()["sets"])
	opts.FeatureNames = splitList(r.URL.Query()["features"])

	incoming, _, err := readDocument(r, "format")
	if err != nil {
		respondErr(w, r, err)
		return
	}

	rec, sum, err := s.store.Merge(r.Context(), id, incoming, opts)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	logging.ReconcileApplied(r.Context(), id, sum.Inserted, sum.Replaced, sum.FeaturesUpdated, sum.Ignored,
		"sets", sum.Sets, "revision", rec.Revision)
	s.hub.Broadcast(DocumentEvent{Type: EventMerge, DocumentID: id, Revision: rec.Revision, TextHash: rec.TextHash})
	respond(w, http.StatusOK, MergeResult{Document: rec, Summary: sum})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := s.store.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondMeta(w, http.StatusOK, hist, len(hist))
}

// reconcileOptions starts from the configured policies and applies ?new=
// and ?existing=.
func (s *Server) reconcileOptions(r *http.Request) (reconcile.Options, error) {
	opts := s.opts
	q := r.URL.Query()
	if v := q.Get("new"); v != "" {
		p, err := reconcile.ParseNewAnnotationPolicy(v)
		if err != nil {
			return opts, err
		}
		opts.NewAnnotations = p
	}
	if v := q.Get("existing"); v != "" {
		p, err := reconcile.ParseExistingAnnotationPolicy(v)
		if err != nil {
			return opts, err
		}
		opts.ExistingAnnotations = p
	}
	return opts, nil
}

// exportOptions reads ?sets=, ?features= and ?offsets=.
func exportOptions(r *http.Request) (bdoc.ExportOptions, error) {
	q := r.URL.Query()
	var opts bdoc.ExportOptions

	specs, err := bdoc.ParseSelector(q.Get("sets"))
	if err != nil {
		return opts, err
	}
	opts.Sets = specs
	opts.Features = splitList(q["features"])

	if v := q.Get("offsets"); v != "" {
		ot, err := bdoc.ParseOffsetType(v)
		if err != nil {
			return opts, err
		}
		opts.OffsetType = ot
	}
	return opts, nil
}

// splitList flattens repeated and comma separated query values. No values
// yields nil.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// docFormat is a codec format or GATE XML.
type docFormat struct {
	codec codec.Format
	gate  bool
}

func (f docFormat) String() string {
	if f.gate {
		return "gate"
	}
	return string(f.codec)
}

func (f docFormat) mediaType() string {
	if f.gate {
		return "application/xml"
	}
	return codec.MediaType(f.codec)
}

func parseDocFormat(name string) (docFormat, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(key, ';'); i >= 0 {
		key = strings.TrimSpace(key[:i])
	}
	switch key {
	case "gate", "xml", "gatexml", "application/xml", "text/xml":
		return docFormat{gate: true}, nil
	}
	f, err := codec.ParseFormat(key)
	if err != nil {
		return docFormat{}, err
	}
	return docFormat{codec: f}, nil
}

// requestFormat picks the body format from the query parameter, then
// Content-Type, then JSON.
func requestFormat(r *http.Request, param string) (docFormat, error) {
	if v := r.URL.Query().Get(param); v != "" {
		return parseDocFormat(v)
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		f, err := parseDocFormat(ct)
		if err != nil {
			return docFormat{}, errors.NewUnsupported("content type", ct)
		}
		return f, nil
	}
	return docFormat{codec: codec.FormatJSON}, nil
}

// responseFormat picks the response format from the query parameter, then
// the first recognised Accept entry, then fallback.
func responseFormat(r *http.Request, param string, fallback docFormat) (docFormat, error) {
	if v := r.URL.Query().Get(param); v != "" {
		return parseDocFormat(v)
	}
	for _, accept := range strings.Split(r.Header.Get("Accept"), ",") {
		if f, err := parseDocFormat(accept); err == nil {
			return f, nil
		}
	}
	return fallback, nil
}

// requestBody undoes a gzip or xz Content-Encoding.
func requestBody(r *http.Request) (io.Reader, io.Closer, error) {
	var c codec.Compression
	switch enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
		c = codec.CompressionNone
	case "gzip", "x-gzip":
		c = codec.CompressionGzip
	case "xz", "x-xz":
		c = codec.CompressionXZ
	default:
		return nil, nil, errors.NewUnsupported("content encoding", enc)
	}
	body, closer, err := codec.Decompress(r.Body, c)
	if err != nil {
		return nil, nil, &errors.ParseError{Format: string(c), Message: err.Error(), Err: err}
	}
	return body, closer, nil
}

// readDocument decodes the request body as a document.
func readDocument(r *http.Request, param string) (*bdoc.Document, docFormat, error) {
	f, err := requestFormat(r, param)
	if err != nil {
		return nil, f, err
	}
	body, closer, err := requestBody(r)
	if err != nil {
		return nil, f, err
	}
	defer closer.Close()

	var doc *bdoc.Document
	if f.gate {
		doc, err = gatexml.Parse(body)
	} else {
		doc, err = codec.DecodeDocument(body, f.codec)
	}
	if err != nil {
		logging.CodecError(r.Context(), f.String(), "decode", err)
		return nil, f, err
	}
	return doc, f, nil
}

// writeDocument encodes doc into a buffer first so encoding failures can
// still be reported as JSON errors.
func writeDocument(w http.ResponseWriter, r *http.Request, status int, doc *bdoc.Document, f docFormat) {
	var buf bytes.Buffer
	var err error
	if f.gate {
		err = gatexml.Write(&buf, doc)
	} else {
		err = codec.EncodeDocument(&buf, doc, f.codec)
	}
	if err != nil {
		logging.CodecError(r.Context(), f.String(), "encode", err)
		respondErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", f.mediaType())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
