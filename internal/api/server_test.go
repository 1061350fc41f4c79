package api

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/changelog"
	"github.com/FocuswithJustin/bdoc/core/codec"
	"github.com/FocuswithJustin/bdoc/internal/config"
	"github.com/FocuswithJustin/bdoc/internal/store"
)

// envelope mirrors APIResponse with the payload left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, http.Handler) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	s := New(cfg, st)
	return s, s.Handler()
}

func testDocument(t *testing.T) *bdoc.Document {
	t.Helper()
	doc := bdoc.NewDocument("Hello \U0001F30D world")
	doc.Features["lang"] = "en"
	if _, err := doc.GetOrCreateSet("").AddWithID(0, "Token", 0, 5, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := doc.GetOrCreateSet("Entities").AddWithID(0, "Planet", 6, 8, bdoc.Features{"name": "Earth"}); err != nil {
		t.Fatal(err)
	}
	return doc
}

func encodeDoc(t *testing.T, doc *bdoc.Document, f codec.Format) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := codec.EncodeDocument(&buf, doc, f); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func encodeLog(t *testing.T, log *changelog.ChangeLog) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := codec.EncodeChangeLog(&buf, log, codec.FormatJSON); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v\n%s", err, w.Body.String())
	}
	return env
}

// putDocument stores doc through the API and returns its record.
func putDocument(t *testing.T, h http.Handler, doc *bdoc.Document) store.Record {
	t.Helper()
	w := do(t, h, http.MethodPost, "/documents", encodeDoc(t, doc, codec.FormatJSON), "Content-Type", "application/json")
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /documents status = %d: %s", w.Code, w.Body.String())
	}
	var rec store.Record
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, nil)
	w := do(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	env := decodeEnvelope(t, w)
	var info HealthInfo
	if err := json.Unmarshal(env.Data, &info); err != nil {
		t.Fatal(err)
	}
	if !env.Success || info.Status != "ok" || info.Version != Version {
		t.Errorf("health = %+v", info)
	}
	if info.SQLite.DriverName == "" {
		t.Error("health is missing the SQLite driver")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestDocumentLifecycle(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := putDocument(t, h, testDocument(t))
	if rec.ID == "" || rec.Revision != 1 || rec.OffsetType != bdoc.OffsetCodeUnit {
		t.Fatalf("record = %+v", rec)
	}

	w := do(t, h, http.MethodGet, "/documents", nil)
	env := decodeEnvelope(t, w)
	if w.Code != http.StatusOK || env.Meta == nil || env.Meta.Total != 1 {
		t.Fatalf("list = %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/documents/"+rec.ID+"?offsets=p", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get(headerRevision); got != "1" {
		t.Errorf("%s = %q, want 1", headerRevision, got)
	}
	if got := w.Header().Get(headerTextHash); got != rec.TextHash {
		t.Errorf("%s = %q, want %q", headerTextHash, got, rec.TextHash)
	}
	doc, err := codec.DecodeDocument(w.Body, codec.FormatJSON)
	if err != nil {
		t.Fatalf("decode GET body: %v", err)
	}
	if doc.OffsetType != bdoc.OffsetCodePoint {
		t.Errorf("OffsetType = %q, want p", doc.OffsetType)
	}
	set, _ := doc.Set("Entities")
	planet, _ := set.Get(0)
	if planet.Start != 6 || planet.End != 7 {
		t.Errorf("Planet = [%d,%d), want [6,7)", planet.Start, planet.End)
	}

	w = do(t, h, http.MethodDelete, "/documents/"+rec.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d", w.Code)
	}
	w = do(t, h, http.MethodGet, "/documents/"+rec.ID, nil)
	if env := decodeEnvelope(t, w); w.Code != http.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Errorf("GET after DELETE = %d %+v", w.Code, env.Error)
	}
}

func TestGetDocumentFormats(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := putDocument(t, h, testDocument(t))

	tests := []struct {
		name        string
		target      string
		accept      string
		contentType string
	}{
		{"query yaml", "/documents/" + rec.ID + "?format=yaml", "", "application/yaml"},
		{"accept msgpack", "/documents/" + rec.ID, "application/msgpack", "application/msgpack"},
		{"accept wildcard", "/documents/" + rec.ID, "*/*", "application/json"},
		{"gate", "/documents/" + rec.ID + "?format=gate", "", "application/xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, tt.target, nil, "Accept", tt.accept)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			if got := w.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
		})
	}
}

func TestGetDocumentSelection(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := putDocument(t, h, testDocument(t))

	w := do(t, h, http.MethodGet, "/documents/"+rec.ID+"?sets=Entities:Planet&features=lang", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	doc, err := codec.DecodeDocument(w.Body, codec.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if names := doc.SetNames(); len(names) != 1 || names[0] != "Entities" {
		t.Errorf("SetNames() = %v, want [Entities]", names)
	}

	w = do(t, h, http.MethodGet, "/documents/"+rec.ID+"?sets=Missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown set status = %d, want 404", w.Code)
	}
	w = do(t, h, http.MethodGet, "/documents/"+rec.ID+"?sets=a:", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad selector status = %d, want 400", w.Code)
	}
}

func TestApplyChanges(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := putDocument(t, h, testDocument(t))

	log := changelog.NewRecorder(bdoc.OffsetCodePoint).
		SetDocFeature("reviewed", true).
		AddAnnotation("Entities", 1, "Word", 8, 13, nil).
		Log()
	w := do(t, h, http.MethodPost, "/documents/"+rec.ID+"/changes", encodeLog(t, log), "Content-Type", "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var res ChangesResult
	if err := json.Unmarshal(decodeEnvelope(t, w).Data, &res); err != nil {
		t.Fatal(err)
	}
	if res.Document.Revision != 2 || res.Stats.Applied != 2 {
		t.Errorf("result = %+v", res)
	}

	w = do(t, h, http.MethodGet, "/documents/"+rec.ID, nil)
	doc, _ := codec.DecodeDocument(w.Body, codec.FormatJSON)
	set, _ := doc.Set("Entities")
	word, ok := set.Get(1)
	if !ok || word.Start != 9 || word.End != 14 {
		t.Errorf("Word = %+v, want code units [9,14)", word)
	}

	w = do(t, h, http.MethodGet, "/documents/"+rec.ID+"/history", nil)
	if env := decodeEnvelope(t, w); env.Meta.Total != 2 {
		t.Errorf("history total = %d, want 2", env.Meta.Total)
	}
}

func TestApplyChangesErrors(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := putDocument(t, h, testDocument(t))
	path := "/documents/" + rec.ID + "/changes"

	missing := changelog.NewRecorder(bdoc.OffsetCodeUnit).RemoveAnnotationFeature("", 42, "x").Log()

	tests := []struct {
		name   string
		target string
		body   io.Reader
		ctype  string
		status int
		code   string
	}{
		{"missing target", path, encodeLog(t, missing), "application/json", http.StatusConflict, "MISSING_TARGET"},
		{"no offset type", path, strings.NewReader(`{"changes":[]}`), "application/json", http.StatusBadRequest, "INVALID_INPUT"},
		{"bad policy", path + "?existing=clobber", encodeLog(t, missing), "application/json", http.StatusBadRequest, "INVALID_INPUT"},
		{"gate", path + "?format=gate", strings.NewReader("<x/>"), "", http.StatusUnsupportedMediaType, "UNSUPPORTED"},
		{"content type", path, strings.NewReader("x"), "text/html", http.StatusUnsupportedMediaType, "UNSUPPORTED"},
		{"unknown id", "/documents/nope/changes", encodeLog(t, missing), "application/json", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, tt.target, tt.body, "Content-Type", tt.ctype)
			env := decodeEnvelope(t, w)
			if w.Code != tt.status || env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("got %d %+v, want %d %s", w.Code, env.Error, tt.status, tt.code)
			}
		})
	}

	w := do(t, h, http.MethodGet, "/documents/"+rec.ID+"/history", nil)
	if env := decodeEnvelope(t, w); env.Meta.Total != 1 {
		t.Errorf("failed changes were recorded: total = %d", env.Meta.Total)
	}
}

func TestMerge(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := putDocument(t, h, testDocument(t))

	incoming := bdoc.NewDocument("Hello \U0001F30D world")
	incoming.GetOrCreateSet("").AddWithID(0, "Token", 0, 5, bdoc.Features{"pos": "UH"})

	target := "/documents/" + rec.ID + "/merge?existing=merge-features-overwrite"
	w := do(t, h, http.MethodPost, target, encodeDoc(t, incoming, codec.FormatYAML), "Content-Type", "application/yaml")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var res MergeResult
	json.Unmarshal(decodeEnvelope(t, w).Data, &res)
	if res.Document.Revision != 2 || res.Summary.FeaturesUpdated != 1 {
		t.Errorf("result = %+v", res)
	}

	bad := bdoc.NewDocument("Hello \U0001F30D world")
	bad.GetOrCreateSet("").AddWithID(0, "Token", 0, 3, nil)
	w = do(t, h, http.MethodPost, target, encodeDoc(t, bad, codec.FormatJSON))
	if env := decodeEnvelope(t, w); w.Code != http.StatusConflict || env.Error.Code != "INTEGRITY_VIOLATION" {
		t.Errorf("span mismatch = %d %+v, want 409 INTEGRITY_VIOLATION", w.Code, env.Error)
	}
}

func TestConvert(t *testing.T) {
	_, h := newTestServer(t, nil)
	body := encodeDoc(t, testDocument(t), codec.FormatJSON)

	w := do(t, h, http.MethodPost, "/convert?from=json&to=yaml", bytes.NewReader(body.Bytes()))
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/yaml" {
		t.Fatalf("json to yaml = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	doc, err := codec.DecodeDocument(w.Body, codec.FormatYAML)
	if err != nil || doc.AnnotationCount() != 2 {
		t.Fatalf("yaml result: %v, %d annotations", err, doc.AnnotationCount())
	}

	w = do(t, h, http.MethodPost, "/convert?to=gate", bytes.NewReader(body.Bytes()))
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "<?xml") {
		t.Fatalf("json to gate = %d %.40q", w.Code, w.Body.String())
	}
	xmlBody := w.Body.String()

	w = do(t, h, http.MethodPost, "/convert?from=gate&to=msgpack", strings.NewReader(xmlBody))
	if w.Code != http.StatusOK {
		t.Fatalf("gate to msgpack = %d: %s", w.Code, w.Body.String())
	}
	doc, err = codec.DecodeDocument(w.Body, codec.FormatMsgPack)
	if err != nil || doc.Text() != "Hello \U0001F30D world" {
		t.Errorf("msgpack result = %v, %v", doc, err)
	}
}

func TestConvertGzipBody(t *testing.T) {
	_, h := newTestServer(t, nil)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(encodeDoc(t, testDocument(t), codec.FormatJSON).Bytes())
	zw.Close()

	w := do(t, h, http.MethodPost, "/convert", &buf, "Content-Type", "application/json", "Content-Encoding", "gzip")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodPost, "/convert", strings.NewReader("{}"), "Content-Encoding", "br")
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("br encoding status = %d, want 415", w.Code)
	}
}

func TestMaxBody(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) { c.Server.MaxBodyBytes = 16 })
	w := do(t, h, http.MethodPost, "/documents", encodeDoc(t, testDocument(t), codec.FormatJSON))
	if env := decodeEnvelope(t, w); w.Code != http.StatusRequestEntityTooLarge || env.Error.Code != "PAYLOAD_TOO_LARGE" {
		t.Errorf("got %d %+v, want 413", w.Code, env.Error)
	}
}

func TestRoutingErrors(t *testing.T) {
	_, h := newTestServer(t, nil)
	if w := do(t, h, http.MethodGet, "/nowhere", nil); w.Code != http.StatusNotFound || decodeEnvelope(t, w).Success {
		t.Errorf("unknown route = %d", w.Code)
	}
	if w := do(t, h, http.MethodPut, "/documents", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT /documents = %d, want 405", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	const key = "0123456789abcdef-key"
	_, h := newTestServer(t, func(c *config.Config) { c.Server.APIKey = key })

	tests := []struct {
		name   string
		path   string
		key    string
		status int
	}{
		{"health is public", "/health", "", http.StatusOK},
		{"missing key", "/documents", "", http.StatusUnauthorized},
		{"wrong key", "/documents", "0123456789abcdef-bad", http.StatusUnauthorized},
		{"valid key", "/documents", key, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, tt.path, nil, "X-API-Key", tt.key)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) { c.Server.AllowedOrigins = []string{"https://app.example"} })

	w := do(t, h, http.MethodOptions, "/documents", nil, "Origin", "https://app.example")
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Errorf("allowed preflight = %d %q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}
	w = do(t, h, http.MethodOptions, "/documents", nil, "Origin", "https://evil.example")
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign preflight = %d, want 403", w.Code)
	}
	w = do(t, h, http.MethodGet, "/health", nil, "Origin", "https://evil.example")
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("foreign GET = %d with CORS header %q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}

	_, open := newTestServer(t, nil)
	w = do(t, open, http.MethodGet, "/health", nil, "Origin", "https://any.example")
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("open CORS = %q, want *", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRateLimitedServer(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) {
		c.Server.RateLimitRequests = 60
		c.Server.RateLimitBurst = 2
	})
	for i := 0; i < 2; i++ {
		if w := do(t, h, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
	w := do(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Errorf("third request = %d, Retry-After %q", w.Code, w.Header().Get("Retry-After"))
	}
}
