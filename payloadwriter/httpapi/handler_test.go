package httpapi_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/encoding/cborenc"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/httpapi"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/memorymodel"
	"github.com/ahimsalabs/payloadwriter-go/storage/badgerstore"
)

const testModel = `
namespace: Sales
types:
  - name: Customer
    properties: [Id, Name]
    navigation:
      - {name: Orders, target: Order, collection: true}
  - name: Order
    properties: [Id]
sources:
  - name: Customers
    type: Customer
    bindings: {Orders: Orders}
  - name: Orders
    type: Order
`

const customerDoc = `{
  "resource": {
    "key": "1",
    "properties": {"Id": 1},
    "nested": [
      {"name": "Orders", "collection": {"items": [{"properties": {"Id": 10}}]}},
    ],
  },
}`

const deferredDoc = `{"resource": {"properties": {"Id": 1}, "nested": [{"name": "Orders", "url": "Customers(1)/Orders"}]}}`

func quietSLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T) (*httpapi.Handler, *badgerstore.Store) {
	t.Helper()
	store, err := badgerstore.New(badgerstore.Options{
		InMemory:   true,
		Logger:     badgerstore.SlogLogger(quietSLog()),
		SLogger:    quietSLog(),
		GCInterval: -1,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})

	model, err := memorymodel.Load(strings.NewReader(testModel))
	if err != nil {
		t.Fatalf("failed to load model: %v", err)
	}
	return httpapi.NewHandler(store, &httpapi.HandlerConfig{Model: model, Logger: quietSLog()}), store
}

func do(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %q", rec.Body.String())
	}
	return body.Code
}

func TestHandler_POST_Render(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		body        string
		headers     map[string]string
		wantStatus  int
		wantBody    string
		wantErrCode string
	}{
		{
			name:       "plain",
			target:     "/",
			body:       customerDoc,
			wantStatus: http.StatusOK,
			wantBody:   `{"Id":1,"Orders":[{"Id":10}]}`,
		},
		{
			name:       "with source",
			target:     "/?source=Customers",
			body:       customerDoc,
			wantStatus: http.StatusOK,
			wantBody:   `{"@context":"Customers/$entity","Id":1,"Orders":[{"Id":10}]}`,
		},
		{
			name:       "selection",
			target:     "/?select=Name",
			body:       customerDoc,
			wantStatus: http.StatusOK,
			wantBody:   `{"Id":1}`,
		},
		{
			name:       "deferred member in response",
			target:     "/",
			body:       deferredDoc,
			wantStatus: http.StatusOK,
			wantBody:   `{"Id":1,"Orders@navigationLink":"Customers(1)/Orders"}`,
		},
		{
			name:        "deferred member in request",
			target:      "/?kind=request",
			body:        deferredDoc,
			wantStatus:  http.StatusUnprocessableEntity,
			wantErrCode: "invalid_payload",
		},
		{
			name:        "depth limit",
			target:      "/?max-depth=1",
			body:        customerDoc,
			wantStatus:  http.StatusUnprocessableEntity,
			wantErrCode: "invalid_payload",
		},
		{
			name:        "invalid document",
			target:      "/",
			body:        `{"resource": {}, "collection": {}}`,
			wantStatus:  http.StatusBadRequest,
			wantErrCode: "bad_request",
		},
		{
			name:        "malformed document",
			target:      "/",
			body:        `{"resource": `,
			wantStatus:  http.StatusBadRequest,
			wantErrCode: "bad_request",
		},
		{
			name:        "empty body",
			target:      "/",
			wantStatus:  http.StatusBadRequest,
			wantErrCode: "bad_request",
		},
		{
			name:        "unknown source",
			target:      "/?source=Nope",
			body:        customerDoc,
			wantStatus:  http.StatusBadRequest,
			wantErrCode: "bad_request",
		},
		{
			name:        "invalid kind",
			target:      "/?kind=patch",
			body:        customerDoc,
			wantStatus:  http.StatusBadRequest,
			wantErrCode: "bad_request",
		},
		{
			name:        "duplicate kind",
			target:      "/?kind=request&kind=response",
			body:        customerDoc,
			wantStatus:  http.StatusBadRequest,
			wantErrCode: "bad_request",
		},
		{
			name:        "invalid selection",
			target:      "/?select=a//b",
			body:        customerDoc,
			wantStatus:  http.StatusBadRequest,
			wantErrCode: "bad_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			rec := do(h, http.MethodPost, tt.target, tt.body, tt.headers)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantErrCode != "" {
				if got := errorCode(t, rec); got != tt.wantErrCode {
					t.Errorf("error code = %q, want %q", got, tt.wantErrCode)
				}
				return
			}
			if got := rec.Body.String(); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
			if got := rec.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q", got)
			}
		})
	}
}

func TestHandler_POST_CBOR(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := do(h, http.MethodPost, "/", customerDoc, map[string]string{
		"Accept": "application/cbor, application/json;q=0.5",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/cbor" {
		t.Errorf("Content-Type = %q, want application/cbor", got)
	}
	diag, err := cborenc.Diagnose(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	if !strings.Contains(diag, `"Orders"`) || !strings.Contains(diag, "10") {
		t.Errorf("diagnostic = %s", diag)
	}
}

func TestHandler_POST_TooLarge(t *testing.T) {
	store, err := badgerstore.New(badgerstore.Options{
		InMemory:   true,
		Logger:     badgerstore.SlogLogger(quietSLog()),
		SLogger:    quietSLog(),
		GCInterval: -1,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	h := httpapi.NewHandler(store, &httpapi.HandlerConfig{MaxDocumentSize: 16, Logger: quietSLog()})

	rec := do(h, http.MethodPost, "/", customerDoc, nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if got := errorCode(t, rec); got != "payload_too_large" {
		t.Errorf("error code = %q", got)
	}
}

func TestHandler_PUT_GET_HEAD_DELETE(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(h, http.MethodPut, "/customer-1?source=Customers", customerDoc, map[string]string{
		"Payload-TTL": "3600",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("PUT status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "http://example.com/customer-1" {
		t.Errorf("Location = %q", got)
	}
	var info badgerstore.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("PUT body: %v", err)
	}
	if info.ID != "customer-1" || info.ContentType != "application/json" {
		t.Errorf("info = %+v", info)
	}
	if info.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not set for a payload with TTL")
	}
	etag := rec.Header().Get("ETag")
	if etag != `"`+info.Digest+`"` {
		t.Errorf("ETag = %q, want quoted digest", etag)
	}

	rec = do(h, http.MethodGet, "/customer-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	if got, want := rec.Body.String(), `{"@context":"Customers/$entity","Id":1,"Orders":[{"Id":10}]}`; got != want {
		t.Errorf("GET body = %s, want %s", got, want)
	}
	if got := rec.Header().Get("Payload-Digest"); got != info.Digest {
		t.Errorf("Payload-Digest = %q", got)
	}

	rec = do(h, http.MethodGet, "/customer-1", "", map[string]string{"If-None-Match": etag})
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", rec.Code)
	}

	rec = do(h, http.MethodHead, "/customer-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "60" {
		t.Errorf("Content-Length = %q, want 60", got)
	}
	if rec.Header().Get("Payload-TTL") == "" || rec.Header().Get("Payload-Expires-At") == "" {
		t.Errorf("expiry headers missing: %v", rec.Header())
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}

	rec = do(h, http.MethodDelete, "/customer-1", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rec.Code)
	}

	rec = do(h, http.MethodGet, "/customer-1", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET after DELETE status = %d, want 404", rec.Code)
	}
	if got := errorCode(t, rec); got != "not_found" {
		t.Errorf("error code = %q", got)
	}
}

func TestHandler_PUT_DigestAddressed(t *testing.T) {
	h, store := newTestHandler(t)

	rec := do(h, http.MethodPut, "/", customerDoc, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("PUT status = %d, body %s", rec.Code, rec.Body.String())
	}
	var info badgerstore.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.ID != info.Digest {
		t.Errorf("ID = %q, want digest %q", info.ID, info.Digest)
	}
	if got, want := rec.Header().Get("Location"), "http://example.com/"+info.ID; got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
	if _, err := store.Head(t.Context(), info.ID); err != nil {
		t.Errorf("stored payload: %v", err)
	}
}

func TestHandler_PUT_Expiry(t *testing.T) {
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{"ttl", map[string]string{"Payload-TTL": "60"}, http.StatusCreated},
		{"zero ttl", map[string]string{"Payload-TTL": "0"}, http.StatusCreated},
		{"expires at", map[string]string{"Payload-Expires-At": future}, http.StatusCreated},
		{"both", map[string]string{"Payload-TTL": "60", "Payload-Expires-At": future}, http.StatusBadRequest},
		{"leading zero", map[string]string{"Payload-TTL": "060"}, http.StatusBadRequest},
		{"plus sign", map[string]string{"Payload-TTL": "+60"}, http.StatusBadRequest},
		{"negative", map[string]string{"Payload-TTL": "-1"}, http.StatusBadRequest},
		{"not a number", map[string]string{"Payload-TTL": "soon"}, http.StatusBadRequest},
		{"bad timestamp", map[string]string{"Payload-Expires-At": "tomorrow"}, http.StatusBadRequest},
		{"past timestamp", map[string]string{"Payload-Expires-At": past}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			rec := do(h, http.MethodPut, "/p", customerDoc, tt.headers)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandler_PUT_InvalidID(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := do(h, http.MethodPut, "/a:b", customerDoc, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_StoreClosed(t *testing.T) {
	h, store := newTestHandler(t)
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	rec := do(h, http.MethodGet, "/anything", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := do(h, http.MethodPatch, "/p", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if rec.Header().Get("Allow") == "" {
		t.Error("Allow header missing")
	}
}

func TestHandler_PathExtractor(t *testing.T) {
	store, err := badgerstore.New(badgerstore.Options{
		InMemory:   true,
		Logger:     badgerstore.SlogLogger(quietSLog()),
		SLogger:    quietSLog(),
		GCInterval: -1,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	h := httpapi.NewHandler(store, &httpapi.HandlerConfig{
		PathExtractor: func(r *http.Request) string { return strings.TrimPrefix(r.URL.Path, "/payloads/") },
		Logger:        quietSLog(),
	})
	if rec := do(h, http.MethodPut, "/payloads/x", customerDoc, nil); rec.Code != http.StatusCreated {
		t.Fatalf("PUT status = %d", rec.Code)
	}
	if _, err := store.Head(t.Context(), "x"); err != nil {
		t.Errorf("payload not stored under extracted ID: %v", err)
	}
}

func TestHandler_POST_DuplicateFields(t *testing.T) {
	doc := `{"resource": {"properties": {"Id": 1, "Id": 2}}}`

	tests := []struct {
		name         string
		target       string
		wantStatus   int
		wantWarnings string
	}{
		{"rejected by default", "/", http.StatusUnprocessableEntity, ""},
		{"reject", "/?duplicates=reject", http.StatusUnprocessableEntity, ""},
		{"warn", "/?duplicates=warn", http.StatusOK, "1"},
		{"lenient", "/?lenient=true", http.StatusOK, ""},
		{"invalid value", "/?duplicates=maybe", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			rec := do(h, http.MethodPost, tt.target, doc, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := rec.Header().Get("Payload-Warnings"); got != tt.wantWarnings {
				t.Errorf("Payload-Warnings = %q, want %q", got, tt.wantWarnings)
			}
		})
	}
}
