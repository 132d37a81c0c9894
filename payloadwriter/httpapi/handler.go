// Package httpapi serves the payload writer over HTTP.
//
// A Handler renders JSONC payload documents (see package document) through
// a payloadwriter.Writer and keeps finished payloads in a Store:
//
//	POST   /            render the request body and return the payload
//	PUT    /{id}        render the request body and store the payload
//	GET    /{id}        return a stored payload
//	HEAD   /{id}        return the metadata of a stored payload
//	DELETE /{id}        delete a stored payload
//
// The output format follows the Accept header (application/json or
// application/cbor). The query parameters kind, select, source, lenient,
// duplicates and max-depth configure the writer. With duplicates=warn,
// repeated fields are written and counted in the Payload-Warnings header.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/ahimsalabs/payloadwriter-go/payloadwriter"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/document"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/encoding/cborenc"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/encoding/jsonenc"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/internal/protocol"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/memorymodel"
	"github.com/ahimsalabs/payloadwriter-go/payloadwriter/selection"
	"github.com/ahimsalabs/payloadwriter-go/storage/badgerstore"
)

const defaultMaxDocumentSize = 10 * 1024 * 1024 // 10MB

// Store keeps rendered payloads. *badgerstore.Store implements it.
type Store interface {
	Put(ctx context.Context, id, contentType string, data []byte, ttl time.Duration) (*badgerstore.Info, error)
	Get(ctx context.Context, id string) ([]byte, *badgerstore.Info, error)
	Head(ctx context.Context, id string) (*badgerstore.Info, error)
	Delete(ctx context.Context, id string) error
}

var _ Store = (*badgerstore.Store)(nil)

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// PathExtractor extracts the payload ID from the request.
	// Default: r.URL.Path without its leading slash.
	PathExtractor func(*http.Request) string

	// Model resolves types and navigation members. If nil, payloads are
	// written without type information and the source parameter is
	// rejected.
	Model *memorymodel.Model

	// MaxDocumentSize is the maximum size of a request document. Default: 10MB.
	MaxDocumentSize int64

	// MaxNestingDepth is the writer's default nesting limit. Default: the
	// writer's default.
	MaxNestingDepth int

	// Logger for request diagnostics. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Handler implements http.Handler for rendering and serving payloads.
type Handler struct {
	store           Store
	model           *memorymodel.Model
	pathExtractor   func(*http.Request) string
	maxDocumentSize int64
	maxNestingDepth int
	logger          *slog.Logger
}

// NewHandler creates a handler that stores payloads in store.
// Pass nil for cfg to use defaults.
func NewHandler(store Store, cfg *HandlerConfig) *Handler {
	h := &Handler{
		store:           store,
		pathExtractor:   func(r *http.Request) string { return strings.TrimPrefix(r.URL.Path, "/") },
		maxDocumentSize: defaultMaxDocumentSize,
		logger:          slog.Default(),
	}

	if cfg != nil {
		if cfg.PathExtractor != nil {
			h.pathExtractor = cfg.PathExtractor
		}
		if cfg.MaxDocumentSize > 0 {
			h.maxDocumentSize = cfg.MaxDocumentSize
		}
		if cfg.Logger != nil {
			h.logger = cfg.Logger
		}
		h.model = cfg.Model
		h.maxNestingDepth = cfg.MaxNestingDepth
	}

	return h
}

// ServeHTTP routes to the appropriate handler based on method.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := h.pathExtractor(r)

	switch r.Method {
	case http.MethodPost:
		h.handleRender(w, r)
	case http.MethodPut:
		h.handleStore(w, r, id)
	case http.MethodGet:
		h.handleGet(w, r, id)
	case http.MethodHead:
		h.handleHead(w, r, id)
	case http.MethodDelete:
		h.handleDelete(w, r, id)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST, PUT, DELETE")
		writeError(w, newError(codeMethodNotAllowed, "method not allowed"))
	}
}

// rendered is a payload produced from a request document.
type rendered struct {
	data        []byte
	contentType string
	warnings    int
}

// handleRender implements POST: the payload is returned, not stored.
func (h *Handler) handleRender(w http.ResponseWriter, r *http.Request) {
	out, err := h.render(r)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Type", out.contentType)
	w.Header().Set("Cache-Control", "no-store")
	setWarnings(w, out.warnings)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.data)
}

// handleStore implements PUT. An empty ID stores the payload under its
// digest.
func (h *Handler) handleStore(w http.ResponseWriter, r *http.Request, id string) {
	ttl, perr := parseExpiry(r.Header)
	if perr != nil {
		writeError(w, perr)
		return
	}

	out, err := h.render(r)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	info, err := h.store.Put(r.Context(), id, out.contentType, out.data, ttl)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	// Location must be absolute URL per RFC 7231
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	location := r.URL.Path
	if id == "" {
		location = path.Join(r.URL.Path, info.ID)
	}
	w.Header().Set("Location", scheme+"://"+r.Host+location)
	w.Header().Set("Content-Type", protocol.ContentTypeJSON)
	setInfoHeaders(w, info)
	setWarnings(w, out.warnings)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(info)
}

// handleGet implements GET.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	data, info, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	setInfoHeaders(w, info)
	w.Header().Set("Cache-Control", "public, max-age=60, stale-while-revalidate=300")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag(info) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", info.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleHead implements HEAD.
func (h *Handler) handleHead(w http.ResponseWriter, r *http.Request, id string) {
	info, err := h.store.Head(r.Context(), id)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(info.Size))
	setInfoHeaders(w, info)
	if !info.ExpiresAt.IsZero() {
		left := max(time.Until(info.ExpiresAt).Round(time.Second), 0)
		w.Header().Set(protocol.HeaderPayloadTTL, strconv.FormatInt(int64(left.Seconds()), 10))
	}
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
}

// handleDelete implements DELETE.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// render reads the request document and writes it through a payload writer
// configured from the query parameters.
func (h *Handler) render(r *http.Request) (*rendered, error) {
	// Check Content-Length if provided (known size)
	if r.ContentLength > h.maxDocumentSize {
		return nil, newError(codePayloadTooLarge, fmt.Sprintf("request body exceeds maximum size of %d bytes", h.maxDocumentSize))
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxDocumentSize+1))
	if err != nil {
		return nil, newError(codeBadRequest, "failed to read request body")
	}
	if len(body) == 0 {
		return nil, newError(codeBadRequest, "empty body not allowed")
	}
	// Check size after reading (for chunked transfers without Content-Length)
	if int64(len(body)) > h.maxDocumentSize {
		return nil, newError(codePayloadTooLarge, fmt.Sprintf("request body exceeds maximum size of %d bytes", h.maxDocumentSize))
	}

	doc, err := document.Parse(body)
	if err != nil {
		return nil, err
	}
	cfg, perr := h.writerConfig(r)
	if perr != nil {
		return nil, perr
	}
	cfg.WritingCollection = doc.IsCollection()

	var buf bytes.Buffer
	var enc payloadwriter.Encoder
	contentType := protocol.NegotiateContentType(r.Header.Get("Accept"))
	if contentType == protocol.ContentTypeCBOR {
		enc = cborenc.New(&buf, nil)
	} else {
		enc = jsonenc.New(&buf, nil)
	}

	pw := payloadwriter.New(enc, cfg)
	defer pw.Close()
	if err := doc.WriteAsync(r.Context(), pw.Async()); err != nil {
		return nil, err
	}
	return &rendered{
		data:        buf.Bytes(),
		contentType: contentType,
		warnings:    len(pw.Warnings()),
	}, nil
}

// writerConfig builds the writer configuration from the query parameters.
func (h *Handler) writerConfig(r *http.Request) (*payloadwriter.Config, *protoError) {
	query := r.URL.Query()
	for _, name := range []string{protocol.QueryKind, protocol.QuerySelect, protocol.QuerySource, protocol.QueryLenient, protocol.QueryMaxDepth, protocol.QueryDuplicates} {
		if len(query[name]) > 1 {
			return nil, newError(codeBadRequest, "duplicate "+name+" parameter")
		}
	}

	cfg := &payloadwriter.Config{
		Async:           true,
		MaxNestingDepth: h.maxNestingDepth,
		Logger:          h.logger,
	}
	if h.model != nil {
		cfg.Model = h.model
	}

	switch query.Get(protocol.QueryKind) {
	case "", protocol.KindResponse:
	case protocol.KindRequest:
		cfg.WritingRequest = true
	case protocol.KindDelta:
		cfg.WritingDelta = true
	default:
		return nil, newError(codeBadRequest, "invalid kind parameter")
	}

	if paths := query.Get(protocol.QuerySelect); paths != "" {
		sel, err := selection.Parse(strings.Split(paths, ",")...)
		if err != nil {
			return nil, newError(codeBadRequest, err.Error())
		}
		cfg.Selection = sel
	}

	if name := query.Get(protocol.QuerySource); name != "" {
		if h.model == nil {
			return nil, newError(codeBadRequest, "source parameter requires a model")
		}
		src, ok := h.model.Source(name)
		if !ok {
			return nil, newError(codeBadRequest, fmt.Sprintf("unknown source %q", name))
		}
		cfg.NavigationSource = src
	}

	if v := query.Get(protocol.QueryLenient); v != "" {
		lenient, err := strconv.ParseBool(v)
		if err != nil {
			return nil, newError(codeBadRequest, "invalid lenient parameter")
		}
		cfg.Lenient = lenient
	}

	switch query.Get(protocol.QueryDuplicates) {
	case "", protocol.DuplicatesReject:
	case protocol.DuplicatesWarn:
		cfg.AllowDuplicateFields = true
	default:
		return nil, newError(codeBadRequest, "invalid duplicates parameter")
	}

	if v := query.Get(protocol.QueryMaxDepth); v != "" {
		depth, err := strconv.Atoi(v)
		if err != nil || depth <= 0 {
			return nil, newError(codeBadRequest, "invalid max-depth parameter")
		}
		cfg.MaxNestingDepth = depth
	}

	return cfg, nil
}

// parseExpiry reads the TTL of a payload from the Payload-TTL or
// Payload-Expires-At header. Zero means the store's default.
func parseExpiry(header http.Header) (time.Duration, *protoError) {
	ttlStr := header.Get(protocol.HeaderPayloadTTL)
	expiresStr := header.Get(protocol.HeaderPayloadExpiresAt)

	if ttlStr != "" && expiresStr != "" {
		return 0, newError(codeBadRequest, "cannot specify both Payload-TTL and Payload-Expires-At")
	}

	if ttlStr != "" {
		// Reject leading zeros (except "0" itself) and plus sign
		if ttlStr[0] == '+' || (len(ttlStr) > 1 && ttlStr[0] == '0') {
			return 0, newError(codeBadRequest, "invalid Payload-TTL header")
		}
		ttlSec, err := strconv.ParseInt(ttlStr, 10, 64)
		if err != nil || ttlSec < 0 {
			return 0, newError(codeBadRequest, "invalid Payload-TTL header")
		}
		return time.Duration(ttlSec) * time.Second, nil
	}

	if expiresStr != "" {
		expiresAt, err := time.Parse(time.RFC3339, expiresStr)
		if err != nil {
			return 0, newError(codeBadRequest, "invalid Payload-Expires-At header (must be RFC3339)")
		}
		ttl := time.Until(expiresAt)
		if ttl <= 0 {
			return 0, newError(codeBadRequest, "Payload-Expires-At is in the past")
		}
		return ttl, nil
	}

	return 0, nil
}

func etag(info *badgerstore.Info) string {
	return `"` + info.Digest + `"`
}

func setInfoHeaders(w http.ResponseWriter, info *badgerstore.Info) {
	w.Header().Set("ETag", etag(info))
	w.Header().Set(protocol.HeaderPayloadDigest, info.Digest)
	if !info.ExpiresAt.IsZero() {
		w.Header().Set(protocol.HeaderPayloadExpiresAt, info.ExpiresAt.UTC().Format(time.RFC3339))
	}
}

func setWarnings(w http.ResponseWriter, n int) {
	if n > 0 {
		w.Header().Set(protocol.HeaderPayloadWarnings, strconv.Itoa(n))
	}
}

// writeFailure logs err and writes it as an error response.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	perr := toProtoError(err)
	if perr.Code == codeInternal {
		h.logger.ErrorContext(r.Context(), "httpapi: request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.logger.DebugContext(r.Context(), "httpapi: request rejected",
			"method", r.Method, "path", r.URL.Path, "code", perr.Code, "error", err)
	}
	writeError(w, perr)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, err *protoError) {
	w.Header().Set("Content-Type", protocol.ContentTypeJSON)
	w.WriteHeader(err.Code.httpStatus())
	_ = json.NewEncoder(w).Encode(err)
}
