// Package httpapi serves transformed article images out of the edge response
// cache and accepts authenticated uploads of the originals.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inkwell/internal/auth"
	"inkwell/internal/blob"
	"inkwell/internal/config"
	"inkwell/internal/detach"
	"inkwell/internal/edgecache"
	"inkwell/internal/imaging"
	"inkwell/internal/metrics"
)

const (
	cacheTTL     = 31536000 // 1 year in seconds
	outputFormat = "image/webp"

	// Cache status values reported in X-Cache-Status and the request metric.
	StatusHit         = "HIT"
	StatusMiss        = "MISS"
	StatusNotModified = "NOT_MODIFIED"
)

var (
	imagePath = regexp.MustCompile(`^/images/([a-z0-9-]+)/(\d+)/([\w-]+\.\w+)$`)

	cacheControl    = "public, max-age=" + strconv.Itoa(cacheTTL) + ", s-maxage=" + strconv.Itoa(cacheTTL) + ", immutable"
	cdnCacheControl = "max-age=" + strconv.Itoa(cacheTTL)
)

type Handlers struct {
	config      *config.Config
	logger      *zap.Logger
	blobs       blob.Store
	cache       edgecache.Cache
	transformer imaging.Transformer
	verifier    auth.Verifier
	tasks       *detach.Group
	metrics     *metrics.Metrics

	now func() time.Time
}

func New(
	config *config.Config,
	logger *zap.Logger,
	blobs blob.Store,
	cache edgecache.Cache,
	transformer imaging.Transformer,
	verifier auth.Verifier,
	tasks *detach.Group,
	m *metrics.Metrics,
) *Handlers {
	if cache == nil {
		cache = edgecache.NewNoopCache()
	}
	if tasks == nil {
		tasks = detach.New(config.DetachedTaskTimeout, logger)
	}
	return &Handlers{
		config:      config,
		logger:      logger,
		blobs:       blobs,
		cache:       cache,
		transformer: transformer,
		verifier:    verifier,
		tasks:       tasks,
		metrics:     m,
		now:         time.Now,
	}
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		ip := extractIP(r)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", ip),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

// CORSMiddleware answers every OPTIONS request as a preflight for the
// configured origin.
func (h *Handlers) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			header := w.Header()
			header.Set("Access-Control-Allow-Origin", h.config.AllowedOrigin)
			header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			header.Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HandleImage serves GET /images/<container>/<ownerId>/<filename>?type=<profile>.
func (h *Handlers) HandleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
		return
	}

	match := imagePath.FindStringSubmatch(r.URL.Path)
	if match == nil || !h.isContainer(match[1]) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	container, ownerID, filename := match[1], match[2], match[3]

	transformType := r.URL.Query().Get("type")
	if transformType == "" {
		transformType = imaging.DefaultProfile
	}
	profile, ok := imaging.Lookup(transformType)
	if !ok {
		http.Error(w, "Invalid transformation type", http.StatusBadRequest)
		return
	}

	// The filename is a UUID fixed at upload, so name+profile identifies the
	// bytes and a matching validator needs neither the cache nor the original.
	// A 304 here says nothing about whether the object still exists.
	etag := ETag(filename, transformType)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		header := w.Header()
		header.Set("ETag", etag)
		header.Set("Cache-Control", cacheControl)
		header.Set("CDN-Cache-Control", cdnCacheControl)
		header.Set("X-Cache-Status", StatusNotModified)
		w.WriteHeader(http.StatusNotModified)
		h.metrics.ImageRequest(StatusNotModified)
		return
	}

	ctx := r.Context()
	cacheKey := edgecache.RequestKey(r, h.config.EdgeCacheVary...)

	if cached, ok := h.cache.Match(ctx, cacheKey); ok {
		header := w.Header()
		for name, values := range cached.Header {
			header[name] = values
		}
		header.Set("X-Cache-Status", StatusHit)
		w.WriteHeader(cached.Status)
		if r.Method != http.MethodHead {
			w.Write(cached.Body)
		}
		h.metrics.ImageRequest(StatusHit)
		return
	}

	original, err := h.blobs.Get(ctx, ObjectKey(container, ownerID, filename))
	if errors.Is(err, blob.ErrNotFound) {
		http.Error(w, "Image not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to fetch original image", zap.String("key", ObjectKey(container, ownerID, filename)), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data, err := h.transformer.Transform(ctx, original.Data, profile)
	if err != nil {
		h.logger.Error("Failed to transform image",
			zap.String("filename", filename),
			zap.String("type", transformType),
			zap.Error(err),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	header := http.Header{}
	header.Set("Content-Type", outputFormat)
	header.Set("Content-Length", strconv.Itoa(len(data)))
	header.Set("Cache-Control", cacheControl)
	header.Set("CDN-Cache-Control", cdnCacheControl)
	header.Set("ETag", etag)
	header.Set("X-Cache-Status", StatusMiss)
	header.Set("X-Transform-Type", transformType)
	header.Set("Access-Control-Allow-Origin", h.config.AllowedOrigin)
	header.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	header.Set("Access-Control-Expose-Headers", "X-Cache-Status")

	resp := &edgecache.CachedResponse{
		Status:   http.StatusOK,
		Header:   header,
		Body:     data,
		StoredAt: h.now(),
	}
	h.tasks.Go(ctx, "edge cache put "+r.URL.Path, func(ctx context.Context) error {
		return h.cache.Put(ctx, cacheKey, resp)
	})

	out := w.Header()
	for name, values := range header {
		out[name] = append([]string(nil), values...)
	}
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(data)
	}
	h.metrics.ImageRequest(StatusMiss)
}

// HandleUpload serves POST /upload.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
		return
	}

	principal, err := h.verifier.Verify(r.Context(), auth.BearerToken(r))
	if err != nil || principal.UserID <= 0 {
		h.logger.Debug("Upload rejected", zap.Error(err))
		h.writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}

	// Leave headroom for the multipart envelope; the file itself is checked below.
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": h.sizeMessage()})
			return
		}
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Failed to parse multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "No file provided"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !h.config.IsUploadAllowed(contentType) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid file format. Only JPG, JPEG, and PNG are allowed"})
		return
	}

	if header.Size > h.config.MaxUploadSize {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": h.sizeMessage()})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read uploaded file", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Failed to read file"})
		return
	}

	key := UploadKey(h.config.ImageContainers[0], principal.UserID, uuid.New(), fileExtension(header.Filename, contentType))
	metadata := map[string]string{
		"userId":       strconv.FormatInt(principal.UserID, 10),
		"originalName": header.Filename,
		"uploadedAt":   h.now().UTC().Format(time.RFC3339),
	}

	if err := h.blobs.Put(r.Context(), key, data, contentType, metadata); err != nil {
		h.logger.Error("Failed to store upload", zap.String("key", key), zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to upload image"})
		return
	}

	h.logger.Info("Image uploaded",
		zap.String("key", key),
		zap.Int64("user_id", principal.UserID),
		zap.Int("bytes", len(data)),
	)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"key":     key,
		"size":    len(data),
		"type":    contentType,
	})
}

// ObjectKey is the blob key of an original: images/<container>/<ownerId>/<filename>.
func ObjectKey(container, ownerID, filename string) string {
	return "images/" + container + "/" + ownerID + "/" + filename
}

// UploadKey builds the key for a new upload. The random id keeps uploads of
// the same file name apart, the owner id keeps users apart.
func UploadKey(container string, ownerID int64, id uuid.UUID, ext string) string {
	return ObjectKey(container, strconv.FormatInt(ownerID, 10), id.String()+"."+ext)
}

func ETag(filename, transformType string) string {
	return `"` + filename + "-" + transformType + `"`
}

func (h *Handlers) isContainer(name string) bool {
	for _, c := range h.config.ImageContainers {
		if c == name {
			return true
		}
	}
	return false
}

func (h *Handlers) sizeMessage() string {
	return "File size exceeds " + humanSize(h.config.MaxUploadSize) + " limit"
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	header := w.Header()
	header.Set("Content-Type", "application/json")
	header.Set("Access-Control-Allow-Origin", h.config.AllowedOrigin)
	header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// etagMatches implements the If-None-Match comparison: a list of tags, weak
// prefixes ignored, "*" matching anything.
func etagMatches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

var extensionPattern = regexp.MustCompile(`^[a-z0-9]{1,5}$`)

// fileExtension keeps the original extension when it is a plain token, so the
// generated filename always matches the image path pattern.
func fileExtension(name, contentType string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if extensionPattern.MatchString(ext) {
		return ext
	}
	switch contentType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return strconv.FormatInt(n/mb, 10) + "MB"
	}
	if n%1024 == 0 {
		return strconv.FormatInt(n/1024, 10) + "KB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}

// Not for real production use due to potential spoofing
func extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
