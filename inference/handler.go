package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"inference-gateway/inference/application"
	"inference-gateway/inference/domain"
)

// DefaultMaxBodyBytes limita o corpo de POST /ocr.
const DefaultMaxBodyBytes = 10 << 20

// Extractor é o caso de uso de POST /ocr.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (string, error)
	Source() string
}

// ColorLookup é o caso de uso de GET /hex. Nunca falha.
type ColorLookup interface {
	Lookup(ctx context.Context, label string, bypass bool) application.ColorResult
}

type HandlerOptions struct {
	Extractor Extractor
	Colors    ColorLookup
	// Health, se nil, /healthz responde 404.
	Health *HealthHandler
	// Metrics, se nil, /metrics responde 404.
	Metrics      http.Handler
	MaxBodyBytes int64
}

// Handler é o dispatcher: roteia as duas operações e as rotas auxiliares.
type Handler struct {
	opts HandlerOptions
}

func NewHandler(opts HandlerOptions) *Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{opts: opts}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ocr":
		if allowMethod(w, r, http.MethodPost) {
			h.serveOCR(w, r)
		}
		return
	case "/hex":
		if allowMethod(w, r, http.MethodGet, http.MethodHead) {
			h.serveHex(w, r)
		}
		return
	case "/healthz":
		if h.opts.Health != nil {
			if allowMethod(w, r, http.MethodGet, http.MethodHead) {
				h.opts.Health.ServeHTTP(w, r)
			}
			return
		}
	case "/metrics":
		if h.opts.Metrics != nil {
			h.opts.Metrics.ServeHTTP(w, r)
			return
		}
	}
	writeError(w, r, domain.ErrRouteNotFound)
}

func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{
		Error:     http.StatusText(http.StatusMethodNotAllowed),
		RequestID: RequestIDFrom(r.Context()),
	})
	return false
}

type ocrRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mimeType"`
}

type ocrResponse struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func (h *Handler) serveOCR(w http.ResponseWriter, r *http.Request) {
	image, mimeType, err := decodeOCRRequest(w, r, h.opts.MaxBodyBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	text, err := h.opts.Extractor.Extract(r.Context(), image, mimeType)
	if err != nil {
		log.Printf("[Dispatcher] ocr failed request_id=%s: %v", RequestIDFrom(r.Context()), err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ocrResponse{Text: text, Source: h.opts.Extractor.Source()})
}

func decodeOCRRequest(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, string, error) {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	var req ocrRequest
	if err := dec.Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, "", &domain.ValidationError{Field: "body", Message: "too large"}
		}
		return nil, "", &domain.ValidationError{Field: "body", Message: "malformed JSON"}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, "", &domain.ValidationError{Field: "body", Message: "unexpected trailing data"}
	}

	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" {
		return nil, "", &domain.ValidationError{Field: "mimeType", Message: "required"}
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", &domain.ValidationError{Field: "mimeType", Message: "must be an image type"}
	}

	raw := strings.TrimSpace(req.Image)
	// aceita data URL (data:image/png;base64,....)
	if i := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && i >= 0 {
		raw = raw[i+1:]
	}
	if raw == "" {
		return nil, "", &domain.ValidationError{Field: "image", Message: "required"}
	}
	image, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", &domain.ValidationError{Field: "image", Message: "invalid base64"}
	}
	return image, mimeType, nil
}

type hexResponse struct {
	Label  string `json:"label"`
	Hex    string `json:"hex"`
	Cached bool   `json:"cached"`
}

func (h *Handler) serveHex(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	label := q.Get("label")
	bypass := parseFlag(q.Get("bypassCache"))

	res := h.opts.Colors.Lookup(r.Context(), label, bypass)
	writeJSON(w, http.StatusOK, hexResponse{Label: label, Hex: res.Hex, Cached: res.Cached})
}

func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
