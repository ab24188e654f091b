package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperlens/internal/assistant"
	"paperlens/internal/citations"
	"paperlens/internal/ingest"
	"paperlens/internal/logging"
	"paperlens/internal/models"
	"paperlens/internal/providers"
	"paperlens/internal/util"
	"paperlens/internal/workflows"
)

const maxUploadBytes = 64 << 20

type PaperReader interface {
	GetPaper(ctx context.Context, id string) (models.Paper, error)
}

type CitationReader interface {
	ListByPaper(ctx context.Context, paperID string) ([]models.Citation, error)
}

type Ingester interface {
	Ingest(ctx context.Context, in ingest.Input) (ingest.Result, error)
}

type CitationGetter interface {
	GetCitation(ctx context.Context, paperID, key string) (models.Citation, error)
}

type Explainer interface {
	Explain(ctx context.Context, req assistant.Request) (assistant.Response, error)
}

// IngestRunner starts and inspects background PDF ingestion.
type IngestRunner interface {
	StartIngest(ctx context.Context, in workflows.PaperIngestInput) (string, error)
	IngestStatus(ctx context.Context, workflowID string) (workflows.IngestStatus, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type ProviderLister interface {
	Status() []providers.ProviderStatus
}

type Deps struct {
	Papers    PaperReader
	Citations CitationReader
	Ingest    Ingester
	Enrich    CitationGetter
	Assistant Explainer
	Runner    IngestRunner
	DB        Pinger
	Providers ProviderLister
	UploadDir string
	Logger    *zap.Logger

	// FetchClient downloads PDFs for /papers/from-url; FetchTimeout bounds
	// each download. MaxPDFBytes caps uploads and downloads alike.
	FetchClient  *http.Client
	FetchTimeout time.Duration
	MaxPDFBytes  int64
}

type Server struct {
	d   Deps
	log *zap.Logger
}

func NewServer(d Deps) *Server {
	if d.FetchClient == nil {
		d.FetchClient = &http.Client{}
	}
	if d.FetchTimeout <= 0 {
		d.FetchTimeout = defaultFetchTimeout
	}
	if d.MaxPDFBytes <= 0 {
		d.MaxPDFBytes = maxUploadBytes
	}
	return &Server{d: d, log: logging.OrNop(d.Logger)}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/papers", s.handlePapers)
	mux.HandleFunc("/papers/", s.handlePapersScoped)
	mux.HandleFunc("/ingest/", s.handleIngestStatus)
	mux.HandleFunc("/explain", s.handleExplain)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.d.DB != nil {
		if err := s.d.DB.Ping(r.Context()); err != nil {
			writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("database ping: %w", err))
			return
		}
	}
	body := map[string]any{"ok": true}
	if s.d.Providers != nil {
		body["providers"] = s.d.Providers.Status()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handlePapers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Title   string   `json:"title"`
		Authors []string `json:"authors"`
		Year    *int     `json:"year"`
		Text    string   `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	res, err := s.d.Ingest.Ingest(r.Context(), ingest.Input{Title: req.Title, Authors: req.Authors, Year: req.Year, Text: req.Text})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handlePapersScoped(w http.ResponseWriter, r *http.Request) {
	parts, err := pathSegments(r.URL.EscapedPath(), "/papers/")
	if err != nil || len(parts) == 0 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}

	switch {
	case len(parts) == 1 && parts[0] == "upload":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleUpload(w, r)
	case len(parts) == 1 && parts[0] == "from-url":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleFromURL(w, r)
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleGetPaper(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "text":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handlePaperText(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "citations":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		c, err := s.d.Enrich.GetCitation(r.Context(), parts[0], parts[2])
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"citation": c})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleGetPaper(w http.ResponseWriter, r *http.Request, paperID string) {
	p, err := s.d.Papers.GetPaper(r.Context(), paperID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cs, err := s.d.Citations.ListByPaper(r.Context(), paperID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	type citationSummary struct {
		CitationKey      string  `json:"citation_key"`
		RawReference     *string `json:"raw_reference,omitempty"`
		CitedTitle       *string `json:"cited_title,omitempty"`
		Enriched         bool    `json:"enriched"`
		EnrichmentFailed bool    `json:"enrichment_failed"`
	}
	summaries := make([]citationSummary, 0, len(cs))
	for _, c := range cs {
		summaries = append(summaries, citationSummary{
			CitationKey:      c.CitationKey,
			RawReference:     c.RawReference,
			CitedTitle:       c.CitedTitle,
			Enriched:         c.Enriched,
			EnrichmentFailed: c.EnrichmentFailed,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"paper": p, "citations": summaries})
}

// handlePaperText returns the raw text with the rune spans of every marker
// citing each of the paper's citation keys.
func (s *Server) handlePaperText(w http.ResponseWriter, r *http.Request, paperID string) {
	p, err := s.d.Papers.GetPaper(r.Context(), paperID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cs, err := s.d.Citations.ListByPaper(r.Context(), paperID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	type marker struct {
		Key       string           `json:"key"`
		Positions []citations.Span `json:"positions"`
	}
	seen := make(map[string]bool, len(cs))
	markers := make([]marker, 0, len(cs))
	for _, c := range cs {
		if seen[c.CitationKey] {
			continue
		}
		seen[c.CitationKey] = true
		markers = append(markers, marker{Key: c.CitationKey, Positions: citations.MarkerSpans(p.RawText, c.CitationKey)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": p.RawText, "citation_markers": markers})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.d.Runner == nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("ingestion worker not configured: %w", util.ErrProviderUnavailable))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.d.MaxPDFBytes)
	if err := r.ParseMultipartForm(s.d.MaxPDFBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	fh, ok := uploadedPDF(r.MultipartForm)
	if !ok {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no pdf file provided"))
		return
	}
	if err := os.MkdirAll(s.d.UploadDir, 0o755); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	path, err := s.saveUploadedFile(fh)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.startIngest(w, r, path, filepath.Base(fh.Filename), r.FormValue("title"), nil)
}

// handleFromURL downloads a PDF (arXiv abstract links are rewritten to the
// PDF) and hands it to the ingestion workflow like an upload.
func (s *Server) handleFromURL(w http.ResponseWriter, r *http.Request) {
	if s.d.Runner == nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("ingestion worker not configured: %w", util.ErrProviderUnavailable))
		return
	}
	var req struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	path, filename, err := fetchPDF(r.Context(), s.d.FetchClient, req.URL, s.d.UploadDir, s.d.FetchTimeout, s.d.MaxPDFBytes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.startIngest(w, r, path, filename, req.Title, map[string]any{"source_url": strings.TrimSpace(req.URL)})
}

func (s *Server) startIngest(w http.ResponseWriter, r *http.Request, path, filename, title string, extra map[string]any) {
	wfID, err := s.d.Runner.StartIngest(r.Context(), workflows.PaperIngestInput{
		PaperPath: path,
		Filename:  filename,
		Title:     strings.TrimSpace(title),
	})
	if err != nil {
		_ = os.Remove(path)
		s.fail(w, r, err)
		return
	}
	body := map[string]any{"workflow_id": wfID, "filename": filename}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusAccepted, body)
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	parts, err := pathSegments(r.URL.EscapedPath(), "/ingest/")
	if err != nil || len(parts) != 1 || parts[0] == "" || s.d.Runner == nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	st, err := s.d.Runner.IngestStatus(r.Context(), parts[0])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req assistant.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	resp, err := s.d.Assistant.Explain(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// fail maps core errors onto HTTP statuses and logs unexpected ones.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeErr(w, status, err)
}

func statusFor(err error) int {
	var fe *fetchError
	switch {
	case errors.As(err, &fe):
		return fe.status
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, util.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, util.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func pathSegments(escapedPath, prefix string) ([]string, error) {
	raw := strings.Split(strings.Trim(strings.TrimPrefix(escapedPath, prefix), "/"), "/")
	out := make([]string, len(raw))
	for i, seg := range raw {
		v, err := url.PathUnescape(seg)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func uploadedPDF(form *multipart.Form) (*multipart.FileHeader, bool) {
	if form == nil {
		return nil, false
	}
	if fs := form.File["file"]; len(fs) > 0 && isPDF(fs[0]) {
		return fs[0], true
	}
	for _, fs := range form.File {
		for _, fh := range fs {
			if isPDF(fh) {
				return fh, true
			}
		}
	}
	return nil, false
}

func isPDF(fh *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf")
}

func (s *Server) saveUploadedFile(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	return savePDF(s.d.UploadDir, src, s.d.MaxPDFBytes)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "PL-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusServiceUnavailable:
		return apiError{
			Code:    "PL-API-5030",
			Message: "A required provider or service is not configured or unreachable.",
		}
	case status >= 500:
		switch {
		case status == http.StatusBadGateway:
			return apiError{
				Code:    "PL-API-5020",
				Message: "Could not download the PDF from the given URL.",
			}
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "PL-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "PL-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "PL-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "PL-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "PL-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "PL-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusRequestTimeout:
		code = "PL-API-4008"
		msg = "The URL took too long to respond."
	case status == http.StatusRequestEntityTooLarge:
		code = "PL-API-4013"
		msg = "PDF is too large."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "paper_id and selected_text are required"):
			msg = "Both paper_id and selected_text are required."
		case strings.Contains(raw, "text is required"):
			msg = "Paper text is required."
		case strings.Contains(raw, "no pdf file provided"):
			msg = "No PDF file was provided."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "absolute http(s) url"):
			msg = "Please provide a valid http(s) URL."
		case strings.Contains(raw, "does not point to a pdf"):
			msg = "The URL does not point to a PDF file."
		case strings.Contains(raw, "upstream status"):
			msg = "Failed to fetch the PDF from the URL."
		case strings.Contains(raw, "message") && strings.Contains(raw, "role"):
			msg = "Conversation messages must have role user or assistant."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
