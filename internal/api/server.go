// Package api exposes the persistence store over HTTP.
package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"designmuse/internal/blob"
	"designmuse/internal/journal"
	"designmuse/internal/search"
	"designmuse/internal/store"
)

// Server handles HTTP requests for the inspiration board API.
type Server struct {
	store  *store.Store
	index  *search.Index
	blobs  blob.Store
	logger *slog.Logger
	addr   string
}

// New creates an API server. index and blobs may be nil: without an
// index the search endpoint reports 503, without a blob store uploaded
// data URIs stay inline in the database.
func New(s *store.Store, idx *search.Index, blobs blob.Store, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{store: s, index: idx, blobs: blobs, logger: logger, addr: addr}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	s.logger.Info("starting server", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/weekly/{weekId}", s.getWeek)
	mux.HandleFunc("POST /api/entries", s.addEntry)
	mux.HandleFunc("PATCH /api/entries/{id}", s.patchEntry)
	mux.HandleFunc("POST /api/notes", s.saveNote)
	mux.HandleFunc("GET /api/search", s.searchEntries)
	mux.HandleFunc("GET /images/{key}", s.getImage)
	mux.HandleFunc("GET /health", s.health)

	return s.withLogging(withCORS(mux))
}

// withCORS adds CORS headers for frontend development.
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getWeek(w http.ResponseWriter, r *http.Request) {
	weekID := r.PathValue("weekId")

	entries, notes, err := s.store.FetchWeek(weekID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"notes":   notes,
	})
}

func (s *Server) addEntry(w http.ResponseWriter, r *http.Request) {
	var e journal.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(e.ImageURL) == "" {
		writeError(w, http.StatusBadRequest, "imageUrl is required")
		return
	}
	derived, err := journal.WeekIDForDayKey(e.DayKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if e.WeekID == "" {
		e.WeekID = derived
	} else if e.WeekID != derived {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("day %s belongs to week %s, not %s", e.DayKey, derived, e.WeekID))
		return
	}

	if url, err := s.offloadImage(r, e.ImageURL); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if url != "" {
		e.ImageURL = url
	}

	saved, err := s.store.InsertEntry(e)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.index != nil {
		if err := s.index.IndexEntry(saved); err != nil {
			s.logger.Warn("index entry failed", "id", saved.ID, "err", err)
		}
	}

	writeJSON(w, http.StatusCreated, saved)
}

// offloadImage moves a data URI payload into the blob store and
// returns the replacement reference URL. Returns "" when the URL is
// not a data URI or no blob store is configured.
func (s *Server) offloadImage(r *http.Request, imageURL string) (string, error) {
	if s.blobs == nil {
		return "", nil
	}
	mimeType, data, ok := parseDataURI(imageURL)
	if !ok {
		return "", nil
	}

	key := blob.Key(data) + extForMIME(mimeType)
	if err := s.blobs.Put(r.Context(), key, bytes.NewReader(data), int64(len(data))); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return "/images/" + key, nil
}

func (s *Server) patchEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch journal.EntryPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.store.UpdateEntry(id, patch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}

	if s.index != nil {
		if err := s.index.IndexEntry(updated); err != nil {
			s.logger.Warn("index entry failed", "id", updated.ID, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, updated)
}

// SaveNoteRequest is the request body for upserting a weekly note.
type SaveNoteRequest struct {
	WeekID  string `json:"weekId"`
	Content string `json:"content"`
}

func (s *Server) saveNote(w http.ResponseWriter, r *http.Request) {
	var req SaveNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WeekID == "" {
		writeError(w, http.StatusBadRequest, "weekId is required")
		return
	}

	if err := s.store.UpsertNote(req.WeekID, req.Content); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.index != nil {
		if err := s.index.IndexNote(req.WeekID, req.Content); err != nil {
			s.logger.Warn("index note failed", "week", req.WeekID, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) searchEntries(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeError(w, http.StatusServiceUnavailable, "search index not configured")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	results, err := s.index.Search(query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []*search.Result{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"query":   query,
	})
}

func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	if s.blobs == nil {
		writeError(w, http.StatusNotFound, "image store not configured")
		return
	}
	key := r.PathValue("key")

	var buf bytes.Buffer
	if err := s.blobs.Get(r.Context(), key, &buf); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "image not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", mimeForKey(key))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Write(buf.Bytes())
}

// parseDataURI splits "data:<mime>;base64,<payload>" into its MIME
// type and decoded bytes.
func parseDataURI(uri string) (mimeType string, data []byte, ok bool) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, false
	}
	meta, payload, found := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", nil, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	return strings.TrimSuffix(meta, ";base64"), data, true
}

func extForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func mimeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".gif"):
		return "image/gif"
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	default:
		return "image/png"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
