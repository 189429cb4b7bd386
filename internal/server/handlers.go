package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/licenscan/licenscan/pkg/deps"
	apperrors "github.com/licenscan/licenscan/pkg/errors"
	"github.com/licenscan/licenscan/pkg/license"
	"github.com/licenscan/licenscan/pkg/lockfile"
	"github.com/licenscan/licenscan/pkg/registry"
	"github.com/licenscan/licenscan/pkg/report"
	"github.com/licenscan/licenscan/pkg/scan"
	"github.com/licenscan/licenscan/pkg/store"
)

// scanRequest is the POST /v1/scans body. Content is the raw lockfile;
// Filename selects the parser (yarn.lock, package-lock.json, poetry.lock).
type scanRequest struct {
	Filename     string   `json:"filename"`
	Content      string   `json:"content"`
	Allowed      []string `json:"allowed,omitempty"`
	RetryUnknown bool     `json:"retry_unknown,omitempty"`
	Workers      int      `json:"workers,omitempty"`
}

// scanResponse is the POST /v1/scans reply.
type scanResponse struct {
	ID         uuid.UUID             `json:"id"`
	Total      int                   `json:"total"`
	Unknown    int                   `json:"unknown"`
	Violations []*deps.Record        `json:"violations,omitempty"`
	ByLicense  []report.LicenseCount `json:"by_license"`
	Records    []*deps.Record        `json:"records"`
}

func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid JSON body"))
		return
	}
	if req.Filename == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, apperrors.New(apperrors.ErrCodeInvalidInput, "filename and content are required"))
		return
	}

	// The parser dispatches on the file name, so the upload is staged
	// under its original base name. Base() also strips any path the
	// client smuggled in.
	dir, err := os.MkdirTemp("", "licenscan-upload-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, apperrors.Wrap(apperrors.ErrCodeInternal, err, "could not stage upload"))
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(req.Filename))
	if err := os.WriteFile(path, []byte(req.Content), 0o600); err != nil {
		writeError(w, http.StatusInternalServerError, apperrors.Wrap(apperrors.ErrCodeInternal, err, "could not stage upload"))
		return
	}

	parsed, err := lockfile.ParseFile(path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	regOpts := s.opts.Registry
	regOpts.Preresolved = lockfile.Preresolved(parsed)
	regOpts.Logger = s.logger
	resolver := registry.New(regOpts)

	engine := scan.New(resolver, s.cache, scan.Options{
		Workers:      firstPositive(req.Workers, s.opts.Workers),
		RetryUnknown: req.RetryUnknown,
		TrackEdges:   true,
		Logger:       s.logger,
	})
	result, err := engine.Run(r.Context(), lockfile.Identities(parsed))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	archived := &store.Scan{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Lockfiles: []string{filepath.Base(req.Filename)},
		Records:   result.Records,
		Edges:     store.EdgesFromMap(result.Edges),
	}
	if err := s.store.Put(r.Context(), archived); err != nil {
		s.logger.Error("failed to archive scan", "id", archived.ID, "error", err)
	}

	summary := report.Summarize(result.Records, license.NewChecker(req.Allowed))
	writeJSON(w, http.StatusOK, scanResponse{
		ID:         archived.ID,
		Total:      summary.Total,
		Unknown:    summary.Unknown,
		Violations: summary.Violations,
		ByLicense:  summary.ByLicense,
		Records:    result.Records,
	})
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	scans, err := s.store.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, apperrors.Wrap(apperrors.ErrCodeInternal, err, "could not list scans"))
		return
	}

	// The listing stays light: records are fetched per scan.
	type item struct {
		ID        uuid.UUID `json:"id"`
		CreatedAt time.Time `json:"created_at"`
		Lockfiles []string  `json:"lockfiles"`
		Total     int       `json:"total"`
	}
	items := make([]item, 0, len(scans))
	for _, sc := range scans {
		items = append(items, item{
			ID:        sc.ID,
			CreatedAt: sc.CreatedAt,
			Lockfiles: sc.Lockfiles,
			Total:     len(sc.Records),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid scan ID"))
		return
	}

	archived, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, apperrors.New(apperrors.ErrCodeScanNotFound, "scan not found"))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, apperrors.Wrap(apperrors.ErrCodeInternal, err, "could not load scan"))
		return
	}
	writeJSON(w, http.StatusOK, archived)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders an error body, exposing the machine-readable code
// when the error carries one.
func writeError(w http.ResponseWriter, status int, err error) {
	body := map[string]string{"error": apperrors.UserMessage(err)}
	if code := apperrors.GetCode(err); code != "" {
		body["code"] = string(code)
	}
	writeJSON(w, status, body)
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
