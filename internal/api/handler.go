package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/idriskr/portfolio-admin/internal/content"
	"github.com/idriskr/portfolio-admin/internal/github"
	"github.com/rs/zerolog"
)

const (
	msgMethodNotAllowed = "Method not allowed"
	msgUnauthorized     = "Unauthorized - bad admin key"
	msgInvalidJSON      = "Invalid JSON body"
	msgMissingFields    = "Missing path or contentBase64"
	msgGitHubError      = "GitHub API error"
	msgServerError      = "Server error"

	maxBodyBytes = 10 << 20
)

// Files reads and writes repository files. Implemented by *github.Client; inject a fake in tests.
type Files interface {
	FileSHA(ctx context.Context, path, ref string) (string, error)
	PutFile(ctx context.Context, w github.FileWrite) (json.RawMessage, error)
}

type Handler struct {
	files  Files
	branch string
}

// NewHandler builds a handler writing to branch unless a request names another.
func NewHandler(files Files, branch string) *Handler {
	return &Handler{files: files, branch: branch}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string, details any) {
	respondJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed, nil)
}

func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusUnauthorized, msgUnauthorized, nil)
}

// UpdateFile creates or updates one file and commits it. Callers must already
// be authorized.
func (h *Handler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidJSON, nil)
		return
	}
	var req UpdateFileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, msgInvalidJSON, nil)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, msgMissingFields, nil)
		return
	}
	ww, ok := w.(middleware.WrapResponseWriter)
	if !ok {
		ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	}
	h.commit(r.Context(), ww, &req)
}

func (h *Handler) commit(ctx context.Context, w middleware.WrapResponseWriter, req *UpdateFileRequest) {
	defer func() {
		if rec := recover(); rec != nil {
			zerolog.Ctx(ctx).Error().Interface("panic", rec).Str("path", req.Path).Msg("update file panicked")
			// Status is set once a header went out; the response can't be replaced then.
			if w.Status() == 0 {
				respondError(w, http.StatusInternalServerError, msgServerError, fmt.Sprint(rec))
			}
		}
	}()
	log := zerolog.Ctx(ctx).With().Str("path", req.Path).Logger()

	ref := req.Branch
	if ref == "" {
		ref = h.branch
	}

	// A missing, rejected or unreadable lookup means "no such file"; a wrong
	// guess surfaces as a rejected write below. Only a failed call aborts.
	var sha *string
	prev, err := h.files.FileSHA(ctx, req.Path, ref)
	var apiErr *github.APIError
	switch {
	case err == nil && prev != "":
		sha = &prev
	case err == nil, errors.Is(err, github.ErrNotFound):
		log.Debug().Str("ref", ref).Msg("no existing file, creating")
	case errors.As(err, &apiErr), errors.Is(err, github.ErrMalformedResponse):
		log.Warn().Err(err).Str("ref", ref).Msg("revision lookup failed, writing without sha")
	default:
		log.Error().Err(err).Str("ref", ref).Msg("revision lookup failed")
		respondError(w, http.StatusInternalServerError, msgServerError, err.Error())
		return
	}

	message := req.Message
	if message == "" {
		message = fmt.Sprintf("Update %s via Admin", req.Path)
	}
	// The blob sha is informational; content GitHub can't decode is still sent.
	var blob string
	if data, err := content.Decode(req.ContentBase64); err == nil {
		blob = content.BlobSHA(data)
		if sha != nil && *sha == blob {
			log.Info().Str("sha", blob).Msg("content unchanged")
		}
	}

	res, err := h.files.PutFile(ctx, github.FileWrite{
		Path:    req.Path,
		Message: message,
		Content: req.ContentBase64,
		Branch:  ref,
		SHA:     sha,
	})
	if err != nil {
		if errors.As(err, &apiErr) {
			if details, ok := apiErr.JSON(); ok {
				log.Error().Err(err).Int("upstream_status", apiErr.StatusCode).Msg("github rejected write")
				respondError(w, http.StatusInternalServerError, msgGitHubError, details)
				return
			}
		}
		log.Error().Err(err).Msg("write failed")
		respondError(w, http.StatusInternalServerError, msgServerError, err.Error())
		return
	}
	log.Info().Str("ref", ref).Bool("update", sha != nil).Str("sha", blob).Msg("file committed")
	respondJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: res})
}
