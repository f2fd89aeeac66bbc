// Package ghtest provides an in-memory fake of the GitHub contents API for tests.
package ghtest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/idriskr/portfolio-admin/internal/content"
)

// PutRequest is the decoded body of a PUT, kept for assertions.
type PutRequest struct {
	Path    string  `json:"-"`
	Message string  `json:"message"`
	Content string  `json:"content"`
	Branch  string  `json:"branch"`
	SHA     *string `json:"sha,omitempty"`
}

// Server emulates GET and PUT on /repos/{owner}/{repo}/contents/{path}.
// Files are keyed by branch and path. Set HandleGet or HandlePut to replace
// the default behaviour for one verb.
type Server struct {
	*httptest.Server

	// Token, when set, must be presented as "Bearer <Token>".
	Token     string
	HandleGet http.HandlerFunc
	HandlePut http.HandlerFunc

	mu      sync.Mutex
	files   map[string][]byte
	gets    int
	puts    []PutRequest
	commits int
}

func NewServer() *Server {
	s := &Server{files: make(map[string][]byte)}
	r := chi.NewRouter()
	r.Get("/repos/{owner}/{repo}/contents/*", s.get)
	r.Put("/repos/{owner}/{repo}/contents/*", s.put)
	s.Server = httptest.NewServer(r)
	return s
}

// BaseURL is the API root to hand to the client.
func (s *Server) BaseURL() string {
	return s.URL + "/"
}

// SetFile seeds content on branch and returns its sha.
func (s *Server) SetFile(branch, p string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key(branch, p)] = data
	return content.BlobSHA(data)
}

// File returns the stored content of p on branch.
func (s *Server) File(branch, p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[key(branch, p)]
	return b, ok
}

func (s *Server) Gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func (s *Server) Puts() []PutRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PutRequest(nil), s.puts...)
}

func key(branch, p string) string {
	return branch + ":" + p
}

func filePath(r *http.Request) string {
	p := chi.URLParam(r, "*")
	if u, err := url.PathUnescape(p); err == nil {
		p = u
	}
	return p
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if s.Token == "" || r.Header.Get("Authorization") == "Bearer "+s.Token {
		return true
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
	return false
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.gets++
	s.mu.Unlock()
	if !s.authorized(w, r) {
		return
	}
	if s.HandleGet != nil {
		s.HandleGet(w, r)
		return
	}
	p := filePath(r)
	ref := r.URL.Query().Get("ref")
	data, ok := s.File(ref, p)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":     "file",
		"name":     path.Base(p),
		"path":     p,
		"sha":      content.BlobSHA(data),
		"size":     len(data),
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString(data),
	})
}

func (s *Server) put(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	var req PutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}
	req.Path = filePath(r)
	s.mu.Lock()
	s.puts = append(s.puts, req)
	s.mu.Unlock()
	if s.HandlePut != nil {
		s.HandlePut(w, r)
		return
	}
	s.apply(w, req)
}

func (s *Server) apply(w http.ResponseWriter, req PutRequest) {
	data, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "content is not valid Base64"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, exists := s.files[key(req.Branch, req.Path)]
	switch {
	case exists && req.SHA == nil:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": `Invalid request. "sha" wasn't supplied.`})
		return
	case exists && *req.SHA != content.BlobSHA(existing):
		writeJSON(w, http.StatusConflict, map[string]string{"message": fmt.Sprintf("%s does not match %s", req.Path, *req.SHA)})
		return
	case !exists && req.SHA != nil:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Invalid request. sha given for a new file."})
		return
	}
	s.files[key(req.Branch, req.Path)] = data
	s.commits++
	status := http.StatusCreated
	if exists {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"content": map[string]any{
			"name": path.Base(req.Path),
			"path": req.Path,
			"sha":  content.BlobSHA(data),
			"size": len(data),
			"type": "file",
		},
		"commit": map[string]any{
			"sha":     fmt.Sprintf("%040d", s.commits),
			"message": req.Message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
