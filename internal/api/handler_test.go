package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/idriskr/portfolio-admin/internal/github"
)

type fakeFiles struct {
	sha    string
	getErr error
	putErr error
	panics bool

	gets   int
	writes []github.FileWrite
}

func (f *fakeFiles) FileSHA(_ context.Context, _, _ string) (string, error) {
	f.gets++
	return f.sha, f.getErr
}

func (f *fakeFiles) PutFile(_ context.Context, w github.FileWrite) (json.RawMessage, error) {
	f.writes = append(f.writes, w)
	if f.panics {
		panic("boom")
	}
	if f.putErr != nil {
		return nil, f.putErr
	}
	return json.RawMessage(`{"content":{"path":"` + w.Path + `","sha":"newsha"},"commit":{"sha":"c1"}}`), nil
}

func postUpdate(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.UpdateFile(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var res map[string]json.RawMessage
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return res
}

func errorField(t *testing.T, res map[string]json.RawMessage) string {
	t.Helper()
	var msg string
	if err := json.Unmarshal(res["error"], &msg); err != nil {
		t.Fatalf("error field: %v (%s)", err, res["error"])
	}
	return msg
}

func TestHandler_UpdateFile_badJSON(t *testing.T) {
	for _, body := range []string{"", "{", "not json", `{"path":"a"} trailing`, `{"path":5,"contentBase64":"SGVsbG8="}`} {
		files := &fakeFiles{}
		rec := postUpdate(t, NewHandler(files, "main"), body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%q: code %d", body, rec.Code)
			continue
		}
		if msg := errorField(t, decodeError(t, rec)); msg != "Invalid JSON body" {
			t.Errorf("%q: error %q", body, msg)
		}
		if files.gets != 0 || len(files.writes) != 0 {
			t.Errorf("%q: outbound call made", body)
		}
	}
}

func TestHandler_UpdateFile_missingFields(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`null`,
		`{"contentBase64":"SGVsbG8="}`,
		`{"path":"docs/readme.md"}`,
		`{"path":"","contentBase64":"SGVsbG8="}`,
		`{"path":"docs/readme.md","contentBase64":null}`,
	} {
		files := &fakeFiles{}
		rec := postUpdate(t, NewHandler(files, "main"), body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: code %d", body, rec.Code)
			continue
		}
		if msg := errorField(t, decodeError(t, rec)); msg != "Missing path or contentBase64" {
			t.Errorf("%s: error %q", body, msg)
		}
		if files.gets != 0 || len(files.writes) != 0 {
			t.Errorf("%s: outbound call made", body)
		}
	}
}

func TestHandler_UpdateFile_contentPassedThrough(t *testing.T) {
	// Unpadded and non-base64 content is GitHub's to judge, not ours.
	for _, c := range []string{"SGVsbG8", "%%%", "SGVs\nbG8="} {
		files := &fakeFiles{getErr: github.ErrNotFound}
		body, _ := json.Marshal(UpdateFileRequest{Path: "a.md", ContentBase64: c})
		rec := postUpdate(t, NewHandler(files, "main"), string(body))
		if rec.Code != http.StatusOK {
			t.Errorf("%q: code %d", c, rec.Code)
			continue
		}
		if len(files.writes) != 1 || files.writes[0].Content != c {
			t.Errorf("%q: writes %+v", c, files.writes)
		}
	}
}

func TestHandler_UpdateFile_create(t *testing.T) {
	files := &fakeFiles{getErr: github.ErrNotFound}
	rec := postUpdate(t, NewHandler(files, "main"), `{"path":"docs/readme.md","contentBase64":"SGVsbG8="}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d body %s", rec.Code, rec.Body.String())
	}
	if len(files.writes) != 1 {
		t.Fatalf("writes %d", len(files.writes))
	}
	w := files.writes[0]
	if w.SHA != nil {
		t.Errorf("create sent sha %q", *w.SHA)
	}
	if w.Path != "docs/readme.md" || w.Content != "SGVsbG8=" || w.Branch != "main" {
		t.Errorf("write %+v", w)
	}
	if w.Message != "Update docs/readme.md via Admin" {
		t.Errorf("default message %q", w.Message)
	}

	var res struct {
		Success bool `json:"success"`
		Data    struct {
			Content struct {
				SHA string `json:"sha"`
			} `json:"content"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Data.Content.SHA != "newsha" {
		t.Errorf("response %+v", res)
	}
}

func TestHandler_UpdateFile_update(t *testing.T) {
	files := &fakeFiles{sha: "abc123"}
	rec := postUpdate(t, NewHandler(files, "main"), `{"path":"docs/readme.md","contentBase64":"SGVsbG8=","message":"edit","branch":"dev"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d body %s", rec.Code, rec.Body.String())
	}
	w := files.writes[0]
	if w.SHA == nil || *w.SHA != "abc123" {
		t.Errorf("sha %v", w.SHA)
	}
	if w.Message != "edit" || w.Branch != "dev" {
		t.Errorf("write %+v", w)
	}
}

func TestHandler_UpdateFile_lookupFailureIsLenient(t *testing.T) {
	files := &fakeFiles{getErr: &github.APIError{StatusCode: http.StatusForbidden, Body: []byte(`{"message":"rate limited"}`)}}
	rec := postUpdate(t, NewHandler(files, "main"), `{"path":"a.md","contentBase64":"SGVsbG8="}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d", rec.Code)
	}
	if files.writes[0].SHA != nil {
		t.Error("sha sent after failed lookup")
	}
}

func TestHandler_UpdateFile_upstreamRejected(t *testing.T) {
	files := &fakeFiles{
		getErr: github.ErrNotFound,
		putErr: &github.APIError{StatusCode: http.StatusUnprocessableEntity, Body: []byte(`{"message":"Validation Failed"}`)},
	}
	rec := postUpdate(t, NewHandler(files, "main"), `{"path":"a.md","contentBase64":"SGVsbG8="}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code %d", rec.Code)
	}
	res := decodeError(t, rec)
	if msg := errorField(t, res); msg != "GitHub API error" {
		t.Errorf("error %q", msg)
	}
	if string(res["details"]) != `{"message":"Validation Failed"}` {
		t.Errorf("details %s", res["details"])
	}
}

func TestHandler_UpdateFile_transportFailure(t *testing.T) {
	files := &fakeFiles{getErr: github.ErrNotFound, putErr: errors.New("dial tcp: connection refused")}
	rec := postUpdate(t, NewHandler(files, "main"), `{"path":"a.md","contentBase64":"SGVsbG8="}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code %d", rec.Code)
	}
	res := decodeError(t, rec)
	if msg := errorField(t, res); msg != "Server error" {
		t.Errorf("error %q", msg)
	}
	var details string
	if err := json.Unmarshal(res["details"], &details); err != nil || !strings.Contains(details, "connection refused") {
		t.Errorf("details %s", res["details"])
	}
}

func TestHandler_UpdateFile_upstreamNotJSON(t *testing.T) {
	files := &fakeFiles{
		getErr: github.ErrNotFound,
		putErr: &github.APIError{StatusCode: http.StatusBadGateway, Body: []byte("<html>bad gateway</html>")},
	}
	rec := postUpdate(t, NewHandler(files, "main"), `{"path":"a.md","contentBase64":"SGVsbG8="}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code %d", rec.Code)
	}
	res := decodeError(t, rec)
	if msg := errorField(t, res); msg != "Server error" {
		t.Errorf("error %q", msg)
	}
	var details string
	if err := json.Unmarshal(res["details"], &details); err != nil || !strings.Contains(details, "502") {
		t.Errorf("details %s", res["details"])
	}
}

func TestHandler_UpdateFile_lookupTransportFailure(t *testing.T) {
	files := &fakeFiles{getErr: errors.New("dial tcp: connection refused")}
	rec := postUpdate(t, NewHandler(files, "main"), `{"path":"a.md","contentBase64":"SGVsbG8="}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code %d", rec.Code)
	}
	if msg := errorField(t, decodeError(t, rec)); msg != "Server error" {
		t.Errorf("error %q", msg)
	}
	if len(files.writes) != 0 {
		t.Error("write issued after failed lookup call")
	}
}

func TestHandler_UpdateFile_malformedLookupIsLenient(t *testing.T) {
	files := &fakeFiles{getErr: github.ErrMalformedResponse}
	rec := postUpdate(t, NewHandler(files, "main"), `{"path":"a.md","contentBase64":"SGVsbG8="}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d", rec.Code)
	}
	if len(files.writes) != 1 || files.writes[0].SHA != nil {
		t.Errorf("writes %+v", files.writes)
	}
}

func TestHandler_UpdateFile_panic(t *testing.T) {
	files := &fakeFiles{panics: true}
	rec := postUpdate(t, NewHandler(files, "main"), `{"path":"a.md","contentBase64":"SGVsbG8="}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code %d", rec.Code)
	}
	if msg := errorField(t, decodeError(t, rec)); msg != "Server error" {
		t.Errorf("error %q", msg)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := NewHandler(&fakeFiles{}, "main")
	rec := httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("code %d", rec.Code)
	}
	if msg := errorField(t, decodeError(t, rec)); msg != "Method not allowed" {
		t.Errorf("error %q", msg)
	}
}

// failingWriter accepts the status line and then fails every body write.
type failingWriter struct {
	*httptest.ResponseRecorder
	headers int
}

func (f *failingWriter) WriteHeader(code int) {
	f.headers++
	f.ResponseRecorder.WriteHeader(code)
}

func (f *failingWriter) Write([]byte) (int, error) {
	panic("connection reset")
}

func TestHandler_UpdateFile_panicAfterWrite(t *testing.T) {
	files := &fakeFiles{getErr: github.ErrNotFound}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"path":"a.md","contentBase64":"SGVsbG8="}`))
	w := &failingWriter{ResponseRecorder: httptest.NewRecorder()}
	NewHandler(files, "main").UpdateFile(w, req)
	if w.headers != 1 {
		t.Errorf("WriteHeader called %d times", w.headers)
	}
	if w.Code != http.StatusOK {
		t.Errorf("code %d", w.Code)
	}
}
