package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

var (
	// ErrNotFound is returned by FileSHA when ref has no file at the path:
	// a 404, a directory listing, or an entry without sha.
	ErrNotFound = errors.New("file not found")
	// ErrMalformedResponse is returned when a 2xx body is not JSON.
	ErrMalformedResponse = errors.New("malformed contents response")
)

// APIError is a non-2xx answer from the contents API.
type APIError struct {
	StatusCode int
	Body       []byte
	err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api: status %d: %v", e.StatusCode, e.err)
}

func (e *APIError) Unwrap() error { return e.err }

// JSON returns the remote body when it is valid JSON.
func (e *APIError) JSON() (json.RawMessage, bool) {
	if !json.Valid(e.Body) {
		return nil, false
	}
	return json.RawMessage(e.Body), true
}

// Options configures a Client.
type Options struct {
	Token   string
	Owner   string
	Repo    string
	BaseURL string       // optional; defaults to https://api.github.com/
	HTTP    *http.Client // optional; for tests
}

// Client reads and writes files of one repository through the contents API.
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

// FileWrite is one create-or-update. Content is already base64 encoded and
// is sent as is. SHA is nil for a new file.
type FileWrite struct {
	Path    string
	Message string
	Content string
	Branch  string
	SHA     *string
}

// putBody is the wire form of a contents PUT.
type putBody struct {
	Message string  `json:"message"`
	Content string  `json:"content"`
	Branch  string  `json:"branch,omitempty"`
	SHA     *string `json:"sha,omitempty"`
}

func NewClient(opts Options) (*Client, error) {
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{}
	}
	if opts.Token != "" {
		base := hc.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		authed := *hc
		authed.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
			Base:   base,
		}
		hc = &authed
	}
	client := github.NewClient(hc)
	if opts.BaseURL != "" {
		u, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		client.BaseURL = u
	}
	return &Client{gh: client, owner: opts.Owner, repo: opts.Repo}, nil
}

func (c *Client) contentsURL(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("repos/%s/%s/contents/%s", url.PathEscape(c.owner), url.PathEscape(c.repo), strings.Join(segs, "/"))
}

// FileSHA returns the blob sha of path on ref. Transport failures come back
// unchanged, remote rejections as *APIError.
func (c *Client) FileSHA(ctx context.Context, path, ref string) (string, error) {
	u := c.contentsURL(path)
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}
	req, err := c.gh.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := c.gh.Do(ctx, req, &buf); err != nil {
		if isNotFound(err) {
			return "", ErrNotFound
		}
		return "", asAPIError(err)
	}
	if !json.Valid(buf.Bytes()) {
		return "", ErrMalformedResponse
	}
	var file struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(buf.Bytes(), &file); err != nil || file.SHA == "" {
		return "", ErrNotFound
	}
	return file.SHA, nil
}

// PutFile creates path, or updates it when w.SHA is set, and returns the
// remote response body untouched. GitHub rejects an update whose sha is
// stale; that comes back as an *APIError.
func (c *Client) PutFile(ctx context.Context, w FileWrite) (json.RawMessage, error) {
	req, err := c.gh.NewRequest(http.MethodPut, c.contentsURL(w.Path), &putBody{
		Message: w.Message,
		Content: w.Content,
		Branch:  w.Branch,
		SHA:     w.SHA,
	})
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if _, err := c.gh.Do(ctx, req, &raw); err != nil {
		return nil, asAPIError(err)
	}
	return raw, nil
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

// asAPIError converts go-github's response errors into *APIError and passes
// everything else (transport, decoding) through unchanged.
func asAPIError(err error) error {
	var resp *http.Response
	var (
		ghErr    *github.ErrorResponse
		rateErr  *github.RateLimitError
		abuseErr *github.AbuseRateLimitError
	)
	switch {
	case errors.As(err, &ghErr):
		resp = ghErr.Response
	case errors.As(err, &rateErr):
		resp = rateErr.Response
	case errors.As(err, &abuseErr):
		resp = abuseErr.Response
	}
	if resp == nil {
		return err
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, err: err}
	// go-github puts the raw error body back on the response after decoding it.
	if resp.Body != nil {
		apiErr.Body, _ = io.ReadAll(resp.Body)
	}
	return apiErr
}
