package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every REST call.
const DefaultTimeout = 10 * time.Second

// StatusError is a non-2xx answer from the database.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %d", e.Method, e.Path, e.Code)
}

// RTDB is a Firebase Realtime Database client over the REST API.
type RTDB struct {
	base   string
	auth   string
	client *http.Client
}

// NewRTDB returns a client for the database at baseURL. auth, when set, is
// sent as the `auth` query parameter (database secret or ID token).
func NewRTDB(baseURL, auth string, client *http.Client) *RTDB {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &RTDB{
		base:   strings.TrimRight(baseURL, "/"),
		auth:   auth,
		client: client,
	}
}

func (r *RTDB) url(path string) string {
	u := r.base + "/" + Join(path) + ".json"
	if r.auth != "" {
		u += "?auth=" + url.QueryEscape(r.auth)
	}
	return u
}

// Get fetches the node at path.
func (r *RTDB) Get(ctx context.Context, path string) (Node, error) {
	body, err := r.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Node{}, err
	}
	return NewNode(lastSegment(Split(path)), body), nil
}

// Push POSTs v under path; the database generates the key.
func (r *RTDB) Push(ctx context.Context, path string, v any) (string, error) {
	body, err := r.do(ctx, http.MethodPost, path, v)
	if err != nil {
		return "", err
	}
	var resp struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode push response: %w", err)
	}
	if resp.Name == "" {
		return "", fmt.Errorf("push %s: empty key in response", path)
	}
	return resp.Name, nil
}

// Set PUTs v at path.
func (r *RTDB) Set(ctx context.Context, path string, v any) error {
	_, err := r.do(ctx, http.MethodPut, path, v)
	return err
}

func (r *RTDB) do(ctx context.Context, method, path string, v any) ([]byte, error) {
	var reqBody io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.url(path), reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if v != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var fault struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &fault)
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Message: fault.Error}
	}
	return body, nil
}
