package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// StatusError is a non-success HTTP response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

// HTTPConfig configures an HTTP store.
type HTTPConfig struct {
	BaseURL  string
	User     string
	Password string
	Timeout  time.Duration
	// Client overrides the default client; Timeout is ignored when set.
	Client *http.Client
}

// HTTP is a WebDAV store: PUT writes, GET reads and MKCOL creates the
// collections a PUT needs.
type HTTP struct {
	base   *url.URL
	user   string
	pass   string
	client *http.Client

	mu   sync.Mutex
	made map[string]bool
}

// NewHTTP returns a store rooted at cfg.BaseURL.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: base url: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTP{
		base:   base,
		user:   cfg.User,
		pass:   cfg.Password,
		client: client,
		made:   make(map[string]bool),
	}, nil
}

func (h *HTTP) resolve(p string) string {
	return h.base.JoinPath(strings.TrimPrefix(p, "/")).String()
}

func (h *HTTP) do(ctx context.Context, method, p string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.resolve(p), r)
	if err != nil {
		return nil, err
	}
	if h.user != "" || h.pass != "" {
		req.SetBasicAuth(h.user, h.pass)
	}
	if body != nil {
		req.ContentLength = int64(len(body))
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	return h.client.Do(req)
}

// Put uploads data. A missing parent collection is created once and the PUT
// repeated.
func (h *HTTP) Put(ctx context.Context, p string, data []byte) error {
	code, err := h.put(ctx, p, data)
	if err != nil {
		return err
	}
	if code == http.StatusConflict || code == http.StatusNotFound {
		if err := h.mkcolAll(ctx, path.Dir(strings.TrimPrefix(p, "/"))); err != nil {
			return err
		}
		code, err = h.put(ctx, p, data)
		if err != nil {
			return err
		}
	}
	if code/100 != 2 {
		return &StatusError{Method: http.MethodPut, Path: p, Code: code}
	}
	return nil
}

func (h *HTTP) put(ctx context.Context, p string, data []byte) (int, error) {
	resp, err := h.do(ctx, http.MethodPut, p, data)
	if err != nil {
		return 0, fmt.Errorf("put %s: %w", p, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (h *HTTP) mkcolAll(ctx context.Context, dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	var prefix string
	for _, part := range strings.Split(dir, "/") {
		prefix = path.Join(prefix, part)
		h.mu.Lock()
		done := h.made[prefix]
		h.mu.Unlock()
		if done {
			continue
		}
		resp, err := h.do(ctx, "MKCOL", prefix+"/", nil)
		if err != nil {
			return fmt.Errorf("mkcol %s: %w", prefix, err)
		}
		resp.Body.Close()
		// 405: the collection already exists.
		if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusMethodNotAllowed {
			return &StatusError{Method: "MKCOL", Path: prefix, Code: resp.StatusCode}
		}
		h.mu.Lock()
		h.made[prefix] = true
		h.mu.Unlock()
	}
	return nil
}

// Get downloads an object. 404 maps to ErrNotFound.
func (h *HTTP) Get(ctx context.Context, p string) ([]byte, error) {
	resp, err := h.do(ctx, http.MethodGet, p, nil)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &StatusError{Method: http.MethodGet, Path: p, Code: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	return data, nil
}
