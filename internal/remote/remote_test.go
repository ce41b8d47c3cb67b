package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"go.klb.dev/cliprelay/internal/crypto"
)

// davServer is a minimal WebDAV collection tree: PUT into a missing
// collection answers 409 until MKCOL creates it.
type davServer struct {
	mu      sync.Mutex
	objects map[string][]byte
	cols    map[string]bool
	methods []string
	auth    []string
}

func newDAVServer(t *testing.T) (*davServer, *httptest.Server) {
	d := &davServer{objects: map[string][]byte{}, cols: map[string]bool{"/dav": true}}
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)
	return d, srv
}

func (d *davServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.methods = append(d.methods, r.Method+" "+r.URL.Path)
	user, pass, _ := r.BasicAuth()
	d.auth = append(d.auth, user+":"+pass)

	p := strings.TrimSuffix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		if !d.cols[path.Dir(p)] {
			w.WriteHeader(http.StatusConflict)
			return
		}
		d.objects[p] = body
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		data, ok := d.objects[p]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	case "MKCOL":
		if d.cols[p] {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		d.cols[p] = true
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (d *davServer) calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.methods...)
}

func TestHTTPPutGet(t *testing.T) {
	ctx := context.Background()
	dav, srv := newDAVServer(t)
	s, err := NewHTTP(HTTPConfig{BaseURL: srv.URL + "/dav", User: "alice", Password: "pw"})
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "SyncClipboard.json", []byte(`{"Type":"Text"}`)))
	got, err := s.Get(ctx, "SyncClipboard.json")
	require.NoError(t, err)
	require.Equal(t, `{"Type":"Text"}`, string(got))
	require.Equal(t, "alice:pw", dav.auth[0])

	_, err = s.Get(ctx, "missing.json")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPCreatesCollectionOnce(t *testing.T) {
	ctx := context.Background()
	dav, srv := newDAVServer(t)
	s, err := NewHTTP(HTTPConfig{BaseURL: srv.URL + "/dav/"})
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "file/a.png", []byte("a")))
	require.NoError(t, s.Put(ctx, "file/b.png", []byte("b")))
	require.Equal(t, []string{
		"PUT /dav/file/a.png",
		"MKCOL /dav/file/",
		"PUT /dav/file/a.png",
		"PUT /dav/file/b.png",
	}, dav.calls())

	got, err := s.Get(ctx, "file/b.png")
	require.NoError(t, err)
	require.Equal(t, "b", string(got))
}

func TestHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	s, err := NewHTTP(HTTPConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	err = s.Put(context.Background(), "x", []byte("x"))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusInternalServerError, se.Code)

	_, err = s.Get(context.Background(), "x")
	require.ErrorAs(t, err, &se)
}

func TestDirStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewDir(root)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "file/notes.txt", []byte("n")))
	got, err := s.Get(ctx, "file/notes.txt")
	require.NoError(t, err)
	require.Equal(t, "n", string(got))

	require.NoError(t, s.Put(ctx, "../../escape.txt", []byte("e")))
	got, err = s.Get(ctx, "escape.txt")
	require.NoError(t, err, "paths are confined to the root")
	require.Equal(t, "e", string(got))

	_, err = s.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryFailureInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.FailPuts("d", 2)

	require.ErrorIs(t, m.Put(ctx, "d", []byte("1")), ErrInjected)
	require.ErrorIs(t, m.Put(ctx, "d", []byte("1")), ErrInjected)
	require.NoError(t, m.Put(ctx, "d", []byte("1")))
	require.Equal(t, []string{"d", "d", "d"}, m.Puts())

	m.FailGets("d", 1)
	_, err := m.Get(ctx, "d")
	require.ErrorIs(t, err, ErrInjected)
	got, err := m.Get(ctx, "d")
	require.NoError(t, err)
	require.Equal(t, "1", string(got))
}

func TestSealedStore(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory()
	box, err := crypto.NewBox("secret")
	require.NoError(t, err)
	s := NewSealed(inner, box)

	require.NoError(t, s.Put(ctx, "k", []byte("plaintext")))
	raw, ok := inner.Object("k")
	require.True(t, ok)
	require.NotContains(t, string(raw), "plaintext")

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "plaintext", string(got))

	other, err := crypto.NewBox("other")
	require.NoError(t, err)
	_, err = NewSealed(inner, other).Get(ctx, "k")
	require.ErrorIs(t, err, crypto.ErrOpen)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{URL: "mem://"})
	require.NoError(t, err)
	require.IsType(t, &Memory{}, s)

	s, err = Open(Config{URL: "file://" + t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &Dir{}, s)

	s, err = Open(Config{URL: "https://dav.example.com/remote.php/dav", Token: "t"})
	require.NoError(t, err)
	require.IsType(t, &Sealed{}, s)

	_, err = Open(Config{URL: "ftp://x"})
	require.Error(t, err)
	_, err = Open(Config{})
	require.Error(t, err)
}
