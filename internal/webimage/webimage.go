// Package webimage turns an HTML clipboard fragment that is just a remote
// <img> into the image itself: browsers often copy only the markup.
package webimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go.klb.dev/cliprelay/internal/notify"
)

const (
	defaultMaxSize = 64 << 20
	labelRunes     = 50
)

// ErrNotImage is returned when the downloaded body is not a decodable image.
var ErrNotImage = errors.New("downloaded content is not an image")

// direct lists containers every clipboard consumer understands. Anything
// else is decoded and re-encoded as PNG on the way to the clipboard.
var direct = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/bmp":  true,
}

// Extract returns the src of the only element in fragment when that element
// is an <img> with an http(s) URL and there is no text around it.
func Extract(fragment string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", false
	}
	body := doc.Find("body")
	imgs := body.Find("img")
	if imgs.Length() != 1 || strings.TrimSpace(body.Text()) != "" {
		return "", false
	}
	// Wrappers around the image are fine, siblings are not.
	extra := body.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return !s.Is("img") && s.Find("img").Length() == 0
	})
	if extra.Length() > 0 {
		return "", false
	}
	src, ok := imgs.Attr("src")
	if !ok {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

// Fetcher downloads web images.
type Fetcher struct {
	Client *http.Client
	// MaxSize caps the download; 0 means 64 MiB.
	MaxSize int64
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: time.Minute}
}

// Fetch downloads rawURL and decodes it. It returns the image and the
// detected MIME type. Progress is reported to n under a fresh transfer id;
// n may be nil.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, n notify.Notifier) (image.Image, string, error) {
	if n == nil {
		n = notify.Nop{}
	}
	id := uuid.NewString()
	label := Label(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", label, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, "", fmt.Errorf("fetch %s: %s", label, resp.Status)
	}

	limit := f.MaxSize
	if limit <= 0 {
		limit = defaultMaxSize
	}
	pr := &progressReader{r: io.LimitReader(resp.Body, limit+1), total: resp.ContentLength, report: func(fr float64) {
		n.ReportProgress(id, label, fr)
	}}
	data, err := io.ReadAll(pr)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", label, err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("fetch %s: larger than %d bytes", label, limit)
	}
	n.ReportProgress(id, label, 1)

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, mt.String(), fmt.Errorf("%w: %s", ErrNotImage, mt.String())
	}
	if !direct[mt.String()] {
		slog.Info("converting web image", "url", label, "mime", mt.String())
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, mt.String(), fmt.Errorf("%w: %s: %v", ErrNotImage, mt.String(), err)
	}
	return img, mt.String(), nil
}

// Label is the progress label for rawURL: the last path segment, shortened.
func Label(rawURL string) string {
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		name = path.Base(u.Path)
	}
	r := []rune(name)
	if len(r) > labelRunes {
		r = r[:labelRunes]
	}
	return string(r)
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.total > 0 {
			p.report(min(float64(p.read)/float64(p.total), 1))
		} else {
			p.report(-1)
		}
	}
	return n, err
}
