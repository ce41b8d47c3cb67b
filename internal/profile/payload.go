package profile

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.klb.dev/cliprelay/internal/clip"
)

// Payload is the binary object uploaded before a descriptor.
type Payload struct {
	Name string
	Data []byte
}

// BuildPayload encodes the payload for p, or returns nil for Text profiles
// whose content travels inside the descriptor. Payloads larger than maxSize
// bytes fail with ErrPayloadTooLarge; maxSize <= 0 disables the limit.
func BuildPayload(ctx context.Context, p Profile, maxSize int64) (*Payload, error) {
	switch v := p.(type) {
	case *Text:
		return nil, nil

	case *Image:
		h, err := v.Hash(ctx)
		if err != nil {
			return nil, err
		}
		data, err := v.pngBytes()
		if err != nil {
			return nil, err
		}
		if maxSize > 0 && int64(len(data)) > maxSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data))
		}
		return &Payload{Name: v.payloadName(h), Data: data}, nil

	case *File:
		if len(v.paths) == 0 {
			return nil, ErrNoPayload
		}
		h, err := v.Hash(ctx)
		if err != nil {
			return nil, err
		}
		var data []byte
		if len(v.paths) == 1 {
			data, err = readLimited(v.paths[0], maxSize)
		} else {
			data, err = zipFiles(ctx, v.paths, maxSize)
		}
		if err != nil {
			return nil, err
		}
		return &Payload{Name: v.payloadName(h), Data: data}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownKind, p)
}

func (i *Image) pngBytes() ([]byte, error) {
	if i.encoded != nil {
		return i.encoded, nil
	}
	if i.img == nil {
		return nil, ErrNoPayload
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, i.img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	i.encoded = buf.Bytes()
	return i.encoded, nil
}

func readLimited(path string, maxSize int64) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: not a regular file", path)
	}
	if maxSize > 0 && fi.Size() > maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrPayloadTooLarge, filepath.Base(path), fi.Size())
	}
	return os.ReadFile(path)
}

func zipFiles(ctx context.Context, paths []string, maxSize int64) ([]byte, error) {
	var total int64
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !fi.Mode().IsRegular() {
			return nil, fmt.Errorf("%s: not a regular file", p)
		}
		total += fi.Size()
	}
	if maxSize > 0 && total > maxSize {
		return nil, fmt.Errorf("%w: %d files, %d bytes", ErrPayloadTooLarge, len(paths), total)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, p := range paths {
		w, err := zw.Create(fmt.Sprintf("%03d/%s", i, filepath.Base(p)))
		if err != nil {
			return nil, err
		}
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		_, err = io.Copy(w, ctxReader{ctx: ctx, r: f})
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("zip %s: %w", p, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Materialize returns a profile equivalent to p backed by the downloaded
// payload. Image payloads are decoded; file payloads are written under dir.
// Text profiles are returned unchanged.
func Materialize(p Profile, data []byte, dir string) (Profile, error) {
	switch v := p.(type) {
	case *Text:
		return v, nil

	case *Image:
		img, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode image payload: %w", err)
		}
		out := &Image{img: img, name: v.name}
		if format == "png" {
			out.encoded = data
		}
		return out, nil

	case *File:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		var paths []string
		var err error
		if isMultiFile(v.name) {
			paths, err = unzipFiles(data, filepath.Join(dir, strings.TrimSuffix(v.name, ".zip")))
		} else {
			target := filepath.Join(dir, filepath.Base(v.name))
			err = os.WriteFile(target, data, 0o644)
			paths = []string{target}
		}
		if err != nil {
			return nil, err
		}
		return &File{paths: paths, name: v.name}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownKind, p)
}

// unzipFiles extracts a multi-file payload. Entries are "NNN/<base name>";
// a bundle with an entry outside its root is rejected.
func unzipFiles(data []byte, dir string) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open file bundle: %w", err)
	}
	paths := make([]string, 0, len(zr.File))
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(zf.Name)) {
			return nil, fmt.Errorf("%w: entry %q", ErrUnsafeBundle, zf.Name)
		}
		sub := filepath.Join(dir, filepath.Base(filepath.Dir(zf.Name)))
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, err
		}
		target := filepath.Join(sub, filepath.Base(zf.Name))
		if err := extract(zf, target); err != nil {
			return nil, err
		}
		paths = append(paths, target)
	}
	return paths, nil
}

func extract(zf *zip.File, target string) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Items returns the clipboard representations written when p is applied.
func Items(p Profile) ([]clip.Item, error) {
	switch v := p.(type) {
	case *Text:
		items := []clip.Item{{Format: clip.FormatText, Data: []byte(v.text)}}
		if v.html != "" {
			items = append(items, clip.Item{Format: clip.FormatHTML, Data: []byte(v.html)})
		}
		return items, nil

	case *Image:
		data, err := v.pngBytes()
		if err != nil {
			return nil, err
		}
		return []clip.Item{{Format: clip.FormatPNG, Data: data}}, nil

	case *File:
		if len(v.paths) == 0 {
			return nil, ErrNoPayload
		}
		uris := make([]string, len(v.paths))
		for i, p := range v.paths {
			uris[i] = fileURI(p)
		}
		return []clip.Item{
			{Format: clip.FormatFiles, Data: []byte(strings.Join(uris, "\r\n") + "\r\n")},
			{Format: clip.FormatText, Data: []byte(strings.Join(v.paths, "\n"))},
			{Format: clip.FormatDropEffect, Data: []byte{1, 0, 0, 0}},
		}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownKind, p)
}

func fileURI(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
