package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go.klb.dev/cliprelay/internal/clip"
)

// Resolver turns the raw bytes of one format into Snapshot fields.
type Resolver struct {
	Format string
	// Skip reports whether a higher-priority resolver already filled the
	// field this resolver would write. Nil means never skip.
	Skip func(s *Snapshot) bool
	// Apply decodes raw into s. It must leave s untouched on error.
	Apply func(raw []byte, s *Snapshot) error
}

// DefaultResolvers returns the resolvers in their default priority order:
// text, device-independent bitmap, PNG, HTML, file list, drop effect.
// The PNG resolver is skipped when the bitmap was already decoded.
func DefaultResolvers() []Resolver {
	hasImage := func(s *Snapshot) bool { return s.Image != nil }
	return []Resolver{
		{Format: clip.FormatText, Skip: func(s *Snapshot) bool { return s.Text != nil }, Apply: resolveText},
		{Format: clip.FormatDIB, Skip: hasImage, Apply: resolveDIB},
		{Format: clip.FormatPNG, Skip: hasImage, Apply: resolveImage},
		{Format: clip.FormatHTML, Skip: func(s *Snapshot) bool { return s.HTML != nil }, Apply: resolveHTML},
		{Format: clip.FormatFiles, Skip: func(s *Snapshot) bool { return s.Files != nil }, Apply: resolveFiles},
		{Format: clip.FormatDropEffect, Skip: func(s *Snapshot) bool { return s.Effect != nil }, Apply: resolveDropEffect},
	}
}

func resolveText(raw []byte, s *Snapshot) error {
	text := string(bytes.TrimRight(raw, "\x00"))
	s.Text = &text
	return nil
}

func resolveImage(raw []byte, s *Snapshot) error {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	s.Image = img
	return nil
}

// resolveDIB decodes a device-independent bitmap: a BMP without its 14-byte
// file header. Payloads that already carry the header are accepted as is.
func resolveDIB(raw []byte, s *Snapshot) error {
	file, err := dibToBMP(raw)
	if err != nil {
		return err
	}
	img, err := bmp.Decode(bytes.NewReader(file))
	if err != nil {
		return fmt.Errorf("decode dib: %w", err)
	}
	s.Image = img
	return nil
}

const (
	bmpFileHeaderLen = 14
	biBitfields      = 3
	biAlphaBitfields = 6
)

func dibToBMP(raw []byte) ([]byte, error) {
	if bytes.HasPrefix(raw, []byte("BM")) {
		return raw, nil
	}
	if len(raw) < 40 {
		return nil, errors.New("dib: header too short")
	}
	headerSize := binary.LittleEndian.Uint32(raw[0:4])
	bitCount := binary.LittleEndian.Uint16(raw[14:16])
	compression := binary.LittleEndian.Uint32(raw[16:20])
	colorsUsed := binary.LittleEndian.Uint32(raw[32:36])
	if headerSize < 40 || int(headerSize) > len(raw) {
		return nil, fmt.Errorf("dib: bad header size %d", headerSize)
	}

	offset := bmpFileHeaderLen + headerSize
	if headerSize == 40 {
		switch compression {
		case biBitfields:
			offset += 12
		case biAlphaBitfields:
			offset += 16
		}
	}
	switch {
	case colorsUsed > 0:
		offset += colorsUsed * 4
	case bitCount <= 8:
		offset += (1 << bitCount) * 4
	}

	out := make([]byte, bmpFileHeaderLen, bmpFileHeaderLen+len(raw))
	out[0], out[1] = 'B', 'M'
	binary.LittleEndian.PutUint32(out[2:6], uint32(bmpFileHeaderLen+len(raw)))
	binary.LittleEndian.PutUint32(out[10:14], offset)
	return append(out, raw...), nil
}

func resolveHTML(raw []byte, s *Snapshot) error {
	html := HTMLFragment(string(bytes.TrimRight(raw, "\x00")))
	s.HTML = &html
	return nil
}

const (
	startFragmentMarker = "<!--StartFragment-->"
	endFragmentMarker   = "<!--EndFragment-->"
)

var cfHTMLOffset = regexp.MustCompile(`(?m)^(StartFragment|EndFragment):(\d+)\r?$`)

// HTMLFragment strips the clipboard HTML envelope (the "Version:0.9" header
// with byte offsets and the StartFragment/EndFragment comments) and returns
// the copied fragment. Plain markup is returned unchanged.
func HTMLFragment(raw string) string {
	if i := strings.Index(raw, startFragmentMarker); i >= 0 {
		rest := raw[i+len(startFragmentMarker):]
		if j := strings.Index(rest, endFragmentMarker); j >= 0 {
			return rest[:j]
		}
		return rest
	}
	if !strings.HasPrefix(raw, "Version:") {
		return raw
	}
	start, end := -1, -1
	for _, m := range cfHTMLOffset.FindAllStringSubmatch(raw, -1) {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if m[1] == "StartFragment" {
			start = n
		} else {
			end = n
		}
	}
	if start >= 0 && end >= start && end <= len(raw) {
		return raw[start:end]
	}
	return raw
}

// resolveFiles parses a text/uri-list. Comment lines and the "copy"/"cut"
// verbs some file managers prepend are skipped; bare paths are accepted.
func resolveFiles(raw []byte, s *Snapshot) error {
	var files []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\x00"))
		if line == "" || strings.HasPrefix(line, "#") || line == "copy" || line == "cut" {
			continue
		}
		path, err := fileURIPath(line)
		if err != nil {
			return err
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		return errors.New("uri-list: no files")
	}
	s.Files = files
	return nil
}

var windowsDrivePath = regexp.MustCompile(`^/[A-Za-z]:`)

func fileURIPath(line string) (string, error) {
	if !strings.HasPrefix(line, "file:") {
		return line, nil
	}
	u, err := url.Parse(line)
	if err != nil {
		return "", fmt.Errorf("uri-list: %w", err)
	}
	p := u.Path
	if windowsDrivePath.MatchString(p) {
		p = p[1:]
	}
	if u.Host != "" && u.Host != "localhost" {
		p = "//" + u.Host + p
	}
	return p, nil
}

// resolveDropEffect reads the little-endian DWORD drop effect mask.
func resolveDropEffect(raw []byte, s *Snapshot) error {
	if len(raw) == 0 {
		return errors.New("drop effect: empty payload")
	}
	var v uint32
	if len(raw) >= 4 {
		v = binary.LittleEndian.Uint32(raw[:4])
	} else {
		v = uint32(raw[0])
	}
	e := EffectNone
	switch {
	case v&2 != 0:
		e = EffectMove
	case v&1 != 0:
		e = EffectCopy
	}
	s.Effect = &e
	return nil
}
