package profile

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

const (
	hashCacheSize  = 512
	hashJobs       = 4
	shortHashChars = 12
)

type fileKey struct {
	path  string
	size  int64
	mtime int64
}

// fileHashes memoizes file content hashes; a changed size or mtime is a miss.
var fileHashes = mustCache(hashCacheSize)

func mustCache(size int) *lru.Cache[fileKey, string] {
	c, err := lru.New[fileKey, string](size)
	if err != nil {
		panic(err)
	}
	return c
}

// Hash returns the hex SHA-256 of the decoded pixels. The hash of an image
// built from a descriptor is the one the descriptor carried ("" if none).
func (i *Image) Hash(ctx context.Context) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.hash != "" || i.img == nil {
		return i.hash, nil
	}
	h, err := pixelHash(ctx, i.img)
	if err != nil {
		return "", err
	}
	i.hash = h
	return h, nil
}

// pixelHash hashes the image normalized to NRGBA, so the same picture decoded
// from PNG or from a bitmap hashes identically.
func pixelHash(ctx context.Context, img image.Image) (string, error) {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) || nrgba.Stride != 4*b.Dx() {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}

	h := sha256.New()
	var dims [16]byte
	binary.LittleEndian.PutUint64(dims[:8], uint64(b.Dx()))
	binary.LittleEndian.PutUint64(dims[8:], uint64(b.Dy()))
	h.Write(dims[:])

	row := nrgba.Stride
	for y := 0; y < b.Dy(); y++ {
		if y%256 == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		h.Write(nrgba.Pix[y*row : (y+1)*row])
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Hash returns the content identity of the file list: the hex SHA-256 of the
// file for a single path, or the SHA-256 over the ordered per-file hashes for
// several. A File built from a descriptor returns the descriptor's hash.
func (f *File) Hash(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hash != "" || len(f.paths) == 0 {
		return f.hash, nil
	}
	h, err := listHash(ctx, f.paths)
	if err != nil {
		return "", err
	}
	f.hash = h
	return h, nil
}

func listHash(ctx context.Context, paths []string) (string, error) {
	if len(paths) == 1 {
		return fileHash(ctx, paths[0])
	}
	sums := make([]string, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hashJobs)
	for i, p := range paths {
		g.Go(func() error {
			s, err := fileHash(gctx, p)
			if err != nil {
				return err
			}
			sums[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	h := sha256.New()
	for _, s := range sums {
		io.WriteString(h, s)
		io.WriteString(h, "\n")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func fileHash(ctx context.Context, path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		return "", fmt.Errorf("hash %s: not a regular file", path)
	}
	key := fileKey{path: path, size: fi.Size(), mtime: fi.ModTime().UnixNano()}
	if s, ok := fileHashes.Get(key); ok {
		return s, nil
	}

	fh, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer fh.Close()

	h := sha256.New()
	if _, err := io.Copy(h, ctxReader{ctx: ctx, r: fh}); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	s := hex.EncodeToString(h.Sum(nil))
	fileHashes.Add(key, s)
	return s, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func shortHash(h string) string {
	if len(h) > shortHashChars {
		return h[:shortHashChars]
	}
	return h
}

func itoa(n int) string { return strconv.Itoa(n) }
