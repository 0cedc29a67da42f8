package isocarto

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
)

// CacheKey addresses one rendered image: the two enclosing directory names
// plus the x, y and cave bits from its filename.
type CacheKey struct {
	Dir  string
	Bits string
}

// RenderCache indexes previously rendered chunk images. It is built once per
// run, before any render job starts, and is read-only afterwards.
type RenderCache struct {
	images map[CacheKey]string
}

func base36(n int) string {
	return strconv.FormatInt(int64(n), 36)
}

func caveBit(cave bool) string {
	if cave {
		return "cave"
	}
	return "nocave"
}

func cacheDirs(pos ChunkPos) (string, string) {
	return base36(floorMod(pos.X, 64)), base36(floorMod(pos.Y, 64))
}

func CacheKeyFor(pos ChunkPos, cave bool) CacheKey {
	a, b := cacheDirs(pos)
	return CacheKey{
		Dir:  a + "/" + b,
		Bits: strings.Join([]string{base36(pos.X), base36(pos.Y), caveBit(cave)}, "."),
	}
}

// ImagePath is where a renderer stores the image for a chunk. The digest
// identifies the chunk contents the image was rendered from.
func ImagePath(cacheDir string, pos ChunkPos, cave bool, digest string) string {
	a, b := cacheDirs(pos)
	name := fmt.Sprintf("img.%s.%s.%s.%s.png", base36(pos.X), base36(pos.Y), caveBit(cave), digest)
	return filepath.Join(cacheDir, a, b, name)
}

func NewRenderCache() *RenderCache {
	return &RenderCache{images: make(map[CacheKey]string)}
}

// BuildRenderCache walks cacheDir once and indexes every rendered image. A
// missing cache directory produces an empty index.
func BuildRenderCache(cacheDir string) (*RenderCache, error) {
	c := NewRenderCache()

	err := filepath.WalkDir(cacheDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == cacheDir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		if !strings.HasPrefix(name, "img.") || !strings.HasSuffix(name, ".png") {
			return nil
		}
		parts := strings.SplitN(name, ".", 5)
		if len(parts) < 5 {
			return nil
		}

		dir := filepath.Dir(path)
		dirB := filepath.Base(dir)
		dirA := filepath.Base(filepath.Dir(dir))

		key := CacheKey{
			Dir:  dirA + "/" + dirB,
			Bits: strings.Join(parts[1:4], "."),
		}
		c.images[key] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index render cache %s: %w", cacheDir, err)
	}

	debugf("[cache] indexed %d images in %s", len(c.images), cacheDir)
	return c, nil
}

// Lookup returns the prior image for a chunk, if one exists.
func (c *RenderCache) Lookup(pos ChunkPos, cave bool) (string, bool) {
	path, ok := c.images[CacheKeyFor(pos, cave)]
	return path, ok
}

func (c *RenderCache) Len() int {
	return len(c.images)
}
