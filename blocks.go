package isocarto

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/muesli/gamut"
)

// legacy worlds use well under this many block ids
const paletteSize = 128

// BlockRenderer draws each chunk top-down, one pixel per column, coloured by
// the id of the highest visible block. Region files stay open until Close, so
// create one renderer per run.
type BlockRenderer struct {
	colors  []color.Color
	regions *RegionPool
}

func NewBlockRenderer() (*BlockRenderer, error) {
	colors, err := gamut.Generate(paletteSize, gamut.PastelGenerator{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate block palette: %w", err)
	}

	return &BlockRenderer{
		colors:  colors,
		regions: NewRegionPool(),
	}, nil
}

// IsCached keeps an image as long as the chunk still exists and the image is
// at least as new as the region's timestamp for it.
func (b *BlockRenderer) IsCached(job RenderJob) bool {
	if job.Prior == "" {
		return false
	}
	info, err := os.Stat(job.Prior)
	if err != nil {
		return false
	}

	ts, err := b.regions.Timestamp(job.Chunk.RegionPath, job.Chunk.Pos)
	if err != nil {
		log.Printf("[blocks] failed to read region header %s: %v", job.Chunk.RegionPath, err)
		return false
	}
	if ts == 0 {
		return false
	}
	return int64(ts) <= info.ModTime().Unix()
}

func (b *BlockRenderer) Close() error {
	return b.regions.Close()
}

func (b *BlockRenderer) RenderChunk(ctx context.Context, job RenderJob, sink EventSink) (string, error) {
	pos := job.Chunk.Pos
	chunk, sector, err := b.regions.ReadChunk(job.Chunk.RegionPath, pos)
	if errors.Is(err, ErrGhostChunk) {
		removeStale(job.Prior)
		return "", nil
	}
	if err != nil {
		return "", err
	}

	vol, err := chunk.Volume()
	if err != nil {
		return "", err
	}

	sink.Emit(RemovePOIEvent(pos))
	for _, te := range chunk.Level.TileEntities {
		if te.ID != "Sign" {
			continue
		}
		sink.Emit(NewPOIEvent(POI{
			X:     int(te.X),
			Y:     int(te.Y),
			Z:     int(te.Z),
			Label: signText(te),
			Kind:  POISign,
			Chunk: pos,
		}))
	}

	sum := sha1.Sum(sector)
	path := ImagePath(job.CacheDir, pos, job.Opts.Caves, hex.EncodeToString(sum[:])[:12])

	// same contents as last time, only the timestamp moved
	if path == job.Prior {
		now := time.Now()
		err := os.Chtimes(path, now, now)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	img := b.draw(vol, job.Opts)
	if err := writePNG(path, img); err != nil {
		return "", fmt.Errorf("failed to save chunk image (%d, %d): %w", pos.X, pos.Y, err)
	}

	if job.Prior != path {
		removeStale(job.Prior)
	}

	return path, nil
}

func removeStale(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[blocks] failed to remove stale image %s: %v", path, err)
	}
}

func signText(te TileEntity) string {
	lines := []string{te.Text1, te.Text2, te.Text3, te.Text4}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// surface returns the y of the block drawn for a column, or -1 if the column
// is empty. In cave mode everything above the first air gap is stripped.
func surface(vol *BlockVolume, x, z int, caves bool) int {
	underCeiling := false
	for y := ChunkHeight - 1; y >= 0; y-- {
		air := vol.At(x, z, y) == 0

		// wait for the first air block below the ceiling
		if caves && !underCeiling {
			if !air || y == ChunkHeight-1 {
				continue
			}
			underCeiling = true
		}

		if !air {
			return y
		}
	}
	return -1
}

func (b *BlockRenderer) draw(vol *BlockVolume, opts WorldOpts) image.Image {
	img := image.NewRGBA64(image.Rect(0, 0, ChunkWidth, ChunkWidth))

	var heights [ChunkWidth][ChunkWidth]int
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkWidth; z++ {
			y := surface(vol, x, z, opts.Caves)
			heights[x][z] = y
			if y < 0 {
				continue
			}
			img.Set(x, z, b.colors[int(vol.At(x, z, y))%len(b.colors)])
		}
	}

	if opts.Lighting {
		draw.Draw(img, img.Bounds(), shade(&heights), image.Point{}, draw.Over)
	}
	if opts.Night {
		night := image.NewUniform(color.RGBA{R: 0, G: 0, B: 16, A: 128})
		draw.Draw(img, img.Bounds(), night, image.Point{}, draw.Over)
	}

	return img
}

// shade darkens columns that sit lower than their north and west neighbours.
func shade(heights *[ChunkWidth][ChunkWidth]int) image.Image {
	img := image.NewRGBA64(image.Rect(0, 0, ChunkWidth, ChunkWidth))
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkWidth; z++ {
			height := heights[x][z]
			leftHeight, topHeight := height, height
			if x > 0 {
				leftHeight = heights[x-1][z]
			}
			if z > 0 {
				topHeight = heights[x][z-1]
			}

			var d int
			if topHeight > height {
				d = (topHeight - height) * 16
			}
			if leftHeight > height {
				d += (leftHeight - height) * 16
			}
			if d > 64 {
				d = 64
			}

			img.Set(x, z, color.RGBA{A: uint8(d)})
		}
	}
	return img
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	fd, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := png.Encode(fd, img); err != nil {
		_ = fd.Close()
		return err
	}
	if err := fd.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
