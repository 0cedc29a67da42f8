package isocarto

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	RegionSize      = 32
	ChunksPerRegion = RegionSize * RegionSize
)

var (
	ErrNoRegionsFound = errors.New("no region files found")
	ErrNoChunksFound  = errors.New("no chunks found")
)

type Region struct {
	X    int
	Y    int
	Path string
}

// ChunkCandidate is a chunk slot that may or may not hold data.
type ChunkCandidate struct {
	Pos        ChunkPos
	RegionPath string
}

// Chunks expands the region into all of its slots, ghosts included.
func (r Region) Chunks() []ChunkCandidate {
	out := make([]ChunkCandidate, 0, ChunksPerRegion)
	for i := 0; i < RegionSize; i++ {
		for j := 0; j < RegionSize; j++ {
			out = append(out, ChunkCandidate{
				Pos:        ChunkPos{X: r.X*RegionSize + i, Y: r.Y*RegionSize + j},
				RegionPath: r.Path,
			})
		}
	}
	return out
}

// parseRegionName returns the coordinates encoded in an r.X.Y.mcr filename.
func parseRegionName(name string) (int, int, bool) {
	if !strings.HasPrefix(name, "r.") || !strings.HasSuffix(name, ".mcr") {
		return 0, 0, false
	}
	parts := strings.Split(name, ".")
	if len(parts) != 4 {
		return 0, 0, false
	}
	x, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, false
	}
	return x, y, true
}

// DiscoverRegions walks the world's region tree. Only leaf directories are
// considered and the nether (DIM-1) is skipped.
func DiscoverRegions(worldDir string) ([]Region, error) {
	root := filepath.Join(worldDir, "region")

	var regions []Region
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if strings.Contains(rel, "DIM-1") {
			return filepath.SkipDir
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.IsDir() {
				return nil
			}
		}
		for _, e := range entries {
			x, y, ok := parseRegionName(e.Name())
			if !ok {
				continue
			}
			regions = append(regions, Region{X: x, Y: y, Path: filepath.Join(path, e.Name())})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan regions in %s: %w", root, err)
	}

	if len(regions) == 0 {
		return nil, ErrNoRegionsFound
	}

	sort.Slice(regions, func(i, j int) bool {
		if regions[i].X != regions[j].X {
			return regions[i].X < regions[j].X
		}
		return regions[i].Y < regions[j].Y
	})

	return regions, nil
}

// DiscoverAllChunks returns every candidate chunk across all regions.
func DiscoverAllChunks(worldDir string) ([]ChunkCandidate, error) {
	regions, err := DiscoverRegions(worldDir)
	if err != nil {
		return nil, err
	}
	debugf("[scanner] found %d regions", len(regions))

	chunks := make([]ChunkCandidate, 0, len(regions)*ChunksPerRegion)
	for _, r := range regions {
		chunks = append(chunks, r.Chunks()...)
	}

	if len(chunks) == 0 {
		return nil, ErrNoChunksFound
	}

	debugf("[scanner] total possible chunks: %d", len(chunks))
	return chunks, nil
}

// RegionPath returns the region file that owns the given chunk.
func RegionPath(worldDir string, pos ChunkPos) string {
	name := fmt.Sprintf("r.%d.%d.mcr", floorDiv(pos.X, RegionSize), floorDiv(pos.Y, RegionSize))
	return filepath.Join(worldDir, "region", name)
}
