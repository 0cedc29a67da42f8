package isocarto

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordSink) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func TestSurface(t *testing.T) {
	vol := NewBlockVolume()
	for y := 0; y < ChunkHeight; y++ {
		if y < 10 || y >= 20 {
			vol.Set(0, 0, y, 1)
		}
		if y < 30 {
			vol.Set(1, 1, y, 3)
		}
	}

	cases := []struct {
		x, z  int
		caves bool
		want  int
	}{
		{0, 0, false, ChunkHeight - 1},
		{0, 0, true, 9},
		{1, 1, false, 29},
		{1, 1, true, 29},
		{2, 2, false, -1},
		{2, 2, true, -1},
	}
	for _, c := range cases {
		if got := surface(vol, c.x, c.z, c.caves); got != c.want {
			t.Fatalf("surface(%d, %d, caves=%v) = %d, want %d", c.x, c.z, c.caves, got, c.want)
		}
	}
}

func newTestBlockRenderer(t *testing.T) *BlockRenderer {
	t.Helper()
	b, err := NewBlockRenderer()
	if err != nil {
		t.Fatalf("NewBlockRenderer: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBlockRendererRenderChunk(t *testing.T) {
	world := t.TempDir()
	cacheDir := t.TempDir()

	pos := ChunkPos{X: 3, Y: 4}
	chunk := columnChunk(pos, 60)
	chunk.Level.TileEntities = []TileEntity{
		{ID: "Chest", X: 50, Y: 60, Z: 70},
		{ID: "Sign", X: 52, Y: 61, Z: 66, Text1: "Welcome", Text2: "home", Text4: ""},
	}
	regionPath := writeRegion(t, world, 0, 0, map[ChunkPos]*LegacyChunk{pos: chunk})

	b := newTestBlockRenderer(t)
	sink := &recordSink{}
	job := RenderJob{
		Chunk:    ChunkCandidate{Pos: pos, RegionPath: regionPath},
		CacheDir: cacheDir,
		Opts:     WorldOpts{Lighting: true, Night: true}.normalize(),
	}

	path, err := b.RenderChunk(context.Background(), job, sink)
	if err != nil {
		t.Fatalf("RenderChunk: %v", err)
	}
	if !strings.HasPrefix(path, filepath.Join(cacheDir, "3", "4", "img.3.4.nocave.")) {
		t.Fatalf("unexpected image path %s", path)
	}

	fd, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	img, err := png.Decode(fd)
	fd.Close()
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if img.Bounds().Dx() != ChunkWidth || img.Bounds().Dy() != ChunkWidth {
		t.Fatalf("image bounds = %v", img.Bounds())
	}

	if len(sink.events) != 2 {
		t.Fatalf("events = %+v", sink.events)
	}
	if sink.events[0] != RemovePOIEvent(pos) {
		t.Fatalf("first event = %+v, want RemovePOI", sink.events[0])
	}
	sign := sink.events[1].POI
	if sink.events[1].Kind != EventNewPOI || sign.Kind != POISign || sign.Label != "Welcome\nhome" || sign.Chunk != pos {
		t.Fatalf("sign event = %+v", sink.events[1])
	}

	job.Prior = path
	if !b.IsCached(job) {
		t.Fatalf("freshly rendered image should be cached")
	}

	again, err := b.RenderChunk(context.Background(), job, &recordSink{})
	if err != nil {
		t.Fatalf("RenderChunk again: %v", err)
	}
	if again != path {
		t.Fatalf("unchanged chunk moved from %s to %s", path, again)
	}

	cache, err := BuildRenderCache(cacheDir)
	if err != nil {
		t.Fatalf("BuildRenderCache: %v", err)
	}
	if got, ok := cache.Lookup(pos, false); !ok || got != path {
		t.Fatalf("Lookup = %q, %v want %q", got, ok, path)
	}
}

func TestBlockRendererReplacesStaleImage(t *testing.T) {
	world := t.TempDir()
	cacheDir := t.TempDir()
	pos := ChunkPos{X: 1, Y: 1}
	regionPath := writeRegion(t, world, 0, 0, map[ChunkPos]*LegacyChunk{pos: columnChunk(pos, 20)})

	stale := ImagePath(cacheDir, pos, true, "0000")
	touch(t, stale)

	b := newTestBlockRenderer(t)
	path, err := b.RenderChunk(context.Background(), RenderJob{
		Chunk:    ChunkCandidate{Pos: pos, RegionPath: regionPath},
		CacheDir: cacheDir,
		Opts:     WorldOpts{Caves: true},
		Prior:    stale,
	}, &recordSink{})
	if err != nil {
		t.Fatalf("RenderChunk: %v", err)
	}
	if path == stale || !strings.Contains(filepath.Base(path), ".cave.") {
		t.Fatalf("path = %s", path)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale image still present: %v", err)
	}
}

func TestBlockRendererGhost(t *testing.T) {
	world := t.TempDir()
	regionPath := writeRegion(t, world, 0, 0, nil)

	b := newTestBlockRenderer(t)
	sink := &recordSink{}
	path, err := b.RenderChunk(context.Background(), RenderJob{
		Chunk:    ChunkCandidate{Pos: ChunkPos{7, 7}, RegionPath: regionPath},
		CacheDir: t.TempDir(),
	}, sink)
	if err != nil || path != "" {
		t.Fatalf("ghost chunk = %q, %v", path, err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("ghost chunk emitted %+v", sink.events)
	}
}

func TestBlockRendererIsCachedWithoutPrior(t *testing.T) {
	b := newTestBlockRenderer(t)
	if b.IsCached(RenderJob{}) {
		t.Fatalf("a job without a prior image cannot be cached")
	}
	if b.IsCached(RenderJob{Prior: filepath.Join(t.TempDir(), "missing.png")}) {
		t.Fatalf("a missing prior image cannot be cached")
	}
}

func TestBlockRendererIsCachedTimestamps(t *testing.T) {
	world := t.TempDir()
	cacheDir := t.TempDir()
	pos := ChunkPos{X: 2, Y: 2}
	regionPath := writeRegion(t, world, 0, 0, map[ChunkPos]*LegacyChunk{pos: columnChunk(pos, 10)})

	prior := ImagePath(cacheDir, pos, false, "abc")
	touch(t, prior)
	job := RenderJob{Chunk: ChunkCandidate{Pos: pos, RegionPath: regionPath}, CacheDir: cacheDir, Prior: prior}

	newer := time.Now().Add(time.Hour)
	if err := os.Chtimes(prior, newer, newer); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	if b := newTestBlockRenderer(t); !b.IsCached(job) {
		t.Fatalf("image newer than the region header should be cached")
	}

	older := time.Now().Add(-time.Hour)
	if err := os.Chtimes(prior, older, older); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	if b := newTestBlockRenderer(t); b.IsCached(job) {
		t.Fatalf("chunk saved after its image was rendered should not be cached")
	}
}

func TestBlockRendererGhostSlotWithOldImage(t *testing.T) {
	world := t.TempDir()
	cacheDir := t.TempDir()
	writeRegion(t, world, 0, 0, map[ChunkPos]*LegacyChunk{{X: 0, Y: 0}: columnChunk(ChunkPos{0, 0}, 10)})

	ghost := ChunkPos{X: 1, Y: 1}
	stale := ImagePath(cacheDir, ghost, false, "dead")
	touch(t, stale)
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(stale, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	cache, err := BuildRenderCache(cacheDir)
	if err != nil {
		t.Fatalf("BuildRenderCache: %v", err)
	}
	candidates, err := DiscoverAllChunks(world)
	if err != nil {
		t.Fatalf("DiscoverAllChunks: %v", err)
	}
	_, chunks := ProjectAll(candidates)

	b := newTestBlockRenderer(t)
	job := RenderJob{Chunk: ChunkCandidate{Pos: ghost, RegionPath: RegionPath(world, ghost)}, Prior: stale}
	if b.IsCached(job) {
		t.Fatalf("an empty slot cannot keep its old image")
	}

	r := NewRenderer(b, cache, RenderOpts{Concurrency: 1, CacheDir: cacheDir})
	result, err := r.RenderChunks(context.Background(), chunks, NewAggregator(NewState()))
	if err != nil {
		t.Fatalf("RenderChunks: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("result = %v, want only chunk (0, 0)", result)
	}
	if _, ok := result[Project(ghost)]; ok {
		t.Fatalf("ghost chunk %v present in result", ghost)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("orphaned image still present: %v", err)
	}
}

func TestBlockRendererReadOnlyWorld(t *testing.T) {
	world := t.TempDir()
	pos := ChunkPos{X: 4, Y: 9}
	regionPath := writeRegion(t, world, 0, 0, map[ChunkPos]*LegacyChunk{pos: columnChunk(pos, 10)})
	if err := os.Chmod(regionPath, 0o444); err != nil {
		t.Fatalf("Chmod: %v", err)
	}

	b := newTestBlockRenderer(t)
	path, err := b.RenderChunk(context.Background(), RenderJob{
		Chunk:    ChunkCandidate{Pos: pos, RegionPath: regionPath},
		CacheDir: t.TempDir(),
	}, &recordSink{})
	if err != nil || path == "" {
		t.Fatalf("RenderChunk on a read-only region = %q, %v", path, err)
	}
}
