package isocarto

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestReadChunk(t *testing.T) {
	world := t.TempDir()

	pos := ChunkPos{X: -3, Y: 40}
	chunk := columnChunk(pos, 12)
	chunk.Level.TileEntities = []TileEntity{
		{ID: "Sign", X: -40, Y: 13, Z: 650, Text1: "hello", Text2: "world"},
	}
	path := writeRegion(t, world, -1, 1, map[ChunkPos]*LegacyChunk{pos: chunk})

	if path != RegionPath(world, pos) {
		t.Fatalf("region written to %s, RegionPath says %s", path, RegionPath(world, pos))
	}

	got, sector, err := ReadChunk(path, pos)
	if err != nil {
		t.Fatalf("ReadChunk: %v", err)
	}
	if len(sector) == 0 || sector[0] != 2 {
		t.Fatalf("sector should carry zlib compression byte, got %v", sector[:1])
	}
	if got.Level.XPos != -3 || got.Level.ZPos != 40 {
		t.Fatalf("position = (%d, %d)", got.Level.XPos, got.Level.ZPos)
	}
	if len(got.Level.TileEntities) != 1 || got.Level.TileEntities[0].Text2 != "world" {
		t.Fatalf("tile entities = %+v", got.Level.TileEntities)
	}

	vol, err := got.Volume()
	if err != nil {
		t.Fatalf("Volume: %v", err)
	}
	if vol.At(3, 9, 11) != 1 || vol.At(3, 9, 12) != 0 {
		t.Fatalf("unexpected column contents")
	}
}

func TestReadChunkGhost(t *testing.T) {
	world := t.TempDir()
	path := writeRegion(t, world, 0, 0, map[ChunkPos]*LegacyChunk{
		{X: 1, Y: 1}: columnChunk(ChunkPos{1, 1}, 4),
	})

	if _, _, err := ReadChunk(path, ChunkPos{X: 2, Y: 2}); !errors.Is(err, ErrGhostChunk) {
		t.Fatalf("empty slot err = %v, want ErrGhostChunk", err)
	}
	missing := filepath.Join(world, "region", "r.9.9.mcr")
	if _, _, err := ReadChunk(missing, ChunkPos{X: 300, Y: 300}); !errors.Is(err, ErrGhostChunk) {
		t.Fatalf("missing region err = %v, want ErrGhostChunk", err)
	}
}

func TestVolumeWrongSize(t *testing.T) {
	c := &LegacyChunk{Level: LegacyLevel{Blocks: make([]byte, 10)}}
	if _, err := c.Volume(); err == nil {
		t.Fatalf("expected an error for a short block array")
	}
}

func TestBlockIndexLayout(t *testing.T) {
	if blockIndex(0, 0, 1) != 1 || blockIndex(0, 1, 0) != ChunkHeight || blockIndex(1, 0, 0) != ChunkHeight*ChunkWidth {
		t.Fatalf("block index is not x-major, then z, then y")
	}
}

func TestRegionPoolMissingAndEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "r.1.0.mcr")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	short := filepath.Join(dir, "r.2.0.mcr")
	if err := os.WriteFile(short, []byte("short"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := NewRegionPool()
	defer p.Close()
	for _, path := range []string{filepath.Join(dir, "r.0.0.mcr"), empty, short} {
		ts, err := p.Timestamp(path, ChunkPos{})
		if err != nil || ts != 0 {
			t.Fatalf("Timestamp(%s) = %d, %v", path, ts, err)
		}
		if _, _, err := p.ReadChunk(path, ChunkPos{}); !errors.Is(err, ErrGhostChunk) {
			t.Fatalf("ReadChunk(%s) err = %v, want ErrGhostChunk", path, err)
		}
	}
}

func TestRegionPoolOpensOnce(t *testing.T) {
	world := t.TempDir()
	a, b := ChunkPos{X: 1, Y: 2}, ChunkPos{X: 30, Y: 31}
	path := writeRegion(t, world, 0, 0, map[ChunkPos]*LegacyChunk{
		a: columnChunk(a, 5),
		b: columnChunk(b, 6),
	})

	p := NewRegionPool()
	defer p.Close()
	for _, pos := range []ChunkPos{a, b, {X: 3, Y: 3}} {
		if _, err := p.Timestamp(path, pos); err != nil {
			t.Fatalf("Timestamp: %v", err)
		}
		if _, _, err := p.ReadChunk(path, pos); err != nil && !errors.Is(err, ErrGhostChunk) {
			t.Fatalf("ReadChunk(%v): %v", pos, err)
		}
	}
	if len(p.files) != 1 {
		t.Fatalf("pool holds %d open regions, want 1", len(p.files))
	}
	if ts, _ := p.Timestamp(path, a); ts == 0 {
		t.Fatalf("written chunk has no timestamp")
	}
	if ts, _ := p.Timestamp(path, ChunkPos{X: 3, Y: 3}); ts != 0 {
		t.Fatalf("empty slot has timestamp %d", ts)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(p.files) != 0 {
		t.Fatalf("Close left %d regions open", len(p.files))
	}
}

func TestRegionBlockSource(t *testing.T) {
	world := t.TempDir()
	writeRegion(t, world, 0, 0, map[ChunkPos]*LegacyChunk{
		{X: 4, Y: 5}: columnChunk(ChunkPos{4, 5}, 30),
	})

	vol, err := RegionBlockSource{WorldDir: world}.ChunkBlocks(ChunkPos{4, 5})
	if err != nil {
		t.Fatalf("ChunkBlocks: %v", err)
	}
	if vol.At(0, 0, 29) != 1 || vol.At(0, 0, 30) != 0 {
		t.Fatalf("unexpected column contents")
	}
}
