package isocarto

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Tnze/go-mc/save/region"
)

// columnChunk returns a chunk whose every column is stone (id 1) below height.
func columnChunk(pos ChunkPos, height int) *LegacyChunk {
	vol := NewBlockVolume()
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkWidth; z++ {
			for y := 0; y < height; y++ {
				vol.Set(x, z, y, 1)
			}
		}
	}
	return &LegacyChunk{Level: LegacyLevel{
		XPos:         int32(pos.X),
		ZPos:         int32(pos.Y),
		Blocks:       vol.Blocks,
		TileEntities: []TileEntity{},
	}}
}

func writeRegion(t *testing.T, worldDir string, rx, ry int, chunks map[ChunkPos]*LegacyChunk) string {
	t.Helper()

	dir := filepath.Join(worldDir, "region")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("r.%d.%d.mcr", rx, ry))

	reg, err := region.Create(path)
	if err != nil {
		t.Fatalf("region.Create: %v", err)
	}
	for pos, c := range chunks {
		data, err := EncodeChunk(c)
		if err != nil {
			t.Fatalf("EncodeChunk: %v", err)
		}
		x, z := localChunk(pos)
		if err := reg.WriteSector(x, z, data); err != nil {
			t.Fatalf("WriteSector: %v", err)
		}
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("region Close: %v", err)
	}
	return path
}

func writeLevel(t *testing.T, worldDir string, level LevelInfo) {
	t.Helper()
	if err := WriteLevel(filepath.Join(worldDir, "level.dat"), &level); err != nil {
		t.Fatalf("WriteLevel: %v", err)
	}
}

func legacyLevel(spawnX, spawnY, spawnZ int) LevelInfo {
	return LevelInfo{
		Version:   LegacyFormatVersion,
		LevelName: "Test World",
		SpawnX:    int32(spawnX),
		SpawnY:    int32(spawnY),
		SpawnZ:    int32(spawnZ),
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}
