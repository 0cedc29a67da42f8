package isocarto

import "fmt"

type SpawnPoint struct {
	X int
	Y int
	Z int
}

// BlockSource supplies decoded block volumes for single chunks.
type BlockSource interface {
	ChunkBlocks(pos ChunkPos) (*BlockVolume, error)
}

// SpawnChunk returns the chunk containing a spawn point.
func SpawnChunk(sp SpawnPoint) ChunkPos {
	return ChunkPos{X: floorDiv(sp.X, ChunkWidth), Y: floorDiv(sp.Z, ChunkWidth)}
}

// ResolveSpawn finds the first air block at or above the recorded spawn
// height, capped at the top of the world.
func ResolveSpawn(src BlockSource, sp SpawnPoint) (POI, error) {
	chunk := SpawnChunk(sp)
	vol, err := src.ChunkBlocks(chunk)
	if err != nil {
		return POI{}, fmt.Errorf("load spawn chunk (%d, %d): %w", chunk.X, chunk.Y, err)
	}

	localX := sp.X - chunk.X*ChunkWidth
	localZ := sp.Z - chunk.Y*ChunkWidth

	y := max(sp.Y, 0)
	for y < ChunkHeight && vol.At(localX, localZ, y) != 0 {
		y++
	}
	y = min(y, ChunkHeight)

	return POI{
		X:     sp.X,
		Y:     y,
		Z:     sp.Z,
		Label: "Spawn",
		Kind:  POISpawn,
		Chunk: chunk,
	}, nil
}
