package isocarto

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/Tnze/go-mc/nbt"
	"github.com/Tnze/go-mc/save/region"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

const (
	ChunkWidth  = 16
	ChunkHeight = 128
	chunkVolume = ChunkWidth * ChunkWidth * ChunkHeight
)

// ErrGhostChunk is returned for a region slot that holds no chunk data.
var ErrGhostChunk = errors.New("chunk does not exist")

type LegacyChunk struct {
	Level LegacyLevel `nbt:"Level"`
}

type LegacyLevel struct {
	XPos         int32        `nbt:"xPos"`
	ZPos         int32        `nbt:"zPos"`
	LastUpdate   int64        `nbt:"LastUpdate"`
	Blocks       []byte       `nbt:"Blocks"`
	TileEntities []TileEntity `nbt:"TileEntities"`
}

type TileEntity struct {
	ID    string `nbt:"id"`
	X     int32  `nbt:"x"`
	Y     int32  `nbt:"y"`
	Z     int32  `nbt:"z"`
	Text1 string `nbt:"Text1"`
	Text2 string `nbt:"Text2"`
	Text3 string `nbt:"Text3"`
	Text4 string `nbt:"Text4"`
}

// BlockVolume is a chunk's block ids laid out x-major, then z, then y.
type BlockVolume struct {
	Blocks []byte
}

func NewBlockVolume() *BlockVolume {
	return &BlockVolume{Blocks: make([]byte, chunkVolume)}
}

func blockIndex(x, z, y int) int {
	return x*ChunkWidth*ChunkHeight + z*ChunkHeight + y
}

func (v *BlockVolume) At(x, z, y int) byte {
	return v.Blocks[blockIndex(x, z, y)]
}

func (v *BlockVolume) Set(x, z, y int, id byte) {
	v.Blocks[blockIndex(x, z, y)] = id
}

func (c *LegacyChunk) Volume() (*BlockVolume, error) {
	if len(c.Level.Blocks) != chunkVolume {
		return nil, fmt.Errorf("chunk (%d, %d) has %d blocks, want %d",
			c.Level.XPos, c.Level.ZPos, len(c.Level.Blocks), chunkVolume)
	}
	return &BlockVolume{Blocks: c.Level.Blocks}, nil
}

func localChunk(pos ChunkPos) (int, int) {
	return floorMod(pos.X, RegionSize), floorMod(pos.Y, RegionSize)
}

// regionFile is one region opened read-only. reg is nil for a missing or
// empty file, which holds only ghost chunks.
type regionFile struct {
	mu  sync.Mutex
	fd  *os.File
	reg *region.Region
}

func openRegionFile(path string) (*regionFile, error) {
	fd, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &regionFile{}, nil
	}
	if err != nil {
		return nil, err
	}

	reg, err := region.Load(fd)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		_ = fd.Close()
		return &regionFile{}, nil
	}
	if err != nil {
		_ = fd.Close()
		return nil, fmt.Errorf("open region %s: %w", path, err)
	}
	return &regionFile{fd: fd, reg: reg}, nil
}

func (rf *regionFile) readSector(pos ChunkPos) ([]byte, error) {
	if rf.reg == nil {
		return nil, ErrGhostChunk
	}
	rf.mu.Lock()
	defer rf.mu.Unlock()

	x, z := localChunk(pos)
	sector, err := rf.reg.ReadSector(x, z)
	if errors.Is(err, region.ErrNoSector) || errors.Is(err, region.ErrNoData) {
		return nil, ErrGhostChunk
	}
	return sector, err
}

func (rf *regionFile) timestamp(pos ChunkPos) int32 {
	if rf.reg == nil {
		return 0
	}
	x, z := localChunk(pos)
	return rf.reg.Timestamps[z][x]
}

// RegionPool opens each region file once and shares it between render jobs.
// Headers are read on first use, so a pool sees each region as it was at
// that moment; use a new pool per run.
type RegionPool struct {
	mu    sync.Mutex
	files map[string]*regionFile
}

func NewRegionPool() *RegionPool {
	return &RegionPool{files: make(map[string]*regionFile)}
}

func (p *RegionPool) get(path string) (*regionFile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rf, ok := p.files[path]; ok {
		return rf, nil
	}
	rf, err := openRegionFile(path)
	if err != nil {
		return nil, err
	}
	p.files[path] = rf
	return rf, nil
}

// ReadChunk loads one chunk along with the raw sector bytes.
func (p *RegionPool) ReadChunk(regionPath string, pos ChunkPos) (*LegacyChunk, []byte, error) {
	rf, err := p.get(regionPath)
	if err != nil {
		return nil, nil, err
	}

	sector, err := rf.readSector(pos)
	if errors.Is(err, ErrGhostChunk) {
		return nil, nil, err
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read chunk (%d, %d) from %s: %w", pos.X, pos.Y, regionPath, err)
	}
	if len(sector) == 0 {
		return nil, nil, fmt.Errorf("sector is out of bounds")
	}

	chunk, err := decodeChunk(sector)
	if err != nil {
		return nil, nil, fmt.Errorf("decode chunk (%d, %d) from %s: %w", pos.X, pos.Y, regionPath, err)
	}
	return chunk, sector, nil
}

// Timestamp returns the last-saved time of a chunk slot, 0 for an empty slot
// or a missing file.
func (p *RegionPool) Timestamp(regionPath string, pos ChunkPos) (int32, error) {
	rf, err := p.get(regionPath)
	if err != nil {
		return 0, err
	}
	return rf.timestamp(pos), nil
}

func (p *RegionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for path, rf := range p.files {
		if rf.fd != nil {
			if err := rf.fd.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(p.files, path)
	}
	return firstErr
}

// ReadChunk loads a single chunk from its region file.
func ReadChunk(regionPath string, pos ChunkPos) (*LegacyChunk, []byte, error) {
	p := NewRegionPool()
	defer p.Close()
	return p.ReadChunk(regionPath, pos)
}

func decodeChunk(sector []byte) (*LegacyChunk, error) {
	var r io.Reader = bytes.NewReader(sector[1:])
	switch sector[0] {
	case 1:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case 2:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case 3:
	default:
		return nil, fmt.Errorf("unknown compression %d", sector[0])
	}

	var chunk LegacyChunk
	if _, err := nbt.NewDecoder(r).Decode(&chunk); err != nil {
		return nil, err
	}
	return &chunk, nil
}

// EncodeChunk produces sector bytes (zlib, type 2) for a chunk.
func EncodeChunk(chunk *LegacyChunk) ([]byte, error) {
	raw, err := nbt.Marshal(chunk)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte(2)
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RegionBlockSource reads block volumes straight from a world's region files.
type RegionBlockSource struct {
	WorldDir string
}

func (s RegionBlockSource) ChunkBlocks(pos ChunkPos) (*BlockVolume, error) {
	chunk, _, err := ReadChunk(RegionPath(s.WorldDir, pos), pos)
	if err != nil {
		return nil, err
	}
	return chunk.Volume()
}
