package isocarto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
)

// LegacyFormatVersion is the level.dat version of McRegion worlds, the only
// format this renderer understands.
const LegacyFormatVersion = 19132

var ErrUnsupportedFormat = errors.New("unsupported world format, only McRegion worlds can be rendered")

type LevelInfo struct {
	Version    int32  `nbt:"version"`
	LevelName  string `nbt:"LevelName"`
	SpawnX     int32  `nbt:"SpawnX"`
	SpawnY     int32  `nbt:"SpawnY"`
	SpawnZ     int32  `nbt:"SpawnZ"`
	LastPlayed int64  `nbt:"LastPlayed"`
	RandomSeed int64  `nbt:"RandomSeed"`
}

type levelRoot struct {
	Data LevelInfo `nbt:"Data"`
}

func (l *LevelInfo) Spawn() SpawnPoint {
	return SpawnPoint{X: int(l.SpawnX), Y: int(l.SpawnY), Z: int(l.SpawnZ)}
}

// ReadLevel decodes the gzip compressed level.dat at path.
func ReadLevel(path string) (*LevelInfo, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	r, err := gzip.NewReader(fd)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	var root levelRoot
	if _, err := nbt.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &root.Data, nil
}

// WriteLevel encodes level as a gzip compressed level.dat at path.
func WriteLevel(path string, level *LevelInfo) error {
	raw, err := nbt.Marshal(levelRoot{Data: *level})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	fd, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fd.Close()

	w := gzip.NewWriter(fd)
	if _, err := w.Write(raw); err != nil {
		return err
	}
	return w.Close()
}

// ReadWorldLevel reads a world's level.dat and rejects anything that is not
// a McRegion world.
func ReadWorldLevel(worldDir string) (*LevelInfo, error) {
	level, err := ReadLevel(filepath.Join(worldDir, "level.dat"))
	if err != nil {
		return nil, err
	}
	if level.Version != LegacyFormatVersion {
		return nil, fmt.Errorf("%w (found version %d)", ErrUnsupportedFormat, level.Version)
	}
	return level, nil
}
