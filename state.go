package isocarto

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type POIKind string

const (
	POISpawn POIKind = "spawn"
	POISign  POIKind = "sign"
)

// POI is a labelled location shown as a map marker. Chunk is the world chunk
// that produced it and is the key RemovePOI events match against.
type POI struct {
	X     int      `json:"x"`
	Y     int      `json:"y"`
	Z     int      `json:"z"`
	Label string   `json:"msg"`
	Kind  POIKind  `json:"type"`
	Chunk ChunkPos `json:"chunk"`
}

// State is the metadata kept between runs.
type State struct {
	POI []POI `json:"POI"`
}

func NewState() *State {
	return &State{POI: []POI{}}
}

func (s *State) Apply(ev Event) {
	switch ev.Kind {
	case EventNewPOI:
		s.POI = append(s.POI, ev.POI)
	case EventRemovePOI:
		s.removeChunk(ev.Chunk)
	}
}

func (s *State) removeChunk(chunk ChunkPos) {
	kept := s.POI[:0]
	for _, p := range s.POI {
		if p.Chunk != chunk {
			kept = append(kept, p)
		}
	}
	s.POI = kept
}

// ReplaceKind drops every POI of the given kind and appends poi.
func (s *State) ReplaceKind(kind POIKind, poi POI) {
	kept := s.POI[:0]
	for _, p := range s.POI {
		if p.Kind != kind {
			kept = append(kept, p)
		}
	}
	s.POI = append(kept, poi)
}

type StateStore interface {
	Load() (*State, error)
	Save(*State) error
}

const StateFileName = "isocarto.dat"

// FileStore keeps State as zstd-compressed JSON in the cache directory.
type FileStore struct {
	Path string
}

func NewFileStore(cacheDir string) *FileStore {
	return &FileStore{Path: filepath.Join(cacheDir, StateFileName)}
}

// LoadState reads the state file from cacheDir, defaulting to an empty state.
func LoadState(cacheDir string) (*State, error) {
	return NewFileStore(cacheDir).Load()
}

func (f *FileStore) Load() (*State, error) {
	fd, err := os.Open(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewState(), nil
	}
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	dec, err := zstd.NewReader(fd)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	state := NewState()
	if err := json.NewDecoder(bufio.NewReader(dec)).Decode(state); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	if state.POI == nil {
		state.POI = []POI{}
	}
	return state, nil
}

func (f *FileStore) Save(state *State) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}

	tmp := f.Path + ".tmp"
	fd, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(fd, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = fd.Close()
		return err
	}
	if err := json.NewEncoder(enc).Encode(state); err != nil {
		_ = enc.Close()
		_ = fd.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = fd.Close()
		return err
	}
	if err := fd.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, f.Path)
}
