package build

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/b1naryth1ef/isocarto"
	"github.com/b1naryth1ef/isocarto/poidb"
	"github.com/b1naryth1ef/isocarto/web"
)

type BuildOpts struct {
	ForceClean bool

	// Renderer overrides the default BlockRenderer.
	Renderer isocarto.ChunkRenderer
}

func ensureDirectory(path string) error {
	return os.MkdirAll(path, os.ModePerm)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStore(kind, cacheDir string) (isocarto.StateStore, io.Closer, error) {
	switch kind {
	case isocarto.StoreSQLite:
		store, err := poidb.OpenInCache(cacheDir)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return isocarto.NewFileStore(cacheDir), nopCloser{}, nil
	}
}

func loadChunkList(path string) (map[isocarto.ProjectedPos]struct{}, error) {
	if path == "" {
		return nil, nil
	}
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return isocarto.ParseChunkList(fd)
}

func markerData(name string, world *isocarto.World) web.MapData {
	markers := make([]web.Marker, 0, len(world.State.POI))
	for _, p := range world.State.POI {
		markers = append(markers, web.Marker{
			X:    p.X,
			Y:    p.Y,
			Z:    p.Z,
			Msg:  p.Label,
			Type: string(p.Kind),
		})
	}

	return web.MapData{
		Name: name,
		Bounds: web.Bounds{
			MinCol: world.Bounds.MinCol,
			MaxCol: world.Bounds.MaxCol,
			MinRow: world.Bounds.MinRow,
			MaxRow: world.Bounds.MaxRow,
		},
		Chunks:  len(world.ChunkMap),
		Markers: markers,
	}
}

func writeMarkers(path string, data web.MarkerData) error {
	serialized, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, serialized, 0o644)
}

func buildMap(ctx context.Context, config *isocarto.Config, opts BuildOpts, mapCfg *isocarto.MapConfigBlock, renderer isocarto.ChunkRenderer) (*web.MapData, error) {
	err := ensureDirectory(mapCfg.Cache)
	if err != nil {
		return nil, err
	}

	include, err := loadChunkList(mapCfg.ChunkList)
	if err != nil {
		return nil, fmt.Errorf("chunk list for map %s: %w", mapCfg.Name, err)
	}

	store, closer, err := openStore(config.Store, mapCfg.Cache)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	world, err := isocarto.OpenWorld(isocarto.WorldConfig{
		Dir:      mapCfg.World,
		CacheDir: mapCfg.Cache,
		Opts:     mapCfg.WorldOpts(),
		Store:    store,
		Clean:    opts.ForceClean,
		Include:  include,
	})
	if err != nil {
		return nil, fmt.Errorf("open world for map %s: %w", mapCfg.Name, err)
	}

	start := time.Now()
	if err := world.Render(ctx, renderer, config.Concurrency); err != nil {
		return nil, fmt.Errorf("render map %s: %w", mapCfg.Name, err)
	}

	if err := world.Save(); err != nil {
		return nil, fmt.Errorf("save state for map %s: %w", mapCfg.Name, err)
	}

	mapData := markerData(mapCfg.Name, world)

	markersPath := mapCfg.Markers
	if markersPath == "" {
		markersPath = filepath.Join(mapCfg.Cache, "markers.json")
	}
	if err := writeMarkers(markersPath, web.MarkerData{Maps: []web.MapData{mapData}}); err != nil {
		return nil, err
	}

	log.Printf("[build] finished rendering %s in %dms (%d chunks, %d markers)",
		mapCfg.Name, time.Since(start).Milliseconds(), len(world.ChunkMap), len(mapData.Markers))

	return &mapData, nil
}

// Build renders every configured map and returns the combined marker data.
func Build(ctx context.Context, config *isocarto.Config, opts BuildOpts) (*web.MarkerData, error) {
	isocarto.SetVerbose(config.Verbose)

	renderer := opts.Renderer
	if renderer == nil {
		blocks, err := isocarto.NewBlockRenderer()
		if err != nil {
			return nil, err
		}
		defer blocks.Close()
		renderer = blocks
	}

	data := web.MarkerData{Maps: []web.MapData{}}
	for _, mapCfg := range config.Maps {
		mapData, err := buildMap(ctx, config, opts, mapCfg, renderer)
		if err != nil {
			return nil, err
		}
		data.Maps = append(data.Maps, *mapData)
	}

	return &data, nil
}
