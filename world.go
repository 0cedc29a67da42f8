package isocarto

import (
	"context"
	"errors"
	"log"
)

type WorldOpts struct {
	Lighting  bool
	Night     bool
	Spawn     bool
	BiomeTint bool
	Caves     bool
}

// normalize applies the implied flags: spawn lighting needs night lighting,
// and night lighting needs lighting.
func (o WorldOpts) normalize() WorldOpts {
	o.Lighting = o.Lighting || o.Night || o.Spawn
	o.Night = o.Night || o.Spawn
	return o
}

type WorldConfig struct {
	Dir      string
	CacheDir string
	Opts     WorldOpts

	// Store defaults to a FileStore in CacheDir.
	Store StateStore

	// Clean ignores every previously rendered image.
	Clean bool

	// Include restricts rendering to a subset of chunks, see RenderOpts.
	Include map[ProjectedPos]struct{}
}

// World holds everything for one render run. The cache index and the POI
// state belong to this World alone.
type World struct {
	Dir      string
	CacheDir string
	Opts     WorldOpts
	Level    *LevelInfo
	Cache    *RenderCache
	State    *State

	Bounds   Bounds
	ChunkMap RenderResult

	store   StateStore
	include map[ProjectedPos]struct{}
}

func OpenWorld(cfg WorldConfig) (*World, error) {
	level, err := ReadWorldLevel(cfg.Dir)
	if err != nil {
		return nil, err
	}

	cache := NewRenderCache()
	if !cfg.Clean {
		cache, err = BuildRenderCache(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
	}

	store := cfg.Store
	if store == nil {
		store = NewFileStore(cfg.CacheDir)
	}
	state, err := store.Load()
	if err != nil {
		return nil, err
	}

	return &World{
		Dir:      cfg.Dir,
		CacheDir: cfg.CacheDir,
		Opts:     cfg.Opts.normalize(),
		Level:    level,
		Cache:    cache,
		State:    state,
		store:    store,
		include:  cfg.Include,
	}, nil
}

// Render scans, projects and renders every chunk, then marks the spawn.
func (w *World) Render(ctx context.Context, chunk ChunkRenderer, concurrency int) error {
	log.Printf("[world] scanning chunks in %s", w.Dir)
	candidates, err := DiscoverAllChunks(w.Dir)
	if err != nil {
		return err
	}

	bounds, chunks := ProjectAll(candidates)

	renderer := NewRenderer(chunk, w.Cache, RenderOpts{
		Concurrency: concurrency,
		CacheDir:    w.CacheDir,
		World:       w.Opts,
		Include:     w.include,
	})

	agg := NewAggregator(w.State)
	chunkMap, err := renderer.RenderChunks(ctx, chunks, agg)
	if err != nil {
		return err
	}
	debugf("[world] chunk map has %d entries", len(chunkMap))

	w.ChunkMap = chunkMap
	w.Bounds = bounds

	w.markSpawn()
	return nil
}

func (w *World) markSpawn() {
	poi, err := ResolveSpawn(RegionBlockSource{WorldDir: w.Dir}, w.Level.Spawn())
	if errors.Is(err, ErrGhostChunk) {
		log.Printf("[world] spawn chunk has no data, not marking spawn")
		return
	}
	if err != nil {
		log.Printf("[world] failed to resolve spawn: %v", err)
		return
	}
	w.State.ReplaceKind(POISpawn, poi)
}

// Save writes the POI state back through the world's store.
func (w *World) Save() error {
	return w.store.Save(w.State)
}
