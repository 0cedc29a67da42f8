package isocarto

import (
	"context"
	"log"
	"runtime"

	"golang.org/x/sync/errgroup"
)

type RenderOpts struct {
	Concurrency int
	CacheDir    string
	World       WorldOpts

	// Include limits rendering to these positions. Chunks outside it keep
	// whatever image the cache already has, and are rendered only when there
	// is none. Nil renders everything.
	Include map[ProjectedPos]struct{}
}

// RenderResult maps each chunk's projected position to its image. Chunks
// that produced nothing are absent.
type RenderResult map[ProjectedPos]string

type Renderer struct {
	chunk ChunkRenderer
	cache *RenderCache
	opts  RenderOpts
}

func NewRenderer(chunk ChunkRenderer, cache *RenderCache, opts RenderOpts) *Renderer {
	if cache == nil {
		cache = NewRenderCache()
	}
	return &Renderer{
		chunk: chunk,
		cache: cache,
		opts:  opts,
	}
}

func (r *Renderer) concurrency() int {
	if r.opts.Concurrency <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return r.opts.Concurrency
}

func (r *Renderer) newJob(c ProjectedChunk) RenderJob {
	prior, _ := r.cache.Lookup(c.Chunk.Pos, r.opts.World.Caves)
	return RenderJob{
		Chunk:    c.Chunk,
		CacheDir: r.opts.CacheDir,
		Opts:     r.opts.World,
		Prior:    prior,
	}
}

// settled reports whether the job can be answered with its prior image,
// either because the chunk is excluded or because the image is still valid.
func (r *Renderer) settled(c ProjectedChunk, job RenderJob) bool {
	if job.Prior == "" {
		return false
	}
	if r.opts.Include != nil {
		if _, ok := r.opts.Include[c.Pos]; !ok {
			return true
		}
	}
	return r.chunk.IsCached(job)
}

func logProgress(i, total int) {
	if i > 0 && (1000%i == 0 || i%1000 == 0) {
		log.Printf("[renderer] %d/%d chunks rendered", i, total)
	}
}

// RenderChunks runs one job per chunk and merges the results. The first job
// error aborts the whole run: nothing further is started and no partial
// result is returned.
func (r *Renderer) RenderChunks(ctx context.Context, chunks []ProjectedChunk, agg *Aggregator) (RenderResult, error) {
	var (
		results RenderResult
		err     error
	)
	if n := r.concurrency(); n == 1 {
		results, err = r.renderInline(ctx, chunks, agg)
	} else {
		results, err = r.renderPooled(ctx, chunks, agg, n)
	}
	if err != nil {
		return nil, err
	}

	agg.Drain()
	log.Printf("[renderer] done, %d of %d chunks have images", len(results), len(chunks))
	return results, nil
}

func (r *Renderer) renderInline(ctx context.Context, chunks []ProjectedChunk, agg *Aggregator) (RenderResult, error) {
	debugf("[renderer] rendering chunks synchronously since 1 worker was requested")

	results := make(RenderResult)
	sink := agg.Sink()
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		job := r.newJob(c)
		path := job.Prior
		if !r.settled(c, job) {
			var err error
			path, err = r.chunk.RenderChunk(ctx, job, sink)
			if err != nil {
				return nil, err
			}
		}
		if path != "" {
			results[c.Pos] = path
		}

		if i > 0 {
			agg.Drain()
			logProgress(i, len(chunks))
		}
	}
	return results, nil
}

type jobHandle struct {
	done     chan struct{}
	resolved bool
	job      RenderJob
	path     string
	err      error
}

func resolvedHandle(path string) *jobHandle {
	h := &jobHandle{
		done:     make(chan struct{}),
		resolved: true,
		path:     path,
	}
	close(h.done)
	return h
}

func (r *Renderer) renderPooled(ctx context.Context, chunks []ProjectedChunk, agg *Aggregator, workers int) (RenderResult, error) {
	debugf("[renderer] rendering chunks with %d workers", workers)

	sink := agg.Sink()

	// cache checks happen here, before anything is submitted
	handles := make([]*jobHandle, len(chunks))
	for i, c := range chunks {
		job := r.newJob(c)
		if r.settled(c, job) {
			handles[i] = resolvedHandle(job.Prior)
			continue
		}
		handles[i] = &jobHandle{done: make(chan struct{}), job: job}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	joined := make(chan error, 1)
	go func() {
		for _, h := range handles {
			if h.resolved {
				continue
			}
			g.Go(func() error {
				defer close(h.done)
				if err := gctx.Err(); err != nil {
					h.err = err
					return err
				}
				h.path, h.err = r.chunk.RenderChunk(gctx, h.job, sink)
				return h.err
			})
		}
		joined <- g.Wait()
	}()

	results := make(RenderResult)
	for i, h := range handles {
		<-h.done
		if h.err != nil {
			// the pool's first error is the cause, h.err may only be the
			// cancellation it triggered
			return nil, <-joined
		}
		if h.path != "" {
			results[chunks[i].Pos] = h.path
		}

		agg.Drain()
		logProgress(i, len(handles))
	}

	if err := <-joined; err != nil {
		return nil, err
	}
	return results, nil
}
