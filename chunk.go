package isocarto

import "context"

// RenderJob is everything a renderer needs for one chunk. It is passed by
// value and never shared between jobs.
type RenderJob struct {
	Chunk    ChunkCandidate
	CacheDir string
	Opts     WorldOpts
	Prior    string
}

type ChunkRenderer interface {
	// IsCached reports whether job.Prior is still a valid image for the
	// chunk. Returning true means RenderChunk is not called this run.
	IsCached(job RenderJob) bool

	// RenderChunk renders and saves the chunk, returning the image path or
	// "" for a ghost chunk. POI changes go through sink only.
	RenderChunk(ctx context.Context, job RenderJob, sink EventSink) (string, error)
}
