package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexaa/internal/browse"
	"github.com/desertthunder/plexaa/internal/shared"
	"golang.org/x/time/rate"
)

const (
	partSuffix  = ".part"
	audioSuffix = ".audio"
	jobBuffer   = 64
)

// PrefetchOpts configure a [Prefetcher].
type PrefetchOpts struct {
	Dir        string                // Cache directory, created if missing
	NumWorkers int                   // Concurrent downloads (default: 3)
	RateLimit  float64               // Downloads started per second (default: 2)
	Client     *http.Client          // Defaults to http.DefaultClient
	Logger     *log.Logger           // Defaults to a discarding logger
	Progress   chan<- ProgressUpdate // Optional, never blocks
}

type prefetchBatch struct {
	total int
	done  atomic.Int32
}

type prefetchJob struct {
	ctx    context.Context
	cancel context.CancelFunc
	item   browse.Item
	batch  *prefetchBatch
}

// Prefetcher downloads upcoming tracks into a directory with a bounded worker pool.
//
// Each [Prefetcher.Update] names the complete keep set: downloads outside it are cancelled and
// their files removed.
type Prefetcher struct {
	dir      string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *log.Logger
	progress chan<- ProgressUpdate

	// active holds the current job per file key. A superseded job is no longer in it.
	mu     sync.Mutex
	active map[string]*prefetchJob

	jobs   chan *prefetchJob
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// NewPrefetcher creates the cache directory and starts the workers.
func NewPrefetcher(opts PrefetchOpts) (*Prefetcher, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: prefetch directory is required", shared.ErrInvalidArgument)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if err := shared.EnsureDir(opts.Dir); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Prefetcher{
		dir:      opts.Dir,
		client:   opts.Client,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		logger:   opts.Logger,
		progress: opts.Progress,
		active:   make(map[string]*prefetchJob),
		jobs:     make(chan *prefetchJob, jobBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}

	for range opts.NumWorkers {
		p.wg.Add(1)
		go p.worker()
	}
	return p, nil
}

// Close cancels every download and stops the workers. Cached files are kept.
func (p *Prefetcher) Close() {
	p.mu.Lock()
	if p.closed.Swap(true) {
		p.mu.Unlock()
		return
	}
	p.cancel()
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Path is where the cached audio for id is stored.
func (p *Prefetcher) Path(id string) string {
	return filepath.Join(p.dir, fileKey(id)+audioSuffix)
}

// Cached reports whether id has been fully downloaded.
func (p *Prefetcher) Cached(id string) bool {
	_, err := os.Stat(p.Path(id))
	return err == nil
}

func fileKey(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(id)
}

// Update makes items the keep set: it cancels downloads of other items, removes their cached
// files, and queues items that are neither cached nor downloading, in the given order.
func (p *Prefetcher) Update(items []browse.Item) {
	keep := make(map[string]bool, len(items))
	for _, it := range items {
		keep[fileKey(it.ID)] = true
	}

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return
	}
	for key, job := range p.active {
		if !keep[key] {
			job.cancel()
			delete(p.active, key)
		}
	}

	var queued []browse.Item
	for _, it := range items {
		key := fileKey(it.ID)
		if it.StreamURL == "" || p.active[key] != nil || p.Cached(it.ID) {
			continue
		}
		queued = append(queued, it)
	}

	batch := &prefetchBatch{total: len(queued)}
	for _, it := range queued {
		ctx, cancel := context.WithCancel(p.ctx)
		job := &prefetchJob{ctx: ctx, cancel: cancel, item: it, batch: batch}
		select {
		case p.jobs <- job:
			p.active[fileKey(it.ID)] = job
		default:
			cancel()
			p.logger.Warn("prefetch queue full, skipping", "id", it.ID)
		}
	}
	p.mu.Unlock()

	p.evict(keep)
}

// evict removes finished downloads outside keep.
func (p *Prefetcher) evict(keep map[string]bool) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		p.logger.Warn("failed to read cache directory", "dir", p.dir, "error", err)
		return
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, audioSuffix) {
			continue
		}
		if keep[strings.TrimSuffix(name, audioSuffix)] {
			continue
		}
		if err := os.Remove(filepath.Join(p.dir, name)); err != nil {
			p.logger.Warn("failed to evict cached track", "file", name, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		p.logger.Debug("evicted cached tracks", "count", removed)
		sendProgress(p.progress, evictedUpdate(removed))
	}
}

func (p *Prefetcher) worker() {
	defer p.wg.Done()

	for job := range p.jobs {
		if job.ctx.Err() != nil {
			continue
		}
		if err := p.limiter.Wait(job.ctx); err != nil {
			p.finish(job, err)
			continue
		}
		p.finish(job, p.download(job.ctx, job.item))
	}
}

func (p *Prefetcher) finish(job *prefetchJob, err error) {
	job.cancel()
	key := fileKey(job.item.ID)
	p.mu.Lock()
	if p.active[key] == job {
		delete(p.active, key)
	}
	p.mu.Unlock()

	step := int(job.batch.done.Add(1))
	switch {
	case err == nil:
		p.logger.Debug("prefetched track", "id", job.item.ID)
		sendProgress(p.progress, prefetchedUpdate(step, job.batch.total, job.item))
	case errors.Is(err, context.Canceled):
		p.logger.Debug("prefetch cancelled", "id", job.item.ID)
	default:
		p.logger.Warn("prefetch failed", "id", job.item.ID, "error", err)
		sendProgress(p.progress, prefetchFailedUpdate(step, job.batch.total, job.item, err))
	}
}

// download streams the item to a part file of its own and renames it into place once complete.
func (p *Prefetcher) download(ctx context.Context, it browse.Item) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, it.StreamURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: stream returned %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	final := p.Path(it.ID)
	f, err := os.CreateTemp(p.dir, fileKey(it.ID)+"-*"+partSuffix)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	part := f.Name()

	_, err = io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		os.Remove(part)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	if err := os.Rename(part, final); err != nil {
		os.Remove(part)
		return fmt.Errorf("failed to finalize cache file: %w", err)
	}
	return nil
}
