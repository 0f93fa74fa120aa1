package fetch

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/lux-pm/lux/internal/resolver"
)

// Fetcher runs Source fetches with bounded concurrency and a fixed retry
// budget, staging each into its own scratch directory under scratchRoot
// keyed by the package's LocalPackageId.
type Fetcher struct {
	scratchRoot string
	client      *http.Client
	sem         *semaphore.Weighted

	retries int
	backoff time.Duration
	timeout time.Duration
}

// New constructs a Fetcher. concurrency bounds simultaneous fetches
// (the default is 4); timeout bounds each individual attempt.
func New(scratchRoot string, concurrency int, timeout time.Duration) *Fetcher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Fetcher{
		scratchRoot: scratchRoot,
		client:      &http.Client{Timeout: timeout},
		sem:         semaphore.NewWeighted(int64(concurrency)),
		retries:     3,
		backoff:     time.Second,
		timeout:     timeout,
	}
}

// Fetch stages src for id, making up to f.retries attempts with
// exponential backoff between them, bounded by the fetcher's concurrency
// semaphore. Only an attempt that hit its per-attempt timeout is retried;
// any other failure is returned at once. Running out of attempts on
// timeouts surfaces as a *TimeoutError naming the source and the attempts
// made.
func (f *Fetcher) Fetch(ctx context.Context, id resolver.LocalPackageId, src Source) (Result, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return Result{}, errors.Wrap(err, "acquiring fetch slot")
	}
	defer f.sem.Release(1)

	destDir := filepath.Join(f.scratchRoot, string(id))

	for attempt := 1; attempt <= f.retries; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if f.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, f.timeout)
		}

		result, err := f.fetchOnce(attemptCtx, src, destDir)
		timedOut := attemptCtx.Err() == context.DeadlineExceeded
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}

		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if !timedOut {
			// Only timeouts are worth retrying; anything else (a bad
			// archive digest, an unreachable local path) will fail the
			// same way again.
			return Result{}, err
		}
		if attempt == f.retries {
			return Result{}, &TimeoutError{Source: f.describe(src), Retries: attempt}
		}

		select {
		case <-time.After(retryDelay(f.backoff, attempt)):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	return Result{}, errors.Errorf("fetching %s: exhausted retries", f.describe(src))
}

// retryDelay computes the exponential backoff before a given retry
// attempt (1-indexed): base, 2*base, 4*base, ...
func retryDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<(attempt-1))
}

func (f *Fetcher) fetchOnce(ctx context.Context, src Source, destDir string) (Result, error) {
	switch src.Kind {
	case KindRegistry:
		return f.fetchRegistry(ctx, src, destDir)
	case KindGit:
		return f.fetchGit(ctx, src, destDir)
	case KindLocal:
		return f.fetchLocal(ctx, src, destDir)
	default:
		return Result{}, errors.Errorf("unknown source kind %d", src.Kind)
	}
}

func (f *Fetcher) describe(src Source) string {
	switch src.Kind {
	case KindRegistry:
		return src.URL
	case KindGit:
		return src.GitURL
	case KindLocal:
		return src.Path
	default:
		return "<unknown source>"
	}
}
