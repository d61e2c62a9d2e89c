package localization

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pitabwire/util"

	"github.com/pitabwire/barberdesk/workerpool"
)

var (
	// ErrSourceStringNotFound is returned when the backend id of a source
	// string is unknown, still being looked up, or failed to resolve.
	ErrSourceStringNotFound = errors.New("source string not found")
	// ErrSaveFailed wraps every other failure to store a translation.
	ErrSaveFailed = errors.New("translation save failed")
)

// EditBackend stores translations keyed by the backend id of their source string.
type EditBackend interface {
	LookupSourceID(ctx context.Context, source string, lang string) (int64, error)
	SaveTranslation(ctx context.Context, source string, lang string, value string, sourceID int64) error
}

type lookupKey struct {
	source string
	lang   string
}

// Editor saves translation overrides and refreshes the cache afterwards.
type Editor struct {
	backend EditBackend
	cache   *Cache
	pool    workerpool.Pool

	mu      sync.Mutex
	lookups map[lookupKey]workerpool.Job[int64]
}

// NewEditor builds an editor. Without a pool lookups run on plain goroutines.
func NewEditor(backend EditBackend, cache *Cache, pool workerpool.Pool) *Editor {
	return &Editor{
		backend: backend,
		cache:   cache,
		pool:    pool,
		lookups: map[lookupKey]workerpool.Job[int64]{},
	}
}

// Prefetch starts resolving the source id of source in the background.
func (e *Editor) Prefetch(ctx context.Context, source string, lang string) {
	key := lookupKey{source: source, lang: Normalize(lang)}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.lookups[key]; ok {
		return
	}

	job := workerpool.NewJob(func(ctx context.Context) (int64, error) {
		return e.backend.LookupSourceID(ctx, key.source, key.lang)
	})
	e.lookups[key] = job

	pool := e.pool
	if pool == nil {
		pool = inlinePool{}
	}
	if err := workerpool.SubmitJob(ctx, pool, job); err != nil {
		util.Log(ctx).WithError(err).Warn("could not schedule source string lookup")
	}
}

// Save stores value as the lang translation of source. It fails with
// ErrSourceStringNotFound when a prefetched lookup is pending or failed; the
// save endpoint is not called then. Without a prefetch the lookup runs inline.
func (e *Editor) Save(ctx context.Context, source string, lang string, value string) error {
	lang = Normalize(lang)
	key := lookupKey{source: source, lang: lang}

	id, err := e.resolve(ctx, key)
	if err != nil {
		return err
	}

	if err = e.backend.SaveTranslation(ctx, source, lang, value, id); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	util.Log(ctx).WithField("language", lang).WithField("source_id", id).Info("translation saved")

	if err = e.cache.Reload(ctx, lang); err != nil {
		util.Log(ctx).WithError(err).Warn("translation saved but the catalog could not be reloaded")
	}
	return nil
}

func (e *Editor) resolve(ctx context.Context, key lookupKey) (int64, error) {
	e.mu.Lock()
	job, prefetched := e.lookups[key]
	e.mu.Unlock()

	if !prefetched {
		id, err := e.backend.LookupSourceID(ctx, key.source, key.lang)
		if err != nil || id == 0 {
			return 0, notFound(err)
		}
		return id, nil
	}

	select {
	case <-job.Done():
	default:
		return 0, ErrSourceStringNotFound
	}

	res, _ := job.Wait(ctx)
	if res == nil || res.IsError() || res.Item() == 0 {
		// Forget the failure so the next prefetch tries again.
		e.mu.Lock()
		if e.lookups[key] == job {
			delete(e.lookups, key)
		}
		e.mu.Unlock()

		var cause error
		if res != nil {
			cause = res.Error()
		}
		return 0, notFound(cause)
	}
	return res.Item(), nil
}

func notFound(cause error) error {
	if cause == nil {
		return ErrSourceStringNotFound
	}
	return fmt.Errorf("%w: %w", ErrSourceStringNotFound, cause)
}

// inlinePool runs tasks on their own goroutine.
type inlinePool struct{}

func (inlinePool) Submit(_ context.Context, task func()) error {
	go task()
	return nil
}

func (inlinePool) Shutdown() {}
