package localization

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/nicksnyder/go-i18n/v2/i18n/template"
	"github.com/pitabwire/util"
	"golang.org/x/text/language"

	"github.com/pitabwire/barberdesk/workerpool"
)

// DefaultLanguage is the language source strings are written in.
const DefaultLanguage = "en"

// Fetcher returns the whole source to translation map of one language.
type Fetcher interface {
	BulkTranslations(ctx context.Context, lang string) (map[string]string, error)
}

// ReloadNotifier is told after a language is reloaded.
type ReloadNotifier func(ctx context.Context, lang string)

type CacheOption func(*Cache)

// WithDefaultLanguage overrides the source language.
func WithDefaultLanguage(lang string) CacheOption {
	return func(c *Cache) {
		if n := Normalize(lang); n != "" {
			c.defaultLang = n
		}
	}
}

// WithPool runs Preload on pool.
func WithPool(pool workerpool.Pool) CacheOption {
	return func(c *Cache) {
		c.pool = pool
	}
}

// WithReloadNotifier registers fn to run after each successful Reload.
func WithReloadNotifier(fn ReloadNotifier) CacheOption {
	return func(c *Cache) {
		c.notifiers = append(c.notifiers, fn)
	}
}

type catalog struct {
	localizer *i18n.Localizer
	entries   map[string]string
	// fetched is false for catalogs built from seed files only.
	fetched bool
}

// newCatalog builds the lookup bundle of lang. go-i18n rejects languages
// without a CLDR plural rule, those catalogs are bundled under the source
// language tag instead and the returned error reports the fallback.
func newCatalog(lang string, entries map[string]string, fetched bool) (*catalog, error) {
	kept := make(map[string]string, len(entries))
	messages := make([]*i18n.Message, 0, len(entries))
	for source, translated := range entries {
		if source == "" || translated == "" {
			continue
		}
		kept[source] = translated
		messages = append(messages, &i18n.Message{ID: source, Other: translated})
	}

	tag := language.Make(lang)
	bundle := i18n.NewBundle(tag)
	err := bundle.AddMessages(tag, messages...)
	if err != nil {
		tag = language.English
		bundle = i18n.NewBundle(tag)
		if fbErr := bundle.AddMessages(tag, messages...); fbErr != nil {
			err = errors.Join(err, fbErr)
		}
		err = fmt.Errorf("catalog %q bundled under %q: %w", lang, tag, err)
	}

	return &catalog{
		localizer: i18n.NewLocalizer(bundle, tag.String()),
		entries:   kept,
		fetched:   fetched,
	}, err
}

func (c *catalog) lookup(source string) (string, bool) {
	msg, err := c.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:      source,
		TemplateParser: template.IdentityParser{},
	})
	if err == nil && msg != "" {
		return msg, true
	}
	translated, ok := c.entries[source]
	return translated, ok
}

// Cache keeps one translation catalog per language. Lookups never block and
// never fail: anything missing reads as the source string.
type Cache struct {
	fetcher     Fetcher
	defaultLang string
	pool        workerpool.Pool
	notifiers   []ReloadNotifier

	mu       sync.RWMutex
	catalogs map[string]*catalog
	version  atomic.Uint64
}

func NewCache(fetcher Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher:     fetcher,
		defaultLang: DefaultLanguage,
		catalogs:    map[string]*catalog{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultLanguage returns the source language.
func (c *Cache) DefaultLanguage() string {
	return c.defaultLang
}

func (c *Cache) isDefault(lang string) bool {
	return lang == "" || lang == c.defaultLang
}

// Get returns the translation of source in lang, or source itself.
func (c *Cache) Get(source string, lang string) string {
	lang = Normalize(lang)
	if c.isDefault(lang) {
		return source
	}

	c.mu.RLock()
	cat := c.catalogs[lang]
	c.mu.RUnlock()

	if cat == nil {
		return source
	}
	if translated, ok := cat.lookup(source); ok {
		return translated
	}
	return source
}

// Loaded reports whether lang has been fetched from the backend.
func (c *Cache) Loaded(lang string) bool {
	lang = Normalize(lang)
	if c.isDefault(lang) {
		return true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	cat := c.catalogs[lang]
	return cat != nil && cat.fetched
}

// Version increases whenever a catalog is replaced or dropped. Strings read
// under an older version may be stale.
func (c *Cache) Version() uint64 {
	return c.version.Load()
}

// Entries returns a copy of the catalog of lang.
func (c *Cache) Entries(lang string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cat := c.catalogs[Normalize(lang)]
	if cat == nil {
		return map[string]string{}
	}
	return maps.Clone(cat.entries)
}

// Load fetches lang unless it is already loaded, even as an empty map.
// Concurrent loads of the same language may each hit the backend.
func (c *Cache) Load(ctx context.Context, lang string) error {
	lang = Normalize(lang)
	if c.Loaded(lang) {
		return nil
	}
	return c.fetch(ctx, lang, false)
}

// Reload refetches lang. On failure the previous catalog stays in place.
func (c *Cache) Reload(ctx context.Context, lang string) error {
	lang = Normalize(lang)
	if c.isDefault(lang) {
		return nil
	}
	return c.fetch(ctx, lang, true)
}

func (c *Cache) fetch(ctx context.Context, lang string, reload bool) error {
	log := util.Log(ctx).WithField("language", lang)

	entries, err := c.fetcher.BulkTranslations(ctx, lang)
	if err != nil {
		log.WithError(err).Warn("could not load translations, using source strings")
		return err
	}

	cat, err := newCatalog(lang, entries, true)
	if err != nil {
		log.WithError(err).Warn("translations bundled without plural rules")
	}

	c.mu.Lock()
	c.catalogs[lang] = cat
	c.mu.Unlock()
	c.version.Add(1)

	log.WithField("entries", len(cat.entries)).Debug("translations loaded")

	if reload {
		for _, fn := range c.notifiers {
			fn(ctx, lang)
		}
	}
	return nil
}

// Invalidate drops the catalog of lang so the next Load fetches it again.
func (c *Cache) Invalidate(lang string) {
	c.mu.Lock()
	delete(c.catalogs, Normalize(lang))
	c.mu.Unlock()
	c.version.Add(1)
}

// Preload loads every language concurrently on the pool, or one after the
// other without one. Failures are logged by Load and do not stop the others.
func (c *Cache) Preload(ctx context.Context, langs ...string) {
	if c.pool == nil {
		for _, lang := range langs {
			_ = c.Load(ctx, lang)
		}
		return
	}

	jobs := make([]workerpool.Job[string], 0, len(langs))
	for _, lang := range langs {
		job := workerpool.NewJob(func(ctx context.Context) (string, error) {
			return lang, c.Load(ctx, lang)
		})
		if err := workerpool.SubmitJob(ctx, c.pool, job); err != nil {
			util.Log(ctx).WithError(err).WithField("language", lang).Warn("could not schedule translation load")
			continue
		}
		jobs = append(jobs, job)
	}

	for _, job := range jobs {
		job.Wait(ctx)
	}
}

func (c *Cache) seed(lang string, entries map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing := c.catalogs[lang]; existing != nil && existing.fetched {
		return
	}
	cat, err := newCatalog(lang, entries, false)
	if err != nil {
		util.Log(context.Background()).WithError(err).Warn("seed translations bundled without plural rules")
	}
	c.catalogs[lang] = cat
	c.version.Add(1)
}
