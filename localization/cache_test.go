package localization_test

import (
	"context"
	"errors"
	"maps"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/barberdesk/localization"
	"github.com/pitabwire/barberdesk/workerpool"
)

type fakeFetcher struct {
	mu    sync.Mutex
	maps  map[string]map[string]string
	fail  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		maps:  map[string]map[string]string{},
		fail:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) BulkTranslations(_ context.Context, lang string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[lang]++
	if err := f.fail[lang]; err != nil {
		return nil, err
	}
	return maps.Clone(f.maps[lang]), nil
}

func (f *fakeFetcher) set(lang string, m map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maps[lang] = m
}

func (f *fakeFetcher) failWith(lang string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[lang] = err
}

func (f *fakeFetcher) count(lang string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[lang]
}

type CacheSuite struct {
	suite.Suite

	fetcher *fakeFetcher
	cache   *localization.Cache
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.fetcher = newFakeFetcher()
	s.fetcher.set("pt", map[string]string{"Hello": "Olá", "Empty": ""})
	s.cache = localization.NewCache(s.fetcher)
}

func (s *CacheSuite) TestGetFallbacks() {
	ctx := context.Background()

	s.Equal("Hello", s.cache.Get("Hello", "pt"), "not loaded yet")
	s.Require().NoError(s.cache.Load(ctx, "pt"))

	testCases := []struct {
		name   string
		source string
		lang   string
		want   string
	}{
		{name: "translated", source: "Hello", lang: "pt", want: "Olá"},
		{name: "missing key", source: "Goodbye", lang: "pt", want: "Goodbye"},
		{name: "empty value", source: "Empty", lang: "pt", want: "Empty"},
		{name: "default language", source: "Hello", lang: "en", want: "Hello"},
		{name: "no language", source: "Hello", lang: "", want: "Hello"},
		{name: "unloaded language", source: "Hello", lang: "es", want: "Hello"},
		{name: "upper case code", source: "Hello", lang: "PT", want: "Olá"},
		{name: "template braces kept", source: "{{.Name}}", lang: "pt", want: "{{.Name}}"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.want, s.cache.Get(tc.source, tc.lang))
		})
	}
}

func (s *CacheSuite) TestTemplateLikeTranslationReturnedVerbatim() {
	s.fetcher.set("es", map[string]string{"Welcome {{name}}": "Bienvenido {{.Name}}"})
	s.Require().NoError(s.cache.Load(context.Background(), "es"))
	s.Equal("Bienvenido {{.Name}}", s.cache.Get("Welcome {{name}}", "es"))
}

func (s *CacheSuite) TestLanguagesWithoutPluralRules() {
	ctx := context.Background()

	for _, lang := range []string{"qu", "la", "mi", "gn", "ht"} {
		s.Run(lang, func() {
			s.fetcher.set(lang, map[string]string{"Hello": "HI-" + lang})
			s.Require().NoError(s.cache.Load(ctx, lang))

			s.True(s.cache.Loaded(lang))
			s.Equal("HI-"+lang, s.cache.Get("Hello", lang))
			s.Equal("Goodbye", s.cache.Get("Goodbye", lang))
		})
	}
}

func (s *CacheSuite) TestLoadIsIdempotent() {
	ctx := context.Background()
	s.fetcher.set("de", map[string]string{})

	s.Require().NoError(s.cache.Load(ctx, "de"))
	s.Require().NoError(s.cache.Load(ctx, "de"))
	s.True(s.cache.Loaded("de"))
	s.Equal(1, s.fetcher.count("de"))

	s.Require().NoError(s.cache.Load(ctx, "en"))
	s.Equal(0, s.fetcher.count("en"))
	s.True(s.cache.Loaded("en"))
}

func (s *CacheSuite) TestLoadFailureFallsBack() {
	ctx := context.Background()
	s.fetcher.failWith("pt", errors.New("backend down"))

	s.Error(s.cache.Load(ctx, "pt"))
	s.False(s.cache.Loaded("pt"))
	s.Equal("Hello", s.cache.Get("Hello", "pt"))

	s.fetcher.failWith("pt", nil)
	s.Require().NoError(s.cache.Load(ctx, "pt"))
	s.Equal("Olá", s.cache.Get("Hello", "pt"))
}

func (s *CacheSuite) TestReloadKeepsOldCatalogOnFailure() {
	ctx := context.Background()

	var reloaded []string
	s.cache = localization.NewCache(s.fetcher, localization.WithReloadNotifier(func(_ context.Context, lang string) {
		reloaded = append(reloaded, lang)
	}))

	s.Require().NoError(s.cache.Load(ctx, "pt"))
	v := s.cache.Version()

	s.fetcher.set("pt", map[string]string{"Hello": "Oi"})
	s.Require().NoError(s.cache.Reload(ctx, "pt"))
	s.Equal("Oi", s.cache.Get("Hello", "pt"))
	s.Greater(s.cache.Version(), v)
	s.Equal([]string{"pt"}, reloaded)

	v = s.cache.Version()
	s.fetcher.failWith("pt", errors.New("backend down"))
	s.Error(s.cache.Reload(ctx, "pt"))
	s.Equal("Oi", s.cache.Get("Hello", "pt"))
	s.Equal(v, s.cache.Version())
	s.Len(reloaded, 1)

	s.NoError(s.cache.Reload(ctx, "en"))
}

func (s *CacheSuite) TestInvalidate() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Load(ctx, "pt"))
	v := s.cache.Version()

	s.cache.Invalidate("pt")
	s.False(s.cache.Loaded("pt"))
	s.Equal("Hello", s.cache.Get("Hello", "pt"))
	s.Greater(s.cache.Version(), v)

	s.Require().NoError(s.cache.Load(ctx, "pt"))
	s.Equal(2, s.fetcher.count("pt"))
}

func (s *CacheSuite) TestEntries() {
	s.Require().NoError(s.cache.Load(context.Background(), "pt"))
	s.Equal(map[string]string{"Hello": "Olá"}, s.cache.Entries("pt"))
	s.Empty(s.cache.Entries("zz"))
}

func (s *CacheSuite) TestCustomDefaultLanguage() {
	cache := localization.NewCache(s.fetcher, localization.WithDefaultLanguage("pt"))
	s.Equal("pt", cache.DefaultLanguage())
	s.Require().NoError(cache.Load(context.Background(), "pt"))
	s.Equal(0, s.fetcher.count("pt"))
	s.Equal("Hello", cache.Get("Hello", "pt"))
}

func (s *CacheSuite) TestPreload() {
	ctx := context.Background()
	s.fetcher.set("es", map[string]string{"Hello": "Hola"})
	s.fetcher.failWith("fr", errors.New("no french"))

	pool, err := workerpool.New(ctx, nil, workerpool.WithCapacity(4))
	s.Require().NoError(err)
	defer pool.Shutdown()

	cache := localization.NewCache(s.fetcher, localization.WithPool(pool))
	cache.Preload(ctx, "pt", "es", "fr")

	s.True(cache.Loaded("pt"))
	s.True(cache.Loaded("es"))
	s.False(cache.Loaded("fr"))
	s.Equal("Hola", cache.Get("Hello", "es"))

	plain := localization.NewCache(s.fetcher)
	plain.Preload(ctx, "pt")
	s.True(plain.Loaded("pt"))
}

func (s *CacheSuite) TestSeeds() {
	ctx := context.Background()

	err := s.cache.LoadSeeds("testdata", "pt", "es", "it", "en")
	s.Require().NoError(err)

	s.Equal("Olá (semente)", s.cache.Get("Hello", "pt"))
	s.Equal("Hola", s.cache.Get("Hello", "es"))
	s.False(s.cache.Loaded("pt"), "seeds do not count as loaded")

	// The backend wins once it answers.
	s.Require().NoError(s.cache.Load(ctx, "pt"))
	s.Equal("Olá", s.cache.Get("Hello", "pt"))
	s.Equal("Staff", s.cache.Get("Staff", "pt"))

	// Fetched catalogs are never replaced by seeds.
	s.Require().NoError(s.cache.LoadSeeds("testdata", "pt"))
	s.Equal("Olá", s.cache.Get("Hello", "pt"))

	// A failed fetch keeps serving the seed.
	s.fetcher.failWith("es", errors.New("backend down"))
	s.Error(s.cache.Load(ctx, "es"))
	s.Equal("Clientes", s.cache.Get("Clients", "es"))

	s.Error(s.cache.LoadSeeds("testdata", "fr"))
	s.NoError(s.cache.LoadSeeds("", "pt"))
}

func (s *CacheSuite) TestSeedLanguages() {
	s.ElementsMatch([]string{"es", "fr", "pt"}, localization.SeedLanguages("testdata"))
	s.Empty(localization.SeedLanguages(""))
	s.Empty(localization.SeedLanguages("missing"))
}

func (s *CacheSuite) TestConcurrentReadsDuringReload() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Load(ctx, "pt"))

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				got := s.cache.Get("Hello", "pt")
				if got != "Olá" && got != "Oi" {
					s.Failf("unexpected translation", "got %q", got)
				}
			}
		}()
	}

	s.fetcher.set("pt", map[string]string{"Hello": "Oi"})
	for range 10 {
		s.NoError(s.cache.Reload(ctx, "pt"))
	}
	wg.Wait()
}
