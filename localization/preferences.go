package localization

import (
	"context"

	"github.com/pitabwire/util"

	"github.com/pitabwire/barberdesk/storage"
)

// BusinessLanguage reports the language of the selected business, or "".
type BusinessLanguage interface {
	BusinessLanguage() string
}

// Preferences resolves the language the user reads the interface in.
type Preferences struct {
	cache    *Cache
	durable  storage.Store
	business BusinessLanguage
}

// NewPreferences builds the language chain. business may be nil, in which case
// the chain skips straight to the default language.
func NewPreferences(cache *Cache, durable storage.Store, business BusinessLanguage) *Preferences {
	return &Preferences{cache: cache, durable: durable, business: business}
}

// Active is the user's chosen language, else the selected business language,
// else the default language.
func (p *Preferences) Active(ctx context.Context) string {
	if lang, ok := p.durable.Get(ctx, storage.KeyCurrentLanguage); ok {
		if lang = Normalize(lang); lang != "" {
			return lang
		}
	}
	if p.business != nil {
		if lang := Normalize(p.business.BusinessLanguage()); lang != "" {
			return lang
		}
	}
	return p.cache.DefaultLanguage()
}

// SetActive stores the user's choice and loads its catalog. A failed load
// leaves the interface in source strings and is only logged.
func (p *Preferences) SetActive(ctx context.Context, lang string) {
	lang = Normalize(lang)
	if lang == "" {
		p.durable.Remove(ctx, storage.KeyCurrentLanguage)
	} else {
		p.durable.Set(ctx, storage.KeyCurrentLanguage, lang)
	}
	p.EnsureLoaded(ctx)
}

// EnsureLoaded loads the catalog of the active language.
func (p *Preferences) EnsureLoaded(ctx context.Context) {
	lang := p.Active(ctx)
	if err := p.cache.Load(ctx, lang); err != nil {
		util.Log(ctx).WithField("language", lang).Debug("active language served from source strings")
	}
}

// Translate renders source in the active language.
func (p *Preferences) Translate(ctx context.Context, source string) string {
	return p.cache.Get(source, p.Active(ctx))
}

// Context records the active language on ctx for outgoing requests.
func (p *Preferences) Context(ctx context.Context) context.Context {
	return ToContext(ctx, p.Active(ctx))
}
