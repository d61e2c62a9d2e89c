// Package barberdesk is the composition root of the barbershop dashboard core.
// A Desk wires storage, the REST collaborator, the session, the business
// context, translations, edition mode and the resource views together and
// owns their lifecycle.
package barberdesk

import (
	"context"
	"errors"
	"sync"

	"github.com/pitabwire/util"

	"github.com/pitabwire/barberdesk/api"
	"github.com/pitabwire/barberdesk/client"
	"github.com/pitabwire/barberdesk/config"
	"github.com/pitabwire/barberdesk/data"
	"github.com/pitabwire/barberdesk/edition"
	"github.com/pitabwire/barberdesk/events"
	"github.com/pitabwire/barberdesk/localization"
	"github.com/pitabwire/barberdesk/resource"
	"github.com/pitabwire/barberdesk/session"
	"github.com/pitabwire/barberdesk/storage"
	"github.com/pitabwire/barberdesk/tenancy"
	"github.com/pitabwire/barberdesk/workerpool"
)

type contextKey string

func (c contextKey) String() string {
	return "barberdesk/" + string(c)
}

const ctxKeyDesk = contextKey("deskKey")

// Desk holds every component for the lifetime of the process.
type Desk struct {
	cfg        *config.ConfigurationDefault
	logger     *util.LogEntry
	logOpts    []util.Option
	httpOpts   []client.HTTPOption
	logoutHook func(ctx context.Context)

	durableBackend storage.Backend
	tabBackend     storage.Backend

	stores       storage.Manager
	pool         workerpool.Pool
	invoker      client.Manager
	publisher    *events.Publisher
	auth         *api.AuthClient
	api          *api.Client
	session      *session.Manager
	resolver     *tenancy.Resolver
	translations *localization.Cache
	preferences  *localization.Preferences
	editor       *localization.Editor
	edition      *edition.Controller
	resources    *resource.Registry

	closeOnce sync.Once
	closeErr  error
}

// New builds a Desk. Configuration comes from the environment unless WithConfig
// is given. The returned context carries the desk, its configuration and logger.
func New(ctx context.Context, opts ...Option) (context.Context, *Desk, error) {
	d := &Desk{}
	for _, opt := range opts {
		opt(ctx, d)
	}

	if d.cfg == nil {
		cfg, err := config.FromEnv[config.ConfigurationDefault]()
		if err != nil {
			return ctx, nil, err
		}
		d.cfg = &cfg
	}

	d.logger = newLogger(ctx, d.cfg, d.logOpts...)
	ctx = util.ContextWithLogger(ctx, d.logger)

	if err := d.init(ctx); err != nil {
		_ = d.Close(ctx)
		return ctx, nil, err
	}

	ctx = ToContext(ctx, d)
	ctx = config.ToContext(ctx, d.cfg)
	return ctx, d, nil
}

func newLogger(ctx context.Context, cfg *config.ConfigurationDefault, opts ...util.Option) *util.LogEntry {
	base := []util.Option{
		util.WithLogTimeFormat(cfg.LoggingTimeFormat()),
		util.WithLogNoColor(!cfg.LoggingColored()),
	}
	if level, err := util.ParseLevel(cfg.LoggingLevel()); err == nil {
		base = append(base, util.WithLogLevel(level))
	}
	if cfg.LoggingShowStackTrace() {
		base = append(base, util.WithLogStackTrace())
	}
	return util.NewLogger(ctx, append(base, opts...)...)
}

func (d *Desk) init(ctx context.Context) error {
	var err error
	cfg := d.cfg

	if d.durableBackend == nil {
		d.durableBackend, err = OpenStorage(ctx, data.DSN(cfg.GetStorageDurableURI()), storage.WithName(storage.DurableName))
		if err != nil {
			return err
		}
	}
	if d.tabBackend == nil {
		d.tabBackend, err = OpenStorage(ctx, data.DSN(cfg.GetStorageSessionURI()), storage.WithName(storage.TabName))
		if err != nil {
			return err
		}
	}
	d.stores = storage.NewManager(d.durableBackend, d.tabBackend, storage.WithKeyPrefix(cfg.GetStorageKeyPrefix()))

	d.pool, err = workerpool.New(ctx, cfg, workerpool.WithLogger(d.logger))
	if err != nil {
		return err
	}

	d.invoker = client.NewManager(append(client.FromConfig(cfg), d.httpOpts...)...)

	d.publisher = events.NewPublisher(cfg.GetEventsTopicURL())
	if err = d.publisher.Init(ctx); err != nil {
		return err
	}

	baseURL := cfg.GetAPIBaseURL()
	d.auth = api.NewAuthClient(d.invoker, baseURL)

	sessionOpts := []session.Option{session.WithPublisher(d.publisher)}
	if d.logoutHook != nil {
		sessionOpts = append(sessionOpts, session.WithLogoutHook(d.logoutHook))
	}
	d.session = session.New(d.auth, d.stores, sessionOpts...)

	// The resolver is built after the client, so the scope reads it lazily.
	scope := api.BusinessScopeFunc(func() (int64, bool) {
		if d.resolver == nil {
			return 0, false
		}
		return d.resolver.Selected()
	})
	d.api = api.NewClient(d.invoker, baseURL, d.session, api.WithBusinessScope(scope))

	resourceCache := resource.NewCache()
	d.resolver = tenancy.New(d.api, d.stores,
		tenancy.WithPublisher(d.publisher),
		tenancy.WithInvalidator(resourceCache.InvalidateAll),
		tenancy.WithInvalidator(func(ctx context.Context) { d.preferences.EnsureLoaded(ctx) }),
	)

	d.translations = localization.NewCache(d.api,
		localization.WithDefaultLanguage(cfg.GetDefaultLanguage()),
		localization.WithPool(d.pool),
		localization.WithReloadNotifier(func(ctx context.Context, lang string) {
			e := events.New(events.KindTranslationsLoaded)
			e.Language = lang
			d.publisher.Emit(ctx, e)
		}),
	)
	folder := cfg.GetTranslationsFolder()
	if err = d.translations.LoadSeeds(folder, localization.SeedLanguages(folder)...); err != nil {
		d.logger.WithError(err).Warn("could not read translation seeds")
	}

	d.preferences = localization.NewPreferences(d.translations, d.stores.Durable(), d.resolver)
	d.editor = localization.NewEditor(translationBackend{client: d.api}, d.translations, d.pool)
	d.edition = edition.New(d.stores.Durable(), d.session, d.editor,
		edition.WithSuperAdminRoleID(cfg.GetSuperAdminRoleID()))
	d.resources = resource.NewRegistry(d.api, d.resolver, resourceCache, d.pool)

	d.session.Subscribe(func(ctx context.Context, user *api.User) {
		resourceCache.InvalidateAll(ctx)
		d.resolver.OnUserChanged(ctx, user)
		if user != nil {
			d.preferences.EnsureLoaded(ctx)
		}
	})

	return nil
}

// ToContext pushes the desk into ctx.
func ToContext(ctx context.Context, d *Desk) context.Context {
	return context.WithValue(ctx, ctxKeyDesk, d)
}

// FromContext returns the desk carried by ctx, or nil.
func FromContext(ctx context.Context) *Desk {
	d, ok := ctx.Value(ctxKeyDesk).(*Desk)
	if !ok {
		return nil
	}
	return d
}

// Start restores the persisted session. When it is still valid the business
// list and the active language are loaded before Start returns.
func (d *Desk) Start(ctx context.Context) session.State {
	state := d.session.Bootstrap(ctx)
	d.Log(ctx).WithField("state", state.String()).Debug("desk started")
	return state
}

// Close releases the pool, the events topic and both storage backends.
func (d *Desk) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		var errs []error
		if d.publisher != nil {
			errs = append(errs, d.publisher.Stop(ctx))
		}
		if d.pool != nil {
			d.pool.Shutdown()
		}
		if d.stores != nil {
			errs = append(errs, d.stores.Close())
		} else {
			for _, b := range []storage.Backend{d.durableBackend, d.tabBackend} {
				if b != nil {
					errs = append(errs, b.Close())
				}
			}
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}

func (d *Desk) Log(ctx context.Context) *util.LogEntry {
	return d.logger.WithContext(ctx)
}

func (d *Desk) Config() *config.ConfigurationDefault {
	return d.cfg
}

func (d *Desk) Storage() storage.Manager {
	return d.stores
}

func (d *Desk) HTTP() client.Manager {
	return d.invoker
}

func (d *Desk) Pool() workerpool.Pool {
	return d.pool
}

func (d *Desk) Events() *events.Publisher {
	return d.publisher
}

func (d *Desk) API() *api.Client {
	return d.api
}

func (d *Desk) Session() *session.Manager {
	return d.session
}

func (d *Desk) Businesses() *tenancy.Resolver {
	return d.resolver
}

func (d *Desk) Translations() *localization.Cache {
	return d.translations
}

func (d *Desk) Preferences() *localization.Preferences {
	return d.preferences
}

func (d *Desk) Editor() *localization.Editor {
	return d.editor
}

func (d *Desk) Edition() *edition.Controller {
	return d.edition
}

func (d *Desk) Resources() *resource.Registry {
	return d.resources
}

// T renders source in the active language.
func (d *Desk) T(ctx context.Context, source string) string {
	return d.preferences.Translate(ctx, source)
}
