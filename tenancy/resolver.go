// Package tenancy decides which business scopes the requests of the signed in user.
package tenancy

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"

	"github.com/pitabwire/util"

	"github.com/pitabwire/barberdesk/api"
	"github.com/pitabwire/barberdesk/events"
	"github.com/pitabwire/barberdesk/storage"
)

var (
	// ErrNoUser is returned while nobody is signed in.
	ErrNoUser = errors.New("no signed in user")
	// ErrBusinessNotAccessible is returned when selecting a business outside the user's list.
	ErrBusinessNotAccessible = errors.New("business not accessible")
	// ErrNoBusinessSelected is returned by callers that need a business scope and have none.
	ErrNoBusinessSelected = errors.New("no business selected")
)

// Fetcher lists the businesses a user may work in, in backend order.
type Fetcher interface {
	ListBusinesses(ctx context.Context, user *api.User) ([]api.Business, error)
}

type Option func(*Resolver)

// WithInvalidator registers fn to run after every selection change.
func WithInvalidator(fn func(ctx context.Context)) Option {
	return func(r *Resolver) {
		r.invalidators = append(r.invalidators, fn)
	}
}

// WithPublisher publishes business.selected and business.cleared events.
func WithPublisher(p *events.Publisher) Option {
	return func(r *Resolver) {
		r.publisher = p
	}
}

// Resolver holds the business selection of the current user.
type Resolver struct {
	fetcher      Fetcher
	durable      storage.Store
	tab          storage.Store
	publisher    *events.Publisher
	invalidators []func(ctx context.Context)

	mu         sync.RWMutex
	user       *api.User
	businesses []api.Business
	selected   int64
	hasSelect  bool
}

func New(fetcher Fetcher, stores storage.Manager, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		durable: stores.Durable(),
		tab:     stores.Tab(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnUserChanged follows the session. A nil user purges every persisted selection;
// otherwise the user's own persisted selection is restored and the list fetched.
func (r *Resolver) OnUserChanged(ctx context.Context, user *api.User) {
	if user == nil {
		r.signedOut(ctx)
		return
	}

	u := *user
	restored, ok := r.restore(ctx, u.Email)

	// The tab key mirrors whoever selected last, realign it with this user.
	if ok {
		r.tab.Set(ctx, storage.KeySelectedBusiness, strconv.FormatInt(restored, 10))
	} else {
		r.tab.Remove(ctx, storage.KeySelectedBusiness)
	}

	r.mu.Lock()
	r.user = &u
	r.businesses = nil
	r.selected, r.hasSelect = restored, ok
	r.mu.Unlock()

	if _, err := r.Refresh(ctx); err != nil {
		util.Log(ctx).WithError(err).WithField("email", u.Email).Warn("could not load businesses")
	}
}

func (r *Resolver) restore(ctx context.Context, email string) (int64, bool) {
	raw, found := r.durable.Get(ctx, storage.SelectedBusinessKey(email))
	if !found {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (r *Resolver) signedOut(ctx context.Context) {
	r.mu.Lock()
	had := r.hasSelect
	r.user = nil
	r.businesses = nil
	r.selected, r.hasSelect = 0, false
	r.mu.Unlock()

	swept := r.durable.RemoveWithPrefix(ctx, storage.KeySelectedBusinessPrefix)
	r.tab.Remove(ctx, storage.KeySelectedBusiness)

	util.Log(ctx).WithField("swept", swept).Debug("business selections purged")

	if had {
		r.invalidate(ctx)
		r.publisher.Emit(ctx, events.New(events.KindBusinessCleared))
	}
}

// Refresh fetches the business list and settles the selection. On failure the
// list reads as empty and the current selection is kept.
func (r *Resolver) Refresh(ctx context.Context) ([]api.Business, error) {
	r.mu.RLock()
	user := r.user
	r.mu.RUnlock()

	if user == nil {
		return nil, ErrNoUser
	}

	list, err := r.fetcher.ListBusinesses(ctx, user)

	r.mu.Lock()
	if r.user != user {
		// The user changed while fetching.
		r.mu.Unlock()
		return nil, ErrNoUser
	}
	if err != nil {
		r.businesses = nil
		r.mu.Unlock()
		return nil, err
	}

	r.businesses = slices.Clone(list)

	switch {
	case r.hasSelect && containsBusiness(list, r.selected):
		r.mu.Unlock()
		return slices.Clone(list), nil
	case len(list) > 0:
		r.mu.Unlock()
		r.apply(ctx, user, list[0].ID, true)
	case r.hasSelect:
		r.mu.Unlock()
		r.apply(ctx, user, 0, false)
	default:
		r.mu.Unlock()
	}

	return slices.Clone(list), nil
}

// Select makes id the active business. With a loaded list the id must be in
// it; before the list loads the user's access list decides.
func (r *Resolver) Select(ctx context.Context, id int64) error {
	r.mu.RLock()
	user, list := r.user, r.businesses
	r.mu.RUnlock()

	if user == nil {
		return ErrNoUser
	}

	allowed := containsBusiness(list, id)
	if list == nil {
		allowed = user.CanAccess(id)
	}
	if !allowed {
		return ErrBusinessNotAccessible
	}

	r.apply(ctx, user, id, true)
	return nil
}

// Clear drops the selection and its persisted entries.
func (r *Resolver) Clear(ctx context.Context) error {
	r.mu.RLock()
	user := r.user
	r.mu.RUnlock()

	if user == nil {
		return ErrNoUser
	}

	r.apply(ctx, user, 0, false)
	return nil
}

// apply updates memory, then storage, then runs the invalidators. Nothing
// waits on a timer between the steps.
func (r *Resolver) apply(ctx context.Context, user *api.User, id int64, selected bool) {
	r.mu.Lock()
	if r.user != user {
		r.mu.Unlock()
		return
	}
	r.selected, r.hasSelect = id, selected
	r.mu.Unlock()

	key := storage.SelectedBusinessKey(user.Email)
	log := util.Log(ctx).WithField("email", user.Email)

	var e events.Event
	if selected {
		value := strconv.FormatInt(id, 10)
		r.durable.Set(ctx, key, value)
		r.tab.Set(ctx, storage.KeySelectedBusiness, value)

		log.WithField("business_id", id).Info("business selected")
		e = events.New(events.KindBusinessSelected)
		e.BusinessID = id
	} else {
		r.durable.Remove(ctx, key)
		r.tab.Remove(ctx, storage.KeySelectedBusiness)

		log.Info("business selection cleared")
		e = events.New(events.KindBusinessCleared)
	}

	r.invalidate(ctx)

	e.Email = user.Email
	r.publisher.Emit(ctx, e)
}

func (r *Resolver) invalidate(ctx context.Context) {
	for _, fn := range r.invalidators {
		fn(ctx)
	}
}

// Selected returns the active business id.
func (r *Resolver) Selected() (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected, r.hasSelect
}

// Businesses returns the last fetched list. It is empty after a failed fetch.
func (r *Resolver) Businesses() []api.Business {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.businesses)
}

// SelectedBusiness returns the record of the active business when the list holds it.
func (r *Resolver) SelectedBusiness() (api.Business, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.hasSelect {
		return api.Business{}, false
	}
	idx := slices.IndexFunc(r.businesses, func(b api.Business) bool { return b.ID == r.selected })
	if idx < 0 {
		return api.Business{}, false
	}
	return r.businesses[idx], true
}

// BusinessLanguage is the language of the active business, or "".
func (r *Resolver) BusinessLanguage() string {
	b, ok := r.SelectedBusiness()
	if !ok {
		return ""
	}
	return b.Language
}

func containsBusiness(list []api.Business, id int64) bool {
	return slices.ContainsFunc(list, func(b api.Business) bool { return b.ID == id })
}
