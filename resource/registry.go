package resource

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/pitabwire/util"

	"github.com/pitabwire/barberdesk/tenancy"
	"github.com/pitabwire/barberdesk/workerpool"
)

// Backend is the generic REST collaborator.
type Backend interface {
	List(ctx context.Context, resource string, businessID int64, query url.Values, out any) error
	Get(ctx context.Context, resource string, businessID int64, id string, out any) error
	Create(ctx context.Context, resource string, businessID int64, in any, out any) error
	Update(ctx context.Context, resource string, businessID int64, id string, in any, out any) error
	Delete(ctx context.Context, resource string, businessID int64, id string) error
}

// Scope reports the selected business.
type Scope interface {
	Selected() (int64, bool)
}

// Registry holds what every view shares.
type Registry struct {
	backend Backend
	scope   Scope
	cache   *Cache
	pool    workerpool.Pool
}

// NewRegistry builds the views' shared state. pool may be nil.
func NewRegistry(backend Backend, scope Scope, cache *Cache, pool workerpool.Pool) *Registry {
	if cache == nil {
		cache = NewCache()
	}
	return &Registry{backend: backend, scope: scope, cache: cache, pool: pool}
}

func (r *Registry) Cache() *Cache {
	return r.cache
}

func (r *Registry) business() (int64, error) {
	if r.scope == nil {
		return 0, tenancy.ErrNoBusinessSelected
	}
	id, ok := r.scope.Selected()
	if !ok {
		return 0, tenancy.ErrNoBusinessSelected
	}
	return id, nil
}

// Prefetch warms the unfiltered list of each kind for the selected business.
func (r *Registry) Prefetch(ctx context.Context, kinds ...Kind) error {
	businessID, err := r.business()
	if err != nil {
		return err
	}

	load := func(ctx context.Context, kind Kind) error {
		_, lErr := r.cache.fetch(ctx, listKey(kind, businessID, nil), func(ctx context.Context) (json.RawMessage, error) {
			var raw json.RawMessage
			fErr := r.backend.List(ctx, string(kind), businessID, nil, &raw)
			return raw, fErr
		})
		return lErr
	}

	if r.pool == nil {
		var errs []error
		for _, kind := range kinds {
			errs = append(errs, load(ctx, kind))
		}
		return errors.Join(errs...)
	}

	jobs := make([]workerpool.Job[Kind], 0, len(kinds))
	for _, kind := range kinds {
		job := workerpool.NewJob(func(ctx context.Context) (Kind, error) {
			return kind, load(ctx, kind)
		})
		if sErr := workerpool.SubmitJob(ctx, r.pool, job); sErr != nil {
			return sErr
		}
		jobs = append(jobs, job)
	}

	var errs []error
	for i, job := range jobs {
		res, ok := job.Wait(ctx)
		if !ok {
			return ctx.Err()
		}
		if res.IsError() {
			util.Log(ctx).WithError(res.Error()).WithField("kind", kinds[i]).Warn("prefetch failed")
			errs = append(errs, res.Error())
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) Appointments() *View[Appointment] {
	return NewView[Appointment](r, Appointments)
}

func (r *Registry) Clients() *View[Client] {
	return NewView[Client](r, Clients)
}

func (r *Registry) Staff() *View[StaffMember] {
	return NewView[StaffMember](r, Staff)
}

func (r *Registry) Services() *View[Service] {
	return NewView[Service](r, Services)
}

func (r *Registry) Accounting() *View[AccountingEntry] {
	return NewView[AccountingEntry](r, Accounting)
}

func (r *Registry) FAQs() *View[FAQ] {
	return NewView[FAQ](r, FAQs)
}

func (r *Registry) PaymentGateways() *View[PaymentGateway] {
	return NewView[PaymentGateway](r, PaymentGateways)
}

func (r *Registry) WhatsAppInstances() *View[WhatsAppInstance] {
	return NewView[WhatsAppInstance](r, WhatsAppInstances)
}

func (r *Registry) ShopProducts() *View[ShopProduct] {
	return NewView[ShopProduct](r, ShopProducts)
}

func (r *Registry) ShopCategories() *View[ShopCategory] {
	return NewView[ShopCategory](r, ShopCategories)
}

// Raw is a view over any kind with untyped records.
func (r *Registry) Raw(kind Kind) *View[map[string]any] {
	return NewView[map[string]any](r, kind)
}
