package resource

import (
	"context"
	"encoding/json"
	"net/url"
)

// View is the typed CRUD surface of one kind, scoped to the selected business.
type View[T any] struct {
	reg  *Registry
	kind Kind
}

func NewView[T any](reg *Registry, kind Kind) *View[T] {
	return &View[T]{reg: reg, kind: kind}
}

func (v *View[T]) Kind() Kind {
	return v.kind
}

// List returns the records matching query, served from the cache when possible.
func (v *View[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	businessID, err := v.reg.business()
	if err != nil {
		return nil, err
	}

	raw, err := v.reg.cache.fetch(ctx, listKey(v.kind, businessID, query), func(ctx context.Context) (json.RawMessage, error) {
		var raw json.RawMessage
		fErr := v.reg.backend.List(ctx, string(v.kind), businessID, query, &raw)
		return raw, fErr
	})
	if err != nil {
		return nil, err
	}

	items := []T{}
	if err = json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Get returns one record, served from the cache when possible.
func (v *View[T]) Get(ctx context.Context, id string) (*T, error) {
	businessID, err := v.reg.business()
	if err != nil {
		return nil, err
	}

	raw, err := v.reg.cache.fetch(ctx, itemKey(v.kind, businessID, id), func(ctx context.Context) (json.RawMessage, error) {
		var raw json.RawMessage
		fErr := v.reg.backend.Get(ctx, string(v.kind), businessID, id, &raw)
		return raw, fErr
	})
	if err != nil {
		return nil, err
	}

	var item T
	if err = json.Unmarshal(raw, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Create stores in and drops the cached responses of the kind.
func (v *View[T]) Create(ctx context.Context, in T) (*T, error) {
	businessID, err := v.reg.business()
	if err != nil {
		return nil, err
	}

	var out T
	if err = v.reg.backend.Create(ctx, string(v.kind), businessID, in, &out); err != nil {
		return nil, err
	}
	v.reg.cache.InvalidateKind(v.kind)
	return &out, nil
}

// Update replaces record id with in and drops the cached responses of the kind.
func (v *View[T]) Update(ctx context.Context, id string, in T) (*T, error) {
	businessID, err := v.reg.business()
	if err != nil {
		return nil, err
	}

	var out T
	if err = v.reg.backend.Update(ctx, string(v.kind), businessID, id, in, &out); err != nil {
		return nil, err
	}
	v.reg.cache.InvalidateKind(v.kind)
	return &out, nil
}

// Delete removes record id and drops the cached responses of the kind.
func (v *View[T]) Delete(ctx context.Context, id string) error {
	businessID, err := v.reg.business()
	if err != nil {
		return err
	}

	if err = v.reg.backend.Delete(ctx, string(v.kind), businessID, id); err != nil {
		return err
	}
	v.reg.cache.InvalidateKind(v.kind)
	return nil
}
