package resource_test

import (
	"context"

	"github.com/pitabwire/barberdesk/api"
	"github.com/pitabwire/barberdesk/storage"
)

type fixedBusinesses []api.Business

func (f fixedBusinesses) ListBusinesses(context.Context, *api.User) ([]api.Business, error) {
	return f, nil
}

func memStores() storage.Manager {
	return storage.NewManager(storage.NewInMemory(), storage.NewInMemory())
}
