package storage

import (
	"errors"
	"fmt"
	"slices"
)

// Names of the two stores.
const (
	DurableName = "durable"
	TabName     = "tab"
)

type manager struct {
	durable        Store
	tab            Store
	durableBackend Backend
	tabBackend     Backend
}

// NewManager pairs a durable and a tab backend. Either may be nil, in which
// case the matching store degrades to unavailable storage.
func NewManager(durable Backend, tab Backend, opts ...Option) Manager {
	return &manager{
		durable:        NewSafe(durable, append(slices.Clone(opts), WithName(DurableName))...),
		tab:            NewSafe(tab, append(slices.Clone(opts), WithName(TabName))...),
		durableBackend: durable,
		tabBackend:     tab,
	}
}

func (m *manager) Durable() Store {
	return m.durable
}

func (m *manager) Tab() Store {
	return m.tab
}

// Close closes both backends.
func (m *manager) Close() error {
	var errs []error

	for name, b := range map[string]Backend{DurableName: m.durableBackend, TabName: m.tabBackend} {
		if b == nil {
			continue
		}
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s storage: %w", name, err))
		}
	}

	return errors.Join(errs...)
}
