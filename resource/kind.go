// Package resource serves the business scoped CRUD collections of the dashboard
// through a query cache that is dropped whenever the identity or business changes.
package resource

import (
	"fmt"
	"slices"
)

// Kind names a REST collection under /api.
type Kind string

const (
	Appointments      Kind = "appointments"
	Clients           Kind = "clients"
	Staff             Kind = "staff"
	Services          Kind = "services"
	Accounting        Kind = "accounting"
	FAQs              Kind = "faqs"
	PaymentGateways   Kind = "payment-gateways"
	WhatsAppInstances Kind = "whatsapp-instances"
	ShopProducts      Kind = "shop-products"
	ShopCategories    Kind = "shop-categories"
)

var kinds = []Kind{
	Appointments,
	Clients,
	Staff,
	Services,
	Accounting,
	FAQs,
	PaymentGateways,
	WhatsAppInstances,
	ShopProducts,
	ShopCategories,
}

// Kinds lists every known collection.
func Kinds() []Kind {
	return slices.Clone(kinds)
}

func (k Kind) String() string {
	return string(k)
}

func (k Kind) Valid() bool {
	return slices.Contains(kinds, k)
}

// ParseKind accepts the collection name as used in URLs.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown resource kind %q", s)
	}
	return k, nil
}
