package resource_test

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/barberdesk/api"
	"github.com/pitabwire/barberdesk/apitest"
	"github.com/pitabwire/barberdesk/client"
	"github.com/pitabwire/barberdesk/resource"
	"github.com/pitabwire/barberdesk/tenancy"
	"github.com/pitabwire/barberdesk/workerpool"
)

const routeList = "GET /api/{resource}"

type staticAuth string

func (a staticAuth) Authorize(ctx context.Context, fn func(context.Context, string) error) error {
	return fn(ctx, string(a))
}

type scope struct {
	mu sync.Mutex
	id int64
	ok bool
}

func (s *scope) Selected() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.ok
}

func (s *scope) set(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id, s.ok = id, id != 0
}

type ResourceSuite struct {
	suite.Suite

	backend *apitest.Server
	api     *api.Client
	scope   *scope
	reg     *resource.Registry
}

func TestResourceSuite(t *testing.T) {
	suite.Run(t, new(ResourceSuite))
}

func (s *ResourceSuite) SetupTest() {
	s.backend = apitest.New(s.T())
	s.backend.AddUser(api.User{ID: 1, Email: "a@x.com", BusinessIDs: []int64{1, 2}}, "pw")
	s.backend.Seed("clients", 1, map[string]any{"name": "Ana"}, map[string]any{"name": "Bruno"})
	s.backend.Seed("clients", 2, map[string]any{"name": "Carla"})

	invoker := client.NewManager(client.WithHTTPTransport(http.DefaultTransport))
	tokens := s.backend.IssueTokens("a@x.com")
	s.api = api.NewClient(invoker, s.backend.URL, staticAuth(tokens.AccessToken))
	s.scope = &scope{}
	s.scope.set(1)
	s.reg = resource.NewRegistry(s.api, s.scope, nil, nil)
}

func (s *ResourceSuite) TestListIsCached() {
	ctx := context.Background()
	clients := s.reg.Clients()

	first, err := clients.List(ctx, nil)
	s.Require().NoError(err)
	s.Len(first, 2)
	s.Equal("Ana", first[0].Name)
	s.Equal(int64(1), first[0].BusinessID)

	_, err = clients.List(ctx, nil)
	s.Require().NoError(err)
	s.Equal(int64(1), s.reg.Cache().Fetches())
	s.Equal(1, s.backend.Count(routeList))

	_, err = clients.List(ctx, url.Values{"q": {"an"}})
	s.Require().NoError(err)
	s.Equal(2, s.backend.Count(routeList))
}

func (s *ResourceSuite) TestSwitchingBusinessRefetches() {
	ctx := context.Background()
	cache := s.reg.Cache()
	clients := s.reg.Clients()

	_, err := clients.List(ctx, nil)
	s.Require().NoError(err)

	// What the resolver does on a switch: update the scope, then drop the cache.
	s.scope.set(2)
	cache.InvalidateAll(ctx)
	s.Equal(0, cache.Len())

	second, err := clients.List(ctx, nil)
	s.Require().NoError(err)
	s.Require().Len(second, 1)
	s.Equal("Carla", second[0].Name)
	s.Equal(int64(2), cache.Fetches())

	s.scope.set(1)
	cache.InvalidateAll(ctx)
	_, err = clients.List(ctx, nil)
	s.Require().NoError(err)
	s.Equal(int64(3), cache.Fetches())
	s.Equal(int64(2), cache.Invalidations())
}

func (s *ResourceSuite) TestWiredToResolver() {
	ctx := context.Background()
	cache := resource.NewCache()

	fetcher := fixedBusinesses{{ID: 1}, {ID: 2}}
	resolver := tenancy.New(fetcher, memStores(), tenancy.WithInvalidator(cache.InvalidateAll))
	reg := resource.NewRegistry(s.api, resolver, cache, nil)

	resolver.OnUserChanged(ctx, &api.User{Email: "a@x.com", BusinessIDs: []int64{1, 2}})
	list, err := reg.Clients().List(ctx, nil)
	s.Require().NoError(err)
	s.Len(list, 2)

	s.Require().NoError(resolver.Select(ctx, 2))
	list, err = reg.Clients().List(ctx, nil)
	s.Require().NoError(err)
	s.Len(list, 1)
	s.Equal(int64(2), cache.Fetches())
}

func (s *ResourceSuite) TestCrudInvalidatesKind() {
	ctx := context.Background()
	clients := s.reg.Clients()
	services := s.reg.Services()

	_, err := clients.List(ctx, nil)
	s.Require().NoError(err)
	_, err = services.List(ctx, nil)
	s.Require().NoError(err)

	created, err := clients.Create(ctx, resource.Client{Name: "Duda", Phone: "555"})
	s.Require().NoError(err)
	s.NotZero(created.ID)
	s.Equal("Duda", created.Name)

	list, err := clients.List(ctx, nil)
	s.Require().NoError(err)
	s.Len(list, 3)

	id := strconv.FormatInt(created.ID, 10)
	updated, err := clients.Update(ctx, id, resource.Client{Name: "Duda Silva"})
	s.Require().NoError(err)
	s.Equal("Duda Silva", updated.Name)

	got, err := clients.Get(ctx, id)
	s.Require().NoError(err)
	s.Equal("Duda Silva", got.Name)

	s.Require().NoError(clients.Delete(ctx, id))
	_, err = clients.Get(ctx, id)
	s.ErrorIs(err, api.ErrNotFound)

	// Services were never invalidated.
	_, err = services.List(ctx, nil)
	s.Require().NoError(err)
	s.Equal(1, s.backend.Count("GET /api/services"))
}

func (s *ResourceSuite) TestRequiresBusiness() {
	ctx := context.Background()
	s.scope.set(0)

	_, err := s.reg.Clients().List(ctx, nil)
	s.ErrorIs(err, tenancy.ErrNoBusinessSelected)
	_, err = s.reg.Staff().Create(ctx, resource.StaffMember{Name: "Rui"})
	s.ErrorIs(err, tenancy.ErrNoBusinessSelected)
	s.ErrorIs(s.reg.FAQs().Delete(ctx, "1"), tenancy.ErrNoBusinessSelected)
	s.ErrorIs(s.reg.Prefetch(ctx, resource.Clients), tenancy.ErrNoBusinessSelected)

	_, err = resource.NewRegistry(s.api, nil, nil, nil).Clients().Get(ctx, "1")
	s.ErrorIs(err, tenancy.ErrNoBusinessSelected)
	s.Zero(s.backend.Count(routeList))
}

func (s *ResourceSuite) TestForbiddenBusiness() {
	s.scope.set(3)
	_, err := s.reg.Clients().List(context.Background(), nil)

	var statusErr *api.StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusForbidden, statusErr.StatusCode)
	s.Equal(0, s.reg.Cache().Len())
}

func (s *ResourceSuite) TestPrefetch() {
	ctx := context.Background()
	pool, err := workerpool.New(ctx, nil, workerpool.WithCapacity(4))
	s.Require().NoError(err)
	defer pool.Shutdown()

	for _, p := range []workerpool.Pool{pool, nil} {
		reg := resource.NewRegistry(s.api, s.scope, nil, p)
		s.Require().NoError(reg.Prefetch(ctx, resource.Kinds()...))
		s.Equal(len(resource.Kinds()), reg.Cache().Len())

		list, lErr := reg.Raw(resource.Clients).List(ctx, nil)
		s.Require().NoError(lErr)
		s.Len(list, 2)
		s.Equal(int64(len(resource.Kinds())), reg.Cache().Fetches())
	}

	s.backend.Fail("GET /api/faqs", http.StatusBadGateway)
	reg := resource.NewRegistry(s.api, s.scope, nil, pool)
	s.Error(reg.Prefetch(ctx, resource.FAQs, resource.Staff))
	s.Equal(1, reg.Cache().Len())
}

func (s *ResourceSuite) TestStaleFetchDiscarded() {
	ctx := context.Background()
	gated := &gatedBackend{Backend: s.api, gate: make(chan struct{}), started: make(chan struct{})}
	cache := resource.NewCache()
	reg := resource.NewRegistry(gated, s.scope, cache, nil)

	done := make(chan []resource.Client, 1)
	go func() {
		list, _ := reg.Clients().List(ctx, nil)
		done <- list
	}()

	<-gated.started
	cache.InvalidateAll(ctx)
	close(gated.gate)

	select {
	case list := <-done:
		s.Len(list, 2, "the caller still gets its answer")
	case <-time.After(5 * time.Second):
		s.FailNow("list never returned")
	}
	s.Equal(0, cache.Len())

	_, err := reg.Clients().List(ctx, nil)
	s.Require().NoError(err)
	s.Equal(int64(2), cache.Fetches())
	s.Equal(1, cache.Len())
}

func (s *ResourceSuite) TestKinds() {
	s.Len(resource.Kinds(), 10)
	k, err := resource.ParseKind("payment-gateways")
	s.Require().NoError(err)
	s.Equal(resource.PaymentGateways, k)
	_, err = resource.ParseKind("tickets")
	s.Error(err)
	s.Equal(resource.WhatsAppInstances, s.reg.WhatsAppInstances().Kind())
}

type gatedBackend struct {
	resource.Backend
	once    sync.Once
	started chan struct{}
	gate    chan struct{}
}

func (g *gatedBackend) List(ctx context.Context, kind string, businessID int64, query url.Values, out any) error {
	g.once.Do(func() {
		close(g.started)
		<-g.gate
	})
	return g.Backend.List(ctx, kind, businessID, query, out)
}
