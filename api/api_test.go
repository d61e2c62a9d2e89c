package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/barberdesk/api"
	"github.com/pitabwire/barberdesk/apitest"
	"github.com/pitabwire/barberdesk/client"
	"github.com/pitabwire/barberdesk/localization"
)

type staticAuth struct {
	token string
}

func (a staticAuth) Authorize(ctx context.Context, fn func(context.Context, string) error) error {
	return fn(ctx, a.token)
}

type APISuite struct {
	suite.Suite

	backend *apitest.Server
	invoker client.Manager
	auth    *api.AuthClient
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.backend = apitest.New(s.T())
	s.backend.AddUser(api.User{ID: 1, Email: "a@x.com", RoleID: 2, BusinessIDs: []int64{1, 2}}, "secret")
	s.backend.AddUser(api.User{ID: 2, Email: "root@x.com", RoleID: 1, IsSuperAdmin: true}, "root")
	s.backend.AddBusinesses(
		api.Business{ID: 1, Name: "Downtown Cuts", Language: "pt"},
		api.Business{ID: 2, Name: "Uptown Fades"},
		api.Business{ID: 3, Name: "Other Shop"},
	)

	s.invoker = client.NewManager(
		client.WithHTTPTransport(http.DefaultTransport),
		client.WithHTTPRetryPolicy(&client.RetryPolicy{MaxAttempts: 1}),
	)
	s.auth = api.NewAuthClient(s.invoker, s.backend.URL)
}

func (s *APISuite) clientFor(email string, opts ...api.Option) *api.Client {
	tokens := s.backend.IssueTokens(email)
	return api.NewClient(s.invoker, s.backend.URL, staticAuth{token: tokens.AccessToken}, opts...)
}

func (s *APISuite) TestLoginMeAndRefresh() {
	ctx := context.Background()

	_, err := s.auth.Login(ctx, "a@x.com", "wrong")
	s.Require().ErrorIs(err, api.ErrUnauthorized)

	var statusErr *api.StatusError
	s.Require().True(errors.As(err, &statusErr))
	s.Equal(http.StatusUnauthorized, statusErr.StatusCode)

	resp, err := s.auth.Login(ctx, "a@x.com", "secret")
	s.Require().NoError(err)
	s.NotEmpty(resp.AccessToken)
	s.NotEmpty(resp.RefreshToken)
	s.Require().NotNil(resp.User)
	s.Equal([]int64{1, 2}, resp.User.BusinessIDs)
	tok := resp.Token()
	s.Equal("Bearer", tok.TokenType)
	s.True(tok.Expiry.After(time.Now()), "expiry read from the access token")
	s.Zero((&api.AuthResponse{AccessToken: "opaque"}).Token().Expiry)

	me, err := s.auth.Me(ctx, resp.AccessToken)
	s.Require().NoError(err)
	s.Equal("a@x.com", me.Email)

	refreshed, err := s.auth.Refresh(ctx, resp.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(resp.AccessToken, refreshed.AccessToken)

	// Refresh tokens rotate.
	_, err = s.auth.Refresh(ctx, resp.RefreshToken)
	s.ErrorIs(err, api.ErrUnauthorized)

	s.backend.ExpireAccessTokens()
	_, err = s.auth.Me(ctx, refreshed.AccessToken)
	s.ErrorIs(err, api.ErrUnauthorized)
}

func (s *APISuite) TestListBusinessesByRole() {
	ctx := context.Background()

	user := &api.User{Email: "a@x.com"}
	businesses, err := s.clientFor("a@x.com").ListBusinesses(ctx, user)
	s.Require().NoError(err)
	s.Equal([]int64{1, 2}, ids(businesses))
	s.Equal(1, s.backend.Count("GET /api/user-businesses"))

	admin := &api.User{Email: "root@x.com", IsSuperAdmin: true}
	businesses, err = s.clientFor("root@x.com").ListBusinesses(ctx, admin)
	s.Require().NoError(err)
	s.Equal([]int64{1, 2, 3}, ids(businesses))
	s.Equal(1, s.backend.Count("GET /api/businesses"))
}

func (s *APISuite) TestRequestHeaders() {
	ctx := localization.ToContext(context.Background(), "pt_BR")

	c := s.clientFor("a@x.com", api.WithBusinessScope(api.BusinessScopeFunc(func() (int64, bool) {
		return 2, true
	})))
	_, err := c.ListBusinesses(ctx, &api.User{Email: "a@x.com"})
	s.Require().NoError(err)

	headers := s.backend.LastHeaders("GET /api/user-businesses")
	s.Equal("2", headers.Get(api.HeaderBusinessID))
	s.Equal("pt-BR", headers.Get("Accept-Language"))
	s.NotEmpty(headers.Get(api.HeaderRequestID))
	s.Contains(headers.Get("Authorization"), "Bearer ")
}

func (s *APISuite) TestTranslations() {
	ctx := context.Background()
	s.backend.SetTranslations("pt", map[string]string{"Hello": "Olá"})
	s.backend.AddSourceString("Clients / Staff", 77)

	c := s.clientFor("a@x.com")

	bulk, err := c.BulkTranslations(ctx, "pt")
	s.Require().NoError(err)
	s.Equal(map[string]string{"Hello": "Olá"}, bulk)

	source, err := c.LookupSourceString(ctx, "Clients / Staff", "en")
	s.Require().NoError(err)
	s.Equal(int64(77), source.ID)

	_, err = c.LookupSourceString(ctx, "Unknown", "en")
	s.ErrorIs(err, api.ErrNotFound)

	saved, err := c.SaveTranslation(ctx, api.TranslationInput{
		String: "Clients / Staff", Traduction: "Clientes / Equipe", Language: "pt", TraductionID: 77,
	})
	s.Require().NoError(err)
	s.Equal(int64(77), saved.TraductionID)
	s.Len(s.backend.Saved(), 1)

	bulk, err = c.BulkTranslations(ctx, "pt")
	s.Require().NoError(err)
	s.Equal("Clientes / Equipe", bulk["Clients / Staff"])
}

func (s *APISuite) TestResourceCRUD() {
	ctx := context.Background()
	c := s.clientFor("a@x.com")

	type customer struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}

	var created customer
	s.Require().NoError(c.Create(ctx, "clients", 1, customer{Name: "Ana"}, &created))
	s.NotZero(created.ID)

	var list []customer
	s.Require().NoError(c.List(ctx, "clients", 1, url.Values{"search": {"Ana"}}, &list))
	s.Len(list, 1)

	var other []customer
	s.Require().NoError(c.List(ctx, "clients", 2, nil, &other))
	s.Empty(other)

	id := strconv.FormatInt(created.ID, 10)
	var updated customer
	s.Require().NoError(c.Update(ctx, "clients", 1, id, map[string]string{"phone": "555"}, &updated))
	s.Equal("555", updated.Phone)
	s.Equal("Ana", updated.Name)

	var fetched customer
	s.Require().NoError(c.Get(ctx, "clients", 1, id, &fetched))
	s.Equal("555", fetched.Phone)

	s.Require().NoError(c.Delete(ctx, "clients", 1, id))
	s.ErrorIs(c.Get(ctx, "clients", 1, id, &fetched), api.ErrNotFound)

	err := c.List(ctx, "clients", 3, nil, &list)
	var statusErr *api.StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusForbidden, statusErr.StatusCode)
}

func (s *APISuite) TestServerErrorsSurfaceAsStatusError() {
	s.backend.Fail("GET /api/user-businesses", http.StatusInternalServerError)

	_, err := s.clientFor("a@x.com").ListBusinesses(context.Background(), &api.User{Email: "a@x.com"})
	var statusErr *api.StatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusInternalServerError, statusErr.StatusCode)
	s.NotErrorIs(err, api.ErrUnauthorized)
	s.Contains(statusErr.Error(), "injected failure")
}

func (s *APISuite) TestClientWithoutAuthorizer() {
	c := api.NewClient(s.invoker, s.backend.URL, nil)
	_, err := c.BulkTranslations(context.Background(), "pt")
	s.Error(err)
}

func ids(businesses []api.Business) []int64 {
	out := make([]int64, 0, len(businesses))
	for _, b := range businesses {
		out = append(out, b.ID)
	}
	return out
}
