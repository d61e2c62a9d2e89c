package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pitabwire/barberdesk/client"
)

const QueryBusinessID = "business_id"

// Authorizer runs fn with a valid bearer token. Implementations refresh and
// retry once when fn fails with ErrUnauthorized.
type Authorizer interface {
	Authorize(ctx context.Context, fn func(ctx context.Context, accessToken string) error) error
}

// BusinessScope reports the business requests are scoped to.
type BusinessScope interface {
	Selected() (int64, bool)
}

// BusinessScopeFunc adapts a function to BusinessScope.
type BusinessScopeFunc func() (int64, bool)

func (f BusinessScopeFunc) Selected() (int64, bool) {
	return f()
}

type Option func(*Client)

// WithBusinessScope adds the X-Business-ID header to every call while a business is selected.
func WithBusinessScope(scope BusinessScope) Option {
	return func(c *Client) {
		c.scope = scope
	}
}

// Client calls the authenticated endpoints.
type Client struct {
	requester
	auth  Authorizer
	scope BusinessScope
}

func NewClient(invoker client.Manager, baseURL string, auth Authorizer, opts ...Option) *Client {
	c := &Client{
		requester: newRequester(invoker, baseURL),
		auth:      auth,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) call(
	ctx context.Context,
	method string, path string, query url.Values, payload any,
) ([]byte, error) {
	if c.auth == nil {
		return nil, errors.New("api client has no authorizer")
	}

	var body []byte
	err := c.auth.Authorize(ctx, func(ctx context.Context, accessToken string) error {
		headers := bearer(accessToken)
		if c.scope != nil {
			if id, ok := c.scope.Selected(); ok {
				headers.Set(HeaderBusinessID, strconv.FormatInt(id, 10))
			}
		}

		var callErr error
		body, callErr = c.do(ctx, method, path, query, headers, payload)
		return callErr
	})
	return body, err
}

// ListBusinesses returns the businesses user may work in, in backend order.
// Super administrators get every business.
func (c *Client) ListBusinesses(ctx context.Context, user *User) ([]Business, error) {
	path := "/api/user-businesses"
	if user != nil && user.IsSuperAdmin {
		path = "/api/businesses"
	}

	body, err := c.call(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var businesses []Business
	if err = decodeList(body, &businesses); err != nil {
		return nil, err
	}
	return businesses, nil
}

// BulkTranslations returns every source string to translation mapping for lang.
func (c *Client) BulkTranslations(ctx context.Context, lang string) (map[string]string, error) {
	body, err := c.call(ctx, http.MethodGet, "/api/translations/bulk/"+url.PathEscape(lang), nil, nil)
	if err != nil {
		return nil, err
	}

	var raw map[string]*string
	if err = json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	translations := make(map[string]string, len(raw))
	for source, value := range raw {
		if value != nil {
			translations[source] = *value
		}
	}
	return translations, nil
}

// LookupSourceString resolves the backend id of the canonical source string text.
func (c *Client) LookupSourceString(ctx context.Context, text string, lang string) (*SourceString, error) {
	path := "/api/traductions/" + url.PathEscape(text) + "/" + url.PathEscape(lang)
	body, err := c.call(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var source SourceString
	if err = json.Unmarshal(body, &source); err != nil {
		return nil, err
	}
	if source.ID == 0 {
		return nil, ErrNotFound
	}
	return &source, nil
}

// SaveTranslation stores a translation of an existing source string.
func (c *Client) SaveTranslation(ctx context.Context, in TranslationInput) (*Translation, error) {
	body, err := c.call(ctx, http.MethodPost, "/api/traductions", nil, in)
	if err != nil {
		return nil, err
	}

	var saved Translation
	if len(body) > 0 {
		if err = json.Unmarshal(body, &saved); err != nil {
			return nil, err
		}
	}
	return &saved, nil
}

func resourcePath(resource string, id string) string {
	path := "/api/" + url.PathEscape(resource)
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	return path
}

func scopedQuery(businessID int64, query url.Values) url.Values {
	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	q.Set(QueryBusinessID, strconv.FormatInt(businessID, 10))
	return q
}

// List fetches a collection of resource for businessID into out, which must be a slice pointer.
func (c *Client) List(ctx context.Context, resource string, businessID int64, query url.Values, out any) error {
	body, err := c.call(ctx, http.MethodGet, resourcePath(resource, ""), scopedQuery(businessID, query), nil)
	if err != nil {
		return err
	}
	return decodeList(body, out)
}

// Get fetches one resource record into out.
func (c *Client) Get(ctx context.Context, resource string, businessID int64, id string, out any) error {
	body, err := c.call(ctx, http.MethodGet, resourcePath(resource, id), scopedQuery(businessID, nil), nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// Create posts in and decodes the stored record into out when out is not nil.
func (c *Client) Create(ctx context.Context, resource string, businessID int64, in any, out any) error {
	body, err := c.call(ctx, http.MethodPost, resourcePath(resource, ""), scopedQuery(businessID, nil), in)
	if err != nil {
		return err
	}
	return decodeOptional(body, out)
}

// Update replaces the record id with in and decodes the result into out when out is not nil.
func (c *Client) Update(ctx context.Context, resource string, businessID int64, id string, in any, out any) error {
	body, err := c.call(ctx, http.MethodPut, resourcePath(resource, id), scopedQuery(businessID, nil), in)
	if err != nil {
		return err
	}
	return decodeOptional(body, out)
}

// Delete removes the record id.
func (c *Client) Delete(ctx context.Context, resource string, businessID int64, id string) error {
	_, err := c.call(ctx, http.MethodDelete, resourcePath(resource, id), scopedQuery(businessID, nil), nil)
	return err
}

func decodeOptional(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}
