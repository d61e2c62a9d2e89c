package apitest

import (
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/pitabwire/barberdesk/api"
)

// AddUser registers an account that can log in with password.
func (s *Server) AddUser(user api.User, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	s.accounts[user.Email] = &account{user: user, password: password}
}

// AddBusinesses appends businesses in the order the backend lists them.
func (s *Server) AddBusinesses(businesses ...api.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses = append(s.businesses, businesses...)
}

// SetTranslations replaces the bulk map served for lang.
func (s *Server) SetTranslations(lang string, translations map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.translations[lang] = maps.Clone(translations)
}

// AddSourceString registers the canonical id of an English UI string.
func (s *Server) AddSourceString(text string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[text] = id
}

// Seed stores records of resource for businessID and returns them with ids assigned.
func (s *Server) Seed(resource string, businessID int64, records ...map[string]any) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, s.insert(resource, businessID, maps.Clone(rec)))
	}
	return out
}

// IssueTokens mints a token pair for email as if the user had logged in elsewhere.
func (s *Server) IssueTokens(email string) api.AuthResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issue(strings.ToLower(email))
}

// ExpireAccessTokens makes every issued access token answer 401.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.access)
}

// RevokeRefreshTokens makes every issued refresh token unusable.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.refresh)
}

// Fail makes route answer status until ClearFailures. Route is "METHOD pattern"
// such as "GET /api/user-businesses" or "GET /api/{resource}", or a concrete path.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = status
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.failures)
}

// HoldLookups blocks source-string lookups until the returned release is called.
func (s *Server) HoldLookups() (release func()) {
	gate := make(chan struct{})

	s.mu.Lock()
	s.lookupGate = gate
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.lookupGate == gate {
			s.lookupGate = nil
			close(gate)
		}
	}
}

func (s *Server) releaseLookups() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupGate != nil {
		close(s.lookupGate)
		s.lookupGate = nil
	}
}

// Count returns how many requests reached route.
func (s *Server) Count(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[route]
}

// LastHeaders returns the headers of the most recent request matching the route pattern.
func (s *Server) LastHeaders(route string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[route].Clone()
}

// Saved returns every translation payload the backend accepted.
func (s *Server) Saved() []api.TranslationInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.saved)
}
