// Package apitest runs an in-process fake of the barbershop REST backend.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"

	"github.com/pitabwire/barberdesk/api"
)

const (
	signingKey     = "apitest"
	accessTokenTTL = time.Hour
)

type account struct {
	user     api.User
	password string
}

type record = map[string]any

// Server is a fake backend. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	accounts     map[string]*account
	access       map[string]string
	refresh      map[string]string
	businesses   []api.Business
	translations map[string]map[string]string
	sources      map[string]int64
	saved        []api.TranslationInput
	records      map[string]map[int64][]record
	nextID       int64
	counts       map[string]int
	failures     map[string]int
	headers      map[string]http.Header
	lookupGate   chan struct{}
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		accounts:     map[string]*account{},
		access:       map[string]string{},
		refresh:      map[string]string{},
		translations: map[string]map[string]string{},
		sources:      map[string]int64{},
		records:      map[string]map[int64][]record{},
		counts:       map[string]int{},
		failures:     map[string]int{},
		headers:      map[string]http.Header{},
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	// Runs before Close so held lookups cannot keep the server from shutting down.
	t.Cleanup(s.releaseLookups)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	s.handle(r, http.MethodPost, "/api/auth/login", s.login)
	s.handle(r, http.MethodPost, "/api/auth/refresh", s.refreshTokens)
	s.handle(r, http.MethodGet, "/api/auth/me", s.authed(s.me))

	s.handle(r, http.MethodGet, "/api/businesses", s.authed(s.allBusinesses))
	s.handle(r, http.MethodGet, "/api/user-businesses", s.authed(s.userBusinesses))

	s.handle(r, http.MethodGet, "/api/translations/bulk/{lang}", s.authed(s.bulkTranslations))
	s.handle(r, http.MethodGet, "/api/traductions/{text}/{lang}", s.authed(s.lookupSource))
	s.handle(r, http.MethodPost, "/api/traductions", s.authed(s.saveTranslation))

	s.handle(r, http.MethodGet, "/api/{resource}", s.authed(s.listRecords))
	s.handle(r, http.MethodPost, "/api/{resource}", s.authed(s.createRecord))
	s.handle(r, http.MethodGet, "/api/{resource}/{id}", s.authed(s.getRecord))
	s.handle(r, http.MethodPut, "/api/{resource}/{id}", s.authed(s.updateRecord))
	s.handle(r, http.MethodDelete, "/api/{resource}/{id}", s.authed(s.deleteRecord))

	return r
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, user *api.User)

// handle counts calls under both the route pattern and the concrete path, and
// injects configured failures.
func (s *Server) handle(r chi.Router, method string, pattern string, h http.HandlerFunc) {
	route := method + " " + pattern
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		s.counts[route]++
		concrete := method + " " + req.URL.Path
		if concrete != route {
			s.counts[concrete]++
		}
		s.headers[route] = req.Header.Clone()
		status, fail := s.failures[route]
		if !fail {
			status, fail = s.failures[concrete]
		}
		s.mu.Unlock()

		if fail {
			writeError(w, status, "injected failure")
			return
		}
		h(w, req)
	}))
}

func (s *Server) authed(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		s.mu.Lock()
		email, known := s.access[token]
		var user api.User
		if acc := s.accounts[email]; known && acc != nil {
			user = acc.user
		} else {
			known = false
		}
		s.mu.Unlock()

		if !known {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		h(w, r, &user)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func param(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func (s *Server) issue(email string) api.AuthResponse {
	claims := jwt.RegisteredClaims{
		ID:        xid.New().String(),
		Subject:   email,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	access, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	refresh := "rt-" + xid.New().String()

	s.access[access] = email
	s.refresh[refresh] = email
	return api.AuthResponse{AccessToken: access, RefreshToken: refresh}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[strings.ToLower(in.Email)]
	if !ok || acc.password != in.Password {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	resp := s.issue(acc.user.Email)
	user := acc.user
	resp.User = &user
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) refreshTokens(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.refresh[in.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	delete(s.refresh, in.RefreshToken)
	writeJSON(w, http.StatusOK, s.issue(email))
}

func (s *Server) me(w http.ResponseWriter, _ *http.Request, user *api.User) {
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) allBusinesses(w http.ResponseWriter, _ *http.Request, user *api.User) {
	if !user.IsSuperAdmin {
		writeError(w, http.StatusForbidden, "super administrators only")
		return
	}

	s.mu.Lock()
	list := slices.Clone(s.businesses)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (s *Server) userBusinesses(w http.ResponseWriter, _ *http.Request, user *api.User) {
	s.mu.Lock()
	list := make([]api.Business, 0, len(user.BusinessIDs))
	for _, b := range s.businesses {
		if slices.Contains(user.BusinessIDs, b.ID) {
			list = append(list, b)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) bulkTranslations(w http.ResponseWriter, r *http.Request, _ *api.User) {
	lang := param(r, "lang")

	s.mu.Lock()
	out := make(map[string]string, len(s.translations[lang]))
	for k, v := range s.translations[lang] {
		out[k] = v
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) lookupSource(w http.ResponseWriter, r *http.Request, _ *api.User) {
	s.mu.Lock()
	gate := s.lookupGate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	text := param(r, "text")
	s.mu.Lock()
	id, ok := s.sources[text]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "source string not found")
		return
	}
	writeJSON(w, http.StatusOK, api.SourceString{ID: id, String: text, Language: param(r, "lang")})
}

func (s *Server) saveTranslation(w http.ResponseWriter, r *http.Request, _ *api.User) {
	var in api.TranslationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.TraductionID == 0 || in.Language == "" {
		writeError(w, http.StatusUnprocessableEntity, "traduction_id and language are required")
		return
	}

	s.saved = append(s.saved, in)
	if s.translations[in.Language] == nil {
		s.translations[in.Language] = map[string]string{}
	}
	s.translations[in.Language][in.String] = in.Traduction

	s.nextID++
	writeJSON(w, http.StatusCreated, api.Translation{
		ID:           s.nextID,
		String:       in.String,
		Traduction:   in.Traduction,
		Language:     in.Language,
		TraductionID: in.TraductionID,
	})
}

func (s *Server) scope(w http.ResponseWriter, r *http.Request, user *api.User) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get(api.QueryBusinessID), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "business_id is required")
		return 0, false
	}
	if !user.CanAccess(id) {
		writeError(w, http.StatusForbidden, "business not accessible")
		return 0, false
	}
	return id, true
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request, user *api.User) {
	businessID, ok := s.scope(w, r, user)
	if !ok {
		return
	}

	s.mu.Lock()
	list := slices.Clone(s.records[param(r, "resource")][businessID])
	s.mu.Unlock()

	if list == nil {
		list = []record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (s *Server) findRecord(resource string, businessID int64, id string) int {
	for i, rec := range s.records[resource][businessID] {
		if recordID(rec) == id {
			return i
		}
	}
	return -1
}

func recordID(rec record) string {
	switch v := rec["id"].(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case string:
		return v
	default:
		return ""
	}
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request, user *api.User) {
	businessID, ok := s.scope(w, r, user)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resource := param(r, "resource")
	idx := s.findRecord(resource, businessID, param(r, "id"))
	if idx < 0 {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, s.records[resource][businessID][idx])
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request, user *api.User) {
	businessID, ok := s.scope(w, r, user)
	if !ok {
		return
	}

	var rec record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusCreated, s.insert(param(r, "resource"), businessID, rec))
}

func (s *Server) insert(resource string, businessID int64, rec record) record {
	s.nextID++
	rec["id"] = s.nextID
	rec["business_id"] = businessID

	if s.records[resource] == nil {
		s.records[resource] = map[int64][]record{}
	}
	s.records[resource][businessID] = append(s.records[resource][businessID], rec)
	return rec
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request, user *api.User) {
	businessID, ok := s.scope(w, r, user)
	if !ok {
		return
	}

	var rec record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resource := param(r, "resource")
	idx := s.findRecord(resource, businessID, param(r, "id"))
	if idx < 0 {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	existing := s.records[resource][businessID][idx]
	for k, v := range rec {
		if k != "id" && k != "business_id" {
			existing[k] = v
		}
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request, user *api.User) {
	businessID, ok := s.scope(w, r, user)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resource := param(r, "resource")
	idx := s.findRecord(resource, businessID, param(r, "id"))
	if idx < 0 {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	s.records[resource][businessID] = slices.Delete(s.records[resource][businessID], idx, idx+1)
	w.WriteHeader(http.StatusNoContent)
}
