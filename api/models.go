package api

import (
	"bytes"
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// User is the identity returned by the auth endpoints.
type User struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name,omitempty"`
	Email        string  `json:"email"`
	RoleID       int64   `json:"role_id"`
	IsSuperAdmin bool    `json:"is_super_admin"`
	BusinessIDs  []int64 `json:"business_ids,omitempty"`
}

// CanAccess reports whether the user may act on businessID.
func (u *User) CanAccess(businessID int64) bool {
	if u == nil {
		return false
	}
	if u.IsSuperAdmin {
		return true
	}
	for _, id := range u.BusinessIDs {
		if id == businessID {
			return true
		}
	}
	return false
}

// AuthResponse is the body of the login and refresh endpoints. Refresh omits the user.
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user,omitempty"`
}

// Token converts the pair into an oauth2 bearer token. The expiry is read from
// the access token when it is a JWT; signatures are left to the backend.
func (r *AuthResponse) Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    "Bearer",
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(r.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		tok.Expiry = claims.ExpiresAt.Time
	}
	return tok
}

// Business is a tenant the user can work in.
type Business struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Currency string `json:"currency,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// SourceString is the canonical record of an English UI string.
type SourceString struct {
	ID       int64  `json:"id"`
	String   string `json:"string"`
	Language string `json:"language,omitempty"`
}

// TranslationInput is the payload that stores a translation of a source string.
type TranslationInput struct {
	String       string `json:"string"`
	Traduction   string `json:"traduction"`
	Language     string `json:"language"`
	TraductionID int64  `json:"traduction_id"`
}

// Translation is a stored translation row.
type Translation struct {
	ID           int64  `json:"id"`
	String       string `json:"string"`
	Traduction   string `json:"traduction"`
	Language     string `json:"language"`
	TraductionID int64  `json:"traduction_id"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// decodeList accepts a bare JSON array or an object carrying the array under "data".
func decodeList(raw []byte, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return err
		}
		trimmed = env.Data
	}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("[]")
	}
	return json.Unmarshal(trimmed, out)
}
