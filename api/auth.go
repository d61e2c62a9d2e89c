package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitabwire/barberdesk/client"
)

// AuthClient calls the authentication endpoints. It never refreshes tokens itself.
type AuthClient struct {
	requester
}

func NewAuthClient(invoker client.Manager, baseURL string) *AuthClient {
	return &AuthClient{requester: newRequester(invoker, baseURL)}
}

// Me returns the identity behind accessToken.
func (a *AuthClient) Me(ctx context.Context, accessToken string) (*User, error) {
	body, err := a.do(ctx, http.MethodGet, "/api/auth/me", nil, bearer(accessToken), nil)
	if err != nil {
		return nil, err
	}

	// Some deployments wrap the identity as {"user": {...}}.
	var resp struct {
		User
		Wrapped *User `json:"user"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Wrapped != nil {
		return resp.Wrapped, nil
	}
	if resp.User.Email == "" && resp.User.ID == 0 {
		return nil, errors.New("identity response carries no user")
	}
	return &resp.User, nil
}

// Login exchanges credentials for a token pair and identity.
func (a *AuthClient) Login(ctx context.Context, email string, password string) (*AuthResponse, error) {
	payload := map[string]string{"email": email, "password": password}
	body, err := a.do(ctx, http.MethodPost, "/api/auth/login", nil, nil, payload)
	if err != nil {
		return nil, err
	}

	var resp AuthResponse
	if err = json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, errors.New("login response carries no access token")
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new pair.
func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	payload := map[string]string{"refreshToken": refreshToken}
	body, err := a.do(ctx, http.MethodPost, "/api/auth/refresh", nil, nil, payload)
	if err != nil {
		return nil, err
	}

	var resp AuthResponse
	if err = json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, errors.New("refresh response carries no access token")
	}
	return &resp, nil
}
