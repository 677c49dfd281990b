// Copyright 2026 The CampusKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package authapi is the HTTP client for the remote auth authority. It
// implements the session transport and the escalation verifier over the
// authority's JSON success/error envelope. Tokens are opaque strings
// here; the authority issues and validates them.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/campuskit/campuskit/internal/authz"
	"github.com/campuskit/campuskit/internal/escalation"
	"github.com/campuskit/campuskit/internal/session"
	"github.com/campuskit/campuskit/internal/token"
)

// Client talks to the auth authority.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  token.Store
}

// NewClient creates an instrumented authority client. The token store
// supplies the bearer token for authenticated calls.
func NewClient(baseURL string, tokens token.Store, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// envelope is the authority's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *wireError      `json:"error"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sentinel maps a wire error code to the matching domain error, so
// callers can branch with errors.Is instead of string comparison.
func (e *wireError) sentinel() error {
	switch e.Code {
	case "invalid_credentials":
		return fmt.Errorf("%w: %s", session.ErrInvalidCredentials, e.Message)
	case "invalid_password":
		return fmt.Errorf("%w (%s)", escalation.ErrWrongPassword, e.Message)
	case "not_privileged":
		return fmt.Errorf("%w (%s)", escalation.ErrNotPrivileged, e.Message)
	case "admin_disabled":
		return fmt.Errorf("%w (%s)", escalation.ErrAdminDisabled, e.Message)
	default:
		return fmt.Errorf("authority error %s: %s", e.Code, e.Message)
	}
}

type userData struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type tokenGrantData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
	TokenType    string `json:"tokenType"`
}

type rolePayloadData struct {
	UserTypes              []authz.UserTypeRef `json:"userTypes"`
	DepartmentMemberships  []authz.Membership  `json:"departmentMemberships"`
	AllAccessRights        []string            `json:"allAccessRights"`
	DefaultDashboard       string              `json:"defaultDashboard"`
	LastSelectedDepartment string              `json:"lastSelectedDepartment"`
}

func (d rolePayloadData) toDomain() session.RolePayload {
	return session.RolePayload{
		UserTypes:             d.UserTypes,
		DepartmentMemberships: d.DepartmentMemberships,
		AllAccessRights:       d.AllAccessRights,
	}
}

type loginData struct {
	User    *userData      `json:"user"`
	Session tokenGrantData `json:"session"`
	rolePayloadData
}

type refreshData struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	ExpiresIn    int              `json:"expiresIn"`
	Roles        *rolePayloadData `json:"roleHierarchy"`
}

type escalateData struct {
	AdminSession struct {
		AdminToken string `json:"adminToken"`
		ExpiresIn  int    `json:"expiresIn"`
	} `json:"adminSession"`
}

// Login authenticates with the authority.
func (c *Client) Login(ctx context.Context, creds session.Credentials) (*session.LoginResult, error) {
	body := map[string]string{"email": creds.Email, "password": creds.Password}
	var data loginData
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", body, false, &data); err != nil {
		return nil, err
	}
	if data.User == nil || data.Session.AccessToken == "" || data.Session.RefreshToken == "" {
		return nil, fmt.Errorf("%w: login envelope missing user or session", session.ErrMalformedResponse)
	}
	return &session.LoginResult{
		User: session.User{ID: data.User.ID, Email: data.User.Email, DisplayName: data.User.DisplayName},
		Session: session.TokenGrant{
			AccessToken:  data.Session.AccessToken,
			RefreshToken: data.Session.RefreshToken,
			ExpiresIn:    data.Session.ExpiresIn,
			TokenType:    data.Session.TokenType,
		},
		Roles:            data.rolePayloadData.toDomain(),
		DefaultDashboard: data.DefaultDashboard,
	}, nil
}

// Refresh exchanges a refresh token for fresh token material.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*session.RefreshResult, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var data refreshData
	if err := c.do(ctx, http.MethodPost, "/v1/auth/refresh", body, false, &data); err != nil {
		return nil, err
	}
	if data.AccessToken == "" {
		return nil, fmt.Errorf("%w: refresh envelope missing access token", session.ErrMalformedResponse)
	}
	result := &session.RefreshResult{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresIn:    data.ExpiresIn,
	}
	if data.Roles != nil {
		roles := data.Roles.toDomain()
		result.Roles = &roles
	}
	return result, nil
}

// Logout notifies the authority. Callers treat failures as best effort.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/auth/logout", nil, true, nil)
}

// CurrentUser fetches the role payload for the held access token.
func (c *Client) CurrentUser(ctx context.Context) (*session.RestoreResult, error) {
	var data loginData
	if err := c.do(ctx, http.MethodGet, "/v1/auth/me", nil, true, &data); err != nil {
		return nil, err
	}
	if len(data.UserTypes) == 0 {
		return nil, fmt.Errorf("%w: current-user envelope missing user types", session.ErrMalformedResponse)
	}
	result := &session.RestoreResult{
		Roles:            data.rolePayloadData.toDomain(),
		DefaultDashboard: data.DefaultDashboard,
	}
	if data.User != nil {
		result.User = &session.User{ID: data.User.ID, Email: data.User.Email, DisplayName: data.User.DisplayName}
	}
	return result, nil
}

// Escalate verifies the password for admin-mode entry.
func (c *Client) Escalate(ctx context.Context, password string) (*escalation.Grant, error) {
	body := map[string]string{"password": password}
	var data escalateData
	if err := c.do(ctx, http.MethodPost, "/v1/auth/admin/escalate", body, true, &data); err != nil {
		return nil, err
	}
	if data.AdminSession.AdminToken == "" {
		return nil, fmt.Errorf("%w: escalate envelope missing admin token", session.ErrMalformedResponse)
	}
	return &escalation.Grant{
		AdminToken: data.AdminSession.AdminToken,
		ExpiresIn:  data.AdminSession.ExpiresIn,
	}, nil
}

// do runs one request/response cycle against the authority.
func (c *Client) do(ctx context.Context, method, path string, body any, authenticated bool, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if authenticated {
		access, err := c.tokens.AccessToken(ctx)
		if err == nil && access != "" {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call authority: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: %v", session.ErrMalformedResponse, err)
	}

	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		if env.Error != nil {
			return env.Error.sentinel()
		}
		return fmt.Errorf("authority returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: success envelope without data", session.ErrMalformedResponse)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", session.ErrMalformedResponse, err)
	}
	return nil
}
