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

// Package session owns the authenticated/unauthenticated state of the
// client and orchestrates login, logout, token refresh and cold-start
// restoration against the remote auth authority.
package session

import (
	"context"
	"time"

	"github.com/campuskit/campuskit/internal/authz"
)

// TokenTypeBearer is the token type tag attached to issued access tokens.
const TokenTypeBearer = "Bearer"

// Credentials are the login inputs forwarded to the authority.
type Credentials struct {
	Email    string
	Password string
}

// User is the authenticated user's identity as returned by the authority.
type User struct {
	ID          string
	Email       string
	DisplayName string
}

// AccessToken is the held access token together with its computed expiry.
// The token value is opaque; it is issued and validated remotely.
type AccessToken struct {
	Value     string
	TokenType string
	ExpiresAt time.Time
}

// State is the whole session state. It is replaced atomically by the
// manager's operations; readers always observe a consistent snapshot.
// IsAuthenticated is never true while Hierarchy is nil.
type State struct {
	AccessToken     *AccessToken
	User            *User
	Hierarchy       *authz.Hierarchy
	IsAuthenticated bool
	IsLoading       bool
	Err             string
}

// TokenGrant is the token material in a successful login response.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds
	TokenType    string
}

// RolePayload is the role/membership part of an authority response, the
// raw input of the hierarchy builder.
type RolePayload struct {
	UserTypes             []authz.UserTypeRef
	DepartmentMemberships []authz.Membership
	AllAccessRights       []string
}

// LoginResult is a successful login response.
type LoginResult struct {
	User             User
	Session          TokenGrant
	Roles            RolePayload
	DefaultDashboard string
}

// RestoreResult is a successful current-user response used during
// cold-start restoration. The authority may omit the user identity.
type RestoreResult struct {
	User             *User
	Roles            RolePayload
	DefaultDashboard string
}

// RefreshResult is a successful token-refresh response. RefreshToken is
// set only when the authority rotated it; Roles is set only when the
// authority returned a fresh role payload; ExpiresIn of zero keeps the
// previous expiry.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	Roles        *RolePayload
}

// Transport is the remote auth authority as consumed by the manager.
type Transport interface {
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*RestoreResult, error)
}
