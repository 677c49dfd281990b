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

package authapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/campuskit/internal/escalation"
	"github.com/campuskit/campuskit/internal/session"
	"github.com/campuskit/campuskit/internal/token"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, token.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tokens := token.NewMemoryStore()
	return NewClient(srv.URL, tokens, 5*time.Second), tokens
}

func TestClient_Login_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/auth/login", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": {
				"user": {"id": "u-1", "email": "pat@example.edu", "displayName": "Pat"},
				"session": {"accessToken": "at-1", "refreshToken": "rt-1", "expiresIn": 900, "tokenType": "Bearer"},
				"userTypes": [{"key": "staff", "displayLabel": "Staff"}],
				"departmentMemberships": [
					{"departmentId": "d-1", "departmentName": "History", "isPrimary": true,
					 "roles": ["instructor"], "accessRights": ["courses:create"]}
				],
				"allAccessRights": ["courses:create"],
				"defaultDashboard": "staff"
			}
		}`))
	})

	result, err := client.Login(context.Background(), session.Credentials{Email: "pat@example.edu", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", result.User.ID)
	assert.Equal(t, "at-1", result.Session.AccessToken)
	assert.Equal(t, "rt-1", result.Session.RefreshToken)
	assert.Equal(t, 900, result.Session.ExpiresIn)
	assert.Equal(t, "staff", result.DefaultDashboard)
	require.Len(t, result.Roles.DepartmentMemberships, 1)
	assert.Equal(t, "d-1", result.Roles.DepartmentMemberships[0].DepartmentID)
}

func TestClient_Login_InvalidCredentials(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success": false, "error": {"code": "invalid_credentials", "message": "bad email or password"}}`))
	})

	_, err := client.Login(context.Background(), session.Credentials{Email: "x", Password: "y"})
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
}

func TestClient_Login_MissingSessionIsMalformed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": {"user": {"id": "u-1"}}}`))
	})

	_, err := client.Login(context.Background(), session.Credentials{Email: "x", Password: "y"})
	require.ErrorIs(t, err, session.ErrMalformedResponse)
}

func TestClient_Refresh_RotatesTokens(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/refresh", r.URL.Path)
		w.Write([]byte(`{"success": true, "data": {"accessToken": "at-2", "refreshToken": "rt-2", "expiresIn": 900}}`))
	})

	result, err := client.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", result.AccessToken)
	assert.Equal(t, "rt-2", result.RefreshToken)
	assert.Nil(t, result.Roles)
}

func TestClient_CurrentUser_SendsBearerToken(t *testing.T) {
	var gotAuth string
	client, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{
			"success": true,
			"data": {
				"userTypes": [{"key": "learner", "displayLabel": "Learner"}],
				"departmentMemberships": [],
				"allAccessRights": [],
				"defaultDashboard": "learner"
			}
		}`))
	})
	require.NoError(t, tokens.SetAccessToken(context.Background(), "at-stored"))

	result, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer at-stored", gotAuth)
	assert.Nil(t, result.User)
	assert.Equal(t, "learner", result.DefaultDashboard)
}

func TestClient_Escalate_MapsDenialCodes(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{"invalid_password", escalation.ErrWrongPassword},
		{"not_privileged", escalation.ErrNotPrivileged},
		{"admin_disabled", escalation.ErrAdminDisabled},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"success": false, "error": {"code": "` + tc.code + `", "message": "denied"}}`))
			})

			_, err := client.Escalate(context.Background(), "pw")
			require.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, escalation.ErrEscalationDenied)
		})
	}
}

func TestClient_Escalate_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/auth/admin/escalate", r.URL.Path)
		w.Write([]byte(`{"success": true, "data": {"adminSession": {"adminToken": "admin-1", "expiresIn": 900}}}`))
	})

	grant, err := client.Escalate(context.Background(), "pw")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", grant.AdminToken)
	assert.Equal(t, 900, grant.ExpiresIn)
}

func TestClient_GarbledBodyIsMalformed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	})

	_, err := client.CurrentUser(context.Background())
	require.ErrorIs(t, err, session.ErrMalformedResponse)
}
