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

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/campuskit/campuskit/internal/audit"
	"github.com/campuskit/campuskit/internal/authz"
	"github.com/campuskit/campuskit/internal/observability/logger"
	"github.com/campuskit/campuskit/internal/token"
)

// Manager is the single owner of the session state. Every mutation
// replaces the whole state under the lock, so no caller ever observes a
// partially updated session. Login, Refresh and Initialize suspend on the
// remote authority; Refresh is additionally single-flighted so concurrent
// callers share one upstream call.
type Manager struct {
	mu    sync.RWMutex
	state State

	transport Transport
	tokens    token.Store
	builder   *authz.Builder
	audit     audit.Logger
	clock     func() time.Time

	refreshGroup singleflight.Group

	// logoutHooks run on every logout, explicit or forced. The
	// escalation controller registers itself here so elevation can never
	// outlive the base session.
	logoutHooks []func()
}

// NewManager creates a session manager in the anonymous state.
func NewManager(transport Transport, tokens token.Store, builder *authz.Builder, auditLogger audit.Logger) *Manager {
	return &Manager{
		transport: transport,
		tokens:    tokens,
		builder:   builder,
		audit:     auditLogger,
		clock:     time.Now,
	}
}

// OnLogout registers a hook invoked whenever the session is torn down.
func (m *Manager) OnLogout(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logoutHooks = append(m.logoutHooks, fn)
}

// Snapshot returns a copy of the current session state.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Hierarchy returns the current role hierarchy; nil while anonymous.
func (m *Manager) Hierarchy() *authz.Hierarchy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Hierarchy
}

// Authenticated reports whether a session is established.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.IsAuthenticated
}

// CurrentUser returns the authenticated user, or nil.
func (m *Manager) CurrentUser() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.User
}

// Login authenticates against the remote authority. On success the whole
// session state is replaced in one step. On failure the error is both
// recorded in the state and returned, so state-watching consumers and the
// direct caller each see it.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	m.state.IsLoading = true
	m.state.Err = ""
	m.mu.Unlock()

	result, err := m.transport.Login(ctx, creds)
	if err != nil {
		m.mu.Lock()
		m.state.IsLoading = false
		m.state.Err = err.Error()
		m.mu.Unlock()
		m.audit.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			Resource: creds.Email,
			Metadata: map[string]any{audit.AttrReason: err.Error()},
		})
		return err
	}

	hierarchy := m.builder.Build(result.Roles.UserTypes, result.Roles.DepartmentMemberships, result.Roles.AllAccessRights)
	tokenType := result.Session.TokenType
	if tokenType == "" {
		tokenType = TokenTypeBearer
	}
	access := &AccessToken{
		Value:     result.Session.AccessToken,
		TokenType: tokenType,
		ExpiresAt: m.clock().Add(time.Duration(result.Session.ExpiresIn) * time.Second),
	}

	// Storage is a best-effort collaborator: a failed write costs the
	// session on the next reload, not the session we just established.
	if err := m.tokens.SetAccessToken(ctx, access.Value); err != nil {
		slog.WarnContext(ctx, "failed to persist access token", logger.Error(err))
	}
	if err := m.tokens.SetRefreshToken(ctx, result.Session.RefreshToken); err != nil {
		slog.WarnContext(ctx, "failed to persist refresh token", logger.Error(err))
	}

	user := result.User
	m.mu.Lock()
	m.state = State{
		AccessToken:     access,
		User:            &user,
		Hierarchy:       hierarchy,
		IsAuthenticated: true,
	}
	m.mu.Unlock()

	m.audit.Log(ctx, audit.Event{Type: audit.TypeLoginSuccess, ActorID: user.ID, Resource: "login"})
	return nil
}

// Logout tears the session down. The remote call is best effort; the
// local teardown is unconditional, so logout cannot fail from the
// caller's perspective.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.transport.Logout(ctx); err != nil {
		slog.WarnContext(ctx, "remote logout failed, clearing local session anyway", logger.Error(err))
	}
	m.teardown(ctx, audit.TypeLogout)
}

// Refresh exchanges the stored refresh token for a fresh access token.
// Concurrent callers share a single upstream call. A failed refresh is
// always session-ending: the full logout runs before the error returns.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return nil, m.refresh(ctx)
	})
	return err
}

func (m *Manager) refresh(ctx context.Context) error {
	refreshToken, err := m.tokens.RefreshToken(ctx)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return ErrNoRefreshToken
		}
		return fmt.Errorf("read refresh token: %w", err)
	}
	if refreshToken == "" {
		return ErrNoRefreshToken
	}

	result, err := m.transport.Refresh(ctx, refreshToken)
	if err != nil {
		m.audit.Log(ctx, audit.Event{
			Type:     audit.TypeRefreshFailed,
			Metadata: map[string]any{audit.AttrReason: err.Error()},
		})
		m.teardown(ctx, audit.TypeLogout)
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	if err := m.tokens.SetAccessToken(ctx, result.AccessToken); err != nil {
		slog.WarnContext(ctx, "failed to persist refreshed access token", logger.Error(err))
	}
	if result.RefreshToken != "" {
		if err := m.tokens.SetRefreshToken(ctx, result.RefreshToken); err != nil {
			slog.WarnContext(ctx, "failed to persist rotated refresh token", logger.Error(err))
		}
	}

	m.mu.Lock()
	next := m.state
	access := AccessToken{Value: result.AccessToken, TokenType: TokenTypeBearer}
	if m.state.AccessToken != nil {
		access.TokenType = m.state.AccessToken.TokenType
		access.ExpiresAt = m.state.AccessToken.ExpiresAt
	}
	if result.ExpiresIn > 0 {
		access.ExpiresAt = m.clock().Add(time.Duration(result.ExpiresIn) * time.Second)
	}
	next.AccessToken = &access
	if result.Roles != nil {
		next.Hierarchy = m.builder.Build(result.Roles.UserTypes, result.Roles.DepartmentMemberships, result.Roles.AllAccessRights)
	}
	m.state = next
	m.mu.Unlock()

	m.audit.Log(ctx, audit.Event{Type: audit.TypeTokenRefreshed})
	return nil
}

// Initialize restores the session on cold start. Without a stored access
// token it is a no-op and the session stays anonymous. A failed restore
// gets exactly one refresh-then-retry cycle; a second failure clears all
// persisted tokens and resets to the anonymous state.
func (m *Manager) Initialize(ctx context.Context) {
	stored, err := m.tokens.AccessToken(ctx)
	if err != nil || stored == "" {
		return
	}

	if err := m.restore(ctx, stored); err == nil {
		return
	}

	if err := m.Refresh(ctx); err != nil {
		// Refresh already tore the session down.
		m.audit.Log(ctx, audit.Event{
			Type:     audit.TypeRestoreFailed,
			Metadata: map[string]any{audit.AttrReason: err.Error()},
		})
		return
	}

	fresh, err := m.tokens.AccessToken(ctx)
	if err == nil {
		if err = m.restore(ctx, fresh); err == nil {
			return
		}
	}

	m.audit.Log(ctx, audit.Event{
		Type:     audit.TypeRestoreFailed,
		Metadata: map[string]any{audit.AttrReason: err.Error()},
	})
	m.teardown(ctx, audit.TypeLogout)
}

func (m *Manager) restore(ctx context.Context, accessToken string) error {
	result, err := m.transport.CurrentUser(ctx)
	if err != nil {
		return err
	}

	hierarchy := m.builder.Build(result.Roles.UserTypes, result.Roles.DepartmentMemberships, result.Roles.AllAccessRights)

	m.mu.Lock()
	m.state = State{
		AccessToken:     &AccessToken{Value: accessToken, TokenType: TokenTypeBearer},
		User:            result.User,
		Hierarchy:       hierarchy,
		IsAuthenticated: true,
	}
	m.mu.Unlock()

	m.audit.Log(ctx, audit.Event{Type: audit.TypeSessionRestored})
	return nil
}

// teardown clears escalation, persisted tokens and the session state, in
// that order, leaving the manager anonymous.
func (m *Manager) teardown(ctx context.Context, auditType string) {
	m.mu.RLock()
	hooks := append([]func(){}, m.logoutHooks...)
	var actorID string
	if m.state.User != nil {
		actorID = m.state.User.ID
	}
	m.mu.RUnlock()

	for _, fn := range hooks {
		fn()
	}

	if err := m.tokens.Clear(ctx); err != nil {
		slog.WarnContext(ctx, "failed to clear persisted tokens", logger.Error(err))
	}

	m.mu.Lock()
	m.state = State{}
	m.mu.Unlock()

	m.audit.Log(ctx, audit.Event{Type: auditType, ActorID: actorID})
}
