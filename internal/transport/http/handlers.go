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

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/campuskit/campuskit/internal/audit"
	"github.com/campuskit/campuskit/internal/authz"
	"github.com/campuskit/campuskit/internal/escalation"
	"github.com/campuskit/campuskit/internal/observability/logger"
	"github.com/campuskit/campuskit/internal/observability/metrics"
	"github.com/campuskit/campuskit/internal/session"
)

// AuditHistory reads back persisted audit events. The postgres audit
// repository implements it; with no durable sink configured it is nil
// and the history endpoint reports the trail as unavailable.
type AuditHistory interface {
	Recent(ctx context.Context, actorID string, limit int) ([]audit.Event, error)
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	sessions   *session.Manager
	escalation *escalation.Controller
	metrics    *metrics.AuthMetrics
	history    AuditHistory
	validate   *validator.Validate
}

// NewHandler creates a new HTTP handler
func NewHandler(sessions *session.Manager, esc *escalation.Controller, authMetrics *metrics.AuthMetrics, history AuditHistory) *Handler {
	return &Handler{
		sessions:   sessions,
		escalation: esc,
		metrics:    authMetrics,
		history:    history,
		validate:   validator.New(),
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		// Routes that need an authenticated base session. Any request
		// here also counts as admin-mode activity.
		r.Group(func(r chi.Router) {
			r.Use(h.RequireSession)
			r.Use(h.ActivityMiddleware)

			r.Post("/auth/logout", h.Logout)
			r.Post("/auth/refresh", h.Refresh)
			r.Get("/auth/session", h.Session)

			r.Get("/authz/check", h.CheckPermission)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/escalate", h.Escalate)
				r.Post("/de-escalate", h.DeEscalate)
				r.Get("/status", h.EscalationStatus)
				r.With(h.RequireAdminMode).Get("/audit", h.AuditTrail)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "campuskit",
	})
}

// LoginRequest carries user credentials
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserResponse is the wire form of the authenticated user
type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// SessionResponse is the wire form of the session snapshot
type SessionResponse struct {
	Authenticated   bool          `json:"authenticated"`
	User            *UserResponse `json:"user,omitempty"`
	PrimaryUserType string        `json:"primaryUserType,omitempty"`
	UserTypes       []string      `json:"userTypes,omitempty"`
	ExpiresAt       *time.Time    `json:"expiresAt,omitempty"`
	LastError       string        `json:"lastError,omitempty"`
}

// Login authenticates against the auth authority and builds the local
// session and role hierarchy.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	err := h.sessions.Login(r.Context(), session.Credentials{Email: req.Email, Password: req.Password})
	h.metrics.RecordLogin(r.Context(), err == nil)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
			return
		}
		slog.ErrorContext(r.Context(), "login failed", logger.Error(err))
		respondError(w, http.StatusBadGateway, "authority_unavailable", "login could not be completed")
		return
	}

	respondJSON(w, http.StatusOK, h.sessionResponse())
}

// Logout clears the session. It always succeeds from the caller's
// point of view: local teardown happens even when the authority call
// fails.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Refresh exchanges the stored refresh token for fresh token material.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.sessions.Refresh(r.Context())
	h.metrics.RecordRefresh(r.Context(), err == nil)
	if err != nil {
		if errors.Is(err, session.ErrNoRefreshToken) {
			respondError(w, http.StatusUnauthorized, "no_refresh_token", "no refresh token available")
			return
		}
		respondError(w, http.StatusUnauthorized, "refresh_failed", "session expired, sign in again")
		return
	}
	respondJSON(w, http.StatusOK, h.sessionResponse())
}

// Session returns the current session snapshot.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sessionResponse())
}

// CheckPermission evaluates one permission against the role hierarchy.
// An optional departmentId query parameter scopes the check.
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	permission := r.URL.Query().Get("permission")
	if permission == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "permission query parameter is required")
		return
	}

	var scope *authz.Scope
	if departmentID := r.URL.Query().Get("departmentId"); departmentID != "" {
		scope = authz.DepartmentScope(departmentID)
	}

	allowed := h.sessions.Hierarchy().HasPermission(permission, scope)
	h.metrics.RecordPermissionCheck(r.Context(), allowed)

	respondJSON(w, http.StatusOK, map[string]any{
		"permission": permission,
		"allowed":    allowed,
	})
}

// EscalateRequest carries the password re-prompt for admin mode
type EscalateRequest struct {
	Password string `json:"password" validate:"required"`
}

// Escalate enters time-boxed admin mode after password re-verification.
func (h *Handler) Escalate(w http.ResponseWriter, r *http.Request) {
	var req EscalateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	err := h.escalation.Escalate(r.Context(), req.Password)
	h.metrics.RecordEscalation(r.Context(), err == nil)
	if err != nil {
		switch {
		case errors.Is(err, escalation.ErrPasswordRequired):
			respondError(w, http.StatusBadRequest, "password_required", "password is required")
		case errors.Is(err, escalation.ErrWrongPassword):
			respondError(w, http.StatusUnauthorized, "invalid_password", "password verification failed")
		case errors.Is(err, escalation.ErrNotPrivileged):
			respondError(w, http.StatusForbidden, "not_privileged", "admin privileges are required")
		case errors.Is(err, escalation.ErrAdminDisabled):
			respondError(w, http.StatusForbidden, "admin_disabled", "admin mode is disabled")
		default:
			slog.ErrorContext(r.Context(), "escalation failed", logger.Error(err))
			respondError(w, http.StatusBadGateway, "authority_unavailable", "escalation could not be completed")
		}
		return
	}

	h.escalationStatus(w)
}

// DeEscalate leaves admin mode immediately.
func (h *Handler) DeEscalate(w http.ResponseWriter, r *http.Request) {
	h.escalation.DeEscalate()
	h.escalationStatus(w)
}

// EscalationStatus reports the admin-mode countdown.
func (h *Handler) EscalationStatus(w http.ResponseWriter, r *http.Request) {
	h.escalationStatus(w)
}

// AuditEventResponse is the wire form of one audit event
type AuditEventResponse struct {
	Type      string         `json:"type"`
	ActorID   string         `json:"actorId,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// AuditTrail returns the caller's recent audit events, newest first.
// Guarded by an active admin-mode window on top of the base session.
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, "audit_unavailable", "no durable audit sink is configured")
		return
	}

	user := h.sessions.CurrentUser()
	if user == nil {
		respondError(w, http.StatusNotFound, "actor_unknown", "the session carries no user identity")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.history.Recent(r.Context(), user.ID, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read audit trail", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "audit_unavailable", "audit trail could not be read")
		return
	}

	resp := make([]AuditEventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, AuditEventResponse{
			Type:      event.Type,
			ActorID:   event.ActorID,
			Resource:  event.Resource,
			Metadata:  event.Metadata,
			Timestamp: event.Timestamp,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": resp})
}

func (h *Handler) escalationStatus(w http.ResponseWriter) {
	respondJSON(w, http.StatusOK, map[string]any{
		"active":           h.escalation.Active(),
		"warning":          h.escalation.InWarning(),
		"remainingSeconds": int(h.escalation.Remaining().Seconds()),
	})
}

func (h *Handler) sessionResponse() SessionResponse {
	state := h.sessions.Snapshot()
	resp := SessionResponse{
		Authenticated: state.IsAuthenticated,
		LastError:     state.Err,
	}
	if state.User != nil {
		resp.User = &UserResponse{
			ID:          state.User.ID,
			Email:       state.User.Email,
			DisplayName: state.User.DisplayName,
		}
	}
	if state.AccessToken != nil {
		expires := state.AccessToken.ExpiresAt
		resp.ExpiresAt = &expires
	}
	if state.Hierarchy != nil {
		resp.PrimaryUserType = string(state.Hierarchy.PrimaryUserType)
		for _, ut := range state.Hierarchy.AllUserTypes {
			resp.UserTypes = append(resp.UserTypes, string(ut))
		}
	}
	return resp
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}
