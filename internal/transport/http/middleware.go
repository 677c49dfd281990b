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
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/campuskit/campuskit/internal/observability/logger"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// RequireSession rejects requests while no authenticated session exists.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.sessions.Authenticated() {
			respondError(w, http.StatusUnauthorized, "not_authenticated", "sign in first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActivityMiddleware counts any authenticated request as admin-mode
// activity, resetting the escalation inactivity countdown.
func (h *Handler) ActivityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.escalation.Touch()
		next.ServeHTTP(w, r)
	})
}

// RequirePermission guards a route with a permission check against the
// current role hierarchy. The check is unscoped; department-scoped
// routes resolve the scope themselves.
func (h *Handler) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hierarchy := h.sessions.Hierarchy()
			if !hierarchy.HasPermission(permission, nil) {
				slog.WarnContext(r.Context(), "permission denied",
					logger.Permission(permission),
					logger.Path(r.URL.Path),
				)
				respondError(w, http.StatusForbidden, "permission_denied", "missing required permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminMode guards a route behind an active escalation window.
func (h *Handler) RequireAdminMode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.escalation.Active() {
			respondError(w, http.StatusForbidden, "admin_mode_required", "escalate to admin mode first")
			return
		}
		next.ServeHTTP(w, r)
	})
}
