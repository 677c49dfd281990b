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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics are the counters the session and escalation surfaces
// increment.
type AuthMetrics struct {
	Logins        metric.Int64Counter
	Refreshes     metric.Int64Counter
	Escalations   metric.Int64Counter
	PermissionChk metric.Int64Counter
}

// New builds the auth counter set from the global meter provider.
func New(serviceName string) (*AuthMetrics, error) {
	meter := otel.Meter(serviceName)

	logins, err := meter.Int64Counter("auth_logins_total",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create login counter: %w", err)
	}
	refreshes, err := meter.Int64Counter("auth_token_refreshes_total",
		metric.WithDescription("Token refresh attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create refresh counter: %w", err)
	}
	escalations, err := meter.Int64Counter("auth_escalations_total",
		metric.WithDescription("Admin-mode escalation attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create escalation counter: %w", err)
	}
	checks, err := meter.Int64Counter("authz_permission_checks_total",
		metric.WithDescription("Permission evaluations by result"))
	if err != nil {
		return nil, fmt.Errorf("create permission check counter: %w", err)
	}

	return &AuthMetrics{
		Logins:        logins,
		Refreshes:     refreshes,
		Escalations:   escalations,
		PermissionChk: checks,
	}, nil
}

// Outcome tags a counter increment as success or failure.
func Outcome(ok bool) metric.MeasurementOption {
	result := "failure"
	if ok {
		result = "success"
	}
	return metric.WithAttributes(attribute.String("outcome", result))
}

// RecordLogin increments the login counter.
func (m *AuthMetrics) RecordLogin(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.Logins.Add(ctx, 1, Outcome(ok))
}

// RecordRefresh increments the refresh counter.
func (m *AuthMetrics) RecordRefresh(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.Refreshes.Add(ctx, 1, Outcome(ok))
}

// RecordEscalation increments the escalation counter.
func (m *AuthMetrics) RecordEscalation(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.Escalations.Add(ctx, 1, Outcome(ok))
}

// RecordPermissionCheck increments the permission evaluation counter.
func (m *AuthMetrics) RecordPermissionCheck(ctx context.Context, granted bool) {
	if m == nil {
		return
	}
	m.PermissionChk.Add(ctx, 1, metric.WithAttributes(attribute.Bool("granted", granted)))
}
