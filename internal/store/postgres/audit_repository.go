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

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/campuskit/campuskit/internal/audit"
)

// AuditRepository persists audit events. It implements audit.Logger so
// it can sit in an audit.Fanout next to the slog sink; persistence
// failures are logged, never propagated, because audit writes must not
// break the auth path.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Log writes one audit event row.
func (r *AuditRepository) Log(ctx context.Context, event audit.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	metadata := []byte("{}")
	if len(event.Metadata) > 0 {
		encoded, err := json.Marshal(event.Metadata)
		if err != nil {
			slog.Warn("audit metadata not serializable", "event_type", event.Type, "error", err)
		} else {
			metadata = encoded
		}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO audit_events (id, event_type, actor_id, resource, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.New(), event.Type, event.ActorID, event.Resource,
		metadata, event.IPAddress, event.UserAgent, event.Timestamp,
	)
	if err != nil {
		slog.Error("failed to persist audit event", "event_type", event.Type, "error", err)
	}
}

// Recent returns the newest events for an actor, newest first.
func (r *AuditRepository) Recent(ctx context.Context, actorID string, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT event_type, actor_id, resource, metadata, ip_address, user_agent, created_at
		FROM audit_events
		WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			metadata []byte
		)
		if err := rows.Scan(
			&event.Type, &event.ActorID, &event.Resource, &metadata,
			&event.IPAddress, &event.UserAgent, &event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
