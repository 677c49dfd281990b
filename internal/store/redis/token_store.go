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

// Package redis provides the durable, restart-surviving token store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campuskit/campuskit/internal/token"
)

// TokenStore implements token.Store on top of Redis. Tokens survive a
// process restart, which is what lets cold-start session restoration work.
type TokenStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTokenStore creates a TokenStore. The prefix namespaces the keys so
// several instances can share one Redis. A zero ttl stores tokens without
// expiry.
func NewTokenStore(client *redis.Client, prefix string, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *TokenStore) SetAccessToken(ctx context.Context, value string) error {
	return s.set(ctx, s.key("access_token"), value)
}

func (s *TokenStore) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.key("access_token"))
}

func (s *TokenStore) SetRefreshToken(ctx context.Context, value string) error {
	return s.set(ctx, s.key("refresh_token"), value)
}

func (s *TokenStore) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.key("refresh_token"))
}

func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key("access_token"), s.key("refresh_token")).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

func (s *TokenStore) set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

func (s *TokenStore) get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", token.ErrNotFound
		}
		return "", fmt.Errorf("load token: %w", err)
	}
	if value == "" {
		return "", token.ErrNotFound
	}
	return value, nil
}

func (s *TokenStore) key(name string) string {
	return s.prefix + ":" + name
}
