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

// Package token defines the token-persistence collaborators of the
// session core: a durable store for the access/refresh token pair and a
// strictly volatile store for the elevated admin token.
package token

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested token is not stored.
var ErrNotFound = errors.New("token not found")

// Store persists the access/refresh token pair across process restarts.
// Implementations must treat an absent token as ErrNotFound, not as an
// empty value.
type Store interface {
	SetAccessToken(ctx context.Context, value string) error
	AccessToken(ctx context.Context) (string, error)
	SetRefreshToken(ctx context.Context, value string) error
	RefreshToken(ctx context.Context) (string, error)
	// Clear removes both tokens. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
