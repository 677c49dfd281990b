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

// Package escalation manages the time-boxed elevated-privilege session
// layered on top of an authenticated base session. The elevated token is
// held in volatile memory only; losing process state forces
// re-escalation.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/campuskit/campuskit/internal/audit"
	"github.com/campuskit/campuskit/internal/token"
)

// Domain errors. The denial causes stay distinguishable to the caller;
// they all satisfy errors.Is(err, ErrEscalationDenied).
var (
	ErrEscalationDenied = errors.New("escalation denied")
	ErrWrongPassword    = fmt.Errorf("%w: password verification failed", ErrEscalationDenied)
	ErrNotPrivileged    = fmt.Errorf("%w: user lacks admin privileges", ErrEscalationDenied)
	ErrAdminDisabled    = fmt.Errorf("%w: admin mode is disabled", ErrEscalationDenied)
	ErrPasswordRequired = errors.New("password is required")
	ErrNotAuthenticated = errors.New("escalation requires an authenticated session")
)

// Tunables of the inactivity countdown.
const (
	DefaultDuration         = 15 * time.Minute
	DefaultWarningThreshold = 2 * time.Minute
	DefaultTickInterval     = time.Second
)

// Grant is the elevated token material returned by the authority.
type Grant struct {
	AdminToken string
	ExpiresIn  int // seconds
}

// Verifier is the remote password-verification endpoint.
type Verifier interface {
	Escalate(ctx context.Context, password string) (*Grant, error)
}

// AuthState exposes the base session's authentication flag.
type AuthState interface {
	Authenticated() bool
}

// Config tunes the countdown and wires the caller-visible side effects.
type Config struct {
	Duration         time.Duration
	WarningThreshold time.Duration
	TickInterval     time.Duration

	// OnWarning fires once per escalation when the remaining time first
	// crosses below the warning threshold.
	OnWarning func(remaining time.Duration)
	// OnExpired fires when the countdown reaches zero, after the elevated
	// session has been cleared. Callers typically redirect away from the
	// elevated area here.
	OnExpired func()
}

// Controller is the escalation state machine:
// Inactive -> Active -> Warning -> Expired (-> Inactive). The countdown
// ticker lives exactly as long as the Active state; tracked activity
// resets the window to its full duration and clears the warning latch.
type Controller struct {
	verifier Verifier
	auth     AuthState
	admin    *token.AdminTokenStore
	audit    audit.Logger
	cfg      Config
	clock    func() time.Time

	mu           sync.Mutex
	active       bool
	warning      bool
	warned       bool
	lastActivity time.Time
	stop         chan struct{}
}

// NewController creates an inactive escalation controller. Zero config
// durations fall back to the defaults.
func NewController(verifier Verifier, auth AuthState, admin *token.AdminTokenStore, auditLogger audit.Logger, cfg Config) *Controller {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = DefaultWarningThreshold
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	return &Controller{
		verifier: verifier,
		auth:     auth,
		admin:    admin,
		audit:    auditLogger,
		cfg:      cfg,
		clock:    time.Now,
	}
}

// Escalate verifies the password with the authority and enters Active.
// It requires a non-empty password and an authenticated base session.
func (c *Controller) Escalate(ctx context.Context, password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if !c.auth.Authenticated() {
		return ErrNotAuthenticated
	}

	grant, err := c.verifier.Escalate(ctx, password)
	if err != nil {
		c.audit.Log(ctx, audit.Event{
			Type:     audit.TypeEscalationDenied,
			Metadata: map[string]any{audit.AttrReason: err.Error()},
		})
		return err
	}

	expiry := c.clock().Add(time.Duration(grant.ExpiresIn) * time.Second)

	c.mu.Lock()
	c.stopLocked()
	c.admin.Set(grant.AdminToken, expiry)
	c.active = true
	c.warning = false
	c.warned = false
	c.lastActivity = c.clock()
	c.stop = make(chan struct{})
	go c.run(c.stop)
	c.mu.Unlock()

	c.audit.Log(ctx, audit.Event{Type: audit.TypeEscalated})
	return nil
}

// Touch records user activity: the countdown resets to the full duration
// and any pending warning is cleared. A no-op while inactive.
func (c *Controller) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.lastActivity = c.clock()
	c.warning = false
	c.warned = false
}

// DeEscalate ends the elevated session explicitly. The clearing effect is
// identical to expiry; only expiry fires the OnExpired side effect.
func (c *Controller) DeEscalate() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.clearLocked()
	c.mu.Unlock()
	c.audit.Log(context.Background(), audit.Event{Type: audit.TypeDeEscalated})
}

// Close tears down the controller when its owner is disposed. No timer
// may outlive the escalation session.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		c.clearLocked()
	}
}

// Active reports whether the elevated session is live.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// InWarning reports whether the countdown has crossed the warning
// threshold without intervening activity.
func (c *Controller) InWarning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warning
}

// Remaining returns the time left before forced de-escalation; zero while
// inactive.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return 0
	}
	remaining := c.cfg.Duration - c.clock().Sub(c.lastActivity)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *Controller) run(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.step()
		}
	}
}

// step evaluates one countdown tick.
func (c *Controller) step() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	remaining := c.cfg.Duration - c.clock().Sub(c.lastActivity)

	if remaining <= 0 {
		c.clearLocked()
		onExpired := c.cfg.OnExpired
		c.mu.Unlock()
		c.audit.Log(context.Background(), audit.Event{Type: audit.TypeEscalationExpired})
		if onExpired != nil {
			onExpired()
		}
		return
	}

	if remaining <= c.cfg.WarningThreshold && !c.warned {
		c.warned = true
		c.warning = true
		onWarning := c.cfg.OnWarning
		c.mu.Unlock()
		if onWarning != nil {
			onWarning(remaining)
		}
		return
	}
	c.mu.Unlock()
}

// clearLocked resets to Inactive: elevated token gone, flags cleared,
// ticker stopped. Callers hold c.mu.
func (c *Controller) clearLocked() {
	c.stopLocked()
	c.admin.Clear()
	c.active = false
	c.warning = false
	c.warned = false
	c.lastActivity = time.Time{}
}

func (c *Controller) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}
