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

package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/campuskit/internal/audit"
	"github.com/campuskit/campuskit/internal/token"
)

// fakeClock is an adjustable clock shared with the controller under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type stubVerifier struct {
	grant *Grant
	err   error
}

func (s *stubVerifier) Escalate(_ context.Context, _ string) (*Grant, error) {
	return s.grant, s.err
}

type authStub struct{ authenticated bool }

func (a authStub) Authenticated() bool { return a.authenticated }

type nopAudit struct{}

func (nopAudit) Log(context.Context, audit.Event) {}

type testHarness struct {
	controller *Controller
	clock      *fakeClock
	admin      *token.AdminTokenStore
	warnings   []time.Duration
	expired    int
}

func newHarness(t *testing.T, verifier Verifier, authenticated bool) *testHarness {
	t.Helper()
	h := &testHarness{
		clock: &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		admin: token.NewAdminTokenStore(),
	}
	h.controller = NewController(verifier, authStub{authenticated}, h.admin, nopAudit{}, Config{
		OnWarning: func(remaining time.Duration) { h.warnings = append(h.warnings, remaining) },
		OnExpired: func() { h.expired++ },
	})
	h.controller.clock = h.clock.Now
	t.Cleanup(h.controller.Close)
	return h
}

func TestEscalate_RequiresPassword(t *testing.T) {
	h := newHarness(t, &stubVerifier{}, true)
	err := h.controller.Escalate(context.Background(), "")
	assert.True(t, errors.Is(err, ErrPasswordRequired))
	assert.False(t, h.controller.Active())
}

func TestEscalate_RequiresAuthenticatedSession(t *testing.T) {
	h := newHarness(t, &stubVerifier{grant: &Grant{AdminToken: "adm", ExpiresIn: 900}}, false)
	err := h.controller.Escalate(context.Background(), "pw")
	assert.True(t, errors.Is(err, ErrNotAuthenticated))
}

func TestEscalate_DenialCausesStayDistinguishable(t *testing.T) {
	for _, cause := range []error{ErrWrongPassword, ErrNotPrivileged, ErrAdminDisabled} {
		h := newHarness(t, &stubVerifier{err: cause}, true)
		err := h.controller.Escalate(context.Background(), "pw")
		assert.True(t, errors.Is(err, cause))
		assert.True(t, errors.Is(err, ErrEscalationDenied))
		assert.False(t, h.controller.Active())
		assert.False(t, h.admin.Has())
	}
}

func TestEscalate_EntersActiveWithVolatileToken(t *testing.T) {
	h := newHarness(t, &stubVerifier{grant: &Grant{AdminToken: "adm-1", ExpiresIn: 900}}, true)
	require.NoError(t, h.controller.Escalate(context.Background(), "pw"))

	assert.True(t, h.controller.Active())
	assert.False(t, h.controller.InWarning())
	assert.Equal(t, DefaultDuration, h.controller.Remaining())
	assert.True(t, h.admin.Has())
	assert.Equal(t, "adm-1", h.admin.Token())
	assert.Equal(t, h.clock.Now().Add(900*time.Second), h.admin.Expiry())
}

// At 13 minutes of inactivity the warning fires once with roughly two
// minutes remaining; at 15 minutes the session is force-cleared.
func TestCountdown_WarningThenExpiry(t *testing.T) {
	h := newHarness(t, &stubVerifier{grant: &Grant{AdminToken: "adm-1", ExpiresIn: 900}}, true)
	require.NoError(t, h.controller.Escalate(context.Background(), "pw"))

	h.clock.Advance(13 * time.Minute)
	h.controller.step()

	assert.True(t, h.controller.InWarning())
	require.Len(t, h.warnings, 1)
	assert.Equal(t, 2*time.Minute, h.warnings[0])
	assert.Equal(t, 2*time.Minute, h.controller.Remaining())

	// Subsequent ticks inside the warning window must not re-notify.
	h.clock.Advance(30 * time.Second)
	h.controller.step()
	assert.Len(t, h.warnings, 1)

	h.clock.Advance(90*time.Second + time.Second)
	h.controller.step()

	assert.False(t, h.controller.Active())
	assert.False(t, h.controller.InWarning())
	assert.False(t, h.admin.Has(), "elevated token must be cleared on expiry")
	assert.Equal(t, 1, h.expired)
	assert.Equal(t, time.Duration(0), h.controller.Remaining())
}

// Activity during the warning window resets the full duration and clears
// the warning.
func TestCountdown_ActivityResetsWindowAndWarning(t *testing.T) {
	h := newHarness(t, &stubVerifier{grant: &Grant{AdminToken: "adm-1", ExpiresIn: 900}}, true)
	require.NoError(t, h.controller.Escalate(context.Background(), "pw"))

	h.clock.Advance(14*time.Minute + 30*time.Second)
	h.controller.step()
	require.True(t, h.controller.InWarning())

	h.controller.Touch()

	assert.False(t, h.controller.InWarning())
	assert.Equal(t, DefaultDuration, h.controller.Remaining())

	// The warning latch is reset too: crossing the threshold again
	// notifies again.
	h.clock.Advance(13 * time.Minute)
	h.controller.step()
	assert.Len(t, h.warnings, 2)
}

func TestExpiry_IsTerminalUntilReEscalation(t *testing.T) {
	verifier := &stubVerifier{grant: &Grant{AdminToken: "adm-2", ExpiresIn: 900}}
	h := newHarness(t, verifier, true)
	require.NoError(t, h.controller.Escalate(context.Background(), "pw"))

	h.clock.Advance(16 * time.Minute)
	h.controller.step()
	require.False(t, h.controller.Active())

	// Activity after expiry must not resurrect the session.
	h.controller.Touch()
	assert.False(t, h.controller.Active())
	assert.Equal(t, time.Duration(0), h.controller.Remaining())

	// A fresh escalation re-enters Active.
	require.NoError(t, h.controller.Escalate(context.Background(), "pw"))
	assert.True(t, h.controller.Active())
	assert.Equal(t, "adm-2", h.admin.Token())
}

func TestDeEscalate_ClearsLikeExpiryWithoutExpiredHook(t *testing.T) {
	h := newHarness(t, &stubVerifier{grant: &Grant{AdminToken: "adm-1", ExpiresIn: 900}}, true)
	require.NoError(t, h.controller.Escalate(context.Background(), "pw"))

	h.controller.DeEscalate()

	assert.False(t, h.controller.Active())
	assert.False(t, h.admin.Has())
	assert.Zero(t, h.expired, "manual de-escalation must not fire the expiry hook")

	// De-escalating twice is harmless.
	h.controller.DeEscalate()
	assert.False(t, h.controller.Active())
}
