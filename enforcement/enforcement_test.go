package enforcement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inkhaven-social/warden/roles"
)

func testService(t *testing.T) *Service {
	t.Helper()
	dir, err := roles.NewStaticDirectory("")
	if err != nil {
		t.Fatal(err)
	}
	dir.Grant("mod1", false)
	dir.Grant("admin1", true)
	return NewService(NewMemStore(), dir)
}

func TestSuspendAndCheck(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc := testService(t)

	st, err := svc.Check(ctx, "acct1")
	assert.NoError(err)
	assert.False(st.Suspended)
	assert.False(st.Shadowbanned)

	assert.NoError(svc.Suspend(ctx, "mod1", "acct1", "ban evasion", nil))

	st, err = svc.Check(ctx, "acct1")
	assert.NoError(err)
	assert.True(st.Suspended)
	assert.True(st.Permanent)
	assert.Equal("ban evasion", st.SuspensionReason)
	assert.Nil(st.ExpiresAt)

	assert.NoError(svc.LiftSuspension(ctx, "mod1", "acct1"))
	st, err = svc.Check(ctx, "acct1")
	assert.NoError(err)
	assert.False(st.Suspended)

	// lifting again is a no-op
	assert.NoError(svc.LiftSuspension(ctx, "mod1", "acct1"))
}

func TestSuspendSupersedesPrior(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc := testService(t)

	exp := time.Now().UTC().Add(24 * time.Hour)
	assert.NoError(svc.Suspend(ctx, "mod1", "acct1", "first strike", &exp))
	assert.NoError(svc.Suspend(ctx, "mod1", "acct1", "second strike", nil))

	history, err := svc.Store.SuspensionHistory(ctx, "acct1")
	assert.NoError(err)
	assert.Len(history, 2)

	active := 0
	for _, row := range history {
		if row.Active {
			active++
			assert.Equal("second strike", row.Reason)
		}
	}
	assert.Equal(1, active, "exactly one active suspension after supersede")

	st, err := svc.Check(ctx, "acct1")
	assert.NoError(err)
	assert.True(st.Suspended)
	assert.Equal("second strike", st.SuspensionReason)
	assert.True(st.Permanent)
}

func TestLazyExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc := testService(t)

	exp := time.Now().UTC().Add(30 * time.Millisecond)
	assert.NoError(svc.Suspend(ctx, "mod1", "acct1", "cool off", &exp))

	st, err := svc.Check(ctx, "acct1")
	assert.NoError(err)
	assert.True(st.Suspended)
	assert.False(st.Permanent)

	time.Sleep(50 * time.Millisecond)

	// no sweep has run; expiry is evaluated at check time
	st, err = svc.Check(ctx, "acct1")
	assert.NoError(err)
	assert.False(st.Suspended)

	// the sweep deactivates the lapsed row for reporting
	n, err := svc.ExpireSweep(ctx)
	assert.NoError(err)
	assert.Equal(1, n)

	history, err := svc.Store.SuspensionHistory(ctx, "acct1")
	assert.NoError(err)
	assert.Len(history, 1)
	assert.False(history[0].Active)
}

func TestSuspendValidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc := testService(t)

	assert.Error(svc.Suspend(ctx, "mod1", "", "reason", nil))
	assert.Error(svc.Suspend(ctx, "mod1", "acct1", "", nil))

	past := time.Now().UTC().Add(-time.Hour)
	assert.Error(svc.Suspend(ctx, "mod1", "acct1", "reason", &past))
}

func TestShadowbanLifecycle(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc := testService(t)

	assert.NoError(svc.Shadowban(ctx, "mod1", "acct1", "engagement farming"))

	st, err := svc.Check(ctx, "acct1")
	assert.NoError(err)
	assert.True(st.Shadowbanned)
	assert.False(st.Suspended, "shadowban and suspension are independent")

	banned, err := svc.IsShadowbanned(ctx, "acct1")
	assert.NoError(err)
	assert.True(banned)

	// supersede keeps one active row
	assert.NoError(svc.Shadowban(ctx, "admin1", "acct1", "repeat offense"))
	history, err := svc.Store.ShadowbanHistory(ctx, "acct1")
	assert.NoError(err)
	assert.Len(history, 2)
	active := 0
	for _, row := range history {
		if row.Active {
			active++
		}
	}
	assert.Equal(1, active)

	assert.NoError(svc.RemoveShadowban(ctx, "mod1", "acct1"))
	banned, err = svc.IsShadowbanned(ctx, "acct1")
	assert.NoError(err)
	assert.False(banned)
}

func TestMutationsRequireModerator(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	svc := testService(t)

	var authzErr *roles.AuthorizationError

	err := svc.Suspend(ctx, "regular-user", "acct1", "reason", nil)
	assert.ErrorAs(err, &authzErr)
	err = svc.Shadowban(ctx, "regular-user", "acct1", "reason")
	assert.ErrorAs(err, &authzErr)
	err = svc.LiftSuspension(ctx, "regular-user", "acct1")
	assert.ErrorAs(err, &authzErr)
	err = svc.RemoveShadowban(ctx, "regular-user", "acct1")
	assert.ErrorAs(err, &authzErr)

	// no partial state change from denied attempts
	st, err := svc.Check(ctx, "acct1")
	assert.NoError(err)
	assert.False(st.Suspended)
	assert.False(st.Shadowbanned)

	history, err := svc.Store.SuspensionHistory(ctx, "acct1")
	assert.NoError(err)
	assert.Empty(history)
}

func TestConcurrentSuspends(t *testing.T) {
	// run with -race; the supersede step must stay atomic under concurrent
	// moderator actions
	assert := assert.New(t)
	ctx := context.Background()
	svc := testService(t)

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			done <- svc.Suspend(ctx, "mod1", "acct1", "contested", nil)
		}()
	}
	for i := 0; i < 10; i++ {
		assert.NoError(<-done)
	}

	history, err := svc.Store.SuspensionHistory(ctx, "acct1")
	assert.NoError(err)
	assert.Len(history, 10, "every attempt retained for audit")

	active := 0
	for _, row := range history {
		if row.Active {
			active++
		}
	}
	assert.Equal(1, active, "last write wins, at most one active")
}
