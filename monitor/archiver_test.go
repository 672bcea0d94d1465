package monitor

import (
	"context"
	"testing"
	"time"

	"warden/core"
	"warden/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive_StrictCutoff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	cutoff := testNow.Add(-DefaultEventRetention)

	env.attack(t, cutoff.Add(-time.Hour), "old", "union-based")
	env.attack(t, cutoff, "boundary", "union-based")
	env.attack(t, cutoff.Add(time.Second), "kept", "union-based")
	env.append(t, core.CategoryAccess, core.EventTypeHTTPRequest, testNow, core.EventDetails{IP: "fresh"})

	report := NewArchiver(env.store, 0, env.logger).Archive(ctx, testNow)
	assert.Equal(t, cutoff, report.Cutoff)
	assert.Equal(t, 2, report.Removed[core.CategoryAttack])
	assert.Equal(t, 0, report.Removed[core.CategoryAccess])
	assert.Empty(t, report.Failed)

	attacks, err := env.store.ReadAll(ctx, core.CategoryAttack)
	require.NoError(t, err)
	require.Len(t, attacks, 1)
	assert.Equal(t, "kept", attacks[0].IP)

	n, err := env.store.CountAll(ctx, core.CategoryAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestArchive_ReadFailureLeavesStreamUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	old := testNow.Add(-30 * 24 * time.Hour)

	env.append(t, core.CategoryAccess, core.EventTypeHTTPRequest, old, core.EventDetails{IP: "a"})
	_, err := env.mr.Push(storage.EventStreamKey(core.CategoryAccess), "{broken")
	require.NoError(t, err)
	env.append(t, core.CategorySecurity, core.EventTypeRateLimitViolation, old, core.EventDetails{IP: "b"})

	report := NewArchiver(env.store, 0, env.logger).Archive(ctx, testNow)
	require.Contains(t, report.Failed, core.CategoryAccess)
	assert.Contains(t, report.Failed[core.CategoryAccess], core.ErrArchivalFailure.Error())
	assert.Equal(t, 1, report.Removed[core.CategorySecurity])

	raw, err := env.mr.List(storage.EventStreamKey(core.CategoryAccess))
	require.NoError(t, err)
	assert.Len(t, raw, 2)
}

func TestArchive_CustomRetention(t *testing.T) {
	env := newTestEnv(t)
	env.attack(t, testNow.Add(-2*time.Hour), "a", "x")
	env.attack(t, testNow.Add(-30*time.Minute), "b", "x")

	report := NewArchiver(env.store, time.Hour, env.logger).Archive(context.Background(), testNow)
	assert.Equal(t, 1, report.Removed[core.CategoryAttack])
}
