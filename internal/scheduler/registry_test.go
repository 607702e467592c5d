// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger creates a test logger that discards output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	c := cron.New()
	t.Cleanup(func() { c.Stop() })
	return NewRegistry(c, testLogger())
}

func TestRegistryAdd(t *testing.T) {
	r := testRegistry(t)

	require.NoError(t, r.Add("b-job", "second", "@every 1h", func() {}))
	require.NoError(t, r.Add("a-job", "first", "*/5 * * * *", func() {}))

	jobs := r.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a-job", jobs[0].Name)
	assert.Equal(t, "first", jobs[0].Description)
	assert.Equal(t, "*/5 * * * *", jobs[0].Schedule)
	assert.False(t, jobs[0].IsOverridden)
}

func TestRegistryAddRejects(t *testing.T) {
	r := testRegistry(t)

	assert.ErrorIs(t, r.Add("bad", "", "not a cron", func() {}), ErrInvalidSchedule)
	require.NoError(t, r.Add("dup", "", "@hourly", func() {}))
	assert.Error(t, r.Add("dup", "", "@hourly", func() {}))
}

func TestRegistryTriggerNow(t *testing.T) {
	r := testRegistry(t)
	var runs atomic.Int32
	require.NoError(t, r.Add("job", "", "@daily", func() { runs.Add(1) }))

	require.NoError(t, r.TriggerNow("job"))
	assert.Equal(t, int32(1), runs.Load())

	assert.ErrorIs(t, r.TriggerNow("missing"), ErrJobNotFound)
}

func TestRegistryUpdateAndResetSchedule(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Add("job", "", "@daily", func() {}))

	require.NoError(t, r.UpdateSchedule("job", "0 * * * *"))
	jobs := r.List()
	assert.Equal(t, "0 * * * *", jobs[0].Schedule)
	assert.True(t, jobs[0].IsOverridden)
	assert.Len(t, r.cron.Entries(), 1)

	assert.ErrorIs(t, r.UpdateSchedule("job", "61 * * * *"), ErrInvalidSchedule)
	assert.ErrorIs(t, r.UpdateSchedule("missing", "@daily"), ErrJobNotFound)

	require.NoError(t, r.ResetSchedule("job"))
	jobs = r.List()
	assert.Equal(t, "@daily", jobs[0].Schedule)
	assert.False(t, jobs[0].IsOverridden)
	assert.Len(t, r.cron.Entries(), 1)
}
