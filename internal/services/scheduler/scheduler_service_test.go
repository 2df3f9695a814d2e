package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmarzella/ronin/internal/common"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(nil, common.GetLogger()).(*Service)
}

func TestRegisterJobRejectsDuplicate(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.RegisterJob("sweep", "*/30 * * * *", "test job", func() error { return nil }))
	err := svc.RegisterJob("sweep", "*/30 * * * *", "test job", func() error { return nil })
	assert.Error(t, err)
}

func TestExecuteJobSkipsTickWhileRunning(t *testing.T) {
	svc := newTestService(t)

	runs := 0
	require.NoError(t, svc.RegisterJob("sweep", "*/30 * * * *", "test job", func() error {
		runs++
		return nil
	}))

	// A previous run is still in flight when the next tick fires.
	svc.jobs["sweep"].isRunning = true
	svc.executeJob("sweep")
	assert.Zero(t, runs)
	assert.True(t, svc.jobs["sweep"].isRunning)

	// The run finishes; the following tick executes normally.
	svc.jobs["sweep"].isRunning = false
	svc.executeJob("sweep")
	assert.Equal(t, 1, runs)

	status, err := svc.GetJobStatus("sweep")
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
	assert.NotNil(t, status.LastRun)
	assert.Empty(t, status.LastError)
}

func TestTriggerJobRejectsInFlightRun(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.RegisterJob("sweep", "*/30 * * * *", "test job", func() error { return nil }))
	svc.jobs["sweep"].isRunning = true

	err := svc.TriggerJob("sweep")
	assert.Error(t, err)
}
