package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryETLLogRepositoryLifecycle(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryETLLogRepository()
	repo.now = func() time.Time { return now }
	require.NoError(t, repo.CreateETLLogTable())

	okID, err := repo.CreateLogEntry("run-ok", now.Add(-2*time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.UpdateLogEntrySuccess(okID, now.Add(-2*time.Hour+30*time.Second), RunReport{
		RowsIn: 10, RowsOut: 9, ExcludedCount: 1, SummaryGroups: 3,
	}))

	failID, err := repo.CreateLogEntry("run-fail", now.Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.UpdateLogEntryFailure(failID, now.Add(-time.Hour+time.Second), "schema violation"))

	_, err = repo.CreateLogEntry("run-current", now)
	require.NoError(t, err)

	last, err := repo.GetLastSuccessfulRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "run-ok", last.RunID)
	assert.Equal(t, 9, last.RowsOut)
	assert.Equal(t, 1, last.RowsExcluded)
	assert.Equal(t, 30.0, last.ExecutionTimeSeconds)

	runs, err := repo.GetETLRunStats(1)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-current", runs[0].RunID)
	assert.Equal(t, "run-ok", runs[2].RunID)

	state, err := repo.GetETLStateMonitor()
	require.NoError(t, err)
	assert.Equal(t, 1, state.TotalSuccessfulRuns)
	assert.Equal(t, 1, state.TotalFailedRuns)
	assert.Equal(t, 9, state.TotalRowsProcessed)
	assert.Equal(t, "schema violation", state.LastFailedRun.ErrorMessage)
	assert.Equal(t, "run-current", state.CurrentRun.RunID)
}

func TestMemoryETLLogRepositoryFiltersByDays(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryETLLogRepository()
	repo.now = func() time.Time { return now }

	_, _ = repo.CreateLogEntry("old", now.AddDate(0, 0, -10))
	_, _ = repo.CreateLogEntry("recent", now.AddDate(0, 0, -1))

	runs, err := repo.GetETLRunStats(7)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "recent", runs[0].RunID)
}

func TestMemoryETLLogRepositoryUnknownID(t *testing.T) {
	repo := NewMemoryETLLogRepository()
	assert.Error(t, repo.UpdateLogEntryFailure(42, time.Now(), "boom"))
}

func TestSchemaViolationMatchesSentinel(t *testing.T) {
	var err error = &SchemaViolation{Violations: []ValidationIssue{
		{Rule: RuleEventIDUnique, Severity: SeverityFatal, Rows: []int{2, 4}, Message: "дублирующиеся event_id: E1"},
	}}

	assert.True(t, errors.Is(err, ErrSchemaViolation))
	assert.False(t, errors.Is(err, ErrRunInProgress))
	assert.Contains(t, err.Error(), "строки 2, 4")
	assert.Contains(t, err.Error(), RuleEventIDUnique)
}
