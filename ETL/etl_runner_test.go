package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/maintenance_analytics/ETL/config"
	"github.com/LilVoxy/maintenance_analytics/ETL/load"
	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

const eventsHeader = "event_id,factory_id,line_id,technician_id,maintenance_type,reason,start_time,end_time,cost_eur,downtime_min,parts_used,next_due_date\n"

const rosterCSV = "operator_id,skill_level,reliability\n" +
	"TECH-001,Senior,92.5\n" +
	"TECH-002,Junior,71\n"

func writeInputs(t *testing.T, events string) (inputDir, outputDir string) {
	t.Helper()
	inputDir = t.TempDir()
	outputDir = filepath.Join(t.TempDir(), "processed")
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "maintenance_events.csv"), []byte(events), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "operators_roster.csv"), []byte(rosterCSV), 0o644))
	return inputDir, outputDir
}

func newTestRunner(t *testing.T, inputDir, outputDir string) *ETLRunner {
	t.Helper()
	cfg := config.GetConfig()
	cfg.Input.Dir = inputDir
	cfg.Sinks.OutputDir = outputDir
	cfg.Sinks.LoadDatabase = false

	runner, err := NewETLRunner(cfg, utils.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(runner.Close)
	return runner
}

func TestExecuteETLWritesArtifacts(t *testing.T) {
	events := eventsHeader +
		"E1,F-01,L-01,TECH-001,Preventive,Planned Maintenance,2024-03-10 10:00:00,2024-03-10 11:30:00,3000,150,\"filter,belt\",2024-04-10\n" +
		"E2,F-01,L-01,TECH-002,Preventive,Planned Maintenance,2024-03-10 14:00:00,2024-03-10 14:30:00,,20,,\n" +
		"E3,F-01,L-02,TECH-404,Corrective,Unplanned Breakdown,2024-03-11 08:00:00,2024-03-11 09:00:00,1800,45,motor,\n"
	inputDir, outputDir := writeInputs(t, events)
	runner := newTestRunner(t, inputDir, outputDir)

	report, err := runner.ExecuteETL()
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, 3, report.RowsIn)
	assert.Equal(t, 3, report.RowsOut)
	assert.Equal(t, 0, report.ExcludedCount)
	assert.Equal(t, 2, report.SummaryGroups)
	assert.Equal(t, 1, report.FlagCounts[models.FlagPendingCost])
	assert.Equal(t, 1, report.FlagCounts[models.FlagTechnicianNotFound])

	for _, name := range []string{load.FactsCSVFile, load.SummaryCSVFile, load.FactsArchive, load.SummaryWorkbook} {
		assert.FileExists(t, filepath.Join(outputDir, name))
	}

	archive, err := os.Open(filepath.Join(outputDir, load.FactsArchive))
	require.NoError(t, err)
	defer archive.Close()
	records, err := load.ReadArchive(archive)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "E1", records[0].EventID)
	assert.Equal(t, "High", records[0].SeverityLevel)

	runs, err := runner.etlLogRepo.GetETLRunStats(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusSuccess, runs[0].Status)
	assert.Equal(t, 3, runs[0].RowsOut)
}

func TestExecuteETLRejectsDuplicateEventIDs(t *testing.T) {
	events := eventsHeader +
		"E1,F-01,L-01,TECH-001,Preventive,Planned Maintenance,2024-03-10 10:00:00,2024-03-10 11:00:00,100,10,filter,\n" +
		"E1,F-01,L-01,TECH-002,Preventive,Planned Maintenance,2024-03-10 12:00:00,2024-03-10 13:00:00,100,10,filter,\n"
	inputDir, outputDir := writeInputs(t, events)
	runner := newTestRunner(t, inputDir, outputDir)

	report, err := runner.ExecuteETL()
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, models.ErrSchemaViolation)

	assert.NoDirExists(t, outputDir)

	state, err := runner.etlLogRepo.GetETLStateMonitor()
	require.NoError(t, err)
	assert.Equal(t, 1, state.TotalFailedRuns)
	require.NotNil(t, state.LastFailedRun)
	assert.Contains(t, state.LastFailedRun.ErrorMessage, models.RuleEventIDUnique)
}

func TestExecuteETLMissingInput(t *testing.T) {
	runner := newTestRunner(t, t.TempDir(), t.TempDir())

	_, err := runner.ExecuteETL()
	require.Error(t, err)

	state, err := runner.etlLogRepo.GetETLStateMonitor()
	require.NoError(t, err)
	assert.Equal(t, 1, state.TotalFailedRuns)
}

func TestValidateFile(t *testing.T) {
	events := eventsHeader +
		"E1,F-01,L-01,TECH-001,Calibration,Planned Maintenance,2024-03-10 10:00:00,2024-03-10 11:00:00,100,10,filter,\n"
	inputDir, outputDir := writeInputs(t, events)
	runner := newTestRunner(t, inputDir, outputDir)

	report, err := runner.ValidateFile(filepath.Join(inputDir, "maintenance_events.csv"))
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Equal(t, 1, report.TotalRows)
	assert.NoDirExists(t, outputDir)
}
