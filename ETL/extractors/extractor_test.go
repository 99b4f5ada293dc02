package extractors

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/LilVoxy/maintenance_analytics/ETL/config"
	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

const eventsCSV = `event_id,factory_id,line_id,technician_id,maintenance_type,reason,start_time,end_time,cost_eur,downtime_min,parts_used,outcome
E1,F-01,L-01,TECH-001,Preventive,Planned Maintenance,2024-03-10 10:00:00,2024-03-10 11:00:00,1200.50,45,"filter,belt",Resolved
E2,F-01,L-02,,Corrective,Unplanned Breakdown,2024-03-10 12:00:00,2024-03-10 12:30:00,NaN,-5.0,,None
E3,F-02,L-01,TECH-002,Inspection,Planned Maintenance,2024-03-11 08:00:00,2024-03-11 08:10:00,0,null,NULL
`

const operatorsCSV = `operator_id,skill_level,reliability_score
TECH-001,Senior,92.5
TECH-002,Junior,71
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractEventsFromReader(t *testing.T) {
	batch, err := ExtractEventsFromReader(strings.NewReader(eventsCSV), "inline")
	require.NoError(t, err)
	require.Len(t, batch.Events, 3)
	assert.Equal(t, "inline", batch.Source)
	assert.Contains(t, batch.Columns, models.ColOutcome)

	e1 := batch.Events[0]
	assert.Equal(t, 2, e1.Row)
	assert.Equal(t, "E1", e1.EventID)
	assert.Equal(t, "TECH-001", e1.TechnicianID.String)
	assert.Equal(t, "1200.5", e1.CostEUR.Decimal.String())
	assert.Equal(t, int64(45), e1.DowntimeMin.Int64)
	assert.Equal(t, "filter,belt", e1.PartsUsed.String)
	assert.Equal(t, "Resolved", e1.Outcome.String)
	assert.Empty(t, e1.Absent)

	e2 := batch.Events[1]
	assert.False(t, e2.TechnicianID.Valid)
	assert.False(t, e2.CostEUR.Valid)
	assert.Equal(t, int64(-5), e2.DowntimeMin.Int64)
	assert.False(t, e2.PartsUsed.Valid)
	assert.False(t, e2.Outcome.Valid)

	// Последняя строка короче заголовка
	e3 := batch.Events[2]
	assert.True(t, e3.CostEUR.Valid)
	assert.True(t, e3.CostEUR.Decimal.IsZero())
	assert.False(t, e3.DowntimeMin.Valid)
	assert.Empty(t, e3.Absent)
	assert.False(t, e3.Outcome.Valid)
}

func TestExtractEventsMarksMissingColumns(t *testing.T) {
	csv := "event_id,factory_id,line_id\nE1,F-01\n"

	batch, err := ExtractEventsFromReader(strings.NewReader(csv), "inline")
	require.NoError(t, err)
	require.Len(t, batch.Events, 1)
	assert.Contains(t, batch.Events[0].Absent, models.ColLineID)
	assert.Contains(t, batch.Events[0].Absent, models.ColDowntimeMin)
	assert.NotContains(t, batch.Events[0].Absent, models.ColOutcome)
}

func TestExtractEventsRejectsBadNumbers(t *testing.T) {
	tests := map[string]string{
		"стоимость": "event_id,cost_eur,downtime_min\nE1,abc,10\n",
		"простой":   "event_id,cost_eur,downtime_min\nE1,10,12.5\n",
	}
	for name, csv := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ExtractEventsFromReader(strings.NewReader(csv), "inline")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "строка 2")
		})
	}
}

func TestExtractEmptyCSV(t *testing.T) {
	_, err := ExtractEventsFromReader(strings.NewReader(""), "inline")
	assert.Error(t, err)
}

func TestExtractorReadsInputDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "events.csv", eventsCSV)
	writeFile(t, dir, "operators.csv", operatorsCSV)

	extractor := NewExtractor(config.InputConfig{
		Dir:            dir,
		EventsFile:     "events.csv",
		OperatorsFile:  "operators.csv",
		EventsRowRange: config.RowRange{Min: 1, Max: 10},
	}, utils.NewNopLogger())

	data, err := extractor.Extract()
	require.NoError(t, err)
	assert.Len(t, data.Events.Events, 3)
	require.Len(t, data.Operators, 2)
	assert.Equal(t, models.OperatorRecord{OperatorID: "TECH-001", SkillLevel: "Senior", Reliability: 92.5}, data.Operators[0])
}

const factoryCSV = `factory_id,line_id,availability,performance,quality,planned_qty,produced_qty
F-01,L-01,0.92,0.85,0.99,1000,950
F-01,L-02,,0.70,1.0,800.0,820
`

func TestExtractorReadsOptionalFactoryDataset(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "events.csv", eventsCSV)
	writeFile(t, dir, "operators.csv", operatorsCSV)
	writeFile(t, dir, "factory.csv", factoryCSV)

	input := config.InputConfig{Dir: dir, EventsFile: "events.csv", OperatorsFile: "operators.csv"}

	data, err := NewExtractor(input, utils.NewNopLogger()).Extract()
	require.NoError(t, err)
	assert.Nil(t, data.Factory)

	input.FactoryFile = "factory.csv"
	data, err = NewExtractor(input, utils.NewNopLogger()).Extract()
	require.NoError(t, err)
	require.Len(t, data.Factory, 2)

	first := data.Factory[0]
	assert.Equal(t, 2, first.Row)
	assert.Equal(t, "L-01", first.LineID)
	assert.InDelta(t, 0.92, first.Availability.Float64, 1e-9)
	assert.Equal(t, int64(950), first.ProducedQty.Int64)

	second := data.Factory[1]
	assert.False(t, second.Availability.Valid)
	assert.Equal(t, int64(800), second.PlannedQty.Int64)
	assert.Equal(t, int64(820), second.ProducedQty.Int64)
}

func TestExtractFactoryRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	extractor := NewExtractor(config.InputConfig{}, utils.NewNopLogger())

	path := writeFile(t, dir, "missing_column.csv", "availability,performance,quality,planned_qty\n0.5,0.5,0.5,10\n")
	_, err := extractor.ExtractFactory(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.ColProducedQty)

	path = writeFile(t, dir, "bad_number.csv", "availability,performance,quality,planned_qty,produced_qty\nhigh,0.5,0.5,10,5\n")
	_, err = extractor.ExtractFactory(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "строка 2")
}

func TestExtractorRowRange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "events.csv", eventsCSV)
	writeFile(t, dir, "operators.csv", operatorsCSV)

	extractor := NewExtractor(config.InputConfig{
		Dir:            dir,
		EventsFile:     "events.csv",
		OperatorsFile:  "operators.csv",
		EventsRowRange: config.RowRange{Min: 90, Max: 100},
	}, utils.NewNopLogger())

	_, err := extractor.Extract()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[90, 100]")
}

func TestExtractOperatorsRequiresColumns(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "operators.csv", "operator_id,skill_level\nTECH-001,Senior\n")

	_, err := NewExtractor(config.InputConfig{}, utils.NewNopLogger()).ExtractOperators(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.ColReliability)
}

func TestExtractEventsFromXLSX(t *testing.T) {
	book := excelize.NewFile()
	rows := [][]interface{}{
		{"event_id", "factory_id", "line_id", "technician_id", "maintenance_type", "reason",
			"start_time", "end_time", "cost_eur", "downtime_min", "parts_used"},
		{"E1", "F-01", "L-01", "TECH-001", "Preventive", "Planned Maintenance",
			"2024-03-10 10:00:00", "2024-03-10 11:00:00", "250", "30", "filter"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "events.xlsx")
	require.NoError(t, book.SaveAs(path))
	require.NoError(t, book.Close())

	batch, err := NewExtractor(config.InputConfig{}, utils.NewNopLogger()).ExtractEvents(path)
	require.NoError(t, err)
	require.Len(t, batch.Events, 1)
	assert.Equal(t, "E1", batch.Events[0].EventID)
	assert.Equal(t, int64(30), batch.Events[0].DowntimeMin.Int64)
	assert.Equal(t, "filter", batch.Events[0].PartsUsed.String)
	assert.Empty(t, batch.Events[0].Absent)
}

func TestExtractUnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "events.json", "[]")
	_, err := NewExtractor(config.InputConfig{}, utils.NewNopLogger()).ExtractEvents(path)
	assert.Error(t, err)
}
