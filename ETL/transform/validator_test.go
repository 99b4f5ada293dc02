package transform

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(testConfig(), utils.NewNopLogger())
	require.NoError(t, err)
	return v
}

func TestValidatePassesCleanBatch(t *testing.T) {
	v := newTestValidator(t)

	report, err := v.Validate(batchOf(rawEvent(2, "E1"), rawEvent(3, "E2")))
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Equal(t, 2, report.TotalRows)
	assert.Equal(t, 0, report.ChecksFailed)
	assert.Equal(t, 9, report.ChecksPassed)
	assert.Empty(t, report.Issues)
}

func TestValidateDuplicateEventIDNamesEveryRow(t *testing.T) {
	v := newTestValidator(t)

	report, err := v.Validate(batchOf(rawEvent(2, "E1"), rawEvent(3, "E2"), rawEvent(4, "E1")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrSchemaViolation))
	assert.False(t, report.Passed)

	var violation *models.SchemaViolation
	require.True(t, errors.As(err, &violation))
	require.Equal(t, []string{models.RuleEventIDUnique}, violation.Rules())
	assert.Equal(t, []int{2, 4}, violation.Violations[0].Rows)
	assert.Equal(t, []string{"E1", "E1"}, violation.Violations[0].EventIDs)
}

func TestValidateMissingHeaderColumnStopsFurtherChecks(t *testing.T) {
	v := newTestValidator(t)

	batch := batchOf(rawEvent(2, "E1"), rawEvent(3, "E1"))
	batch.Columns = []string{models.ColEventID, models.ColFactoryID}

	report, err := v.Validate(batch)
	require.Error(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, models.RuleRequiredColumns, report.Issues[0].Rule)
	assert.Contains(t, report.Issues[0].Message, models.ColDowntimeMin)
	assert.Equal(t, 1, report.ChecksFailed)
	assert.Equal(t, 0, report.ChecksPassed)
}

func TestValidateShortRowIsMissingColumns(t *testing.T) {
	v := newTestValidator(t)

	short := rawEvent(3, "E2", func(e *models.MaintenanceEventRaw) {
		e.Absent = []string{models.ColPartsUsed}
	})
	_, err := v.Validate(batchOf(rawEvent(2, "E1"), short))

	var violation *models.SchemaViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, []string{models.RuleRequiredColumns}, violation.Rules())
	assert.Equal(t, []int{3}, violation.Violations[0].Rows)
}

func TestValidateFatalRules(t *testing.T) {
	tests := []struct {
		name  string
		event models.MaintenanceEventRaw
		rule  string
	}{
		{"пустой event_id", rawEvent(2, "  "), models.RuleEventIDNotNull},
		{"пустой factory_id", rawEvent(2, "E1", func(e *models.MaintenanceEventRaw) { e.FactoryID = "" }), models.RuleKeyFieldsNotNull},
		{"пустой line_id", rawEvent(2, "E1", func(e *models.MaintenanceEventRaw) { e.LineID = "" }), models.RuleKeyFieldsNotNull},
		{"пустой maintenance_type", rawEvent(2, "E1", func(e *models.MaintenanceEventRaw) { e.MaintenanceType = "" }), models.RuleKeyFieldsNotNull},
		{"отрицательная стоимость", rawEvent(2, "E1", withCost("-0.01")), models.RuleNonNegativeCost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(t)
			report, err := v.Validate(batchOf(tt.event))

			var violation *models.SchemaViolation
			require.True(t, errors.As(err, &violation))
			assert.Equal(t, []string{tt.rule}, violation.Rules())
			assert.Equal(t, []int{2}, violation.Violations[0].Rows)
			assert.False(t, report.Passed)
		})
	}
}

func TestValidateWarningsAreNotFatal(t *testing.T) {
	v := newTestValidator(t)

	batch := batchOf(
		rawEvent(2, "E1", withTimes("2024-03-10 12:00:00", "2024-03-10 11:00:00")),
		rawEvent(3, "E2", withDowntime(-5)),
		rawEvent(4, "E3", withReason("Operator Request")),
		rawEvent(5, "E4", func(e *models.MaintenanceEventRaw) { e.MaintenanceType = "Overhaul" }),
		rawEvent(6, "E5", withCost("0")),
	)

	report, err := v.Validate(batch)
	require.NoError(t, err)
	assert.True(t, report.Passed)

	rules := make(map[string][]int)
	for _, issue := range report.Warnings() {
		rules[issue.Rule] = issue.Rows
	}
	assert.Equal(t, map[string][]int{
		models.RuleEndNotBeforeStart:    {2},
		models.RuleNegativeDowntime:     {3},
		models.RuleKnownReason:          {4},
		models.RuleKnownMaintenanceType: {5},
	}, rules)
	assert.Empty(t, report.Fatal())
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	v := newTestValidator(t)

	batch := batchOf(rawEvent(2, " E1 ", withDowntime(-3)), rawEvent(3, "E1"))
	before := batchOf(rawEvent(2, " E1 ", withDowntime(-3)), rawEvent(3, "E1"))

	_, _ = v.Validate(batch)
	assert.Equal(t, before, batch)
}

func TestValidateRoster(t *testing.T) {
	v := newTestValidator(t)

	report := v.ValidateRoster([]models.OperatorRecord{
		{OperatorID: "TECH-001", SkillLevel: "Senior", Reliability: 90},
		{OperatorID: "TECH-001", SkillLevel: "Junior", Reliability: 60},
		{OperatorID: "TECH-002", SkillLevel: "Mid", Reliability: 101},
	})

	assert.True(t, report.Passed)
	require.Len(t, report.Issues, 2)
	assert.Equal(t, models.RuleOperatorIDUnique, report.Issues[0].Rule)
	assert.Equal(t, models.RuleReliabilityRange, report.Issues[1].Rule)
	for _, issue := range report.Issues {
		assert.Equal(t, models.SeverityWarning, issue.Severity)
	}
}

func TestValidateFactory(t *testing.T) {
	v := newTestValidator(t)
	oee := func(x float64) sql.NullFloat64 { return sql.NullFloat64{Float64: x, Valid: true} }
	qty := func(n int64) sql.NullInt64 { return sql.NullInt64{Int64: n, Valid: true} }

	tests := []struct {
		name   string
		record models.FactoryRecord
		rules  []string
		passed bool
	}{
		{
			name:   "корректная строка",
			record: models.FactoryRecord{Row: 2, Availability: oee(0.9), Performance: oee(1), Quality: oee(0), PlannedQty: qty(100), ProducedQty: qty(100)},
			passed: true,
		},
		{
			name:   "availability больше 1",
			record: models.FactoryRecord{Row: 2, Availability: oee(1.2), Performance: oee(0.8), Quality: oee(0.9)},
			rules:  []string{models.RuleOEERange},
			passed: false,
		},
		{
			name:   "отрицательное quality",
			record: models.FactoryRecord{Row: 2, Availability: oee(0.5), Performance: oee(0.8), Quality: oee(-0.1)},
			rules:  []string{models.RuleOEERange},
			passed: false,
		},
		{
			name:   "выпуск больше плана не влияет на результат",
			record: models.FactoryRecord{Row: 2, Availability: oee(0.5), PlannedQty: qty(100), ProducedQty: qty(120)},
			rules:  []string{models.RuleProducedWithinPlan},
			passed: true,
		},
		{
			name:   "пустые значения не проверяются",
			record: models.FactoryRecord{Row: 2, ProducedQty: qty(120)},
			passed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := v.ValidateFactory([]models.FactoryRecord{tt.record})

			assert.Equal(t, "manufacturing_factory", report.Table)
			assert.Equal(t, tt.passed, report.Passed)
			assert.Equal(t, 4, report.ChecksPassed+report.ChecksFailed)

			var rules []string
			for _, issue := range report.Issues {
				rules = append(rules, issue.Rule)
				assert.Equal(t, models.SeverityWarning, issue.Severity)
				assert.Equal(t, []int{2}, issue.Rows)
			}
			assert.Equal(t, tt.rules, rules)
		})
	}
}
