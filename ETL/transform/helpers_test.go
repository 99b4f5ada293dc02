package transform

import (
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/LilVoxy/maintenance_analytics/ETL/config"
	"github.com/LilVoxy/maintenance_analytics/ETL/models"
)

func testConfig() config.PipelineConfig {
	return config.GetConfig().Pipeline
}

// rawEvent возвращает корректное событие; mods изменяют отдельные поля
func rawEvent(row int, id string, mods ...func(*models.MaintenanceEventRaw)) models.MaintenanceEventRaw {
	e := models.MaintenanceEventRaw{
		Row:             row,
		EventID:         id,
		FactoryID:       "F-01",
		LineID:          "L-01",
		TechnicianID:    sql.NullString{String: "TECH-001", Valid: true},
		MaintenanceType: models.MaintenancePreventive,
		Reason:          models.ReasonPlanned,
		StartTime:       "2024-03-10 10:00:00",
		EndTime:         "2024-03-10 11:30:00",
		CostEUR:         decimal.NewNullDecimal(decimal.NewFromInt(500)),
		DowntimeMin:     sql.NullInt64{Int64: 30, Valid: true},
		PartsUsed:       sql.NullString{String: "filter, belt", Valid: true},
	}
	for _, mod := range mods {
		mod(&e)
	}
	return e
}

func batchOf(events ...models.MaintenanceEventRaw) models.RawBatch {
	return models.RawBatch{
		Source:  "test",
		Columns: append([]string{}, models.RequiredEventColumns...),
		Events:  events,
	}
}

func testRoster() []models.OperatorRecord {
	return []models.OperatorRecord{
		{OperatorID: "TECH-001", SkillLevel: "Senior", Reliability: 92.5},
		{OperatorID: "TECH-002", SkillLevel: "Junior", Reliability: 71},
	}
}

func withCost(cost string) func(*models.MaintenanceEventRaw) {
	return func(e *models.MaintenanceEventRaw) {
		if cost == "" {
			e.CostEUR = decimal.NullDecimal{}
			return
		}
		e.CostEUR = decimal.NewNullDecimal(decimal.RequireFromString(cost))
	}
}

func withDowntime(minutes int64) func(*models.MaintenanceEventRaw) {
	return func(e *models.MaintenanceEventRaw) {
		e.DowntimeMin = sql.NullInt64{Int64: minutes, Valid: true}
	}
}

func withoutDowntime() func(*models.MaintenanceEventRaw) {
	return func(e *models.MaintenanceEventRaw) {
		e.DowntimeMin = sql.NullInt64{}
	}
}

func withTechnician(id string) func(*models.MaintenanceEventRaw) {
	return func(e *models.MaintenanceEventRaw) {
		if id == "" {
			e.TechnicianID = sql.NullString{}
			return
		}
		e.TechnicianID = sql.NullString{String: id, Valid: true}
	}
}

func withReason(reason models.Reason) func(*models.MaintenanceEventRaw) {
	return func(e *models.MaintenanceEventRaw) {
		e.Reason = reason
	}
}

func withTimes(start, end string) func(*models.MaintenanceEventRaw) {
	return func(e *models.MaintenanceEventRaw) {
		e.StartTime = start
		e.EndTime = end
	}
}
