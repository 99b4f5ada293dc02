package load

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

const upsertFactQuery = `
	INSERT INTO ` + FactTable + `
	(event_id, factory_id, line_id, technician_id, maintenance_type, reason, outcome,
	start_time_utc, end_time_utc, event_date, event_year_month, duration_min, downtime_min,
	cost_eur, cost_per_downtime_min, parts_used, parts_count, next_due_date, days_to_next_due,
	technician_found, operator_skill_level, operator_reliability, downtime_category,
	cost_data_quality, severity_level, is_unplanned, data_quality_flags)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
	factory_id = VALUES(factory_id),
	line_id = VALUES(line_id),
	technician_id = VALUES(technician_id),
	maintenance_type = VALUES(maintenance_type),
	reason = VALUES(reason),
	outcome = VALUES(outcome),
	start_time_utc = VALUES(start_time_utc),
	end_time_utc = VALUES(end_time_utc),
	event_date = VALUES(event_date),
	event_year_month = VALUES(event_year_month),
	duration_min = VALUES(duration_min),
	downtime_min = VALUES(downtime_min),
	cost_eur = VALUES(cost_eur),
	cost_per_downtime_min = VALUES(cost_per_downtime_min),
	parts_used = VALUES(parts_used),
	parts_count = VALUES(parts_count),
	next_due_date = VALUES(next_due_date),
	days_to_next_due = VALUES(days_to_next_due),
	technician_found = VALUES(technician_found),
	operator_skill_level = VALUES(operator_skill_level),
	operator_reliability = VALUES(operator_reliability),
	downtime_category = VALUES(downtime_category),
	cost_data_quality = VALUES(cost_data_quality),
	severity_level = VALUES(severity_level),
	is_unplanned = VALUES(is_unplanned),
	data_quality_flags = VALUES(data_quality_flags)
`

// FactLoader отвечает за загрузку фактов событий обслуживания
type FactLoader struct {
	db        *sql.DB
	logger    *utils.ETLLogger
	batchSize int
}

// NewFactLoader создает новый экземпляр FactLoader
func NewFactLoader(db *sql.DB, logger *utils.ETLLogger) *FactLoader {
	return &FactLoader{
		db:        db,
		logger:    logger,
		batchSize: defaultBatchSize,
	}
}

// Load загружает факты в OLAP. Повторная загрузка того же event_id обновляет строку.
func (l *FactLoader) Load(facts []models.FactMaintenanceEvent) error {
	if len(facts) == 0 {
		l.logger.Debug("Нет фактов для загрузки")
		return nil
	}

	startTime := time.Now()
	l.logger.Info("Начало загрузки фактов обслуживания (всего: %d)", len(facts))

	processed, err := execBatched(l.db, upsertFactQuery, len(facts), l.batchSize, func(i int) ([]interface{}, error) {
		return factArgs(facts[i])
	}, func(done int) {
		l.logger.Debug("Загружено %d из %d фактов...", done, len(facts))
	})
	if err != nil {
		return fmt.Errorf("ошибка загрузки фактов (загружено %d): %w", processed, err)
	}

	l.logger.Info("Загрузка фактов завершена. Загружено записей: %d. Длительность: %v", processed, time.Since(startTime))
	return nil
}

func factArgs(f models.FactMaintenanceEvent) ([]interface{}, error) {
	parts, err := json.Marshal(f.PartsUsed)
	if err != nil {
		return nil, err
	}
	flags, err := json.Marshal(f.DataQualityFlags)
	if err != nil {
		return nil, err
	}
	eventDate, err := time.Parse("2006-01-02", f.EventDate)
	if err != nil {
		return nil, fmt.Errorf("некорректная event_date %q: %w", f.EventDate, err)
	}

	return []interface{}{
		f.EventID, f.FactoryID, f.LineID, f.TechnicianID, string(f.MaintenanceType), string(f.Reason), f.Outcome,
		f.StartTimeUTC.UTC(), f.EndTimeUTC.UTC(), eventDate, f.EventYearMonth, f.DurationMin, f.DowntimeMin,
		f.CostEUR, f.CostPerDowntimeMin, string(parts), f.PartsCount, f.NextDueDate, f.DaysToNextDue,
		f.TechnicianFound, f.OperatorSkillLevel, f.OperatorReliability, string(f.DowntimeCategory),
		string(f.CostDataQuality), string(f.SeverityLevel), f.IsUnplanned, string(flags),
	}, nil
}
