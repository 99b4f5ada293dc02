package load

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

const upsertSummaryQuery = `
	INSERT INTO ` + SummaryTable + `
	(line_id, maintenance_type, metric_date, event_count, total_cost, pending_cost_count,
	mean_cost, min_cost, max_cost, total_downtime, mean_downtime, min_downtime, max_downtime,
	stddev_downtime, unplanned_count, unplanned_fraction, unplanned_pct)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
	event_count = VALUES(event_count),
	total_cost = VALUES(total_cost),
	pending_cost_count = VALUES(pending_cost_count),
	mean_cost = VALUES(mean_cost),
	min_cost = VALUES(min_cost),
	max_cost = VALUES(max_cost),
	total_downtime = VALUES(total_downtime),
	mean_downtime = VALUES(mean_downtime),
	min_downtime = VALUES(min_downtime),
	max_downtime = VALUES(max_downtime),
	stddev_downtime = VALUES(stddev_downtime),
	unplanned_count = VALUES(unplanned_count),
	unplanned_fraction = VALUES(unplanned_fraction),
	unplanned_pct = VALUES(unplanned_pct)
`

// SummaryLoader отвечает за загрузку агрегатов
type SummaryLoader struct {
	db        *sql.DB
	logger    *utils.ETLLogger
	batchSize int
}

// NewSummaryLoader создает новый экземпляр SummaryLoader
func NewSummaryLoader(db *sql.DB, logger *utils.ETLLogger) *SummaryLoader {
	return &SummaryLoader{
		db:        db,
		logger:    logger,
		batchSize: defaultBatchSize,
	}
}

// Load загружает агрегаты; группа с тем же ключом перезаписывается
func (l *SummaryLoader) Load(summaries []models.SummaryMetric) error {
	if len(summaries) == 0 {
		l.logger.Debug("Нет агрегатов для загрузки")
		return nil
	}

	startTime := time.Now()
	l.logger.Info("Начало загрузки агрегатов (всего: %d)", len(summaries))

	processed, err := execBatched(l.db, upsertSummaryQuery, len(summaries), l.batchSize, func(i int) ([]interface{}, error) {
		s := summaries[i]
		date, err := time.Parse("2006-01-02", s.Date)
		if err != nil {
			return nil, fmt.Errorf("некорректная дата агрегата %q: %w", s.Date, err)
		}
		return []interface{}{
			s.LineID, string(s.MaintenanceType), date, s.EventCount, s.TotalCost, s.PendingCostCount,
			s.MeanCost, s.MinCost, s.MaxCost, s.TotalDowntime, s.MeanDowntime, s.MinDowntime, s.MaxDowntime,
			s.StddevDowntime, s.UnplannedCount, s.UnplannedFraction, s.UnplannedPct,
		}, nil
	}, nil)
	if err != nil {
		return fmt.Errorf("ошибка загрузки агрегатов (загружено %d): %w", processed, err)
	}

	l.logger.Info("Загрузка агрегатов завершена. Загружено записей: %d. Длительность: %v", processed, time.Since(startTime))
	return nil
}
