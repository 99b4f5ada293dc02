package transform

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/LilVoxy/maintenance_analytics/ETL/config"
	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// minPartitionSize - минимальный размер части при параллельном построении
const minPartitionSize = 256

// FactBuilder строит факты событий обслуживания
type FactBuilder struct {
	thresholds config.SeverityThresholds
	workers    int
	logger     *utils.ETLLogger
}

// NewFactBuilder создает новый экземпляр FactBuilder
func NewFactBuilder(cfg config.PipelineConfig, logger *utils.ETLLogger) *FactBuilder {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &FactBuilder{
		thresholds: cfg.Severity,
		workers:    workers,
		logger:     logger,
	}
}

// BuildAll строит факты для всех событий. Порядок фактов совпадает с порядком событий.
func (b *FactBuilder) BuildAll(events []models.EnrichedEvent) []models.FactMaintenanceEvent {
	facts := make([]models.FactMaintenanceEvent, len(events))

	chunk := (len(events) + b.workers - 1) / b.workers
	if chunk < minPartitionSize {
		chunk = minPartitionSize
	}

	var g errgroup.Group
	g.SetLimit(b.workers)
	for start := 0; start < len(events); start += chunk {
		end := start + chunk
		if end > len(events) {
			end = len(events)
		}
		lo, hi := start, end
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				facts[i] = b.Build(events[i])
			}
			return nil
		})
	}
	// Build не возвращает ошибок
	_ = g.Wait()

	b.logger.Info("Построено фактов: %d", len(facts))
	return facts
}

// Build строит один факт. Чистая функция от события и порогов.
func (b *FactBuilder) Build(e models.EnrichedEvent) models.FactMaintenanceEvent {
	eventDate := e.StartTimeUTC.Format("2006-01-02")

	fact := models.FactMaintenanceEvent{
		EventID:             e.EventID,
		FactoryID:           e.FactoryID,
		LineID:              e.LineID,
		TechnicianID:        e.TechnicianID,
		MaintenanceType:     e.MaintenanceType,
		Reason:              e.Reason,
		Outcome:             e.Outcome,
		StartTimeUTC:        e.StartTimeUTC,
		EndTimeUTC:          e.EndTimeUTC,
		EventDate:           eventDate,
		EventYearMonth:      e.StartTimeUTC.Format("2006-01"),
		DurationMin:         e.DurationMin,
		DowntimeMin:         e.DowntimeMin,
		CostEUR:             e.CostEUR,
		CostPerDowntimeMin:  costPerDowntime(e.CostEUR, e.DowntimeMin),
		PartsUsed:           append([]string{}, e.PartsUsed...),
		PartsCount:          len(e.PartsUsed),
		NextDueDate:         e.NextDueDate,
		DaysToNextDue:       daysToNextDue(e.StartTimeUTC, e.NextDueDate),
		TechnicianFound:     e.TechnicianFound,
		OperatorSkillLevel:  e.OperatorSkillLevel,
		OperatorReliability: e.OperatorReliability,
		DowntimeCategory:    classifyDowntime(e.DowntimeMin),
		CostDataQuality:     classifyCost(e.CostEUR),
		SeverityLevel:       classifySeverity(e.CostEUR, e.DowntimeMin, b.thresholds),
		IsUnplanned:         isUnplanned(e.Reason),
	}

	flags := make([]models.DataQualityFlag, 0, len(e.Flags)+2)
	flags = append(flags, e.Flags...)
	if !e.CostEUR.Valid {
		flags = append(flags, models.FlagPendingCost)
	}
	if !e.TechnicianFound {
		flags = append(flags, models.FlagTechnicianNotFound)
	}
	fact.DataQualityFlags = flags

	return fact
}

func classifyDowntime(downtime int64) models.DowntimeCategory {
	if downtime == 0 {
		return models.DowntimeMonitoring
	}
	return models.DowntimeProductive
}

func classifyCost(cost decimal.NullDecimal) models.CostDataQuality {
	if !cost.Valid {
		return models.CostPending
	}
	if cost.Decimal.IsZero() {
		return models.CostFreeOrInHouse
	}
	return models.CostConfirmed
}

// classifySeverity: NULL стоимость не удовлетворяет ни одному сравнению по стоимости
func classifySeverity(cost decimal.NullDecimal, downtime int64, t config.SeverityThresholds) models.SeverityLevel {
	if (cost.Valid && cost.Decimal.GreaterThan(t.HighCost)) || downtime > t.HighDowntime {
		return models.SeverityHigh
	}
	if (cost.Valid && cost.Decimal.GreaterThan(t.MediumCost)) || downtime > t.MediumDowntime {
		return models.SeverityMedium
	}
	return models.SeverityLow
}

// isUnplanned определяется только по причине, не по типу обслуживания
func isUnplanned(reason models.Reason) bool {
	return reason == models.ReasonUnplanned
}

// costPerDowntime - стоимость минуты простоя. Без простоя всегда 0, даже если стоимость неизвестна.
func costPerDowntime(cost decimal.NullDecimal, downtime int64) decimal.NullDecimal {
	if downtime <= 0 {
		return decimal.NewNullDecimal(decimal.Zero)
	}
	if !cost.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(cost.Decimal.Div(decimal.NewFromInt(downtime)).Round(2))
}

// daysToNextDue - число календарных дней от даты события до следующего обслуживания
func daysToNextDue(start time.Time, due sql.NullTime) sql.NullInt64 {
	if !due.Valid {
		return sql.NullInt64{}
	}
	eventDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	dueDay := time.Date(due.Time.Year(), due.Time.Month(), due.Time.Day(), 0, 0, 0, 0, time.UTC)
	return sql.NullInt64{Int64: int64(dueDay.Sub(eventDay).Hours() / 24), Valid: true}
}
