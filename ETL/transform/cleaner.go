package transform

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/LilVoxy/maintenance_analytics/ETL/config"
	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// Cleaner нормализует проверенные события: время в UTC, простой >= 0, список запчастей.
// Строка может быть исключена только при неразбираемом времени.
type Cleaner struct {
	parser     timestampParser
	separator  string
	dateLayout string
	logger     *utils.ETLLogger
}

// NewCleaner создает новый экземпляр Cleaner
func NewCleaner(cfg config.PipelineConfig, logger *utils.ETLLogger) (*Cleaner, error) {
	parser, err := newTimestampParser(cfg.SourceTimezone, cfg.TimestampLayouts)
	if err != nil {
		return nil, err
	}
	dateLayout := cfg.DateLayout
	if dateLayout == "" {
		dateLayout = "2006-01-02"
	}
	return &Cleaner{
		parser:     parser,
		separator:  cfg.PartsSeparator,
		dateLayout: dateLayout,
		logger:     logger,
	}, nil
}

// Clean очищает пакет. Исключённые строки возвращаются отдельным списком.
func (c *Cleaner) Clean(events []models.MaintenanceEventRaw) ([]models.MaintenanceEventClean, []models.RowParseError) {
	cleaned := make([]models.MaintenanceEventClean, 0, len(events))
	var excluded []models.RowParseError

	for _, raw := range events {
		event, parseErr := c.cleanEvent(raw)
		if parseErr != nil {
			c.logger.Error("Строка исключена: %v", parseErr)
			excluded = append(excluded, *parseErr)
			continue
		}
		cleaned = append(cleaned, event)
	}

	c.logger.Info("Очищено событий: %d, исключено: %d", len(cleaned), len(excluded))
	return cleaned, excluded
}

func (c *Cleaner) cleanEvent(raw models.MaintenanceEventRaw) (models.MaintenanceEventClean, *models.RowParseError) {
	eventID := strings.TrimSpace(raw.EventID)

	start, err := c.parser.parse(raw.StartTime)
	if err != nil {
		return models.MaintenanceEventClean{}, &models.RowParseError{
			Row: raw.Row, EventID: eventID, Field: models.ColStartTime, Value: raw.StartTime, Reason: err.Error(),
		}
	}
	end, err := c.parser.parse(raw.EndTime)
	if err != nil {
		return models.MaintenanceEventClean{}, &models.RowParseError{
			Row: raw.Row, EventID: eventID, Field: models.ColEndTime, Value: raw.EndTime, Reason: err.Error(),
		}
	}

	event := models.MaintenanceEventClean{
		Row:             raw.Row,
		EventID:         eventID,
		FactoryID:       strings.TrimSpace(raw.FactoryID),
		LineID:          strings.TrimSpace(raw.LineID),
		TechnicianID:    trimNullString(raw.TechnicianID),
		MaintenanceType: models.MaintenanceType(strings.TrimSpace(string(raw.MaintenanceType))),
		Reason:          models.Reason(strings.TrimSpace(string(raw.Reason))),
		StartTimeUTC:    start,
		EndTimeUTC:      end,
		CostEUR:         raw.CostEUR,
		Outcome:         trimNullString(raw.Outcome),
	}

	// Отрицательная длительность - следствие end < start, обнуляем
	event.DurationMin = int64(end.Sub(start) / time.Minute)
	if event.DurationMin < 0 || end.Before(start) {
		event.DurationMin = 0
		event.Flags = append(event.Flags, models.FlagEndBeforeStart)
	}

	switch {
	case !raw.DowntimeMin.Valid:
		event.DowntimeMin = 0
		event.Flags = append(event.Flags, models.FlagDowntimeMissing)
		c.logger.Debug("Событие %s: простой не указан, принят равным 0", eventID)
	case raw.DowntimeMin.Int64 < 0:
		event.DowntimeMin = 0
		event.Flags = append(event.Flags, models.FlagDowntimeRepaired)
		c.logger.Warn("Событие %s: отрицательный простой %d мин обнулён", eventID, raw.DowntimeMin.Int64)
	default:
		event.DowntimeMin = raw.DowntimeMin.Int64
	}

	event.PartsUsed = ParseParts(raw.PartsUsed, c.separator)
	if len(event.PartsUsed) == 0 {
		event.Flags = append(event.Flags, models.FlagMissingParts)
	}

	if raw.NextDueDate.Valid && strings.TrimSpace(raw.NextDueDate.String) != "" {
		due, err := time.ParseInLocation(c.dateLayout, strings.TrimSpace(raw.NextDueDate.String), time.UTC)
		if err != nil {
			event.Flags = append(event.Flags, models.FlagInvalidNextDueDate)
			c.logger.Debug("Событие %s: некорректная next_due_date %s", eventID, strconv.Quote(raw.NextDueDate.String))
		} else {
			event.NextDueDate = sql.NullTime{Time: due, Valid: true}
		}
	}

	return event, nil
}

// ParseParts разбивает список запчастей по разделителю, убирает пробелы и пустые элементы.
// Никогда не возвращает nil.
func ParseParts(value sql.NullString, separator string) []string {
	parts := []string{}
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return parts
	}
	for _, token := range strings.Split(value.String, separator) {
		if token = strings.TrimSpace(token); token != "" {
			parts = append(parts, token)
		}
	}
	return parts
}

func trimNullString(s sql.NullString) sql.NullString {
	if !s.Valid {
		return s
	}
	trimmed := strings.TrimSpace(s.String)
	if trimmed == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: trimmed, Valid: true}
}
