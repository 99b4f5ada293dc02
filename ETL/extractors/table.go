package extractors

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/LilVoxy/maintenance_analytics/ETL/models"
)

// nullTokens - значения ячеек, которые считаются отсутствующими
var nullTokens = map[string]struct{}{
	"":     {},
	"null": {},
	"NULL": {},
	"NaN":  {},
	"None": {},
}

// rawTable - прочитанная таблица: заголовок и строки в исходном порядке
type rawTable struct {
	header []string
	rows   [][]string
}

// columnIndex возвращает отображение имя колонки -> позиция в заголовке
func (t rawTable) columnIndex() map[string]int {
	index := make(map[string]int, len(t.header))
	for i, name := range t.header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, exists := index[name]; !exists {
			index[name] = i
		}
	}
	return index
}

// rowCursor читает ячейки одной строки по имени колонки
type rowCursor struct {
	index  map[string]int
	values []string
	absent []string
}

// cell возвращает значение и признак наличия колонки в строке
func (c *rowCursor) cell(column string) (string, bool) {
	pos, ok := c.index[column]
	if !ok || pos >= len(c.values) {
		return "", false
	}
	return c.values[pos], true
}

// required читает обязательную колонку, отмечая её отсутствие
func (c *rowCursor) required(column string) string {
	value, ok := c.cell(column)
	if !ok {
		c.absent = append(c.absent, column)
		return ""
	}
	if isNull(value) {
		return ""
	}
	return value
}

// nullable читает колонку, допускающую NULL
func (c *rowCursor) nullable(column string, mustExist bool) sql.NullString {
	value, ok := c.cell(column)
	if !ok {
		if mustExist {
			c.absent = append(c.absent, column)
		}
		return sql.NullString{}
	}
	if isNull(value) {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func isNull(value string) bool {
	_, ok := nullTokens[strings.TrimSpace(value)]
	return ok
}

// parseEvents разбирает таблицу событий. Ошибка числового формата прерывает извлечение.
func parseEvents(table rawTable, source string) (models.RawBatch, error) {
	batch := models.RawBatch{
		Source:  source,
		Columns: make([]string, 0, len(table.header)),
		Events:  make([]models.MaintenanceEventRaw, 0, len(table.rows)),
	}
	index := table.columnIndex()
	for name := range index {
		batch.Columns = append(batch.Columns, name)
	}
	sort.Strings(batch.Columns)

	for i, values := range table.rows {
		row := i + 2 // строка 1 - заголовок
		c := &rowCursor{index: index, values: values}

		event := models.MaintenanceEventRaw{
			Row:             row,
			EventID:         c.required(models.ColEventID),
			FactoryID:       c.required(models.ColFactoryID),
			LineID:          c.required(models.ColLineID),
			TechnicianID:    c.nullable(models.ColTechnicianID, true),
			MaintenanceType: models.MaintenanceType(c.required(models.ColMaintenanceType)),
			Reason:          models.Reason(c.required(models.ColReason)),
			StartTime:       c.required(models.ColStartTime),
			EndTime:         c.required(models.ColEndTime),
			PartsUsed:       c.nullable(models.ColPartsUsed, true),
			Outcome:         c.nullable(models.ColOutcome, false),
			NextDueDate:     c.nullable(models.ColNextDueDate, false),
		}

		cost := c.nullable(models.ColCostEUR, true)
		if cost.Valid {
			value, err := decimal.NewFromString(strings.TrimSpace(cost.String))
			if err != nil {
				return batch, fmt.Errorf("строка %d: некорректное значение %s=%q: %w", row, models.ColCostEUR, cost.String, err)
			}
			event.CostEUR = decimal.NewNullDecimal(value)
		}

		downtime := c.nullable(models.ColDowntimeMin, true)
		if downtime.Valid {
			value, err := parseWholeNumber(downtime.String)
			if err != nil {
				return batch, fmt.Errorf("строка %d: некорректное значение %s=%q: %w", row, models.ColDowntimeMin, downtime.String, err)
			}
			event.DowntimeMin = sql.NullInt64{Int64: value, Valid: true}
		}

		event.Absent = c.absent
		batch.Events = append(batch.Events, event)
	}

	return batch, nil
}

// parseOperators разбирает справочник операторов. Допускается заголовок reliability_score.
func parseOperators(table rawTable) ([]models.OperatorRecord, error) {
	index := table.columnIndex()
	if _, ok := index[models.ColReliability]; !ok {
		if pos, alt := index[models.ColReliabilityScoreAlt]; alt {
			index[models.ColReliability] = pos
		}
	}
	for _, column := range []string{models.ColOperatorID, models.ColSkillLevel, models.ColReliability} {
		if _, ok := index[column]; !ok {
			return nil, fmt.Errorf("в справочнике операторов нет колонки %s", column)
		}
	}

	operators := make([]models.OperatorRecord, 0, len(table.rows))
	for i, values := range table.rows {
		row := i + 2
		c := &rowCursor{index: index, values: values}

		reliability := c.nullable(models.ColReliability, true)
		if !reliability.Valid {
			return nil, fmt.Errorf("строка %d: пустое значение %s", row, models.ColReliability)
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(reliability.String), 64)
		if err != nil {
			return nil, fmt.Errorf("строка %d: некорректное значение %s=%q: %w", row, models.ColReliability, reliability.String, err)
		}

		operators = append(operators, models.OperatorRecord{
			OperatorID:  strings.TrimSpace(c.required(models.ColOperatorID)),
			SkillLevel:  strings.TrimSpace(c.required(models.ColSkillLevel)),
			Reliability: score,
		})
	}
	return operators, nil
}

// parseWholeNumber принимает целые числа, в том числе записанные как "45.0"
func parseWholeNumber(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("дробное значение %v", f)
	}
	return int64(f), nil
}

// parseFactory разбирает производственный датасет. Пустые значения остаются NULL,
// нечисловые прерывают извлечение.
func parseFactory(table rawTable) ([]models.FactoryRecord, error) {
	index := table.columnIndex()
	for _, column := range models.RequiredFactoryColumns {
		if _, ok := index[column]; !ok {
			return nil, fmt.Errorf("в производственном датасете нет колонки %s", column)
		}
	}

	records := make([]models.FactoryRecord, 0, len(table.rows))
	for i, values := range table.rows {
		row := i + 2
		c := &rowCursor{index: index, values: values}
		record := models.FactoryRecord{
			Row:       row,
			FactoryID: strings.TrimSpace(c.nullable(models.ColFactoryID, false).String),
			LineID:    strings.TrimSpace(c.nullable(models.ColLineID, false).String),
		}

		for column, target := range map[string]*sql.NullFloat64{
			models.ColAvailability: &record.Availability,
			models.ColPerformance:  &record.Performance,
			models.ColQuality:      &record.Quality,
		} {
			value := c.nullable(column, false)
			if !value.Valid {
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(value.String), 64)
			if err != nil {
				return nil, fmt.Errorf("строка %d: некорректное значение %s=%q: %w", row, column, value.String, err)
			}
			*target = sql.NullFloat64{Float64: f, Valid: true}
		}

		for column, target := range map[string]*sql.NullInt64{
			models.ColPlannedQty:  &record.PlannedQty,
			models.ColProducedQty: &record.ProducedQty,
		} {
			value := c.nullable(column, false)
			if !value.Valid {
				continue
			}
			n, err := parseWholeNumber(value.String)
			if err != nil {
				return nil, fmt.Errorf("строка %d: некорректное значение %s=%q: %w", row, column, value.String, err)
			}
			*target = sql.NullInt64{Int64: n, Valid: true}
		}

		records = append(records, record)
	}
	return records, nil
}
