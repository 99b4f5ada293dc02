package transform

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/LilVoxy/maintenance_analytics/ETL/config"
	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// Validator проверяет пакет сырых событий. Данные не изменяются.
type Validator struct {
	parser timestampParser
	logger *utils.ETLLogger
}

// NewValidator создает новый экземпляр Validator
func NewValidator(cfg config.PipelineConfig, logger *utils.ETLLogger) (*Validator, error) {
	parser, err := newTimestampParser(cfg.SourceTimezone, cfg.TimestampLayouts)
	if err != nil {
		return nil, err
	}
	return &Validator{parser: parser, logger: logger}, nil
}

// reportBuilder накапливает результаты проверок
type reportBuilder struct {
	report *models.ValidationReport
}

func (b *reportBuilder) record(issue *models.ValidationIssue) {
	if issue == nil {
		b.report.ChecksPassed++
		return
	}
	b.report.ChecksFailed++
	b.report.Issues = append(b.report.Issues, *issue)
}

// Validate проверяет пакет событий. Отчёт возвращается всегда;
// при фатальных нарушениях дополнительно возвращается *models.SchemaViolation.
func (v *Validator) Validate(batch models.RawBatch) (*models.ValidationReport, error) {
	b := &reportBuilder{report: &models.ValidationReport{
		Table:     "maintenance_events",
		TotalRows: len(batch.Events),
	}}

	// 1. Обязательные колонки. Без них остальные проверки не имеют смысла.
	b.record(checkRequiredColumns(batch))
	if len(b.report.Fatal()) > 0 {
		return v.finish(b.report)
	}

	// 2. event_id заполнен и уникален
	b.record(checkEventIDNotNull(batch.Events))
	b.record(checkEventIDUnique(batch.Events))

	// 3. factory_id, line_id, maintenance_type заполнены
	b.record(checkKeyFieldsNotNull(batch.Events))

	// 4. Стоимость неотрицательна
	b.record(checkNonNegativeCost(batch.Events))

	// 5. Время окончания не раньше начала - только предупреждение
	b.record(v.checkEndNotBeforeStart(batch.Events))

	// Нефатальные проверки значений перечислений и простоя
	b.record(checkKnownMaintenanceType(batch.Events))
	b.record(checkKnownReason(batch.Events))
	b.record(checkNegativeDowntime(batch.Events))

	return v.finish(b.report)
}

func (v *Validator) finish(report *models.ValidationReport) (*models.ValidationReport, error) {
	fatal := report.Fatal()
	report.Passed = len(fatal) == 0

	for _, w := range report.Warnings() {
		v.logger.Warn("Предупреждение проверки: %s", w.String())
	}

	v.logger.Info("Проверка событий: строк %d, проверок пройдено %d, не пройдено %d",
		report.TotalRows, report.ChecksPassed, report.ChecksFailed)

	if !report.Passed {
		violation := &models.SchemaViolation{Violations: fatal}
		v.logger.Error("Пакет отклонён: %v", violation)
		return report, violation
	}
	return report, nil
}

func checkRequiredColumns(batch models.RawBatch) *models.ValidationIssue {
	present := make(map[string]bool, len(batch.Columns))
	for _, c := range batch.Columns {
		present[c] = true
	}

	var missing []string
	for _, c := range models.RequiredEventColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &models.ValidationIssue{
			Rule:     models.RuleRequiredColumns,
			Severity: models.SeverityFatal,
			Message:  fmt.Sprintf("в источнике нет обязательных колонок: %s", strings.Join(missing, ", ")),
		}
	}

	required := make(map[string]bool, len(models.RequiredEventColumns))
	for _, c := range models.RequiredEventColumns {
		required[c] = true
	}

	rows, ids := matchRows(batch.Events, func(e models.MaintenanceEventRaw) bool {
		for _, c := range e.Absent {
			if required[c] {
				return true
			}
		}
		return false
	})
	return rowIssue(models.RuleRequiredColumns, models.SeverityFatal, rows, ids,
		fmt.Sprintf("в %d строках не хватает обязательных колонок", len(rows)))
}

func checkEventIDNotNull(events []models.MaintenanceEventRaw) *models.ValidationIssue {
	rows, _ := matchRows(events, func(e models.MaintenanceEventRaw) bool {
		return strings.TrimSpace(e.EventID) == ""
	})
	return rowIssue(models.RuleEventIDNotNull, models.SeverityFatal, rows, nil,
		fmt.Sprintf("event_id не заполнен в %d строках", len(rows)))
}

func checkEventIDUnique(events []models.MaintenanceEventRaw) *models.ValidationIssue {
	byID := make(map[string][]int)
	for _, e := range events {
		id := strings.TrimSpace(e.EventID)
		if id == "" {
			continue
		}
		byID[id] = append(byID[id], e.Row)
	}

	var duplicates []string
	for id, rows := range byID {
		if len(rows) > 1 {
			duplicates = append(duplicates, id)
		}
	}
	sort.Strings(duplicates)

	var rows []int
	var ids []string
	for _, id := range duplicates {
		for _, r := range byID[id] {
			rows = append(rows, r)
			ids = append(ids, id)
		}
	}
	return rowIssue(models.RuleEventIDUnique, models.SeverityFatal, rows, ids,
		fmt.Sprintf("дублирующиеся event_id: %s", strings.Join(duplicates, ", ")))
}

func checkKeyFieldsNotNull(events []models.MaintenanceEventRaw) *models.ValidationIssue {
	missing := make(map[string]int)
	rows, ids := matchRows(events, func(e models.MaintenanceEventRaw) bool {
		bad := false
		for col, value := range map[string]string{
			models.ColFactoryID:       e.FactoryID,
			models.ColLineID:          e.LineID,
			models.ColMaintenanceType: string(e.MaintenanceType),
		} {
			if strings.TrimSpace(value) == "" {
				missing[col]++
				bad = true
			}
		}
		return bad
	})

	cols := make([]string, 0, len(missing))
	for c, n := range missing {
		cols = append(cols, fmt.Sprintf("%s=%d", c, n))
	}
	sort.Strings(cols)
	return rowIssue(models.RuleKeyFieldsNotNull, models.SeverityFatal, rows, ids,
		fmt.Sprintf("пустые ключевые поля: %s", strings.Join(cols, ", ")))
}

func checkNonNegativeCost(events []models.MaintenanceEventRaw) *models.ValidationIssue {
	rows, ids := matchRows(events, func(e models.MaintenanceEventRaw) bool {
		return e.CostEUR.Valid && e.CostEUR.Decimal.IsNegative()
	})
	return rowIssue(models.RuleNonNegativeCost, models.SeverityFatal, rows, ids,
		fmt.Sprintf("отрицательная стоимость в %d строках", len(rows)))
}

// checkEndNotBeforeStart не фатальна: отрицательная длительность обнуляется при очистке.
// Строки с неразбираемым временем пропускаются - их исключит Cleaner.
func (v *Validator) checkEndNotBeforeStart(events []models.MaintenanceEventRaw) *models.ValidationIssue {
	rows, ids := matchRows(events, func(e models.MaintenanceEventRaw) bool {
		start, err := v.parser.parse(e.StartTime)
		if err != nil {
			return false
		}
		end, err := v.parser.parse(e.EndTime)
		if err != nil {
			return false
		}
		return end.Before(start)
	})
	return rowIssue(models.RuleEndNotBeforeStart, models.SeverityWarning, rows, ids,
		fmt.Sprintf("end_time раньше start_time в %d строках", len(rows)))
}

func checkKnownMaintenanceType(events []models.MaintenanceEventRaw) *models.ValidationIssue {
	rows, ids := matchRows(events, func(e models.MaintenanceEventRaw) bool {
		t := models.MaintenanceType(strings.TrimSpace(string(e.MaintenanceType)))
		return t != "" && !t.Known()
	})
	return rowIssue(models.RuleKnownMaintenanceType, models.SeverityWarning, rows, ids,
		fmt.Sprintf("неизвестный maintenance_type в %d строках", len(rows)))
}

func checkKnownReason(events []models.MaintenanceEventRaw) *models.ValidationIssue {
	rows, ids := matchRows(events, func(e models.MaintenanceEventRaw) bool {
		return !models.Reason(strings.TrimSpace(string(e.Reason))).Known()
	})
	return rowIssue(models.RuleKnownReason, models.SeverityWarning, rows, ids,
		fmt.Sprintf("неизвестная причина (reason) в %d строках", len(rows)))
}

func checkNegativeDowntime(events []models.MaintenanceEventRaw) *models.ValidationIssue {
	rows, ids := matchRows(events, func(e models.MaintenanceEventRaw) bool {
		return e.DowntimeMin.Valid && e.DowntimeMin.Int64 < 0
	})
	return rowIssue(models.RuleNegativeDowntime, models.SeverityWarning, rows, ids,
		fmt.Sprintf("отрицательный простой в %d строках, будет обнулён", len(rows)))
}

// matchRows возвращает номера строк и event_id событий, для которых match истинно
func matchRows(events []models.MaintenanceEventRaw, match func(models.MaintenanceEventRaw) bool) ([]int, []string) {
	var rows []int
	var ids []string
	for _, e := range events {
		if match(e) {
			rows = append(rows, e.Row)
			ids = append(ids, e.EventID)
		}
	}
	return rows, ids
}

// rowIssue возвращает nil, если нарушающих строк нет
func rowIssue(rule string, severity models.IssueSeverity, rows []int, ids []string, message string) *models.ValidationIssue {
	if len(rows) == 0 {
		return nil
	}
	return &models.ValidationIssue{
		Rule:     rule,
		Severity: severity,
		Rows:     rows,
		EventIDs: ids,
		Message:  message,
	}
}

// ValidateRoster проверяет справочник операторов. Нарушения не фатальны:
// дубликаты разрешает Enricher, выход за диапазон только сообщается.
func (v *Validator) ValidateRoster(roster []models.OperatorRecord) *models.ValidationReport {
	b := &reportBuilder{report: &models.ValidationReport{
		Table:     "operators",
		TotalRows: len(roster),
	}}

	counts := make(map[string]int)
	for _, op := range roster {
		counts[strings.TrimSpace(op.OperatorID)]++
	}
	var duplicates []string
	for id, n := range counts {
		if n > 1 {
			duplicates = append(duplicates, id)
		}
	}
	sort.Strings(duplicates)
	if len(duplicates) > 0 {
		b.record(&models.ValidationIssue{
			Rule:     models.RuleOperatorIDUnique,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("дублирующиеся operator_id: %s", strings.Join(duplicates, ", ")),
		})
	} else {
		b.record(nil)
	}

	var outOfRange []string
	for _, op := range roster {
		if op.Reliability < 0 || op.Reliability > 100 {
			outOfRange = append(outOfRange, op.OperatorID)
		}
	}
	if len(outOfRange) > 0 {
		b.record(&models.ValidationIssue{
			Rule:     models.RuleReliabilityRange,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("reliability вне диапазона [0, 100]: %s", strings.Join(outOfRange, ", ")),
		})
	} else {
		b.record(nil)
	}

	b.report.Passed = true
	for _, w := range b.report.Issues {
		v.logger.Warn("Справочник операторов: %s", w.String())
	}
	v.logger.Info("Проверка справочника операторов: строк %d, замечаний %d", len(roster), len(b.report.Issues))
	return b.report
}

// ValidateFactory проверяет производственный датасет. Запуск не прерывается:
// компоненты OEE вне [0, 1] делают отчёт непройденным, превышение плана выпуска только сообщается.
func (v *Validator) ValidateFactory(records []models.FactoryRecord) *models.ValidationReport {
	b := &reportBuilder{report: &models.ValidationReport{
		Table:     "manufacturing_factory",
		TotalRows: len(records),
		Passed:    true,
	}}

	oee := []struct {
		column string
		value  func(models.FactoryRecord) sql.NullFloat64
	}{
		{models.ColAvailability, func(r models.FactoryRecord) sql.NullFloat64 { return r.Availability }},
		{models.ColPerformance, func(r models.FactoryRecord) sql.NullFloat64 { return r.Performance }},
		{models.ColQuality, func(r models.FactoryRecord) sql.NullFloat64 { return r.Quality }},
	}
	for _, component := range oee {
		rows := factoryRows(records, func(r models.FactoryRecord) bool {
			x := component.value(r)
			return x.Valid && (x.Float64 < 0 || x.Float64 > 1)
		})
		if len(rows) > 0 {
			b.report.Passed = false
		}
		b.record(rowIssue(models.RuleOEERange, models.SeverityWarning, rows, nil,
			fmt.Sprintf("%s вне диапазона [0, 1] в %d строках", component.column, len(rows))))
	}

	rows := factoryRows(records, func(r models.FactoryRecord) bool {
		return r.PlannedQty.Valid && r.ProducedQty.Valid && r.ProducedQty.Int64 > r.PlannedQty.Int64
	})
	b.record(rowIssue(models.RuleProducedWithinPlan, models.SeverityWarning, rows, nil,
		fmt.Sprintf("produced_qty больше planned_qty в %d строках", len(rows))))

	for _, w := range b.report.Issues {
		v.logger.Warn("Производственный датасет: %s", w.String())
	}
	v.logger.Info("Проверка производственного датасета: строк %d, пройдена: %v", len(records), b.report.Passed)
	return b.report
}

func factoryRows(records []models.FactoryRecord, match func(models.FactoryRecord) bool) []int {
	var rows []int
	for _, r := range records {
		if match(r) {
			rows = append(rows, r.Row)
		}
	}
	return rows
}
