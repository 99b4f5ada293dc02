package transform

import (
	"fmt"
	"time"

	"github.com/LilVoxy/maintenance_analytics/ETL/config"
	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// Pipeline координирует стадии преобразования: проверка, очистка, обогащение,
// построение фактов и агрегация. Не выполняет ввод-вывод и не хранит состояние между запусками.
type Pipeline struct {
	logger      *utils.ETLLogger
	validator   *Validator
	cleaner     *Cleaner
	enricher    *Enricher
	factBuilder *FactBuilder
	aggregator  *Aggregator
}

// NewPipeline создает новый экземпляр Pipeline
func NewPipeline(cfg config.PipelineConfig, logger *utils.ETLLogger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("некорректные параметры преобразования: %w", err)
	}

	validator, err := NewValidator(cfg, logger)
	if err != nil {
		return nil, err
	}
	cleaner, err := NewCleaner(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		logger:      logger,
		validator:   validator,
		cleaner:     cleaner,
		enricher:    NewEnricher(logger),
		factBuilder: NewFactBuilder(cfg, logger),
		aggregator:  NewAggregator(logger),
	}, nil
}

// Validate выполняет только проверку схемы пакета
func (p *Pipeline) Validate(batch models.RawBatch) (*models.ValidationReport, error) {
	return p.validator.Validate(batch)
}

// Transform выполняет полный процесс преобразования извлечённых данных
func (p *Pipeline) Transform(extractedData *models.ExtractedData) (*models.TransformedData, error) {
	if extractedData == nil {
		return nil, fmt.Errorf("нет данных для преобразования")
	}

	data, err := p.Run(extractedData.Events, extractedData.Operators)
	if err != nil {
		return nil, err
	}

	// Производственный датасет проверяется только если он был извлечён
	if extractedData.Factory != nil {
		data.Report.FactoryValidation = p.validator.ValidateFactory(extractedData.Factory)
	}
	return data, nil
}

// Run прогоняет пакет через все стадии. При нарушении схемы возвращает
// *models.SchemaViolation и не возвращает ни фактов, ни агрегатов.
func (p *Pipeline) Run(batch models.RawBatch, roster []models.OperatorRecord) (*models.TransformedData, error) {
	startTime := time.Now()
	p.logger.Info("Начало фазы Transform (Преобразование данных)")

	// 1. Проверка схемы
	validation, err := p.validator.Validate(batch)
	if err != nil {
		p.logger.Error("Пакет отклонён: %v", err)
		return nil, err
	}
	rosterValidation := p.validator.ValidateRoster(roster)

	// 2. Очистка
	p.logger.Info("Очистка событий...")
	cleaned, excluded := p.cleaner.Clean(batch.Events)

	// 3. Обогащение данными операторов
	p.logger.Info("Соединение со справочником операторов...")
	enriched, conflicts := p.enricher.Enrich(cleaned, roster)

	// 4. Построение фактов
	p.logger.Info("Построение фактов...")
	facts := p.factBuilder.BuildAll(enriched)

	// 5. Агрегация
	p.logger.Info("Агрегация...")
	summaries := p.aggregator.Aggregate(facts)

	report := models.RunReport{
		RowsIn:           len(batch.Events),
		RowsOut:          len(facts),
		ExcludedCount:    len(excluded),
		Excluded:         excluded,
		SummaryGroups:    len(summaries),
		Validation:       validation,
		RosterValidation: rosterValidation,
		RosterConflicts:  conflicts,
		FlagCounts:       countFlags(facts),
	}
	if report.Excluded == nil {
		report.Excluded = []models.RowParseError{}
	}

	// Каждая входная строка либо стала фактом, либо попала в список исключённых
	if report.RowsOut+report.ExcludedCount != report.RowsIn {
		return nil, fmt.Errorf("нарушен баланс строк: на входе %d, фактов %d, исключено %d",
			report.RowsIn, report.RowsOut, report.ExcludedCount)
	}

	p.logger.Info("Фаза Transform завершена. Длительность: %v", time.Since(startTime))
	return &models.TransformedData{
		Facts:     facts,
		Summaries: summaries,
		Report:    report,
	}, nil
}

func countFlags(facts []models.FactMaintenanceEvent) map[models.DataQualityFlag]int {
	counts := make(map[models.DataQualityFlag]int)
	for _, fact := range facts {
		for _, flag := range fact.DataQualityFlags {
			counts[flag]++
		}
	}
	return counts
}
