package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/LilVoxy/maintenance_analytics/ETL/api"
	"github.com/LilVoxy/maintenance_analytics/ETL/config"
	"github.com/LilVoxy/maintenance_analytics/ETL/extractors"
	"github.com/LilVoxy/maintenance_analytics/ETL/load"
	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/transform"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// ETLRunner связывает фазы Extract, Transform и Load с журналом запусков
type ETLRunner struct {
	config      config.ETLConfig
	db          *sql.DB
	logger      *utils.ETLLogger
	extractor   *extractors.Extractor
	pipeline    *transform.Pipeline
	loadManager *load.LoadManager
	etlLogRepo  models.ETLLogRepository
	notifier    *api.Notifier

	// Одновременно выполняется не более одного запуска
	running sync.Mutex
}

// NewETLRunner создает новый экземпляр ETLRunner.
// Подключение к MySQL открывается только при sinks.load_database=true;
// иначе журнал запусков хранится в памяти.
func NewETLRunner(etlConfig config.ETLConfig, logger *utils.ETLLogger) (*ETLRunner, error) {
	logger.Info("Инициализация ETL Runner")

	var db *sql.DB
	var etlLogRepo models.ETLLogRepository
	if etlConfig.Sinks.LoadDatabase {
		var err error
		db, err = config.ConnectDatabase(etlConfig.OLAPConfig)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
		}
		etlLogRepo = models.NewMySQLETLLogRepository(db)
	} else {
		etlLogRepo = models.NewMemoryETLLogRepository()
	}

	// Создаем таблицу логов, если она еще не существует
	if err := etlLogRepo.CreateETLLogTable(); err != nil {
		config.CloseDatabase(db)
		return nil, fmt.Errorf("ошибка при создании таблицы логов ETL: %w", err)
	}

	// Создаем конвейер преобразования
	pipeline, err := transform.NewPipeline(etlConfig.Pipeline, logger)
	if err != nil {
		config.CloseDatabase(db)
		return nil, err
	}

	// Создаем загрузчик
	loadManager, err := load.NewLoadManager(etlConfig.Sinks, db, logger)
	if err != nil {
		config.CloseDatabase(db)
		return nil, err
	}

	return &ETLRunner{
		config:      etlConfig,
		db:          db,
		logger:      logger,
		extractor:   extractors.NewExtractor(etlConfig.Input, logger),
		pipeline:    pipeline,
		loadManager: loadManager,
		etlLogRepo:  etlLogRepo,
	}, nil
}

// SetNotifier подключает рассылку уведомлений о завершении запусков
func (r *ETLRunner) SetNotifier(notifier *api.Notifier) {
	r.notifier = notifier
}

// Close закрывает соединение с базой данных
func (r *ETLRunner) Close() {
	r.logger.Info("Завершение работы ETL Runner")
	if err := config.CloseDatabase(r.db); err != nil {
		r.logger.Error("%v", err)
	}
	r.logger.Sync()
}

// ExecuteETL выполняет полный ETL процесс. Артефакты пишутся только после
// успешного преобразования; при нарушении схемы приёмники не вызываются.
func (r *ETLRunner) ExecuteETL() (*models.RunReport, error) {
	if !r.running.TryLock() {
		return nil, models.ErrRunInProgress
	}
	defer r.running.Unlock()

	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	startTime := time.Now()
	logger.LogETLStart()

	// Создаем запись в журнале ETL
	logID, err := r.etlLogRepo.CreateLogEntry(runID, startTime)
	if err != nil {
		logger.Error("Ошибка при создании записи в журнале ETL: %v", err)
		return nil, fmt.Errorf("ошибка при создании записи в журнале ETL: %w", err)
	}

	// 1. Фаза извлечения данных (Extract)
	extractedData, err := r.extractor.Extract()
	if err != nil {
		return nil, r.fail(logger, runID, logID, fmt.Errorf("ошибка в фазе Extract: %w", err))
	}

	// 2. Фаза трансформации данных (Transform)
	transformedData, err := r.pipeline.Transform(extractedData)
	if err != nil {
		return nil, r.fail(logger, runID, logID, fmt.Errorf("ошибка в фазе Transform: %w", err))
	}

	// 3. Фаза загрузки данных (Load)
	if err := r.loadManager.Load(transformedData); err != nil {
		return nil, r.fail(logger, runID, logID, fmt.Errorf("ошибка в фазе Load: %w", err))
	}

	report := transformedData.Report
	endTime := time.Now()
	if err := r.etlLogRepo.UpdateLogEntrySuccess(logID, endTime, report); err != nil {
		logger.Error("Ошибка при обновлении записи в журнале ETL: %v", err)
	}

	logger.LogETLComplete(startTime, report.RowsIn, report.RowsOut, report.ExcludedCount)
	r.notify(api.RunEvent{
		RunID:    runID,
		Status:   models.RunStatusSuccess,
		Report:   &report,
		Finished: endTime,
	})
	return &report, nil
}

// fail фиксирует неудачный запуск в журнале и уведомляет подписчиков
func (r *ETLRunner) fail(logger *utils.ETLLogger, runID string, logID int64, err error) error {
	logger.Error("%v", err)
	if errors.Is(err, models.ErrSchemaViolation) {
		logger.Error("Пакет отклонён проверкой схемы, результаты не записаны")
	}

	endTime := time.Now()
	if updateErr := r.etlLogRepo.UpdateLogEntryFailure(logID, endTime, err.Error()); updateErr != nil {
		logger.Error("Ошибка при обновлении записи в журнале ETL: %v", updateErr)
	}
	r.notify(api.RunEvent{
		RunID:    runID,
		Status:   models.RunStatusFailed,
		Error:    err.Error(),
		Finished: endTime,
	})
	return err
}

func (r *ETLRunner) notify(event api.RunEvent) {
	if r.notifier != nil {
		r.notifier.Publish(event)
	}
}

// ValidateFile проверяет файл событий без преобразования и записи результатов
func (r *ETLRunner) ValidateFile(path string) (*models.ValidationReport, error) {
	batch, err := r.extractor.ExtractEvents(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", path, err)
	}
	return r.pipeline.Validate(batch)
}

// StartScheduler запускает планировщик для регулярного выполнения ETL и блокируется до отмены ctx
func (r *ETLRunner) StartScheduler(ctx context.Context) error {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	r.logger.Info("Запуск планировщика ETL с интервалом %v", r.config.RunInterval)

	_, err := scheduler.Every(r.config.RunInterval).Do(func() {
		r.logger.Info("Запланированный запуск ETL процесса")
		if _, err := r.ExecuteETL(); err != nil {
			r.logger.Error("Ошибка при выполнении запланированного ETL: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("ошибка при настройке планировщика: %w", err)
	}

	// Запускаем планировщик
	scheduler.StartAsync()

	// Ожидаем сигнал остановки из контекста
	<-ctx.Done()

	// Останавливаем планировщик
	scheduler.Stop()
	r.logger.Info("Планировщик ETL остановлен")
	return nil
}

// Handler возвращает обработчики HTTP API поверх этого запуска
func (r *ETLRunner) Handler() *api.Handler {
	return api.NewHandler(r.etlLogRepo, r, r.pipeline, r.notifier, r.logger)
}
