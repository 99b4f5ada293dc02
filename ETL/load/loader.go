package load

import (
	"database/sql"
	"fmt"

	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// Loader интерфейс приёмника результатов конвейера
type Loader interface {
	// Name возвращает имя приёмника для логов
	Name() string

	// Load сохраняет факты и агрегаты одного запуска
	Load(data *models.TransformedData) error
}

// OLAPLoader реализация Loader для OLAP базы данных
type OLAPLoader struct {
	db     *sql.DB
	logger *utils.ETLLogger

	// Загрузчики для отдельных таблиц
	factLoader    *FactLoader
	summaryLoader *SummaryLoader
}

// NewOLAPLoader создает новый экземпляр OLAPLoader
func NewOLAPLoader(db *sql.DB, logger *utils.ETLLogger) *OLAPLoader {
	return &OLAPLoader{
		db:            db,
		logger:        logger,
		factLoader:    NewFactLoader(db, logger),
		summaryLoader: NewSummaryLoader(db, logger),
	}
}

// Name возвращает имя приёмника
func (l *OLAPLoader) Name() string {
	return "mysql"
}

// Load создаёт схему при необходимости и загружает факты, затем агрегаты
func (l *OLAPLoader) Load(data *models.TransformedData) error {
	if err := EnsureSchema(l.db); err != nil {
		return err
	}
	if err := l.factLoader.Load(data.Facts); err != nil {
		return fmt.Errorf("ошибка при загрузке фактов: %w", err)
	}
	if err := l.summaryLoader.Load(data.Summaries); err != nil {
		return fmt.Errorf("ошибка при загрузке агрегатов: %w", err)
	}
	return nil
}
