package load

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/maintenance_analytics/ETL/config"
	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// LoadManager отвечает за управление фазой выгрузки результатов
type LoadManager struct {
	logger  *utils.ETLLogger
	loaders []Loader
}

// NewLoadManager создает LoadManager с приёмниками, включёнными в конфигурации.
// db может быть nil, если загрузка в базу отключена.
func NewLoadManager(cfg config.SinkConfig, db *sql.DB, logger *utils.ETLLogger) (*LoadManager, error) {
	var loaders []Loader
	if cfg.WriteCSV {
		loaders = append(loaders, NewCSVLoader(cfg.OutputDir, logger))
	}
	if cfg.WriteArchive {
		loaders = append(loaders, NewArchiveLoader(cfg.OutputDir, logger))
	}
	if cfg.WriteExcel {
		loaders = append(loaders, NewExcelLoader(cfg.OutputDir, logger))
	}
	if cfg.LoadDatabase {
		if db == nil {
			return nil, fmt.Errorf("загрузка в базу включена, но подключение не передано")
		}
		loaders = append(loaders, NewOLAPLoader(db, logger))
	}
	return NewLoadManagerWith(logger, loaders...), nil
}

// NewLoadManagerWith создает LoadManager с явным списком приёмников
func NewLoadManagerWith(logger *utils.ETLLogger, loaders ...Loader) *LoadManager {
	return &LoadManager{
		logger:  logger,
		loaders: loaders,
	}
}

// fileStager - приёмник, который пишет файлы через общий fileBatch запуска
type fileStager interface {
	stage(data *models.TransformedData, batch *fileBatch) error
}

// Load выполняет фазу загрузки. Вызывается только для успешно преобразованного пакета.
// Файлы всех приёмников публикуются только после того, как все приёмники отработали без ошибок;
// при ошибке в каталоге выгрузки не остаётся файлов этого запуска.
func (m *LoadManager) Load(transformedData *models.TransformedData) error {
	if transformedData == nil {
		return fmt.Errorf("нет данных для загрузки")
	}

	startTime := time.Now()
	m.logger.Info("Начало фазы Load (Загрузка данных)")

	batch := &fileBatch{}
	for i, loader := range m.loaders {
		m.logger.Info("%d. Выгрузка в приёмник %s...", i+1, loader.Name())

		var err error
		if stager, ok := loader.(fileStager); ok {
			err = stager.stage(transformedData, batch)
		} else {
			err = loader.Load(transformedData)
		}
		if err != nil {
			batch.rollback()
			m.logger.Error("Ошибка при выгрузке в %s: %v", loader.Name(), err)
			return fmt.Errorf("ошибка при выгрузке в %s: %w", loader.Name(), err)
		}
	}

	if err := batch.commit(); err != nil {
		m.logger.Error("Ошибка публикации файлов выгрузки: %v", err)
		return fmt.Errorf("ошибка публикации файлов выгрузки: %w", err)
	}

	m.logger.Info("Фаза Load завершена. Длительность: %v", time.Since(startTime))
	return nil
}
