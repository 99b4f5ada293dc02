package extractors

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LilVoxy/maintenance_analytics/ETL/config"
	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// Extractor координирует извлечение событий обслуживания и справочника операторов из файлов
type Extractor struct {
	input  config.InputConfig
	logger *utils.ETLLogger
}

// NewExtractor создает новый экземпляр Extractor
func NewExtractor(input config.InputConfig, logger *utils.ETLLogger) *Extractor {
	return &Extractor{
		input:  input,
		logger: logger,
	}
}

// Extract читает входные файлы из каталога input.dir.
// Производственный датасет читается, только если задан input.factory_file.
func (e *Extractor) Extract() (*models.ExtractedData, error) {
	startTime := time.Now()
	e.logger.LogExtractStart()

	var extractedData models.ExtractedData
	var err error

	// Извлекаем события обслуживания
	eventsPath := filepath.Join(e.input.Dir, e.input.EventsFile)
	extractedData.Events, err = e.ExtractEvents(eventsPath)
	if err != nil {
		e.logger.Error("Ошибка при извлечении событий: %v", err)
		return nil, fmt.Errorf("ошибка извлечения событий: %w", err)
	}

	// Извлекаем справочник операторов
	operatorsPath := filepath.Join(e.input.Dir, e.input.OperatorsFile)
	extractedData.Operators, err = e.ExtractOperators(operatorsPath)
	if err != nil {
		e.logger.Error("Ошибка при извлечении справочника операторов: %v", err)
		return nil, fmt.Errorf("ошибка извлечения справочника операторов: %w", err)
	}

	// Извлекаем производственный датасет
	if e.input.FactoryFile != "" {
		factoryPath := filepath.Join(e.input.Dir, e.input.FactoryFile)
		extractedData.Factory, err = e.ExtractFactory(factoryPath)
		if err != nil {
			e.logger.Error("Ошибка при извлечении производственного датасета: %v", err)
			return nil, fmt.Errorf("ошибка извлечения производственного датасета: %w", err)
		}
		e.logger.Info("Извлечено %d строк производственного датасета", len(extractedData.Factory))
	}

	e.logger.LogExtractComplete(len(extractedData.Events.Events), len(extractedData.Operators), time.Since(startTime))
	return &extractedData, nil
}

// ExtractEvents читает файл событий (CSV или XLSX по расширению)
func (e *Extractor) ExtractEvents(path string) (models.RawBatch, error) {
	table, err := readTableFile(path)
	if err != nil {
		return models.RawBatch{}, err
	}
	if err := checkRowRange(path, len(table.rows), e.input.EventsRowRange); err != nil {
		return models.RawBatch{}, err
	}
	e.logger.Debug("Прочитан %s: %d строк, %d колонок", path, len(table.rows), len(table.header))
	return parseEvents(table, path)
}

// ExtractEventsFromReader разбирает CSV с событиями из произвольного потока (тело HTTP-запроса)
func ExtractEventsFromReader(r io.Reader, source string) (models.RawBatch, error) {
	table, err := readCSV(r)
	if err != nil {
		return models.RawBatch{}, err
	}
	return parseEvents(table, source)
}

// ExtractOperators читает справочник операторов
func (e *Extractor) ExtractOperators(path string) ([]models.OperatorRecord, error) {
	table, err := readTableFile(path)
	if err != nil {
		return nil, err
	}
	if err := checkRowRange(path, len(table.rows), e.input.RosterRowRange); err != nil {
		return nil, err
	}
	e.logger.Debug("Прочитан %s: %d строк, %d колонок", path, len(table.rows), len(table.header))
	return parseOperators(table)
}

// ExtractFactory читает производственный датасет (OEE и объёмы выпуска)
func (e *Extractor) ExtractFactory(path string) ([]models.FactoryRecord, error) {
	table, err := readTableFile(path)
	if err != nil {
		return nil, err
	}
	if err := checkRowRange(path, len(table.rows), e.input.FactoryRowRange); err != nil {
		return nil, err
	}
	e.logger.Debug("Прочитан %s: %d строк, %d колонок", path, len(table.rows), len(table.header))
	factory, err := parseFactory(table)
	if err != nil {
		return nil, err
	}
	if factory == nil {
		factory = []models.FactoryRecord{}
	}
	return factory, nil
}

func readTableFile(path string) (rawTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return rawTable{}, fmt.Errorf("не удалось открыть %s: %w", path, err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(file)
	case ".csv", "":
		return readCSV(file)
	default:
		return rawTable{}, fmt.Errorf("неподдерживаемый формат файла %s", path)
	}
}

// checkRowRange проверяет ожидаемое количество строк. Нулевой Max отключает проверку.
func checkRowRange(path string, count int, r config.RowRange) error {
	if r.Max == 0 {
		return nil
	}
	if count < r.Min || count > r.Max {
		return fmt.Errorf("%s: количество строк %d вне ожидаемого диапазона [%d, %d]", path, count, r.Min, r.Max)
	}
	return nil
}
