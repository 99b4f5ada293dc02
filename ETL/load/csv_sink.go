package load

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"time"

	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// Имена файлов выгрузки
const (
	FactsCSVFile    = "fact_maintenance_events.csv"
	SummaryCSVFile  = "summary_maintenance_metrics.csv"
	FactsArchive    = "fact_maintenance_events.jsonl.sz"
	SummaryWorkbook = "maintenance_summary.xlsx"
)

// CSVLoader выгружает факты и агрегаты в CSV
type CSVLoader struct {
	outputDir string
	logger    *utils.ETLLogger
}

// NewCSVLoader создает новый экземпляр CSVLoader
func NewCSVLoader(outputDir string, logger *utils.ETLLogger) *CSVLoader {
	return &CSVLoader{
		outputDir: outputDir,
		logger:    logger,
	}
}

// Name возвращает имя приёмника
func (l *CSVLoader) Name() string {
	return "csv"
}

// Load записывает оба CSV-файла
func (l *CSVLoader) Load(data *models.TransformedData) error {
	return commitStaged(func(batch *fileBatch) error { return l.stage(data, batch) })
}

func (l *CSVLoader) stage(data *models.TransformedData, batch *fileBatch) error {
	startTime := time.Now()

	factsPath := filepath.Join(l.outputDir, FactsCSVFile)
	err := batch.stage(factsPath, func(w *bufio.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(factColumns); err != nil {
			return err
		}
		for _, fact := range data.Facts {
			row, err := NewFactRecord(fact).Row()
			if err != nil {
				return fmt.Errorf("ошибка кодирования факта %s: %w", fact.EventID, err)
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("ошибка записи %s: %w", factsPath, err)
	}

	summaryPath := filepath.Join(l.outputDir, SummaryCSVFile)
	err = batch.stage(summaryPath, func(w *bufio.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(summaryColumns); err != nil {
			return err
		}
		for _, summary := range data.Summaries {
			if err := cw.Write(summaryRow(summary)); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("ошибка записи %s: %w", summaryPath, err)
	}

	l.logger.Info("CSV подготовлены в %s (%d фактов, %d агрегатов). Длительность: %v",
		l.outputDir, len(data.Facts), len(data.Summaries), time.Since(startTime))
	return nil
}
