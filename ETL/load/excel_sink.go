package load

import (
	"bufio"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// Листы сводной книги
const (
	SummarySheet = "summary"
	QualitySheet = "data_quality"
)

// ExcelLoader формирует книгу Excel с агрегатами и сводкой по качеству данных
type ExcelLoader struct {
	outputDir string
	logger    *utils.ETLLogger
}

// NewExcelLoader создает новый экземпляр ExcelLoader
func NewExcelLoader(outputDir string, logger *utils.ETLLogger) *ExcelLoader {
	return &ExcelLoader{
		outputDir: outputDir,
		logger:    logger,
	}
}

// Name возвращает имя приёмника
func (l *ExcelLoader) Name() string {
	return "excel"
}

// Load записывает книгу maintenance_summary.xlsx
func (l *ExcelLoader) Load(data *models.TransformedData) error {
	return commitStaged(func(batch *fileBatch) error { return l.stage(data, batch) })
}

func (l *ExcelLoader) stage(data *models.TransformedData, batch *fileBatch) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("ошибка переименования листа: %w", err)
	}
	if _, err := book.NewSheet(QualitySheet); err != nil {
		return fmt.Errorf("ошибка создания листа %s: %w", QualitySheet, err)
	}

	headerStyle, err := book.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("ошибка создания стиля: %w", err)
	}

	// 1. Агрегаты
	if err := writeSheetRow(book, SummarySheet, 1, toCells(summaryColumns)); err != nil {
		return err
	}
	for i, summary := range data.Summaries {
		if err := writeSheetRow(book, SummarySheet, i+2, summaryCells(summary)); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(summaryColumns))
	book.SetCellStyle(SummarySheet, "A1", lastCol+"1", headerStyle)
	book.SetColWidth(SummarySheet, "A", lastCol, 18)
	book.SetPanes(SummarySheet, &excelize.Panes{Freeze: true, Split: false, XSplit: 0, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	// 2. Качество данных
	report := data.Report
	quality := [][]interface{}{
		{"metric", "value"},
		{"rows_in", report.RowsIn},
		{"rows_out", report.RowsOut},
		{"excluded_count", report.ExcludedCount},
		{"summary_groups", report.SummaryGroups},
		{"roster_conflicts", len(report.RosterConflicts)},
	}
	flags := make([]string, 0, len(report.FlagCounts))
	for flag := range report.FlagCounts {
		flags = append(flags, string(flag))
	}
	sort.Strings(flags)
	for _, flag := range flags {
		quality = append(quality, []interface{}{"flag_" + flag, report.FlagCounts[models.DataQualityFlag(flag)]})
	}
	for i, row := range quality {
		if err := writeSheetRow(book, QualitySheet, i+1, row); err != nil {
			return err
		}
	}
	book.SetCellStyle(QualitySheet, "A1", "B1", headerStyle)
	book.SetColWidth(QualitySheet, "A", "A", 30)

	path := filepath.Join(l.outputDir, SummaryWorkbook)
	err = batch.stage(path, func(w *bufio.Writer) error {
		_, err := book.WriteTo(w)
		return err
	})
	if err != nil {
		return fmt.Errorf("ошибка записи книги %s: %w", path, err)
	}

	l.logger.Info("Книга Excel подготовлена в %s (%d агрегатов)", path, len(data.Summaries))
	return nil
}

func writeSheetRow(book *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := book.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("ошибка записи строки %d листа %s: %w", row, sheet, err)
	}
	return nil
}

// summaryCells - числовые колонки пишутся числами, NULL - пустой ячейкой
func summaryCells(s models.SummaryMetric) []interface{} {
	return []interface{}{
		s.LineID, string(s.MaintenanceType), s.Date, s.EventCount, s.TotalCost.InexactFloat64(),
		s.PendingCostCount, nullDecimalCell(s.MeanCost), nullDecimalCell(s.MinCost), nullDecimalCell(s.MaxCost),
		s.TotalDowntime, s.MeanDowntime, s.MinDowntime, s.MaxDowntime, s.StddevDowntime,
		s.UnplannedCount, s.UnplannedFraction, s.UnplannedPct.InexactFloat64(),
	}
}

func nullDecimalCell(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
