package extractors

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// readXLSX читает первый лист книги Excel. Первая строка листа - заголовок.
func readXLSX(r io.Reader) (rawTable, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return rawTable{}, fmt.Errorf("ошибка открытия книги Excel: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return rawTable{}, fmt.Errorf("книга Excel не содержит листов")
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return rawTable{}, fmt.Errorf("ошибка чтения листа %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return rawTable{}, fmt.Errorf("лист %s пуст: нет заголовка", sheets[0])
	}

	table := rawTable{header: rows[0]}
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		table.rows = append(table.rows, row)
	}
	return table, nil
}

// isBlankRow - GetRows возвращает пустые строки между заполненными
func isBlankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
