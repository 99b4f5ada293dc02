package extractors

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// readCSV читает CSV с заголовком. Строки могут быть короче заголовка,
// недостающие колонки отмечаются при разборе.
func readCSV(r io.Reader) (rawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return rawTable{}, fmt.Errorf("пустой CSV: нет заголовка")
	}
	if err != nil {
		return rawTable{}, fmt.Errorf("ошибка чтения заголовка CSV: %w", err)
	}

	table := rawTable{header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rawTable{}, fmt.Errorf("ошибка чтения CSV: %w", err)
		}
		table.rows = append(table.rows, record)
	}
	return table, nil
}
