package load

import (
	"database/sql"
	"fmt"
)

// defaultBatchSize - число строк в одной транзакции
const defaultBatchSize = 100

// execBatched выполняет подготовленный запрос для n строк, фиксируя транзакцию каждые batchSize строк.
// Первая ошибка откатывает текущую транзакцию и прерывает загрузку.
func execBatched(db *sql.DB, query string, n, batchSize int, args func(i int) ([]interface{}, error), progress func(done int)) (int, error) {
	// Подготавливаем запрос
	stmt, err := db.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("ошибка при подготовке запроса: %w", err)
	}
	defer stmt.Close()

	processed := 0
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}

		// Начинаем транзакцию
		tx, err := db.Begin()
		if err != nil {
			return processed, fmt.Errorf("ошибка при начале транзакции: %w", err)
		}
		txStmt := tx.Stmt(stmt)

		for i := start; i < end; i++ {
			values, err := args(i)
			if err == nil {
				_, err = txStmt.Exec(values...)
			}
			if err != nil {
				txStmt.Close()
				tx.Rollback()
				return processed, fmt.Errorf("строка %d: %w", i, err)
			}
		}

		txStmt.Close()
		if err := tx.Commit(); err != nil {
			tx.Rollback()
			return processed, fmt.Errorf("ошибка при фиксации транзакции: %w", err)
		}

		processed = end
		if progress != nil {
			progress(processed)
		}
	}
	return processed, nil
}
