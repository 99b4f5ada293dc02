package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MySQLETLLogRepository реализация ETLLogRepository для MySQL
type MySQLETLLogRepository struct {
	db *sql.DB
}

// NewMySQLETLLogRepository создает новый экземпляр MySQLETLLogRepository
func NewMySQLETLLogRepository(db *sql.DB) *MySQLETLLogRepository {
	return &MySQLETLLogRepository{
		db: db,
	}
}

const runLogColumns = `
	id, run_id, start_time, end_time, status,
	rows_in, rows_out, rows_excluded, summary_groups,
	IFNULL(error_message, ''), execution_time_seconds`

// CreateETLLogTable создает таблицу для логирования ETL процесса, если она не существует
func (r *MySQLETLLogRepository) CreateETLLogTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS etl_run_log (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		run_id CHAR(36) NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NULL,
		status ENUM('success', 'failed', 'in_progress') NOT NULL DEFAULT 'in_progress',
		rows_in INT DEFAULT 0,
		rows_out INT DEFAULT 0,
		rows_excluded INT DEFAULT 0,
		summary_groups INT DEFAULT 0,
		error_message TEXT,
		execution_time_seconds FLOAT,
		UNIQUE KEY uq_etl_run_log_run_id (run_id)
	);
	`

	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка при создании таблицы etl_run_log: %w", err)
	}

	return nil
}

// CreateLogEntry создает новую запись о запуске ETL
func (r *MySQLETLLogRepository) CreateLogEntry(runID string, startTime time.Time) (int64, error) {
	result, err := r.db.Exec(
		`INSERT INTO etl_run_log (run_id, start_time, status) VALUES (?, ?, 'in_progress')`,
		runID, startTime,
	)
	if err != nil {
		return 0, fmt.Errorf("ошибка при создании записи о запуске ETL: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка при получении ID созданной записи: %w", err)
	}

	return id, nil
}

// UpdateLogEntrySuccess обновляет запись при успешном завершении ETL
func (r *MySQLETLLogRepository) UpdateLogEntrySuccess(id int64, endTime time.Time, report RunReport) error {
	query := `
	UPDATE etl_run_log
	SET
		end_time = ?,
		status = 'success',
		rows_in = ?,
		rows_out = ?,
		rows_excluded = ?,
		summary_groups = ?,
		execution_time_seconds = TIMESTAMPDIFF(MICROSECOND, start_time, ?) / 1000000
	WHERE id = ?
	`

	_, err := r.db.Exec(query,
		endTime,
		report.RowsIn,
		report.RowsOut,
		report.ExcludedCount,
		report.SummaryGroups,
		endTime,
		id,
	)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске ETL: %w", err)
	}

	return nil
}

// UpdateLogEntryFailure обновляет запись при неудачном завершении ETL
func (r *MySQLETLLogRepository) UpdateLogEntryFailure(id int64, endTime time.Time, errorMessage string) error {
	query := `
	UPDATE etl_run_log
	SET
		end_time = ?,
		status = 'failed',
		error_message = ?,
		execution_time_seconds = TIMESTAMPDIFF(MICROSECOND, start_time, ?) / 1000000
	WHERE id = ?
	`

	if _, err := r.db.Exec(query, endTime, errorMessage, endTime, id); err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске ETL: %w", err)
	}

	return nil
}

// GetLastSuccessfulRun получает информацию о последнем успешном запуске ETL
func (r *MySQLETLLogRepository) GetLastSuccessfulRun() (*ETLRunLog, error) {
	return r.lastRunWithStatus(RunStatusSuccess)
}

// GetETLRunStats получает статистику о запусках ETL за определенный период
func (r *MySQLETLLogRepository) GetETLRunStats(days int) ([]ETLRunLog, error) {
	query := `SELECT` + runLogColumns + `
	FROM etl_run_log
	WHERE start_time >= DATE_SUB(NOW(), INTERVAL ? DAY)
	ORDER BY start_time DESC
	`

	rows, err := r.db.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении статистики запусков ETL: %w", err)
	}
	defer rows.Close()

	var logs []ETLRunLog
	for rows.Next() {
		log, err := scanRunLog(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании записи о запуске ETL: %w", err)
		}
		logs = append(logs, *log)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка после итерации по записям о запусках ETL: %w", err)
	}

	return logs, nil
}

// GetETLStateMonitor получает информацию о текущем состоянии ETL процесса
func (r *MySQLETLLogRepository) GetETLStateMonitor() (*ETLStateMonitor, error) {
	lastSuccessful, err := r.lastRunWithStatus(RunStatusSuccess)
	if err != nil {
		return nil, err
	}

	lastFailed, err := r.lastRunWithStatus(RunStatusFailed)
	if err != nil {
		return nil, err
	}

	current, err := r.lastRunWithStatus(RunStatusInProgress)
	if err != nil {
		return nil, err
	}

	// Получаем общую статистику запусков
	var totalSuccess, totalFailed sql.NullInt64
	var avgExecutionTime sql.NullFloat64
	var totalRows sql.NullInt64

	err = r.db.QueryRow(`
		SELECT
			SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
			AVG(CASE WHEN status = 'success' THEN execution_time_seconds ELSE NULL END),
			SUM(CASE WHEN status = 'success' THEN rows_out ELSE 0 END)
		FROM etl_run_log
	`).Scan(&totalSuccess, &totalFailed, &avgExecutionTime, &totalRows)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении статистики запусков ETL: %w", err)
	}

	return &ETLStateMonitor{
		LastSuccessfulRun:       lastSuccessful,
		LastFailedRun:           lastFailed,
		CurrentRun:              current,
		TotalSuccessfulRuns:     int(totalSuccess.Int64),
		TotalFailedRuns:         int(totalFailed.Int64),
		AvgExecutionTimeSeconds: avgExecutionTime.Float64,
		TotalRowsProcessed:      int(totalRows.Int64),
	}, nil
}

// lastRunWithStatus возвращает последний запуск с указанным статусом или nil
func (r *MySQLETLLogRepository) lastRunWithStatus(status string) (*ETLRunLog, error) {
	query := `SELECT` + runLogColumns + `
	FROM etl_run_log
	WHERE status = ?
	ORDER BY start_time DESC
	LIMIT 1
	`

	log, err := scanRunLog(r.db.QueryRow(query, status))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка при получении запуска ETL со статусом %s: %w", status, err)
	}

	return log, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunLog(row rowScanner) (*ETLRunLog, error) {
	var log ETLRunLog
	var endTime sql.NullTime
	var execTime sql.NullFloat64

	err := row.Scan(
		&log.ID, &log.RunID, &log.StartTime, &endTime, &log.Status,
		&log.RowsIn, &log.RowsOut, &log.RowsExcluded, &log.SummaryGroups,
		&log.ErrorMessage, &execTime,
	)
	if err != nil {
		return nil, err
	}

	log.EndTime = endTime.Time
	log.ExecutionTimeSeconds = execTime.Float64
	return &log, nil
}
