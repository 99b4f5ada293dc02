package load

import (
	"database/sql"
	"fmt"
)

// Таблицы OLAP
const (
	FactTable    = "fact_maintenance_events"
	SummaryTable = "summary_maintenance_metrics"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS ` + FactTable + ` (
		event_id VARCHAR(64) NOT NULL PRIMARY KEY,
		factory_id VARCHAR(64) NOT NULL,
		line_id VARCHAR(64) NOT NULL,
		technician_id VARCHAR(64) NULL,
		maintenance_type VARCHAR(32) NOT NULL,
		reason VARCHAR(64) NOT NULL,
		outcome VARCHAR(255) NULL,
		start_time_utc DATETIME NOT NULL,
		end_time_utc DATETIME NOT NULL,
		event_date DATE NOT NULL,
		event_year_month CHAR(7) NOT NULL,
		duration_min INT NOT NULL,
		downtime_min INT NOT NULL,
		cost_eur DECIMAL(12,2) NULL,
		cost_per_downtime_min DECIMAL(12,2) NULL,
		parts_used JSON NOT NULL,
		parts_count INT NOT NULL,
		next_due_date DATE NULL,
		days_to_next_due INT NULL,
		technician_found BOOLEAN NOT NULL,
		operator_skill_level VARCHAR(64) NULL,
		operator_reliability DOUBLE NULL,
		downtime_category VARCHAR(32) NOT NULL,
		cost_data_quality VARCHAR(32) NOT NULL,
		severity_level VARCHAR(16) NOT NULL,
		is_unplanned BOOLEAN NOT NULL,
		data_quality_flags JSON NOT NULL,
		load_timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_line_date (line_id, event_date)
	)`,
	`CREATE TABLE IF NOT EXISTS ` + SummaryTable + ` (
		line_id VARCHAR(64) NOT NULL,
		maintenance_type VARCHAR(32) NOT NULL,
		metric_date DATE NOT NULL,
		event_count INT NOT NULL,
		total_cost DECIMAL(14,2) NOT NULL,
		pending_cost_count INT NOT NULL,
		mean_cost DECIMAL(12,2) NULL,
		min_cost DECIMAL(12,2) NULL,
		max_cost DECIMAL(12,2) NULL,
		total_downtime INT NOT NULL,
		mean_downtime DOUBLE NOT NULL,
		min_downtime INT NOT NULL,
		max_downtime INT NOT NULL,
		stddev_downtime DOUBLE NOT NULL,
		unplanned_count INT NOT NULL,
		unplanned_fraction DOUBLE NOT NULL,
		unplanned_pct DECIMAL(5,2) NOT NULL,
		load_timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (line_id, maintenance_type, metric_date)
	)`,
}

// EnsureSchema создаёт таблицы фактов и агрегатов, если их нет
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ошибка создания схемы OLAP: %w", err)
		}
	}
	return nil
}
