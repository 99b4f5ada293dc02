package models

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryETLLogRepository хранит журнал запусков в памяти процесса.
// Используется, когда загрузка в БД отключена.
type MemoryETLLogRepository struct {
	mu     sync.RWMutex
	nextID int64
	logs   []ETLRunLog
	now    func() time.Time
}

// NewMemoryETLLogRepository создает пустой журнал в памяти
func NewMemoryETLLogRepository() *MemoryETLLogRepository {
	return &MemoryETLLogRepository{now: time.Now}
}

// CreateETLLogTable ничего не делает: хранилище уже готово
func (r *MemoryETLLogRepository) CreateETLLogTable() error {
	return nil
}

// CreateLogEntry создает новую запись о запуске ETL
func (r *MemoryETLLogRepository) CreateLogEntry(runID string, startTime time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.logs = append(r.logs, ETLRunLog{
		ID:        r.nextID,
		RunID:     runID,
		StartTime: startTime,
		Status:    RunStatusInProgress,
	})
	return r.nextID, nil
}

// UpdateLogEntrySuccess обновляет запись при успешном завершении ETL
func (r *MemoryETLLogRepository) UpdateLogEntrySuccess(id int64, endTime time.Time, report RunReport) error {
	return r.update(id, func(log *ETLRunLog) {
		log.EndTime = endTime
		log.Status = RunStatusSuccess
		log.RowsIn = report.RowsIn
		log.RowsOut = report.RowsOut
		log.RowsExcluded = report.ExcludedCount
		log.SummaryGroups = report.SummaryGroups
		log.ExecutionTimeSeconds = endTime.Sub(log.StartTime).Seconds()
	})
}

// UpdateLogEntryFailure обновляет запись при неудачном завершении ETL
func (r *MemoryETLLogRepository) UpdateLogEntryFailure(id int64, endTime time.Time, errorMessage string) error {
	return r.update(id, func(log *ETLRunLog) {
		log.EndTime = endTime
		log.Status = RunStatusFailed
		log.ErrorMessage = errorMessage
		log.ExecutionTimeSeconds = endTime.Sub(log.StartTime).Seconds()
	})
}

func (r *MemoryETLLogRepository) update(id int64, fn func(*ETLRunLog)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.logs {
		if r.logs[i].ID == id {
			fn(&r.logs[i])
			return nil
		}
	}
	return fmt.Errorf("запись журнала ETL с ID %d не найдена", id)
}

// GetLastSuccessfulRun получает информацию о последнем успешном запуске ETL
func (r *MemoryETLLogRepository) GetLastSuccessfulRun() (*ETLRunLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastWithStatus(RunStatusSuccess), nil
}

// GetETLRunStats возвращает запуски за последние days дней, новые первыми
func (r *MemoryETLLogRepository) GetETLRunStats(days int) ([]ETLRunLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	since := r.now().AddDate(0, 0, -days)
	var logs []ETLRunLog
	for _, log := range r.logs {
		if !log.StartTime.Before(since) {
			logs = append(logs, log)
		}
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].StartTime.After(logs[j].StartTime)
	})
	return logs, nil
}

// GetETLStateMonitor получает сводку о состоянии ETL
func (r *MemoryETLLogRepository) GetETLStateMonitor() (*ETLStateMonitor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	monitor := &ETLStateMonitor{
		LastSuccessfulRun: r.lastWithStatus(RunStatusSuccess),
		LastFailedRun:     r.lastWithStatus(RunStatusFailed),
		CurrentRun:        r.lastWithStatus(RunStatusInProgress),
	}

	var totalTime float64
	for _, log := range r.logs {
		switch log.Status {
		case RunStatusSuccess:
			monitor.TotalSuccessfulRuns++
			monitor.TotalRowsProcessed += log.RowsOut
			totalTime += log.ExecutionTimeSeconds
		case RunStatusFailed:
			monitor.TotalFailedRuns++
		}
	}
	if monitor.TotalSuccessfulRuns > 0 {
		monitor.AvgExecutionTimeSeconds = totalTime / float64(monitor.TotalSuccessfulRuns)
	}

	return monitor, nil
}

// lastWithStatus вызывается под блокировкой
func (r *MemoryETLLogRepository) lastWithStatus(status string) *ETLRunLog {
	var last *ETLRunLog
	for i := range r.logs {
		if r.logs[i].Status != status {
			continue
		}
		if last == nil || !r.logs[i].StartTime.Before(last.StartTime) {
			log := r.logs[i]
			last = &log
		}
	}
	return last
}
