package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// MaintenanceEventClean - событие после очистки: время в UTC, простой неотрицателен,
// список запчастей разобран. Стоимость передаётся как есть, включая NULL.
type MaintenanceEventClean struct {
	Row             int
	EventID         string
	FactoryID       string
	LineID          string
	TechnicianID    sql.NullString
	MaintenanceType MaintenanceType
	Reason          Reason
	StartTimeUTC    time.Time
	EndTimeUTC      time.Time
	DurationMin     int64
	CostEUR         decimal.NullDecimal
	DowntimeMin     int64
	PartsUsed       []string
	Outcome         sql.NullString
	NextDueDate     sql.NullTime

	// Флаги качества, выставленные при очистке
	Flags []DataQualityFlag
}

// EnrichedEvent - очищенное событие, соединённое со справочником операторов
type EnrichedEvent struct {
	MaintenanceEventClean

	TechnicianFound     bool
	OperatorSkillLevel  sql.NullString
	OperatorReliability sql.NullFloat64
}
