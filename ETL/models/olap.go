package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// DowntimeCategory категория простоя
type DowntimeCategory string

const (
	DowntimeMonitoring DowntimeCategory = "monitoring"
	DowntimeProductive DowntimeCategory = "productive_downtime"
)

// CostDataQuality качество данных о стоимости
type CostDataQuality string

const (
	CostPending       CostDataQuality = "pending_cost"
	CostFreeOrInHouse CostDataQuality = "free_or_in_house"
	CostConfirmed     CostDataQuality = "confirmed"
)

// SeverityLevel уровень серьёзности события
type SeverityLevel string

const (
	SeverityHigh   SeverityLevel = "High"
	SeverityMedium SeverityLevel = "Medium"
	SeverityLow    SeverityLevel = "Low"
)

// DataQualityFlag - нефатальное, ожидаемое состояние данных, которое выводится вместе с фактом
type DataQualityFlag string

const (
	FlagPendingCost        DataQualityFlag = "pending_cost"
	FlagTechnicianNotFound DataQualityFlag = "technician_not_found"
	FlagDowntimeRepaired   DataQualityFlag = "downtime_repaired"
	FlagDowntimeMissing    DataQualityFlag = "downtime_missing"
	FlagMissingParts       DataQualityFlag = "missing_parts"
	FlagEndBeforeStart     DataQualityFlag = "end_before_start"
	FlagInvalidNextDueDate DataQualityFlag = "invalid_next_due_date"
)

// FactMaintenanceEvent - аналитический факт, одна запись на событие
type FactMaintenanceEvent struct {
	EventID         string
	FactoryID       string
	LineID          string
	TechnicianID    sql.NullString
	MaintenanceType MaintenanceType
	Reason          Reason
	Outcome         sql.NullString

	StartTimeUTC   time.Time
	EndTimeUTC     time.Time
	EventDate      string
	EventYearMonth string
	DurationMin    int64

	DowntimeMin        int64
	CostEUR            decimal.NullDecimal
	CostPerDowntimeMin decimal.NullDecimal
	PartsUsed          []string
	PartsCount         int

	NextDueDate   sql.NullTime
	DaysToNextDue sql.NullInt64

	TechnicianFound     bool
	OperatorSkillLevel  sql.NullString
	OperatorReliability sql.NullFloat64

	DowntimeCategory DowntimeCategory
	CostDataQuality  CostDataQuality
	SeverityLevel    SeverityLevel
	IsUnplanned      bool

	DataQualityFlags []DataQualityFlag
}

// SummaryMetric - агрегат по (линия, тип обслуживания, дата)
type SummaryMetric struct {
	LineID          string
	MaintenanceType MaintenanceType
	Date            string

	EventCount       int
	CostCount        int
	PendingCostCount int
	TotalCost        decimal.Decimal
	MeanCost         decimal.NullDecimal
	MinCost          decimal.NullDecimal
	MaxCost          decimal.NullDecimal

	TotalDowntime  int64
	MeanDowntime   float64
	MinDowntime    int64
	MaxDowntime    int64
	StddevDowntime float64

	UnplannedCount    int
	UnplannedFraction float64
	UnplannedPct      decimal.Decimal
}
