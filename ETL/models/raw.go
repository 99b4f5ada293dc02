package models

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// Имена колонок входного файла событий обслуживания
const (
	ColEventID         = "event_id"
	ColFactoryID       = "factory_id"
	ColLineID          = "line_id"
	ColTechnicianID    = "technician_id"
	ColMaintenanceType = "maintenance_type"
	ColReason          = "reason"
	ColStartTime       = "start_time"
	ColEndTime         = "end_time"
	ColCostEUR         = "cost_eur"
	ColDowntimeMin     = "downtime_min"
	ColPartsUsed       = "parts_used"
	ColOutcome         = "outcome"
	ColNextDueDate     = "next_due_date"
)

// RequiredEventColumns - колонки, которые должны присутствовать в каждой строке
var RequiredEventColumns = []string{
	ColEventID, ColFactoryID, ColLineID, ColTechnicianID, ColMaintenanceType,
	ColReason, ColStartTime, ColEndTime, ColCostEUR, ColDowntimeMin, ColPartsUsed,
}

// Имена колонок справочника операторов
const (
	ColOperatorID          = "operator_id"
	ColSkillLevel          = "skill_level"
	ColReliability         = "reliability"
	ColReliabilityScoreAlt = "reliability_score"
)

// Имена колонок производственного датасета
const (
	ColAvailability = "availability"
	ColPerformance  = "performance"
	ColQuality      = "quality"
	ColPlannedQty   = "planned_qty"
	ColProducedQty  = "produced_qty"
)

// RequiredFactoryColumns - колонки производственного датасета, по которым идут проверки
var RequiredFactoryColumns = []string{
	ColAvailability, ColPerformance, ColQuality, ColPlannedQty, ColProducedQty,
}

// MaintenanceType тип обслуживания
type MaintenanceType string

const (
	MaintenancePreventive  MaintenanceType = "Preventive"
	MaintenanceCorrective  MaintenanceType = "Corrective"
	MaintenanceInspection  MaintenanceType = "Inspection"
	MaintenanceCalibration MaintenanceType = "Calibration"
)

// Known сообщает, входит ли значение в перечисление
func (t MaintenanceType) Known() bool {
	switch t {
	case MaintenancePreventive, MaintenanceCorrective, MaintenanceInspection, MaintenanceCalibration:
		return true
	}
	return false
}

// Reason причина обслуживания
type Reason string

const (
	ReasonPlanned   Reason = "Planned Maintenance"
	ReasonUnplanned Reason = "Unplanned Breakdown"
)

// Known сообщает, входит ли значение в перечисление
func (r Reason) Known() bool {
	return r == ReasonPlanned || r == ReasonUnplanned
}

// MaintenanceEventRaw - событие обслуживания в том виде, в каком оно прочитано из источника.
// Пустая строка в ключевых полях означает отсутствие значения.
type MaintenanceEventRaw struct {
	Row             int // номер строки в источнике (заголовок - строка 1)
	EventID         string
	FactoryID       string
	LineID          string
	TechnicianID    sql.NullString
	MaintenanceType MaintenanceType
	Reason          Reason
	StartTime       string
	EndTime         string
	CostEUR         decimal.NullDecimal
	DowntimeMin     sql.NullInt64
	PartsUsed       sql.NullString
	Outcome         sql.NullString
	NextDueDate     sql.NullString

	// Колонки, отсутствующие в этой строке (короткая строка или нет в заголовке)
	Absent []string
}

// OperatorRecord - запись справочника операторов (только чтение)
type OperatorRecord struct {
	OperatorID  string  `json:"operator_id"`
	SkillLevel  string  `json:"skill_level"`
	Reliability float64 `json:"reliability"`
}

// FactoryRecord - строка производственного датасета (OEE и объёмы выпуска).
// Пустые значения не участвуют в проверках.
type FactoryRecord struct {
	Row          int
	FactoryID    string
	LineID       string
	Availability sql.NullFloat64
	Performance  sql.NullFloat64
	Quality      sql.NullFloat64
	PlannedQty   sql.NullInt64
	ProducedQty  sql.NullInt64
}

// RawBatch - пакет событий одного запуска вместе с заголовком источника
type RawBatch struct {
	Source  string
	Columns []string
	Events  []MaintenanceEventRaw
}

// ExtractedData содержит данные, извлечённые из источников
type ExtractedData struct {
	Events    RawBatch
	Operators []OperatorRecord

	// Производственный датасет; nil, если источник не настроен
	Factory []FactoryRecord
}
