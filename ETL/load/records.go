package load

import (
	"encoding/json"

	"github.com/LilVoxy/maintenance_analytics/ETL/models"
)

// TimestampLayout - формат времени во всех выгрузках
const TimestampLayout = "2006-01-02 15:04:05"

// FactRecord - плоское представление факта для файловых выгрузок
type FactRecord struct {
	EventID             string   `json:"event_id"`
	FactoryID           string   `json:"factory_id"`
	LineID              string   `json:"line_id"`
	TechnicianID        *string  `json:"technician_id"`
	MaintenanceType     string   `json:"maintenance_type"`
	Reason              string   `json:"reason"`
	Outcome             *string  `json:"outcome"`
	StartTimeUTC        string   `json:"start_time_utc"`
	EndTimeUTC          string   `json:"end_time_utc"`
	EventDate           string   `json:"event_date"`
	EventYearMonth      string   `json:"event_year_month"`
	DurationMin         int64    `json:"duration_min"`
	DowntimeMin         int64    `json:"downtime_min"`
	CostEUR             *string  `json:"cost_eur"`
	CostPerDowntimeMin  *string  `json:"cost_per_downtime_min"`
	PartsUsed           []string `json:"parts_used"`
	PartsCount          int      `json:"parts_count"`
	NextDueDate         *string  `json:"next_due_date"`
	DaysToNextDue       *int64   `json:"days_to_next_due"`
	TechnicianFound     bool     `json:"technician_found"`
	OperatorSkillLevel  *string  `json:"operator_skill_level"`
	OperatorReliability *float64 `json:"operator_reliability"`
	DowntimeCategory    string   `json:"downtime_category"`
	CostDataQuality     string   `json:"cost_data_quality"`
	SeverityLevel       string   `json:"severity_level"`
	IsUnplanned         bool     `json:"is_unplanned"`
	DataQualityFlags    []string `json:"data_quality_flags"`
}

// factColumns - порядок колонок фактов в CSV и Excel
var factColumns = []string{
	"event_id", "factory_id", "line_id", "technician_id", "maintenance_type", "reason", "outcome",
	"start_time_utc", "end_time_utc", "event_date", "event_year_month", "duration_min",
	"downtime_min", "cost_eur", "cost_per_downtime_min", "parts_used", "parts_count",
	"next_due_date", "days_to_next_due", "technician_found", "operator_skill_level",
	"operator_reliability", "downtime_category", "cost_data_quality", "severity_level",
	"is_unplanned", "data_quality_flags",
}

// NewFactRecord преобразует факт в плоскую запись
func NewFactRecord(f models.FactMaintenanceEvent) FactRecord {
	record := FactRecord{
		EventID:          f.EventID,
		FactoryID:        f.FactoryID,
		LineID:           f.LineID,
		MaintenanceType:  string(f.MaintenanceType),
		Reason:           string(f.Reason),
		StartTimeUTC:     f.StartTimeUTC.UTC().Format(TimestampLayout),
		EndTimeUTC:       f.EndTimeUTC.UTC().Format(TimestampLayout),
		EventDate:        f.EventDate,
		EventYearMonth:   f.EventYearMonth,
		DurationMin:      f.DurationMin,
		DowntimeMin:      f.DowntimeMin,
		PartsUsed:        append([]string{}, f.PartsUsed...),
		PartsCount:       f.PartsCount,
		TechnicianFound:  f.TechnicianFound,
		DowntimeCategory: string(f.DowntimeCategory),
		CostDataQuality:  string(f.CostDataQuality),
		SeverityLevel:    string(f.SeverityLevel),
		IsUnplanned:      f.IsUnplanned,
		DataQualityFlags: make([]string, 0, len(f.DataQualityFlags)),
	}

	if f.TechnicianID.Valid {
		record.TechnicianID = &f.TechnicianID.String
	}
	if f.Outcome.Valid {
		record.Outcome = &f.Outcome.String
	}
	if f.CostEUR.Valid {
		cost := f.CostEUR.Decimal.StringFixed(2)
		record.CostEUR = &cost
	}
	if f.CostPerDowntimeMin.Valid {
		ratio := f.CostPerDowntimeMin.Decimal.StringFixed(2)
		record.CostPerDowntimeMin = &ratio
	}
	if f.NextDueDate.Valid {
		due := f.NextDueDate.Time.Format("2006-01-02")
		record.NextDueDate = &due
	}
	if f.DaysToNextDue.Valid {
		record.DaysToNextDue = &f.DaysToNextDue.Int64
	}
	if f.OperatorSkillLevel.Valid {
		record.OperatorSkillLevel = &f.OperatorSkillLevel.String
	}
	if f.OperatorReliability.Valid {
		record.OperatorReliability = &f.OperatorReliability.Float64
	}
	for _, flag := range f.DataQualityFlags {
		record.DataQualityFlags = append(record.DataQualityFlags, string(flag))
	}

	return record
}

// Row возвращает значения в порядке factColumns. Списки кодируются в JSON.
func (r FactRecord) Row() ([]string, error) {
	parts, err := json.Marshal(r.PartsUsed)
	if err != nil {
		return nil, err
	}
	flags, err := json.Marshal(r.DataQualityFlags)
	if err != nil {
		return nil, err
	}

	return []string{
		r.EventID, r.FactoryID, r.LineID, optString(r.TechnicianID), r.MaintenanceType, r.Reason, optString(r.Outcome),
		r.StartTimeUTC, r.EndTimeUTC, r.EventDate, r.EventYearMonth, formatInt(r.DurationMin),
		formatInt(r.DowntimeMin), optString(r.CostEUR), optString(r.CostPerDowntimeMin), string(parts), formatInt(int64(r.PartsCount)),
		optString(r.NextDueDate), optInt(r.DaysToNextDue), formatBool(r.TechnicianFound), optString(r.OperatorSkillLevel),
		optFloat(r.OperatorReliability), r.DowntimeCategory, r.CostDataQuality, r.SeverityLevel,
		formatBool(r.IsUnplanned), string(flags),
	}, nil
}

// summaryColumns - порядок колонок агрегатов
var summaryColumns = []string{
	"line_id", "maintenance_type", "date", "event_count", "total_cost", "pending_cost_count",
	"mean_cost", "min_cost", "max_cost", "total_downtime", "mean_downtime", "min_downtime",
	"max_downtime", "stddev_downtime", "unplanned_count", "unplanned_fraction", "unplanned_pct",
}

// summaryRow возвращает значения агрегата в порядке summaryColumns
func summaryRow(s models.SummaryMetric) []string {
	return []string{
		s.LineID, string(s.MaintenanceType), s.Date, formatInt(int64(s.EventCount)), s.TotalCost.StringFixed(2),
		formatInt(int64(s.PendingCostCount)), optDecimal(s.MeanCost), optDecimal(s.MinCost), optDecimal(s.MaxCost),
		formatInt(s.TotalDowntime), formatFloat(s.MeanDowntime), formatInt(s.MinDowntime), formatInt(s.MaxDowntime),
		formatFloat(s.StddevDowntime), formatInt(int64(s.UnplannedCount)), formatFloat(s.UnplannedFraction),
		s.UnplannedPct.StringFixed(2),
	}
}
