package models

import (
	"fmt"
	"strings"
)

// Правила проверки событий (в порядке применения)
const (
	RuleRequiredColumns   = "required_columns"
	RuleEventIDNotNull    = "event_id_not_null"
	RuleEventIDUnique     = "event_id_unique"
	RuleKeyFieldsNotNull  = "key_fields_not_null"
	RuleNonNegativeCost   = "non_negative_cost"
	RuleEndNotBeforeStart = "end_not_before_start"

	// Нефатальные правила
	RuleKnownMaintenanceType = "known_maintenance_type"
	RuleKnownReason          = "known_reason"
	RuleNegativeDowntime     = "negative_downtime"

	// Правила проверки справочника операторов
	RuleOperatorIDUnique = "operator_id_unique"
	RuleReliabilityRange = "reliability_range"

	// Правила проверки производственного датасета
	RuleOEERange           = "oee_range"
	RuleProducedWithinPlan = "produced_within_planned"
)

// IssueSeverity определяет, прерывает ли нарушение запуск
type IssueSeverity string

const (
	SeverityFatal   IssueSeverity = "fatal"
	SeverityWarning IssueSeverity = "warning"
)

// ValidationIssue - одно нарушенное правило
type ValidationIssue struct {
	Rule     string        `json:"rule"`
	Severity IssueSeverity `json:"severity"`
	Rows     []int         `json:"rows,omitempty"`
	EventIDs []string      `json:"event_ids,omitempty"`
	Message  string        `json:"message"`
}

// String форматирует нарушение для сообщений об ошибке
func (i ValidationIssue) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", i.Rule, i.Message)
	if len(i.Rows) > 0 {
		rows := make([]string, len(i.Rows))
		for k, r := range i.Rows {
			rows[k] = fmt.Sprint(r)
		}
		fmt.Fprintf(&b, " (строки %s)", strings.Join(rows, ", "))
	}
	return b.String()
}

// ValidationReport - результат проверки пакета
type ValidationReport struct {
	Table        string            `json:"table"`
	TotalRows    int               `json:"total_rows"`
	Passed       bool              `json:"passed"`
	ChecksPassed int               `json:"checks_passed"`
	ChecksFailed int               `json:"checks_failed"`
	Issues       []ValidationIssue `json:"issues"`
}

// Fatal возвращает только фатальные нарушения
func (r *ValidationReport) Fatal() []ValidationIssue {
	return r.filter(SeverityFatal)
}

// Warnings возвращает только предупреждения
func (r *ValidationReport) Warnings() []ValidationIssue {
	return r.filter(SeverityWarning)
}

func (r *ValidationReport) filter(severity IssueSeverity) []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			out = append(out, issue)
		}
	}
	return out
}

// RosterConflict - несколько записей справочника с одним operator_id
type RosterConflict struct {
	OperatorID string         `json:"operator_id"`
	Matches    int            `json:"matches"`
	Chosen     OperatorRecord `json:"chosen"`
}

// RunReport - отчёт о запуске конвейера
type RunReport struct {
	RowsIn            int                     `json:"rows_in"`
	RowsOut           int                     `json:"rows_out"`
	ExcludedCount     int                     `json:"excluded_count"`
	Excluded          []RowParseError         `json:"excluded"`
	SummaryGroups     int                     `json:"summary_groups"`
	Validation        *ValidationReport       `json:"validation"`
	RosterValidation  *ValidationReport       `json:"roster_validation"`
	FactoryValidation *ValidationReport       `json:"factory_validation,omitempty"`
	RosterConflicts   []RosterConflict        `json:"roster_conflicts"`
	FlagCounts        map[DataQualityFlag]int `json:"flag_counts"`
}
