package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaViolation - фатальное нарушение схемы пакета; запуск прерывается без результатов
var ErrSchemaViolation = errors.New("schema violation")

// SchemaViolation перечисляет нарушенные правила и строки, на которых они нарушены
type SchemaViolation struct {
	Violations []ValidationIssue
}

// Error реализует интерфейс error
func (e *SchemaViolation) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%s: %s", ErrSchemaViolation, strings.Join(parts, "; "))
}

// Is позволяет проверять ошибку через errors.Is(err, ErrSchemaViolation)
func (e *SchemaViolation) Is(target error) bool {
	return target == ErrSchemaViolation
}

// Rules возвращает список нарушенных правил в порядке проверки
func (e *SchemaViolation) Rules() []string {
	rules := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		rules = append(rules, v.Rule)
	}
	return rules
}

// RowParseError - строка, исключённая из результата из-за неразбираемого значения
type RowParseError struct {
	Row     int    `json:"row"`
	EventID string `json:"event_id"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Reason  string `json:"reason"`
}

// Error реализует интерфейс error
func (e RowParseError) Error() string {
	return fmt.Sprintf("строка %d (event_id=%q): поле %s=%q: %s", e.Row, e.EventID, e.Field, e.Value, e.Reason)
}

// ErrRunInProgress возвращается при попытке запустить ETL, пока предыдущий запуск не завершён
var ErrRunInProgress = errors.New("etl run already in progress")
