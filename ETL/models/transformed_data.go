package models

// TransformedData содержит результат конвейера для загрузки в приёмники
type TransformedData struct {
	// Факты
	Facts []FactMaintenanceEvent

	// Агрегаты
	Summaries []SummaryMetric

	// Метаданные
	Report RunReport
}
