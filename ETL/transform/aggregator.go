package transform

import (
	"math"
	"sort"

	"github.com/jinzhu/now"
	"github.com/shopspring/decimal"

	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// Aggregator строит сводные метрики по (линия, тип обслуживания, дата UTC)
type Aggregator struct {
	logger *utils.ETLLogger
}

// NewAggregator создает новый экземпляр Aggregator
func NewAggregator(logger *utils.ETLLogger) *Aggregator {
	return &Aggregator{logger: logger}
}

type summaryKey struct {
	date            string
	lineID          string
	maintenanceType models.MaintenanceType
}

// summaryAccumulator накапливает значения одной группы
type summaryAccumulator struct {
	metric    models.SummaryMetric
	downtimes []int64
}

// Aggregate группирует факты. Каждый факт попадает ровно в одну группу,
// результат отсортирован по (дата, линия, тип обслуживания).
func (a *Aggregator) Aggregate(facts []models.FactMaintenanceEvent) []models.SummaryMetric {
	groups := make(map[summaryKey]*summaryAccumulator)

	for _, fact := range facts {
		key := summaryKey{
			date:            now.With(fact.StartTimeUTC.UTC()).BeginningOfDay().Format("2006-01-02"),
			lineID:          fact.LineID,
			maintenanceType: fact.MaintenanceType,
		}

		acc, ok := groups[key]
		if !ok {
			acc = &summaryAccumulator{
				metric: models.SummaryMetric{
					LineID:          key.lineID,
					MaintenanceType: key.maintenanceType,
					Date:            key.date,
					TotalCost:       decimal.Zero,
					MinDowntime:     fact.DowntimeMin,
					MaxDowntime:     fact.DowntimeMin,
				},
			}
			groups[key] = acc
		}
		acc.add(fact)
	}

	summaries := make([]models.SummaryMetric, 0, len(groups))
	for _, acc := range groups {
		summaries = append(summaries, acc.finish())
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Date != summaries[j].Date {
			return summaries[i].Date < summaries[j].Date
		}
		if summaries[i].LineID != summaries[j].LineID {
			return summaries[i].LineID < summaries[j].LineID
		}
		return summaries[i].MaintenanceType < summaries[j].MaintenanceType
	})

	a.logger.Info("Построено агрегатов: %d из %d фактов", len(summaries), len(facts))
	return summaries
}

func (acc *summaryAccumulator) add(fact models.FactMaintenanceEvent) {
	m := &acc.metric
	m.EventCount++

	if fact.CostEUR.Valid {
		cost := fact.CostEUR.Decimal
		m.CostCount++
		m.TotalCost = m.TotalCost.Add(cost)
		if !m.MinCost.Valid || cost.LessThan(m.MinCost.Decimal) {
			m.MinCost = decimal.NewNullDecimal(cost)
		}
		if !m.MaxCost.Valid || cost.GreaterThan(m.MaxCost.Decimal) {
			m.MaxCost = decimal.NewNullDecimal(cost)
		}
	} else {
		m.PendingCostCount++
	}

	m.TotalDowntime += fact.DowntimeMin
	if fact.DowntimeMin < m.MinDowntime {
		m.MinDowntime = fact.DowntimeMin
	}
	if fact.DowntimeMin > m.MaxDowntime {
		m.MaxDowntime = fact.DowntimeMin
	}
	acc.downtimes = append(acc.downtimes, fact.DowntimeMin)

	if fact.IsUnplanned {
		m.UnplannedCount++
	}
}

func (acc *summaryAccumulator) finish() models.SummaryMetric {
	m := acc.metric

	if m.CostCount > 0 {
		m.MeanCost = decimal.NewNullDecimal(m.TotalCost.Div(decimal.NewFromInt(int64(m.CostCount))).Round(2))
	}

	m.MeanDowntime = float64(m.TotalDowntime) / float64(m.EventCount)
	m.StddevDowntime = populationStddev(acc.downtimes, m.MeanDowntime)

	m.UnplannedFraction = float64(m.UnplannedCount) / float64(m.EventCount)
	m.UnplannedPct = decimal.NewFromInt(int64(m.UnplannedCount)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(m.EventCount))).
		Round(2)

	return m
}

// populationStddev - стандартное отклонение генеральной совокупности (делитель n)
func populationStddev(values []int64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := float64(v) - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}
