package transform

import (
	"database/sql"
	"sort"
	"strings"

	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// Enricher выполняет левое соединение событий со справочником операторов
type Enricher struct {
	logger *utils.ETLLogger
}

// NewEnricher создает новый экземпляр Enricher
func NewEnricher(logger *utils.ETLLogger) *Enricher {
	return &Enricher{logger: logger}
}

// Enrich сохраняет каждое событие ровно один раз, независимо от наличия совпадений
func (e *Enricher) Enrich(events []models.MaintenanceEventClean, roster []models.OperatorRecord) ([]models.EnrichedEvent, []models.RosterConflict) {
	index, conflicts := buildRosterIndex(roster)
	for _, c := range conflicts {
		e.logger.Warn("operator_id %s встречается в справочнике %d раз, используется запись skill_level=%s reliability=%.2f",
			c.OperatorID, c.Matches, c.Chosen.SkillLevel, c.Chosen.Reliability)
	}

	enriched := make([]models.EnrichedEvent, len(events))
	unmatched := 0
	for i, event := range events {
		enriched[i] = models.EnrichedEvent{MaintenanceEventClean: event}

		if !event.TechnicianID.Valid {
			unmatched++
			continue
		}
		op, ok := index[event.TechnicianID.String]
		if !ok {
			unmatched++
			continue
		}

		enriched[i].TechnicianFound = true
		enriched[i].OperatorSkillLevel = sql.NullString{String: op.SkillLevel, Valid: true}
		enriched[i].OperatorReliability = sql.NullFloat64{Float64: op.Reliability, Valid: true}
	}

	e.logger.Info("Обогащено событий: %d, техник не найден в справочнике: %d", len(enriched), unmatched)
	return enriched, conflicts
}

// buildRosterIndex строит отображение operator_id -> запись.
// При нескольких совпадениях выбирается первая после сортировки по
// (operator_id, skill_level, reliability), поэтому выбор не зависит от порядка строк.
func buildRosterIndex(roster []models.OperatorRecord) (map[string]models.OperatorRecord, []models.RosterConflict) {
	groups := make(map[string][]models.OperatorRecord)
	for _, op := range roster {
		id := strings.TrimSpace(op.OperatorID)
		if id == "" {
			continue
		}
		op.OperatorID = id
		groups[id] = append(groups[id], op)
	}

	index := make(map[string]models.OperatorRecord, len(groups))
	var conflicts []models.RosterConflict
	for id, matches := range groups {
		if len(matches) > 1 {
			sort.SliceStable(matches, func(i, j int) bool {
				return rosterLess(matches[i], matches[j])
			})
			conflicts = append(conflicts, models.RosterConflict{
				OperatorID: id,
				Matches:    len(matches),
				Chosen:     matches[0],
			})
		}
		index[id] = matches[0]
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].OperatorID < conflicts[j].OperatorID
	})
	return index, conflicts
}

func rosterLess(a, b models.OperatorRecord) bool {
	if a.OperatorID != b.OperatorID {
		return a.OperatorID < b.OperatorID
	}
	if a.SkillLevel != b.SkillLevel {
		return a.SkillLevel < b.SkillLevel
	}
	return a.Reliability < b.Reliability
}
