package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/maintenance_analytics/ETL/extractors"
	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

// maxUploadSize - максимальный размер CSV в запросе на проверку
const maxUploadSize = 32 << 20

// Runner запускает ETL по запросу
type Runner interface {
	ExecuteETL() (*models.RunReport, error)
}

// BatchValidator проверяет пакет без преобразования
type BatchValidator interface {
	Validate(batch models.RawBatch) (*models.ValidationReport, error)
}

// Handler объединяет зависимости HTTP API
type Handler struct {
	repo      models.ETLLogRepository
	runner    Runner
	validator BatchValidator
	notifier  *Notifier
	logger    *utils.ETLLogger
}

// NewHandler создает новый экземпляр Handler
func NewHandler(repo models.ETLLogRepository, runner Runner, validator BatchValidator, notifier *Notifier, logger *utils.ETLLogger) *Handler {
	return &Handler{
		repo:      repo,
		runner:    runner,
		validator: validator,
		notifier:  notifier,
		logger:    logger,
	}
}

// errorResponse - тело ответа с ошибкой
type errorResponse struct {
	Error      string                   `json:"error"`
	Violations []models.ValidationIssue `json:"violations,omitempty"`
}

// validateResponse - тело ответа на проверку пакета
type validateResponse struct {
	Report *models.ValidationReport `json:"report"`
	Error  string                   `json:"error,omitempty"`
}

// SetupRoutes настраивает все маршруты API и WebSocket
func SetupRoutes(router *mux.Router, h *Handler) {
	// Применяем CORS middleware
	router.Use(corsMiddleware)

	// WebSocket уведомления о запусках
	if h.notifier != nil {
		router.HandleFunc("/ws/etl", h.notifier.HandleConnections)
	}

	// API журнала запусков
	router.HandleFunc("/api/etl/runs", h.GetRunsHandler).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/etl/state", h.GetStateHandler).Methods("GET", "OPTIONS")

	// API конвейера
	router.HandleFunc("/api/etl/validate", h.ValidateHandler).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/etl/run", h.RunHandler).Methods("POST", "OPTIONS")
}

// NewRouter создает маршрутизатор с зарегистрированными обработчиками
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	SetupRoutes(router, h)
	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetRunsHandler возвращает журнал запусков за последние days дней (по умолчанию 7)
func (h *Handler) GetRunsHandler(w http.ResponseWriter, r *http.Request) {
	days := 7
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Параметр days должен быть положительным целым числом"})
			return
		}
		days = parsed
	}

	runs, err := h.repo.GetETLRunStats(days)
	if err != nil {
		h.logger.Error("Ошибка при получении журнала запусков: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Ошибка при получении журнала запусков"})
		return
	}
	if runs == nil {
		runs = []models.ETLRunLog{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetStateHandler возвращает сводное состояние ETL
func (h *Handler) GetStateHandler(w http.ResponseWriter, r *http.Request) {
	state, err := h.repo.GetETLStateMonitor()
	if err != nil {
		h.logger.Error("Ошибка при получении состояния ETL: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Ошибка при получении состояния ETL"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// ValidateHandler проверяет CSV с событиями из тела запроса.
// Нарушение схемы возвращается со статусом 422 и полным отчётом.
func (h *Handler) ValidateHandler(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxUploadSize)
	defer body.Close()

	batch, err := extractors.ExtractEventsFromReader(body, "request")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	report, err := h.validator.Validate(batch)
	var violation *models.SchemaViolation
	switch {
	case errors.As(err, &violation):
		writeJSON(w, http.StatusUnprocessableEntity, validateResponse{Report: report, Error: violation.Error()})
	case err != nil:
		h.logger.Error("Ошибка проверки пакета: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, validateResponse{Report: report})
	}
}

// RunHandler запускает ETL синхронно и возвращает отчёт о запуске
func (h *Handler) RunHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.ExecuteETL()

	var violation *models.SchemaViolation
	switch {
	case errors.Is(err, models.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "ETL уже выполняется"})
	case errors.As(err, &violation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: violation.Error(), Violations: violation.Violations})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
