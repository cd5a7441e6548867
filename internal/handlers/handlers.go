package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shreyansh0843/rfp-system/db"
	"github.com/Shreyansh0843/rfp-system/internal/ai"
	"github.com/Shreyansh0843/rfp-system/models"
)

const (
	maxBodyBytes = 10 << 20

	defaultLimit = 10
	maxLimit     = 100
)

// Handler держит хранилище и внешние сервисы, нужные обработчикам
type Handler struct {
	Store    StorageInterface
	AI       Assistant
	Mail     Mailer
	Notifier Notifier
	Log      *zap.Logger

	now func() time.Time
}

func NewHandler(store StorageInterface, assistant Assistant, mailer Mailer, notifier Notifier, log *zap.Logger) *Handler {
	return &Handler{
		Store:    store,
		AI:       assistant,
		Mail:     mailer,
		Notifier: notifier,
		Log:      log,
		now:      time.Now,
	}
}

// envelope общий формат ответа API
type envelope struct {
	Success       bool                `json:"success"`
	Data          any                 `json:"data,omitempty"`
	Message       string              `json:"message,omitempty"`
	Pagination    *models.Pagination  `json:"pagination,omitempty"`
	AISuggestions any                 `json:"aiSuggestions,omitempty"`
	Error         string              `json:"error,omitempty"`
	Errors        []models.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondOK(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func respondError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

func respondValidation(w http.ResponseWriter, errs []models.FieldError) {
	writeJSON(w, http.StatusBadRequest, envelope{Success: false, Errors: errs})
}

// storageError переводит ошибки хранилища в HTTP ответ
func (h *Handler) storageError(w http.ResponseWriter, err error, entity string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		respondError(w, http.StatusNotFound, entity+" not found")
	case errors.Is(err, db.ErrDuplicateEmail):
		respondError(w, http.StatusBadRequest, "A vendor with this email already exists")
	case errors.Is(err, db.ErrDuplicateProposal):
		respondError(w, http.StatusBadRequest, "Vendor has already submitted a proposal for this RFP")
	case errors.Is(err, db.ErrVendorInUse):
		respondError(w, http.StatusBadRequest, "Vendor has proposals and cannot be deleted")
	case errors.Is(err, db.ErrStatusConflict):
		respondError(w, http.StatusBadRequest, "RFP status was changed by another request, reload and try again")
	default:
		h.Log.Error("storage failure", zap.String("entity", entity), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// aiError: сбой модели означает, что у операции нет результата
func aiError(w http.ResponseWriter, err error) {
	if errors.Is(err, ai.ErrNotConfigured) {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondError(w, http.StatusBadGateway, err.Error())
}

// decodeJSON читает тело запроса в dst; при ошибке сам пишет ответ и возвращает false
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	// Ограничение размера тела, чтобы избежать DoS
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}

	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			respondValidation(w, []models.FieldError{{
				Field:   typeErr.Field,
				Message: fmt.Sprintf("Invalid value for %s", typeErr.Field),
			}})
			return false
		}
		respondError(w, http.StatusBadRequest, "Invalid JSON format")
		return false
	}
	return true
}

// parseID читает uuid из параметра пути
func parseID(w http.ResponseWriter, r *http.Request, param, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid "+entity+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// parseOptionalID читает uuid из query; пустое значение означает отсутствие фильтра
func parseOptionalID(w http.ResponseWriter, r *http.Request, key, entity string) (*uuid.UUID, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid "+entity+" ID")
		return nil, false
	}
	return &id, true
}

// parsePaginationParams парсит page и limit из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) models.Page {
	page := models.Page{Number: 1, Limit: defaultLimit}
	q := r.URL.Query()
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page.Number = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		page.Limit = min(l, maxLimit)
	}
	return page
}

// parseSort: по умолчанию сортировка по убыванию, как в списках API
func parseSort(r *http.Request) models.Sort {
	q := r.URL.Query()
	return models.Sort{
		Field: strings.TrimSpace(q.Get("sortBy")),
		Desc:  !strings.EqualFold(q.Get("sortOrder"), "asc"),
	}
}

func respondList(w http.ResponseWriter, data any, page models.Page, total int) {
	p := models.NewPagination(page, total)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Pagination: &p})
}

// HealthHandler отвечает {status, timestamp}; при недоступной базе 503
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ts := h.now().UTC().Format(time.RFC3339)
	if err := h.Store.Ping(r.Context()); err != nil {
		h.Log.Error("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "timestamp": ts})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "timestamp": ts})
}

func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "Route not found")
}

func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
